package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestFromEnvDefaults(t *testing.T) {
	t.Setenv("FFMPEG_PATH", "/opt/bin/ffmpeg")

	cfg := FromEnv()

	assert.Equal(t, "/opt/bin/ffmpeg", cfg.FFmpegPath)
	assert.Equal(t, "/opt/bin/ffprobe", cfg.FFprobePath, "ffprobe should sit next to ffmpeg unless overridden")
	assert.Equal(t, 24, cfg.OutputFPS)
	assert.Equal(t, int64(5000*1024), cfg.MaxImageUpload)
	assert.Equal(t, time.Duration(0), cfg.ColorizerTimeout)
}

func TestFromEnvOverrides(t *testing.T) {
	t.Setenv("OUTPUT_FPS", "30")
	t.Setenv("REDIS_ENABLED", "false")
	t.Setenv("WORK_DIR_TTL", "90m")
	t.Setenv("MAX_VIDEO_UPLOAD", "1024")

	cfg := FromEnv()

	assert.Equal(t, 30, cfg.OutputFPS)
	assert.False(t, cfg.RedisEnabled)
	assert.Equal(t, 90*time.Minute, cfg.WorkDirTTL)
	assert.Equal(t, int64(1024), cfg.MaxVideoUpload)
}

func TestFromEnvIgnoresGarbage(t *testing.T) {
	t.Setenv("OUTPUT_FPS", "fast")
	t.Setenv("DB_ENABLED", "maybe")
	t.Setenv("PROGRESS_POLL", "soon")

	cfg := FromEnv()

	assert.Equal(t, 24, cfg.OutputFPS)
	assert.True(t, cfg.DBEnabled)
	assert.Equal(t, time.Second, cfg.ProgressPoll)
}

func TestInsecureJWTSecret(t *testing.T) {
	t.Setenv("JWT_SECRET", "")
	assert.True(t, FromEnv().InsecureJWTSecret(), "empty secret")

	t.Setenv("JWT_SECRET", DefaultJWTSecret)
	assert.True(t, FromEnv().InsecureJWTSecret())

	t.Setenv("JWT_SECRET", "9f2c1e7a")
	assert.False(t, FromEnv().InsecureJWTSecret())
}
