package logger

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildWritesJSONToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "chroma.log")

	l := build(Config{Level: "debug", OutputPath: path, MaxSize: 1})
	l.Info("frame colorized", JobID("abc"), Int("index", 3))
	_ = l.Sync()

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	line := strings.TrimSpace(string(data))
	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(line), &entry))
	assert.Equal(t, "frame colorized", entry["msg"])
	assert.Equal(t, "abc", entry["jobId"])
	assert.Equal(t, float64(3), entry["index"])
}

func TestBuildRespectsLevel(t *testing.T) {
	path := filepath.Join(t.TempDir(), "warn.log")

	l := build(Config{Level: "warn", OutputPath: path})
	l.Info("dropped")
	l.Warn("kept")
	_ = l.Sync()

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "dropped")
	assert.Contains(t, string(data), "kept")
}

func TestHelpersAreSafeBeforeInit(t *testing.T) {
	assert.NotPanics(t, func() {
		Info("not initialised yet", String("k", "v"))
		Error("still fine", ErrorField(os.ErrNotExist))
	})
}
