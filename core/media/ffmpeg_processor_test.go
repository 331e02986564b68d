package media

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"Chroma/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRemuxArgs_WithAudioHasNoShortest(t *testing.T) {
	args := remuxArgs("/w/colorized/colorized_%06d.jpg", 24, "/w/audio.wav", "/w/out.mp4")
	joined := strings.Join(args, " ")

	assert.Contains(t, joined, "-framerate 24 -i /w/colorized/colorized_%06d.jpg -i /w/audio.wav")
	assert.Contains(t, joined, "-map 0:v:0")
	assert.Contains(t, joined, "-map 1:a:0 -c:a aac")
	assert.Contains(t, joined, "-c:v libx264 -pix_fmt yuv420p -r 24")
	assert.NotContains(t, joined, "-shortest", "audio/video lengths must not be reconciled")
	assert.Equal(t, "/w/out.mp4", args[len(args)-1])
}

func TestRemuxArgs_VideoOnly(t *testing.T) {
	args := remuxArgs("seq_%06d.png", 30, "", "out.mp4")
	joined := strings.Join(args, " ")

	assert.Equal(t, 1, strings.Count(joined, "-i "))
	assert.NotContains(t, joined, "-c:a")
	assert.Contains(t, joined, "-framerate 30")
}

func TestExtractArgs(t *testing.T) {
	frames := strings.Join(extractFramesArgs("in.mp4", "/f/frame_%06d.jpg"), " ")
	assert.Contains(t, frames, "-i in.mp4 -map 0:v:0 -vsync 0")
	assert.True(t, strings.HasSuffix(frames, "/f/frame_%06d.jpg"))

	audio := strings.Join(extractAudioArgs("in.mp4", "a.wav"), " ")
	assert.Contains(t, audio, "-vn -map 0:a:0 -acodec pcm_s16le a.wav")
}

func TestNormalizeAndSpectrogramArgs(t *testing.T) {
	norm := strings.Join(normalizeAudioArgs("in.wav", "out.wav", 10), " ")
	assert.Contains(t, norm, "-i in.wav -t 10.000 -ac 1 -ar 44100")

	full := strings.Join(normalizeAudioArgs("in.wav", "out.wav", 0), " ")
	assert.NotContains(t, full, "-t ")

	pic := spectrogramArgs("in.wav", "s.png", 10)
	joined := strings.Join(pic, " ")
	assert.Contains(t, joined, "-t 10.000 -i in.wav")
	assert.Contains(t, joined, "showspectrumpic")
	assert.Equal(t, "s.png", pic[len(pic)-1])
}

func TestParseProbe(t *testing.T) {
	raw := `{
		"streams": [
			{"codec_type": "video", "codec_name": "h264", "width": 640, "height": 480, "r_frame_rate": "30000/1001"},
			{"codec_type": "audio", "codec_name": "aac"}
		],
		"format": {"duration": "12.480000"}
	}`

	info, err := parseProbe([]byte(raw))
	require.NoError(t, err)
	assert.True(t, info.HasVideo)
	assert.True(t, info.HasAudio)
	assert.Equal(t, 640, info.Width)
	assert.Equal(t, 480, info.Height)
	assert.InDelta(t, 29.97, info.FrameRate, 0.01)
	assert.InDelta(t, 12.48, info.Duration, 0.0001)
}

func TestParseProbe_NoAudio(t *testing.T) {
	info, err := parseProbe([]byte(`{"streams":[{"codec_type":"video","r_frame_rate":"25"}],"format":{}}`))
	require.NoError(t, err)
	assert.False(t, info.HasAudio)
	assert.Equal(t, 25.0, info.FrameRate)
	assert.Zero(t, info.Duration)
}

func TestParseProbe_BadDuration(t *testing.T) {
	_, err := parseProbe([]byte(`{"format":{"duration":"abc"}}`))
	assert.Error(t, err)
}

func TestParseRate(t *testing.T) {
	assert.Equal(t, 24.0, parseRate("24/1"))
	assert.Equal(t, 0.0, parseRate("24/0"))
	assert.Equal(t, 0.0, parseRate(""))
}

func TestReadFramesKeepsTemporalOrder(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"frame_000003.jpg", "frame_000001.jpg", "frame_000002.jpg"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(name), 0644))
	}

	frames, err := readFrames(dir)
	require.NoError(t, err)
	require.Len(t, frames, 3)
	for i, f := range frames {
		assert.Equal(t, i, f.Index)
	}
	assert.Equal(t, "frame_000001.jpg", string(frames[0].Data))
	assert.Equal(t, "frame_000003.jpg", string(frames[2].Data))
}

func TestReadFramesEmpty(t *testing.T) {
	_, err := readFrames(t.TempDir())
	assert.True(t, errors.Is(err, ErrNoFrames))
}

func TestRemuxRejectsEmptySequence(t *testing.T) {
	p := NewFFmpegProcessor("ffmpeg", "ffprobe", 0)
	assert.Equal(t, 24, p.OutputFPS())

	err := p.Remux(context.Background(), nil, model.AudioTrack{}, t.TempDir(), "out.mp4")
	assert.True(t, errors.Is(err, ErrNoFrames))
}

func TestImageExt(t *testing.T) {
	png := []byte("\x89PNG\r\n\x1a\n0000")
	assert.Equal(t, ".png", imageExt(png))
	assert.Equal(t, ".jpg", imageExt([]byte{0xFF, 0xD8, 0xFF, 0xE0}))
}
