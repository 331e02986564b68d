package storage

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPrintTree(t *testing.T) {
	objects := []ObjectInfo{
		{Key: "results/b/out.wav", Size: 2048},
		{Key: "results/a/original.mp4", Size: 10},
		{Key: "results/a/colorized_video_with_audio.mp4", Size: 1536},
	}

	var buf bytes.Buffer
	PrintTree(&buf, objects)

	want := "results/\n" +
		"  a/\n" +
		"    colorized_video_with_audio.mp4 (1.5 KB)\n" +
		"    original.mp4 (10 B)\n" +
		"  b/\n" +
		"    out.wav (2.0 KB)\n"
	assert.Equal(t, want, buf.String())
}

func TestPrintObjectsEmpty(t *testing.T) {
	var buf bytes.Buffer
	PrintObjects(&buf, nil)
	assert.Contains(t, buf.String(), "没有找到任何文件")
}
