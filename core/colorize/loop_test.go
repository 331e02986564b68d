package colorize_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"Chroma/core/colorize"
	"Chroma/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

var errModel = errors.New("test: model exploded")

type mockColorizer struct {
	mock.Mock
}

func (m *mockColorizer) Colorize(ctx context.Context, imagePath string, opts colorize.Options) ([]byte, error) {
	args := m.Called(ctx, imagePath, opts)
	data, _ := args.Get(0).([]byte)
	return data, args.Error(1)
}

// echoColorizer returns the bytes currently stored at the temp path, prefixed.
type echoColorizer struct {
	paths []string
}

func (e *echoColorizer) Colorize(_ context.Context, imagePath string, _ colorize.Options) ([]byte, error) {
	e.paths = append(e.paths, imagePath)
	data, err := os.ReadFile(imagePath)
	if err != nil {
		return nil, err
	}
	return append([]byte("color:"), data...), nil
}

func makeFrames(n int) []model.Frame {
	frames := make([]model.Frame, n)
	for i := range frames {
		frames[i] = model.Frame{Index: i, Data: []byte{byte('a' + i)}}
	}
	return frames
}

func TestColorizeFrames_PreservesCountAndOrder(t *testing.T) {
	echo := &echoColorizer{}
	loop := colorize.NewLoop(echo)
	tempPath := filepath.Join(t.TempDir(), "temp_image.jpg")

	frames := makeFrames(5)
	out, err := loop.ColorizeFrames(context.Background(), frames, 10, tempPath)
	require.NoError(t, err)
	require.Len(t, out, len(frames))

	for i := range frames {
		assert.Equal(t, frames[i].Index, out[i].Index)
		assert.Equal(t, "color:"+string(frames[i].Data), string(out[i].Data))
	}
}

func TestColorizeFrames_ReusesSingleTempPath(t *testing.T) {
	echo := &echoColorizer{}
	loop := colorize.NewLoop(echo)
	tempPath := filepath.Join(t.TempDir(), "temp_image.jpg")

	_, err := loop.ColorizeFrames(context.Background(), makeFrames(3), 10, tempPath)
	require.NoError(t, err)

	assert.Equal(t, []string{tempPath, tempPath, tempPath}, echo.paths)
	// left behind for the work dir cleanup, holding the last frame
	data, err := os.ReadFile(tempPath)
	require.NoError(t, err)
	assert.Equal(t, []byte{'c'}, data)
}

func TestColorizeFrames_AbortsOnFirstFailure(t *testing.T) {
	m := &mockColorizer{}
	tempPath := filepath.Join(t.TempDir(), "temp_image.jpg")
	opts := colorize.FrameOptions(12)

	m.On("Colorize", mock.Anything, tempPath, opts).Return([]byte("ok"), nil).Once()
	m.On("Colorize", mock.Anything, tempPath, opts).Return(nil, errModel).Once()

	loop := colorize.NewLoop(m)
	out, err := loop.ColorizeFrames(context.Background(), makeFrames(4), 12, tempPath)

	assert.Nil(t, out, "no partial result on failure")
	assert.ErrorIs(t, err, errModel)
	assert.Contains(t, err.Error(), "frame 1")
	m.AssertNumberOfCalls(t, "Colorize", 2)
}

func TestColorizeFrames_PassesRenderFactorThrough(t *testing.T) {
	m := &mockColorizer{}
	tempPath := filepath.Join(t.TempDir(), "temp_image.jpg")

	// out of range on purpose: the loop does not validate
	m.On("Colorize", mock.Anything, tempPath, colorize.Options{RenderFactor: 99, Artistic: true, PostProcess: true}).
		Return([]byte("ok"), nil)

	_, err := colorize.NewLoop(m).ColorizeFrames(context.Background(), makeFrames(2), 99, tempPath)
	require.NoError(t, err)
	m.AssertExpectations(t)
}

func TestColorizeFrames_ReportsProgress(t *testing.T) {
	loop := colorize.NewLoop(&echoColorizer{})
	var seen [][2]int
	loop.OnProgress = func(done, total int) {
		seen = append(seen, [2]int{done, total})
	}

	_, err := loop.ColorizeFrames(context.Background(), makeFrames(3), 10, filepath.Join(t.TempDir(), "t.jpg"))
	require.NoError(t, err)
	assert.Equal(t, [][2]int{{1, 3}, {2, 3}, {3, 3}}, seen)
}

func TestColorizeFrames_StopsWhenCancelled(t *testing.T) {
	m := &mockColorizer{}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	out, err := colorize.NewLoop(m).ColorizeFrames(ctx, makeFrames(3), 10, filepath.Join(t.TempDir(), "t.jpg"))
	assert.Nil(t, out)
	assert.ErrorIs(t, err, context.Canceled)
	m.AssertNotCalled(t, "Colorize", mock.Anything, mock.Anything, mock.Anything)
}

func TestColorizeFrames_Empty(t *testing.T) {
	out, err := colorize.NewLoop(&echoColorizer{}).ColorizeFrames(context.Background(), nil, 10, filepath.Join(t.TempDir(), "t.jpg"))
	require.NoError(t, err)
	assert.Empty(t, out)
}
