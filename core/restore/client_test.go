package restore

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseMode(t *testing.T) {
	assert.Equal(t, ModeDefault, ParseMode(""))
	assert.Equal(t, ModeStrong, ParseMode("1"))
	assert.Equal(t, ModeTrain, ParseMode(" 2 "))
	assert.Equal(t, ModeDefault, ParseMode("3"))
	assert.Equal(t, ModeDefault, ParseMode("-1"))
}

func TestHTTPRestorer_WritesResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/restore", r.URL.Path)
		require.NoError(t, r.ParseMultipartForm(1<<20))
		assert.Equal(t, "1", r.FormValue("mode"))
		assert.Equal(t, "false", r.FormValue("cuda"))

		f, _, err := r.FormFile("audio")
		require.NoError(t, err)
		defer f.Close()
		body, _ := io.ReadAll(f)
		assert.Equal(t, "noisy", string(body))

		_, _ = w.Write([]byte("clean"))
	}))
	defer srv.Close()

	dir := t.TempDir()
	in := filepath.Join(dir, "in.wav")
	out := filepath.Join(dir, "in_restored.wav")
	require.NoError(t, os.WriteFile(in, []byte("noisy"), 0644))

	err := NewHTTPRestorer(srv.URL, false, 0).Restore(context.Background(), in, out, ModeStrong)
	require.NoError(t, err)

	data, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Equal(t, "clean", string(data))
}

func TestHTTPRestorer_UpstreamError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model not loaded", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	dir := t.TempDir()
	in := filepath.Join(dir, "in.wav")
	require.NoError(t, os.WriteFile(in, []byte("noisy"), 0644))

	err := NewHTTPRestorer(srv.URL, false, 0).Restore(context.Background(), in, filepath.Join(dir, "out.wav"), ModeDefault)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "model not loaded")
}
