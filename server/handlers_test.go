package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"Chroma/config"
	"Chroma/core/auth"
	"Chroma/core/colorize"
	"Chroma/core/pipeline"
	"Chroma/core/restore"
	"Chroma/model"
	"Chroma/repository"
	"Chroma/storage"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubDownloader struct{ err error }

func (d stubDownloader) Download(_ context.Context, _, destDir string) (string, error) {
	if d.err != nil {
		return "", d.err
	}
	if err := os.MkdirAll(destDir, 0755); err != nil {
		return "", err
	}
	path := filepath.Join(destDir, "source.mp4")
	return path, os.WriteFile(path, []byte("yt"), 0644)
}

type stubRestorer struct{}

func (stubRestorer) Restore(_ context.Context, in, out string, _ restore.Mode) error {
	data, err := os.ReadFile(in)
	if err != nil {
		return err
	}
	return os.WriteFile(out, data, 0644)
}

type testEnv struct {
	srv       *Server
	cfg       *config.Config
	jobs      repository.JobRepository
	modelHits int
	// 非 nil 时模型服务阻塞到 gate 关闭
	modelGate chan struct{}
}

// newTestEnv 用 httptest 假扮模型服务，status 非 200 时模型返回错误
func newTestEnv(t *testing.T, modelStatus int) *testEnv {
	t.Helper()
	env := &testEnv{}

	modelSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		env.modelHits++
		if env.modelGate != nil {
			<-env.modelGate
		}
		if modelStatus != http.StatusOK {
			http.Error(w, "CUDA out of memory", modelStatus)
			return
		}
		file, _, err := r.FormFile("image")
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		defer file.Close()
		data, _ := io.ReadAll(file)
		w.Write(append([]byte("colorized:"), data...))
	}))
	t.Cleanup(modelSrv.Close)

	store, err := storage.NewLocalStore(t.TempDir())
	require.NoError(t, err)

	env.cfg = &config.Config{
		WebAppDir:        t.TempDir(),
		TempDir:          t.TempDir(),
		WorkDirTTL:       time.Hour,
		MaxImageUpload:   5000 * 1024,
		MaxVideoUpload:   200 << 20,
		MaxAudioUpload:   50 << 20,
		JWTSecret:        "test-secret",
		DownloadTokenTTL: time.Hour,
		ProgressPoll:     10 * time.Millisecond,
	}
	env.jobs = repository.NewMemoryJobRepository()

	p := pipeline.New(pipeline.Deps{
		Colorizer:  colorize.NewHTTPColorizer(modelSrv.URL, "cpu", 5*time.Second),
		Restorer:   stubRestorer{},
		Downloader: stubDownloader{err: errors.New("Video unavailable")},
		Store:      store,
		Jobs:       env.jobs,
		TempDir:    env.cfg.TempDir,
	})
	env.srv = New(env.cfg, p, nil)
	return env
}

func multipartBody(t *testing.T, filename string, content []byte, fields map[string]string) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	part, err := w.CreateFormFile("file", filename)
	require.NoError(t, err)
	_, err = part.Write(content)
	require.NoError(t, err)
	for k, v := range fields {
		require.NoError(t, w.WriteField(k, v))
	}
	require.NoError(t, w.Close())
	return &buf, w.FormDataContentType()
}

func (e *testEnv) do(req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	e.srv.ServeHTTP(rec, req)
	return rec
}

func (e *testEnv) postImage(t *testing.T, name string, content []byte, fields map[string]string) *httptest.ResponseRecorder {
	body, ct := multipartBody(t, name, content, fields)
	req := httptest.NewRequest(http.MethodPost, "/api/image/colorize", body)
	req.Header.Set("Content-Type", ct)
	return e.do(req)
}

func TestColorizeImage_EndToEnd(t *testing.T) {
	env := newTestEnv(t, http.StatusOK)

	rec := env.postImage(t, "photo.jpg", []byte("jpeg-data"), map[string]string{"render_factor": "99"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp JobResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, string(model.JobStatusCompleted), resp.Status)
	assert.Contains(t, resp.ResultURL, "/api/results/"+resp.JobID+"/colorized_image.jpg?token=")

	job, err := env.jobs.GetByID(context.Background(), resp.JobID)
	require.NoError(t, err)
	assert.Equal(t, 40, job.RenderFactor, "clamped at the request boundary")

	get := env.do(httptest.NewRequest(http.MethodGet, resp.ResultURL, nil))
	require.Equal(t, http.StatusOK, get.Code)
	assert.Equal(t, "colorized:jpeg-data", get.Body.String())
	assert.Empty(t, get.Header().Get("Content-Disposition"))

	dl := env.do(httptest.NewRequest(http.MethodGet, resp.DownloadURL, nil))
	require.Equal(t, http.StatusOK, dl.Code)
	assert.Contains(t, dl.Header().Get("Content-Disposition"), "attachment")

	orig := env.do(httptest.NewRequest(http.MethodGet, resp.OriginalURL, nil))
	require.Equal(t, http.StatusOK, orig.Code)
	assert.Equal(t, "jpeg-data", orig.Body.String())
}

func TestColorizeImage_TooLarge(t *testing.T) {
	env := newTestEnv(t, http.StatusOK)

	rec := env.postImage(t, "big.png", make([]byte, 5000*1024+1), nil)
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
	assert.Contains(t, rec.Body.String(), "The file is too large. Please upload files less than 5MB.")
	assert.Zero(t, env.modelHits)
}

func TestColorizeImage_RejectsType(t *testing.T) {
	env := newTestEnv(t, http.StatusOK)

	rec := env.postImage(t, "doc.gif", []byte("GIF89a"), nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestColorizeImage_ModelFailureIsBadGateway(t *testing.T) {
	env := newTestEnv(t, http.StatusInternalServerError)

	rec := env.postImage(t, "photo.jpg", []byte("x"), nil)
	assert.Equal(t, http.StatusBadGateway, rec.Code)
	assert.Contains(t, rec.Body.String(), "CUDA out of memory")

	jobs, err := env.jobs.List(context.Background(), repository.JobFilter{})
	require.NoError(t, err)
	require.Len(t, jobs, 1)
	assert.Equal(t, model.JobStatusFailed, jobs[0].Status)
}

func TestColorizeImage_InvalidJobID(t *testing.T) {
	env := newTestEnv(t, http.StatusOK)

	rec := env.postImage(t, "photo.jpg", []byte("x"), map[string]string{"job_id": "../../etc"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestResultRequiresMatchingToken(t *testing.T) {
	env := newTestEnv(t, http.StatusOK)

	rec := env.postImage(t, "photo.jpg", []byte("x"), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var resp JobResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))

	noToken := env.do(httptest.NewRequest(http.MethodGet, "/api/results/"+resp.JobID+"/colorized_image.jpg", nil))
	assert.Equal(t, http.StatusUnauthorized, noToken.Code)

	other, _, err := env.srv.tokens.Issue("another-job")
	require.NoError(t, err)
	wrong := env.do(httptest.NewRequest(http.MethodGet, "/api/results/"+resp.JobID+"/colorized_image.jpg?token="+other, nil))
	assert.Equal(t, http.StatusForbidden, wrong.Code)

	tok, _, err := env.srv.tokens.Issue(resp.JobID)
	require.NoError(t, err)
	missing := env.do(httptest.NewRequest(http.MethodGet, "/api/results/"+resp.JobID+"/nope.mp4?token="+tok, nil))
	assert.Equal(t, http.StatusNotFound, missing.Code)
}

func TestColorizeYouTube_Validation(t *testing.T) {
	env := newTestEnv(t, http.StatusOK)

	for _, body := range []string{`{}`, `{"url":"not a url"}`, `{"url":"https://vimeo.com/1"}`, `nope`} {
		req := httptest.NewRequest(http.MethodPost, "/api/youtube/colorize", strings.NewReader(body))
		rec := env.do(req)
		assert.Equal(t, http.StatusBadRequest, rec.Code, body)
	}
}

func TestColorizeYouTube_DownloadFailure(t *testing.T) {
	env := newTestEnv(t, http.StatusOK)

	req := httptest.NewRequest(http.MethodPost, "/api/youtube/colorize",
		strings.NewReader(`{"url":"https://www.youtube.com/watch?v=abc","renderFactor":12}`))
	rec := env.do(req)
	assert.Equal(t, http.StatusBadGateway, rec.Code)
	assert.Contains(t, rec.Body.String(), "Error occurred while downloading video: Video unavailable")
}

func TestEnhanceAudio_RejectsNonWav(t *testing.T) {
	env := newTestEnv(t, http.StatusOK)

	body, ct := multipartBody(t, "song.mp3", []byte("id3"), map[string]string{"mode": "1"})
	req := httptest.NewRequest(http.MethodPost, "/api/audio/enhance", body)
	req.Header.Set("Content-Type", ct)
	assert.Equal(t, http.StatusBadRequest, env.do(req).Code)
}

func TestJobHandler(t *testing.T) {
	env := newTestEnv(t, http.StatusOK)

	assert.Equal(t, http.StatusNotFound, env.do(httptest.NewRequest(http.MethodGet, "/api/jobs/unknown", nil)).Code)

	rec := env.postImage(t, "photo.jpg", []byte("x"), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var resp JobResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))

	got := env.do(httptest.NewRequest(http.MethodGet, "/api/jobs/"+resp.JobID, nil))
	require.Equal(t, http.StatusOK, got.Code)

	var status JobStatusResponse
	require.NoError(t, json.Unmarshal(got.Body.Bytes(), &status))
	require.NotNil(t, status.Job)
	assert.Equal(t, model.JobKindImage, status.Job.Kind)
	require.NotNil(t, status.Progress)
	assert.True(t, status.Progress.Status.Terminal())
}

func TestAdminRoutes(t *testing.T) {
	env := newTestEnv(t, http.StatusOK)

	list := httptest.NewRequest(http.MethodGet, "/api/admin/jobs", nil)
	assert.Equal(t, http.StatusNotFound, env.do(list).Code, "disabled without a password hash")

	hash, err := auth.HashPassword("s3cret")
	require.NoError(t, err)
	env.cfg.AdminPasswordHash = hash

	bad := httptest.NewRequest(http.MethodGet, "/api/admin/jobs", nil)
	bad.SetBasicAuth(adminUser, "wrong")
	assert.Equal(t, http.StatusUnauthorized, env.do(bad).Code)

	rec := env.postImage(t, "photo.jpg", []byte("x"), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var resp JobResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))

	good := httptest.NewRequest(http.MethodGet, "/api/admin/jobs", nil)
	good.SetBasicAuth(adminUser, "s3cret")
	listed := env.do(good)
	require.Equal(t, http.StatusOK, listed.Code)
	assert.Contains(t, listed.Body.String(), resp.JobID)

	del := httptest.NewRequest(http.MethodDelete, "/api/admin/jobs/"+resp.JobID, nil)
	del.SetBasicAuth(adminUser, "s3cret")
	deleted := env.do(del)
	require.Equal(t, http.StatusOK, deleted.Code)
	assert.Contains(t, deleted.Body.String(), `"objects":2`)

	gone := env.do(httptest.NewRequest(http.MethodGet, resp.ResultURL, nil))
	assert.Equal(t, http.StatusNotFound, gone.Code)
}

func TestSweepWorkDirs(t *testing.T) {
	env := newTestEnv(t, http.StatusOK)

	stale := filepath.Join(env.cfg.TempDir, "crashed-job")
	require.NoError(t, os.MkdirAll(stale, 0755))
	old := time.Now().Add(-2 * time.Hour)
	require.NoError(t, os.Chtimes(stale, old, old))

	assert.Equal(t, 1, env.srv.sweepWorkDirs(time.Now()))
	assert.NoDirExists(t, stale)
}

func TestSweepWorkDirs_KeepsRunningJob(t *testing.T) {
	env := newTestEnv(t, http.StatusOK)
	env.modelGate = make(chan struct{})
	jobID := "0b7f3c52-9a41-4f3e-8d53-2f0c9d1e6a10"

	body, ct := multipartBody(t, "old.jpg", []byte("gray"), map[string]string{"job_id": jobID})
	req := httptest.NewRequest(http.MethodPost, "/api/image/colorize", body)
	req.Header.Set("Content-Type", ct)

	done := make(chan *httptest.ResponseRecorder, 1)
	go func() {
		done <- env.do(req)
	}()

	require.Eventually(t, func() bool { return env.srv.pipeline.Running(jobID) }, 5*time.Second, 10*time.Millisecond)

	// 长任务期间目录 mtime 不再变化
	workDir := filepath.Join(env.cfg.TempDir, jobID)
	old := time.Now().Add(-2 * time.Hour)
	require.NoError(t, os.Chtimes(workDir, old, old))

	assert.Equal(t, 0, env.srv.sweepWorkDirs(time.Now()))
	assert.DirExists(t, workDir)

	close(env.modelGate)
	rec := <-done
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.False(t, env.srv.pipeline.Running(jobID))
	assert.NoDirExists(t, workDir)
}

func TestTooLargeMessage(t *testing.T) {
	var ae *apiError
	require.ErrorAs(t, tooLarge(200<<20), &ae)
	assert.Equal(t, "The file is too large. Please upload files less than 200MB.", ae.msg)
	assert.ErrorIs(t, tooLarge(1), errTooLarge)
}
