package server

import (
	"bytes"
	"errors"
	"io"
	"mime"
	"net/http"
	"strconv"

	"Chroma/cache"
	"Chroma/core/auth"
	"Chroma/logger"
	"Chroma/storage"

	"github.com/gorilla/mux"
)

// ResultHandler streams a stored object of a job: GET /api/results/{jobId}/{name}?token=...
// download=1 turns it into an attachment.
func (s *Server) ResultHandler(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	jobID, name := vars["jobId"], vars["name"]

	if err := s.tokens.Verify(r.URL.Query().Get("token"), jobID); err != nil {
		status := http.StatusForbidden
		if errors.Is(err, auth.ErrTokenMissing) {
			status = http.StatusUnauthorized
		}
		logger.Debug("下载令牌校验失败", logger.JobID(jobID), logger.ErrorField(err))
		http.Error(w, "Invalid or expired download link", status)
		return
	}

	key := storage.ResultKey(jobID, name)
	if data := s.resultCache.Get(r.Context(), key); data != nil {
		s.writeResultHeaders(w, r, name, storage.ContentTypeFor(name), int64(len(data)))
		if r.Method != http.MethodHead {
			w.Write(data)
		}
		return
	}

	object, info, err := s.pipeline.Store().Get(r.Context(), key)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			http.Error(w, "File not found", http.StatusNotFound)
			return
		}
		logger.Error("读取结果失败", logger.String("key", key), logger.ErrorField(err))
		http.Error(w, "Failed to read result", http.StatusInternalServerError)
		return
	}
	defer object.Close()

	contentType := info.ContentType
	if contentType == "" || contentType == "application/octet-stream" {
		contentType = storage.ContentTypeFor(name)
	}
	s.writeResultHeaders(w, r, name, contentType, info.Size)
	if r.Method == http.MethodHead {
		return
	}

	// 小文件顺便放进缓存
	var body io.Reader = object
	var buf *bytes.Buffer
	if s.resultCache != nil && info.Size > 0 && info.Size <= cache.MaxCachedResult {
		buf = bytes.NewBuffer(make([]byte, 0, info.Size))
		body = io.TeeReader(object, buf)
	}

	n, err := io.Copy(w, body)
	if err != nil {
		logger.Warn("结果传输中断", logger.String("key", key), logger.ErrorField(err))
		return
	}
	if buf != nil && n == info.Size {
		s.resultCache.Set(r.Context(), key, buf.Bytes())
	}
}

func (s *Server) writeResultHeaders(w http.ResponseWriter, r *http.Request, name, contentType string, size int64) {
	w.Header().Set("Content-Type", contentType)
	if size > 0 {
		w.Header().Set("Content-Length", strconv.FormatInt(size, 10))
	}
	w.Header().Set("Cache-Control", "private, max-age=3600")
	if r.URL.Query().Get("download") == "1" {
		w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": name}))
	}
}
