package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/http"
	"net/url"
	"time"

	"Chroma/core/pipeline"
	"Chroma/logger"
)

var errTooLarge = errors.New("upload too large")

// apiError carries the status and the message shown to the user.
type apiError struct {
	status int
	msg    string
	err    error
}

func (e *apiError) Error() string {
	if e.err != nil {
		return e.msg + ": " + e.err.Error()
	}
	return e.msg
}

func (e *apiError) Unwrap() error { return e.err }

func badRequest(msg string) error {
	return &apiError{status: http.StatusBadRequest, msg: msg}
}

func tooLarge(limit int64) error {
	mb := int64(math.Ceil(float64(limit) / (1 << 20)))
	return &apiError{
		status: http.StatusRequestEntityTooLarge,
		msg:    fmt.Sprintf("The file is too large. Please upload files less than %dMB.", mb),
		err:    errTooLarge,
	}
}

// JobResponse 上色/修复接口的返回
type JobResponse struct {
	JobID       string            `json:"jobId"`
	Status      string            `json:"status"`
	FrameCount  int               `json:"frameCount,omitempty"`
	OriginalURL string            `json:"originalUrl"`
	ResultURL   string            `json:"resultUrl"`
	DownloadURL string            `json:"downloadUrl"`
	Extra       map[string]string `json:"extra,omitempty"`
	ExpiresAt   time.Time         `json:"expiresAt"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Warn("写入响应失败", logger.ErrorField(err))
	}
}

// writeError 把错误转换成状态码和用户可读的消息
func writeError(w http.ResponseWriter, err error) {
	var ae *apiError
	if errors.As(err, &ae) {
		http.Error(w, ae.msg, ae.status)
		return
	}

	if errors.Is(err, pipeline.ErrInvalidJobID) {
		http.Error(w, "Invalid job id", http.StatusBadRequest)
		return
	}

	var se *pipeline.StageError
	if errors.As(err, &se) {
		switch {
		case se.Stage == pipeline.StageDownload:
			http.Error(w, "Error occurred while downloading video: "+se.Err.Error(), http.StatusBadGateway)
		case se.Upstream():
			http.Error(w, "Model server error: "+se.Err.Error(), http.StatusBadGateway)
		default:
			http.Error(w, "Processing failed: "+se.Error(), http.StatusInternalServerError)
		}
		return
	}

	logger.Error("请求处理失败", logger.ErrorField(err))
	http.Error(w, "Internal server error", http.StatusInternalServerError)
}

// resultURL 生成带下载令牌的结果地址
func resultURL(jobID, name, token string, download bool) string {
	q := url.Values{"token": {token}}
	if download {
		q.Set("download", "1")
	}
	return "/api/results/" + url.PathEscape(jobID) + "/" + url.PathEscape(name) + "?" + q.Encode()
}

func (s *Server) jobResponse(res *pipeline.Result) (*JobResponse, error) {
	token, exp, err := s.tokens.Issue(res.Job.ID)
	if err != nil {
		return nil, err
	}

	resp := &JobResponse{
		JobID:       res.Job.ID,
		Status:      string(res.Job.Status),
		FrameCount:  res.Job.FrameCount,
		OriginalURL: resultURL(res.Job.ID, res.Original, token, false),
		ResultURL:   resultURL(res.Job.ID, res.Output, token, false),
		DownloadURL: resultURL(res.Job.ID, res.Output, token, true),
		ExpiresAt:   exp,
	}
	if len(res.Extra) > 0 {
		resp.Extra = make(map[string]string, len(res.Extra))
		for k, name := range res.Extra {
			resp.Extra[k] = resultURL(res.Job.ID, name, token, false)
		}
	}
	return resp, nil
}
