package server

import (
	"errors"
	"net/http"
	"time"

	"Chroma/cache"
	"Chroma/logger"
	"Chroma/model"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
)

var wsUpgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// JobStatusResponse 任务状态和最新进度
type JobStatusResponse struct {
	Job      *model.Job      `json:"job,omitempty"`
	Progress *model.Progress `json:"progress,omitempty"`
}

// JobHandler handles GET /api/jobs/{id}.
func (s *Server) JobHandler(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	job, err := s.pipeline.Jobs().GetByID(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	progress, err := s.pipeline.Progress().GetProgress(r.Context(), id)
	if err != nil && !errors.Is(err, cache.ErrNoProgress) {
		logger.Warn("读取任务进度失败", logger.JobID(id), logger.ErrorField(err))
	}

	if job == nil && progress == nil {
		http.Error(w, "Job not found", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, JobStatusResponse{Job: job, Progress: progress})
}

// JobProgressWebSocketHandler pushes progress snapshots until the job reaches a terminal status.
// The job may not exist yet when the client connects, since the id can be chosen by the client.
func (s *Server) JobProgressWebSocketHandler(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	conn, err := wsUpgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Error("websocket upgrade failed", logger.ErrorField(err))
		return
	}
	defer conn.Close()

	// 读协程只用来感知客户端断开
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.NextReader(); err != nil {
				return
			}
		}
	}()

	poll := s.cfg.ProgressPoll
	if poll <= 0 {
		poll = time.Second
	}
	ticker := time.NewTicker(poll)
	defer ticker.Stop()

	var last time.Time
	for {
		p, err := s.pipeline.Progress().GetProgress(r.Context(), id)
		if err == nil && p.UpdatedAt.After(last) {
			last = p.UpdatedAt
			conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := conn.WriteJSON(p); err != nil {
				logger.Debug("推送进度失败", logger.JobID(id), logger.ErrorField(err))
				return
			}
			if p.Status.Terminal() {
				conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, string(p.Status)))
				return
			}
		}

		select {
		case <-closed:
			return
		case <-r.Context().Done():
			return
		case <-ticker.C:
		}
	}
}
