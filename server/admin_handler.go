package server

import (
	"crypto/subtle"
	"net/http"
	"strconv"

	"Chroma/core/auth"
	"Chroma/logger"
	"Chroma/model"
	"Chroma/repository"
	"Chroma/storage"

	"github.com/gorilla/mux"
)

const adminUser = "admin"

// adminOnly 校验 Basic 认证；没有配置密码哈希时管理接口不存在
func (s *Server) adminOnly(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.cfg.AdminPasswordHash == "" {
			http.NotFound(w, r)
			return
		}

		user, pass, ok := r.BasicAuth()
		if !ok || subtle.ConstantTimeCompare([]byte(user), []byte(adminUser)) != 1 ||
			!auth.CheckPasswordHash(pass, s.cfg.AdminPasswordHash) {
			w.Header().Set("WWW-Authenticate", `Basic realm="chroma-admin"`)
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		next(w, r)
	}
}

// AdminListJobsHandler handles GET /api/admin/jobs?kind=&status=&limit=&offset=.
func (s *Server) AdminListJobsHandler(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit, _ := strconv.Atoi(q.Get("limit"))
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	offset, _ := strconv.Atoi(q.Get("offset"))

	jobs, err := s.pipeline.Jobs().List(r.Context(), repository.JobFilter{
		Kind:   model.JobKind(q.Get("kind")),
		Status: model.JobStatus(q.Get("status")),
		Limit:  limit,
		Offset: offset,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"jobs":   jobs,
		"limit":  limit,
		"offset": offset,
	})
}

// AdminDeleteJobHandler handles DELETE /api/admin/jobs/{id}: removes stored objects,
// cached results, progress and the job row.
func (s *Server) AdminDeleteJobHandler(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	ctx := r.Context()

	job, err := s.pipeline.Jobs().GetByID(ctx, id)
	if err != nil {
		writeError(w, err)
		return
	}
	if job == nil {
		http.Error(w, "Job not found", http.StatusNotFound)
		return
	}

	removed, err := s.pipeline.Store().DeletePrefix(ctx, storage.JobPrefix(id))
	if err != nil {
		writeError(w, err)
		return
	}
	if err := s.resultCache.DeleteJob(ctx, id); err != nil {
		logger.Warn("删除结果缓存失败", logger.JobID(id), logger.ErrorField(err))
	}
	if err := s.pipeline.Progress().DeleteProgress(ctx, id); err != nil {
		logger.Warn("删除任务进度失败", logger.JobID(id), logger.ErrorField(err))
	}
	if err := s.pipeline.Jobs().Delete(ctx, id); err != nil {
		writeError(w, err)
		return
	}

	logger.Info("管理员删除任务", logger.JobID(id), logger.Int("objects", removed))
	writeJSON(w, http.StatusOK, map[string]interface{}{"deleted": id, "objects": removed})
}
