package server

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"Chroma/cache"
	"Chroma/config"
	"Chroma/core/auth"
	"Chroma/core/pipeline"
	"Chroma/logger"

	"github.com/go-playground/validator/v10"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Server 处理所有 HTTP 请求
type Server struct {
	cfg         *config.Config
	pipeline    *pipeline.Pipeline
	tokens      *auth.DownloadTokens
	resultCache *cache.ResultCache
	validate    *validator.Validate
	router      *mux.Router
}

// New 创建 Server 并注册路由，resultCache 可以为空
func New(cfg *config.Config, p *pipeline.Pipeline, resultCache *cache.ResultCache) *Server {
	s := &Server{
		cfg:         cfg,
		pipeline:    p,
		tokens:      auth.NewDownloadTokens(cfg.JWTSecret, cfg.DownloadTokenTTL),
		resultCache: resultCache,
		validate:    validator.New(),
		router:      mux.NewRouter(),
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	router := s.router

	// 添加 CORS 中间件
	router.Use(corsMiddleware)

	// 上色和音频修复
	router.HandleFunc("/api/image/colorize", s.ColorizeImageHandler).Methods(http.MethodPost)
	router.HandleFunc("/api/video/colorize", s.ColorizeVideoHandler).Methods(http.MethodPost)
	router.HandleFunc("/api/youtube/colorize", s.ColorizeYouTubeHandler).Methods(http.MethodPost)
	router.HandleFunc("/api/audio/enhance", s.EnhanceAudioHandler).Methods(http.MethodPost)

	// 结果下载
	router.HandleFunc("/api/results/{jobId}/{name}", s.ResultHandler).Methods(http.MethodGet, http.MethodHead)

	// 任务进度
	router.HandleFunc("/api/jobs/{id}", s.JobHandler).Methods(http.MethodGet)
	router.HandleFunc("/ws/jobs/{id}", s.JobProgressWebSocketHandler)

	// 管理接口
	router.HandleFunc("/api/admin/jobs", s.adminOnly(s.AdminListJobsHandler)).Methods(http.MethodGet)
	router.HandleFunc("/api/admin/jobs/{id}", s.adminOnly(s.AdminDeleteJobHandler)).Methods(http.MethodDelete)

	router.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}).Methods(http.MethodGet)
	router.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)

	// Frontend UI serving
	router.PathPrefix("/").Handler(http.FileServer(http.Dir(s.cfg.WebAppDir)))
}

// ServeHTTP 实现 http.Handler 接口
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS, HEAD")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, Range")
		w.Header().Set("Access-Control-Expose-Headers", "Content-Length, Content-Range, Content-Disposition")
		w.Header().Set("Access-Control-Max-Age", "86400")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// Run starts listening and blocks until SIGINT/SIGTERM or ctx is done.
func (s *Server) Run(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 上色是同步的，写超时不能太短
	server := &http.Server{
		Addr:              s.cfg.HTTPAddr,
		Handler:           s,
		ReadHeaderTimeout: 30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	go s.runJanitor(ctx)

	errCh := make(chan error, 1)
	go func() {
		logger.Info("服务器启动",
			logger.String("addr", s.cfg.HTTPAddr),
			logger.String("ui", s.cfg.WebAppDir))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("正在关闭服务器...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return err
	}
	logger.Info("服务器已停止")
	return nil
}
