package cmd

import (
	"context"
	"fmt"

	"Chroma/cache"
	"Chroma/config"
	"Chroma/core/colorize"
	"Chroma/core/media"
	"Chroma/core/pipeline"
	"Chroma/core/restore"
	"Chroma/core/youtube"
	"Chroma/db"
	"Chroma/logger"
	"Chroma/model"
	"Chroma/repository"
	"Chroma/storage"
)

// app 组装好的运行时依赖
type app struct {
	cfg         *config.Config
	pipeline    *pipeline.Pipeline
	resultCache *cache.ResultCache
	closers     []func() error
}

func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			logger.Warn("关闭资源失败", logger.ErrorField(err))
		}
	}
	logger.Sync()
}

// loadConfig 加载配置并初始化日志
func loadConfig() *config.Config {
	cfg := config.Load()
	logger.InitLogger(logger.Config{
		Level:      cfg.LogLevel,
		OutputPath: cfg.LogFile,
		MaxSize:    cfg.LogMaxSize,
		MaxBackups: cfg.LogMaxBackups,
		MaxAge:     cfg.LogMaxAge,
		Compress:   true,
	})
	return cfg
}

// newApp connects the configured backends. Redis and MySQL are optional and fall back
// to in-memory implementations when disabled.
func newApp(ctx context.Context, cfg *config.Config) (*app, error) {
	a := &app{cfg: cfg}

	store, err := storage.New(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("初始化结果存储失败: %w", err)
	}
	logger.Info("结果存储已就绪", logger.String("backend", cfg.StorageBackend))

	var progress cache.ProgressStore = cache.NewMemoryProgressCache()
	if cfg.RedisEnabled {
		if err := cache.ConnectRedis(cfg); err != nil {
			return nil, err
		}
		a.closers = append(a.closers, cache.CloseRedis)
		progress = cache.NewRedisProgressCache(cache.RedisClient)
		a.resultCache = cache.NewResultCache(cache.RedisClient)
		logger.Info("Redis 连接成功", logger.String("host", cfg.RedisHost))
	}

	jobs := repository.NewMemoryJobRepository()
	if cfg.DBEnabled {
		if err := db.ConnectGormDB(cfg); err != nil {
			a.Close()
			return nil, err
		}
		a.closers = append(a.closers, db.CloseGormDB)
		if err := db.AutoMigrateModels(&model.Job{}); err != nil {
			a.Close()
			return nil, err
		}
		jobs = repository.NewGormJobRepository(db.GormDB)
	}

	a.pipeline = pipeline.New(pipeline.Deps{
		Media:      media.NewFFmpegProcessor(cfg.FFmpegPath, cfg.FFprobePath, cfg.OutputFPS),
		Colorizer:  colorize.NewHTTPColorizer(cfg.ColorizerURL, cfg.ModelDevice, cfg.ColorizerTimeout),
		Restorer:   restore.NewHTTPRestorer(cfg.RestorerURL, false, cfg.RestorerTimeout),
		Downloader: youtube.NewYtdlpDownloader(cfg.YtdlpPath),
		Store:      store,
		Jobs:       jobs,
		Progress:   progress,
		TempDir:    cfg.TempDir,
	})
	return a, nil
}
