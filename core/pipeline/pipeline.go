package pipeline

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"time"

	"Chroma/cache"
	"Chroma/core/colorize"
	"Chroma/core/media"
	"Chroma/core/restore"
	"Chroma/core/youtube"
	"Chroma/logger"
	"Chroma/metrics"
	"Chroma/model"
	"Chroma/repository"
	"Chroma/storage"

	"github.com/google/uuid"
)

// 结果文件名
const (
	ImageResultName = "colorized_image.jpg"
	VideoResultName = "colorized_video_with_audio.mp4"

	// AudioPreviewSeconds 频谱图只画前 10 秒
	AudioPreviewSeconds = 10
)

// 阶段名，同时用作进度和指标的 label
const (
	StageAcquire     = "acquire"
	StageDownload    = "download"
	StageExtract     = "extract"
	StageColorize    = "colorize"
	StageRemux       = "remux"
	StageRestore     = "restore"
	StageSpectrogram = "spectrogram"
	StageDeliver     = "deliver"
	StageDone        = "done"
)

// MediaProcessor is the ffmpeg side of the pipeline.
type MediaProcessor interface {
	Probe(ctx context.Context, path string) (*media.ProbeInfo, error)
	ExtractFrames(ctx context.Context, videoPath, framesDir string, onFrame func(n int)) ([]model.Frame, error)
	ExtractAudio(ctx context.Context, videoPath, outPath string) (model.AudioTrack, error)
	Remux(ctx context.Context, frames []model.ColorizedFrame, audio model.AudioTrack, workDir, outPath string) error
	NormalizeAudio(ctx context.Context, in, out string, seconds float64) error
	Spectrogram(ctx context.Context, in, outPNG string, seconds float64) error
}

// StageError records which stage a job failed in.
type StageError struct {
	Stage string
	Err   error
}

func (e *StageError) Error() string {
	return e.Stage + ": " + e.Err.Error()
}

func (e *StageError) Unwrap() error {
	return e.Err
}

// Upstream reports whether the failure came from an external model or download.
func (e *StageError) Upstream() bool {
	switch e.Stage {
	case StageDownload, StageColorize, StageRestore:
		return true
	}
	return false
}

// Result lists the stored objects of a finished job by name.
type Result struct {
	Job      *model.Job
	Original string
	Output   string
	Extra    map[string]string
}

// Pipeline runs one job per user action, synchronously, in a work directory of its own.
type Pipeline struct {
	media      MediaProcessor
	colorizer  colorize.Colorizer
	restorer   restore.Restorer
	downloader youtube.Downloader
	store      storage.ResultStore
	jobs       repository.JobRepository
	progress   cache.ProgressStore
	tempDir    string

	// 本进程正在执行的任务，工作目录不能被清理
	mu      sync.Mutex
	running map[string]struct{}
}

// Deps 构造 Pipeline 所需的依赖
type Deps struct {
	Media      MediaProcessor
	Colorizer  colorize.Colorizer
	Restorer   restore.Restorer
	Downloader youtube.Downloader
	Store      storage.ResultStore
	Jobs       repository.JobRepository
	Progress   cache.ProgressStore
	TempDir    string
}

func New(d Deps) *Pipeline {
	if d.Jobs == nil {
		d.Jobs = repository.NewMemoryJobRepository()
	}
	if d.Progress == nil {
		d.Progress = cache.NewMemoryProgressCache()
	}
	if d.TempDir == "" {
		d.TempDir = os.TempDir()
	}
	return &Pipeline{
		media:      d.Media,
		colorizer:  d.Colorizer,
		restorer:   d.Restorer,
		downloader: d.Downloader,
		store:      d.Store,
		jobs:       d.Jobs,
		progress:   d.Progress,
		tempDir:    d.TempDir,
		running:    make(map[string]struct{}),
	}
}

// Running reports whether this process is still executing the job.
func (p *Pipeline) Running(id string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	_, ok := p.running[id]
	return ok
}

func (p *Pipeline) setRunning(id string, on bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if on {
		p.running[id] = struct{}{}
	} else {
		delete(p.running, id)
	}
}

// Jobs exposes the job repository for the read side of the API.
func (p *Pipeline) Jobs() repository.JobRepository {
	return p.jobs
}

// Progress exposes the progress store.
func (p *Pipeline) Progress() cache.ProgressStore {
	return p.progress
}

// Store exposes the result store.
func (p *Pipeline) Store() storage.ResultStore {
	return p.store
}

// ErrInvalidJobID 客户端传入的任务 ID 不是 uuid
var ErrInvalidJobID = errors.New("invalid job id")

// NewJobID validates a client supplied id or generates a new one.
func NewJobID(requested string) (string, error) {
	if requested == "" {
		return uuid.NewString(), nil
	}
	id, err := uuid.Parse(requested)
	if err != nil {
		return "", fmt.Errorf("%w %q: %v", ErrInvalidJobID, requested, err)
	}
	return id.String(), nil
}

// begin 创建任务记录和工作目录
func (p *Pipeline) begin(ctx context.Context, id string, kind model.JobKind, sourceName string, renderFactor int) (*model.Job, string, error) {
	id, err := NewJobID(id)
	if err != nil {
		return nil, "", err
	}

	job := &model.Job{
		ID:           id,
		Kind:         kind,
		Status:       model.JobStatusProcessing,
		SourceName:   sourceName,
		RenderFactor: renderFactor,
	}
	if err := p.jobs.Create(ctx, job); err != nil {
		return nil, "", fmt.Errorf("create job: %w", err)
	}

	p.setRunning(id, true)
	workDir := filepath.Join(p.tempDir, id)
	if err := os.MkdirAll(workDir, 0755); err != nil {
		p.setRunning(id, false)
		p.fail(ctx, job, fmt.Errorf("create workdir: %w", err))
		return nil, "", fmt.Errorf("create workdir: %w", err)
	}

	metrics.ActiveJobs.Inc()
	logger.Info("任务开始",
		logger.JobID(id),
		logger.String("kind", string(kind)),
		logger.String("source", sourceName),
		logger.Int("renderFactor", renderFactor))
	return job, workDir, nil
}

// end 清理工作目录并落库最终状态
func (p *Pipeline) end(ctx context.Context, job *model.Job, workDir string, started time.Time, err error) {
	metrics.ActiveJobs.Dec()
	if rmErr := os.RemoveAll(workDir); rmErr != nil {
		logger.Warn("删除工作目录失败", logger.JobID(job.ID), logger.String("dir", workDir), logger.ErrorField(rmErr))
	}
	p.setRunning(job.ID, false)
	metrics.StageDuration.WithLabelValues("total").Observe(time.Since(started).Seconds())

	if err != nil {
		p.fail(ctx, job, err)
		return
	}

	ctx = context.WithoutCancel(ctx)
	job.Status = model.JobStatusCompleted
	if uErr := p.jobs.Update(ctx, job); uErr != nil {
		logger.Error("更新任务状态失败", logger.JobID(job.ID), logger.ErrorField(uErr))
	}
	p.report(ctx, job.ID, model.Progress{Stage: StageDone, Status: model.JobStatusCompleted})
	metrics.JobsTotal.WithLabelValues(string(job.Kind), string(model.JobStatusCompleted)).Inc()

	logger.Info("任务完成",
		logger.JobID(job.ID),
		logger.String("kind", string(job.Kind)),
		logger.Int("frameCount", job.FrameCount),
		logger.Duration("elapsed", time.Since(started)))
}

func (p *Pipeline) fail(ctx context.Context, job *model.Job, err error) {
	ctx = context.WithoutCancel(ctx)
	job.Status = model.JobStatusFailed
	job.ErrorMessage = err.Error()
	// 整行落库，保留抽帧阶段已经得到的帧数和时长
	if uErr := p.jobs.Update(ctx, job); uErr != nil {
		logger.Error("更新任务状态失败", logger.JobID(job.ID), logger.ErrorField(uErr))
	}
	p.report(ctx, job.ID, model.Progress{Stage: StageDone, Status: model.JobStatusFailed, Message: job.ErrorMessage})
	metrics.JobsTotal.WithLabelValues(string(job.Kind), string(model.JobStatusFailed)).Inc()
	logger.Error("任务失败", logger.JobID(job.ID), logger.String("kind", string(job.Kind)), logger.ErrorField(err))
}

// stage 执行一个阶段并记录耗时
func (p *Pipeline) stage(ctx context.Context, job *model.Job, name string, fn func() error) error {
	start := time.Now()
	logger.Debug("阶段开始", logger.JobID(job.ID), logger.String("stage", name))
	p.report(ctx, job.ID, model.Progress{Stage: name})

	err := fn()
	metrics.StageDuration.WithLabelValues(name).Observe(time.Since(start).Seconds())
	if err != nil {
		return &StageError{Stage: name, Err: err}
	}

	logger.Info("阶段完成",
		logger.JobID(job.ID),
		logger.String("stage", name),
		logger.Duration("elapsed", time.Since(start)))
	return nil
}

// report 写入进度，失败只记日志
func (p *Pipeline) report(ctx context.Context, jobID string, pr model.Progress) {
	pr.JobID = jobID
	if pr.Status == "" {
		pr.Status = model.JobStatusProcessing
	}
	pr.UpdatedAt = time.Now()
	if err := p.progress.SetProgress(ctx, pr); err != nil {
		logger.Debug("写入进度失败", logger.JobID(jobID), logger.ErrorField(err))
	}
}

// deliver 把工作目录中的文件上传到结果存储
func (p *Pipeline) deliver(ctx context.Context, jobID, name, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open %s: %w", name, err)
	}
	defer f.Close()

	st, err := f.Stat()
	if err != nil {
		return err
	}

	contentType := storage.ContentTypeFor(name)
	head := make([]byte, 512)
	if n, _ := f.Read(head); n > 0 {
		if detected := http.DetectContentType(head[:n]); detected != "application/octet-stream" {
			contentType = detected
		}
	}
	if _, err := f.Seek(0, 0); err != nil {
		return err
	}

	if err := p.store.Put(ctx, storage.ResultKey(jobID, name), f, st.Size(), contentType); err != nil {
		return fmt.Errorf("store %s: %w", name, err)
	}
	return nil
}

// IsUpstream 判断错误是否来自外部模型或下载
func IsUpstream(err error) bool {
	var se *StageError
	return errors.As(err, &se) && se.Upstream()
}

func resultKey(jobID, name string) string {
	return storage.ResultKey(jobID, name)
}
