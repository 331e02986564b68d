package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"Chroma/core/colorize"
	"Chroma/core/media"
	"Chroma/core/restore"
	"Chroma/core/utils"
	"Chroma/logger"
	"Chroma/metrics"
	"Chroma/model"
)

// ImageRequest 图片上色请求
type ImageRequest struct {
	JobID        string
	SourceName   string
	Body         io.Reader
	RenderFactor int
}

// VideoRequest 视频上色请求
type VideoRequest struct {
	JobID        string
	SourceName   string
	Body         io.Reader
	RenderFactor int
}

// YouTubeRequest YouTube 视频上色请求
type YouTubeRequest struct {
	JobID        string
	URL          string
	RenderFactor int
}

// AudioRequest 音频修复请求
type AudioRequest struct {
	JobID      string
	SourceName string
	Body       io.Reader
	Mode       restore.Mode
}

// ColorizeImage colorizes a single still with the watermark on.
func (p *Pipeline) ColorizeImage(ctx context.Context, req ImageRequest) (res *Result, err error) {
	job, workDir, err := p.begin(ctx, req.JobID, model.JobKindImage, req.SourceName, req.RenderFactor)
	if err != nil {
		return nil, err
	}
	started := time.Now()
	defer func() { p.end(ctx, job, workDir, started, err) }()

	originalName := "original" + imageExt(req.SourceName)
	originalPath := filepath.Join(workDir, originalName)
	if err = p.stage(ctx, job, StageAcquire, func() error {
		_, err := utils.SaveFile(req.Body, originalPath)
		return err
	}); err != nil {
		return nil, err
	}

	resultPath := filepath.Join(workDir, ImageResultName)
	if err = p.stage(ctx, job, StageColorize, func() error {
		data, err := p.colorizer.Colorize(ctx, originalPath, colorize.Options{
			RenderFactor: req.RenderFactor,
			Artistic:     true,
			PostProcess:  true,
			Watermarked:  true,
		})
		if err != nil {
			return err
		}
		return os.WriteFile(resultPath, data, 0644)
	}); err != nil {
		return nil, err
	}

	if err = p.stage(ctx, job, StageDeliver, func() error {
		if err := p.deliver(ctx, job.ID, originalName, originalPath); err != nil {
			return err
		}
		return p.deliver(ctx, job.ID, ImageResultName, resultPath)
	}); err != nil {
		return nil, err
	}

	job.ResultKey = resultKey(job.ID, ImageResultName)
	return &Result{Job: job, Original: originalName, Output: ImageResultName}, nil
}

// ColorizeVideo runs the full frame pipeline over an uploaded MP4.
func (p *Pipeline) ColorizeVideo(ctx context.Context, req VideoRequest) (res *Result, err error) {
	job, workDir, err := p.begin(ctx, req.JobID, model.JobKindVideo, req.SourceName, req.RenderFactor)
	if err != nil {
		return nil, err
	}
	started := time.Now()
	defer func() { p.end(ctx, job, workDir, started, err) }()

	sourcePath := filepath.Join(workDir, "original.mp4")
	if err = p.stage(ctx, job, StageAcquire, func() error {
		_, err := utils.SaveFile(req.Body, sourcePath)
		return err
	}); err != nil {
		return nil, err
	}

	return p.colorizeVideoFile(ctx, job, workDir, sourcePath, req.RenderFactor)
}

// ColorizeYouTube downloads the video first, then behaves like ColorizeVideo.
func (p *Pipeline) ColorizeYouTube(ctx context.Context, req YouTubeRequest) (res *Result, err error) {
	job, workDir, err := p.begin(ctx, req.JobID, model.JobKindYoutube, req.URL, req.RenderFactor)
	if err != nil {
		return nil, err
	}
	started := time.Now()
	defer func() { p.end(ctx, job, workDir, started, err) }()

	var sourcePath string
	if err = p.stage(ctx, job, StageDownload, func() error {
		path, err := p.downloader.Download(ctx, req.URL, filepath.Join(workDir, "download"))
		sourcePath = path
		return err
	}); err != nil {
		return nil, err
	}

	return p.colorizeVideoFile(ctx, job, workDir, sourcePath, req.RenderFactor)
}

func (p *Pipeline) colorizeVideoFile(ctx context.Context, job *model.Job, workDir, sourcePath string, renderFactor int) (*Result, error) {
	var (
		frames []model.Frame
		audio  model.AudioTrack
	)
	if err := p.stage(ctx, job, StageExtract, func() error {
		var err error
		frames, err = p.media.ExtractFrames(ctx, sourcePath, filepath.Join(workDir, "frames"), func(n int) {
			p.report(ctx, job.ID, model.Progress{Stage: StageExtract, Current: n})
		})
		if err != nil {
			return err
		}

		audio, err = p.media.ExtractAudio(ctx, sourcePath, filepath.Join(workDir, "audio.wav"))
		if errors.Is(err, media.ErrNoAudio) {
			logger.Warn("源视频没有音轨，输出将只有画面", logger.JobID(job.ID))
			audio, err = model.AudioTrack{}, nil
		}
		return err
	}); err != nil {
		return nil, err
	}
	job.FrameCount = len(frames)
	job.Duration = audio.Duration

	var colorized []model.ColorizedFrame
	if err := p.stage(ctx, job, StageColorize, func() error {
		loop := colorize.NewLoop(p.colorizer)
		loop.OnProgress = func(done, total int) {
			p.report(ctx, job.ID, model.Progress{Stage: StageColorize, Current: done, Total: total})
		}
		var err error
		colorized, err = loop.ColorizeFrames(ctx, frames, renderFactor, filepath.Join(workDir, "temp_image.jpg"))
		return err
	}); err != nil {
		return nil, err
	}
	frames = nil
	metrics.FramesColorizedTotal.Add(float64(len(colorized)))

	outPath := filepath.Join(workDir, VideoResultName)
	if err := p.stage(ctx, job, StageRemux, func() error {
		return p.media.Remux(ctx, colorized, audio, workDir, outPath)
	}); err != nil {
		return nil, err
	}

	originalName := "original" + videoExt(sourcePath)
	if err := p.stage(ctx, job, StageDeliver, func() error {
		if err := p.deliver(ctx, job.ID, originalName, sourcePath); err != nil {
			return err
		}
		return p.deliver(ctx, job.ID, VideoResultName, outPath)
	}); err != nil {
		return nil, err
	}

	job.ResultKey = resultKey(job.ID, VideoResultName)
	return &Result{Job: job, Original: originalName, Output: VideoResultName}, nil
}

// EnhanceAudio restores a WAV recording and renders spectrograms of the first seconds
// of both the input and the output.
func (p *Pipeline) EnhanceAudio(ctx context.Context, req AudioRequest) (res *Result, err error) {
	job, workDir, err := p.begin(ctx, req.JobID, model.JobKindAudio, req.SourceName, 0)
	if err != nil {
		return nil, err
	}
	started := time.Now()
	defer func() { p.end(ctx, job, workDir, started, err) }()

	const originalName = "original.wav"
	originalPath := filepath.Join(workDir, originalName)
	if err = p.stage(ctx, job, StageAcquire, func() error {
		if _, err := utils.SaveFile(req.Body, originalPath); err != nil {
			return err
		}
		info, err := p.media.Probe(ctx, originalPath)
		if err != nil {
			return fmt.Errorf("probe audio: %w", err)
		}
		job.Duration = info.Duration
		return nil
	}); err != nil {
		return nil, err
	}

	outputName := RestoredName(req.SourceName)
	outputPath := filepath.Join(workDir, outputName)
	if err = p.stage(ctx, job, StageRestore, func() error {
		return p.restorer.Restore(ctx, originalPath, outputPath, req.Mode)
	}); err != nil {
		return nil, err
	}

	extra := map[string]string{
		"originalSpectrogram": "original_spectrogram.png",
		"restoredSpectrogram": "restored_spectrogram.png",
	}
	if err = p.stage(ctx, job, StageSpectrogram, func() error {
		if err := p.spectrogram(ctx, workDir, originalPath, extra["originalSpectrogram"]); err != nil {
			return err
		}
		return p.spectrogram(ctx, workDir, outputPath, extra["restoredSpectrogram"])
	}); err != nil {
		return nil, err
	}

	if err = p.stage(ctx, job, StageDeliver, func() error {
		for _, f := range []string{originalName, outputName, extra["originalSpectrogram"], extra["restoredSpectrogram"]} {
			if err := p.deliver(ctx, job.ID, f, filepath.Join(workDir, f)); err != nil {
				return err
			}
		}
		return nil
	}); err != nil {
		return nil, err
	}

	job.ResultKey = resultKey(job.ID, outputName)
	return &Result{Job: job, Original: originalName, Output: outputName, Extra: extra}, nil
}

// spectrogram 先转成单声道 44.1k 的前 10 秒，再画频谱图
func (p *Pipeline) spectrogram(ctx context.Context, workDir, in, outName string) error {
	preview := filepath.Join(workDir, utils.Stem(outName)+"_preview.wav")
	if err := p.media.NormalizeAudio(ctx, in, preview, AudioPreviewSeconds); err != nil {
		return err
	}
	return p.media.Spectrogram(ctx, preview, filepath.Join(workDir, outName), 0)
}

// RestoredName 输出文件名为 <stem>_restored.wav
func RestoredName(sourceName string) string {
	stem := utils.Stem(utils.SanitizeName(sourceName))
	if stem == "" || stem == "upload" {
		stem = "audio"
	}
	return fmt.Sprintf("%s_restored.wav", stem)
}

func imageExt(name string) string {
	switch ext := utils.Ext(name); ext {
	case ".png", ".jpeg":
		return ext
	default:
		return ".jpg"
	}
}

func videoExt(path string) string {
	if ext := utils.Ext(path); ext != "" {
		return ext
	}
	return ".mp4"
}
