package media

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"Chroma/logger"
	"Chroma/model"

	"github.com/fsnotify/fsnotify"
)

var (
	// ErrNoAudio is returned by ExtractAudio when the container has no audio stream.
	ErrNoAudio = errors.New("no audio stream in input")
	// ErrNoFrames 解码或 remux 时一帧都没有
	ErrNoFrames = errors.New("no frames")
)

// FFmpegProcessor wraps the ffmpeg and ffprobe binaries.
type FFmpegProcessor struct {
	ffmpegPath  string
	ffprobePath string
	outputFPS   int
}

// NewFFmpegProcessor creates a new FFmpegProcessor. outputFPS is the fixed rate used by Remux.
func NewFFmpegProcessor(ffmpegPath, ffprobePath string, outputFPS int) *FFmpegProcessor {
	if outputFPS <= 0 {
		outputFPS = 24
	}
	return &FFmpegProcessor{
		ffmpegPath:  ffmpegPath,
		ffprobePath: ffprobePath,
		outputFPS:   outputFPS,
	}
}

// OutputFPS returns the fixed frame rate of remuxed videos.
func (p *FFmpegProcessor) OutputFPS() int {
	return p.outputFPS
}

func (p *FFmpegProcessor) run(ctx context.Context, bin string, args []string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, bin, args...)
	var out bytes.Buffer
	var stderr bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &stderr

	logger.Debug("执行命令", logger.String("bin", bin), logger.String("args", strings.Join(args, " ")))

	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("%s failed: %w\n%s", filepath.Base(bin), err, strings.TrimSpace(stderr.String()))
	}
	return out.Bytes(), nil
}

// Probe uses ffprobe to read duration, dimensions, frame rate and audio presence.
func (p *FFmpegProcessor) Probe(ctx context.Context, path string) (*ProbeInfo, error) {
	out, err := p.run(ctx, p.ffprobePath, probeArgs(path))
	if err != nil {
		return nil, fmt.Errorf("probe %s: %w", path, err)
	}
	info, err := parseProbe(out)
	if err != nil {
		return nil, fmt.Errorf("probe %s: %w", path, err)
	}
	return info, nil
}

// ExtractFrames decodes videoPath into framesDir and returns the frames in temporal order.
// onFrame, if set, is called with the running count while ffmpeg writes files.
func (p *FFmpegProcessor) ExtractFrames(ctx context.Context, videoPath, framesDir string, onFrame func(n int)) ([]model.Frame, error) {
	if _, err := os.Stat(videoPath); err != nil {
		return nil, fmt.Errorf("video file does not exist at path '%s': %w", videoPath, err)
	}
	if err := os.MkdirAll(framesDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create frame directory '%s': %w", framesDir, err)
	}

	var stopWatch func()
	if onFrame != nil {
		stop, err := watchFrames(framesDir, onFrame)
		if err != nil {
			// 进度只是辅助信息，监听失败不影响抽帧
			logger.Warn("创建抽帧监听失败", logger.String("dir", framesDir), logger.ErrorField(err))
		} else {
			stopWatch = stop
		}
	}

	start := time.Now()
	_, runErr := p.run(ctx, p.ffmpegPath, extractFramesArgs(videoPath, filepath.Join(framesDir, framePattern)))
	if stopWatch != nil {
		stopWatch()
	}
	if runErr != nil {
		return nil, fmt.Errorf("extract frames: %w", runErr)
	}

	frames, err := readFrames(framesDir)
	if err != nil {
		return nil, err
	}
	if onFrame != nil {
		onFrame(len(frames))
	}

	logger.Info("抽帧完成",
		logger.String("video", videoPath),
		logger.Int("frameCount", len(frames)),
		logger.Duration("elapsed", time.Since(start)))
	return frames, nil
}

// readFrames loads frame_*.jpg in lexical (= temporal) order.
func readFrames(dir string) ([]model.Frame, error) {
	paths, err := filepath.Glob(filepath.Join(dir, "frame_*.jpg"))
	if err != nil {
		return nil, fmt.Errorf("glob frames: %w", err)
	}
	if len(paths) == 0 {
		return nil, fmt.Errorf("extract frames from %s: %w", dir, ErrNoFrames)
	}
	sort.Strings(paths)

	frames := make([]model.Frame, 0, len(paths))
	for i, path := range paths {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read frame %s: %w", path, err)
		}
		frames = append(frames, model.Frame{Index: i, Data: data})
	}
	return frames, nil
}

// watchFrames 监听抽帧目录，每出现一个新的 jpg 就回调一次计数
func watchFrames(dir string, onFrame func(n int)) (func(), error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := watcher.Add(dir); err != nil {
		watcher.Close()
		return nil, err
	}

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		count := 0
		for {
			select {
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if event.Op&fsnotify.Create == fsnotify.Create && strings.HasSuffix(event.Name, ".jpg") {
					count++
					onFrame(count)
				}
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				logger.Warn("抽帧监听错误", logger.ErrorField(err))
			}
		}
	}()

	return func() {
		watcher.Close()
		wg.Wait()
	}, nil
}

// ExtractAudio writes the first audio stream of videoPath to outPath as PCM WAV.
// It returns ErrNoAudio when there is nothing to extract.
func (p *FFmpegProcessor) ExtractAudio(ctx context.Context, videoPath, outPath string) (model.AudioTrack, error) {
	info, err := p.Probe(ctx, videoPath)
	if err != nil {
		return model.AudioTrack{}, err
	}
	if !info.HasAudio {
		return model.AudioTrack{}, ErrNoAudio
	}

	if _, err := p.run(ctx, p.ffmpegPath, extractAudioArgs(videoPath, outPath)); err != nil {
		return model.AudioTrack{}, fmt.Errorf("extract audio: %w", err)
	}

	return model.AudioTrack{Path: outPath, Duration: info.Duration}, nil
}

// Remux writes frames as an image sequence in workDir and encodes them at the fixed
// output rate, attaching audio when present. Frame N of the output is frames[N].
func (p *FFmpegProcessor) Remux(ctx context.Context, frames []model.ColorizedFrame, audio model.AudioTrack, workDir, outPath string) error {
	if len(frames) == 0 {
		return fmt.Errorf("remux: %w", ErrNoFrames)
	}

	seqDir := filepath.Join(workDir, "colorized")
	if err := os.MkdirAll(seqDir, 0755); err != nil {
		return fmt.Errorf("failed to create sequence directory %s: %w", seqDir, err)
	}

	// 模型可能返回 PNG 也可能返回 JPEG，image2 按扩展名选解码器
	ext := imageExt(frames[0].Data)
	pattern := filepath.Join(seqDir, colorizedPattern+ext)
	for i, f := range frames {
		path := filepath.Join(seqDir, fmt.Sprintf(colorizedPattern, i)+ext)
		if err := os.WriteFile(path, f.Data, 0644); err != nil {
			return fmt.Errorf("write colorized frame %d: %w", f.Index, err)
		}
	}

	if err := os.MkdirAll(filepath.Dir(outPath), 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	start := time.Now()
	if _, err := p.run(ctx, p.ffmpegPath, remuxArgs(pattern, p.outputFPS, audio.Path, outPath)); err != nil {
		return fmt.Errorf("remux: %w", err)
	}

	logger.Info("Remux 完成",
		logger.String("output", outPath),
		logger.Int("frameCount", len(frames)),
		logger.Int("fps", p.outputFPS),
		logger.Bool("withAudio", !audio.Empty()),
		logger.Duration("elapsed", time.Since(start)))
	return nil
}

// NormalizeAudio converts in to mono 44.1kHz WAV, truncated to seconds when seconds > 0.
func (p *FFmpegProcessor) NormalizeAudio(ctx context.Context, in, out string, seconds float64) error {
	if _, err := p.run(ctx, p.ffmpegPath, normalizeAudioArgs(in, out, seconds)); err != nil {
		return fmt.Errorf("normalize audio: %w", err)
	}
	return nil
}

// Spectrogram renders a spectrum picture of the first seconds of in.
func (p *FFmpegProcessor) Spectrogram(ctx context.Context, in, outPNG string, seconds float64) error {
	if _, err := p.run(ctx, p.ffmpegPath, spectrogramArgs(in, outPNG, seconds)); err != nil {
		return fmt.Errorf("spectrogram: %w", err)
	}
	return nil
}

func imageExt(data []byte) string {
	switch http.DetectContentType(data) {
	case "image/png":
		return ".png"
	default:
		return ".jpg"
	}
}
