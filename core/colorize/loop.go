package colorize

import (
	"context"
	"fmt"
	"os"
	"time"

	"Chroma/logger"
	"Chroma/model"
)

// FrameOptions are the per-frame model settings used for video.
func FrameOptions(renderFactor int) Options {
	return Options{
		RenderFactor: renderFactor,
		Artistic:     true,
		PostProcess:  true,
	}
}

// Loop colorizes frame sequences one frame at a time.
type Loop struct {
	colorizer Colorizer
	// OnProgress is called after every frame with (done, total).
	OnProgress func(done, total int)
}

// NewLoop creates a Loop.
func NewLoop(c Colorizer) *Loop {
	return &Loop{colorizer: c}
}

// ColorizeFrames transforms frames in order and returns a slice of the same length
// where out[i].Index == frames[i].Index.
//
// Each frame is written to tempPath before the model call; the same path is
// overwritten on every iteration and is left for the caller's work dir cleanup.
// The first failure aborts the whole sequence and no partial result is returned.
// renderFactor is passed through as is.
func (l *Loop) ColorizeFrames(ctx context.Context, frames []model.Frame, renderFactor int, tempPath string) ([]model.ColorizedFrame, error) {
	out := make([]model.ColorizedFrame, 0, len(frames))
	opts := FrameOptions(renderFactor)
	start := time.Now()

	for _, frame := range frames {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		if err := os.WriteFile(tempPath, frame.Data, 0644); err != nil {
			return nil, fmt.Errorf("frame %d: write temp image: %w", frame.Index, err)
		}

		data, err := l.colorizer.Colorize(ctx, tempPath, opts)
		if err != nil {
			logger.Error("帧上色失败，终止整个序列",
				logger.Int("frame", frame.Index),
				logger.Int("total", len(frames)),
				logger.ErrorField(err))
			return nil, fmt.Errorf("frame %d: %w", frame.Index, err)
		}

		out = append(out, model.ColorizedFrame{Index: frame.Index, Data: data})
		if l.OnProgress != nil {
			l.OnProgress(len(out), len(frames))
		}
	}

	logger.Info("帧序列上色完成",
		logger.Int("frameCount", len(out)),
		logger.Int("renderFactor", renderFactor),
		logger.Duration("elapsed", time.Since(start)))
	return out, nil
}
