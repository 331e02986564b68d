package media

import (
	"fmt"
	"strconv"
)

// 所有 ffmpeg / ffprobe 参数都在这里拼装，方便单测

const (
	framePattern     = "frame_%06d.jpg"
	colorizedPattern = "colorized_%06d"
)

func probeArgs(input string) []string {
	return []string{
		"-v", "error",
		"-show_entries", "format=duration:stream=codec_type,codec_name,width,height,r_frame_rate",
		"-of", "json",
		input,
	}
}

// extractFramesArgs decodes every frame of the first video stream to numbered JPEGs.
// -vsync 0 keeps one output image per decoded frame.
func extractFramesArgs(videoPath, outPattern string) []string {
	return []string{
		"-hide_banner",
		"-y",
		"-i", videoPath,
		"-map", "0:v:0",
		"-vsync", "0",
		"-q:v", "2",
		outPattern,
	}
}

func extractAudioArgs(videoPath, outPath string) []string {
	return []string{
		"-hide_banner",
		"-y",
		"-i", videoPath,
		"-vn",
		"-map", "0:a:0",
		"-acodec", "pcm_s16le",
		outPath,
	}
}

// remuxArgs encodes an image sequence at a fixed rate and, when audioPath is set,
// attaches it as AAC. No -shortest: audio and video lengths are not reconciled.
func remuxArgs(inPattern string, fps int, audioPath, outPath string) []string {
	args := []string{
		"-hide_banner",
		"-y",
		"-framerate", strconv.Itoa(fps),
		"-i", inPattern,
	}
	if audioPath != "" {
		args = append(args, "-i", audioPath)
	}

	args = append(args,
		"-map", "0:v:0",
		// libx264 + yuv420p 要求宽高为偶数
		"-vf", "scale=trunc(iw/2)*2:trunc(ih/2)*2",
		"-c:v", "libx264",
		"-pix_fmt", "yuv420p",
		"-r", strconv.Itoa(fps),
	)
	if audioPath != "" {
		args = append(args, "-map", "1:a:0", "-c:a", "aac")
	}
	args = append(args, "-movflags", "+faststart", outPath)
	return args
}

// normalizeAudioArgs converts to mono 44.1kHz WAV; seconds <= 0 keeps the full length.
func normalizeAudioArgs(in, out string, seconds float64) []string {
	args := []string{"-hide_banner", "-y", "-i", in}
	if seconds > 0 {
		args = append(args, "-t", formatSeconds(seconds))
	}
	return append(args, "-ac", "1", "-ar", "44100", "-acodec", "pcm_s16le", out)
}

func spectrogramArgs(in, outPNG string, seconds float64) []string {
	args := []string{"-hide_banner", "-y"}
	if seconds > 0 {
		args = append(args, "-t", formatSeconds(seconds))
	}
	return append(args,
		"-i", in,
		"-lavfi", "showspectrumpic=s=1200x400:mode=combined:scale=log:legend=1",
		"-frames:v", "1",
		outPNG,
	)
}

func formatSeconds(s float64) string {
	return fmt.Sprintf("%.3f", s)
}
