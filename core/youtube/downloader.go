package youtube

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"Chroma/logger"

	"github.com/lrstanley/go-ytdlp"
)

// ErrNoStream 没有可下载的视频流
var ErrNoStream = errors.New("no suitable streams found for the provided YouTube URL")

// ErrNotYouTube is returned for URLs outside the supported hosts.
var ErrNotYouTube = errors.New("not a YouTube URL")

// bestProgressiveMP4 prefers a single muxed MP4 so audio comes along with the video.
const bestProgressiveMP4 = "best[ext=mp4]/best"

var youtubeHosts = map[string]bool{
	"youtube.com":       true,
	"www.youtube.com":   true,
	"m.youtube.com":     true,
	"music.youtube.com": true,
	"youtu.be":          true,
}

// IsYouTubeURL reports whether raw points at a YouTube host.
func IsYouTubeURL(raw string) bool {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
		return false
	}
	return youtubeHosts[strings.ToLower(u.Hostname())]
}

// Downloader fetches a video into destDir and returns the local file path.
type Downloader interface {
	Download(ctx context.Context, rawURL, destDir string) (string, error)
}

// YtdlpDownloader shells out to yt-dlp through go-ytdlp.
type YtdlpDownloader struct {
	executable string
}

// NewYtdlpDownloader creates a downloader; an empty executable uses yt-dlp from PATH.
func NewYtdlpDownloader(executable string) *YtdlpDownloader {
	return &YtdlpDownloader{executable: executable}
}

// Download saves the best progressive MP4 of rawURL as destDir/source.<ext>.
func (d *YtdlpDownloader) Download(ctx context.Context, rawURL, destDir string) (string, error) {
	if !IsYouTubeURL(rawURL) {
		return "", fmt.Errorf("%w: %s", ErrNotYouTube, rawURL)
	}
	if err := os.MkdirAll(destDir, 0755); err != nil {
		return "", fmt.Errorf("创建下载目录失败: %w", err)
	}

	cmd := ytdlp.New().
		Format(bestProgressiveMP4).
		NoPlaylist().
		MergeOutputFormat("mp4").
		Output(filepath.Join(destDir, "source.%(ext)s"))
	if d.executable != "" {
		cmd = cmd.SetExecutable(d.executable)
	}

	start := time.Now()
	logger.Info("开始下载 YouTube 视频", logger.String("url", rawURL), logger.String("dir", destDir))

	if _, err := cmd.Run(ctx, rawURL); err != nil {
		return "", fmt.Errorf("yt-dlp: %w", err)
	}

	path, err := findDownloaded(destDir)
	if err != nil {
		return "", err
	}

	logger.Info("YouTube 视频下载完成",
		logger.String("url", rawURL),
		logger.String("path", path),
		logger.Duration("elapsed", time.Since(start)))
	return path, nil
}

// findDownloaded returns the finished source.* file, ignoring partial downloads.
func findDownloaded(dir string) (string, error) {
	matches, err := filepath.Glob(filepath.Join(dir, "source.*"))
	if err != nil {
		return "", err
	}
	for _, m := range matches {
		if strings.HasSuffix(m, ".part") || strings.HasSuffix(m, ".ytdl") {
			continue
		}
		return m, nil
	}
	return "", ErrNoStream
}
