package restore

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// Mode 选择修复模型的工作模式，0 最保守
type Mode int

const (
	ModeDefault Mode = 0
	ModeStrong  Mode = 1
	ModeTrain   Mode = 2
)

// ParseMode reads a form value; anything outside 0..2 falls back to ModeDefault.
func ParseMode(raw string) Mode {
	v, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil || v < int(ModeDefault) || v > int(ModeTrain) {
		return ModeDefault
	}
	return Mode(v)
}

// Restorer denoises a WAV file and writes the restored audio to outPath.
type Restorer interface {
	Restore(ctx context.Context, inPath, outPath string, mode Mode) error
}

// HTTPRestorer calls a speech-restoration inference server.
type HTTPRestorer struct {
	baseURL    string
	cuda       bool
	httpClient *http.Client
}

// NewHTTPRestorer creates a client; timeout 0 means none.
func NewHTTPRestorer(baseURL string, cuda bool, timeout time.Duration) *HTTPRestorer {
	return &HTTPRestorer{
		baseURL:    strings.TrimRight(baseURL, "/"),
		cuda:       cuda,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// Restore posts inPath to {baseURL}/restore and stores the WAV response at outPath.
func (c *HTTPRestorer) Restore(ctx context.Context, inPath, outPath string, mode Mode) error {
	f, err := os.Open(inPath)
	if err != nil {
		return fmt.Errorf("open audio %s: %w", inPath, err)
	}
	defer f.Close()

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	part, err := w.CreateFormFile("audio", filepath.Base(inPath))
	if err != nil {
		return err
	}
	if _, err := io.Copy(part, f); err != nil {
		return fmt.Errorf("copy audio into request: %w", err)
	}
	_ = w.WriteField("mode", strconv.Itoa(int(mode)))
	_ = w.WriteField("cuda", strconv.FormatBool(c.cuda))
	if err := w.Close(); err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/restore", &buf)
	if err != nil {
		return fmt.Errorf("创建请求失败: %w", err)
	}
	req.Header.Set("Content-Type", w.FormDataContentType())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("restorer request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("restorer returned %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}

	out, err := os.Create(outPath)
	if err != nil {
		return fmt.Errorf("创建文件失败: %w", err)
	}
	defer out.Close()

	n, err := io.Copy(out, resp.Body)
	if err != nil {
		return fmt.Errorf("保存文件失败: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("restorer returned empty audio")
	}
	return nil
}
