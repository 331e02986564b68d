package colorize

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

// Options mirrors the knobs of the colorization model.
type Options struct {
	RenderFactor int
	Artistic     bool
	PostProcess  bool
	Watermarked  bool
}

// Colorizer transforms the image stored at imagePath and returns the encoded result.
// The model API takes a file, not pixel data.
type Colorizer interface {
	Colorize(ctx context.Context, imagePath string, opts Options) ([]byte, error)
}

// HTTPColorizer talks to a model inference server over multipart HTTP.
type HTTPColorizer struct {
	baseURL    string
	device     string
	httpClient *http.Client
}

// NewHTTPColorizer creates a client. timeout 0 means no timeout.
func NewHTTPColorizer(baseURL, device string, timeout time.Duration) *HTTPColorizer {
	return &HTTPColorizer{
		baseURL:    strings.TrimRight(baseURL, "/"),
		device:     device,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// Colorize posts the image to {baseURL}/colorize and returns the response body.
func (c *HTTPColorizer) Colorize(ctx context.Context, imagePath string, opts Options) ([]byte, error) {
	body, contentType, err := c.buildForm(imagePath, opts)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/colorize", body)
	if err != nil {
		return nil, fmt.Errorf("创建请求失败: %w", err)
	}
	req.Header.Set("Content-Type", contentType)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("colorizer request failed: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read colorizer response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("colorizer returned %d: %s", resp.StatusCode, strings.TrimSpace(string(data)))
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("colorizer returned an empty image")
	}
	return data, nil
}

func (c *HTTPColorizer) buildForm(imagePath string, opts Options) (io.Reader, string, error) {
	f, err := os.Open(imagePath)
	if err != nil {
		return nil, "", fmt.Errorf("open image %s: %w", imagePath, err)
	}
	defer f.Close()

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	part, err := w.CreateFormFile("image", filepath.Base(imagePath))
	if err != nil {
		return nil, "", err
	}
	if _, err := io.Copy(part, f); err != nil {
		return nil, "", fmt.Errorf("copy image into request: %w", err)
	}

	fields := map[string]string{
		"render_factor": strconv.Itoa(opts.RenderFactor),
		"artistic":      strconv.FormatBool(opts.Artistic),
		"post_process":  strconv.FormatBool(opts.PostProcess),
		"watermarked":   strconv.FormatBool(opts.Watermarked),
		"device":        c.device,
	}
	for k, v := range fields {
		if err := w.WriteField(k, v); err != nil {
			return nil, "", err
		}
	}
	if err := w.Close(); err != nil {
		return nil, "", err
	}
	return &buf, w.FormDataContentType(), nil
}
