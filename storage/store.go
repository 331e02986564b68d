package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"path"
	"strings"
	"time"

	"Chroma/config"
)

// ErrNotFound 对象不存在
var ErrNotFound = errors.New("object not found")

// ObjectInfo 文件信息
type ObjectInfo struct {
	Key          string
	Size         int64
	LastModified time.Time
	ContentType  string
}

// BucketStats 存储统计信息
type BucketStats struct {
	TotalObjects int64
	TotalSize    int64
	LastModified time.Time
}

// ResultStore keeps job results and originals for delivery.
type ResultStore interface {
	Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error
	Get(ctx context.Context, key string) (io.ReadCloser, *ObjectInfo, error)
	List(ctx context.Context, prefix string) ([]ObjectInfo, error)
	DeletePrefix(ctx context.Context, prefix string) (int, error)
}

// ResultKey builds results/{jobID}/{name}.
func ResultKey(jobID, name string) string {
	return path.Join("results", jobID, path.Base(name))
}

// JobPrefix is the key prefix holding every object of a job.
func JobPrefix(jobID string) string {
	return "results/" + jobID + "/"
}

// ContentTypeFor 根据扩展名推断内容类型
func ContentTypeFor(name string) string {
	ext := strings.ToLower(path.Ext(name))
	switch ext {
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".png":
		return "image/png"
	case ".mp4":
		return "video/mp4"
	case ".wav":
		return "audio/wav"
	}
	if t := mime.TypeByExtension(ext); t != "" {
		return t
	}
	return "application/octet-stream"
}

// Summarize folds a listing into BucketStats.
func Summarize(objects []ObjectInfo) BucketStats {
	var stats BucketStats
	for _, o := range objects {
		stats.TotalObjects++
		stats.TotalSize += o.Size
		if o.LastModified.After(stats.LastModified) {
			stats.LastModified = o.LastModified
		}
	}
	return stats
}

// FormatSize 格式化文件大小
func FormatSize(size int64) string {
	const unit = 1024
	if size < unit {
		return fmt.Sprintf("%d B", size)
	}
	div, exp := int64(unit), 0
	for n := size / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(size)/float64(div), "KMGTPE"[exp])
}

// New picks the backend named by cfg.StorageBackend.
func New(ctx context.Context, cfg *config.Config) (ResultStore, error) {
	switch cfg.StorageBackend {
	case "local":
		return NewLocalStore(cfg.LocalStoreDir)
	case "minio", "":
		return NewMinioStore(ctx, cfg.MinioEndpoint, cfg.MinioAccessKey, cfg.MinioSecretKey, cfg.MinioBucket, cfg.MinioRegion, cfg.MinioUseSSL)
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.StorageBackend)
	}
}
