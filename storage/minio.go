package storage

import (
	"context"
	"fmt"
	"io"
	"time"

	"Chroma/logger"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// MinioStore 基于 MinIO 的结果存储
type MinioStore struct {
	client     *minio.Client
	bucketName string
}

// NewMinioStore connects to MinIO and makes sure the bucket exists.
func NewMinioStore(ctx context.Context, endpoint, accessKey, secretKey, bucketName, region string, useSSL bool) (*MinioStore, error) {
	logger.Info("正在连接 MinIO 服务器...",
		logger.String("endpoint", endpoint),
		logger.String("bucket", bucketName))

	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(accessKey, secretKey, ""),
		Secure: useSSL,
		Region: region,
	})
	if err != nil {
		return nil, fmt.Errorf("创建 MinIO 客户端失败: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	exists, err := client.BucketExists(ctx, bucketName)
	if err != nil {
		return nil, fmt.Errorf("检查存储桶失败: %w", err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, bucketName, minio.MakeBucketOptions{Region: region}); err != nil {
			return nil, fmt.Errorf("创建存储桶失败: %w", err)
		}
		logger.Info("成功创建存储桶", logger.String("bucket", bucketName))
	}

	return &MinioStore{client: client, bucketName: bucketName}, nil
}

// Bucket returns the bucket name.
func (m *MinioStore) Bucket() string {
	return m.bucketName
}

func (m *MinioStore) Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error {
	_, err := m.client.PutObject(ctx, m.bucketName, key, r, size, minio.PutObjectOptions{ContentType: contentType})
	if err != nil {
		return fmt.Errorf("上传对象 %s 失败: %w", key, err)
	}
	return nil
}

func (m *MinioStore) Get(ctx context.Context, key string) (io.ReadCloser, *ObjectInfo, error) {
	stat, err := m.client.StatObject(ctx, m.bucketName, key, minio.StatObjectOptions{})
	if err != nil {
		if minio.ToErrorResponse(err).Code == "NoSuchKey" {
			return nil, nil, ErrNotFound
		}
		return nil, nil, fmt.Errorf("获取对象信息 %s 失败: %w", key, err)
	}

	object, err := m.client.GetObject(ctx, m.bucketName, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, nil, fmt.Errorf("读取对象 %s 失败: %w", key, err)
	}

	return object, &ObjectInfo{
		Key:          stat.Key,
		Size:         stat.Size,
		LastModified: stat.LastModified,
		ContentType:  stat.ContentType,
	}, nil
}

func (m *MinioStore) List(ctx context.Context, prefix string) ([]ObjectInfo, error) {
	var objects []ObjectInfo
	objectCh := m.client.ListObjects(ctx, m.bucketName, minio.ListObjectsOptions{
		Prefix:    prefix,
		Recursive: true,
	})
	for object := range objectCh {
		if object.Err != nil {
			return nil, fmt.Errorf("列出对象时出错: %w", object.Err)
		}
		objects = append(objects, ObjectInfo{
			Key:          object.Key,
			Size:         object.Size,
			LastModified: object.LastModified,
			ContentType:  object.ContentType,
		})
	}
	return objects, nil
}

// DeletePrefix 递归删除前缀下的所有对象，返回删除数量
func (m *MinioStore) DeletePrefix(ctx context.Context, prefix string) (int, error) {
	objectCh := m.client.ListObjects(ctx, m.bucketName, minio.ListObjectsOptions{
		Prefix:    prefix,
		Recursive: true,
	})

	var toDelete []minio.ObjectInfo
	for object := range objectCh {
		if object.Err != nil {
			return 0, fmt.Errorf("列出对象时出错: %w", object.Err)
		}
		toDelete = append(toDelete, object)
	}
	if len(toDelete) == 0 {
		return 0, nil
	}

	removeCh := make(chan minio.ObjectInfo, len(toDelete))
	for _, obj := range toDelete {
		removeCh <- obj
	}
	close(removeCh)

	for rErr := range m.client.RemoveObjects(ctx, m.bucketName, removeCh, minio.RemoveObjectsOptions{}) {
		if rErr.Err != nil {
			return 0, fmt.Errorf("删除对象 %s 失败: %w", rErr.ObjectName, rErr.Err)
		}
	}

	logger.Info("删除对象完成", logger.String("prefix", prefix), logger.Int("count", len(toDelete)))
	return len(toDelete), nil
}
