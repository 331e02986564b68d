package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"

	"Chroma/storage"

	"github.com/spf13/cobra"
)

var (
	minioPrefix    string
	minioStats     bool
	minioRecursive bool
	minioDelete    bool
)

var minioCmd = &cobra.Command{
	Use:   "minio",
	Short: "结果存储管理",
	Long:  `查看和管理结果存储中的文件，支持列出文件、查看统计信息、递归显示目录结构、删除目录等功能。`,
	Run: func(cmd *cobra.Command, args []string) {
		cfg := loadConfig()
		fmt.Printf("存储后端: %s, Bucket: %s\n", cfg.StorageBackend, cfg.MinioBucket)

		ctx := context.Background()
		store, err := storage.New(ctx, cfg)
		if err != nil {
			log.Fatalf("无法连接到存储: %v", err)
		}

		opts := minioOptions{
			Prefix:    minioPrefix,
			Stats:     minioStats,
			Recursive: minioRecursive,
			Delete:    minioDelete,
			Bucket:    cfg.MinioBucket,
		}
		if err := manageResults(ctx, store, opts, os.Stdout); err != nil {
			log.Fatal(err)
		}
	},
}

// 未指定前缀时只列出结果目录
const defaultListPrefix = "results/"

var errDeleteNeedsPrefix = errors.New("删除操作需要指定目录前缀")

type minioOptions struct {
	Prefix    string
	Stats     bool
	Recursive bool
	Delete    bool
	Bucket    string
}

func manageResults(ctx context.Context, store storage.ResultStore, opts minioOptions, w io.Writer) error {
	if opts.Delete {
		// 删除目录
		if opts.Prefix == "" {
			return errDeleteNeedsPrefix
		}
		n, err := store.DeletePrefix(ctx, opts.Prefix)
		if err != nil {
			return fmt.Errorf("删除目录失败: %w", err)
		}
		fmt.Fprintf(w, "已删除 %d 个对象 (前缀: %s)\n", n, opts.Prefix)
		return nil
	}

	prefix := opts.Prefix
	if prefix == "" {
		prefix = defaultListPrefix
	}
	objects, err := store.List(ctx, prefix)
	if err != nil {
		return fmt.Errorf("列出文件失败: %w", err)
	}

	switch {
	case opts.Recursive:
		storage.PrintTree(w, objects)
	case opts.Stats:
		storage.PrintStats(w, opts.Bucket, storage.Summarize(objects))
	default:
		storage.PrintObjects(w, objects)
	}
	return nil
}

func init() {
	rootCmd.AddCommand(minioCmd)

	minioCmd.Flags().StringVarP(&minioPrefix, "prefix", "p", "", "按前缀过滤文件或指定要操作的目录，列出时默认 results/")
	minioCmd.Flags().BoolVarP(&minioStats, "stats", "s", false, "显示统计信息")
	minioCmd.Flags().BoolVarP(&minioRecursive, "recursive", "r", false, "递归显示目录结构")
	minioCmd.Flags().BoolVarP(&minioDelete, "delete", "d", false, "删除指定目录及其下的所有文件")

	minioCmd.Example = `  # 列出所有结果
  chroma minio

  # 显示统计信息
  chroma minio -s

  # 递归显示某个任务的文件
  chroma minio -r -p "results/<jobId>/"

  # 删除某个任务的所有文件
  chroma minio -d -p "results/<jobId>/"`
}
