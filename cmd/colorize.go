package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"

	"Chroma/config"
	"Chroma/core/colorize"
	"Chroma/core/pipeline"
	"Chroma/storage"

	"github.com/spf13/cobra"
)

var (
	renderFactor int
	outputPath   string
	localStore   bool
)

var colorizeCmd = &cobra.Command{
	Use:   "colorize",
	Short: "在本地运行上色流程",
	Long:  `不经过 HTTP 层，直接对图片、视频或 YouTube 链接运行上色流程，并把结果写到本地文件`,
}

var colorizeImageCmd = &cobra.Command{
	Use:   "image <file>",
	Short: "为一张图片上色",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runLocal(cmd, func(ctx context.Context, p *pipeline.Pipeline) (*pipeline.Result, error) {
			f, err := os.Open(args[0])
			if err != nil {
				return nil, err
			}
			defer f.Close()
			return p.ColorizeImage(ctx, pipeline.ImageRequest{
				SourceName:   filepath.Base(args[0]),
				Body:         f,
				RenderFactor: renderFactorFor(cmd, colorize.ImageRenderRange),
			})
		})
	},
}

var colorizeVideoCmd = &cobra.Command{
	Use:   "video <file.mp4>",
	Short: "为一个视频上色",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runLocal(cmd, func(ctx context.Context, p *pipeline.Pipeline) (*pipeline.Result, error) {
			f, err := os.Open(args[0])
			if err != nil {
				return nil, err
			}
			defer f.Close()
			return p.ColorizeVideo(ctx, pipeline.VideoRequest{
				SourceName:   filepath.Base(args[0]),
				Body:         f,
				RenderFactor: renderFactorFor(cmd, colorize.VideoRenderRange),
			})
		})
	},
}

var colorizeYouTubeCmd = &cobra.Command{
	Use:   "youtube <url>",
	Short: "下载 YouTube 视频并上色",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runLocal(cmd, func(ctx context.Context, p *pipeline.Pipeline) (*pipeline.Result, error) {
			return p.ColorizeYouTube(ctx, pipeline.YouTubeRequest{
				URL:          args[0],
				RenderFactor: renderFactorFor(cmd, colorize.VideoRenderRange),
			})
		})
	},
}

// renderFactorFor 未指定时使用页面默认值，超出范围时夹到边界
func renderFactorFor(cmd *cobra.Command, r colorize.RenderRange) int {
	if !cmd.Flags().Changed("render-factor") {
		return r.Default
	}
	return r.Clamp(renderFactor)
}

// runLocal 运行一个任务，Ctrl-C 会在帧之间中止
func runLocal(cmd *cobra.Command, run func(context.Context, *pipeline.Pipeline) (*pipeline.Result, error)) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	cfg := loadConfig()
	applyLocalFlags(cfg)

	a, err := newApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	res, err := run(ctx, a.pipeline)
	if err != nil {
		return err
	}

	dst := outputPath
	if dst == "" {
		dst = res.Output
	}
	if err := fetchResult(ctx, a.pipeline.Store(), res.Job.ID, res.Output, dst); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "任务 %s 完成，结果已写入 %s\n", res.Job.ID, dst)
	for label, name := range res.Extra {
		fmt.Fprintf(cmd.OutOrStdout(), "  %s: %s\n", label, storage.ResultKey(res.Job.ID, name))
	}
	return nil
}

// applyLocalFlags 本地模式下不依赖 MinIO、Redis、MySQL
func applyLocalFlags(cfg *config.Config) {
	if !localStore {
		return
	}
	cfg.StorageBackend = "local"
	cfg.RedisEnabled = false
	cfg.DBEnabled = false
}

func fetchResult(ctx context.Context, store storage.ResultStore, jobID, name, dst string) error {
	rc, _, err := store.Get(ctx, storage.ResultKey(jobID, name))
	if err != nil {
		return fmt.Errorf("读取结果失败: %w", err)
	}
	defer rc.Close()

	out, err := os.Create(dst)
	if err != nil {
		return fmt.Errorf("创建输出文件失败: %w", err)
	}
	if _, err := io.Copy(out, rc); err != nil {
		out.Close()
		return fmt.Errorf("写入输出文件失败: %w", err)
	}
	return out.Close()
}

func init() {
	rootCmd.AddCommand(colorizeCmd)
	colorizeCmd.AddCommand(colorizeImageCmd, colorizeVideoCmd, colorizeYouTubeCmd)

	colorizeCmd.PersistentFlags().IntVarP(&renderFactor, "render-factor", "r", 0, "渲染因子，图片 7..40 默认 35，视频 1..40 默认 10")
	colorizeCmd.PersistentFlags().StringVarP(&outputPath, "output", "o", "", "输出文件路径，默认写到当前目录")
	colorizeCmd.PersistentFlags().BoolVar(&localStore, "local", false, "使用本地目录存储结果，不连接 MinIO、Redis 和 MySQL")

	colorizeCmd.Example = `  # 为图片上色
  chroma colorize image old.jpg -r 35 -o colorized.jpg --local

  # 为视频上色
  chroma colorize video family.mp4 -r 10

  # 下载 YouTube 视频并上色
  chroma colorize youtube "https://www.youtube.com/watch?v=..." -o out.mp4`
}
