package cmd

import (
	"context"
	"os"
	"path/filepath"

	"Chroma/core/pipeline"
	"Chroma/core/restore"

	"github.com/spf13/cobra"
)

var restoreMode int

var enhanceCmd = &cobra.Command{
	Use:   "enhance <file.wav>",
	Short: "修复一段带噪音的语音",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runLocal(cmd, func(ctx context.Context, p *pipeline.Pipeline) (*pipeline.Result, error) {
			f, err := os.Open(args[0])
			if err != nil {
				return nil, err
			}
			defer f.Close()

			mode := restore.ModeDefault
			if restoreMode >= int(restore.ModeDefault) && restoreMode <= int(restore.ModeTrain) {
				mode = restore.Mode(restoreMode)
			}
			return p.EnhanceAudio(ctx, pipeline.AudioRequest{
				SourceName: filepath.Base(args[0]),
				Body:       f,
				Mode:       mode,
			})
		})
	},
}

func init() {
	rootCmd.AddCommand(enhanceCmd)
	enhanceCmd.Flags().IntVarP(&restoreMode, "mode", "m", 0, "修复模式 0..2")
	enhanceCmd.Flags().StringVarP(&outputPath, "output", "o", "", "输出文件路径")
	enhanceCmd.Flags().BoolVar(&localStore, "local", false, "使用本地目录存储结果，不连接 MinIO、Redis 和 MySQL")
}
