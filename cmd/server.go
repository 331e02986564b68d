package cmd

import (
	"context"
	"os"

	"Chroma/logger"
	"Chroma/server"

	"github.com/spf13/cobra"
)

var serverCmd = &cobra.Command{
	Use:   "server",
	Short: "启动 Chroma 服务器",
	Long:  `启动 Chroma 的 HTTP 服务器，提供上色、音频修复 API 和 Web 界面`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServer(cmd.Context())
	},
}

func runServer(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	cfg := loadConfig()
	if cfg.InsecureJWTSecret() {
		logger.Warn("JWT_SECRET 未设置，下载令牌使用内置开发密钥签名，生产环境请务必配置")
	}

	if err := os.MkdirAll(cfg.TempDir, 0755); err != nil {
		return err
	}

	a, err := newApp(ctx, cfg)
	if err != nil {
		logger.Error("初始化失败", logger.ErrorField(err))
		return err
	}
	defer a.Close()

	return server.New(cfg, a.pipeline, a.resultCache).Run(ctx)
}

func init() {
	rootCmd.AddCommand(serverCmd)
}
