// portfolioctl 针对已配置的投稿存储执行维护操作。
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"portfolio/backend/internal/config"
	"portfolio/backend/internal/logger"
	"portfolio/backend/internal/storage"
	"portfolio/backend/internal/storage/provider"
)

var jsonOutput bool

var rootCmd = &cobra.Command{
	Use:   "portfolioctl",
	Short: "Maintenance tool for portfolio contact submissions",
	Long: `portfolioctl runs maintenance tasks against the configured submission store.

It reads the same PORTFOLIO_* environment variables and .env file as the server.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "Output JSON instead of human-readable text")
	rootCmd.AddCommand(backfillCmd, listCmd, deleteCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// withStore 加载配置并打开存储，存储不可用时直接返回错误，执行完毕后关闭
func withStore(ctx context.Context, fn func(store storage.Store, log *zap.Logger) error) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	log, err := logger.New(config.LogConfig{Level: "warn", Development: true})
	if err != nil {
		log = zap.NewNop()
	}
	defer func() { _ = log.Sync() }()

	store, err := provider.Open(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close(context.Background()) }()

	if err := store.Health(ctx); err != nil {
		return fmt.Errorf("storage unavailable: %w", err)
	}

	return fn(store, log)
}
