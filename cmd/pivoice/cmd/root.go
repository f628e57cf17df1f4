package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/iabetor/pivoice/internal/config"
	"github.com/iabetor/pivoice/internal/logger"
)

var (
	cfgFile string
	verbose bool

	// cfg 在 PersistentPreRunE 中加载，子命令直接使用。
	cfg *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "pivoice",
	Short: "命令行文字转语音",
	Long: `PiVoice 把输入的文字交给在线语音模型合成，并保存为 WAV。

后端: gemini（默认）、openai、tencent、edge
只设置 GEMINI_API_KEY 即可使用默认配置运行。`,
	SilenceUsage:      true,
	SilenceErrors:     true,
	PersistentPreRunE: setup,
}

// Execute 运行根命令，SIGINT/SIGTERM 会取消命令的 context。
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	defer logger.Sync()

	err := rootCmd.ExecuteContext(ctx)
	if err != nil {
		printError(err)
	}
	return err
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "configs/pivoice.yaml", "配置文件路径")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "在终端输出调试日志")
}

func setup(cmd *cobra.Command, _ []string) error {
	c, err := config.LoadOrDefault(cfgFile)
	if err != nil {
		return fmt.Errorf("加载配置失败: %w", err)
	}
	cfg = c

	level := cfg.Log.Level
	if verbose {
		level = "debug"
	}
	return logger.Init(logger.Config{
		Level:      level,
		File:       cfg.Log.File,
		MaxSize:    cfg.Log.MaxSize,
		MaxBackups: cfg.Log.MaxBackups,
		MaxAge:     cfg.Log.MaxAge,
		Quiet:      !verbose,
	})
}

func printError(err error) {
	fmt.Fprintln(os.Stderr, errorStyle.Render("错误: "+err.Error()))
}
