// Package cli 实现 umbra 命令行入口
package cli

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"umbra/internal/config"
	"umbra/internal/logger"
)

var (
	cfgPath string
	dbPath  string
	verbose bool
)

var rootCmd = &cobra.Command{
	Use:   "umbra",
	Short: "客户端内容分类与处置引擎",
	Long: `umbra 对候选导航目标与页面元素进行威胁分类（广告/跟踪器/恶意/钓鱼/仿冒），
并按隐私会话状态门控浏览产物的持久化。`,
	SilenceUsage: true,
}

// Execute 运行根命令
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgPath, "config", "", "配置文件路径")
	rootCmd.PersistentFlags().StringVar(&dbPath, "db", "", "数据库文件路径，覆盖配置文件")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "输出调试日志")
	rootCmd.AddCommand(checkCmd)
	rootCmd.AddCommand(scanCmd)
	rootCmd.AddCommand(exportCmd)
	rootCmd.AddCommand(statsCmd)
}

// newLogger 按 verbose 标志构造日志实例
func newLogger() logger.Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	return logger.New(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
}

// loadConfig 加载配置文件并应用命令行覆盖
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, err
	}
	if dbPath != "" {
		cfg.Sqlite.Db = dbPath
	}
	return cfg, nil
}
