package cli

import (
	"encoding/json"
	"os"

	"github.com/spf13/cobra"

	"umbra/internal/service"
)

var exportLogFlag bool

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "导出当前配置（自定义规则与黑白名单）为 JSON",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		app, err := service.Build(cfg, nil, nil, newLogger())
		if err != nil {
			return err
		}
		defer app.Close()

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if exportLogFlag {
			return enc.Encode(app.Engine.ExportLog())
		}
		return enc.Encode(app.Engine.ExportConfig())
	},
}

func init() {
	exportCmd.Flags().BoolVar(&exportLogFlag, "log", false, "导出威胁日志快照而非配置")
}
