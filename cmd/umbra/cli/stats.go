package cli

import (
	"encoding/json"
	"os"

	"github.com/spf13/cobra"

	"umbra/internal/service"
	"umbra/internal/storage"
)

var (
	statsCategory string
	statsLimit    int
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "输出统计信息与最近的事件历史",
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

		events, total, err := app.Events.Query(storage.QueryOptions{
			Category: statsCategory,
			Limit:    statsLimit,
		})
		if err != nil {
			return err
		}

		out := struct {
			Statistics any   `json:"statistics"`
			Persisted  int64 `json:"persistedEvents"`
			Recent     any   `json:"recent"`
		}{
			Statistics: app.Engine.GetStatistics(),
			Persisted:  total,
			Recent:     events,
		}
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(out)
	},
}

func init() {
	statsCmd.Flags().StringVar(&statsCategory, "category", "", "按类别过滤事件历史")
	statsCmd.Flags().IntVar(&statsLimit, "limit", 20, "事件历史返回条数上限")
}
