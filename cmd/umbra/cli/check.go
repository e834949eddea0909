package cli

import (
	"encoding/json"
	"os"

	"github.com/spf13/cobra"

	"umbra/internal/service"
)

var checkCmd = &cobra.Command{
	Use:   "check <url> [url...]",
	Short: "对 URL 执行威胁分类并输出判定结果",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		// 纯内存引擎：不接页面、不落库
		eng, err := service.New(service.Options{Log: newLogger()})
		if err != nil {
			return err
		}
		defer eng.Teardown()

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		for _, raw := range args {
			if err := enc.Encode(eng.ClassifyURL(raw)); err != nil {
				return err
			}
		}
		return nil
	},
}
