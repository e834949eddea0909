package cli

import (
	"encoding/json"
	"io"
	"os"

	"github.com/spf13/cobra"

	"umbra/internal/service"
	"umbra/pkg/model"
)

var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "从标准输入读取元素描述（JSON 流）并逐条分类",
	Long: `scan 读取标准输入中的元素描述 JSON 对象流，对每个元素执行只读分类，
按序输出判定结果。元素描述示例：
  {"id":"e1","tag":"iframe","attrs":{"src":"https://doubleclick.net/x"},"width":300,"height":250}`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		eng, err := service.New(service.Options{Log: newLogger()})
		if err != nil {
			return err
		}
		defer eng.Teardown()

		dec := json.NewDecoder(os.Stdin)
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		for {
			var el model.ElementInput
			if err := dec.Decode(&el); err != nil {
				if err == io.EOF {
					return nil
				}
				return err
			}
			if err := enc.Encode(eng.ClassifyElement(el)); err != nil {
				return err
			}
		}
	},
}
