package agent

import (
	"github.com/spf13/cobra"
)

func initLogFlags(root *cobra.Command) {
	f := root.PersistentFlags()

	f.String("log-level", defaultCfg.Log.Level,
		"-> Log level [debug,info,warn,error] | 日志级别")
	f.String("log-format", defaultCfg.Log.Format,
		"-> Log format [console,json] | 日志格式")
}
