package agent

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/lurkkit/agent/pkg/config"
)

// 通过 -ldflags "-X github.com/lurkkit/agent/cmd/agent.Version=..." 注入
var (
	Version = "dev"
	Commit  = "none"
)

var defaultCfg = config.NewDefaultConfig()

// NewRootCmd builds the lurkkit command tree. Running the root starts the agent.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "lurkkit",
		Short:         "LurkKit host monitoring agent: collectors, alerting and telemetry",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          runAgent,
	}
	root.PersistentFlags().StringP("config", "c", "",
		fmt.Sprintf("-> config file (default: $%s, ./%s, ~/.config/lurkkit/, /etc/lurkkit/)", config.EnvConfigPath, config.FileName))

	// 注册分组 flag
	initLogFlags(root)
	initMonitorFlags(root)
	initServerFlags(root)

	root.AddCommand(newInitCmd(), newStatusCmd(), newValidateCmd(), newVersionCmd())
	return root
}

func Execute() {
	err := NewRootCmd().ExecuteContext(context.Background())
	if err == nil {
		return
	}
	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	if errors.Is(err, config.ErrConfigNotFound) {
		fmt.Fprintln(os.Stderr, "请检查配置文件路径，或运行 `lurkkit init` 生成示例配置")
	}
	os.Exit(1)
}
