package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/nerdneilsfield/go-docx-editor/internal/config"
)

var forceInit bool

// NewConfigCommand 创建 config 命令
func NewConfigCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "管理 docxedit 配置",
	}

	initCmd := &cobra.Command{
		Use:   "init [path]",
		Short: "写出默认配置（默认 $HOME/.docxedit.yaml）",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := ""
			if len(args) == 1 {
				path = args[0]
			} else {
				p, err := config.DefaultConfigPath()
				if err != nil {
					return err
				}
				path = p
			}
			if _, err := os.Stat(path); err == nil && !forceInit {
				return fmt.Errorf("config file %s already exists (use --force to overwrite)", path)
			}
			if err := config.SaveConfig(config.NewDefaultConfig(), path); err != nil {
				return fmt.Errorf("failed to write config: %w", err)
			}
			printStatus(cmd.OutOrStdout(), true, "config written to %s", path)
			return nil
		},
	}
	initCmd.Flags().BoolVar(&forceInit, "force", false, "覆盖已存在的配置文件")

	showCmd := &cobra.Command{
		Use:   "show",
		Short: "输出生效的配置（文件、环境变量与命令行标志合并后）",
		Args:  cobra.NoArgs,
		RunE: withRuntime(func(cmd *cobra.Command, _ []string, rt *runtime) error {
			return printJSON(cmd.OutOrStdout(), rt.cfg)
		}),
	}

	cmd.AddCommand(initCmd, showCmd)
	return cmd
}
