package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/nerdneilsfield/go-docx-editor/internal/assembler"
	"github.com/nerdneilsfield/go-docx-editor/internal/config"
	"github.com/nerdneilsfield/go-docx-editor/internal/document"
	"github.com/nerdneilsfield/go-docx-editor/internal/edits"
	"github.com/nerdneilsfield/go-docx-editor/internal/logger"
	"github.com/nerdneilsfield/go-docx-editor/internal/pipeline"
	"github.com/nerdneilsfield/go-docx-editor/internal/postvalidate"
)

var (
	// 命令行标志变量
	cfgFile     string
	debugMode   bool
	logLevel    string
	aliasPolicy string
	formatType  string
)

// 退出码：成功或校验通过为 0，校验失败与其他错误均为 1。
// 失败的具体类型见输出的报告（report.json、postvalidate 结果）
const (
	ExitOK      = 0
	ExitFailure = 1
)

// ExitCode 根据错误返回进程退出码
func ExitCode(err error) int {
	if err == nil {
		return ExitOK
	}
	return ExitFailure
}

// ErrorKind 返回错误的类别，用于错误输出，不影响退出码
func ErrorKind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, edits.ErrValidation):
		return "validation"
	case errors.Is(err, edits.ErrUnresolvedAlias):
		return "unresolved_alias"
	case errors.Is(err, document.ErrStaleSnapshot):
		return "stale_snapshot"
	case errors.Is(err, postvalidate.ErrInvalidOutput):
		return "invalid_output"
	default:
		return "error"
	}
}

// NewRootCommand 创建根命令
func NewRootCommand(version, commit, buildDate string) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "docxedit",
		Short: "按块编辑 DOCX 文档并保留原有格式",
		Long: `docxedit 把 DOCX 正文拆成带编号的块（段落、表格、目录），
为每种格式生成别名，然后按编辑列表（edits.json 或 edits.toml）替换、插入或删除内容，
新内容从文档中已有的格式模板克隆，最后按原始条目顺序重新打包。

典型流程:
  docxedit analyze report.docx work/      # 生成 work/analysis.json
  # 编写 work/edits.json
  docxedit validate work/
  docxedit apply work/
  docxedit repack report.docx work/ out.docx
  docxedit postvalidate out.docx work/

或一次完成:
  docxedit run report.docx edits.json out.docx`,
		Version:       fmt.Sprintf("%s (commit %s, built %s)", version, commit, buildDate),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "配置文件路径（默认 $HOME/.docxedit.yaml 或 ./.docxedit.yaml）")
	rootCmd.PersistentFlags().BoolVar(&debugMode, "debug", false, "启用调试日志")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "日志级别 (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&aliasPolicy, "alias-policy", "", "别名解析策略 (strict, lenient)")
	rootCmd.PersistentFlags().StringVar(&formatType, "format", "", "报告输出格式 (table, json)")

	rootCmd.AddCommand(
		NewCreateCommand(),
		NewAnalyzeCommand(),
		NewValidateCommand(),
		NewApplyCommand(),
		NewRepackCommand(),
		NewPostValidateCommand(),
		NewPromptsCommand(),
		NewRunCommand(),
		NewConfigCommand(),
	)
	return rootCmd
}

// runtime 一次命令执行所需的配置与日志
type runtime struct {
	cfg    *config.Config
	log    *zap.Logger
	policy edits.AliasPolicy
}

// loadRuntime 加载配置并用命令行标志覆盖
func loadRuntime(cmd *cobra.Command) (*runtime, error) {
	cfg, err := config.LoadConfig(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	flags := cmd.Flags()
	if flags.Changed("debug") {
		cfg.Debug = debugMode
	}
	if flags.Changed("log-level") {
		cfg.LogLevel = logLevel
	}
	if flags.Changed("alias-policy") {
		cfg.AliasPolicy = aliasPolicy
	}
	if flags.Changed("format") {
		cfg.OutputFormat = formatType
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	policy, err := edits.ParsePolicy(cfg.AliasPolicy)
	if err != nil {
		return nil, err
	}
	log, err := logger.NewLoggerWithLevel(cfg.LogLevel, cfg.Debug)
	if err != nil {
		return nil, err
	}
	return &runtime{cfg: cfg, log: log, policy: policy}, nil
}

// pipeline 按配置创建流水线
func (r *runtime) pipeline() *pipeline.Pipeline {
	return pipeline.New(r.log, pipeline.Options{
		AliasPolicy:  r.policy,
		Widths:       widthsFromConfig(r.cfg.Table),
		UpdateFields: r.cfg.UpdateFields,
		CheckContent: r.cfg.PostValidate.CheckContent,
	})
}

func widthsFromConfig(t config.TableConfig) assembler.Widths {
	return assembler.Widths{
		DefaultTable:      t.DefaultWidth,
		MinColumn:         t.MinColumnWidth,
		MaxNewColumnRatio: t.MaxNewColumnRatio,
		TwipsPerChar:      t.TwipsPerChar,
		ColumnPadding:     t.ColumnPadding,
	}
}

func (r *runtime) close() {
	_ = r.log.Sync()
}

// withRuntime 包装需要配置与日志的命令
func withRuntime(fn func(cmd *cobra.Command, args []string, rt *runtime) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		rt, err := loadRuntime(cmd)
		if err != nil {
			return err
		}
		defer rt.close()
		return fn(cmd, args, rt)
	}
}
