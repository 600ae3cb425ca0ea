package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/nerdneilsfield/go-docx-editor/internal/config"
	"github.com/nerdneilsfield/go-docx-editor/internal/document"
	"github.com/nerdneilsfield/go-docx-editor/internal/progress"
)

var (
	// analyze
	showOutline  bool
	outlineWidth int

	// repack
	updateFields bool

	// run
	runWorkDir  string
	keepWorkDir bool
)

// NewCreateCommand 创建 create 命令
func NewCreateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "create <content.json|content.toml> <output.docx>",
		Short: "根据内容描述生成新的 DOCX",
		Args:  cobra.ExactArgs(2),
		RunE: withRuntime(func(cmd *cobra.Command, args []string, rt *runtime) error {
			result, err := rt.pipeline().Create(cmd.Context(), args[0], args[1])
			if err != nil {
				return err
			}
			return printCreateResult(cmd.OutOrStdout(), rt.cfg.OutputFormat, result)
		}),
	}
}

// NewAnalyzeCommand 创建 analyze 命令
func NewAnalyzeCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "analyze <input.docx> <workDir>",
		Short: "解压文档并生成 analysis.json",
		Args:  cobra.ExactArgs(2),
		RunE: withRuntime(func(cmd *cobra.Command, args []string, rt *runtime) error {
			a, err := rt.pipeline().Analyze(cmd.Context(), args[0], args[1])
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if err := printAnalysis(out, rt.cfg.OutputFormat, a); err != nil {
				return err
			}
			if showOutline && rt.cfg.OutputFormat == config.FormatTable {
				printOutline(out, a, outlineWidth)
			}
			return nil
		}),
	}
	cmd.Flags().BoolVar(&showOutline, "outline", false, "输出每个块的预览")
	cmd.Flags().IntVar(&outlineWidth, "width", 60, "预览文本的最大显示宽度")
	return cmd
}

// NewValidateCommand 创建 validate 命令
func NewValidateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "validate <workDir>",
		Short: "校验工作目录中的编辑列表，写出 report.json",
		Args:  cobra.ExactArgs(1),
		RunE: withRuntime(func(cmd *cobra.Command, args []string, rt *runtime) error {
			report, err := rt.pipeline().Validate(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if err := printValidationReport(cmd.OutOrStdout(), rt.cfg.OutputFormat, report); err != nil {
				return err
			}
			return report.Err()
		}),
	}
}

// NewApplyCommand 创建 apply 命令
func NewApplyCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "apply <workDir>",
		Short: "校验并应用编辑，重写工作目录中的 word/document.xml",
		Args:  cobra.ExactArgs(1),
		RunE: withRuntime(func(cmd *cobra.Command, args []string, rt *runtime) error {
			result, err := rt.pipeline().Apply(cmd.Context(), args[0])
			if result != nil && result.Report != nil {
				if perr := printValidationReport(cmd.OutOrStdout(), rt.cfg.OutputFormat, result.Report); perr != nil {
					return perr
				}
			}
			if err != nil {
				return err
			}
			if rt.cfg.OutputFormat == config.FormatTable {
				printStatus(cmd.OutOrStdout(), true, "applied %s (%d bytes)", plural(result.Specs, "edit"), result.Bytes)
			}
			return nil
		}),
	}
}

// NewRepackCommand 创建 repack 命令
func NewRepackCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "repack <original.docx> <workDir> <output.docx>",
		Short: "按原始条目顺序把工作目录打包为新的 DOCX",
		Args:  cobra.ExactArgs(3),
		RunE: withRuntime(func(cmd *cobra.Command, args []string, rt *runtime) error {
			if cmd.Flags().Changed("update-fields") {
				rt.cfg.UpdateFields = updateFields
			}
			result, err := rt.pipeline().Repack(cmd.Context(), args[0], args[1], args[2])
			if err != nil {
				return err
			}
			return printRepackResult(cmd.OutOrStdout(), rt.cfg.OutputFormat, result)
		}),
	}
	cmd.Flags().BoolVar(&updateFields, "update-fields", false, "让 Word 打开文档时刷新目录页码等域")
	return cmd
}

// NewPostValidateCommand 创建 postvalidate 命令
func NewPostValidateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "postvalidate <output.docx> [workDir]",
		Short: "检查输出文件的完整性，提供工作目录时核对编辑内容",
		Args:  cobra.RangeArgs(1, 2),
		RunE: withRuntime(func(cmd *cobra.Command, args []string, rt *runtime) error {
			workDir := ""
			if len(args) == 2 {
				workDir = args[1]
			}
			report, err := rt.pipeline().PostValidate(cmd.Context(), args[0], workDir)
			if err != nil {
				return err
			}
			if err := printPostReport(cmd.OutOrStdout(), rt.cfg.OutputFormat, report); err != nil {
				return err
			}
			return report.Err()
		}),
	}
}

// NewPromptsCommand 创建 prompts 命令
func NewPromptsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "prompts <workDir>",
		Short: "为多字符样式段落的编辑生成分段提示，写出 prompts.json",
		Args:  cobra.ExactArgs(1),
		RunE: withRuntime(func(cmd *cobra.Command, args []string, rt *runtime) error {
			prompts, err := rt.pipeline().Prompts(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if rt.cfg.OutputFormat == config.FormatJSON {
				return printJSON(cmd.OutOrStdout(), prompts)
			}
			printStatus(cmd.OutOrStdout(), true, "%s written", plural(len(prompts), "prompt"))
			return nil
		}),
	}
}

// NewRunCommand 创建 run 命令
func NewRunCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run <input.docx> <edits> <output.docx>",
		Short: "一次执行 analyze、apply、repack、postvalidate",
		Args:  cobra.ExactArgs(3),
		RunE: withRuntime(runPipeline),
	}
	cmd.Flags().StringVar(&runWorkDir, "work-dir", "", "工作目录（默认使用临时目录）")
	cmd.Flags().BoolVar(&keepWorkDir, "keep", false, "保留临时工作目录")
	cmd.Flags().BoolVar(&updateFields, "update-fields", false, "让 Word 打开文档时刷新目录页码等域")
	return cmd
}

func runPipeline(cmd *cobra.Command, args []string, rt *runtime) error {
	input, editsPath, output := args[0], args[1], args[2]
	if cmd.Flags().Changed("update-fields") {
		rt.cfg.UpdateFields = updateFields
	}
	if cmd.Flags().Changed("keep") {
		rt.cfg.KeepWorkDir = keepWorkDir
	}

	workDir := runWorkDir
	if workDir == "" {
		workDir = rt.cfg.WorkDir
	}
	keep := workDir != "" || rt.cfg.KeepWorkDir
	if workDir == "" {
		tmp, err := os.MkdirTemp("", "docxedit-*")
		if err != nil {
			return fmt.Errorf("failed to create work dir: %w", err)
		}
		workDir = tmp
		if !rt.cfg.KeepWorkDir {
			defer os.RemoveAll(tmp)
		}
	} else {
		workDir = filepath.Clean(workDir)
	}
	rt.log.Debug("running pipeline", zap.String("work_dir", workDir))

	out := cmd.OutOrStdout()
	interactive := rt.cfg.OutputFormat == config.FormatTable
	var bar *pterm.ProgressbarPrinter
	if interactive {
		var err error
		bar, err = pterm.DefaultProgressbar.
			WithTotal(4).
			WithTitle("docxedit").
			WithWriter(cmd.ErrOrStderr()).
			WithRemoveWhenDone(true).
			Start()
		if err != nil {
			rt.log.Warn("failed to start progress bar", zap.Error(err))
			bar = nil
		}
	}
	tracker := progress.NewTracker(rt.log, input, output)
	started := 0
	stage := func(name string) {
		tracker.Begin(name)
		if bar == nil {
			return
		}
		if started > 0 {
			bar.Increment()
		}
		started++
		bar.UpdateTitle(name)
	}

	result, err := rt.pipeline().Run(cmd.Context(), input, editsPath, output, workDir, stage)
	tracker.Finish(err)
	if bar != nil {
		if err == nil {
			bar.Increment()
		}
		_, _ = bar.Stop()
	}
	if keep {
		if serr := tracker.Save(filepath.Join(workDir, progress.RunFile)); serr != nil {
			rt.log.Warn("failed to save run record", zap.Error(serr))
		}
	}

	if !interactive {
		if perr := printJSON(out, result); perr != nil {
			return perr
		}
		return err
	}
	if result != nil && result.Apply != nil && result.Apply.Report != nil && err != nil {
		if perr := printValidationReport(out, rt.cfg.OutputFormat, result.Apply.Report); perr != nil {
			return perr
		}
	}
	if result != nil && result.PostReport != nil {
		if perr := printPostReport(out, rt.cfg.OutputFormat, result.PostReport); perr != nil {
			return perr
		}
	}
	tracker.Render(out)
	if err != nil {
		return err
	}
	if rt.cfg.KeepWorkDir {
		printWarning(out, "work dir kept at %s (%s)", workDir, document.AnalysisFile)
	}
	return nil
}
