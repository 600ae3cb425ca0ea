// Package pipeline 以工作目录为单位串联分析、校验、应用、打包与输出检查
package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/nerdneilsfield/go-docx-editor/internal/assembler"
	"github.com/nerdneilsfield/go-docx-editor/internal/document"
	"github.com/nerdneilsfield/go-docx-editor/internal/edits"
	"github.com/nerdneilsfield/go-docx-editor/internal/postvalidate"
	"github.com/nerdneilsfield/go-docx-editor/internal/repack"
)

// ReportFile 最近一次校验的报告
const ReportFile = "report.json"

// Options 流水线参数
type Options struct {
	AliasPolicy  edits.AliasPolicy
	Widths       assembler.Widths
	UpdateFields bool
	CheckContent bool
}

// DefaultOptions 返回默认参数
func DefaultOptions() Options {
	return Options{
		AliasPolicy:  edits.PolicyStrict,
		Widths:       assembler.DefaultWidths(),
		CheckContent: true,
	}
}

// Pipeline 各阶段共享的依赖
type Pipeline struct {
	logger *zap.Logger
	opts   Options
}

// New 创建流水线
func New(logger *zap.Logger, opts Options) *Pipeline {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.AliasPolicy == "" {
		opts.AliasPolicy = edits.PolicyStrict
	}
	return &Pipeline{logger: logger, opts: opts}
}

// Analyze 解压 input 到 workDir 并写出 analysis.json
func (p *Pipeline) Analyze(ctx context.Context, input, workDir string) (*document.Analysis, error) {
	pkg, err := document.NewExtractor(p.logger).Extract(ctx, input, workDir)
	if err != nil {
		return nil, err
	}
	analysis, err := document.NewAnalyzer(p.logger).Analyze(ctx, pkg)
	if err != nil {
		return nil, err
	}
	if err := document.SaveAnalysis(workDir, analysis); err != nil {
		return nil, err
	}
	return analysis, nil
}

// Validate 校验工作目录中的编辑列表并写出 report.json
func (p *Pipeline) Validate(ctx context.Context, workDir string) (*edits.Report, error) {
	analysis, list, err := p.load(workDir)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return p.validate(workDir, analysis, list)
}

func (p *Pipeline) validate(workDir string, analysis *document.Analysis, list *edits.List) (*edits.Report, error) {
	report := edits.NewValidator(p.logger, p.opts.AliasPolicy).Validate(analysis, list)
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal %s: %w", ReportFile, err)
	}
	if err := document.WriteFileAtomic(filepath.Join(workDir, ReportFile), data, 0o644); err != nil {
		return nil, fmt.Errorf("failed to write %s: %w", ReportFile, err)
	}
	return report, nil
}

// ApplyResult 应用阶段的结果
type ApplyResult struct {
	Report *edits.Report `json:"report"`
	Specs  int           `json:"specs"`
	Bytes  int           `json:"bytes"`
}

// Apply 校验并应用编辑，只有全部成功时才写回 extracted/word/document.xml
// 编辑总是作用于分析时保存的原始正文，重复执行结果相同
func (p *Pipeline) Apply(ctx context.Context, workDir string) (*ApplyResult, error) {
	analysis, list, err := p.load(workDir)
	if err != nil {
		return nil, err
	}

	pristine, err := os.ReadFile(document.PristinePath(workDir))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, &document.DocxError{Op: "apply", Part: document.PristinePath(workDir), Err: document.ErrNotFound}
		}
		return nil, fmt.Errorf("failed to read pristine document: %w", err)
	}
	if document.Digest(pristine) != analysis.DocumentDigest {
		return nil, &document.DocxError{Op: "apply", Part: document.DocumentPart, Err: document.ErrStaleSnapshot}
	}

	report, err := p.validate(workDir, analysis, list)
	if err != nil {
		return nil, err
	}
	result := &ApplyResult{Report: report}
	if !report.Valid {
		return result, report.Err()
	}

	specs, err := edits.NewMapper(p.logger, p.opts.AliasPolicy).Map(analysis, list)
	if err != nil {
		return result, fmt.Errorf("failed to map edits: %w", err)
	}
	body, err := assembler.NewAssembler(p.logger, assembler.WithWidths(p.opts.Widths)).Assemble(ctx, analysis, specs)
	if err != nil {
		return result, fmt.Errorf("failed to assemble document: %w", err)
	}
	out, err := repack.Wrap(body, pristine)
	if err != nil {
		return result, fmt.Errorf("failed to wrap document body: %w", err)
	}
	if err := document.WriteFileAtomic(document.PartPath(workDir, document.DocumentPart), out, 0o644); err != nil {
		return result, fmt.Errorf("failed to write document: %w", err)
	}

	result.Specs = len(specs)
	result.Bytes = len(out)
	p.logger.Info("applied edits",
		zap.String("work_dir", workDir),
		zap.Int("edits", len(list.Edits)),
		zap.Int("warnings", len(report.Warnings)),
		zap.Int("bytes", len(out)))
	return result, nil
}

// Repack 把工作目录中的部件打包为 output
func (p *Pipeline) Repack(ctx context.Context, original, workDir, output string) (*repack.Result, error) {
	if p.opts.UpdateFields {
		if err := p.enableUpdateFields(workDir); err != nil {
			return nil, err
		}
	}
	return repack.NewRepackager(p.logger).Package(ctx, original, filepath.Join(workDir, document.ExtractedDir), output)
}

func (p *Pipeline) enableUpdateFields(workDir string) error {
	path := document.PartPath(workDir, document.SettingsPart)
	settings, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		p.logger.Warn("settings part not found, fields will not update on open")
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read settings: %w", err)
	}
	updated, err := repack.EnableUpdateFields(settings)
	if err != nil {
		return fmt.Errorf("failed to enable field update: %w", err)
	}
	return document.WriteFileAtomic(path, updated, 0o644)
}

// Create 根据内容描述（json 或 toml）生成新的 DOCX
func (p *Pipeline) Create(ctx context.Context, contentPath, output string) (*document.CreateResult, error) {
	content, err := document.LoadContent(contentPath)
	if err != nil {
		return nil, err
	}
	tableWidth := p.opts.Widths.DefaultTable
	return document.NewCreator(p.logger, tableWidth).Create(ctx, content, output)
}

// PostValidate 检查输出文件，workDir 可以为空
func (p *Pipeline) PostValidate(ctx context.Context, output, workDir string) (*postvalidate.Report, error) {
	return postvalidate.NewPostValidator(p.logger, p.opts.CheckContent).Validate(ctx, output, workDir)
}

// Prompts 为需要分段的编辑生成提示并写出 prompts.json
func (p *Pipeline) Prompts(ctx context.Context, workDir string) ([]edits.Prompt, error) {
	analysis, list, err := p.load(workDir)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	prompts := edits.GeneratePrompts(analysis, list)
	data, err := json.MarshalIndent(prompts, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal %s: %w", edits.PromptsFile, err)
	}
	if err := document.WriteFileAtomic(filepath.Join(workDir, edits.PromptsFile), data, 0o644); err != nil {
		return nil, fmt.Errorf("failed to write %s: %w", edits.PromptsFile, err)
	}
	p.logger.Info("generated run prompts", zap.Int("prompts", len(prompts)))
	return prompts, nil
}

// RunResult 整条流水线的结果
type RunResult struct {
	WorkDir    string               `json:"work_dir"`
	Apply      *ApplyResult         `json:"apply,omitempty"`
	Repack     *repack.Result       `json:"repack,omitempty"`
	PostReport *postvalidate.Report `json:"post_validation,omitempty"`
}

// Run 在 workDir 中执行全部阶段：analyze、apply、repack、postvalidate
// editsPath 的编辑列表会复制到工作目录
func (p *Pipeline) Run(ctx context.Context, input, editsPath, output, workDir string, stage func(name string)) (*RunResult, error) {
	if stage == nil {
		stage = func(string) {}
	}
	result := &RunResult{WorkDir: workDir}

	stage("analyze")
	if _, err := p.Analyze(ctx, input, workDir); err != nil {
		return result, err
	}

	list, err := edits.Load(editsPath)
	if err != nil {
		return result, err
	}
	for _, name := range []string{edits.JSONFile, edits.TOMLFile} {
		if err := os.Remove(filepath.Join(workDir, name)); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return result, fmt.Errorf("failed to clear old edits: %w", err)
		}
	}
	if err := edits.Save(filepath.Join(workDir, edits.JSONFile), list); err != nil {
		return result, err
	}

	stage("apply")
	if result.Apply, err = p.Apply(ctx, workDir); err != nil {
		return result, err
	}

	stage("repack")
	if result.Repack, err = p.Repack(ctx, input, workDir, output); err != nil {
		return result, err
	}

	stage("postvalidate")
	if result.PostReport, err = p.PostValidate(ctx, output, workDir); err != nil {
		return result, err
	}
	return result, result.PostReport.Err()
}

func (p *Pipeline) load(workDir string) (*document.Analysis, *edits.List, error) {
	analysis, err := document.LoadAnalysis(workDir)
	if err != nil {
		return nil, nil, err
	}
	list, err := edits.LoadFromDir(workDir)
	if err != nil {
		return nil, nil, err
	}
	return analysis, list, nil
}
