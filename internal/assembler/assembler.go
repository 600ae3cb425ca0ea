// Package assembler 把已解析的编辑应用到分析快照上，重新拼装正文
package assembler

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/nerdneilsfield/go-docx-editor/internal/coord"
	"github.com/nerdneilsfield/go-docx-editor/internal/document"
	"github.com/nerdneilsfield/go-docx-editor/internal/edits"
)

// 预定义错误
var (
	// ErrCellFloor 删除后单元格没有段落
	ErrCellFloor = errors.New("cell would be left without paragraphs")

	// ErrColumnFloor 删除后表格没有列
	ErrColumnFloor = errors.New("table would be left without columns")

	// ErrRowFloor 删除后表格没有行
	ErrRowFloor = errors.New("table would be left without rows")

	// ErrMissingTemplate 找不到生成内容所需的模板
	ErrMissingTemplate = errors.New("template not found")

	// ErrUnsupportedEdit 编辑与目标类型不匹配
	ErrUnsupportedEdit = errors.New("unsupported edit for target")
)

// Assembler 负责标记与渲染两个阶段
type Assembler struct {
	logger *zap.Logger
	widths Widths
}

// Option 装配器选项
type Option func(*Assembler)

// WithWidths 设置新建表格与新增列使用的宽度参数
func WithWidths(w Widths) Option {
	return func(a *Assembler) {
		a.widths = w
	}
}

// NewAssembler 创建装配器
func NewAssembler(logger *zap.Logger, opts ...Option) *Assembler {
	if logger == nil {
		logger = zap.NewNop()
	}
	a := &Assembler{logger: logger, widths: DefaultWidths()}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// intent 汇总作用于同一个块的全部编辑
type intent struct {
	deleted bool
	before  []edits.BlockSpec
	after   []edits.BlockSpec
	replace *edits.BlockSpec
	// 表格行列、单元格段落与目录条目上的编辑，按提交顺序
	sub []edits.BlockSpec
}

func (in *intent) touched() bool {
	return in.replace != nil || len(in.sub) > 0
}

// session 单次装配的状态
type session struct {
	a      *document.Analysis
	logger *zap.Logger
	widths Widths

	parts []string
	// 块 ID -> parts 中该块（或替换后第一个段落）的位置
	paragraphParts map[string]int

	anchorSeq   int
	bookmarkSeq int
	// 目标块 ID -> 书签名
	pending map[string]string
}

// Assemble 返回新的正文内容（w:body 的子元素），不修改 analysis
func (a *Assembler) Assemble(ctx context.Context, analysis *document.Analysis, specs []edits.BlockSpec) ([]byte, error) {
	intents, err := a.mark(analysis, specs)
	if err != nil {
		return nil, err
	}

	s := &session{
		a:              analysis,
		logger:         a.logger,
		widths:         a.widths,
		paragraphParts: make(map[string]int),
		anchorSeq:      analysis.AnchorSeed,
		bookmarkSeq:    analysis.BookmarkSeed,
		pending:        make(map[string]string),
	}

	passthrough := make(map[int][]string)
	for _, p := range analysis.Passthrough {
		passthrough[p.Before] = append(passthrough[p.Before], p.XML)
	}

	for i, b := range analysis.Blocks {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		s.parts = append(s.parts, passthrough[i]...)
		if err := s.renderBlock(b, intents[i]); err != nil {
			return nil, fmt.Errorf("failed to render %s: %w", b.ID, err)
		}
	}
	s.parts = append(s.parts, passthrough[len(analysis.Blocks)]...)

	if err := s.injectBookmarks(); err != nil {
		return nil, err
	}
	s.parts = append(s.parts, analysis.SectionXML, analysis.Trailer)

	a.logger.Info("assembled document body",
		zap.Int("blocks", len(analysis.Blocks)),
		zap.Int("specs", len(specs)),
		zap.Int("parts", len(s.parts)))
	return []byte(strings.Join(s.parts, "")), nil
}

// mark 把每个编辑归入目标块的 intent
func (a *Assembler) mark(analysis *document.Analysis, specs []edits.BlockSpec) ([]*intent, error) {
	intents := make([]*intent, len(analysis.Blocks))
	for i := range intents {
		intents[i] = &intent{}
	}

	for i := range specs {
		spec := specs[i]
		t := spec.Target
		block, ok := analysis.BlockAt(t.Block)
		if !ok {
			return nil, fmt.Errorf("%w: block %s does not exist", ErrUnsupportedEdit, t.BlockID())
		}
		in := intents[t.Block]

		switch {
		case t.Kind == coord.KindBlock && spec.Action == edits.ActionDelete:
			in.deleted = true
		case t.Kind == coord.KindBlock && spec.Action == edits.ActionInsertBefore:
			in.before = append(in.before, spec)
		case t.Kind == coord.KindBlock && spec.Action == edits.ActionInsertAfter:
			in.after = append(in.after, spec)
		case t.Kind == coord.KindBlock:
			if block.Kind == document.KindSDT {
				return nil, fmt.Errorf("%w: %s is replaced per entry", ErrUnsupportedEdit, block.ID)
			}
			if in.replace != nil {
				a.logger.Warn("block replaced more than once, keeping the first replacement",
					zap.String("block", block.ID),
					zap.Int("ignored", spec.EditIndex))
				continue
			}
			in.replace = &spec
		default:
			in.sub = append(in.sub, spec)
		}
	}
	return intents, nil
}

// renderBlock 依次输出前插内容、块本身和后插内容
func (s *session) renderBlock(b *document.Block, in *intent) error {
	for _, spec := range in.before {
		if err := s.renderInsert(spec); err != nil {
			return err
		}
	}

	if !in.deleted {
		if err := s.renderTarget(b, in); err != nil {
			return err
		}
	} else if in.touched() {
		s.logger.Debug("edits on deleted block dropped", zap.String("block", b.ID))
	}

	for _, spec := range in.after {
		if err := s.renderInsert(spec); err != nil {
			return err
		}
	}
	return nil
}

// renderTarget 输出块本身，未修改的块保留原始字节
func (s *session) renderTarget(b *document.Block, in *intent) error {
	if !in.touched() {
		if b.Kind == document.KindParagraph {
			s.paragraphParts[b.ID] = len(s.parts)
		}
		s.parts = append(s.parts, b.XML)
		return nil
	}

	switch b.Kind {
	case document.KindParagraph:
		if len(in.sub) > 0 {
			return fmt.Errorf("%w: %s is a paragraph", ErrUnsupportedEdit, b.ID)
		}
		s.paragraphParts[b.ID] = len(s.parts)
		xml, err := s.replaceParagraph(b, *in.replace)
		if err != nil {
			return err
		}
		s.parts = append(s.parts, xml...)
	case document.KindTable:
		if in.replace != nil {
			xml, err := s.buildTable(*in.replace)
			if err != nil {
				return err
			}
			s.parts = append(s.parts, xml)
			return nil
		}
		xml, err := s.editTable(b, in.sub)
		if err != nil {
			return err
		}
		s.parts = append(s.parts, xml)
	case document.KindSDT:
		xml, err := s.editSDT(b, in.sub)
		if err != nil {
			return err
		}
		s.parts = append(s.parts, xml)
	}
	return nil
}

// renderInsert 输出块级插入的新内容
func (s *session) renderInsert(spec edits.BlockSpec) error {
	if spec.Unit == edits.UnitTable {
		xml, err := s.buildTable(spec)
		if err != nil {
			return err
		}
		s.parts = append(s.parts, xml)
		return nil
	}

	xml, err := s.insertParagraphs(spec)
	if err != nil {
		return err
	}
	s.parts = append(s.parts, xml...)
	return nil
}
