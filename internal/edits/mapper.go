package edits

import (
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/nerdneilsfield/go-docx-editor/internal/coord"
	"github.com/nerdneilsfield/go-docx-editor/internal/document"
	"github.com/nerdneilsfield/go-docx-editor/internal/wml"
)

// AliasPolicy 无法解析样式别名时的处理策略
type AliasPolicy string

const (
	// PolicyStrict 无法解析即报错
	PolicyStrict AliasPolicy = "strict"
	// PolicyLenient 回退到第一个段落模板并记录警告
	PolicyLenient AliasPolicy = "lenient"
)

// ErrUnresolvedAlias 样式别名无法解析
var ErrUnresolvedAlias = errors.New("unresolved style alias")

// ParsePolicy 解析策略名称
func ParsePolicy(s string) (AliasPolicy, error) {
	switch AliasPolicy(strings.ToLower(strings.TrimSpace(s))) {
	case PolicyStrict, "":
		return PolicyStrict, nil
	case PolicyLenient:
		return PolicyLenient, nil
	}
	return "", fmt.Errorf("unknown alias policy %q (expected strict or lenient)", s)
}

// BlockSpec 是一个已解析的编辑，装配器只依赖它而不再查询别名
type BlockSpec struct {
	EditIndex int         `json:"edit_index"`
	Action    Action      `json:"action"`
	Target    coord.Coord `json:"-"`
	TargetID  string      `json:"target_id"`
	Unit      Unit        `json:"unit,omitempty"`

	// 段落内容
	StyleKey     string   `json:"style_key,omitempty"`
	Content      string   `json:"content"`
	RunXML       []string `json:"run_xml,omitempty"`
	InPlace      bool     `json:"in_place,omitempty"`
	FallbackUsed bool     `json:"fallback_used,omitempty"`

	// 表格
	TableAlias  string      `json:"table_alias,omitempty"`
	RowAliases  []string    `json:"row_aliases,omitempty"`
	CellAliases CellAliases `json:"cell_aliases,omitempty"`

	// 目录条目
	TOCLevel      string `json:"toc_level,omitempty"`
	AnchorBlockID string `json:"anchor_block_id,omitempty"`
}

// Mapper 把编辑解析为 BlockSpec
type Mapper struct {
	logger *zap.Logger
	policy AliasPolicy
}

// NewMapper 创建映射器
func NewMapper(logger *zap.Logger, policy AliasPolicy) *Mapper {
	if logger == nil {
		logger = zap.NewNop()
	}
	if policy == "" {
		policy = PolicyStrict
	}
	return &Mapper{logger: logger, policy: policy}
}

// Map 解析整批编辑，列表应已通过校验
func (m *Mapper) Map(a *document.Analysis, list *List) ([]BlockSpec, error) {
	specs := make([]BlockSpec, 0, len(list.Edits))
	for i := range list.Edits {
		spec, err := m.mapEdit(a, i, &list.Edits[i])
		if err != nil {
			return nil, fmt.Errorf("edit %d (%s): %w", i, list.Edits[i].TargetID, err)
		}
		specs = append(specs, spec)
	}

	fallbacks := 0
	for _, s := range specs {
		if s.FallbackUsed {
			fallbacks++
		}
	}
	m.logger.Debug("mapped edits", zap.Int("specs", len(specs)), zap.Int("fallbacks", fallbacks))
	return specs, nil
}

func (m *Mapper) mapEdit(a *document.Analysis, index int, e *Edit) (BlockSpec, error) {
	target, err := coord.Parse(e.TargetID)
	if err != nil {
		return BlockSpec{}, err
	}
	block, ok := a.BlockAt(target.Block)
	if !ok {
		return BlockSpec{}, fmt.Errorf("block %s does not exist", target.BlockID())
	}

	spec := BlockSpec{
		EditIndex:     index,
		Action:        e.Action,
		Target:        target,
		TargetID:      target.String(),
		Unit:          effectiveUnit(e, target),
		Content:       e.NewText,
		TOCLevel:      e.TOCLevelAlias,
		AnchorBlockID: e.AnchorBlockID,
	}
	if e.Action == ActionDelete {
		return spec, nil
	}

	switch spec.Unit {
	case UnitTable, UnitRow, UnitColumn:
		m.mapTable(&spec, e, block)
		return spec, nil
	}

	pools := collectPools(a, e, target, block)
	if pools == nil {
		// 单元格整体替换与目录条目由装配器按原有格式处理
		return spec, nil
	}
	if err := m.mapParagraph(a, &spec, e, pools); err != nil {
		return BlockSpec{}, err
	}
	return spec, nil
}

// mapTable 补全表格编辑的别名，整表替换时沿用原表的别名
func (m *Mapper) mapTable(spec *BlockSpec, e *Edit, block *document.Block) {
	spec.TableAlias = e.TableStyleAlias
	spec.RowAliases = e.RowStyleAliases
	spec.CellAliases = e.CellStyleAliases
	if spec.Unit != UnitTable || e.Action != ActionReplace {
		return
	}

	if spec.TableAlias == "" {
		spec.TableAlias = block.TableAlias
	}
	if len(spec.RowAliases) == 0 {
		spec.RowAliases = block.RowStyleAliases
	}
	if len(spec.CellAliases) == 0 {
		for r, row := range block.Rows {
			aliases := make([]string, 0, len(row.Cells))
			for c := range row.Cells {
				aliases = append(aliases, block.CellStyleMap[document.CellKey(r, c)])
			}
			spec.CellAliases = append(spec.CellAliases, aliases)
		}
	}
}

// mapParagraph 选择段落模板并预先渲染字符
func (m *Mapper) mapParagraph(a *document.Analysis, spec *BlockSpec, e *Edit, pools *runPools) error {
	spec.StyleKey = pools.styleKey
	if pools.tmpl == nil && e.Action.IsInsert() {
		if m.policy == PolicyStrict {
			return fmt.Errorf("%w: %q", ErrUnresolvedAlias, e.StyleAlias)
		}
		first, ok := a.FirstParagraphTemplate()
		if !ok {
			return fmt.Errorf("%w: %q and the document has no paragraph template", ErrUnresolvedAlias, e.StyleAlias)
		}
		pools.tmpl = first
		spec.StyleKey = first.StyleKey
		spec.FallbackUsed = true
		m.logger.Warn("style alias unresolved, using first paragraph template",
			zap.String("target", spec.TargetID),
			zap.String("alias", e.StyleAlias),
			zap.String("fallback", first.StyleKey))
	}

	if pools.nonText && e.Action == ActionReplace {
		spec.InPlace = true
		return nil
	}

	if len(e.Runs) > 0 {
		for _, r := range e.Runs {
			tmpl, ok := pools.lookup(r.RunStyle)
			if !ok {
				tmpl, ok = pools.first()
			}
			xml, err := renderRun(tmpl, ok, r.Text)
			if err != nil {
				return err
			}
			spec.RunXML = append(spec.RunXML, xml)
		}
		return nil
	}

	// 多行内容由装配器逐行生成段落
	if strings.Contains(e.NewText, "\n") {
		return nil
	}
	tmpl, ok := pools.first()
	xml, err := renderRun(tmpl, ok, e.NewText)
	if err != nil {
		return err
	}
	spec.RunXML = []string{xml}
	return nil
}

func renderRun(tmpl document.RunStyleTemplate, ok bool, text string) (string, error) {
	if !ok {
		return wml.Serialize(document.BareRun(text)), nil
	}
	r, err := tmpl.Render(text)
	if err != nil {
		return "", err
	}
	return wml.Serialize(r), nil
}
