package edits

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/nerdneilsfield/go-docx-editor/internal/coord"
	"github.com/nerdneilsfield/go-docx-editor/internal/document"
)

// ErrValidation 编辑列表未通过校验
var ErrValidation = errors.New("edit validation failed")

// Level 问题级别
type Level string

const (
	LevelError   Level = "error"
	LevelWarning Level = "warning"
)

// 检查项名称
const (
	CheckSnapshot    = "snapshot"
	CheckAction      = "action"
	CheckTarget      = "target_id"
	CheckSemanticTag = "semantic_tag"
	CheckStyleAlias  = "style_alias"
	CheckTableAlias  = "table_style_alias"
	CheckRowAlias    = "row_style_alias"
	CheckCellAlias   = "cell_style_alias"
	CheckTOCLevel    = "toc_level_alias"
	CheckAnchor      = "anchor_block_id"
	CheckEditUnit    = "edit_unit"
	CheckRowAliases  = "row_style_aliases"
	CheckCellAliases = "cell_style_aliases"
	CheckCellCount   = "cell_count"
	CheckColumnCount = "column_count"
	CheckNewline     = "newline"
	CheckRuns        = "runs"
	CheckCellFloor   = "cell_floor"
	CheckConflict    = "conflict"
)

// Issue 一条校验结果
type Issue struct {
	EditIndex int    `json:"edit_index"`
	TargetID  string `json:"target_id"`
	Check     string `json:"check"`
	Level     Level  `json:"level"`
	Message   string `json:"message"`
}

// Report 校验报告
type Report struct {
	Valid    bool    `json:"valid"`
	Errors   []Issue `json:"errors"`
	Warnings []Issue `json:"warnings"`
}

// Err 报告无效时返回汇总错误
func (r *Report) Err() error {
	if r.Valid {
		return nil
	}
	msgs := make([]string, 0, len(r.Errors))
	for _, issue := range r.Errors {
		msgs = append(msgs, fmt.Sprintf("edit %d (%s): %s", issue.EditIndex, issue.TargetID, issue.Message))
	}
	return fmt.Errorf("%w: %s", ErrValidation, strings.Join(msgs, "; "))
}

func (r *Report) add(issue Issue) {
	if issue.Level == LevelWarning {
		r.Warnings = append(r.Warnings, issue)
		return
	}
	r.Errors = append(r.Errors, issue)
}

// Validator 在任何修改之前检查整批编辑
type Validator struct {
	logger *zap.Logger
	policy AliasPolicy
}

// NewValidator 创建校验器
func NewValidator(logger *zap.Logger, policy AliasPolicy) *Validator {
	if logger == nil {
		logger = zap.NewNop()
	}
	if policy == "" {
		policy = PolicyStrict
	}
	return &Validator{logger: logger, policy: policy}
}

// cellRef 单元格定位
type cellRef struct {
	block, row, col int
}

// batch 跨编辑的计数，用于下限检查
type batch struct {
	paragraphDeletes map[cellRef]map[int]int // 段落序号 -> 编辑序号
	rowDeletes       map[int]map[int]int
	columnDeletes    map[int]map[int]int
	deletedBlocks    map[int]int
}

// Validate 校验编辑列表，不修改任何输入
func (v *Validator) Validate(a *document.Analysis, list *List) *Report {
	report := &Report{Errors: []Issue{}, Warnings: []Issue{}}
	if list == nil {
		list = &List{}
	}

	if list.Snapshot != "" && list.Snapshot != a.SessionID {
		report.add(Issue{
			EditIndex: -1,
			Check:     CheckSnapshot,
			Level:     LevelError,
			Message:   fmt.Sprintf("edits were written for snapshot %s but the analysis is %s; re-run analyze", list.Snapshot, a.SessionID),
		})
	}

	b := &batch{
		paragraphDeletes: make(map[cellRef]map[int]int),
		rowDeletes:       make(map[int]map[int]int),
		columnDeletes:    make(map[int]map[int]int),
		deletedBlocks:    make(map[int]int),
	}
	targets := make([]*coord.Coord, len(list.Edits))

	for i := range list.Edits {
		c := &editCheck{v: v, a: a, report: report, index: i, edit: &list.Edits[i]}
		targets[i] = c.run(b)
	}

	v.checkFloors(a, list, report, b)
	v.checkConflicts(list, report, b, targets)

	report.Valid = len(report.Errors) == 0
	v.logger.Info("validated edits",
		zap.Int("edits", len(list.Edits)),
		zap.Int("errors", len(report.Errors)),
		zap.Int("warnings", len(report.Warnings)),
		zap.Bool("valid", report.Valid))
	return report
}

// editCheck 单个编辑的校验上下文
type editCheck struct {
	v      *Validator
	a      *document.Analysis
	report *Report
	index  int
	edit   *Edit
}

func (c *editCheck) issue(level Level, check, format string, args ...interface{}) {
	c.report.add(Issue{
		EditIndex: c.index,
		TargetID:  c.edit.TargetID,
		Check:     check,
		Level:     level,
		Message:   fmt.Sprintf(format, args...),
	})
}

func (c *editCheck) errorf(check, format string, args ...interface{}) {
	c.issue(LevelError, check, format, args...)
}

func (c *editCheck) warnf(check, format string, args ...interface{}) {
	c.issue(LevelWarning, check, format, args...)
}

// run 执行单个编辑的全部检查，返回解析成功的坐标
func (c *editCheck) run(b *batch) *coord.Coord {
	e := c.edit
	if !e.Action.Valid() {
		c.errorf(CheckAction, "invalid action %q (expected replace, insert_after, insert_before or delete)", e.Action)
		return nil
	}
	if !e.EditUnit.Valid() {
		c.errorf(CheckEditUnit, "invalid edit_unit %q (expected table, row or column)", e.EditUnit)
	}

	target, err := coord.Parse(e.TargetID)
	if err != nil {
		c.errorf(CheckTarget, "unrecognised target_id format: %q", e.TargetID)
		return nil
	}

	block, ok := c.checkTarget(target)
	if !ok {
		return &target
	}
	c.record(b, target)

	c.checkSemanticTag(target, block)
	if e.Action != ActionDelete {
		c.checkAliases(target)
		c.checkTableFields(target, block)
		c.checkNewline(target)
		c.checkRuns(target, block)
	}
	return &target
}

// checkTarget 检查坐标所指对象是否存在以及类型是否匹配
func (c *editCheck) checkTarget(t coord.Coord) (*document.Block, bool) {
	e := c.edit
	block, ok := c.a.BlockAt(t.Block)
	if !ok {
		c.errorf(CheckTarget, "block %s does not exist (document has %d blocks)", t.BlockID(), len(c.a.Blocks))
		return nil, false
	}

	if t.IsTableRef() && block.Kind != document.KindTable {
		c.errorf(CheckTarget, "%s is not a table", block.ID)
		return nil, false
	}
	if t.Kind == coord.KindEntry && block.Kind != document.KindSDT {
		c.errorf(CheckTarget, "%s is not a structured tag block", block.ID)
		return nil, false
	}

	switch t.Kind {
	case coord.KindBlock:
		if block.Kind == document.KindSDT && e.Action == ActionReplace {
			c.errorf(CheckTarget, "structured tag blocks are edited per entry (%s:p<n>)", block.ID)
			return nil, false
		}
	case coord.KindRow:
		if t.Row >= len(block.Rows) {
			c.errorf(CheckTarget, "row %d out of range (table has %d rows%s)", t.Row, len(block.Rows), indexRange(len(block.Rows)))
			return nil, false
		}
	case coord.KindCell, coord.KindCellParagraph:
		if t.Row >= len(block.Rows) {
			c.errorf(CheckTarget, "row %d out of range (table has %d rows%s)", t.Row, len(block.Rows), indexRange(len(block.Rows)))
			return nil, false
		}
		cells := len(block.Rows[t.Row].Cells)
		if t.Col >= cells {
			c.errorf(CheckTarget, "column %d out of range in row %d (%d cells)", t.Col, t.Row, cells)
			return nil, false
		}
		if t.Kind == coord.KindCell {
			if e.Action != ActionReplace {
				c.errorf(CheckTarget, "cells can only be replaced; address a cell paragraph (%s:r%dc%dp<n>) or a column instead", block.ID, t.Row, t.Col)
				return nil, false
			}
			break
		}
		cell, _ := block.Cell(t.Row, t.Col)
		if t.Paragraph >= cell.Paragraphs {
			c.errorf(CheckTarget, "paragraph %d out of range in cell (%d,%d) (%d paragraphs)", t.Paragraph, t.Row, t.Col, cell.Paragraphs)
			return nil, false
		}
	case coord.KindColumn:
		cols := block.ColumnCount()
		if t.Col >= cols {
			c.errorf(CheckTarget, "column %d out of range (%d columns)", t.Col, cols)
			return nil, false
		}
		if e.Action == ActionReplace {
			c.errorf(CheckTarget, "columns cannot be replaced; replace the cell paragraphs instead")
			return nil, false
		}
	case coord.KindEntry:
		if t.Entry >= block.EntryCount {
			c.errorf(CheckTarget, "entry %d out of range (structured tag has %d entries%s)", t.Entry, block.EntryCount, indexRange(block.EntryCount))
			return nil, false
		}
	}
	return block, true
}

// indexRange 渲染合法下标范围
func indexRange(n int) string {
	if n == 0 {
		return ""
	}
	return fmt.Sprintf(": 0-%d", n-1)
}

// record 记录删除操作，供批量下限检查使用
func (c *editCheck) record(b *batch, t coord.Coord) {
	if c.edit.Action != ActionDelete {
		return
	}
	switch t.Kind {
	case coord.KindBlock:
		if _, seen := b.deletedBlocks[t.Block]; !seen {
			b.deletedBlocks[t.Block] = c.index
		}
	case coord.KindCellParagraph:
		ref := cellRef{t.Block, t.Row, t.Col}
		if b.paragraphDeletes[ref] == nil {
			b.paragraphDeletes[ref] = make(map[int]int)
		}
		b.paragraphDeletes[ref][t.Paragraph] = c.index
	case coord.KindRow:
		if b.rowDeletes[t.Block] == nil {
			b.rowDeletes[t.Block] = make(map[int]int)
		}
		b.rowDeletes[t.Block][t.Row] = c.index
	case coord.KindColumn:
		if b.columnDeletes[t.Block] == nil {
			b.columnDeletes[t.Block] = make(map[int]int)
		}
		b.columnDeletes[t.Block][t.Col] = c.index
	}
}

// checkSemanticTag 块级替换或删除时比对语义标签
func (c *editCheck) checkSemanticTag(t coord.Coord, block *document.Block) {
	e := c.edit
	if t.Kind != coord.KindBlock || e.Action.IsInsert() {
		return
	}
	if e.SemanticTag != "" && block.SemanticTag != "" && e.SemanticTag != block.SemanticTag {
		c.warnf(CheckSemanticTag, "edit tag %q differs from block tag %q", e.SemanticTag, block.SemanticTag)
	}
}

// checkAliases 检查所有引用的别名均可解析
func (c *editCheck) checkAliases(t coord.Coord) {
	e := c.edit
	a := c.a
	strict := c.v.policy == PolicyStrict

	if e.StyleAlias != "" {
		key, ok := a.ResolveStyleAlias(e.StyleAlias)
		switch {
		case !ok:
			msg := withSuggestion(fmt.Sprintf("style alias %q not in alias map", e.StyleAlias), e.StyleAlias, a.Aliases(document.FamilyStyle))
			if strict {
				c.errorf(CheckStyleAlias, "%s", msg)
			} else {
				c.warnf(CheckStyleAlias, "%s; the first paragraph template will be used", msg)
			}
		case isParagraphInsert(e, t):
			if _, found := a.ParagraphTemplate(key); !found {
				if strict {
					c.errorf(CheckStyleAlias, "style alias %s (%s) has no paragraph template", e.StyleAlias, key)
				} else {
					c.warnf(CheckStyleAlias, "style alias %s (%s) has no paragraph template; the first paragraph template will be used", e.StyleAlias, key)
				}
			}
		}
	} else if isParagraphInsert(e, t) {
		if strict {
			c.errorf(CheckStyleAlias, "style_alias required for paragraph insert")
		} else {
			c.warnf(CheckStyleAlias, "no style_alias; the first paragraph template will be used")
		}
	}

	if e.TableStyleAlias != "" && !a.HasAlias(document.FamilyTable, e.TableStyleAlias) {
		c.errorf(CheckTableAlias, "%s", withSuggestion(
			fmt.Sprintf("table style alias %q not in alias map", e.TableStyleAlias), e.TableStyleAlias, a.Aliases(document.FamilyTable)))
	}
	for _, rs := range e.RowStyleAliases {
		if !a.HasAlias(document.FamilyRow, rs) {
			c.errorf(CheckRowAlias, "%s", withSuggestion(
				fmt.Sprintf("row style alias %q not in alias map", rs), rs, a.Aliases(document.FamilyRow)))
		}
	}
	for _, cs := range e.CellStyleAliases.All() {
		if !a.HasAlias(document.FamilyCell, cs) {
			c.errorf(CheckCellAlias, "%s", withSuggestion(
				fmt.Sprintf("cell style alias %q not in alias map", cs), cs, a.Aliases(document.FamilyCell)))
		}
	}
	if e.TOCLevelAlias != "" && !a.HasAlias(document.FamilyTOCLevel, e.TOCLevelAlias) {
		c.errorf(CheckTOCLevel, "%s", withSuggestion(
			fmt.Sprintf("toc level alias %q not in alias map", e.TOCLevelAlias), e.TOCLevelAlias, a.Aliases(document.FamilyTOCLevel)))
	}
	if e.AnchorBlockID != "" {
		anchor, ok := a.Block(e.AnchorBlockID)
		switch {
		case !ok:
			c.errorf(CheckAnchor, "anchor block %s does not exist", e.AnchorBlockID)
		case anchor.Kind != document.KindParagraph:
			c.errorf(CheckAnchor, "anchor block %s is not a paragraph", e.AnchorBlockID)
		case t.Kind != coord.KindEntry:
			c.warnf(CheckAnchor, "anchor_block_id only applies to structured tag entries; ignored")
		}
	}
}

// checkTableFields 检查表格编辑粒度所需的字段
func (c *editCheck) checkTableFields(t coord.Coord, block *document.Block) {
	e := c.edit

	switch e.EditUnit {
	case UnitRow:
		if t.Kind != coord.KindRow {
			c.errorf(CheckEditUnit, "edit_unit row requires a row coordinate (%s:r<n>)", block.ID)
			return
		}
	case UnitColumn:
		if t.Kind != coord.KindColumn {
			c.errorf(CheckEditUnit, "edit_unit column requires a column coordinate (%s:c<n>)", block.ID)
			return
		}
	case UnitTable:
		if t.Kind != coord.KindBlock {
			c.errorf(CheckEditUnit, "edit_unit table requires a block coordinate (%s)", block.ID)
			return
		}
		if e.Action == ActionReplace && block.Kind != document.KindTable {
			c.errorf(CheckEditUnit, "%s is not a table and cannot be replaced by one", block.ID)
			return
		}
	case UnitNone:
		if t.Kind == coord.KindRow || t.Kind == coord.KindColumn {
			c.errorf(CheckEditUnit, "edit_unit required for table edits")
			return
		}
	}

	unit := effectiveUnit(e, t)
	if unit == UnitRow && e.Action.IsInsert() {
		if len(e.RowStyleAliases) == 0 {
			c.errorf(CheckRowAliases, "row_style_aliases required for row insert")
		}
		if len(e.CellStyleAliases.All()) == 0 {
			c.errorf(CheckCellAliases, "cell_style_aliases required for row insert")
		}

		if strings.Contains(e.NewText, "|") {
			cells := len(strings.Split(e.NewText, "|"))
			if len(e.CellStyleAliases) > 0 && cells != len(e.CellStyleAliases[0]) {
				c.errorf(CheckCellCount, "new_text has %d cells but cell_style_aliases[0] has %d", cells, len(e.CellStyleAliases[0]))
			}
			if cols := block.ColumnCount(); cols > 0 && cells != cols {
				c.warnf(CheckColumnCount, "new_text has %d cells but table has %d columns", cells, cols)
			}
		}
	}
	if unit == UnitTable && e.Action.IsInsert() && e.TableStyleAlias == "" {
		c.errorf(CheckTableAlias, "table_style_alias required for table insert")
	}
	if unit == UnitTable && e.Action == ActionReplace && e.TableStyleAlias == "" && block.TableAlias == "" {
		c.errorf(CheckTableAlias, "table_style_alias required to rebuild %s", block.ID)
	}
}

// checkNewline 禁止普通段落文本中出现换行
func (c *editCheck) checkNewline(t coord.Coord) {
	e := c.edit
	if !strings.Contains(e.NewText, "\n") {
		return
	}
	if e.SemanticTag == document.TagTable || e.SemanticTag == document.TagTOC {
		return
	}
	if effectiveUnit(e, t) != UnitNone || t.IsTableRef() {
		return
	}
	c.errorf(CheckNewline, "new_text contains a line break; split it into separate edits")
}

// checkRuns 检查显式分段的样式别名与文本
func (c *editCheck) checkRuns(t coord.Coord, block *document.Block) {
	e := c.edit
	if len(e.Runs) == 0 {
		return
	}

	pools := collectPools(c.a, e, t, block)
	if pools == nil {
		c.warnf(CheckRuns, "runs only apply to paragraph edits; ignored")
		return
	}
	if pools.nonText {
		c.warnf(CheckRuns, "paragraph holds embedded objects; runs are ignored and text is substituted in place")
	}
	if !pools.empty() {
		for j, r := range e.Runs {
			if r.RunStyle == "" {
				continue
			}
			if _, ok := pools.lookup(r.RunStyle); !ok {
				c.errorf(CheckRuns, "%s", withSuggestion(
					fmt.Sprintf("runs[%d].run_style %q not found in run style pool", j, r.RunStyle), r.RunStyle, pools.aliases()))
			}
		}
	}

	var sb strings.Builder
	for _, r := range e.Runs {
		sb.WriteString(r.Text)
	}
	if sb.String() != e.NewText {
		c.warnf(CheckRuns, "concatenated runs text does not match new_text")
	}
}

// checkFloors 检查批量删除后单元格、行、列均不为空
func (v *Validator) checkFloors(a *document.Analysis, list *List, report *Report, b *batch) {
	refs := make([]cellRef, 0, len(b.paragraphDeletes))
	for ref := range b.paragraphDeletes {
		refs = append(refs, ref)
	}
	sort.Slice(refs, func(i, j int) bool {
		x, y := refs[i], refs[j]
		if x.block != y.block {
			return x.block < y.block
		}
		if x.row != y.row {
			return x.row < y.row
		}
		return x.col < y.col
	})

	for _, ref := range refs {
		deletes := b.paragraphDeletes[ref]
		block, _ := a.BlockAt(ref.block)
		cell, _ := block.Cell(ref.row, ref.col)
		if len(deletes) < cell.Paragraphs {
			continue
		}
		idx := lastEdit(deletes)
		report.add(Issue{
			EditIndex: idx,
			TargetID:  list.Edits[idx].TargetID,
			Check:     CheckCellFloor,
			Level:     LevelError,
			Message: fmt.Sprintf("deleting %d of %d paragraphs would leave cell (%d,%d) of %s empty",
				len(deletes), cell.Paragraphs, ref.row, ref.col, block.ID),
		})
	}

	for _, n := range sortedKeys(b.rowDeletes) {
		block, _ := a.BlockAt(n)
		if len(b.rowDeletes[n]) < len(block.Rows) {
			continue
		}
		idx := lastEdit(b.rowDeletes[n])
		report.add(Issue{
			EditIndex: idx,
			TargetID:  list.Edits[idx].TargetID,
			Check:     CheckCellFloor,
			Level:     LevelError,
			Message:   fmt.Sprintf("deleting every row of %s; delete the block instead", block.ID),
		})
	}

	for _, n := range sortedKeys(b.columnDeletes) {
		block, _ := a.BlockAt(n)
		if len(b.columnDeletes[n]) < block.ColumnCount() {
			continue
		}
		idx := lastEdit(b.columnDeletes[n])
		report.add(Issue{
			EditIndex: idx,
			TargetID:  list.Edits[idx].TargetID,
			Check:     CheckCellFloor,
			Level:     LevelError,
			Message:   fmt.Sprintf("deleting every column of %s; delete the block instead", block.ID),
		})
	}
}

// checkConflicts 对作用于已删除块内部的编辑给出警告
func (v *Validator) checkConflicts(list *List, report *Report, b *batch, targets []*coord.Coord) {
	for i, t := range targets {
		if t == nil {
			continue
		}
		deletedBy, deleted := b.deletedBlocks[t.Block]
		if !deleted || deletedBy == i {
			continue
		}
		e := list.Edits[i]
		if t.Kind == coord.KindBlock && e.Action.IsInsert() {
			continue
		}
		report.add(Issue{
			EditIndex: i,
			TargetID:  e.TargetID,
			Check:     CheckConflict,
			Level:     LevelWarning,
			Message:   fmt.Sprintf("block %s is deleted by edit %d; this edit has no effect", t.BlockID(), deletedBy),
		})
	}
}

func lastEdit(m map[int]int) int {
	last := -1
	for _, idx := range m {
		if idx > last {
			last = idx
		}
	}
	return last
}

func sortedKeys(m map[int]map[int]int) []int {
	keys := make([]int, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Ints(keys)
	return keys
}
