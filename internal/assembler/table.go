package assembler

import (
	"fmt"
	"sort"
	"strings"

	"github.com/beevik/etree"
	"go.uber.org/zap"

	"github.com/nerdneilsfield/go-docx-editor/internal/coord"
	"github.com/nerdneilsfield/go-docx-editor/internal/document"
	"github.com/nerdneilsfield/go-docx-editor/internal/edits"
	"github.com/nerdneilsfield/go-docx-editor/internal/wml"
)

// paragraphMaker 生成单元格中的一个段落
type paragraphMaker func(line string) (*etree.Element, error)

func bareParagraph(line string) (*etree.Element, error) {
	return document.NewParagraph("", document.BareRun(line))
}

// tableEdit 持有表格元素以及分析时各行、单元格、段落的引用
// 坐标始终按分析快照解析，与修改顺序无关
type tableEdit struct {
	s        *session
	block    *document.Block
	tbl      *etree.Element
	rows     []*etree.Element
	cells    [][]*etree.Element
	paras    [][][]*etree.Element
	gridCols []*etree.Element

	// 原行或原段落 -> 其后最后插入的元素，保证多次后插保持提交顺序
	rowCursor  map[int]*etree.Element
	paraCursor map[*etree.Element]*etree.Element
}

func newTableEdit(s *session, b *document.Block, tbl *etree.Element) *tableEdit {
	te := &tableEdit{
		s:          s,
		block:      b,
		tbl:        tbl,
		rows:       tbl.SelectElements("w:tr"),
		rowCursor:  make(map[int]*etree.Element),
		paraCursor: make(map[*etree.Element]*etree.Element),
	}
	for _, tr := range te.rows {
		tcs := tr.SelectElements("w:tc")
		te.cells = append(te.cells, tcs)
		ps := make([][]*etree.Element, len(tcs))
		for c, tc := range tcs {
			ps[c] = tc.SelectElements("w:p")
		}
		te.paras = append(te.paras, ps)
	}
	if grid := tbl.SelectElement("w:tblGrid"); grid != nil {
		te.gridCols = grid.SelectElements("w:gridCol")
	}
	return te
}

func (te *tableEdit) cell(r, c int) (*etree.Element, error) {
	if r < 0 || r >= len(te.cells) || c < 0 || c >= len(te.cells[r]) {
		return nil, fmt.Errorf("%w: cell (%d,%d) of %s", ErrUnsupportedEdit, r, c, te.block.ID)
	}
	return te.cells[r][c], nil
}

func (te *tableEdit) paragraph(t coord.Coord) (*etree.Element, error) {
	if _, err := te.cell(t.Row, t.Col); err != nil {
		return nil, err
	}
	ps := te.paras[t.Row][t.Col]
	if t.Paragraph < 0 || t.Paragraph >= len(ps) {
		return nil, fmt.Errorf("%w: paragraph %s", ErrUnsupportedEdit, t.String())
	}
	return ps[t.Paragraph], nil
}

// rowAlive 报告分析时的第 r 行是否仍在表格中
func (te *tableEdit) rowAlive(r int) bool {
	return r >= 0 && r < len(te.rows) && te.rows[r].Parent() != nil
}

// cellAlive 报告分析时的单元格 (r, c) 是否仍在表格中
func (te *tableEdit) cellAlive(r, c int) bool {
	return te.rowAlive(r) && c >= 0 && c < len(te.cells[r]) && te.cells[r][c].Parent() != nil
}

// firstRow 返回第一个未被删除的行
func (te *tableEdit) firstRow() int {
	for r := range te.rows {
		if te.rowAlive(r) {
			return r
		}
	}
	return -1
}

// columnPosition 返回在分析时第 c 列之前或之后插入新列的当前位置。
// 之前插入的新列不属于快照，排在同一参考列的已有插入之后
func (te *tableEdit) columnPosition(row, c int, after bool) int {
	orig := make(map[*etree.Element]int, len(te.cells[row]))
	for i, tc := range te.cells[row] {
		orig[tc] = i
	}
	current := te.rows[row].SelectElements("w:tc")
	for i, tc := range current {
		idx, ok := orig[tc]
		if !ok {
			continue
		}
		if idx > c || (idx == c && !after) {
			return i
		}
	}
	return len(current)
}

// editTable 应用表格内部的编辑
// 顺序：删除行、删除列、删除单元格段落（均按降序），再插入列（升序）、替换、插入段落和行。
// 坐标始终按分析快照中的元素引用解析
func (s *session) editTable(b *document.Block, subs []edits.BlockSpec) (string, error) {
	tbl, err := b.Element()
	if err != nil {
		return "", err
	}
	te := newTableEdit(s, b, tbl)

	var colInserts, rowInserts, paraInserts, replaces []edits.BlockSpec
	var rowDeletes, colDeletes []int
	var paraDeletes []coord.Coord

	for _, spec := range subs {
		t := spec.Target
		switch {
		case spec.Action == edits.ActionDelete && t.Kind == coord.KindRow:
			rowDeletes = append(rowDeletes, t.Row)
		case spec.Action == edits.ActionDelete && t.Kind == coord.KindColumn:
			colDeletes = append(colDeletes, t.Col)
		case spec.Action == edits.ActionDelete && t.Kind == coord.KindCellParagraph:
			paraDeletes = append(paraDeletes, t)
		case spec.Action.IsInsert() && t.Kind == coord.KindColumn:
			colInserts = append(colInserts, spec)
		case spec.Action.IsInsert() && t.Kind == coord.KindRow:
			rowInserts = append(rowInserts, spec)
		case spec.Action.IsInsert() && t.Kind == coord.KindCellParagraph:
			paraInserts = append(paraInserts, spec)
		case spec.Action == edits.ActionReplace &&
			(t.Kind == coord.KindRow || t.Kind == coord.KindCell || t.Kind == coord.KindCellParagraph):
			replaces = append(replaces, spec)
		default:
			return "", fmt.Errorf("%w: %s %s", ErrUnsupportedEdit, spec.Action, t.String())
		}
	}

	if err := te.deleteRows(rowDeletes); err != nil {
		return "", err
	}
	if err := te.deleteColumns(colDeletes); err != nil {
		return "", err
	}
	if err := te.deleteParagraphs(paraDeletes); err != nil {
		return "", err
	}

	sort.SliceStable(colInserts, func(i, j int) bool {
		return colInserts[i].Target.Col < colInserts[j].Target.Col
	})
	for _, spec := range colInserts {
		if err := te.insertColumn(spec); err != nil {
			return "", err
		}
	}
	for _, spec := range replaces {
		if err := te.replace(spec); err != nil {
			return "", err
		}
	}
	for _, spec := range paraInserts {
		if err := te.insertParagraph(spec); err != nil {
			return "", err
		}
	}
	for _, spec := range rowInserts {
		if err := te.insertRow(spec); err != nil {
			return "", err
		}
	}

	s.logger.Debug("edited table",
		zap.String("block", b.ID),
		zap.Int("edits", len(subs)),
		zap.Int("rows", len(tbl.SelectElements("w:tr"))))
	return wml.Serialize(tbl), nil
}

// insertColumn 有单元格样式别名时新增一列并重新分配列宽，
// 否则在该列每个单元格中追加一个段落
func (te *tableEdit) insertColumn(spec edits.BlockSpec) error {
	c := spec.Target.Col
	after := spec.Action == edits.ActionInsertAfter
	var contents []string
	if spec.Content != "" {
		for _, line := range strings.Split(spec.Content, "\n") {
			contents = append(contents, strings.TrimSpace(line))
		}
	}
	textAt := func(r int) string {
		if r < len(contents) {
			return contents[r]
		}
		return ""
	}

	aliases := spec.CellAliases.Column()
	if len(aliases) == 0 {
		for r := range te.rows {
			text := textAt(r)
			if text == "" || !te.cellAlive(r, c) {
				continue
			}
			tc := te.cells[r][c]
			existing := tc.SelectElements("w:p")
			if len(existing) == 0 {
				continue
			}
			src := existing[0]
			np := cloneWithText(src, text)
			if after {
				wml.InsertAfter(existing[len(existing)-1], np)
			} else {
				wml.InsertBefore(src, np)
			}
		}
		return nil
	}

	if _, err := te.cell(0, c); err != nil {
		return err
	}
	first := te.firstRow()
	if first < 0 {
		return fmt.Errorf("%w: %s has no rows left", ErrRowFloor, te.block.ID)
	}
	pos := te.columnPosition(first, c, after)
	current := te.rows[first].SelectElements("w:tc")

	// 删除列之后 tblGrid 只剩保留的列，总宽度在这些列与新列之间重新分配
	total := te.s.widths.tableTotalWidth(te.tbl)
	widths := te.s.widths.columnWidths(gridWidths(te.tbl, len(current), total), total, contents, pos)

	if grid := te.tbl.SelectElement("w:tblGrid"); grid != nil {
		gc := etree.NewElement("w:gridCol")
		if cols := grid.SelectElements("w:gridCol"); pos < len(cols) {
			wml.InsertBefore(cols[pos], gc)
		} else {
			grid.AddChild(gc)
		}
	}

	for r, tr := range te.rows {
		if !te.rowAlive(r) {
			continue
		}
		alias := aliases[len(aliases)-1]
		if r < len(aliases) {
			alias = aliases[r]
		}
		tcs := tr.SelectElements("w:tc")
		var src *etree.Element
		switch {
		case te.cellAlive(r, c):
			src = te.cells[r][c]
		case pos > 0 && pos-1 < len(tcs):
			src = tcs[pos-1]
		case len(tcs) > 0:
			src = tcs[0]
		}
		mk := paragraphMaker(bareParagraph)
		if src != nil {
			if ps := src.SelectElements("w:p"); len(ps) > 0 {
				p := ps[0]
				mk = func(line string) (*etree.Element, error) {
					return cloneWithText(p, line), nil
				}
			}
		}

		tc, err := te.s.buildCell(alias, textAt(r), widths[pos], mk)
		if err != nil {
			return err
		}
		switch {
		case pos < len(tcs):
			wml.InsertBefore(tcs[pos], tc)
		case len(tcs) > 0:
			wml.InsertAfter(tcs[len(tcs)-1], tc)
		default:
			tr.AddChild(tc)
		}
	}

	applyWidths(te.tbl, widths)
	te.s.logger.Debug("inserted column",
		zap.String("block", te.block.ID),
		zap.Int("position", pos),
		zap.Ints("widths", widths))
	return nil
}

// insertRow 按行样式与单元格样式别名新建一行
func (te *tableEdit) insertRow(spec edits.BlockSpec) error {
	r := spec.Target.Row
	if r < 0 || r >= len(te.rows) {
		return fmt.Errorf("%w: row %s", ErrUnsupportedEdit, spec.Target.String())
	}
	ref, after := te.rowAnchor(r, spec.Action == edits.ActionInsertAfter)
	if ref == nil {
		return fmt.Errorf("%w: %s has no rows left", ErrRowFloor, te.block.ID)
	}

	var contents []string
	if spec.Content != "" {
		for _, c := range strings.Split(spec.Content, "|") {
			contents = append(contents, strings.TrimSpace(c))
		}
	}
	aliases := spec.CellAliases.Row(0)
	n := len(contents)
	if len(aliases) > n {
		n = len(aliases)
	}
	if n == 0 {
		n = len(ref.SelectElements("w:tc"))
	}

	rs := ""
	if len(spec.RowAliases) > 0 {
		rs = spec.RowAliases[0]
	}
	tmpl, _ := te.s.a.TableTemplate(te.block.TableAlias)

	total := te.s.widths.tableTotalWidth(te.tbl)
	tr, err := te.s.buildRow(tmpl, rs, aliases, contents, gridWidths(te.tbl, n, total), n)
	if err != nil {
		return err
	}

	if after {
		cursor := ref
		if last, ok := te.rowCursor[r]; ok {
			cursor = last
		}
		wml.InsertAfter(cursor, tr)
		te.rowCursor[r] = tr
	} else {
		wml.InsertBefore(ref, tr)
	}
	return nil
}

// rowAnchor 返回插入行时参考的现存行。
// 参考行已被删除时，改为紧邻它之前的现存行之后，或之后的现存行之前
func (te *tableEdit) rowAnchor(r int, after bool) (*etree.Element, bool) {
	if te.rowAlive(r) {
		return te.rows[r], after
	}
	for i := r - 1; i >= 0; i-- {
		if te.rowAlive(i) {
			return te.rows[i], true
		}
	}
	for i := r + 1; i < len(te.rows); i++ {
		if te.rowAlive(i) {
			return te.rows[i], false
		}
	}
	return nil, after
}

// insertParagraph 复制目标段落的格式插入新段落
func (te *tableEdit) insertParagraph(spec edits.BlockSpec) error {
	src, err := te.paragraph(spec.Target)
	if err != nil {
		return err
	}
	for _, line := range splitLines(spec.Content) {
		np := cloneWithText(src, line)
		if spec.Action == edits.ActionInsertAfter {
			cursor := src
			if last, ok := te.paraCursor[src]; ok {
				cursor = last
			}
			wml.InsertAfter(cursor, np)
			te.paraCursor[src] = np
		} else {
			wml.InsertBefore(src, np)
		}
	}
	return nil
}

// replace 替换单元格段落、整个单元格或整行的文本
func (te *tableEdit) replace(spec edits.BlockSpec) error {
	t := spec.Target
	switch t.Kind {
	case coord.KindCellParagraph:
		p, err := te.paragraph(t)
		if err != nil {
			return err
		}
		switch {
		case spec.InPlace:
			substituteText(p, spec.Content)
		case len(spec.RunXML) > 0:
			runs, err := parseRuns(spec.RunXML)
			if err != nil {
				return err
			}
			// 超链接内的 run 也属于旧文本
			wml.RemoveChildren(p, "w:r")
			wml.RemoveChildren(p, "w:hyperlink")
			for _, r := range runs {
				p.AddChild(r)
			}
		default:
			fillLines(p, spec.Content)
		}

	case coord.KindCell:
		if _, err := te.cell(t.Row, t.Col); err != nil {
			return err
		}
		ps := te.paras[t.Row][t.Col]
		if len(ps) == 0 {
			return fmt.Errorf("%w: cell %s has no paragraph", ErrUnsupportedEdit, t.String())
		}
		fillLines(ps[0], spec.Content)
		for _, p := range ps[1:] {
			wml.Detach(p)
		}

	case coord.KindRow:
		if t.Row < 0 || t.Row >= len(te.rows) {
			return fmt.Errorf("%w: row %s", ErrUnsupportedEdit, t.String())
		}
		contents := strings.Split(spec.Content, "|")
		for c, tc := range te.cells[t.Row] {
			text := ""
			if c < len(contents) {
				text = strings.TrimSpace(contents[c])
			}
			substituteCell(tc, text)
		}
	}
	return nil
}

// substituteCell 单元格中第一个 w:t 写入文本，其余清空
func substituteCell(tc *etree.Element, text string) {
	ts := tc.FindElements(".//w:r/w:t")
	if len(ts) == 0 {
		if p := tc.SelectElement("w:p"); p != nil {
			substituteText(p, text)
		}
		return
	}
	setSlot(ts[0], text)
	for _, t := range ts[1:] {
		t.SetText("")
	}
}

func (te *tableEdit) deleteParagraphs(targets []coord.Coord) error {
	sort.SliceStable(targets, func(i, j int) bool {
		a, b := targets[i], targets[j]
		if a.Row != b.Row {
			return a.Row > b.Row
		}
		if a.Col != b.Col {
			return a.Col > b.Col
		}
		return a.Paragraph > b.Paragraph
	})
	for _, t := range targets {
		p, err := te.paragraph(t)
		if err != nil {
			return err
		}
		if p.Parent() == nil || !te.cellAlive(t.Row, t.Col) {
			continue
		}
		if len(te.cells[t.Row][t.Col].SelectElements("w:p")) <= 1 {
			return fmt.Errorf("%w: %s", ErrCellFloor, t.String())
		}
		wml.Detach(p)
	}
	return nil
}

func (te *tableEdit) deleteColumns(cols []int) error {
	sort.Sort(sort.Reverse(sort.IntSlice(cols)))
	for i, c := range cols {
		if i > 0 && cols[i-1] == c {
			continue
		}
		if _, err := te.cell(0, c); err != nil {
			return err
		}
		if first := te.firstRow(); first >= 0 && len(te.rows[first].SelectElements("w:tc")) <= 1 {
			return fmt.Errorf("%w: %s", ErrColumnFloor, coord.Column(te.block.Index, c).String())
		}
		for r := range te.rows {
			if c < len(te.cells[r]) {
				wml.Detach(te.cells[r][c])
			}
		}
		if c < len(te.gridCols) {
			wml.Detach(te.gridCols[c])
		}
	}
	return nil
}

func (te *tableEdit) deleteRows(rows []int) error {
	sort.Sort(sort.Reverse(sort.IntSlice(rows)))
	for i, r := range rows {
		if i > 0 && rows[i-1] == r {
			continue
		}
		if r < 0 || r >= len(te.rows) {
			return fmt.Errorf("%w: row %d of %s", ErrUnsupportedEdit, r, te.block.ID)
		}
		if len(te.tbl.SelectElements("w:tr")) <= 1 {
			return fmt.Errorf("%w: %s", ErrRowFloor, coord.Row(te.block.Index, r).String())
		}
		wml.Detach(te.rows[r])
	}
	return nil
}

// buildTable 按表格模板与行、单元格样式别名生成整张表
// 内容每行一行表格，单元格以 | 分隔
func (s *session) buildTable(spec edits.BlockSpec) (string, error) {
	tmpl, ok := s.a.TableTemplate(spec.TableAlias)
	if !ok {
		return "", fmt.Errorf("%w: table style %q", ErrMissingTemplate, spec.TableAlias)
	}
	tbl, err := wml.ParseFragment(tmpl.ShellXML)
	if err != nil {
		return "", fmt.Errorf("failed to parse table template %s: %w", tmpl.Alias, err)
	}

	var rows [][]string
	for _, line := range strings.Split(strings.TrimSpace(spec.Content), "\n") {
		var cells []string
		for _, c := range strings.Split(line, "|") {
			cells = append(cells, strings.TrimSpace(c))
		}
		rows = append(rows, cells)
	}
	n := 0
	for _, r := range rows {
		if len(r) > n {
			n = len(r)
		}
	}
	widths := gridWidths(tbl, n, s.widths.tableTotalWidth(tbl))

	for r, cells := range rows {
		rs := ""
		if len(spec.RowAliases) > 0 {
			rs = spec.RowAliases[len(spec.RowAliases)-1]
			if r < len(spec.RowAliases) {
				rs = spec.RowAliases[r]
			}
		}
		tr, err := s.buildRow(tmpl, rs, spec.CellAliases.Row(r), cells, widths, n)
		if err != nil {
			return "", err
		}
		tbl.AddChild(tr)
	}

	s.logger.Debug("built table from template",
		zap.String("template", tmpl.Alias),
		zap.Int("rows", len(rows)),
		zap.Int("columns", n))
	return wml.Serialize(tbl), nil
}

// buildRow 生成新行：trPr 取自行样式别名（去掉标题行标记），
// 单元格段落格式取自模板中 trPr 相同的行
func (s *session) buildRow(tmpl *document.TableStyleTemplate, rs string, aliases, contents []string, widths []int, n int) (*etree.Element, error) {
	tr := etree.NewElement("w:tr")
	trPrXML := s.a.AliasMap[rs]
	if strings.TrimSpace(trPrXML) != "" {
		trPr, err := wml.ParseFragment(trPrXML)
		if err != nil {
			return nil, fmt.Errorf("failed to parse row style %s: %w", rs, err)
		}
		wml.RemoveChildren(trPr, "w:tblHeader")
		tr.AddChild(trPr)
	}

	var rowTmpl *document.RowTemplate
	if tmpl != nil {
		for i := range tmpl.Rows {
			if tmpl.Rows[i].TrPrXML == trPrXML {
				rowTmpl = &tmpl.Rows[i]
				break
			}
		}
		if rowTmpl == nil && len(tmpl.Rows) > 0 {
			rowTmpl = &tmpl.Rows[0]
		}
	}

	for c := 0; c < n; c++ {
		alias := ""
		if len(aliases) > 0 {
			alias = aliases[len(aliases)-1]
			if c < len(aliases) {
				alias = aliases[c]
			}
		}
		text := ""
		if c < len(contents) {
			text = contents[c]
		}
		width := s.widths.DefaultTable
		if len(widths) > 0 {
			width = widths[len(widths)-1]
			if c < len(widths) {
				width = widths[c]
			}
		}

		mk := paragraphMaker(bareParagraph)
		if rowTmpl != nil && len(rowTmpl.Cells) > 0 {
			ct := rowTmpl.Cells[min(c, len(rowTmpl.Cells)-1)]
			if len(ct.Paragraphs) > 0 {
				mk = ct.Paragraphs[0].Render
			}
		}
		tc, err := s.buildCell(alias, text, width, mk)
		if err != nil {
			return nil, err
		}
		tr.AddChild(tc)
	}
	return tr, nil
}

// buildCell 由单元格样式别名的外壳加上每行一个段落组成新单元格
func (s *session) buildCell(alias, text string, width int, mk paragraphMaker) (*etree.Element, error) {
	tc := etree.NewElement("w:tc")
	if shell := s.a.AliasMap[alias]; document.AliasFamily(alias) == document.FamilyCell && shell != "" {
		parsed, err := wml.ParseFragment(shell)
		if err != nil {
			return nil, fmt.Errorf("failed to parse cell style %s: %w", alias, err)
		}
		tc = parsed
	}
	for _, line := range strings.Split(text, "\n") {
		p, err := mk(line)
		if err != nil {
			return nil, err
		}
		tc.AddChild(p)
	}
	setCellWidth(tc, width)
	return tc, nil
}
