package document

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/beevik/etree"
	"go.uber.org/zap"

	"github.com/nerdneilsfield/go-docx-editor/internal/wml"
)

// LayoutCellProps 每次结构变化都要重新计算的 tcPr 子元素
var LayoutCellProps = []string{"w:tcW", "w:gridSpan", "w:vMerge", "w:hMerge"}

// TableShell 返回去掉所有行的表格副本
func TableShell(tbl *etree.Element) *etree.Element {
	shell := tbl.Copy()
	wml.RemoveChildren(shell, "w:tr")
	return shell
}

// CellShell 返回去掉段落与布局属性的单元格副本
func CellShell(tc *etree.Element) *etree.Element {
	shell := tc.Copy()
	wml.RemoveChildren(shell, "w:p")
	if tcPr := shell.SelectElement("w:tcPr"); tcPr != nil {
		for _, tag := range LayoutCellProps {
			wml.RemoveChildren(tcPr, tag)
		}
	}
	return shell
}

// analyzeTable 填充表格字段并登记表格、行和单元格别名
func (s *Session) analyzeTable(b *Block, tbl *etree.Element) {
	shell := TableShell(tbl)
	shellFP := wml.Canonical(shell)

	tmpl, known := s.tableIndex[shellFP]
	if !known {
		tmpl = &TableStyleTemplate{
			Alias:    "T" + strconv.Itoa(len(s.tables)+1),
			ShellXML: wml.Serialize(shell),
		}
		s.tableIndex[shellFP] = tmpl
		s.tables = append(s.tables, tmpl)
		s.aliasMap[tmpl.Alias] = tmpl.Alias
	}

	b.Kind = KindTable
	b.SemanticTag = TagTable
	b.TableAlias = tmpl.Alias
	b.StyleKey = tmpl.Alias
	b.CellStyleMap = make(map[string]string)

	for r, tr := range tbl.SelectElements("w:tr") {
		rowAlias := s.rowAlias(tr)
		b.RowStyleAliases = append(b.RowStyleAliases, rowAlias)

		rowTmpl := RowTemplate{RowAlias: rowAlias}
		if trPr := tr.SelectElement("w:trPr"); trPr != nil {
			rowTmpl.TrPrXML = wml.Serialize(trPr)
		}

		var shape RowShape
		for c, tc := range tr.SelectElements("w:tc") {
			cellAlias := s.cellAlias(tc)
			b.CellStyleMap[CellKey(r, c)] = cellAlias

			cellTmpl := CellTemplate{CellAlias: cellAlias}
			var cell CellShape
			for _, p := range tc.SelectElements("w:p") {
				pt := newParagraphTemplate(p)
				s.numberingPrefix(p, pt.StyleID)
				cellTmpl.Paragraphs = append(cellTmpl.Paragraphs, pt)
				cell.Paragraphs++
				cell.ParagraphTexts = append(cell.ParagraphTexts, wml.Text(p))
				cell.StyleKeys = append(cell.StyleKeys, pt.StyleKey)
			}
			shape.Cells = append(shape.Cells, cell)
			rowTmpl.Cells = append(rowTmpl.Cells, cellTmpl)
		}
		b.Rows = append(b.Rows, shape)

		if _, ok := tmpl.RowByAlias(rowAlias); !ok {
			tmpl.Rows = append(tmpl.Rows, rowTmpl)
		}
	}

	b.Text = tableText(b)
	s.logger.Debug("analyzed table",
		zap.String("block", b.ID),
		zap.Int("rows", len(b.Rows)),
		zap.String("template", tmpl.Alias))
}

// rowAlias 返回行 trPr 共享的 RS 别名
func (s *Session) rowAlias(tr *etree.Element) string {
	trPr := tr.SelectElement("w:trPr")
	fp := wml.Canonical(trPr)
	if alias, ok := s.rowAliases[fp]; ok {
		return alias
	}
	alias := "RS" + strconv.Itoa(len(s.rowAliases))
	s.rowAliases[fp] = alias
	s.aliasMap[alias] = wml.Serialize(trPr)
	return alias
}

// cellAlias 返回去掉内容后的单元格外壳共享的 CS 别名
func (s *Session) cellAlias(tc *etree.Element) string {
	shell := CellShell(tc)
	fp := wml.Canonical(shell)
	if alias, ok := s.cellAliases[fp]; ok {
		return alias
	}
	alias := "CS" + strconv.Itoa(len(s.cellAliases))
	s.cellAliases[fp] = alias
	s.aliasMap[alias] = wml.Serialize(shell)
	return alias
}

// tableText 生成表格的纯文本，每行一行，单元格以 " | " 连接
func tableText(b *Block) string {
	var rows []string
	for r, row := range b.Rows {
		var cells []string
		for c, cell := range row.Cells {
			if cell.Paragraphs <= 1 {
				cells = append(cells, fmt.Sprintf("[r%dc%d] %s", r, c, strings.Join(cell.ParagraphTexts, "")))
				continue
			}
			lines := []string{fmt.Sprintf("[r%dc%d]", r, c)}
			for p, text := range cell.ParagraphTexts {
				if strings.TrimSpace(text) != "" {
					lines = append(lines, fmt.Sprintf("    [r%dc%dp%d] %s", r, c, p, text))
				}
			}
			cells = append(cells, strings.Join(lines, "\n"))
		}
		rows = append(rows, strings.Join(cells, " | "))
	}
	return strings.Join(rows, "\n")
}
