package document

import (
	"fmt"
	"sort"
	"strings"
)

// renderText 生成交给编辑方的逐行文本表示
// 样式别名在此按首次出现的顺序分配
//
//	[b0:H1|S1] Introduction
//	[b1:LIST|S2 num=1.] First item
//	[b2:TBL|T1]
//	  [b2:r0|RS0]
//	    [b2:r0c0|CS0] [p0|S3] Header
//	[b3:TOC|S4]
//	  [b3:p0|TL0] 1. Introduction 3
func (s *Session) renderText(blocks []*Block) string {
	var lines []string
	for _, b := range blocks {
		if strings.TrimSpace(b.Text) == "" {
			continue
		}

		switch b.Kind {
		case KindTable:
			lines = append(lines, fmt.Sprintf("[%s:%s|%s]", b.ID, b.SemanticTag, b.TableAlias))
			lines = append(lines, s.tableLines(b)...)
		case KindSDT:
			marker := fmt.Sprintf("[%s:%s|%s]", b.ID, b.SemanticTag, s.styleAlias(b.StyleKey))
			if !b.IsTOC || len(b.TOCEntryLevels) == 0 {
				lines = append(lines, marker+" "+b.Text)
				continue
			}
			lines = append(lines, marker)
			indexes := make([]int, 0, len(b.TOCEntryLevels))
			for i := range b.TOCEntryLevels {
				indexes = append(indexes, i)
			}
			sort.Ints(indexes)
			for _, i := range indexes {
				text := ""
				if i < len(b.EntryTexts) {
					text = b.EntryTexts[i]
				}
				lines = append(lines, fmt.Sprintf("  [%s:p%d|%s] %s", b.ID, i, b.TOCEntryLevels[i], text))
			}
		default:
			alias := s.styleAlias(b.StyleKey)
			if b.NumberingPrefix != "" {
				lines = append(lines, fmt.Sprintf("[%s:%s|%s num=%s] %s", b.ID, b.SemanticTag, alias, b.NumberingPrefix, b.Text))
			} else {
				lines = append(lines, fmt.Sprintf("[%s:%s|%s] %s", b.ID, b.SemanticTag, alias, b.Text))
			}
		}
	}
	return strings.Join(lines, "\n")
}

// tableLines 生成表格块的行与单元格文本
func (s *Session) tableLines(b *Block) []string {
	var lines []string
	for r, row := range b.Rows {
		rowAlias := ""
		if r < len(b.RowStyleAliases) {
			rowAlias = b.RowStyleAliases[r]
		}
		lines = append(lines, fmt.Sprintf("  [%s:r%d|%s]", b.ID, r, rowAlias))

		for c, cell := range row.Cells {
			header := fmt.Sprintf("[%s:r%dc%d|%s]", b.ID, r, c, b.CellStyleMap[CellKey(r, c)])
			first := true
			for p, text := range cell.ParagraphTexts {
				if strings.TrimSpace(text) == "" {
					continue
				}
				alias := s.styleAlias(cell.StyleKeys[p])
				if first {
					lines = append(lines, fmt.Sprintf("    %s [p%d|%s] %s", header, p, alias, text))
					first = false
				} else {
					lines = append(lines, fmt.Sprintf("    [p%d|%s] %s", p, alias, text))
				}
			}
		}
	}
	return lines
}
