package assembler

import (
	"math"
	"strconv"

	"github.com/beevik/etree"
	"github.com/mattn/go-runewidth"

	"github.com/nerdneilsfield/go-docx-editor/internal/wml"
)

// 新列没有内容时按两个字符估算
const defaultNewChars = 2

// Widths 表格宽度参数，单位均为 dxa（1/20 磅）
type Widths struct {
	DefaultTable      int
	MinColumn         int
	MaxNewColumnRatio float64
	// 新列每个半角字符的估算宽度与额外边距
	TwipsPerChar  int
	ColumnPadding int
}

// DefaultWidths 返回默认宽度参数
func DefaultWidths() Widths {
	return Widths{
		DefaultTable:      9000,
		MinColumn:         400,
		MaxNewColumnRatio: 0.3,
		TwipsPerChar:      200,
		ColumnPadding:     200,
	}
}

// tableTotalWidth 表格总宽：tblW（dxa 且大于 0），否则 gridCol 之和，否则默认值
func (p Widths) tableTotalWidth(tbl *etree.Element) int {
	if tblW := tbl.FindElement("./w:tblPr/w:tblW"); tblW != nil {
		typ := tblW.SelectAttrValue("w:type", "dxa")
		if w, err := strconv.Atoi(tblW.SelectAttrValue("w:w", "")); err == nil && w > 0 && typ == "dxa" {
			return w
		}
	}
	sum := 0
	for _, w := range gridWidths(tbl, 0, 0) {
		sum += w
	}
	if sum > 0 {
		return sum
	}
	return p.DefaultTable
}

// gridWidths 读取 gridCol 宽度，n 大于 0 时补齐或截断为 n 列，缺失值取 total/n
func gridWidths(tbl *etree.Element, n, total int) []int {
	var cols []*etree.Element
	if grid := tbl.SelectElement("w:tblGrid"); grid != nil {
		cols = grid.SelectElements("w:gridCol")
	}
	if n <= 0 {
		n = len(cols)
	}
	dflt := 0
	if n > 0 {
		dflt = total / n
	}

	widths := make([]int, n)
	for i := range widths {
		widths[i] = dflt
		if i < len(cols) {
			if w, err := strconv.Atoi(cols[i].SelectAttrValue("w:w", "")); err == nil && w >= 0 {
				widths[i] = w
			}
		}
	}
	return widths
}

// widthCondition 不随终端语言环境变化，歧义宽度字符计 1
var widthCondition = func() *runewidth.Condition {
	c := runewidth.NewCondition()
	c.EastAsianWidth = false
	return c
}()

// estimateWidth 以半角字符为单位估算文本宽度，全角与中日韩字符计 2
func estimateWidth(text string) int {
	if w := widthCondition.StringWidth(text); w > 1 {
		return w
	}
	return 1
}

// columnWidths 计算插入新列后的全部列宽，pos 为新列位置
// 原有列按比例缩放，舍入误差计入最宽的列，总和等于 total
func (p Widths) columnWidths(orig []int, total int, contents []string, pos int) []int {
	chars := defaultNewChars
	if len(contents) > 0 {
		chars = 0
		for _, c := range contents {
			if w := estimateWidth(c); w > chars {
				chars = w
			}
		}
	}

	limit := int(math.Round(float64(total) * p.MaxNewColumnRatio))
	newWidth := chars*p.TwipsPerChar + p.ColumnPadding
	if newWidth < p.MinColumn {
		newWidth = p.MinColumn
	}
	if newWidth > limit {
		newWidth = limit
	}

	remaining := total - newWidth
	if remaining < p.MinColumn*len(orig) {
		newWidth = limit
		remaining = total - newWidth
	}

	sum := 0
	for _, w := range orig {
		sum += w
	}
	if sum == 0 {
		sum = total
	}

	adjusted := make([]int, len(orig))
	allocated := 0
	for i, w := range orig {
		adjusted[i] = w * remaining / sum
		if adjusted[i] < p.MinColumn {
			adjusted[i] = p.MinColumn
		}
		allocated += adjusted[i]
	}
	if len(adjusted) > 0 {
		widest := 0
		for i, w := range adjusted {
			if w > adjusted[widest] {
				widest = i
			}
		}
		adjusted[widest] += remaining - allocated
	}

	if pos < 0 {
		pos = 0
	}
	if pos > len(adjusted) {
		pos = len(adjusted)
	}
	all := make([]int, 0, len(adjusted)+1)
	all = append(all, adjusted[:pos]...)
	all = append(all, newWidth)
	all = append(all, adjusted[pos:]...)
	return all
}

// applyWidths 写回 gridCol 与每个单元格的 tcW
func applyWidths(tbl *etree.Element, widths []int) {
	if len(widths) == 0 {
		return
	}
	if grid := tbl.SelectElement("w:tblGrid"); grid != nil {
		for i, gc := range grid.SelectElements("w:gridCol") {
			if i < len(widths) {
				gc.CreateAttr("w:w", strconv.Itoa(widths[i]))
			}
		}
	}
	for _, tr := range tbl.SelectElements("w:tr") {
		for i, tc := range tr.SelectElements("w:tc") {
			w := widths[len(widths)-1]
			if i < len(widths) {
				w = widths[i]
			}
			if tcW := tc.FindElement("./w:tcPr/w:tcW"); tcW != nil {
				tcW.CreateAttr("w:w", strconv.Itoa(w))
			}
		}
	}
}

// setCellWidth 设置单元格宽度，缺少 tcPr 或 tcW 时补齐
func setCellWidth(tc *etree.Element, width int) {
	tcPr := tc.SelectElement("w:tcPr")
	if tcPr == nil {
		tcPr = etree.NewElement("w:tcPr")
		wml.InsertFirst(tc, tcPr)
	}
	tcW := tcPr.SelectElement("w:tcW")
	if tcW == nil {
		tcW = etree.NewElement("w:tcW")
		if cnf := tcPr.SelectElement("w:cnfStyle"); cnf != nil {
			wml.InsertAfter(cnf, tcW)
		} else {
			wml.InsertFirst(tcPr, tcW)
		}
	}
	tcW.CreateAttr("w:w", strconv.Itoa(width))
	tcW.CreateAttr("w:type", "dxa")
}
