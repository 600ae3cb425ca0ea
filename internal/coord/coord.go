// Package coord 定义编辑目标的层级坐标
//
// 坐标语法（全部从 0 开始）：
//
//	b3          块
//	b3:r1       表格行
//	b3:r1c2     表格单元格
//	b3:r1c2p0   单元格内段落
//	b3:c2       表格列
//	b5:p4       结构化标签（目录）条目
package coord

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/dlclark/regexp2"
)

// Kind 是坐标的种类
type Kind int

const (
	KindBlock Kind = iota
	KindRow
	KindCell
	KindCellParagraph
	KindColumn
	KindEntry
)

// String 返回种类名称
func (k Kind) String() string {
	switch k {
	case KindBlock:
		return "block"
	case KindRow:
		return "row"
	case KindCell:
		return "cell"
	case KindCellParagraph:
		return "cell_paragraph"
	case KindColumn:
		return "column"
	case KindEntry:
		return "entry"
	default:
		return "unknown"
	}
}

// ErrSyntax 坐标格式错误
var ErrSyntax = errors.New("invalid coordinate")

// Coord 是一个已解析的坐标
// 只有与 Kind 对应的字段有意义，其余为 -1
type Coord struct {
	Kind      Kind
	Block     int
	Row       int
	Col       int
	Paragraph int
	Entry     int
}

var pattern = regexp2.MustCompile(
	`^b(?<block>\d+)(?::(?:r(?<row>\d+)(?:c(?<cell>\d+)(?:p(?<para>\d+))?)?|c(?<col>\d+)|p(?<entry>\d+)))?$`,
	regexp2.None,
)

// Parse 解析坐标字符串
func Parse(s string) (Coord, error) {
	m, err := pattern.FindStringMatch(s)
	if err != nil {
		return Coord{}, fmt.Errorf("%w %q: %v", ErrSyntax, s, err)
	}
	if m == nil {
		return Coord{}, fmt.Errorf("%w %q", ErrSyntax, s)
	}

	num := func(name string) (int, bool, error) {
		g := m.GroupByName(name)
		if g == nil || len(g.Captures) == 0 {
			return -1, false, nil
		}
		v, err := strconv.Atoi(g.String())
		if err != nil {
			return -1, false, fmt.Errorf("%w %q: %v", ErrSyntax, s, err)
		}
		return v, true, nil
	}

	c := Coord{Kind: KindBlock, Row: -1, Col: -1, Paragraph: -1, Entry: -1}
	var ok bool
	if c.Block, _, err = num("block"); err != nil {
		return Coord{}, err
	}
	if c.Row, ok, err = num("row"); err != nil {
		return Coord{}, err
	} else if ok {
		c.Kind = KindRow
	}
	if v, ok, err := num("cell"); err != nil {
		return Coord{}, err
	} else if ok {
		c.Col = v
		c.Kind = KindCell
	}
	if c.Paragraph, ok, err = num("para"); err != nil {
		return Coord{}, err
	} else if ok {
		c.Kind = KindCellParagraph
	}
	if v, ok, err := num("col"); err != nil {
		return Coord{}, err
	} else if ok {
		c.Col = v
		c.Kind = KindColumn
	}
	if c.Entry, ok, err = num("entry"); err != nil {
		return Coord{}, err
	} else if ok {
		c.Kind = KindEntry
	}
	return c, nil
}

// MustParse 解析坐标，失败时 panic，仅用于测试和常量
func MustParse(s string) Coord {
	c, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return c
}

// BlockID 返回块标识，例如 "b3"
func (c Coord) BlockID() string {
	return BlockID(c.Block)
}

// BlockID 根据序号生成块标识
func BlockID(n int) string {
	return "b" + strconv.Itoa(n)
}

// String 格式化坐标，与 Parse 互逆
func (c Coord) String() string {
	b := c.BlockID()
	switch c.Kind {
	case KindRow:
		return fmt.Sprintf("%s:r%d", b, c.Row)
	case KindCell:
		return fmt.Sprintf("%s:r%dc%d", b, c.Row, c.Col)
	case KindCellParagraph:
		return fmt.Sprintf("%s:r%dc%dp%d", b, c.Row, c.Col, c.Paragraph)
	case KindColumn:
		return fmt.Sprintf("%s:c%d", b, c.Col)
	case KindEntry:
		return fmt.Sprintf("%s:p%d", b, c.Entry)
	default:
		return b
	}
}

// IsTableRef 判断坐标是否指向表格内部结构
func (c Coord) IsTableRef() bool {
	switch c.Kind {
	case KindRow, KindCell, KindCellParagraph, KindColumn:
		return true
	}
	return false
}

// Block 构造块坐标
func Block(n int) Coord {
	return Coord{Kind: KindBlock, Block: n, Row: -1, Col: -1, Paragraph: -1, Entry: -1}
}

// Row 构造行坐标
func Row(block, row int) Coord {
	c := Block(block)
	c.Kind, c.Row = KindRow, row
	return c
}

// Cell 构造单元格坐标
func Cell(block, row, col int) Coord {
	c := Row(block, row)
	c.Kind, c.Col = KindCell, col
	return c
}

// CellParagraph 构造单元格段落坐标
func CellParagraph(block, row, col, para int) Coord {
	c := Cell(block, row, col)
	c.Kind, c.Paragraph = KindCellParagraph, para
	return c
}

// Column 构造列坐标
func Column(block, col int) Coord {
	c := Block(block)
	c.Kind, c.Col = KindColumn, col
	return c
}

// Entry 构造条目坐标
func Entry(block, entry int) Coord {
	c := Block(block)
	c.Kind, c.Entry = KindEntry, entry
	return c
}
