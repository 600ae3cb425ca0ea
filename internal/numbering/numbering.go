// Package numbering 解析 numbering.xml 并计算列表编号前缀
package numbering

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/beevik/etree"
)

// maxLevels OOXML 列表最多 9 级
const maxLevels = 9

// Level 是一个列表级别的定义
type Level struct {
	Start   int
	NumFmt  string
	LvlText string
}

// Definitions 是 numbering.xml 的内存模型
type Definitions struct {
	abstract map[string]map[int]Level
	nums     map[string]instance
}

type instance struct {
	abstractID string
	overrides  map[int]Level
	starts     map[int]int
}

// Empty 返回不含任何编号定义的模型
func Empty() *Definitions {
	return &Definitions{
		abstract: make(map[string]map[int]Level),
		nums:     make(map[string]instance),
	}
}

// Parse 解析 numbering.xml 内容
func Parse(data []byte) (*Definitions, error) {
	doc := etree.NewDocument()
	if err := doc.ReadFromBytes(data); err != nil {
		return nil, fmt.Errorf("failed to parse numbering part: %w", err)
	}
	defs := Empty()
	root := doc.Root()
	if root == nil {
		return defs, nil
	}

	for _, an := range root.SelectElements("w:abstractNum") {
		id := an.SelectAttrValue("w:abstractNumId", "")
		levels := make(map[int]Level)
		for _, lvl := range an.SelectElements("w:lvl") {
			ilvl, err := strconv.Atoi(lvl.SelectAttrValue("w:ilvl", ""))
			if err != nil {
				continue
			}
			levels[ilvl] = parseLevel(lvl)
		}
		defs.abstract[id] = levels
	}

	for _, num := range root.SelectElements("w:num") {
		id := num.SelectAttrValue("w:numId", "")
		inst := instance{overrides: make(map[int]Level), starts: make(map[int]int)}
		if ref := num.SelectElement("w:abstractNumId"); ref != nil {
			inst.abstractID = ref.SelectAttrValue("w:val", "")
		}
		for _, ov := range num.SelectElements("w:lvlOverride") {
			ilvl, err := strconv.Atoi(ov.SelectAttrValue("w:ilvl", ""))
			if err != nil {
				continue
			}
			if so := ov.SelectElement("w:startOverride"); so != nil {
				if v, err := strconv.Atoi(so.SelectAttrValue("w:val", "")); err == nil {
					inst.starts[ilvl] = v
				}
			}
			if lvl := ov.SelectElement("w:lvl"); lvl != nil {
				inst.overrides[ilvl] = parseLevel(lvl)
			}
		}
		defs.nums[id] = inst
	}
	return defs, nil
}

func parseLevel(lvl *etree.Element) Level {
	l := Level{Start: 1, NumFmt: FormatDecimal}
	if e := lvl.SelectElement("w:start"); e != nil {
		if v, err := strconv.Atoi(e.SelectAttrValue("w:val", "")); err == nil {
			l.Start = v
		}
	}
	if e := lvl.SelectElement("w:numFmt"); e != nil {
		l.NumFmt = e.SelectAttrValue("w:val", FormatDecimal)
	}
	if e := lvl.SelectElement("w:lvlText"); e != nil {
		l.LvlText = e.SelectAttrValue("w:val", "")
	}
	return l
}

// level 返回编号实例某一级的有效定义
func (d *Definitions) level(numID string, ilvl int) (Level, bool) {
	inst, ok := d.nums[numID]
	if !ok {
		return Level{}, false
	}
	l, ok := inst.overrides[ilvl]
	if !ok {
		l, ok = d.abstract[inst.abstractID][ilvl]
	}
	if !ok {
		return Level{}, false
	}
	if s, ok := inst.starts[ilvl]; ok {
		l.Start = s
	}
	return l, true
}

// Counter 维护一次分析会话中的编号计数
// 不同会话之间不能共享
type Counter struct {
	defs   *Definitions
	states map[string]*levelState
}

type levelState struct {
	count [maxLevels]int
	used  [maxLevels]bool
}

// NewCounter 创建计数器
func NewCounter(defs *Definitions) *Counter {
	if defs == nil {
		defs = Empty()
	}
	return &Counter{defs: defs, states: make(map[string]*levelState)}
}

// Next 推进 numID 在 ilvl 级的计数并返回渲染后的前缀
// numID 为空或 "0" 表示无编号；找不到定义时返回 ok=false
func (c *Counter) Next(numID string, ilvl int) (prefix string, ok bool) {
	if numID == "" || numID == "0" || ilvl < 0 || ilvl >= maxLevels {
		return "", false
	}
	lvl, ok := c.defs.level(numID, ilvl)
	if !ok {
		return "", false
	}

	st, exists := c.states[numID]
	if !exists {
		st = &levelState{}
		c.states[numID] = st
	}

	if st.used[ilvl] {
		st.count[ilvl]++
	} else {
		st.count[ilvl] = lvl.Start
		st.used[ilvl] = true
	}
	for deeper := ilvl + 1; deeper < maxLevels; deeper++ {
		st.used[deeper] = false
		st.count[deeper] = 0
	}

	switch lvl.NumFmt {
	case FormatBullet:
		return lvl.LvlText, true
	case FormatNone:
		return "", true
	}
	return c.render(numID, lvl.LvlText, st), true
}

// render 将 lvlText 中的 %1..%9 替换为对应级别的当前计数，未使用的级别取起始值
func (c *Counter) render(numID, text string, st *levelState) string {
	var sb strings.Builder
	for i := 0; i < len(text); i++ {
		ch := text[i]
		if ch == '%' && i+1 < len(text) && text[i+1] >= '1' && text[i+1] <= '9' {
			ref := int(text[i+1] - '1')
			i++
			l, ok := c.defs.level(numID, ref)
			if !ok {
				continue
			}
			v := l.Start
			if st.used[ref] {
				v = st.count[ref]
			}
			sb.WriteString(Format(l.NumFmt, v))
			continue
		}
		sb.WriteByte(ch)
	}
	return sb.String()
}
