package document

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/beevik/etree"
	"golang.org/x/text/cases"
)

// maxBasedOnDepth 限制 basedOn 链的深度，损坏的文件中可能成环
const maxBasedOnDepth = 10

// styleInfo 分析器需要的 styles.xml 样式定义
type styleInfo struct {
	Name       string
	OutlineLvl int // -1 when absent
	BasedOn    string
	NumID      string
	Ilvl       int
}

// styleLookup 以 styleId 索引 styles.xml
type styleLookup struct {
	styles map[string]styleInfo
	fold   cases.Caser
}

func newStyleLookup() *styleLookup {
	return &styleLookup{styles: make(map[string]styleInfo), fold: cases.Fold()}
}

// parseStyles 从 styles.xml 建立索引，输入为空时返回空索引
func parseStyles(data []byte) (*styleLookup, error) {
	lookup := newStyleLookup()
	if len(data) == 0 {
		return lookup, nil
	}

	doc := etree.NewDocument()
	if err := doc.ReadFromBytes(data); err != nil {
		return nil, fmt.Errorf("failed to parse styles part: %w", err)
	}
	root := doc.Root()
	if root == nil {
		return lookup, nil
	}

	for _, style := range root.FindElements(".//w:style") {
		id := style.SelectAttrValue("w:styleId", "")
		if id == "" {
			continue
		}
		info := styleInfo{OutlineLvl: -1, Ilvl: 0}
		if name := style.SelectElement("w:name"); name != nil {
			info.Name = name.SelectAttrValue("w:val", "")
		}
		if ol := style.FindElement(".//w:outlineLvl"); ol != nil {
			if v, err := strconv.Atoi(ol.SelectAttrValue("w:val", "")); err == nil {
				info.OutlineLvl = v
			}
		}
		if b := style.SelectElement("w:basedOn"); b != nil {
			info.BasedOn = b.SelectAttrValue("w:val", "")
		}
		if numPr := style.FindElement("./w:pPr/w:numPr"); numPr != nil {
			if n := numPr.SelectElement("w:numId"); n != nil {
				info.NumID = n.SelectAttrValue("w:val", "")
			}
			if l := numPr.SelectElement("w:ilvl"); l != nil {
				if v, err := strconv.Atoi(l.SelectAttrValue("w:val", "0")); err == nil {
					info.Ilvl = v
				}
			}
		}
		lookup.styles[id] = info
	}
	return lookup, nil
}

// outlineLevel 返回样式的大纲级别，沿 basedOn 向上找一层
func (l *styleLookup) outlineLevel(id string) (int, bool) {
	info, ok := l.styles[id]
	if !ok {
		return 0, false
	}
	if info.OutlineLvl >= 0 {
		return info.OutlineLvl, true
	}
	if parent, ok := l.styles[info.BasedOn]; ok && parent.OutlineLvl >= 0 {
		return parent.OutlineLvl, true
	}
	return 0, false
}

// numbering 返回段落从样式链继承的 numPr
func (l *styleLookup) numbering(id string) (numID string, ilvl int, ok bool) {
	for depth := 0; depth < maxBasedOnDepth && id != ""; depth++ {
		info, found := l.styles[id]
		if !found {
			return "", 0, false
		}
		if info.NumID != "" {
			return info.NumID, info.Ilvl, true
		}
		id = info.BasedOn
	}
	return "", 0, false
}

// classifyName 按关键字把样式 id 或名称映射为语义标签
func (l *styleLookup) classifyName(name string) (string, bool) {
	if name == "" {
		return "", false
	}
	lower := l.fold.String(name)
	switch {
	case strings.Contains(lower, "heading"):
		for _, r := range lower {
			if r >= '1' && r <= '9' {
				return HeadingTag(int(r - '0')), true
			}
		}
		return HeadingTag(1), true
	case lower == "title":
		return TagTitle, true
	case strings.Contains(lower, "subtitle"):
		return TagSubtitle, true
	case strings.Contains(lower, "list"), strings.Contains(lower, "bullet"), strings.Contains(lower, "number"):
		return TagList, true
	case strings.Contains(lower, "toc"):
		return TagTOC, true
	}
	return "", false
}

// classify 推断段落的语义标签
func (l *styleLookup) classify(p *etree.Element, styleID string) string {
	if ol := p.FindElement(".//w:outlineLvl"); ol != nil {
		if v, err := strconv.Atoi(ol.SelectAttrValue("w:val", "")); err == nil {
			return HeadingTag(v + 1)
		}
	}
	if lvl, ok := l.outlineLevel(styleID); ok {
		return HeadingTag(lvl + 1)
	}
	if tag, ok := l.classifyName(styleID); ok {
		return tag
	}
	if tag, ok := l.classifyName(l.styles[styleID].Name); ok {
		return tag
	}
	return TagBody
}
