// Package fingerprint 提供与 XML 库无关的格式指纹计算
//
// 所有样式去重都基于这里的纯函数：输入是一棵带属性的通用树，
// 输出是确定性的字符串键，相同结构（忽略属性与子元素顺序）得到相同的键。
package fingerprint

import (
	"sort"
	"strings"
)

// Attr 是节点上的一个属性
type Attr struct {
	Space string
	Key   string
	Value string
}

// Node 是通用的带属性树节点
type Node struct {
	Space    string
	Tag      string
	Attrs    []Attr
	Children []*Node
	Text     string
}

// booleanTags 取值为 0/false 时等价于不存在的开关类格式
var booleanTags = map[string]bool{
	"b": true, "bCs": true, "i": true, "iCs": true,
	"strike": true, "dstrike": true, "caps": true, "smallCaps": true,
}

// qualified 返回用于排序的限定名
func qualified(space, local string) string {
	if space == "" {
		return local
	}
	return space + ":" + local
}

// sortedAttrs 返回按限定名排序后的属性副本
func sortedAttrs(attrs []Attr) []Attr {
	out := make([]Attr, len(attrs))
	copy(out, attrs)
	sort.SliceStable(out, func(i, j int) bool {
		return qualified(out[i].Space, out[i].Key) < qualified(out[j].Space, out[j].Key)
	})
	return out
}

// sortedChildren 返回按限定标签稳定排序后的子节点副本
func sortedChildren(children []*Node) []*Node {
	out := make([]*Node, 0, len(children))
	for _, c := range children {
		if c != nil {
			out = append(out, c)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return qualified(out[i].Space, out[i].Tag) < qualified(out[j].Space, out[j].Tag)
	})
	return out
}

// isFalseBoolean 判断 <w:b w:val="0"/> 这类显式关闭的开关
func isFalseBoolean(n *Node) bool {
	if !booleanTags[n.Tag] || len(n.Attrs) != 1 || len(n.Children) != 0 {
		return false
	}
	a := n.Attrs[0]
	return a.Key == "val" && (a.Value == "0" || a.Value == "false")
}

// KeyPart 将一个格式元素转换为确定性的键片段
//
//	<w:jc w:val="center"/>                        -> "jc-center"
//	<w:spacing w:after="200" w:line="276"/>       -> "spacing-after200_line276"
//	<w:numPr><w:ilvl w:val="0"/>...</w:numPr>     -> "numPr-ilvl-0_numId-1"
//	<w:b/>                                        -> "b"
//	<w:b w:val="0"/>                              -> ""
func KeyPart(n *Node) string {
	if n == nil || isFalseBoolean(n) {
		return ""
	}

	var parts []string
	for _, a := range sortedAttrs(n.Attrs) {
		if a.Key == "val" {
			parts = append(parts, a.Value)
		} else {
			parts = append(parts, a.Key+a.Value)
		}
	}
	for _, c := range sortedChildren(n.Children) {
		if p := KeyPart(c); p != "" {
			parts = append(parts, p)
		}
	}

	if len(parts) == 0 {
		return n.Tag
	}
	return n.Tag + "-" + strings.Join(parts, "_")
}

// Key 计算一组格式元素的组合键，skip 中的标签会被忽略
func Key(children []*Node, skip ...string) string {
	skipSet := make(map[string]bool, len(skip))
	for _, s := range skip {
		skipSet[s] = true
	}

	var parts []string
	for _, c := range sortedChildren(children) {
		if skipSet[c.Tag] {
			continue
		}
		if p := KeyPart(c); p != "" {
			parts = append(parts, p)
		}
	}
	return strings.Join(parts, "_")
}

// Canonical 返回节点的规范化序列化形式
// 属性按名称排序，子元素按标签稳定排序，文本去除首尾空白
func Canonical(n *Node) string {
	var sb strings.Builder
	writeCanonical(&sb, n)
	return sb.String()
}

func writeCanonical(sb *strings.Builder, n *Node) {
	if n == nil {
		return
	}
	name := qualified(n.Space, n.Tag)
	sb.WriteByte('<')
	sb.WriteString(name)
	for _, a := range sortedAttrs(n.Attrs) {
		sb.WriteByte(' ')
		sb.WriteString(qualified(a.Space, a.Key))
		sb.WriteString(`="`)
		sb.WriteString(a.Value)
		sb.WriteByte('"')
	}
	text := strings.TrimSpace(n.Text)
	children := sortedChildren(n.Children)
	if text == "" && len(children) == 0 {
		sb.WriteString("/>")
		return
	}
	sb.WriteByte('>')
	sb.WriteString(text)
	for _, c := range children {
		writeCanonical(sb, c)
	}
	sb.WriteString("</")
	sb.WriteString(name)
	sb.WriteByte('>')
}
