// Package wml 封装 WordprocessingML 片段的解析、序列化与常用查询
//
// 片段中的前缀（w:、wp:、mc: 等）原样保留，不依赖命名空间声明，
// 因此从 document.xml 中截取的块可以独立解析后再放回原处。
package wml

import (
	"errors"
	"fmt"
	"strings"

	"github.com/beevik/etree"

	"github.com/nerdneilsfield/go-docx-editor/internal/fingerprint"
)

// Namespace WordprocessingML 主命名空间
const Namespace = "http://schemas.openxmlformats.org/wordprocessingml/2006/main"

// Prefix 文档正文使用的前缀
const Prefix = "w"

// ErrEmptyFragment 片段中没有元素
var ErrEmptyFragment = errors.New("fragment has no root element")

// nonTextMarkers 出现任意一个即表示段落中嵌有非文本对象
var nonTextMarkers = []string{
	"AlternateContent",
	"<w:drawing",
	"<w:pict",
	"<wp:anchor",
	"<wp:inline",
	"<v:shape",
	"<v:group",
}

// ParseFragment 解析单个 XML 片段并返回脱离文档的根元素
func ParseFragment(xml string) (*etree.Element, error) {
	doc := etree.NewDocument()
	if err := doc.ReadFromString(xml); err != nil {
		return nil, fmt.Errorf("failed to parse fragment: %w", err)
	}
	root := doc.Root()
	if root == nil {
		return nil, ErrEmptyFragment
	}
	doc.RemoveChild(root)
	return root, nil
}

// Serialize 将元素序列化为字符串，元素本身不会被修改
func Serialize(el *etree.Element) string {
	if el == nil {
		return ""
	}
	doc := etree.NewDocument()
	doc.SetRoot(el.Copy())
	// 写入 strings.Builder 不会失败
	s, _ := doc.WriteToString()
	return s
}

// ToNode 将 etree 元素转换为指纹计算使用的通用树
func ToNode(el *etree.Element) *fingerprint.Node {
	if el == nil {
		return nil
	}
	n := &fingerprint.Node{Space: el.Space, Tag: el.Tag, Text: el.Text()}
	for _, a := range el.Attr {
		n.Attrs = append(n.Attrs, fingerprint.Attr{Space: a.Space, Key: a.Key, Value: a.Value})
	}
	for _, c := range el.ChildElements() {
		n.Children = append(n.Children, ToNode(c))
	}
	return n
}

// ChildNodes 将元素的子元素转换为通用树列表
func ChildNodes(el *etree.Element) []*fingerprint.Node {
	if el == nil {
		return nil
	}
	var out []*fingerprint.Node
	for _, c := range el.ChildElements() {
		out = append(out, ToNode(c))
	}
	return out
}

// Canonical 返回元素的规范化指纹
func Canonical(el *etree.Element) string {
	if el == nil {
		return ""
	}
	return fingerprint.Canonical(ToNode(el))
}

// TextNodes 返回所有后代 w:t 元素
func TextNodes(el *etree.Element) []*etree.Element {
	if el == nil {
		return nil
	}
	return el.FindElements(".//w:t")
}

// Text 拼接所有后代 w:t 的文本
func Text(el *etree.Element) string {
	var sb strings.Builder
	for _, t := range TextNodes(el) {
		sb.WriteString(t.Text())
	}
	return sb.String()
}

// JoinedText 以 sep 连接每个 w:t 的文本
func JoinedText(el *etree.Element, sep string) string {
	var parts []string
	for _, t := range TextNodes(el) {
		if s := t.Text(); s != "" {
			parts = append(parts, s)
		}
	}
	return strings.Join(parts, sep)
}

// SetText 写入 w:t 文本并在需要时保留首尾空白
func SetText(t *etree.Element, text string) {
	t.SetText(text)
	if text != strings.TrimSpace(text) {
		t.CreateAttr("xml:space", "preserve")
	}
}

// HasNonText 判断片段是否含有图片、图形等非文本对象
func HasNonText(xml string) bool {
	for _, m := range nonTextMarkers {
		if strings.Contains(xml, m) {
			return true
		}
	}
	return false
}

// IsOn 判断开关类属性（w:b、w:i 等）是否生效
func IsOn(el *etree.Element) bool {
	if el == nil {
		return false
	}
	v := el.SelectAttrValue("w:val", "true")
	return v != "0" && v != "false" && v != "off"
}

// Val 返回子元素的 w:val 属性
func Val(parent *etree.Element, tag, dflt string) string {
	if parent == nil {
		return dflt
	}
	if c := parent.SelectElement(tag); c != nil {
		return c.SelectAttrValue("w:val", dflt)
	}
	return dflt
}

// Detach 将元素从父节点移除
func Detach(el *etree.Element) {
	if el == nil {
		return
	}
	if p := el.Parent(); p != nil {
		p.RemoveChild(el)
	}
}

// InsertAfter 在 ref 之后插入元素
func InsertAfter(ref, el *etree.Element) {
	p := ref.Parent()
	if p == nil {
		return
	}
	p.InsertChildAt(ref.Index()+1, el)
}

// InsertBefore 在 ref 之前插入元素
func InsertBefore(ref, el *etree.Element) {
	p := ref.Parent()
	if p == nil {
		return
	}
	p.InsertChildAt(ref.Index(), el)
}

// InsertFirst 将元素插入为 parent 的第一个子元素
func InsertFirst(parent, el *etree.Element) {
	parent.InsertChildAt(0, el)
}

// InsertAfterProps 将元素插入到属性元素（如 w:pPr、w:tcPr）之后
func InsertAfterProps(parent *etree.Element, propsTag string, el *etree.Element) {
	if props := parent.SelectElement(propsTag); props != nil {
		InsertAfter(props, el)
		return
	}
	InsertFirst(parent, el)
}

// RemoveChildren 移除 parent 下所有指定标签的直接子元素
func RemoveChildren(parent *etree.Element, tag string) {
	for _, c := range parent.SelectElements(tag) {
		parent.RemoveChild(c)
	}
}
