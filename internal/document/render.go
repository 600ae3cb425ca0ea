package document

import (
	"fmt"

	"github.com/beevik/etree"

	"github.com/nerdneilsfield/go-docx-editor/internal/coord"
	"github.com/nerdneilsfield/go-docx-editor/internal/wml"
)

// Render 把文本填入 run 模板的内容槽
// 第一个 w:t 写入文本，其余 w:t 移除
func (t RunStyleTemplate) Render(text string) (*etree.Element, error) {
	r, err := wml.ParseFragment(t.RunXML)
	if err != nil {
		return nil, fmt.Errorf("failed to parse run template %s: %w", t.Alias, err)
	}
	slots := r.SelectElements("w:t")
	if len(slots) == 0 {
		slots = append(slots, r.CreateElement("w:t"))
	}
	for _, extra := range slots[1:] {
		r.RemoveChild(extra)
	}
	fillSlot(slots[0], text)
	return r, nil
}

// BareRun 生成不带属性的 run
func BareRun(text string) *etree.Element {
	r := etree.NewElement("w:r")
	fillSlot(r.CreateElement("w:t"), text)
	return r
}

func fillSlot(t *etree.Element, text string) {
	t.SetText(text)
	t.CreateAttr("xml:space", "preserve")
}

// NewParagraph 由序列化的 pPr 和现成的 run 生成段落
func NewParagraph(pPrXML string, runs ...*etree.Element) (*etree.Element, error) {
	p := etree.NewElement("w:p")
	if pPrXML != "" {
		pPr, err := wml.ParseFragment(pPrXML)
		if err != nil {
			return nil, fmt.Errorf("failed to parse paragraph properties: %w", err)
		}
		p.AddChild(pPr)
	}
	for _, r := range runs {
		p.AddChild(r)
	}
	return p, nil
}

// Render 用模板的段落属性和第一个字符样式生成段落
func (t *ParagraphStyleTemplate) Render(text string) (*etree.Element, error) {
	run := BareRun(text)
	if first, ok := t.FirstRun(); ok {
		var err error
		if run, err = first.Render(text); err != nil {
			return nil, err
		}
	}
	return NewParagraph(t.PPrXML, run)
}

// Element 解析块的原始 XML
func (b *Block) Element() (*etree.Element, error) {
	el, err := wml.ParseFragment(b.XML)
	if err != nil {
		return nil, newError("parse", b.ID, fmt.Errorf("%w: %v", ErrMalformedXML, err))
	}
	return el, nil
}

// ParagraphAt 在块的新解析副本中返回 c 指向的段落
// c 只能是段落块的块坐标或表格的单元格段落坐标
func (b *Block) ParagraphAt(c coord.Coord) (*etree.Element, error) {
	el, err := b.Element()
	if err != nil {
		return nil, err
	}
	switch {
	case c.Kind == coord.KindBlock && b.Kind == KindParagraph:
		return el, nil
	case c.Kind == coord.KindCellParagraph && b.Kind == KindTable:
		rows := el.SelectElements("w:tr")
		if c.Row >= len(rows) {
			break
		}
		cells := rows[c.Row].SelectElements("w:tc")
		if c.Col >= len(cells) {
			break
		}
		paras := cells[c.Col].SelectElements("w:p")
		if c.Paragraph >= len(paras) {
			break
		}
		return paras[c.Paragraph], nil
	case c.Kind == coord.KindEntry && b.Kind == KindSDT:
		entries := Entries(el)
		if c.Entry >= len(entries) {
			break
		}
		return entries[c.Entry], nil
	}
	return nil, newError("locate", c.String(), ErrNotFound)
}

// RunPool 收集单个段落的字符样式（从 RS0 编号）
// 以及文本在这些样式上的分布
func RunPool(p *etree.Element) ([]RunStyleTemplate, []RunSegment) {
	var pool []RunStyleTemplate
	segments := collectRunTemplates(p, &pool)
	return pool, segments
}

// HasNonTextElement 判断元素是否嵌有图片等非文本对象
func HasNonTextElement(el *etree.Element) bool {
	return wml.HasNonText(wml.Serialize(el))
}
