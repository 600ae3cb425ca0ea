package assembler

import (
	"fmt"
	"strings"

	"github.com/beevik/etree"

	"github.com/nerdneilsfield/go-docx-editor/internal/document"
	"github.com/nerdneilsfield/go-docx-editor/internal/edits"
	"github.com/nerdneilsfield/go-docx-editor/internal/wml"
)

// 替换段落时保留的书签标记
var bookmarkTags = []string{"w:bookmarkStart", "w:bookmarkEnd"}

// template 返回样式键对应的段落模板，找不到时使用第一个模板
func (s *session) template(key string) (*document.ParagraphStyleTemplate, error) {
	if t, ok := s.a.ParagraphTemplate(key); ok {
		return t, nil
	}
	if t, ok := s.a.FirstParagraphTemplate(); ok {
		return t, nil
	}
	return nil, fmt.Errorf("%w: paragraph style %q", ErrMissingTemplate, key)
}

// replaceParagraph 替换块级段落，保留原有段落属性
func (s *session) replaceParagraph(b *document.Block, spec edits.BlockSpec) ([]string, error) {
	p, err := b.Element()
	if err != nil {
		return nil, err
	}

	if spec.InPlace {
		substituteText(p, spec.Content)
		return []string{wml.Serialize(p)}, nil
	}

	pPr := p.SelectElement("w:pPr")
	var markers []*etree.Element
	for _, c := range p.ChildElements() {
		for _, tag := range bookmarkTags {
			if c.FullTag() == tag {
				markers = append(markers, c)
			}
		}
	}

	// 段落属性（w14:paraId 等）与书签只保留在第一个段落上
	build := func(runs []*etree.Element, first bool) *etree.Element {
		np := etree.NewElement("w:p")
		if first {
			for _, a := range p.Attr {
				np.CreateAttr(a.FullKey(), a.Value)
			}
		}
		if pPr != nil {
			np.AddChild(pPr.Copy())
		}
		if first {
			for _, m := range markers {
				np.AddChild(m.Copy())
			}
		}
		for _, r := range runs {
			np.AddChild(r)
		}
		return np
	}

	if len(spec.RunXML) > 0 {
		runs, err := parseRuns(spec.RunXML)
		if err != nil {
			return nil, err
		}
		return []string{wml.Serialize(build(runs, true))}, nil
	}

	tmpl, err := s.template(spec.StyleKey)
	if err != nil {
		return nil, err
	}
	var out []string
	for i, line := range splitLines(spec.Content) {
		r, err := renderLine(tmpl, line)
		if err != nil {
			return nil, err
		}
		out = append(out, wml.Serialize(build([]*etree.Element{r}, i == 0)))
	}
	return out, nil
}

// insertParagraphs 生成块级插入的段落，无表格分隔符的多行内容逐行成段
func (s *session) insertParagraphs(spec edits.BlockSpec) ([]string, error) {
	tmpl, err := s.template(spec.StyleKey)
	if err != nil {
		return nil, err
	}

	if len(spec.RunXML) > 0 {
		runs, err := parseRuns(spec.RunXML)
		if err != nil {
			return nil, err
		}
		p, err := document.NewParagraph(tmpl.PPrXML, runs...)
		if err != nil {
			return nil, err
		}
		return []string{wml.Serialize(p)}, nil
	}

	lines := []string{spec.Content}
	if strings.Contains(spec.Content, "\n") && !strings.Contains(spec.Content, "|") {
		lines = nonBlankLines(spec.Content)
	}
	var out []string
	for _, line := range lines {
		r, err := renderLine(tmpl, line)
		if err != nil {
			return nil, err
		}
		p, err := document.NewParagraph(tmpl.PPrXML, r)
		if err != nil {
			return nil, err
		}
		out = append(out, wml.Serialize(p))
	}
	return out, nil
}

// renderLine 用模板的第一个字符样式渲染一行文本
func renderLine(tmpl *document.ParagraphStyleTemplate, line string) (*etree.Element, error) {
	if first, ok := tmpl.FirstRun(); ok {
		return first.Render(line)
	}
	return document.BareRun(line), nil
}

func parseRuns(runXML []string) ([]*etree.Element, error) {
	runs := make([]*etree.Element, 0, len(runXML))
	for _, x := range runXML {
		r, err := wml.ParseFragment(x)
		if err != nil {
			return nil, fmt.Errorf("failed to parse run: %w", err)
		}
		runs = append(runs, r)
	}
	return runs, nil
}

// splitLines 按换行拆分，至少返回一行
func splitLines(text string) []string {
	if !strings.Contains(text, "\n") {
		return []string{text}
	}
	lines := nonBlankLines(text)
	if len(lines) == 0 {
		return []string{""}
	}
	return lines
}

func nonBlankLines(text string) []string {
	var lines []string
	for _, l := range strings.Split(text, "\n") {
		if strings.TrimSpace(l) != "" {
			lines = append(lines, strings.TrimSpace(l))
		}
	}
	return lines
}

// setSlot 写入文本并保留空白
func setSlot(t *etree.Element, text string) {
	t.SetText(text)
	t.CreateAttr("xml:space", "preserve")
}

// substituteText 原位替换：第一个 w:t 写入文本，其余清空
// 段落没有 w:t 时补一个字符
func substituteText(p *etree.Element, text string) {
	first := true
	for _, r := range p.FindElements(".//w:r") {
		for _, t := range r.SelectElements("w:t") {
			if first {
				setSlot(t, text)
				first = false
				continue
			}
			t.SetText("")
		}
	}
	if !first {
		return
	}
	if r := p.FindElement(".//w:r"); r != nil {
		setSlot(r.CreateElement("w:t"), text)
		return
	}
	p.AddChild(document.BareRun(text))
}

// cloneWithText 复制段落并只保留第一个字符，写入新文本
func cloneWithText(src *etree.Element, text string) *etree.Element {
	p := src.Copy()
	runs := p.SelectElements("w:r")
	if len(runs) == 0 {
		p.AddChild(document.BareRun(text))
		return p
	}
	for _, r := range runs[1:] {
		p.RemoveChild(r)
	}
	ts := runs[0].SelectElements("w:t")
	if len(ts) == 0 {
		setSlot(runs[0].CreateElement("w:t"), text)
		return p
	}
	setSlot(ts[0], text)
	for _, t := range ts[1:] {
		runs[0].RemoveChild(t)
	}
	return p
}

// fillLines 第一行原位写入段落，其余行复制段落依次插在其后
func fillLines(p *etree.Element, text string) {
	lines := splitLines(text)
	substituteText(p, lines[0])
	ref := p
	for _, line := range lines[1:] {
		np := cloneWithText(p, line)
		wml.InsertAfter(ref, np)
		ref = np
	}
}
