package document

import (
	"sort"
	"strconv"
	"strings"

	"github.com/beevik/etree"

	"github.com/nerdneilsfield/go-docx-editor/internal/fingerprint"
	"github.com/nerdneilsfield/go-docx-editor/internal/wml"
)

// DefaultStyleID 段落未指定样式时使用
const DefaultStyleID = "Normal"

// defaultRunKey 没有 rPr 的 run 的键
const defaultRunKey = "default"

// StyleKey 计算段落的格式指纹
// 由 pStyle 值和除 rPr 外其余 pPr 子元素的键组成
func StyleKey(p *etree.Element) (key, styleID string) {
	pPr := p.SelectElement("w:pPr")
	styleID = wml.Val(pPr, "w:pStyle", DefaultStyleID)
	if styleID == "" {
		styleID = DefaultStyleID
	}
	rest := fingerprint.Key(wml.ChildNodes(pPr), "pStyle", "rPr")
	if rest == "" {
		return styleID, styleID
	}
	return styleID + "_" + rest, styleID
}

// RunKey 计算 run 的格式指纹
func RunKey(r *etree.Element) string {
	key := fingerprint.Key(wml.ChildNodes(r.SelectElement("w:rPr")))
	if key == "" {
		return defaultRunKey
	}
	return key
}

// runText 返回 run 中 w:t 子元素的文本
func runText(r *etree.Element) string {
	var sb strings.Builder
	for _, t := range r.SelectElements("w:t") {
		sb.WriteString(t.Text())
	}
	return sb.String()
}

// runHasText 判断 run 是否含有非空白文本
func runHasText(r *etree.Element) bool {
	return strings.TrimSpace(runText(r)) != ""
}

// newRunTemplate 保留 run 属性和一个空 w:t 作为内容槽
func newRunTemplate(r *etree.Element, alias string) RunStyleTemplate {
	tmpl := etree.NewElement(r.FullTag())
	for _, a := range r.Attr {
		tmpl.CreateAttr(a.FullKey(), a.Value)
	}
	if rPr := r.SelectElement("w:rPr"); rPr != nil {
		tmpl.AddChild(rPr.Copy())
	}
	t := tmpl.CreateElement("w:t")
	t.CreateAttr("xml:space", "preserve")

	return RunStyleTemplate{
		Alias:       alias,
		RPrKey:      RunKey(r),
		RunXML:      wml.Serialize(tmpl),
		Description: DescribeRun(r),
	}
}

// collectRunTemplates 把 p 中的文本 run 加入池，已有的键跳过
// 返回 p 的文本在池中各别名上的分布
func collectRunTemplates(p *etree.Element, pool *[]RunStyleTemplate) []RunSegment {
	var segments []RunSegment
	for _, r := range p.SelectElements("w:r") {
		if !runHasText(r) {
			continue
		}
		key := RunKey(r)
		alias := ""
		for _, existing := range *pool {
			if existing.RPrKey == key {
				alias = existing.Alias
				break
			}
		}
		if alias == "" {
			alias = "RS" + strconv.Itoa(len(*pool))
			*pool = append(*pool, newRunTemplate(r, alias))
		}
		segments = append(segments, RunSegment{Text: runText(r), RunStyle: alias})
	}
	return segments
}

// newParagraphTemplate 生成单个段落的模板
func newParagraphTemplate(p *etree.Element) ParagraphStyleTemplate {
	key, styleID := StyleKey(p)
	tmpl := ParagraphStyleTemplate{StyleKey: key, StyleID: styleID}
	if pPr := p.SelectElement("w:pPr"); pPr != nil {
		tmpl.PPrXML = wml.Serialize(pPr)
	}
	collectRunTemplates(p, &tmpl.RunTemplates)
	return tmpl
}

// DescribeRun 生成可读的 run 格式描述，如 "bold, size:28, font:Arial"
func DescribeRun(r *etree.Element) string {
	rPr := r.SelectElement("w:rPr")
	if rPr == nil {
		return defaultRunKey
	}

	children := rPr.ChildElements()
	sort.SliceStable(children, func(i, j int) bool {
		return children[i].FullTag() < children[j].FullTag()
	})

	var parts []string
	for _, c := range children {
		val := c.SelectAttrValue("w:val", "")
		switch c.Tag {
		case "b":
			if wml.IsOn(c) {
				parts = append(parts, "bold")
			}
		case "i":
			if wml.IsOn(c) {
				parts = append(parts, "italic")
			}
		case "u":
			parts = append(parts, "underline:"+c.SelectAttrValue("w:val", "single"))
		case "sz":
			parts = append(parts, "size:"+val)
		case "color":
			parts = append(parts, "color:"+val)
		case "rFonts":
			if f := c.SelectAttrValue("w:ascii", ""); f != "" {
				parts = append(parts, "font:"+f)
			} else if f := c.SelectAttrValue("w:eastAsia", ""); f != "" {
				parts = append(parts, "font:"+f)
			}
		case "highlight":
			parts = append(parts, "highlight:"+val)
		case "rStyle":
			parts = append(parts, "rStyle:"+val)
		case "szCs", "lang":
		default:
			if val != "" {
				parts = append(parts, c.Tag+":"+val)
			} else {
				parts = append(parts, c.Tag)
			}
		}
	}
	if len(parts) == 0 {
		return defaultRunKey
	}
	return strings.Join(parts, ", ")
}
