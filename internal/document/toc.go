package document

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/beevik/etree"
	"go.uber.org/zap"

	"github.com/nerdneilsfield/go-docx-editor/internal/wml"
)

// sdtPreviewLimit 单段落结构化标签内联预览的长度上限
const sdtPreviewLimit = 100

// IsTOC 判断结构化标签是否为目录
func IsTOC(sdt *etree.Element) bool {
	if sdtPr := sdt.SelectElement("w:sdtPr"); sdtPr != nil {
		if g := sdtPr.FindElement(".//w:docPartGallery"); g != nil {
			if strings.Contains(g.SelectAttrValue("w:val", ""), "Table of Contents") {
				return true
			}
		}
		if a := sdtPr.SelectElement("w:alias"); a != nil {
			if strings.Contains(strings.ToUpper(a.SelectAttrValue("w:val", "")), "TOC") {
				return true
			}
		}
	}
	for _, instr := range sdt.FindElements(".//w:instrText") {
		if strings.Contains(instr.Text(), "PAGEREF") {
			return true
		}
	}
	return false
}

// Entries 返回结构化标签的条目段落（sdtContent 的直接 w:p 子元素）
func Entries(sdt *etree.Element) []*etree.Element {
	content := sdt.SelectElement("w:sdtContent")
	if content == nil {
		return nil
	}
	return content.SelectElements("w:p")
}

// IndentLeft 返回段落的左缩进（twips）
func IndentLeft(p *etree.Element) int {
	ind := p.FindElement("./w:pPr/w:ind")
	if ind == nil {
		return 0
	}
	v, err := strconv.Atoi(ind.SelectAttrValue("w:left", "0"))
	if err != nil {
		return 0
	}
	return v
}

// tocLevelFingerprint 以边框、缩进和开头的加粗 run 识别目录级别
func tocLevelFingerprint(p *etree.Element) (fp string, indent int, bold bool) {
	indent = IndentLeft(p)

	var borders []string
	if pBdr := p.FindElement("./w:pPr/w:pBdr"); pBdr != nil {
		for _, c := range pBdr.ChildElements() {
			borders = append(borders, wml.Canonical(c))
		}
	}
	sort.Strings(borders)
	borderKey := "none"
	if len(borders) > 0 {
		borderKey = strings.Join(borders, ",")
	}

	if r := p.FindElement(".//w:r"); r != nil {
		if b := r.FindElement("./w:rPr/w:b"); b != nil {
			bold = wml.IsOn(b)
		}
	}

	fp = fmt.Sprintf("borders:%s|indent:%d", borderKey, indent)
	if bold {
		fp += "|bold:True"
	}
	return fp, indent, bold
}

// analyzeSDT 填充结构化标签字段并登记目录级别别名
func (s *Session) analyzeSDT(b *Block, sdt *etree.Element) {
	b.Kind = KindSDT
	b.SemanticTag = TagSDT
	b.StyleKey = StyleKeySDT
	b.SDTAlias = wml.Val(sdt.SelectElement("w:sdtPr"), "w:alias", "")

	entries := Entries(sdt)
	b.EntryCount = len(entries)
	for _, p := range entries {
		b.EntryTexts = append(b.EntryTexts, wml.JoinedText(p, " "))
	}
	b.Text = sdtText(b, sdt, entries)

	if !IsTOC(sdt) {
		return
	}
	b.IsTOC = true
	b.SemanticTag = TagTOC
	b.StyleKey = StyleKeyTOC
	b.TOCEntryLevels = make(map[int]string)

	for i, p := range entries {
		if strings.TrimSpace(wml.Text(p)) == "" {
			continue
		}
		fp, indent, bold := tocLevelFingerprint(p)
		tmpl, ok := s.tocIndex[fp]
		if !ok {
			n := len(s.tocs)
			tmpl = &TOCStyleTemplate{
				Alias:       "TL" + strconv.Itoa(n),
				Fingerprint: fp,
				EntryXML:    wml.Serialize(p),
				StyleID:     wml.Val(p.SelectElement("w:pPr"), "w:pStyle", ""),
				IndentLeft:  indent,
				Bold:        bold,
				Description: fmt.Sprintf("TOC Level %d (indent: %dtwips)", n+1, indent),
			}
			for _, r := range p.FindElements(".//w:r") {
				if !runHasText(r) {
					continue
				}
				key := RunKey(r)
				seen := false
				for _, rt := range tmpl.RunTemplates {
					if rt.RPrKey == key {
						seen = true
						break
					}
				}
				if !seen {
					tmpl.RunTemplates = append(tmpl.RunTemplates,
						newRunTemplate(r, "RS"+strconv.Itoa(len(tmpl.RunTemplates))))
				}
			}
			s.tocIndex[fp] = tmpl
			s.tocs = append(s.tocs, tmpl)
			s.aliasMap[tmpl.Alias] = tmpl.Alias
		}
		b.TOCEntryLevels[i] = tmpl.Alias
	}

	s.logger.Debug("analyzed table of contents",
		zap.String("block", b.ID),
		zap.Int("entries", b.EntryCount),
		zap.Int("levels", len(s.tocs)))
}

// sdtText 生成结构化标签的纯文本形式
func sdtText(b *Block, sdt *etree.Element, entries []*etree.Element) string {
	label := b.SDTAlias
	if label == "" {
		label = TagSDT
	}
	if len(entries) <= 1 {
		preview := []rune(wml.JoinedText(sdt, " "))
		if len(preview) > sdtPreviewLimit {
			preview = preview[:sdtPreviewLimit]
		}
		return fmt.Sprintf("[%s] %s", label, string(preview))
	}

	lines := []string{"[" + label + "]"}
	for i, p := range entries {
		if text := wml.Text(p); strings.TrimSpace(text) != "" {
			lines = append(lines, fmt.Sprintf("  [p%d] %s", i, text))
		}
	}
	return strings.Join(lines, "\n")
}
