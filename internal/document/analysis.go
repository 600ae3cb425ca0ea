package document

import (
	"sort"
	"strconv"
	"strings"
)

// Analysis 一次文档快照的分析结果
// 块 id 与别名只对 SessionID 标识的快照有效
type Analysis struct {
	SessionID      string `json:"session_id"`
	SourceDigest   string `json:"source_digest,omitempty"`
	DocumentDigest string `json:"document_digest"`

	Blocks             []*Block                  `json:"blocks"`
	ParagraphTemplates []*ParagraphStyleTemplate `json:"paragraph_templates"`
	TableTemplates     []*TableStyleTemplate     `json:"table_templates"`
	TOCTemplates       []*TOCStyleTemplate       `json:"toc_templates"`

	AliasMap     map[string]string `json:"alias_map"`
	StyleAliases map[string]string `json:"style_aliases"`
	Text         string            `json:"text"`

	SectionXML  string        `json:"section_xml,omitempty"`
	Passthrough []Passthrough `json:"passthrough,omitempty"`
	// 节属性之后、</w:body> 之前的原始内容
	Trailer string `json:"trailer,omitempty"`

	// 下一个可用的书签 id 与 _Toc 锚点编号
	BookmarkSeed int `json:"bookmark_seed"`
	AnchorSeed   int `json:"anchor_seed"`
}

// Block 按 id 查找块
func (a *Analysis) Block(id string) (*Block, bool) {
	if !strings.HasPrefix(id, "b") {
		return nil, false
	}
	n, err := strconv.Atoi(id[1:])
	if err != nil {
		return nil, false
	}
	return a.BlockAt(n)
}

// BlockAt 返回第 n 个块
func (a *Analysis) BlockAt(n int) (*Block, bool) {
	if n < 0 || n >= len(a.Blocks) {
		return nil, false
	}
	return a.Blocks[n], true
}

// ParagraphTemplate 按样式键查找段落模板
// 正文段落的模板优先于表格单元格内捕获的模板
func (a *Analysis) ParagraphTemplate(key string) (*ParagraphStyleTemplate, bool) {
	for _, t := range a.ParagraphTemplates {
		if t.StyleKey == key {
			return t, true
		}
	}
	for _, tt := range a.TableTemplates {
		for _, row := range tt.Rows {
			for _, cell := range row.Cells {
				for i := range cell.Paragraphs {
					if cell.Paragraphs[i].StyleKey == key {
						return &cell.Paragraphs[i], true
					}
				}
			}
		}
	}
	return nil, false
}

// FirstParagraphTemplate 按文档顺序返回第一个段落模板
func (a *Analysis) FirstParagraphTemplate() (*ParagraphStyleTemplate, bool) {
	if len(a.ParagraphTemplates) == 0 {
		return nil, false
	}
	return a.ParagraphTemplates[0], true
}

// TableTemplate 按别名查找表格模板
func (a *Analysis) TableTemplate(alias string) (*TableStyleTemplate, bool) {
	for _, t := range a.TableTemplates {
		if t.Alias == alias {
			return t, true
		}
	}
	return nil, false
}

// TOCTemplate 按别名查找目录级别模板
func (a *Analysis) TOCTemplate(alias string) (*TOCStyleTemplate, bool) {
	for _, t := range a.TOCTemplates {
		if t.Alias == alias {
			return t, true
		}
	}
	return nil, false
}

// ResolveStyleAlias 把 S 别名解析为样式键
func (a *Analysis) ResolveStyleAlias(alias string) (string, bool) {
	if AliasFamily(alias) != FamilyStyle {
		return "", false
	}
	key, ok := a.AliasMap[alias]
	return key, ok
}

// StyleAlias 返回样式键对应的 S 别名
func (a *Analysis) StyleAlias(key string) (string, bool) {
	alias, ok := a.StyleAliases[key]
	return alias, ok
}

// HasAlias 判断别名存在且属于指定族
func (a *Analysis) HasAlias(family, alias string) bool {
	if AliasFamily(alias) != family {
		return false
	}
	_, ok := a.AliasMap[alias]
	return ok
}

// Aliases 按自然顺序返回某一族的全部别名（S2 在 S10 之前）
func (a *Analysis) Aliases(family string) []string {
	var out []string
	for alias := range a.AliasMap {
		if AliasFamily(alias) == family {
			out = append(out, alias)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		ni, _ := strconv.Atoi(out[i][len(family):])
		nj, _ := strconv.Atoi(out[j][len(family):])
		return ni < nj
	})
	return out
}

// 别名族
const (
	FamilyStyle    = "S"
	FamilyTable    = "T"
	FamilyRow      = "RS"
	FamilyCell     = "CS"
	FamilyTOCLevel = "TL"
)

// AliasFamily 返回别名的族前缀，格式错误时返回空串
func AliasFamily(alias string) string {
	for _, family := range []string{FamilyRow, FamilyCell, FamilyTOCLevel, FamilyStyle, FamilyTable} {
		rest, ok := strings.CutPrefix(alias, family)
		if !ok || rest == "" {
			continue
		}
		if _, err := strconv.Atoi(rest); err == nil && !strings.HasPrefix(rest, "-") && !strings.HasPrefix(rest, "+") {
			return family
		}
	}
	return ""
}
