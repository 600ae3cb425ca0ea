package document

import (
	"strconv"
)

// BlockKind 块来源的正文元素类型
type BlockKind string

const (
	KindParagraph BlockKind = "paragraph"
	KindTable     BlockKind = "table"
	KindSDT       BlockKind = "sdt"
)

// 语义标签
const (
	TagBody     = "BODY"
	TagList     = "LIST"
	TagTitle    = "TITLE"
	TagSubtitle = "SUBTITLE"
	TagTOC      = "TOC"
	TagTable    = "TBL"
	TagSDT      = "SDT"
	TagOther    = "OTHER"
)

// 没有段落格式的块使用的样式键
const (
	StyleKeyTOC = "toc_default"
	StyleKeySDT = "sdt_default"
)

// HeadingTag 返回 n 级标题的语义标签（从 1 开始）
func HeadingTag(n int) string {
	return "H" + strconv.Itoa(n)
}

// Block 正文中一个可寻址的内容单元
type Block struct {
	ID              string    `json:"id"`
	Index           int       `json:"index"`
	Kind            BlockKind `json:"kind"`
	XML             string    `json:"xml"`
	Text            string    `json:"text"`
	StyleKey        string    `json:"style_key"`
	StyleID         string    `json:"style_id,omitempty"`
	SemanticTag     string    `json:"semantic_tag"`
	NumberingPrefix string    `json:"numbering_prefix,omitempty"`
	HasNonText      bool      `json:"has_non_text,omitempty"`

	// Runs 原文在各字符样式别名上的分布
	Runs []RunSegment `json:"runs,omitempty"`

	// 表格块
	TableAlias      string            `json:"table_alias,omitempty"`
	RowStyleAliases []string          `json:"row_style_aliases,omitempty"`
	CellStyleMap    map[string]string `json:"cell_style_map,omitempty"`
	Rows            []RowShape        `json:"rows,omitempty"`

	// 结构化标签块
	IsTOC          bool           `json:"is_toc,omitempty"`
	SDTAlias       string         `json:"sdt_alias,omitempty"`
	EntryCount     int            `json:"entry_count,omitempty"`
	EntryTexts     []string       `json:"entry_texts,omitempty"`
	TOCEntryLevels map[int]string `json:"toc_entry_levels,omitempty"`
}

// RunSegment 一个 run 的文本及其样式别名
type RunSegment struct {
	Text     string `json:"text"`
	RunStyle string `json:"run_style"`
}

// RowShape 表格一行的形状
type RowShape struct {
	Cells []CellShape `json:"cells"`
}

// CellShape 单元格中的段落
type CellShape struct {
	Paragraphs     int      `json:"paragraphs"`
	ParagraphTexts []string `json:"paragraph_texts,omitempty"`
	StyleKeys      []string `json:"style_keys,omitempty"`
}

// CellKey 生成 r 行 c 列的单元格样式表键
func CellKey(r, c int) string {
	return "r" + strconv.Itoa(r) + "c" + strconv.Itoa(c)
}

// ColumnCount 返回第一行的单元格数
func (b *Block) ColumnCount() int {
	if len(b.Rows) == 0 {
		return 0
	}
	return len(b.Rows[0].Cells)
}

// Cell 返回 (r, c) 单元格的形状
func (b *Block) Cell(r, c int) (CellShape, bool) {
	if r < 0 || r >= len(b.Rows) || c < 0 || c >= len(b.Rows[r].Cells) {
		return CellShape{}, false
	}
	return b.Rows[r].Cells[c], true
}

// RunStyleTemplate 带空内容槽的 run 格式
// RunXML 中的 w:t 都是空的，渲染时填充第一个
type RunStyleTemplate struct {
	Alias       string `json:"alias"`
	RPrKey      string `json:"rpr_key"`
	RunXML      string `json:"run_xml"`
	Description string `json:"description"`
}

// ParagraphStyleTemplate 一个样式键的段落属性与字符样式
type ParagraphStyleTemplate struct {
	StyleKey     string             `json:"style_key"`
	StyleID      string             `json:"style_id"`
	PPrXML       string             `json:"ppr_xml,omitempty"`
	RunTemplates []RunStyleTemplate `json:"run_templates"`
}

// Run 按别名查找 run 模板
func (t *ParagraphStyleTemplate) Run(alias string) (RunStyleTemplate, bool) {
	for _, r := range t.RunTemplates {
		if r.Alias == alias {
			return r, true
		}
	}
	return RunStyleTemplate{}, false
}

// FirstRun 返回第一个 run 模板
func (t *ParagraphStyleTemplate) FirstRun() (RunStyleTemplate, bool) {
	if len(t.RunTemplates) == 0 {
		return RunStyleTemplate{}, false
	}
	return t.RunTemplates[0], true
}

// TableStyleTemplate 表格外壳及其每一行、每个单元格的格式
type TableStyleTemplate struct {
	Alias    string        `json:"alias"`
	ShellXML string        `json:"shell_xml"`
	Rows     []RowTemplate `json:"rows"`
}

// RowTemplate 模板行的格式
type RowTemplate struct {
	RowAlias string         `json:"row_alias"`
	TrPrXML  string         `json:"tr_pr_xml,omitempty"`
	Cells    []CellTemplate `json:"cells"`
}

// CellTemplate 模板单元格的格式
type CellTemplate struct {
	CellAlias  string                   `json:"cell_alias"`
	Paragraphs []ParagraphStyleTemplate `json:"paragraphs"`
}

// RowByAlias 返回第一个带有该行别名的模板行
func (t *TableStyleTemplate) RowByAlias(alias string) (RowTemplate, bool) {
	for _, r := range t.Rows {
		if r.RowAlias == alias {
			return r, true
		}
	}
	return RowTemplate{}, false
}

// TOCStyleTemplate 目录某一级的格式
type TOCStyleTemplate struct {
	Alias        string             `json:"alias"`
	Fingerprint  string             `json:"fingerprint"`
	EntryXML     string             `json:"entry_xml"`
	StyleID      string             `json:"style_id,omitempty"`
	IndentLeft   int                `json:"indent_left"`
	Bold         bool               `json:"bold,omitempty"`
	RunTemplates []RunStyleTemplate `json:"run_templates"`
	Description  string             `json:"description"`
}

// Passthrough 既不是块也不是节属性的正文内容
// 包括其他元素、空白、注释与处理指令
// 原样输出在第 Before 个块之前
type Passthrough struct {
	Before int    `json:"before"`
	XML    string `json:"xml"`
}
