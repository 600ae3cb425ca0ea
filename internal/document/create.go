package document

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/beevik/etree"
	"go.uber.org/zap"

	"github.com/nerdneilsfield/go-docx-editor/internal/wml"
)

// 内容条目类型
const (
	ItemHeading      = "heading"
	ItemParagraph    = "paragraph"
	ItemBulletList   = "bullet_list"
	ItemNumberedList = "numbered_list"
	ItemTable        = "table"
)

// 新建文档的默认字体与字号（半磅）
const (
	DefaultFont     = "Calibri"
	DefaultFontSize = 22
)

// CorePropertiesPart 文档属性部件
const CorePropertiesPart = "docProps/core.xml"

// ContentItem 新建文档中的一个内容条目
type ContentItem struct {
	Type    string     `json:"type"`
	Level   int        `json:"level,omitempty"`
	Text    string     `json:"text,omitempty"`
	Items   []string   `json:"items,omitempty"`
	Headers []string   `json:"headers,omitempty"`
	Rows    [][]string `json:"rows,omitempty"`
}

// Properties 文档属性与默认字体
type Properties struct {
	Title    string `json:"title,omitempty"`
	Subject  string `json:"subject,omitempty"`
	Author   string `json:"author,omitempty"`
	Font     string `json:"font,omitempty"`
	FontSize int    `json:"font_size,omitempty"`
}

// Content 新建文档的内容描述
type Content struct {
	Content    []ContentItem `json:"content"`
	Properties Properties    `json:"properties"`
}

// ParseContent 按格式（json 或 toml）解析内容描述
func ParseContent(data []byte, format string) (*Content, error) {
	switch strings.ToLower(format) {
	case "toml":
		var raw map[string]interface{}
		if _, err := toml.Decode(string(data), &raw); err != nil {
			return nil, fmt.Errorf("failed to parse toml content: %w", err)
		}
		converted, err := json.Marshal(raw)
		if err != nil {
			return nil, fmt.Errorf("failed to convert toml content: %w", err)
		}
		data = converted
	case "json", "":
	default:
		return nil, fmt.Errorf("unsupported content format: %s", format)
	}

	var c Content
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("failed to parse content: %w", err)
	}
	return &c, nil
}

// LoadContent 从文件加载内容描述，格式由扩展名决定
func LoadContent(path string) (*Content, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, newError("load content", path, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to read content file: %w", err)
	}
	return ParseContent(data, strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), "."))
}

// CreateResult 新建文档的摘要
type CreateResult struct {
	Output  string   `json:"output"`
	Blocks  int      `json:"blocks"`
	Skipped []string `json:"skipped,omitempty"`
	Bytes   int      `json:"bytes"`
}

// Creator 根据内容描述生成新的 DOCX 包
type Creator struct {
	logger     *zap.Logger
	tableWidth int
	now        func() time.Time
}

// NewCreator 创建 Creator，tableWidth 为新表格的总宽（dxa）
func NewCreator(logger *zap.Logger, tableWidth int) *Creator {
	if logger == nil {
		logger = zap.NewNop()
	}
	if tableWidth <= 0 {
		tableWidth = 9000
	}
	return &Creator{logger: logger, tableWidth: tableWidth, now: time.Now}
}

// Create 生成文档并原子写入 output
func (c *Creator) Create(ctx context.Context, content *Content, output string) (*CreateResult, error) {
	data, result, err := c.Build(ctx, content)
	if err != nil {
		return nil, err
	}
	if err := WriteFileAtomic(output, data, 0o644); err != nil {
		return nil, fmt.Errorf("failed to write %s: %w", output, err)
	}
	result.Output = output
	c.logger.Info("created document",
		zap.String("output", output),
		zap.Int("blocks", result.Blocks),
		zap.Int("bytes", result.Bytes))
	return result, nil
}

// Build 返回 DOCX 字节，不写文件
func (c *Creator) Build(ctx context.Context, content *Content) ([]byte, *CreateResult, error) {
	props := content.Properties
	if props.Font == "" {
		props.Font = DefaultFont
	}
	if props.FontSize <= 0 {
		props.FontSize = DefaultFontSize
	}

	b := &bodyBuilder{body: etree.NewElement("w:body"), tableWidth: c.tableWidth}
	result := &CreateResult{}
	for i, item := range content.Content {
		if err := ctx.Err(); err != nil {
			return nil, nil, err
		}
		if !b.add(item) {
			c.logger.Warn("skipping unknown content item",
				zap.Int("index", i),
				zap.String("type", item.Type))
			result.Skipped = append(result.Skipped, item.Type)
		}
	}
	result.Blocks = len(b.body.ChildElements())
	b.body.AddChild(sectionProperties())

	parts := []struct {
		name string
		data string
	}{
		{ContentTypesPart, newContentTypes},
		{"_rels/.rels", newPackageRels},
		{DocumentPart, documentXML(b.body)},
		{"word/_rels/document.xml.rels", newDocumentRels},
		{StylesPart, stylesXML(props.Font, props.FontSize)},
		{NumberingPart, numberingXML(b.numbered)},
		{SettingsPart, newSettings},
		{CorePropertiesPart, corePropertiesXML(props, c.now().UTC())},
	}

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	modified := c.now()
	for _, p := range parts {
		w, err := zw.CreateHeader(&zip.FileHeader{Name: p.name, Method: zip.Deflate, Modified: modified})
		if err != nil {
			return nil, nil, fmt.Errorf("failed to add %s: %w", p.name, err)
		}
		if _, err := w.Write([]byte(p.data)); err != nil {
			return nil, nil, fmt.Errorf("failed to write %s: %w", p.name, err)
		}
	}
	if err := zw.Close(); err != nil {
		return nil, nil, fmt.Errorf("failed to finish package: %w", err)
	}
	result.Bytes = buf.Len()
	return buf.Bytes(), result, nil
}

// bodyBuilder 逐条生成正文元素
type bodyBuilder struct {
	body       *etree.Element
	tableWidth int
	// 每个编号列表单独一个 numId，编号从 1 开始
	numbered int
}

// add 追加一个条目，未知类型返回 false
func (b *bodyBuilder) add(item ContentItem) bool {
	switch item.Type {
	case ItemHeading:
		level := item.Level
		if level < 1 {
			level = 1
		}
		if level > 6 {
			level = 6
		}
		b.body.AddChild(newTextParagraph("Heading"+strconv.Itoa(level), nil, item.Text, false))
	case ItemParagraph:
		b.body.AddChild(newTextParagraph("", nil, item.Text, false))
	case ItemBulletList:
		for _, text := range item.Items {
			b.body.AddChild(newTextParagraph("ListBullet", numPr(bulletNumID), text, false))
		}
	case ItemNumberedList:
		b.numbered++
		id := firstNumberedID + b.numbered - 1
		for _, text := range item.Items {
			b.body.AddChild(newTextParagraph("ListNumber", numPr(id), text, false))
		}
	case ItemTable:
		if tbl := b.table(item.Headers, item.Rows); tbl != nil {
			b.body.AddChild(tbl)
			// 表格后保留一个空段落，避免两个表格相邻时被合并
			b.body.CreateElement("w:p")
		}
	default:
		return false
	}
	return true
}

func (b *bodyBuilder) table(headers []string, rows [][]string) *etree.Element {
	n := len(headers)
	for _, r := range rows {
		if len(r) > n {
			n = len(r)
		}
	}
	if n == 0 {
		return nil
	}
	widths := make([]int, n)
	for i := range widths {
		widths[i] = b.tableWidth / n
	}
	widths[n-1] += b.tableWidth - widths[0]*n

	tbl := etree.NewElement("w:tbl")
	tblPr := tbl.CreateElement("w:tblPr")
	tblPr.CreateElement("w:tblStyle").CreateAttr("w:val", "TableGrid")
	tblW := tblPr.CreateElement("w:tblW")
	tblW.CreateAttr("w:w", strconv.Itoa(b.tableWidth))
	tblW.CreateAttr("w:type", "dxa")
	look := tblPr.CreateElement("w:tblLook")
	look.CreateAttr("w:val", "04A0")
	look.CreateAttr("w:firstRow", "1")
	look.CreateAttr("w:noVBand", "1")
	grid := tbl.CreateElement("w:tblGrid")
	for _, w := range widths {
		grid.CreateElement("w:gridCol").CreateAttr("w:w", strconv.Itoa(w))
	}

	if len(headers) > 0 {
		tr := tbl.CreateElement("w:tr")
		tr.CreateElement("w:trPr").CreateElement("w:tblHeader")
		addCells(tr, headers, widths, true)
	}
	for _, r := range rows {
		addCells(tbl.CreateElement("w:tr"), r, widths, false)
	}
	return tbl
}

func addCells(tr *etree.Element, texts []string, widths []int, bold bool) {
	for c, w := range widths {
		text := ""
		if c < len(texts) {
			text = texts[c]
		}
		tc := tr.CreateElement("w:tc")
		tcW := tc.CreateElement("w:tcPr").CreateElement("w:tcW")
		tcW.CreateAttr("w:w", strconv.Itoa(w))
		tcW.CreateAttr("w:type", "dxa")
		tc.AddChild(newTextParagraph("", nil, text, bold))
	}
}

// newTextParagraph 生成只含一个文本 run 的段落
func newTextParagraph(styleID string, num *etree.Element, text string, bold bool) *etree.Element {
	p := etree.NewElement("w:p")
	if styleID != "" || num != nil {
		pPr := p.CreateElement("w:pPr")
		if styleID != "" {
			pPr.CreateElement("w:pStyle").CreateAttr("w:val", styleID)
		}
		if num != nil {
			pPr.AddChild(num)
		}
	}
	r := p.CreateElement("w:r")
	if bold {
		rPr := r.CreateElement("w:rPr")
		rPr.CreateElement("w:b")
		rPr.CreateElement("w:bCs")
	}
	wml.SetText(r.CreateElement("w:t"), text)
	return p
}

const (
	bulletNumID      = 1
	firstNumberedID  = 2
	bulletAbstractID = 0
	decimalAbstract  = 1
)

func numPr(numID int) *etree.Element {
	el := etree.NewElement("w:numPr")
	el.CreateElement("w:ilvl").CreateAttr("w:val", "0")
	el.CreateElement("w:numId").CreateAttr("w:val", strconv.Itoa(numID))
	return el
}

func sectionProperties() *etree.Element {
	sect := etree.NewElement("w:sectPr")
	pgSz := sect.CreateElement("w:pgSz")
	pgSz.CreateAttr("w:w", "12240")
	pgSz.CreateAttr("w:h", "15840")
	pgMar := sect.CreateElement("w:pgMar")
	for _, kv := range [][2]string{
		{"w:top", "1440"}, {"w:right", "1440"}, {"w:bottom", "1440"}, {"w:left", "1440"},
		{"w:header", "720"}, {"w:footer", "720"}, {"w:gutter", "0"},
	} {
		pgMar.CreateAttr(kv[0], kv[1])
	}
	sect.CreateElement("w:cols").CreateAttr("w:space", "720")
	return sect
}

func newDocument(root *etree.Element) string {
	doc := etree.NewDocument()
	doc.CreateProcInst("xml", `version="1.0" encoding="UTF-8" standalone="yes"`)
	doc.SetRoot(root)
	s, _ := doc.WriteToString()
	return s
}

func documentXML(body *etree.Element) string {
	root := etree.NewElement("w:document")
	root.CreateAttr("xmlns:w", wml.Namespace)
	root.CreateAttr("xmlns:r", "http://schemas.openxmlformats.org/officeDocument/2006/relationships")
	root.AddChild(body)
	return newDocument(root)
}

// stylesXML 生成 Normal、Heading1-6、ListBullet、ListNumber 与表格样式
func stylesXML(font string, size int) string {
	root := etree.NewElement("w:styles")
	root.CreateAttr("xmlns:w", wml.Namespace)

	fonts := func(rPr *etree.Element) {
		rf := rPr.CreateElement("w:rFonts")
		for _, k := range []string{"w:ascii", "w:hAnsi", "w:eastAsia", "w:cs"} {
			rf.CreateAttr(k, font)
		}
	}
	sized := func(rPr *etree.Element, sz int) {
		rPr.CreateElement("w:sz").CreateAttr("w:val", strconv.Itoa(sz))
		rPr.CreateElement("w:szCs").CreateAttr("w:val", strconv.Itoa(sz))
	}
	style := func(typ, id, name, basedOn string) *etree.Element {
		s := root.CreateElement("w:style")
		s.CreateAttr("w:type", typ)
		s.CreateAttr("w:styleId", id)
		s.CreateElement("w:name").CreateAttr("w:val", name)
		if basedOn != "" {
			s.CreateElement("w:basedOn").CreateAttr("w:val", basedOn)
		}
		return s
	}

	defaults := root.CreateElement("w:docDefaults")
	rPr := defaults.CreateElement("w:rPrDefault").CreateElement("w:rPr")
	fonts(rPr)
	sized(rPr, size)
	spacing := defaults.CreateElement("w:pPrDefault").CreateElement("w:pPr").CreateElement("w:spacing")
	spacing.CreateAttr("w:after", "160")
	spacing.CreateAttr("w:line", "259")
	spacing.CreateAttr("w:lineRule", "auto")

	normal := style("paragraph", "Normal", "Normal", "")
	normal.CreateAttr("w:default", "1")
	normal.CreateElement("w:qFormat")
	nr := normal.CreateElement("w:rPr")
	fonts(nr)
	sized(nr, size)

	for level := 1; level <= 6; level++ {
		h := style("paragraph", "Heading"+strconv.Itoa(level), "heading "+strconv.Itoa(level), "Normal")
		h.CreateElement("w:next").CreateAttr("w:val", "Normal")
		h.CreateElement("w:qFormat")
		pPr := h.CreateElement("w:pPr")
		pPr.CreateElement("w:keepNext")
		pPr.CreateElement("w:keepLines")
		sp := pPr.CreateElement("w:spacing")
		sp.CreateAttr("w:before", "240")
		sp.CreateAttr("w:after", "60")
		pPr.CreateElement("w:outlineLvl").CreateAttr("w:val", strconv.Itoa(level-1))
		hr := h.CreateElement("w:rPr")
		fonts(hr)
		hr.CreateElement("w:b")
		hr.CreateElement("w:bCs")
		// Heading1 28 半磅，逐级减 2
		sized(hr, 30-2*level)
	}

	for _, l := range []struct {
		id, name string
		numID    int
	}{
		{"ListBullet", "List Bullet", bulletNumID},
		{"ListNumber", "List Number", firstNumberedID},
	} {
		s := style("paragraph", l.id, l.name, "Normal")
		s.CreateElement("w:qFormat")
		pPr := s.CreateElement("w:pPr")
		pPr.CreateElement("w:numPr").CreateElement("w:numId").CreateAttr("w:val", strconv.Itoa(l.numID))
		ind := pPr.CreateElement("w:ind")
		ind.CreateAttr("w:left", "720")
		ind.CreateAttr("w:hanging", "360")
	}

	tn := style("table", "TableNormal", "Normal Table", "")
	tn.CreateAttr("w:default", "1")
	mar := tn.CreateElement("w:tblPr").CreateElement("w:tblCellMar")
	for _, side := range []struct{ tag, w string }{
		{"w:top", "0"}, {"w:left", "108"}, {"w:bottom", "0"}, {"w:right", "108"},
	} {
		m := mar.CreateElement(side.tag)
		m.CreateAttr("w:w", side.w)
		m.CreateAttr("w:type", "dxa")
	}

	grid := style("table", "TableGrid", "Table Grid", "TableNormal")
	borders := grid.CreateElement("w:tblPr").CreateElement("w:tblBorders")
	for _, side := range []string{"w:top", "w:left", "w:bottom", "w:right", "w:insideH", "w:insideV"} {
		bd := borders.CreateElement(side)
		bd.CreateAttr("w:val", "single")
		bd.CreateAttr("w:sz", "4")
		bd.CreateAttr("w:space", "0")
		bd.CreateAttr("w:color", "auto")
	}
	return newDocument(root)
}

// numberingXML 生成项目符号定义与 numbered 个从 1 重新开始的编号实例
func numberingXML(numbered int) string {
	root := etree.NewElement("w:numbering")
	root.CreateAttr("xmlns:w", wml.Namespace)

	abstract := func(id int, numFmt, text string) {
		a := root.CreateElement("w:abstractNum")
		a.CreateAttr("w:abstractNumId", strconv.Itoa(id))
		a.CreateElement("w:multiLevelType").CreateAttr("w:val", "hybridMultilevel")
		lvl := a.CreateElement("w:lvl")
		lvl.CreateAttr("w:ilvl", "0")
		lvl.CreateElement("w:start").CreateAttr("w:val", "1")
		lvl.CreateElement("w:numFmt").CreateAttr("w:val", numFmt)
		lvl.CreateElement("w:lvlText").CreateAttr("w:val", text)
		lvl.CreateElement("w:lvlJc").CreateAttr("w:val", "left")
		ind := lvl.CreateElement("w:pPr").CreateElement("w:ind")
		ind.CreateAttr("w:left", "720")
		ind.CreateAttr("w:hanging", "360")
	}
	abstract(bulletAbstractID, "bullet", "•")
	abstract(decimalAbstract, "decimal", "%1.")

	num := func(id, abstractID int, restart bool) {
		n := root.CreateElement("w:num")
		n.CreateAttr("w:numId", strconv.Itoa(id))
		n.CreateElement("w:abstractNumId").CreateAttr("w:val", strconv.Itoa(abstractID))
		if restart {
			o := n.CreateElement("w:lvlOverride")
			o.CreateAttr("w:ilvl", "0")
			o.CreateElement("w:startOverride").CreateAttr("w:val", "1")
		}
	}
	num(bulletNumID, bulletAbstractID, false)
	// ListNumber 样式引用 firstNumberedID，即使没有编号列表也要定义
	if numbered < 1 {
		numbered = 1
	}
	for i := 0; i < numbered; i++ {
		num(firstNumberedID+i, decimalAbstract, i > 0)
	}
	return newDocument(root)
}

func corePropertiesXML(props Properties, created time.Time) string {
	root := etree.NewElement("cp:coreProperties")
	root.CreateAttr("xmlns:cp", "http://schemas.openxmlformats.org/package/2006/metadata/core-properties")
	root.CreateAttr("xmlns:dc", "http://purl.org/dc/elements/1.1/")
	root.CreateAttr("xmlns:dcterms", "http://purl.org/dc/terms/")
	root.CreateAttr("xmlns:xsi", "http://www.w3.org/2001/XMLSchema-instance")
	for _, kv := range [][2]string{
		{"dc:title", props.Title},
		{"dc:subject", props.Subject},
		{"dc:creator", props.Author},
	} {
		if kv[1] != "" {
			root.CreateElement(kv[0]).SetText(kv[1])
		}
	}
	for _, tag := range []string{"dcterms:created", "dcterms:modified"} {
		el := root.CreateElement(tag)
		el.CreateAttr("xsi:type", "dcterms:W3CDTF")
		el.SetText(created.Format(time.RFC3339))
	}
	return newDocument(root)
}

const newContentTypes = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<Types xmlns="http://schemas.openxmlformats.org/package/2006/content-types">` +
	`<Default Extension="rels" ContentType="application/vnd.openxmlformats-package.relationships+xml"/>` +
	`<Default Extension="xml" ContentType="application/xml"/>` +
	`<Override PartName="/word/document.xml" ContentType="application/vnd.openxmlformats-officedocument.wordprocessingml.document.main+xml"/>` +
	`<Override PartName="/word/styles.xml" ContentType="application/vnd.openxmlformats-officedocument.wordprocessingml.styles+xml"/>` +
	`<Override PartName="/word/numbering.xml" ContentType="application/vnd.openxmlformats-officedocument.wordprocessingml.numbering+xml"/>` +
	`<Override PartName="/word/settings.xml" ContentType="application/vnd.openxmlformats-officedocument.wordprocessingml.settings+xml"/>` +
	`<Override PartName="/docProps/core.xml" ContentType="application/vnd.openxmlformats-package.core-properties+xml"/>` +
	`</Types>`

const newPackageRels = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<Relationships xmlns="http://schemas.openxmlformats.org/package/2006/relationships">` +
	`<Relationship Id="rId1" Type="http://schemas.openxmlformats.org/officeDocument/2006/relationships/officeDocument" Target="word/document.xml"/>` +
	`<Relationship Id="rId2" Type="http://schemas.openxmlformats.org/package/2006/relationships/metadata/core-properties" Target="docProps/core.xml"/>` +
	`</Relationships>`

const newDocumentRels = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<Relationships xmlns="http://schemas.openxmlformats.org/package/2006/relationships">` +
	`<Relationship Id="rId1" Type="http://schemas.openxmlformats.org/officeDocument/2006/relationships/styles" Target="styles.xml"/>` +
	`<Relationship Id="rId2" Type="http://schemas.openxmlformats.org/officeDocument/2006/relationships/numbering" Target="numbering.xml"/>` +
	`<Relationship Id="rId3" Type="http://schemas.openxmlformats.org/officeDocument/2006/relationships/settings" Target="settings.xml"/>` +
	`</Relationships>`

const newSettings = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<w:settings xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main">` +
	`<w:compat><w:compatSetting w:name="compatibilityMode" w:uri="http://schemas.microsoft.com/office/word" w:val="15"/></w:compat>` +
	`<w:defaultTabStop w:val="720"/>` +
	`</w:settings>`
