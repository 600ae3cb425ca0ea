package testutils

import (
	"archive/zip"
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"testing"
	"time"
)

// 文档根元素使用的命名空间声明
const documentNamespaces = `xmlns:wpc="http://schemas.microsoft.com/office/word/2010/wordprocessingCanvas" ` +
	`xmlns:mc="http://schemas.openxmlformats.org/markup-compatibility/2006" ` +
	`xmlns:r="http://schemas.openxmlformats.org/officeDocument/2006/relationships" ` +
	`xmlns:wp="http://schemas.openxmlformats.org/drawingml/2006/wordprocessingDrawing" ` +
	`xmlns:a="http://schemas.openxmlformats.org/drawingml/2006/main" ` +
	`xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main" ` +
	`xmlns:w14="http://schemas.microsoft.com/office/word/2010/wordml" ` +
	`mc:Ignorable="w14"`

// SectPr 默认节属性
const SectPr = `<w:sectPr><w:pgSz w:w="11906" w:h="16838"/><w:pgMar w:top="1440" w:right="1440" w:bottom="1440" w:left="1440" w:header="708" w:footer="708" w:gutter="0"/></w:sectPr>`

// DefaultStyles 包含 Normal、Heading1、Heading2、Title、ListParagraph、TOC1、TOC2
const DefaultStyles = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<w:styles xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main">
<w:style w:type="paragraph" w:default="1" w:styleId="Normal"><w:name w:val="Normal"/></w:style>
<w:style w:type="paragraph" w:styleId="Heading1"><w:name w:val="heading 1"/><w:basedOn w:val="Normal"/><w:pPr><w:outlineLvl w:val="0"/></w:pPr></w:style>
<w:style w:type="paragraph" w:styleId="Heading2"><w:name w:val="heading 2"/><w:basedOn w:val="Normal"/><w:pPr><w:outlineLvl w:val="1"/></w:pPr></w:style>
<w:style w:type="paragraph" w:styleId="Title"><w:name w:val="Title"/><w:basedOn w:val="Normal"/></w:style>
<w:style w:type="paragraph" w:styleId="ListParagraph"><w:name w:val="List Paragraph"/><w:basedOn w:val="Normal"/></w:style>
<w:style w:type="paragraph" w:styleId="TOC1"><w:name w:val="toc 1"/><w:basedOn w:val="Normal"/></w:style>
<w:style w:type="paragraph" w:styleId="TOC2"><w:name w:val="toc 2"/><w:basedOn w:val="Normal"/></w:style>
</w:styles>`

const contentTypes = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<Types xmlns="http://schemas.openxmlformats.org/package/2006/content-types">` +
	`<Default Extension="rels" ContentType="application/vnd.openxmlformats-package.relationships+xml"/>` +
	`<Default Extension="xml" ContentType="application/xml"/>` +
	`<Default Extension="png" ContentType="image/png"/>` +
	`<Override PartName="/word/document.xml" ContentType="application/vnd.openxmlformats-officedocument.wordprocessingml.document.main+xml"/>` +
	`<Override PartName="/word/styles.xml" ContentType="application/vnd.openxmlformats-officedocument.wordprocessingml.styles+xml"/>` +
	`<Override PartName="/word/settings.xml" ContentType="application/vnd.openxmlformats-officedocument.wordprocessingml.settings+xml"/>` +
	`<Override PartName="/word/numbering.xml" ContentType="application/vnd.openxmlformats-officedocument.wordprocessingml.numbering+xml"/>` +
	`</Types>`

const packageRels = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<Relationships xmlns="http://schemas.openxmlformats.org/package/2006/relationships">` +
	`<Relationship Id="rId1" Type="http://schemas.openxmlformats.org/officeDocument/2006/relationships/officeDocument" Target="word/document.xml"/>` +
	`</Relationships>`

const documentRels = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<Relationships xmlns="http://schemas.openxmlformats.org/package/2006/relationships">` +
	`<Relationship Id="rId1" Type="http://schemas.openxmlformats.org/officeDocument/2006/relationships/styles" Target="styles.xml"/>` +
	`<Relationship Id="rId2" Type="http://schemas.openxmlformats.org/officeDocument/2006/relationships/settings" Target="settings.xml"/>` +
	`</Relationships>`

// DefaultSettings 最小的 settings.xml
const DefaultSettings = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<w:settings xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main"><w:zoom w:percent="100"/></w:settings>`

// PNGBytes 一个 1x1 像素的 PNG
var PNGBytes = []byte{
	0x89, 0x50, 0x4e, 0x47, 0x0d, 0x0a, 0x1a, 0x0a, 0x00, 0x00, 0x00, 0x0d,
	0x49, 0x48, 0x44, 0x52, 0x00, 0x00, 0x00, 0x01, 0x00, 0x00, 0x00, 0x01,
	0x08, 0x06, 0x00, 0x00, 0x00, 0x1f, 0x15, 0xc4, 0x89, 0x00, 0x00, 0x00,
	0x0d, 0x49, 0x44, 0x41, 0x54, 0x78, 0x9c, 0x63, 0xf8, 0xcf, 0xc0, 0xf0,
	0x1f, 0x00, 0x05, 0x00, 0x01, 0xff, 0x89, 0x99, 0x3d, 0x1d, 0x00, 0x00,
	0x00, 0x00, 0x49, 0x45, 0x4e, 0x44, 0xae, 0x42, 0x60, 0x82,
}

// DocumentXML 用命名空间声明和节属性包装正文内容
func DocumentXML(body ...string) string {
	return `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>` + "\n" +
		`<w:document ` + documentNamespaces + `><w:body>` +
		strings.Join(body, "") + SectPr +
		`</w:body></w:document>`
}

// Paragraph 生成带样式的单段落
func Paragraph(styleID, text string) string {
	ppr := ""
	if styleID != "" {
		ppr = fmt.Sprintf(`<w:pPr><w:pStyle w:val="%s"/></w:pPr>`, styleID)
	}
	return fmt.Sprintf(`<w:p>%s<w:r><w:t>%s</w:t></w:r></w:p>`, ppr, text)
}

// NumberedParagraph 生成带列表编号的段落
func NumberedParagraph(numID, ilvl int, text string) string {
	return fmt.Sprintf(`<w:p><w:pPr><w:pStyle w:val="ListParagraph"/><w:numPr><w:ilvl w:val="%d"/><w:numId w:val="%d"/></w:numPr></w:pPr><w:r><w:t>%s</w:t></w:r></w:p>`,
		ilvl, numID, text)
}

// Table 生成表格，widths 为各列宽度（dxa），rows 为单元格文本
func Table(widths []int, rows [][]string) string {
	total := 0
	for _, w := range widths {
		total += w
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, `<w:tbl><w:tblPr><w:tblStyle w:val="TableGrid"/><w:tblW w:w="%d" w:type="dxa"/></w:tblPr><w:tblGrid>`, total)
	for _, w := range widths {
		fmt.Fprintf(&sb, `<w:gridCol w:w="%d"/>`, w)
	}
	sb.WriteString(`</w:tblGrid>`)
	for _, row := range rows {
		sb.WriteString(`<w:tr>`)
		for c, text := range row {
			w := 0
			if c < len(widths) {
				w = widths[c]
			}
			fmt.Fprintf(&sb, `<w:tc><w:tcPr><w:tcW w:w="%d" w:type="dxa"/></w:tcPr><w:p><w:r><w:t>%s</w:t></w:r></w:p></w:tc>`, w, text)
		}
		sb.WriteString(`</w:tr>`)
	}
	sb.WriteString(`</w:tbl>`)
	return sb.String()
}

// TOCEntry 表示目录中的一个条目
type TOCEntry struct {
	StyleID string
	Indent  int
	Number  string
	Title   string
	Page    string
	Anchor  string
}

// TOC 生成带超链接和 PAGEREF 域的目录结构化标签
func TOC(entries ...TOCEntry) string {
	var sb strings.Builder
	sb.WriteString(`<w:sdt><w:sdtPr><w:docPartObj><w:docPartGallery w:val="Table of Contents"/><w:docPartUnique/></w:docPartObj></w:sdtPr><w:sdtContent>`)
	for _, e := range entries {
		fmt.Fprintf(&sb, `<w:p><w:pPr><w:pStyle w:val="%s"/><w:tabs><w:tab w:val="right" w:leader="dot" w:pos="9016"/></w:tabs><w:ind w:left="%d"/></w:pPr>`, e.StyleID, e.Indent)
		fmt.Fprintf(&sb, `<w:hyperlink w:anchor="%s" w:history="1">`, e.Anchor)
		fmt.Fprintf(&sb, `<w:r><w:t>%s</w:t></w:r>`, e.Number)
		fmt.Fprintf(&sb, `<w:r><w:t xml:space="preserve"> %s</w:t></w:r>`, e.Title)
		sb.WriteString(`<w:r><w:tab/></w:r>`)
		sb.WriteString(`<w:r><w:fldChar w:fldCharType="begin"/></w:r>`)
		fmt.Fprintf(&sb, `<w:r><w:instrText xml:space="preserve"> PAGEREF %s \h </w:instrText></w:r>`, e.Anchor)
		sb.WriteString(`<w:r><w:fldChar w:fldCharType="separate"/></w:r>`)
		fmt.Fprintf(&sb, `<w:r><w:t>%s</w:t></w:r>`, e.Page)
		sb.WriteString(`<w:r><w:fldChar w:fldCharType="end"/></w:r>`)
		sb.WriteString(`</w:hyperlink></w:p>`)
	}
	sb.WriteString(`</w:sdtContent></w:sdt>`)
	return sb.String()
}

// Fixture 描述一个内存中的 DOCX 包
type Fixture struct {
	Document  string
	Styles    string
	Numbering string
	Settings  string
	// Media 以包内路径为键的二进制条目
	Media map[string][]byte
}

// Build 按固定的条目顺序生成 DOCX 字节
func (f Fixture) Build() ([]byte, error) {
	styles := f.Styles
	if styles == "" {
		styles = DefaultStyles
	}
	settings := f.Settings
	if settings == "" {
		settings = DefaultSettings
	}

	type entry struct {
		name   string
		data   []byte
		method uint16
	}
	entries := []entry{
		{"[Content_Types].xml", []byte(contentTypes), zip.Deflate},
		{"_rels/.rels", []byte(packageRels), zip.Deflate},
		{"word/document.xml", []byte(f.Document), zip.Deflate},
		{"word/_rels/document.xml.rels", []byte(documentRels), zip.Deflate},
		{"word/styles.xml", []byte(styles), zip.Deflate},
		{"word/settings.xml", []byte(settings), zip.Deflate},
	}
	if f.Numbering != "" {
		entries = append(entries, entry{"word/numbering.xml", []byte(f.Numbering), zip.Deflate})
	}
	names := make([]string, 0, len(f.Media))
	for name := range f.Media {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		entries = append(entries, entry{name, f.Media[name], zip.Store})
	}

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	modified := time.Date(2024, 1, 2, 3, 4, 6, 0, time.UTC)
	for _, e := range entries {
		w, err := zw.CreateHeader(&zip.FileHeader{Name: e.name, Method: e.method, Modified: modified})
		if err != nil {
			return nil, err
		}
		if _, err := w.Write(e.data); err != nil {
			return nil, err
		}
	}
	if err := zw.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// WriteDocx 将 fixture 写入 dir 下的 name 文件并返回路径
func WriteDocx(t testing.TB, dir, name string, f Fixture) string {
	t.Helper()
	data, err := f.Build()
	if err != nil {
		t.Fatalf("build docx fixture: %v", err)
	}
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write docx fixture: %v", err)
	}
	return path
}

// ReadZipEntry 读取压缩包中某个条目的内容
func ReadZipEntry(t testing.TB, path, name string) []byte {
	t.Helper()
	r, err := zip.OpenReader(path)
	if err != nil {
		t.Fatalf("open %s: %v", path, err)
	}
	defer r.Close()
	for _, f := range r.File {
		if f.Name != name {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			t.Fatalf("open entry %s: %v", name, err)
		}
		defer rc.Close()
		var buf bytes.Buffer
		if _, err := buf.ReadFrom(rc); err != nil {
			t.Fatalf("read entry %s: %v", name, err)
		}
		return buf.Bytes()
	}
	t.Fatalf("entry %s not found in %s", name, path)
	return nil
}
