package document

import (
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"

	"github.com/nerdneilsfield/go-docx-editor/internal/wml"
)

// bodyChild 记录 w:body 一个直接子节点的字节区间。
// Gap 为两个子元素之间的空白、注释或处理指令，按原样保留
type bodyChild struct {
	Space string
	Local string
	Gap   bool
	Start int64
	End   int64
}

// bodyLayout 描述 document.xml 中正文的位置
type bodyLayout struct {
	Prefix     string
	ContentBeg int64 // <w:body ...> 之后的第一个字节
	ContentEnd int64 // </w:body> 的第一个字节
	Children   []bodyChild
}

// scanBody 逐个读取 document.xml 的原始记号，记录正文每个子节点的字节区间。
// 使用 RawToken，前缀保持原样
func scanBody(data []byte) (*bodyLayout, error) {
	dec := xml.NewDecoder(bytes.NewReader(data))
	layout := &bodyLayout{ContentBeg: -1, ContentEnd: -1}

	depth := 0
	inBody := false
	var current *bodyChild
	var gapStart int64

	gap := func(end int64) {
		if end > gapStart {
			layout.Children = append(layout.Children, bodyChild{Gap: true, Start: gapStart, End: end})
		}
	}

	for {
		offset := dec.InputOffset()
		tok, err := dec.RawToken()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedXML, err)
		}

		switch t := tok.(type) {
		case xml.StartElement:
			depth++
			switch {
			case depth == 1:
				prefix, ok := wordPrefix(t)
				if !ok {
					return nil, fmt.Errorf("%w: root element does not declare the WordprocessingML namespace", ErrInvalidFormat)
				}
				if prefix != wml.Prefix {
					return nil, fmt.Errorf("%w: unsupported WordprocessingML prefix %q", ErrInvalidFormat, prefix)
				}
				layout.Prefix = prefix
			case depth == 2 && t.Name.Space == layout.Prefix && t.Name.Local == "body":
				inBody = true
				layout.ContentBeg = dec.InputOffset()
				gapStart = layout.ContentBeg
			case depth == 3 && inBody:
				gap(offset)
				current = &bodyChild{Space: t.Name.Space, Local: t.Name.Local, Start: offset}
			}
		case xml.EndElement:
			switch {
			case depth == 3 && inBody && current != nil:
				current.End = dec.InputOffset()
				layout.Children = append(layout.Children, *current)
				gapStart = current.End
				current = nil
			case depth == 2 && inBody:
				gap(offset)
				inBody = false
				layout.ContentEnd = offset
			}
			depth--
		}
	}

	if layout.ContentBeg < 0 || layout.ContentEnd < 0 {
		return nil, fmt.Errorf("%w: document has no body", ErrInvalidFormat)
	}
	return layout, nil
}

// wordPrefix 返回根元素上绑定到 WordprocessingML 命名空间的前缀
func wordPrefix(root xml.StartElement) (string, bool) {
	for _, a := range root.Attr {
		if a.Value != wml.Namespace {
			continue
		}
		if a.Name.Space == "xmlns" {
			return a.Name.Local, true
		}
		if a.Name.Space == "" && a.Name.Local == "xmlns" {
			return "", true
		}
	}
	return "", false
}
