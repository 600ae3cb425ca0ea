// Package postvalidate 检查重新打包后的 DOCX 是否完整、可解析
package postvalidate

import (
	"archive/zip"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/beevik/etree"
	"github.com/dlclark/regexp2"
	"go.uber.org/zap"
	"golang.org/x/text/unicode/norm"

	"github.com/nerdneilsfield/go-docx-editor/internal/document"
	"github.com/nerdneilsfield/go-docx-editor/internal/edits"
)

// Level 问题级别
type Level string

const (
	LevelError   Level = "error"
	LevelWarning Level = "warning"
)

// 检查项名称
const (
	CheckZip         = "zip"
	CheckRequired    = "required_part"
	CheckWellFormed  = "well_formed"
	CheckStructure   = "structure"
	CheckNamespace   = "namespace"
	CheckContent     = "content"
	CheckContentSkip = "content_skipped"
)

// RequiredParts 每个 DOCX 都必须包含的部件
var RequiredParts = []string{
	document.ContentTypesPart,
	document.DocumentPart,
	"_rels/.rels",
	"word/_rels/document.xml.rels",
}

// 序列化器自动生成的 ns0:、ns1: 前缀
var nsPollution = regexp2.MustCompile(`\bns\d+:`, regexp2.None)

// Issue 一条检查结果
type Issue struct {
	Check   string `json:"check"`
	Level   Level  `json:"level"`
	Part    string `json:"part,omitempty"`
	Message string `json:"message"`
}

// Report 检查报告
type Report struct {
	Output   string  `json:"output"`
	Valid    bool    `json:"valid"`
	Errors   []Issue `json:"errors"`
	Warnings []Issue `json:"warnings"`
}

func (r *Report) add(level Level, check, part, format string, args ...interface{}) {
	issue := Issue{Check: check, Level: level, Part: part, Message: fmt.Sprintf(format, args...)}
	if level == LevelWarning {
		r.Warnings = append(r.Warnings, issue)
		return
	}
	r.Errors = append(r.Errors, issue)
}

// PostValidator 检查输出文件
type PostValidator struct {
	logger       *zap.Logger
	checkContent bool
}

// NewPostValidator 创建检查器，checkContent 为 true 时对照工作目录核对正文内容
func NewPostValidator(logger *zap.Logger, checkContent bool) *PostValidator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PostValidator{logger: logger, checkContent: checkContent}
}

// Validate 检查 output；workDir 非空时额外核对编辑是否生效
// 只有读取输入失败等无法给出报告的情况返回 error
func (v *PostValidator) Validate(ctx context.Context, output, workDir string) (*Report, error) {
	report := &Report{Output: output, Errors: []Issue{}, Warnings: []Issue{}}

	zr, err := zip.OpenReader(output)
	if err != nil {
		report.add(LevelError, CheckZip, "", "cannot open archive: %v", err)
		return v.finish(report), nil
	}
	defer zr.Close()

	parts := make(map[string][]byte)
	for _, f := range zr.File {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		data, err := readEntry(f)
		if err != nil {
			report.add(LevelError, CheckZip, f.Name, "entry is corrupt: %v", err)
			continue
		}
		if document.IsEditablePart(f.Name) {
			parts[f.Name] = data
		}
	}

	for _, name := range RequiredParts {
		if _, ok := parts[name]; !ok {
			report.add(LevelError, CheckRequired, name, "required part is missing")
		}
	}

	names := make([]string, 0, len(parts))
	for name := range parts {
		names = append(names, name)
	}
	sort.Strings(names)

	var body *etree.Element
	for _, name := range names {
		data := parts[name]
		doc := etree.NewDocument()
		if err := doc.ReadFromBytes(data); err != nil {
			report.add(LevelError, CheckWellFormed, name, "part is not well-formed: %v", err)
			continue
		}
		if name == document.DocumentPart {
			body = checkStructure(report, doc)
		}
	}

	if doc, ok := parts[document.DocumentPart]; ok {
		if found, err := nsPollution.MatchString(string(doc)); err == nil && found {
			report.add(LevelWarning, CheckNamespace, document.DocumentPart,
				"document uses generated namespace prefixes (ns0:, ns1:...)")
		}
	}

	if v.checkContent && workDir != "" && body != nil {
		v.checkEdits(report, parts[document.DocumentPart], workDir)
	}
	return v.finish(report), nil
}

func (v *PostValidator) finish(r *Report) *Report {
	r.Valid = len(r.Errors) == 0
	v.logger.Info("post-validated output",
		zap.String("output", r.Output),
		zap.Bool("valid", r.Valid),
		zap.Int("errors", len(r.Errors)),
		zap.Int("warnings", len(r.Warnings)))
	return r
}

// readEntry 读完整个条目，CRC 在读到末尾时校验
func readEntry(f *zip.File) ([]byte, error) {
	rc, err := f.Open()
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return io.ReadAll(rc)
}

func checkStructure(r *Report, doc *etree.Document) *etree.Element {
	root := doc.Root()
	if root == nil || root.Tag != "document" {
		r.add(LevelError, CheckStructure, document.DocumentPart, "root element is not document")
		return nil
	}
	body := root.SelectElement("body")
	if body == nil {
		r.add(LevelError, CheckStructure, document.DocumentPart, "document has no body")
	}
	return body
}

// checkEdits 核对插入与替换的文本出现在正文中，删除的段落文本不再出现
func (v *PostValidator) checkEdits(r *Report, documentXML []byte, workDir string) {
	list, err := edits.LoadFromDir(workDir)
	if err != nil {
		r.add(LevelWarning, CheckContentSkip, "", "content check skipped: %v", err)
		return
	}
	analysis, err := document.LoadAnalysis(workDir)
	if err != nil {
		r.add(LevelWarning, CheckContentSkip, "", "content check skipped: %v", err)
		return
	}
	text, err := FinalText(documentXML)
	if err != nil {
		r.add(LevelWarning, CheckContentSkip, document.DocumentPart, "content check skipped: %v", err)
		return
	}

	for i, e := range list.Edits {
		switch e.Action {
		case edits.ActionDelete:
			block, ok := analysis.Block(e.TargetID)
			if !ok || block.Kind != document.KindParagraph {
				continue
			}
			if t := normalize(block.Text); t != "" && strings.Contains(text, t) {
				r.add(LevelWarning, CheckContent, e.TargetID, "edit %d: deleted text %q is still present", i, block.Text)
			}
		default:
			for _, frag := range fragments(e.NewText) {
				if !strings.Contains(text, frag) {
					r.add(LevelWarning, CheckContent, e.TargetID, "edit %d: text %q not found in output", i, frag)
				}
			}
		}
	}
	v.logger.Debug("checked edit content", zap.Int("edits", len(list.Edits)))
}

// FinalText 拼接 document.xml 中全部 w:t 文本（NFC 归一化）
func FinalText(documentXML []byte) (string, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(documentXML))
	if err != nil {
		return "", fmt.Errorf("failed to parse document text: %w", err)
	}
	var sb strings.Builder
	doc.Find(`w\:t`).Each(func(_ int, s *goquery.Selection) {
		sb.WriteString(s.Text())
	})
	return normalize(sb.String()), nil
}

// fragments 把编辑文本拆成应当出现在正文中的片段（按行与单元格分隔符）
func fragments(text string) []string {
	var out []string
	for _, line := range strings.Split(text, "\n") {
		for _, cell := range strings.Split(line, "|") {
			if f := normalize(cell); f != "" {
				out = append(out, f)
			}
		}
	}
	return out
}

func normalize(s string) string {
	return norm.NFC.String(strings.TrimSpace(s))
}

// ErrInvalidOutput 输出未通过检查
var ErrInvalidOutput = errors.New("output failed post-validation")

// Err 报告无效时返回汇总错误
func (r *Report) Err() error {
	if r.Valid {
		return nil
	}
	msgs := make([]string, 0, len(r.Errors))
	for _, issue := range r.Errors {
		if issue.Part != "" {
			msgs = append(msgs, issue.Part+": "+issue.Message)
			continue
		}
		msgs = append(msgs, issue.Message)
	}
	return fmt.Errorf("%w: %s", ErrInvalidOutput, strings.Join(msgs, "; "))
}
