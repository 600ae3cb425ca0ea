package document

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"strconv"
	"strings"

	"github.com/beevik/etree"
	"github.com/dlclark/regexp2"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/nerdneilsfield/go-docx-editor/internal/coord"
	"github.com/nerdneilsfield/go-docx-editor/internal/numbering"
	"github.com/nerdneilsfield/go-docx-editor/internal/wml"
)

var (
	bookmarkIDPattern = regexp2.MustCompile(`<w:bookmarkStart\b[^>]*?\bw:id="(\d+)"`, regexp2.None)
	tocAnchorPattern  = regexp2.MustCompile(`\b_Toc(\d{1,9})\b`, regexp2.None)
)

// Parts 分析器读取的原始部件
type Parts struct {
	Document  []byte
	Styles    []byte
	Numbering []byte
}

// Analyzer 把 document.xml 切分为块并建立样式模板池
type Analyzer struct {
	logger *zap.Logger
}

// NewAnalyzer 创建分析器
func NewAnalyzer(logger *zap.Logger) *Analyzer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Analyzer{logger: logger}
}

// Analyze 读取 pkg 中已解压的部件并分析
func (a *Analyzer) Analyze(ctx context.Context, pkg *Package) (*Analysis, error) {
	doc, err := pkg.ReadPart(DocumentPart)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, newError("analyze", DocumentPart, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to read %s: %w", DocumentPart, err)
	}
	parts := Parts{Document: doc}
	if parts.Styles, err = readOptionalPart(pkg, StylesPart); err != nil {
		return nil, err
	}
	if parts.Numbering, err = readOptionalPart(pkg, NumberingPart); err != nil {
		return nil, err
	}

	analysis, err := a.AnalyzeParts(ctx, parts)
	if err != nil {
		return nil, err
	}
	analysis.SourceDigest = pkg.SourceDigest
	return analysis, nil
}

func readOptionalPart(pkg *Package, name string) ([]byte, error) {
	data, err := pkg.ReadPart(name)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", name, err)
	}
	return data, nil
}

// AnalyzeParts 分析原始部件，每次调用使用独立的 Session
func (a *Analyzer) AnalyzeParts(ctx context.Context, parts Parts) (*Analysis, error) {
	layout, err := scanBody(parts.Document)
	if err != nil {
		return nil, newError("analyze", DocumentPart, err)
	}

	styles, err := parseStyles(parts.Styles)
	if err != nil {
		a.logger.Warn("ignoring unreadable styles part", zap.Error(err))
		styles = newStyleLookup()
	}
	defs := numbering.Empty()
	if len(parts.Numbering) > 0 {
		if defs, err = numbering.Parse(parts.Numbering); err != nil {
			a.logger.Warn("ignoring unreadable numbering part", zap.Error(err))
			defs = numbering.Empty()
		}
	}

	s := newSession(a.logger, styles, numbering.NewCounter(defs))
	analysis, err := s.run(ctx, parts.Document, layout)
	if err != nil {
		return nil, err
	}

	a.logger.Info("analyzed document",
		zap.String("session", analysis.SessionID),
		zap.Int("blocks", len(analysis.Blocks)),
		zap.Int("paragraph_templates", len(analysis.ParagraphTemplates)),
		zap.Int("table_templates", len(analysis.TableTemplates)),
		zap.Int("toc_levels", len(analysis.TOCTemplates)))
	return analysis, nil
}

// Session 持有一次分析的全部计数器与去重缓存
type Session struct {
	logger  *zap.Logger
	styles  *styleLookup
	counter *numbering.Counter

	paragraphs     []*ParagraphStyleTemplate
	paragraphIndex map[string]*ParagraphStyleTemplate
	tables         []*TableStyleTemplate
	tableIndex     map[string]*TableStyleTemplate
	tocs           []*TOCStyleTemplate
	tocIndex       map[string]*TOCStyleTemplate
	rowAliases     map[string]string
	cellAliases    map[string]string

	aliasMap     map[string]string
	styleAliases map[string]string
}

// newSession 创建分析会话
func newSession(logger *zap.Logger, styles *styleLookup, counter *numbering.Counter) *Session {
	if logger == nil {
		logger = zap.NewNop()
	}
	if styles == nil {
		styles = newStyleLookup()
	}
	if counter == nil {
		counter = numbering.NewCounter(nil)
	}
	return &Session{
		logger:         logger,
		styles:         styles,
		counter:        counter,
		paragraphIndex: make(map[string]*ParagraphStyleTemplate),
		tableIndex:     make(map[string]*TableStyleTemplate),
		tocIndex:       make(map[string]*TOCStyleTemplate),
		rowAliases:     make(map[string]string),
		cellAliases:    make(map[string]string),
		aliasMap:       make(map[string]string),
		styleAliases:   make(map[string]string),
	}
}

func (s *Session) run(ctx context.Context, data []byte, layout *bodyLayout) (*Analysis, error) {
	analysis := &Analysis{
		SessionID:      uuid.New().String(),
		DocumentDigest: Digest(data),
	}

	// sectPr 之后的节点先暂存，之后再出现块时才归入 Passthrough，否则成为 Trailer
	var tail []string
	passthrough := func(raw string) {
		if analysis.SectionXML != "" {
			tail = append(tail, raw)
			return
		}
		analysis.Passthrough = append(analysis.Passthrough, Passthrough{Before: len(analysis.Blocks), XML: raw})
	}

	for _, child := range layout.Children {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		raw := string(data[child.Start:child.End])

		if child.Gap || child.Space != layout.Prefix {
			passthrough(raw)
			continue
		}

		switch child.Local {
		case "p", "tbl", "sdt":
			for _, t := range tail {
				analysis.Passthrough = append(analysis.Passthrough, Passthrough{Before: len(analysis.Blocks), XML: t})
			}
			tail = nil
			el, err := wml.ParseFragment(raw)
			if err != nil {
				return nil, newError("analyze", DocumentPart, fmt.Errorf("%w: body child %d: %v", ErrMalformedXML, len(analysis.Blocks), err))
			}
			b := &Block{
				ID:    coord.BlockID(len(analysis.Blocks)),
				Index: len(analysis.Blocks),
				XML:   raw,
			}
			switch child.Local {
			case "p":
				s.analyzeParagraph(b, el)
			case "tbl":
				s.analyzeTable(b, el)
			case "sdt":
				s.analyzeSDT(b, el)
			}
			analysis.Blocks = append(analysis.Blocks, b)
		case "sectPr":
			if analysis.SectionXML == "" {
				analysis.SectionXML = raw
				continue
			}
			passthrough(raw)
		default:
			passthrough(raw)
		}
	}
	analysis.Trailer = strings.Join(tail, "")

	analysis.Text = s.renderText(analysis.Blocks)
	analysis.ParagraphTemplates = s.paragraphs
	analysis.TableTemplates = s.tables
	analysis.TOCTemplates = s.tocs
	analysis.AliasMap = s.aliasMap
	analysis.StyleAliases = s.styleAliases
	analysis.BookmarkSeed = maxCapture(bookmarkIDPattern, string(data)) + 1
	analysis.AnchorSeed = maxCapture(tocAnchorPattern, string(data)) + 1
	return analysis, nil
}

// analyzeParagraph 填充段落字段，并把 run 合并进段落模板池
func (s *Session) analyzeParagraph(b *Block, p *etree.Element) {
	b.Kind = KindParagraph
	b.StyleKey, b.StyleID = StyleKey(p)
	b.Text = wml.Text(p)
	b.HasNonText = wml.HasNonText(b.XML)
	b.SemanticTag = s.styles.classify(p, b.StyleID)
	b.NumberingPrefix = s.numberingPrefix(p, b.StyleID)

	tmpl, ok := s.paragraphIndex[b.StyleKey]
	if !ok {
		tmpl = &ParagraphStyleTemplate{StyleKey: b.StyleKey, StyleID: b.StyleID}
		if pPr := p.SelectElement("w:pPr"); pPr != nil {
			tmpl.PPrXML = wml.Serialize(pPr)
		}
		s.paragraphIndex[b.StyleKey] = tmpl
		s.paragraphs = append(s.paragraphs, tmpl)
	}
	b.Runs = collectRunTemplates(p, &tmpl.RunTemplates)
}

// numberingPrefix 为编号段落推进列表计数
func (s *Session) numberingPrefix(p *etree.Element, styleID string) string {
	numID, ilvl := "", 0
	hasLevel := false
	if numPr := p.FindElement("./w:pPr/w:numPr"); numPr != nil {
		numID = wml.Val(numPr, "w:numId", "")
		if v, err := strconv.Atoi(wml.Val(numPr, "w:ilvl", "")); err == nil {
			ilvl, hasLevel = v, true
		}
	}
	if numID == "" {
		styleNum, styleLvl, ok := s.styles.numbering(styleID)
		if !ok {
			return ""
		}
		numID = styleNum
		if !hasLevel {
			ilvl = styleLvl
		}
	}
	prefix, _ := s.counter.Next(numID, ilvl)
	return prefix
}

// styleAlias 返回样式键的 S 别名，首次使用时分配
func (s *Session) styleAlias(key string) string {
	if alias, ok := s.styleAliases[key]; ok {
		return alias
	}
	alias := FamilyStyle + strconv.Itoa(len(s.styleAliases)+1)
	s.styleAliases[key] = alias
	s.aliasMap[alias] = key
	return alias
}

// maxCapture 返回 re 第一个分组捕获到的最大数字，没有时为 0
func maxCapture(re *regexp2.Regexp, s string) int {
	best := 0
	m, err := re.FindStringMatch(s)
	for err == nil && m != nil {
		if g := m.GroupByNumber(1); g != nil {
			if v, convErr := strconv.Atoi(g.String()); convErr == nil && v > best {
				best = v
			}
		}
		m, err = re.FindNextMatch(m)
	}
	return best
}
