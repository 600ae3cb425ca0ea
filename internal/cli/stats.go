package cli

import (
	"io"
	"sort"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/mattn/go-runewidth"

	"github.com/nerdneilsfield/go-docx-editor/internal/config"
	"github.com/nerdneilsfield/go-docx-editor/internal/document"
)

// AnalysisStats 分析结果的统计摘要
type AnalysisStats struct {
	SessionID  string         `json:"session_id"`
	Blocks     int            `json:"blocks"`
	Kinds      map[string]int `json:"kinds"`
	Tags       map[string]int `json:"semantic_tags"`
	Aliases    map[string]int `json:"aliases"`
	Tables     int            `json:"tables"`
	TOCEntries int            `json:"toc_entries"`
}

// computeStats 统计块类型、语义标签与别名数量
func computeStats(a *document.Analysis) *AnalysisStats {
	s := &AnalysisStats{
		SessionID: a.SessionID,
		Blocks:    len(a.Blocks),
		Kinds:     make(map[string]int),
		Tags:      make(map[string]int),
		Aliases:   make(map[string]int),
	}
	for _, b := range a.Blocks {
		s.Kinds[string(b.Kind)]++
		if b.SemanticTag != "" {
			s.Tags[b.SemanticTag]++
		}
		if b.Kind == document.KindTable {
			s.Tables++
		}
		if b.IsTOC {
			s.TOCEntries += b.EntryCount
		}
	}
	for _, family := range []string{
		document.FamilyStyle, document.FamilyTable, document.FamilyRow,
		document.FamilyCell, document.FamilyTOCLevel,
	} {
		if n := len(a.Aliases(family)); n > 0 {
			s.Aliases[family] = n
		}
	}
	return s
}

// printAnalysis 输出分析摘要
func printAnalysis(w io.Writer, format string, a *document.Analysis) error {
	s := computeStats(a)
	if format == config.FormatJSON {
		return printJSON(w, s)
	}

	tw := newTable(w, "Analysis "+s.SessionID)
	tw.AppendRow(table.Row{"Blocks", s.Blocks})
	for _, k := range sortedKeys(s.Kinds) {
		tw.AppendRow(table.Row{"  " + k, s.Kinds[k]})
	}
	tw.AppendSeparator()
	for _, k := range sortedKeys(s.Tags) {
		tw.AppendRow(table.Row{"Tag " + k, s.Tags[k]})
	}
	tw.AppendSeparator()
	for _, k := range sortedKeys(s.Aliases) {
		tw.AppendRow(table.Row{"Alias " + k, s.Aliases[k]})
	}
	if s.TOCEntries > 0 {
		tw.AppendRow(table.Row{"TOC entries", s.TOCEntries})
	}
	tw.Render()
	return nil
}

// printOutline 输出每个块的预览
func printOutline(w io.Writer, a *document.Analysis, width int) {
	tw := newTable(w, "")
	tw.AppendHeader(table.Row{"ID", "Kind", "Tag", "Style", "Text"})
	for _, b := range a.Blocks {
		alias, _ := a.StyleAlias(b.StyleKey)
		if b.Kind == document.KindTable {
			alias = b.TableAlias
		}
		tw.AppendRow(table.Row{b.ID, b.Kind, b.SemanticTag, alias, preview(b.Text, width)})
	}
	tw.Render()
}

// preview 截断到显示宽度，全角字符按两列计算
func preview(s string, width int) string {
	for i, r := range s {
		if r == '\n' {
			s = s[:i] + " …"
			break
		}
	}
	return runewidth.Truncate(s, width, "…")
}

func sortedKeys(m map[string]int) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
