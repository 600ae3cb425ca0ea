package cli

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/fatih/color"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"github.com/nerdneilsfield/go-docx-editor/internal/config"
	"github.com/nerdneilsfield/go-docx-editor/internal/document"
	"github.com/nerdneilsfield/go-docx-editor/internal/edits"
	"github.com/nerdneilsfield/go-docx-editor/internal/postvalidate"
	"github.com/nerdneilsfield/go-docx-editor/internal/repack"
)

var (
	okColor   = color.New(color.FgGreen, color.Bold)
	failColor = color.New(color.FgRed, color.Bold)
	warnColor = color.New(color.FgYellow)
)

// printJSON 以缩进 JSON 输出
func printJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(v)
}

func newTable(w io.Writer, title string) table.Writer {
	tw := table.NewWriter()
	tw.SetOutputMirror(w)
	tw.SetTitle(title)
	tw.SetStyle(table.StyleLight)
	return tw
}

// printStatus 输出一行带颜色的结论
func printStatus(w io.Writer, ok bool, format string, args ...interface{}) {
	if ok {
		okColor.Fprintf(w, "✔ "+format+"\n", args...)
		return
	}
	failColor.Fprintf(w, "✘ "+format+"\n", args...)
}

// printValidationReport 输出编辑校验结果
func printValidationReport(w io.Writer, format string, report *edits.Report) error {
	if format == config.FormatJSON {
		return printJSON(w, report)
	}

	issues := append(append([]edits.Issue{}, report.Errors...), report.Warnings...)
	if len(issues) > 0 {
		tw := newTable(w, "Edit validation")
		tw.AppendHeader(table.Row{"#", "Target", "Level", "Check", "Message"})
		for _, issue := range issues {
			tw.AppendRow(table.Row{issue.EditIndex, issue.TargetID, levelText(string(issue.Level)), issue.Check, issue.Message})
		}
		tw.SetColumnConfigs([]table.ColumnConfig{{Number: 5, WidthMax: 80}})
		tw.Render()
	}
	printStatus(w, report.Valid, "%d error(s), %d warning(s)", len(report.Errors), len(report.Warnings))
	return nil
}

// printPostReport 输出打包后检查结果
func printPostReport(w io.Writer, format string, report *postvalidate.Report) error {
	if format == config.FormatJSON {
		return printJSON(w, report)
	}

	issues := append(append([]postvalidate.Issue{}, report.Errors...), report.Warnings...)
	if len(issues) > 0 {
		tw := newTable(w, "Output check: "+report.Output)
		tw.AppendHeader(table.Row{"Level", "Check", "Part", "Message"})
		for _, issue := range issues {
			tw.AppendRow(table.Row{levelText(string(issue.Level)), issue.Check, issue.Part, issue.Message})
		}
		tw.SetColumnConfigs([]table.ColumnConfig{{Number: 4, WidthMax: 80}})
		tw.Render()
	}
	printStatus(w, report.Valid, "%s: %d error(s), %d warning(s)", report.Output, len(report.Errors), len(report.Warnings))
	return nil
}

// printRepackResult 输出重新打包的摘要
func printRepackResult(w io.Writer, format string, result *repack.Result) error {
	if format == config.FormatJSON {
		return printJSON(w, result)
	}
	tw := newTable(w, "Repack")
	tw.AppendRows([]table.Row{
		{"Output", result.Output},
		{"Entries", result.Entries},
		{"Copied unchanged", result.Copied},
		{"Rewritten", len(result.Rewritten)},
	})
	for _, name := range result.Rewritten {
		tw.AppendRow(table.Row{"", name})
	}
	tw.Render()
	return nil
}

func printCreateResult(w io.Writer, format string, result *document.CreateResult) error {
	if format == config.FormatJSON {
		return printJSON(w, result)
	}
	tw := newTable(w, "Create")
	tw.AppendRows([]table.Row{
		{"Output", result.Output},
		{"Blocks", result.Blocks},
		{"Bytes", result.Bytes},
	})
	tw.Render()
	for _, typ := range result.Skipped {
		printWarning(w, "skipped unknown content type %q", typ)
	}
	return nil
}

func levelText(level string) string {
	if level == "error" {
		return text.Colors{text.FgRed}.Sprint(level)
	}
	return text.Colors{text.FgYellow}.Sprint(level)
}

func printWarning(w io.Writer, format string, args ...interface{}) {
	warnColor.Fprintf(w, format+"\n", args...)
}

func plural(n int, word string) string {
	if n == 1 {
		return fmt.Sprintf("%d %s", n, word)
	}
	return fmt.Sprintf("%d %ss", n, word)
}
