package edits

import (
	"fmt"
	"strings"

	"github.com/nerdneilsfield/go-docx-editor/internal/coord"
	"github.com/nerdneilsfield/go-docx-editor/internal/document"
)

// PromptsFile 分段提示的输出文件名
const PromptsFile = "prompts.json"

// Prompt 请求外部生成方把新文本分配到字符样式上
type Prompt struct {
	EditIndex  int      `json:"edit_index"`
	TargetID   string   `json:"target_id"`
	RSTAliases []string `json:"rst_aliases"`
	Prompt     string   `json:"prompt"`
}

// GeneratePrompts 为需要分段的段落编辑生成提示
// 只处理尚未提供 runs、且可用字符样式不少于两种的替换与插入
func GeneratePrompts(a *document.Analysis, list *List) []Prompt {
	prompts := []Prompt{}
	for i := range list.Edits {
		e := &list.Edits[i]
		if e.Action == ActionDelete || e.NewText == "" || len(e.Runs) > 0 || e.EditUnit != UnitNone {
			continue
		}
		target, err := coord.Parse(e.TargetID)
		if err != nil {
			continue
		}
		block, ok := a.BlockAt(target.Block)
		if !ok {
			continue
		}
		pools := collectPools(a, e, target, block)
		if pools == nil || pools.nonText {
			continue
		}

		pool := pools.own
		if e.Action.IsInsert() || len(pool) == 0 {
			pool = nil
			if pools.tmpl != nil {
				pool = pools.tmpl.RunTemplates
			}
		}
		if len(pool) < 2 {
			continue
		}

		aliases := make([]string, 0, len(pool))
		for _, r := range pool {
			aliases = append(aliases, r.Alias)
		}
		tag := e.SemanticTag
		if tag == "" {
			tag = block.SemanticTag
		}
		prompts = append(prompts, Prompt{
			EditIndex:  i,
			TargetID:   target.String(),
			RSTAliases: aliases,
			Prompt:     buildPrompt(e, pool, pools.segments, tag),
		})
	}
	return prompts
}

func buildPrompt(e *Edit, pool []document.RunStyleTemplate, segments []document.RunSegment, tag string) string {
	var sb strings.Builder
	sb.WriteString("Run styles:\n")
	for _, r := range pool {
		fmt.Fprintf(&sb, "  %s: [%s]\n", r.Alias, r.Description)
	}

	if e.Action == ActionReplace && len(segments) > 0 {
		sb.WriteString("\nOriginal text distribution:\n")
		for _, s := range segments {
			fmt.Fprintf(&sb, "  %q -> %s\n", s.Text, s.RunStyle)
		}
	} else {
		fmt.Fprintf(&sb, "\nSemantic context: %s\n", tag)
	}

	fmt.Fprintf(&sb, "\nNew text: %q\n\n", e.NewText)
	sb.WriteString("Task:\nDistribute the new text across the run styles.\n")
	sb.WriteString("- Preserve formatting for key information (dates, numbers, terms)\n")
	sb.WriteString("- Match the original distribution pattern when possible\n")
	sb.WriteString("- Use run_style alias (RS0, RS1...) for each text segment\n\n")
	sb.WriteString("Output Format (JSON only):\n")
	sb.WriteString(`{"runs": [{"text": "...", "run_style": "RS0"}, ...]}`)
	return sb.String()
}
