package edits

import (
	"github.com/nerdneilsfield/go-docx-editor/internal/coord"
	"github.com/nerdneilsfield/go-docx-editor/internal/document"
)

// runPools 收集编辑可用的字符样式池
// own 为替换目标段落自身的样式池（仅 replace），tmpl 为段落样式模板
type runPools struct {
	own      []document.RunStyleTemplate
	segments []document.RunSegment
	tmpl     *document.ParagraphStyleTemplate
	styleKey string
	nonText  bool
}

// collectPools 解析编辑目标并返回其样式池，目标不是段落时返回 nil
func collectPools(a *document.Analysis, e *Edit, target coord.Coord, block *document.Block) *runPools {
	pools := &runPools{}

	if e.Action == ActionReplace {
		switch {
		case target.Kind == coord.KindBlock && block.Kind == document.KindParagraph,
			target.Kind == coord.KindCellParagraph && block.Kind == document.KindTable:
		default:
			return nil
		}
		p, err := block.ParagraphAt(target)
		if err != nil {
			return nil
		}
		pools.own, pools.segments = document.RunPool(p)
		pools.styleKey, _ = document.StyleKey(p)
		if target.Kind == coord.KindBlock {
			pools.styleKey = block.StyleKey
			pools.nonText = block.HasNonText
		} else {
			pools.nonText = document.HasNonTextElement(p)
		}
	} else if !isParagraphInsert(e, target) {
		return nil
	}

	if key, ok := a.ResolveStyleAlias(e.StyleAlias); ok {
		if t, found := a.ParagraphTemplate(key); found {
			pools.tmpl = t
			if e.Action.IsInsert() {
				pools.styleKey = key
			}
			return pools
		}
	}
	if pools.styleKey != "" {
		if t, found := a.ParagraphTemplate(pools.styleKey); found {
			pools.tmpl = t
		}
	}
	return pools
}

// aliases 返回两个样式池中全部别名，目标段落自身的在前
func (p *runPools) aliases() []string {
	seen := make(map[string]bool)
	var out []string
	add := func(pool []document.RunStyleTemplate) {
		for _, r := range pool {
			if !seen[r.Alias] {
				seen[r.Alias] = true
				out = append(out, r.Alias)
			}
		}
	}
	add(p.own)
	if p.tmpl != nil {
		add(p.tmpl.RunTemplates)
	}
	return out
}

// lookup 按别名查找字符样式，先查目标段落自身
func (p *runPools) lookup(alias string) (document.RunStyleTemplate, bool) {
	for _, r := range p.own {
		if r.Alias == alias {
			return r, true
		}
	}
	if p.tmpl != nil {
		return p.tmpl.Run(alias)
	}
	return document.RunStyleTemplate{}, false
}

// first 返回默认字符样式
func (p *runPools) first() (document.RunStyleTemplate, bool) {
	if len(p.own) > 0 {
		return p.own[0], true
	}
	if p.tmpl != nil {
		return p.tmpl.FirstRun()
	}
	return document.RunStyleTemplate{}, false
}

// empty 判断是否没有任何字符样式
func (p *runPools) empty() bool {
	return len(p.own) == 0 && (p.tmpl == nil || len(p.tmpl.RunTemplates) == 0)
}

// isParagraphInsert 判断是否在块级插入普通段落
func isParagraphInsert(e *Edit, target coord.Coord) bool {
	return e.Action.IsInsert() && target.Kind == coord.KindBlock && effectiveUnit(e, target) == UnitNone
}

// effectiveUnit 推断编辑粒度，未显式指定时由坐标决定
func effectiveUnit(e *Edit, target coord.Coord) Unit {
	if e.EditUnit != UnitNone {
		return e.EditUnit
	}
	switch target.Kind {
	case coord.KindRow:
		return UnitRow
	case coord.KindColumn:
		return UnitColumn
	case coord.KindBlock:
		if e.Action.IsInsert() && e.TableStyleAlias != "" {
			return UnitTable
		}
	}
	return UnitNone
}
