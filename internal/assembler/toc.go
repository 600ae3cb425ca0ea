package assembler

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/beevik/etree"
	"github.com/dlclark/regexp2"
	"go.uber.org/zap"

	"github.com/nerdneilsfield/go-docx-editor/internal/coord"
	"github.com/nerdneilsfield/go-docx-editor/internal/document"
	"github.com/nerdneilsfield/go-docx-editor/internal/edits"
	"github.com/nerdneilsfield/go-docx-editor/internal/wml"
)

// 目录条目文本：编号 + 标题，页码写在 | 之后
var tocEntryPattern = regexp2.MustCompile(`^(\d+(?:[.\-]\d+)*\.?)\s*(.*)$`, regexp2.Singleline)

// editSDT 应用目录条目上的编辑：先插入，再替换，最后删除
func (s *session) editSDT(b *document.Block, subs []edits.BlockSpec) (string, error) {
	sdt, err := b.Element()
	if err != nil {
		return "", err
	}
	entries := document.Entries(sdt)
	entryAt := func(t coord.Coord) (*etree.Element, error) {
		if t.Kind != coord.KindEntry || t.Entry < 0 || t.Entry >= len(entries) {
			return nil, fmt.Errorf("%w: %s", ErrUnsupportedEdit, t.String())
		}
		return entries[t.Entry], nil
	}

	var inserts, replaces []edits.BlockSpec
	var deletes []int
	for _, spec := range subs {
		if _, err := entryAt(spec.Target); err != nil {
			return "", err
		}
		switch {
		case spec.Action.IsInsert():
			inserts = append(inserts, spec)
		case spec.Action == edits.ActionReplace:
			replaces = append(replaces, spec)
		default:
			deletes = append(deletes, spec.Target.Entry)
		}
	}

	cursor := make(map[*etree.Element]*etree.Element)
	for _, spec := range inserts {
		ref, _ := entryAt(spec.Target)
		src := s.entrySource(entries, ref, spec.TOCLevel)
		np := src.Copy()
		if err := s.updateEntry(np, spec.Content, s.allocateAnchor(spec.AnchorBlockID)); err != nil {
			return "", err
		}
		if spec.Action == edits.ActionInsertAfter {
			at := ref
			if last, ok := cursor[ref]; ok {
				at = last
			}
			wml.InsertAfter(at, np)
			cursor[ref] = np
		} else {
			wml.InsertBefore(ref, np)
		}
	}

	for _, spec := range replaces {
		p, _ := entryAt(spec.Target)
		if err := s.updateEntry(p, spec.Content, s.allocateAnchor(spec.AnchorBlockID)); err != nil {
			return "", err
		}
	}

	sort.Sort(sort.Reverse(sort.IntSlice(deletes)))
	for _, i := range deletes {
		wml.Detach(entries[i])
	}

	s.logger.Debug("edited structured tag",
		zap.String("block", b.ID),
		zap.Int("inserts", len(inserts)),
		zap.Int("replaces", len(replaces)),
		zap.Int("deletes", len(deletes)))
	return wml.Serialize(sdt), nil
}

// entrySource 选择新条目复制的来源：
// 指定层级时取快照中同层级的第一个非空条目，没有则用层级模板，否则复制参考条目
func (s *session) entrySource(entries []*etree.Element, ref *etree.Element, level string) *etree.Element {
	if level == "" {
		return ref
	}
	tmpl, ok := s.a.TOCTemplate(level)
	if !ok {
		s.logger.Warn("toc level not found, copying the referenced entry", zap.String("level", level))
		return ref
	}
	for _, p := range entries {
		if strings.TrimSpace(wml.Text(p)) == "" {
			continue
		}
		styleID := wml.Val(p.SelectElement("w:pPr"), "w:pStyle", "")
		if (tmpl.StyleID != "" && styleID == tmpl.StyleID) || document.IndentLeft(p) == tmpl.IndentLeft {
			return p
		}
	}
	if el, err := wml.ParseFragment(tmpl.EntryXML); err == nil {
		return el
	}
	return ref
}

// allocateAnchor 为锚点段落分配书签名，同一段落复用同一个名字
func (s *session) allocateAnchor(blockID string) string {
	if blockID == "" {
		return ""
	}
	if name, ok := s.pending[blockID]; ok {
		return name
	}
	name := fmt.Sprintf("_Toc%08d", s.anchorSeq)
	s.anchorSeq++
	s.pending[blockID] = name
	return name
}

// updateEntry 改写目录条目的编号、标题与页码
// anchor 非空时同时改写超链接锚点与 PAGEREF 域代码
func (s *session) updateEntry(p *etree.Element, content, anchor string) error {
	text, page := content, ""
	if i := strings.LastIndex(content, "|"); i >= 0 {
		text, page = content[:i], strings.TrimSpace(content[i+1:])
	}
	text = strings.TrimSpace(text)

	number, title := "", text
	m, err := tocEntryPattern.FindStringMatch(text)
	if err != nil {
		return fmt.Errorf("failed to match toc entry %q: %w", text, err)
	}
	if m != nil {
		number = m.GroupByNumber(1).String()
		title = m.GroupByNumber(2).String()
	}

	if anchor != "" {
		for _, h := range p.FindElements(".//w:hyperlink") {
			h.CreateAttr("w:anchor", anchor)
		}
		for _, instr := range p.FindElements(".//w:instrText") {
			if strings.Contains(instr.Text(), "PAGEREF") {
				setSlot(instr, " PAGEREF "+anchor+` \h `)
			}
		}
	}

	var pre, post []*etree.Element
	var firstRun *etree.Element
	foundTab := false
	for _, r := range p.FindElements(".//w:r") {
		// 域代码字符不参与文本分配
		if r.SelectElement("w:fldChar") != nil || r.SelectElement("w:instrText") != nil {
			continue
		}
		for _, c := range r.ChildElements() {
			switch c.FullTag() {
			case "w:tab":
				foundTab = true
			case "w:t":
				if firstRun == nil {
					firstRun = r
				}
				if foundTab {
					post = append(post, c)
				} else {
					pre = append(pre, c)
				}
			}
		}
	}

	full := title
	if number != "" {
		full = strings.TrimSpace(number + " " + title)
	}
	switch {
	case len(pre) >= 2 && number != "":
		setSlot(pre[0], number)
		setSlot(pre[1], " "+title)
		clearSlots(pre[2:])
	case len(pre) >= 1:
		setSlot(pre[0], full)
		clearSlots(pre[1:])
	default:
		r := document.BareRun(full)
		container := p
		if h := p.FindElement(".//w:hyperlink"); h != nil {
			container = h
		}
		if first := container.SelectElement("w:r"); first != nil {
			wml.InsertBefore(first, r)
		} else {
			container.AddChild(r)
		}
		firstRun = r
	}

	if page == "" {
		return nil
	}
	if len(post) > 0 {
		setSlot(post[0], page)
		clearSlots(post[1:])
		return nil
	}

	r := etree.NewElement("w:r")
	if rPr := firstRun.SelectElement("w:rPr"); rPr != nil {
		r.AddChild(rPr.Copy())
	}
	if !foundTab {
		r.CreateElement("w:tab")
	}
	setSlot(r.CreateElement("w:t"), page)
	firstRun.Parent().AddChild(r)
	return nil
}

func clearSlots(ts []*etree.Element) {
	for _, t := range ts {
		t.SetText("")
	}
}

// injectBookmarks 在锚点段落上补书签，编号从分析时记录的最大值之后开始
func (s *session) injectBookmarks() error {
	type anchorRef struct{ block, name string }
	refs := make([]anchorRef, 0, len(s.pending))
	for block, name := range s.pending {
		refs = append(refs, anchorRef{block, name})
	}
	sort.Slice(refs, func(i, j int) bool { return refs[i].name < refs[j].name })

	for _, ref := range refs {
		idx, ok := s.paragraphParts[ref.block]
		if !ok {
			s.logger.Warn("anchor paragraph is not in the output, bookmark skipped",
				zap.String("block", ref.block),
				zap.String("bookmark", ref.name))
			continue
		}
		p, err := wml.ParseFragment(s.parts[idx])
		if err != nil {
			return fmt.Errorf("failed to parse anchor paragraph %s: %w", ref.block, err)
		}

		id := strconv.Itoa(s.bookmarkSeq)
		s.bookmarkSeq++
		start := etree.NewElement("w:bookmarkStart")
		start.CreateAttr("w:id", id)
		start.CreateAttr("w:name", ref.name)
		wml.InsertAfterProps(p, "w:pPr", start)
		end := etree.NewElement("w:bookmarkEnd")
		end.CreateAttr("w:id", id)
		p.AddChild(end)

		s.parts[idx] = wml.Serialize(p)
		s.logger.Debug("added bookmark",
			zap.String("block", ref.block),
			zap.String("bookmark", ref.name),
			zap.String("id", id))
	}
	return nil
}
