// -----------------------------------------------------------------------
// Paste Handler - plain-text paste into the block structure
// -----------------------------------------------------------------------

package editor

import (
	"strings"
	"unicode/utf8"

	"github.com/ternarybob/arbor"
	"golang.org/x/net/html"
)

// PasteHandler intercepts paste input as plain text: any markup in the
// clipboard is ignored, multi-line text fans out into one text block per
// line, and the document announces a single change regardless of how many
// blocks were created.
type PasteHandler struct {
	doc       *Document
	callbacks *Callbacks
	logger    arbor.ILogger
}

// NewPasteHandler creates a new paste handler
func NewPasteHandler(doc *Document, callbacks *Callbacks, logger arbor.ILogger) *PasteHandler {
	return &PasteHandler{
		doc:       doc,
		callbacks: callbacks,
		logger:    logger,
	}
}

// HandlePaste processes clipboard text. Returns true when the paste was
// absorbed structurally (multi-line split or swallowed blank input); false
// means the text went through plain single-line insertion at the caret.
func (p *PasteHandler) HandlePaste(text string) bool {
	if strings.TrimSpace(text) == "" {
		// nothing to insert, nothing to announce
		return true
	}

	normalized := strings.ReplaceAll(text, "\r\n", "\n")
	normalized = strings.ReplaceAll(normalized, "\r", "\n")

	if !strings.Contains(normalized, "\n") {
		p.insertPlainText(normalized)
		return false
	}

	// blank lines collapse instead of producing empty blocks
	var lines []string
	for _, line := range strings.Split(normalized, "\n") {
		if strings.TrimSpace(line) != "" {
			lines = append(lines, line)
		}
	}
	if len(lines) == 0 {
		return true
	}
	if len(lines) == 1 {
		p.insertPlainText(lines[0])
		return false
	}

	p.insertLineBlocks(lines)
	return true
}

// insertPlainText replaces the selection with text at the caret, the way the
// editing surface inserts a keystroke
func (p *PasteHandler) insertPlainText(text string) {
	deleteSelectionRange(p.doc)
	pos := p.caretPosition()

	if isTextNode(pos.Node) {
		runes := []rune(pos.Node.Data)
		offset := pos.Offset
		if offset > len(runes) {
			offset = len(runes)
		}
		pos.Node.Data = string(runes[:offset]) + text + string(runes[offset:])
		p.doc.SetCaret(pos.Node, offset+utf8.RuneCountInString(text))
	} else {
		// element caret (empty block): materialize a text node at the boundary
		t := newTextNode(text)
		ref := childAt(pos.Node, pos.Offset)
		if ref != nil {
			pos.Node.InsertBefore(t, ref)
		} else {
			pos.Node.AppendChild(t)
		}
		p.doc.SetCaret(t, utf8.RuneCountInString(text))
	}

	p.fireContentChanged()
}

// insertLineBlocks replaces the selection with one text block per line and
// leaves the caret at the end of the last one
func (p *PasteHandler) insertLineBlocks(lines []string) {
	deleteSelectionRange(p.doc)
	pos := p.caretPosition()

	block := p.doc.TopLevelOf(pos.Node)
	if block == nil {
		// caret fell outside any block: append at the document tail
		block = p.doc.root.LastChild
	}

	var lineBlocks []*html.Node
	for _, line := range lines {
		lb := newTextBlock()
		lb.AppendChild(newTextNode(line))
		lineBlocks = append(lineBlocks, lb)
	}

	switch {
	case block == nil:
		// empty document
		for _, lb := range lineBlocks {
			p.doc.root.AppendChild(lb)
		}
	default:
		marker := splitMarkerFor(block, pos)
		if marker == nil {
			// caret at the very start: lines go before the block
			for _, lb := range lineBlocks {
				p.doc.root.InsertBefore(lb, block)
			}
			if !blockHasContent(block) {
				// pasted over the empty placeholder
				detach(block)
			}
		} else {
			right := splitSubtreeAfter(block, marker)
			prev := block
			for _, lb := range lineBlocks {
				insertAfter(p.doc.root, lb, prev)
				prev = lb
			}
			if blockHasContent(right) {
				insertAfter(p.doc.root, right, prev)
			}
			if !blockHasContent(block) {
				detach(block)
			}
		}
	}

	last := lineBlocks[len(lineBlocks)-1]
	if t := lastTextNode(last); t != nil {
		p.doc.SetCaret(t, utf8.RuneCountInString(t.Data))
	}

	p.logger.Debug().
		Int("lines", len(lines)).
		Msg("Multi-line paste split into text blocks")

	p.fireContentChanged()
}

// caretPosition resolves where insertion happens: the collapsed selection,
// or the document tail when there is no usable selection
func (p *PasteHandler) caretPosition() Position {
	if sel := p.doc.Selection(); sel != nil {
		return sel.Start.clampToNode()
	}
	return resolveOffset(p.doc, p.doc.TextLength(), -1)
}

func (p *PasteHandler) fireContentChanged() {
	if p.callbacks != nil && p.callbacks.OnContentChanged != nil {
		p.callbacks.OnContentChanged()
	}
}

// splitMarkerFor finds the node the block splits after for a caret position:
// everything following the marker belongs to the right half. Nil means the
// caret sits before any content.
func splitMarkerFor(block *html.Node, pos Position) *html.Node {
	if isTextNode(pos.Node) {
		tail := splitTextNode(pos.Node, pos.Offset)
		if tail == pos.Node {
			// caret at the start of this text node
			return nodeBefore(block, pos.Node)
		}
		return pos.Node
	}

	if pos.Offset > 0 {
		return childAt(pos.Node, pos.Offset-1)
	}
	if pos.Node == block {
		return nil
	}
	return nodeBefore(block, pos.Node)
}

// nodeBefore returns the sibling boundary node preceding n within block:
// the previous sibling of n or of its nearest ancestor under block. Nil
// when n opens the block.
func nodeBefore(block, n *html.Node) *html.Node {
	for cur := n; cur != nil && cur != block; cur = cur.Parent {
		if cur.PrevSibling != nil {
			return cur.PrevSibling
		}
	}
	return nil
}

// childAt returns the i-th child of n, clamping to the last child
func childAt(n *html.Node, i int) *html.Node {
	if i < 0 {
		return nil
	}
	idx := 0
	var last *html.Node
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if idx == i {
			return c
		}
		last = c
		idx++
	}
	return last
}

// deleteSelectionRange removes the selected content and collapses the
// selection to the join point. Cross-block ranges merge the tail block's
// remainder into the head block; elements fully inside the range go with it.
func deleteSelectionRange(d *Document) {
	sel := d.Selection()
	if sel == nil || sel.Collapsed() {
		return
	}

	start, end := sel.ordered(d.root)
	startText := toTextPosition(d, start)
	endText := toTextPosition(d, end)
	if startText == nil || endText == nil {
		d.SetCaret(start.Node, start.Offset)
		return
	}

	s, so := startText.Node, startText.Offset
	e, eo := endText.Node, endText.Offset

	if s == e {
		runes := []rune(s.Data)
		if so > len(runes) {
			so = len(runes)
		}
		if eo > len(runes) {
			eo = len(runes)
		}
		s.Data = string(runes[:so]) + string(runes[eo:])
		d.SetCaret(s, so)
		return
	}

	sRunes := []rune(s.Data)
	if so <= len(sRunes) {
		s.Data = string(sRunes[:so])
	}
	eRunes := []rune(e.Data)
	if eo <= len(eRunes) {
		e.Data = string(eRunes[eo:])
	}

	removeBetween(d.root, s, e)

	sb := d.TopLevelOf(s)
	eb := d.TopLevelOf(e)
	if sb != nil && eb != nil && sb != eb {
		moveChildren(sb, eb)
		detach(eb)
	}

	d.SetCaret(s, so)
}

// toTextPosition converts a position to a text-node anchor. Element anchors
// resolve through their flattened character offset.
func toTextPosition(d *Document, pos Position) *Position {
	if isTextNode(pos.Node) {
		p := pos.clampToNode()
		return &p
	}
	off := flattenPosition(d.root, pos)
	resolved := resolveOffset(d, off, -1)
	if !isTextNode(resolved.Node) {
		return nil
	}
	return &resolved
}

// removeBetween removes nodes strictly between two text nodes in document
// order: text nodes inside the range and elements whose whole subtree lies
// inside it
func removeBetween(root *html.Node, s, e *html.Node) {
	var doomed []*html.Node
	phase := 0 // 0 before s, 1 inside, 2 after e
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if phase == 2 {
			return
		}
		if n == s {
			phase = 1
			return
		}
		if n == e {
			phase = 2
			return
		}
		if phase == 1 && !containsNode(n, e) {
			doomed = append(doomed, n)
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	for c := root.FirstChild; c != nil; c = c.NextSibling {
		if phase == 2 {
			break
		}
		walk(c)
	}
	for _, n := range doomed {
		detach(n)
	}
}
