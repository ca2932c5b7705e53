// -----------------------------------------------------------------------
// Toolbar - formatting commands over the live selection
// -----------------------------------------------------------------------

package editor

import (
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/scribo/internal/common"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// indentStep is the margin applied per indent level outside lists, in px
const indentStep = 40

// ActiveStates mirrors the toolbar buttons against the current selection.
// List states are mutually exclusive; everything false when there is no
// selection.
type ActiveStates struct {
	Bold          bool `json:"bold"`           //
	Italic        bool `json:"italic"`         //
	Code          bool `json:"code"`           //
	Heading       int  `json:"heading"`        // 0 none, else 2..4
	UnorderedList bool `json:"unordered_list"` //
	OrderedList   bool `json:"ordered_list"`   //
	Link          bool `json:"link"`           //
}

// Toolbar applies formatting commands to the document selection. Every
// command that changes the tree fires the content-changed callback once,
// synchronously.
type Toolbar struct {
	doc       *Document
	callbacks *Callbacks
	logger    arbor.ILogger
}

// NewToolbar creates a toolbar bound to one document
func NewToolbar(doc *Document, callbacks *Callbacks, logger arbor.ILogger) *Toolbar {
	return &Toolbar{
		doc:       doc,
		callbacks: callbacks,
		logger:    logger,
	}
}

// ToggleBold toggles strong formatting over the selection
func (t *Toolbar) ToggleBold() bool {
	return t.toggleInline(atom.Strong, atom.B)
}

// ToggleItalic toggles emphasis over the selection
func (t *Toolbar) ToggleItalic() bool {
	return t.toggleInline(atom.Em, atom.I)
}

// ToggleCode toggles inline code over the selection
func (t *Toolbar) ToggleCode() bool {
	return t.toggleInline(atom.Code)
}

// ToggleHeading converts the selected blocks to the given heading level, or
// back to text blocks when they already carry it. Levels outside 2..4 are
// rejected.
func (t *Toolbar) ToggleHeading(level int) bool {
	if level < 2 || level > 4 {
		t.logger.Warn().Int("level", level).Msg("Unsupported heading level")
		return false
	}

	changed := false
	for _, b := range t.selectedBlocks() {
		switch {
		case headingLevel(b) == level:
			renameToTextBlock(b)
			changed = true
		case isTextBlock(b) || isHeading(b):
			renameToHeading(b, level)
			changed = true
		}
	}
	if changed {
		t.fireContentChanged()
	}
	return changed
}

// ToggleUnorderedList toggles bullet-list formatting over the selection
func (t *Toolbar) ToggleUnorderedList() bool {
	return t.toggleList(atom.Ul)
}

// ToggleOrderedList toggles numbered-list formatting over the selection
func (t *Toolbar) ToggleOrderedList() bool {
	return t.toggleList(atom.Ol)
}

// Indent nests the current list item one level deeper, or widens the left
// margin of non-list blocks
func (t *Toolbar) Indent() bool {
	sel := t.doc.Selection()
	if sel == nil {
		return false
	}
	start, _ := sel.ordered(t.doc.root)
	if li := ancestorListItem(t.doc.root, start.Node); li != nil {
		if t.indentListItem(li) {
			t.fireContentChanged()
			return true
		}
		return false
	}

	changed := false
	for _, b := range t.selectedBlocks() {
		if isTextBlock(b) || isHeading(b) {
			bumpMargin(b, indentStep)
			changed = true
		}
	}
	if changed {
		t.fireContentChanged()
	}
	return changed
}

// Outdent lifts the current list item one level up, or narrows the left
// margin of non-list blocks
func (t *Toolbar) Outdent() bool {
	sel := t.doc.Selection()
	if sel == nil {
		return false
	}
	start, _ := sel.ordered(t.doc.root)
	if li := ancestorListItem(t.doc.root, start.Node); li != nil {
		if t.outdentListItem(li) {
			t.fireContentChanged()
			return true
		}
		return false
	}

	changed := false
	for _, b := range t.selectedBlocks() {
		if (isTextBlock(b) || isHeading(b)) && bumpMargin(b, -indentStep) {
			changed = true
		}
	}
	if changed {
		t.fireContentChanged()
	}
	return changed
}

// ApplyLink wraps the selection in a link to the normalized URL: bare hosts
// gain an https:// prefix, existing http(s) and mailto targets pass through
func (t *Toolbar) ApplyLink(rawURL string) bool {
	url := common.NormalizeLinkURL(rawURL)
	if url == "" {
		return false
	}

	nodes := t.selectedTextNodes()
	if len(nodes) == 0 {
		return false
	}

	// an existing link over part of the range gets replaced
	for _, n := range nodes {
		if a := ancestorTag(t.doc.root, n, atom.A); a != nil {
			liftOutOf(a, n)
		}
	}

	parents := make(map[*html.Node]struct{})
	for _, n := range nodes {
		link := newElement(atom.A)
		setAttr(link, "href", url)
		wrapNode(n, link)
		parents[link.Parent] = struct{}{}
	}
	for p := range parents {
		mergeAdjacentSiblings(p, atom.A)
	}

	t.restoreRange(nodes)
	t.fireContentChanged()
	return true
}

// ActiveStates derives the button states from the selection's ancestor
// chain. No selection means every state is off.
func (t *Toolbar) ActiveStates() ActiveStates {
	var states ActiveStates
	sel := t.doc.Selection()
	if sel == nil {
		return states
	}
	start, _ := sel.ordered(t.doc.root)
	if start.Node == nil {
		return states
	}

	for cur := start.Node; cur != nil && cur != t.doc.root; cur = cur.Parent {
		if !isElement(cur) {
			continue
		}
		switch cur.DataAtom {
		case atom.Strong, atom.B:
			states.Bold = true
		case atom.Em, atom.I:
			states.Italic = true
		case atom.Code:
			states.Code = true
		case atom.A:
			states.Link = true
		case atom.H2:
			states.Heading = 2
		case atom.H3:
			states.Heading = 3
		case atom.H4:
			states.Heading = 4
		case atom.Ul:
			if !states.UnorderedList && !states.OrderedList {
				states.UnorderedList = true
			}
		case atom.Ol:
			if !states.UnorderedList && !states.OrderedList {
				states.OrderedList = true
			}
		}
	}
	return states
}

// --- inline formatting ---

// toggleInline applies or removes an inline tag over the selected text. The
// toggle direction comes from the whole range: only a fully formatted
// selection unwraps.
func (t *Toolbar) toggleInline(tag atom.Atom, aliases ...atom.Atom) bool {
	nodes := t.selectedTextNodes()
	if len(nodes) == 0 {
		return false
	}
	tags := append([]atom.Atom{tag}, aliases...)

	active := true
	for _, n := range nodes {
		if ancestorTag(t.doc.root, n, tags...) == nil {
			active = false
			break
		}
	}

	if active {
		for _, n := range nodes {
			if a := ancestorTag(t.doc.root, n, tags...); a != nil {
				liftOutOf(a, n)
			}
		}
	} else {
		parents := make(map[*html.Node]struct{})
		for _, n := range nodes {
			if ancestorTag(t.doc.root, n, tags...) != nil {
				continue
			}
			wrapNode(n, newElement(tag))
			parents[n.Parent.Parent] = struct{}{}
		}
		for p := range parents {
			mergeAdjacentSiblings(p, tag)
		}
	}

	t.restoreRange(nodes)
	t.fireContentChanged()
	return true
}

// selectedTextNodes splits the boundary text nodes and returns the whole
// text nodes covered by the selection, in document order. Nil for a missing
// or collapsed selection.
func (t *Toolbar) selectedTextNodes() []*html.Node {
	sel := t.doc.Selection()
	if sel == nil || sel.Collapsed() {
		return nil
	}
	start, end := sel.ordered(t.doc.root)
	sp := toTextPosition(t.doc, start)
	ep := toTextPosition(t.doc, end)
	if sp == nil || ep == nil {
		return nil
	}
	s, so := sp.Node, sp.Offset
	e, eo := ep.Node, ep.Offset
	if s == e {
		if so >= eo {
			return nil
		}
		splitTextNode(e, eo)
		mid := splitTextNode(s, so)
		return []*html.Node{mid}
	}

	endAfter := splitTextNode(e, eo)
	startNode := splitTextNode(s, so)

	var stop *html.Node
	if endAfter == e {
		stop = e // range ends before e's text
	} else {
		stop = endAfter // nil when the range runs to e's end
	}

	var nodes []*html.Node
	collecting := false
	walkTextNodes(t.doc.root, func(tn *html.Node) bool {
		if startNode != nil && tn == startNode {
			collecting = true
		}
		if startNode == nil && tn == s {
			// range starts after s's text
			collecting = true
			return true
		}
		if stop != nil && tn == stop {
			return false
		}
		if collecting && tn.Data != "" {
			nodes = append(nodes, tn)
		}
		if stop == nil && tn == e {
			return false
		}
		return true
	})
	return nodes
}

// restoreRange re-selects the covered text nodes end to end
func (t *Toolbar) restoreRange(nodes []*html.Node) {
	if len(nodes) == 0 {
		return
	}
	first := nodes[0]
	last := nodes[len(nodes)-1]
	t.doc.SetSelection(&Selection{
		Start: Position{Node: first, Offset: 0},
		End:   Position{Node: last, Offset: utf8.RuneCountInString(last.Data)},
	})
}

// --- block formatting ---

// selectedBlocks returns the top-level blocks the selection touches, the
// caret's block alone for a collapsed selection
func (t *Toolbar) selectedBlocks() []*html.Node {
	sel := t.doc.Selection()
	if sel == nil {
		return nil
	}
	start, end := sel.ordered(t.doc.root)
	sb := t.doc.TopLevelOf(start.Node)
	eb := t.doc.TopLevelOf(end.Node)
	if sb == nil || eb == nil {
		return nil
	}
	blocks := t.doc.Blocks()
	si, ei := -1, -1
	for i, b := range blocks {
		if b == sb {
			si = i
		}
		if b == eb {
			ei = i
		}
	}
	if si < 0 || ei < 0 {
		return nil
	}
	if si > ei {
		si, ei = ei, si
	}
	return blocks[si : ei+1]
}

// toggleList converts the selected blocks to the given list type, renames
// lists of the other type, and unwraps lists already of that type.
// Consecutive converted blocks coalesce into one list.
func (t *Toolbar) toggleList(tag atom.Atom) bool {
	blocks := t.selectedBlocks()
	if len(blocks) == 0 {
		return false
	}

	changed := false
	var pending []*html.Node
	flush := func() {
		if len(pending) == 0 {
			return
		}
		list := newElement(tag)
		t.doc.root.InsertBefore(list, pending[0])
		for _, b := range pending {
			li := newElement(atom.Li)
			moveChildren(li, b)
			list.AppendChild(li)
			detach(b)
		}
		pending = nil
		changed = true
	}

	for _, b := range blocks {
		switch {
		case isList(b) && b.DataAtom == tag:
			flush()
			unwrapListToBlocks(t.doc.root, b)
			changed = true
		case isList(b):
			flush()
			b.DataAtom = tag
			b.Data = tag.String()
			changed = true
		case isTextBlock(b) || isHeading(b):
			pending = append(pending, b)
		default:
			flush()
		}
	}
	flush()

	if changed {
		t.fireContentChanged()
	}
	return changed
}

// indentListItem nests a list item under its preceding sibling
func (t *Toolbar) indentListItem(li *html.Node) bool {
	prev := previousListItem(li)
	if prev == nil {
		return false
	}
	list := li.Parent

	// reuse a trailing nested list on the previous item when present
	var nested *html.Node
	if last := prev.LastChild; last != nil && isElement(last, list.DataAtom) {
		nested = last
	} else {
		nested = newElement(list.DataAtom)
		prev.AppendChild(nested)
	}
	detach(li)
	nested.AppendChild(li)
	return true
}

// outdentListItem lifts a list item out of its list: nested items move up a
// level, top-level items become text blocks. Items following the lifted one
// nest under it so document order holds.
func (t *Toolbar) outdentListItem(li *html.Node) bool {
	list := li.Parent
	if list == nil || !isList(list) {
		return false
	}

	// carry trailing siblings along as a nested list
	var tail []*html.Node
	for sib := li.NextSibling; sib != nil; sib = sib.NextSibling {
		tail = append(tail, sib)
	}

	if parentItem := list.Parent; parentItem != nil && isElement(parentItem, atom.Li) {
		// nested list: move up beside the parent item
		if len(tail) > 0 {
			carried := newElement(list.DataAtom)
			for _, sib := range tail {
				detach(sib)
				carried.AppendChild(sib)
			}
			li.AppendChild(carried)
		}
		detach(li)
		insertAfter(parentItem.Parent, li, parentItem)
		if !hasListItems(list) {
			detach(list)
		}
		return true
	}

	if list.Parent != t.doc.root {
		return false
	}

	// top-level list: the item leaves the list as a text block
	block := newTextBlock()
	moveChildren(block, li)
	if len(tail) > 0 {
		split := newElement(list.DataAtom)
		for _, sib := range tail {
			detach(sib)
			split.AppendChild(sib)
		}
		insertAfter(t.doc.root, split, list)
		insertAfter(t.doc.root, block, list)
	} else {
		insertAfter(t.doc.root, block, list)
	}
	detach(li)
	if !hasListItems(list) {
		detach(list)
	}
	return true
}

func (t *Toolbar) fireContentChanged() {
	if t.callbacks != nil && t.callbacks.OnContentChanged != nil {
		t.callbacks.OnContentChanged()
	}
}

// --- helpers ---

// ancestorTag returns the nearest ancestor of n below root matching one of
// the tags
func ancestorTag(root, n *html.Node, tags ...atom.Atom) *html.Node {
	for cur := n.Parent; cur != nil && cur != root; cur = cur.Parent {
		if !isElement(cur) {
			continue
		}
		for _, tag := range tags {
			if cur.DataAtom == tag {
				return cur
			}
		}
	}
	return nil
}

// ancestorListItem returns the nearest enclosing list item below root
func ancestorListItem(root, n *html.Node) *html.Node {
	return ancestorTag(root, n, atom.Li)
}

// liftOutOf removes formatting element a from around text node n only,
// splitting a so its other content keeps the formatting and n keeps any
// intermediate formatting of its own
func liftOutOf(a, n *html.Node) {
	if hasTailAfter(a, n) {
		after := splitAfterInto(a, n, shallowClone(a))
		if after.FirstChild != nil {
			insertAfter(a.Parent, after, a)
		}
	}
	if prev := nodeBefore(a, n); prev != nil {
		mid := splitAfterInto(a, prev, shallowClone(a))
		insertAfter(a.Parent, mid, a)
		unwrap(mid)
	} else {
		unwrap(a)
	}
}

// hasTailAfter reports whether anything follows n in container's subtree
func hasTailAfter(container, n *html.Node) bool {
	for cur := n; cur != nil && cur != container; cur = cur.Parent {
		if cur.NextSibling != nil {
			return true
		}
	}
	return false
}

// wrapNode wraps n in the given element, in place
func wrapNode(n, wrapper *html.Node) {
	parent := n.Parent
	parent.InsertBefore(wrapper, n)
	parent.RemoveChild(n)
	wrapper.AppendChild(n)
}

// mergeAdjacentSiblings joins neighboring same-tag elements with identical
// attributes under one parent
func mergeAdjacentSiblings(parent *html.Node, tag atom.Atom) {
	for c := parent.FirstChild; c != nil; {
		next := c.NextSibling
		if next != nil && isElement(c, tag) && isElement(next, tag) && attrsEqual(c, next) {
			moveChildren(c, next)
			detach(next)
			continue
		}
		c = next
	}
}

func attrsEqual(a, b *html.Node) bool {
	if len(a.Attr) != len(b.Attr) {
		return false
	}
	set := make(map[string]string, len(a.Attr))
	for _, attr := range a.Attr {
		set[attr.Key] = attr.Val
	}
	for _, attr := range b.Attr {
		if val, ok := set[attr.Key]; !ok || val != attr.Val {
			return false
		}
	}
	return true
}

// headingLevel returns 2..4 for supported headings, 0 otherwise
func headingLevel(n *html.Node) int {
	if !isElement(n) {
		return 0
	}
	switch n.DataAtom {
	case atom.H2:
		return 2
	case atom.H3:
		return 3
	case atom.H4:
		return 4
	}
	return 0
}

func renameToHeading(b *html.Node, level int) {
	switch level {
	case 2:
		b.DataAtom = atom.H2
	case 3:
		b.DataAtom = atom.H3
	default:
		b.DataAtom = atom.H4
	}
	b.Data = b.DataAtom.String()
	removeClass(b, ClassTextBlock)
}

func renameToTextBlock(b *html.Node) {
	b.DataAtom = atom.P
	b.Data = "p"
	addClass(b, ClassTextBlock)
}

// unwrapListToBlocks dissolves a top-level list, each item becoming a text
// block in place
func unwrapListToBlocks(root, list *html.Node) {
	for c := list.FirstChild; c != nil; {
		next := c.NextSibling
		if isElement(c, atom.Li) {
			block := newTextBlock()
			moveChildren(block, c)
			root.InsertBefore(block, list)
		}
		c = next
	}
	detach(list)
}

// previousListItem returns the preceding li sibling, skipping whitespace
func previousListItem(li *html.Node) *html.Node {
	for sib := li.PrevSibling; sib != nil; sib = sib.PrevSibling {
		if isElement(sib, atom.Li) {
			return sib
		}
	}
	return nil
}

// hasListItems reports whether a list still holds any items
func hasListItems(list *html.Node) bool {
	for c := list.FirstChild; c != nil; c = c.NextSibling {
		if isElement(c, atom.Li) {
			return true
		}
	}
	return false
}

// bumpMargin steps a block's margin-left by delta px, dropping the style
// token at zero. Returns whether anything changed.
func bumpMargin(b *html.Node, delta int) bool {
	current := 0
	style, _ := getAttr(b, "style")
	var kept []string
	for _, tok := range strings.Split(style, ";") {
		tok = strings.TrimSpace(tok)
		if tok == "" {
			continue
		}
		parts := strings.SplitN(tok, ":", 2)
		if len(parts) == 2 && strings.TrimSpace(strings.ToLower(parts[0])) == "margin-left" {
			val := strings.TrimSpace(strings.ToLower(parts[1]))
			val = strings.TrimSuffix(val, "px")
			if n, err := strconv.Atoi(strings.TrimSpace(val)); err == nil {
				current = n
			}
			continue
		}
		kept = append(kept, tok)
	}

	next := current + delta
	if next < 0 {
		next = 0
	}
	if next == current {
		return false
	}
	if next > 0 {
		kept = append(kept, "margin-left: "+strconv.Itoa(next)+"px")
	}
	if len(kept) == 0 {
		removeAttr(b, "style")
	} else {
		setAttr(b, "style", strings.Join(kept, "; "))
	}
	return true
}
