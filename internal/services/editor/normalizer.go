// -----------------------------------------------------------------------
// Normalizer - repairs arbitrary entry HTML into the canonical block form
// -----------------------------------------------------------------------

package editor

import (
	"strings"
	"time"

	"github.com/ternarybob/arbor"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// Normalizer rewrites a document into canonical block structure. The passes
// run in a fixed order; running the pipeline on its own output changes
// nothing, and no input makes it fail.
type Normalizer struct {
	logger arbor.ILogger
}

// NewNormalizer creates a new normalizer
func NewNormalizer(logger arbor.ILogger) *Normalizer {
	return &Normalizer{
		logger: logger,
	}
}

// Normalize runs the full pipeline over the document:
// cleanup, structural repair, block classification, line-break semantics,
// empty-document fallback.
func (nr *Normalizer) Normalize(doc *Document) {
	startTime := time.Now()
	before := len(doc.Blocks())

	nr.cleanup(doc)
	nr.repairStructure(doc)
	nr.classifyBlocks(doc)
	nr.applyLineBreakSemantics(doc)
	nr.ensurePlaceholder(doc)

	nr.logger.Debug().
		Int("blocks_before", before).
		Int("blocks_after", len(doc.Blocks())).
		Dur("process_time", time.Since(startTime)).
		Msg("Document normalized")
}

// --- Pass 1: cleanup ---

func (nr *Normalizer) cleanup(doc *Document) {
	removeComments(doc.root)
	convertLegacyTags(doc.root)
	collapseNestedInline(doc.root)
	stripZeroStyles(doc.root)
	removeTopLevelWhitespace(doc.root)
	removeEmptyElements(doc.root)
}

func removeComments(root *html.Node) {
	var comments []*html.Node
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			if c.Type == html.CommentNode {
				comments = append(comments, c)
				continue
			}
			walk(c)
		}
	}
	walk(root)
	for _, c := range comments {
		detach(c)
	}
}

// convertLegacyTags rewrites presentational b/i elements to strong/em
func convertLegacyTags(root *html.Node) {
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			if c.Type == html.ElementNode {
				switch c.DataAtom {
				case atom.B:
					c.Data = "strong"
					c.DataAtom = atom.Strong
				case atom.I:
					c.Data = "em"
					c.DataAtom = atom.Em
				}
			}
			walk(c)
		}
	}
	walk(root)
}

// collapseNestedInline unwraps formatting elements directly nested inside the
// same tag (doubled strong, em inside em). Anchors are left to the structural
// repair pass, which resolves nesting in favor of the outer link. Image
// wrapper interiors are manager-owned structure and stay untouched.
func collapseNestedInline(root *html.Node) {
	for {
		var doubled *html.Node
		var walk func(*html.Node) bool
		walk = func(n *html.Node) bool {
			if isImageWrapper(n) {
				return true
			}
			for c := n.FirstChild; c != nil; c = c.NextSibling {
				if c.Type == html.ElementNode && c.DataAtom != atom.A && inlineAtoms[c.DataAtom] &&
					n.Type == html.ElementNode && n.DataAtom == c.DataAtom && !isImageWrapper(c) {
					doubled = c
					return false
				}
				if !walk(c) {
					return false
				}
			}
			return true
		}
		walk(root)
		if doubled == nil {
			return
		}
		unwrap(doubled)
	}
}

// zeroStyleValues are declaration values carrying no visual effect
var zeroStyleValues = map[string]bool{
	"0": true, "0px": true, "0pt": true, "0em": true, "0rem": true, "0%": true,
}

// stripZeroStyles drops empty and zero-valued declarations from style
// attributes, removing the attribute entirely once nothing remains
func stripZeroStyles(root *html.Node) {
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			if style, ok := getAttr(n, "style"); ok {
				cleaned := cleanStyleAttr(style)
				if cleaned == "" {
					removeAttr(n, "style")
				} else if cleaned != style {
					setAttr(n, "style", cleaned)
				}
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(root)
}

func cleanStyleAttr(style string) string {
	var kept []string
	for _, decl := range strings.Split(style, ";") {
		decl = strings.TrimSpace(decl)
		if decl == "" {
			continue
		}
		parts := strings.SplitN(decl, ":", 2)
		if len(parts) != 2 {
			continue
		}
		value := strings.TrimSpace(parts[1])
		if value == "" || allZeroTokens(value) {
			continue
		}
		kept = append(kept, strings.TrimSpace(parts[0])+": "+value)
	}
	return strings.Join(kept, "; ")
}

func allZeroTokens(value string) bool {
	tokens := strings.Fields(strings.ToLower(value))
	if len(tokens) == 0 {
		return true
	}
	for _, t := range tokens {
		if !zeroStyleValues[t] {
			return false
		}
	}
	return true
}

// removeTopLevelWhitespace drops whitespace-only text nodes sitting between
// top-level blocks; inside blocks whitespace separates words and stays
func removeTopLevelWhitespace(root *html.Node) {
	for c := root.FirstChild; c != nil; {
		next := c.NextSibling
		if c.Type == html.TextNode && strings.TrimSpace(c.Data) == "" {
			root.RemoveChild(c)
		}
		c = next
	}
}

// removeEmptyElements removes elements with no text, no image descendant and
// no line break, iterating until a fixed point. A lone line break keeps its
// element alive: that is the caret placeholder shape.
func removeEmptyElements(root *html.Node) {
	for {
		var empties []*html.Node
		var walk func(*html.Node)
		walk = func(n *html.Node) {
			for c := n.FirstChild; c != nil; c = c.NextSibling {
				if isRemovableEmpty(c) {
					empties = append(empties, c)
					continue
				}
				walk(c)
			}
		}
		walk(root)
		if len(empties) == 0 {
			return
		}
		for _, e := range empties {
			detach(e)
		}
	}
}

func isRemovableEmpty(n *html.Node) bool {
	if n.Type != html.ElementNode {
		return false
	}
	if isElement(n, atom.Img, atom.Br) {
		return false
	}
	if hasText(n) {
		return false
	}
	if containsTag(n, atom.Img) || containsTag(n, atom.Br) {
		return false
	}
	return true
}

// --- Pass 2: structural repair ---

func (nr *Normalizer) repairStructure(doc *Document) {
	wrapOrphanListItems(doc.root)
	flattenNestedAnchors(doc.root)
	removeTextlessAnchors(doc.root)
	removeEmptyLists(doc.root)
}

// wrapOrphanListItems wraps runs of top-level list items in a single ul
func wrapOrphanListItems(root *html.Node) {
	for c := root.FirstChild; c != nil; {
		if !isElement(c, atom.Li) {
			c = c.NextSibling
			continue
		}
		list := newElement(atom.Ul)
		root.InsertBefore(list, c)
		for c != nil && isElement(c, atom.Li) {
			next := c.NextSibling
			root.RemoveChild(c)
			list.AppendChild(c)
			c = next
		}
	}
}

// flattenNestedAnchors unwraps anchors nested inside anchors, keeping the
// outer link target
func flattenNestedAnchors(root *html.Node) {
	for {
		var nested *html.Node
		var walk func(n *html.Node, insideAnchor bool) bool
		walk = func(n *html.Node, insideAnchor bool) bool {
			for c := n.FirstChild; c != nil; c = c.NextSibling {
				inner := insideAnchor
				if isElement(c, atom.A) {
					if insideAnchor {
						nested = c
						return false
					}
					inner = true
				}
				if !walk(c, inner) {
					return false
				}
			}
			return true
		}
		walk(root, false)
		if nested == nil {
			return
		}
		unwrap(nested)
	}
}

// removeTextlessAnchors removes anchors with no text and no image content
func removeTextlessAnchors(root *html.Node) {
	var textless []*html.Node
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			if isElement(c, atom.A) && !hasText(c) && !containsTag(c, atom.Img) {
				textless = append(textless, c)
				continue
			}
			walk(c)
		}
	}
	walk(root)
	for _, a := range textless {
		detach(a)
	}
}

// removeEmptyLists removes list containers holding no items
func removeEmptyLists(root *html.Node) {
	var empties []*html.Node
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
			if isList(c) && !containsTag(c, atom.Li) {
				empties = append(empties, c)
			}
		}
	}
	walk(root)
	for _, l := range empties {
		detach(l)
	}
}

// --- Pass 3: block classification ---

func (nr *Normalizer) classifyBlocks(doc *Document) {
	hoistNestedBlocks(doc)
	wrapStrayInline(doc.root)
	coerceTopLevelBlocks(doc.root)
}

// hoistNestedBlocks lifts headings and lists out of text blocks to the top
// level, splitting the host paragraph around them
func hoistNestedBlocks(doc *Document) {
	for {
		var host, nested *html.Node
		for _, block := range doc.Blocks() {
			if !isElement(block, atom.P) {
				continue
			}
			var find func(*html.Node) *html.Node
			find = func(n *html.Node) *html.Node {
				for c := n.FirstChild; c != nil; c = c.NextSibling {
					if isHeading(c) || isList(c) {
						return c
					}
					if found := find(c); found != nil {
						return found
					}
				}
				return nil
			}
			if found := find(block); found != nil {
				host, nested = block, found
				break
			}
		}
		if nested == nil {
			return
		}

		cont := splitSubtreeAfter(host, nested)
		detach(nested)
		insertAfter(doc.root, nested, host)
		if blockHasContent(cont) {
			insertAfter(doc.root, cont, nested)
		}
		if !blockHasContent(host) {
			detach(host)
		}
	}
}

// wrapStrayInline wraps runs of top-level text and inline elements into text
// blocks. A run consisting solely of line breaks separates existing blocks
// and is dropped instead of wrapped. Image wrappers count as blocks here
// even though their tag is inline.
func wrapStrayInline(root *html.Node) {
	strayInline := func(n *html.Node) bool {
		return isInline(n) && !isImageWrapper(n)
	}
	for c := root.FirstChild; c != nil; {
		if !strayInline(c) {
			c = c.NextSibling
			continue
		}

		// collect the maximal run of inline siblings
		var run []*html.Node
		for c != nil && strayInline(c) {
			run = append(run, c)
			c = c.NextSibling
		}

		meaningful := false
		for _, n := range run {
			if !isElement(n, atom.Br) {
				meaningful = true
				break
			}
		}
		if !meaningful {
			// stray separators between blocks
			for _, n := range run {
				detach(n)
			}
			continue
		}

		block := newTextBlock()
		root.InsertBefore(block, run[0])
		for _, n := range run {
			detach(n)
			block.AppendChild(n)
		}
	}
}

// coerceTopLevelBlocks gives paragraph-likes the text block marker and
// rewrites unsupported containers into text blocks. Canonical structures
// (headings, lists, image wrappers, image groups) pass through.
func coerceTopLevelBlocks(root *html.Node) {
	for c := root.FirstChild; c != nil; c = c.NextSibling {
		if c.Type != html.ElementNode {
			continue
		}
		switch {
		case isElement(c, atom.P):
			addClass(c, ClassTextBlock)
		case isHeading(c) || isList(c):
			// already canonical
		case isImageWrapper(c) || isImageGroup(c):
			// layout manager owns these
		default:
			c.Data = "p"
			c.DataAtom = atom.P
			addClass(c, ClassTextBlock)
		}
	}
}

// --- Pass 4: line-break semantics ---

func (nr *Normalizer) applyLineBreakSemantics(doc *Document) {
	block := doc.root.FirstChild
	for block != nil {
		next := block.NextSibling
		if isTextBlock(block) {
			normalizeBlockBreaks(doc, block)
		}
		block = next
	}
}

// normalizeBlockBreaks collapses break runs, trims edge breaks and splits the
// block at breaks with content on both sides. The continuation block is
// processed in turn: a block pasted with many breaks fans out left to right.
func normalizeBlockBreaks(doc *Document, block *html.Node) {
	collapseBrRuns(block)

	hasContent := blockHasContent(block)
	if hasContent {
		trimEdgeBreaks(block)
	}

	for {
		br := findSplittableBr(block)
		if br == nil {
			return
		}
		cont := splitSubtreeAfter(block, br)
		detach(br)
		insertAfter(doc.root, cont, block)
		block = cont
		collapseBrRuns(block)
		trimEdgeBreaks(block)
	}
}

// collapseBrRuns reduces runs of consecutive line breaks to a single break.
// Whitespace-only text between breaks does not interrupt a run.
func collapseBrRuns(block *html.Node) {
	brs := collectBrs(block)
	for _, br := range brs {
		if br.Parent == nil {
			continue
		}
		for {
			sib := br.NextSibling
			for sib != nil && sib.Type == html.TextNode && strings.TrimSpace(sib.Data) == "" {
				sib = sib.NextSibling
			}
			if sib == nil || !isElement(sib, atom.Br) {
				break
			}
			detach(sib)
		}
	}
}

// trimEdgeBreaks removes breaks with no content on one side; they render as
// stray blank space at block edges
func trimEdgeBreaks(block *html.Node) {
	for {
		removed := false
		for _, br := range collectBrs(block) {
			before, after := contentAround(block, br)
			if !before || !after {
				detach(br)
				removed = true
			}
		}
		if !removed {
			return
		}
	}
}

// findSplittableBr returns the first break with content on both sides
func findSplittableBr(block *html.Node) *html.Node {
	for _, br := range collectBrs(block) {
		before, after := contentAround(block, br)
		if before && after {
			return br
		}
	}
	return nil
}

// collectBrs returns breaks inside the block, skipping image wrapper interiors
func collectBrs(block *html.Node) []*html.Node {
	var brs []*html.Node
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			if isImageWrapper(c) {
				continue
			}
			if isElement(c, atom.Br) {
				brs = append(brs, c)
				continue
			}
			walk(c)
		}
	}
	walk(block)
	return brs
}

// contentAround reports whether meaningful content (text or an image) exists
// before and after the marker within the block
func contentAround(block, marker *html.Node) (before, after bool) {
	seen := false
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n == marker {
			seen = true
			return
		}
		if n.Type == html.TextNode && strings.TrimSpace(n.Data) != "" {
			if seen {
				after = true
			} else {
				before = true
			}
			return
		}
		if isElement(n, atom.Img) {
			if seen {
				after = true
			} else {
				before = true
			}
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(block)
	return before, after
}

// blockHasContent reports whether a block carries text or an image
func blockHasContent(block *html.Node) bool {
	return hasText(block) || containsTag(block, atom.Img)
}

// splitSubtreeAfter splits block into two at marker: everything after marker
// in document order moves to a new text block, with marker's inline ancestor
// chain cloned so formatting spans the boundary. The marker itself stays in
// the original block; callers detach or hoist it.
func splitSubtreeAfter(block, marker *html.Node) *html.Node {
	return splitAfterInto(block, marker, newTextBlock())
}

// splitAfterInto moves everything after marker in document order out of
// container and into cont, cloning marker's ancestor chain below container
// so formatting spans the boundary. Returns cont.
func splitAfterInto(container, marker, cont *html.Node) *html.Node {
	// ancestors of marker below container, outermost first
	var path []*html.Node
	for cur := marker.Parent; cur != container; cur = cur.Parent {
		path = append([]*html.Node{cur}, path...)
	}

	attach := cont
	for _, anc := range path {
		clone := shallowClone(anc)
		attach.AppendChild(clone)
		attach = clone
	}

	// deepest level: siblings after marker
	parent := marker.Parent
	for sib := marker.NextSibling; sib != nil; {
		next := sib.NextSibling
		parent.RemoveChild(sib)
		attach.AppendChild(sib)
		sib = next
	}

	// walk back up moving the tail at each ancestor level
	cloneAtLevel := attach
	for i := len(path) - 1; i >= 0; i-- {
		node := path[i]
		cloneParent := cloneAtLevel.Parent
		for sib := node.NextSibling; sib != nil; {
			next := sib.NextSibling
			node.Parent.RemoveChild(sib)
			cloneParent.AppendChild(sib)
			sib = next
		}
		cloneAtLevel = cloneParent
	}

	// drop formatting clones that received nothing
	removeEmptyElements(cont)
	return cont
}

// --- Pass 5: empty-document fallback ---

func (nr *Normalizer) ensurePlaceholder(doc *Document) {
	if doc.root.FirstChild == nil {
		doc.root.AppendChild(newPlaceholderBlock())
	}
}
