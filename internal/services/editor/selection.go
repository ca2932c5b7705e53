// -----------------------------------------------------------------------
// Selection - node-anchored positions over the live document tree
// -----------------------------------------------------------------------

package editor

import (
	"unicode/utf8"

	"golang.org/x/net/html"
)

// Position anchors one end of a selection. For text nodes the offset counts
// runes into the node's data; for element nodes it counts children, the way
// the editing surface reports element-relative anchors (an empty text block
// holds the caret as {block, 0}).
type Position struct {
	Node   *html.Node
	Offset int
}

// Selection is a directed range over the document. Start and End are equal
// for a collapsed caret.
type Selection struct {
	Start Position
	End   Position
}

// Collapsed reports whether the selection is a caret
func (s *Selection) Collapsed() bool {
	return s.Start.Node == s.End.Node && s.Start.Offset == s.End.Offset
}

// clampToNode bounds an offset to what its node can hold
func (p Position) clampToNode() Position {
	if p.Node == nil {
		return p
	}
	max := 0
	if isTextNode(p.Node) {
		max = utf8.RuneCountInString(p.Node.Data)
	} else {
		for c := p.Node.FirstChild; c != nil; c = c.NextSibling {
			max++
		}
	}
	if p.Offset < 0 {
		p.Offset = 0
	}
	if p.Offset > max {
		p.Offset = max
	}
	return p
}

// ordered returns the selection endpoints in document order
func (s *Selection) ordered(root *html.Node) (Position, Position) {
	if s.Collapsed() {
		return s.Start, s.End
	}
	if positionBefore(root, s.Start, s.End) {
		return s.Start, s.End
	}
	return s.End, s.Start
}

// positionBefore reports whether a precedes b in document order. Positions in
// the same text node compare by offset; otherwise the text nodes are compared
// by a document-order walk.
func positionBefore(root *html.Node, a, b Position) bool {
	if a.Node == b.Node {
		return a.Offset <= b.Offset
	}
	seq := map[*html.Node]int{}
	i := 0
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		seq[n] = i
		i++
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(root)
	ia, aok := seq[a.Node]
	ib, bok := seq[b.Node]
	if !aok || !bok {
		return true
	}
	return ia < ib
}

// splitTextNode splits a text node at a rune offset and returns the node
// holding the text after the split point: the original node when the offset
// is 0, nil when the offset is at or past the end. No empty siblings are
// created at the boundaries.
func splitTextNode(n *html.Node, offset int) *html.Node {
	runes := []rune(n.Data)
	if offset <= 0 {
		return n
	}
	if offset >= len(runes) {
		return nil
	}
	tail := newTextNode(string(runes[offset:]))
	n.Data = string(runes[:offset])
	insertAfter(n.Parent, tail, n)
	return tail
}
