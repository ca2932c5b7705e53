// -----------------------------------------------------------------------
// Cursor Preservation - survives structural rewrites via flattened offsets
// -----------------------------------------------------------------------

package editor

import (
	"encoding/json"
	"fmt"
	"unicode/utf8"

	"golang.org/x/net/html"
)

// Marker captures a selection as rune offsets over the document's flattened
// text content, detached from the node tree so it survives rewrites that
// replace the nodes the selection was anchored in.
type Marker struct {
	Start      int  `json:"start"`
	End        int  `json:"end"`
	BlockIndex int  `json:"block_index"` // best-effort index of the containing top-level block
	Collapsed  bool `json:"collapsed"`
}

// SaveCursor flattens the live selection into a marker. Returns nil when
// there is no selection or its anchors fell outside the document.
func SaveCursor(doc *Document) *Marker {
	sel := doc.Selection()
	if sel == nil {
		return nil
	}
	if !containsNode(doc.root, sel.Start.Node) || !containsNode(doc.root, sel.End.Node) {
		return nil
	}

	start := flattenPosition(doc.root, sel.Start.clampToNode())
	end := flattenPosition(doc.root, sel.End.clampToNode())
	blockNode := sel.Start.Node
	if start > end {
		start, end = end, start
		blockNode = sel.End.Node
	}

	return &Marker{
		Start:      start,
		End:        end,
		BlockIndex: doc.BlockIndexOf(blockNode),
		Collapsed:  sel.Collapsed(),
	}
}

// RestoreCursor re-anchors a marker in the rewritten tree. Offsets beyond the
// document fall back to the remembered block's tail, then the document tail;
// restoring a nil marker leaves the selection cleared.
func RestoreCursor(doc *Document, m *Marker) {
	if m == nil {
		doc.ClearSelection()
		return
	}

	start := resolveOffset(doc, m.Start, m.BlockIndex)
	end := start
	if !m.Collapsed && m.End != m.Start {
		end = resolveOffset(doc, m.End, m.BlockIndex)
	}
	doc.SetSelection(&Selection{Start: start, End: end})
}

// flattenPosition converts a node-anchored position into a rune offset over
// the document's concatenated text
func flattenPosition(root *html.Node, p Position) int {
	acc := 0
	var walk func(*html.Node) bool
	walk = func(n *html.Node) bool {
		if n == p.Node {
			if isTextNode(n) {
				length := utf8.RuneCountInString(n.Data)
				if p.Offset < length {
					acc += p.Offset
				} else {
					acc += length
				}
				return false
			}
			// element anchor: count text of the children before the offset
			i := 0
			for c := n.FirstChild; c != nil && i < p.Offset; c = c.NextSibling {
				acc += textLength(c)
				i++
			}
			return false
		}
		if n.Type == html.TextNode {
			acc += utf8.RuneCountInString(n.Data)
			return true
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			if !walk(c) {
				return false
			}
		}
		return true
	}
	walk(root)
	return acc
}

// resolveOffset walks the text nodes to the node containing the offset
func resolveOffset(doc *Document, offset int, blockIndex int) Position {
	if offset < 0 {
		offset = 0
	}

	acc := 0
	var found *Position
	walkTextNodes(doc.root, func(t *html.Node) bool {
		length := utf8.RuneCountInString(t.Data)
		if offset <= acc+length {
			found = &Position{Node: t, Offset: offset - acc}
			return false
		}
		acc += length
		return true
	})
	if found != nil {
		return *found
	}

	// offset beyond the document: land at the remembered block's tail
	if block := doc.NthBlock(blockIndex); block != nil {
		if t := lastTextNode(block); t != nil {
			return Position{Node: t, Offset: utf8.RuneCountInString(t.Data)}
		}
		return Position{Node: block, Offset: 0}
	}

	// document tail
	if t := lastTextNode(doc.root); t != nil {
		return Position{Node: t, Offset: utf8.RuneCountInString(t.Data)}
	}
	if doc.root.FirstChild != nil {
		return Position{Node: doc.root.FirstChild, Offset: 0}
	}
	return Position{Node: doc.root, Offset: 0}
}

// MarkerFromLegacy migrates the retired single-offset marker shape: the
// offset becomes a collapsed range with no block hint
func MarkerFromLegacy(offset int) *Marker {
	return &Marker{
		Start:      offset,
		End:        offset,
		BlockIndex: -1,
		Collapsed:  true,
	}
}

// DecodeMarker parses a marker payload, accepting both the current range
// shape and the legacy single-offset shape
func DecodeMarker(data []byte) (*Marker, error) {
	var probe struct {
		Start      *int  `json:"start"`
		End        *int  `json:"end"`
		BlockIndex *int  `json:"block_index"`
		Collapsed  *bool `json:"collapsed"`
		Offset     *int  `json:"offset"`
	}
	if err := json.Unmarshal(data, &probe); err != nil {
		return nil, fmt.Errorf("failed to decode cursor marker: %w", err)
	}

	if probe.Start == nil && probe.Offset != nil {
		return MarkerFromLegacy(*probe.Offset), nil
	}
	if probe.Start == nil {
		return nil, fmt.Errorf("cursor marker missing offsets")
	}

	m := &Marker{Start: *probe.Start, BlockIndex: -1}
	m.End = m.Start
	if probe.End != nil {
		m.End = *probe.End
	}
	if probe.BlockIndex != nil {
		m.BlockIndex = *probe.BlockIndex
	}
	if probe.Collapsed != nil {
		m.Collapsed = *probe.Collapsed
	} else {
		m.Collapsed = m.Start == m.End
	}
	return m, nil
}
