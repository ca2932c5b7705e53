// -----------------------------------------------------------------------
// Layout Manager - derived structure around image wrappers
// -----------------------------------------------------------------------

package editor

import (
	"github.com/PuerkitoBio/goquery"
	"github.com/ternarybob/arbor"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// LayoutManager maintains the derived structures around image wrappers:
// group containers, float markers, delete affordances. Every pass is
// idempotent and derives purely from wrapper positions and layout
// attributes, so refreshing an already-consistent document is a no-op.
type LayoutManager struct {
	doc    *Document
	logger arbor.ILogger
}

// NewLayoutManager creates a new layout manager
func NewLayoutManager(doc *Document, logger arbor.ILogger) *LayoutManager {
	return &LayoutManager{
		doc:    doc,
		logger: logger,
	}
}

// RefreshLayout runs all layout passes in order
func (l *LayoutManager) RefreshLayout() {
	l.WrapFullWidthImageGroups()
	l.MarkFloatParagraphs()
	l.EnsureDeleteButtons()
}

// WrapFullWidthImageGroups rebuilds the group containers: existing groups
// are dissolved, then every maximal run of consecutive top-level full-width
// wrappers is wrapped in a fresh container. A single full-width image gets
// a group of its own.
func (l *LayoutManager) WrapFullWidthImageGroups() {
	// dissolve existing groups wherever they sit
	var groups []*html.Node
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
			if isImageGroup(c) {
				groups = append(groups, c)
			}
		}
	}
	walk(l.doc.root)
	for _, g := range groups {
		unwrap(g)
	}

	// re-wrap maximal runs of top-level full-width wrappers
	wrapped := 0
	for c := l.doc.root.FirstChild; c != nil; {
		if !isFullWidthWrapper(c) {
			c = c.NextSibling
			continue
		}
		group := newGroupContainer()
		l.doc.root.InsertBefore(group, c)
		for c != nil && isFullWidthWrapper(c) {
			next := c.NextSibling
			l.doc.root.RemoveChild(c)
			group.AppendChild(c)
			c = next
		}
		wrapped++
	}

	if wrapped > 0 {
		l.logger.Debug().
			Int("groups", wrapped).
			Msg("Full-width image groups rebuilt")
	}
}

// MarkFloatParagraphs derives the float marker class on text blocks from
// the presence of float wrappers inside them, in both directions
func (l *LayoutManager) MarkFloatParagraphs() {
	for c := l.doc.root.FirstChild; c != nil; c = c.NextSibling {
		if !isTextBlock(c) {
			continue
		}
		if countFloatWrappers(c) > 0 {
			addClass(c, ClassHasFloat)
		} else {
			removeClass(c, ClassHasFloat)
		}
	}
}

// EnsureDeleteButtons appends the delete affordance to wrappers missing one;
// wrappers that already have it are left untouched
func (l *LayoutManager) EnsureDeleteButtons() {
	l.doc.Query().Find("span.image-wrapper").Each(func(i int, s *goquery.Selection) {
		if s.ChildrenFiltered("button.image-delete").Length() > 0 {
			return
		}
		s.Nodes[0].AppendChild(newDeleteButton())
	})
}

// isFullWidthWrapper reports whether n is an image wrapper laid out full-width
func isFullWidthWrapper(n *html.Node) bool {
	return isImageWrapper(n) && wrapperLayout(n) == LayoutFullWidth
}

// isFloatWrapper reports whether n is an image wrapper floated into a block
func isFloatWrapper(n *html.Node) bool {
	return isImageWrapper(n) && wrapperLayout(n) == LayoutFloatRight
}

// countFloatWrappers counts float wrappers inside a block
func countFloatWrappers(block *html.Node) int {
	count := 0
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			if isFloatWrapper(c) {
				count++
				continue
			}
			walk(c)
		}
	}
	walk(block)
	return count
}

// newGroupContainer builds an empty full-width group container
func newGroupContainer() *html.Node {
	g := newElement(atom.Div)
	addClass(g, ClassImageGroup)
	return g
}
