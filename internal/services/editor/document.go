// -----------------------------------------------------------------------
// Document - the parsed journal entry body and its structural vocabulary
// -----------------------------------------------------------------------

package editor

import (
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// Structural vocabulary of the canonical document
const (
	ClassTextBlock    = "text-block"
	ClassHasFloat     = "has-float"
	ClassImageWrapper = "image-wrapper"
	ClassImageGroup   = "image-group"
	ClassImageCaption = "image-caption"
	ClassImageDelete  = "image-delete"

	AttrUUID   = "data-uuid"
	AttrLayout = "data-layout"
)

// MaxFloatImagesPerParagraph caps float-right wrappers hosted by one text block
const MaxFloatImagesPerParagraph = 2

// Document holds a journal entry body as a live node tree. The root is a
// synthetic container standing in for the editing surface; its children are
// the top-level blocks.
type Document struct {
	root *html.Node
	sel  *Selection
}

// NewDocument creates an empty document
func NewDocument() *Document {
	return &Document{
		root: newElement(atom.Div),
	}
}

// Parse parses an HTML fragment into a document. Parsing is tolerant: the
// fragment parser recovers whatever structure it can and normalization
// repairs the rest.
func Parse(fragment string) (*Document, error) {
	doc := NewDocument()

	nodes, err := html.ParseFragment(strings.NewReader(fragment), &html.Node{
		Type:     html.ElementNode,
		Data:     "div",
		DataAtom: atom.Div,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to parse fragment: %w", err)
	}

	for _, n := range nodes {
		doc.root.AppendChild(n)
	}
	return doc, nil
}

// Load replaces the document content in place so holders of this document
// keep their reference across reloads. The selection drops; markers are how
// position survives a reload.
func (d *Document) Load(fragment string) error {
	parsed, err := Parse(fragment)
	if err != nil {
		return err
	}
	for d.root.FirstChild != nil {
		d.root.RemoveChild(d.root.FirstChild)
	}
	moveChildren(d.root, parsed.root)
	d.sel = nil
	return nil
}

// Root returns the synthetic container element
func (d *Document) Root() *html.Node {
	return d.root
}

// HTML renders the document back to its fragment form
func (d *Document) HTML() string {
	var sb strings.Builder
	for c := d.root.FirstChild; c != nil; c = c.NextSibling {
		// Render errors only occur on unwritable writers; strings.Builder never fails
		_ = html.Render(&sb, c)
	}
	return sb.String()
}

// Query wraps the document in a goquery document for selector scans
func (d *Document) Query() *goquery.Document {
	return goquery.NewDocumentFromNode(d.root)
}

// Text returns the flattened text content of the whole document
func (d *Document) Text() string {
	return textContent(d.root)
}

// TextLength returns the rune count of the flattened text content
func (d *Document) TextLength() int {
	return textLength(d.root)
}

// Blocks returns the top-level children in document order
func (d *Document) Blocks() []*html.Node {
	var blocks []*html.Node
	for c := d.root.FirstChild; c != nil; c = c.NextSibling {
		blocks = append(blocks, c)
	}
	return blocks
}

// BlockIndexOf returns the index of the top-level block containing n, -1 when
// n is outside the document
func (d *Document) BlockIndexOf(n *html.Node) int {
	top := d.TopLevelOf(n)
	if top == nil {
		return -1
	}
	idx := 0
	for c := d.root.FirstChild; c != nil; c = c.NextSibling {
		if c == top {
			return idx
		}
		idx++
	}
	return -1
}

// TopLevelOf walks up from n to the top-level block containing it
func (d *Document) TopLevelOf(n *html.Node) *html.Node {
	for cur := n; cur != nil; cur = cur.Parent {
		if cur.Parent == d.root {
			return cur
		}
	}
	return nil
}

// NthBlock returns the top-level block at index, nil when out of range
func (d *Document) NthBlock(idx int) *html.Node {
	if idx < 0 {
		return nil
	}
	i := 0
	for c := d.root.FirstChild; c != nil; c = c.NextSibling {
		if i == idx {
			return c
		}
		i++
	}
	return nil
}

// IsEmpty reports whether the document has no top-level blocks
func (d *Document) IsEmpty() bool {
	return d.root.FirstChild == nil
}

// Selection returns the live selection, nil when there is none
func (d *Document) Selection() *Selection {
	return d.sel
}

// SetSelection anchors the selection. Positions outside the document clear it
// instead: a stale anchor must never survive a rewrite.
func (d *Document) SetSelection(sel *Selection) {
	if sel == nil {
		d.sel = nil
		return
	}
	if !containsNode(d.root, sel.Start.Node) || !containsNode(d.root, sel.End.Node) {
		d.sel = nil
		return
	}
	d.sel = sel
}

// SetCaret collapses the selection to a single position
func (d *Document) SetCaret(node *html.Node, offset int) {
	d.SetSelection(&Selection{
		Start: Position{Node: node, Offset: offset},
		End:   Position{Node: node, Offset: offset},
	})
}

// ClearSelection drops the selection entirely
func (d *Document) ClearSelection() {
	d.sel = nil
}

// isTextBlock reports whether n is a canonical text block
func isTextBlock(n *html.Node) bool {
	return isElement(n, atom.P) && hasClass(n, ClassTextBlock)
}

// isImageWrapper reports whether n is an image wrapper element. Wrappers are
// spans so a float wrapper inside a text block survives the HTML parser's
// paragraph content model on reload.
func isImageWrapper(n *html.Node) bool {
	return isElement(n, atom.Span) && hasClass(n, ClassImageWrapper)
}

// isImageGroup reports whether n is a full-width image group container
func isImageGroup(n *html.Node) bool {
	return isElement(n, atom.Div) && hasClass(n, ClassImageGroup)
}

// wrapperLayout reads the layout attribute of an image wrapper, defaulting
// to full-width when the attribute is missing or unknown
func wrapperLayout(n *html.Node) string {
	layout, ok := getAttr(n, AttrLayout)
	if !ok {
		return LayoutFullWidth
	}
	switch layout {
	case LayoutFloatRight, LayoutFullWidth:
		return layout
	default:
		return LayoutFullWidth
	}
}

// newTextBlock creates an empty canonical text block
func newTextBlock() *html.Node {
	p := newElement(atom.P)
	addClass(p, ClassTextBlock)
	return p
}

// newPlaceholderBlock creates the empty-document placeholder: a text block
// holding a lone line break so the caret has somewhere to sit
func newPlaceholderBlock() *html.Node {
	p := newTextBlock()
	p.AppendChild(newElement(atom.Br))
	return p
}

// Layout attribute values for image wrappers
const (
	LayoutFloatRight = "float-right"
	LayoutFullWidth  = "full-width"
)
