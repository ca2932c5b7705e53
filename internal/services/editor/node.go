// -----------------------------------------------------------------------
// Node Helpers - low-level operations on the parsed document tree
// -----------------------------------------------------------------------

package editor

import (
	"strings"
	"unicode/utf8"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// inlineAtoms are the formatting tags allowed inside a text block
var inlineAtoms = map[atom.Atom]bool{
	atom.Strong: true,
	atom.Em:     true,
	atom.B:      true,
	atom.I:      true,
	atom.A:      true,
	atom.Code:   true,
	atom.Span:   true,
	atom.U:      true,
	atom.Br:     true,
}

// headingAtoms are the heading levels the editor supports
var headingAtoms = map[atom.Atom]bool{
	atom.H2: true,
	atom.H3: true,
	atom.H4: true,
}

// listAtoms are the list container tags
var listAtoms = map[atom.Atom]bool{
	atom.Ul: true,
	atom.Ol: true,
}

func newElement(a atom.Atom) *html.Node {
	return &html.Node{
		Type:     html.ElementNode,
		Data:     a.String(),
		DataAtom: a,
	}
}

func newTextNode(text string) *html.Node {
	return &html.Node{
		Type: html.TextNode,
		Data: text,
	}
}

// shallowClone copies an element without its children
func shallowClone(n *html.Node) *html.Node {
	return &html.Node{
		Type:     n.Type,
		Data:     n.Data,
		DataAtom: n.DataAtom,
		Attr:     append([]html.Attribute(nil), n.Attr...),
	}
}

func isElement(n *html.Node, tags ...atom.Atom) bool {
	if n == nil || n.Type != html.ElementNode {
		return false
	}
	if len(tags) == 0 {
		return true
	}
	for _, t := range tags {
		if n.DataAtom == t {
			return true
		}
	}
	return false
}

func isTextNode(n *html.Node) bool {
	return n != nil && n.Type == html.TextNode
}

func isInline(n *html.Node) bool {
	if isTextNode(n) {
		return true
	}
	return n != nil && n.Type == html.ElementNode && inlineAtoms[n.DataAtom]
}

func isHeading(n *html.Node) bool {
	return n != nil && n.Type == html.ElementNode && headingAtoms[n.DataAtom]
}

func isList(n *html.Node) bool {
	return n != nil && n.Type == html.ElementNode && listAtoms[n.DataAtom]
}

func getAttr(n *html.Node, key string) (string, bool) {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val, true
		}
	}
	return "", false
}

func setAttr(n *html.Node, key, val string) {
	for i, a := range n.Attr {
		if a.Key == key {
			n.Attr[i].Val = val
			return
		}
	}
	n.Attr = append(n.Attr, html.Attribute{Key: key, Val: val})
}

func removeAttr(n *html.Node, key string) {
	for i, a := range n.Attr {
		if a.Key == key {
			n.Attr = append(n.Attr[:i], n.Attr[i+1:]...)
			return
		}
	}
}

func hasClass(n *html.Node, class string) bool {
	val, ok := getAttr(n, "class")
	if !ok {
		return false
	}
	for _, c := range strings.Fields(val) {
		if c == class {
			return true
		}
	}
	return false
}

func addClass(n *html.Node, class string) {
	if hasClass(n, class) {
		return
	}
	val, ok := getAttr(n, "class")
	if !ok || val == "" {
		setAttr(n, "class", class)
		return
	}
	setAttr(n, "class", val+" "+class)
}

func removeClass(n *html.Node, class string) {
	val, ok := getAttr(n, "class")
	if !ok {
		return
	}
	var kept []string
	for _, c := range strings.Fields(val) {
		if c != class {
			kept = append(kept, c)
		}
	}
	if len(kept) == 0 {
		removeAttr(n, "class")
		return
	}
	setAttr(n, "class", strings.Join(kept, " "))
}

// textContent returns the concatenated text of a subtree
func textContent(n *html.Node) string {
	var sb strings.Builder
	var walk func(*html.Node)
	walk = func(node *html.Node) {
		if node.Type == html.TextNode {
			sb.WriteString(node.Data)
			return
		}
		for c := node.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return sb.String()
}

// textLength returns the rune count of a subtree's text content
func textLength(n *html.Node) int {
	total := 0
	walkTextNodes(n, func(t *html.Node) bool {
		total += utf8.RuneCountInString(t.Data)
		return true
	})
	return total
}

// hasText reports whether the subtree contains any non-whitespace text
func hasText(n *html.Node) bool {
	found := false
	walkTextNodes(n, func(t *html.Node) bool {
		if strings.TrimSpace(t.Data) != "" {
			found = true
			return false
		}
		return true
	})
	return found
}

// containsTag reports whether the subtree contains a descendant element with the tag
func containsTag(n *html.Node, tag atom.Atom) bool {
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if isElement(c, tag) || containsTag(c, tag) {
			return true
		}
	}
	return false
}

// walkTextNodes visits text nodes in document order; fn returns false to stop
func walkTextNodes(root *html.Node, fn func(*html.Node) bool) {
	var walk func(*html.Node) bool
	walk = func(n *html.Node) bool {
		if n.Type == html.TextNode {
			return fn(n)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			if !walk(c) {
				return false
			}
		}
		return true
	}
	walk(root)
}

// detach removes a node from its parent, safe on already-detached nodes
func detach(n *html.Node) {
	if n.Parent != nil {
		n.Parent.RemoveChild(n)
	}
}

// insertAfter inserts n as a sibling following ref
func insertAfter(parent, n, ref *html.Node) {
	detach(n)
	if ref == nil {
		parent.InsertBefore(n, parent.FirstChild)
		return
	}
	parent.InsertBefore(n, ref.NextSibling)
}

// unwrap replaces a node with its children, preserving order
func unwrap(n *html.Node) {
	parent := n.Parent
	if parent == nil {
		return
	}
	for c := n.FirstChild; c != nil; {
		next := c.NextSibling
		n.RemoveChild(c)
		parent.InsertBefore(c, n)
		c = next
	}
	parent.RemoveChild(n)
}

// moveChildren appends all children of src to dst, preserving order
func moveChildren(dst, src *html.Node) {
	for c := src.FirstChild; c != nil; {
		next := c.NextSibling
		src.RemoveChild(c)
		dst.AppendChild(c)
		c = next
	}
}

// ancestorElement walks up from n looking for a matching tag, stopping below root
func ancestorElement(n, root *html.Node, tags ...atom.Atom) *html.Node {
	for cur := n; cur != nil && cur != root; cur = cur.Parent {
		if isElement(cur, tags...) {
			return cur
		}
	}
	return nil
}

// containsNode reports whether root's subtree contains n (inclusive)
func containsNode(root, n *html.Node) bool {
	for cur := n; cur != nil; cur = cur.Parent {
		if cur == root {
			return true
		}
	}
	return false
}

// firstTextNode returns the first text node in the subtree, nil when none
func firstTextNode(root *html.Node) *html.Node {
	var found *html.Node
	walkTextNodes(root, func(t *html.Node) bool {
		found = t
		return false
	})
	return found
}

// lastTextNode returns the last text node in the subtree, nil when none
func lastTextNode(root *html.Node) *html.Node {
	var found *html.Node
	walkTextNodes(root, func(t *html.Node) bool {
		found = t
		return true
	})
	return found
}
