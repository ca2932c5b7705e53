// -----------------------------------------------------------------------
// Normalizer tests - canonical form, idempotence, content preservation
// -----------------------------------------------------------------------

package editor

import (
	"strings"
	"testing"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

func normalizeFragment(t *testing.T, fragment string) *Document {
	t.Helper()
	doc := mustParse(t, fragment)
	NewNormalizer(newTestLogger()).Normalize(doc)
	return doc
}

func assertRender(t *testing.T, n *html.Node, expected string) {
	t.Helper()
	var sb strings.Builder
	if err := html.Render(&sb, n); err != nil {
		t.Fatalf("render failed: %v", err)
	}
	if sb.String() != expected {
		t.Errorf("rendered %q, want %q", sb.String(), expected)
	}
}

func collapseWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func TestNormalize(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{
			name:     "bare text becomes a text block",
			input:    "hello world",
			expected: `<p class="text-block">hello world</p>`,
		},
		{
			name:     "plain paragraph gains the block marker",
			input:    "<p>hello</p>",
			expected: `<p class="text-block">hello</p>`,
		},
		{
			name:     "div is rewritten to a text block",
			input:    "<div>hello</div>",
			expected: `<p class="text-block">hello</p>`,
		},
		{
			name:     "blockquote is rewritten to a text block",
			input:    "<blockquote>quote</blockquote>",
			expected: `<p class="text-block">quote</p>`,
		},
		{
			name:     "h1 is outside the supported levels",
			input:    "<h1>big</h1>",
			expected: `<p class="text-block">big</p>`,
		},
		{
			name:     "supported headings pass through",
			input:    "<h2>Heading</h2><h3>Sub</h3><h4>Minor</h4>",
			expected: "<h2>Heading</h2><h3>Sub</h3><h4>Minor</h4>",
		},
		{
			name:     "legacy bold and italic tags",
			input:    "<p><b>bold</b> and <i>italic</i></p>",
			expected: `<p class="text-block"><strong>bold</strong> and <em>italic</em></p>`,
		},
		{
			name:     "doubled strong collapses",
			input:    "<p><strong><strong>deep</strong></strong></p>",
			expected: `<p class="text-block"><strong>deep</strong></p>`,
		},
		{
			name:     "legacy italic inside em collapses",
			input:    "<p><em><i>mixed</i></em></p>",
			expected: `<p class="text-block"><em>mixed</em></p>`,
		},
		{
			name:     "zero margin style is stripped",
			input:    `<p style="margin-left: 0px;">flat</p>`,
			expected: `<p class="text-block">flat</p>`,
		},
		{
			name:     "meaningful margin survives",
			input:    `<p style="margin-left: 40px">indented</p>`,
			expected: `<p style="margin-left: 40px" class="text-block">indented</p>`,
		},
		{
			name:     "comments are removed",
			input:    "<p>x<!-- note --></p>",
			expected: `<p class="text-block">x</p>`,
		},
		{
			name:     "empty siblings are removed",
			input:    "<p>a</p><p></p><p>b</p>",
			expected: `<p class="text-block">a</p><p class="text-block">b</p>`,
		},
		{
			name:     "empty anchor is removed",
			input:    `<p><a href="https://x.test"></a>keep</p>`,
			expected: `<p class="text-block">keep</p>`,
		},
		{
			name:     "anchor holding only a break is removed",
			input:    `<p>a<a href="https://x.test"><br></a>b</p>`,
			expected: `<p class="text-block">ab</p>`,
		},
		{
			name:     "orphan list items gain a shared list",
			input:    "<li>first</li><li>second</li>",
			expected: "<ul><li>first</li><li>second</li></ul>",
		},
		{
			name:     "empty list is removed",
			input:    "<ul></ul><p>x</p>",
			expected: `<p class="text-block">x</p>`,
		},
		{
			name:     "ordered list passes through",
			input:    "<ol><li>one</li><li>two</li></ol>",
			expected: "<ol><li>one</li><li>two</li></ol>",
		},
		{
			name:     "nested list inside an item passes through",
			input:    "<ul><li>a<ul><li>b</li></ul></li></ul>",
			expected: "<ul><li>a<ul><li>b</li></ul></li></ul>",
		},
		{
			name:     "stray inline run is wrapped",
			input:    "text<strong>inline</strong> tail<p>para</p>",
			expected: `<p class="text-block">text<strong>inline</strong> tail</p><p class="text-block">para</p>`,
		},
		{
			name:     "stray run is wrapped before its breaks split it",
			input:    "a<br>b",
			expected: `<p class="text-block">a</p><p class="text-block">b</p>`,
		},
		{
			name:     "break with content on both sides splits the block",
			input:    "<p>one<br>two</p>",
			expected: `<p class="text-block">one</p><p class="text-block">two</p>`,
		},
		{
			name:     "break runs collapse before splitting",
			input:    "<p>one<br><br><br>two</p>",
			expected: `<p class="text-block">one</p><p class="text-block">two</p>`,
		},
		{
			name:     "multiple breaks fan out left to right",
			input:    "<p>a<br>b<br>c</p>",
			expected: `<p class="text-block">a</p><p class="text-block">b</p><p class="text-block">c</p>`,
		},
		{
			name:     "leading break is trimmed",
			input:    "<p><br>one</p>",
			expected: `<p class="text-block">one</p>`,
		},
		{
			name:     "trailing break is trimmed",
			input:    "<p>one<br></p>",
			expected: `<p class="text-block">one</p>`,
		},
		{
			name:     "lone break is the placeholder shape",
			input:    "<p><br></p>",
			expected: `<p class="text-block"><br/></p>`,
		},
		{
			name:     "double lone break collapses to the placeholder shape",
			input:    "<p><br><br></p>",
			expected: `<p class="text-block"><br/></p>`,
		},
		{
			name:     "stray breaks between blocks are dropped",
			input:    "<p>a</p><br><br><p>b</p>",
			expected: `<p class="text-block">a</p><p class="text-block">b</p>`,
		},
		{
			name:     "split clones the formatting chain",
			input:    "<p><strong>a<br>b</strong></p>",
			expected: `<p class="text-block"><strong>a</strong></p><p class="text-block"><strong>b</strong></p>`,
		},
		{
			name:     "heading inside a paragraph is hoisted",
			input:    "<p>before<h2>Title</h2>after</p>",
			expected: `<p class="text-block">before</p><h2>Title</h2><p class="text-block">after</p>`,
		},
		{
			name:     "full width image wrapper passes through",
			input:    `<span class="image-wrapper" data-uuid="img-1" data-layout="full-width"><img src="/api/images/img-1/inline" alt="cover"><button class="image-delete" type="button">×</button></span>`,
			expected: `<span class="image-wrapper" data-uuid="img-1" data-layout="full-width"><img src="/api/images/img-1/inline" alt="cover"/><button class="image-delete" type="button">×</button></span>`,
		},
		{
			name:     "float wrapper stays inside its text block",
			input:    `<p class="text-block">Morning walk <span class="image-wrapper" data-uuid="img-2" data-layout="float-right"><img src="/api/images/img-2/inline" alt=""><button class="image-delete" type="button">×</button></span>by the lake</p>`,
			expected: `<p class="text-block">Morning walk <span class="image-wrapper" data-uuid="img-2" data-layout="float-right"><img src="/api/images/img-2/inline" alt=""/><button class="image-delete" type="button">×</button></span>by the lake</p>`,
		},
		{
			name:     "image group passes through",
			input:    `<div class="image-group"><span class="image-wrapper" data-uuid="a" data-layout="full-width"><img src="/api/images/a/inline" alt=""/></span></div>`,
			expected: `<div class="image-group"><span class="image-wrapper" data-uuid="a" data-layout="full-width"><img src="/api/images/a/inline" alt=""/></span></div>`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc := normalizeFragment(t, tt.input)
			if got := doc.HTML(); got != tt.expected {
				t.Errorf("Normalize(%q)\n got: %s\nwant: %s", tt.input, got, tt.expected)
			}
		})
	}
}

func TestNormalize_EmptyInputs(t *testing.T) {
	placeholder := `<p class="text-block"><br/></p>`

	inputs := []string{
		"",
		"   ",
		"\n\t\n",
		"<p></p>",
		"<div></div>",
		"<p> </p>",
		"<br>",
		"<ul></ul>",
		"<p><a href=\"https://x.test\"></a></p>",
	}

	for _, input := range inputs {
		doc := normalizeFragment(t, input)
		if got := doc.HTML(); got != placeholder {
			t.Errorf("Normalize(%q) = %s, want placeholder %s", input, got, placeholder)
		}
	}
}

func TestNormalize_Idempotent(t *testing.T) {
	corpus := []string{
		"",
		"hello world",
		"<p>hello</p>",
		"<div>a</div><blockquote>b</blockquote>",
		"<p><b><i>both</i></b></p>",
		"<p><strong><strong><strong>triple</strong></strong></strong></p>",
		"<p>one<br><br>two<br>three</p>",
		"<li>a</li><li>b</li>",
		"<h2>t</h2><p>body<br>more</p><ul><li>x</li></ul>",
		"text<em>run</em><br><p>block</p>",
		`<p style="margin-left: 80px">deep</p>`,
		`<span class="image-wrapper" data-uuid="u1" data-layout="full-width"><img src="/api/images/u1/inline" alt=""><button class="image-delete" type="button">×</button></span>`,
		`<p class="text-block has-float">text <span class="image-wrapper" data-uuid="u2" data-layout="float-right"><img src="/api/images/u2/inline" alt=""></span></p>`,
		`<div class="image-group"><span class="image-wrapper" data-uuid="a" data-layout="full-width"><img src="/api/images/a/inline" alt=""></span><span class="image-wrapper" data-uuid="b" data-layout="full-width"><img src="/api/images/b/inline" alt=""></span></div>`,
	}

	normalizer := NewNormalizer(newTestLogger())
	for _, input := range corpus {
		doc := mustParse(t, input)
		normalizer.Normalize(doc)
		first := doc.HTML()

		normalizer.Normalize(doc)
		second := doc.HTML()

		if first != second {
			t.Errorf("not idempotent for %q:\nfirst:  %s\nsecond: %s", input, first, second)
		}

		// the canonical form must also survive a reparse
		reloaded := mustParse(t, first)
		normalizer.Normalize(reloaded)
		if got := reloaded.HTML(); got != first {
			t.Errorf("canonical form unstable across reparse for %q:\nbefore: %s\nafter:  %s", input, first, got)
		}
	}
}

func TestNormalize_PreservesText(t *testing.T) {
	corpus := []string{
		"hello world",
		"  spaced   out  ",
		"<p>one<br>two</p>",
		"<div>a</div><p>b</p><h2>c</h2>",
		"<p><strong>bold<br>split</strong> tail</p>",
		"<li>first</li><li>second</li>",
		"<p>before<h2>Title</h2>after</p>",
		"text<strong>inline</strong> tail<p>para</p>",
	}

	normalizer := NewNormalizer(newTestLogger())
	for _, input := range corpus {
		doc := mustParse(t, input)
		before := collapseWhitespace(doc.Text())

		normalizer.Normalize(doc)
		after := collapseWhitespace(doc.Text())

		if before != after {
			t.Errorf("text changed for %q: %q -> %q", input, before, after)
		}
	}
}

// Nested anchors cannot be produced by the fragment parser, which auto-splits
// them, so the pass is exercised on a hand-built tree.
func TestNormalize_FlattensNestedAnchors(t *testing.T) {
	doc := mustParse(t, "")

	outer := newElement(atom.A)
	setAttr(outer, "href", "https://outer.test")
	outer.AppendChild(newTextNode("one "))
	inner := newElement(atom.A)
	setAttr(inner, "href", "https://inner.test")
	inner.AppendChild(newTextNode("two"))
	outer.AppendChild(inner)
	outer.AppendChild(newTextNode(" three"))

	block := newTextBlock()
	block.AppendChild(outer)
	doc.Root().AppendChild(block)

	NewNormalizer(newTestLogger()).Normalize(doc)

	want := `<p class="text-block"><a href="https://outer.test">one two three</a></p>`
	if got := doc.HTML(); got != want {
		t.Errorf("got %s, want %s", got, want)
	}
}

func TestNormalize_HoistsDeepNestedBlocks(t *testing.T) {
	t.Run("heading inside formatting", func(t *testing.T) {
		doc := mustParse(t, "")

		strong := newElement(atom.Strong)
		strong.AppendChild(newTextNode("bold "))
		h := newElement(atom.H3)
		h.AppendChild(newTextNode("Deep"))
		strong.AppendChild(h)

		block := newTextBlock()
		block.AppendChild(strong)
		doc.Root().AppendChild(block)

		NewNormalizer(newTestLogger()).Normalize(doc)

		want := `<p class="text-block"><strong>bold </strong></p><h3>Deep</h3>`
		if got := doc.HTML(); got != want {
			t.Errorf("got %s, want %s", got, want)
		}
	})

	t.Run("list inside a paragraph", func(t *testing.T) {
		doc := mustParse(t, "")

		list := newElement(atom.Ul)
		item := newElement(atom.Li)
		item.AppendChild(newTextNode("one"))
		list.AppendChild(item)

		block := newTextBlock()
		block.AppendChild(newTextNode("todo:"))
		block.AppendChild(list)
		doc.Root().AppendChild(block)

		NewNormalizer(newTestLogger()).Normalize(doc)

		want := `<p class="text-block">todo:</p><ul><li>one</li></ul>`
		if got := doc.HTML(); got != want {
			t.Errorf("got %s, want %s", got, want)
		}
	})

	t.Run("content on both sides splits the host", func(t *testing.T) {
		doc := mustParse(t, "")

		h := newElement(atom.H2)
		h.AppendChild(newTextNode("Section"))

		block := newTextBlock()
		block.AppendChild(newTextNode("intro "))
		block.AppendChild(h)
		block.AppendChild(newTextNode(" outro"))
		doc.Root().AppendChild(block)

		NewNormalizer(newTestLogger()).Normalize(doc)

		want := `<p class="text-block">intro </p><h2>Section</h2><p class="text-block"> outro</p>`
		if got := doc.HTML(); got != want {
			t.Errorf("got %s, want %s", got, want)
		}
	})
}

func TestSplitSubtreeAfter(t *testing.T) {
	t.Run("clones the formatting chain around the marker", func(t *testing.T) {
		block := newTextBlock()
		strong := newElement(atom.Strong)
		strong.AppendChild(newTextNode("alpha"))
		em := newElement(atom.Em)
		em.AppendChild(newTextNode("beta"))
		strong.AppendChild(em)
		strong.AppendChild(newTextNode("gamma"))
		block.AppendChild(strong)
		block.AppendChild(newTextNode("tail"))

		cont := splitSubtreeAfter(block, em)

		assertRender(t, block, `<p class="text-block"><strong>alpha<em>beta</em></strong></p>`)
		assertRender(t, cont, `<p class="text-block"><strong>gamma</strong>tail</p>`)
	})

	t.Run("marker at the end leaves an empty continuation", func(t *testing.T) {
		block := newTextBlock()
		block.AppendChild(newTextNode("all"))

		cont := splitSubtreeAfter(block, block.FirstChild)

		assertRender(t, block, `<p class="text-block">all</p>`)
		if cont.FirstChild != nil {
			t.Error("continuation should be empty when the marker is last")
		}
	})

	t.Run("empty formatting clones are dropped", func(t *testing.T) {
		block := newTextBlock()
		em := newElement(atom.Em)
		em.AppendChild(newTextNode("styled"))
		block.AppendChild(em)
		block.AppendChild(newTextNode("plain"))

		cont := splitSubtreeAfter(block, em.FirstChild)

		assertRender(t, block, `<p class="text-block"><em>styled</em></p>`)
		assertRender(t, cont, `<p class="text-block">plain</p>`)
	})
}
