// -----------------------------------------------------------------------
// Drag & Drop - moving and placing image wrappers from pointer geometry
// -----------------------------------------------------------------------

package editor

import (
	"fmt"
	"math"

	"github.com/ternarybob/arbor"
	"golang.org/x/net/html"
)

// DragSource identifies where a drag started
type DragSource string

const (
	DragSourceEditor    DragSource = "editor"    // wrapper already in the document
	DragSourcePicker    DragSource = "picker"    // card(s) from the image picker
	DragSourceReference DragSource = "reference" // the entry's reference image
)

// DragState is the drag state machine position
type DragState string

const (
	DragIdle      DragState = "idle"      //
	DragActive    DragState = "dragging"  //
	DragDropped   DragState = "dropped"   // last drag landed
	DragCancelled DragState = "cancelled" // last drag resolved no target
)

// Rect is a client-reported bounding box in viewport coordinates
type Rect struct {
	Top    float64 `json:"top"`    //
	Bottom float64 `json:"bottom"` //
	Left   float64 `json:"left"`   //
	Right  float64 `json:"right"`  //
}

// Contains reports whether the point lies inside the box
func (r Rect) Contains(x, y float64) bool {
	return x >= r.Left && x <= r.Right && y >= r.Top && y <= r.Bottom
}

// MidY returns the vertical midpoint
func (r Rect) MidY() float64 {
	return (r.Top + r.Bottom) / 2
}

// TargetRect ties a client-measured box to a node by document-order index
type TargetRect struct {
	Index int  `json:"index"` // document-order index
	Rect  Rect `json:"rect"`  //
}

// DropGeometry carries the pointer position and the measured boxes of the
// document's top-level blocks and image wrappers at drop time, both in
// document order
type DropGeometry struct {
	X        float64      `json:"x"`        // pointer at drop
	Y        float64      `json:"y"`        //
	Blocks   []TargetRect `json:"blocks"`   // top-level blocks
	Wrappers []TargetRect `json:"wrappers"` // all image wrappers
}

type insertionMode int

const (
	modePrependParagraph insertionMode = iota // first child of a text block
	modeAfterWrapper                          // directly after a wrapper
	modeBeforeElement                         // before a top-level block
	modeAfterElement                          // after a top-level block
	modeAppendEditor                          // document tail
)

// dropTarget is the resolved landing site. The target is computed before
// anything is detached so a failed resolution leaves the document untouched.
type dropTarget struct {
	mode   insertionMode
	ref    *html.Node
	layout string
}

// DragController runs image drags end to end. Editor drags move an existing
// wrapper; picker and reference drags mint new wrappers through the
// ImageManager. The target resolves first from pointer geometry, then the
// dragged wrappers detach and re-insert, chained in order for multi-card
// drags, capped at two floats per text block.
type DragController struct {
	doc       *Document
	images    *ImageManager
	layout    *LayoutManager
	picker    *Picker
	callbacks *Callbacks
	logger    arbor.ILogger

	state          DragState
	source         DragSource
	draggedWrapper *html.Node
	draggedUUIDs   []string
}

// NewDragController creates a drag controller over one document
func NewDragController(doc *Document, images *ImageManager, layout *LayoutManager, picker *Picker, callbacks *Callbacks, logger arbor.ILogger) *DragController {
	return &DragController{
		doc:       doc,
		images:    images,
		layout:    layout,
		picker:    picker,
		callbacks: callbacks,
		logger:    logger,
		state:     DragIdle,
	}
}

// State returns the state machine position
func (c *DragController) State() DragState {
	return c.state
}

// StartEditorDrag begins dragging the wrapper at the given document-order
// index
func (c *DragController) StartEditorDrag(wrapperIndex int) error {
	if c.state == DragActive {
		return fmt.Errorf("drag already in progress")
	}
	wrapper := c.wrapperAt(wrapperIndex)
	if wrapper == nil {
		return fmt.Errorf("no image wrapper at index %d", wrapperIndex)
	}
	c.state = DragActive
	c.source = DragSourceEditor
	c.draggedWrapper = wrapper
	c.draggedUUIDs = nil
	return nil
}

// StartPickerDrag begins dragging picker cards. When the grabbed card is
// part of the current multi-selection the whole selection drags in gallery
// order; otherwise just that card.
func (c *DragController) StartPickerDrag(uuid string) error {
	if c.state == DragActive {
		return fmt.Errorf("drag already in progress")
	}
	uuids := []string{uuid}
	if c.picker != nil && c.picker.IsSelected(uuid) {
		uuids = c.picker.SelectedUUIDs()
	}
	c.state = DragActive
	c.source = DragSourcePicker
	c.draggedWrapper = nil
	c.draggedUUIDs = uuids
	return nil
}

// StartReferenceDrag begins dragging the entry's reference image into the
// document
func (c *DragController) StartReferenceDrag(uuid string) error {
	if c.state == DragActive {
		return fmt.Errorf("drag already in progress")
	}
	if uuid == "" {
		return fmt.Errorf("no reference image set")
	}
	c.state = DragActive
	c.source = DragSourceReference
	c.draggedWrapper = nil
	c.draggedUUIDs = []string{uuid}
	return nil
}

// Cancel abandons the drag without touching the document
func (c *DragController) Cancel() {
	if c.state != DragActive {
		return
	}
	c.state = DragCancelled
	c.draggedWrapper = nil
	c.draggedUUIDs = nil
}

// Drop lands the drag at the pointer position described by geom. An
// unresolvable target cancels the drag and leaves the document unmodified;
// that is not an error.
func (c *DragController) Drop(geom *DropGeometry) error {
	if c.state != DragActive {
		return fmt.Errorf("no active drag")
	}

	target := c.resolveTarget(geom)
	if target == nil || c.targetInsideDragged(target) {
		c.logger.Debug().
			Str("source", string(c.source)).
			Msg("Drop target unresolved, drag cancelled")
		c.Cancel()
		return nil
	}

	dragged := c.collectWrappers(target.layout)
	if len(dragged) == 0 {
		c.Cancel()
		return nil
	}

	wrappers := make([]*html.Node, len(dragged))
	for i, dw := range dragged {
		setAttr(dw.node, AttrLayout, target.layout)
		wrappers[i] = dw.node
		if dw.oldLayout != target.layout {
			c.logger.Debug().
				Str("from", dw.oldLayout).
				Str("to", target.layout).
				Msg("Wrapper layout changed by drop target")
		}
	}
	c.insertChained(wrappers, target)

	if target.mode == modePrependParagraph {
		c.enforceFloatLimit(target.ref)
	}

	c.layout.RefreshLayout()

	c.logger.Debug().
		Str("source", string(c.source)).
		Str("layout", target.layout).
		Int("wrappers", len(wrappers)).
		Msg("Drop completed")

	c.state = DragDropped
	c.draggedWrapper = nil
	c.draggedUUIDs = nil

	if c.callbacks != nil && c.callbacks.OnContentChanged != nil {
		c.callbacks.OnContentChanged()
	}
	return nil
}

// resolveTarget maps the pointer to a landing site: a text block hosts a
// float, a full-width wrapper takes insertion after itself, empty space
// resolves to the nearest block by vertical midpoint, and an empty document
// appends.
func (c *DragController) resolveTarget(geom *DropGeometry) *dropTarget {
	blocks := c.doc.Blocks()
	if len(blocks) == 0 {
		return &dropTarget{mode: modeAppendEditor, layout: LayoutFullWidth}
	}
	if geom == nil {
		return nil
	}

	// full-width wrappers hit-test ahead of blocks; floats fall through to
	// their host text block
	wrappers := c.allWrappers()
	for _, tr := range geom.Wrappers {
		if tr.Index < 0 || tr.Index >= len(wrappers) || !tr.Rect.Contains(geom.X, geom.Y) {
			continue
		}
		w := wrappers[tr.Index]
		if wrapperLayout(w) == LayoutFullWidth {
			return &dropTarget{mode: modeAfterWrapper, ref: w, layout: LayoutFullWidth}
		}
	}

	for _, tr := range geom.Blocks {
		if tr.Index < 0 || tr.Index >= len(blocks) || !tr.Rect.Contains(geom.X, geom.Y) {
			continue
		}
		b := blocks[tr.Index]
		if isTextBlock(b) {
			return &dropTarget{mode: modePrependParagraph, ref: b, layout: LayoutFloatRight}
		}
		if geom.Y < tr.Rect.MidY() {
			return &dropTarget{mode: modeBeforeElement, ref: b, layout: LayoutFullWidth}
		}
		return &dropTarget{mode: modeAfterElement, ref: b, layout: LayoutFullWidth}
	}

	// empty space: nearest block by vertical midpoint
	best := -1
	bestDist := math.Inf(1)
	for i, tr := range geom.Blocks {
		if tr.Index < 0 || tr.Index >= len(blocks) {
			continue
		}
		if d := math.Abs(geom.Y - tr.Rect.MidY()); d < bestDist {
			bestDist = d
			best = i
		}
	}
	if best < 0 {
		return nil
	}
	tr := geom.Blocks[best]
	b := blocks[tr.Index]
	if geom.Y < tr.Rect.MidY() {
		return &dropTarget{mode: modeBeforeElement, ref: b, layout: LayoutFullWidth}
	}
	return &dropTarget{mode: modeAfterElement, ref: b, layout: LayoutFullWidth}
}

// targetInsideDragged guards the editor-source case where the pointer landed
// on the wrapper being dragged
func (c *DragController) targetInsideDragged(target *dropTarget) bool {
	if c.draggedWrapper == nil || target.ref == nil {
		return false
	}
	return containsNode(c.draggedWrapper, target.ref)
}

// draggedWrapperState pairs a wrapper with the layout it carried before the
// drop retargeted it
type draggedWrapperState struct {
	node      *html.Node
	oldLayout string
}

// collectWrappers yields the wrappers to insert: the detached editor wrapper
// with its layout read from the DOM attribute (cached derived state can
// diverge from it), or fresh wrappers minted for each dragged UUID
func (c *DragController) collectWrappers(layout string) []draggedWrapperState {
	if c.source == DragSourceEditor {
		old := wrapperLayout(c.draggedWrapper)
		detach(c.draggedWrapper)
		return []draggedWrapperState{{node: c.draggedWrapper, oldLayout: old}}
	}

	var out []draggedWrapperState
	for _, uuid := range c.draggedUUIDs {
		w, err := c.images.CreateImageElementFromUUID(uuid, layout)
		if err != nil {
			c.logger.Warn().
				Str("uuid", uuid).
				Err(err).
				Msg("Dragged image not in catalog, skipped")
			continue
		}
		out = append(out, draggedWrapperState{node: w, oldLayout: layout})
	}
	return out
}

// insertChained places the first wrapper per the target mode and chains the
// rest directly after it, preserving relative order among the moved set
func (c *DragController) insertChained(wrappers []*html.Node, target *dropTarget) {
	first := wrappers[0]
	switch target.mode {
	case modePrependParagraph:
		if target.ref.FirstChild != nil {
			target.ref.InsertBefore(first, target.ref.FirstChild)
		} else {
			target.ref.AppendChild(first)
		}
	case modeAfterWrapper, modeAfterElement:
		insertAfter(target.ref.Parent, first, target.ref)
	case modeBeforeElement:
		target.ref.Parent.InsertBefore(first, target.ref)
	case modeAppendEditor:
		c.doc.root.AppendChild(first)
	}

	prev := first
	for _, w := range wrappers[1:] {
		insertAfter(prev.Parent, w, prev)
		prev = w
	}
}

// enforceFloatLimit trims a text block down to the float cap, removing
// wrappers from the document-order end. Full-width wrappers never count
// toward the cap.
func (c *DragController) enforceFloatLimit(paragraph *html.Node) {
	var floats []*html.Node
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if isImageWrapper(n) {
			if wrapperLayout(n) == LayoutFloatRight {
				floats = append(floats, n)
			}
			return
		}
		for child := n.FirstChild; child != nil; child = child.NextSibling {
			walk(child)
		}
	}
	for child := paragraph.FirstChild; child != nil; child = child.NextSibling {
		walk(child)
	}

	if len(floats) <= MaxFloatImagesPerParagraph {
		return
	}
	for _, w := range floats[MaxFloatImagesPerParagraph:] {
		c.images.discardWrapper(w)
	}
	c.logger.Debug().
		Int("removed", len(floats)-MaxFloatImagesPerParagraph).
		Msg("Float image cap enforced")
}

// wrapperAt returns the image wrapper at the given document-order index
func (c *DragController) wrapperAt(index int) *html.Node {
	wrappers := c.allWrappers()
	if index < 0 || index >= len(wrappers) {
		return nil
	}
	return wrappers[index]
}

// allWrappers lists every image wrapper in document order
func (c *DragController) allWrappers() []*html.Node {
	var out []*html.Node
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if isImageWrapper(n) {
			out = append(out, n)
			return
		}
		for child := n.FirstChild; child != nil; child = child.NextSibling {
			walk(child)
		}
	}
	for child := c.doc.root.FirstChild; child != nil; child = child.NextSibling {
		walk(child)
	}
	return out
}
