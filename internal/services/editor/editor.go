// -----------------------------------------------------------------------
// Editor - one journal entry's editing engine
// -----------------------------------------------------------------------

package editor

import (
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/scribo/internal/interfaces"
)

// Callbacks fan editor mutations out to whoever hosts the editor. Any field
// may be nil.
type Callbacks struct {
	OnContentChanged func()            // any structural document change
	OnImageAdded     func(uuid string) // wrapper entered the document
	OnImageRemoved   func(uuid string) // wrapper left the document
}

// Editor wires one document to its managers: normalization, cursor
// preservation, paste, images, picker, layout, drag and drop, and the
// toolbar. All methods expect the caller to serialize access; an editor
// session runs its operations one at a time.
type Editor struct {
	doc        *Document
	normalizer *Normalizer
	layout     *LayoutManager
	images     *ImageManager
	picker     *Picker
	drag       *DragController
	toolbar    *Toolbar
	paste      *PasteHandler
	catalog    interfaces.CatalogService
	callbacks  *Callbacks
	logger     arbor.ILogger
}

// NewEditor assembles an editor over an empty document. The catalog resolves
// image UUIDs and builds picker card links; callbacks may be nil.
func NewEditor(catalog interfaces.CatalogService, callbacks *Callbacks, logger arbor.ILogger) *Editor {
	if callbacks == nil {
		callbacks = &Callbacks{}
	}

	var inspectURL func(uuid string) string
	if catalog != nil {
		inspectURL = catalog.InspectURL
	}

	doc := NewDocument()
	layout := NewLayoutManager(doc, logger)
	images := NewImageManager(doc, catalog, layout, callbacks, logger)
	picker := NewPicker(images.Usage(), inspectURL, logger)

	return &Editor{
		doc:        doc,
		normalizer: NewNormalizer(logger),
		layout:     layout,
		images:     images,
		picker:     picker,
		drag:       NewDragController(doc, images, layout, picker, callbacks, logger),
		toolbar:    NewToolbar(doc, callbacks, logger),
		paste:      NewPasteHandler(doc, callbacks, logger),
		catalog:    catalog,
		callbacks:  callbacks,
		logger:     logger,
	}
}

// LoadHTML replaces the document with stored markup and brings it to
// canonical form: normalize, rebuild the usage index, derive layout state.
// Loading is not an edit; no change notification fires.
func (e *Editor) LoadHTML(fragment string) error {
	if err := e.doc.Load(fragment); err != nil {
		return err
	}
	e.normalizer.Normalize(e.doc)
	e.images.InitializeUsedImages()
	e.layout.RefreshLayout()
	return nil
}

// HTML renders the current document
func (e *Editor) HTML() string {
	return e.doc.HTML()
}

// Normalize runs the full normalization pipeline, preserving the selection
// across the structural rewrite. The save and restore pair inside this one
// call; nothing interleaves between them.
func (e *Editor) Normalize() {
	marker := SaveCursor(e.doc)
	e.normalizer.Normalize(e.doc)
	RestoreCursor(e.doc, marker)
	e.layout.RefreshLayout()
}

// Document exposes the underlying document
func (e *Editor) Document() *Document {
	return e.doc
}

// Images exposes the image manager
func (e *Editor) Images() *ImageManager {
	return e.images
}

// Picker exposes the image picker
func (e *Editor) Picker() *Picker {
	return e.picker
}

// Drag exposes the drag and drop controller
func (e *Editor) Drag() *DragController {
	return e.drag
}

// Toolbar exposes the formatting toolbar
func (e *Editor) Toolbar() *Toolbar {
	return e.toolbar
}

// HandlePaste routes clipboard text through the paste handler
func (e *Editor) HandlePaste(text string) bool {
	return e.paste.HandlePaste(text)
}

// SaveCursor snapshots the selection as a marker
func (e *Editor) SaveCursor() *Marker {
	return SaveCursor(e.doc)
}

// RestoreCursor places the selection from a marker
func (e *Editor) RestoreCursor(m *Marker) {
	RestoreCursor(e.doc, m)
}

// RefreshPicker rebuilds the picker gallery from the catalog
func (e *Editor) RefreshPicker() error {
	if e.catalog == nil {
		return nil
	}
	images, err := e.catalog.ListImages()
	if err != nil {
		return err
	}
	e.picker.Refresh(images)
	return nil
}
