// -----------------------------------------------------------------------
// Image Manager - wrapper lifecycle and the image usage index
// -----------------------------------------------------------------------

package editor

import (
	"errors"
	"fmt"

	"github.com/PuerkitoBio/goquery"
	"github.com/ternarybob/arbor"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/ternarybob/scribo/internal/interfaces"
	"github.com/ternarybob/scribo/internal/models"
)

// DefaultImageCaption is substituted when the catalog has no caption for an image
const DefaultImageCaption = "Untitled image"

// UsageCounts is the read-only view of the usage index handed to components
// that filter on usage; only the ImageManager mutates the underlying counts.
type UsageCounts interface {
	// Count returns how many wrappers in the document reference the UUID
	Count(uuid string) int

	// Contains reports whether the document references the UUID at all
	Contains(uuid string) bool
}

// ImageManager owns the document's image wrappers and the usage index: a
// multiset of wrapper UUIDs kept in lockstep with the tree. The same catalog
// image may legitimately appear in several wrappers.
type ImageManager struct {
	doc       *Document
	catalog   interfaces.CatalogService
	layout    *LayoutManager
	usage     map[string]int
	callbacks *Callbacks
	logger    arbor.ILogger
}

// NewImageManager creates a new image manager
func NewImageManager(doc *Document, catalog interfaces.CatalogService, layout *LayoutManager, callbacks *Callbacks, logger arbor.ILogger) *ImageManager {
	return &ImageManager{
		doc:       doc,
		catalog:   catalog,
		layout:    layout,
		usage:     make(map[string]int),
		callbacks: callbacks,
		logger:    logger,
	}
}

// Usage returns the read-only view of the usage index
func (m *ImageManager) Usage() UsageCounts {
	return m
}

// Count returns the number of wrappers referencing the UUID
func (m *ImageManager) Count(uuid string) int {
	return m.usage[uuid]
}

// Contains reports whether any wrapper references the UUID
func (m *ImageManager) Contains(uuid string) bool {
	return m.usage[uuid] > 0
}

// InitializeUsedImages rebuilds the usage index from the document. Called on
// load and after wholesale content replacement.
func (m *ImageManager) InitializeUsedImages() {
	m.usage = make(map[string]int)
	m.doc.Query().Find("span.image-wrapper").Each(func(i int, s *goquery.Selection) {
		if uuid, exists := s.Attr(AttrUUID); exists && uuid != "" {
			m.usage[uuid]++
		}
	})

	m.logger.Debug().
		Int("distinct_images", len(m.usage)).
		Msg("Usage index initialized from document")
}

// ImageDataFromUUID resolves a UUID through the catalog, substituting the
// caption placeholder when the catalog has none. Unknown UUIDs return nil.
func (m *ImageManager) ImageDataFromUUID(uuid string) *models.ImageData {
	card, err := m.catalog.GetImage(uuid)
	if err != nil {
		if !errors.Is(err, interfaces.ErrImageNotFound) {
			m.logger.Warn().Err(err).Str("uuid", uuid).Msg("Catalog lookup failed")
		}
		return nil
	}

	caption := card.Caption
	if caption == "" {
		caption = DefaultImageCaption
	}
	return &models.ImageData{
		UUID:    card.UUID,
		URL:     card.URL,
		Caption: caption,
	}
}

// CreateImageElement builds a wrapper element for the image and registers it
// in the usage index. The caption node is omitted entirely when the caption
// is empty; the delete affordance is always present. The wrapper is a span
// so it can live inside a text block without the parser hoisting it out.
func (m *ImageManager) CreateImageElement(data *models.ImageData, layout string) *html.Node {
	wrapper := newElement(atom.Span)
	addClass(wrapper, ClassImageWrapper)
	setAttr(wrapper, AttrUUID, data.UUID)
	setAttr(wrapper, AttrLayout, layout)

	img := newElement(atom.Img)
	setAttr(img, "src", data.URL)
	setAttr(img, "alt", data.Caption)
	wrapper.AppendChild(img)

	if data.Caption != "" {
		caption := newElement(atom.Span)
		addClass(caption, ClassImageCaption)
		caption.AppendChild(newTextNode(data.Caption))
		wrapper.AppendChild(caption)
	}

	wrapper.AppendChild(newDeleteButton())

	m.usage[data.UUID]++
	m.logger.Debug().
		Str("uuid", data.UUID).
		Str("layout", layout).
		Int("count", m.usage[data.UUID]).
		Msg("Image wrapper created")

	if m.callbacks != nil && m.callbacks.OnImageAdded != nil {
		m.callbacks.OnImageAdded(data.UUID)
	}
	return wrapper
}

// CreateImageElementFromUUID resolves the UUID and builds its wrapper
func (m *ImageManager) CreateImageElementFromUUID(uuid string, layout string) (*html.Node, error) {
	data := m.ImageDataFromUUID(uuid)
	if data == nil {
		return nil, fmt.Errorf("image %s not found in catalog", uuid)
	}
	return m.CreateImageElement(data, layout), nil
}

// RemoveImage detaches the wrapper enclosing the given node (the image, the
// delete button, or the wrapper itself), deregisters it from the usage index
// and refreshes the layout.
func (m *ImageManager) RemoveImage(n *html.Node) bool {
	wrapper := n
	for wrapper != nil && wrapper != m.doc.root && !isImageWrapper(wrapper) {
		wrapper = wrapper.Parent
	}
	if wrapper == nil || wrapper == m.doc.root || !containsNode(m.doc.root, wrapper) {
		return false
	}

	uuid, _ := getAttr(wrapper, AttrUUID)
	host := wrapper.Parent
	detach(wrapper)

	// a float removal may leave its host block empty of images
	if host != nil && isTextBlock(host) && !containsTag(host, atom.Img) {
		removeClass(host, ClassHasFloat)
	}

	m.releaseUsage(uuid)
	m.layout.RefreshLayout()

	if m.callbacks != nil && m.callbacks.OnImageRemoved != nil {
		m.callbacks.OnImageRemoved(uuid)
	}
	if m.callbacks != nil && m.callbacks.OnContentChanged != nil {
		m.callbacks.OnContentChanged()
	}
	return true
}

// RemoveImageByUUID removes the first wrapper carrying the UUID
func (m *ImageManager) RemoveImageByUUID(uuid string) bool {
	var wrapper *html.Node
	m.doc.Query().Find("span.image-wrapper").EachWithBreak(func(i int, s *goquery.Selection) bool {
		if val, _ := s.Attr(AttrUUID); val == uuid {
			wrapper = s.Nodes[0]
			return false
		}
		return true
	})
	if wrapper == nil {
		return false
	}
	return m.RemoveImage(wrapper)
}

// releaseUsage decrements a UUID's count, deleting the key at zero so the
// index never reports stale zero entries
func (m *ImageManager) releaseUsage(uuid string) {
	if uuid == "" {
		return
	}
	if m.usage[uuid] <= 1 {
		delete(m.usage, uuid)
	} else {
		m.usage[uuid]--
	}
	m.logger.Debug().
		Str("uuid", uuid).
		Int("count", m.usage[uuid]).
		Msg("Image wrapper released")
}

// discardWrapper drops a wrapper without the layout refresh or the change
// notification, for callers mid-mutation that settle both themselves
func (m *ImageManager) discardWrapper(wrapper *html.Node) {
	uuid, _ := getAttr(wrapper, AttrUUID)
	detach(wrapper)
	m.releaseUsage(uuid)
	if m.callbacks != nil && m.callbacks.OnImageRemoved != nil {
		m.callbacks.OnImageRemoved(uuid)
	}
}

// newDeleteButton builds the per-wrapper delete affordance
func newDeleteButton() *html.Node {
	button := newElement(atom.Button)
	addClass(button, ClassImageDelete)
	setAttr(button, "type", "button")
	button.AppendChild(newTextNode("×"))
	return button
}
