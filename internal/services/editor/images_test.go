// -----------------------------------------------------------------------
// Image Manager tests - wrapper construction and the usage index
// -----------------------------------------------------------------------

package editor

import (
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ternarybob/scribo/internal/interfaces"
	"github.com/ternarybob/scribo/internal/models"
)

// fakeCatalog is an in-memory CatalogService for tests
type fakeCatalog struct {
	cards map[string]*models.ImageCard
}

func newFakeCatalog(cards ...*models.ImageCard) *fakeCatalog {
	c := &fakeCatalog{cards: make(map[string]*models.ImageCard)}
	for _, card := range cards {
		c.cards[card.UUID] = card
	}
	return c
}

func (c *fakeCatalog) GetImage(uuid string) (*models.ImageCard, error) {
	card, ok := c.cards[uuid]
	if !ok {
		return nil, interfaces.ErrImageNotFound
	}
	return card, nil
}

func (c *fakeCatalog) ListImages() ([]*models.ImageCard, error) {
	uuids := make([]string, 0, len(c.cards))
	for uuid := range c.cards {
		uuids = append(uuids, uuid)
	}
	sort.Strings(uuids)
	cards := make([]*models.ImageCard, 0, len(uuids))
	for _, uuid := range uuids {
		cards = append(cards, c.cards[uuid])
	}
	return cards, nil
}

func (c *fakeCatalog) AddImage(card *models.ImageCard) error {
	c.cards[card.UUID] = card
	return nil
}

func (c *fakeCatalog) RemoveImage(uuid string) error {
	delete(c.cards, uuid)
	return nil
}

func (c *fakeCatalog) InspectURL(uuid string) string {
	return "/images/" + uuid + "/inspect"
}

// callbackRecorder counts editor notifications for assertions
type callbackRecorder struct {
	contentChanged int
	added          []string
	removed        []string
}

func (r *callbackRecorder) callbacks() *Callbacks {
	return &Callbacks{
		OnContentChanged: func() { r.contentChanged++ },
		OnImageAdded:     func(uuid string) { r.added = append(r.added, uuid) },
		OnImageRemoved:   func(uuid string) { r.removed = append(r.removed, uuid) },
	}
}

func newTestImageManager(doc *Document, catalog interfaces.CatalogService, rec *callbackRecorder) *ImageManager {
	logger := newTestLogger()
	var cbs *Callbacks
	if rec != nil {
		cbs = rec.callbacks()
	}
	return NewImageManager(doc, catalog, NewLayoutManager(doc, logger), cbs, logger)
}

func TestCreateImageElement_Shape(t *testing.T) {
	doc := mustParse(t, "")
	rec := &callbackRecorder{}
	m := newTestImageManager(doc, newFakeCatalog(), rec)

	wrapper := m.CreateImageElement(&models.ImageData{
		UUID:    "img-1",
		URL:     "/api/images/img-1/inline",
		Caption: "Sunset",
	}, LayoutFullWidth)

	want := `<span class="image-wrapper" data-uuid="img-1" data-layout="full-width">` +
		`<img src="/api/images/img-1/inline" alt="Sunset"/>` +
		`<span class="image-caption">Sunset</span>` +
		`<button class="image-delete" type="button">×</button></span>`
	assertRender(t, wrapper, want)

	assert.Equal(t, 1, m.Count("img-1"))
	assert.True(t, m.Contains("img-1"))
	assert.Equal(t, []string{"img-1"}, rec.added)
}

func TestCreateImageElement_EmptyCaptionOmitsCaptionNode(t *testing.T) {
	doc := mustParse(t, "")
	m := newTestImageManager(doc, newFakeCatalog(), nil)

	wrapper := m.CreateImageElement(&models.ImageData{
		UUID: "img-2",
		URL:  "/api/images/img-2/inline",
	}, LayoutFloatRight)

	want := `<span class="image-wrapper" data-uuid="img-2" data-layout="float-right">` +
		`<img src="/api/images/img-2/inline" alt=""/>` +
		`<button class="image-delete" type="button">×</button></span>`
	assertRender(t, wrapper, want)
}

func TestImageDataFromUUID(t *testing.T) {
	catalog := newFakeCatalog(
		&models.ImageCard{UUID: "cap", URL: "/api/images/cap/inline", Caption: "Named"},
		&models.ImageCard{UUID: "nocap", URL: "/api/images/nocap/inline"},
	)
	doc := mustParse(t, "")
	m := newTestImageManager(doc, catalog, nil)

	named := m.ImageDataFromUUID("cap")
	require.NotNil(t, named)
	assert.Equal(t, "Named", named.Caption)

	placeholder := m.ImageDataFromUUID("nocap")
	require.NotNil(t, placeholder)
	assert.Equal(t, DefaultImageCaption, placeholder.Caption)

	assert.Nil(t, m.ImageDataFromUUID("missing"))
}

func TestCreateImageElementFromUUID_Unknown(t *testing.T) {
	doc := mustParse(t, "")
	m := newTestImageManager(doc, newFakeCatalog(), nil)

	wrapper, err := m.CreateImageElementFromUUID("ghost", LayoutFullWidth)
	assert.Nil(t, wrapper)
	assert.Error(t, err)
}

func TestUsage_IsAMultiset(t *testing.T) {
	doc := mustParse(t, "")
	m := newTestImageManager(doc, newFakeCatalog(), nil)
	data := &models.ImageData{UUID: "dup", URL: "/api/images/dup/inline", Caption: "Twice"}

	first := m.CreateImageElement(data, LayoutFullWidth)
	second := m.CreateImageElement(data, LayoutFullWidth)
	doc.Root().AppendChild(first)
	doc.Root().AppendChild(second)

	assert.Equal(t, 2, m.Count("dup"))

	require.True(t, m.RemoveImage(first))
	assert.Equal(t, 1, m.Count("dup"))
	assert.True(t, m.Contains("dup"))

	require.True(t, m.RemoveImage(second))
	assert.Equal(t, 0, m.Count("dup"))
	assert.False(t, m.Contains("dup"))
}

func TestInitializeUsedImages(t *testing.T) {
	doc := mustParse(t, `<span class="image-wrapper" data-uuid="a" data-layout="full-width"><img src="/a" alt=""/></span>`+
		`<p class="text-block">x <span class="image-wrapper" data-uuid="a" data-layout="float-right"><img src="/a" alt=""/></span></p>`+
		`<span class="image-wrapper" data-uuid="b" data-layout="full-width"><img src="/b" alt=""/></span>`)
	m := newTestImageManager(doc, newFakeCatalog(), nil)

	// seed a stale entry the rebuild must discard
	m.CreateImageElement(&models.ImageData{UUID: "stale", URL: "/s"}, LayoutFullWidth)

	m.InitializeUsedImages()

	assert.Equal(t, 2, m.Count("a"))
	assert.Equal(t, 1, m.Count("b"))
	assert.False(t, m.Contains("stale"))
}

func TestRemoveImage_FromInnerNode(t *testing.T) {
	doc := mustParse(t, `<span class="image-wrapper" data-uuid="u" data-layout="full-width"><img src="/u" alt=""/><button class="image-delete" type="button">×</button></span>`)
	rec := &callbackRecorder{}
	m := newTestImageManager(doc, newFakeCatalog(), rec)
	m.InitializeUsedImages()

	img := doc.Query().Find("img").Nodes[0]
	require.True(t, m.RemoveImage(img))

	assert.False(t, m.Contains("u"))
	assert.Equal(t, []string{"u"}, rec.removed)
	assert.Equal(t, 1, rec.contentChanged)
	assert.NotContains(t, doc.HTML(), "image-wrapper")
}

func TestRemoveImage_OutsideWrapper(t *testing.T) {
	doc := mustParse(t, `<p class="text-block">plain</p>`)
	rec := &callbackRecorder{}
	m := newTestImageManager(doc, newFakeCatalog(), rec)

	assert.False(t, m.RemoveImage(requireTextNode(t, doc.Root())))
	assert.Equal(t, 0, rec.contentChanged)
}

func TestRemoveImage_ClearsHostFloatMarker(t *testing.T) {
	doc := mustParse(t, `<p class="text-block has-float">walk <span class="image-wrapper" data-uuid="f1" data-layout="float-right"><img src="/f1" alt=""/><button class="image-delete" type="button">×</button></span></p>`)
	rec := &callbackRecorder{}
	m := newTestImageManager(doc, newFakeCatalog(), rec)
	m.InitializeUsedImages()

	wrapper := doc.Query().Find("span.image-wrapper").Nodes[0]
	require.True(t, m.RemoveImage(wrapper))

	assert.Equal(t, `<p class="text-block">walk </p>`, doc.HTML())
	assert.Equal(t, []string{"f1"}, rec.removed)
}

func TestRemoveImageByUUID(t *testing.T) {
	doc := mustParse(t, `<span class="image-wrapper" data-uuid="dup" data-layout="full-width"><img src="/d" alt=""/></span>`+
		`<span class="image-wrapper" data-uuid="dup" data-layout="full-width"><img src="/d" alt=""/></span>`)
	m := newTestImageManager(doc, newFakeCatalog(), nil)
	m.InitializeUsedImages()

	require.True(t, m.RemoveImageByUUID("dup"))
	assert.Equal(t, 1, m.Count("dup"))

	assert.False(t, m.RemoveImageByUUID("ghost"))
}
