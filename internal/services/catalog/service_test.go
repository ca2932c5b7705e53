package catalog

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/scribo/internal/interfaces"
	"github.com/ternarybob/scribo/internal/models"
)

// mockImageStorage implements interfaces.ImageStorage for testing
type mockImageStorage struct {
	cards   map[string]*models.ImageCard
	deleted []string
}

func newMockImageStorage() *mockImageStorage {
	return &mockImageStorage{cards: make(map[string]*models.ImageCard)}
}

func (m *mockImageStorage) SaveImage(card *models.ImageCard) error {
	m.cards[card.UUID] = card
	return nil
}

func (m *mockImageStorage) GetImage(uuid string) (*models.ImageCard, error) {
	card, ok := m.cards[uuid]
	if !ok {
		return nil, interfaces.ErrImageNotFound
	}
	return card, nil
}

func (m *mockImageStorage) DeleteImage(uuid string) error {
	delete(m.cards, uuid)
	m.deleted = append(m.deleted, uuid)
	return nil
}

func (m *mockImageStorage) ListImages() ([]*models.ImageCard, error) {
	result := make([]*models.ImageCard, 0, len(m.cards))
	for _, card := range m.cards {
		result = append(result, card)
	}
	return result, nil
}

func (m *mockImageStorage) CountImages() (int, error) { return len(m.cards), nil }
func (m *mockImageStorage) ClearAll() error           { return nil }

func TestAddImage_MintsUUIDAndURL(t *testing.T) {
	storage := newMockImageStorage()
	service := NewService(storage, "/api", arbor.NewLogger())

	card := &models.ImageCard{Caption: "Sunrise"}
	require.NoError(t, service.AddImage(card))

	assert.NotEmpty(t, card.UUID)
	assert.Equal(t, "/api/images/"+card.UUID, card.URL)
	assert.Contains(t, storage.cards, card.UUID)
}

func TestAddImage_KeepsProvidedIdentity(t *testing.T) {
	storage := newMockImageStorage()
	service := NewService(storage, "/api", arbor.NewLogger())

	card := &models.ImageCard{UUID: "img-1", URL: "/cdn/img-1.webp", Caption: "Sunrise"}
	require.NoError(t, service.AddImage(card))

	assert.Equal(t, "img-1", card.UUID)
	assert.Equal(t, "/cdn/img-1.webp", card.URL)
}

func TestAddImage_RejectsNilCard(t *testing.T) {
	service := NewService(newMockImageStorage(), "/api", arbor.NewLogger())
	assert.Error(t, service.AddImage(nil))
}

func TestGetImage_PassesThroughNotFound(t *testing.T) {
	service := NewService(newMockImageStorage(), "/api", arbor.NewLogger())

	_, err := service.GetImage("ghost")
	assert.ErrorIs(t, err, interfaces.ErrImageNotFound)
}

func TestRemoveImage_DeletesFromStorage(t *testing.T) {
	storage := newMockImageStorage()
	service := NewService(storage, "/api", arbor.NewLogger())

	require.NoError(t, service.AddImage(&models.ImageCard{UUID: "img-1"}))
	require.NoError(t, service.RemoveImage("img-1"))

	assert.Equal(t, []string{"img-1"}, storage.deleted)
	_, err := service.GetImage("img-1")
	assert.ErrorIs(t, err, interfaces.ErrImageNotFound)
}

func TestInspectURL(t *testing.T) {
	service := NewService(newMockImageStorage(), "/api", arbor.NewLogger())
	assert.Equal(t, "/api/images/img-1/inspect", service.InspectURL("img-1"))
}

func TestListImages_ReturnsAllCards(t *testing.T) {
	storage := newMockImageStorage()
	service := NewService(storage, "/api", arbor.NewLogger())

	require.NoError(t, service.AddImage(&models.ImageCard{UUID: "img-1"}))
	require.NoError(t, service.AddImage(&models.ImageCard{UUID: "img-2"}))

	cards, err := service.ListImages()
	require.NoError(t, err)
	assert.Len(t, cards, 2)
}
