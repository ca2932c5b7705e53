package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/scribo/internal/interfaces"
	"github.com/ternarybob/scribo/internal/models"
)

// mockCatalog implements interfaces.CatalogService for testing
type mockCatalog struct {
	getFunc    func(uuid string) (*models.ImageCard, error)
	listFunc   func() ([]*models.ImageCard, error)
	addFunc    func(card *models.ImageCard) error
	removeFunc func(uuid string) error
}

func (m *mockCatalog) GetImage(uuid string) (*models.ImageCard, error) {
	if m.getFunc != nil {
		return m.getFunc(uuid)
	}
	return nil, interfaces.ErrImageNotFound
}

func (m *mockCatalog) ListImages() ([]*models.ImageCard, error) {
	if m.listFunc != nil {
		return m.listFunc()
	}
	return nil, nil
}

func (m *mockCatalog) AddImage(card *models.ImageCard) error {
	if m.addFunc != nil {
		return m.addFunc(card)
	}
	return nil
}

func (m *mockCatalog) RemoveImage(uuid string) error {
	if m.removeFunc != nil {
		return m.removeFunc(uuid)
	}
	return nil
}

func (m *mockCatalog) InspectURL(uuid string) string {
	return "/api/images/" + uuid + "/inspect"
}

func newTestImageHandler(catalog *mockCatalog) *ImageHandler {
	return NewImageHandler(catalog, arbor.NewLogger())
}

func TestImageListHandler_Success(t *testing.T) {
	catalog := &mockCatalog{
		listFunc: func() ([]*models.ImageCard, error) {
			return []*models.ImageCard{
				{UUID: "img-1", URL: "/images/one.jpg", Caption: "One"},
				{UUID: "img-2", URL: "/images/two.jpg"},
			}, nil
		},
	}

	handler := newTestImageHandler(catalog)
	req := httptest.NewRequest("GET", "/api/images", nil)
	rec := httptest.NewRecorder()

	handler.ListHandler(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", rec.Code)
	}

	var response map[string]interface{}
	if err := json.NewDecoder(rec.Body).Decode(&response); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if int(response["count"].(float64)) != 2 {
		t.Errorf("Expected count 2, got %v", response["count"])
	}

	images := response["images"].([]interface{})
	first := images[0].(map[string]interface{})
	if first["uuid"] != "img-1" {
		t.Errorf("Expected uuid 'img-1', got %v", first["uuid"])
	}
}

func TestImageGetHandler_NotFound(t *testing.T) {
	handler := newTestImageHandler(&mockCatalog{})
	req := httptest.NewRequest("GET", "/api/images/img-missing", nil)
	rec := httptest.NewRecorder()

	handler.GetHandler(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("Expected status 404, got %d", rec.Code)
	}

	var response map[string]interface{}
	json.NewDecoder(rec.Body).Decode(&response)
	if response["error"] != "Image not found" {
		t.Errorf("Expected error 'Image not found', got %v", response["error"])
	}
}

func TestImageAddHandler_MintsUUID(t *testing.T) {
	catalog := &mockCatalog{
		addFunc: func(card *models.ImageCard) error {
			if card.UUID == "" {
				card.UUID = "img-minted"
			}
			return nil
		},
	}

	handler := newTestImageHandler(catalog)
	req := httptest.NewRequest("POST", "/api/images", strings.NewReader(`{"url":"/images/new.jpg","caption":"Sunset"}`))
	rec := httptest.NewRecorder()

	handler.AddHandler(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("Expected status 201, got %d: %s", rec.Code, rec.Body.String())
	}

	var card models.ImageCard
	json.NewDecoder(rec.Body).Decode(&card)
	if card.UUID != "img-minted" {
		t.Errorf("Expected minted UUID in response, got %q", card.UUID)
	}
	if card.Caption != "Sunset" {
		t.Errorf("Expected caption 'Sunset', got %q", card.Caption)
	}
}

func TestImageAddHandler_RequiresURL(t *testing.T) {
	called := false
	catalog := &mockCatalog{
		addFunc: func(card *models.ImageCard) error {
			called = true
			return nil
		},
	}

	handler := newTestImageHandler(catalog)
	req := httptest.NewRequest("POST", "/api/images", strings.NewReader(`{"caption":"No URL"}`))
	rec := httptest.NewRecorder()

	handler.AddHandler(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("Expected status 400, got %d", rec.Code)
	}
	if called {
		t.Error("Expected AddImage not to be called without a URL")
	}
}

func TestImageDeleteHandler_Success(t *testing.T) {
	var removed string
	catalog := &mockCatalog{
		removeFunc: func(uuid string) error {
			removed = uuid
			return nil
		},
	}

	handler := newTestImageHandler(catalog)
	req := httptest.NewRequest("DELETE", "/api/images/img-1", nil)
	rec := httptest.NewRecorder()

	handler.DeleteHandler(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", rec.Code)
	}
	if removed != "img-1" {
		t.Errorf("Expected removal of 'img-1', got %q", removed)
	}
}

func TestImageDeleteHandler_NotFound(t *testing.T) {
	catalog := &mockCatalog{
		removeFunc: func(uuid string) error {
			return interfaces.ErrImageNotFound
		},
	}

	handler := newTestImageHandler(catalog)
	req := httptest.NewRequest("DELETE", "/api/images/img-missing", nil)
	rec := httptest.NewRecorder()

	handler.DeleteHandler(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("Expected status 404, got %d", rec.Code)
	}
}

func TestImageInspectHandler_Redirects(t *testing.T) {
	catalog := &mockCatalog{
		getFunc: func(uuid string) (*models.ImageCard, error) {
			return &models.ImageCard{UUID: uuid, URL: "https://photos.example.com/full/img-1.jpg"}, nil
		},
	}

	handler := newTestImageHandler(catalog)
	req := httptest.NewRequest("GET", "/api/images/img-1/inspect", nil)
	rec := httptest.NewRecorder()

	handler.InspectHandler(rec, req)

	if rec.Code != http.StatusFound {
		t.Fatalf("Expected status 302, got %d", rec.Code)
	}
	if loc := rec.Header().Get("Location"); loc != "https://photos.example.com/full/img-1.jpg" {
		t.Errorf("Expected redirect to image URL, got %q", loc)
	}
}

func TestPathID(t *testing.T) {
	tests := []struct {
		path     string
		prefix   string
		expected string
	}{
		{"/api/images/img-1", "/api/images/", "img-1"},
		{"/api/images/img-1/inspect", "/api/images/", "img-1"},
		{"/api/images/", "/api/images/", ""},
		{"/api/other/img-1", "/api/images/", ""},
	}

	for _, tt := range tests {
		if got := PathID(tt.path, tt.prefix); got != tt.expected {
			t.Errorf("PathID(%q, %q) = %q, expected %q", tt.path, tt.prefix, got, tt.expected)
		}
	}
}
