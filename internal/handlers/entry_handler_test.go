package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/scribo/internal/interfaces"
	"github.com/ternarybob/scribo/internal/models"
)

// mockEntryStorage implements interfaces.EntryStorage for testing
type mockEntryStorage struct {
	getFunc    func(id string) (*models.Entry, error)
	saveFunc   func(entry *models.Entry) (*models.Entry, error)
	deleteFunc func(id string) error
	listFunc   func(opts *interfaces.ListOptions) ([]*models.Entry, error)
	statsFunc  func() (*models.EntryStats, error)
	countFunc  func() (int, error)
}

func (m *mockEntryStorage) SaveEntry(entry *models.Entry) (*models.Entry, error) {
	if m.saveFunc != nil {
		return m.saveFunc(entry)
	}
	return entry, nil
}

func (m *mockEntryStorage) GetEntry(id string) (*models.Entry, error) {
	if m.getFunc != nil {
		return m.getFunc(id)
	}
	return nil, interfaces.ErrEntryNotFound
}

func (m *mockEntryStorage) DeleteEntry(id string) error {
	if m.deleteFunc != nil {
		return m.deleteFunc(id)
	}
	return nil
}

func (m *mockEntryStorage) ListEntries(opts *interfaces.ListOptions) ([]*models.Entry, error) {
	if m.listFunc != nil {
		return m.listFunc(opts)
	}
	return nil, nil
}

func (m *mockEntryStorage) GetPublishableEntries() ([]*models.Entry, error) {
	return nil, nil
}

func (m *mockEntryStorage) CountEntries() (int, error) {
	if m.countFunc != nil {
		return m.countFunc()
	}
	return 0, nil
}

func (m *mockEntryStorage) GetStats() (*models.EntryStats, error) {
	if m.statsFunc != nil {
		return m.statsFunc()
	}
	return &models.EntryStats{}, nil
}

func (m *mockEntryStorage) ClearAll() error { return nil }

// mockSaver implements interfaces.EntrySaver for testing
type mockSaver struct {
	saveFunc func(ctx context.Context, req *models.SaveRequest) (*models.SaveResult, error)
}

func (m *mockSaver) Save(ctx context.Context, req *models.SaveRequest) (*models.SaveResult, error) {
	if m.saveFunc != nil {
		return m.saveFunc(ctx, req)
	}
	return &models.SaveResult{EntryID: req.EntryID, Version: req.Version + 1, SavedAt: time.Now()}, nil
}

func newTestEntryHandler(storage *mockEntryStorage, saver *mockSaver) *EntryHandler {
	if saver == nil {
		saver = &mockSaver{}
	}
	return NewEntryHandler(storage, saver, arbor.NewLogger())
}

func testEntry(id, date, title string) *models.Entry {
	return &models.Entry{
		ID:        id,
		Title:     title,
		EntryDate: date,
		HTML:      `<p class="text-block">Hello</p>`,
		Version:   1,
	}
}

func TestEntryListHandler_Success(t *testing.T) {
	storage := &mockEntryStorage{
		listFunc: func(opts *interfaces.ListOptions) ([]*models.Entry, error) {
			return []*models.Entry{
				testEntry("entry_1", "2026-08-20", "Harbour walk"),
				testEntry("entry_2", "2026-08-19", "Ferry ride"),
			}, nil
		},
	}

	handler := newTestEntryHandler(storage, nil)
	req := httptest.NewRequest("GET", "/api/entries", nil)
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

	entries := response["entries"].([]interface{})
	if len(entries) != 2 {
		t.Fatalf("Expected 2 entries, got %d", len(entries))
	}

	first := entries[0].(map[string]interface{})
	if first["id"] != "entry_1" {
		t.Errorf("Expected id 'entry_1', got %v", first["id"])
	}
}

func TestEntryListHandler_PublishedFilter(t *testing.T) {
	var capturedOpts *interfaces.ListOptions
	storage := &mockEntryStorage{
		listFunc: func(opts *interfaces.ListOptions) ([]*models.Entry, error) {
			capturedOpts = opts
			return []*models.Entry{}, nil
		},
	}

	handler := newTestEntryHandler(storage, nil)
	req := httptest.NewRequest("GET", "/api/entries?published=true", nil)
	rec := httptest.NewRecorder()

	handler.ListHandler(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", rec.Code)
	}
	if capturedOpts == nil {
		t.Fatal("Expected ListEntries to be called")
	}
	if !capturedOpts.PublishedOnly {
		t.Error("Expected PublishedOnly to be set")
	}
	if capturedOpts.Limit != 20 {
		t.Errorf("Expected default limit 20, got %d", capturedOpts.Limit)
	}
}

func TestEntryGetHandler_Success(t *testing.T) {
	storage := &mockEntryStorage{
		getFunc: func(id string) (*models.Entry, error) {
			if id != "entry_1" {
				return nil, interfaces.ErrEntryNotFound
			}
			return testEntry("entry_1", "2026-08-20", "Harbour walk"), nil
		},
	}

	handler := newTestEntryHandler(storage, nil)
	req := httptest.NewRequest("GET", "/api/entries/entry_1", nil)
	rec := httptest.NewRecorder()

	handler.GetHandler(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", rec.Code)
	}

	var entry models.Entry
	if err := json.NewDecoder(rec.Body).Decode(&entry); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if entry.Title != "Harbour walk" {
		t.Errorf("Expected title 'Harbour walk', got %q", entry.Title)
	}
}

func TestEntryGetHandler_NotFound(t *testing.T) {
	handler := newTestEntryHandler(&mockEntryStorage{}, nil)
	req := httptest.NewRequest("GET", "/api/entries/entry_missing", nil)
	rec := httptest.NewRecorder()

	handler.GetHandler(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("Expected status 404, got %d", rec.Code)
	}

	var response map[string]interface{}
	json.NewDecoder(rec.Body).Decode(&response)
	if response["error"] != "Entry not found" {
		t.Errorf("Expected error 'Entry not found', got %v", response["error"])
	}
}

func TestEntryCreateHandler_DefaultsDate(t *testing.T) {
	var captured *models.Entry
	storage := &mockEntryStorage{
		saveFunc: func(entry *models.Entry) (*models.Entry, error) {
			captured = entry
			saved := *entry
			saved.ID = "entry_new"
			saved.Version = 1
			return &saved, nil
		},
	}

	handler := newTestEntryHandler(storage, nil)
	body, _ := json.Marshal(CreateEntryRequest{Title: "Morning pages"})
	req := httptest.NewRequest("POST", "/api/entries", bytes.NewReader(body))
	rec := httptest.NewRecorder()

	handler.CreateHandler(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("Expected status 201, got %d: %s", rec.Code, rec.Body.String())
	}
	if captured == nil {
		t.Fatal("Expected SaveEntry to be called")
	}
	if captured.EntryDate != time.Now().Format("2006-01-02") {
		t.Errorf("Expected entry date to default to today, got %q", captured.EntryDate)
	}

	var saved models.Entry
	json.NewDecoder(rec.Body).Decode(&saved)
	if saved.ID != "entry_new" {
		t.Errorf("Expected minted ID in response, got %q", saved.ID)
	}
}

func TestEntryCreateHandler_InvalidDate(t *testing.T) {
	called := false
	storage := &mockEntryStorage{
		saveFunc: func(entry *models.Entry) (*models.Entry, error) {
			called = true
			return entry, nil
		},
	}

	handler := newTestEntryHandler(storage, nil)
	req := httptest.NewRequest("POST", "/api/entries", strings.NewReader(`{"title":"x","entry_date":"20-08-2026"}`))
	rec := httptest.NewRecorder()

	handler.CreateHandler(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("Expected status 400, got %d", rec.Code)
	}
	if called {
		t.Error("Expected SaveEntry not to be called for invalid date")
	}
}

func TestEntryCreateHandler_InvalidJSON(t *testing.T) {
	handler := newTestEntryHandler(&mockEntryStorage{}, nil)
	req := httptest.NewRequest("POST", "/api/entries", strings.NewReader("{not json"))
	rec := httptest.NewRecorder()

	handler.CreateHandler(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("Expected status 400, got %d", rec.Code)
	}
}

func TestEntryDeleteHandler_Success(t *testing.T) {
	var deleted string
	storage := &mockEntryStorage{
		deleteFunc: func(id string) error {
			deleted = id
			return nil
		},
	}

	handler := newTestEntryHandler(storage, nil)
	req := httptest.NewRequest("DELETE", "/api/entries/entry_1", nil)
	rec := httptest.NewRecorder()

	handler.DeleteHandler(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", rec.Code)
	}
	if deleted != "entry_1" {
		t.Errorf("Expected delete of 'entry_1', got %q", deleted)
	}

	var response map[string]interface{}
	json.NewDecoder(rec.Body).Decode(&response)
	if response["status"] != "success" {
		t.Errorf("Expected status 'success', got %v", response["status"])
	}
}

func TestEntryStatsHandler(t *testing.T) {
	storage := &mockEntryStorage{
		statsFunc: func() (*models.EntryStats, error) {
			return &models.EntryStats{TotalEntries: 12, PublishedEntries: 4}, nil
		},
	}

	handler := newTestEntryHandler(storage, nil)
	req := httptest.NewRequest("GET", "/api/entries/stats", nil)
	rec := httptest.NewRecorder()

	handler.StatsHandler(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", rec.Code)
	}

	var response map[string]interface{}
	json.NewDecoder(rec.Body).Decode(&response)
	if int(response["total_entries"].(float64)) != 12 {
		t.Errorf("Expected total_entries 12, got %v", response["total_entries"])
	}
	if int(response["published_entries"].(float64)) != 4 {
		t.Errorf("Expected published_entries 4, got %v", response["published_entries"])
	}
}

func TestEntrySaveHandler_Success(t *testing.T) {
	saver := &mockSaver{
		saveFunc: func(ctx context.Context, req *models.SaveRequest) (*models.SaveResult, error) {
			return &models.SaveResult{EntryID: req.EntryID, Version: req.Version + 1, SavedAt: time.Now()}, nil
		},
	}

	handler := newTestEntryHandler(&mockEntryStorage{}, saver)
	body, _ := json.Marshal(models.SaveRequest{EntryID: "entry_1", Version: 3, Text: `<p class="text-block">Hi</p>`})
	req := httptest.NewRequest("POST", "/api/entries/save", bytes.NewReader(body))
	rec := httptest.NewRecorder()

	handler.SaveHandler(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var result models.SaveResult
	json.NewDecoder(rec.Body).Decode(&result)
	if result.Version != 4 {
		t.Errorf("Expected version 4 after save, got %d", result.Version)
	}
}

func TestEntrySaveHandler_Conflict(t *testing.T) {
	saver := &mockSaver{
		saveFunc: func(ctx context.Context, req *models.SaveRequest) (*models.SaveResult, error) {
			return nil, &interfaces.SaveError{
				Kind:       interfaces.SaveFailureConflict,
				StatusCode: http.StatusConflict,
				Err:        interfaces.ErrVersionConflict,
			}
		},
	}

	handler := newTestEntryHandler(&mockEntryStorage{}, saver)
	body, _ := json.Marshal(models.SaveRequest{EntryID: "entry_1", Version: 1})
	req := httptest.NewRequest("POST", "/api/entries/save", bytes.NewReader(body))
	rec := httptest.NewRecorder()

	handler.SaveHandler(rec, req)

	if rec.Code != http.StatusConflict {
		t.Fatalf("Expected status 409, got %d", rec.Code)
	}

	var response map[string]interface{}
	json.NewDecoder(rec.Body).Decode(&response)
	if response["error"] != "Entry version conflict" {
		t.Errorf("Expected error 'Entry version conflict', got %v", response["error"])
	}
}

func TestEntrySaveHandler_MissingEntryID(t *testing.T) {
	called := false
	saver := &mockSaver{
		saveFunc: func(ctx context.Context, req *models.SaveRequest) (*models.SaveResult, error) {
			called = true
			return nil, nil
		},
	}

	handler := newTestEntryHandler(&mockEntryStorage{}, saver)
	req := httptest.NewRequest("POST", "/api/entries/save", strings.NewReader(`{"text":"<p></p>","version":1}`))
	rec := httptest.NewRecorder()

	handler.SaveHandler(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("Expected status 400, got %d", rec.Code)
	}
	if called {
		t.Error("Expected saver not to be called without an entry ID")
	}
}
