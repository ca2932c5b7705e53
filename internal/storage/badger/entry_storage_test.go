package badger

import (
	"errors"
	"io/ioutil"
	"os"
	"strings"
	"testing"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/scribo/internal/interfaces"
	"github.com/ternarybob/scribo/internal/models"
	"github.com/timshannon/badgerhold/v4"
)

func newTestDB(t *testing.T) *BadgerDB {
	t.Helper()

	tmpDir, err := ioutil.TempDir("", "badger-test")
	if err != nil {
		t.Fatal(err)
	}

	options := badgerhold.DefaultOptions
	options.Dir = tmpDir
	options.ValueDir = tmpDir

	store, err := badgerhold.Open(options)
	if err != nil {
		t.Fatal(err)
	}

	t.Cleanup(func() {
		store.Close()
		os.RemoveAll(tmpDir)
	})

	return &BadgerDB{store: store}
}

func TestEntryLifecycle(t *testing.T) {
	db := newTestDB(t)
	logger := arbor.NewLogger()
	storage := NewEntryStorage(db, logger)

	// 1. Create a new entry without an ID
	saved, err := storage.SaveEntry(&models.Entry{
		HTML:      `<p class="text-block">First draft</p>`,
		Title:     "Day one",
		EntryDate: "2026-08-21",
		Timezone:  "Australia/Sydney",
	})
	if err != nil {
		t.Fatalf("Failed to save new entry: %v", err)
	}
	if !strings.HasPrefix(saved.ID, "entry_") {
		t.Errorf("Expected minted entry_ ID, got %q", saved.ID)
	}
	if saved.Version != 1 {
		t.Errorf("Expected version 1 on create, got %d", saved.Version)
	}
	if saved.CreatedAt.IsZero() || saved.UpdatedAt.IsZero() {
		t.Error("Expected timestamps to be set on create")
	}

	// 2. Read it back
	got, err := storage.GetEntry(saved.ID)
	if err != nil {
		t.Fatalf("Failed to get entry: %v", err)
	}
	if got.Title != "Day one" || got.HTML != saved.HTML {
		t.Errorf("Roundtrip mismatch: %+v", got)
	}

	// 3. Update at the current version
	got.HTML = `<p class="text-block">Second draft</p>`
	updated, err := storage.SaveEntry(got)
	if err != nil {
		t.Fatalf("Failed to update entry: %v", err)
	}
	if updated.Version != 2 {
		t.Errorf("Expected version 2 after update, got %d", updated.Version)
	}
	if !updated.CreatedAt.Equal(saved.CreatedAt) {
		t.Error("Update must preserve CreatedAt")
	}

	// 4. Delete and verify the not-found sentinel
	if err := storage.DeleteEntry(saved.ID); err != nil {
		t.Fatalf("Failed to delete entry: %v", err)
	}
	if _, err := storage.GetEntry(saved.ID); !errors.Is(err, interfaces.ErrEntryNotFound) {
		t.Errorf("Expected ErrEntryNotFound, got %v", err)
	}

	// 5. Deleting again is a no-op
	if err := storage.DeleteEntry(saved.ID); err != nil {
		t.Errorf("Deleting a missing entry should not error: %v", err)
	}
}

func TestSaveEntry_StaleVersionRejected(t *testing.T) {
	db := newTestDB(t)
	storage := NewEntryStorage(db, arbor.NewLogger())

	saved, err := storage.SaveEntry(&models.Entry{HTML: `<p class="text-block">v1</p>`, EntryDate: "2026-08-21"})
	if err != nil {
		t.Fatalf("Failed to save entry: %v", err)
	}

	current, err := storage.SaveEntry(saved)
	if err != nil {
		t.Fatalf("Failed to advance entry: %v", err)
	}
	if current.Version != 2 {
		t.Fatalf("Expected version 2, got %d", current.Version)
	}

	// Writing with the superseded version must fail without touching the record
	stale := *saved
	stale.HTML = `<p class="text-block">stale write</p>`
	if _, err := storage.SaveEntry(&stale); !errors.Is(err, interfaces.ErrVersionConflict) {
		t.Fatalf("Expected ErrVersionConflict, got %v", err)
	}

	got, err := storage.GetEntry(saved.ID)
	if err != nil {
		t.Fatalf("Failed to get entry: %v", err)
	}
	if got.Version != 2 || got.HTML != current.HTML {
		t.Errorf("Conflicting write must not modify the stored entry: %+v", got)
	}
}

func TestSaveEntry_ClientMintedID(t *testing.T) {
	db := newTestDB(t)
	storage := NewEntryStorage(db, arbor.NewLogger())

	saved, err := storage.SaveEntry(&models.Entry{
		ID:        "entry_custom",
		HTML:      `<p class="text-block">imported</p>`,
		EntryDate: "2026-08-20",
	})
	if err != nil {
		t.Fatalf("Failed to save entry with preset ID: %v", err)
	}
	if saved.ID != "entry_custom" {
		t.Errorf("Expected preset ID to survive, got %q", saved.ID)
	}
	if saved.Version != 1 {
		t.Errorf("Expected version 1 on first save, got %d", saved.Version)
	}
}

func TestListEntries_OrderingAndPaging(t *testing.T) {
	db := newTestDB(t)
	storage := NewEntryStorage(db, arbor.NewLogger())

	dates := []string{"2026-08-19", "2026-08-21", "2026-08-20"}
	for i, date := range dates {
		entry := &models.Entry{
			HTML:      `<p class="text-block">entry</p>`,
			EntryDate: date,
		}
		if i == 1 {
			entry.IncludeInPublish = true
		}
		if _, err := storage.SaveEntry(entry); err != nil {
			t.Fatalf("Failed to save entry %d: %v", i, err)
		}
	}

	all, err := storage.ListEntries(nil)
	if err != nil {
		t.Fatalf("Failed to list entries: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("Expected 3 entries, got %d", len(all))
	}
	wantOrder := []string{"2026-08-21", "2026-08-20", "2026-08-19"}
	for i, want := range wantOrder {
		if all[i].EntryDate != want {
			t.Errorf("Position %d: expected %s, got %s", i, want, all[i].EntryDate)
		}
	}

	page, err := storage.ListEntries(&interfaces.ListOptions{Limit: 1, Offset: 1})
	if err != nil {
		t.Fatalf("Failed to page entries: %v", err)
	}
	if len(page) != 1 || page[0].EntryDate != "2026-08-20" {
		t.Errorf("Expected the middle entry, got %+v", page)
	}

	published, err := storage.ListEntries(&interfaces.ListOptions{PublishedOnly: true})
	if err != nil {
		t.Fatalf("Failed to list published entries: %v", err)
	}
	if len(published) != 1 || published[0].EntryDate != "2026-08-21" {
		t.Errorf("Expected only the publishable entry, got %+v", published)
	}
}

func TestEntryStatsAndClear(t *testing.T) {
	db := newTestDB(t)
	storage := NewEntryStorage(db, arbor.NewLogger())

	for i := 0; i < 3; i++ {
		entry := &models.Entry{HTML: `<p class="text-block">x</p>`, EntryDate: "2026-08-21"}
		entry.IncludeInPublish = i == 0
		if _, err := storage.SaveEntry(entry); err != nil {
			t.Fatalf("Failed to save entry %d: %v", i, err)
		}
	}

	count, err := storage.CountEntries()
	if err != nil {
		t.Fatalf("Failed to count entries: %v", err)
	}
	if count != 3 {
		t.Errorf("Expected 3 entries, got %d", count)
	}

	publishable, err := storage.GetPublishableEntries()
	if err != nil {
		t.Fatalf("Failed to get publishable entries: %v", err)
	}
	if len(publishable) != 1 {
		t.Errorf("Expected 1 publishable entry, got %d", len(publishable))
	}

	stats, err := storage.GetStats()
	if err != nil {
		t.Fatalf("Failed to get stats: %v", err)
	}
	if stats.TotalEntries != 3 || stats.PublishedEntries != 1 {
		t.Errorf("Unexpected stats: %+v", stats)
	}
	if stats.LastUpdated.IsZero() {
		t.Error("Expected LastUpdated to be populated")
	}

	if err := storage.ClearAll(); err != nil {
		t.Fatalf("Failed to clear entries: %v", err)
	}
	count, err = storage.CountEntries()
	if err != nil {
		t.Fatalf("Failed to count after clear: %v", err)
	}
	if count != 0 {
		t.Errorf("Expected 0 entries after clear, got %d", count)
	}
}
