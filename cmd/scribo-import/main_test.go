package main

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/renderer/html"

	"github.com/ternarybob/scribo/internal/interfaces"
	"github.com/ternarybob/scribo/internal/models"
)

// fakeEntries records saved entries, failing on demand
type fakeEntries struct {
	saved       []*models.Entry
	failOnTitle string
}

func (f *fakeEntries) SaveEntry(entry *models.Entry) (*models.Entry, error) {
	if f.failOnTitle != "" && entry.Title == f.failOnTitle {
		return nil, fmt.Errorf("storage rejected %s", entry.Title)
	}
	saved := *entry
	saved.ID = fmt.Sprintf("entry_%d", len(f.saved)+1)
	saved.Version = 1
	f.saved = append(f.saved, &saved)
	return &saved, nil
}

func (f *fakeEntries) GetEntry(id string) (*models.Entry, error) {
	return nil, interfaces.ErrEntryNotFound
}
func (f *fakeEntries) DeleteEntry(id string) error { return nil }
func (f *fakeEntries) ListEntries(opts *interfaces.ListOptions) ([]*models.Entry, error) {
	return f.saved, nil
}
func (f *fakeEntries) GetPublishableEntries() ([]*models.Entry, error) { return nil, nil }
func (f *fakeEntries) CountEntries() (int, error)                      { return len(f.saved), nil }
func (f *fakeEntries) GetStats() (*models.EntryStats, error)           { return &models.EntryStats{}, nil }
func (f *fakeEntries) ClearAll() error                                 { return nil }

// fakeCatalog is empty: imported documents carry no catalog images
type fakeCatalog struct{}

func (fakeCatalog) GetImage(uuid string) (*models.ImageCard, error) {
	return nil, interfaces.ErrImageNotFound
}
func (fakeCatalog) ListImages() ([]*models.ImageCard, error) { return nil, nil }
func (fakeCatalog) AddImage(card *models.ImageCard) error    { return nil }
func (fakeCatalog) RemoveImage(uuid string) error            { return nil }
func (fakeCatalog) InspectURL(uuid string) string            { return "/images/" + uuid + "/inspect" }

func newTestImporter(entries *fakeEntries, publish bool) *Importer {
	markdown := goldmark.New(
		goldmark.WithExtensions(extension.GFM),
		goldmark.WithRendererOptions(html.WithHardWraps(), html.WithXHTML()),
	)
	return NewImporter(entries, fakeCatalog{}, markdown, publish, "", arbor.NewLogger())
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestImportFile_RoundTripsExport(t *testing.T) {
	entries := &fakeEntries{}
	importer := newTestImporter(entries, true)

	content := "---\n" +
		"title: \"Harbour walk\"\n" +
		"date: 2026-08-19\n" +
		"timezone: Australia/Sydney\n" +
		"---\n" +
		"\n" +
		"## Morning\n" +
		"\n" +
		"We left **early**.\n"
	path := writeFile(t, t.TempDir(), "2026-08-19.md", content)

	saved, err := importer.ImportFile(path)
	require.NoError(t, err)

	assert.Equal(t, "Harbour walk", saved.Title)
	assert.Equal(t, "2026-08-19", saved.EntryDate)
	assert.Equal(t, "Australia/Sydney", saved.Timezone)
	assert.True(t, saved.IncludeInPublish)

	assert.Contains(t, saved.HTML, "<h2>Morning</h2>")
	assert.Contains(t, saved.HTML, "<strong>early</strong>")
	assert.Contains(t, saved.HTML, `class="text-block"`)
}

func TestImportFile_DateFromFilename(t *testing.T) {
	entries := &fakeEntries{}
	importer := newTestImporter(entries, false)

	path := writeFile(t, t.TempDir(), "2026-08-20-2.md", "Just a line.\n")

	saved, err := importer.ImportFile(path)
	require.NoError(t, err)

	assert.Equal(t, "2026-08-20", saved.EntryDate)
	assert.Equal(t, "2026-08-20-2", saved.Title)
	assert.False(t, saved.IncludeInPublish)
}

func TestImportFile_IgnoresUnknownTimezone(t *testing.T) {
	entries := &fakeEntries{}
	importer := newTestImporter(entries, false)

	content := "---\ntitle: \"Odd\"\ndate: 2026-08-21\ntimezone: Mars/Olympus_Mons\n---\n\nBody.\n"
	path := writeFile(t, t.TempDir(), "odd.md", content)

	saved, err := importer.ImportFile(path)
	require.NoError(t, err)
	assert.Empty(t, saved.Timezone)
}

func TestImportDir_ContinuesPastFailures(t *testing.T) {
	entries := &fakeEntries{failOnTitle: "Broken"}
	importer := newTestImporter(entries, false)

	dir := t.TempDir()
	writeFile(t, dir, "a.md", "---\ntitle: \"Broken\"\n---\n\nWill not store.\n")
	writeFile(t, dir, "b.md", "Survives.\n")

	require.NoError(t, importer.ImportDir(dir))
	require.Len(t, entries.saved, 1)
	assert.Equal(t, "b", entries.saved[0].Title)
}

func TestImportDir_EmptyDirectory(t *testing.T) {
	importer := newTestImporter(&fakeEntries{}, false)

	err := importer.ImportDir(t.TempDir())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no markdown files")
}

func TestSplitFrontMatter(t *testing.T) {
	meta, body := splitFrontMatter("---\ntitle: \"One \\\"day\\\"\"\ndate: 2026-08-19\n---\n\nBody text.\n")
	assert.Equal(t, `One "day"`, meta["title"])
	assert.Equal(t, "2026-08-19", meta["date"])
	assert.Equal(t, "\nBody text.\n", body)

	meta, body = splitFrontMatter("No front matter here.\n")
	assert.Empty(t, meta)
	assert.Equal(t, "No front matter here.\n", body)
}
