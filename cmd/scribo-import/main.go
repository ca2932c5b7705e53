package main

import (
	"bytes"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/ternarybob/arbor"
	arbormodels "github.com/ternarybob/arbor/models"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/renderer/html"

	"github.com/ternarybob/scribo/internal/common"
	"github.com/ternarybob/scribo/internal/interfaces"
	"github.com/ternarybob/scribo/internal/models"
	"github.com/ternarybob/scribo/internal/services/catalog"
	"github.com/ternarybob/scribo/internal/services/editor"
	"github.com/ternarybob/scribo/internal/storage"
)

// Importer converts markdown files into stored journal entries. Each file
// is rendered to HTML, run through the editor's normalization pass so it
// lands in canonical block structure, and saved as a new entry.
type Importer struct {
	entries  interfaces.EntryStorage
	catalog  interfaces.CatalogService
	markdown goldmark.Markdown
	publish  bool
	timezone string
	logger   arbor.ILogger
}

func NewImporter(entries interfaces.EntryStorage, catalog interfaces.CatalogService, markdown goldmark.Markdown, publish bool, timezone string, logger arbor.ILogger) *Importer {
	return &Importer{
		entries:  entries,
		catalog:  catalog,
		markdown: markdown,
		publish:  publish,
		timezone: timezone,
		logger:   logger,
	}
}

// ImportFile converts one markdown file and stores it as a new entry
func (i *Importer) ImportFile(path string) (*models.Entry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}

	meta, body := splitFrontMatter(string(data))

	var buf bytes.Buffer
	if err := i.markdown.Convert([]byte(body), &buf); err != nil {
		return nil, fmt.Errorf("failed to render %s: %w", path, err)
	}

	ed := editor.NewEditor(i.catalog, nil, i.logger)
	if err := ed.LoadHTML(buf.String()); err != nil {
		return nil, fmt.Errorf("failed to normalize %s: %w", path, err)
	}

	entry := &models.Entry{
		HTML:               ed.HTML(),
		Title:              resolveTitle(meta, path),
		EntryDate:          i.resolveDate(meta, path),
		Timezone:           i.resolveTimezone(meta),
		ReferenceImageUUID: meta["reference_image"],
		IncludeInPublish:   i.publish,
	}

	saved, err := i.entries.SaveEntry(entry)
	if err != nil {
		return nil, fmt.Errorf("failed to store %s: %w", path, err)
	}

	i.logger.Info().
		Str("file", filepath.Base(path)).
		Str("entry_id", saved.ID).
		Str("date", saved.EntryDate).
		Msg("Imported entry")

	return saved, nil
}

// ImportDir imports every .md file in a directory, continuing past
// per-file failures
func (i *Importer) ImportDir(dir string) error {
	paths, err := filepath.Glob(filepath.Join(dir, "*.md"))
	if err != nil {
		return fmt.Errorf("failed to scan %s: %w", dir, err)
	}
	if len(paths) == 0 {
		return fmt.Errorf("no markdown files found in %s", dir)
	}
	sort.Strings(paths)

	imported := 0
	failed := 0
	for _, path := range paths {
		if _, err := i.ImportFile(path); err != nil {
			i.logger.Warn().Err(err).Str("file", filepath.Base(path)).Msg("Import failed")
			failed++
			continue
		}
		imported++
	}

	i.logger.Info().
		Int("imported", imported).
		Int("failed", failed).
		Msg("Import complete")

	if imported == 0 {
		return fmt.Errorf("no files imported")
	}
	return nil
}

// splitFrontMatter separates a leading front matter block from the body.
// Files without one return an empty map and the whole input.
func splitFrontMatter(content string) (map[string]string, string) {
	if !strings.HasPrefix(content, "---\n") {
		return map[string]string{}, content
	}

	rest := content[len("---\n"):]
	end := strings.Index(rest, "\n---\n")
	if end < 0 {
		return map[string]string{}, content
	}

	meta := make(map[string]string)
	for _, line := range strings.Split(rest[:end], "\n") {
		key, value, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		key = strings.TrimSpace(key)
		value = strings.TrimSpace(value)
		if strings.HasPrefix(value, `"`) {
			if unquoted, err := strconv.Unquote(value); err == nil {
				value = unquoted
			}
		}
		meta[key] = value
	}

	return meta, rest[end+len("\n---\n"):]
}

// resolveTitle prefers front matter, then the filename stem
func resolveTitle(meta map[string]string, path string) string {
	if title := meta["title"]; title != "" {
		return title
	}
	return strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
}

// resolveDate prefers front matter, then a date-shaped filename, then today
func (i *Importer) resolveDate(meta map[string]string, path string) string {
	if date := meta["date"]; date != "" {
		if _, err := time.Parse("2006-01-02", date); err == nil {
			return date
		}
		i.logger.Warn().Str("date", date).Str("file", filepath.Base(path)).Msg("Ignoring malformed front matter date")
	}

	stem := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	if len(stem) >= 10 {
		if _, err := time.Parse("2006-01-02", stem[:10]); err == nil {
			return stem[:10]
		}
	}

	return time.Now().Format("2006-01-02")
}

// resolveTimezone validates the front matter timezone against the tz
// database, falling back to the -timezone flag
func (i *Importer) resolveTimezone(meta map[string]string) string {
	tz := meta["timezone"]
	if tz == "" {
		tz = i.timezone
	}
	if tz == "" {
		return ""
	}
	if _, err := time.LoadLocation(tz); err != nil {
		i.logger.Warn().Str("timezone", tz).Msg("Ignoring unknown timezone")
		return ""
	}
	return tz
}

func main() {
	dirFlag := flag.String("dir", "", "Directory of markdown files to import")
	fileFlag := flag.String("file", "", "Single markdown file to import")
	configFlag := flag.String("config", "", "Path to scribo.toml")
	publishFlag := flag.Bool("publish", false, "Mark imported entries for publishing")
	timezoneFlag := flag.String("timezone", "", "Timezone for entries without one (IANA name)")
	flag.Parse()

	if *dirFlag == "" && *fileFlag == "" {
		fmt.Println("Error: -dir or -file is required")
		flag.Usage()
		os.Exit(1)
	}

	logger := arbor.NewLogger().WithConsoleWriter(arbormodels.WriterConfiguration{
		Type:       arbormodels.LogWriterTypeConsole,
		TimeFormat: "15:04:05",
		TextOutput: true,
	})

	config, err := common.LoadFromFile(*configFlag)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to load configuration")
	}

	manager, err := storage.NewStorageManager(logger, config)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to open storage")
	}
	defer manager.Close()

	importer := NewImporter(
		manager.EntryStorage(),
		catalog.NewService(manager.ImageStorage(), "/api", logger),
		goldmark.New(
			goldmark.WithExtensions(extension.GFM),
			goldmark.WithRendererOptions(html.WithHardWraps(), html.WithXHTML()),
		),
		*publishFlag,
		*timezoneFlag,
		logger,
	)

	if *fileFlag != "" {
		if _, err := importer.ImportFile(*fileFlag); err != nil {
			logger.Fatal().Err(err).Msg("Import failed")
		}
		return
	}

	if err := importer.ImportDir(*dirFlag); err != nil {
		logger.Fatal().Err(err).Msg("Import failed")
	}
}
