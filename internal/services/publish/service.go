// -----------------------------------------------------------------------
// Publish - scheduled markdown export of publishable entries
// -----------------------------------------------------------------------

package publish

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/robfig/cron/v3"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/scribo/internal/common"
	"github.com/ternarybob/scribo/internal/interfaces"
	"github.com/ternarybob/scribo/internal/models"
	"github.com/ternarybob/scribo/internal/services/transform"
)

// Service implements PublishService
type Service struct {
	entries   interfaces.EntryStorage
	events    interfaces.EventService
	converter interfaces.TransformService
	config    *common.PublishConfig
	outputDir string
	cron      *cron.Cron
	logger    arbor.ILogger

	exportMu sync.Mutex // one export pass at a time
	mu       sync.Mutex // lifecycle state
	running  bool
}

// NewService creates a new publish service writing exports to outputDir
func NewService(entries interfaces.EntryStorage, events interfaces.EventService, config *common.PublishConfig, outputDir string, logger arbor.ILogger) interfaces.PublishService {
	return &Service{
		entries:   entries,
		events:    events,
		converter: transform.NewService(logger),
		config:    config,
		outputDir: outputDir,
		cron:      cron.New(),
		logger:    logger,
	}
}

// Start registers the export schedule and begins the cron loop. A disabled
// config is not an error, the service simply stays idle.
func (s *Service) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.config.Enabled {
		s.logger.Info().Msg("Publish schedule disabled")
		return nil
	}
	if s.running {
		return fmt.Errorf("publish scheduler already running")
	}

	schedule := s.config.Schedule
	if schedule == "" {
		schedule = "0 */6 * * *" // Default: every 6 hours
	}
	if err := common.ValidatePublishSchedule(schedule); err != nil {
		return fmt.Errorf("invalid publish schedule: %w", err)
	}

	if _, err := s.cron.AddFunc(schedule, s.runScheduledExport); err != nil {
		return fmt.Errorf("failed to add cron job: %w", err)
	}

	s.cron.Start()
	s.running = true

	s.logger.Info().
		Str("schedule", schedule).
		Str("output_dir", s.outputDir).
		Msg("Publish scheduler started")

	return nil
}

// Stop halts the cron loop, waiting for an in-flight export to finish
func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return
	}

	<-s.cron.Stop().Done()
	s.running = false
	s.logger.Info().Msg("Publish scheduler stopped")
}

// runScheduledExport is the cron entry point
func (s *Service) runScheduledExport() {
	result, err := s.PublishNow(context.Background())
	if err != nil {
		s.logger.Warn().Err(err).Msg("Scheduled publish run failed")
		return
	}

	s.logger.Info().
		Int("exported", result.Exported).
		Int("skipped", result.Skipped).
		Msg("Scheduled publish run complete")
}

// PublishNow exports every entry flagged for publishing as a markdown file
// in the output directory. Files are named by entry date, with a numeric
// suffix when one day holds several entries.
func (s *Service) PublishNow(ctx context.Context) (*interfaces.PublishResult, error) {
	s.exportMu.Lock()
	defer s.exportMu.Unlock()

	entries, err := s.entries.GetPublishableEntries()
	if err != nil {
		return nil, fmt.Errorf("failed to load publishable entries: %w", err)
	}

	if err := os.MkdirAll(s.outputDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create publish directory: %w", err)
	}

	result := &interfaces.PublishResult{Files: []string{}}
	seen := make(map[string]int)

	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		markdown, err := s.renderEntry(entry)
		if err != nil {
			s.logger.Warn().Err(err).Str("entry_id", entry.ID).Msg("Entry skipped")
			result.Skipped++
			continue
		}

		name := exportFilename(entry, seen)
		path := filepath.Join(s.outputDir, name)
		if err := os.WriteFile(path, []byte(markdown), 0644); err != nil {
			s.logger.Error().Err(err).Str("file", name).Msg("Failed to write export file")
			result.Skipped++
			continue
		}

		result.Exported++
		result.Files = append(result.Files, name)
	}

	s.notifyComplete(ctx, result)

	s.logger.Info().
		Int("exported", result.Exported).
		Int("skipped", result.Skipped).
		Msg("Publish run complete")

	return result, nil
}

// renderEntry produces the markdown document for one entry: front matter
// followed by the converted body
func (s *Service) renderEntry(entry *models.Entry) (string, error) {
	if strings.TrimSpace(entry.HTML) == "" {
		return "", fmt.Errorf("entry has no content")
	}

	body, err := s.converter.HTMLToMarkdown(entry.HTML, s.config.BaseURL)
	if err != nil {
		return "", fmt.Errorf("failed to convert entry: %w", err)
	}

	var b strings.Builder
	b.WriteString("---\n")
	fmt.Fprintf(&b, "title: %q\n", entry.Title)
	fmt.Fprintf(&b, "date: %s\n", entry.EntryDate)
	if entry.Timezone != "" {
		fmt.Fprintf(&b, "timezone: %s\n", entry.Timezone)
	}
	if entry.ReferenceImageUUID != "" {
		fmt.Fprintf(&b, "reference_image: %s\n", entry.ReferenceImageUUID)
	}
	b.WriteString("---\n\n")
	b.WriteString(body)
	b.WriteString("\n")

	return b.String(), nil
}

// notifyComplete announces the finished run on the event bus
func (s *Service) notifyComplete(ctx context.Context, result *interfaces.PublishResult) {
	if s.events == nil {
		return
	}

	event := interfaces.Event{Type: interfaces.EventPublishComplete, Payload: result}
	if err := s.events.Publish(ctx, event); err != nil {
		s.logger.Warn().Err(err).Msg("Failed to publish export event")
	}
}

// exportFilename names the file by entry date, falling back to the entry ID
// when the date is missing
func exportFilename(entry *models.Entry, seen map[string]int) string {
	base := entry.EntryDate
	if base == "" {
		base = entry.ID
	}

	seen[base]++
	if n := seen[base]; n > 1 {
		return fmt.Sprintf("%s-%d.md", base, n)
	}
	return base + ".md"
}
