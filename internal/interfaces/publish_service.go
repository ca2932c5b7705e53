package interfaces

import "context"

// PublishResult summarizes one publish run
type PublishResult struct {
	Exported int      `json:"exported"`
	Skipped  int      `json:"skipped"`
	Files    []string `json:"files"`
}

// PublishService exports publishable entries as markdown files
type PublishService interface {
	// PublishNow runs one export pass over entries flagged for publishing
	PublishNow(ctx context.Context) (*PublishResult, error)

	// Start begins the cron schedule, Stop halts it
	Start() error
	Stop()
}
