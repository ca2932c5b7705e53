// -----------------------------------------------------------------------
// Last Modified: Thursday, 14th November 2025 12:00:00 pm
// Modified By: Bob McAllan
// -----------------------------------------------------------------------

package interfaces

import (
	"context"
	"errors"
	"fmt"

	"github.com/ternarybob/scribo/internal/models"
)

// SaveFailureKind classifies save failures for the autosave retry policy
type SaveFailureKind string

const (
	// SaveFailureTransient - server errors and network failures, eligible for retry
	SaveFailureTransient SaveFailureKind = "transient"
	// SaveFailurePermanent - client errors other than conflicts, never retried
	SaveFailurePermanent SaveFailureKind = "permanent"
	// SaveFailureConflict - stale entry version, routed to conflict handling
	SaveFailureConflict SaveFailureKind = "conflict"
)

// SaveError wraps a save failure with its retry classification
type SaveError struct {
	Kind       SaveFailureKind
	StatusCode int // HTTP status when the transport is HTTP, 0 otherwise
	Err        error
}

func (e *SaveError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("save failed (%s, status %d): %v", e.Kind, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("save failed (%s): %v", e.Kind, e.Err)
}

func (e *SaveError) Unwrap() error {
	return e.Err
}

// ClassifySaveError extracts the failure kind from an error chain.
// Unclassified errors are treated as transient (network-level failures
// arrive unwrapped from the transport).
func ClassifySaveError(err error) SaveFailureKind {
	var saveErr *SaveError
	if errors.As(err, &saveErr) {
		return saveErr.Kind
	}
	if errors.Is(err, ErrVersionConflict) {
		return SaveFailureConflict
	}
	return SaveFailureTransient
}

// EntrySaver submits entry snapshots to a persistence endpoint. Implementations
// classify failures with SaveError so the autosave coordinator can decide
// between retry, surface, and conflict handling.
type EntrySaver interface {
	Save(ctx context.Context, req *models.SaveRequest) (*models.SaveResult, error)
}
