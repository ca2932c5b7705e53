package httpclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/scribo/internal/common"
	"github.com/ternarybob/scribo/internal/interfaces"
	"github.com/ternarybob/scribo/internal/models"
)

// NewDefaultHTTPClient creates a simple HTTP client with a timeout
func NewDefaultHTTPClient(timeout time.Duration) *http.Client {
	return &http.Client{
		Timeout: timeout,
	}
}

// RemoteSaver posts save requests to a remote persistence endpoint and
// classifies failures for the autosave retry policy: 5xx and network
// errors are transient, 409 is a version conflict, other 4xx are permanent.
type RemoteSaver struct {
	saveURL string
	client  *http.Client
	logger  arbor.ILogger
}

// NewRemoteSaver creates an EntrySaver backed by the configured endpoint
func NewRemoteSaver(config *common.RemoteConfig, logger arbor.ILogger) interfaces.EntrySaver {
	return &RemoteSaver{
		saveURL: config.SaveURL,
		client:  NewDefaultHTTPClient(config.RequestTimeout),
		logger:  logger,
	}
}

// Save submits one entry snapshot. The returned SaveResult carries the
// version assigned by the server.
func (s *RemoteSaver) Save(ctx context.Context, req *models.SaveRequest) (*models.SaveResult, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, &interfaces.SaveError{
			Kind: interfaces.SaveFailurePermanent,
			Err:  fmt.Errorf("failed to encode save request: %w", err),
		}
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, s.saveURL, bytes.NewReader(body))
	if err != nil {
		return nil, &interfaces.SaveError{
			Kind: interfaces.SaveFailurePermanent,
			Err:  fmt.Errorf("failed to create request: %w", err),
		}
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")

	s.logger.Debug().
		Str("entry_id", req.EntryID).
		Int("version", req.Version).
		Msg("Posting entry save")

	resp, err := s.client.Do(httpReq)
	if err != nil {
		// Network failures are worth retrying
		return nil, &interfaces.SaveError{
			Kind: interfaces.SaveFailureTransient,
			Err:  fmt.Errorf("failed to execute request: %w", err),
		}
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
		var result models.SaveResult
		if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
			return nil, &interfaces.SaveError{
				Kind: interfaces.SaveFailureTransient,
				Err:  fmt.Errorf("failed to decode save response: %w", err),
			}
		}
		return &result, nil

	case resp.StatusCode == http.StatusConflict:
		return nil, &interfaces.SaveError{
			Kind:       interfaces.SaveFailureConflict,
			StatusCode: resp.StatusCode,
			Err:        fmt.Errorf("entry %s version %d: %w", req.EntryID, req.Version, interfaces.ErrVersionConflict),
		}

	case resp.StatusCode >= http.StatusInternalServerError:
		return nil, &interfaces.SaveError{
			Kind:       interfaces.SaveFailureTransient,
			StatusCode: resp.StatusCode,
			Err:        fmt.Errorf("server error: %s", readErrorBody(resp.Body)),
		}

	default:
		return nil, &interfaces.SaveError{
			Kind:       interfaces.SaveFailurePermanent,
			StatusCode: resp.StatusCode,
			Err:        fmt.Errorf("save rejected: %s", readErrorBody(resp.Body)),
		}
	}
}

func readErrorBody(r io.Reader) string {
	body, _ := io.ReadAll(io.LimitReader(r, 4096))
	if len(body) == 0 {
		return "(empty response body)"
	}
	return string(body)
}
