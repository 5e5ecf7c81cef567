package workflow

import (
	"context"
	"fmt"
	"strings"
	"time"

	"vodforge/logger"
	"vodforge/models"
)

// EncodingFailedError reports an encoding that reached a failure terminal
// state, carrying the diagnostics collected from the service.
type EncodingFailedError struct {
	EncodingID string
	Status     string
	Messages   []string
}

func (e *EncodingFailedError) Error() string {
	if len(e.Messages) == 0 {
		return fmt.Sprintf("encoding %s ended in state %s", e.EncodingID, e.Status)
	}
	return fmt.Sprintf("encoding %s ended in state %s: %s",
		e.EncodingID, e.Status, strings.Join(e.Messages, "; "))
}

// Transient poll errors are tolerated; this many in a row fail the wait.
const maxConsecutivePollErrors = 3

// Poller watches a started encoding until it reaches a terminal state.
// Unlike the fire-and-forget loop it replaces, every wait is bounded by
// Timeout and honors ctx cancellation.
type Poller struct {
	API      EncodingAPI
	Interval time.Duration
	Timeout  time.Duration
}

// Wait polls the encoding status at the configured interval. It returns the
// final status on FINISHED, an *EncodingFailedError on ERROR or CANCELED, a
// timeout error when Timeout elapses first, and ctx.Err() on cancellation.
func (p *Poller) Wait(ctx context.Context, encodingID string) (*models.TaskStatus, error) {
	ctx, cancel := context.WithTimeout(ctx, p.Timeout)
	defer cancel()

	ticker := time.NewTicker(p.Interval)
	defer ticker.Stop()

	consecutiveErrs := 0
	for {
		select {
		case <-ctx.Done():
			if ctx.Err() == context.DeadlineExceeded {
				return nil, fmt.Errorf("encoding %s did not finish within %v", encodingID, p.Timeout)
			}
			return nil, ctx.Err()
		case <-ticker.C:
		}

		status, err := p.API.EncodingStatus(ctx, encodingID)
		if err != nil {
			consecutiveErrs++
			logger.Warnf("Status poll %d/%d failed for encoding %s: %v",
				consecutiveErrs, maxConsecutivePollErrors, encodingID, err)
			if consecutiveErrs >= maxConsecutivePollErrors {
				return nil, fmt.Errorf("status polling failed for encoding %s: %w", encodingID, err)
			}
			continue
		}
		consecutiveErrs = 0

		logger.Debugf("Encoding %s status: %s (%d%%)", encodingID, status.Status, status.Progress)

		if !status.Terminal() {
			continue
		}
		if status.Status == models.StatusFinished {
			return status, nil
		}
		return status, &EncodingFailedError{
			EncodingID: encodingID,
			Status:     status.Status,
			Messages:   status.ErrorMessages(),
		}
	}
}
