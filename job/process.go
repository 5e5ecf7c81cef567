package job

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"vodforge/failures"
	"vodforge/logger"
	"vodforge/runs"
	"vodforge/workflow"
)

var (
	orch   *workflow.Orchestrator
	poller *workflow.Poller
)

// SetWorkflow wires the orchestrator and poller used to execute runs. Must
// be called before ProcessPendingJobs.
func SetWorkflow(o *workflow.Orchestrator, p *workflow.Poller) {
	orch = o
	poller = p
}

// ProcessPendingJobs runs in a loop executing pending runs one at a time.
func ProcessPendingJobs() {
	for {
		ids := GetPendingRuns()
		if len(ids) == 0 {
			time.Sleep(1 * time.Second) // Wait before checking again
			continue
		}
		logger.Infof("Processing %d pending runs", len(ids))

		for _, id := range ids {
			if err := processRun(id); err != nil {
				logger.Errorf("Run %s failed: %v", id, err)
			} else {
				logger.Infof("Run %s finished", id)
			}
			removePending(id)
		}
	}
}

// processRun executes a single submitted run end to end: assemble the remote
// resources, start the encoding, poll to a terminal state, record the
// outcome.
func processRun(id string) error {
	ctx, cancel := context.WithCancel(context.Background())

	// The pending list the worker iterates is a snapshot; the run may have
	// been cancelled since. Claim it only while it is still pending.
	mu.Lock()
	if runStates[id] != RunStatePending {
		mu.Unlock()
		cancel()
		logger.Infof("Skipping run %s, no longer pending", id)
		return nil
	}
	runStates[id] = RunStateRunning
	activeRuns[id] = cancel
	mu.Unlock()

	defer func() {
		cancel()
		mu.Lock()
		delete(activeRuns, id)
		mu.Unlock()
	}()

	sub, err := readSubmission(id)
	if err != nil {
		markFailed(ctx, id)
		recordFailure(id, "", err, nil, nil)
		return err
	}

	started := time.Now()
	logger.Infof("Assembling encoding for run %s (%s)", id, sub.Spec.Name)

	result, err := orch.Run(ctx, sub.Spec)
	if err != nil {
		markFailed(ctx, id)
		recordFailure(id, sub.Spec.Name, err, nil, result)
		return err
	}

	setLastRemoteStatus(id, "")
	status, err := poller.Wait(ctx, result.EncodingID)
	if status != nil {
		setLastRemoteStatus(id, status.Status)
	}
	if err != nil {
		markFailed(ctx, id)
		var failed *workflow.EncodingFailedError
		if errors.As(err, &failed) {
			recordFailure(id, sub.Spec.Name, err, failed.Messages, result)
		} else {
			recordFailure(id, sub.Spec.Name, err, nil, result)
		}
		return err
	}

	mu.Lock()
	runStates[id] = RunStateFinished
	mu.Unlock()

	if err := runs.StoreRun(id, sub.Spec.Name, result, time.Since(started)); err != nil {
		logger.Errorf("Failed to store run record for %s: %v", id, err)
		// Don't fail the run for record storage errors
	}

	if err := sendCallback(sub, result); err != nil {
		logger.Errorf("Failed to send callback for run %s: %v", id, err)
		// Don't fail the run for callback errors
	}

	if err := spool.Delete(id); err != nil {
		logger.Errorf("Failed to remove finished submission %s from spool: %v", id, err)
	}
	return nil
}

// markFailed sets the final state after an error, preserving Cancelled when
// the run's context was cancelled.
func markFailed(ctx context.Context, id string) {
	mu.Lock()
	defer mu.Unlock()
	if ctx.Err() == context.Canceled {
		runStates[id] = RunStateCancelled
	} else {
		runStates[id] = RunStateFailed
	}
}

// recordFailure stores a failure record; the run error wins over storage
// errors.
func recordFailure(id, jobName string, runErr error, diagnostics []string, partial *workflow.RunResult) {
	if storeErr := failures.StoreFailure(id, jobName, runErr, diagnostics, partial); storeErr != nil {
		logger.Errorf("Failed to store failure for run %s: %v", id, storeErr)
	}
	if spool != nil {
		if err := spool.Delete(id); err != nil {
			logger.Errorf("Failed to remove failed submission %s from spool: %v", id, err)
		}
	}
}

// sendCallback sends the completion callback if the submission configured one.
func sendCallback(sub Submission, result *workflow.RunResult) error {
	if sub.Spec.CompletionCallback == "" {
		return nil // No callback configured
	}

	payload := map[string]interface{}{
		"id":            sub.ID,
		"status":        "finished",
		"encoding_id":   result.EncodingID,
		"dash_manifest": result.DashManifestPath,
		"hls_manifest":  result.HlsManifestPath,
		"timestamp":     time.Now().Unix(),
	}

	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal callback payload: %w", err)
	}

	req, err := http.NewRequest("POST", sub.Spec.CompletionCallback, bytes.NewBuffer(payloadBytes))
	if err != nil {
		return fmt.Errorf("failed to create callback request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "vodforge/1.0")
	for key, value := range sub.Spec.CallbackHeaders {
		req.Header.Set(key, value)
	}

	client := &http.Client{Timeout: 30 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("callback request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("callback returned non-2xx status: %d", resp.StatusCode)
	}

	logger.Infof("Successfully sent callback to %s", sub.Spec.CompletionCallback)
	return nil
}
