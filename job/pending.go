package job

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"vodforge/logger"
	"vodforge/models"
	"vodforge/taskqueue"
)

// RunState represents the current state of a submitted run
type RunState int

const (
	RunStatePending RunState = iota
	RunStateRunning
	RunStateFinished
	RunStateFailed
	RunStateCancelled
)

// Submission is one accepted job, persisted in the spool until its run ends.
type Submission struct {
	ID          string         `json:"id"`
	SubmittedAt time.Time      `json:"submitted_at"`
	Spec        models.JobSpec `json:"spec"`
}

var (
	spool      *taskqueue.Spool
	pendingIDs []string                              // run ids waiting for execution
	activeRuns = make(map[string]context.CancelFunc) // run id -> cancel function
	runStates  = make(map[string]RunState)           // run id -> state
	lastStatus = make(map[string]string)             // run id -> last polled remote status
	mu         sync.RWMutex
)

// SetSpool wires the persistent submission spool. Must be called before
// Enqueue or ScanForPendingJobs.
func SetSpool(s *taskqueue.Spool) {
	spool = s
}

// Enqueue persists a submission and adds it to the pending list.
func Enqueue(sub Submission) error {
	if spool == nil {
		return fmt.Errorf("submission spool not initialized")
	}
	data, err := json.Marshal(sub)
	if err != nil {
		return fmt.Errorf("failed to marshal submission: %w", err)
	}
	if err := spool.Add(sub.ID, data); err != nil {
		return fmt.Errorf("failed to spool submission: %w", err)
	}

	mu.Lock()
	defer mu.Unlock()
	pendingIDs = append(pendingIDs, sub.ID)
	runStates[sub.ID] = RunStatePending
	return nil
}

// removePending removes a run id from the pending list
func removePending(id string) {
	mu.Lock()
	defer mu.Unlock()
	for i, p := range pendingIDs {
		if p == id {
			pendingIDs = append(pendingIDs[:i], pendingIDs[i+1:]...)
			break
		}
	}
}

// GetPendingRuns returns a copy of the pending run id list
func GetPendingRuns() []string {
	mu.RLock()
	defer mu.RUnlock()
	ids := make([]string, len(pendingIDs))
	copy(ids, pendingIDs)
	return ids
}

// CancelRun cancels a pending or running run by id.
func CancelRun(id string) error {
	mu.Lock()
	defer mu.Unlock()

	state, exists := runStates[id]
	if !exists {
		return fmt.Errorf("run with id %s not found", id)
	}

	switch state {
	case RunStateFinished:
		return fmt.Errorf("run with id %s is already finished", id)
	case RunStateFailed:
		return fmt.Errorf("run with id %s has already failed", id)
	case RunStateCancelled:
		return fmt.Errorf("run with id %s is already cancelled", id)
	case RunStatePending:
		for i, p := range pendingIDs {
			if p == id {
				pendingIDs = append(pendingIDs[:i], pendingIDs[i+1:]...)
				break
			}
		}
		if spool != nil {
			if err := spool.Delete(id); err != nil {
				logger.Errorf("Failed to remove cancelled submission %s from spool: %v", id, err)
			}
		}
		runStates[id] = RunStateCancelled
		return nil
	case RunStateRunning:
		cancel, ok := activeRuns[id]
		if !ok {
			return fmt.Errorf("run with id %s is running but not active", id)
		}
		cancel()
		delete(activeRuns, id)
		runStates[id] = RunStateCancelled
		return nil
	default:
		return fmt.Errorf("run with id %s is in unknown state", id)
	}
}

// GetRunState returns the current state of a run
func GetRunState(id string) (RunState, bool) {
	mu.RLock()
	defer mu.RUnlock()
	state, exists := runStates[id]
	return state, exists
}

// LastRemoteStatus returns the last polled remote status of a run, if any.
func LastRemoteStatus(id string) string {
	mu.RLock()
	defer mu.RUnlock()
	return lastStatus[id]
}

func setLastRemoteStatus(id, status string) {
	mu.Lock()
	defer mu.Unlock()
	lastStatus[id] = status
}

// ScanForPendingJobs reloads submissions left in the spool by a previous
// process into the pending list.
func ScanForPendingJobs() error {
	if spool == nil {
		return fmt.Errorf("submission spool not initialized")
	}
	entries, err := spool.List()
	if err != nil {
		return err
	}

	mu.Lock()
	defer mu.Unlock()
	for id := range entries {
		if _, known := runStates[id]; known {
			continue
		}
		pendingIDs = append(pendingIDs, id)
		runStates[id] = RunStatePending
	}
	return nil
}

// readSubmission loads a spooled submission by run id.
func readSubmission(id string) (Submission, error) {
	data, err := spool.Get(id)
	if err != nil {
		return Submission{}, fmt.Errorf("failed to read submission %s: %w", id, err)
	}
	var sub Submission
	if err := json.Unmarshal(data, &sub); err != nil {
		return Submission{}, fmt.Errorf("failed to decode submission %s: %w", id, err)
	}
	return sub, nil
}
