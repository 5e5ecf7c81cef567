package failures

import (
	"encoding/json"
	"fmt"
	"time"

	pebble "github.com/cockroachdb/pebble"

	"vodforge/workflow"
)

// Record is one failed transcoding run. Partial holds the remote resource
// ids created before the failing call, so an operator can clean them up.
type Record struct {
	RunID       string              `json:"run_id"`
	JobName     string              `json:"job_name"`
	Timestamp   time.Time           `json:"timestamp"`
	Error       string              `json:"error"`
	Diagnostics []string            `json:"diagnostics,omitempty"`
	Partial     *workflow.RunResult `json:"partial,omitempty"`
}

var db *pebble.DB

// Init initializes the failure store
func Init(dbPath string) error {
	var err error
	db, err = pebble.Open(dbPath, &pebble.Options{})
	if err != nil {
		return fmt.Errorf("failed to open failure store: %w", err)
	}
	return nil
}

// Close closes the failure store
func Close() error {
	if db != nil {
		return db.Close()
	}
	return nil
}

// StoreFailure records a failed run.
func StoreFailure(runID, jobName string, runErr error, diagnostics []string, partial *workflow.RunResult) error {
	if db == nil {
		return fmt.Errorf("failure store not initialized")
	}

	record := Record{
		RunID:       runID,
		JobName:     jobName,
		Timestamp:   time.Now(),
		Error:       runErr.Error(),
		Diagnostics: diagnostics,
		Partial:     partial,
	}

	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("failed to marshal failure record: %w", err)
	}
	return db.Set([]byte(runID), data, pebble.Sync)
}

// GetFailure retrieves a failure record by run id. A missing record is
// (nil, nil).
func GetFailure(runID string) (*Record, error) {
	if db == nil {
		return nil, fmt.Errorf("failure store not initialized")
	}

	data, closer, err := db.Get([]byte(runID))
	if err != nil {
		if err == pebble.ErrNotFound {
			return nil, nil
		}
		return nil, err
	}
	defer closer.Close()

	var record Record
	if err := json.Unmarshal(data, &record); err != nil {
		return nil, fmt.Errorf("failed to unmarshal failure record: %w", err)
	}
	return &record, nil
}

// DeleteFailure removes a failure record
func DeleteFailure(runID string) error {
	if db == nil {
		return fmt.Errorf("failure store not initialized")
	}
	return db.Delete([]byte(runID), pebble.Sync)
}

// ListFailures returns all failure records (for admin/debugging)
func ListFailures() ([]Record, error) {
	if db == nil {
		return nil, fmt.Errorf("failure store not initialized")
	}

	var records []Record
	iter, err := db.NewIter(&pebble.IterOptions{})
	if err != nil {
		return nil, err
	}
	defer iter.Close()

	for iter.First(); iter.Valid(); iter.Next() {
		var record Record
		if err := json.Unmarshal(iter.Value(), &record); err != nil {
			continue // Skip invalid records
		}
		records = append(records, record)
	}
	return records, nil
}

// CleanupOldRecords removes failure records older than the specified duration
func CleanupOldRecords(maxAge time.Duration) error {
	if db == nil {
		return fmt.Errorf("failure store not initialized")
	}

	cutoff := time.Now().Add(-maxAge)
	iter, err := db.NewIter(&pebble.IterOptions{})
	if err != nil {
		return err
	}
	defer iter.Close()

	var keysToDelete [][]byte
	for iter.First(); iter.Valid(); iter.Next() {
		var record Record
		if err := json.Unmarshal(iter.Value(), &record); err != nil {
			continue
		}
		if record.Timestamp.Before(cutoff) {
			key := make([]byte, len(iter.Key()))
			copy(key, iter.Key())
			keysToDelete = append(keysToDelete, key)
		}
	}

	for _, key := range keysToDelete {
		if err := db.Delete(key, pebble.Sync); err != nil {
			return fmt.Errorf("failed to delete old failure record: %w", err)
		}
	}
	return nil
}

// CheckHealth performs a basic health check on the failures database
func CheckHealth() error {
	if db == nil {
		return fmt.Errorf("failures database not initialized")
	}

	_, closer, err := db.Get([]byte("__health_check__"))
	if err != nil && err != pebble.ErrNotFound {
		return fmt.Errorf("database health check failed: %w", err)
	}
	if closer != nil {
		closer.Close()
	}
	return nil
}
