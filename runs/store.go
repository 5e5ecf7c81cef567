package runs

import (
	"encoding/json"
	"fmt"
	"time"

	pebble "github.com/cockroachdb/pebble"

	"vodforge/workflow"
)

// Record is one successfully finished transcoding run.
type Record struct {
	RunID      string              `json:"run_id"`
	JobName    string              `json:"job_name"`
	EncodingID string              `json:"encoding_id"`
	Timestamp  time.Time           `json:"timestamp"`
	Duration   time.Duration       `json:"duration"`
	Result     *workflow.RunResult `json:"result"`
}

var db *pebble.DB

// Init initializes the runs store
func Init(dbPath string) error {
	var err error
	db, err = pebble.Open(dbPath, &pebble.Options{})
	if err != nil {
		return fmt.Errorf("failed to open runs store: %w", err)
	}
	return nil
}

// Close closes the runs store
func Close() error {
	if db != nil {
		return db.Close()
	}
	return nil
}

// StoreRun records a finished run.
func StoreRun(runID, jobName string, result *workflow.RunResult, duration time.Duration) error {
	if db == nil {
		return fmt.Errorf("runs store not initialized")
	}

	record := Record{
		RunID:     runID,
		JobName:   jobName,
		Timestamp: time.Now(),
		Duration:  duration,
		Result:    result,
	}
	if result != nil {
		record.EncodingID = result.EncodingID
	}

	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("failed to marshal run record: %w", err)
	}
	return db.Set([]byte(runID), data, pebble.Sync)
}

// GetRun retrieves a run record by id. A missing record is (nil, nil).
func GetRun(runID string) (*Record, error) {
	if db == nil {
		return nil, fmt.Errorf("runs store not initialized")
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
		return nil, fmt.Errorf("failed to unmarshal run record: %w", err)
	}
	return &record, nil
}

// DeleteRun removes a run record
func DeleteRun(runID string) error {
	if db == nil {
		return fmt.Errorf("runs store not initialized")
	}
	return db.Delete([]byte(runID), pebble.Sync)
}

// ListRuns returns all run records (for admin/debugging)
func ListRuns() ([]Record, error) {
	if db == nil {
		return nil, fmt.Errorf("runs store not initialized")
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

// CleanupOldRecords removes run records older than the specified duration
func CleanupOldRecords(maxAge time.Duration) error {
	if db == nil {
		return fmt.Errorf("runs store not initialized")
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
			return fmt.Errorf("failed to delete old run record: %w", err)
		}
	}
	return nil
}

// CheckHealth performs a basic health check on the runs database
func CheckHealth() error {
	if db == nil {
		return fmt.Errorf("runs database not initialized")
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
