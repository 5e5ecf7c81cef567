package routes

import (
	"encoding/json"
	"fmt"
	"net/http"

	"vodforge/failures"
	"vodforge/logger"
)

// FailureQueryHandler returns the failure record of a run by id
func FailureQueryHandler(w http.ResponseWriter, r *http.Request) {
	logger.Debugf("Failure query request: method=%s, remoteAddr=%s", r.Method, r.RemoteAddr)

	if r.Method != http.MethodGet {
		logger.Warnf("Invalid method for failures endpoint: %s", r.Method)
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	id := r.URL.Query().Get("id")
	if id == "" {
		logger.Warn("Missing id parameter in failure query")
		http.Error(w, "Missing id parameter", http.StatusBadRequest)
		return
	}

	record, err := failures.GetFailure(id)
	if err != nil {
		logger.Errorf("Failed to load failure record %s: %v", id, err)
		http.Error(w, "Failed to load failure record", http.StatusInternalServerError)
		return
	}
	if record == nil {
		http.Error(w, fmt.Sprintf("Failure record %s not found", id), http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(record); err != nil {
		logger.Errorf("Failed to encode failure record: %v", err)
	}
}

// FailureListHandler returns all failure records
func FailureListHandler(w http.ResponseWriter, r *http.Request) {
	logger.Debugf("Failure list request: method=%s, remoteAddr=%s", r.Method, r.RemoteAddr)

	if r.Method != http.MethodGet {
		logger.Warnf("Invalid method for failures list endpoint: %s", r.Method)
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	records, err := failures.ListFailures()
	if err != nil {
		logger.Errorf("Failed to list failure records: %v", err)
		http.Error(w, "Failed to list failure records", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(records); err != nil {
		logger.Errorf("Failed to encode failure records: %v", err)
	}
}
