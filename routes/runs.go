package routes

import (
	"encoding/json"
	"fmt"
	"net/http"

	"vodforge/logger"
	"vodforge/runs"
)

// RunQueryHandler returns the record of a finished run by id
func RunQueryHandler(w http.ResponseWriter, r *http.Request) {
	logger.Debugf("Run query request: method=%s, remoteAddr=%s", r.Method, r.RemoteAddr)

	if r.Method != http.MethodGet {
		logger.Warnf("Invalid method for runs endpoint: %s", r.Method)
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	id := r.URL.Query().Get("id")
	if id == "" {
		logger.Warn("Missing id parameter in run query")
		http.Error(w, "Missing id parameter", http.StatusBadRequest)
		return
	}

	record, err := runs.GetRun(id)
	if err != nil {
		logger.Errorf("Failed to load run record %s: %v", id, err)
		http.Error(w, "Failed to load run record", http.StatusInternalServerError)
		return
	}
	if record == nil {
		http.Error(w, fmt.Sprintf("Run record %s not found", id), http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(record); err != nil {
		logger.Errorf("Failed to encode run record: %v", err)
	}
}

// RunListHandler returns all finished run records
func RunListHandler(w http.ResponseWriter, r *http.Request) {
	logger.Debugf("Run list request: method=%s, remoteAddr=%s", r.Method, r.RemoteAddr)

	if r.Method != http.MethodGet {
		logger.Warnf("Invalid method for runs list endpoint: %s", r.Method)
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	records, err := runs.ListRuns()
	if err != nil {
		logger.Errorf("Failed to list run records: %v", err)
		http.Error(w, "Failed to list run records", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(records); err != nil {
		logger.Errorf("Failed to encode run records: %v", err)
	}
}
