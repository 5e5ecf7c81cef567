package routes

import (
	"encoding/json"
	"fmt"
	"net/http"

	"vodforge/job"
	"vodforge/logger"
)

// RunStatusResponse represents the run status response
type RunStatusResponse struct {
	ID           string `json:"id"`
	State        string `json:"state"`
	RemoteStatus string `json:"remote_status,omitempty"`
}

// StateString maps a run state to its wire name.
func StateString(state job.RunState) string {
	switch state {
	case job.RunStatePending:
		return "pending"
	case job.RunStateRunning:
		return "running"
	case job.RunStateFinished:
		return "finished"
	case job.RunStateFailed:
		return "failed"
	case job.RunStateCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// RunStatusHandler returns the status of a run by id
func RunStatusHandler(w http.ResponseWriter, r *http.Request) {
	logger.Debugf("Run status request: method=%s, remoteAddr=%s", r.Method, r.RemoteAddr)

	if r.Method != http.MethodGet {
		logger.Warnf("Invalid method for status endpoint: %s", r.Method)
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	id := r.URL.Query().Get("id")
	if id == "" {
		logger.Warn("Missing id parameter in status request")
		http.Error(w, "Missing id parameter", http.StatusBadRequest)
		return
	}

	logger.Debugf("Checking status for run: %s", id)
	state, exists := job.GetRunState(id)
	if !exists {
		logger.Warnf("Run not found: %s", id)
		http.Error(w, fmt.Sprintf("Run with id %s not found", id), http.StatusNotFound)
		return
	}

	response := RunStatusResponse{
		ID:           id,
		State:        StateString(state),
		RemoteStatus: job.LastRemoteStatus(id),
	}

	logger.Debugf("Run status: id=%s, state=%s, remote=%s", id, response.State, response.RemoteStatus)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(response); err != nil {
		logger.Errorf("Failed to encode status response: %v", err)
		return
	}

	logger.Debug("Run status request completed successfully")
}
