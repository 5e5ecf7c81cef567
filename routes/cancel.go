package routes

import (
	"fmt"
	"net/http"
	"strings"

	"vodforge/job"
	"vodforge/logger"
)

// CancelRunHandler cancels a pending or running run by id
func CancelRunHandler(w http.ResponseWriter, r *http.Request) {
	logger.Debugf("Cancel run request: method=%s, remoteAddr=%s", r.Method, r.RemoteAddr)

	if r.Method != http.MethodDelete {
		logger.Warnf("Invalid method for cancel endpoint: %s", r.Method)
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	id := r.URL.Query().Get("id")
	if id == "" {
		logger.Warn("Missing id parameter in cancel request")
		http.Error(w, "Missing id parameter", http.StatusBadRequest)
		return
	}

	logger.Infof("Attempting to cancel run: %s", id)
	if err := job.CancelRun(id); err != nil {
		logger.Errorf("Failed to cancel run %s: %v", id, err)
		if strings.Contains(err.Error(), "not found") {
			http.Error(w, fmt.Sprintf("Run not found: %v", err), http.StatusNotFound)
		} else {
			http.Error(w, fmt.Sprintf("Cannot cancel run: %v", err), http.StatusConflict)
		}
		return
	}

	logger.Infof("Run cancelled successfully: %s", id)
	w.WriteHeader(http.StatusNoContent)
}
