package routes

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"vodforge/job"
	"vodforge/logger"
	"vodforge/models"
	"vodforge/utils"
)

// SubmitResponse acknowledges an accepted submission.
type SubmitResponse struct {
	ID    string `json:"id"`
	State string `json:"state"`
}

// verifyToken verifies the submission JWT from the request and returns the claims
func verifyToken(r *http.Request) (*models.VodforgeJWT, error) {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		return nil, fmt.Errorf("authorization header required")
	}

	token := strings.TrimPrefix(authHeader, "Bearer ")
	if token == authHeader {
		return nil, fmt.Errorf("invalid authorization header format")
	}

	claims, err := utils.VerifySubmissionToken(token, utils.VerifyConfig{
		SecretKey: jwtSecret,
	})
	if err != nil {
		return nil, err
	}
	return claims, nil
}

// SubmitHandler accepts a new transcoding job carried in a signed token and
// enqueues it for execution.
func SubmitHandler(w http.ResponseWriter, r *http.Request) {
	logger.Debugf("Job submission: method=%s, remoteAddr=%s", r.Method, r.RemoteAddr)

	if r.Method != http.MethodPost {
		logger.Warnf("Invalid method for jobs endpoint: %s", r.Method)
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	claims, err := verifyToken(r)
	if err != nil {
		logger.Warnf("Rejected submission: %v", err)
		http.Error(w, fmt.Sprintf("Invalid token: %v", err), http.StatusUnauthorized)
		return
	}

	spec := claims.Job
	if spec.Name == "" || spec.InputPath == "" || len(spec.Renditions) == 0 {
		logger.Warnf("Rejected submission with incomplete job spec (name=%q)", spec.Name)
		http.Error(w, "Job spec requires name, inputPath and at least one rendition", http.StatusBadRequest)
		return
	}

	sub := job.Submission{
		ID:          utils.NewRunID(),
		SubmittedAt: time.Now(),
		Spec:        spec,
	}
	if err := job.Enqueue(sub); err != nil {
		logger.Errorf("Failed to enqueue submission: %v", err)
		http.Error(w, "Failed to enqueue job", http.StatusInternalServerError)
		return
	}

	logger.Infof("Accepted job %s as run %s", spec.Name, sub.ID)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	if err := json.NewEncoder(w).Encode(SubmitResponse{ID: sub.ID, State: "pending"}); err != nil {
		logger.Errorf("Failed to encode submit response: %v", err)
	}
}
