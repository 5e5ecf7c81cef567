package routes

import (
	"net/http"
)

var jwtSecret []byte

// Configure sets the shared secret used to verify submission tokens.
func Configure(secret []byte) {
	jwtSecret = secret
}

// Register attaches all handlers to the default mux.
func Register() {
	http.HandleFunc("/jobs", SubmitHandler)
	http.HandleFunc("/status", RunStatusHandler)
	http.HandleFunc("/cancel", CancelRunHandler)
	http.HandleFunc("/health", HealthHandler)
	http.HandleFunc("/version", VersionHandler)
	http.HandleFunc("/runs", RunQueryHandler)
	http.HandleFunc("/runs/list", RunListHandler)
	http.HandleFunc("/failures", FailureQueryHandler)
	http.HandleFunc("/failures/list", FailureListHandler)
}
