package main

import (
	"context"
	"net/http"
	"os"
	"time"

	"vodforge/config"
	"vodforge/credentials"
	"vodforge/encodingapi"
	"vodforge/failures"
	"vodforge/job"
	"vodforge/keydelivery"
	"vodforge/logger"
	"vodforge/routes"
	"vodforge/runs"
	"vodforge/storage"
	"vodforge/taskqueue"
	"vodforge/workflow"
)

// credentialSource adapts the credentials store to the workflow interface.
type credentialSource struct{}

func (credentialSource) GetCredentials(name string) (map[string]string, error) {
	return credentials.GetCredentials(name)
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		logger.Fatalf("Invalid configuration: %v", err)
	}

	if err := logger.Init(cfg.LogFile, true); err != nil {
		logger.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Close()
	logger.SetLevel(logger.ParseLevel(cfg.LogLevel))

	logger.Info("Starting vodforge server initialization")

	if err := os.MkdirAll(cfg.DataDir, 0755); err != nil {
		logger.Fatalf("Failed to create data directory: %v", err)
	}

	// Initialize credentials store
	logger.Debug("Initializing credentials database")
	if err := credentials.OpenDB(cfg.CredentialsDBPath()); err != nil {
		logger.Fatalf("Failed to initialize credentials store: %v", err)
	}
	defer credentials.CloseDB()
	logger.Info("Credentials database initialized successfully")

	// Initialize failure store
	logger.Debug("Initializing failures database")
	if err := failures.Init(cfg.FailuresDBPath()); err != nil {
		logger.Fatalf("Failed to initialize failure store: %v", err)
	}
	defer failures.Close()
	logger.Info("Failures database initialized successfully")

	// Initialize runs store
	logger.Debug("Initializing runs database")
	if err := runs.Init(cfg.RunsDBPath()); err != nil {
		logger.Fatalf("Failed to initialize runs store: %v", err)
	}
	defer runs.Close()
	logger.Info("Runs database initialized successfully")

	// Open the submission spool
	logger.Debug("Opening submission spool")
	spool, err := taskqueue.Open(cfg.SpoolDBPath())
	if err != nil {
		logger.Fatalf("Failed to open submission spool: %v", err)
	}
	defer spool.Close()
	job.SetSpool(spool)

	// Wire the remote encoding client and the run workflow
	apiClient := encodingapi.NewClient(cfg.EncodingAPIURL, cfg.EncodingAPIKey, cfg.EncodingOrgID)

	var keys workflow.KeyFetcher
	if cfg.KeyDeliveryURL != "" {
		keys = keydelivery.NewClient(cfg.KeyDeliveryURL, cfg.KeyDeliveryUser, cfg.KeyDeliveryPassword)
		logger.Info("Key delivery client configured")
	}

	orchestrator := workflow.New(apiClient, keys, storage.ProbeDispatcher{}, credentialSource{}, workflow.Options{
		HTTPInputHost: cfg.HTTPInputHost,
		S3Bucket:      cfg.S3OutputBucket,
		S3AccessKey:   cfg.S3OutputAccessKey,
		S3SecretKey:   cfg.S3OutputSecretKey,
		S3Region:      cfg.S3OutputRegion,
		S3BasePath:    cfg.S3OutputBasePath,
		Preflight:     cfg.Preflight,
	})
	poller := &workflow.Poller{
		API:      apiClient,
		Interval: cfg.PollInterval,
		Timeout:  cfg.PollTimeout,
	}
	job.SetWorkflow(orchestrator, poller)

	// Scan for submissions left pending by a previous process
	logger.Info("Scanning spool for pending submissions")
	if err := job.ScanForPendingJobs(); err != nil {
		logger.Errorf("Failed to scan for pending submissions: %v", err)
		// Don't exit - continue with server startup
	} else {
		logger.Info("Pending submission scan completed")
	}

	// Start cleanup routine for old records (runs every 24 hours)
	logger.Info("Starting cleanup routine (runs every 24 hours)")
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel() // This will stop the cleanup routine when main exits
	go cleanupRoutine(ctx)

	// Start run processing routine
	logger.Info("Starting run processing routine")
	go job.ProcessPendingJobs()

	// Register HTTP routes
	logger.Info("Registering HTTP routes")
	routes.Configure([]byte(cfg.JWTSecret))
	routes.Register()
	logger.Info("HTTP routes registered successfully")

	logger.Infof("vodforge server starting on %s", cfg.ListenAddr)
	if err := http.ListenAndServe(cfg.ListenAddr, nil); err != nil {
		logger.Fatalf("Server failed to start: %v", err)
	}
}

// cleanupRoutine periodically cleans up old run and failure records
func cleanupRoutine(ctx context.Context) {
	logger.Info("Cleanup routine started - will run every 24 hours")
	ticker := time.NewTicker(24 * time.Hour) // Run every 24 hours
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Info("Cleanup routine stopped due to context cancellation")
			return
		case <-ticker.C:
			logger.Info("Running scheduled cleanup of old records")
			// Clean up records older than 30 days
			maxAge := 30 * 24 * time.Hour

			logger.Debugf("Cleaning up run records older than %v", maxAge)
			if err := runs.CleanupOldRecords(maxAge); err != nil {
				logger.Errorf("Failed to cleanup old run records: %v", err)
			} else {
				logger.Info("Successfully cleaned up old run records")
			}

			logger.Debugf("Cleaning up failure records older than %v", maxAge)
			if err := failures.CleanupOldRecords(maxAge); err != nil {
				logger.Errorf("Failed to cleanup old failure records: %v", err)
			} else {
				logger.Info("Successfully cleaned up old failure records")
			}

			logger.Info("Scheduled cleanup completed")
		}
	}
}
