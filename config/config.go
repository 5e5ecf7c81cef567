package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// Default endpoint of the hosted encoding service.
const DefaultEncodingAPIURL = "https://api.encoding.example.com/v1"

// Config holds every runtime setting of the server. It is loaded once from
// the environment at startup and passed down explicitly; nothing reads
// environment variables after Load returns.
type Config struct {
	// Server
	ListenAddr string // VODFORGE_LISTEN_ADDR, default ":8080"
	DataDir    string // VODFORGE_DATA_DIR, default "./data"
	LogFile    string // VODFORGE_LOG_FILE, optional
	LogLevel   string // VODFORGE_LOG_LEVEL, default "debug"
	JWTSecret  string // VODFORGE_JWT_SECRET, required, min 32 bytes

	// Remote encoding service
	EncodingAPIURL string // VODFORGE_ENCODING_API_URL
	EncodingAPIKey string // VODFORGE_ENCODING_API_KEY, required
	EncodingOrgID  string // VODFORGE_ENCODING_ORG_ID, optional multi-tenant org

	// Default input/output locations for submitted jobs
	HTTPInputHost     string // VODFORGE_HTTP_INPUT_HOST, required
	S3OutputBucket    string // VODFORGE_S3_OUTPUT_BUCKET
	S3OutputAccessKey string // VODFORGE_S3_OUTPUT_ACCESS_KEY
	S3OutputSecretKey string // VODFORGE_S3_OUTPUT_SECRET_KEY
	S3OutputRegion    string // VODFORGE_S3_OUTPUT_REGION
	S3OutputBasePath  string // VODFORGE_S3_OUTPUT_BASE_PATH

	// FairPlay key delivery service. Only required when a submission
	// requests FairPlay protection.
	KeyDeliveryURL      string // VODFORGE_KEYDELIVERY_URL
	KeyDeliveryUser     string // VODFORGE_KEYDELIVERY_USER
	KeyDeliveryPassword string // VODFORGE_KEYDELIVERY_PASSWORD

	// Status polling
	PollInterval time.Duration // VODFORGE_POLL_INTERVAL, default 5s
	PollTimeout  time.Duration // VODFORGE_POLL_TIMEOUT, default 2h

	// Preflight probing of output destinations before a run starts
	Preflight bool // VODFORGE_PREFLIGHT, default true
}

// Load reads the configuration from the environment and validates it.
// All missing or invalid settings are reported together in a single error.
func Load() (*Config, error) {
	cfg := &Config{
		ListenAddr:          envOr("VODFORGE_LISTEN_ADDR", ":8080"),
		DataDir:             envOr("VODFORGE_DATA_DIR", "./data"),
		LogFile:             os.Getenv("VODFORGE_LOG_FILE"),
		LogLevel:            envOr("VODFORGE_LOG_LEVEL", "debug"),
		JWTSecret:           os.Getenv("VODFORGE_JWT_SECRET"),
		EncodingAPIURL:      envOr("VODFORGE_ENCODING_API_URL", DefaultEncodingAPIURL),
		EncodingAPIKey:      os.Getenv("VODFORGE_ENCODING_API_KEY"),
		EncodingOrgID:       os.Getenv("VODFORGE_ENCODING_ORG_ID"),
		HTTPInputHost:       os.Getenv("VODFORGE_HTTP_INPUT_HOST"),
		S3OutputBucket:      os.Getenv("VODFORGE_S3_OUTPUT_BUCKET"),
		S3OutputAccessKey:   os.Getenv("VODFORGE_S3_OUTPUT_ACCESS_KEY"),
		S3OutputSecretKey:   os.Getenv("VODFORGE_S3_OUTPUT_SECRET_KEY"),
		S3OutputRegion:      envOr("VODFORGE_S3_OUTPUT_REGION", "us-east-1"),
		S3OutputBasePath:    envOr("VODFORGE_S3_OUTPUT_BASE_PATH", "/outputs"),
		KeyDeliveryURL:      os.Getenv("VODFORGE_KEYDELIVERY_URL"),
		KeyDeliveryUser:     os.Getenv("VODFORGE_KEYDELIVERY_USER"),
		KeyDeliveryPassword: os.Getenv("VODFORGE_KEYDELIVERY_PASSWORD"),
		PollInterval:        5 * time.Second,
		PollTimeout:         2 * time.Hour,
		Preflight:           true,
	}

	var parseErrs []string
	if v := os.Getenv("VODFORGE_POLL_INTERVAL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			parseErrs = append(parseErrs, fmt.Sprintf("VODFORGE_POLL_INTERVAL: %v", err))
		} else {
			cfg.PollInterval = d
		}
	}
	if v := os.Getenv("VODFORGE_POLL_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			parseErrs = append(parseErrs, fmt.Sprintf("VODFORGE_POLL_TIMEOUT: %v", err))
		} else {
			cfg.PollTimeout = d
		}
	}
	if v := os.Getenv("VODFORGE_PREFLIGHT"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			parseErrs = append(parseErrs, fmt.Sprintf("VODFORGE_PREFLIGHT: %v", err))
		} else {
			cfg.Preflight = b
		}
	}

	if err := cfg.Validate(); err != nil {
		if len(parseErrs) > 0 {
			return nil, fmt.Errorf("%v; %s", err, strings.Join(parseErrs, "; "))
		}
		return nil, err
	}
	if len(parseErrs) > 0 {
		return nil, fmt.Errorf("invalid configuration: %s", strings.Join(parseErrs, "; "))
	}
	return cfg, nil
}

// Validate checks that every required setting is present and consistent.
func (c *Config) Validate() error {
	var missing []string
	if c.JWTSecret == "" {
		missing = append(missing, "VODFORGE_JWT_SECRET")
	}
	if c.EncodingAPIKey == "" {
		missing = append(missing, "VODFORGE_ENCODING_API_KEY")
	}
	if c.HTTPInputHost == "" {
		missing = append(missing, "VODFORGE_HTTP_INPUT_HOST")
	}
	if c.S3OutputBucket == "" {
		missing = append(missing, "VODFORGE_S3_OUTPUT_BUCKET")
	}
	if c.S3OutputAccessKey == "" {
		missing = append(missing, "VODFORGE_S3_OUTPUT_ACCESS_KEY")
	}
	if c.S3OutputSecretKey == "" {
		missing = append(missing, "VODFORGE_S3_OUTPUT_SECRET_KEY")
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required configuration: %s", strings.Join(missing, ", "))
	}

	if len(c.JWTSecret) < 32 {
		return fmt.Errorf("VODFORGE_JWT_SECRET must be at least 32 bytes, got %d", len(c.JWTSecret))
	}
	// Key delivery settings come as a unit: a URL without credentials (or
	// the reverse) is a misconfiguration we want to catch at startup, not
	// mid-run.
	if c.KeyDeliveryURL != "" && (c.KeyDeliveryUser == "" || c.KeyDeliveryPassword == "") {
		return fmt.Errorf("VODFORGE_KEYDELIVERY_URL is set but VODFORGE_KEYDELIVERY_USER/VODFORGE_KEYDELIVERY_PASSWORD are not")
	}
	if c.PollInterval <= 0 {
		return fmt.Errorf("poll interval must be positive, got %v", c.PollInterval)
	}
	if c.PollTimeout <= 0 {
		return fmt.Errorf("poll timeout must be positive, got %v", c.PollTimeout)
	}
	return nil
}

// SpoolDBPath returns the full path to the pending submission spool.
func (c *Config) SpoolDBPath() string {
	return filepath.Join(c.DataDir, "spool.db")
}

// CredentialsDBPath returns the full path to the storage credentials database.
func (c *Config) CredentialsDBPath() string {
	return filepath.Join(c.DataDir, "credentials.db")
}

// RunsDBPath returns the full path to the completed runs database.
func (c *Config) RunsDBPath() string {
	return filepath.Join(c.DataDir, "runs.db")
}

// FailuresDBPath returns the full path to the failures database.
func (c *Config) FailuresDBPath() string {
	return filepath.Join(c.DataDir, "failures.db")
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
