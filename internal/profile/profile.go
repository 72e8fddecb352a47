package profile

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// Profile is configuration to start main server.
type Profile struct {
	// Mode can be "prod", "dev" or "demo".
	Mode string
	// Addr is the binding address for the server.
	Addr string
	// Port is the binding port for the server.
	Port int
	// Data is the directory for local state (sqlite database, logs).
	Data string
	// Driver is the database driver: sqlite or postgres.
	Driver string
	// DSN is the database connection string.
	DSN string
	// Version is the current server version.
	Version string
	// InstanceURL is the public URL of this instance.
	InstanceURL string

	// GranularityMinutes is the slot grid size for availability.
	GranularityMinutes int
	// MinSlotMinutes drops free slots shorter than this.
	MinSlotMinutes int
	// BufferMinutes is the gap under which adjacent meetings count as
	// back to back. Zero disables the check.
	BufferMinutes int

	// FetchTimeoutSeconds bounds a single calendar provider request.
	FetchTimeoutSeconds int
	// FetchMaxAttempts is the retry budget per provider account.
	FetchMaxAttempts int
	// FetchMaxConcurrency caps parallel provider requests.
	FetchMaxConcurrency int

	// ICSFeeds configures ICS subscription accounts as comma-separated
	// "accountID=url" pairs.
	ICSFeeds string
}

// ICSFeedMap parses ICSFeeds into an accountID -> URL map. Malformed
// pairs are skipped.
func (p *Profile) ICSFeedMap() map[string]string {
	out := make(map[string]string)
	for _, pair := range strings.Split(p.ICSFeeds, ",") {
		id, url, ok := strings.Cut(strings.TrimSpace(pair), "=")
		if !ok || id == "" || url == "" {
			continue
		}
		out[id] = url
	}
	return out
}

func (p *Profile) IsDev() bool {
	return p.Mode != "prod"
}

// getEnvOrDefault returns environment variable value or default value.
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvOrDefaultInt returns environment variable value as int or default value.
func getEnvOrDefaultInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

// FromEnv loads configuration from environment variables.
func (p *Profile) FromEnv() {
	p.GranularityMinutes = getEnvOrDefaultInt("CLEARDAY_GRANULARITY_MINUTES", 15)
	p.MinSlotMinutes = getEnvOrDefaultInt("CLEARDAY_MIN_SLOT_MINUTES", 15)
	p.BufferMinutes = getEnvOrDefaultInt("CLEARDAY_BUFFER_MINUTES", 10)

	p.FetchTimeoutSeconds = getEnvOrDefaultInt("CLEARDAY_FETCH_TIMEOUT_SECONDS", 10)
	p.FetchMaxAttempts = getEnvOrDefaultInt("CLEARDAY_FETCH_MAX_ATTEMPTS", 3)
	p.FetchMaxConcurrency = getEnvOrDefaultInt("CLEARDAY_FETCH_MAX_CONCURRENCY", 4)

	p.ICSFeeds = getEnvOrDefault("CLEARDAY_ICS_FEEDS", p.ICSFeeds)
	p.InstanceURL = getEnvOrDefault("CLEARDAY_INSTANCE_URL", p.InstanceURL)
}

func checkDataDir(dataDir string) (string, error) {
	// Convert to absolute path if relative path is supplied.
	if !filepath.IsAbs(dataDir) {
		relativeDir := filepath.Join(filepath.Dir(os.Args[0]), dataDir)
		absDir, err := filepath.Abs(relativeDir)
		if err != nil {
			return "", err
		}
		dataDir = absDir
	}

	// Trim trailing \ or / in case user supplies
	dataDir = strings.TrimRight(dataDir, "\\/")
	if _, err := os.Stat(dataDir); err != nil {
		return "", errors.Wrapf(err, "unable to access data folder %s", dataDir)
	}
	return dataDir, nil
}

func (p *Profile) Validate() error {
	if p.Mode != "demo" && p.Mode != "dev" && p.Mode != "prod" {
		p.Mode = "demo"
	}

	if p.Driver == "" {
		p.Driver = "sqlite"
	}

	if p.GranularityMinutes <= 0 {
		p.GranularityMinutes = 15
	}
	if p.MinSlotMinutes <= 0 {
		p.MinSlotMinutes = p.GranularityMinutes
	}
	if p.BufferMinutes < 0 {
		p.BufferMinutes = 0
	}

	if p.Mode == "prod" && p.Data == "" {
		if runtime.GOOS == "windows" {
			p.Data = filepath.Join(os.Getenv("ProgramData"), "clearday")
			if _, err := os.Stat(p.Data); os.IsNotExist(err) {
				if err := os.MkdirAll(p.Data, 0770); err != nil {
					slog.Error("failed to create data directory", slog.String("data", p.Data), slog.String("error", err.Error()))
					return err
				}
			}
		} else {
			p.Data = "/var/opt/clearday"
		}
	}

	dataDir, err := checkDataDir(p.Data)
	if err != nil {
		slog.Error("failed to check data dir", slog.String("data", dataDir), slog.String("error", err.Error()))
		return err
	}

	p.Data = dataDir
	if p.Driver == "sqlite" && p.DSN == "" {
		dbFile := fmt.Sprintf("clearday_%s.db", p.Mode)
		p.DSN = filepath.Join(dataDir, dbFile)
	}
	if p.Driver == "postgres" && p.DSN == "" {
		return errors.New("dsn is required for postgres driver")
	}

	return nil
}
