package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config aggregates runtime configuration for the hub broker.
type Config struct {
	Environment    string
	HTTPPort       int
	DatabaseURL    string
	DataStore      string
	LogLevel       string
	AllowedOrigins []string

	// FrontendURL is the origin the callback page posts messages to and
	// the target of post-login redirects.
	FrontendURL string

	GoogleClientID     string
	GoogleClientSecret string
	GoogleRedirectURL  string

	MotionAPIURL    string
	MotionKeyPrefix string

	SessionTTL time.Duration
}

// Load reads configuration from environment variables with sensible
// defaults for local development. Missing or malformed required values
// are reported here so the process fails at startup, not per-request.
func Load() (Config, error) {
	databaseURL, err := getEnvOrFile("DATABASE_URL", "/run/secrets/hubbroker_database_url")
	if err != nil {
		return Config{}, err
	}

	googleSecret, err := getEnvOrFile("AUTH_GOOGLE_CLIENT_SECRET", "/run/secrets/hubbroker_google_client_secret")
	if err != nil {
		return Config{}, err
	}

	cfg := Config{
		Environment:        getEnv("APP_ENV", "development"),
		DatabaseURL:        databaseURL,
		DataStore:          strings.ToLower(getEnv("DATA_STORE", "memory")),
		LogLevel:           strings.ToLower(getEnv("LOG_LEVEL", "info")),
		AllowedOrigins:     parseCSV(getEnv("ALLOWED_ORIGINS", "http://localhost:3000,http://localhost:5173")),
		FrontendURL:        strings.TrimSuffix(getEnv("FRONTEND_URL", "http://localhost:3000"), "/"),
		GoogleClientID:     strings.TrimSpace(getEnv("AUTH_GOOGLE_CLIENT_ID", "")),
		GoogleClientSecret: strings.TrimSpace(googleSecret),
		GoogleRedirectURL:  getEnv("AUTH_GOOGLE_REDIRECT_URL", "http://localhost:8080/auth/google/callback"),
		MotionAPIURL:       getEnv("MOTION_API_URL", ""),
		MotionKeyPrefix:    getEnv("MOTION_KEY_PREFIX", ""),
	}

	portValue := getEnv("PORT", getEnv("HTTP_PORT", "8080"))
	port, err := strconv.Atoi(portValue)
	if err != nil {
		return Config{}, fmt.Errorf("invalid port %q: %w", portValue, err)
	}
	cfg.HTTPPort = port

	ttlValue := getEnv("SESSION_TTL", "24h")
	ttl, err := time.ParseDuration(ttlValue)
	if err != nil || ttl <= 0 {
		return Config{}, fmt.Errorf("invalid SESSION_TTL %q", ttlValue)
	}
	cfg.SessionTTL = ttl

	if cfg.DataStore == "postgres" && cfg.DatabaseURL == "" {
		return Config{}, fmt.Errorf("DATA_STORE is postgres but DATABASE_URL is not set")
	}

	// Outside development the Google flow must be fully configured.
	if !cfg.IsDevelopment() {
		if cfg.GoogleClientID == "" {
			return Config{}, fmt.Errorf("AUTH_GOOGLE_CLIENT_ID is required outside development")
		}
		if cfg.GoogleClientSecret == "" {
			return Config{}, fmt.Errorf("AUTH_GOOGLE_CLIENT_SECRET is required outside development")
		}
	}
	if (cfg.GoogleClientID == "") != (cfg.GoogleClientSecret == "") {
		return Config{}, fmt.Errorf("AUTH_GOOGLE_CLIENT_ID and AUTH_GOOGLE_CLIENT_SECRET must be set together")
	}

	return cfg, nil
}

// HTTPAddress returns the address the HTTP server should bind to.
func (c Config) HTTPAddress() string {
	return fmt.Sprintf(":%d", c.HTTPPort)
}

// UseInMemoryStore returns true if the in-memory repositories should be used.
func (c Config) UseInMemoryStore() bool {
	return c.DataStore == "memory"
}

// IsDevelopment returns true for local development environments.
func (c Config) IsDevelopment() bool {
	return strings.EqualFold(c.Environment, "development")
}

// GoogleEnabled reports whether the Google flow is configured.
func (c Config) GoogleEnabled() bool {
	return c.GoogleClientID != "" && c.GoogleClientSecret != ""
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func parseCSV(value string) []string {
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		trimmed := strings.TrimSpace(p)
		if trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func getEnvOrFile(key, defaultPath string) (string, error) {
	if value := os.Getenv(key); value != "" {
		return value, nil
	}

	fileKey := key + "_FILE"
	if path := os.Getenv(fileKey); path != "" {
		return readSecret(path, fileKey)
	}

	if defaultPath != "" {
		return readSecret(defaultPath, key)
	}

	return "", nil
}

func readSecret(path, name string) (string, error) {
	contents, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", nil
		}
		return "", fmt.Errorf("config: reading %s (%s): %w", name, path, err)
	}

	value := strings.TrimSpace(string(contents))
	if value == "" {
		return "", fmt.Errorf("config: %s (%s) is empty", name, path)
	}
	return value, nil
}
