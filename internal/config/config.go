package config

import (
	"fmt"
	"strings"
	"time"
)

type Config struct {
	Server   ServerConfig
	Storage  StorageConfig
	Blob     BlobConfig
	Oracle   OracleConfig
	Matching MatchingConfig
	API      APIConfig
	Log      LogConfig
}

type ServerConfig struct {
	Port int
}

type StorageConfig struct {
	DataDir string
}

type BlobConfig struct {
	Dir string
}

type OracleConfig struct {
	BaseURL string
	Timeout string // duration string, e.g. "10s"
}

type MatchingConfig struct {
	DefaultTopN int
	MaxQueries  int
	// DefaultDomain labels agents with no stated expertise.
	DefaultDomain string
	// FallbackQueries seed the corpus for agents with no history,
	// comma-separated in the backend/env representation.
	FallbackQueries string
}

type APIConfig struct {
	Token string
}

type LogConfig struct {
	Level string
}

func defaults() Config {
	dataDir := defaultDataDir()
	return Config{
		Server: ServerConfig{
			Port: 5000,
		},
		Storage: StorageConfig{
			DataDir: dataDir,
		},
		Blob: BlobConfig{
			Dir: dataDir + "/blobs",
		},
		Oracle: OracleConfig{
			BaseURL: "http://localhost:8080",
			Timeout: "10s",
		},
		Matching: MatchingConfig{
			DefaultTopN:   5,
			MaxQueries:    10,
			DefaultDomain: "General Support",
			FallbackQueries: "General troubleshooting," +
				"Password reset assistance," +
				"Software installation help",
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// Load reads configuration from the JSON file backend
// ($XDG_CONFIG_HOME/deskd/config.json) with DESKD_* environment
// variables taking precedence. A missing API token is generated and
// persisted to the backend on first load.
func Load() (Config, error) {
	return loadWith(newFileBackend())
}

func loadWith(b Backend) (Config, error) {
	cfg := defaults()

	if err := applyBackend(&cfg, b); err != nil {
		return Config{}, err
	}

	applyEnvOverrides(&cfg)

	if cfg.API.Token == "" {
		token, err := ensureAPIToken(b)
		if err != nil {
			return Config{}, fmt.Errorf("initializing API token: %w", err)
		}
		cfg.API.Token = token
	}

	if _, err := time.ParseDuration(cfg.Oracle.Timeout); err != nil {
		return Config{}, fmt.Errorf("invalid oracle.timeout %q: %w", cfg.Oracle.Timeout, err)
	}

	return cfg, nil
}

// OracleTimeout returns the parsed oracle call timeout. Load has
// already validated the duration string.
func (c Config) OracleTimeout() time.Duration {
	d, err := time.ParseDuration(c.Oracle.Timeout)
	if err != nil {
		return 10 * time.Second
	}
	return d
}

// FallbackQueryList splits the comma-separated fallback queries into a
// trimmed list.
func (c Config) FallbackQueryList() []string {
	parts := strings.Split(c.Matching.FallbackQueries, ",")
	var list []string
	for _, p := range parts {
		if q := strings.TrimSpace(p); q != "" {
			list = append(list, q)
		}
	}
	return list
}
