package config

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"os"
	"strconv"
)

type keyType int

const (
	kString keyType = iota
	kInt
)

type keySpec struct {
	key     string
	typ     keyType
	env     string
	secret  bool
	apply   func(cfg *Config, v any)
	extract func(cfg Config) any
}

var specs = []keySpec{
	{
		key: "server.port", typ: kInt, env: "DESKD_SERVER_PORT",
		apply:   func(cfg *Config, v any) { cfg.Server.Port = v.(int) },
		extract: func(cfg Config) any { return cfg.Server.Port },
	},
	{
		key: "storage.data_dir", typ: kString, env: "DESKD_STORAGE_DATA_DIR",
		apply:   func(cfg *Config, v any) { cfg.Storage.DataDir = v.(string) },
		extract: func(cfg Config) any { return cfg.Storage.DataDir },
	},
	{
		key: "blob.dir", typ: kString, env: "DESKD_BLOB_DIR",
		apply:   func(cfg *Config, v any) { cfg.Blob.Dir = v.(string) },
		extract: func(cfg Config) any { return cfg.Blob.Dir },
	},
	{
		key: "oracle.base_url", typ: kString, env: "DESKD_ORACLE_BASE_URL",
		apply:   func(cfg *Config, v any) { cfg.Oracle.BaseURL = v.(string) },
		extract: func(cfg Config) any { return cfg.Oracle.BaseURL },
	},
	{
		key: "oracle.timeout", typ: kString, env: "DESKD_ORACLE_TIMEOUT",
		apply:   func(cfg *Config, v any) { cfg.Oracle.Timeout = v.(string) },
		extract: func(cfg Config) any { return cfg.Oracle.Timeout },
	},
	{
		key: "matching.default_top_n", typ: kInt, env: "DESKD_MATCHING_DEFAULT_TOP_N",
		apply:   func(cfg *Config, v any) { cfg.Matching.DefaultTopN = v.(int) },
		extract: func(cfg Config) any { return cfg.Matching.DefaultTopN },
	},
	{
		key: "matching.max_queries", typ: kInt, env: "DESKD_MATCHING_MAX_QUERIES",
		apply:   func(cfg *Config, v any) { cfg.Matching.MaxQueries = v.(int) },
		extract: func(cfg Config) any { return cfg.Matching.MaxQueries },
	},
	{
		key: "matching.default_domain", typ: kString, env: "DESKD_MATCHING_DEFAULT_DOMAIN",
		apply:   func(cfg *Config, v any) { cfg.Matching.DefaultDomain = v.(string) },
		extract: func(cfg Config) any { return cfg.Matching.DefaultDomain },
	},
	{
		key: "matching.fallback_queries", typ: kString, env: "DESKD_MATCHING_FALLBACK_QUERIES",
		apply:   func(cfg *Config, v any) { cfg.Matching.FallbackQueries = v.(string) },
		extract: func(cfg Config) any { return cfg.Matching.FallbackQueries },
	},
	{
		key: "api.token", typ: kString, env: "DESKD_API_TOKEN",
		secret:  true,
		apply:   func(cfg *Config, v any) { cfg.API.Token = v.(string) },
		extract: func(cfg Config) any { return cfg.API.Token },
	},
	{
		key: "log.level", typ: kString, env: "DESKD_LOG_LEVEL",
		apply:   func(cfg *Config, v any) { cfg.Log.Level = v.(string) },
		extract: func(cfg Config) any { return cfg.Log.Level },
	},
}

func applyBackend(cfg *Config, b Backend) error {
	for _, s := range specs {
		switch s.typ {
		case kString:
			v, ok, err := b.GetString(s.key)
			if err != nil {
				return fmt.Errorf("reading %s: %w", s.key, err)
			}
			if ok {
				s.apply(cfg, v)
			}
		case kInt:
			v, ok, err := b.GetInt(s.key)
			if err != nil {
				return fmt.Errorf("reading %s: %w", s.key, err)
			}
			if ok {
				s.apply(cfg, v)
			}
		}
	}
	return nil
}

func applyEnvOverrides(cfg *Config) {
	for _, s := range specs {
		raw := os.Getenv(s.env)
		if raw == "" {
			continue
		}
		switch s.typ {
		case kString:
			s.apply(cfg, raw)
		case kInt:
			if i, err := strconv.Atoi(raw); err == nil {
				s.apply(cfg, i)
			} else {
				fmt.Fprintf(os.Stderr, "[WARN] ignoring invalid integer in %s: %q\n", s.env, raw)
			}
		}
	}
}

// ensureAPIToken generates a random bearer token and persists it to the
// backend so subsequent loads and CLI client commands share it.
func ensureAPIToken(b Backend) (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generating token: %w", err)
	}
	token := hex.EncodeToString(buf)
	if err := b.SetString("api.token", token); err != nil {
		return "", fmt.Errorf("persisting token: %w", err)
	}
	return token, nil
}

// KeyInfo describes a config key for display purposes.
type KeyInfo struct {
	Key    string
	EnvVar string
	Value  string
}

// ShowAll returns all non-secret config key/value pairs from the current config.
func ShowAll(cfg Config) []KeyInfo {
	var result []KeyInfo
	for _, s := range specs {
		if s.secret {
			continue
		}
		result = append(result, KeyInfo{
			Key:    s.key,
			EnvVar: s.env,
			Value:  fmt.Sprintf("%v", s.extract(cfg)),
		})
	}
	return result
}

// SetKey writes a config key to the file backend.
func SetKey(key, value string) error {
	b := newFileBackend()

	for _, s := range specs {
		if s.key != key {
			continue
		}
		if s.secret {
			return fmt.Errorf("cannot set secret %q via config; use environment variable %s", key, s.env)
		}
		switch s.typ {
		case kString:
			return b.SetString(key, value)
		case kInt:
			i, err := strconv.Atoi(value)
			if err != nil {
				return fmt.Errorf("invalid integer value for %s: %w", key, err)
			}
			return b.SetInt(key, i)
		}
	}

	return fmt.Errorf("unknown config key: %q", key)
}

// ValidKeys returns the list of valid non-secret config key names.
func ValidKeys() []string {
	var keys []string
	for _, s := range specs {
		if !s.secret {
			keys = append(keys, s.key)
		}
	}
	return keys
}
