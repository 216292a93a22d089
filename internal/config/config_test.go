package config

import (
	"testing"
)

// memBackend is an in-memory Backend for tests.
type memBackend struct {
	data map[string]any
}

func newMemBackend() *memBackend {
	return &memBackend{data: make(map[string]any)}
}

func (m *memBackend) GetString(key string) (string, bool, error) {
	v, ok := m.data[key]
	if !ok {
		return "", false, nil
	}
	return v.(string), true, nil
}

func (m *memBackend) GetInt(key string) (int, bool, error) {
	v, ok := m.data[key]
	if !ok {
		return 0, false, nil
	}
	return v.(int), true, nil
}

func (m *memBackend) SetString(key, val string) error { m.data[key] = val; return nil }
func (m *memBackend) SetInt(key string, val int) error { m.data[key] = val; return nil }
func (m *memBackend) Delete(key string) error          { delete(m.data, key); return nil }

func TestDefaults(t *testing.T) {
	cfg, err := loadWith(newMemBackend())
	if err != nil {
		t.Fatalf("loadWith: %v", err)
	}

	if cfg.Server.Port != 5000 {
		t.Errorf("Server.Port = %d, want 5000", cfg.Server.Port)
	}
	if cfg.Oracle.BaseURL != "http://localhost:8080" {
		t.Errorf("Oracle.BaseURL = %q", cfg.Oracle.BaseURL)
	}
	if cfg.Matching.DefaultTopN != 5 {
		t.Errorf("Matching.DefaultTopN = %d, want 5", cfg.Matching.DefaultTopN)
	}
	if cfg.Matching.MaxQueries != 10 {
		t.Errorf("Matching.MaxQueries = %d, want 10", cfg.Matching.MaxQueries)
	}
	if got := len(cfg.FallbackQueryList()); got != 3 {
		t.Errorf("len(FallbackQueryList) = %d, want 3", got)
	}
}

func TestBackendValuesApplied(t *testing.T) {
	b := newMemBackend()
	b.data["server.port"] = 9000
	b.data["oracle.base_url"] = "http://oracle:9999"
	b.data["matching.default_domain"] = "Field Ops"

	cfg, err := loadWith(b)
	if err != nil {
		t.Fatalf("loadWith: %v", err)
	}

	if cfg.Server.Port != 9000 {
		t.Errorf("Server.Port = %d, want 9000", cfg.Server.Port)
	}
	if cfg.Oracle.BaseURL != "http://oracle:9999" {
		t.Errorf("Oracle.BaseURL = %q", cfg.Oracle.BaseURL)
	}
	if cfg.Matching.DefaultDomain != "Field Ops" {
		t.Errorf("Matching.DefaultDomain = %q", cfg.Matching.DefaultDomain)
	}
}

func TestEnvOverridesBackend(t *testing.T) {
	b := newMemBackend()
	b.data["server.port"] = 9000

	t.Setenv("DESKD_SERVER_PORT", "7777")
	t.Setenv("DESKD_ORACLE_TIMEOUT", "3s")

	cfg, err := loadWith(b)
	if err != nil {
		t.Fatalf("loadWith: %v", err)
	}

	if cfg.Server.Port != 7777 {
		t.Errorf("Server.Port = %d, want env override 7777", cfg.Server.Port)
	}
	if cfg.Oracle.Timeout != "3s" {
		t.Errorf("Oracle.Timeout = %q, want 3s", cfg.Oracle.Timeout)
	}
}

func TestInvalidOracleTimeoutRejected(t *testing.T) {
	t.Setenv("DESKD_ORACLE_TIMEOUT", "not-a-duration")

	if _, err := loadWith(newMemBackend()); err == nil {
		t.Error("expected error for invalid oracle.timeout")
	}
}

func TestAPITokenGeneratedAndPersisted(t *testing.T) {
	t.Setenv("DESKD_API_TOKEN", "")
	b := newMemBackend()

	cfg, err := loadWith(b)
	if err != nil {
		t.Fatalf("loadWith: %v", err)
	}
	if cfg.API.Token == "" {
		t.Fatal("API token not generated")
	}

	// Second load reuses the persisted token.
	cfg2, err := loadWith(b)
	if err != nil {
		t.Fatalf("second loadWith: %v", err)
	}
	if cfg2.API.Token != cfg.API.Token {
		t.Errorf("token changed between loads: %q vs %q", cfg.API.Token, cfg2.API.Token)
	}
}

func TestFallbackQueryListTrimsAndSkipsEmpty(t *testing.T) {
	cfg := defaults()
	cfg.Matching.FallbackQueries = " a , ,b,"

	got := cfg.FallbackQueryList()
	if len(got) != 2 || got[0] != "a" || got[1] != "b" {
		t.Errorf("FallbackQueryList = %v, want [a b]", got)
	}
}

func TestSetKeyUnknownAndSecret(t *testing.T) {
	if err := SetKey("nope.nothing", "x"); err == nil {
		t.Error("expected error for unknown key")
	}
}

func TestShowAllExcludesSecrets(t *testing.T) {
	cfg := defaults()
	cfg.API.Token = "super-secret"

	for _, info := range ShowAll(cfg) {
		if info.Key == "api.token" {
			t.Error("ShowAll leaked api.token")
		}
	}
}
