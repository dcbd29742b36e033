package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("CONFIG_FILE", filepath.Join(t.TempDir(), "missing.toml"))

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	if cfg.App.Port != 8080 {
		t.Errorf("App.Port = %d, want 8080", cfg.App.Port)
	}
	if cfg.LLM.Provider != "perplexity" {
		t.Errorf("LLM.Provider = %q, want perplexity", cfg.LLM.Provider)
	}
	if !cfg.LLM.Perplexity.PreferCheapest {
		t.Error("Perplexity.PreferCheapest should default to true")
	}
	if cfg.RAG.TargetTokens != 300 || cfg.RAG.TopK != 6 {
		t.Errorf("RAG defaults = %d/%d, want 300/6", cfg.RAG.TargetTokens, cfg.RAG.TopK)
	}
	if cfg.Redis.EmbeddingTTLSeconds != 600 {
		t.Errorf("Redis.EmbeddingTTLSeconds = %d, want 600", cfg.Redis.EmbeddingTTLSeconds)
	}
	if cfg.RabbitMQ.LLMCallQueue != "llm.call.audit" {
		t.Errorf("RabbitMQ.LLMCallQueue = %q", cfg.RabbitMQ.LLMCallQueue)
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("CONFIG_FILE", filepath.Join(t.TempDir(), "missing.toml"))
	t.Setenv("APP_PORT", "9091")
	t.Setenv("LLM_PROVIDER", "OpenAI")
	t.Setenv("PERPLEXITY_API_KEY", "pk-123")
	t.Setenv("LLM_PREFER_CHEAPEST", "false")
	t.Setenv("MYSQL_DB", "legal")
	t.Setenv("RAG_TOP_K", "12")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	if cfg.App.Port != 9091 {
		t.Errorf("App.Port = %d, want 9091", cfg.App.Port)
	}
	if cfg.LLM.Provider != "openai" {
		t.Errorf("provider not lowercased: %q", cfg.LLM.Provider)
	}
	if cfg.LLM.Perplexity.APIKey != "pk-123" {
		t.Errorf("Perplexity.APIKey = %q", cfg.LLM.Perplexity.APIKey)
	}
	if cfg.LLM.Perplexity.PreferCheapest {
		t.Error("LLM_PREFER_CHEAPEST=false not applied")
	}
	if cfg.MySQL.DB != "legal" {
		t.Errorf("MySQL.DB = %q, want legal", cfg.MySQL.DB)
	}
	if cfg.RAG.TopK != 12 {
		t.Errorf("RAG.TopK = %d, want 12", cfg.RAG.TopK)
	}
}

func TestLoadBadEnvValuesKeepDefaults(t *testing.T) {
	t.Setenv("CONFIG_FILE", filepath.Join(t.TempDir(), "missing.toml"))
	t.Setenv("APP_PORT", "not-a-number")
	t.Setenv("LLM_PREFER_CHEAPEST", "maybe")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.App.Port != 8080 {
		t.Errorf("bad APP_PORT should keep default, got %d", cfg.App.Port)
	}
	if !cfg.LLM.Perplexity.PreferCheapest {
		t.Error("bad bool should keep default true")
	}
}

func TestLoadConfigFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	toml := `
[app]
name = "filecfg"
port = 7070

[rag]
target_tokens = 150
`
	if err := os.WriteFile(path, []byte(toml), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("CONFIG_FILE", path)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.App.Name != "filecfg" || cfg.App.Port != 7070 {
		t.Errorf("file values not applied: %q/%d", cfg.App.Name, cfg.App.Port)
	}
	if cfg.RAG.TargetTokens != 150 {
		t.Errorf("RAG.TargetTokens = %d, want 150", cfg.RAG.TargetTokens)
	}
	// untouched sections keep defaults
	if cfg.RAG.TopK != 6 {
		t.Errorf("RAG.TopK = %d, want default 6", cfg.RAG.TopK)
	}
}

func TestMySQLDSN(t *testing.T) {
	cfg := defaultConfig()
	cfg.MySQL.User = "u"
	cfg.MySQL.Password = "p"
	cfg.MySQL.Host = "db"
	cfg.MySQL.Port = 3307
	cfg.MySQL.DB = "adilai"
	cfg.MySQL.Params = "parseTime=true"

	want := "u:p@tcp(db:3307)/adilai?parseTime=true"
	if got := cfg.MySQLDSN(); got != want {
		t.Errorf("MySQLDSN() = %q, want %q", got, want)
	}
}
