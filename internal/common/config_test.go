package common

import (
	"testing"
	"time"
)

func TestLoadConfigDefaults(t *testing.T) {
	cfg := LoadConfig()

	if cfg.Server.Addr != ":8000" {
		t.Errorf("Addr = %q", cfg.Server.Addr)
	}
	if cfg.Storage.Bucket != "bill-images" {
		t.Errorf("Bucket = %q", cfg.Storage.Bucket)
	}
	if cfg.LLM.Model != "gemma3:4b" {
		t.Errorf("Model = %q", cfg.LLM.Model)
	}
	if cfg.LLM.Timeout != 90*time.Second {
		t.Errorf("LLM timeout = %v", cfg.LLM.Timeout)
	}
	if cfg.Pipeline.Workers != 4 || cfg.Pipeline.QueueSize != 256 {
		t.Errorf("pipeline = %d workers / %d queue", cfg.Pipeline.Workers, cfg.Pipeline.QueueSize)
	}
	if cfg.Notify.DashboardURL != "" {
		t.Errorf("DashboardURL = %q, want disabled by default", cfg.Notify.DashboardURL)
	}

	if err := cfg.Validate(); err != nil {
		t.Errorf("default config must validate: %v", err)
	}
}

func TestLoadConfigEnvOverrides(t *testing.T) {
	t.Setenv("API_ADDR", ":9999")
	t.Setenv("LLM_MODEL", "llama3:8b")
	t.Setenv("PIPELINE_WORKERS", "8")
	t.Setenv("MINIO_SECURE", "true")
	t.Setenv("LLM_TIMEOUT", "2m")

	cfg := LoadConfig()

	if cfg.Server.Addr != ":9999" {
		t.Errorf("Addr = %q", cfg.Server.Addr)
	}
	if cfg.LLM.Model != "llama3:8b" {
		t.Errorf("Model = %q", cfg.LLM.Model)
	}
	if cfg.Pipeline.Workers != 8 {
		t.Errorf("Workers = %d", cfg.Pipeline.Workers)
	}
	if !cfg.Storage.UseSSL {
		t.Error("UseSSL not overridden")
	}
	if cfg.LLM.Timeout != 2*time.Minute {
		t.Errorf("LLM timeout = %v", cfg.LLM.Timeout)
	}
}

func TestLoadConfigBadValuesFallBack(t *testing.T) {
	t.Setenv("PIPELINE_WORKERS", "many")
	t.Setenv("LLM_TIMEOUT", "soon")
	t.Setenv("MINIO_SECURE", "yes please")

	cfg := LoadConfig()

	if cfg.Pipeline.Workers != 4 {
		t.Errorf("Workers = %d, want default on parse failure", cfg.Pipeline.Workers)
	}
	if cfg.LLM.Timeout != 90*time.Second {
		t.Errorf("LLM timeout = %v, want default on parse failure", cfg.LLM.Timeout)
	}
	if cfg.Storage.UseSSL {
		t.Error("UseSSL = true, want default on parse failure")
	}
}

func TestValidateRejectsBadConfig(t *testing.T) {
	cfg := LoadConfig()
	cfg.Pipeline.Workers = 0
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected validation error for zero workers")
	}

	cfg = LoadConfig()
	cfg.Database.DSN = ""
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected validation error for empty DSN")
	}
}
