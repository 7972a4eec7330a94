package config

import "testing"

func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost:5432/payments")
	t.Setenv("INTERNAL_API_KEY", "test-key")

	cfg, err := LoadConfig(t.TempDir())
	if err != nil {
		t.Fatalf("LoadConfig returned error: %v", err)
	}
	if cfg.ServerPort != "8080" {
		t.Errorf("ServerPort = %q, want default 8080", cfg.ServerPort)
	}
	if cfg.DwollaAPIBaseURL != "https://api-sandbox.dwolla.com" {
		t.Errorf("DwollaAPIBaseURL = %q, want sandbox default", cfg.DwollaAPIBaseURL)
	}
	if cfg.TransferPollSchedule != "*/5 * * * *" {
		t.Errorf("TransferPollSchedule = %q, want default */5 * * * *", cfg.TransferPollSchedule)
	}
	if cfg.TransferPollBatchSize != 100 {
		t.Errorf("TransferPollBatchSize = %d, want default 100", cfg.TransferPollBatchSize)
	}
	if cfg.DatabaseURL != "postgres://localhost:5432/payments" {
		t.Errorf("DatabaseURL = %q, want env value", cfg.DatabaseURL)
	}
	if cfg.InternalAPIKey != "test-key" {
		t.Errorf("InternalAPIKey = %q, want env value", cfg.InternalAPIKey)
	}
}

func TestLoadConfigEnvOverrides(t *testing.T) {
	t.Setenv("SERVER_PORT", "9090")
	t.Setenv("DWOLLA_API_BASE_URL", "https://api.dwolla.com")
	t.Setenv("WEBHOOK_BASE_URL", "https://payments.example.com/")

	cfg, err := LoadConfig(t.TempDir())
	if err != nil {
		t.Fatalf("LoadConfig returned error: %v", err)
	}
	if cfg.ServerPort != "9090" {
		t.Errorf("ServerPort = %q, want 9090", cfg.ServerPort)
	}
	if cfg.DwollaAPIBaseURL != "https://api.dwolla.com" {
		t.Errorf("DwollaAPIBaseURL = %q, want override", cfg.DwollaAPIBaseURL)
	}
	if got := cfg.WebhookEndpointURL(); got != "https://payments.example.com/api/dwolla/webhook" {
		t.Errorf("WebhookEndpointURL() = %q", got)
	}
}

func TestLoadConfigPortEnvWins(t *testing.T) {
	t.Setenv("SERVER_PORT", "9090")
	t.Setenv("PORT", "7070")

	cfg, err := LoadConfig(t.TempDir())
	if err != nil {
		t.Fatalf("LoadConfig returned error: %v", err)
	}
	if cfg.ServerPort != "7070" {
		t.Errorf("ServerPort = %q, want platform PORT to win", cfg.ServerPort)
	}
}
