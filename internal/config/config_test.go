package config

import "testing"

func TestLoadAppliesDefaults(t *testing.T) {
	configViper := NewViper()
	configViper.Set("backend.base_url", "https://api.example.test")

	cfg, err := Load(configViper)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.HTTPAddress != defaultHTTPAddress {
		t.Fatalf("expected default listen address, got %q", cfg.HTTPAddress)
	}
	if cfg.DatabasePath != defaultDatabasePath {
		t.Fatalf("expected default database path, got %q", cfg.DatabasePath)
	}
	if cfg.LogLevel != defaultLogLevel {
		t.Fatalf("expected default log level, got %q", cfg.LogLevel)
	}
	if cfg.ProbeURL != "https://api.example.test" {
		t.Fatalf("expected probe url to fall back to the backend url, got %q", cfg.ProbeURL)
	}
}

func TestLoadRequiresBackendBaseURL(t *testing.T) {
	if _, err := Load(NewViper()); err == nil {
		t.Fatalf("expected error for missing backend url")
	}
}

func TestLoadRequiresDatabasePath(t *testing.T) {
	configViper := NewViper()
	configViper.Set("backend.base_url", "https://api.example.test")
	configViper.Set("database.path", "  ")
	if _, err := Load(configViper); err == nil {
		t.Fatalf("expected error for blank database path")
	}
}
