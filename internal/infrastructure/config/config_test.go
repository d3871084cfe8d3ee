package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	configPath := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(configPath, []byte(content), 0600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}
	return configPath
}

const validConfig = `
account:
  username: "user@example.com"
  password_hash: "5f4dcc3b5aa765d61d8327deb882cf99"
  country: "DE"
device:
  id: "E0001234"
  class: "yna5xi"
  resource: "rGeX"
`

func TestLoad_ValidConfig(t *testing.T) {
	cfg, err := Load(writeConfig(t, validConfig))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Account.Username != "user@example.com" {
		t.Errorf("Account.Username = %q, want %q", cfg.Account.Username, "user@example.com")
	}
	if cfg.Device.Class != "yna5xi" {
		t.Errorf("Device.Class = %q, want %q", cfg.Device.Class, "yna5xi")
	}

	// Defaults fill in what the file leaves out.
	if cfg.Portal.RequestTimeout != 60 {
		t.Errorf("Portal.RequestTimeout = %d, want default 60", cfg.Portal.RequestTimeout)
	}
	if cfg.Device.DataType != "j" {
		t.Errorf("Device.DataType = %q, want default j", cfg.Device.DataType)
	}
	if cfg.History.Retain != 200 {
		t.Errorf("History.Retain = %d, want default 200", cfg.History.Retain)
	}
	if cfg.Logging.Level != "info" {
		t.Errorf("Logging.Level = %q, want default info", cfg.Logging.Level)
	}
}

func TestLoad_GeneratesClientID(t *testing.T) {
	cfg, err := Load(writeConfig(t, validConfig))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Account.ClientID == "" {
		t.Error("Account.ClientID not generated")
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("ECOLINK_ACCOUNT_COUNTRY", "US")
	t.Setenv("ECOLINK_DEVICE_ID", "E0009999")

	cfg, err := Load(writeConfig(t, validConfig))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Account.Country != "US" {
		t.Errorf("Account.Country = %q, want env override US", cfg.Account.Country)
	}
	if cfg.Device.ID != "E0009999" {
		t.Errorf("Device.ID = %q, want env override E0009999", cfg.Device.ID)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	if _, err := Load("/nonexistent/path/config.yaml"); err == nil {
		t.Error("Load() expected error for missing file, got nil")
	}
}

func TestLoad_ValidationFailure(t *testing.T) {
	content := `
account:
  username: ""
device:
  id: "E0001234"
`
	if _, err := Load(writeConfig(t, content)); err == nil {
		t.Error("Load() expected validation error, got nil")
	}
}

func TestLoad_RejectsBadDataType(t *testing.T) {
	content := `
account:
  username: "user@example.com"
  password_hash: "5f4dcc3b5aa765d61d8327deb882cf99"
  country: "DE"
device:
  id: "E0001234"
  class: "yna5xi"
  data_type: "z"
`
	if _, err := Load(writeConfig(t, content)); err == nil {
		t.Error("Load() expected error for unknown data type, got nil")
	}
}

func TestDurationAccessors(t *testing.T) {
	cfg, err := Load(writeConfig(t, validConfig))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if got := cfg.GetRequestTimeout(); got != 60*time.Second {
		t.Errorf("GetRequestTimeout() = %v, want 60s", got)
	}
	if got := cfg.GetReconnectDelay(); got != 5*time.Second {
		t.Errorf("GetReconnectDelay() = %v, want 5s", got)
	}
	if got := cfg.GetMaxReconnectDelay(); got != 60*time.Second {
		t.Errorf("GetMaxReconnectDelay() = %v, want 60s", got)
	}
}
