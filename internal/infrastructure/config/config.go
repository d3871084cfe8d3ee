package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"
)

// Config is the root configuration structure for Ecolink Core.
// All configuration is loaded from YAML and can be overridden by environment variables.
type Config struct {
	Account   AccountConfig   `yaml:"account"`
	Portal    PortalConfig    `yaml:"portal"`
	Device    DeviceConfig    `yaml:"device"`
	MQTT      MQTTConfig      `yaml:"mqtt"`
	History   HistoryConfig   `yaml:"history"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// AccountConfig contains the cloud account credentials.
//
// PasswordHash is the md5 hex digest of the account password; the clear
// password is never stored or sent.
type AccountConfig struct {
	Username     string `yaml:"username"`
	PasswordHash string `yaml:"password_hash"`
	Country      string `yaml:"country"`

	// ClientID identifies this client instance towards the cloud.
	// Generated once if left empty.
	ClientID string `yaml:"client_id"`
}

// PortalConfig contains the REST portal connection settings.
type PortalConfig struct {
	// URLOverride points the client at a self-hosted portal
	// (e.g. a Bumper instance). Empty means the official portal
	// derived from the account country.
	URLOverride string `yaml:"url_override"`

	// RequestTimeout is the fixed timeout for portal calls in seconds.
	RequestTimeout int `yaml:"request_timeout"`
}

// DeviceConfig identifies the target appliance.
type DeviceConfig struct {
	ID       string `yaml:"id"`
	Class    string `yaml:"class"`
	Resource string `yaml:"resource"`

	// DataType selects the payload encoding the device speaks:
	// "j" for JSON models, "x" for the older XML models.
	DataType string `yaml:"data_type"`
}

// MQTTConfig contains MQTT broker connection settings.
type MQTTConfig struct {
	// URLOverride replaces the broker derived from the account country.
	// Scheme must be mqtt:// or mqtts://.
	URLOverride string `yaml:"url_override"`

	QoS       int                 `yaml:"qos"`
	Reconnect MQTTReconnectConfig `yaml:"reconnect"`
}

// MQTTReconnectConfig contains MQTT reconnection settings.
type MQTTReconnectConfig struct {
	InitialDelay int `yaml:"initial_delay"`
	MaxDelay     int `yaml:"max_delay"`
}

// HistoryConfig contains the SQLite event history settings.
type HistoryConfig struct {
	Enabled     bool   `yaml:"enabled"`
	Path        string `yaml:"path"`
	BusyTimeout int    `yaml:"busy_timeout"`

	// Retain is the number of entries kept per event kind.
	Retain int `yaml:"retain"`
}

// TelemetryConfig contains InfluxDB metric sink settings.
type TelemetryConfig struct {
	Enabled       bool   `yaml:"enabled"`
	URL           string `yaml:"url"`
	Token         string `yaml:"token"`
	Org           string `yaml:"org"`
	Bucket        string `yaml:"bucket"`
	BatchSize     int    `yaml:"batch_size"`
	FlushInterval int    `yaml:"flush_interval"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// Load reads configuration from a YAML file and applies environment variable overrides.
//
// The configuration loading order is:
//  1. Default values (hardcoded)
//  2. YAML file values (override defaults)
//  3. Environment variables (override file values)
//
// Environment variables follow the pattern: ECOLINK_SECTION_KEY
// For example: ECOLINK_ACCOUNT_USERNAME, ECOLINK_PORTAL_URL
//
// Parameters:
//   - path: Path to the YAML configuration file
//
// Returns:
//   - *Config: Loaded and validated configuration
//   - error: If file cannot be read, parsed, or validation fails
func Load(path string) (*Config, error) {
	// Start with defaults
	cfg := defaultConfig()

	// Read and parse YAML file
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	// Apply environment variable overrides
	applyEnvOverrides(cfg)

	// A stable client id is required for the MQTT session; generate one
	// if the file does not carry it yet.
	if cfg.Account.ClientID == "" {
		cfg.Account.ClientID = uuid.NewString()
	}

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// defaultConfig returns a Config with sensible defaults.
func defaultConfig() *Config {
	return &Config{
		Account: AccountConfig{
			Country: "IT",
		},
		Portal: PortalConfig{
			RequestTimeout: 60,
		},
		Device: DeviceConfig{
			DataType: "j",
		},
		MQTT: MQTTConfig{
			QoS: 0,
			Reconnect: MQTTReconnectConfig{
				InitialDelay: 5,
				MaxDelay:     60,
			},
		},
		History: HistoryConfig{
			Path:        "./data/ecolink.db",
			BusyTimeout: 5,
			Retain:      200,
		},
		Telemetry: TelemetryConfig{
			BatchSize:     20,
			FlushInterval: 10,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
	}
}

// applyEnvOverrides applies environment variable overrides to the configuration.
// Environment variables follow the pattern: ECOLINK_SECTION_KEY
func applyEnvOverrides(cfg *Config) {
	// Account
	if v := os.Getenv("ECOLINK_ACCOUNT_USERNAME"); v != "" {
		cfg.Account.Username = v
	}
	if v := os.Getenv("ECOLINK_ACCOUNT_PASSWORD_HASH"); v != "" {
		cfg.Account.PasswordHash = v
	}
	if v := os.Getenv("ECOLINK_ACCOUNT_COUNTRY"); v != "" {
		cfg.Account.Country = v
	}

	// Portal / MQTT endpoints
	if v := os.Getenv("ECOLINK_PORTAL_URL"); v != "" {
		cfg.Portal.URLOverride = v
	}
	if v := os.Getenv("ECOLINK_MQTT_URL"); v != "" {
		cfg.MQTT.URLOverride = v
	}

	// Device
	if v := os.Getenv("ECOLINK_DEVICE_ID"); v != "" {
		cfg.Device.ID = v
	}

	// Telemetry
	if v := os.Getenv("ECOLINK_TELEMETRY_TOKEN"); v != "" {
		cfg.Telemetry.Token = v
	}
}

// Validate checks the configuration for errors.
//
// Returns:
//   - error: Description of validation failure, or nil if valid
func (c *Config) Validate() error {
	var errs []string

	// Account validation
	if c.Account.Username == "" {
		errs = append(errs, "account.username is required")
	}
	if c.Account.PasswordHash == "" {
		errs = append(errs, "account.password_hash is required (set ECOLINK_ACCOUNT_PASSWORD_HASH environment variable)")
	}
	if len(c.Account.Country) != 2 {
		errs = append(errs, "account.country must be a two-letter country code")
	}

	// Device validation
	if c.Device.ID == "" {
		errs = append(errs, "device.id is required")
	}
	if c.Device.Class == "" {
		errs = append(errs, "device.class is required")
	}
	if c.Device.DataType != "j" && c.Device.DataType != "x" {
		errs = append(errs, `device.data_type must be "j" or "x"`)
	}

	// MQTT validation
	if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
		errs = append(errs, "mqtt.qos must be 0, 1, or 2")
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}

	return nil
}

// GetRequestTimeout returns the portal request timeout as a Duration.
func (c *Config) GetRequestTimeout() time.Duration {
	return time.Duration(c.Portal.RequestTimeout) * time.Second
}

// GetReconnectDelay returns the initial MQTT reconnect delay as a Duration.
func (c *Config) GetReconnectDelay() time.Duration {
	return time.Duration(c.MQTT.Reconnect.InitialDelay) * time.Second
}

// GetMaxReconnectDelay returns the maximum MQTT reconnect delay as a Duration.
func (c *Config) GetMaxReconnectDelay() time.Duration {
	return time.Duration(c.MQTT.Reconnect.MaxDelay) * time.Second
}
