package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

// validJWTSecret meets the 32-character minimum requirement.
const validJWTSecret = "test-secret-key-at-least-32-chars!"

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	configPath := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(configPath, []byte(content), 0600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}
	return configPath
}

func TestLoad_ValidConfig(t *testing.T) {
	configPath := writeConfig(t, `
bridge:
  id: "garage"
database:
  path: "/tmp/test.db"
mqtt:
  broker:
    host: "localhost"
    port: 1883
    client_id: "test-client"
  qos: 1
hardware:
  relay16:
    enabled: true
    port: "/dev/ttyUSB1"
webhooks:
  - url: "http://hub.local/api/"
    token: "abc"
api:
  host: "0.0.0.0"
  port: 8080
security:
  jwt:
    secret: "test-secret-key-at-least-32-chars!"
`)

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Bridge.ID != "garage" {
		t.Errorf("Bridge.ID = %q, want %q", cfg.Bridge.ID, "garage")
	}
	if cfg.Database.Path != "/tmp/test.db" {
		t.Errorf("Database.Path = %q, want %q", cfg.Database.Path, "/tmp/test.db")
	}
	if cfg.Hardware.Relay16.Port != "/dev/ttyUSB1" {
		t.Errorf("Relay16.Port = %q, want %q", cfg.Hardware.Relay16.Port, "/dev/ttyUSB1")
	}
	// Unset relay fields keep their defaults.
	if cfg.Hardware.Relay16.Channels != 16 {
		t.Errorf("Relay16.Channels = %d, want 16", cfg.Hardware.Relay16.Channels)
	}
	if len(cfg.Webhooks) != 1 || cfg.Webhooks[0].Token != "abc" {
		t.Errorf("Webhooks = %+v, want one webhook with token abc", cfg.Webhooks)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load("/nonexistent/path/config.yaml")
	if err == nil {
		t.Error("Load() expected error for missing file, got nil")
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	configPath := writeConfig(t, "invalid: [yaml: content")

	_, err := Load(configPath)
	if err == nil {
		t.Error("Load() expected error for invalid YAML, got nil")
	}
}

func TestLoad_ValidationFailure(t *testing.T) {
	configPath := writeConfig(t, `
bridge:
  id: ""
api:
  enabled: false
`)

	_, err := Load(configPath)
	if err == nil {
		t.Error("Load() expected validation error for empty bridge.id, got nil")
	}
}

func validConfig() *Config {
	cfg := defaultConfig()
	cfg.Security.JWT.Secret = validJWTSecret
	return cfg
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:   "valid config",
			mutate: func(*Config) {},
		},
		{
			name:    "missing bridge ID",
			mutate:  func(c *Config) { c.Bridge.ID = "" },
			wantErr: "bridge.id",
		},
		{
			name:    "missing database path",
			mutate:  func(c *Config) { c.Database.Path = "" },
			wantErr: "database.path",
		},
		{
			name:    "invalid QoS",
			mutate:  func(c *Config) { c.MQTT.QoS = 3 },
			wantErr: "mqtt.qos",
		},
		{
			name:    "zero queue size",
			mutate:  func(c *Config) { c.Dispatcher.QueueSize = 0 },
			wantErr: "dispatcher.queue_size",
		},
		{
			name:    "zero attach timeout",
			mutate:  func(c *Config) { c.Hardware.AttachTimeout = 0 },
			wantErr: "hardware.attach_timeout",
		},
		{
			name: "relay without port",
			mutate: func(c *Config) {
				c.Hardware.Relay16.Enabled = true
				c.Hardware.Relay16.Port = ""
			},
			wantErr: "hardware.relay16.port",
		},
		{
			name: "relay with too many channels",
			mutate: func(c *Config) {
				c.Hardware.Relay16.Enabled = true
				c.Hardware.Relay16.Channels = 17
			},
			wantErr: "hardware.relay16.channels",
		},
		{
			name:    "webhook without scheme",
			mutate:  func(c *Config) { c.Webhooks = []WebhookConfig{{URL: "hub.local/api"}} },
			wantErr: "webhooks[0].url",
		},
		{
			name:    "invalid port",
			mutate:  func(c *Config) { c.API.Port = 70000 },
			wantErr: "api.port",
		},
		{
			name:   "empty JWT secret disables authentication",
			mutate: func(c *Config) { c.Security.JWT.Secret = "" },
		},
		{
			name:    "JWT secret too short",
			mutate:  func(c *Config) { c.Security.JWT.Secret = "short" },
			wantErr: "security.jwt.secret",
		},
		{
			name: "API disabled needs no secret",
			mutate: func(c *Config) {
				c.API.Enabled = false
				c.Security.JWT.Secret = ""
			},
		},
		{
			name:    "influx without URL",
			mutate:  func(c *Config) { c.InfluxDB.Enabled = true },
			wantErr: "influxdb.url",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("Validate() unexpected error = %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate() error = %v, want mention of %q", err, tt.wantErr)
			}
		})
	}
}

func TestConfig_GetTimeouts(t *testing.T) {
	cfg := &Config{
		API: APIConfig{
			Timeouts: APITimeoutConfig{
				Read:  30,
				Write: 45,
				Idle:  60,
			},
		},
		Hardware: HardwareConfig{AttachTimeout: 10},
	}

	if got := cfg.GetReadTimeout().Seconds(); got != 30 {
		t.Errorf("GetReadTimeout() = %v, want 30", got)
	}
	if got := cfg.GetWriteTimeout().Seconds(); got != 45 {
		t.Errorf("GetWriteTimeout() = %v, want 45", got)
	}
	if got := cfg.GetIdleTimeout().Seconds(); got != 60 {
		t.Errorf("GetIdleTimeout() = %v, want 60", got)
	}
	if got := cfg.GetAttachTimeout(); got != 10*time.Second {
		t.Errorf("GetAttachTimeout() = %v, want 10s", got)
	}
}

func TestApplyEnvOverrides(t *testing.T) {
	cfg := defaultConfig()

	t.Setenv("IOBRIDGE_DATABASE_PATH", "/custom/path.db")
	t.Setenv("IOBRIDGE_MQTT_HOST", "mqtt.example.com")
	t.Setenv("IOBRIDGE_MQTT_USERNAME", "testuser")
	t.Setenv("IOBRIDGE_MQTT_PASSWORD", "testpass")
	t.Setenv("IOBRIDGE_RELAY16_PORT", "/dev/ttyACM0")
	t.Setenv("IOBRIDGE_WEBHOOK_URL", "https://hub.example.com/")
	t.Setenv("IOBRIDGE_WEBHOOK_TOKEN", "hook-token")
	t.Setenv("IOBRIDGE_INFLUXDB_TOKEN", "secret-token")
	t.Setenv("IOBRIDGE_JWT_SECRET", "jwt-secret")

	applyEnvOverrides(cfg)

	if cfg.Database.Path != "/custom/path.db" {
		t.Errorf("Database.Path = %q, want %q", cfg.Database.Path, "/custom/path.db")
	}
	if cfg.MQTT.Broker.Host != "mqtt.example.com" {
		t.Errorf("MQTT.Broker.Host = %q, want %q", cfg.MQTT.Broker.Host, "mqtt.example.com")
	}
	if cfg.MQTT.Auth.Username != "testuser" {
		t.Errorf("MQTT.Auth.Username = %q, want %q", cfg.MQTT.Auth.Username, "testuser")
	}
	if cfg.MQTT.Auth.Password != "testpass" {
		t.Errorf("MQTT.Auth.Password = %q, want %q", cfg.MQTT.Auth.Password, "testpass")
	}
	if cfg.Hardware.Relay16.Port != "/dev/ttyACM0" {
		t.Errorf("Relay16.Port = %q, want %q", cfg.Hardware.Relay16.Port, "/dev/ttyACM0")
	}
	if len(cfg.Webhooks) != 1 || cfg.Webhooks[0].URL != "https://hub.example.com/" || cfg.Webhooks[0].Token != "hook-token" {
		t.Errorf("Webhooks = %+v, want env webhook", cfg.Webhooks)
	}
	if cfg.InfluxDB.Token != "secret-token" {
		t.Errorf("InfluxDB.Token = %q, want %q", cfg.InfluxDB.Token, "secret-token")
	}
	if cfg.Security.JWT.Secret != "jwt-secret" {
		t.Errorf("Security.JWT.Secret = %q, want %q", cfg.Security.JWT.Secret, "jwt-secret")
	}
}

func TestApplyEnvOverrides_LegacyBrokerVariables(t *testing.T) {
	cfg := defaultConfig()

	t.Setenv("MQTT_BROKER", "broker.lan")
	t.Setenv("MQTT_PORT", "8883")
	t.Setenv("MQTT_USER", "legacy")
	t.Setenv("MQTT_PASSWORD", "legacy-pass")

	applyEnvOverrides(cfg)

	if cfg.MQTT.Broker.Host != "broker.lan" {
		t.Errorf("MQTT.Broker.Host = %q, want %q", cfg.MQTT.Broker.Host, "broker.lan")
	}
	if cfg.MQTT.Broker.Port != 8883 {
		t.Errorf("MQTT.Broker.Port = %d, want 8883", cfg.MQTT.Broker.Port)
	}
	if cfg.MQTT.Auth.Username != "legacy" || cfg.MQTT.Auth.Password != "legacy-pass" {
		t.Errorf("MQTT.Auth = %+v, want legacy credentials", cfg.MQTT.Auth)
	}
}

func TestApplyEnvOverrides_PrefixedWinsOverLegacy(t *testing.T) {
	cfg := defaultConfig()

	t.Setenv("MQTT_BROKER", "legacy.lan")
	t.Setenv("IOBRIDGE_MQTT_HOST", "prefixed.lan")

	applyEnvOverrides(cfg)

	if cfg.MQTT.Broker.Host != "prefixed.lan" {
		t.Errorf("MQTT.Broker.Host = %q, want %q", cfg.MQTT.Broker.Host, "prefixed.lan")
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := defaultConfig()

	if cfg.Bridge.ID == "" {
		t.Error("defaultConfig should have non-empty Bridge.ID")
	}
	if cfg.Dispatcher.QueueSize != 100 {
		t.Errorf("defaultConfig Dispatcher.QueueSize = %d, want 100", cfg.Dispatcher.QueueSize)
	}
	if cfg.Hardware.AttachTimeout != 10 {
		t.Errorf("defaultConfig Hardware.AttachTimeout = %d, want 10", cfg.Hardware.AttachTimeout)
	}
	if len(cfg.Hardware.GPIO.InputPins) != 17 {
		t.Errorf("defaultConfig GPIO.InputPins has %d pins, want 17", len(cfg.Hardware.GPIO.InputPins))
	}
	if cfg.MQTT.Broker.Port != 1883 {
		t.Errorf("defaultConfig MQTT.Broker.Port = %d, want 1883", cfg.MQTT.Broker.Port)
	}
}
