package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration structure for the I/O bridge.
// All configuration is loaded from YAML and can be overridden by environment variables.
type Config struct {
	Bridge     BridgeConfig     `yaml:"bridge"`
	Database   DatabaseConfig   `yaml:"database"`
	MQTT       MQTTConfig       `yaml:"mqtt"`
	Hardware   HardwareConfig   `yaml:"hardware"`
	Dispatcher DispatcherConfig `yaml:"dispatcher"`
	Webhooks   []WebhookConfig  `yaml:"webhooks"`
	API        APIConfig        `yaml:"api"`
	WebSocket  WebSocketConfig  `yaml:"websocket"`
	InfluxDB   InfluxDBConfig   `yaml:"influxdb"`
	Logging    LoggingConfig    `yaml:"logging"`
	Security   SecurityConfig   `yaml:"security"`
}

// BridgeConfig identifies this bridge instance.
type BridgeConfig struct {
	ID   string `yaml:"id"`
	Name string `yaml:"name"`
}

// DatabaseConfig contains SQLite database settings for the output policy store.
type DatabaseConfig struct {
	Path        string `yaml:"path"`
	WALMode     bool   `yaml:"wal_mode"`
	BusyTimeout int    `yaml:"busy_timeout"`
}

// MQTTConfig contains MQTT broker connection settings.
type MQTTConfig struct {
	Enabled        bool                `yaml:"enabled"`
	Broker         MQTTBrokerConfig    `yaml:"broker"`
	Auth           MQTTAuthConfig      `yaml:"auth"`
	QoS            int                 `yaml:"qos"`
	Reconnect      MQTTReconnectConfig `yaml:"reconnect"`
	Discovery      DiscoveryConfig     `yaml:"discovery"`
	HealthInterval int                 `yaml:"health_interval"` // seconds
}

// MQTTBrokerConfig contains MQTT broker connection details.
type MQTTBrokerConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	TLS      bool   `yaml:"tls"`
	ClientID string `yaml:"client_id"`
}

// MQTTAuthConfig contains MQTT authentication credentials.
type MQTTAuthConfig struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// MQTTReconnectConfig contains MQTT reconnection settings.
type MQTTReconnectConfig struct {
	InitialDelay int `yaml:"initial_delay"`
	MaxDelay     int `yaml:"max_delay"`
	MaxAttempts  int `yaml:"max_attempts"`
}

// DiscoveryConfig controls Home Assistant MQTT discovery publication.
type DiscoveryConfig struct {
	Enabled bool   `yaml:"enabled"`
	Prefix  string `yaml:"prefix"`
}

// HardwareConfig selects and configures the channel source backends.
// Every enabled backend is started; a bridge may drive GPIO inputs and a
// relay board at the same time.
type HardwareConfig struct {
	// AttachTimeout bounds how long opening a newly attached channel may take (seconds).
	AttachTimeout int             `yaml:"attach_timeout"`
	GPIO          GPIOConfig      `yaml:"gpio"`
	Relay16       Relay16Config   `yaml:"relay16"`
	Simulated     SimulatedConfig `yaml:"simulated"`
}

// GPIOConfig contains Raspberry Pi GPIO backend settings.
type GPIOConfig struct {
	Enabled  bool   `yaml:"enabled"`
	DeviceID string `yaml:"device_id"` // empty: derived from the CPU serial

	// InputPins and OutputPins are BCM pin numbers, also used as channel indexes.
	InputPins  []int `yaml:"input_pins"`
	OutputPins []int `yaml:"output_pins"`
	PullUp     bool  `yaml:"pull_up"`

	// PollInterval is the edge detection poll period in milliseconds.
	PollInterval int `yaml:"poll_interval"`
}

// Relay16Config contains SainSmart 16-channel USB relay settings.
type Relay16Config struct {
	Enabled  bool   `yaml:"enabled"`
	DeviceID string `yaml:"device_id"` // empty: derived from the CPU serial
	Port     string `yaml:"port"`
	BaudRate int    `yaml:"baud_rate"`
	Channels int    `yaml:"channels"`
}

// SimulatedConfig configures the in-memory board used for development.
type SimulatedConfig struct {
	Enabled  bool   `yaml:"enabled"`
	DeviceID string `yaml:"device_id"`
	Inputs   int    `yaml:"inputs"`
	Outputs  int    `yaml:"outputs"`
}

// DispatcherConfig controls the asynchronous notification queue.
type DispatcherConfig struct {
	QueueSize       int `yaml:"queue_size"`
	DeliveryTimeout int `yaml:"delivery_timeout"` // seconds per delivery attempt
	DrainTimeout    int `yaml:"drain_timeout"`    // seconds spent flushing on shutdown
}

// WebhookConfig is one HTTP consumer of state notifications.
type WebhookConfig struct {
	URL        string `yaml:"url"`
	Token      string `yaml:"token"`
	AuthScheme string `yaml:"auth_scheme"`
}

// APIConfig contains HTTP API server settings.
type APIConfig struct {
	Enabled  bool             `yaml:"enabled"`
	Host     string           `yaml:"host"`
	Port     int              `yaml:"port"`
	TLS      TLSConfig        `yaml:"tls"`
	Timeouts APITimeoutConfig `yaml:"timeouts"`
	CORS     CORSConfig       `yaml:"cors"`
}

// TLSConfig contains TLS certificate settings.
type TLSConfig struct {
	Enabled  bool   `yaml:"enabled"`
	CertFile string `yaml:"cert_file"`
	KeyFile  string `yaml:"key_file"`
}

// APITimeoutConfig contains HTTP timeout settings.
type APITimeoutConfig struct {
	Read  int `yaml:"read"`
	Write int `yaml:"write"`
	Idle  int `yaml:"idle"`
}

// CORSConfig contains Cross-Origin Resource Sharing settings.
type CORSConfig struct {
	AllowedOrigins []string `yaml:"allowed_origins"`
}

// WebSocketConfig contains WebSocket server settings.
type WebSocketConfig struct {
	Path           string `yaml:"path"`
	MaxMessageSize int    `yaml:"max_message_size"`
	PingInterval   int    `yaml:"ping_interval"`
	PongTimeout    int    `yaml:"pong_timeout"`
}

// InfluxDBConfig contains InfluxDB connection settings for channel state history.
type InfluxDBConfig struct {
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

// SecurityConfig contains security settings.
type SecurityConfig struct {
	JWT JWTConfig `yaml:"jwt"`
}

// JWTConfig contains the HMAC secret used to verify API bearer tokens.
type JWTConfig struct {
	Secret string `yaml:"secret"`
	Issuer string `yaml:"issuer"`
}

// Load reads configuration from a YAML file and applies environment variable overrides.
//
// The configuration loading order is:
//  1. Default values (hardcoded)
//  2. YAML file values (override defaults)
//  3. Environment variables (override file values)
//
// Environment variables follow the pattern: IOBRIDGE_SECTION_KEY
// For example: IOBRIDGE_DATABASE_PATH, IOBRIDGE_MQTT_HOST. The unprefixed
// MQTT_BROKER, MQTT_PORT, MQTT_USER and MQTT_PASSWORD variables used by
// existing deployments are honoured as well.
//
// Parameters:
//   - path: Path to the YAML configuration file
//
// Returns:
//   - *Config: Loaded and validated configuration
//   - error: If file cannot be read, parsed, or validation fails
func Load(path string) (*Config, error) {
	cfg := defaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// defaultConfig returns a Config with sensible defaults.
func defaultConfig() *Config {
	return &Config{
		Bridge: BridgeConfig{
			ID:   "iobridge",
			Name: "Gray Logic I/O Bridge",
		},
		Database: DatabaseConfig{
			Path:        "./data/iobridge.db",
			WALMode:     true,
			BusyTimeout: 5,
		},
		MQTT: MQTTConfig{
			Enabled: true,
			Broker: MQTTBrokerConfig{
				Host:     "localhost",
				Port:     1883,
				ClientID: "iobridge",
			},
			QoS: 1,
			Reconnect: MQTTReconnectConfig{
				InitialDelay: 1,
				MaxDelay:     60,
			},
			Discovery: DiscoveryConfig{
				Enabled: true,
				Prefix:  "homeassistant",
			},
			HealthInterval: 30,
		},
		Hardware: HardwareConfig{
			AttachTimeout: 10,
			GPIO: GPIOConfig{
				InputPins:    []int{2, 3, 4, 14, 15, 17, 18, 27, 22, 23, 24, 10, 9, 25, 11, 8, 7},
				PullUp:       true,
				PollInterval: 20,
			},
			Relay16: Relay16Config{
				Port:     "/dev/ttyUSB0",
				BaudRate: 9600,
				Channels: 16,
			},
			Simulated: SimulatedConfig{
				DeviceID: "sim",
				Inputs:   4,
				Outputs:  4,
			},
		},
		Dispatcher: DispatcherConfig{
			QueueSize:       100,
			DeliveryTimeout: 10,
			DrainTimeout:    2,
		},
		API: APIConfig{
			Enabled: true,
			Host:    "0.0.0.0",
			Port:    8080,
			Timeouts: APITimeoutConfig{
				Read:  30,
				Write: 30,
				Idle:  60,
			},
		},
		WebSocket: WebSocketConfig{
			Path:           "/ws",
			MaxMessageSize: 8192,
			PingInterval:   30,
			PongTimeout:    10,
		},
		InfluxDB: InfluxDBConfig{
			BatchSize:     100,
			FlushInterval: 10,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
		Security: SecurityConfig{
			JWT: JWTConfig{
				Issuer: "iobridge",
			},
		},
	}
}

// applyEnvOverrides applies environment variable overrides to the configuration.
func applyEnvOverrides(cfg *Config) {
	// Legacy broker variables first so the prefixed ones win.
	if v := os.Getenv("MQTT_BROKER"); v != "" {
		cfg.MQTT.Broker.Host = v
	}
	if v := os.Getenv("MQTT_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.MQTT.Broker.Port = port
		}
	}
	if v := os.Getenv("MQTT_USER"); v != "" {
		cfg.MQTT.Auth.Username = v
	}
	if v := os.Getenv("MQTT_PASSWORD"); v != "" {
		cfg.MQTT.Auth.Password = v
	}

	// Database
	if v := os.Getenv("IOBRIDGE_DATABASE_PATH"); v != "" {
		cfg.Database.Path = v
	}

	// MQTT
	if v := os.Getenv("IOBRIDGE_MQTT_HOST"); v != "" {
		cfg.MQTT.Broker.Host = v
	}
	if v := os.Getenv("IOBRIDGE_MQTT_USERNAME"); v != "" {
		cfg.MQTT.Auth.Username = v
	}
	if v := os.Getenv("IOBRIDGE_MQTT_PASSWORD"); v != "" {
		cfg.MQTT.Auth.Password = v
	}

	// Hardware
	if v := os.Getenv("IOBRIDGE_RELAY16_PORT"); v != "" {
		cfg.Hardware.Relay16.Port = v
	}

	// Webhooks: a single consumer can be declared entirely from the environment.
	if v := os.Getenv("IOBRIDGE_WEBHOOK_URL"); v != "" {
		cfg.Webhooks = append(cfg.Webhooks, WebhookConfig{
			URL:   v,
			Token: os.Getenv("IOBRIDGE_WEBHOOK_TOKEN"),
		})
	}

	// API
	if v := os.Getenv("IOBRIDGE_API_HOST"); v != "" {
		cfg.API.Host = v
	}

	// InfluxDB
	if v := os.Getenv("IOBRIDGE_INFLUXDB_TOKEN"); v != "" {
		cfg.InfluxDB.Token = v
	}

	// Security
	if v := os.Getenv("IOBRIDGE_JWT_SECRET"); v != "" {
		cfg.Security.JWT.Secret = v
	}
}

// Validate checks the configuration for errors and security issues.
//
// Returns:
//   - error: Description of validation failure, or nil if valid
func (c *Config) Validate() error {
	var errs []string

	if c.Bridge.ID == "" {
		errs = append(errs, "bridge.id is required")
	}

	if c.Database.Path == "" {
		errs = append(errs, "database.path is required")
	}

	if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
		errs = append(errs, "mqtt.qos must be 0, 1, or 2")
	}

	if c.Dispatcher.QueueSize < 1 {
		errs = append(errs, "dispatcher.queue_size must be at least 1")
	}

	if c.Hardware.AttachTimeout < 1 {
		errs = append(errs, "hardware.attach_timeout must be at least 1 second")
	}
	if c.Hardware.Relay16.Enabled {
		if c.Hardware.Relay16.Port == "" {
			errs = append(errs, "hardware.relay16.port is required when relay16 is enabled")
		}
		if c.Hardware.Relay16.Channels < 1 || c.Hardware.Relay16.Channels > 16 {
			errs = append(errs, "hardware.relay16.channels must be between 1 and 16")
		}
	}
	if c.Hardware.Simulated.Enabled && c.Hardware.Simulated.DeviceID == "" {
		errs = append(errs, "hardware.simulated.device_id is required when simulated is enabled")
	}

	for i, wh := range c.Webhooks {
		if !strings.HasPrefix(wh.URL, "http://") && !strings.HasPrefix(wh.URL, "https://") {
			errs = append(errs, fmt.Sprintf("webhooks[%d].url must be an http(s) URL", i))
		}
	}

	if c.API.Enabled {
		if c.API.Port < 1 || c.API.Port > 65535 {
			errs = append(errs, "api.port must be between 1 and 65535")
		}

		// An empty secret serves the API without authentication; the server
		// logs a warning at start.
		const minJWTSecretLength = 32
		if s := c.Security.JWT.Secret; s != "" && len(s) < minJWTSecretLength {
			errs = append(errs, "security.jwt.secret must be at least 32 characters for adequate security")
		}
	}

	if c.InfluxDB.Enabled && c.InfluxDB.URL == "" {
		errs = append(errs, "influxdb.url is required when influxdb is enabled")
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}

	return nil
}

// GetReadTimeout returns the API read timeout as a Duration.
func (c *Config) GetReadTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Read) * time.Second
}

// GetWriteTimeout returns the API write timeout as a Duration.
func (c *Config) GetWriteTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Write) * time.Second
}

// GetIdleTimeout returns the API idle timeout as a Duration.
func (c *Config) GetIdleTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Idle) * time.Second
}

// GetAttachTimeout returns the channel attach wait as a Duration.
func (c *Config) GetAttachTimeout() time.Duration {
	return time.Duration(c.Hardware.AttachTimeout) * time.Second
}
