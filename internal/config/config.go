package config

import (
	"fmt"
	"log"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Config is the application configuration structure.
type Config struct {
	Server   ServerConfig             `yaml:"server"`
	Database DatabaseConfig           `yaml:"database"`
	NATS     NATSConfig               `yaml:"nats"`
	Networks map[string]NetworkConfig `yaml:"networks"`
	Fees     FeeConfig                `yaml:"fees"`
	Retry    RetryConfig              `yaml:"retry"`
	Admin    AdminConfig              `yaml:"admin"`
	CORS     CORSConfig               `yaml:"cors"`
}

// ServerConfig is the HTTP server configuration.
type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// DatabaseConfig is the PostgreSQL configuration.
type DatabaseConfig struct {
	DSN    string `yaml:"dsn"`
	Driver string `yaml:"driver"`
}

// NATSConfig is the event stream configuration.
type NATSConfig struct {
	URL           string `yaml:"url"`
	Timeout       int    `yaml:"timeout"` // seconds
	ReconnectWait int    `yaml:"reconnect_wait"`
	StreamName    string `yaml:"stream_name"`
	ConsumerName  string `yaml:"consumer_name"`
}

// NetworkConfig describes one destination chain and its relayer endpoint.
type NetworkConfig struct {
	ChainID         int64  `yaml:"chainId"`
	Name            string `yaml:"name"`
	RelayerEndpoint string `yaml:"relayerEndpoint"`
	CallerIdentity  string `yaml:"callerIdentity"` // identity this backend presents to the relayer
	TimeoutSeconds  int    `yaml:"timeoutSeconds"`
}

// FeeConfig holds the trade fee parameters.
type FeeConfig struct {
	PlatformFeeBps       uint32 `yaml:"platformFeeBps"`
	DefaultCreatorFeeBps uint32 `yaml:"defaultCreatorFeeBps"`
}

// RetryConfig governs fan-out leg retry/backoff.
type RetryConfig struct {
	MaxAttempts        int `yaml:"maxAttempts"`
	BaseBackoffSeconds int `yaml:"baseBackoffSeconds"`
	CheckInterval      int `yaml:"checkInterval"` // seconds between dead-letter sweeps
}

// AdminConfig is the admin API access configuration.
type AdminConfig struct {
	JWTSecret      string `yaml:"jwtSecret"`
	PasswordBcrypt string `yaml:"passwordBcrypt"`
	TOTPSecret     string `yaml:"totpSecret"`
	TokenTTLHours  int    `yaml:"tokenTtlHours"`
}

// CORSConfig configures browser origin policy.
type CORSConfig struct {
	AllowedOrigins   []string `yaml:"allowedOrigins"`
	AllowCredentials bool     `yaml:"allowCredentials"`
	MaxAge           int      `yaml:"maxAge"`
}

// AppConfig is the process-wide configuration, set by LoadConfig.
var AppConfig *Config

// LoadConfig reads the YAML config file and applies environment overrides.
// An empty path falls back to CONFIG_PATH, then ./config.yaml.
func LoadConfig(path string) error {
	if path == "" {
		path = os.Getenv("CONFIG_PATH")
	}
	if path == "" {
		path = "config.yaml"
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	applyDefaults(cfg)
	applyEnvOverrides(cfg)

	if cfg.Database.DSN == "" {
		return fmt.Errorf("database.dsn is required")
	}

	AppConfig = cfg
	log.Printf("✅ Config loaded from %s (%d networks)", path, len(cfg.Networks))
	return nil
}

func applyDefaults(cfg *Config) {
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.NATS.Timeout == 0 {
		cfg.NATS.Timeout = 10
	}
	if cfg.NATS.ReconnectWait == 0 {
		cfg.NATS.ReconnectWait = 5
	}
	if cfg.NATS.StreamName == "" {
		cfg.NATS.StreamName = "LAUNCHPAD_EVENTS"
	}
	if cfg.NATS.ConsumerName == "" {
		cfg.NATS.ConsumerName = "launchpad-backend-consumer"
	}
	if cfg.Fees.PlatformFeeBps == 0 {
		cfg.Fees.PlatformFeeBps = 100
	}
	if cfg.Retry.MaxAttempts == 0 {
		cfg.Retry.MaxAttempts = 5
	}
	if cfg.Retry.BaseBackoffSeconds == 0 {
		cfg.Retry.BaseBackoffSeconds = 10
	}
	if cfg.Retry.CheckInterval == 0 {
		cfg.Retry.CheckInterval = 30
	}
	if cfg.Admin.TokenTTLHours == 0 {
		cfg.Admin.TokenTTLHours = 24
	}
	for name, net := range cfg.Networks {
		if net.TimeoutSeconds == 0 {
			net.TimeoutSeconds = 30
			cfg.Networks[name] = net
		}
	}
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("DATABASE_DSN"); v != "" {
		cfg.Database.DSN = v
	}
	if v := os.Getenv("NATS_URL"); v != "" {
		cfg.NATS.URL = v
	}
	if v := os.Getenv("SERVER_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv("ADMIN_JWT_SECRET"); v != "" {
		cfg.Admin.JWTSecret = v
	}
	if v := os.Getenv("ADMIN_TOTP_SECRET"); v != "" {
		cfg.Admin.TOTPSecret = v
	}
}

// NetworkByChainID resolves a configured network by chain id.
func (c *Config) NetworkByChainID(chainID int64) (NetworkConfig, bool) {
	for _, net := range c.Networks {
		if net.ChainID == chainID {
			return net, true
		}
	}
	return NetworkConfig{}, false
}
