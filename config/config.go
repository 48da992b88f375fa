// Package config loads wallet client configuration from an optional YAML
// file and WALLET_* environment variables. Environment variables take
// precedence over file values.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	pkgerrors "github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"github.com/stellar/go/network"
	"gopkg.in/yaml.v3"

	"github.com/marwen-abid/stellar-wallet-go/core/net"
	"github.com/marwen-abid/stellar-wallet-go/errors"
)

// Network names accepted in configuration.
const (
	NetworkPublic  = "public"
	NetworkTestnet = "testnet"
	NetworkCustom  = "custom"
)

// Ambiguous destination lookup policies.
const (
	AmbiguousFail   = "fail"
	AmbiguousCreate = "create"
)

// Config holds all settings for a wallet client.
type Config struct {
	// Network selects the Horizon endpoint and passphrase: public, testnet or custom.
	Network           string `yaml:"network"`
	HorizonURL        string `yaml:"horizon_url"`
	NetworkPassphrase string `yaml:"network_passphrase"`

	// Transport
	ConnectTimeout    time.Duration `yaml:"connect_timeout"`
	QueryReadTimeout  time.Duration `yaml:"query_read_timeout"`
	SubmitReadTimeout time.Duration `yaml:"submit_read_timeout"`
	MaxRetries        int           `yaml:"max_retries"`

	// Transactions
	BaseFee   int64         `yaml:"base_fee"`
	TxTimeout time.Duration `yaml:"tx_timeout"`

	// Dispatch
	Workers   int `yaml:"workers"`
	QueueSize int `yaml:"queue_size"`

	EffectsLimit    uint   `yaml:"effects_limit"`
	AmbiguousPolicy string `yaml:"ambiguous_policy"`
	LogLevel        string `yaml:"log_level"`
}

// Default returns the testnet configuration with the standard timeouts.
func Default() *Config {
	return &Config{
		Network:           NetworkTestnet,
		ConnectTimeout:    10 * time.Second,
		QueryReadTimeout:  30 * time.Second,
		SubmitReadTimeout: 65 * time.Second,
		MaxRetries:        1,
		BaseFee:           100,
		Workers:           4,
		QueueSize:         64,
		EffectsLimit:      10,
		AmbiguousPolicy:   AmbiguousFail,
		LogLevel:          "info",
	}
}

// Load reads path (if non-empty), applies environment overrides and
// validates the result.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, errors.NewConfigError(errors.CONFIG_INVALID, "cannot read config file",
				pkgerrors.Wrapf(err, "read %s", path))
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, errors.NewConfigError(errors.CONFIG_INVALID, "cannot parse config file",
				pkgerrors.Wrapf(err, "decode %s", path))
		}
	}

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	c.Network = getEnv("WALLET_NETWORK", c.Network)
	c.HorizonURL = getEnv("WALLET_HORIZON_URL", c.HorizonURL)
	c.NetworkPassphrase = getEnv("WALLET_NETWORK_PASSPHRASE", c.NetworkPassphrase)
	c.ConnectTimeout = getEnvDuration("WALLET_CONNECT_TIMEOUT", c.ConnectTimeout)
	c.QueryReadTimeout = getEnvDuration("WALLET_QUERY_TIMEOUT", c.QueryReadTimeout)
	c.SubmitReadTimeout = getEnvDuration("WALLET_SUBMIT_TIMEOUT", c.SubmitReadTimeout)
	c.MaxRetries = getEnvInt("WALLET_MAX_RETRIES", c.MaxRetries)
	c.BaseFee = int64(getEnvInt("WALLET_BASE_FEE", int(c.BaseFee)))
	c.TxTimeout = getEnvDuration("WALLET_TX_TIMEOUT", c.TxTimeout)
	c.Workers = getEnvInt("WALLET_WORKERS", c.Workers)
	c.QueueSize = getEnvInt("WALLET_QUEUE_SIZE", c.QueueSize)
	c.EffectsLimit = uint(getEnvInt("WALLET_EFFECTS_LIMIT", int(c.EffectsLimit)))
	c.AmbiguousPolicy = getEnv("WALLET_AMBIGUOUS_POLICY", c.AmbiguousPolicy)
	c.LogLevel = getEnv("WALLET_LOG_LEVEL", c.LogLevel)
}

// Validate fills the Horizon URL and passphrase implied by Network and
// checks every value. Errors carry CONFIG_INVALID.
func (c *Config) Validate() error {
	switch strings.ToLower(c.Network) {
	case NetworkPublic, "pubnet", "mainnet":
		c.Network = NetworkPublic
		c.HorizonURL = orDefault(c.HorizonURL, net.PublicHorizonURL)
		c.NetworkPassphrase = orDefault(c.NetworkPassphrase, network.PublicNetworkPassphrase)
	case NetworkTestnet, "test":
		c.Network = NetworkTestnet
		c.HorizonURL = orDefault(c.HorizonURL, net.TestHorizonURL)
		c.NetworkPassphrase = orDefault(c.NetworkPassphrase, network.TestNetworkPassphrase)
	case NetworkCustom:
		if c.HorizonURL == "" || c.NetworkPassphrase == "" {
			return invalid("custom network needs horizon_url and network_passphrase")
		}
	default:
		return invalid("unknown network " + strconv.Quote(c.Network))
	}

	switch {
	case c.ConnectTimeout <= 0 || c.QueryReadTimeout <= 0 || c.SubmitReadTimeout <= 0:
		return invalid("timeouts must be positive")
	case c.MaxRetries < 0:
		return invalid("max_retries must not be negative")
	case c.BaseFee < 100:
		return invalid("base_fee must be at least 100 stroops")
	case c.TxTimeout < 0:
		return invalid("tx_timeout must not be negative")
	case c.Workers <= 0:
		return invalid("workers must be positive")
	case c.QueueSize < 0:
		return invalid("queue_size must not be negative")
	case c.EffectsLimit == 0 || c.EffectsLimit > 200:
		return invalid("effects_limit must be between 1 and 200")
	case c.AmbiguousPolicy != AmbiguousFail && c.AmbiguousPolicy != AmbiguousCreate:
		return invalid("ambiguous_policy must be fail or create")
	}

	if _, err := log.ParseLevel(c.LogLevel); err != nil {
		return errors.NewConfigError(errors.CONFIG_INVALID, "invalid log_level", err)
	}
	return nil
}

// NewLogger returns a logrus logger at the configured level.
func (c *Config) NewLogger() *log.Logger {
	logger := log.New()
	level, err := log.ParseLevel(c.LogLevel)
	if err != nil {
		level = log.InfoLevel
	}
	logger.SetLevel(level)
	logger.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	return logger
}

func invalid(msg string) error {
	return errors.NewConfigError(errors.CONFIG_INVALID, msg, nil)
}

func orDefault(v, fallback string) string {
	if v != "" {
		return v
	}
	return fallback
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
