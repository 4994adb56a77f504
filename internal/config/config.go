package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/efreitasn/custodex/internal/domain"
)

// EnvPrefix prefixes every environment override, e.g. CUSTODEX_PORT or
// CUSTODEX_EXCHANGE_FEE_PERCENT.
const EnvPrefix = "CUSTODEX"

// Config holds all runtime configuration for the exchange.
type Config struct {
	Port           int            `mapstructure:"port"`
	Log            LogConfig      `mapstructure:"log"`
	Timeouts       TimeoutConfig  `mapstructure:"timeouts"`
	WebhookTimeout time.Duration  `mapstructure:"webhook_timeout"`
	Exchange       ExchangeConfig `mapstructure:"exchange"`
	Journal        JournalConfig  `mapstructure:"journal"`
	Kafka          KafkaConfig    `mapstructure:"kafka"`
}

// LogConfig defines the logger configuration options.
type LogConfig struct {
	Level      string `mapstructure:"level"`       // "debug", "info", "warn", "error"
	Format     string `mapstructure:"format"`      // "json" or "console"
	OutputFile string `mapstructure:"output_file"` // rotated log file (optional)
}

// TimeoutConfig holds the HTTP server timeouts.
type TimeoutConfig struct {
	Read     time.Duration `mapstructure:"read"`
	Write    time.Duration `mapstructure:"write"`
	Idle     time.Duration `mapstructure:"idle"`
	Shutdown time.Duration `mapstructure:"shutdown"`
}

// ExchangeConfig fixes the fee schedule at startup.
type ExchangeConfig struct {
	FeeAccount string `mapstructure:"fee_account"`
	FeePercent int64  `mapstructure:"fee_percent"`
}

// JournalConfig locates the event journal. An empty Dir keeps the event
// log in memory only.
type JournalConfig struct {
	Dir string `mapstructure:"dir"`
}

// KafkaConfig enables relaying journaled events to a topic when Brokers
// is non-empty. Relaying requires a journal.
type KafkaConfig struct {
	Brokers       []string      `mapstructure:"brokers"`
	Topic         string        `mapstructure:"topic"`
	RelayInterval time.Duration `mapstructure:"relay_interval"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("port", 8080)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("log.output_file", "")
	v.SetDefault("timeouts.read", 5*time.Second)
	v.SetDefault("timeouts.write", 10*time.Second)
	v.SetDefault("timeouts.idle", 60*time.Second)
	v.SetDefault("timeouts.shutdown", 10*time.Second)
	v.SetDefault("webhook_timeout", 5*time.Second)
	v.SetDefault("exchange.fee_account", "")
	v.SetDefault("exchange.fee_percent", 10)
	v.SetDefault("journal.dir", "")
	v.SetDefault("kafka.brokers", []string{})
	v.SetDefault("kafka.topic", "custodex.events")
	v.SetDefault("kafka.relay_interval", time.Second)
}

// Load reads configuration from defaults, the optional config file and
// CUSTODEX_-prefixed environment variables, in increasing precedence,
// and validates the result.
func Load(configFile string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decoding config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate returns an error for any invalid value.
func (c *Config) Validate() error {
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("invalid port: %d, must be in [1, 65535]", c.Port)
	}
	if !isValidLogLevel(c.Log.Level) {
		return fmt.Errorf("invalid log.level: %q, must be one of: debug, info, warn, error", c.Log.Level)
	}
	if c.Log.Format != "json" && c.Log.Format != "console" {
		return fmt.Errorf("invalid log.format: %q, must be json or console", c.Log.Format)
	}

	for name, d := range map[string]time.Duration{
		"timeouts.read":     c.Timeouts.Read,
		"timeouts.write":    c.Timeouts.Write,
		"timeouts.idle":     c.Timeouts.Idle,
		"timeouts.shutdown": c.Timeouts.Shutdown,
		"webhook_timeout":   c.WebhookTimeout,
	} {
		if d <= 0 {
			return fmt.Errorf("invalid %s: %s, must be positive", name, d)
		}
	}

	if c.Exchange.FeeAccount == "" {
		return fmt.Errorf("exchange.fee_account is required")
	}
	fee, err := domain.ParseAddress(c.Exchange.FeeAccount)
	if err != nil {
		return fmt.Errorf("invalid exchange.fee_account: %w", err)
	}
	if fee.IsNull() {
		return fmt.Errorf("invalid exchange.fee_account: must not be the null address")
	}
	if c.Exchange.FeePercent < 0 || c.Exchange.FeePercent > 100 {
		return fmt.Errorf("invalid exchange.fee_percent: %d, must be in [0, 100]", c.Exchange.FeePercent)
	}

	if len(c.Kafka.Brokers) > 0 {
		if c.Journal.Dir == "" {
			return fmt.Errorf("kafka relay requires journal.dir")
		}
		if c.Kafka.Topic == "" {
			return fmt.Errorf("kafka.topic is required when kafka.brokers is set")
		}
		if c.Kafka.RelayInterval <= 0 {
			return fmt.Errorf("invalid kafka.relay_interval: %s, must be positive", c.Kafka.RelayInterval)
		}
	}
	return nil
}

// FeeAccountAddress returns the validated fee account.
func (c *Config) FeeAccountAddress() domain.Address {
	addr, _ := domain.ParseAddress(c.Exchange.FeeAccount)
	return addr
}

func isValidLogLevel(level string) bool {
	switch level {
	case "debug", "info", "warn", "error":
		return true
	}
	return false
}
