package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/efreitasn/custodex/internal/domain"
)

var testFeeAccount = domain.DeriveAddress([]byte("fee-account")).String()

var envKeys = []string{
	"PORT", "LOG_LEVEL", "LOG_FORMAT", "LOG_OUTPUT_FILE",
	"TIMEOUTS_READ", "TIMEOUTS_WRITE", "TIMEOUTS_IDLE", "TIMEOUTS_SHUTDOWN",
	"WEBHOOK_TIMEOUT", "EXCHANGE_FEE_ACCOUNT", "EXCHANGE_FEE_PERCENT",
	"JOURNAL_DIR", "KAFKA_BROKERS", "KAFKA_TOPIC", "KAFKA_RELAY_INTERVAL",
}

// clearEnv unsets every config variable and sets the one required value.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range envKeys {
		t.Setenv(EnvPrefix+"_"+key, "")
		os.Unsetenv(EnvPrefix + "_" + key)
	}
	t.Setenv("CUSTODEX_EXCHANGE_FEE_ACCOUNT", testFeeAccount)
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Port != 8080 {
		t.Errorf("Port = %d, want 8080", cfg.Port)
	}
	if cfg.Log.Level != "info" || cfg.Log.Format != "json" || cfg.Log.OutputFile != "" {
		t.Errorf("Log = %+v, want info/json/no file", cfg.Log)
	}
	if cfg.Timeouts.Read != 5*time.Second {
		t.Errorf("Timeouts.Read = %v, want 5s", cfg.Timeouts.Read)
	}
	if cfg.Timeouts.Write != 10*time.Second {
		t.Errorf("Timeouts.Write = %v, want 10s", cfg.Timeouts.Write)
	}
	if cfg.Timeouts.Idle != 60*time.Second {
		t.Errorf("Timeouts.Idle = %v, want 60s", cfg.Timeouts.Idle)
	}
	if cfg.Timeouts.Shutdown != 10*time.Second {
		t.Errorf("Timeouts.Shutdown = %v, want 10s", cfg.Timeouts.Shutdown)
	}
	if cfg.WebhookTimeout != 5*time.Second {
		t.Errorf("WebhookTimeout = %v, want 5s", cfg.WebhookTimeout)
	}
	if cfg.Exchange.FeePercent != 10 {
		t.Errorf("FeePercent = %d, want 10", cfg.Exchange.FeePercent)
	}
	if cfg.FeeAccountAddress().String() != testFeeAccount {
		t.Errorf("FeeAccount = %s, want %s", cfg.FeeAccountAddress(), testFeeAccount)
	}
	if cfg.Journal.Dir != "" || len(cfg.Kafka.Brokers) != 0 {
		t.Errorf("expected no journal and no kafka by default, got %+v %+v", cfg.Journal, cfg.Kafka)
	}
	if cfg.Kafka.Topic != "custodex.events" || cfg.Kafka.RelayInterval != time.Second {
		t.Errorf("Kafka = %+v", cfg.Kafka)
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("CUSTODEX_PORT", "9090")
	t.Setenv("CUSTODEX_LOG_LEVEL", "debug")
	t.Setenv("CUSTODEX_LOG_FORMAT", "console")
	t.Setenv("CUSTODEX_TIMEOUTS_READ", "2s")
	t.Setenv("CUSTODEX_WEBHOOK_TIMEOUT", "3s")
	t.Setenv("CUSTODEX_EXCHANGE_FEE_PERCENT", "0")
	t.Setenv("CUSTODEX_JOURNAL_DIR", "/var/lib/custodex")
	t.Setenv("CUSTODEX_KAFKA_BROKERS", "kafka-1:9092,kafka-2:9092")
	t.Setenv("CUSTODEX_KAFKA_RELAY_INTERVAL", "250ms")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Port != 9090 {
		t.Errorf("Port = %d, want 9090", cfg.Port)
	}
	if cfg.Log.Level != "debug" || cfg.Log.Format != "console" {
		t.Errorf("Log = %+v, want debug/console", cfg.Log)
	}
	if cfg.Timeouts.Read != 2*time.Second {
		t.Errorf("Timeouts.Read = %v, want 2s", cfg.Timeouts.Read)
	}
	if cfg.WebhookTimeout != 3*time.Second {
		t.Errorf("WebhookTimeout = %v, want 3s", cfg.WebhookTimeout)
	}
	if cfg.Exchange.FeePercent != 0 {
		t.Errorf("FeePercent = %d, want 0", cfg.Exchange.FeePercent)
	}
	if cfg.Journal.Dir != "/var/lib/custodex" {
		t.Errorf("Journal.Dir = %q", cfg.Journal.Dir)
	}
	if len(cfg.Kafka.Brokers) != 2 || cfg.Kafka.Brokers[1] != "kafka-2:9092" {
		t.Errorf("Kafka.Brokers = %v", cfg.Kafka.Brokers)
	}
	if cfg.Kafka.RelayInterval != 250*time.Millisecond {
		t.Errorf("Kafka.RelayInterval = %v, want 250ms", cfg.Kafka.RelayInterval)
	}
}

func TestLoad_ConfigFile(t *testing.T) {
	clearEnv(t)
	t.Setenv("CUSTODEX_PORT", "7070")

	path := filepath.Join(t.TempDir(), "custodex.yaml")
	content := []byte(`
port: 6060
log:
  level: warn
exchange:
  fee_percent: 25
timeouts:
  shutdown: 30s
`)
	if err := os.WriteFile(path, content, 0o600); err != nil {
		t.Fatalf("writing config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// Environment wins over the file.
	if cfg.Port != 7070 {
		t.Errorf("Port = %d, want 7070", cfg.Port)
	}
	if cfg.Log.Level != "warn" {
		t.Errorf("Log.Level = %q, want warn", cfg.Log.Level)
	}
	if cfg.Exchange.FeePercent != 25 {
		t.Errorf("FeePercent = %d, want 25", cfg.Exchange.FeePercent)
	}
	if cfg.Timeouts.Shutdown != 30*time.Second {
		t.Errorf("Timeouts.Shutdown = %v, want 30s", cfg.Timeouts.Shutdown)
	}
}

func TestLoad_MissingConfigFile(t *testing.T) {
	clearEnv(t)

	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatal("expected error for missing config file")
	}
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{"port not a number", map[string]string{"CUSTODEX_PORT": "not-a-number"}},
		{"port out of range", map[string]string{"CUSTODEX_PORT": "70000"}},
		{"log level", map[string]string{"CUSTODEX_LOG_LEVEL": "verbose"}},
		{"log format", map[string]string{"CUSTODEX_LOG_FORMAT": "xml"}},
		{"duration", map[string]string{"CUSTODEX_TIMEOUTS_READ": "not-a-duration"}},
		{"zero duration", map[string]string{"CUSTODEX_WEBHOOK_TIMEOUT": "0s"}},
		{"fee account missing", map[string]string{"CUSTODEX_EXCHANGE_FEE_ACCOUNT": ""}},
		{"fee account malformed", map[string]string{"CUSTODEX_EXCHANGE_FEE_ACCOUNT": "0x1234"}},
		{"fee account null", map[string]string{"CUSTODEX_EXCHANGE_FEE_ACCOUNT": string(domain.NullAddress)}},
		{"fee percent", map[string]string{"CUSTODEX_EXCHANGE_FEE_PERCENT": "101"}},
		{"kafka without journal", map[string]string{"CUSTODEX_KAFKA_BROKERS": "kafka:9092"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			for k, v := range tt.env {
				if v == "" {
					os.Unsetenv(k)
					continue
				}
				t.Setenv(k, v)
			}

			if _, err := Load(""); err == nil {
				t.Fatal("expected an error")
			}
		})
	}
}
