package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/cloudspend/sentinel/pkg/retry"
)

// Config holds all Cloud Spend Sentinel configuration.
type Config struct {
	AWS     AWSConfig     `mapstructure:"aws"`
	Billing BillingConfig `mapstructure:"billing"`
	Alerts  AlertsConfig  `mapstructure:"alerts"`
	Push    PushConfig    `mapstructure:"push"`
	Retry   RetryConfig   `mapstructure:"retry"`
	Health  HealthConfig  `mapstructure:"health"`
	Storage StorageConfig `mapstructure:"storage"`
	Server  ServerConfig  `mapstructure:"server"`
	Logging LoggingConfig `mapstructure:"logging"`
}

// AWSConfig defines AWS client settings.
type AWSConfig struct {
	Region string `mapstructure:"region"`
}

// BillingConfig defines the threshold and reporting knobs.
type BillingConfig struct {
	ThresholdUSD  float64 `mapstructure:"threshold_usd"`
	TopServices   int     `mapstructure:"top_services"`
	MinServiceUSD float64 `mapstructure:"min_service_usd"`
}

// AlertsConfig defines the publish destination.
type AlertsConfig struct {
	TopicARN         string `mapstructure:"topic_arn"`
	MetricsNamespace string `mapstructure:"metrics_namespace"`
}

// PushConfig defines the mobile push platform application.
type PushConfig struct {
	Enabled        bool   `mapstructure:"enabled"`
	ApplicationARN string `mapstructure:"application_arn"`
	Sandbox        bool   `mapstructure:"sandbox"`
}

// RetryConfig defines the delivery retry policy.
type RetryConfig struct {
	MaxAttempts int     `mapstructure:"max_attempts"`
	BaseDelay   string  `mapstructure:"base_delay"`
	MaxDelay    string  `mapstructure:"max_delay"`
	Multiplier  float64 `mapstructure:"multiplier"`
}

// HealthConfig defines health-monitor settings.
type HealthConfig struct {
	CertWarnDays int `mapstructure:"cert_warn_days"`
}

// StorageConfig defines database settings.
type StorageConfig struct {
	Path string `mapstructure:"path"`
}

// ServerConfig defines the device-registration API settings.
type ServerConfig struct {
	Listen       string `mapstructure:"listen"`
	ReadTimeout  string `mapstructure:"read_timeout"`
	WriteTimeout string `mapstructure:"write_timeout"`
}

// LoggingConfig defines logging settings.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Load reads configuration from file and environment variables.
func Load(cfgFile string) (*Config, error) {
	v := viper.New()

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("find home directory: %w", err)
		}

		v.AddConfigPath(filepath.Join(home, ".sentinel"))
		v.AddConfigPath(".")
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}

	// Defaults
	home, _ := os.UserHomeDir()
	v.SetDefault("aws.region", "us-east-1")
	v.SetDefault("billing.threshold_usd", 100.0)
	v.SetDefault("billing.top_services", 5)
	v.SetDefault("billing.min_service_usd", 1.0)
	v.SetDefault("alerts.metrics_namespace", "SpendSentinel")
	v.SetDefault("push.enabled", false)
	v.SetDefault("push.sandbox", false)
	v.SetDefault("retry.max_attempts", 3)
	v.SetDefault("retry.base_delay", "1s")
	v.SetDefault("retry.max_delay", "30s")
	v.SetDefault("retry.multiplier", 2.0)
	v.SetDefault("health.cert_warn_days", 30)
	v.SetDefault("storage.path", filepath.Join(home, ".sentinel", "sentinel.db"))
	v.SetDefault("server.listen", ":8080")
	v.SetDefault("server.read_timeout", "10s")
	v.SetDefault("server.write_timeout", "10s")
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")

	v.SetEnvPrefix("SENTINEL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	return &cfg, nil
}

// RetryPolicy converts the retry section into an executable policy.
func (c *Config) RetryPolicy() (retry.Policy, error) {
	base, err := time.ParseDuration(c.Retry.BaseDelay)
	if err != nil {
		return retry.Policy{}, fmt.Errorf("parse retry base delay: %w", err)
	}
	maxDelay, err := time.ParseDuration(c.Retry.MaxDelay)
	if err != nil {
		return retry.Policy{}, fmt.Errorf("parse retry max delay: %w", err)
	}
	p := retry.Policy{
		MaxAttempts: c.Retry.MaxAttempts,
		BaseDelay:   base,
		MaxDelay:    maxDelay,
		Multiplier:  c.Retry.Multiplier,
	}
	return p, p.Validate()
}
