package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/spf13/cobra"

	"github.com/cloudspend/sentinel/internal/config"
	"github.com/cloudspend/sentinel/pkg/gateway"
	"github.com/cloudspend/sentinel/pkg/metrics"
	"github.com/cloudspend/sentinel/pkg/registry"
	"github.com/cloudspend/sentinel/pkg/storage"
)

// Version is set at build time via ldflags.
var Version = "dev"

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "sentinel",
	Short: "Cloud Spend Sentinel - billing threshold alerts over email, SMS, and mobile push",
	Long: `Cloud Spend Sentinel watches aggregated cloud billing data and alerts
when spend crosses a configured threshold. Alerts fan out through a
pub/sub topic to email, SMS, and mobile push subscribers, with bounded
retry and a push-failure fallback. It also manages the device-token
lifecycle for the push channel.`,
	SilenceUsage: true,
}

// Execute runs the CLI.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ~/.sentinel/config.yaml)")
}

// loadConfig loads the configuration.
func loadConfig() (*config.Config, error) {
	return config.Load(cfgFile)
}

// newLogger creates a structured logger from config.
func newLogger(cfg *config.Config) *slog.Logger {
	level := slog.LevelInfo
	switch cfg.Logging.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}

	var handler slog.Handler
	if cfg.Logging.Format == "text" {
		handler = slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})
	} else {
		handler = slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level})
	}

	return slog.New(handler)
}

// loadAWS resolves AWS credentials and region.
func loadAWS(ctx context.Context, cfg *config.Config) (aws.Config, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.AWS.Region))
	if err != nil {
		return aws.Config{}, fmt.Errorf("load AWS config: %w", err)
	}
	return awsCfg, nil
}

// initStore creates the token store from config.
func initStore(cfg *config.Config) (storage.TokenStore, error) {
	return storage.NewSQLite(cfg.Storage.Path)
}

// initRegistry wires the token store and platform gateway. The push
// application ARN must be configured; device commands fail fast without it.
func initRegistry(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*registry.Registry, *gateway.PlatformGateway, storage.TokenStore, error) {
	if cfg.Push.ApplicationARN == "" {
		return nil, nil, nil, fmt.Errorf("push.application_arn is not configured")
	}

	awsCfg, err := loadAWS(ctx, cfg)
	if err != nil {
		return nil, nil, nil, err
	}

	store, err := initStore(cfg)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("init storage: %w", err)
	}

	gw := gateway.NewPlatformGateway(awsCfg, cfg.Push.ApplicationARN)
	return registry.New(store, gw, logger), gw, store, nil
}

// initSink picks the metric destination. An empty namespace keeps
// metrics in the logs.
func initSink(awsCfg aws.Config, cfg *config.Config, logger *slog.Logger) metrics.Sink {
	if cfg.Alerts.MetricsNamespace == "" {
		return metrics.NewLogSink(logger)
	}
	return metrics.NewCloudWatchSink(awsCfg, cfg.Alerts.MetricsNamespace, logger)
}
