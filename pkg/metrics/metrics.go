// Package metrics sends named numeric data points with dimension tags.
// Sinks are fire-and-forget: emission failures are logged and swallowed,
// never propagated to the caller.
package metrics

import (
	"context"
	"log/slog"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	cwtypes "github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"
)

// Sink accepts one data point. Implementations log delivery failures
// and must not panic.
type Sink interface {
	Emit(ctx context.Context, name string, value float64, dims map[string]string)
}

// LogSink writes data points to the structured log. Useful for local
// runs and tests.
type LogSink struct {
	logger *slog.Logger
}

// NewLogSink creates a log-backed sink.
func NewLogSink(logger *slog.Logger) *LogSink {
	return &LogSink{logger: logger}
}

func (s *LogSink) Emit(_ context.Context, name string, value float64, dims map[string]string) {
	s.logger.Debug("metric", "name", name, "value", value, "dims", dims)
}

// CloudWatchAPI is the subset of the CloudWatch client we use.
type CloudWatchAPI interface {
	PutMetricData(ctx context.Context, params *cloudwatch.PutMetricDataInput, optFns ...func(*cloudwatch.Options)) (*cloudwatch.PutMetricDataOutput, error)
}

// CloudWatchSink publishes data points to a CloudWatch namespace.
type CloudWatchSink struct {
	api       CloudWatchAPI
	namespace string
	logger    *slog.Logger
	now       func() time.Time
}

// NewCloudWatchSink creates a CloudWatch-backed sink from an AWS config.
func NewCloudWatchSink(cfg aws.Config, namespace string, logger *slog.Logger) *CloudWatchSink {
	return &CloudWatchSink{
		api:       cloudwatch.NewFromConfig(cfg),
		namespace: namespace,
		logger:    logger,
		now:       time.Now,
	}
}

// NewCloudWatchSinkWithAPI creates a sink with a custom API implementation
// (for testing).
func NewCloudWatchSinkWithAPI(api CloudWatchAPI, namespace string, logger *slog.Logger) *CloudWatchSink {
	return &CloudWatchSink{api: api, namespace: namespace, logger: logger, now: time.Now}
}

func (s *CloudWatchSink) Emit(ctx context.Context, name string, value float64, dims map[string]string) {
	datum := cwtypes.MetricDatum{
		MetricName: aws.String(name),
		Value:      aws.Float64(value),
		Timestamp:  aws.Time(s.now().UTC()),
	}
	for k, v := range dims {
		datum.Dimensions = append(datum.Dimensions, cwtypes.Dimension{
			Name:  aws.String(k),
			Value: aws.String(v),
		})
	}

	_, err := s.api.PutMetricData(ctx, &cloudwatch.PutMetricDataInput{
		Namespace:  aws.String(s.namespace),
		MetricData: []cwtypes.MetricDatum{datum},
	})
	if err != nil {
		s.logger.Warn("metric emission failed", "name", name, "error", err)
	}
}
