// Package costsource produces cost snapshots from AWS Cost Explorer:
// month-to-date totals grouped by service plus a month-end forecast.
package costsource

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/costexplorer"
	cetypes "github.com/aws/aws-sdk-go-v2/service/costexplorer/types"

	"github.com/cloudspend/sentinel/pkg/model"
)

const dateLayout = "2006-01-02"

// CostExplorerAPI is the subset of the AWS Cost Explorer client we use.
type CostExplorerAPI interface {
	GetCostAndUsage(ctx context.Context, params *costexplorer.GetCostAndUsageInput, optFns ...func(*costexplorer.Options)) (*costexplorer.GetCostAndUsageOutput, error)
	GetCostForecast(ctx context.Context, params *costexplorer.GetCostForecastInput, optFns ...func(*costexplorer.Options)) (*costexplorer.GetCostForecastOutput, error)
}

// Client wraps the Cost Explorer API.
type Client struct {
	ce  CostExplorerAPI
	now func() time.Time // injectable for testing; defaults to time.Now
}

// NewClient creates a client from an AWS config.
func NewClient(cfg aws.Config) *Client {
	return &Client{ce: costexplorer.NewFromConfig(cfg), now: time.Now}
}

// NewClientWithAPI creates a client with a custom API implementation
// (for testing).
func NewClientWithAPI(api CostExplorerAPI) *Client {
	return &Client{ce: api, now: time.Now}
}

// WithNow overrides the clock. For tests.
func (c *Client) WithNow(now func() time.Time) *Client {
	c.now = now
	return c
}

// Snapshot fetches the current billing-period reading: month-to-date
// total, per-service breakdown in the order Cost Explorer reports it,
// and the projected month-end total. A forecast failure degrades the
// snapshot (zero projection) rather than failing it.
func (c *Client) Snapshot(ctx context.Context) (*model.CostSnapshot, error) {
	now := c.now().UTC()
	monthStart := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
	monthEnd := monthStart.AddDate(0, 1, 0)
	tomorrow := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC).AddDate(0, 0, 1)

	usage, err := c.ce.GetCostAndUsage(ctx, &costexplorer.GetCostAndUsageInput{
		TimePeriod: &cetypes.DateInterval{
			Start: aws.String(monthStart.Format(dateLayout)),
			End:   aws.String(tomorrow.Format(dateLayout)),
		},
		Granularity: cetypes.GranularityMonthly,
		Metrics:     []string{"UnblendedCost"},
		GroupBy: []cetypes.GroupDefinition{
			{Type: cetypes.GroupDefinitionTypeDimension, Key: aws.String("SERVICE")},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("get cost and usage: %w", err)
	}

	snapshot := &model.CostSnapshot{
		PeriodStart: monthStart,
		PeriodEnd:   monthEnd,
		Currency:    "USD",
		UpdatedAt:   now,
	}
	for _, result := range usage.ResultsByTime {
		for _, group := range result.Groups {
			metric, ok := group.Metrics["UnblendedCost"]
			if !ok || len(group.Keys) == 0 {
				continue
			}
			amount, err := strconv.ParseFloat(aws.ToString(metric.Amount), 64)
			if err != nil {
				continue
			}
			if unit := aws.ToString(metric.Unit); unit != "" {
				snapshot.Currency = unit
			}
			snapshot.Services = append(snapshot.Services, model.ServiceCost{
				Name:    group.Keys[0],
				CostUSD: amount,
			})
			snapshot.TotalUSD += amount
		}
	}

	forecast, err := c.ce.GetCostForecast(ctx, &costexplorer.GetCostForecastInput{
		TimePeriod: &cetypes.DateInterval{
			Start: aws.String(tomorrow.Format(dateLayout)),
			End:   aws.String(monthEnd.Format(dateLayout)),
		},
		Granularity: cetypes.GranularityMonthly,
		Metric:      cetypes.MetricUnblendedCost,
	})
	if err == nil && forecast.Total != nil {
		if remaining, perr := strconv.ParseFloat(aws.ToString(forecast.Total.Amount), 64); perr == nil {
			snapshot.ProjectedUSD = snapshot.TotalUSD + remaining
		}
	}

	return snapshot, nil
}
