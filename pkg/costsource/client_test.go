package costsource_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/costexplorer"
	cetypes "github.com/aws/aws-sdk-go-v2/service/costexplorer/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cloudspend/sentinel/pkg/costsource"
)

type fakeCE struct {
	usageIn     *costexplorer.GetCostAndUsageInput
	forecastIn  *costexplorer.GetCostForecastInput
	usageOut    *costexplorer.GetCostAndUsageOutput
	forecastOut *costexplorer.GetCostForecastOutput
	forecastErr error
}

func (f *fakeCE) GetCostAndUsage(_ context.Context, params *costexplorer.GetCostAndUsageInput, _ ...func(*costexplorer.Options)) (*costexplorer.GetCostAndUsageOutput, error) {
	f.usageIn = params
	return f.usageOut, nil
}

func (f *fakeCE) GetCostForecast(_ context.Context, params *costexplorer.GetCostForecastInput, _ ...func(*costexplorer.Options)) (*costexplorer.GetCostForecastOutput, error) {
	f.forecastIn = params
	if f.forecastErr != nil {
		return nil, f.forecastErr
	}
	return f.forecastOut, nil
}

func group(name, amount string) cetypes.Group {
	return cetypes.Group{
		Keys: []string{name},
		Metrics: map[string]cetypes.MetricValue{
			"UnblendedCost": {Amount: aws.String(amount), Unit: aws.String("USD")},
		},
	}
}

func testClient(fake *fakeCE) *costsource.Client {
	return costsource.NewClientWithAPI(fake).WithNow(func() time.Time {
		return time.Date(2024, 6, 15, 12, 0, 0, 0, time.UTC)
	})
}

func TestSnapshot(t *testing.T) {
	fake := &fakeCE{
		usageOut: &costexplorer.GetCostAndUsageOutput{
			ResultsByTime: []cetypes.ResultByTime{{
				Groups: []cetypes.Group{
					group("EC2", "10.00"),
					group("S3", "3.50"),
					group("Lambda", "2.00"),
				},
			}},
		},
		forecastOut: &costexplorer.GetCostForecastOutput{
			Total: &cetypes.MetricValue{Amount: aws.String("14.50"), Unit: aws.String("USD")},
		},
	}

	snap, err := testClient(fake).Snapshot(context.Background())
	require.NoError(t, err)

	assert.InDelta(t, 15.50, snap.TotalUSD, 0.0001)
	assert.InDelta(t, 30.00, snap.ProjectedUSD, 0.0001)
	assert.Equal(t, "USD", snap.Currency)
	require.Len(t, snap.Services, 3)
	// Source order preserved for downstream tie-breaking.
	assert.Equal(t, "EC2", snap.Services[0].Name)
	assert.Equal(t, "S3", snap.Services[1].Name)
	assert.Equal(t, "Lambda", snap.Services[2].Name)

	assert.Equal(t, time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC), snap.PeriodStart)
	assert.Equal(t, time.Date(2024, 7, 1, 0, 0, 0, 0, time.UTC), snap.PeriodEnd)

	// Month-to-date query covers month start through tomorrow.
	assert.Equal(t, "2024-06-01", aws.ToString(fake.usageIn.TimePeriod.Start))
	assert.Equal(t, "2024-06-16", aws.ToString(fake.usageIn.TimePeriod.End))
}

func TestSnapshot_ForecastFailureDegrades(t *testing.T) {
	fake := &fakeCE{
		usageOut: &costexplorer.GetCostAndUsageOutput{
			ResultsByTime: []cetypes.ResultByTime{{
				Groups: []cetypes.Group{group("EC2", "5.00")},
			}},
		},
		forecastErr: errors.New("DataUnavailableException"),
	}

	snap, err := testClient(fake).Snapshot(context.Background())
	require.NoError(t, err)
	assert.InDelta(t, 5.00, snap.TotalUSD, 0.0001)
	assert.Zero(t, snap.ProjectedUSD)
}

func TestSnapshot_SkipsMalformedGroups(t *testing.T) {
	fake := &fakeCE{
		usageOut: &costexplorer.GetCostAndUsageOutput{
			ResultsByTime: []cetypes.ResultByTime{{
				Groups: []cetypes.Group{
					group("EC2", "5.00"),
					group("Glue", "not-a-number"),
					{Keys: nil, Metrics: map[string]cetypes.MetricValue{}},
				},
			}},
		},
		forecastOut: &costexplorer.GetCostForecastOutput{},
	}

	snap, err := testClient(fake).Snapshot(context.Background())
	require.NoError(t, err)
	require.Len(t, snap.Services, 1)
	assert.InDelta(t, 5.00, snap.TotalUSD, 0.0001)
}
