// Package runner orchestrates one monitoring cycle: fetch the cost
// snapshot, gate on the threshold, and dispatch the alert.
package runner

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/cloudspend/sentinel/internal/config"
	"github.com/cloudspend/sentinel/pkg/format"
	"github.com/cloudspend/sentinel/pkg/model"
)

// CostSource supplies the current billing snapshot.
type CostSource interface {
	Snapshot(ctx context.Context) (*model.CostSnapshot, error)
}

// AlertDispatcher fans one alert out across channels.
type AlertDispatcher interface {
	Dispatch(ctx context.Context, snapshot *model.CostSnapshot, actx *model.AlertContext, topic string, withPush bool) (*model.DeliveryOutcome, error)
}

// Runner executes monitoring cycles. Each cycle is independent; a failed
// cycle is reported to the caller, which logs and moves on rather than
// crashing.
type Runner struct {
	costs      CostSource
	dispatcher AlertDispatcher
	cfg        *config.Config
	logger     *slog.Logger
}

// New creates a runner.
func New(costs CostSource, dispatcher AlertDispatcher, cfg *config.Config, logger *slog.Logger) *Runner {
	return &Runner{costs: costs, dispatcher: dispatcher, cfg: cfg, logger: logger}
}

// Cycle runs one poll-compare-alert pass. Under-threshold snapshots end
// the cycle quietly; over-threshold snapshots are dispatched.
func (r *Runner) Cycle(ctx context.Context) (*model.DeliveryOutcome, error) {
	snapshot, err := r.costs.Snapshot(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetch cost snapshot: %w", err)
	}

	threshold := r.cfg.Billing.ThresholdUSD
	if snapshot.TotalUSD <= threshold {
		r.logger.Info("spend under threshold",
			"total_usd", snapshot.TotalUSD,
			"threshold_usd", threshold,
		)
		return nil, nil
	}

	actx, err := format.ComputeAlertContext(snapshot, threshold,
		r.cfg.Billing.TopServices, r.cfg.Billing.MinServiceUSD)
	if err != nil {
		return nil, fmt.Errorf("compute alert context: %w", err)
	}

	r.logger.Warn("spend threshold exceeded",
		"total_usd", snapshot.TotalUSD,
		"threshold_usd", threshold,
		"severity", actx.Severity,
	)

	outcome, err := r.dispatcher.Dispatch(ctx, snapshot, actx, r.cfg.Alerts.TopicARN, r.cfg.Push.Enabled)
	if err != nil {
		return outcome, fmt.Errorf("dispatch alert: %w", err)
	}
	return outcome, nil
}
