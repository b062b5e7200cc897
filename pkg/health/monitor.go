// Package health runs the periodic push-platform health and feedback
// cycle: credential check, certificate expiry check, feedback-driven
// endpoint pruning, and an endpoint census. A failing sub-check degrades
// the report; it never prevents the remaining sub-checks from running.
package health

import (
	"context"
	"log/slog"
	"time"

	"github.com/cloudspend/sentinel/pkg/model"
	"github.com/cloudspend/sentinel/pkg/registry"
)

// certExpiryAttr is the platform-application attribute carrying the APNS
// certificate expiry, RFC3339. Absent for key-based credentials.
const certExpiryAttr = "AppleCertificateExpiryDate"

// FeedbackSource enumerates endpoint handles the platform has reported
// invalid since the last cycle.
type FeedbackSource interface {
	InvalidEndpoints(ctx context.Context) ([]string, error)
}

// Monitor reconciles registered endpoints against platform feedback and
// reports overall push-channel health.
type Monitor struct {
	reg          *registry.Registry
	gw           registry.PushGateway
	feedback     FeedbackSource
	certWarnDays int
	logger       *slog.Logger
	now          func() time.Time // injectable for testing
}

// New creates a monitor. certWarnDays is how close to certificate expiry
// the report turns to warning.
func New(reg *registry.Registry, gw registry.PushGateway, feedback FeedbackSource, certWarnDays int, logger *slog.Logger) *Monitor {
	return &Monitor{
		reg:          reg,
		gw:           gw,
		feedback:     feedback,
		certWarnDays: certWarnDays,
		logger:       logger,
		now:          time.Now,
	}
}

// WithNow overrides the clock. For tests.
func (m *Monitor) WithNow(now func() time.Time) *Monitor {
	m.now = now
	return m
}

// Run performs one full cycle and returns the report. It never returns
// an error: every failure shows up as a degraded field.
func (m *Monitor) Run(ctx context.Context) *model.HealthReport {
	report := &model.HealthReport{
		Status:            model.StatusHealthy,
		CertDaysRemaining: -1,
		CheckedAt:         m.now().UTC(),
	}

	report.CredentialOK = m.reg.ValidateGatewayHealth(ctx)

	m.checkCertificate(ctx, report)
	m.reconcileFeedback(ctx, report)
	m.census(ctx, report)

	switch {
	case !report.CredentialOK || report.CertExpired:
		report.Status = model.StatusCritical
	case report.CertExpiringSoon || len(report.FeedbackErrors) > 0:
		report.Status = model.StatusWarning
	}

	m.logger.Info("health cycle complete",
		"status", report.Status,
		"credential_ok", report.CredentialOK,
		"removed", len(report.RemovedEndpoints),
		"active", report.ActiveEndpoints,
		"invalid", report.InvalidEndpoints,
	)
	return report
}

func (m *Monitor) checkCertificate(ctx context.Context, report *model.HealthReport) {
	attrs, err := m.gw.ApplicationAttributes(ctx)
	if err != nil {
		// Credential check already covers reachability; nothing more to
		// learn here.
		m.logger.Warn("certificate check skipped", "error", err)
		return
	}

	raw, ok := attrs[certExpiryAttr]
	if !ok || raw == "" {
		// Key-based credentials have no certificate to expire.
		return
	}
	expires, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		report.FeedbackErrors = append(report.FeedbackErrors, "unparseable certificate expiry: "+raw)
		return
	}

	report.CertExpiresAt = &expires
	remaining := expires.Sub(m.now())
	report.CertDaysRemaining = int(remaining.Hours() / 24)
	report.CertExpired = remaining <= 0
	report.CertExpiringSoon = !report.CertExpired && report.CertDaysRemaining <= m.certWarnDays

	if report.CertExpired {
		m.logger.Error("platform certificate expired", "expired_at", expires)
	} else if report.CertExpiringSoon {
		m.logger.Warn("platform certificate expiring", "days_remaining", report.CertDaysRemaining)
	}
}

func (m *Monitor) reconcileFeedback(ctx context.Context, report *model.HealthReport) {
	handles, err := m.feedback.InvalidEndpoints(ctx)
	if err != nil {
		report.FeedbackErrors = append(report.FeedbackErrors, "fetch feedback: "+err.Error())
		return
	}
	if len(handles) == 0 {
		return
	}
	report.RemovedEndpoints = m.reg.RemoveInvalid(ctx, handles)
	if len(report.RemovedEndpoints) < len(handles) {
		report.FeedbackErrors = append(report.FeedbackErrors,
			"some invalid endpoints could not be removed")
	}
}

func (m *Monitor) census(ctx context.Context, report *model.HealthReport) {
	handles, err := m.gw.ListEndpoints(ctx)
	if err != nil {
		report.FeedbackErrors = append(report.FeedbackErrors, "list endpoints: "+err.Error())
		return
	}
	report.TotalEndpoints = len(handles)
	for _, handle := range handles {
		attrs, err := m.gw.EndpointAttributes(ctx, handle)
		if err != nil {
			m.logger.Warn("endpoint attributes unavailable", "endpoint", handle, "error", err)
			continue
		}
		if attrs["Enabled"] == "true" {
			report.ActiveEndpoints++
		} else {
			report.InvalidEndpoints++
		}
	}
}
