package model

import "time"

// ServiceCost is the spend attributed to a single cloud service.
type ServiceCost struct {
	Name    string  `json:"name"`
	CostUSD float64 `json:"cost_usd"`
}

// CostSnapshot is a point-in-time reading of aggregated billing data.
// Services preserves the order the cost source reported them in; ranking
// uses that order to break ties.
type CostSnapshot struct {
	TotalUSD     float64       `json:"total_usd"`
	Services     []ServiceCost `json:"services"`
	PeriodStart  time.Time     `json:"period_start"`
	PeriodEnd    time.Time     `json:"period_end"`
	ProjectedUSD float64       `json:"projected_usd"`
	Currency     string        `json:"currency"`
	UpdatedAt    time.Time     `json:"updated_at"`
}

// Severity indicates how far past the threshold spend has gone.
type Severity string

const (
	SeverityWarning  Severity = "WARNING"  // Over threshold by 50% or less
	SeverityCritical Severity = "CRITICAL" // Over threshold by more than 50%
)

// RankedService is one entry in the top-spenders list of an alert.
type RankedService struct {
	Rank       int     `json:"rank"`
	Name       string  `json:"name"`
	CostUSD    float64 `json:"cost_usd"`
	PctOfTotal float64 `json:"pct_of_total"`
}

// AlertContext is the derived view of a snapshot that crossed the
// threshold. Built once per alert and never mutated.
type AlertContext struct {
	ThresholdUSD float64         `json:"threshold_usd"`
	ExceedUSD    float64         `json:"exceed_usd"`
	PctOver      float64         `json:"pct_over"`
	TopServices  []RankedService `json:"top_services"`
	Severity     Severity        `json:"severity"`
}

// PushPayload is the structured mobile-push representation of an alert.
// It must round-trip through JSON without loss.
type PushPayload struct {
	Title    string         `json:"title"`
	Subtitle string         `json:"subtitle"`
	Body     string         `json:"body"`
	Badge    int            `json:"badge"`
	Sound    string         `json:"sound"`
	Custom   map[string]any `json:"custom,omitempty"`
}

// DeliveryMetrics captures the cost of one dispatch call. Retries counts
// retry callbacks across the primary and fallback publishes combined.
type DeliveryMetrics struct {
	ElapsedMS    int64 `json:"elapsed_ms"`
	Retries      int   `json:"retries"`
	PayloadBytes int   `json:"payload_bytes"`
}

// DeliveryOutcome records the result of one alert dispatch. Errors is
// append-only: the fallback path adds to it, nothing clears it.
type DeliveryOutcome struct {
	Success       bool            `json:"success"`
	Channels      []string        `json:"channels"`
	PushDelivered bool            `json:"push_delivered"`
	FallbackUsed  bool            `json:"fallback_used"`
	MessageID     string          `json:"message_id,omitempty"`
	Errors        []string        `json:"errors,omitempty"`
	Metrics       DeliveryMetrics `json:"metrics"`
}

// DeviceRegistration represents one registered mobile push endpoint.
// Token is always exactly 64 hex characters; the registry validates it
// before any write.
type DeviceRegistration struct {
	ID          string    `json:"id" db:"id"`
	Token       string    `json:"token" db:"token"`
	EndpointARN string    `json:"endpoint_arn" db:"endpoint_arn"`
	UserID      string    `json:"user_id,omitempty" db:"user_id"`
	Enabled     bool      `json:"enabled" db:"enabled"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time `json:"updated_at" db:"updated_at"`
}

// HealthStatus is the overall verdict of one monitor cycle.
type HealthStatus string

const (
	StatusHealthy  HealthStatus = "healthy"
	StatusWarning  HealthStatus = "warning"
	StatusCritical HealthStatus = "critical"
)

// HealthReport is the structured result of one health/feedback cycle.
// Every sub-check degrades the report instead of aborting it.
type HealthReport struct {
	Status            HealthStatus `json:"status"`
	CredentialOK      bool         `json:"credential_ok"`
	CertExpiresAt     *time.Time   `json:"cert_expires_at,omitempty"`
	CertDaysRemaining int          `json:"cert_days_remaining"`
	CertExpired       bool         `json:"cert_expired"`
	CertExpiringSoon  bool         `json:"cert_expiring_soon"`
	RemovedEndpoints  []string     `json:"removed_endpoints,omitempty"`
	FeedbackErrors    []string     `json:"feedback_errors,omitempty"`
	ActiveEndpoints   int          `json:"active_endpoints"`
	InvalidEndpoints  int          `json:"invalid_endpoints"`
	TotalEndpoints    int          `json:"total_endpoints"`
	CheckedAt         time.Time    `json:"checked_at"`
}
