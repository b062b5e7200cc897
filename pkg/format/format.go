// Package format turns a cost snapshot and its alert context into the
// channel-specific representations: a long-form body for email, a compact
// single line for SMS, and a structured payload for mobile push. All
// functions are pure except for the freshly generated push alert ID.
package format

import (
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"

	"github.com/cloudspend/sentinel/pkg/model"
	"github.com/cloudspend/sentinel/pkg/retry"
)

// criticalPct is the boundary between WARNING and CRITICAL: exactly 50%
// over threshold is still a WARNING.
const criticalPct = 50.0

var recommendations = []string{
	"Review the top services above for unexpected usage",
	"Check for resources left running outside business hours",
	"Verify recent deployments did not change instance sizing",
	"Consider budget actions or service quotas for repeat offenders",
}

// ComputeAlertContext derives the alert view of a snapshot that crossed
// the threshold. Returns a validation fault when threshold is not
// positive or the snapshot is not actually over it.
func ComputeAlertContext(snapshot *model.CostSnapshot, thresholdUSD float64, topN int, minFloorUSD float64) (*model.AlertContext, error) {
	if thresholdUSD <= 0 {
		return nil, retry.NewValidationError("alert threshold must be positive")
	}
	if snapshot.TotalUSD <= thresholdUSD {
		return nil, retry.NewValidationError(
			fmt.Sprintf("total $%.2f does not exceed threshold $%.2f", snapshot.TotalUSD, thresholdUSD))
	}

	exceed := snapshot.TotalUSD - thresholdUSD
	pctOver := exceed / thresholdUSD * 100

	severity := model.SeverityWarning
	if pctOver > criticalPct {
		severity = model.SeverityCritical
	}

	return &model.AlertContext{
		ThresholdUSD: thresholdUSD,
		ExceedUSD:    exceed,
		PctOver:      pctOver,
		TopServices:  RankServices(snapshot, topN, minFloorUSD),
		Severity:     severity,
	}, nil
}

// RankServices returns the top-N services by cost, descending, keeping
// only entries at or above the minimum reporting floor. Ties keep the
// snapshot's original order (the sort is stable).
func RankServices(snapshot *model.CostSnapshot, topN int, minFloorUSD float64) []model.RankedService {
	var kept []model.ServiceCost
	for _, svc := range snapshot.Services {
		if svc.CostUSD >= minFloorUSD {
			kept = append(kept, svc)
		}
	}
	sort.SliceStable(kept, func(i, j int) bool {
		return kept[i].CostUSD > kept[j].CostUSD
	})
	if topN > 0 && len(kept) > topN {
		kept = kept[:topN]
	}

	ranked := make([]model.RankedService, 0, len(kept))
	for i, svc := range kept {
		pct := 0.0
		if snapshot.TotalUSD > 0 {
			pct = svc.CostUSD / snapshot.TotalUSD * 100
		}
		ranked = append(ranked, model.RankedService{
			Rank:       i + 1,
			Name:       svc.Name,
			CostUSD:    svc.CostUSD,
			PctOfTotal: pct,
		})
	}
	return ranked
}

// FormatLongMessage renders the full email body: severity banner,
// amounts, ranked services, and recommendation bullets. The services
// section is omitted entirely when there are none to report.
func FormatLongMessage(snapshot *model.CostSnapshot, actx *model.AlertContext) string {
	var b strings.Builder

	fmt.Fprintf(&b, "%s: cloud spend threshold exceeded\n\n", actx.Severity)
	fmt.Fprintf(&b, "Current spend:   $%.2f %s\n", snapshot.TotalUSD, snapshot.Currency)
	fmt.Fprintf(&b, "Threshold:       $%.2f\n", actx.ThresholdUSD)
	fmt.Fprintf(&b, "Over by:         $%.2f (%.1f%%)\n", actx.ExceedUSD, actx.PctOver)
	if snapshot.ProjectedUSD > 0 {
		fmt.Fprintf(&b, "Projected total: $%.2f\n", snapshot.ProjectedUSD)
	}
	fmt.Fprintf(&b, "Billing period:  %s to %s\n",
		snapshot.PeriodStart.Format("2006-01-02"), snapshot.PeriodEnd.Format("2006-01-02"))

	if len(actx.TopServices) > 0 {
		b.WriteString("\nTop services:\n")
		for _, svc := range actx.TopServices {
			fmt.Fprintf(&b, "  %d. %s: $%.2f (%.1f%%)\n", svc.Rank, svc.Name, svc.CostUSD, svc.PctOfTotal)
		}
	}

	b.WriteString("\nRecommended actions:\n")
	for _, rec := range recommendations {
		fmt.Fprintf(&b, "  - %s\n", rec)
	}
	return b.String()
}

// FormatShortMessage renders the single-line SMS body. The top-service
// clause is omitted when no service cleared the reporting floor.
func FormatShortMessage(snapshot *model.CostSnapshot, actx *model.AlertContext) string {
	msg := fmt.Sprintf("%s cloud spend $%.2f exceeds threshold $%.2f by $%.2f",
		actx.Severity, snapshot.TotalUSD, actx.ThresholdUSD, actx.ExceedUSD)
	if len(actx.TopServices) > 0 {
		top := actx.TopServices[0]
		msg += fmt.Sprintf(" (top: %s $%.2f)", top.Name, top.CostUSD)
	}
	return msg
}

// FormatPushPayload builds the structured mobile-push payload. The alert
// ID is unique per call. CRITICAL alerts use the dedicated critical
// sound; everything else uses the platform default.
func FormatPushPayload(snapshot *model.CostSnapshot, actx *model.AlertContext) *model.PushPayload {
	sound := "default"
	subtitle := "Spending threshold exceeded"
	if actx.Severity == model.SeverityCritical {
		sound = "critical-alert.caf"
		subtitle = "Critical overspend detected"
	}

	body := fmt.Sprintf("Spend is $%.2f, $%.2f over your $%.2f threshold",
		snapshot.TotalUSD, actx.ExceedUSD, actx.ThresholdUSD)

	custom := map[string]any{
		"alert_id":      uuid.New().String(),
		"total_usd":     snapshot.TotalUSD,
		"exceed_usd":    actx.ExceedUSD,
		"threshold_usd": actx.ThresholdUSD,
		"severity":      string(actx.Severity),
	}
	if len(actx.TopServices) > 0 {
		custom["top_service"] = actx.TopServices[0].Name
	}

	return &model.PushPayload{
		Title:    "Cloud Cost Alert",
		Subtitle: subtitle,
		Body:     body,
		Badge:    1,
		Sound:    sound,
		Custom:   custom,
	}
}
