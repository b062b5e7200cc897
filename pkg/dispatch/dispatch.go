// Package dispatch publishes a single logical alert to a multi-protocol
// destination with bounded retry, falling back to a reduced channel set
// when the failure is specific to the push channel.
package dispatch

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/cloudspend/sentinel/pkg/format"
	"github.com/cloudspend/sentinel/pkg/metrics"
	"github.com/cloudspend/sentinel/pkg/model"
	"github.com/cloudspend/sentinel/pkg/retry"
)

// Channel names as they appear in outcomes and metric dimensions.
const (
	ChannelEmail = "email"
	ChannelSMS   = "sms"
	ChannelPush  = "push"
)

// Message is one multi-part publish: a default body plus per-protocol
// overrides. An empty Push means the push channel is not addressed.
type Message struct {
	Topic   string
	Subject string
	Default string
	SMS     string
	Push    string
}

// Destination is an addressable multi-protocol publish target. Publish
// returns the provider's message identifier on success.
type Destination interface {
	Publish(ctx context.Context, msg Message) (string, error)
}

// Dispatcher fans one alert out across channels. It holds no state
// between calls; each Dispatch is independent.
type Dispatcher struct {
	dest    Destination
	sink    metrics.Sink
	logger  *slog.Logger
	policy  retry.Policy
	subject string
}

// New creates a dispatcher publishing through dest with the given retry
// policy. Metric emission failures never propagate.
func New(dest Destination, sink metrics.Sink, policy retry.Policy, logger *slog.Logger) *Dispatcher {
	return &Dispatcher{
		dest:    dest,
		sink:    sink,
		logger:  logger,
		policy:  policy,
		subject: "Cloud Cost Alert",
	}
}

// Dispatch formats and publishes one alert to topic. When withPush is set
// the push channel is included; a push-specific failure triggers one
// fallback publish without it. The outcome is returned in every branch,
// alongside the terminal error if delivery ultimately failed.
//
// Retries across the primary and fallback publishes accumulate into one
// counter on the outcome. A caller that retries a whole dispatch may
// re-deliver to channels that already succeeded; dispatches are not
// deduplicated here.
func (d *Dispatcher) Dispatch(ctx context.Context, snapshot *model.CostSnapshot, actx *model.AlertContext, topic string, withPush bool) (*model.DeliveryOutcome, error) {
	start := time.Now()
	outcome := &model.DeliveryOutcome{
		Channels: []string{ChannelEmail, ChannelSMS},
	}
	pushWanted := withPush
	if pushWanted {
		outcome.Channels = append(outcome.Channels, ChannelPush)
	}
	defer func() {
		outcome.Metrics.ElapsedMS = time.Since(start).Milliseconds()
		d.emitDelivery(ctx, outcome)
	}()

	msg := Message{
		Topic:   topic,
		Subject: d.subject,
		Default: format.FormatLongMessage(snapshot, actx),
		SMS:     format.FormatShortMessage(snapshot, actx),
	}
	if pushWanted {
		payload := format.FormatPushPayload(snapshot, actx)
		encoded, err := format.EncodeAPNS(payload)
		if err != nil {
			outcome.Errors = append(outcome.Errors, err.Error())
			return outcome, err
		}
		msg.Push = encoded
	}
	outcome.Metrics.PayloadBytes = len(msg.Default) + len(msg.SMS) + len(msg.Push)

	d.logger.Info("dispatching alert",
		"topic", topic,
		"severity", actx.Severity,
		"channels", outcome.Channels,
		"payload_bytes", outcome.Metrics.PayloadBytes,
	)

	observe := func(attempt int) {
		outcome.Metrics.Retries++
		d.logger.Warn("publish attempt failed", "attempt", attempt, "topic", topic)
	}

	id, err := retry.Do(ctx, d.policy, observe, func(ctx context.Context) (string, error) {
		return d.dest.Publish(ctx, msg)
	})
	if err == nil {
		outcome.Success = true
		outcome.PushDelivered = pushWanted
		outcome.MessageID = id
		d.logger.Info("alert delivered", "message_id", id, "channels", outcome.Channels)
		return outcome, nil
	}

	outcome.Errors = append(outcome.Errors, err.Error())
	if !pushWanted || !retry.IsPushFault(err) {
		d.logger.Error("alert delivery failed", "error", err, "retries", outcome.Metrics.Retries)
		return outcome, err
	}

	// Push-specific failure: retry once more without the push payload so
	// email and SMS still go out.
	d.logger.Warn("push channel failed, falling back to email and sms", "error", err)
	outcome.FallbackUsed = true
	outcome.Channels = []string{ChannelEmail, ChannelSMS}

	fallbackMsg := msg
	fallbackMsg.Push = ""
	outcome.Metrics.PayloadBytes = len(fallbackMsg.Default) + len(fallbackMsg.SMS)

	id, fbErr := retry.Do(ctx, d.policy, observe, func(ctx context.Context) (string, error) {
		return d.dest.Publish(ctx, fallbackMsg)
	})
	if fbErr != nil {
		outcome.Errors = append(outcome.Errors, fbErr.Error())
		composed := errors.Join(err, fbErr)
		d.logger.Error("fallback delivery failed", "primary_error", err, "fallback_error", fbErr)
		return outcome, composed
	}

	outcome.Success = true
	outcome.PushDelivered = false
	outcome.MessageID = id
	d.logger.Info("alert delivered via fallback", "message_id", id, "channels", outcome.Channels)
	return outcome, nil
}

// emitDelivery records the per-dispatch metrics exactly once, from the
// deferred path, whatever branch returned.
func (d *Dispatcher) emitDelivery(ctx context.Context, outcome *model.DeliveryOutcome) {
	if d.sink == nil {
		return
	}
	success := 0.0
	if outcome.Success {
		success = 1
	}
	dims := map[string]string{
		"channels": strings.Join(outcome.Channels, ","),
		"fallback": strconv.FormatBool(outcome.FallbackUsed),
	}
	d.sink.Emit(ctx, "alert.delivery.success", success, dims)
	d.sink.Emit(ctx, "alert.delivery.retries", float64(outcome.Metrics.Retries), dims)
	d.sink.Emit(ctx, "alert.delivery.elapsed_ms", float64(outcome.Metrics.ElapsedMS), dims)

	pushAttempted := 0.0
	for _, ch := range outcome.Channels {
		if ch == ChannelPush {
			pushAttempted = 1
		}
	}
	if pushAttempted == 1 || outcome.FallbackUsed {
		delivered := 0.0
		if outcome.PushDelivered {
			delivered = 1
		}
		// Invalid-token counting belongs to the device registry, not here.
		d.sink.Emit(ctx, "alert.push.attempted", 1, nil)
		d.sink.Emit(ctx, "alert.push.delivered", delivered, nil)
		d.sink.Emit(ctx, "alert.push.invalid_tokens", 0, nil)
	}
}
