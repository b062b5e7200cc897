package retry

import (
	"errors"
	"net"
	"strings"
	"syscall"

	"github.com/aws/smithy-go"
)

// Category is the closed set of fault kinds the delivery path branches on.
type Category int

const (
	// CategoryUnknown covers faults the classifier cannot place. Never retried.
	CategoryUnknown Category = iota
	// CategoryValidation covers caller mistakes (bad token, bad threshold). Never retried.
	CategoryValidation
	// CategoryThrottle covers rate limiting and 429-equivalents. Retried.
	CategoryThrottle
	// CategoryServer covers 5xx-equivalent upstream faults. Retried.
	CategoryServer
	// CategoryNetwork covers transient resets and timeouts. Retried.
	CategoryNetwork
	// CategoryPush covers push-channel faults (credential, certificate,
	// disabled endpoint, invalid token). Triggers the dispatch fallback.
	CategoryPush
)

// ValidationError marks input the caller got wrong. It is surfaced
// immediately, never retried.
type ValidationError struct {
	msg string
}

// NewValidationError creates a validation fault with the given message.
func NewValidationError(msg string) *ValidationError {
	return &ValidationError{msg: msg}
}

func (e *ValidationError) Error() string { return e.msg }

// IsValidation reports whether err is a validation fault.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

var throttleCodes = map[string]bool{
	"Throttling":               true,
	"ThrottlingException":      true,
	"Throttled":                true,
	"ThrottledException":       true,
	"TooManyRequestsException": true,
	"RequestThrottled":         true,
	"SlowDown":                 true,
	"LimitExceededException":   true,
}

var pushCodes = map[string]bool{
	"EndpointDisabled":            true,
	"PlatformApplicationDisabled": true,
	"InvalidParameter":            true, // SNS reports dead tokens this way
}

// Classify maps an error to its fault category. Structured codes from the
// transport layer win; message-substring matching is a best-effort
// heuristic kept only for the push gateway's opaque errors.
func Classify(err error) Category {
	if err == nil {
		return CategoryUnknown
	}
	if IsValidation(err) {
		return CategoryValidation
	}

	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		code := apiErr.ErrorCode()
		switch {
		case pushCodes[code]:
			return CategoryPush
		case throttleCodes[code]:
			return CategoryThrottle
		case apiErr.ErrorFault() == smithy.FaultServer:
			return CategoryServer
		}
	}

	var statusErr interface{ HTTPStatusCode() int }
	if errors.As(err, &statusErr) {
		switch code := statusErr.HTTPStatusCode(); {
		case code == 429:
			return CategoryThrottle
		case code >= 500:
			return CategoryServer
		}
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return CategoryNetwork
	}
	if errors.Is(err, syscall.ECONNRESET) || errors.Is(err, syscall.ECONNREFUSED) {
		return CategoryNetwork
	}

	// Heuristic fallback: the push gateway surfaces credential and
	// certificate problems only as message text. Fragile, but there is no
	// structured signal to prefer.
	msg := strings.ToLower(err.Error())
	for _, hint := range []string{"apns", "certificate", "credential", "device token", "platform application", "endpoint is disabled", "endpointdisabled"} {
		if strings.Contains(msg, hint) {
			return CategoryPush
		}
	}
	for _, hint := range []string{"throttl", "rate exceeded", "too many requests"} {
		if strings.Contains(msg, hint) {
			return CategoryThrottle
		}
	}
	for _, hint := range []string{"timeout", "timed out", "connection reset", "connection refused"} {
		if strings.Contains(msg, hint) {
			return CategoryNetwork
		}
	}
	return CategoryUnknown
}

// IsRetryable reports whether another attempt could plausibly succeed.
func IsRetryable(err error) bool {
	switch Classify(err) {
	case CategoryThrottle, CategoryServer, CategoryNetwork:
		return true
	}
	return false
}

// IsPushFault reports whether the error is specific to the push channel,
// so the dispatcher can fall back to the remaining channels.
func IsPushFault(err error) bool {
	return Classify(err) == CategoryPush
}
