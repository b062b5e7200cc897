package retry_test

import (
	"errors"
	"fmt"
	"testing"

	"github.com/aws/smithy-go"
	"github.com/stretchr/testify/assert"

	"github.com/cloudspend/sentinel/pkg/retry"
)

func TestClassify_StructuredCodes(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want retry.Category
	}{
		{"throttling code", &smithy.GenericAPIError{Code: "Throttling", Message: "rate exceeded"}, retry.CategoryThrottle},
		{"too many requests", &smithy.GenericAPIError{Code: "TooManyRequestsException", Message: "slow down"}, retry.CategoryThrottle},
		{"server fault", &smithy.GenericAPIError{Code: "InternalError", Message: "oops", Fault: smithy.FaultServer}, retry.CategoryServer},
		{"endpoint disabled", &smithy.GenericAPIError{Code: "EndpointDisabled", Message: "Endpoint is disabled"}, retry.CategoryPush},
		{"platform app disabled", &smithy.GenericAPIError{Code: "PlatformApplicationDisabled", Message: "disabled"}, retry.CategoryPush},
		{"invalid token parameter", &smithy.GenericAPIError{Code: "InvalidParameter", Message: "Invalid parameter: Token"}, retry.CategoryPush},
		{"client fault unknown code", &smithy.GenericAPIError{Code: "AccessDenied", Message: "no", Fault: smithy.FaultClient}, retry.CategoryUnknown},
		{"wrapped api error", fmt.Errorf("publish: %w", &smithy.GenericAPIError{Code: "Throttling"}), retry.CategoryThrottle},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, retry.Classify(tc.err))
		})
	}
}

func TestClassify_HeuristicFallback(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want retry.Category
	}{
		{"apns text", errors.New("APNS platform rejected the message"), retry.CategoryPush},
		{"certificate text", errors.New("certificate has expired"), retry.CategoryPush},
		{"credential text", errors.New("invalid platform credential"), retry.CategoryPush},
		{"throttle text", errors.New("request throttled upstream"), retry.CategoryThrottle},
		{"timeout text", errors.New("operation timed out"), retry.CategoryNetwork},
		{"connection reset text", errors.New("read: connection reset by peer"), retry.CategoryNetwork},
		{"plain failure", errors.New("something else entirely"), retry.CategoryUnknown},
		{"nil", nil, retry.CategoryUnknown},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, retry.Classify(tc.err))
		})
	}
}

func TestClassify_Validation(t *testing.T) {
	err := retry.NewValidationError("threshold must be positive")
	assert.Equal(t, retry.CategoryValidation, retry.Classify(err))
	assert.Equal(t, retry.CategoryValidation, retry.Classify(fmt.Errorf("compute context: %w", err)))
	assert.False(t, retry.IsRetryable(err))
}

func TestIsRetryable(t *testing.T) {
	assert.True(t, retry.IsRetryable(&smithy.GenericAPIError{Code: "Throttling"}))
	assert.True(t, retry.IsRetryable(&smithy.GenericAPIError{Code: "ServiceUnavailable", Fault: smithy.FaultServer}))
	assert.True(t, retry.IsRetryable(errors.New("dial tcp: i/o timeout")))
	assert.False(t, retry.IsRetryable(&smithy.GenericAPIError{Code: "EndpointDisabled"}))
	assert.False(t, retry.IsRetryable(errors.New("no such topic")))
}

func TestIsPushFault(t *testing.T) {
	assert.True(t, retry.IsPushFault(&smithy.GenericAPIError{Code: "EndpointDisabled"}))
	assert.True(t, retry.IsPushFault(errors.New("APNS certificate mismatch")))
	assert.False(t, retry.IsPushFault(errors.New("Throttling: rate exceeded")))
}
