package camunda

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kyleinatl/CCOS-Charity-Guild-sub000/internal/common/errors"
)

var fastRetry = &RetryConfig{MaxRetries: 2, BaseDelay: time.Millisecond, MaxDelay: 2 * time.Millisecond}

func TestExecuteWithRetry_RetriesTransientErrors(t *testing.T) {
	calls := 0
	out, err := executeWithRetry(context.Background(), fastRetry, func(context.Context) (interface{}, error) {
		calls++
		if calls < 3 {
			return nil, fmt.Errorf("rpc error: code = Unavailable")
		}
		return "ok", nil
	}, "publish")

	require.NoError(t, err)
	assert.Equal(t, "ok", out)
	assert.Equal(t, 3, calls)
}

func TestExecuteWithRetry_StopsOnPermanentError(t *testing.T) {
	calls := 0
	_, err := executeWithRetry(context.Background(), fastRetry, func(context.Context) (interface{}, error) {
		calls++
		return nil, fmt.Errorf("process definition not found")
	}, "publish")

	assert.Equal(t, 1, calls)
	stdErr, ok := errors.AsStandardError(err)
	require.True(t, ok)
	assert.Equal(t, errors.ErrorCode("RESOURCE_NOT_FOUND"), stdErr.Code)
}

func TestMapZeebeError(t *testing.T) {
	tests := []struct {
		msg  string
		want errors.ErrorCode
	}{
		{"context deadline exceeded", "TIMEOUT_ERROR"},
		{"message already exists", "BUSINESS_RULE_VIOLATION"},
		{"permission denied", "AUTHENTICATION_ERROR"},
		{"connection refused", "EXTERNAL_SERVICE_ERROR"},
	}
	for _, tt := range tests {
		t.Run(tt.msg, func(t *testing.T) {
			stdErr, ok := errors.AsStandardError(mapZeebeError(fmt.Errorf("%s", tt.msg), "op", 1))
			require.True(t, ok)
			assert.Equal(t, tt.want, stdErr.Code)
		})
	}
}

func TestIsRetryableZeebeError(t *testing.T) {
	assert.True(t, isRetryableZeebeError(fmt.Errorf("Connection Reset by peer")))
	assert.True(t, isRetryableZeebeError(fmt.Errorf("rpc error: code = ResourceExhausted desc = resource exhausted")))
	assert.False(t, isRetryableZeebeError(fmt.Errorf("invalid argument")))
}
