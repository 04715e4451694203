package errors

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConvertToBPMNError(t *testing.T) {
	stdErr := NewDeliveryFailedError("email", fmt.Errorf("ses throttled")).
		WithMetadata("memberId", "m-1")

	bpmnErr := ConvertToBPMNError(stdErr)

	assert.Equal(t, "DELIVERY_FAILED", bpmnErr.Code)
	assert.True(t, bpmnErr.Retryable)
	assert.Equal(t, 3, bpmnErr.Retries)
	vars := bpmnErr.ToErrorVariables()
	assert.Equal(t, "DELIVERY_FAILED", vars["originalErrorCode"])
	assert.Equal(t, "m-1", vars["memberId"])
	assert.Equal(t, "Message delivery failed", vars["errorMessage"])
}

func TestConvertToBPMNError_NonRetryableHasNoRetries(t *testing.T) {
	bpmnErr := ConvertToBPMNError(NewCampaignNotFoundError("spring_gala"))

	assert.Equal(t, "CAMPAIGN_NOT_FOUND", bpmnErr.Code)
	assert.Zero(t, bpmnErr.Retries)
}

func TestConvertToBPMNError_UnmappedCodeFallsBack(t *testing.T) {
	bpmnErr := ConvertToBPMNError(NewBusinessRuleError("nope", ""))
	assert.Equal(t, "BUSINESS_RULE_VIOLATION", bpmnErr.Code)
}

func TestGetRetryCount(t *testing.T) {
	tests := []struct {
		code ErrorCode
		want int
	}{
		{ErrCodeMemberStoreFailed, 3},
		{ErrCodeTaskEnqueueFailed, 3},
		{ErrCodeHookFailed, 2},
		{ErrCodeAnalyticsFailed, 2},
		{ErrCodeMemberNotFound, 0},
		{ErrCodeInvalidInput, 0},
	}
	for _, tt := range tests {
		t.Run(string(tt.code), func(t *testing.T) {
			assert.Equal(t, tt.want, GetRetryCount(tt.code))
			assert.Equal(t, tt.want > 0, IsRetryableErrorCode(tt.code))
		})
	}
}

func TestGetErrorCategory(t *testing.T) {
	assert.Equal(t, "MEMBER", GetErrorCategory(ErrCodeMemberUpdateFailed))
	assert.Equal(t, "CONTENT", GetErrorCategory(ErrCodeCampaignNotFound))
	assert.Equal(t, "STORAGE", GetErrorCategory(ErrCodeTaskEnqueueFailed))
	assert.Equal(t, "DELIVERY", GetErrorCategory(ErrCodeDeliveryFailed))
	assert.Equal(t, "INTEGRATION", GetErrorCategory(ErrCodeCRMTaskFailed))
	assert.Equal(t, "VALIDATION", GetErrorCategory(ErrCodeUnknownEventType))
	assert.Equal(t, "OTHER", GetErrorCategory("SOMETHING_ELSE"))
}

func TestAsStandardError_Wrapped(t *testing.T) {
	err := fmt.Errorf("load member: %w", NewMemberNotFoundError("m-9"))

	stdErr, ok := AsStandardError(err)
	require.True(t, ok)
	assert.Equal(t, ErrCodeMemberNotFound, stdErr.Code)
	assert.True(t, HasCode(err, ErrCodeMemberNotFound))
	assert.False(t, HasCode(fmt.Errorf("plain"), ErrCodeMemberNotFound))
}

func TestRemainingRetries(t *testing.T) {
	assert.Equal(t, int32(1), RemainingRetries(1, 3))
	assert.Equal(t, int32(3), RemainingRetries(5, 3))
	assert.Equal(t, int32(3), RemainingRetries(0, 3))
}

func TestErrorHandler_NormalizeError(t *testing.T) {
	h := NewErrorHandler(nil)

	assert.Equal(t, ErrorCode("TIMEOUT_ERROR"), h.normalizeError(context.DeadlineExceeded).Code)
	assert.Equal(t, ErrorCode("INTERNAL_ERROR"), h.normalizeError(fmt.Errorf("boom")).Code)
	assert.Equal(t, ErrCodeHookFailed, h.normalizeError(NewHookError("x", fmt.Errorf("y"))).Code)
}
