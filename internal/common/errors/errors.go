// Package errors provides standardized error handling for automation workers
// and their BPMN integration.
package errors

import (
	stderrors "errors"
	"fmt"
	"strings"
	"time"
)

// ==========================
// 1. Standard Error Types
// ==========================

// ErrorCode represents standardized internal error codes.
type ErrorCode string

const (
	ErrCodeMemberNotFound     ErrorCode = "MEMBER_NOT_FOUND"
	ErrCodeTemplateNotFound   ErrorCode = "TEMPLATE_NOT_FOUND"
	ErrCodeCampaignNotFound   ErrorCode = "CAMPAIGN_NOT_FOUND"
	ErrCodeInvalidInput       ErrorCode = "INVALID_WORKFLOW_INPUT"
	ErrCodeUnknownEventType   ErrorCode = "UNKNOWN_EVENT_TYPE"
	ErrCodeTemplateValidation ErrorCode = "TEMPLATE_VALIDATION_FAILED"

	ErrCodeDatabaseConnectionFailed      ErrorCode = "DATABASE_CONNECTION_FAILED"
	ErrCodeMemberStoreFailed             ErrorCode = "MEMBER_STORE_FAILED"
	ErrCodeMemberUpdateFailed            ErrorCode = "MEMBER_UPDATE_FAILED"
	ErrCodeTaskEnqueueFailed             ErrorCode = "TASK_ENQUEUE_FAILED"
	ErrCodeExecutionLogFailed            ErrorCode = "EXECUTION_LOG_FAILED"
	ErrCodeElasticsearchConnectionFailed ErrorCode = "ELASTICSEARCH_CONNECTION_FAILED"
	ErrCodeAnalyticsFailed               ErrorCode = "ANALYTICS_FAILED"

	ErrCodeDeliveryFailed ErrorCode = "DELIVERY_FAILED"
	ErrCodeHookFailed     ErrorCode = "AUTOMATION_HOOK_FAILED"
	ErrCodeCRMTaskFailed  ErrorCode = "CRM_TASK_FAILED"

	ErrCodeWorkflowFailed ErrorCode = "WORKFLOW_FAILED"
)

// StandardError represents a structured application error.
type StandardError struct {
	Code      ErrorCode              `json:"code"`
	Message   string                 `json:"message"`
	Details   string                 `json:"details,omitempty"`
	Retryable bool                   `json:"retryable"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
}

func (e *StandardError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("StandardError[%s]: %s (%s)", e.Code, e.Message, e.Details)
	}
	return fmt.Sprintf("StandardError[%s]: %s", e.Code, e.Message)
}

// WithMetadata attaches a key to the error and returns it.
func (e *StandardError) WithMetadata(key string, value interface{}) *StandardError {
	if e.Metadata == nil {
		e.Metadata = make(map[string]interface{})
	}
	e.Metadata[key] = value
	return e
}

// AsStandardError finds a StandardError in err's chain.
func AsStandardError(err error) (*StandardError, bool) {
	var stdErr *StandardError
	if stderrors.As(err, &stdErr) {
		return stdErr, true
	}
	return nil, false
}

// HasCode reports whether err carries code.
func HasCode(err error, code ErrorCode) bool {
	stdErr, ok := AsStandardError(err)
	return ok && stdErr.Code == code
}

// ==========================
// 2. BPMN Error Integration
// ==========================

// BPMNError represents an error that can be thrown to the Camunda workflow engine.
type BPMNError struct {
	Code           string                 `json:"code"`
	Message        string                 `json:"message"`
	Details        string                 `json:"details,omitempty"`
	Retryable      bool                   `json:"retryable"`
	Retries        int                    `json:"retries"`
	ErrorVariables map[string]interface{} `json:"errorVariables,omitempty"`
}

func (e *BPMNError) Error() string {
	return fmt.Sprintf("BPMNError[%s]: %s", e.Code, e.Message)
}

// ToErrorVariables returns a map suitable for setting Camunda job fail variables.
func (e *BPMNError) ToErrorVariables() map[string]interface{} {
	vars := map[string]interface{}{
		"errorCode":    e.Code,
		"errorMessage": e.Message,
		"errorDetails": e.Details,
		"retryable":    e.Retryable,
	}
	for k, v := range e.ErrorVariables {
		vars[k] = v
	}
	return vars
}

// ==========================
// 3. Error Constructors
// ==========================

func NewMemberNotFoundError(memberID string) *StandardError {
	return &StandardError{
		Code:      ErrCodeMemberNotFound,
		Message:   "Member not found",
		Details:   fmt.Sprintf("memberId: %s", memberID),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewTemplateNotFoundError creates a non-retryable template error.
func NewTemplateNotFoundError(templateID string) *StandardError {
	return &StandardError{
		Code:      ErrCodeTemplateNotFound,
		Message:   "Template not found in store",
		Details:   fmt.Sprintf("templateId: %s", templateID),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

func NewCampaignNotFoundError(campaignType string) *StandardError {
	return &StandardError{
		Code:      ErrCodeCampaignNotFound,
		Message:   "Unknown drip campaign",
		Details:   fmt.Sprintf("campaignType: %s", campaignType),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewInvalidInputError reports job variables or event payloads that fail validation.
func NewInvalidInputError(details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeInvalidInput,
		Message:   "Workflow input validation failed",
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

func NewUnknownEventTypeError(eventType string) *StandardError {
	return &StandardError{
		Code:      ErrCodeUnknownEventType,
		Message:   "Unknown automation event type",
		Details:   fmt.Sprintf("eventType: %s", eventType),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

func NewTemplateValidationError(details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeTemplateValidation,
		Message:   "Template registry validation failed",
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewDatabaseConnectionFailedError creates a retryable database connection error.
func NewDatabaseConnectionFailedError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeDatabaseConnectionFailed,
		Message:   "Database connection error",
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

func NewMemberStoreError(operation string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeMemberStoreFailed,
		Message:   "Member store query failed",
		Details:   fmt.Sprintf("operation: %s, error: %s", operation, err.Error()),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

func NewMemberUpdateError(memberID string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeMemberUpdateFailed,
		Message:   "Member update failed",
		Details:   fmt.Sprintf("memberId: %s, error: %s", memberID, err.Error()),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

func NewTaskEnqueueError(taskType string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeTaskEnqueueFailed,
		Message:   "Scheduled task could not be enqueued",
		Details:   fmt.Sprintf("taskType: %s, error: %s", taskType, err.Error()),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

func NewExecutionLogError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeExecutionLogFailed,
		Message:   "Execution log unavailable",
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewElasticsearchConnectionFailedError creates a retryable Elasticsearch connection error.
func NewElasticsearchConnectionFailedError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeElasticsearchConnectionFailed,
		Message:   "Elasticsearch connection error",
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

func NewAnalyticsError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeAnalyticsFailed,
		Message:   "Workflow tracking failed",
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewDeliveryFailedError creates a retryable message delivery error.
func NewDeliveryFailedError(channel string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeDeliveryFailed,
		Message:   "Message delivery failed",
		Details:   fmt.Sprintf("channel: %s, error: %s", channel, err.Error()),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

func NewHookError(event string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeHookFailed,
		Message:   "External automation hook failed",
		Details:   fmt.Sprintf("event: %s, error: %s", event, err.Error()),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

func NewCRMTaskError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeCRMTaskFailed,
		Message:   "Staff follow-up task could not be created",
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewWorkflowFailedError wraps the error list of an unsuccessful workflow run.
func NewWorkflowFailedError(workflow string, errs []string) *StandardError {
	return &StandardError{
		Code:      ErrCodeWorkflowFailed,
		Message:   fmt.Sprintf("Workflow %s finished with errors", workflow),
		Details:   strings.Join(errs, "; "),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// Generic constructors

func NewBusinessRuleError(message, details string) *StandardError {
	return &StandardError{
		Code:      "BUSINESS_RULE_VIOLATION",
		Message:   message,
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

func NewExternalServiceError(service string, err error) *StandardError {
	return &StandardError{
		Code:      "EXTERNAL_SERVICE_ERROR",
		Message:   fmt.Sprintf("External service '%s' error", service),
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

func NewTimeoutError(service string, err error) *StandardError {
	return &StandardError{
		Code:      "TIMEOUT_ERROR",
		Message:   fmt.Sprintf("Service '%s' timeout", service),
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

func NewResourceNotFoundError(service, details string) *StandardError {
	return &StandardError{
		Code:      "RESOURCE_NOT_FOUND",
		Message:   fmt.Sprintf("Resource not found in %s", service),
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

func NewAuthenticationError(details string) *StandardError {
	return &StandardError{
		Code:      "AUTHENTICATION_ERROR",
		Message:   "Authentication failed",
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// ==========================
// 4. Error Conversion to BPMN
// ==========================

// BPMNErrorMapping maps internal codes to the error codes caught by boundary
// events in the automation process models.
var BPMNErrorMapping = map[ErrorCode]string{
	ErrCodeMemberNotFound:                "MEMBER_NOT_FOUND",
	ErrCodeTemplateNotFound:              "TEMPLATE_NOT_FOUND",
	ErrCodeCampaignNotFound:              "CAMPAIGN_NOT_FOUND",
	ErrCodeInvalidInput:                  "INVALID_INPUT",
	ErrCodeUnknownEventType:              "INVALID_INPUT",
	ErrCodeTemplateValidation:            "TEMPLATE_VALIDATION_FAILED",
	ErrCodeDatabaseConnectionFailed:      "DATABASE_CONNECTION_FAILED",
	ErrCodeMemberStoreFailed:             "MEMBER_STORE_FAILED",
	ErrCodeMemberUpdateFailed:            "MEMBER_STORE_FAILED",
	ErrCodeTaskEnqueueFailed:             "TASK_ENQUEUE_FAILED",
	ErrCodeExecutionLogFailed:            "EXECUTION_LOG_FAILED",
	ErrCodeElasticsearchConnectionFailed: "ELASTICSEARCH_CONNECTION_FAILED",
	ErrCodeAnalyticsFailed:               "ANALYTICS_FAILED",
	ErrCodeDeliveryFailed:                "DELIVERY_FAILED",
	ErrCodeHookFailed:                    "AUTOMATION_HOOK_FAILED",
	ErrCodeCRMTaskFailed:                 "CRM_TASK_FAILED",
	ErrCodeWorkflowFailed:                "WORKFLOW_FAILED",
}

// GetRetryCount returns the recommended retry count for an error code.
func GetRetryCount(code ErrorCode) int {
	switch code {
	case ErrCodeDatabaseConnectionFailed,
		ErrCodeMemberStoreFailed,
		ErrCodeMemberUpdateFailed,
		ErrCodeTaskEnqueueFailed,
		ErrCodeExecutionLogFailed,
		ErrCodeDeliveryFailed,
		ErrCodeCRMTaskFailed:
		return 3

	case ErrCodeElasticsearchConnectionFailed,
		ErrCodeAnalyticsFailed,
		ErrCodeHookFailed:
		return 2

	default:
		return 0
	}
}

// ConvertToBPMNError converts a StandardError to a BPMNError for Camunda.
func ConvertToBPMNError(stdErr *StandardError) *BPMNError {
	bpmnCode, exists := BPMNErrorMapping[stdErr.Code]
	if !exists {
		bpmnCode = string(stdErr.Code)
	}

	retries := GetRetryCount(stdErr.Code)
	if !stdErr.Retryable {
		retries = 0
	}

	vars := map[string]interface{}{
		"originalErrorCode": string(stdErr.Code),
		"timestamp":         stdErr.Timestamp.Format(time.RFC3339),
	}
	for k, v := range stdErr.Metadata {
		vars[k] = v
	}

	return &BPMNError{
		Code:           bpmnCode,
		Message:        stdErr.Message,
		Details:        stdErr.Details,
		Retryable:      stdErr.Retryable,
		Retries:        retries,
		ErrorVariables: vars,
	}
}

// ==========================
// 5. Utility Functions
// ==========================

// IsRetryableErrorCode checks if an error code is retryable.
func IsRetryableErrorCode(code ErrorCode) bool {
	return GetRetryCount(code) > 0
}

// GetErrorCategory returns the category of the error code.
func GetErrorCategory(code ErrorCode) string {
	codeStr := string(code)
	switch {
	case strings.Contains(codeStr, "MEMBER"):
		return "MEMBER"
	case strings.Contains(codeStr, "TEMPLATE") || strings.Contains(codeStr, "CAMPAIGN"):
		return "CONTENT"
	case strings.Contains(codeStr, "DATABASE") || strings.Contains(codeStr, "TASK_ENQUEUE") || strings.Contains(codeStr, "EXECUTION_LOG"):
		return "STORAGE"
	case strings.Contains(codeStr, "ELASTICSEARCH") || strings.Contains(codeStr, "ANALYTICS"):
		return "ANALYTICS"
	case strings.Contains(codeStr, "DELIVERY"):
		return "DELIVERY"
	case strings.Contains(codeStr, "HOOK") || strings.Contains(codeStr, "CRM") || strings.Contains(codeStr, "EXTERNAL"):
		return "INTEGRATION"
	case strings.Contains(codeStr, "INVALID") || strings.Contains(codeStr, "UNKNOWN") || strings.Contains(codeStr, "VALIDATION"):
		return "VALIDATION"
	case strings.Contains(codeStr, "WORKFLOW") || strings.Contains(codeStr, "TIMEOUT"):
		return "WORKFLOW"
	default:
		return "OTHER"
	}
}
