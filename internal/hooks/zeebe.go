// Package hooks notifies outside automation systems when a workflow reaches
// a milestone: the Zeebe broker through message correlation, and generic
// webhook consumers.
package hooks

import (
	"context"
	stderrors "errors"
	"fmt"
	"time"

	"github.com/kyleinatl/CCOS-Charity-Guild-sub000/internal/automation/workflow"
	"github.com/kyleinatl/CCOS-Charity-Guild-sub000/internal/common/errors"
)

const DefaultMessageTTL = time.Hour

// MessagePublisher is the slice of the Zeebe client the hook needs.
type MessagePublisher interface {
	PublishMessage(ctx context.Context, name, correlationKey string, ttl time.Duration, vars map[string]interface{}) error
}

// ZeebeHook publishes each event as a BPMN message named after the event,
// correlated on the member, test, or event id found in the payload.
type ZeebeHook struct {
	publisher MessagePublisher
	ttl       time.Duration
}

func NewZeebeHook(publisher MessagePublisher, ttl time.Duration) *ZeebeHook {
	if ttl <= 0 {
		ttl = DefaultMessageTTL
	}
	return &ZeebeHook{publisher: publisher, ttl: ttl}
}

func (h *ZeebeHook) Trigger(ctx context.Context, event string, payload map[string]interface{}) error {
	if err := h.publisher.PublishMessage(ctx, event, CorrelationKey(event, payload), h.ttl, payload); err != nil {
		return errors.NewHookError(event, err)
	}
	return nil
}

var correlationFields = []string{"memberId", "testId", "eventId", "donationId"}

// CorrelationKey picks the first identifying field present in payload and
// falls back to the event name.
func CorrelationKey(event string, payload map[string]interface{}) string {
	for _, field := range correlationFields {
		if v, ok := payload[field]; ok {
			if s := fmt.Sprint(v); s != "" {
				return s
			}
		}
	}
	return event
}

// Fanout triggers every hook and reports all failures together.
type Fanout []workflow.ExternalAutomationHook

func (f Fanout) Trigger(ctx context.Context, event string, payload map[string]interface{}) error {
	var errs []error
	for _, h := range f {
		if err := h.Trigger(ctx, event, payload); err != nil {
			errs = append(errs, err)
		}
	}
	return stderrors.Join(errs...)
}
