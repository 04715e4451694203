// Package intake accepts automation events from the message bus and the
// HTTP API and hands them to the dispatcher exactly once.
package intake

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/kyleinatl/CCOS-Charity-Guild-sub000/internal/automation/dispatcher"
	"github.com/kyleinatl/CCOS-Charity-Guild-sub000/internal/common/errors"
	"github.com/kyleinatl/CCOS-Charity-Guild-sub000/internal/common/logger"
	"github.com/kyleinatl/CCOS-Charity-Guild-sub000/internal/models"
)

const (
	scopePayment = "payment"
	scopeMessage = "message"
)

type Dispatcher interface {
	Dispatch(ctx context.Context, ev dispatcher.Event) *models.WorkflowResult
}

// Deduper is satisfied by the Redis deduplicator.
type Deduper interface {
	FirstSeen(ctx context.Context, scope, id string) (bool, error)
	Forget(ctx context.Context, scope, id string) error
}

// DonationRecorder persists a settled payment; false means it was already
// recorded.
type DonationRecorder interface {
	RecordDonation(ctx context.Context, payment models.PaymentConfirmation) (bool, error)
}

type Intake struct {
	dispatcher Dispatcher
	dedupe     Deduper
	donations  DonationRecorder
	logger     logger.Logger
}

// New wires the intake. dedupe and donations may be nil.
func New(d Dispatcher, dedupe Deduper, donations DonationRecorder, log logger.Logger) *Intake {
	if log == nil {
		log = logger.NewNoOpLogger()
	}
	return &Intake{dispatcher: d, dedupe: dedupe, donations: donations, logger: log}
}

// Handle dispatches ev unless it is a duplicate. A nil result with a nil
// error means the event was dropped as a duplicate. An error means nothing
// was dispatched and the caller may redeliver.
func (in *Intake) Handle(ctx context.Context, ev dispatcher.Event, messageID string) (*models.WorkflowResult, error) {
	if !ev.Type.Valid() {
		return nil, errors.NewUnknownEventTypeError(string(ev.Type))
	}

	scope, id, err := dedupeKey(ev, messageID)
	if err != nil {
		return nil, err
	}

	if id != "" && in.dedupe != nil {
		first, err := in.dedupe.FirstSeen(ctx, scope, id)
		if err != nil {
			return nil, err
		}
		if !first {
			in.logger.Info("duplicate event dropped", map[string]interface{}{
				"eventType": ev.Type,
				"scope":     scope,
				"id":        id,
			})
			return nil, nil
		}
	}

	if ev.Type == dispatcher.EventPaymentConfirmed && in.donations != nil {
		var payment models.PaymentConfirmation
		if err := json.Unmarshal(ev.Payload, &payment); err != nil {
			return nil, errors.NewInvalidInputError(fmt.Sprintf("payment payload: %v", err))
		}
		created, err := in.donations.RecordDonation(ctx, payment)
		if err != nil {
			in.forget(ctx, scope, id)
			return nil, err
		}
		if !created {
			in.logger.Info("donation already recorded", map[string]interface{}{
				"donationId": payment.DonationID,
			})
			return nil, nil
		}
	}

	result := in.dispatcher.Dispatch(ctx, ev)
	if !result.Success {
		in.logger.Warn("event dispatched with errors", map[string]interface{}{
			"eventType": ev.Type,
			"workflow":  result.Workflow,
			"errors":    result.Errors,
		})
	}
	return result, nil
}

func (in *Intake) forget(ctx context.Context, scope, id string) {
	if id == "" || in.dedupe == nil {
		return
	}
	if err := in.dedupe.Forget(ctx, scope, id); err != nil {
		in.logger.Warn("failed to release dedupe key", map[string]interface{}{
			"scope": scope,
			"id":    id,
			"error": err.Error(),
		})
	}
}

// dedupeKey keys payments by donation id and everything else by the
// transport's message id, when there is one.
func dedupeKey(ev dispatcher.Event, messageID string) (string, string, error) {
	if ev.Type == dispatcher.EventPaymentConfirmed {
		var p struct {
			DonationID string `json:"donationId"`
		}
		if len(ev.Payload) == 0 {
			return "", "", errors.NewInvalidInputError("payment.confirmed requires a payload")
		}
		if err := json.Unmarshal(ev.Payload, &p); err != nil {
			return "", "", errors.NewInvalidInputError(fmt.Sprintf("payment payload: %v", err))
		}
		if p.DonationID != "" {
			return scopePayment, p.DonationID, nil
		}
	}
	return scopeMessage, messageID, nil
}

// retryable reports whether redelivering the event could succeed.
func retryable(err error) bool {
	if stdErr, ok := errors.AsStandardError(err); ok {
		return stdErr.Retryable
	}
	return true
}
