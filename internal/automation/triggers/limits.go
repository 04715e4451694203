// internal/automation/triggers/limits.go
package triggers

import (
	"context"
	"fmt"
	"time"

	"github.com/kyleinatl/CCOS-Charity-Guild-sub000/internal/models"
)

// ExecutionLog remembers when a trigger fired for a member.
type ExecutionLog interface {
	RecordExecution(ctx context.Context, memberID, event string, at time.Time) error
	CountRecentExecutions(ctx context.Context, memberID, event string, since time.Time) (int, error)
}

// AtomicExecutionLog checks limits and records the execution in one step, so
// two concurrent triggers for the same member cannot both pass the cooldown.
type AtomicExecutionLog interface {
	ExecutionLog
	TryRecordExecution(ctx context.Context, memberID, event string, at time.Time, limits Limits) (Decision, error)
}

// Limits is the normalized form of a trigger's execution constraints.
type Limits struct {
	MaxExecutions    int
	HasMaxExecutions bool
	Cooldown         time.Duration
}

func (l Limits) IsZero() bool {
	return !l.HasMaxExecutions && l.Cooldown <= 0
}

func LimitsFor(trigger models.BehaviorTrigger) Limits {
	var l Limits
	if trigger.MaxExecutions != nil {
		l.MaxExecutions = *trigger.MaxExecutions
		l.HasMaxExecutions = true
	}
	if trigger.CooldownHours != nil && *trigger.CooldownHours > 0 {
		l.Cooldown = time.Duration(*trigger.CooldownHours * float64(time.Hour))
	}
	return l
}

type DenyReason string

const (
	DenyNone          DenyReason = ""
	DenyMaxExecutions DenyReason = "max_executions"
	DenyCooldown      DenyReason = "cooldown"
)

type Decision struct {
	Allowed bool
	Reason  DenyReason
	// Recorded is true when the execution was already written by the check.
	Recorded bool
}

// SkipMessage is the action recorded when the decision denies the trigger.
func (d Decision) SkipMessage() string {
	switch d.Reason {
	case DenyMaxExecutions:
		return "Execution limit reached, workflow skipped"
	case DenyCooldown:
		return "Cooldown period active, workflow skipped"
	default:
		return ""
	}
}

type LimitChecker struct {
	log ExecutionLog
}

func NewLimitChecker(log ExecutionLog) *LimitChecker {
	return &LimitChecker{log: log}
}

// Check evaluates maxExecutions and cooldown for memberID. When the log is
// atomic the execution is recorded as part of an allowed decision.
func (c *LimitChecker) Check(ctx context.Context, memberID string, trigger models.BehaviorTrigger, now time.Time) (Decision, error) {
	limits := LimitsFor(trigger)
	if limits.IsZero() {
		return Decision{Allowed: true}, nil
	}

	if atomic, ok := c.log.(AtomicExecutionLog); ok {
		return atomic.TryRecordExecution(ctx, memberID, trigger.Event, now, limits)
	}

	if limits.HasMaxExecutions {
		total, err := c.log.CountRecentExecutions(ctx, memberID, trigger.Event, time.Time{})
		if err != nil {
			return Decision{}, fmt.Errorf("count executions: %w", err)
		}
		if total >= limits.MaxExecutions {
			return Decision{Reason: DenyMaxExecutions}, nil
		}
	}

	if limits.Cooldown > 0 {
		recent, err := c.log.CountRecentExecutions(ctx, memberID, trigger.Event, now.Add(-limits.Cooldown))
		if err != nil {
			return Decision{}, fmt.Errorf("count recent executions: %w", err)
		}
		if recent > 0 {
			return Decision{Reason: DenyCooldown}, nil
		}
	}

	return Decision{Allowed: true}, nil
}

// Record writes the execution unless the decision already did.
func (c *LimitChecker) Record(ctx context.Context, memberID, event string, now time.Time, d Decision) error {
	if d.Recorded {
		return nil
	}
	return c.log.RecordExecution(ctx, memberID, event, now)
}
