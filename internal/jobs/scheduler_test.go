package jobs

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kyleinatl/CCOS-Charity-Guild-sub000/internal/automation/dispatcher"
	stderrors "github.com/kyleinatl/CCOS-Charity-Guild-sub000/internal/common/errors"
	"github.com/kyleinatl/CCOS-Charity-Guild-sub000/internal/common/logger"
	"github.com/kyleinatl/CCOS-Charity-Guild-sub000/internal/models"
	"github.com/kyleinatl/CCOS-Charity-Guild-sub000/internal/runner"
)

type scriptedRunner struct {
	passes []runner.Summary
	err    error
	calls  int
}

func (r *scriptedRunner) RunOnce(context.Context) (runner.Summary, error) {
	if r.err != nil {
		return runner.Summary{}, r.err
	}
	r.calls++
	if r.calls > len(r.passes) {
		return runner.Summary{}, nil
	}
	return r.passes[r.calls-1], nil
}

type handled struct {
	ev dispatcher.Event
	id string
}

type recordingHandler struct {
	calls  []handled
	result *models.WorkflowResult
	err    error
}

func (h *recordingHandler) Handle(_ context.Context, ev dispatcher.Event, id string) (*models.WorkflowResult, error) {
	h.calls = append(h.calls, handled{ev, id})
	return h.result, h.err
}

// ==========================
// Scheduler Tests
// ==========================

func TestRegister_EmptySpecDisablesJob(t *testing.T) {
	s := NewScheduler(logger.NewTestLogger(t), time.Second)

	require.NoError(t, s.Register("newsletter", "", func(context.Context, time.Time) error { return nil }))

	assert.Empty(t, s.cron.Entries())
}

func TestRegister_InvalidSpec(t *testing.T) {
	s := NewScheduler(logger.NewTestLogger(t), time.Second)

	err := s.Register("newsletter", "every tuesday", func(context.Context, time.Time) error { return nil })

	assert.ErrorContains(t, err, "schedule newsletter")
}

func TestRegister_ValidSpecs(t *testing.T) {
	s := NewScheduler(logger.NewTestLogger(t), time.Second)
	noop := func(context.Context, time.Time) error { return nil }

	require.NoError(t, s.Register("runner", "@every 1m", noop))
	require.NoError(t, s.Register("newsletter", "0 10 1 * *", noop))

	assert.Len(t, s.cron.Entries(), 2)
}

func TestWrap_PassesFiringTimeAndDeadline(t *testing.T) {
	s := NewScheduler(logger.NewTestLogger(t), time.Minute)
	fired := time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return fired }

	var gotAt time.Time
	var hasDeadline bool
	s.wrap("probe", func(ctx context.Context, at time.Time) error {
		gotAt = at
		_, hasDeadline = ctx.Deadline()
		return errors.New("logged, not returned")
	})()

	assert.Equal(t, fired, gotAt)
	assert.True(t, hasDeadline)
}

// ==========================
// Job Tests
// ==========================

func TestRunnerJob_DrainsUntilEmpty(t *testing.T) {
	r := &scriptedRunner{passes: []runner.Summary{{Claimed: 100, Completed: 100}, {Claimed: 3, Completed: 3}}}

	err := RunnerJob(r, logger.NewTestLogger(t))(context.Background(), time.Now())

	require.NoError(t, err)
	assert.Equal(t, 3, r.calls)
}

func TestRunnerJob_ReturnsClaimError(t *testing.T) {
	r := &scriptedRunner{err: errors.New("connection refused")}

	err := RunnerJob(r, logger.NewTestLogger(t))(context.Background(), time.Now())

	assert.EqualError(t, err, "connection refused")
}

func TestTickJob_UsesMinuteAsMessageID(t *testing.T) {
	h := &recordingHandler{result: &models.WorkflowResult{Success: true}}
	at := time.Date(2026, 6, 1, 10, 0, 42, 0, time.UTC)

	require.NoError(t, TickJob(h, dispatcher.EventNewsletterTick)(context.Background(), at))

	require.Len(t, h.calls, 1)
	assert.Equal(t, dispatcher.EventNewsletterTick, h.calls[0].ev.Type)
	assert.Empty(t, h.calls[0].ev.Payload)
	assert.Equal(t, "newsletter.tick@2026-06-01T10:00:00Z", h.calls[0].id)
}

func TestTickJob_ReportsWorkflowErrors(t *testing.T) {
	h := &recordingHandler{result: &models.WorkflowResult{Errors: []string{"a", "b"}}}

	err := TickJob(h, dispatcher.EventReengagementTick)(context.Background(), time.Now())

	stdErr, ok := stderrors.AsStandardError(err)
	require.True(t, ok)
	assert.Equal(t, stderrors.ErrCodeWorkflowFailed, stdErr.Code)
}

func TestTickJob_DuplicateIsNotAnError(t *testing.T) {
	h := &recordingHandler{}

	assert.NoError(t, TickJob(h, dispatcher.EventReengagementTick)(context.Background(), time.Now()))
}
