// Package schedule turns step tables into timestamped ScheduledTasks.
package schedule

import (
	"time"

	"github.com/google/uuid"

	"github.com/kyleinatl/CCOS-Charity-Guild-sub000/internal/models"
)

const DefaultNewsletterHour = 10

// Step is one hour-offset step. DelayHours is added to the running offset.
type Step struct {
	DelayHours float64
	TaskType   string
	Data       map[string]interface{}
	Priority   models.Priority
}

// DayStep is one step of a day-based campaign, offset from campaign start.
type DayStep struct {
	Day      int
	TaskType string
	Data     map[string]interface{}
	Priority models.Priority
}

type Scheduler struct {
	now   func() time.Time
	newID func() string
}

type Option func(*Scheduler)

// WithIDGenerator replaces uuid task ids, mostly for tests.
func WithIDGenerator(fn func() string) Option {
	return func(s *Scheduler) { s.newID = fn }
}

func New(now func() time.Time, opts ...Option) *Scheduler {
	if now == nil {
		now = time.Now
	}
	s := &Scheduler{now: now, newID: uuid.NewString}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Scheduler) Now() time.Time {
	return s.now()
}

// Sequence emits one task per step, in step order. The offset starts at
// initialDelayHours and accumulates each step's delay; negative delays count
// as zero so fire times never go backwards.
func (s *Scheduler) Sequence(start time.Time, initialDelayHours float64, steps []Step) []models.ScheduledTask {
	now := s.now()
	cumulative := hours(initialDelayHours)
	tasks := make([]models.ScheduledTask, 0, len(steps))

	for _, step := range steps {
		cumulative += hours(step.DelayHours)
		tasks = append(tasks, s.task(step.TaskType, notBefore(start.Add(cumulative), now), step.Data, step.Priority))
	}
	return tasks
}

// DaySequence schedules each step Day days after start. Offsets are absolute,
// not cumulative; a step listed out of order is held at the previous time.
func (s *Scheduler) DaySequence(start time.Time, steps []DayStep) []models.ScheduledTask {
	now := s.now()
	tasks := make([]models.ScheduledTask, 0, len(steps))
	var prev time.Time

	for _, step := range steps {
		at := notBefore(start.AddDate(0, 0, step.Day), now)
		if at.Before(prev) {
			at = prev
		}
		prev = at
		tasks = append(tasks, s.task(step.TaskType, at, step.Data, step.Priority))
	}
	return tasks
}

// At schedules a single task, clamped to the scheduler clock.
func (s *Scheduler) At(at time.Time, taskType string, data map[string]interface{}, priority models.Priority) models.ScheduledTask {
	return s.task(taskType, notBefore(at, s.now()), data, priority)
}

// After schedules a single task d after the scheduler clock.
func (s *Scheduler) After(d time.Duration, taskType string, data map[string]interface{}, priority models.Priority) models.ScheduledTask {
	return s.At(s.now().Add(d), taskType, data, priority)
}

func (s *Scheduler) task(taskType string, at time.Time, data map[string]interface{}, priority models.Priority) models.ScheduledTask {
	if priority == "" {
		priority = models.PriorityMedium
	}
	if data == nil {
		data = map[string]interface{}{}
	}
	return models.ScheduledTask{
		ID:           s.newID(),
		TaskType:     taskType,
		ScheduledFor: at,
		Data:         data,
		Priority:     priority,
	}
}

// NextDeliverySlot returns today at hour:00 if that is still ahead of now,
// otherwise tomorrow at hour:00, in now's location.
func NextDeliverySlot(now time.Time, hour int) time.Time {
	slot := time.Date(now.Year(), now.Month(), now.Day(), hour, 0, 0, 0, now.Location())
	if now.Hour() >= hour {
		slot = slot.AddDate(0, 0, 1)
	}
	return slot
}

// SplitDue partitions tasks into those already due at now and those still in
// the future. Order is preserved within each part.
func SplitDue(tasks []models.ScheduledTask, now time.Time) (due, future []models.ScheduledTask) {
	for _, t := range tasks {
		if t.ScheduledFor.After(now) {
			future = append(future, t)
		} else {
			due = append(due, t)
		}
	}
	return due, future
}

func hours(h float64) time.Duration {
	if h <= 0 {
		return 0
	}
	return time.Duration(h * float64(time.Hour))
}

func notBefore(t, floor time.Time) time.Time {
	if t.Before(floor) {
		return floor
	}
	return t
}
