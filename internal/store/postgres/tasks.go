package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/kyleinatl/CCOS-Charity-Guild-sub000/internal/common/database"
	"github.com/kyleinatl/CCOS-Charity-Guild-sub000/internal/common/errors"
	"github.com/kyleinatl/CCOS-Charity-Guild-sub000/internal/models"
)

// Task statuses in scheduled_tasks.
const (
	TaskPending   = "pending"
	TaskRunning   = "running"
	TaskCompleted = "completed"
	TaskSkipped   = "skipped"
	TaskFailed    = "failed"
)

// ClaimedTask is a due task locked for one runner, with the attempt number
// this claim represents.
type ClaimedTask struct {
	Task    models.ScheduledTask
	Attempt int
}

// TaskQueue persists scheduled tasks and hands due ones to the runner. It
// implements workflow.TaskSink.
type TaskQueue struct {
	db  *database.PostgresClient
	now func() time.Time
}

func NewTaskQueue(db *database.PostgresClient, now func() time.Time) *TaskQueue {
	if now == nil {
		now = time.Now
	}
	return &TaskQueue{db: db, now: now}
}

// Enqueue inserts task as pending. Re-enqueueing the same id is a no-op.
func (q *TaskQueue) Enqueue(ctx context.Context, task models.ScheduledTask) error {
	data, err := json.Marshal(task.Data)
	if err != nil {
		return errors.NewTaskEnqueueError(task.TaskType, err)
	}
	_, err = q.db.Exec(ctx, `
		INSERT INTO scheduled_tasks (id, task_type, scheduled_for, data, priority, status, attempts, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, 0, $7, $7)
		ON CONFLICT (id) DO NOTHING`,
		task.ID, task.TaskType, task.ScheduledFor.UTC(), data, string(task.Priority), TaskPending, q.now().UTC(),
	)
	if err != nil {
		return errors.NewTaskEnqueueError(task.TaskType, err)
	}
	return nil
}

// ClaimDue locks up to limit pending tasks due at or before now, high
// priority first, and marks them running. Rows locked by another runner are
// skipped.
func (q *TaskQueue) ClaimDue(ctx context.Context, now time.Time, limit int) ([]ClaimedTask, error) {
	var claimed []ClaimedTask
	err := q.db.WithTx(ctx, func(tx *sql.Tx) error {
		rows, err := tx.QueryContext(ctx, `
			SELECT id, task_type, scheduled_for, data, priority, attempts
			FROM scheduled_tasks
			WHERE status = $1 AND scheduled_for <= $2
			ORDER BY CASE priority WHEN 'high' THEN 0 WHEN 'medium' THEN 1 ELSE 2 END, scheduled_for
			LIMIT $3
			FOR UPDATE SKIP LOCKED`,
			TaskPending, now.UTC(), limit,
		)
		if err != nil {
			return err
		}
		defer rows.Close()

		ids := []string{}
		for rows.Next() {
			var c ClaimedTask
			var raw []byte
			var priority string
			if err := rows.Scan(&c.Task.ID, &c.Task.TaskType, &c.Task.ScheduledFor, &raw, &priority, &c.Attempt); err != nil {
				return err
			}
			c.Task.Priority = models.Priority(priority)
			c.Task.Data = map[string]interface{}{}
			if len(raw) > 0 {
				if err := json.Unmarshal(raw, &c.Task.Data); err != nil {
					return fmt.Errorf("decode data of task %s: %w", c.Task.ID, err)
				}
			}
			c.Attempt++
			claimed = append(claimed, c)
			ids = append(ids, c.Task.ID)
		}
		if err := rows.Err(); err != nil {
			return err
		}
		if len(ids) == 0 {
			return nil
		}

		_, err = tx.ExecContext(ctx, `
			UPDATE scheduled_tasks SET status = $2, attempts = attempts + 1, updated_at = $3
			WHERE id = ANY($1)`,
			pq.Array(ids), TaskRunning, q.now().UTC(),
		)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("claim due tasks: %w", err)
	}
	return claimed, nil
}

func (q *TaskQueue) Complete(ctx context.Context, id string) error {
	return q.finish(ctx, id, TaskCompleted, "")
}

// Skip closes a task whose preconditions no longer hold.
func (q *TaskQueue) Skip(ctx context.Context, id, reason string) error {
	return q.finish(ctx, id, TaskSkipped, reason)
}

// Fail records cause. With a retry time the task goes back to pending,
// otherwise it is closed as failed.
func (q *TaskQueue) Fail(ctx context.Context, id string, cause error, retryAt *time.Time) error {
	if retryAt == nil {
		return q.finish(ctx, id, TaskFailed, cause.Error())
	}
	_, err := q.db.Exec(ctx, `
		UPDATE scheduled_tasks SET status = $2, scheduled_for = $3, last_error = $4, updated_at = $5
		WHERE id = $1`,
		id, TaskPending, retryAt.UTC(), cause.Error(), q.now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("reschedule task %s: %w", id, err)
	}
	return nil
}

func (q *TaskQueue) finish(ctx context.Context, id, status, note string) error {
	_, err := q.db.Exec(ctx, `
		UPDATE scheduled_tasks SET status = $2, last_error = $3, updated_at = $4
		WHERE id = $1`,
		id, status, nullString(note), q.now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("mark task %s %s: %w", id, status, err)
	}
	return nil
}
