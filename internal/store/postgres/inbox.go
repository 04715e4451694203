package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/kyleinatl/CCOS-Charity-Guild-sub000/internal/common/database"
)

// InboxMessage is an in-app notification shown on the member portal.
type InboxMessage struct {
	ID        string    `json:"id"`
	MemberID  string    `json:"memberId"`
	Subject   string    `json:"subject"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"createdAt"`
}

type Inbox struct {
	db  *database.PostgresClient
	now func() time.Time
}

func NewInbox(db *database.PostgresClient, now func() time.Time) *Inbox {
	if now == nil {
		now = time.Now
	}
	return &Inbox{db: db, now: now}
}

func (i *Inbox) Deliver(ctx context.Context, memberID, subject, content string) (string, error) {
	id := uuid.NewString()
	_, err := i.db.Exec(ctx, `
		INSERT INTO inbox_messages (id, member_id, subject, content, created_at)
		VALUES ($1, $2, $3, $4, $5)`,
		id, memberID, subject, content, i.now().UTC(),
	)
	if err != nil {
		return "", fmt.Errorf("deliver in-app message to %s: %w", memberID, err)
	}
	return id, nil
}

// Unread lists the member's unread messages, newest first.
func (i *Inbox) Unread(ctx context.Context, memberID string, limit int) ([]InboxMessage, error) {
	rows, err := i.db.Query(ctx, `
		SELECT id, member_id, subject, content, created_at
		FROM inbox_messages
		WHERE member_id = $1 AND read_at IS NULL
		ORDER BY created_at DESC
		LIMIT $2`, memberID, limit)
	if err != nil {
		return nil, fmt.Errorf("list inbox for %s: %w", memberID, err)
	}
	defer rows.Close()

	msgs := []InboxMessage{}
	for rows.Next() {
		var m InboxMessage
		if err := rows.Scan(&m.ID, &m.MemberID, &m.Subject, &m.Content, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("list inbox for %s: %w", memberID, err)
		}
		msgs = append(msgs, m)
	}
	return msgs, rows.Err()
}
