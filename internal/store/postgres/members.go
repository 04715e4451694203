// Package postgres holds the PostgreSQL-backed automation stores: members and
// donations, the scheduled task queue, drip enrollments and the in-app inbox.
package postgres

import (
	"context"
	"database/sql"
	stderrors "errors"
	"fmt"
	"strings"
	"time"

	"github.com/kyleinatl/CCOS-Charity-Guild-sub000/internal/common/database"
	"github.com/kyleinatl/CCOS-Charity-Guild-sub000/internal/common/errors"
	"github.com/kyleinatl/CCOS-Charity-Guild-sub000/internal/models"
)

const memberColumns = `id, first_name, last_name, email, phone, push_endpoint_arn, tier,
	engagement_score, total_donated, last_donation_date, member_since, email_subscribed`

// MemberStore implements workflow.MemberStore over the members and donations
// tables.
type MemberStore struct {
	db  *database.PostgresClient
	now func() time.Time
}

func NewMemberStore(db *database.PostgresClient, now func() time.Time) *MemberStore {
	if now == nil {
		now = time.Now
	}
	return &MemberStore{db: db, now: now}
}

func (s *MemberStore) GetMember(ctx context.Context, id string) (models.Member, error) {
	row := s.db.QueryRow(ctx, `SELECT `+memberColumns+` FROM members WHERE id = $1`, id)
	m, err := scanMember(row)
	if stderrors.Is(err, sql.ErrNoRows) {
		return models.Member{}, errors.NewMemberNotFoundError(id)
	}
	if err != nil {
		return models.Member{}, errors.NewMemberStoreError("get_member", err)
	}
	return m, nil
}

// UpdateMember writes only the fields set on patch.
func (s *MemberStore) UpdateMember(ctx context.Context, id string, patch models.MemberPatch) error {
	if patch.IsEmpty() {
		return nil
	}

	sets := []string{}
	args := []interface{}{id}
	add := func(column string, value interface{}) {
		args = append(args, value)
		sets = append(sets, fmt.Sprintf("%s = $%d", column, len(args)))
	}
	if patch.Tier != nil {
		add("tier", string(*patch.Tier))
	}
	if patch.EngagementScore != nil {
		add("engagement_score", models.ClampEngagement(*patch.EngagementScore))
	}
	if patch.LastDonationDate != nil {
		add("last_donation_date", *patch.LastDonationDate)
	}
	if patch.EmailSubscribed != nil {
		add("email_subscribed", *patch.EmailSubscribed)
	}
	add("updated_at", s.now().UTC())

	res, err := s.db.Exec(ctx, `UPDATE members SET `+strings.Join(sets, ", ")+` WHERE id = $1`, args...)
	if err != nil {
		return errors.NewMemberUpdateError(id, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return errors.NewMemberNotFoundError(id)
	}
	return nil
}

func (s *MemberStore) GetMemberDonations(ctx context.Context, memberID string) ([]models.Donation, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, member_id, amount, designation, is_recurring, donated_at
		FROM donations
		WHERE member_id = $1
		ORDER BY donated_at`, memberID)
	if err != nil {
		return nil, errors.NewMemberStoreError("get_member_donations", err)
	}
	defer rows.Close()

	donations := []models.Donation{}
	for rows.Next() {
		var d models.Donation
		var designation sql.NullString
		if err := rows.Scan(&d.ID, &d.MemberID, &d.Amount, &designation, &d.IsRecurring, &d.DonatedAt); err != nil {
			return nil, errors.NewMemberStoreError("get_member_donations", err)
		}
		d.Designation = designation.String
		donations = append(donations, d)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.NewMemberStoreError("get_member_donations", err)
	}
	return donations, nil
}

// ListInactiveMembers returns members who never donated or whose last gift
// is at least thresholdDays old.
func (s *MemberStore) ListInactiveMembers(ctx context.Context, thresholdDays int) ([]models.Member, error) {
	cutoff := s.now().UTC().AddDate(0, 0, -thresholdDays)
	return s.listMembers(ctx, "list_inactive_members", `
		SELECT `+memberColumns+` FROM members
		WHERE last_donation_date IS NULL OR last_donation_date <= $1
		ORDER BY id`, cutoff)
}

func (s *MemberStore) ListNewsletterSubscribers(ctx context.Context) ([]models.Member, error) {
	return s.listMembers(ctx, "list_newsletter_subscribers", `
		SELECT `+memberColumns+` FROM members
		WHERE email_subscribed = TRUE
		ORDER BY id`)
}

// RecordDonation stores a settled payment and rolls it into the member's
// lifetime total. Replays of the same donation id are ignored.
func (s *MemberStore) RecordDonation(ctx context.Context, p models.PaymentConfirmation) (bool, error) {
	var inserted bool
	err := s.db.WithTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `
			INSERT INTO donations (id, member_id, amount, designation, is_recurring, donated_at)
			VALUES ($1, $2, $3, $4, $5, $6)
			ON CONFLICT (id) DO NOTHING`,
			p.DonationID, p.MemberID, p.Amount, nullString(p.Designation), p.IsRecurring, s.now().UTC(),
		)
		if err != nil {
			return err
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return nil
		}
		inserted = true
		_, err = tx.ExecContext(ctx, `
			UPDATE members SET total_donated = total_donated + $2 WHERE id = $1`,
			p.MemberID, p.Amount,
		)
		return err
	})
	if err != nil {
		return false, errors.NewMemberStoreError("record_donation", err)
	}
	return inserted, nil
}

func (s *MemberStore) listMembers(ctx context.Context, op, query string, args ...interface{}) ([]models.Member, error) {
	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, errors.NewMemberStoreError(op, err)
	}
	defer rows.Close()

	members := []models.Member{}
	for rows.Next() {
		m, err := scanMember(rows)
		if err != nil {
			return nil, errors.NewMemberStoreError(op, err)
		}
		members = append(members, m)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.NewMemberStoreError(op, err)
	}
	return members, nil
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanMember(row scanner) (models.Member, error) {
	var m models.Member
	var tier string
	var phone, pushARN sql.NullString
	var lastDonation sql.NullTime

	err := row.Scan(
		&m.ID, &m.FirstName, &m.LastName, &m.Email, &phone, &pushARN, &tier,
		&m.EngagementScore, &m.TotalDonated, &lastDonation, &m.MemberSince, &m.EmailSubscribed,
	)
	if err != nil {
		return models.Member{}, err
	}
	m.Tier = models.Tier(tier)
	m.Phone = phone.String
	m.PushEndpointARN = pushARN.String
	if lastDonation.Valid {
		t := lastDonation.Time
		m.LastDonationDate = &t
	}
	return m, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
