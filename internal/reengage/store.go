package reengage

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// DB abstracts the pgx query interface for testing.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Store is the persistence surface the scheduler works against.
type Store interface {
	// IdleCandidates lists leads idle since before, still below the
	// attempt cap and without a pending follow-up.
	IdleCandidates(ctx context.Context, before time.Time, maxAttempts, limit int) ([]Candidate, error)

	// Schedule inserts a pending follow-up. A lead that already has one
	// keeps it; the insert is a no-op.
	Schedule(ctx context.Context, f *FollowUp) error

	// ClaimDue atomically claims up to limit due follow-ups. Claims use
	// row locks with skipped contention so concurrent replicas never
	// claim the same record.
	ClaimDue(ctx context.Context, now time.Time, limit int) ([]*Nudge, error)

	MarkSent(ctx context.Context, id uuid.UUID, at time.Time) error
	MarkFailed(ctx context.Context, id uuid.UUID) error

	// Release returns a claimed record to pending, for quota skips.
	Release(ctx context.Context, id uuid.UUID) error

	// CancelPending cancels the lead's pending follow-up if one exists.
	CancelPending(ctx context.Context, tenantID, leadID string) error
}

// PostgresStore implements Store on the follow_ups table.
type PostgresStore struct {
	db DB
}

func NewPostgresStore(db DB) *PostgresStore {
	return &PostgresStore{db: db}
}

var _ Store = (*PostgresStore)(nil)

func (s *PostgresStore) IdleCandidates(ctx context.Context, before time.Time, maxAttempts, limit int) ([]Candidate, error) {
	rows, err := s.db.Query(ctx, `
		SELECT l.id, l.tenant_id, l.follow_up_count, l.last_activity_at,
		       (SELECT MAX(f.sent_at) FROM follow_ups f
		         WHERE f.lead_id = l.id AND f.status = 'sent') AS last_nudge_at
		FROM leads l
		WHERE l.terminal = FALSE
		  AND l.state <> 'URGENT_HANDOFF'
		  AND l.last_activity_at <= $1
		  AND l.follow_up_count < $2
		  AND NOT EXISTS (
			SELECT 1 FROM follow_ups f
			WHERE f.lead_id = l.id AND f.status IN ('pending', 'sending')
		  )
		ORDER BY l.last_activity_at ASC
		LIMIT $3`, before, maxAttempts, limit)
	if err != nil {
		return nil, fmt.Errorf("reengage: list idle candidates: %w", err)
	}
	defer rows.Close()

	var out []Candidate
	for rows.Next() {
		var c Candidate
		if err := rows.Scan(&c.LeadID, &c.TenantID, &c.FollowUpCount, &c.LastActivityAt, &c.LastNudgeAt); err != nil {
			return nil, fmt.Errorf("reengage: scan candidate: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (s *PostgresStore) Schedule(ctx context.Context, f *FollowUp) error {
	if f.ID == uuid.Nil {
		f.ID = uuid.New()
	}
	now := time.Now().UTC()
	f.CreatedAt = now
	f.UpdatedAt = now
	if f.Status == "" {
		f.Status = StatusPending
	}

	_, err := s.db.Exec(ctx, `
		INSERT INTO follow_ups (id, tenant_id, lead_id, attempt, due_at, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (lead_id) WHERE status = 'pending' DO NOTHING`,
		f.ID, f.TenantID, f.LeadID, f.Attempt, f.DueAt, string(f.Status), f.CreatedAt, f.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("reengage: schedule follow-up: %w", err)
	}
	return nil
}

func (s *PostgresStore) ClaimDue(ctx context.Context, now time.Time, limit int) ([]*Nudge, error) {
	rows, err := s.db.Query(ctx, `
		WITH claimed AS (
			SELECT id, lead_id FROM follow_ups
			WHERE status = 'pending' AND due_at <= $1
			ORDER BY due_at ASC
			LIMIT $2
			FOR UPDATE SKIP LOCKED
		)
		UPDATE follow_ups f
		SET status = 'sending', updated_at = $1
		FROM claimed c
		JOIN leads l ON l.id = c.lead_id
		WHERE f.id = c.id
		RETURNING f.id, f.tenant_id, f.lead_id, f.attempt, f.due_at,
		          l.external_id, l.channel, l.language`, now, limit)
	if err != nil {
		return nil, fmt.Errorf("reengage: claim due: %w", err)
	}
	defer rows.Close()

	var out []*Nudge
	for rows.Next() {
		n := &Nudge{FollowUp: FollowUp{Status: StatusSending}}
		if err := rows.Scan(&n.ID, &n.TenantID, &n.LeadID, &n.Attempt, &n.DueAt,
			&n.ExternalID, &n.Channel, &n.Language); err != nil {
			return nil, fmt.Errorf("reengage: scan claimed: %w", err)
		}
		out = append(out, n)
	}
	return out, rows.Err()
}

func (s *PostgresStore) MarkSent(ctx context.Context, id uuid.UUID, at time.Time) error {
	_, err := s.db.Exec(ctx, `
		UPDATE follow_ups SET status = 'sent', sent_at = $2, updated_at = $2
		WHERE id = $1`, id, at.UTC())
	if err != nil {
		return fmt.Errorf("reengage: mark sent: %w", err)
	}
	return nil
}

func (s *PostgresStore) MarkFailed(ctx context.Context, id uuid.UUID) error {
	_, err := s.db.Exec(ctx, `
		UPDATE follow_ups SET status = 'failed', updated_at = NOW()
		WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("reengage: mark failed: %w", err)
	}
	return nil
}

func (s *PostgresStore) Release(ctx context.Context, id uuid.UUID) error {
	_, err := s.db.Exec(ctx, `
		UPDATE follow_ups SET status = 'pending', updated_at = NOW()
		WHERE id = $1 AND status = 'sending'`, id)
	if err != nil {
		return fmt.Errorf("reengage: release: %w", err)
	}
	return nil
}

func (s *PostgresStore) CancelPending(ctx context.Context, tenantID, leadID string) error {
	lid, err := uuid.Parse(leadID)
	if err != nil {
		return fmt.Errorf("reengage: cancel pending: bad lead id: %w", err)
	}
	_, err = s.db.Exec(ctx, `
		UPDATE follow_ups SET status = 'canceled', updated_at = NOW()
		WHERE tenant_id = $1 AND lead_id = $2 AND status = 'pending'`, tenantID, lid)
	if err != nil {
		return fmt.Errorf("reengage: cancel pending: %w", err)
	}
	return nil
}
