package leads

import (
	"context"
	"encoding/json"
	"errors"
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

// PostgresRepository stores leads in the relational database.
type PostgresRepository struct {
	db DB
}

// NewPostgresRepository initializes a repo backed by pgx.
func NewPostgresRepository(db DB) *PostgresRepository {
	if db == nil {
		panic("leads: db required")
	}
	return &PostgresRepository{db: db}
}

const leadColumns = `id, tenant_id, external_id, channel, language, state, slots,
	score, temperature, contact_name, contact_phone, contact_captured, appointment_set,
	message_count, follow_up_count, last_activity_at, terminal, context, version, created_at, updated_at`

// GetByExternalID loads the lead for a (tenant, external identity) pair.
func (r *PostgresRepository) GetByExternalID(ctx context.Context, tenantID, externalID string) (*Lead, error) {
	row := r.db.QueryRow(ctx, `
		SELECT `+leadColumns+`
		FROM leads
		WHERE tenant_id = $1 AND external_id = $2`, tenantID, externalID)
	return scanLead(row)
}

// Get loads a lead by id, scoped to the tenant.
func (r *PostgresRepository) Get(ctx context.Context, tenantID string, id uuid.UUID) (*Lead, error) {
	row := r.db.QueryRow(ctx, `
		SELECT `+leadColumns+`
		FROM leads
		WHERE id = $1 AND tenant_id = $2`, id, tenantID)
	return scanLead(row)
}

// Upsert inserts a new lead or updates an existing one. Updates are guarded
// by the version column; a stale version returns ErrVersionConflict so the
// caller can reload and retry.
func (r *PostgresRepository) Upsert(ctx context.Context, lead *Lead) (*Lead, error) {
	if !lead.State.Valid() {
		return nil, ErrInvalidState
	}
	slotsJSON, err := json.Marshal(lead.Slots)
	if err != nil {
		return nil, fmt.Errorf("leads: encode slots: %w", err)
	}
	var ctxJSON []byte
	if lead.Context != nil {
		ctxJSON, err = json.Marshal(lead.Context)
		if err != nil {
			return nil, fmt.Errorf("leads: encode context: %w", err)
		}
	}

	now := time.Now().UTC()
	if lead.Version == 0 {
		lead.CreatedAt = now
		lead.UpdatedAt = now
		_, err := r.db.Exec(ctx, `
			INSERT INTO leads (`+leadColumns+`)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, 1, $19, $20)`,
			lead.ID, lead.TenantID, lead.ExternalID, lead.Channel, lead.Language,
			string(lead.State), slotsJSON, lead.Score, string(lead.Temperature),
			lead.ContactName, lead.ContactPhone, lead.ContactCaptured, lead.AppointmentSet,
			lead.MessageCount, lead.FollowUpCount, lead.LastActivityAt, lead.Terminal,
			ctxJSON, lead.CreatedAt, lead.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("leads: insert failed: %w", err)
		}
		lead.Version = 1
		return lead, nil
	}

	// tenant_id is deliberately absent from the SET list; it never changes.
	tag, err := r.db.Exec(ctx, `
		UPDATE leads SET
			channel = $3, language = $4, state = $5, slots = $6, score = $7,
			temperature = $8, contact_name = $9, contact_phone = $10,
			contact_captured = $11, appointment_set = $12, message_count = $13,
			follow_up_count = $14, last_activity_at = $15, terminal = $16,
			context = $17, version = version + 1, updated_at = $18
		WHERE id = $1 AND tenant_id = $2 AND version = $19`,
		lead.ID, lead.TenantID, lead.Channel, lead.Language, string(lead.State),
		slotsJSON, lead.Score, string(lead.Temperature), lead.ContactName,
		lead.ContactPhone, lead.ContactCaptured, lead.AppointmentSet,
		lead.MessageCount, lead.FollowUpCount, lead.LastActivityAt, lead.Terminal,
		ctxJSON, now, lead.Version,
	)
	if err != nil {
		return nil, fmt.Errorf("leads: update failed: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return nil, ErrVersionConflict
	}
	lead.Version++
	lead.UpdatedAt = now
	return lead, nil
}

func scanLead(row pgx.Row) (*Lead, error) {
	var l Lead
	var state, temp string
	var slotsJSON, ctxJSON []byte
	if err := row.Scan(
		&l.ID, &l.TenantID, &l.ExternalID, &l.Channel, &l.Language,
		&state, &slotsJSON, &l.Score, &temp, &l.ContactName, &l.ContactPhone,
		&l.ContactCaptured, &l.AppointmentSet, &l.MessageCount, &l.FollowUpCount,
		&l.LastActivityAt, &l.Terminal, &ctxJSON, &l.Version, &l.CreatedAt, &l.UpdatedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrLeadNotFound
		}
		return nil, fmt.Errorf("leads: select failed: %w", err)
	}
	l.State = State(state)
	l.Temperature = Temperature(temp)
	if len(slotsJSON) > 0 {
		if err := json.Unmarshal(slotsJSON, &l.Slots); err != nil {
			return nil, fmt.Errorf("leads: decode slots: %w", err)
		}
	}
	if l.Slots == nil {
		l.Slots = make(map[string]SlotValue)
	}
	if len(ctxJSON) > 0 {
		if err := json.Unmarshal(ctxJSON, &l.Context); err != nil {
			return nil, fmt.Errorf("leads: decode context: %w", err)
		}
	}
	return &l, nil
}
