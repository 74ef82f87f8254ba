package tenancy

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// DB abstracts the pgx query interface for testing.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Repository loads tenant rows.
type Repository interface {
	Get(ctx context.Context, tenantID string) (*Tenant, error)
}

// PostgresRepository stores tenants in the relational database.
type PostgresRepository struct {
	db DB
}

// NewPostgresRepository initializes a repo backed by pgx.
func NewPostgresRepository(db DB) *PostgresRepository {
	if db == nil {
		panic("tenancy: db required")
	}
	return &PostgresRepository{db: db}
}

// Get fetches a tenant by id.
func (r *PostgresRepository) Get(ctx context.Context, tenantID string) (*Tenant, error) {
	query := `
		SELECT id, name, languages, default_language, frustration_phrases, daily_nudge_quota, created_at
		FROM tenants
		WHERE id = $1
	`
	row := r.db.QueryRow(ctx, query, tenantID)

	var t Tenant
	var phrasesJSON []byte
	if err := row.Scan(
		&t.ID,
		&t.Name,
		&t.Languages,
		&t.DefaultLanguage,
		&phrasesJSON,
		&t.DailyNudgeQuota,
		&t.CreatedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrTenantNotFound
		}
		return nil, fmt.Errorf("tenancy: select failed: %w", err)
	}

	if len(phrasesJSON) > 0 {
		if err := json.Unmarshal(phrasesJSON, &t.FrustrationPhrases); err != nil {
			return nil, fmt.Errorf("tenancy: decode frustration phrases: %w", err)
		}
	}
	return &t, nil
}
