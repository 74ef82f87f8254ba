package leads

import (
	"context"

	"github.com/google/uuid"
)

// Repository is the tenant-scoped persistence interface for leads. Every
// call is parameterized by tenant identity.
type Repository interface {
	// GetByExternalID loads the lead for a (tenant, external identity)
	// pair, or ErrLeadNotFound.
	GetByExternalID(ctx context.Context, tenantID, externalID string) (*Lead, error)

	// Get loads a lead by id, scoped to the tenant.
	Get(ctx context.Context, tenantID string, id uuid.UUID) (*Lead, error)

	// Upsert atomically inserts or updates the lead. Updates carry the
	// caller's version; a stale version returns ErrVersionConflict.
	Upsert(ctx context.Context, lead *Lead) (*Lead, error)
}
