package leads

import "errors"

var (
	// ErrLeadNotFound indicates no lead exists for the identity.
	ErrLeadNotFound = errors.New("leads: lead not found")

	// ErrVersionConflict indicates a concurrent writer updated the lead
	// first. Callers reload and retry.
	ErrVersionConflict = errors.New("leads: version conflict")

	// ErrTenantMismatch indicates an attempt to move a lead across
	// tenants, which is never allowed.
	ErrTenantMismatch = errors.New("leads: tenant id is immutable")

	// ErrInvalidState indicates a state outside the closed set.
	ErrInvalidState = errors.New("leads: state not in closed set")
)
