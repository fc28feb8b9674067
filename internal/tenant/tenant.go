package tenant

import (
	"context"
	"time"
)

// Status is the lifecycle status of a tenant.
type Status string

const (
	StatusActive    Status = "active"
	StatusSuspended Status = "suspended"
	StatusDeleted   Status = "deleted"
)

// Record is a tenant as stored in the catalog. Tenants are never physically
// deleted while documents reference them; deletion is a status change.
type Record struct {
	ID              string
	Name            string
	Status          Status
	MaxDocuments    int64
	MaxStorageBytes int64
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// Usage is a tenant's current resource consumption.
type Usage struct {
	Documents    int64
	StorageBytes int64
}

// Store is the persistence interface the registry validates against.
// Implemented by the Postgres catalog.
type Store interface {
	// GetTenant returns the tenant record, or a TenantNotFound error.
	GetTenant(ctx context.Context, id string) (*Record, error)

	// GetUsage returns the tenant's current document and storage counts.
	GetUsage(ctx context.Context, id string) (*Usage, error)
}
