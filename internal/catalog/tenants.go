package catalog

import (
	"context"
	"database/sql"
	"log/slog"

	"github.com/parallax-rag/parallax/internal/errors"
	"github.com/parallax-rag/parallax/internal/tenant"
)

// Store provides catalog operations over the shared Postgres handle.
type Store struct {
	db *DB
}

// NewStore creates a catalog store.
func NewStore(db *DB) *Store {
	return &Store{db: db}
}

// CreateTenant inserts a new tenant in active status.
func (s *Store) CreateTenant(ctx context.Context, rec *tenant.Record) error {
	if rec.Status == "" {
		rec.Status = tenant.StatusActive
	}

	row := s.db.Instance.QueryRowContext(ctx,
		`INSERT INTO tenants (id, name, status, max_documents, max_storage_bytes)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING created_at, updated_at`,
		rec.ID, rec.Name, rec.Status, rec.MaxDocuments, rec.MaxStorageBytes)

	if err := row.Scan(&rec.CreatedAt, &rec.UpdatedAt); err != nil {
		return errors.Classify(err)
	}

	s.db.Logger.Info("created tenant", slog.String("tenant", rec.ID))
	return nil
}

// GetTenant returns the tenant record, or a TenantNotFound error.
func (s *Store) GetTenant(ctx context.Context, id string) (*tenant.Record, error) {
	rec := &tenant.Record{}
	row := s.db.Instance.QueryRowContext(ctx,
		`SELECT id, name, status, max_documents, max_storage_bytes, created_at, updated_at
		 FROM tenants WHERE id = $1`, id)

	err := row.Scan(&rec.ID, &rec.Name, &rec.Status,
		&rec.MaxDocuments, &rec.MaxStorageBytes, &rec.CreatedAt, &rec.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, errors.New(errors.ErrCodeTenantNotFound, "tenant "+id+" not found", nil)
	}
	if err != nil {
		return nil, errors.Classify(err)
	}
	return rec, nil
}

// ListTenants returns all tenants, soft-deleted ones included.
func (s *Store) ListTenants(ctx context.Context) ([]*tenant.Record, error) {
	rows, err := s.db.Instance.QueryContext(ctx,
		`SELECT id, name, status, max_documents, max_storage_bytes, created_at, updated_at
		 FROM tenants ORDER BY id`)
	if err != nil {
		return nil, errors.Classify(err)
	}
	defer rows.Close()

	var out []*tenant.Record
	for rows.Next() {
		rec := &tenant.Record{}
		if err := rows.Scan(&rec.ID, &rec.Name, &rec.Status,
			&rec.MaxDocuments, &rec.MaxStorageBytes, &rec.CreatedAt, &rec.UpdatedAt); err != nil {
			return nil, errors.Classify(err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// UpdateTenantStatus changes a tenant's lifecycle status. Deletion is a
// soft-delete: the row stays while any documents reference it.
func (s *Store) UpdateTenantStatus(ctx context.Context, id string, status tenant.Status) error {
	res, err := s.db.Instance.ExecContext(ctx,
		`UPDATE tenants SET status = $2, updated_at = now() WHERE id = $1`,
		id, status)
	if err != nil {
		return errors.Classify(err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return errors.New(errors.ErrCodeTenantNotFound, "tenant "+id+" not found", nil)
	}

	s.db.Logger.Info("updated tenant status",
		slog.String("tenant", id), slog.String("status", string(status)))
	return nil
}

// UpdateTenantQuotas changes a tenant's resource quotas.
func (s *Store) UpdateTenantQuotas(ctx context.Context, id string, maxDocuments, maxStorageBytes int64) error {
	res, err := s.db.Instance.ExecContext(ctx,
		`UPDATE tenants SET max_documents = $2, max_storage_bytes = $3, updated_at = now()
		 WHERE id = $1`,
		id, maxDocuments, maxStorageBytes)
	if err != nil {
		return errors.Classify(err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return errors.New(errors.ErrCodeTenantNotFound, "tenant "+id+" not found", nil)
	}
	return nil
}

// GetUsage returns the tenant's current document count and raw content
// footprint, used for quota admission before ingestion.
func (s *Store) GetUsage(ctx context.Context, id string) (*tenant.Usage, error) {
	usage := &tenant.Usage{}
	row := s.db.Instance.QueryRowContext(ctx,
		`SELECT COUNT(*), COALESCE(SUM(OCTET_LENGTH(content)), 0)
		 FROM documents WHERE tenant_id = $1`, id)

	if err := row.Scan(&usage.Documents, &usage.StorageBytes); err != nil {
		return nil, errors.Classify(err)
	}
	return usage, nil
}

// Interface checks.
var _ tenant.Store = (*Store)(nil)
