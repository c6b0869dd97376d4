package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/compraflow/compraflow-backend/pkg/database"
	"github.com/compraflow/compraflow-backend/pkg/org"
)

// SupplierRepository handles supplier persistence
type SupplierRepository struct {
	db *database.DB
}

// NewSupplierRepository creates a new supplier repository
func NewSupplierRepository(db *database.DB) *SupplierRepository {
	return &SupplierRepository{db: db}
}

// GetActive returns the supplier with the given ID if it exists and is
// active. Returns (nil, nil) when there is no active supplier with that ID,
// so the resolver can fall through the cascade without treating a miss as a
// failure.
// ORG-ISOLATED: Returns only the organization's suppliers via RLS
func (r *SupplierRepository) GetActive(ctx context.Context, id string) (*Supplier, error) {
	orgID, err := org.OrgID(ctx)
	if err != nil {
		return nil, err
	}

	var supplier Supplier

	err = r.db.WithOrgTx(ctx, orgID, func(ctx context.Context) error {
		query := `
			SELECT id, name, status, is_default
			FROM suppliers
			WHERE id = $1 AND status = $2
		`
		return r.db.GetContext(ctx, &supplier, query, id, SupplierStatusActive)
	})

	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	return &supplier, nil
}

// GetDefault returns the organization's default active supplier, or
// (nil, nil) when none is configured.
// ORG-ISOLATED: Returns only the organization's suppliers via RLS
func (r *SupplierRepository) GetDefault(ctx context.Context) (*Supplier, error) {
	orgID, err := org.OrgID(ctx)
	if err != nil {
		return nil, err
	}

	var supplier Supplier

	err = r.db.WithOrgTx(ctx, orgID, func(ctx context.Context) error {
		query := `
			SELECT id, name, status, is_default
			FROM suppliers
			WHERE is_default = TRUE AND status = $1
			ORDER BY created_at ASC
			LIMIT 1
		`
		return r.db.GetContext(ctx, &supplier, query, SupplierStatusActive)
	})

	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	return &supplier, nil
}
