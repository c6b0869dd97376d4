package repository

import (
	"context"

	"github.com/compraflow/compraflow-backend/pkg/database"
)

// OrganizationRepository handles the organizations registry.
// The organizations table is global (no RLS); the batch runner reads it to
// enumerate the organizations to process.
type OrganizationRepository struct {
	db *database.DB
}

// NewOrganizationRepository creates a new organization repository
func NewOrganizationRepository(db *database.DB) *OrganizationRepository {
	return &OrganizationRepository{db: db}
}

// ListActive returns all active organizations
func (r *OrganizationRepository) ListActive(ctx context.Context) ([]*Organization, error) {
	var orgs []*Organization
	query := `SELECT id, name, status FROM organizations WHERE status = 'active' ORDER BY name ASC`
	if err := r.db.DB.SelectContext(ctx, &orgs, query); err != nil {
		return nil, err
	}
	return orgs, nil
}
