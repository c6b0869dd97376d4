package repository

import (
	"context"

	"github.com/compraflow/compraflow-backend/pkg/database"
	"github.com/compraflow/compraflow-backend/pkg/org"
)

// ItemRepository handles item persistence
type ItemRepository struct {
	db *database.DB
}

// NewItemRepository creates a new item repository
func NewItemRepository(db *database.DB) *ItemRepository {
	return &ItemRepository{db: db}
}

// ListCritical returns every item whose balance has fallen to or below its
// minimum, ordered by SKU ascending so runs are deterministic.
// ORG-ISOLATED: Returns only the organization's items via RLS
func (r *ItemRepository) ListCritical(ctx context.Context) ([]*Item, error) {
	orgID, err := org.OrgID(ctx)
	if err != nil {
		return nil, err
	}

	var items []*Item

	err = r.db.WithOrgTx(ctx, orgID, func(ctx context.Context) error {
		query := `
			SELECT id, sku, description, balance, min_stock, max_stock,
			       unit_cost_cents, supplier_id, created_at
			FROM items
			WHERE balance <= min_stock
			ORDER BY sku ASC
		`
		return r.db.SelectContext(ctx, &items, query)
	})

	if err != nil {
		return nil, err
	}

	return items, nil
}
