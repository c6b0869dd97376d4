package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/compraflow/compraflow-backend/pkg/database"
	"github.com/compraflow/compraflow-backend/pkg/org"
)

// OrderRepository handles purchase order persistence
type OrderRepository struct {
	db *database.DB
}

// NewOrderRepository creates a new order repository
func NewOrderRepository(db *database.DB) *OrderRepository {
	return &OrderRepository{db: db}
}

// GetByDedupeKey returns the purchase order carrying the given dedupe key,
// or (nil, nil) when no order exists for it yet. The unique index on
// (organization_id, dedupe_key) guarantees at most one row.
// ORG-ISOLATED: Returns only the organization's orders via RLS
func (r *OrderRepository) GetByDedupeKey(ctx context.Context, dedupeKey string) (*PurchaseOrder, error) {
	orgID, err := org.OrgID(ctx)
	if err != nil {
		return nil, err
	}

	var po PurchaseOrder

	err = r.db.WithOrgTx(ctx, orgID, func(ctx context.Context) error {
		query := `
			SELECT id, code, status, source, supplier_id, total_cents, needs_quote,
			       notes, dedupe_key, window_start, last_auto_update_at, created_by, created_at
			FROM purchase_orders
			WHERE dedupe_key = $1
		`
		return r.db.GetContext(ctx, &po, query, dedupeKey)
	})

	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	return &po, nil
}

// HasRecentManualDraft reports whether the supplier has a manually created
// draft order newer than the cutoff. A hit suppresses automatic generation
// for the whole supplier group.
// ORG-ISOLATED via RLS
func (r *OrderRepository) HasRecentManualDraft(ctx context.Context, supplierID string, cutoff time.Time) (bool, error) {
	orgID, err := org.OrgID(ctx)
	if err != nil {
		return false, err
	}

	var exists bool

	err = r.db.WithOrgTx(ctx, orgID, func(ctx context.Context) error {
		query := `
			SELECT EXISTS (
				SELECT 1 FROM purchase_orders
				WHERE supplier_id = $1 AND source = $2 AND status = $3 AND created_at > $4
			)
		`
		return r.db.GetContext(ctx, &exists, query, supplierID, OrderSourceManual, OrderStatusDraft, cutoff)
	})

	if err != nil {
		return false, err
	}

	return exists, nil
}

// LastOrderSupplierForSKU returns the supplier of the most recently created
// delivered, sent or approved order that contained the given SKU, or
// (nil, nil) when the SKU has no order history. The returned supplier may be
// inactive; the resolver decides whether it is usable.
// ORG-ISOLATED via RLS
func (r *OrderRepository) LastOrderSupplierForSKU(ctx context.Context, sku string) (*Supplier, error) {
	orgID, err := org.OrgID(ctx)
	if err != nil {
		return nil, err
	}

	var supplier Supplier

	err = r.db.WithOrgTx(ctx, orgID, func(ctx context.Context) error {
		query := `
			SELECT s.id, s.name, s.status, s.is_default
			FROM purchase_orders po
			JOIN purchase_order_items poi ON poi.purchase_order_id = po.id
			JOIN items i ON i.id = poi.item_id
			JOIN suppliers s ON s.id = po.supplier_id
			WHERE i.sku = $1 AND po.status = ANY($2)
			ORDER BY po.created_at DESC
			LIMIT 1
		`
		statuses := pq.StringArray{OrderStatusDelivered, OrderStatusSent, OrderStatusApproved}
		return r.db.GetContext(ctx, &supplier, query, sku, statuses)
	})

	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	return &supplier, nil
}

// NextCode reserves the next order code for the organization and year using
// an atomic counter upsert. The returned code has the form PO-YYYY-NNNN.
// Concurrent reservations serialize on the counter row, so two runs can
// never mint the same code.
// ORG-ISOLATED via RLS
func (r *OrderRepository) NextCode(ctx context.Context, year int) (string, error) {
	orgID, err := org.OrgID(ctx)
	if err != nil {
		return "", err
	}

	var seq int

	err = r.db.WithOrgTx(ctx, orgID, func(ctx context.Context) error {
		query := `
			INSERT INTO order_code_counters (organization_id, year, seq)
			VALUES ($1, $2, 1)
			ON CONFLICT (organization_id, year)
			DO UPDATE SET seq = order_code_counters.seq + 1
			RETURNING seq
		`
		return r.db.QueryRowxContext(ctx, query, orgID, year).Scan(&seq)
	})

	if err != nil {
		return "", err
	}

	return fmt.Sprintf("PO-%d-%04d", year, seq), nil
}

// Create inserts a new purchase order header
// ORG-ISOLATED: Inserts with organization_id for RLS
func (r *OrderRepository) Create(ctx context.Context, po *PurchaseOrder) error {
	orgID, err := org.OrgID(ctx)
	if err != nil {
		return err
	}

	if po.ID == "" {
		po.ID = uuid.New().String()
	}

	return r.db.WithOrgTx(ctx, orgID, func(ctx context.Context) error {
		query := `
			INSERT INTO purchase_orders (
				id, organization_id, code, status, source, supplier_id, total_cents,
				needs_quote, notes, dedupe_key, window_start, last_auto_update_at, created_by
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
			RETURNING created_at
		`
		return r.db.QueryRowxContext(ctx, query,
			po.ID, orgID, po.Code, po.Status, po.Source, po.SupplierID, po.TotalCents,
			po.NeedsQuote, po.Notes, po.DedupeKey, po.WindowStart, po.LastAutoUpdateAt, po.CreatedBy,
		).Scan(&po.CreatedAt)
	})
}

// ListLines returns the lines of a purchase order with the item SKU joined,
// ordered by SKU ascending.
// ORG-ISOLATED via RLS
func (r *OrderRepository) ListLines(ctx context.Context, orderID string) ([]*OrderLine, error) {
	orgID, err := org.OrgID(ctx)
	if err != nil {
		return nil, err
	}

	var lines []*OrderLine

	err = r.db.WithOrgTx(ctx, orgID, func(ctx context.Context) error {
		query := `
			SELECT poi.id, poi.purchase_order_id, poi.item_id, i.sku,
			       poi.quantity, poi.unit_price_cents, poi.total_cents, poi.needs_quote
			FROM purchase_order_items poi
			JOIN items i ON i.id = poi.item_id
			WHERE poi.purchase_order_id = $1
			ORDER BY i.sku ASC
		`
		return r.db.SelectContext(ctx, &lines, query, orderID)
	})

	if err != nil {
		return nil, err
	}

	return lines, nil
}

// AddLine inserts a new order line
// ORG-ISOLATED: Inserts with organization_id for RLS
func (r *OrderRepository) AddLine(ctx context.Context, line *OrderLine) error {
	orgID, err := org.OrgID(ctx)
	if err != nil {
		return err
	}

	if line.ID == "" {
		line.ID = uuid.New().String()
	}

	return r.db.WithOrgTx(ctx, orgID, func(ctx context.Context) error {
		query := `
			INSERT INTO purchase_order_items (
				id, organization_id, purchase_order_id, item_id, quantity,
				unit_price_cents, total_cents, needs_quote
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		`
		_, err := r.db.ExecContext(ctx, query,
			line.ID, orgID, line.PurchaseOrderID, line.ItemID, line.Quantity,
			line.UnitPriceCents, line.TotalCents, line.NeedsQuote,
		)
		return err
	})
}

// UpdateLine rewrites the quantity, pricing and quote flag of a line.
// Callers only invoke this for strictly raised quantities; equal or lower
// proposals are skipped upstream so re-runs leave no write trail.
// ORG-ISOLATED via RLS
func (r *OrderRepository) UpdateLine(ctx context.Context, lineID string, quantity int, unitPriceCents, totalCents int64, needsQuote bool) error {
	orgID, err := org.OrgID(ctx)
	if err != nil {
		return err
	}

	return r.db.WithOrgTx(ctx, orgID, func(ctx context.Context) error {
		query := `
			UPDATE purchase_order_items
			SET quantity = $2, unit_price_cents = $3, total_cents = $4, needs_quote = $5, updated_at = NOW()
			WHERE id = $1
		`
		_, err := r.db.ExecContext(ctx, query, lineID, quantity, unitPriceCents, totalCents, needsQuote)
		return err
	})
}

// UpdateSummary rewrites the order total, the order-level quote flag and the
// last automatic update timestamp after a merge.
// ORG-ISOLATED via RLS
func (r *OrderRepository) UpdateSummary(ctx context.Context, orderID string, totalCents int64, needsQuote bool, lastAutoUpdateAt time.Time) error {
	orgID, err := org.OrgID(ctx)
	if err != nil {
		return err
	}

	return r.db.WithOrgTx(ctx, orgID, func(ctx context.Context) error {
		query := `
			UPDATE purchase_orders
			SET total_cents = $2, needs_quote = $3, last_auto_update_at = $4
			WHERE id = $1
		`
		_, err := r.db.ExecContext(ctx, query, orderID, totalCents, needsQuote, lastAutoUpdateAt)
		return err
	})
}
