package testutil

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// OrganizationFixture represents test organization data
type OrganizationFixture struct {
	ID     string
	Name   string
	Status string
}

// SupplierFixture represents test supplier data
type SupplierFixture struct {
	ID        string
	Name      string
	Status    string
	IsDefault bool
}

// ItemFixture represents test item data
type ItemFixture struct {
	ID            string
	SKU           string
	Description   string
	Balance       int
	MinStock      int
	MaxStock      int
	UnitCostCents int64
	SupplierID    *string
	CreatedAt     time.Time
}

// FixtureFactory creates test fixtures with sensible defaults
type FixtureFactory struct {
	sequence int
}

// NewFixtureFactory creates a new fixture factory
func NewFixtureFactory() *FixtureFactory {
	return &FixtureFactory{sequence: 0}
}

// nextSeq returns the next sequence number for unique values
func (f *FixtureFactory) nextSeq() int {
	f.sequence++
	return f.sequence
}

// Organization creates an organization fixture with defaults
func (f *FixtureFactory) Organization(opts ...func(*OrganizationFixture)) OrganizationFixture {
	seq := f.nextSeq()

	o := OrganizationFixture{
		ID:     uuid.New().String(),
		Name:   fmt.Sprintf("Org %d", seq),
		Status: "active",
	}

	for _, opt := range opts {
		opt(&o)
	}

	return o
}

// Supplier creates a supplier fixture with defaults
func (f *FixtureFactory) Supplier(opts ...func(*SupplierFixture)) SupplierFixture {
	seq := f.nextSeq()

	s := SupplierFixture{
		ID:     uuid.New().String(),
		Name:   fmt.Sprintf("Supplier %d", seq),
		Status: "active",
	}

	for _, opt := range opts {
		opt(&s)
	}

	return s
}

// AsDefault marks the supplier as the organization default
func AsDefault() func(*SupplierFixture) {
	return func(s *SupplierFixture) {
		s.IsDefault = true
	}
}

// Inactive marks the supplier as inactive
func Inactive() func(*SupplierFixture) {
	return func(s *SupplierFixture) {
		s.Status = "inactive"
	}
}

// Item creates an item fixture with defaults. The default item is below its
// minimum (balance 2, min 5, max 20) so it is picked up by a critical scan.
func (f *FixtureFactory) Item(opts ...func(*ItemFixture)) ItemFixture {
	seq := f.nextSeq()

	i := ItemFixture{
		ID:            uuid.New().String(),
		SKU:           fmt.Sprintf("SKU-%04d", seq),
		Description:   fmt.Sprintf("Test item %d", seq),
		Balance:       2,
		MinStock:      5,
		MaxStock:      20,
		UnitCostCents: 1500,
		CreatedAt:     time.Now(),
	}

	for _, opt := range opts {
		opt(&i)
	}

	return i
}

// WithSKU sets the item SKU
func WithSKU(sku string) func(*ItemFixture) {
	return func(i *ItemFixture) {
		i.SKU = sku
	}
}

// WithStock sets balance, minimum and maximum stock
func WithStock(balance, min, max int) func(*ItemFixture) {
	return func(i *ItemFixture) {
		i.Balance = balance
		i.MinStock = min
		i.MaxStock = max
	}
}

// WithUnitCost sets the unit cost in cents
func WithUnitCost(cents int64) func(*ItemFixture) {
	return func(i *ItemFixture) {
		i.UnitCostCents = cents
	}
}

// WithPreferredSupplier sets the item's preferred supplier
func WithPreferredSupplier(supplierID string) func(*ItemFixture) {
	return func(i *ItemFixture) {
		i.SupplierID = &supplierID
	}
}

// ReplenishMigrations returns the schema statements for the replenishment
// tables, including the RLS policies the repositories rely on. Statements are
// idempotent so the shared container can be reused across packages.
func ReplenishMigrations() []string {
	return []string{
		`CREATE TABLE IF NOT EXISTS organizations (
			id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
			name VARCHAR(255) NOT NULL,
			status VARCHAR(50) NOT NULL DEFAULT 'active',
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,

		`CREATE TABLE IF NOT EXISTS suppliers (
			id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
			organization_id UUID NOT NULL REFERENCES organizations(id),
			name VARCHAR(255) NOT NULL,
			status VARCHAR(50) NOT NULL DEFAULT 'active',
			is_default BOOLEAN NOT NULL DEFAULT FALSE,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,

		`CREATE TABLE IF NOT EXISTS items (
			id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
			organization_id UUID NOT NULL REFERENCES organizations(id),
			sku VARCHAR(100) NOT NULL,
			description TEXT NOT NULL DEFAULT '',
			balance INTEGER NOT NULL DEFAULT 0,
			min_stock INTEGER NOT NULL DEFAULT 0,
			max_stock INTEGER NOT NULL DEFAULT 0,
			unit_cost_cents BIGINT NOT NULL DEFAULT 0,
			supplier_id UUID REFERENCES suppliers(id),
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			UNIQUE (organization_id, sku)
		)`,

		`CREATE TABLE IF NOT EXISTS purchase_orders (
			id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
			organization_id UUID NOT NULL REFERENCES organizations(id),
			code VARCHAR(50) NOT NULL,
			status VARCHAR(50) NOT NULL DEFAULT 'DRAFT',
			source VARCHAR(50) NOT NULL DEFAULT 'MANUAL',
			supplier_id UUID NOT NULL REFERENCES suppliers(id),
			total_cents BIGINT NOT NULL DEFAULT 0,
			needs_quote BOOLEAN NOT NULL DEFAULT FALSE,
			notes TEXT,
			dedupe_key VARCHAR(255),
			window_start TIMESTAMPTZ,
			last_auto_update_at TIMESTAMPTZ,
			created_by VARCHAR(100) NOT NULL DEFAULT 'system',
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			UNIQUE (organization_id, code)
		)`,

		`CREATE UNIQUE INDEX IF NOT EXISTS purchase_orders_dedupe_key_uniq
			ON purchase_orders (organization_id, dedupe_key)
			WHERE dedupe_key IS NOT NULL`,

		`CREATE TABLE IF NOT EXISTS purchase_order_items (
			id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
			organization_id UUID NOT NULL REFERENCES organizations(id),
			purchase_order_id UUID NOT NULL REFERENCES purchase_orders(id),
			item_id UUID NOT NULL REFERENCES items(id),
			quantity INTEGER NOT NULL,
			unit_price_cents BIGINT NOT NULL DEFAULT 0,
			total_cents BIGINT NOT NULL DEFAULT 0,
			needs_quote BOOLEAN NOT NULL DEFAULT FALSE,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			UNIQUE (purchase_order_id, item_id)
		)`,

		`CREATE TABLE IF NOT EXISTS order_code_counters (
			organization_id UUID NOT NULL REFERENCES organizations(id),
			year INTEGER NOT NULL,
			seq INTEGER NOT NULL DEFAULT 0,
			PRIMARY KEY (organization_id, year)
		)`,

		`CREATE TABLE IF NOT EXISTS kanban_boards (
			id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
			organization_id UUID NOT NULL REFERENCES organizations(id),
			name VARCHAR(255) NOT NULL,
			description TEXT NOT NULL DEFAULT '',
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,

		`CREATE TABLE IF NOT EXISTS kanban_cards (
			id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
			organization_id UUID NOT NULL REFERENCES organizations(id),
			board_id UUID NOT NULL REFERENCES kanban_boards(id),
			title VARCHAR(500) NOT NULL,
			description TEXT NOT NULL DEFAULT '',
			status VARCHAR(50) NOT NULL DEFAULT 'TODO',
			position INTEGER NOT NULL DEFAULT 0,
			purchase_order_id UUID REFERENCES purchase_orders(id),
			external_ref VARCHAR(255),
			created_by VARCHAR(100) NOT NULL DEFAULT 'system',
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,

		`CREATE UNIQUE INDEX IF NOT EXISTS kanban_cards_external_ref_uniq
			ON kanban_cards (organization_id, external_ref)
			WHERE external_ref IS NOT NULL`,

		`CREATE TABLE IF NOT EXISTS audit_log (
			id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
			organization_id UUID NOT NULL REFERENCES organizations(id),
			actor VARCHAR(100) NOT NULL,
			action VARCHAR(100) NOT NULL,
			entity_type VARCHAR(100) NOT NULL,
			entity_id VARCHAR(255) NOT NULL,
			details JSONB,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,

		// RLS: every org-scoped table is filtered by app.current_org.
		// FORCE so the policies also apply to the table owner in tests.
		rlsPolicy("suppliers"),
		rlsPolicy("items"),
		rlsPolicy("purchase_orders"),
		rlsPolicy("purchase_order_items"),
		rlsPolicy("order_code_counters"),
		rlsPolicy("kanban_boards"),
		rlsPolicy("kanban_cards"),
		rlsPolicy("audit_log"),
	}
}

func rlsPolicy(table string) string {
	return fmt.Sprintf(`DO $$
	BEGIN
		EXECUTE 'ALTER TABLE %[1]s ENABLE ROW LEVEL SECURITY';
		EXECUTE 'ALTER TABLE %[1]s FORCE ROW LEVEL SECURITY';
		IF NOT EXISTS (
			SELECT 1 FROM pg_policies WHERE tablename = '%[1]s' AND policyname = '%[1]s_org_isolation'
		) THEN
			EXECUTE 'CREATE POLICY %[1]s_org_isolation ON %[1]s '
				|| 'USING (organization_id = current_setting(''app.current_org'')::uuid) '
				|| 'WITH CHECK (organization_id = current_setting(''app.current_org'')::uuid)';
		END IF;
	END
	$$`, table)
}
