// Package repository contains the persistence layer for the replenishment
// engine. Every query is organization-scoped through RLS; see
// database.WithOrgTx for the isolation mechanism.
package repository

import "time"

// Purchase order statuses
const (
	OrderStatusDraft     = "DRAFT"
	OrderStatusSent      = "SENT"
	OrderStatusApproved  = "APPROVED"
	OrderStatusDelivered = "DELIVERED"
	OrderStatusCancelled = "CANCELLED"
)

// Purchase order sources
const (
	OrderSourceManual = "MANUAL"
	OrderSourceAuto   = "AUTO_REPLENISH"
)

// Supplier statuses
const (
	SupplierStatusActive   = "active"
	SupplierStatusInactive = "inactive"
)

// Kanban card statuses (board columns)
const (
	KanbanStatusTodo     = "TODO"
	KanbanStatusInReview = "IN_REVIEW"
	KanbanStatusDone     = "DONE"
)

// Organization represents a tenant organization
type Organization struct {
	ID     string `db:"id" json:"id"`
	Name   string `db:"name" json:"name"`
	Status string `db:"status" json:"status"`
}

// Supplier represents a supplier of an organization
type Supplier struct {
	ID        string `db:"id" json:"id"`
	Name      string `db:"name" json:"name"`
	Status    string `db:"status" json:"status"`
	IsDefault bool   `db:"is_default" json:"is_default"`
}

// IsActive reports whether the supplier can receive new orders
func (s *Supplier) IsActive() bool {
	return s != nil && s.Status == SupplierStatusActive
}

// Item represents a stock item. An item is critical when its balance has
// fallen to or below its minimum.
type Item struct {
	ID            string    `db:"id" json:"id"`
	SKU           string    `db:"sku" json:"sku"`
	Description   string    `db:"description" json:"description"`
	Balance       int       `db:"balance" json:"balance"`
	MinStock      int       `db:"min_stock" json:"min_stock"`
	MaxStock      int       `db:"max_stock" json:"max_stock"`
	UnitCostCents int64     `db:"unit_cost_cents" json:"unit_cost_cents"`
	SupplierID    *string   `db:"supplier_id" json:"supplier_id,omitempty"`
	CreatedAt     time.Time `db:"created_at" json:"created_at"`
}

// PurchaseOrder represents a purchase order header
type PurchaseOrder struct {
	ID               string     `db:"id" json:"id"`
	Code             string     `db:"code" json:"code"`
	Status           string     `db:"status" json:"status"`
	Source           string     `db:"source" json:"source"`
	SupplierID       string     `db:"supplier_id" json:"supplier_id"`
	TotalCents       int64      `db:"total_cents" json:"total_cents"`
	NeedsQuote       bool       `db:"needs_quote" json:"needs_quote"`
	Notes            *string    `db:"notes" json:"notes,omitempty"`
	DedupeKey        *string    `db:"dedupe_key" json:"dedupe_key,omitempty"`
	WindowStart      *time.Time `db:"window_start" json:"window_start,omitempty"`
	LastAutoUpdateAt *time.Time `db:"last_auto_update_at" json:"last_auto_update_at,omitempty"`
	CreatedBy        string     `db:"created_by" json:"created_by"`
	CreatedAt        time.Time  `db:"created_at" json:"created_at"`
}

// OrderLine represents one item line of a purchase order. SKU is joined from
// items for convenience; it is not a column of purchase_order_items.
type OrderLine struct {
	ID              string `db:"id" json:"id"`
	PurchaseOrderID string `db:"purchase_order_id" json:"purchase_order_id"`
	ItemID          string `db:"item_id" json:"item_id"`
	SKU             string `db:"sku" json:"sku"`
	Quantity        int    `db:"quantity" json:"quantity"`
	UnitPriceCents  int64  `db:"unit_price_cents" json:"unit_price_cents"`
	TotalCents      int64  `db:"total_cents" json:"total_cents"`
	NeedsQuote      bool   `db:"needs_quote" json:"needs_quote"`
}

// KanbanBoard represents a kanban board of an organization
type KanbanBoard struct {
	ID          string `db:"id" json:"id"`
	Name        string `db:"name" json:"name"`
	Description string `db:"description" json:"description"`
}

// KanbanCard represents a card on a kanban board. Cards created by the
// replenishment engine carry an external ref of the form "AUTO_PO:<orderID>"
// so re-runs find and update them instead of creating duplicates.
type KanbanCard struct {
	ID              string  `db:"id" json:"id"`
	BoardID         string  `db:"board_id" json:"board_id"`
	Title           string  `db:"title" json:"title"`
	Description     string  `db:"description" json:"description"`
	Status          string  `db:"status" json:"status"`
	Position        int     `db:"position" json:"position"`
	PurchaseOrderID *string `db:"purchase_order_id" json:"purchase_order_id,omitempty"`
	ExternalRef     *string `db:"external_ref" json:"external_ref,omitempty"`
	CreatedBy       string  `db:"created_by" json:"created_by"`
}

// AuditEntry represents one append-only audit record.
// Audit entries are never updated or deleted.
type AuditEntry struct {
	ID         string    `db:"id" json:"id"`
	Actor      string    `db:"actor" json:"actor"`
	Action     string    `db:"action" json:"action"`
	EntityType string    `db:"entity_type" json:"entity_type"`
	EntityID   string    `db:"entity_id" json:"entity_id"`
	Details    *string   `db:"details" json:"details,omitempty"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
}
