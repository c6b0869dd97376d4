package service

import (
	"context"
	"encoding/json"

	"github.com/compraflow/compraflow-backend/internal/replenish/repository"
	"github.com/compraflow/compraflow-backend/pkg/actor"
)

// Audit actions recorded by the engine
const (
	ActionOrderCreated          = "AUTO_PO_CREATED"
	ActionOrderUpdated          = "AUTO_PO_UPDATED"
	ActionOrderSkipped          = "AUTO_PO_SKIPPED"
	ActionItemSkippedNoSupplier = "AUTO_ITEM_SKIPPED_NO_SUPPLIER"
	ActionRunError              = "AUTO_PO_ERROR"
)

// Audit entity types
const (
	entityPurchaseOrder = "purchase_order"
	entityItem          = "item"
)

// QuantityChange records one line quantity raise for the update audit.
type QuantityChange struct {
	ItemID string `json:"item_id"`
	SKU    string `json:"sku"`
	OldQty int    `json:"old_qty"`
	NewQty int    `json:"new_qty"`
}

// SkippedItem records one item excluded from a run.
type SkippedItem struct {
	ItemID string `json:"item_id"`
	SKU    string `json:"sku"`
	Reason string `json:"reason"`
}

// OrderCreatedAudit is the structured detail of a creation record.
type OrderCreatedAudit struct {
	Code         string   `json:"code"`
	DedupeKey    string   `json:"dedupe_key"`
	SupplierID   string   `json:"supplier_id"`
	SupplierName string   `json:"supplier_name"`
	SKUs         []string `json:"skus"`
	ItemCount    int      `json:"item_count"`
	TotalCents   int64    `json:"total_cents"`
	NeedsQuote   bool     `json:"needs_quote"`
	JobID        string   `json:"job_id,omitempty"`
}

// OrderUpdatedAudit is the structured detail of a merge record.
type OrderUpdatedAudit struct {
	DedupeKey  string           `json:"dedupe_key"`
	AddedSKUs  []string         `json:"added_skus"`
	RaisedQtys []QuantityChange `json:"raised_qtys"`
	ItemCount  int              `json:"item_count"`
	TotalCents int64            `json:"total_cents"`
	JobID      string           `json:"job_id,omitempty"`
}

// GroupSkippedAudit is the structured detail of a suppressed supplier group.
type GroupSkippedAudit struct {
	Reason       string `json:"reason"`
	SupplierID   string `json:"supplier_id"`
	SupplierName string `json:"supplier_name"`
	ItemCount    int    `json:"item_count"`
	JobID        string `json:"job_id,omitempty"`
}

// AuditEmitter writes the engine's append-only decision trail. One record per
// decision point; records are never mutated after being written.
type AuditEmitter struct {
	store AuditStore
}

// NewAuditEmitter creates a new audit emitter
func NewAuditEmitter(store AuditStore) *AuditEmitter {
	return &AuditEmitter{store: store}
}

// OrderCreated records the creation of a new automatic order.
func (a *AuditEmitter) OrderCreated(ctx context.Context, orderID string, detail OrderCreatedAudit) error {
	return a.emit(ctx, ActionOrderCreated, entityPurchaseOrder, orderID, detail)
}

// OrderUpdated records a merge into an existing automatic order.
func (a *AuditEmitter) OrderUpdated(ctx context.Context, orderID string, detail OrderUpdatedAudit) error {
	return a.emit(ctx, ActionOrderUpdated, entityPurchaseOrder, orderID, detail)
}

// GroupSkipped records the suppression of a whole supplier group.
func (a *AuditEmitter) GroupSkipped(ctx context.Context, orgID string, detail GroupSkippedAudit) error {
	entityID := "skip:" + orgID + ":" + detail.SupplierID
	return a.emit(ctx, ActionOrderSkipped, entityPurchaseOrder, entityID, detail)
}

// ItemsSkippedNoSupplier records, in one batch entry, every item of a run
// that no cascade step could resolve a supplier for.
func (a *AuditEmitter) ItemsSkippedNoSupplier(ctx context.Context, orgID, jobID string, items []SkippedItem) error {
	detail := struct {
		Items []SkippedItem `json:"items"`
		Count int           `json:"count"`
		JobID string        `json:"job_id,omitempty"`
	}{Items: items, Count: len(items), JobID: jobID}

	return a.emit(ctx, ActionItemSkippedNoSupplier, entityItem, "batch:"+orgID, detail)
}

// RunError records an error that escaped a whole run.
func (a *AuditEmitter) RunError(ctx context.Context, orgID, jobID string, runErr error) error {
	detail := struct {
		Error string `json:"error"`
		JobID string `json:"job_id,omitempty"`
	}{Error: runErr.Error(), JobID: jobID}

	return a.emit(ctx, ActionRunError, entityPurchaseOrder, "error:"+orgID, detail)
}

func (a *AuditEmitter) emit(ctx context.Context, action, entityType, entityID string, detail interface{}) error {
	payload, err := json.Marshal(detail)
	if err != nil {
		return err
	}
	details := string(payload)

	return a.store.Create(ctx, &repository.AuditEntry{
		Actor:      actor.System().String(),
		Action:     action,
		EntityType: entityType,
		EntityID:   entityID,
		Details:    &details,
	})
}
