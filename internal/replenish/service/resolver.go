package service

import (
	"context"

	"github.com/compraflow/compraflow-backend/internal/replenish/repository"
)

// Supplier resolution reasons, in cascade order
const (
	ReasonItemPreferred = "ITEM_PREFERRED"
	ReasonOrgDefault    = "ORG_DEFAULT"
	ReasonHistoricalPO  = "HISTORICAL_PO"
	ReasonNoSupplier    = "NO_SUPPLIER"
)

// Resolution is the outcome of resolving a supplier for one item. SupplierID
// and SupplierName are empty when Reason is ReasonNoSupplier.
type Resolution struct {
	SupplierID   string
	SupplierName string
	Reason       string
}

// SupplierResolver picks the supplier for a critical item using a fixed
// cascade: the item's preferred supplier, then the organization default,
// then the supplier of the last delivered, sent or approved order that
// contained the item's SKU. Inactive suppliers never win at any step.
type SupplierResolver struct {
	suppliers SupplierStore
	orders    OrderStore
}

// NewSupplierResolver creates a new supplier resolver
func NewSupplierResolver(suppliers SupplierStore, orders OrderStore) *SupplierResolver {
	return &SupplierResolver{suppliers: suppliers, orders: orders}
}

// Resolve runs the cascade for one item. The organization default is passed
// in so a run looks it up once, not once per item.
func (r *SupplierResolver) Resolve(ctx context.Context, item *repository.Item, orgDefault *repository.Supplier) (Resolution, error) {
	if item.SupplierID != nil {
		supplier, err := r.suppliers.GetActive(ctx, *item.SupplierID)
		if err != nil {
			return Resolution{}, err
		}
		if supplier.IsActive() {
			return Resolution{SupplierID: supplier.ID, SupplierName: supplier.Name, Reason: ReasonItemPreferred}, nil
		}
	}

	if orgDefault.IsActive() {
		return Resolution{SupplierID: orgDefault.ID, SupplierName: orgDefault.Name, Reason: ReasonOrgDefault}, nil
	}

	supplier, err := r.orders.LastOrderSupplierForSKU(ctx, item.SKU)
	if err != nil {
		return Resolution{}, err
	}
	if supplier.IsActive() {
		return Resolution{SupplierID: supplier.ID, SupplierName: supplier.Name, Reason: ReasonHistoricalPO}, nil
	}

	return Resolution{Reason: ReasonNoSupplier}, nil
}
