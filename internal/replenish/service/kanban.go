package service

import (
	"context"
	"fmt"

	"github.com/compraflow/compraflow-backend/internal/replenish/repository"
	"github.com/compraflow/compraflow-backend/pkg/actor"
)

const defaultReviewThreshold = 5

// ExternalRef returns the stable reference tying a tracking card to its
// order. Re-runs look cards up by this reference, so an order never gets a
// second card.
func ExternalRef(orderID string) string {
	return "AUTO_PO:" + orderID
}

// KanbanReconciler maintains one tracking card per automatic order. New cards
// land at the end of the TODO column; existing cards get their title and
// description refreshed and are promoted to IN_REVIEW once the order reaches
// the review threshold. Cards are never demoted.
type KanbanReconciler struct {
	store           KanbanStore
	reviewThreshold int
}

// NewKanbanReconciler creates a new kanban reconciler
func NewKanbanReconciler(store KanbanStore, reviewThreshold int) *KanbanReconciler {
	if reviewThreshold <= 0 {
		reviewThreshold = defaultReviewThreshold
	}
	return &KanbanReconciler{store: store, reviewThreshold: reviewThreshold}
}

// Reconcile creates or refreshes the tracking card for an order. It runs
// inside the order's group transaction so a crash never leaves an order
// without its card.
func (k *KanbanReconciler) Reconcile(ctx context.Context, orderID, orderCode, supplierName string, itemCount int) error {
	board, err := k.store.GetDefaultBoard(ctx)
	if err != nil {
		return err
	}
	if board == nil {
		board = &repository.KanbanBoard{
			Name:        "Purchasing",
			Description: "Purchase order tracking",
		}
		if err := k.store.CreateBoard(ctx, board); err != nil {
			return err
		}
	}

	ref := ExternalRef(orderID)
	title := cardTitle(supplierName, itemCount)
	description := fmt.Sprintf("Automatic order %s generated by the replenishment engine.", orderCode)

	card, err := k.store.GetCardByExternalRef(ctx, ref)
	if err != nil {
		return err
	}

	if card != nil {
		status := card.Status
		if itemCount >= k.reviewThreshold {
			status = repository.KanbanStatusInReview
		}
		return k.store.UpdateCard(ctx, card.ID, title, description, status)
	}

	position, err := k.store.NextPosition(ctx, board.ID, repository.KanbanStatusTodo)
	if err != nil {
		return err
	}

	return k.store.CreateCard(ctx, &repository.KanbanCard{
		BoardID:         board.ID,
		Title:           title,
		Description:     description,
		Status:          repository.KanbanStatusTodo,
		Position:        position,
		PurchaseOrderID: &orderID,
		ExternalRef:     &ref,
		CreatedBy:       actor.System().String(),
	})
}

func cardTitle(supplierName string, itemCount int) string {
	unit := "items"
	if itemCount == 1 {
		unit = "item"
	}
	return fmt.Sprintf("AUTO PO DRAFT: %s (%d %s)", supplierName, itemCount, unit)
}
