package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/compraflow/compraflow-backend/internal/replenish/repository"
)

func strPtr(s string) *string { return &s }

// seedScenario builds the reference inventory: two items preferring an
// active supplier X (one with an unknown cost), one item resolved through
// order history to supplier Z, and one item nothing can resolve.
func seedScenario(w *fakeWorld) {
	w.addSupplier("sup-x", "Supplier X", repository.SupplierStatusActive)
	z := w.addSupplier("sup-z", "Supplier Z", repository.SupplierStatusActive)

	w.addItem("item-a", "SKU-A", 2, 5, 20, 1500, strPtr("sup-x"))
	w.addItem("item-b", "SKU-B", 0, 3, 10, 0, strPtr("sup-x"))
	w.addItem("item-c", "SKU-C", 1, 5, 15, 2000, nil)
	w.addItem("item-d", "SKU-D", 0, 2, 8, 900, nil)

	w.historical["SKU-C"] = z
}

func TestEngine_CreatesOrderPerSupplierGroup(t *testing.T) {
	w := newFakeWorld()
	seedScenario(w)
	e := newTestEngine(w)

	result, err := e.RunForOrganization(context.Background(), "org-1", "job-1")
	require.NoError(t, err)

	assert.Equal(t, 4, result.Processed)
	assert.Equal(t, 2, result.Created)
	assert.Equal(t, 0, result.Updated)
	assert.Equal(t, 1, result.Skipped)

	keyX := DedupeKey("org-1", "sup-x", time.Date(2026, 3, 14, 6, 0, 0, 0, time.UTC))
	orderX := w.ordersByKey[keyX]
	require.NotNil(t, orderX)
	assert.Equal(t, "PO-2026-0001", orderX.Code)
	assert.Equal(t, repository.OrderStatusDraft, orderX.Status)
	assert.Equal(t, repository.OrderSourceAuto, orderX.Source)
	assert.Equal(t, "system", orderX.CreatedBy)
	assert.True(t, orderX.NeedsQuote, "zero-cost line must flag the order for quoting")
	assert.Equal(t, int64(18*1500), orderX.TotalCents)

	linesX := w.lines[orderX.ID]
	require.Len(t, linesX, 2)
	byItem := map[string]*repository.OrderLine{}
	for _, ln := range linesX {
		byItem[ln.ItemID] = ln
	}
	assert.Equal(t, 18, byItem["item-a"].Quantity)
	assert.False(t, byItem["item-a"].NeedsQuote)
	assert.Equal(t, 10, byItem["item-b"].Quantity)
	assert.True(t, byItem["item-b"].NeedsQuote)

	keyZ := DedupeKey("org-1", "sup-z", time.Date(2026, 3, 14, 6, 0, 0, 0, time.UTC))
	orderZ := w.ordersByKey[keyZ]
	require.NotNil(t, orderZ)
	assert.Equal(t, "PO-2026-0002", orderZ.Code)
	assert.False(t, orderZ.NeedsQuote)
	assert.Equal(t, int64(14*2000), orderZ.TotalCents)

	assert.Len(t, w.auditsByAction(ActionOrderCreated), 2)
	assert.Len(t, w.auditsByAction(ActionItemSkippedNoSupplier), 1)
	assert.Len(t, w.cards, 2)
	assert.Len(t, w.createdNotices, 2)

	require.Len(t, result.Details, 2)
	assert.Equal(t, DetailCreated, result.Details[0].Action)
	assert.Equal(t, "sup-x", result.Details[0].SupplierID)
	assert.Equal(t, keyX, result.Details[0].DedupeKey)
}

func TestEngine_RerunIsIdempotent(t *testing.T) {
	w := newFakeWorld()
	seedScenario(w)
	e := newTestEngine(w)

	first, err := e.RunForOrganization(context.Background(), "org-1", "job-1")
	require.NoError(t, err)
	require.Equal(t, 2, first.Created)

	second, err := e.RunForOrganization(context.Background(), "org-1", "job-2")
	require.NoError(t, err)

	assert.Equal(t, 0, second.Created)
	assert.Equal(t, 0, second.Updated)
	assert.Len(t, second.Details, 0, "an unchanged group leaves no detail")

	assert.Len(t, w.ordersByID, 2)
	assert.Len(t, w.cards, 2)
	assert.Len(t, w.auditsByAction(ActionOrderCreated), 2)
	assert.Len(t, w.auditsByAction(ActionOrderUpdated), 0)
	assert.Len(t, w.createdNotices, 2)
	assert.Len(t, w.updatedNotices, 0)
}

func TestEngine_MergeRaisesQuantityMonotonically(t *testing.T) {
	w := newFakeWorld()
	w.addSupplier("sup-x", "Supplier X", repository.SupplierStatusActive)
	itemA := w.addItem("item-a", "SKU-A", 2, 5, 20, 1500, strPtr("sup-x"))
	e := newTestEngine(w)

	ctx := context.Background()
	_, err := e.RunForOrganization(ctx, "org-1", "job-1")
	require.NoError(t, err)

	key := DedupeKey("org-1", "sup-x", time.Date(2026, 3, 14, 6, 0, 0, 0, time.UTC))
	order := w.ordersByKey[key]
	require.NotNil(t, order)
	require.Equal(t, 18, w.lines[order.ID][0].Quantity)

	// Stock fell further: the line is raised
	itemA.Balance = 0
	result, err := e.RunForOrganization(ctx, "org-1", "job-2")
	require.NoError(t, err)
	assert.Equal(t, 1, result.Updated)
	assert.Equal(t, 20, w.lines[order.ID][0].Quantity)
	assert.Equal(t, int64(20*1500), order.TotalCents)
	require.Len(t, w.updatedNotices, 1)
	assert.Equal(t, []string{"SKU-A"}, w.updatedNotices[0].RaisedSKUs)

	// Stock recovered a little: a smaller proposal never lowers the line
	itemA.Balance = 4
	result, err = e.RunForOrganization(ctx, "org-1", "job-3")
	require.NoError(t, err)
	assert.Equal(t, 0, result.Updated)
	assert.Equal(t, 20, w.lines[order.ID][0].Quantity)
	assert.Len(t, w.auditsByAction(ActionOrderUpdated), 1)
}

func TestEngine_MergeAppendsNewItems(t *testing.T) {
	w := newFakeWorld()
	w.addSupplier("sup-x", "Supplier X", repository.SupplierStatusActive)
	w.addItem("item-a", "SKU-A", 2, 5, 20, 1500, strPtr("sup-x"))
	e := newTestEngine(w)

	ctx := context.Background()
	_, err := e.RunForOrganization(ctx, "org-1", "job-1")
	require.NoError(t, err)

	// A new item went critical inside the same window
	w.addItem("item-e", "SKU-E", 1, 4, 9, 0, strPtr("sup-x"))

	result, err := e.RunForOrganization(ctx, "org-1", "job-2")
	require.NoError(t, err)
	assert.Equal(t, 1, result.Updated)
	assert.Equal(t, 0, result.Created)

	key := DedupeKey("org-1", "sup-x", time.Date(2026, 3, 14, 6, 0, 0, 0, time.UTC))
	order := w.ordersByKey[key]
	require.Len(t, w.lines[order.ID], 2)
	assert.True(t, order.NeedsQuote, "appended zero-cost line flips the order quote flag")
	assert.Equal(t, int64(18*1500), order.TotalCents)

	require.Len(t, w.updatedNotices, 1)
	assert.Equal(t, []string{"SKU-E"}, w.updatedNotices[0].AddedSKUs)
	assert.Len(t, w.cards, 1, "merge reuses the order's tracking card")
}

func TestEngine_ManualDraftSuppressesGroup(t *testing.T) {
	w := newFakeWorld()
	seedScenario(w)
	w.manualDrafts["sup-x"] = testTime.Add(-30 * time.Minute)
	e := newTestEngine(w)

	result, err := e.RunForOrganization(context.Background(), "org-1", "job-1")
	require.NoError(t, err)

	// The two X items are suppressed, the Z group still runs
	assert.Equal(t, 1, result.Created)
	assert.Equal(t, 3, result.Skipped)

	keyX := DedupeKey("org-1", "sup-x", time.Date(2026, 3, 14, 6, 0, 0, 0, time.UTC))
	assert.Nil(t, w.ordersByKey[keyX])

	require.Len(t, result.Details, 2)
	assert.Equal(t, DetailSkipped, result.Details[0].Action)
	assert.Equal(t, SkipReasonManualDraft, result.Details[0].Reason)
	assert.Equal(t, 2, result.Details[0].ItemCount)
	assert.Len(t, w.auditsByAction(ActionOrderSkipped), 1)
}

func TestEngine_OldManualDraftDoesNotSuppress(t *testing.T) {
	w := newFakeWorld()
	seedScenario(w)
	w.manualDrafts["sup-x"] = testTime.Add(-2 * time.Hour)
	e := newTestEngine(w)

	result, err := e.RunForOrganization(context.Background(), "org-1", "job-1")
	require.NoError(t, err)

	assert.Equal(t, 2, result.Created)
	assert.Len(t, w.auditsByAction(ActionOrderSkipped), 0)
}

func TestEngine_GroupFailureDoesNotAbortRun(t *testing.T) {
	w := newFakeWorld()
	w.addSupplier("sup-a", "Supplier A", repository.SupplierStatusActive)
	w.addSupplier("sup-b", "Supplier B", repository.SupplierStatusActive)
	w.addItem("item-1", "SKU-1", 0, 5, 10, 1000, strPtr("sup-a"))
	w.addItem("item-2", "SKU-2", 0, 5, 10, 1000, strPtr("sup-b"))
	w.failCreateForSupplier = "sup-a"
	e := newTestEngine(w)

	result, err := e.RunForOrganization(context.Background(), "org-1", "job-1")
	require.Error(t, err)

	// The failing group did not stop the other one
	assert.Equal(t, 1, result.Created)
	assert.NotEmpty(t, result.Error)
	assert.NotEmpty(t, w.auditsByAction(ActionRunError))

	keyB := DedupeKey("org-1", "sup-b", time.Date(2026, 3, 14, 6, 0, 0, 0, time.UTC))
	assert.NotNil(t, w.ordersByKey[keyB])
}

func TestEngine_RunAllSweepsEveryOrganization(t *testing.T) {
	w := newFakeWorld()
	w.addSupplier("sup-x", "Supplier X", repository.SupplierStatusActive)
	w.addItem("item-a", "SKU-A", 2, 5, 20, 1500, strPtr("sup-x"))
	w.orgs = []*repository.Organization{
		{ID: "org-1", Name: "One", Status: "active"},
		{ID: "org-2", Name: "Two", Status: "active"},
	}
	e := newTestEngine(w)

	results, err := e.RunAll(context.Background(), "job-1")
	require.NoError(t, err)
	require.Len(t, results, 2)

	// Dedupe keys carry the organization, so each org got its own order
	assert.Equal(t, 1, results[0].Created)
	assert.Equal(t, 1, results[1].Created)
	assert.Len(t, w.ordersByID, 2)
}

func TestEngine_NoCriticalItemsIsANoOp(t *testing.T) {
	w := newFakeWorld()
	w.addSupplier("sup-x", "Supplier X", repository.SupplierStatusActive)
	w.addItem("item-a", "SKU-A", 50, 5, 20, 1500, strPtr("sup-x"))
	e := newTestEngine(w)

	result, err := e.RunForOrganization(context.Background(), "org-1", "job-1")
	require.NoError(t, err)

	assert.Equal(t, 0, result.Processed)
	assert.Empty(t, w.ordersByID)
	assert.Empty(t, w.audits)
}
