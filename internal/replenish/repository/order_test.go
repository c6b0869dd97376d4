package repository

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/compraflow/compraflow-backend/pkg/database"
	"github.com/compraflow/compraflow-backend/pkg/logger"
	"github.com/compraflow/compraflow-backend/pkg/org"
	"github.com/compraflow/compraflow-backend/pkg/testutil"
)

const testOrgID = "6f9619ff-8b86-4d01-b42d-00cf4fc964ff"

func newOrderRepo(t *testing.T) (*OrderRepository, *testutil.MockDB) {
	mockDB := testutil.NewMockDB(t)
	t.Cleanup(func() { mockDB.Close() })
	db := database.Wrap(mockDB.DB, logger.New("test", "test"))
	return NewOrderRepository(db), mockDB
}

func orgCtx() context.Context {
	return org.WithOrgID(context.Background(), testOrgID)
}

func TestOrderRepository_GetByDedupeKey(t *testing.T) {
	repo, mockDB := newOrderRepo(t)

	windowStart := time.Date(2026, 3, 14, 6, 0, 0, 0, time.UTC)
	key := "AUTO:" + testOrgID + ":sup-1:2026-03-14T06:00:00Z"
	now := time.Now()

	rows := testutil.MockRows(
		"id", "code", "status", "source", "supplier_id", "total_cents", "needs_quote",
		"notes", "dedupe_key", "window_start", "last_auto_update_at", "created_by", "created_at",
	).AddRow(
		"po-1", "PO-2026-0001", OrderStatusDraft, OrderSourceAuto, "sup-1", int64(27000), true,
		nil, key, windowStart, now, "system", now,
	)
	mockDB.ExpectOrgQuery(testOrgID, "SELECT id, code, status", rows)

	po, err := repo.GetByDedupeKey(orgCtx(), key)
	require.NoError(t, err)
	require.NotNil(t, po)

	assert.Equal(t, "po-1", po.ID)
	assert.Equal(t, "PO-2026-0001", po.Code)
	assert.Equal(t, OrderSourceAuto, po.Source)
	assert.True(t, po.NeedsQuote)
	require.NotNil(t, po.DedupeKey)
	assert.Equal(t, key, *po.DedupeKey)

	mockDB.ExpectationsWereMet(t)
}

func TestOrderRepository_GetByDedupeKey_NotFound(t *testing.T) {
	repo, mockDB := newOrderRepo(t)

	mockDB.ExpectOrgBegin(testOrgID)
	mockDB.ExpectQuery("SELECT id, code, status").WillReturnError(sql.ErrNoRows)
	mockDB.ExpectRollback()

	po, err := repo.GetByDedupeKey(orgCtx(), "AUTO:none")
	require.NoError(t, err)
	assert.Nil(t, po)

	mockDB.ExpectationsWereMet(t)
}

func TestOrderRepository_GetByDedupeKey_NoOrgContext(t *testing.T) {
	repo, _ := newOrderRepo(t)

	_, err := repo.GetByDedupeKey(context.Background(), "AUTO:none")
	assert.Error(t, err)
}

func TestOrderRepository_HasRecentManualDraft(t *testing.T) {
	repo, mockDB := newOrderRepo(t)

	mockDB.ExpectOrgQuery(testOrgID, "SELECT EXISTS", testutil.MockRows("exists").AddRow(true))

	exists, err := repo.HasRecentManualDraft(orgCtx(), "sup-1", time.Now().Add(-time.Hour))
	require.NoError(t, err)
	assert.True(t, exists)

	mockDB.ExpectationsWereMet(t)
}

func TestOrderRepository_NextCode(t *testing.T) {
	repo, mockDB := newOrderRepo(t)

	mockDB.ExpectOrgQuery(testOrgID, "INSERT INTO order_code_counters", testutil.MockRows("seq").AddRow(7))

	code, err := repo.NextCode(orgCtx(), 2026)
	require.NoError(t, err)
	assert.Equal(t, "PO-2026-0007", code)

	mockDB.ExpectationsWereMet(t)
}

func TestOrderRepository_Create(t *testing.T) {
	repo, mockDB := newOrderRepo(t)

	createdAt := time.Now()
	mockDB.ExpectOrgQuery(testOrgID, "INSERT INTO purchase_orders", testutil.MockRows("created_at").AddRow(createdAt))

	key := "AUTO:" + testOrgID + ":sup-1:2026-03-14T06:00:00Z"
	windowStart := time.Date(2026, 3, 14, 6, 0, 0, 0, time.UTC)
	po := &PurchaseOrder{
		Code:        "PO-2026-0001",
		Status:      OrderStatusDraft,
		Source:      OrderSourceAuto,
		SupplierID:  "sup-1",
		TotalCents:  27000,
		DedupeKey:   &key,
		WindowStart: &windowStart,
		CreatedBy:   "system",
	}

	err := repo.Create(orgCtx(), po)
	require.NoError(t, err)

	assert.NotEmpty(t, po.ID, "a missing ID is generated")
	assert.WithinDuration(t, createdAt, po.CreatedAt, time.Second)

	mockDB.ExpectationsWereMet(t)
}

func TestOrderRepository_ListLines(t *testing.T) {
	repo, mockDB := newOrderRepo(t)

	rows := testutil.MockRows(
		"id", "purchase_order_id", "item_id", "sku", "quantity", "unit_price_cents", "total_cents", "needs_quote",
	).
		AddRow("line-1", "po-1", "item-a", "SKU-A", 18, int64(1500), int64(27000), false).
		AddRow("line-2", "po-1", "item-b", "SKU-B", 10, int64(0), int64(0), true)
	mockDB.ExpectOrgQuery(testOrgID, "SELECT poi.id, poi.purchase_order_id", rows)

	lines, err := repo.ListLines(orgCtx(), "po-1")
	require.NoError(t, err)
	require.Len(t, lines, 2)
	assert.Equal(t, "SKU-A", lines[0].SKU)
	assert.Equal(t, 18, lines[0].Quantity)
	assert.True(t, lines[1].NeedsQuote)

	mockDB.ExpectationsWereMet(t)
}

func TestOrderRepository_LastOrderSupplierForSKU_NotFound(t *testing.T) {
	repo, mockDB := newOrderRepo(t)

	mockDB.ExpectOrgBegin(testOrgID)
	mockDB.ExpectQuery("SELECT s.id, s.name").WillReturnError(sql.ErrNoRows)
	mockDB.ExpectRollback()

	supplier, err := repo.LastOrderSupplierForSKU(orgCtx(), "SKU-X")
	require.NoError(t, err)
	assert.Nil(t, supplier)

	mockDB.ExpectationsWereMet(t)
}
