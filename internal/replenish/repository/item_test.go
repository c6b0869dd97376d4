package repository

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/compraflow/compraflow-backend/pkg/database"
	"github.com/compraflow/compraflow-backend/pkg/logger"
	"github.com/compraflow/compraflow-backend/pkg/testutil"
)

func newItemRepo(t *testing.T) (*ItemRepository, *testutil.MockDB) {
	mockDB := testutil.NewMockDB(t)
	t.Cleanup(func() { mockDB.Close() })
	db := database.Wrap(mockDB.DB, logger.New("test", "test"))
	return NewItemRepository(db), mockDB
}

func TestItemRepository_ListCritical(t *testing.T) {
	repo, mockDB := newItemRepo(t)

	now := time.Now()
	rows := testutil.MockRows(
		"id", "sku", "description", "balance", "min_stock", "max_stock",
		"unit_cost_cents", "supplier_id", "created_at",
	).
		AddRow("item-a", "SKU-A", "Gauze", 2, 5, 20, int64(1500), "sup-1", now).
		AddRow("item-b", "SKU-B", "Gloves", 0, 3, 10, int64(0), nil, now)
	mockDB.ExpectOrgQuery(testOrgID, "SELECT id, sku, description", rows)

	items, err := repo.ListCritical(orgCtx())
	require.NoError(t, err)
	require.Len(t, items, 2)

	assert.Equal(t, "SKU-A", items[0].SKU)
	require.NotNil(t, items[0].SupplierID)
	assert.Equal(t, "sup-1", *items[0].SupplierID)
	assert.Nil(t, items[1].SupplierID)
	assert.Equal(t, int64(0), items[1].UnitCostCents)

	mockDB.ExpectationsWereMet(t)
}
