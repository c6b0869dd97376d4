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

func newAuditRepo(t *testing.T) (*AuditRepository, *testutil.MockDB) {
	mockDB := testutil.NewMockDB(t)
	t.Cleanup(func() { mockDB.Close() })
	db := database.Wrap(mockDB.DB, logger.New("test", "test"))
	return NewAuditRepository(db), mockDB
}

func TestAuditRepository_Create(t *testing.T) {
	repo, mockDB := newAuditRepo(t)

	createdAt := time.Now()
	mockDB.ExpectOrgQuery(testOrgID, "INSERT INTO audit_log", testutil.MockRows("created_at").AddRow(createdAt))

	details := `{"reason":"MANUAL_DRAFT_EXISTS"}`
	entry := &AuditEntry{
		Actor:      "system",
		Action:     "AUTO_PO_SKIPPED",
		EntityType: "purchase_order",
		EntityID:   "skip:" + testOrgID + ":sup-1",
		Details:    &details,
	}

	err := repo.Create(orgCtx(), entry)
	require.NoError(t, err)
	assert.NotEmpty(t, entry.ID)
	assert.WithinDuration(t, createdAt, entry.CreatedAt, time.Second)

	mockDB.ExpectationsWereMet(t)
}

func TestAuditRepository_ListByAction(t *testing.T) {
	repo, mockDB := newAuditRepo(t)

	now := time.Now()
	mockDB.ExpectOrgBegin(testOrgID)
	mockDB.ExpectQuery("SELECT COUNT").WillReturnRows(testutil.MockRows("count").AddRow(int64(12)))
	mockDB.ExpectQuery("SELECT id, actor, action").WillReturnRows(
		testutil.MockRows("id", "actor", "action", "entity_type", "entity_id", "details", "created_at").
			AddRow("audit-1", "system", "AUTO_PO_CREATED", "purchase_order", "po-1", nil, now).
			AddRow("audit-2", "system", "AUTO_PO_CREATED", "purchase_order", "po-2", nil, now),
	)
	mockDB.ExpectCommit()

	entries, total, err := repo.ListByAction(orgCtx(), "AUTO_PO_CREATED", 1, 2)
	require.NoError(t, err)
	assert.Equal(t, int64(12), total)
	require.Len(t, entries, 2)
	assert.Equal(t, "po-1", entries[0].EntityID)

	mockDB.ExpectationsWereMet(t)
}

func TestAuditRepository_ListByEntity(t *testing.T) {
	repo, mockDB := newAuditRepo(t)

	now := time.Now()
	mockDB.ExpectOrgBegin(testOrgID)
	mockDB.ExpectQuery("SELECT COUNT").WillReturnRows(testutil.MockRows("count").AddRow(int64(1)))
	mockDB.ExpectQuery("SELECT id, actor, action").WillReturnRows(
		testutil.MockRows("id", "actor", "action", "entity_type", "entity_id", "details", "created_at").
			AddRow("audit-1", "system", "AUTO_PO_UPDATED", "purchase_order", "po-1", nil, now),
	)
	mockDB.ExpectCommit()

	entries, total, err := repo.ListByEntity(orgCtx(), "purchase_order", "po-1", 1, 20)
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	require.Len(t, entries, 1)

	mockDB.ExpectationsWereMet(t)
}
