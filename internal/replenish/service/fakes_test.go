package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/compraflow/compraflow-backend/internal/replenish/repository"
	"github.com/compraflow/compraflow-backend/pkg/config"
	"github.com/compraflow/compraflow-backend/pkg/logger"
)

// fakeTx runs the function directly; the fake world has no transactions.
type fakeTx struct{}

func (fakeTx) WithOrgTx(ctx context.Context, orgID string, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

// fakeWorld is an in-memory backing store implementing every store interface
// the engine drives, so engine behavior can be tested end to end without a
// database.
type fakeWorld struct {
	items           []*repository.Item
	itemsByID       map[string]*repository.Item
	suppliers       map[string]*repository.Supplier
	defaultSupplier *repository.Supplier
	historical      map[string]*repository.Supplier
	manualDrafts    map[string]time.Time

	ordersByKey map[string]*repository.PurchaseOrder
	ordersByID  map[string]*repository.PurchaseOrder
	lines       map[string][]*repository.OrderLine
	codeSeq     map[int]int

	boards []*repository.KanbanBoard
	cards  map[string]*repository.KanbanCard

	audits []*repository.AuditEntry
	orgs   []*repository.Organization

	createdNotices []OrderCreatedNotice
	updatedNotices []OrderUpdatedNotice

	failCreateForSupplier string
	seq                   int
}

func newFakeWorld() *fakeWorld {
	return &fakeWorld{
		itemsByID:    make(map[string]*repository.Item),
		suppliers:    make(map[string]*repository.Supplier),
		historical:   make(map[string]*repository.Supplier),
		manualDrafts: make(map[string]time.Time),
		ordersByKey:  make(map[string]*repository.PurchaseOrder),
		ordersByID:   make(map[string]*repository.PurchaseOrder),
		lines:        make(map[string][]*repository.OrderLine),
		codeSeq:      make(map[int]int),
		cards:        make(map[string]*repository.KanbanCard),
	}
}

func (w *fakeWorld) nextID(prefix string) string {
	w.seq++
	return fmt.Sprintf("%s-%d", prefix, w.seq)
}

func (w *fakeWorld) addSupplier(id, name, status string) *repository.Supplier {
	s := &repository.Supplier{ID: id, Name: name, Status: status}
	w.suppliers[id] = s
	return s
}

func (w *fakeWorld) addItem(id, sku string, balance, minStock, maxStock int, unitCostCents int64, supplierID *string) *repository.Item {
	item := &repository.Item{
		ID:            id,
		SKU:           sku,
		Balance:       balance,
		MinStock:      minStock,
		MaxStock:      maxStock,
		UnitCostCents: unitCostCents,
		SupplierID:    supplierID,
	}
	w.items = append(w.items, item)
	w.itemsByID[id] = item
	return item
}

// ItemStore

func (w *fakeWorld) ListCritical(ctx context.Context) ([]*repository.Item, error) {
	var critical []*repository.Item
	for _, item := range w.items {
		if item.Balance <= item.MinStock {
			critical = append(critical, item)
		}
	}
	return critical, nil
}

// SupplierStore

func (w *fakeWorld) GetActive(ctx context.Context, id string) (*repository.Supplier, error) {
	s, ok := w.suppliers[id]
	if !ok || s.Status != repository.SupplierStatusActive {
		return nil, nil
	}
	return s, nil
}

func (w *fakeWorld) GetDefault(ctx context.Context) (*repository.Supplier, error) {
	return w.defaultSupplier, nil
}

// OrderStore

func (w *fakeWorld) GetByDedupeKey(ctx context.Context, dedupeKey string) (*repository.PurchaseOrder, error) {
	return w.ordersByKey[dedupeKey], nil
}

func (w *fakeWorld) HasRecentManualDraft(ctx context.Context, supplierID string, cutoff time.Time) (bool, error) {
	createdAt, ok := w.manualDrafts[supplierID]
	return ok && createdAt.After(cutoff), nil
}

func (w *fakeWorld) LastOrderSupplierForSKU(ctx context.Context, sku string) (*repository.Supplier, error) {
	return w.historical[sku], nil
}

func (w *fakeWorld) NextCode(ctx context.Context, year int) (string, error) {
	w.codeSeq[year]++
	return fmt.Sprintf("PO-%d-%04d", year, w.codeSeq[year]), nil
}

func (w *fakeWorld) Create(ctx context.Context, po *repository.PurchaseOrder) error {
	if w.failCreateForSupplier != "" && po.SupplierID == w.failCreateForSupplier {
		return errors.New("insert failed")
	}
	if po.ID == "" {
		po.ID = w.nextID("po")
	}
	po.CreatedAt = time.Now()
	w.ordersByKey[*po.DedupeKey] = po
	w.ordersByID[po.ID] = po
	return nil
}

func (w *fakeWorld) ListLines(ctx context.Context, orderID string) ([]*repository.OrderLine, error) {
	return w.lines[orderID], nil
}

func (w *fakeWorld) AddLine(ctx context.Context, line *repository.OrderLine) error {
	if line.ID == "" {
		line.ID = w.nextID("line")
	}
	if item, ok := w.itemsByID[line.ItemID]; ok {
		line.SKU = item.SKU
	}
	w.lines[line.PurchaseOrderID] = append(w.lines[line.PurchaseOrderID], line)
	return nil
}

func (w *fakeWorld) UpdateLine(ctx context.Context, lineID string, quantity int, unitPriceCents, totalCents int64, needsQuote bool) error {
	for _, lines := range w.lines {
		for _, line := range lines {
			if line.ID == lineID {
				line.Quantity = quantity
				line.UnitPriceCents = unitPriceCents
				line.TotalCents = totalCents
				line.NeedsQuote = needsQuote
				return nil
			}
		}
	}
	return errors.New("line not found")
}

func (w *fakeWorld) UpdateSummary(ctx context.Context, orderID string, totalCents int64, needsQuote bool, lastAutoUpdateAt time.Time) error {
	po, ok := w.ordersByID[orderID]
	if !ok {
		return errors.New("order not found")
	}
	po.TotalCents = totalCents
	po.NeedsQuote = needsQuote
	po.LastAutoUpdateAt = &lastAutoUpdateAt
	return nil
}

// KanbanStore

func (w *fakeWorld) GetDefaultBoard(ctx context.Context) (*repository.KanbanBoard, error) {
	if len(w.boards) == 0 {
		return nil, nil
	}
	return w.boards[0], nil
}

func (w *fakeWorld) CreateBoard(ctx context.Context, board *repository.KanbanBoard) error {
	if board.ID == "" {
		board.ID = w.nextID("board")
	}
	w.boards = append(w.boards, board)
	return nil
}

func (w *fakeWorld) GetCardByExternalRef(ctx context.Context, externalRef string) (*repository.KanbanCard, error) {
	return w.cards[externalRef], nil
}

func (w *fakeWorld) CreateCard(ctx context.Context, card *repository.KanbanCard) error {
	if card.ID == "" {
		card.ID = w.nextID("card")
	}
	w.cards[*card.ExternalRef] = card
	return nil
}

func (w *fakeWorld) UpdateCard(ctx context.Context, cardID, title, description, status string) error {
	for _, card := range w.cards {
		if card.ID == cardID {
			card.Title = title
			card.Description = description
			card.Status = status
			return nil
		}
	}
	return errors.New("card not found")
}

func (w *fakeWorld) NextPosition(ctx context.Context, boardID, status string) (int, error) {
	position := 0
	for _, card := range w.cards {
		if card.BoardID == boardID && card.Status == status {
			position++
		}
	}
	return position, nil
}

// AuditStore

func (w *fakeWorld) CreateAudit(ctx context.Context, entry *repository.AuditEntry) error {
	if entry.ID == "" {
		entry.ID = w.nextID("audit")
	}
	entry.CreatedAt = time.Now()
	w.audits = append(w.audits, entry)
	return nil
}

func (w *fakeWorld) auditsByAction(action string) []*repository.AuditEntry {
	var matched []*repository.AuditEntry
	for _, entry := range w.audits {
		if entry.Action == action {
			matched = append(matched, entry)
		}
	}
	return matched
}

// OrgStore

func (w *fakeWorld) ListActive(ctx context.Context) ([]*repository.Organization, error) {
	return w.orgs, nil
}

// OrderEvents

func (w *fakeWorld) AutoOrderCreated(ctx context.Context, notice OrderCreatedNotice) error {
	w.createdNotices = append(w.createdNotices, notice)
	return nil
}

func (w *fakeWorld) AutoOrderUpdated(ctx context.Context, notice OrderUpdatedNotice) error {
	w.updatedNotices = append(w.updatedNotices, notice)
	return nil
}

// auditAdapter bridges fakeWorld to AuditStore; fakeWorld.Create is already
// taken by the order store method.
type auditAdapter struct{ w *fakeWorld }

func (a auditAdapter) Create(ctx context.Context, entry *repository.AuditEntry) error {
	return a.w.CreateAudit(ctx, entry)
}

var testTime = time.Date(2026, 3, 14, 10, 30, 0, 0, time.UTC)

func newTestEngine(w *fakeWorld) *Engine {
	cfg := config.ReplenishConfig{
		WindowHours:           6,
		ManualDraftWindowMin:  60,
		KanbanReviewThreshold: 5,
	}

	e := NewEngine(cfg, EngineDeps{
		Tx:        fakeTx{},
		Items:     w,
		Suppliers: w,
		Orders:    w,
		Kanban:    w,
		Audit:     auditAdapter{w},
		Orgs:      w,
		Events:    w,
	}, logger.New("test", "test"))
	e.now = func() time.Time { return testTime }
	return e
}
