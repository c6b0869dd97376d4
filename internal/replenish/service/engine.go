package service

import (
	"context"
	"sort"
	"time"

	"github.com/compraflow/compraflow-backend/internal/replenish/repository"
	"github.com/compraflow/compraflow-backend/pkg/actor"
	"github.com/compraflow/compraflow-backend/pkg/config"
	"github.com/compraflow/compraflow-backend/pkg/database"
	"github.com/compraflow/compraflow-backend/pkg/logger"
	"github.com/compraflow/compraflow-backend/pkg/org"
)

// TxRunner executes a function inside one organization-scoped transaction.
type TxRunner interface {
	WithOrgTx(ctx context.Context, orgID string, fn func(ctx context.Context) error) error
}

// ItemStore loads the items a run operates on.
type ItemStore interface {
	ListCritical(ctx context.Context) ([]*repository.Item, error)
}

// SupplierStore looks up suppliers for the resolution cascade.
type SupplierStore interface {
	GetActive(ctx context.Context, id string) (*repository.Supplier, error)
	GetDefault(ctx context.Context) (*repository.Supplier, error)
}

// OrderStore persists purchase orders and their lines.
type OrderStore interface {
	GetByDedupeKey(ctx context.Context, dedupeKey string) (*repository.PurchaseOrder, error)
	HasRecentManualDraft(ctx context.Context, supplierID string, cutoff time.Time) (bool, error)
	LastOrderSupplierForSKU(ctx context.Context, sku string) (*repository.Supplier, error)
	NextCode(ctx context.Context, year int) (string, error)
	Create(ctx context.Context, po *repository.PurchaseOrder) error
	ListLines(ctx context.Context, orderID string) ([]*repository.OrderLine, error)
	AddLine(ctx context.Context, line *repository.OrderLine) error
	UpdateLine(ctx context.Context, lineID string, quantity int, unitPriceCents, totalCents int64, needsQuote bool) error
	UpdateSummary(ctx context.Context, orderID string, totalCents int64, needsQuote bool, lastAutoUpdateAt time.Time) error
}

// KanbanStore persists tracking boards and cards.
type KanbanStore interface {
	GetDefaultBoard(ctx context.Context) (*repository.KanbanBoard, error)
	CreateBoard(ctx context.Context, board *repository.KanbanBoard) error
	GetCardByExternalRef(ctx context.Context, externalRef string) (*repository.KanbanCard, error)
	CreateCard(ctx context.Context, card *repository.KanbanCard) error
	UpdateCard(ctx context.Context, cardID, title, description, status string) error
	NextPosition(ctx context.Context, boardID, status string) (int, error)
}

// AuditStore persists append-only audit entries.
type AuditStore interface {
	Create(ctx context.Context, entry *repository.AuditEntry) error
}

// OrgStore enumerates the organizations a batch run sweeps.
type OrgStore interface {
	ListActive(ctx context.Context) ([]*repository.Organization, error)
}

// OrderEvents publishes order lifecycle notifications. Publishing happens
// after the group transaction commits; a publish failure is logged, never
// propagated, so messaging outages cannot fail a run.
type OrderEvents interface {
	AutoOrderCreated(ctx context.Context, notice OrderCreatedNotice) error
	AutoOrderUpdated(ctx context.Context, notice OrderUpdatedNotice) error
}

// OrderCreatedNotice is the payload for a created-order notification.
type OrderCreatedNotice struct {
	OrderID        string
	Code           string
	OrganizationID string
	SupplierID     string
	SupplierName   string
	ItemCount      int
	TotalCents     int64
	NeedsQuote     bool
	DedupeKey      string
	JobID          string
}

// OrderUpdatedNotice is the payload for a merged-order notification.
type OrderUpdatedNotice struct {
	OrderID        string
	Code           string
	OrganizationID string
	SupplierID     string
	SupplierName   string
	ItemCount      int
	TotalCents     int64
	NeedsQuote     bool
	DedupeKey      string
	AddedSKUs      []string
	RaisedSKUs     []string
	JobID          string
}

// Run detail actions
const (
	DetailCreated = "CREATED"
	DetailUpdated = "UPDATED"
	DetailSkipped = "SKIPPED"
)

// Skip reasons surfaced in run details and audit records
const (
	SkipReasonManualDraft = "MANUAL_DRAFT_EXISTS"
	SkipReasonNoSupplier  = "NO_SUPPLIER"
)

// RunDetail is the outcome of one supplier group within a run.
type RunDetail struct {
	OrderID      string `json:"order_id,omitempty"`
	SupplierID   string `json:"supplier_id"`
	SupplierName string `json:"supplier_name"`
	Action       string `json:"action"`
	Reason       string `json:"reason,omitempty"`
	ItemCount    int    `json:"item_count"`
	DedupeKey    string `json:"dedupe_key,omitempty"`
}

// RunResult is the summary of one organization run. Processed counts critical
// items seen, Skipped counts items excluded for any reason, Created and
// Updated count orders.
type RunResult struct {
	OrganizationID string      `json:"organization_id"`
	JobID          string      `json:"job_id,omitempty"`
	Processed      int         `json:"processed"`
	Created        int         `json:"created"`
	Updated        int         `json:"updated"`
	Skipped        int         `json:"skipped"`
	Details        []RunDetail `json:"details"`
	StartedAt      time.Time   `json:"started_at"`
	FinishedAt     time.Time   `json:"finished_at"`
	Error          string      `json:"error,omitempty"`
}

// plannedLine is one item's computed order line before it is persisted.
type plannedLine struct {
	item       *repository.Item
	quantity   int
	unitCents  int64
	lineCents  int64
	needsQuote bool
}

// supplierGroup collects the planned lines destined for one supplier.
type supplierGroup struct {
	supplierID   string
	supplierName string
	lines        []plannedLine
}

// EngineDeps bundles the stores and side effects the engine drives.
type EngineDeps struct {
	Tx        TxRunner
	Items     ItemStore
	Suppliers SupplierStore
	Orders    OrderStore
	Kanban    KanbanStore
	Audit     AuditStore
	Orgs      OrgStore
	Events    OrderEvents
}

// Engine runs the replenishment cycle for one organization at a time.
// Running it twice against the same inventory state within the same window
// produces the same end state as running it once.
type Engine struct {
	cfg      config.ReplenishConfig
	tx       TxRunner
	items    ItemStore
	orders   OrderStore
	orgs     OrgStore
	events   OrderEvents
	resolver *SupplierResolver
	kanban   *KanbanReconciler
	audit    *AuditEmitter
	logger   *logger.Logger

	suppliers SupplierStore

	// now is swapped out in tests to pin the window
	now func() time.Time
}

// NewEngine creates a new replenishment engine
func NewEngine(cfg config.ReplenishConfig, deps EngineDeps, log *logger.Logger) *Engine {
	return &Engine{
		cfg:       cfg,
		tx:        deps.Tx,
		items:     deps.Items,
		orders:    deps.Orders,
		orgs:      deps.Orgs,
		events:    deps.Events,
		resolver:  NewSupplierResolver(deps.Suppliers, deps.Orders),
		kanban:    NewKanbanReconciler(deps.Kanban, cfg.KanbanReviewThreshold),
		audit:     NewAuditEmitter(deps.Audit),
		logger:    log.WithComponent("replenish_engine"),
		suppliers: deps.Suppliers,
		now:       time.Now,
	}
}

// RunForOrganization executes one replenishment cycle for the organization.
// Expected conditions (no supplier, manual-draft suppression, nothing to
// change) are absorbed into counters and audit records. A group failure is
// logged and the remaining groups still run; the last group error is
// returned after all groups were attempted so the scheduler sees the run was
// not clean. A systemic failure aborts the run immediately.
func (e *Engine) RunForOrganization(ctx context.Context, orgID, jobID string) (*RunResult, error) {
	ctx = org.WithOrgID(ctx, orgID)
	log := e.logger.WithOrgID(orgID).WithJobID(jobID)

	result := &RunResult{
		OrganizationID: orgID,
		JobID:          jobID,
		Details:        []RunDetail{},
		StartedAt:      e.now(),
	}
	defer func() { result.FinishedAt = e.now() }()

	items, err := e.items.ListCritical(ctx)
	if err != nil {
		e.recordRunError(ctx, log, orgID, jobID, err)
		result.Error = err.Error()
		return result, err
	}
	if len(items) == 0 {
		log.Debug().Msg("no critical items")
		return result, nil
	}
	result.Processed = len(items)

	orgDefault, err := e.suppliers.GetDefault(ctx)
	if err != nil {
		e.recordRunError(ctx, log, orgID, jobID, err)
		result.Error = err.Error()
		return result, err
	}

	groups, skippedItems, err := e.groupBySupplier(ctx, items, orgDefault)
	if err != nil {
		e.recordRunError(ctx, log, orgID, jobID, err)
		result.Error = err.Error()
		return result, err
	}

	if len(skippedItems) > 0 {
		result.Skipped += len(skippedItems)
		if err := e.audit.ItemsSkippedNoSupplier(ctx, orgID, jobID, skippedItems); err != nil {
			e.recordRunError(ctx, log, orgID, jobID, err)
			result.Error = err.Error()
			return result, err
		}
	}

	windowStart := WindowStart(e.now(), e.cfg.Window())

	// Sorted supplier order keeps runs reproducible and audit logs diffable
	supplierIDs := make([]string, 0, len(groups))
	for id := range groups {
		supplierIDs = append(supplierIDs, id)
	}
	sort.Strings(supplierIDs)

	var lastErr error
	for _, supplierID := range supplierIDs {
		grp := groups[supplierID]
		if err := e.processGroup(ctx, orgID, jobID, grp, windowStart, result); err != nil {
			log.Error().Err(err).
				Str("supplier_id", supplierID).
				Msg("supplier group failed")
			lastErr = err
		}
	}

	if lastErr != nil {
		e.recordRunError(ctx, log, orgID, jobID, lastErr)
		result.Error = lastErr.Error()
	}

	log.Info().
		Int("processed", result.Processed).
		Int("created", result.Created).
		Int("updated", result.Updated).
		Int("skipped", result.Skipped).
		Msg("replenishment run finished")

	return result, lastErr
}

// RunAll sweeps every active organization. One organization's failure never
// aborts the batch; its result carries the error and the sweep moves on.
func (e *Engine) RunAll(ctx context.Context, jobID string) ([]*RunResult, error) {
	orgs, err := e.orgs.ListActive(ctx)
	if err != nil {
		return nil, err
	}

	results := make([]*RunResult, 0, len(orgs))
	for _, o := range orgs {
		result, err := e.RunForOrganization(ctx, o.ID, jobID)
		if err != nil {
			e.logger.Error().Err(err).
				Str("org_id", o.ID).
				Str("org_name", o.Name).
				Msg("replenishment run failed")
		}
		results = append(results, result)
	}

	return results, nil
}

// groupBySupplier resolves each critical item and buckets the resolvable
// ones by supplier. Items no cascade step can resolve come back separately.
func (e *Engine) groupBySupplier(ctx context.Context, items []*repository.Item, orgDefault *repository.Supplier) (map[string]*supplierGroup, []SkippedItem, error) {
	groups := make(map[string]*supplierGroup)
	var skipped []SkippedItem

	for _, item := range items {
		resolution, err := e.resolver.Resolve(ctx, item, orgDefault)
		if err != nil {
			return nil, nil, err
		}

		if resolution.Reason == ReasonNoSupplier {
			skipped = append(skipped, SkippedItem{
				ItemID: item.ID,
				SKU:    item.SKU,
				Reason: SkipReasonNoSupplier,
			})
			continue
		}

		quantity := ReplenishQuantity(item.Balance, item.MaxStock)
		unitCents := item.UnitCostCents
		line := plannedLine{
			item:       item,
			quantity:   quantity,
			unitCents:  unitCents,
			lineCents:  int64(quantity) * unitCents,
			needsQuote: unitCents == 0,
		}

		grp, ok := groups[resolution.SupplierID]
		if !ok {
			grp = &supplierGroup{
				supplierID:   resolution.SupplierID,
				supplierName: resolution.SupplierName,
			}
			groups[resolution.SupplierID] = grp
		}
		grp.lines = append(grp.lines, line)
	}

	return groups, skipped, nil
}

// processGroup runs the guard and then the create-or-merge sequence for one
// supplier group. Everything after the guard executes inside a single
// transaction, so a crash mid-group leaves either the old state or a fully
// written new state.
func (e *Engine) processGroup(ctx context.Context, orgID, jobID string, grp *supplierGroup, windowStart time.Time, result *RunResult) error {
	now := e.now()

	cutoff := now.Add(-e.cfg.ManualDraftWindow())
	hasDraft, err := e.orders.HasRecentManualDraft(ctx, grp.supplierID, cutoff)
	if err != nil {
		return err
	}
	if hasDraft {
		result.Skipped += len(grp.lines)
		result.Details = append(result.Details, RunDetail{
			SupplierID:   grp.supplierID,
			SupplierName: grp.supplierName,
			Action:       DetailSkipped,
			Reason:       SkipReasonManualDraft,
			ItemCount:    len(grp.lines),
		})
		return e.audit.GroupSkipped(ctx, orgID, GroupSkippedAudit{
			Reason:       SkipReasonManualDraft,
			SupplierID:   grp.supplierID,
			SupplierName: grp.supplierName,
			ItemCount:    len(grp.lines),
			JobID:        jobID,
		})
	}

	dedupeKey := DedupeKey(orgID, grp.supplierID, windowStart)

	var created *OrderCreatedNotice
	var updated *OrderUpdatedNotice

	reconcile := func() error {
		created, updated = nil, nil
		return e.tx.WithOrgTx(ctx, orgID, func(ctx context.Context) error {
			existing, err := e.orders.GetByDedupeKey(ctx, dedupeKey)
			if err != nil {
				return err
			}

			if existing == nil {
				created, err = e.createOrder(ctx, orgID, jobID, grp, windowStart, dedupeKey, now, result)
				return err
			}

			updated, err = e.mergeOrder(ctx, orgID, jobID, grp, existing, dedupeKey, now, result)
			return err
		})
	}

	err = reconcile()
	if database.IsUniqueViolation(err, "dedupe_key") {
		// A concurrent run won the create race; the lookup now finds its
		// order and this run merges into it instead.
		err = reconcile()
	}
	if err != nil {
		return err
	}

	if e.events != nil {
		if created != nil {
			if err := e.events.AutoOrderCreated(ctx, *created); err != nil {
				e.logger.Warn().Err(err).Str("order_id", created.OrderID).Msg("failed to publish created event")
			}
		}
		if updated != nil {
			if err := e.events.AutoOrderUpdated(ctx, *updated); err != nil {
				e.logger.Warn().Err(err).Str("order_id", updated.OrderID).Msg("failed to publish updated event")
			}
		}
	}

	return nil
}

// createOrder writes a new draft order with one line per grouped item, its
// tracking card and the creation audit record.
func (e *Engine) createOrder(ctx context.Context, orgID, jobID string, grp *supplierGroup, windowStart time.Time, dedupeKey string, now time.Time, result *RunResult) (*OrderCreatedNotice, error) {
	code, err := e.orders.NextCode(ctx, now.Year())
	if err != nil {
		return nil, err
	}

	var totalCents int64
	needsQuote := false
	for _, ln := range grp.lines {
		totalCents += ln.lineCents
		if ln.needsQuote {
			needsQuote = true
		}
	}

	notes := "Automatically generated replenishment order."
	if needsQuote {
		notes += " Quote required before sending."
	}

	po := &repository.PurchaseOrder{
		Code:             code,
		Status:           repository.OrderStatusDraft,
		Source:           repository.OrderSourceAuto,
		SupplierID:       grp.supplierID,
		TotalCents:       totalCents,
		NeedsQuote:       needsQuote,
		Notes:            &notes,
		DedupeKey:        &dedupeKey,
		WindowStart:      &windowStart,
		LastAutoUpdateAt: &now,
		CreatedBy:        actor.System().String(),
	}
	if err := e.orders.Create(ctx, po); err != nil {
		return nil, err
	}

	skus := make([]string, 0, len(grp.lines))
	for _, ln := range grp.lines {
		if err := e.orders.AddLine(ctx, &repository.OrderLine{
			PurchaseOrderID: po.ID,
			ItemID:          ln.item.ID,
			Quantity:        ln.quantity,
			UnitPriceCents:  ln.unitCents,
			TotalCents:      ln.lineCents,
			NeedsQuote:      ln.needsQuote,
		}); err != nil {
			return nil, err
		}
		skus = append(skus, ln.item.SKU)
	}

	if err := e.kanban.Reconcile(ctx, po.ID, po.Code, grp.supplierName, len(grp.lines)); err != nil {
		return nil, err
	}

	if err := e.audit.OrderCreated(ctx, po.ID, OrderCreatedAudit{
		Code:         code,
		DedupeKey:    dedupeKey,
		SupplierID:   grp.supplierID,
		SupplierName: grp.supplierName,
		SKUs:         skus,
		ItemCount:    len(grp.lines),
		TotalCents:   totalCents,
		NeedsQuote:   needsQuote,
		JobID:        jobID,
	}); err != nil {
		return nil, err
	}

	result.Created++
	result.Details = append(result.Details, RunDetail{
		OrderID:      po.ID,
		SupplierID:   grp.supplierID,
		SupplierName: grp.supplierName,
		Action:       DetailCreated,
		ItemCount:    len(grp.lines),
		DedupeKey:    dedupeKey,
	})

	return &OrderCreatedNotice{
		OrderID:        po.ID,
		Code:           code,
		OrganizationID: orgID,
		SupplierID:     grp.supplierID,
		SupplierName:   grp.supplierName,
		ItemCount:      len(grp.lines),
		TotalCents:     totalCents,
		NeedsQuote:     needsQuote,
		DedupeKey:      dedupeKey,
		JobID:          jobID,
	}, nil
}

// mergeOrder folds the group's planned lines into an existing order. Missing
// lines are appended; existing lines are only ever raised, never reduced,
// and a line already at or above the planned quantity is left untouched.
// When nothing changed, no write happens and no audit record is emitted.
func (e *Engine) mergeOrder(ctx context.Context, orgID, jobID string, grp *supplierGroup, existing *repository.PurchaseOrder, dedupeKey string, now time.Time, result *RunResult) (*OrderUpdatedNotice, error) {
	lines, err := e.orders.ListLines(ctx, existing.ID)
	if err != nil {
		return nil, err
	}

	byItem := make(map[string]*repository.OrderLine, len(lines))
	for _, ln := range lines {
		byItem[ln.ItemID] = ln
	}

	var addedSKUs []string
	var raised []QuantityChange

	for _, ln := range grp.lines {
		current, ok := byItem[ln.item.ID]
		if !ok {
			if err := e.orders.AddLine(ctx, &repository.OrderLine{
				PurchaseOrderID: existing.ID,
				ItemID:          ln.item.ID,
				Quantity:        ln.quantity,
				UnitPriceCents:  ln.unitCents,
				TotalCents:      ln.lineCents,
				NeedsQuote:      ln.needsQuote,
			}); err != nil {
				return nil, err
			}
			addedSKUs = append(addedSKUs, ln.item.SKU)
			continue
		}

		if ln.quantity > current.Quantity {
			if err := e.orders.UpdateLine(ctx, current.ID, ln.quantity, ln.unitCents, ln.lineCents, ln.needsQuote); err != nil {
				return nil, err
			}
			raised = append(raised, QuantityChange{
				ItemID: ln.item.ID,
				SKU:    ln.item.SKU,
				OldQty: current.Quantity,
				NewQty: ln.quantity,
			})
		}
	}

	if len(addedSKUs) == 0 && len(raised) == 0 {
		return nil, nil
	}

	// Recompute the aggregate from the lines as they now stand
	currentLines, err := e.orders.ListLines(ctx, existing.ID)
	if err != nil {
		return nil, err
	}

	var totalCents int64
	needsQuote := false
	for _, ln := range currentLines {
		totalCents += ln.TotalCents
		if ln.NeedsQuote {
			needsQuote = true
		}
	}

	if err := e.orders.UpdateSummary(ctx, existing.ID, totalCents, needsQuote, now); err != nil {
		return nil, err
	}

	if err := e.kanban.Reconcile(ctx, existing.ID, existing.Code, grp.supplierName, len(currentLines)); err != nil {
		return nil, err
	}

	if err := e.audit.OrderUpdated(ctx, existing.ID, OrderUpdatedAudit{
		DedupeKey:  dedupeKey,
		AddedSKUs:  addedSKUs,
		RaisedQtys: raised,
		ItemCount:  len(currentLines),
		TotalCents: totalCents,
		JobID:      jobID,
	}); err != nil {
		return nil, err
	}

	result.Updated++
	result.Details = append(result.Details, RunDetail{
		OrderID:      existing.ID,
		SupplierID:   grp.supplierID,
		SupplierName: grp.supplierName,
		Action:       DetailUpdated,
		ItemCount:    len(currentLines),
		DedupeKey:    dedupeKey,
	})

	raisedSKUs := make([]string, 0, len(raised))
	for _, change := range raised {
		raisedSKUs = append(raisedSKUs, change.SKU)
	}

	return &OrderUpdatedNotice{
		OrderID:        existing.ID,
		Code:           existing.Code,
		OrganizationID: orgID,
		SupplierID:     grp.supplierID,
		SupplierName:   grp.supplierName,
		ItemCount:      len(currentLines),
		TotalCents:     totalCents,
		NeedsQuote:     needsQuote,
		DedupeKey:      dedupeKey,
		AddedSKUs:      addedSKUs,
		RaisedSKUs:     raisedSKUs,
		JobID:          jobID,
	}, nil
}

func (e *Engine) recordRunError(ctx context.Context, log *logger.Logger, orgID, jobID string, runErr error) {
	if err := e.audit.RunError(ctx, orgID, jobID, runErr); err != nil {
		log.Warn().Err(err).Msg("failed to write error audit entry")
	}
}
