package repository

import (
	"context"

	"github.com/google/uuid"

	"github.com/compraflow/compraflow-backend/pkg/database"
	"github.com/compraflow/compraflow-backend/pkg/org"
)

// AuditRepository handles audit log persistence.
// All operations are append-only: no UPDATE or DELETE is permitted.
type AuditRepository struct {
	db *database.DB
}

// NewAuditRepository creates a new audit repository
func NewAuditRepository(db *database.DB) *AuditRepository {
	return &AuditRepository{db: db}
}

// Create creates a new audit entry (append-only, no update/delete)
// ORG-ISOLATED: Inserts with organization_id for RLS
func (r *AuditRepository) Create(ctx context.Context, entry *AuditEntry) error {
	orgID, err := org.OrgID(ctx)
	if err != nil {
		return err
	}

	if entry.ID == "" {
		entry.ID = uuid.New().String()
	}

	return r.db.WithOrgTx(ctx, orgID, func(ctx context.Context) error {
		query := `
			INSERT INTO audit_log (id, organization_id, actor, action, entity_type, entity_id, details)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
			RETURNING created_at
		`
		return r.db.QueryRowxContext(ctx, query,
			entry.ID, orgID, entry.Actor, entry.Action,
			entry.EntityType, entry.EntityID, entry.Details,
		).Scan(&entry.CreatedAt)
	})
}

// ListByAction lists audit entries for a specific action with pagination
// ORG-ISOLATED: Returns only the organization's entries via RLS
func (r *AuditRepository) ListByAction(ctx context.Context, action string, page, perPage int) ([]*AuditEntry, int64, error) {
	orgID, err := org.OrgID(ctx)
	if err != nil {
		return nil, 0, err
	}

	var total int64
	var entries []*AuditEntry

	err = r.db.WithOrgTx(ctx, orgID, func(ctx context.Context) error {
		countQuery := `SELECT COUNT(*) FROM audit_log WHERE action = $1`
		if err := r.db.GetContext(ctx, &total, countQuery, action); err != nil {
			return err
		}

		offset := (page - 1) * perPage
		query := `
			SELECT id, actor, action, entity_type, entity_id, details, created_at
			FROM audit_log
			WHERE action = $1
			ORDER BY created_at DESC
			LIMIT $2 OFFSET $3
		`
		return r.db.SelectContext(ctx, &entries, query, action, perPage, offset)
	})

	if err != nil {
		return nil, 0, err
	}

	return entries, total, nil
}

// ListByEntity lists audit entries for a specific entity with pagination
// ORG-ISOLATED: Returns only the organization's entries via RLS
func (r *AuditRepository) ListByEntity(ctx context.Context, entityType, entityID string, page, perPage int) ([]*AuditEntry, int64, error) {
	orgID, err := org.OrgID(ctx)
	if err != nil {
		return nil, 0, err
	}

	var total int64
	var entries []*AuditEntry

	err = r.db.WithOrgTx(ctx, orgID, func(ctx context.Context) error {
		countQuery := `SELECT COUNT(*) FROM audit_log WHERE entity_type = $1 AND entity_id = $2`
		if err := r.db.GetContext(ctx, &total, countQuery, entityType, entityID); err != nil {
			return err
		}

		offset := (page - 1) * perPage
		query := `
			SELECT id, actor, action, entity_type, entity_id, details, created_at
			FROM audit_log
			WHERE entity_type = $1 AND entity_id = $2
			ORDER BY created_at DESC
			LIMIT $3 OFFSET $4
		`
		return r.db.SelectContext(ctx, &entries, query, entityType, entityID, perPage, offset)
	})

	if err != nil {
		return nil, 0, err
	}

	return entries, total, nil
}
