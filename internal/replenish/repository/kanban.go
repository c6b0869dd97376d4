package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"

	"github.com/compraflow/compraflow-backend/pkg/database"
	"github.com/compraflow/compraflow-backend/pkg/org"
)

// KanbanRepository handles kanban board and card persistence
type KanbanRepository struct {
	db *database.DB
}

// NewKanbanRepository creates a new kanban repository
func NewKanbanRepository(db *database.DB) *KanbanRepository {
	return &KanbanRepository{db: db}
}

// GetDefaultBoard returns the organization's oldest board, or (nil, nil)
// when the organization has no board yet.
// ORG-ISOLATED via RLS
func (r *KanbanRepository) GetDefaultBoard(ctx context.Context) (*KanbanBoard, error) {
	orgID, err := org.OrgID(ctx)
	if err != nil {
		return nil, err
	}

	var board KanbanBoard

	err = r.db.WithOrgTx(ctx, orgID, func(ctx context.Context) error {
		query := `
			SELECT id, name, description
			FROM kanban_boards
			ORDER BY created_at ASC
			LIMIT 1
		`
		return r.db.GetContext(ctx, &board, query)
	})

	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	return &board, nil
}

// CreateBoard inserts a new kanban board
// ORG-ISOLATED: Inserts with organization_id for RLS
func (r *KanbanRepository) CreateBoard(ctx context.Context, board *KanbanBoard) error {
	orgID, err := org.OrgID(ctx)
	if err != nil {
		return err
	}

	if board.ID == "" {
		board.ID = uuid.New().String()
	}

	return r.db.WithOrgTx(ctx, orgID, func(ctx context.Context) error {
		query := `
			INSERT INTO kanban_boards (id, organization_id, name, description)
			VALUES ($1, $2, $3, $4)
		`
		_, err := r.db.ExecContext(ctx, query, board.ID, orgID, board.Name, board.Description)
		return err
	})
}

// GetCardByExternalRef returns the card carrying the given external ref, or
// (nil, nil) when no card exists for it. The unique index on
// (organization_id, external_ref) guarantees at most one row.
// ORG-ISOLATED via RLS
func (r *KanbanRepository) GetCardByExternalRef(ctx context.Context, externalRef string) (*KanbanCard, error) {
	orgID, err := org.OrgID(ctx)
	if err != nil {
		return nil, err
	}

	var card KanbanCard

	err = r.db.WithOrgTx(ctx, orgID, func(ctx context.Context) error {
		query := `
			SELECT id, board_id, title, description, status, position,
			       purchase_order_id, external_ref, created_by
			FROM kanban_cards
			WHERE external_ref = $1
		`
		return r.db.GetContext(ctx, &card, query, externalRef)
	})

	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	return &card, nil
}

// CreateCard inserts a new kanban card
// ORG-ISOLATED: Inserts with organization_id for RLS
func (r *KanbanRepository) CreateCard(ctx context.Context, card *KanbanCard) error {
	orgID, err := org.OrgID(ctx)
	if err != nil {
		return err
	}

	if card.ID == "" {
		card.ID = uuid.New().String()
	}

	return r.db.WithOrgTx(ctx, orgID, func(ctx context.Context) error {
		query := `
			INSERT INTO kanban_cards (
				id, organization_id, board_id, title, description, status,
				position, purchase_order_id, external_ref, created_by
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		`
		_, err := r.db.ExecContext(ctx, query,
			card.ID, orgID, card.BoardID, card.Title, card.Description, card.Status,
			card.Position, card.PurchaseOrderID, card.ExternalRef, card.CreatedBy,
		)
		return err
	})
}

// UpdateCard rewrites the title, description and status of a card
// ORG-ISOLATED via RLS
func (r *KanbanRepository) UpdateCard(ctx context.Context, cardID, title, description, status string) error {
	orgID, err := org.OrgID(ctx)
	if err != nil {
		return err
	}

	return r.db.WithOrgTx(ctx, orgID, func(ctx context.Context) error {
		query := `
			UPDATE kanban_cards
			SET title = $2, description = $3, status = $4, updated_at = NOW()
			WHERE id = $1
		`
		_, err := r.db.ExecContext(ctx, query, cardID, title, description, status)
		return err
	})
}

// NextPosition returns the append position for a new card in the given
// column: one past the current maximum, or 0 for an empty column.
// ORG-ISOLATED via RLS
func (r *KanbanRepository) NextPosition(ctx context.Context, boardID, status string) (int, error) {
	orgID, err := org.OrgID(ctx)
	if err != nil {
		return 0, err
	}

	var position int

	err = r.db.WithOrgTx(ctx, orgID, func(ctx context.Context) error {
		query := `
			SELECT COALESCE(MAX(position) + 1, 0)
			FROM kanban_cards
			WHERE board_id = $1 AND status = $2
		`
		return r.db.GetContext(ctx, &position, query, boardID, status)
	})

	if err != nil {
		return 0, err
	}

	return position, nil
}
