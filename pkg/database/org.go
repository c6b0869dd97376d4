package database

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
)

type txKey struct{}

// WithOrgTx executes a function inside an organization-scoped transaction.
// This is the isolation mechanism for RLS-based pooled multi-tenancy and the
// unit of atomicity for the replenishment engine: one supplier group is
// reconciled per call.
//
// Usage in repositories:
//
//	orgID, err := org.OrgID(ctx)
//	if err != nil { return err }
//	err = r.db.WithOrgTx(ctx, orgID, func(ctx context.Context) error {
//	    return r.db.GetContext(ctx, &item, "SELECT * FROM items WHERE id = $1", id)
//	})
//
// How it works:
//  1. Starts a transaction (or joins the one already carried in ctx)
//  2. Sets "SET LOCAL search_path TO <schema>, public" (from db.searchPath)
//  3. Sets "SET LOCAL app.current_org = '<org-uuid>'"
//  4. RLS policies filter rows: USING (organization_id = current_setting('app.current_org')::uuid)
//  5. Commits the transaction (auto-cleanup of session variables)
//
// Nested calls join the enclosing transaction, so a service can open one
// transaction for a whole supplier group and every repository call inside it
// shares the same atomicity and the same RLS scope.
func (db *DB) WithOrgTx(ctx context.Context, orgID string, fn func(context.Context) error) error {
	if tx := db.getTx(ctx); tx != nil {
		return fn(ctx)
	}

	return db.Transaction(ctx, func(tx *sqlx.Tx) error {
		searchPath := db.searchPath
		if searchPath == "" {
			searchPath = "public"
		}
		if _, err := tx.ExecContext(ctx, fmt.Sprintf("SET LOCAL search_path TO %s", searchPath)); err != nil {
			return fmt.Errorf("failed to set search_path to %s: %w", searchPath, err)
		}

		// Set the organization for RLS policies.
		// NOTE: SET LOCAL doesn't support parameterized queries ($1), must use fmt.Sprintf.
		// This is safe because orgID is a UUID validated upstream (not user input).
		if _, err := tx.ExecContext(ctx, fmt.Sprintf("SET LOCAL app.current_org = '%s'", orgID)); err != nil {
			return fmt.Errorf("failed to set app.current_org to %s: %w", orgID, err)
		}

		// Store transaction in context so the DB query helpers use it
		txCtx := context.WithValue(ctx, txKey{}, tx)

		return fn(txCtx)
	})
}

// getTx extracts the transaction from context if present
func (db *DB) getTx(ctx context.Context) *sqlx.Tx {
	if tx, ok := ctx.Value(txKey{}).(*sqlx.Tx); ok {
		return tx
	}
	return nil
}
