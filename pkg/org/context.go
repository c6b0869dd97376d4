// Package org carries the organization scope through context. Every
// repository call is organization-scoped; the engine sets the scope once per
// run and the database layer enforces it with row-level security.
package org

import (
	"context"
	"errors"
)

// contextKey is a private type for context keys to prevent collisions
type contextKey string

const orgIDKey contextKey = "org_id"

// ErrNoOrgInContext is returned when organization context is missing
var ErrNoOrgInContext = errors.New("no organization in context")

// WithOrgID adds the organization ID to the context
func WithOrgID(ctx context.Context, orgID string) context.Context {
	return context.WithValue(ctx, orgIDKey, orgID)
}

// OrgID extracts the organization ID from context
// Returns ErrNoOrgInContext if it is not found
func OrgID(ctx context.Context) (string, error) {
	id, ok := ctx.Value(orgIDKey).(string)
	if !ok || id == "" {
		return "", ErrNoOrgInContext
	}
	return id, nil
}

// MustOrgID extracts the organization ID from context and panics if not found
// Use only in cases where a missing organization is a programming error
func MustOrgID(ctx context.Context) string {
	id, err := OrgID(ctx)
	if err != nil {
		panic("organization ID not found in context")
	}
	return id
}
