// Package actor identifies who performed an action: the system itself
// (background jobs, scheduled runs) or a human user. The distinction is a
// tagged variant rather than a nullable user ID, so callers can never forget
// to handle the system case.
package actor

import (
	"context"
	"fmt"
)

// Kind discriminates the actor variants.
type Kind string

const (
	// KindSystem marks actions initiated by background jobs and schedulers.
	KindSystem Kind = "system"
	// KindHuman marks actions initiated by a user.
	KindHuman Kind = "human"
)

// Actor is the entity performing an action. Construct one with System or
// Human; the zero value is not a valid actor.
type Actor struct {
	kind   Kind
	userID string
}

// System returns the actor for system-initiated operations.
func System() Actor {
	return Actor{kind: KindSystem}
}

// Human returns the actor for an operation initiated by the given user.
func Human(userID string) Actor {
	return Actor{kind: KindHuman, userID: userID}
}

// Kind returns the actor variant.
func (a Actor) Kind() Kind {
	if a.kind == "" {
		return KindSystem
	}
	return a.kind
}

// IsSystem reports whether the actor represents the system.
func (a Actor) IsSystem() bool {
	return a.Kind() == KindSystem
}

// UserID returns the user ID and true for human actors, "" and false for the
// system actor.
func (a Actor) UserID() (string, bool) {
	if a.Kind() == KindHuman {
		return a.userID, true
	}
	return "", false
}

// String returns the persisted form of the actor: "system" for the system
// actor, "user:<id>" for a human. Audit rows and created_by columns store
// this form.
func (a Actor) String() string {
	if a.IsSystem() {
		return "system"
	}
	return fmt.Sprintf("user:%s", a.userID)
}

// Parse reconstructs an Actor from its persisted string form.
func Parse(s string) Actor {
	if len(s) > 5 && s[:5] == "user:" {
		return Human(s[5:])
	}
	return System()
}

// contextKey is the type for context keys to avoid collisions
type contextKey string

const actorContextKey contextKey = "actor"

// WithActor returns a new context with the Actor attached.
func WithActor(ctx context.Context, a Actor) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, actorContextKey, a)
}

// FromContext retrieves the Actor from the context.
// Returns the system actor when none is present.
func FromContext(ctx context.Context) Actor {
	if ctx == nil {
		return System()
	}
	a, ok := ctx.Value(actorContextKey).(Actor)
	if !ok {
		return System()
	}
	return a
}
