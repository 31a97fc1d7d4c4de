// Package auth carries the calling actor through request contexts.
//
// Identity is established upstream; the middleware package trusts the
// gateway's headers and stores the result here so handlers and middleware
// can share it without an import cycle.
package auth

import (
	"context"
	"net/http"

	"github.com/DukeRupert/rentcheck/internal/domain"
)

type contextKey string

const actorContextKey contextKey = "actor"

// GetActor retrieves the calling actor from the context, or nil.
func GetActor(ctx context.Context) *domain.Actor {
	actor, ok := ctx.Value(actorContextKey).(*domain.Actor)
	if !ok {
		return nil
	}
	return actor
}

// GetActorFromRequest is GetActor on the request's context.
func GetActorFromRequest(r *http.Request) *domain.Actor {
	return GetActor(r.Context())
}

// SetActor stores an actor in the context.
func SetActor(ctx context.Context, actor *domain.Actor) context.Context {
	return context.WithValue(ctx, actorContextKey, actor)
}
