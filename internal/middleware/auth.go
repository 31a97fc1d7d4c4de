// Package middleware contains HTTP middleware for the rentcheck API.
//
// Middleware functions follow the standard Go pattern of wrapping
// http.Handler and are composed with Chain.
package middleware

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/DukeRupert/rentcheck/internal/auth"
	"github.com/DukeRupert/rentcheck/internal/domain"
	"github.com/DukeRupert/rentcheck/internal/handler"
	"github.com/google/uuid"
)

// Headers set by the upstream gateway after it authenticates the caller.
const (
	ActorIDHeader   = "X-Actor-ID"
	ActorRoleHeader = "X-Actor-Role"
)

var knownRoles = map[string]bool{
	domain.RoleUser:      true,
	domain.RoleInspector: true,
	domain.RoleAdmin:     true,
}

// ActorMiddleware reads the caller's identity from gateway headers.
//
// Roles outside the built-in set are accepted when listed in extraRoles, so
// deployments can name their own dispute resolvers. The system role is
// never accepted from a request.
type ActorMiddleware struct {
	roles  map[string]bool
	logger *slog.Logger
}

// NewActorMiddleware creates a new ActorMiddleware.
func NewActorMiddleware(extraRoles []string, logger *slog.Logger) *ActorMiddleware {
	roles := make(map[string]bool, len(knownRoles)+len(extraRoles))
	for r := range knownRoles {
		roles[r] = true
	}
	for _, r := range extraRoles {
		if r = strings.TrimSpace(r); r != "" && r != domain.RoleSystem {
			roles[r] = true
		}
	}
	return &ActorMiddleware{roles: roles, logger: logger}
}

// WithActor stores the asserted actor in the request context. Requests
// without a usable identity continue anonymously.
func (m *ActorMiddleware) WithActor(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		actor, ok := m.parse(r)
		if ok {
			r = r.WithContext(auth.SetActor(r.Context(), actor))
		}
		next.ServeHTTP(w, r)
	})
}

// RequireActor rejects requests that carry no identity with 401. It must run
// after WithActor.
func (m *ActorMiddleware) RequireActor(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if auth.GetActorFromRequest(r) == nil {
			handler.UnauthorizedResponse(w, r, m.logger)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (m *ActorMiddleware) parse(r *http.Request) (*domain.Actor, bool) {
	rawID := strings.TrimSpace(r.Header.Get(ActorIDHeader))
	if rawID == "" {
		return nil, false
	}
	id, err := uuid.Parse(rawID)
	if err != nil || id == uuid.Nil {
		m.logger.Warn("ignoring malformed actor id", "path", r.URL.Path)
		return nil, false
	}

	role := strings.ToLower(strings.TrimSpace(r.Header.Get(ActorRoleHeader)))
	if role == "" {
		role = domain.RoleUser
	}
	if !m.roles[role] {
		m.logger.Warn("ignoring unknown actor role", "role", role, "path", r.URL.Path)
		return nil, false
	}
	return &domain.Actor{UserID: id, Role: role}, true
}

// Chain applies middleware so the first listed runs first.
func Chain(h http.Handler, mws ...func(http.Handler) http.Handler) http.Handler {
	for i := len(mws) - 1; i >= 0; i-- {
		h = mws[i](h)
	}
	return h
}
