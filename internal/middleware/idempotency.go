package middleware

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"log/slog"
	"net/http"

	"github.com/DukeRupert/rentcheck/internal/auth"
	"github.com/DukeRupert/rentcheck/internal/domain"
	"github.com/DukeRupert/rentcheck/internal/handler"
	"github.com/DukeRupert/rentcheck/internal/idempotency"
)

const (
	// IdempotencyKeyHeader names the client-chosen retry key.
	IdempotencyKeyHeader = "Idempotency-Key"

	// ReplayedHeader is set on responses served from the cache.
	ReplayedHeader = "Idempotent-Replayed"

	maxIdempotencyKey = 255

	// maxCachedBody bounds what is kept for replay. Larger responses are
	// served but not cached.
	maxCachedBody = 1 << 20
)

// IdempotencyMiddleware replays the stored response of a mutating request
// retried with the same Idempotency-Key. A nil store disables it.
type IdempotencyMiddleware struct {
	store  idempotency.Store
	logger *slog.Logger
}

// NewIdempotencyMiddleware creates a new IdempotencyMiddleware.
func NewIdempotencyMiddleware(store idempotency.Store, logger *slog.Logger) *IdempotencyMiddleware {
	return &IdempotencyMiddleware{store: store, logger: logger}
}

// Handler returns the middleware. Keys are scoped to the caller, method and
// path, so two callers cannot collide on a key. When the store is
// unreachable requests pass through uncached.
func (m *IdempotencyMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw := r.Header.Get(IdempotencyKeyHeader)
		if m.store == nil || raw == "" || !isMutating(r.Method) {
			next.ServeHTTP(w, r)
			return
		}
		if len(raw) > maxIdempotencyKey {
			handler.InvalidResponse(w, r, m.logger, IdempotencyKeyHeader, "idempotency key is too long")
			return
		}

		key := scopedKey(r, raw)
		ctx := r.Context()

		if resp, ok, err := m.store.Get(ctx, key); err != nil {
			m.logger.Warn("idempotency lookup failed", "error", err, "path", r.URL.Path)
			next.ServeHTTP(w, r)
			return
		} else if ok {
			replay(w, resp)
			return
		}

		if err := m.store.Begin(ctx, key); err != nil {
			if errors.Is(err, idempotency.ErrInProgress) {
				handler.ErrorResponse(w, r, m.logger,
					domain.Conflict("middleware.idempotency", "a request with this idempotency key is still in progress"))
				return
			}
			m.logger.Warn("idempotency claim failed", "error", err, "path", r.URL.Path)
			next.ServeHTTP(w, r)
			return
		}

		rw := newCapturingWriter(w, maxCachedBody)
		next.ServeHTTP(rw, r)

		// The client may have gone away; the outcome is still recorded.
		ctx = context.WithoutCancel(ctx)
		if idempotency.Cacheable(rw.statusCode) && !rw.overflow {
			err := m.store.Complete(ctx, key, idempotency.Response{
				Status:      rw.statusCode,
				ContentType: rw.Header().Get("Content-Type"),
				Body:        rw.body.Bytes(),
			})
			if err != nil {
				m.logger.Warn("idempotency store failed", "error", err, "path", r.URL.Path)
			}
			return
		}
		if err := m.store.Abandon(ctx, key); err != nil {
			m.logger.Warn("idempotency release failed", "error", err, "path", r.URL.Path)
		}
	})
}

func replay(w http.ResponseWriter, resp idempotency.Response) {
	if resp.ContentType != "" {
		w.Header().Set("Content-Type", resp.ContentType)
	}
	w.Header().Set(ReplayedHeader, "true")
	w.WriteHeader(resp.Status)
	_, _ = w.Write(resp.Body)
}

func scopedKey(r *http.Request, raw string) string {
	caller := "anonymous"
	if actor := auth.GetActorFromRequest(r); actor != nil {
		caller = actor.UserID.String()
	}
	sum := sha256.Sum256([]byte(caller + "\n" + r.Method + "\n" + r.URL.Path + "\n" + raw))
	return hex.EncodeToString(sum[:])
}

func isMutating(method string) bool {
	switch method {
	case http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete:
		return true
	}
	return false
}
