// Package auth extracts caller identity and guards the admin surface. The
// service sits behind a gateway that authenticates accounts and forwards the
// verified user ID in a header; admin endpoints use a shared token.
package auth

import (
	"context"
	"crypto/subtle"
	"net/http"

	id "guardtag/pkg/domain"
	dErrors "guardtag/pkg/domain-errors"
	"guardtag/pkg/platform/httputil"
)

// UserIDHeader carries the gateway-verified account ID.
const UserIDHeader = "X-User-ID"

// AdminTokenHeader carries the shared admin token.
const AdminTokenHeader = "X-Admin-Token"

type contextKeyCallerID struct{}

// CallerID middleware parses the verified user header into the context.
// Requests without the header pass through anonymous; handlers that need an
// identity check the context and refuse.
func CallerID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw := r.Header.Get(UserIDHeader)
		if raw == "" {
			next.ServeHTTP(w, r)
			return
		}
		callerID, err := id.ParseUserID(raw)
		if err != nil {
			httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthenticated, "invalid user identity"))
			return
		}
		ctx := context.WithValue(r.Context(), contextKeyCallerID{}, callerID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// GetCallerID returns the authenticated caller, or the zero ID when the
// request is anonymous.
func GetCallerID(ctx context.Context) id.UserID {
	if callerID, ok := ctx.Value(contextKeyCallerID{}).(id.UserID); ok {
		return callerID
	}
	return id.UserID{}
}

// RequireCaller refuses anonymous requests before the handler runs.
func RequireCaller(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if GetCallerID(r.Context()).IsNil() {
			httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthenticated, "authentication required"))
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RequireAdmin guards the fleet endpoints with a shared token. An empty
// configured token disables the whole admin surface.
func RequireAdmin(token string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if token == "" {
				httputil.WriteError(w, dErrors.New(dErrors.CodeForbidden, "admin surface disabled"))
				return
			}
			presented := r.Header.Get(AdminTokenHeader)
			if subtle.ConstantTimeCompare([]byte(presented), []byte(token)) != 1 {
				httputil.WriteError(w, dErrors.New(dErrors.CodeForbidden, "admin token rejected"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
