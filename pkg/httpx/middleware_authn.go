package httpx

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/aussiebroadwan/accounts/pkg/slogx"
)

// Authenticator resolves a raw bearer token into a context carrying the
// caller's identity. Any error means the request is unauthenticated.
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (context.Context, error)
}

// TokenFromRequest extracts a bearer token from the Authorization header,
// falling back to the named cookie when the header is absent. It returns ""
// when neither carries a token.
func TokenFromRequest(r *http.Request, cookieName string) string {
	if authz := r.Header.Get("Authorization"); authz != "" {
		scheme, raw, ok := strings.Cut(authz, " ")
		if !ok || !strings.EqualFold(scheme, "Bearer") {
			return ""
		}
		return strings.TrimSpace(raw)
	}

	if cookieName == "" {
		return ""
	}
	c, err := r.Cookie(cookieName)
	if err != nil {
		return ""
	}
	return c.Value
}

// AuthnMiddleware rejects requests without a valid token with a 401 and
// hands the authenticated context to next otherwise.
func AuthnMiddleware(a Authenticator, cookieName string) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			log := slogx.FromContext(ctx)

			raw := TokenFromRequest(r, cookieName)
			if raw == "" {
				writeBearerError(w, "missing bearer token")
				return
			}

			authed, err := a.Authenticate(ctx, raw)
			if err != nil {
				log.Warn("session authentication failed", "err", err)
				writeBearerError(w, "not authorized, token failed")
				return
			}

			next.ServeHTTP(w, r.WithContext(authed))
		})
	}
}

// RFC 6750 challenge plus the same JSON envelope the API uses everywhere.
func writeBearerError(w http.ResponseWriter, desc string) {
	NoCache(w)
	w.Header().Set("WWW-Authenticate", `Bearer error="invalid_token", error_description="`+desc+`"`)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_ = json.NewEncoder(w).Encode(map[string]string{
		"status":  "error",
		"code":    "unauthenticated",
		"message": desc,
	})
}
