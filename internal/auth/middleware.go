package auth

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/niveshya/leadops/internal/platform/httpx"
	"github.com/niveshya/leadops/internal/shared"
)

// Middleware resolves bearer tokens into request principals.
type Middleware struct {
	Service *Service
	Logger  *slog.Logger
}

// Authenticate attaches the principal of a valid bearer token to the request context.
// Requests without a token pass through anonymously; invalid or revoked tokens are rejected.
func (m Middleware) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, ok := bearerToken(r)
		if !ok {
			next.ServeHTTP(w, r)
			return
		}
		principal, err := m.Service.Verify(r.Context(), raw)
		if err != nil {
			if m.Logger != nil && !shared.IsAuthFailure(err) {
				m.Logger.Error("verify bearer token", slog.Any("error", err))
			}
			w.Header().Set("WWW-Authenticate", `Bearer error="invalid_token"`)
			httpx.RespondError(w, err)
			return
		}
		next.ServeHTTP(w, r.WithContext(shared.ContextWithPrincipal(r.Context(), principal)))
	})
}

// RequireAuth rejects requests without an authenticated principal.
func (m Middleware) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := shared.PrincipalFromContext(r.Context()); !ok {
			w.Header().Set("WWW-Authenticate", "Bearer")
			httpx.RespondError(w, shared.ErrUnauthenticated)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func bearerToken(r *http.Request) (string, bool) {
	header := r.Header.Get("Authorization")
	scheme, token, found := strings.Cut(header, " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}
