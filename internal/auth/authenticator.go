package auth

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/bookrelay/chat-relay-service/internal/domain/model"
)

type contextKey string

// principalContextKey is the key used to store the resolved Principal in the
// request context.
const principalContextKey contextKey = "principal"

// TokenCookie is the cookie carrying the opaque bearer token when no
// Authorization header is present.
const TokenCookie = "token"

// Authenticator is connection-upgrade middleware. It extracts the bearer
// token, resolves it through the directory and attaches the resulting
// Principal to the request context. It NEVER fails the request: a missing,
// malformed or unknown token yields an anonymous Principal, and the protocol
// layer downstream decides whether to reject the connection.
type Authenticator struct {
	directory Directory
	logger    *slog.Logger
}

func NewAuthenticator(directory Directory, logger *slog.Logger) *Authenticator {
	return &Authenticator{directory: directory, logger: logger}
}

// Middleware wires the authenticator into a chi route chain.
func (a *Authenticator) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		principal := model.AnonymousPrincipal()

		if token := extractToken(r); token != "" {
			resolved, err := a.directory.Resolve(r.Context(), token)
			if err == nil {
				principal = resolved
			} else {
				// Swallowed on purpose: rejection is deferred to the
				// protocol layer so it can distinguish "no identity" from
				// "insufficient privilege".
				a.logger.Debug("AUTH_ANONYMOUS_FALLBACK", "err", err)
			}
		}

		next.ServeHTTP(w, r.WithContext(WithPrincipal(r.Context(), principal)))
	})
}

// extractToken applies the token precedence: the Authorization header wins,
// then the token cookie.
func extractToken(r *http.Request) string {
	if header := r.Header.Get("Authorization"); header != "" {
		if token, ok := strings.CutPrefix(header, "Bearer "); ok {
			return strings.TrimSpace(token)
		}
		return strings.TrimSpace(header)
	}

	if cookie, err := r.Cookie(TokenCookie); err == nil {
		return cookie.Value
	}

	return ""
}

// WithPrincipal returns a child context carrying the principal.
func WithPrincipal(ctx context.Context, p model.Principal) context.Context {
	return context.WithValue(ctx, principalContextKey, p)
}

// PrincipalFrom extracts the attached identity. A request that never passed
// through the authenticator reads as anonymous.
func PrincipalFrom(ctx context.Context) model.Principal {
	if p, ok := ctx.Value(principalContextKey).(model.Principal); ok {
		return p
	}
	return model.AnonymousPrincipal()
}
