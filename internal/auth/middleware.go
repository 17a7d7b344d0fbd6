package auth

import (
	"context"
	"net"
	"net/http"
)

type contextKey string

const principalKey contextKey = "admin_principal"

// Principal names of the two admin credentials.
const (
	PrincipalKey     = "admin:key"
	PrincipalKeyHash = "admin:key_hash"
)

// DenyFunc writes the response for a rejected request.
type DenyFunc func(w http.ResponseWriter, r *http.Request, status int, message string)

// Authenticator checks admin bearer tokens against a plain key, a bcrypt
// hash, or both.
type Authenticator struct {
	adminKey     string
	adminKeyHash string
}

// NewAuthenticator creates a new Authenticator. Empty values are ignored;
// with both empty every request is rejected.
func NewAuthenticator(adminKey, adminKeyHash string) *Authenticator {
	return &Authenticator{adminKey: adminKey, adminKeyHash: adminKeyHash}
}

// AuthResult contains the result of an authentication attempt
type AuthResult struct {
	Authenticated bool
	Principal     string // which credential matched
	Error         string
}

// Authenticate checks the Authorization header.
func (a *Authenticator) Authenticate(authHeader string) AuthResult {
	token := BearerToken(authHeader)
	if token == "" {
		return AuthResult{Error: "missing bearer token"}
	}

	if a.adminKey != "" && MatchKey(token, a.adminKey) {
		return AuthResult{Authenticated: true, Principal: PrincipalKey}
	}
	if a.adminKeyHash != "" && MatchHash(token, a.adminKeyHash) {
		return AuthResult{Authenticated: true, Principal: PrincipalKeyHash}
	}
	return AuthResult{Error: "invalid token"}
}

// RequireAdmin is a middleware that rejects requests without a valid admin
// token: 401 when the token is missing, 403 when it is wrong. deny may be
// nil, in which case http.Error is used.
func (a *Authenticator) RequireAdmin(deny DenyFunc) func(http.Handler) http.Handler {
	if deny == nil {
		deny = func(w http.ResponseWriter, _ *http.Request, status int, message string) {
			http.Error(w, message, status)
		}
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			if BearerToken(header) == "" {
				deny(w, r, http.StatusUnauthorized, "missing bearer token")
				return
			}

			result := a.Authenticate(header)
			if !result.Authenticated {
				deny(w, r, http.StatusForbidden, result.Error)
				return
			}
			ctx := context.WithValue(r.Context(), principalKey, result.Principal)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// PrincipalFromContext returns the credential that authenticated the request.
func PrincipalFromContext(ctx context.Context) (string, bool) {
	p, ok := ctx.Value(principalKey).(string)
	return p, ok && p != ""
}

// GetIPAddress returns the client address without its port. Behind
// middleware.RealIP RemoteAddr already carries the forwarded address.
func GetIPAddress(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
