package middleware

import (
	"net"
	"net/http"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"github.com/kiranshivaraju/eomhub/internal/api/response"
)

// Auth guards the control API with a single bearer token. Only the bcrypt
// hash of the token is configured.
type Auth struct {
	tokenHash []byte
}

// NewAuth creates the auth middleware. An empty hash disables the check,
// which is the normal setup when the daemon only listens on loopback.
func NewAuth(tokenHash string) *Auth {
	return &Auth{tokenHash: []byte(tokenHash)}
}

// Authenticate validates the Bearer token and sets the client identity in
// the request context.
func (a *Auth) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if len(a.tokenHash) > 0 {
			token := extractBearerToken(r)
			if token == "" {
				response.Error(w, http.StatusUnauthorized,
					"INVALID_TOKEN", "Missing or invalid Authorization header", nil)
				return
			}
			if bcrypt.CompareHashAndPassword(a.tokenHash, []byte(token)) != nil {
				response.Error(w, http.StatusUnauthorized,
					"INVALID_TOKEN", "Invalid token", nil)
				return
			}
		}

		r = r.WithContext(SetClient(r.Context(), remoteHost(r)))
		next.ServeHTTP(w, r)
	})
}

func extractBearerToken(r *http.Request) string {
	auth := r.Header.Get("Authorization")
	if auth == "" {
		return ""
	}
	parts := strings.SplitN(auth, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}

func remoteHost(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
