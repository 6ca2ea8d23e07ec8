package middleware

import (
	"crypto/subtle"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/itsatony/etbridge/internal/errors"
	nuts "github.com/vaudience/go-nuts"
)

// TokenMiddleware protects routes with a static bearer token
type TokenMiddleware struct {
	token []byte
}

func NewTokenMiddleware(token string) *TokenMiddleware {
	return &TokenMiddleware{token: []byte(token)}
}

// Authenticate rejects requests without the configured bearer token
func (m *TokenMiddleware) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := extractToken(r)
		if token == "" {
			handleError(w, errors.NewAuthError("no token provided", nil))
			return
		}
		if subtle.ConstantTimeCompare([]byte(token), m.token) != 1 {
			handleError(w, errors.NewAuthError("invalid token", nil))
			return
		}
		next.ServeHTTP(w, r)
	})
}

func extractToken(r *http.Request) string {
	parts := strings.Split(r.Header.Get("Authorization"), " ")
	if len(parts) == 2 && strings.EqualFold(parts[0], "bearer") {
		return parts[1]
	}
	return ""
}

func handleError(w http.ResponseWriter, err *errors.APIError) {
	err = err.WithRequestID(nuts.NID("req", 12))
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("WWW-Authenticate", "Bearer")
	w.WriteHeader(err.Code)
	json.NewEncoder(w).Encode(err)
}
