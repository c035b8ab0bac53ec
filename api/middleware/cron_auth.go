package middleware

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/angelmondragon/shopchat-core/api/responses"
	pkgerrors "github.com/angelmondragon/shopchat-core/pkg/errors"
	"github.com/angelmondragon/shopchat-core/pkg/logger"
)

// BearerToken rejects requests whose Authorization header does not carry the
// shared token. An empty configured token rejects everything.
func BearerToken(token string, logg *logger.Logger) func(http.Handler) http.Handler {
	expected := []byte(strings.TrimSpace(token))
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			presented := []byte(bearer(r.Header.Get("Authorization")))
			if len(expected) == 0 || subtle.ConstantTimeCompare(presented, expected) != 1 {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "invalid bearer token"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func bearer(header string) string {
	const prefix = "bearer "
	header = strings.TrimSpace(header)
	if len(header) < len(prefix) || !strings.EqualFold(header[:len(prefix)], prefix) {
		return ""
	}
	return strings.TrimSpace(header[len(prefix):])
}
