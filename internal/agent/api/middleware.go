package api

import (
	"net/http"
	"strings"

	"github.com/nolus-protocol/nodes-manager-sub001/internal/apperrors"
)

// bearerAuth rejects every request whose Authorization header does not
// carry "Bearer {apiKey}" matching the agent's configured key, per
// spec.md §4.5: "Every endpoint requires a bearer token matching the
// agent's configured key; mismatch yields an authentication failure."
func (s *Server) bearerAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || token == "" || token != s.apiKey {
			writeError(w, http.StatusUnauthorized, apperrors.Auth("missing or invalid bearer token"))
			return
		}
		next.ServeHTTP(w, r)
	})
}
