package server

import (
	"encoding/json"
	"net/http"

	"github.com/jrsteele09/go-token-engine/oauth2"
)

const (
	contentTypeJSON = "application/json; charset=utf-8"
	contentTypeHTML = "text/html; charset=utf-8"
)

// Healthz reports liveness. No dependencies are touched: a healthy process
// answers even when a backing store is briefly away.
func (s *Server) Healthz() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}

func writeJSON(w http.ResponseWriter, statusCode int, body any) {
	w.Header().Set("Content-Type", contentTypeJSON)
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(body)
}

// writeJSONError writes an RFC 6749 shaped error body with an arbitrary code.
func writeJSONError(w http.ResponseWriter, errorCode, description string, statusCode int) {
	writeJSON(w, statusCode, map[string]string{
		"error":             errorCode,
		"error_description": description,
	})
}

// writeOAuthError writes a protocol error using its own status mapping.
func writeOAuthError(w http.ResponseWriter, oauthErr *oauth2.Error) {
	writeJSON(w, oauthErr.StatusCode(), oauthErr)
}
