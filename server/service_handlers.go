package server

import (
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/jrsteele09/go-token-engine/internal/errors"
	"github.com/jrsteele09/go-token-engine/services"
)

const maxServiceBodyBytes = 1 << 20 // 1 MiB

// ServiceToken issues tokens to machine callers that authenticate with a
// signed request envelope instead of OAuth2 client credentials.
func (s *Server) ServiceToken() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxServiceBodyBytes))
		if err != nil {
			s.writeServiceError(w, r, http.StatusBadRequest, "invalid_request", "could not read request body")
			return
		}

		req := &services.SignedRequest{
			ServiceID: r.Header.Get(HeaderServiceID),
			Signature: r.Header.Get(HeaderSignature),
			Timestamp: r.Header.Get(HeaderTimestamp),
			Body:      body,
		}
		if req.ServiceID == "" || req.Signature == "" || req.Timestamp == "" {
			s.writeServiceError(w, r, http.StatusBadRequest, "invalid_request",
				"X-Service-Id, X-Signature and X-Timestamp headers are required")
			return
		}

		response, err := s.serviceIssuer.IssueFromSignedRequest(req, time.Now())
		if err != nil {
			s.writeServiceIssueError(w, r, err)
			return
		}

		w.Header().Set("Content-Type", contentTypeJSON)
		w.Header().Set("Cache-Control", "no-store")
		_ = json.NewEncoder(w).Encode(response)
	}
}

// writeServiceIssueError maps issuance failures onto the service error
// envelope. Unknown service ids, disabled services and bad signatures share
// one code so the endpoint cannot be used to probe the service registry.
func (s *Server) writeServiceIssueError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, errors.ErrServiceNotFound),
		errors.Is(err, errors.ErrServiceDisabled),
		errors.Is(err, errors.ErrInvalidSignature):
		s.writeServiceError(w, r, http.StatusUnauthorized, "invalid_signature",
			"request signature verification failed")

	case errors.Is(err, errors.ErrTimestampOutOfRange):
		s.writeServiceError(w, r, http.StatusUnauthorized, "invalid_timestamp",
			"request timestamp is outside the accepted window")

	case errors.Is(err, errors.ErrScopeNotAllowed):
		s.writeServiceError(w, r, http.StatusForbidden, "invalid_scope",
			"no requested scope is allowed for this service")

	case errors.Is(err, errors.ErrInvalidRequest):
		s.writeServiceError(w, r, http.StatusBadRequest, "invalid_request",
			"request body is malformed")

	default:
		s.logger.Error().Err(err).Str("request_id", requestID(r.Context())).Msg("service token issuance failed")
		s.writeServiceError(w, r, http.StatusInternalServerError, "server_error",
			"token issuance failed")
	}
}

// serviceError is the machine caller error envelope. It is deliberately not
// the RFC 6749 shape: service callers correlate failures by request id.
type serviceError struct {
	Code      string    `json:"code"`
	Message   string    `json:"message"`
	RequestID string    `json:"request_id"`
	Timestamp time.Time `json:"timestamp"`
}

func (s *Server) writeServiceError(w http.ResponseWriter, r *http.Request, statusCode int, code, message string) {
	writeJSON(w, statusCode, map[string]serviceError{"error": {
		Code:      code,
		Message:   message,
		RequestID: requestID(r.Context()),
		Timestamp: time.Now().UTC(),
	}})
}
