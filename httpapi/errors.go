package httpapi

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/praxisauth/identity"
)

type errorResponse struct {
	Error         string `json:"error"`
	ReuseDetected bool   `json:"reuse_detected,omitempty"`
	ResetAt       string `json:"reset_at,omitempty"`
}

func (s *Server) writeBadRequest(w http.ResponseWriter, msg string) {
	s.writeJSON(w, http.StatusBadRequest, errorResponse{Error: msg})
}

// writeError maps domain errors to status codes. Unrecognized errors are
// reported as a generic 500 without detail; the real cause goes to the
// server log only.
func (s *Server) writeError(w http.ResponseWriter, err error) {
	var rateErr *identity.RateLimitError
	if errors.As(err, &rateErr) {
		retry := max(int(time.Until(rateErr.ResetAt).Seconds()), 1)
		w.Header().Set("Retry-After", strconv.Itoa(retry))
		s.writeJSON(w, http.StatusTooManyRequests, errorResponse{
			Error:   "rate limit exceeded",
			ResetAt: rateErr.ResetAt.UTC().Format(time.RFC3339),
		})
		return
	}

	switch {
	case errors.Is(err, identity.ErrReuseDetected):
		s.writeJSON(w, http.StatusUnauthorized, errorResponse{
			Error:         err.Error(),
			ReuseDetected: true,
		})
	case errors.Is(err, identity.ErrInvalidEmail),
		errors.Is(err, identity.ErrPasswordPolicy),
		errors.Is(err, identity.ErrInvalidTarget):
		s.writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
	case errors.Is(err, identity.ErrEmailTaken),
		errors.Is(err, identity.ErrCrossDomainUsed),
		errors.Is(err, identity.ErrRotationConflict):
		s.writeJSON(w, http.StatusConflict, errorResponse{Error: err.Error()})
	case errors.Is(err, identity.ErrInvalidCredentials),
		errors.Is(err, identity.ErrAccountDeleted),
		errors.Is(err, identity.ErrTokenExpired),
		errors.Is(err, identity.ErrTokenInvalid),
		errors.Is(err, identity.ErrRefreshNotFound),
		errors.Is(err, identity.ErrCrossDomainExpired):
		s.writeJSON(w, http.StatusUnauthorized, errorResponse{Error: err.Error()})
	case errors.Is(err, identity.ErrUserNotFound),
		errors.Is(err, identity.ErrCrossDomainNotFound),
		errors.Is(err, identity.ErrEmailChangeNotFound),
		errors.Is(err, identity.ErrKeyNotFound):
		s.writeJSON(w, http.StatusNotFound, errorResponse{Error: err.Error()})
	default:
		if s.logger != nil {
			s.logger.Printf("internal error: %v", err)
		}
		s.writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "internal error"})
	}
}
