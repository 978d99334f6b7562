package httpapi

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/MrEthical07/linkauth"
)

// ErrorBody is the JSON shape of every error response.
type ErrorBody struct {
	Status    int               `json:"status"`
	Message   string            `json:"message"`
	Timestamp time.Time         `json:"timestamp"`
	Errors    map[string]string `json:"errors,omitempty"`
}

// StatusFor maps an engine error onto its HTTP status.
func StatusFor(err error) int {
	switch linkauth.Classify(err) {
	case linkauth.KindAlreadyExists, linkauth.KindPasswordAlreadySet:
		return http.StatusConflict
	case linkauth.KindInvalidCredentials, linkauth.KindUnauthorized:
		return http.StatusUnauthorized
	case linkauth.KindRateLimited:
		return http.StatusTooManyRequests
	case linkauth.KindPasswordMismatch,
		linkauth.KindCodeExpiredOrInvalid,
		linkauth.KindPasswordPolicy,
		linkauth.KindInvalidInput,
		linkauth.KindInvalidIdentity:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := StatusFor(err)
	switch {
	case status == http.StatusInternalServerError:
		s.logger.ErrorContext(r.Context(), "request failed",
			slog.String("path", r.URL.Path),
			slog.String("error", err.Error()),
		)
	case status == http.StatusUnauthorized:
		s.logger.WarnContext(r.Context(), "authentication failure",
			slog.String("path", r.URL.Path),
			slog.String("kind", linkauth.Classify(err).String()),
		)
	}

	s.writeJSON(w, status, ErrorBody{
		Status:    status,
		Message:   linkauth.PublicMessage(err),
		Timestamp: s.now().UTC(),
	})
}

// writeValidation reports field-level request errors.
func (s *Server) writeValidation(w http.ResponseWriter, fields map[string]string) {
	s.writeJSON(w, http.StatusBadRequest, ErrorBody{
		Status:    http.StatusBadRequest,
		Message:   linkauth.PublicMessage(linkauth.ErrInvalidInput),
		Timestamp: s.now().UTC(),
		Errors:    fields,
	})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
