package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/fellsidecars/backend/internal/domain"
)

// errorResponse is the JSON envelope for every non-2xx response.
type errorResponse struct {
	Error errorDetail `json:"error"`
}

type errorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// writeJSON writes v with the given status. Encoding failures are logged and
// otherwise dropped; the status line has already gone out.
func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.log.Error("response encoding failed", "error", err)
	}
}

// writeError maps a service error onto the HTTP status space. A tampered
// quote is logged at warn level: it only happens when someone edits a signed
// payload, which is worth noticing.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, domain.ErrLocationNotFound):
		s.writeJSON(w, http.StatusNotFound, errorResponse{errorDetail{"location_not_found", "could not resolve one or both addresses"}})
	case errors.Is(err, domain.ErrQuoteTampered):
		s.log.Warn("tampered quote rejected", "remote_addr", r.RemoteAddr)
		s.writeJSON(w, http.StatusForbidden, errorResponse{errorDetail{"quote_tampered", "quote could not be verified"}})
	case errors.Is(err, domain.ErrNoDriverAvailable):
		s.writeJSON(w, http.StatusConflict, errorResponse{errorDetail{"no_driver_available", "no driver is free for the requested time"}})
	case errors.Is(err, domain.ErrInvalidSignature):
		s.writeJSON(w, http.StatusUnauthorized, errorResponse{errorDetail{"invalid_signature", "webhook signature verification failed"}})
	case errors.Is(err, domain.ErrValidation):
		s.writeJSON(w, http.StatusUnprocessableEntity, errorResponse{errorDetail{"validation_error", unwrapMessage(err)}})
	case errors.Is(err, domain.ErrNotFound):
		s.writeJSON(w, http.StatusNotFound, errorResponse{errorDetail{"not_found", "resource not found"}})
	case errors.Is(err, domain.ErrBookingFailed):
		s.writeJSON(w, http.StatusInternalServerError, errorResponse{errorDetail{"booking_failed", "booking could not be completed, please try again"}})
	default:
		s.log.Error("unhandled error", "path", r.URL.Path, "error", err)
		s.writeJSON(w, http.StatusInternalServerError, errorResponse{errorDetail{"internal_error", "internal server error"}})
	}
}

// badRequest writes a 422 for requests rejected before reaching the service
// layer (missing or malformed body).
func (s *Server) badRequest(w http.ResponseWriter, message string) {
	s.writeJSON(w, http.StatusUnprocessableEntity, errorResponse{errorDetail{"validation_error", message}})
}

// unwrapMessage extracts the human-readable part from a wrapped sentinel
// error, e.g. "service.BookingService.Book: validation error: pickup_time is
// required" → "pickup_time is required".
func unwrapMessage(err error) string {
	if err == nil {
		return ""
	}
	msg := err.Error()
	if i := strings.LastIndex(msg, domain.ErrValidation.Error()+": "); i >= 0 {
		return msg[i+len(domain.ErrValidation.Error())+2:]
	}
	return msg
}
