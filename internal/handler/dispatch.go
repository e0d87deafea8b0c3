package handler

import (
	"context"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/fellsidecars/backend/internal/domain"
)

// ListBookings handles GET /bookings.
// Supports ?page= and ?limit= query parameters (defaults: page=1, limit=20, max=100).
func (s *Server) ListBookings(w http.ResponseWriter, r *http.Request) {
	params := domain.NewPaginationParams(queryInt(r, "page"), queryInt(r, "limit"))

	bookings, err := s.dispatch.List(r.Context(), params)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string][]domain.Booking{"data": bookings})
}

// queryInt parses an optional integer query parameter. Absent or malformed
// values return nil so NewPaginationParams falls back to its defaults.
func queryInt(r *http.Request, name string) *int {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return nil
	}
	return &n
}

// GetBooking handles GET /bookings/{id}.
func (s *Server) GetBooking(w http.ResponseWriter, r *http.Request) {
	s.bookingAction(w, r, s.dispatch.GetByID)
}

// DispatchBooking handles POST /bookings/{id}/dispatch.
func (s *Server) DispatchBooking(w http.ResponseWriter, r *http.Request) {
	s.bookingAction(w, r, s.dispatch.Dispatch)
}

// CompleteBooking handles POST /bookings/{id}/complete.
func (s *Server) CompleteBooking(w http.ResponseWriter, r *http.Request) {
	s.bookingAction(w, r, s.dispatch.Complete)
}

// CancelBooking handles POST /bookings/{id}/cancel.
func (s *Server) CancelBooking(w http.ResponseWriter, r *http.Request) {
	s.bookingAction(w, r, s.dispatch.Cancel)
}

// bookingAction factors the shared id-parse / act / respond shape of the
// booking lifecycle endpoints.
func (s *Server) bookingAction(w http.ResponseWriter, r *http.Request, fn func(ctx context.Context, id uuid.UUID) (domain.Booking, error)) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		s.badRequest(w, "id must be a valid UUID")
		return
	}

	booking, err := fn(r.Context(), id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, booking)
}
