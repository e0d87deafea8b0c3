package handler

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/fellsidecars/backend/internal/domain"
)

type createDriverRequest struct {
	Name  string `json:"name"`
	Phone string `json:"phone"`
}

type setDriverActiveRequest struct {
	Active bool `json:"active"`
}

// ListDrivers handles GET /drivers.
func (s *Server) ListDrivers(w http.ResponseWriter, r *http.Request) {
	drivers, err := s.drivers.List(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string][]domain.Driver{"data": drivers})
}

// CreateDriver handles POST /drivers.
func (s *Server) CreateDriver(w http.ResponseWriter, r *http.Request) {
	var req createDriverRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.badRequest(w, "request body must be valid JSON")
		return
	}

	driver, err := s.drivers.Create(r.Context(), req.Name, req.Phone)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, driver)
}

// SetDriverActive handles POST /drivers/{id}/active.
func (s *Server) SetDriverActive(w http.ResponseWriter, r *http.Request) {
	id, ok := s.driverID(w, r)
	if !ok {
		return
	}

	var req setDriverActiveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.badRequest(w, "request body must be valid JSON")
		return
	}

	driver, err := s.drivers.SetActive(r.Context(), id, req.Active)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, driver)
}

// GetDriverSchedule handles GET /drivers/{id}/schedule.
func (s *Server) GetDriverSchedule(w http.ResponseWriter, r *http.Request) {
	id, ok := s.driverID(w, r)
	if !ok {
		return
	}

	reservations, err := s.drivers.Schedule(r.Context(), id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string][]domain.Reservation{"data": reservations})
}

// driverID parses the {id} route parameter. Reports false after writing the
// error response when the value is not a positive integer.
func (s *Server) driverID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id < 1 {
		s.badRequest(w, "id must be a positive integer")
		return 0, false
	}
	return id, true
}
