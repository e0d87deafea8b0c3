package handler

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/fellsidecars/backend/internal/domain"
)

// quoteRequest is the POST /quote body. PickupTime is optional; without it
// the fare is priced at the daytime rate for display only, and the quote
// cannot be booked.
type quoteRequest struct {
	Pickup     string     `json:"pickup"`
	Dropoff    string     `json:"dropoff"`
	PickupTime *time.Time `json:"pickup_time,omitempty"`
}

// quoteResponse extends the signed payload with a display price. Price is
// formatted pounds ("47.50") for direct rendering; PricePence is the integer
// the client must echo back unchanged when booking.
type quoteResponse struct {
	domain.Quote
	Price string `json:"price"`
}

// CreateQuote handles POST /quote.
func (s *Server) CreateQuote(w http.ResponseWriter, r *http.Request) {
	var req quoteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.badRequest(w, "request body must be valid JSON")
		return
	}

	q, err := s.quotes.Quote(r.Context(), req.Pickup, req.Dropoff, req.PickupTime)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	if key := r.Header.Get(SessionKeyHeader); key != "" && s.sessions != nil {
		// Best effort: the signed payload alone is enough to book, the
		// session copy only helps the office see what a client was quoted.
		if err := s.sessions.SaveQuote(r.Context(), key, q); err != nil {
			s.log.Error("session quote save failed", "error", err)
		}
	}

	s.writeJSON(w, http.StatusOK, quoteResponse{Quote: q, Price: domain.FormatPence(q.PricePence)})
}

// GetSessionQuote handles GET /sessions/{key}/quote, the office-side lookup
// of what a client session was last quoted. 404 covers sessions that never
// quoted, expired, or already booked, and deployments without Redis.
func (s *Server) GetSessionQuote(w http.ResponseWriter, r *http.Request) {
	if s.sessions == nil {
		s.writeError(w, r, domain.ErrNotFound)
		return
	}

	q, ok, err := s.sessions.Quote(r.Context(), chi.URLParam(r, "key"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if !ok {
		s.writeError(w, r, domain.ErrNotFound)
		return
	}
	s.writeJSON(w, http.StatusOK, quoteResponse{Quote: q, Price: domain.FormatPence(q.PricePence)})
}
