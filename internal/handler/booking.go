package handler

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/fellsidecars/backend/internal/domain"
	"github.com/fellsidecars/backend/internal/service"
)

// bookingRequest is the POST /book body. Quote must be the signed payload
// exactly as issued by POST /quote; any edit fails verification.
type bookingRequest struct {
	Quote           domain.Quote `json:"quote"`
	PickupTime      time.Time    `json:"pickup_time"`
	DurationMinutes int          `json:"duration_minutes,omitempty"`
	CustomerName    string       `json:"customer_name"`
	CustomerPhone   string       `json:"customer_phone"`
	CustomerEmail   string       `json:"customer_email,omitempty"`
	PaymentType     string       `json:"payment_type"`
}

type bookingResponse struct {
	BookingID   uuid.UUID `json:"booking_id"`
	DriverID    int64     `json:"driver_id"`
	Status      string    `json:"status"`
	PricePence  int64     `json:"price_pence"`
	Price       string    `json:"price"`
	CheckoutURL string    `json:"checkout_url,omitempty"`
}

// CreateBooking handles POST /book.
func (s *Server) CreateBooking(w http.ResponseWriter, r *http.Request) {
	var req bookingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.badRequest(w, "request body must be valid JSON")
		return
	}

	conf, err := s.bookings.Book(r.Context(), service.BookingRequest{
		Quote:           req.Quote,
		PickupTime:      req.PickupTime,
		DurationMinutes: req.DurationMinutes,
		CustomerName:    req.CustomerName,
		CustomerPhone:   req.CustomerPhone,
		CustomerEmail:   req.CustomerEmail,
		PaymentType:     domain.PaymentType(req.PaymentType),
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	if key := r.Header.Get(SessionKeyHeader); key != "" && s.sessions != nil {
		if err := s.sessions.Clear(r.Context(), key); err != nil {
			s.log.Error("session clear failed", "error", err)
		}
	}

	b := conf.Booking
	var driverID int64
	if b.AssignedDriverID != nil {
		driverID = *b.AssignedDriverID
	}
	s.writeJSON(w, http.StatusCreated, bookingResponse{
		BookingID:   b.ID,
		DriverID:    driverID,
		Status:      string(b.Status),
		PricePence:  b.PricePence,
		Price:       domain.FormatPence(b.PricePence),
		CheckoutURL: conf.CheckoutURL,
	})
}
