// Package handler implements the HTTP handlers for the booking API.
// Methods are split into domain-specific files (quote.go, booking.go, etc.)
// but all share the same Server struct so they can access its dependencies.
package handler

import (
	"context"
	"log/slog"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/fellsidecars/backend/internal/domain"
	"github.com/fellsidecars/backend/internal/service"
)

// QuoteServicer defines the quote operations the handlers depend on.
// Defining the interface here (in the consumer package) follows the Go
// convention: "accept interfaces, return concrete types". It lets handler
// tests inject a mock without touching pricing or the signer.
type QuoteServicer interface {
	Quote(ctx context.Context, pickup, dropoff string, pickupTime *time.Time) (domain.Quote, error)
}

// BookingServicer defines the booking operation the handlers depend on.
type BookingServicer interface {
	Book(ctx context.Context, req service.BookingRequest) (service.BookingConfirmation, error)
}

// PaymentServicer defines the webhook reconciliation entry point.
type PaymentServicer interface {
	HandleWebhook(ctx context.Context, rawBody []byte, signatureHeader string) error
}

// DispatchServicer defines the office-side booking lifecycle operations.
type DispatchServicer interface {
	List(ctx context.Context, p domain.PaginationParams) ([]domain.Booking, error)
	GetByID(ctx context.Context, id uuid.UUID) (domain.Booking, error)
	Dispatch(ctx context.Context, id uuid.UUID) (domain.Booking, error)
	Complete(ctx context.Context, id uuid.UUID) (domain.Booking, error)
	Cancel(ctx context.Context, id uuid.UUID) (domain.Booking, error)
}

// DriverServicer defines the roster administration operations.
type DriverServicer interface {
	Create(ctx context.Context, name, phone string) (domain.Driver, error)
	List(ctx context.Context) ([]domain.Driver, error)
	SetActive(ctx context.Context, id int64, active bool) (domain.Driver, error)
	Schedule(ctx context.Context, id int64) ([]domain.Reservation, error)
}

// QuoteStore holds issued quotes per client session so a follow-up booking
// can be cross-checked. Satisfied by session.Store; nil disables the feature.
type QuoteStore interface {
	SaveQuote(ctx context.Context, sessionKey string, q domain.Quote) error
	Quote(ctx context.Context, sessionKey string) (domain.Quote, bool, error)
	Clear(ctx context.Context, sessionKey string) error
}

// SessionKeyHeader identifies the client session a quote belongs to.
const SessionKeyHeader = "X-Session-Key"

// Server holds every handler dependency. Methods live in domain-specific
// files but all operate on this struct.
type Server struct {
	quotes   QuoteServicer
	bookings BookingServicer
	payments PaymentServicer
	dispatch DispatchServicer
	drivers  DriverServicer
	sessions QuoteStore
	log      *slog.Logger
}

// NewServer constructs the Server with all its dependencies. sessions may be
// nil when no Redis is configured.
func NewServer(quotes QuoteServicer, bookings BookingServicer, payments PaymentServicer, dispatch DispatchServicer, drivers DriverServicer, sessions QuoteStore, log *slog.Logger) *Server {
	return &Server{
		quotes:   quotes,
		bookings: bookings,
		payments: payments,
		dispatch: dispatch,
		drivers:  drivers,
		sessions: sessions,
		log:      log,
	}
}

// Routes registers every endpoint on the given router.
func (s *Server) Routes(r chi.Router) {
	r.Get("/healthz", s.GetHealth)
	r.Get("/openapi.yaml", s.GetOpenAPI)
	r.Post("/quote", s.CreateQuote)
	r.Post("/book", s.CreateBooking)
	r.Post("/webhook/payment", s.PaymentWebhook)
	r.Get("/sessions/{key}/quote", s.GetSessionQuote)

	r.Route("/bookings", func(r chi.Router) {
		r.Get("/", s.ListBookings)
		r.Get("/{id}", s.GetBooking)
		r.Post("/{id}/dispatch", s.DispatchBooking)
		r.Post("/{id}/complete", s.CompleteBooking)
		r.Post("/{id}/cancel", s.CancelBooking)
	})

	r.Route("/drivers", func(r chi.Router) {
		r.Get("/", s.ListDrivers)
		r.Post("/", s.CreateDriver)
		r.Post("/{id}/active", s.SetDriverActive)
		r.Get("/{id}/schedule", s.GetDriverSchedule)
	})
}
