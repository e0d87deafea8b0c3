package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/sethvargo/go-retry"

	"github.com/fellsidecars/backend/internal/domain"
	"github.com/fellsidecars/backend/internal/payment"
	"github.com/fellsidecars/backend/internal/repo"
)

// Reservation conflicts are retried a handful of times with exponential
// backoff before the whole booking is failed. Conflicts are short-lived (two
// requests racing for the same driver row), so the base delay is small.
const (
	reserveRetryBase = 50 * time.Millisecond
	reserveRetryMax  = 3
)

// QuoteVerifier validates a client-submitted quote before booking.
// Satisfied by QuoteService.
type QuoteVerifier interface {
	VerifyForBooking(ctx context.Context, submitted domain.Quote) error
}

// CheckoutCreator opens a hosted payment session with the card provider.
// Satisfied by payment.Client.
type CheckoutCreator interface {
	CreateCheckout(ctx context.Context, req payment.CheckoutRequest) (payment.CheckoutSession, error)
}

// BookingRequest is everything a client submits to turn a quote into a
// booking. Quote carries the signed payload exactly as it was issued.
type BookingRequest struct {
	Quote           domain.Quote
	PickupTime      time.Time
	DurationMinutes int
	CustomerName    string
	CustomerPhone   string
	CustomerEmail   string
	PaymentType     domain.PaymentType
}

// BookingConfirmation is the result of a successful Book call. CheckoutURL is
// set only for card bookings where the provider session was created.
type BookingConfirmation struct {
	Booking     domain.Booking
	CheckoutURL string
}

// BookingService turns verified quotes into committed bookings with a driver
// reservation attached.
type BookingService struct {
	quotes    QuoteVerifier
	scheduler repo.SchedulerRepo
	checkout  CheckoutCreator
	log       *slog.Logger
}

// NewBookingService constructs a BookingService. checkout may be nil when no
// card provider is configured; card bookings then complete without a hosted
// session and the customer pays by another route.
func NewBookingService(quotes QuoteVerifier, scheduler repo.SchedulerRepo, checkout CheckoutCreator, log *slog.Logger) *BookingService {
	return &BookingService{quotes: quotes, scheduler: scheduler, checkout: checkout, log: log}
}

// Book verifies the submitted quote, then reserves a driver and persists the
// booking in one transaction. Conflicting concurrent attempts are retried a
// bounded number of times; if the conflict persists the caller gets
// domain.ErrBookingFailed.
//
// Returns domain.ErrQuoteTampered when the quote fails verification or when
// the requested pickup time is not the one the price was signed over,
// domain.ErrValidation for bad inputs, and domain.ErrNoDriverAvailable when
// no active driver is free for the window.
func (s *BookingService) Book(ctx context.Context, req BookingRequest) (BookingConfirmation, error) {
	if err := validateBookingRequest(req); err != nil {
		return BookingConfirmation{}, err
	}
	if err := s.quotes.VerifyForBooking(ctx, req.Quote); err != nil {
		return BookingConfirmation{}, err
	}

	// The reservation window must be the window that was priced. A quote with
	// no pickup time was never priced for a specific slot and cannot book one;
	// a mismatched time would let a day-rate quote claim a night slot.
	if req.Quote.PickupTime == nil || !req.PickupTime.Equal(*req.Quote.PickupTime) {
		return BookingConfirmation{}, fmt.Errorf("service.BookingService.Book: %w", domain.ErrQuoteTampered)
	}

	duration := req.DurationMinutes
	if duration == 0 {
		duration = 60
	}
	booking := domain.Booking{
		Pickup:          req.Quote.Pickup,
		Dropoff:         req.Quote.Dropoff,
		PickupTime:      req.PickupTime,
		DurationMinutes: duration,
		CustomerName:    req.CustomerName,
		CustomerPhone:   req.CustomerPhone,
		CustomerEmail:   req.CustomerEmail,
		PricePence:      req.Quote.PricePence,
		PaymentType:     req.PaymentType,
	}

	booked, err := s.reserveWithRetry(ctx, booking)
	if err != nil {
		return BookingConfirmation{}, err
	}

	conf := BookingConfirmation{Booking: booked}
	if req.PaymentType == domain.PayCard && s.checkout != nil {
		// Best effort: the reservation stands even if the provider is down,
		// the customer can be sent a fresh payment link.
		session, err := s.checkout.CreateCheckout(ctx, payment.CheckoutRequest{
			BookingRef:  booked.ID,
			AmountPence: booked.PricePence,
			Description: fmt.Sprintf("%s to %s", booked.Pickup, booked.Dropoff),
		})
		if err != nil {
			s.log.Error("checkout creation failed", "booking_id", booked.ID, "error", err)
		} else {
			conf.CheckoutURL = session.CheckoutURL
		}
	}
	return conf, nil
}

// reserveWithRetry runs the reservation transaction, retrying on
// serialization and exclusion-constraint conflicts only.
func (s *BookingService) reserveWithRetry(ctx context.Context, booking domain.Booking) (domain.Booking, error) {
	var booked domain.Booking
	backoff := retry.WithMaxRetries(reserveRetryMax, retry.NewExponential(reserveRetryBase))

	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		var err error
		booked, err = s.scheduler.Reserve(ctx, booking)
		if repo.IsRetryableConflict(err) {
			return retry.RetryableError(err)
		}
		return err
	})
	if err != nil {
		if repo.IsRetryableConflict(err) {
			s.log.Warn("reservation conflict persisted past retries", "pickup", booking.Pickup, "error", err)
			return domain.Booking{}, fmt.Errorf("service.BookingService.Book: %w", domain.ErrBookingFailed)
		}
		return domain.Booking{}, fmt.Errorf("service.BookingService.Book: %w", err)
	}
	return booked, nil
}

func validateBookingRequest(req BookingRequest) error {
	switch {
	case strings.TrimSpace(req.Quote.Pickup) == "" || strings.TrimSpace(req.Quote.Dropoff) == "":
		return fmt.Errorf("%w: pickup and dropoff are required", domain.ErrValidation)
	case req.PickupTime.IsZero():
		return fmt.Errorf("%w: pickup_time is required", domain.ErrValidation)
	case req.DurationMinutes < 0:
		return fmt.Errorf("%w: duration_minutes must not be negative", domain.ErrValidation)
	case strings.TrimSpace(req.CustomerName) == "":
		return fmt.Errorf("%w: customer_name is required", domain.ErrValidation)
	case strings.TrimSpace(req.CustomerPhone) == "":
		return fmt.Errorf("%w: customer_phone is required", domain.ErrValidation)
	case req.PaymentType != domain.PayCash && req.PaymentType != domain.PayCard:
		return fmt.Errorf("%w: payment_type must be cash or card", domain.ErrValidation)
	}
	return nil
}
