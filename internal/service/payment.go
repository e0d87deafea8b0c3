package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/fellsidecars/backend/internal/domain"
	"github.com/fellsidecars/backend/internal/payment"
	"github.com/fellsidecars/backend/internal/repo"
)

// Notifier tells the customer their payment went through.
// Satisfied by notify.Gateway.
type Notifier interface {
	BookingPaid(ctx context.Context, b domain.Booking) error
}

// FleetDispatcher pushes a paid booking to the fleet system.
// Satisfied by notify.Fleet.
type FleetDispatcher interface {
	DispatchBooking(ctx context.Context, b domain.Booking) error
}

// PaymentService reconciles provider webhook events against bookings.
// The order of operations is strict: verify the signature over the raw bytes
// before parsing anything, commit the payment transition before any outbound
// side effect, and treat a replayed event as a no-op.
type PaymentService struct {
	secret   string
	bookings repo.BookingRepo
	notifier Notifier
	fleet    FleetDispatcher
	log      *slog.Logger
}

// NewPaymentService constructs a PaymentService. notifier and fleet may be
// nil when the corresponding endpoints are not configured.
func NewPaymentService(secret string, bookings repo.BookingRepo, notifier Notifier, fleet FleetDispatcher, log *slog.Logger) *PaymentService {
	return &PaymentService{secret: secret, bookings: bookings, notifier: notifier, fleet: fleet, log: log}
}

// HandleWebhook processes one provider event. rawBody must be the exact bytes
// read off the wire; the signature is computed over them, not over any
// re-serialization.
//
// Returns domain.ErrInvalidSignature when the HMAC check fails and
// domain.ErrValidation when the event cannot be parsed. Once the event is
// verified and parsed it is always acknowledged so the provider stops
// retrying: events with no usable booking reference, or referencing a booking
// that does not exist, are logged at warn and return nil.
func (s *PaymentService) HandleWebhook(ctx context.Context, rawBody []byte, signatureHeader string) error {
	if !payment.VerifySignature(s.secret, rawBody, signatureHeader) {
		return fmt.Errorf("service.PaymentService.HandleWebhook: %w", domain.ErrInvalidSignature)
	}

	event, err := payment.ParseEvent(rawBody)
	if err != nil {
		return fmt.Errorf("service.PaymentService.HandleWebhook: %w: %v", domain.ErrValidation, err)
	}

	if !event.Completed() && !event.Failed() {
		s.log.Info("ignoring interim payment event", "event_id", event.ID, "status", event.Status)
		return nil
	}

	ref, err := event.BookingRef()
	if err != nil {
		s.log.Warn("payment event carries no usable booking reference", "event_id", event.ID, "error", err)
		return nil
	}

	booking, err := s.bookings.GetByID(ctx, ref)
	if errors.Is(err, domain.ErrNotFound) {
		s.log.Warn("payment event references unknown booking", "event_id", event.ID, "booking_id", ref)
		return nil
	}
	if err != nil {
		return fmt.Errorf("service.PaymentService.HandleWebhook: %w", err)
	}

	if event.Failed() {
		changed, err := s.bookings.MarkFailed(ctx, ref)
		if err != nil {
			return fmt.Errorf("service.PaymentService.HandleWebhook: %w", err)
		}
		if changed {
			s.log.Info("payment failed", "booking_id", ref, "event_id", event.ID)
		}
		return nil
	}

	if event.AmountPence != booking.PricePence {
		// Refuse the transition but ack the event; the booking stays pending
		// for a human to sort out.
		s.log.Warn("payment amount mismatch",
			"booking_id", ref, "event_id", event.ID,
			"expected_pence", booking.PricePence, "received_pence", event.AmountPence)
		return nil
	}

	changed, err := s.bookings.MarkPaid(ctx, ref, event.ID, event.AmountPence)
	if err != nil {
		return fmt.Errorf("service.PaymentService.HandleWebhook: %w", err)
	}
	if !changed {
		s.log.Info("duplicate payment event ignored", "booking_id", ref, "event_id", event.ID)
		return nil
	}

	// The transition is committed. Side effects from here on are best effort
	// and must never make the provider retry a handled event.
	booking.PaymentStatus = domain.PaymentPaid
	booking.ProviderPaymentID = event.ID
	booking.AmountPaidPence = &event.AmountPence
	s.fanOutPaid(ctx, booking)
	return nil
}

func (s *PaymentService) fanOutPaid(ctx context.Context, b domain.Booking) {
	if s.notifier != nil {
		if err := s.notifier.BookingPaid(ctx, b); err != nil {
			s.log.Error("payment notification failed", "booking_id", b.ID, "error", err)
		}
	}
	if s.fleet != nil {
		if err := s.fleet.DispatchBooking(ctx, b); err != nil {
			s.log.Error("fleet dispatch push failed", "booking_id", b.ID, "error", err)
		}
	}
}
