// Package service contains the business logic for the booking API.
// Services validate inputs, enforce business rules, and orchestrate repo and
// collaborator calls. No SQL lives here — services depend on repo interfaces,
// not implementations.
package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/fellsidecars/backend/internal/domain"
)

// PriceResolver computes a priced quote from raw journey inputs.
// Satisfied by pricing.Resolver.
type PriceResolver interface {
	Quote(ctx context.Context, pickup, dropoff string, pickupTime *time.Time) (domain.Quote, error)
}

// QuoteSigner signs and verifies quote payloads. Satisfied by quote.Signer.
type QuoteSigner interface {
	Sign(q domain.Quote) string
	Verify(q domain.Quote, sig string) bool
}

// QuoteService issues signed quotes and verifies them when they come back
// attached to a booking request.
type QuoteService struct {
	resolver PriceResolver
	signer   QuoteSigner
}

// NewQuoteService constructs a QuoteService.
func NewQuoteService(resolver PriceResolver, signer QuoteSigner) *QuoteService {
	return &QuoteService{resolver: resolver, signer: signer}
}

// Quote prices the journey and attaches a signature over the canonical
// payload. Returns domain.ErrValidation for empty addresses and
// domain.ErrLocationNotFound when neither routing nor geocoding can place an
// address.
func (s *QuoteService) Quote(ctx context.Context, pickup, dropoff string, pickupTime *time.Time) (domain.Quote, error) {
	if strings.TrimSpace(pickup) == "" || strings.TrimSpace(dropoff) == "" {
		return domain.Quote{}, fmt.Errorf("%w: pickup and dropoff are required", domain.ErrValidation)
	}
	q, err := s.resolver.Quote(ctx, pickup, dropoff, pickupTime)
	if err != nil {
		return domain.Quote{}, fmt.Errorf("service.QuoteService.Quote: %w", err)
	}
	q.Signature = s.signer.Sign(q)
	return q, nil
}

// VerifyForBooking checks a client-submitted quote before it is allowed to
// become a booking. The price is recomputed server-side from the raw inputs
// and must match the submitted price exactly, and the signature must verify
// over the submitted payload. Every failure mode collapses to
// domain.ErrQuoteTampered so the response gives no hint which check tripped.
func (s *QuoteService) VerifyForBooking(ctx context.Context, submitted domain.Quote) error {
	if !s.signer.Verify(submitted, submitted.Signature) {
		return fmt.Errorf("service.QuoteService.VerifyForBooking: %w", domain.ErrQuoteTampered)
	}
	recomputed, err := s.resolver.Quote(ctx, submitted.Pickup, submitted.Dropoff, submitted.PickupTime)
	if err != nil {
		return fmt.Errorf("service.QuoteService.VerifyForBooking: %w", domain.ErrQuoteTampered)
	}
	if recomputed.PricePence != submitted.PricePence {
		return fmt.Errorf("service.QuoteService.VerifyForBooking: %w", domain.ErrQuoteTampered)
	}
	return nil
}
