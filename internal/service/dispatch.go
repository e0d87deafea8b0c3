package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/fellsidecars/backend/internal/domain"
	"github.com/fellsidecars/backend/internal/repo"
)

// DispatchService covers the office-side lifecycle of a booking after it is
// made: listing the book, sending a car out, marking jobs done, cancelling.
type DispatchService struct {
	bookings  repo.BookingRepo
	scheduler repo.SchedulerRepo
	fleet     FleetDispatcher
	log       *slog.Logger
}

// NewDispatchService constructs a DispatchService. fleet may be nil.
func NewDispatchService(bookings repo.BookingRepo, scheduler repo.SchedulerRepo, fleet FleetDispatcher, log *slog.Logger) *DispatchService {
	return &DispatchService{bookings: bookings, scheduler: scheduler, fleet: fleet, log: log}
}

// List returns one page of bookings, newest first. Always returns a non-nil
// slice so callers can safely range over it.
func (s *DispatchService) List(ctx context.Context, p domain.PaginationParams) ([]domain.Booking, error) {
	bookings, err := s.bookings.List(ctx, p)
	if err != nil {
		return nil, fmt.Errorf("service.DispatchService.List: %w", err)
	}
	if bookings == nil {
		return []domain.Booking{}, nil
	}
	return bookings, nil
}

// GetByID returns a single booking.
func (s *DispatchService) GetByID(ctx context.Context, id uuid.UUID) (domain.Booking, error) {
	b, err := s.bookings.GetByID(ctx, id)
	if err != nil {
		return domain.Booking{}, fmt.Errorf("service.DispatchService.GetByID: %w", err)
	}
	return b, nil
}

// Dispatch sends the assigned driver out. Card bookings must be paid first;
// cash is settled in the car, so pending is fine there.
// Returns domain.ErrValidation when the booking is in the wrong state and
// domain.ErrNotFound when it does not exist.
func (s *DispatchService) Dispatch(ctx context.Context, id uuid.UUID) (domain.Booking, error) {
	current, err := s.bookings.GetByID(ctx, id)
	if err != nil {
		return domain.Booking{}, fmt.Errorf("service.DispatchService.Dispatch: %w", err)
	}
	if current.PaymentType == domain.PayCard && current.PaymentStatus != domain.PaymentPaid {
		return domain.Booking{}, fmt.Errorf("%w: card booking must be paid before dispatch", domain.ErrValidation)
	}

	dispatched, err := s.bookings.Dispatch(ctx, id)
	if err != nil {
		return domain.Booking{}, fmt.Errorf("service.DispatchService.Dispatch: %w", err)
	}

	if s.fleet != nil {
		if err := s.fleet.DispatchBooking(ctx, dispatched); err != nil {
			s.log.Error("fleet dispatch push failed", "booking_id", dispatched.ID, "error", err)
		}
	}
	return dispatched, nil
}

// Complete marks a dispatched booking as done.
func (s *DispatchService) Complete(ctx context.Context, id uuid.UUID) (domain.Booking, error) {
	completed, err := s.bookings.Complete(ctx, id)
	if err != nil {
		return domain.Booking{}, fmt.Errorf("service.DispatchService.Complete: %w", err)
	}
	return completed, nil
}

// Cancel cancels a booking and frees its driver reservation in one
// transaction, so the slot is immediately rebookable.
func (s *DispatchService) Cancel(ctx context.Context, id uuid.UUID) (domain.Booking, error) {
	cancelled, err := s.scheduler.Cancel(ctx, id)
	if err != nil {
		return domain.Booking{}, fmt.Errorf("service.DispatchService.Cancel: %w", err)
	}
	return cancelled, nil
}
