package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/fellsidecars/backend/internal/domain"
	"github.com/fellsidecars/backend/internal/repo"
)

// DriverService manages the driver roster the scheduler draws from.
type DriverService struct {
	drivers      repo.DriverRepo
	reservations repo.ReservationRepo
}

// NewDriverService constructs a DriverService.
func NewDriverService(drivers repo.DriverRepo, reservations repo.ReservationRepo) *DriverService {
	return &DriverService{drivers: drivers, reservations: reservations}
}

// Create adds a driver to the roster. New drivers start active.
func (s *DriverService) Create(ctx context.Context, name, phone string) (domain.Driver, error) {
	name = strings.TrimSpace(name)
	phone = strings.TrimSpace(phone)
	if name == "" {
		return domain.Driver{}, fmt.Errorf("%w: driver name is required", domain.ErrValidation)
	}
	if phone == "" {
		return domain.Driver{}, fmt.Errorf("%w: driver phone is required", domain.ErrValidation)
	}

	created, err := s.drivers.Create(ctx, domain.Driver{Name: name, Phone: phone, IsActive: true})
	if err != nil {
		return domain.Driver{}, fmt.Errorf("service.DriverService.Create: %w", err)
	}
	return created, nil
}

// List returns the full roster ordered by id. Always returns a non-nil slice.
func (s *DriverService) List(ctx context.Context) ([]domain.Driver, error) {
	drivers, err := s.drivers.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("service.DriverService.List: %w", err)
	}
	if drivers == nil {
		return []domain.Driver{}, nil
	}
	return drivers, nil
}

// SetActive flips a driver's availability. An inactive driver keeps existing
// reservations but receives no new work from the scheduler.
func (s *DriverService) SetActive(ctx context.Context, id int64, active bool) (domain.Driver, error) {
	if err := s.drivers.SetActive(ctx, id, active); err != nil {
		return domain.Driver{}, fmt.Errorf("service.DriverService.SetActive: %w", err)
	}
	driver, err := s.drivers.GetByID(ctx, id)
	if err != nil {
		return domain.Driver{}, fmt.Errorf("service.DriverService.SetActive: %w", err)
	}
	return driver, nil
}

// Schedule returns a driver's reservations ordered by start time.
// Returns domain.ErrNotFound if the driver does not exist, so the caller can
// tell an unknown driver from an empty diary.
func (s *DriverService) Schedule(ctx context.Context, id int64) ([]domain.Reservation, error) {
	if _, err := s.drivers.GetByID(ctx, id); err != nil {
		return nil, fmt.Errorf("service.DriverService.Schedule: %w", err)
	}

	reservations, err := s.reservations.ListByDriver(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("service.DriverService.Schedule: %w", err)
	}
	if reservations == nil {
		return []domain.Reservation{}, nil
	}
	return reservations, nil
}
