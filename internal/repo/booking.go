package repo

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/fellsidecars/backend/internal/domain"
)

// bookingColumns is the canonical column list shared by every booking query
// so scanBooking stays in one place.
const bookingColumns = `
	id, pickup, dropoff, pickup_time, duration_minutes,
	customer_name, customer_phone, customer_email,
	price_pence, payment_type, payment_status,
	provider_payment_id, amount_paid_pence,
	assigned_driver_id, status, created_at, updated_at`

// BookingRepo defines the persistence operations for bookings outside the
// scheduler's atomic reserve path (which lives in SchedulerRepo).
// Bookings are never deleted, only status-transitioned.
type BookingRepo interface {
	// GetByID retrieves a booking by id.
	// Returns domain.ErrNotFound if no booking with that ID exists.
	GetByID(ctx context.Context, id uuid.UUID) (domain.Booking, error)

	// List returns one page of bookings, most recent first.
	List(ctx context.Context, p domain.PaginationParams) ([]domain.Booking, error)

	// MarkPaid transitions payment_status pending → paid, recording the
	// provider's payment identifier and the amount actually paid. Returns
	// false (and no error) when the booking was not pending — the caller
	// treats that as an idempotent no-op.
	MarkPaid(ctx context.Context, id uuid.UUID, providerPaymentID string, amountPence int64) (bool, error)

	// MarkFailed transitions payment_status pending → failed. Returns false
	// when the booking was not pending.
	MarkFailed(ctx context.Context, id uuid.UUID) (bool, error)

	// Dispatch transitions status assigned → dispatched and returns the
	// updated booking. Returns domain.ErrValidation if the booking is not in
	// a dispatchable state, domain.ErrNotFound if it does not exist.
	Dispatch(ctx context.Context, id uuid.UUID) (domain.Booking, error)

	// Complete transitions status dispatched → completed.
	Complete(ctx context.Context, id uuid.UUID) (domain.Booking, error)
}

// pgBookingRepo is the Postgres implementation of BookingRepo.
type pgBookingRepo struct {
	db db
}

// NewBookingRepo constructs a BookingRepo backed by the provided db connection.
func NewBookingRepo(db db) BookingRepo {
	return &pgBookingRepo{db: db}
}

func (r *pgBookingRepo) GetByID(ctx context.Context, id uuid.UUID) (domain.Booking, error) {
	q := `SELECT ` + bookingColumns + ` FROM bookings WHERE id = @id`

	row := r.db.QueryRow(ctx, q, pgx.NamedArgs{"id": id})
	result, err := scanBooking(row)
	if err != nil {
		return domain.Booking{}, fmt.Errorf("repo.BookingRepo.GetByID: %w", err)
	}
	return result, nil
}

func (r *pgBookingRepo) List(ctx context.Context, p domain.PaginationParams) ([]domain.Booking, error) {
	q := `SELECT ` + bookingColumns + ` FROM bookings
		ORDER BY created_at DESC
		LIMIT @limit OFFSET @offset`

	rows, err := r.db.Query(ctx, q, pgx.NamedArgs{"limit": p.Limit, "offset": p.Offset()})
	if err != nil {
		return nil, fmt.Errorf("repo.BookingRepo.List: %w", err)
	}
	defer rows.Close()

	var bookings []domain.Booking
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, fmt.Errorf("repo.BookingRepo.List: scan: %w", err)
		}
		bookings = append(bookings, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("repo.BookingRepo.List: rows: %w", err)
	}

	return bookings, nil
}

// MarkPaid is a compare-and-set on payment_status. The WHERE clause is the
// idempotence guard: a booking already paid (or failed) is left untouched and
// the zero row count tells the reconciler not to re-trigger side effects.
func (r *pgBookingRepo) MarkPaid(ctx context.Context, id uuid.UUID, providerPaymentID string, amountPence int64) (bool, error) {
	const q = `
		UPDATE bookings
		SET payment_status      = 'paid',
		    provider_payment_id = @provider_payment_id,
		    amount_paid_pence   = @amount_paid_pence,
		    updated_at          = now()
		WHERE id = @id AND payment_status = 'pending'`

	tag, err := r.db.Exec(ctx, q, pgx.NamedArgs{
		"id":                  id,
		"provider_payment_id": providerPaymentID,
		"amount_paid_pence":   amountPence,
	})
	if err != nil {
		return false, fmt.Errorf("repo.BookingRepo.MarkPaid: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

func (r *pgBookingRepo) MarkFailed(ctx context.Context, id uuid.UUID) (bool, error) {
	const q = `
		UPDATE bookings
		SET payment_status = 'failed',
		    updated_at     = now()
		WHERE id = @id AND payment_status = 'pending'`

	tag, err := r.db.Exec(ctx, q, pgx.NamedArgs{"id": id})
	if err != nil {
		return false, fmt.Errorf("repo.BookingRepo.MarkFailed: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

func (r *pgBookingRepo) Dispatch(ctx context.Context, id uuid.UUID) (domain.Booking, error) {
	return r.transition(ctx, "repo.BookingRepo.Dispatch", id, domain.StatusAssigned, domain.StatusDispatched)
}

func (r *pgBookingRepo) Complete(ctx context.Context, id uuid.UUID) (domain.Booking, error) {
	return r.transition(ctx, "repo.BookingRepo.Complete", id, domain.StatusDispatched, domain.StatusCompleted)
}

// transition is a guarded one-directional status move. A missing booking maps
// to ErrNotFound; a booking in the wrong state maps to ErrValidation so the
// handler can explain which transition was refused.
func (r *pgBookingRepo) transition(ctx context.Context, op string, id uuid.UUID, from, to domain.BookingStatus) (domain.Booking, error) {
	q := `
		UPDATE bookings
		SET status     = @to,
		    updated_at = now()
		WHERE id = @id AND status = @from
		RETURNING ` + bookingColumns

	row := r.db.QueryRow(ctx, q, pgx.NamedArgs{"id": id, "from": string(from), "to": string(to)})
	result, err := scanBooking(row)
	if err == nil {
		return result, nil
	}
	if !errors.Is(err, domain.ErrNotFound) {
		return domain.Booking{}, fmt.Errorf("%s: %w", op, err)
	}

	// Zero rows: distinguish "no such booking" from "wrong state".
	var exists bool
	if err := r.db.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM bookings WHERE id = @id)`,
		pgx.NamedArgs{"id": id}).Scan(&exists); err != nil {
		return domain.Booking{}, fmt.Errorf("%s: %w", op, err)
	}
	if !exists {
		return domain.Booking{}, fmt.Errorf("%s: %w", op, domain.ErrNotFound)
	}
	return domain.Booking{}, fmt.Errorf("%s: %w: booking is not %s", op, domain.ErrValidation, from)
}

// scanBooking maps a single database row into a domain.Booking.
// It handles the UUID and nullable driver/amount conversions.
func scanBooking(s scanner) (domain.Booking, error) {
	var (
		b          domain.Booking
		id         pgtype.UUID
		amountPaid pgtype.Int8
		driverID   pgtype.Int8
	)

	err := s.Scan(
		&id, &b.Pickup, &b.Dropoff, &b.PickupTime, &b.DurationMinutes,
		&b.CustomerName, &b.CustomerPhone, &b.CustomerEmail,
		&b.PricePence, &b.PaymentType, &b.PaymentStatus,
		&b.ProviderPaymentID, &amountPaid,
		&driverID, &b.Status, &b.CreatedAt, &b.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Booking{}, domain.ErrNotFound
		}
		return domain.Booking{}, err
	}

	b.ID = uuid.UUID(id.Bytes)
	if amountPaid.Valid {
		v := amountPaid.Int64
		b.AmountPaidPence = &v
	}
	if driverID.Valid {
		v := driverID.Int64
		b.AssignedDriverID = &v
	}

	return b, nil
}
