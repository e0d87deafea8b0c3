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

// SchedulerRepo owns the concurrency-critical reservation path: picking a
// free driver and committing the reservation and booking together, and the
// inverse cancel path that removes a reservation with its booking's status
// change.
type SchedulerRepo interface {
	// Reserve selects the lowest-id active driver with no reservation
	// overlapping the booking's window and, in a single transaction, inserts
	// the reservation and the booking. Returns the persisted booking with
	// the assigned driver.
	//
	// Returns domain.ErrNoDriverAvailable when no eligible driver exists —
	// a normal outcome, not a fault. A conflict with a concurrent reserve
	// surfaces as an error for which IsRetryableConflict reports true; the
	// service layer retries a bounded number of times.
	Reserve(ctx context.Context, booking domain.Booking) (domain.Booking, error)

	// Cancel transitions the booking to cancelled and deletes its
	// reservation in the same transaction, freeing the driver's slot.
	// Returns domain.ErrNotFound if the booking does not exist and
	// domain.ErrValidation if it is already completed or cancelled.
	Cancel(ctx context.Context, bookingID uuid.UUID) (domain.Booking, error)
}

// pgSchedulerRepo is the Postgres implementation of SchedulerRepo.
type pgSchedulerRepo struct {
	db beginner
}

// NewSchedulerRepo constructs a SchedulerRepo. In production pass
// *pgxpool.Pool; in tests a pgx.Tx works too (Begin opens a savepoint).
func NewSchedulerRepo(db beginner) SchedulerRepo {
	return &pgSchedulerRepo{db: db}
}

// selectFreeDriver implements the half-open overlap test
// (existing.start < new.end AND existing.end > new.start) so back-to-back
// bookings with touching boundaries are allowed. ORDER BY id makes the
// tie-break deterministic; FOR UPDATE OF d serializes concurrent selections
// of the same candidate. The reservations_no_overlap exclusion constraint is
// the final authority: if two transactions still race past the row lock, the
// second insert fails with a conflict the service layer retries.
const selectFreeDriver = `
	SELECT d.id
	FROM drivers d
	WHERE d.is_active
	  AND NOT EXISTS (
	      SELECT 1 FROM reservations r
	      WHERE r.driver_id = d.id
	        AND r.start_ts < @end_ts
	        AND r.end_ts   > @start_ts
	  )
	ORDER BY d.id
	LIMIT 1
	FOR UPDATE OF d`

func (r *pgSchedulerRepo) Reserve(ctx context.Context, booking domain.Booking) (domain.Booking, error) {
	start, end := booking.Window()

	tx, err := r.db.Begin(ctx)
	if err != nil {
		return domain.Booking{}, fmt.Errorf("repo.SchedulerRepo.Reserve: begin: %w", err)
	}
	// Rollback after a successful commit is a no-op.
	defer func() { _ = tx.Rollback(ctx) }()

	var driverID int64
	err = tx.QueryRow(ctx, selectFreeDriver, pgx.NamedArgs{
		"start_ts": start,
		"end_ts":   end,
	}).Scan(&driverID)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Booking{}, fmt.Errorf("repo.SchedulerRepo.Reserve: %w", domain.ErrNoDriverAvailable)
	}
	if err != nil {
		return domain.Booking{}, fmt.Errorf("repo.SchedulerRepo.Reserve: select driver: %w", err)
	}

	insertBooking := `
		INSERT INTO bookings (
			pickup, dropoff, pickup_time, duration_minutes,
			customer_name, customer_phone, customer_email,
			price_pence, payment_type, assigned_driver_id, status
		) VALUES (
			@pickup, @dropoff, @pickup_time, @duration_minutes,
			@customer_name, @customer_phone, @customer_email,
			@price_pence, @payment_type, @driver_id, 'assigned'
		)
		RETURNING ` + bookingColumns

	row := tx.QueryRow(ctx, insertBooking, pgx.NamedArgs{
		"pickup":           booking.Pickup,
		"dropoff":          booking.Dropoff,
		"pickup_time":      booking.PickupTime,
		"duration_minutes": booking.DurationMinutes,
		"customer_name":    booking.CustomerName,
		"customer_phone":   booking.CustomerPhone,
		"customer_email":   booking.CustomerEmail,
		"price_pence":      booking.PricePence,
		"payment_type":     string(booking.PaymentType),
		"driver_id":        driverID,
	})
	created, err := scanBooking(row)
	if err != nil {
		return domain.Booking{}, fmt.Errorf("repo.SchedulerRepo.Reserve: insert booking: %w", err)
	}

	const insertReservation = `
		INSERT INTO reservations (driver_id, start_ts, end_ts, booking_id)
		VALUES (@driver_id, @start_ts, @end_ts, @booking_id)`

	if _, err := tx.Exec(ctx, insertReservation, pgx.NamedArgs{
		"driver_id":  driverID,
		"start_ts":   start,
		"end_ts":     end,
		"booking_id": created.ID,
	}); err != nil {
		return domain.Booking{}, fmt.Errorf("repo.SchedulerRepo.Reserve: insert reservation: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return domain.Booking{}, fmt.Errorf("repo.SchedulerRepo.Reserve: commit: %w", err)
	}

	return created, nil
}

func (r *pgSchedulerRepo) Cancel(ctx context.Context, bookingID uuid.UUID) (domain.Booking, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return domain.Booking{}, fmt.Errorf("repo.SchedulerRepo.Cancel: begin: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	cancelBooking := `
		UPDATE bookings
		SET status     = 'cancelled',
		    updated_at = now()
		WHERE id = @id AND status NOT IN ('completed', 'cancelled')
		RETURNING ` + bookingColumns

	row := tx.QueryRow(ctx, cancelBooking, pgx.NamedArgs{"id": bookingID})
	cancelled, err := scanBooking(row)
	if errors.Is(err, domain.ErrNotFound) {
		var exists bool
		if err := tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM bookings WHERE id = @id)`,
			pgx.NamedArgs{"id": bookingID}).Scan(&exists); err != nil {
			return domain.Booking{}, fmt.Errorf("repo.SchedulerRepo.Cancel: %w", err)
		}
		if !exists {
			return domain.Booking{}, fmt.Errorf("repo.SchedulerRepo.Cancel: %w", domain.ErrNotFound)
		}
		return domain.Booking{}, fmt.Errorf("repo.SchedulerRepo.Cancel: %w: booking already completed or cancelled", domain.ErrValidation)
	}
	if err != nil {
		return domain.Booking{}, fmt.Errorf("repo.SchedulerRepo.Cancel: %w", err)
	}

	// A reservation exists only as long as its parent booking is not
	// cancelled.
	if _, err := tx.Exec(ctx, `DELETE FROM reservations WHERE booking_id = @id`,
		pgx.NamedArgs{"id": bookingID}); err != nil {
		return domain.Booking{}, fmt.Errorf("repo.SchedulerRepo.Cancel: delete reservation: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return domain.Booking{}, fmt.Errorf("repo.SchedulerRepo.Cancel: commit: %w", err)
	}

	return cancelled, nil
}

// ReservationRepo reads the reservation calendar. Writes happen only through
// SchedulerRepo's transactional paths.
type ReservationRepo interface {
	// ListByDriver returns a driver's reservations ordered by start time.
	ListByDriver(ctx context.Context, driverID int64) ([]domain.Reservation, error)
}

type pgReservationRepo struct {
	db db
}

// NewReservationRepo constructs a ReservationRepo backed by the provided db.
func NewReservationRepo(db db) ReservationRepo {
	return &pgReservationRepo{db: db}
}

func (r *pgReservationRepo) ListByDriver(ctx context.Context, driverID int64) ([]domain.Reservation, error) {
	const q = `
		SELECT id, driver_id, start_ts, end_ts, booking_id, created_at
		FROM reservations
		WHERE driver_id = @driver_id
		ORDER BY start_ts`

	rows, err := r.db.Query(ctx, q, pgx.NamedArgs{"driver_id": driverID})
	if err != nil {
		return nil, fmt.Errorf("repo.ReservationRepo.ListByDriver: %w", err)
	}
	defer rows.Close()

	var reservations []domain.Reservation
	for rows.Next() {
		var (
			res       domain.Reservation
			id        pgtype.UUID
			bookingID pgtype.UUID
		)
		if err := rows.Scan(&id, &res.DriverID, &res.StartTS, &res.EndTS, &bookingID, &res.CreatedAt); err != nil {
			return nil, fmt.Errorf("repo.ReservationRepo.ListByDriver: scan: %w", err)
		}
		res.ID = uuid.UUID(id.Bytes)
		res.BookingID = uuid.UUID(bookingID.Bytes)
		reservations = append(reservations, res)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("repo.ReservationRepo.ListByDriver: rows: %w", err)
	}

	return reservations, nil
}
