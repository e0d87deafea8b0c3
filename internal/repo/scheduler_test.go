package repo_test

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fellsidecars/backend/internal/domain"
	"github.com/fellsidecars/backend/internal/repo"
	"github.com/fellsidecars/backend/testutil"
)

// newTestTx opens a transaction against the test database. Everything done
// inside it is rolled back when the test finishes, giving free per-test
// isolation. The concurrency tests below cannot use this trick (they need
// separate connections) and clean up explicitly instead.
func newTestTx(t *testing.T) pgx.Tx {
	t.Helper()
	pool := testutil.NewPool(t)

	tx, err := pool.Begin(context.Background())
	require.NoError(t, err, "begin transaction")

	t.Cleanup(func() {
		_ = tx.Rollback(context.Background())
	})

	return tx
}

func seedDriver(t *testing.T, db interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}, name string, active bool) int64 {
	t.Helper()
	var id int64
	err := db.QueryRow(context.Background(),
		`INSERT INTO drivers (name, is_active) VALUES ($1, $2) RETURNING id`,
		name, active).Scan(&id)
	require.NoError(t, err, "seed driver")
	return id
}

// bookingFixture returns a booking request with sensible defaults.
// Callers override individual fields after calling this function.
func bookingFixture(pickupAt time.Time) domain.Booking {
	return domain.Booking{
		Pickup:          "kendal",
		Dropoff:         "windermere",
		PickupTime:      pickupAt,
		DurationMinutes: 60,
		CustomerName:    "J Smith",
		CustomerPhone:   "+447700900123",
		CustomerEmail:   "j.smith@example.com",
		PricePence:      3000,
		PaymentType:     domain.PayCash,
	}
}

func TestSchedulerRepo_Reserve(t *testing.T) {
	tx := newTestTx(t)
	ctx := context.Background()

	driverID := seedDriver(t, tx, "driver one", true)
	r := repo.NewSchedulerRepo(tx)

	pickup := time.Date(2026, 4, 1, 10, 0, 0, 0, time.UTC)
	got, err := r.Reserve(ctx, bookingFixture(pickup))

	require.NoError(t, err)
	assert.NotEqual(t, [16]byte{}, got.ID, "ID should be DB-generated UUID")
	require.NotNil(t, got.AssignedDriverID)
	assert.Equal(t, driverID, *got.AssignedDriverID)
	assert.Equal(t, domain.StatusAssigned, got.Status)
	assert.Equal(t, domain.PaymentPending, got.PaymentStatus)
	assert.False(t, got.CreatedAt.IsZero())

	// The reservation exists and spans the booking window.
	reservations, err := repo.NewReservationRepo(tx).ListByDriver(ctx, driverID)
	require.NoError(t, err)
	require.Len(t, reservations, 1)
	assert.True(t, reservations[0].StartTS.Equal(pickup))
	assert.True(t, reservations[0].EndTS.Equal(pickup.Add(time.Hour)))
	assert.Equal(t, got.ID, reservations[0].BookingID)
}

func TestSchedulerRepo_Reserve_NoDriverAvailable(t *testing.T) {
	tx := newTestTx(t)
	ctx := context.Background()

	seedDriver(t, tx, "inactive driver", false)
	r := repo.NewSchedulerRepo(tx)

	_, err := r.Reserve(ctx, bookingFixture(time.Date(2026, 4, 1, 10, 0, 0, 0, time.UTC)))

	assert.ErrorIs(t, err, domain.ErrNoDriverAvailable)
}

func TestSchedulerRepo_Reserve_OverlapRefused(t *testing.T) {
	tx := newTestTx(t)
	ctx := context.Background()

	seedDriver(t, tx, "only driver", true)
	r := repo.NewSchedulerRepo(tx)

	pickup := time.Date(2026, 4, 1, 10, 0, 0, 0, time.UTC)
	_, err := r.Reserve(ctx, bookingFixture(pickup))
	require.NoError(t, err)

	// Second booking 30 minutes into the first window — overlaps.
	_, err = r.Reserve(ctx, bookingFixture(pickup.Add(30*time.Minute)))

	assert.ErrorIs(t, err, domain.ErrNoDriverAvailable)
}

// TestSchedulerRepo_Reserve_BackToBackAllowed pins the half-open interval
// semantics: a booking starting exactly when another ends shares a boundary,
// not a window.
func TestSchedulerRepo_Reserve_BackToBackAllowed(t *testing.T) {
	tx := newTestTx(t)
	ctx := context.Background()

	driverID := seedDriver(t, tx, "only driver", true)
	r := repo.NewSchedulerRepo(tx)

	pickup := time.Date(2026, 4, 1, 10, 0, 0, 0, time.UTC)
	first, err := r.Reserve(ctx, bookingFixture(pickup))
	require.NoError(t, err)

	second, err := r.Reserve(ctx, bookingFixture(pickup.Add(time.Hour)))
	require.NoError(t, err, "touching boundaries must not count as overlap")

	require.NotNil(t, second.AssignedDriverID)
	assert.Equal(t, driverID, *second.AssignedDriverID)
	assert.NotEqual(t, first.ID, second.ID)
}

func TestSchedulerRepo_Reserve_LowestIDWins(t *testing.T) {
	tx := newTestTx(t)
	ctx := context.Background()

	first := seedDriver(t, tx, "driver a", true)
	seedDriver(t, tx, "driver b", true)
	r := repo.NewSchedulerRepo(tx)

	got, err := r.Reserve(ctx, bookingFixture(time.Date(2026, 4, 1, 10, 0, 0, 0, time.UTC)))

	require.NoError(t, err)
	require.NotNil(t, got.AssignedDriverID)
	assert.Equal(t, first, *got.AssignedDriverID, "tie-break is the lowest driver id")
}

func TestSchedulerRepo_Cancel(t *testing.T) {
	tx := newTestTx(t)
	ctx := context.Background()

	driverID := seedDriver(t, tx, "driver one", true)
	r := repo.NewSchedulerRepo(tx)

	pickup := time.Date(2026, 4, 1, 10, 0, 0, 0, time.UTC)
	booked, err := r.Reserve(ctx, bookingFixture(pickup))
	require.NoError(t, err)

	cancelled, err := r.Cancel(ctx, booked.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCancelled, cancelled.Status)

	// The slot is free again: the same window can be rebooked.
	reservations, err := repo.NewReservationRepo(tx).ListByDriver(ctx, driverID)
	require.NoError(t, err)
	assert.Empty(t, reservations)

	_, err = r.Reserve(ctx, bookingFixture(pickup))
	assert.NoError(t, err, "cancelling must free the driver's slot")
}

func TestSchedulerRepo_Cancel_AlreadyCancelled(t *testing.T) {
	tx := newTestTx(t)
	ctx := context.Background()

	seedDriver(t, tx, "driver one", true)
	r := repo.NewSchedulerRepo(tx)

	booked, err := r.Reserve(ctx, bookingFixture(time.Date(2026, 4, 1, 10, 0, 0, 0, time.UTC)))
	require.NoError(t, err)

	_, err = r.Cancel(ctx, booked.ID)
	require.NoError(t, err)

	_, err = r.Cancel(ctx, booked.ID)
	assert.ErrorIs(t, err, domain.ErrValidation)
}

// ---- concurrency properties ------------------------------------------------

// concurrencyCleanup removes everything the concurrency tests created, since
// they run on real connections rather than a rolled-back transaction.
func concurrencyCleanup(t *testing.T, pool *pgxpool.Pool, driverIDs []int64) {
	t.Cleanup(func() {
		ctx := context.Background()
		for _, id := range driverIDs {
			_, _ = pool.Exec(ctx, `DELETE FROM reservations WHERE driver_id = $1`, id)
			_, _ = pool.Exec(ctx, `DELETE FROM bookings WHERE assigned_driver_id = $1`, id)
			_, _ = pool.Exec(ctx, `DELETE FROM drivers WHERE id = $1`, id)
		}
	})
}

// TestSchedulerRepo_ConcurrentSameWindow covers the headline race: two (or
// more) simultaneous booking requests for the same single active driver and
// identical time window. Exactly one may win; the rest observe
// NoDriverAvailable or a retryable conflict — never a double booking.
func TestSchedulerRepo_ConcurrentSameWindow(t *testing.T) {
	pool := testutil.NewPool(t)
	ctx := context.Background()

	driverID := seedDriver(t, pool, "contended driver", true)
	concurrencyCleanup(t, pool, []int64{driverID})

	r := repo.NewSchedulerRepo(pool)
	pickup := time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)

	const attempts = 8
	var wg sync.WaitGroup
	errs := make(chan error, attempts)

	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := r.Reserve(ctx, bookingFixture(pickup))
			errs <- err
		}()
	}

	wg.Wait()
	close(errs)

	var wins int
	for err := range errs {
		switch {
		case err == nil:
			wins++
		case errors.Is(err, domain.ErrNoDriverAvailable):
		case repo.IsRetryableConflict(err):
			// A loser that raced past the row lock into the exclusion
			// constraint. The service layer would retry and then see
			// NoDriverAvailable; at the repo level the conflict itself is an
			// acceptable outcome.
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	assert.Equal(t, 1, wins, "exactly one concurrent attempt may win the slot")

	reservations, err := repo.NewReservationRepo(pool).ListByDriver(ctx, driverID)
	require.NoError(t, err)
	assert.Len(t, reservations, 1)
}

// TestSchedulerRepo_NoOverlapProperty hammers the scheduler with randomized
// overlapping windows across a small pool of drivers and then asserts the
// core invariant: for any two committed reservations sharing a driver, the
// [start, end) windows do not overlap.
func TestSchedulerRepo_NoOverlapProperty(t *testing.T) {
	pool := testutil.NewPool(t)
	ctx := context.Background()

	driverIDs := make([]int64, 3)
	for i := range driverIDs {
		driverIDs[i] = seedDriver(t, pool, fmt.Sprintf("property driver %d", i), true)
	}
	concurrencyCleanup(t, pool, driverIDs)

	r := repo.NewSchedulerRepo(pool)
	base := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)
	rng := rand.New(rand.NewSource(42))

	// Random start offsets within a 12-hour span and 30–120 minute durations
	// guarantee plenty of genuine contention.
	type attempt struct {
		start    time.Time
		duration int
	}
	attempts := make([]attempt, 40)
	for i := range attempts {
		attempts[i] = attempt{
			start:    base.Add(time.Duration(rng.Intn(12*60)) * time.Minute),
			duration: 30 + rng.Intn(4)*30,
		}
	}

	var wg sync.WaitGroup
	for _, a := range attempts {
		wg.Add(1)
		go func(a attempt) {
			defer wg.Done()
			b := bookingFixture(a.start)
			b.DurationMinutes = a.duration
			_, err := r.Reserve(ctx, b)
			if err != nil && !errors.Is(err, domain.ErrNoDriverAvailable) && !repo.IsRetryableConflict(err) {
				t.Errorf("unexpected error: %v", err)
			}
		}(a)
	}
	wg.Wait()

	resRepo := repo.NewReservationRepo(pool)
	for _, driverID := range driverIDs {
		reservations, err := resRepo.ListByDriver(ctx, driverID)
		require.NoError(t, err)

		for i := 0; i < len(reservations); i++ {
			for j := i + 1; j < len(reservations); j++ {
				assert.False(t,
					reservations[i].Overlaps(reservations[j].StartTS, reservations[j].EndTS),
					"driver %d has overlapping reservations: [%v,%v) and [%v,%v)",
					driverID,
					reservations[i].StartTS, reservations[i].EndTS,
					reservations[j].StartTS, reservations[j].EndTS)
			}
		}
	}
}
