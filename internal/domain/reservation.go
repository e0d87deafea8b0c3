package domain

import (
	"time"

	"github.com/google/uuid"
)

// Reservation is a driver-time-window claim backing a booking.
// It is owned exclusively by the scheduler and exists only as long as its
// parent booking is not cancelled.
//
// The core consistency invariant of the whole subsystem: two reservations for
// the same driver must never have overlapping [StartTS, EndTS) intervals.
// Intervals are half-open, so back-to-back bookings with touching boundaries
// are allowed.
type Reservation struct {
	ID        uuid.UUID `json:"id"`
	DriverID  int64     `json:"driver_id"`
	StartTS   time.Time `json:"start_ts"`
	EndTS     time.Time `json:"end_ts"`
	BookingID uuid.UUID `json:"booking_id"`
	CreatedAt time.Time `json:"created_at"`
}

// Overlaps reports whether the reservation's window intersects [start, end)
// under half-open interval semantics.
func (r Reservation) Overlaps(start, end time.Time) bool {
	return r.StartTS.Before(end) && r.EndTS.After(start)
}
