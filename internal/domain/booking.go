// Package domain contains the core data types for the booking and dispatch
// core. This package has zero external dependencies beyond uuid and is
// imported by every other internal package (repo, service, handler).
package domain

import (
	"time"

	"github.com/google/uuid"
)

// PaymentStatus is the lifecycle of the money side of a booking.
// Transitions are one-directional: pending → paid or pending → failed.
type PaymentStatus string

const (
	PaymentPending PaymentStatus = "pending"
	PaymentPaid    PaymentStatus = "paid"
	PaymentFailed  PaymentStatus = "failed"
)

// BookingStatus is the dispatch lifecycle of a booking.
// Bookings are never deleted, only status-transitioned.
type BookingStatus string

const (
	StatusNew        BookingStatus = "new"
	StatusAssigned   BookingStatus = "assigned"
	StatusDispatched BookingStatus = "dispatched"
	StatusCompleted  BookingStatus = "completed"
	StatusCancelled  BookingStatus = "cancelled"
)

// PaymentType distinguishes how the customer intends to pay.
// Card bookings get a checkout session; cash bookings settle in the vehicle.
type PaymentType string

const (
	PayCash PaymentType = "cash"
	PayCard PaymentType = "card"
)

// Booking is the persistent record of a confirmed journey request.
// It is created atomically with its Reservation by the scheduler, mutated by
// the payment reconciler (payment fields) and by the dispatch action (status,
// driver fields).
//
// Invariant: a booking has at most one AssignedDriverID, and that driver has
// no other reservation whose time window overlaps this booking's window.
type Booking struct {
	ID                uuid.UUID     `json:"id"`
	Pickup            string        `json:"pickup"`
	Dropoff           string        `json:"dropoff"`
	PickupTime        time.Time     `json:"pickup_time"`
	DurationMinutes   int           `json:"duration_minutes"`
	CustomerName      string        `json:"customer_name"`
	CustomerPhone     string        `json:"customer_phone"`
	CustomerEmail     string        `json:"customer_email,omitempty"`
	PricePence        int64         `json:"price_pence"`
	PaymentType       PaymentType   `json:"payment_type"`
	PaymentStatus     PaymentStatus `json:"payment_status"`
	ProviderPaymentID string        `json:"provider_payment_id,omitempty"` // set by the reconciler when the provider confirms payment
	AmountPaidPence   *int64        `json:"amount_paid_pence,omitempty"`   // nil until paid
	AssignedDriverID  *int64        `json:"assigned_driver_id,omitempty"`  // nil until the scheduler assigns a driver
	Status            BookingStatus `json:"status"`
	CreatedAt         time.Time     `json:"created_at"`
	UpdatedAt         time.Time     `json:"updated_at"`
}

// Window returns the half-open reservation interval [start, end) implied by
// the booking's pickup time and estimated duration.
func (b Booking) Window() (start, end time.Time) {
	return b.PickupTime, b.PickupTime.Add(time.Duration(b.DurationMinutes) * time.Minute)
}
