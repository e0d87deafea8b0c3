package domain

import "errors"

// ErrNotFound is returned by repo and service functions when the requested
// resource does not exist in the database.
// Handlers should map this to HTTP 404.
var ErrNotFound = errors.New("not found")

// ErrValidation is returned by service functions when input fails business
// rule validation (e.g. missing required field, pickup equal to dropoff).
// Handlers should map this to HTTP 422 Unprocessable Entity.
var ErrValidation = errors.New("validation error")

// ErrLocationNotFound is returned by the price resolver when neither the
// routing provider nor the geocoder can resolve one of the addresses.
// User-correctable; handlers should map this to HTTP 404.
var ErrLocationNotFound = errors.New("location not found")

// ErrQuoteTampered is returned when a booking request fails quote
// verification. It deliberately covers every failure mode — bad signature,
// stale price, edited payload — so a caller cannot probe which check failed.
// Handlers should map this to HTTP 403 and log it as a potential abuse signal.
var ErrQuoteTampered = errors.New("quote verification failed")

// ErrNoDriverAvailable is returned by the scheduler when no active driver has
// a free calendar slot covering the requested window. This is an expected
// business outcome, not a fault. Handlers should map this to HTTP 409.
var ErrNoDriverAvailable = errors.New("no driver available")

// ErrInvalidSignature is returned when a payment webhook fails authenticity
// verification. The payload must not be processed further.
// Handlers should map this to HTTP 401.
var ErrInvalidSignature = errors.New("invalid webhook signature")

// ErrBookingFailed is returned when the reservation transaction could not be
// committed after bounded retries. The caller must re-quote, since the price
// may have changed. Handlers should map this to HTTP 500.
var ErrBookingFailed = errors.New("booking failed")
