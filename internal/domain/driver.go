package domain

import "time"

// Driver is a row in the external driver roster. The roster is mutated by
// administrative action outside this core; the core only reads IsActive and
// the driver's existing reservations.
type Driver struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Phone     string    `json:"phone"`
	IsActive  bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
}
