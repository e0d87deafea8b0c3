package domain

import "time"

// Quote is the ephemeral result of a price request. It is never persisted:
// it is carried entirely in the round trip between the resolver and the
// client, protected by Signature.
//
// Invariant: Signature is a deterministic function of every other field; any
// change to any field invalidates it.
type Quote struct {
	Pickup        string     `json:"pickup"`
	Dropoff       string     `json:"dropoff"`
	PickupTime    *time.Time `json:"pickup_time,omitempty"`
	Fixed         bool       `json:"fixed"`
	DistanceMiles *float64   `json:"distance_miles,omitempty"` // nil for fixed zone fares
	PricePence    int64      `json:"price_pence"`
	Signature     string     `json:"signature"`
}
