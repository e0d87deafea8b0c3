// Package notify holds the outbound post-payment collaborators: the customer
// notification gateway and the external fleet dispatch system. Both are
// fire-and-forget from the core's perspective — the payment reconciler logs
// their failures and never rolls back a confirmed payment because of them.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/fellsidecars/backend/internal/domain"
)

// Gateway posts booking-paid notices to the messaging gateway, which handles
// the actual email/SMS/WhatsApp formatting and delivery.
type Gateway struct {
	url  string
	http *http.Client
}

// NewGateway constructs a Gateway for the given endpoint.
func NewGateway(url string, timeout time.Duration) *Gateway {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Gateway{url: url, http: &http.Client{Timeout: timeout}}
}

// BookingPaid tells the gateway to send the customer their confirmation.
func (g *Gateway) BookingPaid(ctx context.Context, b domain.Booking) error {
	return postJSON(ctx, g.http, g.url, map[string]any{
		"event":          "booking_paid",
		"booking_id":     b.ID.String(),
		"customer_name":  b.CustomerName,
		"customer_phone": b.CustomerPhone,
		"customer_email": b.CustomerEmail,
		"pickup":         b.Pickup,
		"dropoff":        b.Dropoff,
		"pickup_time":    b.PickupTime,
		"price":          domain.FormatPence(b.PricePence),
	})
}

// Fleet posts paid bookings to the external fleet system for dispatch.
type Fleet struct {
	url  string
	http *http.Client
}

// NewFleet constructs a Fleet client for the given endpoint.
func NewFleet(url string, timeout time.Duration) *Fleet {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Fleet{url: url, http: &http.Client{Timeout: timeout}}
}

// DispatchBooking hands the booking to the fleet system.
func (f *Fleet) DispatchBooking(ctx context.Context, b domain.Booking) error {
	var driverID int64
	if b.AssignedDriverID != nil {
		driverID = *b.AssignedDriverID
	}
	return postJSON(ctx, f.http, f.url, map[string]any{
		"booking_id":  b.ID.String(),
		"driver_id":   driverID,
		"pickup":      b.Pickup,
		"dropoff":     b.Dropoff,
		"pickup_time": b.PickupTime,
	})
}

func postJSON(ctx context.Context, client *http.Client, url string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("notify: marshal: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("notify: request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("notify: post %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("notify: post %s: status %d", url, resp.StatusCode)
	}
	return nil
}
