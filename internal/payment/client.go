package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"
)

// CheckoutRequest describes the checkout session to create for a booking.
// The booking reference is embedded in both the structured metadata and the
// note so the webhook can map the payment back regardless of which fields the
// provider echoes.
type CheckoutRequest struct {
	BookingRef  uuid.UUID
	AmountPence int64
	Description string
}

// CheckoutSession is the provider's handle for a created checkout.
type CheckoutSession struct {
	ID          string `json:"id"`
	CheckoutURL string `json:"checkout_url"`
}

// Client creates checkout sessions against the payment provider's REST API.
type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client
}

// NewClient constructs a checkout client. timeout bounds each call.
func NewClient(baseURL, apiKey string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Client{
		baseURL: baseURL,
		apiKey:  apiKey,
		http:    &http.Client{Timeout: timeout},
	}
}

// CreateCheckout creates a hosted checkout session for the given amount.
func (c *Client) CreateCheckout(ctx context.Context, req CheckoutRequest) (CheckoutSession, error) {
	body, err := json.Marshal(map[string]any{
		"reference":    req.BookingRef.String(),
		"amount_pence": req.AmountPence,
		"currency":     "GBP",
		"description":  req.Description,
		"metadata":     map[string]string{"booking_ref": req.BookingRef.String()},
		"note":         "booking_ref:" + req.BookingRef.String(),
	})
	if err != nil {
		return CheckoutSession{}, fmt.Errorf("payment.Client.CreateCheckout: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/checkouts", bytes.NewReader(body))
	if err != nil {
		return CheckoutSession{}, fmt.Errorf("payment.Client.CreateCheckout: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return CheckoutSession{}, fmt.Errorf("payment.Client.CreateCheckout: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return CheckoutSession{}, fmt.Errorf("payment.Client.CreateCheckout: status %d: %s", resp.StatusCode, snippet)
	}

	var session CheckoutSession
	if err := json.NewDecoder(resp.Body).Decode(&session); err != nil {
		return CheckoutSession{}, fmt.Errorf("payment.Client.CreateCheckout: decode: %w", err)
	}
	return session, nil
}
