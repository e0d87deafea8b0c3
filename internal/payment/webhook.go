// Package payment adapts the external payment provider: inbound webhook
// verification and parsing, and outbound checkout session creation.
package payment

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// SignatureHeader is the HTTP header carrying the provider's webhook signature.
const SignatureHeader = "X-Payment-Signature"

// VerifySignature reports whether header is a valid HMAC-SHA256 over the
// exact raw bytes received. Verification must run on the raw body, never a
// re-serialized copy: re-serialization can silently change key order or
// whitespace and with it the signature input.
func VerifySignature(secret string, rawBody []byte, header string) bool {
	want, err := hex.DecodeString(strings.TrimSpace(header))
	if err != nil {
		return false
	}
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(rawBody)
	return hmac.Equal(mac.Sum(nil), want)
}

// Event is a payment provider webhook notification. Providers send many
// interim events per checkout; only terminal statuses change booking state.
type Event struct {
	ID          string            `json:"id"`
	EventType   string            `json:"event_type"`
	Status      string            `json:"status"`
	AmountPence int64             `json:"amount_pence"`
	Currency    string            `json:"currency"`
	Metadata    map[string]string `json:"metadata"`
	Note        string            `json:"note"`
}

// ParseEvent decodes a verified webhook body.
func ParseEvent(rawBody []byte) (Event, error) {
	var e Event
	if err := json.Unmarshal(rawBody, &e); err != nil {
		return Event{}, fmt.Errorf("payment.ParseEvent: %w", err)
	}
	if e.ID == "" {
		return Event{}, fmt.Errorf("payment.ParseEvent: missing event id")
	}
	return e, nil
}

// Completed reports whether the event carries a terminal success status.
func (e Event) Completed() bool {
	switch strings.ToUpper(e.Status) {
	case "PAID", "COMPLETED", "SUCCEEDED":
		return true
	}
	return false
}

// Failed reports whether the event carries a terminal failure status.
func (e Event) Failed() bool {
	switch strings.ToUpper(e.Status) {
	case "FAILED", "DECLINED":
		return true
	}
	return false
}

// BookingRef extracts the booking reference carried through the checkout.
// The structured metadata contract is preferred; the free-text note field is
// a fallback parsed with a strict key:value grammar, with booking_ref as the
// required field.
func (e Event) BookingRef() (uuid.UUID, error) {
	if ref, ok := e.Metadata["booking_ref"]; ok {
		id, err := uuid.Parse(strings.TrimSpace(ref))
		if err != nil {
			return uuid.Nil, fmt.Errorf("payment.Event.BookingRef: metadata: %w", err)
		}
		return id, nil
	}

	fields, err := parseNote(e.Note)
	if err != nil {
		return uuid.Nil, err
	}
	ref, ok := fields["booking_ref"]
	if !ok {
		return uuid.Nil, fmt.Errorf("payment.Event.BookingRef: note is missing booking_ref")
	}
	id, err := uuid.Parse(ref)
	if err != nil {
		return uuid.Nil, fmt.Errorf("payment.Event.BookingRef: note: %w", err)
	}
	return id, nil
}

// parseNote parses the provider note field as semicolon-separated key:value
// pairs. Anything that does not fit the grammar is rejected — the note was
// historically treated as free text, and a strict grammar is the only way to
// keep it machine-readable.
func parseNote(note string) (map[string]string, error) {
	if strings.TrimSpace(note) == "" {
		return nil, fmt.Errorf("payment.parseNote: empty note")
	}

	fields := make(map[string]string)
	for _, pair := range strings.Split(note, ";") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		key, value, ok := strings.Cut(pair, ":")
		key = strings.TrimSpace(key)
		value = strings.TrimSpace(value)
		if !ok || key == "" || value == "" {
			return nil, fmt.Errorf("payment.parseNote: %q is not key:value", pair)
		}
		fields[key] = value
	}
	return fields, nil
}
