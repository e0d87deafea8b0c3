// Package quote binds a computed price to its inputs with a keyed integrity
// tag. The resulting signature travels with the quote to the client and must
// be echoed back unchanged on booking; any change to any field invalidates it.
package quote

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"strings"
	"time"

	"github.com/fellsidecars/backend/internal/domain"
)

// Signer produces and checks quote signatures. The secret is process-wide
// configuration, never derived from request data.
type Signer struct {
	secret []byte
}

// NewSigner constructs a Signer keyed by secret.
func NewSigner(secret string) *Signer {
	return &Signer{secret: []byte(secret)}
}

// Sign returns the hex-encoded HMAC-SHA256 of the quote's canonical
// serialization.
func (s *Signer) Sign(q domain.Quote) string {
	mac := hmac.New(sha256.New, s.secret)
	mac.Write([]byte(canonical(q)))
	return hex.EncodeToString(mac.Sum(nil))
}

// Verify reports whether sig is a valid signature for q. The comparison is
// constant-time. Verify alone does not make a quote trustworthy: the booking
// flow additionally recomputes the price from the quote's raw inputs and
// requires an exact match (see service.QuoteService.VerifyForBooking).
func (s *Signer) Verify(q domain.Quote, sig string) bool {
	want, err := hex.DecodeString(sig)
	if err != nil {
		return false
	}
	mac := hmac.New(sha256.New, s.secret)
	mac.Write([]byte(canonical(q)))
	return hmac.Equal(mac.Sum(nil), want)
}

// canonical produces a stable field-ordered representation of the quote, so
// equivalent payloads hash identically regardless of construction order.
// The Signature field itself is excluded.
func canonical(q domain.Quote) string {
	var b strings.Builder
	b.WriteString("v1|")
	b.WriteString(q.Pickup)
	b.WriteByte('|')
	b.WriteString(q.Dropoff)
	b.WriteByte('|')
	if q.PickupTime != nil {
		b.WriteString(q.PickupTime.UTC().Format(time.RFC3339))
	}
	b.WriteByte('|')
	b.WriteString(strconv.FormatBool(q.Fixed))
	b.WriteByte('|')
	if q.DistanceMiles != nil {
		// Three decimal places: finer than any price-relevant difference,
		// coarse enough to be stable across serialization round trips.
		b.WriteString(strconv.FormatFloat(*q.DistanceMiles, 'f', 3, 64))
	}
	b.WriteByte('|')
	b.WriteString(strconv.FormatInt(q.PricePence, 10))
	return b.String()
}
