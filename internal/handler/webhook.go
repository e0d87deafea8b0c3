package handler

import (
	"io"
	"net/http"

	"github.com/fellsidecars/backend/internal/payment"
)

// PaymentWebhook handles POST /webhook/payment. The body is passed to the
// service as the exact bytes received; the signature covers those bytes and
// decoding first would destroy the evidence.
func (s *Server) PaymentWebhook(w http.ResponseWriter, r *http.Request) {
	rawBody, err := io.ReadAll(r.Body)
	if err != nil {
		s.badRequest(w, "could not read request body")
		return
	}

	if err := s.payments.HandleWebhook(r.Context(), rawBody, r.Header.Get(payment.SignatureHeader)); err != nil {
		s.writeError(w, r, err)
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]bool{"received": true})
}
