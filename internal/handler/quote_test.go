package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fellsidecars/backend/internal/domain"
	"github.com/fellsidecars/backend/internal/handler"
)

func jsonBody(t *testing.T, v any) *bytes.Buffer {
	t.Helper()
	b, err := json.Marshal(v)
	require.NoError(t, err)
	return bytes.NewBuffer(b)
}

func signedQuote() domain.Quote {
	miles := 10.0
	return domain.Quote{
		Pickup:        "kendal",
		Dropoff:       "windermere",
		DistanceMiles: &miles,
		PricePence:    4750,
		Signature:     "deadbeef",
	}
}

func TestCreateQuote_200(t *testing.T) {
	svc := &mockQuoteServicer{
		quote: func(_ context.Context, pickup, dropoff string, _ *time.Time) (domain.Quote, error) {
			assert.Equal(t, "Kendal", pickup)
			assert.Equal(t, "Windermere", dropoff)
			return signedQuote(), nil
		},
	}

	body := jsonBody(t, map[string]any{"pickup": "Kendal", "dropoff": "Windermere"})
	req := httptest.NewRequest(http.MethodPost, "/quote", body)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()

	newHTTPHandler(serverDeps{quotes: svc}).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		domain.Quote
		Price string `json:"price"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, int64(4750), resp.PricePence)
	assert.Equal(t, "47.50", resp.Price)
	assert.Equal(t, "deadbeef", resp.Signature)
}

func TestCreateQuote_PassesPickupTime(t *testing.T) {
	var gotTime *time.Time
	svc := &mockQuoteServicer{
		quote: func(_ context.Context, _, _ string, pickupTime *time.Time) (domain.Quote, error) {
			gotTime = pickupTime
			return signedQuote(), nil
		},
	}

	body := jsonBody(t, map[string]any{
		"pickup":      "Kendal",
		"dropoff":     "Windermere",
		"pickup_time": "2026-04-01T23:30:00Z",
	})
	req := httptest.NewRequest(http.MethodPost, "/quote", body)
	rec := httptest.NewRecorder()

	newHTTPHandler(serverDeps{quotes: svc}).ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, gotTime)
	assert.Equal(t, 23, gotTime.UTC().Hour())
}

func TestCreateQuote_404_LocationNotFound(t *testing.T) {
	svc := &mockQuoteServicer{
		quote: func(_ context.Context, _, _ string, _ *time.Time) (domain.Quote, error) {
			return domain.Quote{}, fmt.Errorf("service.QuoteService.Quote: %w", domain.ErrLocationNotFound)
		},
	}

	body := jsonBody(t, map[string]any{"pickup": "nowhere at all", "dropoff": "Windermere"})
	req := httptest.NewRequest(http.MethodPost, "/quote", body)
	rec := httptest.NewRecorder()

	newHTTPHandler(serverDeps{quotes: svc}).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), "location_not_found")
}

func TestCreateQuote_422_Validation(t *testing.T) {
	svc := &mockQuoteServicer{
		quote: func(_ context.Context, _, _ string, _ *time.Time) (domain.Quote, error) {
			return domain.Quote{}, fmt.Errorf("%w: pickup and dropoff are required", domain.ErrValidation)
		},
	}

	body := jsonBody(t, map[string]any{"pickup": "", "dropoff": ""})
	req := httptest.NewRequest(http.MethodPost, "/quote", body)
	rec := httptest.NewRecorder()

	newHTTPHandler(serverDeps{quotes: svc}).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Contains(t, rec.Body.String(), "pickup and dropoff are required")
}

func TestCreateQuote_422_MalformedBody(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/quote", bytes.NewBufferString("{not json"))
	rec := httptest.NewRecorder()

	newHTTPHandler(serverDeps{quotes: &mockQuoteServicer{}}).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestCreateQuote_SavesSessionQuote(t *testing.T) {
	var savedKey string
	var saved domain.Quote
	store := &mockQuoteStore{
		saveQuote: func(_ context.Context, sessionKey string, q domain.Quote) error {
			savedKey = sessionKey
			saved = q
			return nil
		},
	}
	svc := &mockQuoteServicer{
		quote: func(_ context.Context, _, _ string, _ *time.Time) (domain.Quote, error) {
			return signedQuote(), nil
		},
	}

	body := jsonBody(t, map[string]any{"pickup": "Kendal", "dropoff": "Windermere"})
	req := httptest.NewRequest(http.MethodPost, "/quote", body)
	req.Header.Set(handler.SessionKeyHeader, "sess-1")
	rec := httptest.NewRecorder()

	newHTTPHandler(serverDeps{quotes: svc, sessions: store}).ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "sess-1", savedKey)
	assert.Equal(t, int64(4750), saved.PricePence)
}

func TestCreateQuote_SessionStoreFailureIsNotFatal(t *testing.T) {
	store := &mockQuoteStore{
		saveQuote: func(_ context.Context, _ string, _ domain.Quote) error {
			return assert.AnError
		},
	}
	svc := &mockQuoteServicer{
		quote: func(_ context.Context, _, _ string, _ *time.Time) (domain.Quote, error) {
			return signedQuote(), nil
		},
	}

	body := jsonBody(t, map[string]any{"pickup": "Kendal", "dropoff": "Windermere"})
	req := httptest.NewRequest(http.MethodPost, "/quote", body)
	req.Header.Set(handler.SessionKeyHeader, "sess-1")
	rec := httptest.NewRecorder()

	newHTTPHandler(serverDeps{quotes: svc, sessions: store}).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code, "a broken session store must not block quoting")
}

func TestGetSessionQuote_200(t *testing.T) {
	store := &mockQuoteStore{
		quote: func(_ context.Context, sessionKey string) (domain.Quote, bool, error) {
			assert.Equal(t, "sess-1", sessionKey)
			return signedQuote(), true, nil
		},
	}

	req := httptest.NewRequest(http.MethodGet, "/sessions/sess-1/quote", nil)
	rec := httptest.NewRecorder()

	newHTTPHandler(serverDeps{sessions: store}).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)

	var got struct {
		Pickup     string `json:"pickup"`
		PricePence int64  `json:"price_pence"`
		Price      string `json:"price"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&got))
	assert.Equal(t, "kendal", got.Pickup)
	assert.Equal(t, int64(4750), got.PricePence)
	assert.Equal(t, "47.50", got.Price)
}

func TestGetSessionQuote_404_NoPendingQuote(t *testing.T) {
	store := &mockQuoteStore{
		quote: func(_ context.Context, _ string) (domain.Quote, bool, error) {
			return domain.Quote{}, false, nil
		},
	}

	req := httptest.NewRequest(http.MethodGet, "/sessions/sess-9/quote", nil)
	rec := httptest.NewRecorder()

	newHTTPHandler(serverDeps{sessions: store}).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestGetSessionQuote_404_NoStoreConfigured(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/sessions/sess-1/quote", nil)
	rec := httptest.NewRecorder()

	newHTTPHandler(serverDeps{}).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}
