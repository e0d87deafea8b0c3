package handler_test

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fellsidecars/backend/internal/domain"
)

func TestListBookings_200(t *testing.T) {
	svc := &mockDispatchServicer{
		list: func(_ context.Context, _ domain.PaginationParams) ([]domain.Booking, error) {
			return []domain.Booking{
				{ID: uuid.New(), Pickup: "kendal"},
				{ID: uuid.New(), Pickup: "ambleside"},
			}, nil
		},
	}

	req := httptest.NewRequest(http.MethodGet, "/bookings", nil)
	rec := httptest.NewRecorder()

	newHTTPHandler(serverDeps{dispatch: svc}).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Data []domain.Booking `json:"data"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Len(t, resp.Data, 2)
}

func TestListBookings_passesPaginationParams(t *testing.T) {
	var got domain.PaginationParams
	svc := &mockDispatchServicer{
		list: func(_ context.Context, p domain.PaginationParams) ([]domain.Booking, error) {
			got = p
			return []domain.Booking{}, nil
		},
	}

	req := httptest.NewRequest(http.MethodGet, "/bookings?page=3&limit=5", nil)
	rec := httptest.NewRecorder()

	newHTTPHandler(serverDeps{dispatch: svc}).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 3, got.Page)
	assert.Equal(t, 5, got.Limit)
}

func TestGetBooking_200(t *testing.T) {
	id := uuid.New()
	svc := &mockDispatchServicer{
		getByID: func(_ context.Context, gotID uuid.UUID) (domain.Booking, error) {
			assert.Equal(t, id, gotID)
			return domain.Booking{ID: id, Pickup: "kendal"}, nil
		},
	}

	req := httptest.NewRequest(http.MethodGet, "/bookings/"+id.String(), nil)
	rec := httptest.NewRecorder()

	newHTTPHandler(serverDeps{dispatch: svc}).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestGetBooking_404(t *testing.T) {
	svc := &mockDispatchServicer{
		getByID: func(_ context.Context, _ uuid.UUID) (domain.Booking, error) {
			return domain.Booking{}, fmt.Errorf("service.DispatchService.GetByID: %w", domain.ErrNotFound)
		},
	}

	req := httptest.NewRequest(http.MethodGet, "/bookings/"+uuid.NewString(), nil)
	rec := httptest.NewRecorder()

	newHTTPHandler(serverDeps{dispatch: svc}).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestGetBooking_422_BadUUID(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/bookings/not-a-uuid", nil)
	rec := httptest.NewRecorder()

	newHTTPHandler(serverDeps{dispatch: &mockDispatchServicer{}}).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestDispatchBooking_200(t *testing.T) {
	id := uuid.New()
	svc := &mockDispatchServicer{
		dispatch: func(_ context.Context, _ uuid.UUID) (domain.Booking, error) {
			return domain.Booking{ID: id, Status: domain.StatusDispatched}, nil
		},
	}

	req := httptest.NewRequest(http.MethodPost, "/bookings/"+id.String()+"/dispatch", nil)
	rec := httptest.NewRecorder()

	newHTTPHandler(serverDeps{dispatch: svc}).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "dispatched")
}

func TestDispatchBooking_422_WrongState(t *testing.T) {
	svc := &mockDispatchServicer{
		dispatch: func(_ context.Context, _ uuid.UUID) (domain.Booking, error) {
			return domain.Booking{}, fmt.Errorf("%w: card booking must be paid before dispatch", domain.ErrValidation)
		},
	}

	req := httptest.NewRequest(http.MethodPost, "/bookings/"+uuid.NewString()+"/dispatch", nil)
	rec := httptest.NewRecorder()

	newHTTPHandler(serverDeps{dispatch: svc}).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Contains(t, rec.Body.String(), "must be paid before dispatch")
}

func TestCancelBooking_200(t *testing.T) {
	id := uuid.New()
	svc := &mockDispatchServicer{
		cancel: func(_ context.Context, _ uuid.UUID) (domain.Booking, error) {
			return domain.Booking{ID: id, Status: domain.StatusCancelled}, nil
		},
	}

	req := httptest.NewRequest(http.MethodPost, "/bookings/"+id.String()+"/cancel", nil)
	rec := httptest.NewRecorder()

	newHTTPHandler(serverDeps{dispatch: svc}).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "cancelled")
}

func TestCompleteBooking_200(t *testing.T) {
	id := uuid.New()
	svc := &mockDispatchServicer{
		complete: func(_ context.Context, _ uuid.UUID) (domain.Booking, error) {
			return domain.Booking{ID: id, Status: domain.StatusCompleted}, nil
		},
	}

	req := httptest.NewRequest(http.MethodPost, "/bookings/"+id.String()+"/complete", nil)
	rec := httptest.NewRecorder()

	newHTTPHandler(serverDeps{dispatch: svc}).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "completed")
}
