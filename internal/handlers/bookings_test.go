package handlers

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"tablebook/internal/apperr"
	"tablebook/internal/auth"
	"tablebook/internal/model"
	"tablebook/internal/timeslot"
)

type fakeLifecycle struct {
	createErr error
	cancelErr error
	created   model.Booking
	upcoming  []model.Booking
}

func (f *fakeLifecycle) Create(ctx context.Context, userID, tableID string, date timeslot.Date, at timeslot.TimeOfDay) (model.Booking, error) {
	if f.createErr != nil {
		return model.Booking{}, f.createErr
	}
	return f.created, nil
}

func (f *fakeLifecycle) Reschedule(ctx context.Context, bookingID, userID string, date timeslot.Date, at timeslot.TimeOfDay) (model.Booking, error) {
	return f.created, nil
}

func (f *fakeLifecycle) Cancel(ctx context.Context, bookingID, userID string) error {
	return f.cancelErr
}

func (f *fakeLifecycle) ListUpcoming(ctx context.Context, userID string) ([]model.Booking, error) {
	return f.upcoming, nil
}

const testSecret = "test-secret"

func testRouter(svc *fakeLifecycle) http.Handler {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	h := NewBookingHandler(svc, logger)

	mux := http.NewServeMux()
	requireAuth := auth.RequireAuth(testSecret)
	mux.Handle("POST /api/v1/bookings", requireAuth(http.HandlerFunc(h.Create)))
	mux.Handle("GET /api/v1/bookings", requireAuth(http.HandlerFunc(h.ListUpcoming)))
	mux.Handle("DELETE /api/v1/bookings/{id}", requireAuth(http.HandlerFunc(h.Cancel)))
	return mux
}

func bearerToken(t *testing.T, userID string) string {
	t.Helper()
	now := time.Now()
	token, err := auth.SignHS256(auth.Claims{
		Sub: userID,
		Iat: now.Unix(),
		Exp: now.Add(time.Hour).Unix(),
	}, testSecret)
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return "Bearer " + token
}

func TestCreateBookingRequiresAuth(t *testing.T) {
	router := testRouter(&fakeLifecycle{})

	req := httptest.NewRequest(http.MethodPost, "/api/v1/bookings", strings.NewReader(`{}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
}

func TestCreateBookingHappyPath(t *testing.T) {
	start := time.Date(2026, 3, 5, 18, 0, 0, 0, time.UTC)
	svc := &fakeLifecycle{created: model.Booking{
		ID: "b1", TableID: "t1", UserID: "u1",
		StartTime: start, EndTime: start.Add(2 * time.Hour),
		Status: model.StatusActive,
	}}
	router := testRouter(svc)

	body := `{"table_id":"t1","date":"2026-03-05","time":"18:00"}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/bookings", strings.NewReader(body))
	req.Header.Set("Authorization", bearerToken(t, "u1"))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	var resp bookingResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.ID != "b1" || resp.Status != "active" {
		t.Fatalf("response = %+v", resp)
	}
	if resp.StartTime != "2026-03-05T18:00:00Z" {
		t.Fatalf("start_time = %q", resp.StartTime)
	}
}

func TestCreateBookingRejectsBadDate(t *testing.T) {
	router := testRouter(&fakeLifecycle{})

	body := `{"table_id":"t1","date":"03/05/2026","time":"18:00"}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/bookings", strings.NewReader(body))
	req.Header.Set("Authorization", bearerToken(t, "u1"))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestErrorKindMapping(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want int
	}{
		{"business rule", apperr.BusinessRule("Table is not available for the selected time"), http.StatusUnprocessableEntity},
		{"not found", apperr.NotFound("Table not found"), http.StatusNotFound},
		{"forbidden", apperr.Forbidden("You cannot modify this booking"), http.StatusForbidden},
	}
	for _, c := range cases {
		router := testRouter(&fakeLifecycle{createErr: c.err})

		body := `{"table_id":"t1","date":"2026-03-05","time":"18:00"}`
		req := httptest.NewRequest(http.MethodPost, "/api/v1/bookings", strings.NewReader(body))
		req.Header.Set("Authorization", bearerToken(t, "u1"))
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)

		if rec.Code != c.want {
			t.Errorf("%s: status = %d, want %d", c.name, rec.Code, c.want)
		}
		var resp errorResponse
		if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
			t.Fatalf("%s: decode response: %v", c.name, err)
		}
		if resp.Error != c.err.Error() {
			t.Errorf("%s: error = %q, want %q", c.name, resp.Error, c.err.Error())
		}
	}
}

func TestCancelBooking(t *testing.T) {
	router := testRouter(&fakeLifecycle{})

	req := httptest.NewRequest(http.MethodDelete, "/api/v1/bookings/b1", nil)
	req.Header.Set("Authorization", bearerToken(t, "u1"))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusNoContent {
		t.Fatalf("status = %d, want 204", rec.Code)
	}
}

func TestCancelCutoffMapsTo422(t *testing.T) {
	svc := &fakeLifecycle{cancelErr: apperr.BusinessRule("Booking cannot be canceled less than 1 hour before start")}
	router := testRouter(svc)

	req := httptest.NewRequest(http.MethodDelete, "/api/v1/bookings/b1", nil)
	req.Header.Set("Authorization", bearerToken(t, "u1"))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d, want 422", rec.Code)
	}
}
