package handlers

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"tablebook/internal/auth"
	"tablebook/internal/booking"
	"tablebook/internal/model"
	"tablebook/internal/timeslot"
)

type BookingHandler struct {
	svc    booking.Lifecycle
	logger *slog.Logger
}

func NewBookingHandler(svc booking.Lifecycle, logger *slog.Logger) *BookingHandler {
	return &BookingHandler{svc: svc, logger: logger}
}

type bookingRequest struct {
	TableID string `json:"table_id"`
	Date    string `json:"date"`
	Time    string `json:"time"`
}

type rescheduleRequest struct {
	Date string `json:"date"`
	Time string `json:"time"`
}

type bookingResponse struct {
	ID        string `json:"id"`
	TableID   string `json:"table_id"`
	StartTime string `json:"start_time"`
	EndTime   string `json:"end_time"`
	Status    string `json:"status"`
	CreatedAt string `json:"created_at,omitempty"`
}

func toBookingResponse(b model.Booking) bookingResponse {
	resp := bookingResponse{
		ID:        b.ID,
		TableID:   b.TableID,
		StartTime: b.StartTime.UTC().Format(time.RFC3339),
		EndTime:   b.EndTime.UTC().Format(time.RFC3339),
		Status:    b.Status.String(),
	}
	if !b.CreatedAt.IsZero() {
		resp.CreatedAt = b.CreatedAt.UTC().Format(time.RFC3339)
	}
	return resp
}

// parseSlotRequest turns the date and time strings of a request into domain
// values, reporting a 400 itself on malformed input.
func parseSlotRequest(w http.ResponseWriter, dateStr, timeStr string) (timeslot.Date, timeslot.TimeOfDay, bool) {
	date, err := timeslot.ParseDate(strings.TrimSpace(dateStr))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return timeslot.Date{}, timeslot.TimeOfDay{}, false
	}
	at, err := timeslot.ParseTimeOfDay(strings.TrimSpace(timeStr))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return timeslot.Date{}, timeslot.TimeOfDay{}, false
	}
	return date, at, true
}

func (h *BookingHandler) Create(w http.ResponseWriter, r *http.Request) {
	claims := auth.ClaimsFromContext(r.Context())
	if claims == nil {
		writeJSON(w, http.StatusUnauthorized, errorResponse{Error: "authentication required"})
		return
	}

	var req bookingRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	req.TableID = strings.TrimSpace(req.TableID)
	if req.TableID == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "table_id required"})
		return
	}
	date, at, ok := parseSlotRequest(w, req.Date, req.Time)
	if !ok {
		return
	}

	b, err := h.svc.Create(r.Context(), claims.Sub, req.TableID, date, at)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, toBookingResponse(b))
}

func (h *BookingHandler) Reschedule(w http.ResponseWriter, r *http.Request) {
	claims := auth.ClaimsFromContext(r.Context())
	if claims == nil {
		writeJSON(w, http.StatusUnauthorized, errorResponse{Error: "authentication required"})
		return
	}

	var req rescheduleRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	date, at, ok := parseSlotRequest(w, req.Date, req.Time)
	if !ok {
		return
	}

	b, err := h.svc.Reschedule(r.Context(), r.PathValue("id"), claims.Sub, date, at)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, toBookingResponse(b))
}

func (h *BookingHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	claims := auth.ClaimsFromContext(r.Context())
	if claims == nil {
		writeJSON(w, http.StatusUnauthorized, errorResponse{Error: "authentication required"})
		return
	}

	if err := h.svc.Cancel(r.Context(), r.PathValue("id"), claims.Sub); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *BookingHandler) ListUpcoming(w http.ResponseWriter, r *http.Request) {
	claims := auth.ClaimsFromContext(r.Context())
	if claims == nil {
		writeJSON(w, http.StatusUnauthorized, errorResponse{Error: "authentication required"})
		return
	}

	bs, err := h.svc.ListUpcoming(r.Context(), claims.Sub)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	items := make([]bookingResponse, 0, len(bs))
	for _, b := range bs {
		items = append(items, toBookingResponse(b))
	}
	writeJSON(w, http.StatusOK, items)
}
