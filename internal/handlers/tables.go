package handlers

import (
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"tablebook/internal/model"
	"tablebook/internal/tables"
)

type TableHandler struct {
	svc    *tables.Service
	logger *slog.Logger
}

func NewTableHandler(svc *tables.Service, logger *slog.Logger) *TableHandler {
	return &TableHandler{svc: svc, logger: logger}
}

type createTableRequest struct {
	Name  string `json:"name"`
	Seats int    `json:"seats"`
}

type updateTableRequest struct {
	Name  *string `json:"name"`
	Seats *int    `json:"seats"`
}

type tableResponse struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Seats     int    `json:"seats"`
	CreatedAt string `json:"created_at,omitempty"`
}

func toTableResponse(t model.Table) tableResponse {
	resp := tableResponse{ID: t.ID, Name: t.Name, Seats: t.Seats}
	if !t.CreatedAt.IsZero() {
		resp.CreatedAt = t.CreatedAt.UTC().Format(time.RFC3339)
	}
	return resp
}

func toTableResponses(ts []model.Table) []tableResponse {
	items := make([]tableResponse, 0, len(ts))
	for _, t := range ts {
		items = append(items, toTableResponse(t))
	}
	return items
}

func (h *TableHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createTableRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	t, err := h.svc.Create(r.Context(), strings.TrimSpace(req.Name), req.Seats)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, toTableResponse(t))
}

func (h *TableHandler) Get(w http.ResponseWriter, r *http.Request) {
	t, err := h.svc.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, toTableResponse(t))
}

func (h *TableHandler) List(w http.ResponseWriter, r *http.Request) {
	ts, err := h.svc.List(r.Context())
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, toTableResponses(ts))
}

func (h *TableHandler) Update(w http.ResponseWriter, r *http.Request) {
	var req updateTableRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	t, err := h.svc.Update(r.Context(), r.PathValue("id"), req.Name, req.Seats)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, toTableResponse(t))
}

func (h *TableHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.Delete(r.Context(), r.PathValue("id")); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ListAvailable is the public "which tables are free" query:
// GET /api/v1/tables/available?date=YYYY-MM-DD&time=HH:MM[&min_seats=N]
func (h *TableHandler) ListAvailable(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	date, at, ok := parseSlotRequest(w, q.Get("date"), q.Get("time"))
	if !ok {
		return
	}

	var minSeats *int
	if raw := strings.TrimSpace(q.Get("min_seats")); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: "min_seats must be a positive integer"})
			return
		}
		minSeats = &n
	}

	ts, err := h.svc.ListAvailable(r.Context(), date, at, minSeats)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, toTableResponses(ts))
}
