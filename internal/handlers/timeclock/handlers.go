package timeclock

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/Jsunwilke/employeeapp-sub001/internal/middleware"
	"github.com/Jsunwilke/employeeapp-sub001/internal/models"
	"github.com/Jsunwilke/employeeapp-sub001/internal/pkg/response"
	"github.com/Jsunwilke/employeeapp-sub001/internal/timeclock"
)

type Handlers struct {
	service *timeclock.Service
}

func NewHandlers(service *timeclock.Service) *Handlers {
	return &Handlers{service: service}
}

func (h *Handlers) ClockInHandler(w http.ResponseWriter, r *http.Request) {
	userID, orgID, ok := identity(w, r)
	if !ok {
		return
	}

	var body struct {
		SessionRef string `json:"session_ref"`
		Notes      string `json:"notes"`
	}
	json.NewDecoder(r.Body).Decode(&body)

	entry, err := h.service.ClockIn(r.Context(), userID, orgID, body.SessionRef, body.Notes)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	response.RespondWithJSON(w, http.StatusCreated, entry)
}

func (h *Handlers) ClockOutHandler(w http.ResponseWriter, r *http.Request) {
	userID, _, ok := identity(w, r)
	if !ok {
		return
	}

	var body struct {
		Notes string `json:"notes"`
	}
	json.NewDecoder(r.Body).Decode(&body)

	entry, err := h.service.ClockOut(r.Context(), userID, body.Notes)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	response.RespondWithJSON(w, http.StatusOK, map[string]interface{}{
		"entry":       entry,
		"worked_time": response.FormatDuration(int(entry.Duration().Seconds())),
	})
}

func (h *Handlers) ActiveEntryHandler(w http.ResponseWriter, r *http.Request) {
	userID, _, ok := identity(w, r)
	if !ok {
		return
	}

	entry, err := h.service.ActiveEntry(r.Context(), userID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	if entry == nil {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte("null"))
		return
	}
	response.RespondWithJSON(w, http.StatusOK, entry)
}

func (h *Handlers) ListEntriesHandler(w http.ResponseWriter, r *http.Request) {
	userID, _, ok := identity(w, r)
	if !ok {
		return
	}

	now := time.Now()
	from, to := now.AddDate(0, 0, -30), now.Add(24*time.Hour)
	if v := r.URL.Query().Get("from"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			response.RespondWithError(w, http.StatusBadRequest, "Invalid from time")
			return
		}
		from = t
	}
	if v := r.URL.Query().Get("to"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			response.RespondWithError(w, http.StatusBadRequest, "Invalid to time")
			return
		}
		to = t
	}

	entries, err := h.service.ListEntries(r.Context(), userID, from, to)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	if entries == nil {
		entries = []models.TimeEntry{}
	}
	response.RespondWithJSON(w, http.StatusOK, entries)
}

func (h *Handlers) CreateEntryHandler(w http.ResponseWriter, r *http.Request) {
	userID, orgID, ok := identity(w, r)
	if !ok {
		return
	}

	var body struct {
		StartTime time.Time `json:"start_time"`
		EndTime   time.Time `json:"end_time"`
		Notes     string    `json:"notes"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		response.RespondWithError(w, http.StatusBadRequest, "Invalid request")
		return
	}

	entry, err := h.service.CreateManual(r.Context(), userID, orgID, body.StartTime, body.EndTime, body.Notes)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	response.RespondWithJSON(w, http.StatusCreated, entry)
}

func (h *Handlers) UpdateEntryHandler(w http.ResponseWriter, r *http.Request) {
	userID, _, ok := identity(w, r)
	if !ok {
		return
	}
	entryID := chi.URLParam(r, "entryID")

	var body struct {
		StartTime time.Time `json:"start_time"`
		EndTime   time.Time `json:"end_time"`
		Notes     string    `json:"notes"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		response.RespondWithError(w, http.StatusBadRequest, "Invalid request")
		return
	}

	entry, err := h.service.UpdateEntry(r.Context(), userID, entryID, body.StartTime, body.EndTime, body.Notes)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	response.RespondWithJSON(w, http.StatusOK, entry)
}

func (h *Handlers) EditActiveStartHandler(w http.ResponseWriter, r *http.Request) {
	userID, _, ok := identity(w, r)
	if !ok {
		return
	}
	entryID := chi.URLParam(r, "entryID")

	var body struct {
		StartTime time.Time `json:"start_time"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		response.RespondWithError(w, http.StatusBadRequest, "Invalid request")
		return
	}

	entry, err := h.service.EditActiveStart(r.Context(), userID, entryID, body.StartTime)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	response.RespondWithJSON(w, http.StatusOK, entry)
}

func (h *Handlers) DeleteEntryHandler(w http.ResponseWriter, r *http.Request) {
	userID, _, ok := identity(w, r)
	if !ok {
		return
	}
	entryID := chi.URLParam(r, "entryID")

	if err := h.service.DeleteEntry(r.Context(), userID, entryID); err != nil {
		writeServiceError(w, err)
		return
	}
	response.RespondWithJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

func (h *Handlers) AbortActiveHandler(w http.ResponseWriter, r *http.Request) {
	userID, _, ok := identity(w, r)
	if !ok {
		return
	}

	if err := h.service.AbortActive(r.Context(), userID); err != nil {
		writeServiceError(w, err)
		return
	}
	response.RespondWithJSON(w, http.StatusOK, map[string]string{"status": "aborted"})
}

// identity pulls the authenticated user out of the context. The lock and
// entry stores key on string IDs.
func identity(w http.ResponseWriter, r *http.Request) (userID, orgID string, ok bool) {
	id, found := middleware.GetUserIDFromContext(r.Context())
	if !found {
		response.RespondWithError(w, http.StatusUnauthorized, "User not authenticated")
		return "", "", false
	}
	return strconv.Itoa(id), r.Header.Get("X-Organization-ID"), true
}

// writeServiceError maps service errors onto HTTP responses. Validation
// failures are expected outcomes and carry their code and any conflicting
// entries for user-facing messaging.
func writeServiceError(w http.ResponseWriter, err error) {
	var verr *timeclock.ValidationError
	switch {
	case errors.As(err, &verr):
		status := http.StatusBadRequest
		if verr.Code == timeclock.CodeOverlaps || verr.Code == timeclock.CodeActiveEntryExists {
			status = http.StatusConflict
		}
		response.RespondWithJSON(w, status, verr)
	case errors.Is(err, timeclock.ErrNoActiveEntry):
		response.RespondWithError(w, http.StatusBadRequest, "No active entry found")
	case errors.Is(err, timeclock.ErrEntryNotFound):
		response.RespondWithError(w, http.StatusNotFound, "Entry not found")
	case errors.Is(err, timeclock.ErrNotOwner):
		response.RespondWithError(w, http.StatusForbidden, "Access denied")
	default:
		log.Printf("timeclock handler error: %v", err)
		response.RespondWithError(w, http.StatusInternalServerError, "Server error")
	}
}
