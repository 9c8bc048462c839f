package admin

import (
	"errors"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"

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

// ActiveEntriesHandler lists every active entry across users so an admin can
// spot shifts nobody closed.
func (h *Handlers) ActiveEntriesHandler(w http.ResponseWriter, r *http.Request) {
	entries, err := h.service.ActiveEntries(r.Context())
	if err != nil {
		log.Printf("Failed to list active entries: %v", err)
		response.RespondWithError(w, http.StatusInternalServerError, "Database error")
		return
	}
	if entries == nil {
		entries = []models.TimeEntry{}
	}
	response.RespondWithJSON(w, http.StatusOK, entries)
}

// ForceCompleteHandler closes a runaway active entry, capping its duration at
// the configured maximum.
func (h *Handlers) ForceCompleteHandler(w http.ResponseWriter, r *http.Request) {
	entryID := chi.URLParam(r, "entryID")

	entry, err := h.service.ForceComplete(r.Context(), entryID)
	if err != nil {
		switch {
		case errors.Is(err, timeclock.ErrEntryNotFound):
			response.RespondWithError(w, http.StatusNotFound, "Entry not found")
		case errors.Is(err, timeclock.ErrNoActiveEntry):
			response.RespondWithError(w, http.StatusConflict, "Entry is not active")
		default:
			log.Printf("Failed to force-complete entry %s: %v", entryID, err)
			response.RespondWithError(w, http.StatusInternalServerError, "Server error")
		}
		return
	}
	response.RespondWithJSON(w, http.StatusOK, entry)
}
