package editing

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/Jsunwilke/employeeapp-sub001/internal/autosave"
	"github.com/Jsunwilke/employeeapp-sub001/internal/locks"
	"github.com/Jsunwilke/employeeapp-sub001/internal/middleware"
	"github.com/Jsunwilke/employeeapp-sub001/internal/pkg/response"
	"github.com/Jsunwilke/employeeapp-sub001/internal/repositories"
)

// Handlers is the server-side session orchestrator: it binds edit requests
// to the lock manager and the autosave coordinator.
type Handlers struct {
	locks     *locks.Manager
	coord     *autosave.Coordinator
	users     *repositories.UserRepository
	roster    *repositories.RosterRepository
	leaseTime time.Duration
}

func NewHandlers(lockMgr *locks.Manager, coord *autosave.Coordinator, users *repositories.UserRepository, roster *repositories.RosterRepository, lease time.Duration) *Handlers {
	return &Handlers{locks: lockMgr, coord: coord, users: users, roster: roster, leaseTime: lease}
}

type lockRequest struct {
	ContainerID  string `json:"container_id"`
	FieldOwnerID string `json:"field_owner_id"`
	DeviceID     string `json:"device_id"`
}

func (h *Handlers) AcquireLockHandler(w http.ResponseWriter, r *http.Request) {
	holderID, displayName, ok := h.holder(w, r)
	if !ok {
		return
	}
	var body lockRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.ContainerID == "" || body.FieldOwnerID == "" {
		response.RespondWithError(w, http.StatusBadRequest, "container_id and field_owner_id are required")
		return
	}
	holderID = withDevice(holderID, body.DeviceID)

	lock, err := h.locks.Acquire(r.Context(), body.ContainerID, body.FieldOwnerID, holderID, displayName, h.leaseTime)
	if err != nil {
		writeLockError(w, err)
		return
	}
	response.RespondWithJSON(w, http.StatusOK, map[string]interface{}{
		"lock":           lock,
		"renew_after_ms": locks.RenewInterval(h.leaseTime).Milliseconds(),
	})
}

func (h *Handlers) RenewLockHandler(w http.ResponseWriter, r *http.Request) {
	holderID, _, ok := h.holder(w, r)
	if !ok {
		return
	}
	var body lockRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.ContainerID == "" || body.FieldOwnerID == "" {
		response.RespondWithError(w, http.StatusBadRequest, "container_id and field_owner_id are required")
		return
	}

	err := h.locks.Renew(r.Context(), body.ContainerID, body.FieldOwnerID, withDevice(holderID, body.DeviceID), h.leaseTime)
	if err != nil {
		writeLockError(w, err)
		return
	}
	response.RespondWithJSON(w, http.StatusOK, map[string]string{"status": "renewed"})
}

func (h *Handlers) ReleaseLockHandler(w http.ResponseWriter, r *http.Request) {
	holderID, _, ok := h.holder(w, r)
	if !ok {
		return
	}
	var body lockRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.ContainerID == "" || body.FieldOwnerID == "" {
		response.RespondWithError(w, http.StatusBadRequest, "container_id and field_owner_id are required")
		return
	}

	err := h.locks.Release(r.Context(), body.ContainerID, body.FieldOwnerID, withDevice(holderID, body.DeviceID))
	if err != nil {
		writeLockError(w, err)
		return
	}
	response.RespondWithJSON(w, http.StatusOK, map[string]string{"status": "released"})
}

func (h *Handlers) SweepLocksHandler(w http.ResponseWriter, r *http.Request) {
	var body struct {
		ContainerID string `json:"container_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.ContainerID == "" {
		response.RespondWithError(w, http.StatusBadRequest, "container_id is required")
		return
	}

	swept, err := h.locks.SweepStale(r.Context(), body.ContainerID)
	if err != nil {
		writeLockError(w, err)
		return
	}
	response.RespondWithJSON(w, http.StatusOK, map[string]int{"swept": swept})
}

func (h *Handlers) ActiveLocksHandler(w http.ResponseWriter, r *http.Request) {
	containerID := r.URL.Query().Get("container_id")
	if containerID == "" {
		response.RespondWithError(w, http.StatusBadRequest, "container_id is required")
		return
	}

	active, err := h.locks.Active(r.Context(), containerID)
	if err != nil {
		writeLockError(w, err)
		return
	}
	response.RespondWithJSON(w, http.StatusOK, active)
}

type editRequest struct {
	ContainerID  string `json:"container_id"`
	FieldOwnerID string `json:"field_owner_id"`
	Field        string `json:"field"`
	DeviceID     string `json:"device_id"`
	Value        string `json:"value"`
}

// BeginEditHandler acquires the field lease and opens an autosave session
// seeded with the currently persisted value.
func (h *Handlers) BeginEditHandler(w http.ResponseWriter, r *http.Request) {
	holderID, displayName, ok := h.holder(w, r)
	if !ok {
		return
	}
	var body editRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.ContainerID == "" || body.FieldOwnerID == "" || body.Field == "" {
		response.RespondWithError(w, http.StatusBadRequest, "container_id, field_owner_id and field are required")
		return
	}
	holderID = withDevice(holderID, body.DeviceID)

	if _, err := h.locks.Acquire(r.Context(), body.ContainerID, body.FieldOwnerID, holderID, displayName, h.leaseTime); err != nil {
		writeLockError(w, err)
		return
	}

	initial, err := h.roster.GetField(r.Context(), body.FieldOwnerID, body.Field)
	if err != nil {
		if errors.Is(err, repositories.ErrRosterEntryNotFound) {
			response.RespondWithError(w, http.StatusNotFound, "Roster entry not found")
		} else {
			response.RespondWithError(w, http.StatusBadRequest, err.Error())
		}
		return
	}

	key := autosave.FieldKey{ContainerID: body.ContainerID, FieldOwnerID: body.FieldOwnerID, Field: body.Field}
	if err := h.coord.Begin(r.Context(), key, holderID, initial); err != nil && !errors.Is(err, autosave.ErrSessionExists) {
		writeLockError(w, err)
		return
	}
	response.RespondWithJSON(w, http.StatusOK, map[string]string{"value": initial})
}

func (h *Handlers) EditValueHandler(w http.ResponseWriter, r *http.Request) {
	holderID, _, ok := h.holder(w, r)
	if !ok {
		return
	}
	var body editRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		response.RespondWithError(w, http.StatusBadRequest, "Invalid request")
		return
	}

	key := autosave.FieldKey{ContainerID: body.ContainerID, FieldOwnerID: body.FieldOwnerID, Field: body.Field}
	if err := h.coord.Change(key, withDevice(holderID, body.DeviceID), body.Value); err != nil {
		switch {
		case errors.Is(err, autosave.ErrNoSession):
			response.RespondWithError(w, http.StatusConflict, "No edit session for this field")
		case errors.Is(err, autosave.ErrSessionClosed):
			response.RespondWithError(w, http.StatusConflict, "Edit session lost its lease; re-acquire to continue")
		case errors.Is(err, locks.ErrNotHolder):
			response.RespondWithError(w, http.StatusConflict, "Edit session belongs to another holder")
		default:
			response.RespondWithError(w, http.StatusInternalServerError, "Server error")
		}
		return
	}
	response.RespondWithJSON(w, http.StatusOK, map[string]string{"status": "buffered"})
}

// EndEditHandler flushes any pending write and releases the lease.
func (h *Handlers) EndEditHandler(w http.ResponseWriter, r *http.Request) {
	holderID, _, ok := h.holder(w, r)
	if !ok {
		return
	}
	var body editRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		response.RespondWithError(w, http.StatusBadRequest, "Invalid request")
		return
	}

	key := autosave.FieldKey{ContainerID: body.ContainerID, FieldOwnerID: body.FieldOwnerID, Field: body.Field}
	if err := h.coord.End(r.Context(), key, withDevice(holderID, body.DeviceID)); err != nil {
		switch {
		case errors.Is(err, autosave.ErrNoSession):
			response.RespondWithError(w, http.StatusConflict, "No edit session for this field")
		case errors.Is(err, locks.ErrNotHolder):
			response.RespondWithError(w, http.StatusConflict, "Edit session belongs to another holder")
		default:
			log.Printf("Failed to end edit session %v: %v", key, err)
			response.RespondWithError(w, http.StatusInternalServerError, "Flush failed")
		}
		return
	}
	response.RespondWithJSON(w, http.StatusOK, map[string]string{"status": "saved"})
}

func (h *Handlers) holder(w http.ResponseWriter, r *http.Request) (holderID, displayName string, ok bool) {
	id, found := middleware.GetUserIDFromContext(r.Context())
	if !found {
		response.RespondWithError(w, http.StatusUnauthorized, "User not authenticated")
		return "", "", false
	}

	displayName = "Unknown"
	if user, err := h.users.GetByID(r.Context(), id); err == nil {
		if user.DisplayName != "" {
			displayName = user.DisplayName
		} else {
			displayName = user.Username
		}
	}
	return strconv.Itoa(id), displayName, true
}

// withDevice lets two devices of the same user contend like strangers, per
// the one-holder-per-field rule.
func withDevice(holderID, deviceID string) string {
	if deviceID == "" {
		return holderID
	}
	return holderID + ":" + deviceID
}

func writeLockError(w http.ResponseWriter, err error) {
	var locked *locks.AlreadyLockedError
	switch {
	case errors.As(err, &locked):
		response.RespondWithJSON(w, http.StatusConflict, map[string]string{
			"error":     "field is locked",
			"locked_by": locked.Holder,
		})
	case errors.Is(err, locks.ErrNotHolder):
		response.RespondWithError(w, http.StatusConflict, "Lease not held")
	default:
		log.Printf("lock handler error: %v", err)
		response.RespondWithError(w, http.StatusServiceUnavailable, "Lock store unavailable")
	}
}
