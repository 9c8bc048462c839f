package editing

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/Jsunwilke/employeeapp-sub001/internal/models"
	"github.com/Jsunwilke/employeeapp-sub001/internal/pkg/response"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

const (
	writeWait  = 10 * time.Second
	pingPeriod = 30 * time.Second
)

// WatchLocksHandler upgrades to a websocket and pushes the active-lock
// snapshot for a container on every lock change — the "being edited by X"
// feed. The initial snapshot is sent immediately on connect.
func (h *Handlers) WatchLocksHandler(w http.ResponseWriter, r *http.Request) {
	containerID := r.URL.Query().Get("container_id")
	if containerID == "" {
		response.RespondWithError(w, http.StatusBadRequest, "container_id is required")
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("Websocket upgrade failed: %v", err)
		return
	}

	// The subscription must outlive the request context, which dies when
	// this handler returns; it is tied to the connection instead.
	ctx, cancel := context.WithCancel(context.Background())

	snapshots, err := h.locks.Watch(ctx, containerID)
	if err != nil {
		cancel()
		conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseInternalServerErr, "lock store unavailable"))
		conn.Close()
		return
	}

	// Reader exists only to detect the client going away.
	go func() {
		defer cancel()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	go h.writePump(conn, containerID, snapshots)
}

func (h *Handlers) writePump(conn *websocket.Conn, containerID string, snapshots <-chan []models.Lock) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		conn.Close()
	}()

	for {
		select {
		case snap, ok := <-snapshots:
			if !ok {
				conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if snap == nil {
				snap = []models.Lock{}
			}
			payload, _ := json.Marshal(map[string]interface{}{
				"type":         "locks",
				"container_id": containerID,
				"locks":        snap,
				"timestamp":    time.Now().UTC(),
			})
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				return
			}
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
