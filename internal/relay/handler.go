package relay

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/net/websocket"

	"github.com/royale-relay/backend/internal/httpx"
)

const (
	writeTimeout  = 10 * time.Second
	recordTimeout = 5 * time.Second
)

// SessionRecorder persists join/leave times of relay connections.
type SessionRecorder interface {
	RecordJoin(ctx context.Context, connectionID, username string, at time.Time) error
	RecordLeave(ctx context.Context, connectionID string, at time.Time) error
}

// Handler serves the realtime websocket endpoint and the presence listing.
type Handler struct {
	hub      *Hub
	recorder SessionRecorder
	now      func() time.Time
}

// NewHandler builds the relay handlers. recorder may be nil.
func NewHandler(hub *Hub, recorder SessionRecorder) *Handler {
	return &Handler{hub: hub, recorder: recorder, now: time.Now}
}

// ServeWS upgrades GET requests to a websocket relay connection.
func (h *Handler) ServeWS(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", http.MethodGet)
		httpx.WriteError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	websocket.Server{Handler: h.handleConn}.ServeHTTP(w, r)
}

// ListPlayers returns every joined player.
func (h *Handler) ListPlayers(w http.ResponseWriter, r *http.Request) {
	httpx.WriteJSON(w, http.StatusOK, map[string]any{"players": h.hub.Players()})
}

type wsPeer struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

func (p *wsPeer) send(frame Frame) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	_ = p.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return websocket.JSON.Send(p.conn, frame)
}

func (h *Handler) handleConn(conn *websocket.Conn) {
	defer func() {
		_ = conn.Close()
	}()

	id := uuid.NewString()
	h.hub.attach(id, &wsPeer{conn: conn})
	defer h.disconnect(id)

	for {
		var frame Frame
		if err := websocket.JSON.Receive(conn, &frame); err != nil {
			if isDecodeError(err) {
				continue
			}
			return
		}
		h.dispatch(id, frame)
	}
}

func (h *Handler) dispatch(id string, frame Frame) {
	switch frame.Type {
	case EventJoin:
		h.join(id, frame.Payload)
	case EventMove:
		h.move(id, frame.Payload)
	case EventShoot:
		h.shoot(id, frame.Payload)
	}
}

func (h *Handler) join(id string, payload json.RawMessage) {
	data, ok := decodeObject(payload)
	if !ok {
		return
	}
	username, _ := data["username"].(string)
	h.hub.Join(id, username)
	h.hub.Broadcast(id, Frame{Type: EventJoined, Payload: mustJSON(withID(id, data))})

	if h.recorder != nil {
		ctx, cancel := context.WithTimeout(context.Background(), recordTimeout)
		defer cancel()
		if err := h.recorder.RecordJoin(ctx, id, username, h.now()); err != nil {
			log.Printf("relay: record join %s: %v", id, err)
		}
	}
}

func (h *Handler) move(id string, payload json.RawMessage) {
	var pos Position
	if err := json.Unmarshal(payload, &pos); err != nil {
		return
	}
	if !h.hub.Move(id, pos) {
		return
	}
	h.hub.Broadcast(id, Frame{Type: EventMoved, Payload: mustJSON(movedPayload{ID: id, Position: pos})})
}

// shoot relays a shot without storing it. Shots from connections that
// have not joined are dropped, the same as moves.
func (h *Handler) shoot(id string, payload json.RawMessage) {
	if !h.hub.Joined(id) {
		return
	}
	data, ok := decodeObject(payload)
	if !ok {
		return
	}
	h.hub.Broadcast(id, Frame{Type: EventShot, Payload: mustJSON(withID(id, data))})
}

func (h *Handler) disconnect(id string) {
	_, wasJoined := h.hub.detach(id)
	h.hub.Broadcast(id, Frame{Type: EventLeft, Payload: mustJSON(leftPayload{ID: id})})

	if wasJoined && h.recorder != nil {
		ctx, cancel := context.WithTimeout(context.Background(), recordTimeout)
		defer cancel()
		if err := h.recorder.RecordLeave(ctx, id, h.now()); err != nil {
			log.Printf("relay: record leave %s: %v", id, err)
		}
	}
}

// decodeObject decodes a JSON object payload. A missing payload yields an
// empty object.
func decodeObject(payload json.RawMessage) (map[string]any, bool) {
	data := map[string]any{}
	if len(payload) == 0 {
		return data, true
	}
	if err := json.Unmarshal(payload, &data); err != nil {
		return nil, false
	}
	if data == nil {
		data = map[string]any{}
	}
	return data, true
}

func isDecodeError(err error) bool {
	var syntaxErr *json.SyntaxError
	var typeErr *json.UnmarshalTypeError
	return errors.As(err, &syntaxErr) || errors.As(err, &typeErr)
}
