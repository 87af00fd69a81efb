package relay

import (
	"encoding/json"
	"log"
)

// Inbound event types.
const (
	EventJoin  = "player:join"
	EventMove  = "player:move"
	EventShoot = "player:shoot"
)

// Outbound event types.
const (
	EventJoined = "player:joined"
	EventMoved  = "player:moved"
	EventShot   = "player:shot"
	EventLeft   = "player:left"
)

// Frame is a single websocket text message.
type Frame struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

type Position struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// Player is the last-known transient state of a joined connection.
type Player struct {
	Username string   `json:"username"`
	Position Position `json:"position"`
	Health   int      `json:"health"`
	Shield   int      `json:"shield"`
}

// PlayerSnapshot is a Player keyed by its connection id.
type PlayerSnapshot struct {
	ID string `json:"id"`
	Player
}

type movedPayload struct {
	ID       string   `json:"id"`
	Position Position `json:"position"`
}

type leftPayload struct {
	ID string `json:"id"`
}

// withID copies a free-form payload and stamps the originating connection
// id onto it. The server id always wins over a client supplied "id".
func withID(id string, data map[string]any) map[string]any {
	out := make(map[string]any, len(data)+1)
	for k, v := range data {
		out[k] = v
	}
	out["id"] = id
	return out
}

func mustJSON(v any) json.RawMessage {
	b, err := json.Marshal(v)
	if err != nil {
		log.Printf("relay: failed to marshal frame payload: %v", err)
		return nil
	}
	return b
}
