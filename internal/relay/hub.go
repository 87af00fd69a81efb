package relay

import (
	"sort"
	"sync"
)

const (
	defaultHealth = 100
	defaultShield = 0
)

// sender delivers a frame to one connection.
type sender interface {
	send(frame Frame) error
}

// Hub owns the set of open connections and the presence table. All
// mutation goes through its mutex; fan-out snapshots recipients under the
// lock and writes outside it.
type Hub struct {
	mu      sync.RWMutex
	peers   map[string]sender
	players map[string]*Player
}

func NewHub() *Hub {
	return &Hub{
		peers:   make(map[string]sender),
		players: make(map[string]*Player),
	}
}

func (h *Hub) attach(id string, p sender) {
	h.mu.Lock()
	h.peers[id] = p
	h.mu.Unlock()
}

// detach forgets the connection and returns its presence entry, if any.
func (h *Hub) detach(id string) (Player, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.peers, id)
	p, ok := h.players[id]
	if !ok {
		return Player{}, false
	}
	delete(h.players, id)
	return *p, true
}

// Join registers (or replaces) the presence entry for a connection.
func (h *Hub) Join(id, username string) Player {
	p := &Player{Username: username, Health: defaultHealth, Shield: defaultShield}
	h.mu.Lock()
	h.players[id] = p
	h.mu.Unlock()
	return *p
}

// Move updates the stored position. It reports false for connections
// that never joined.
func (h *Hub) Move(id string, pos Position) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	p, ok := h.players[id]
	if !ok {
		return false
	}
	p.Position = pos
	return true
}

func (h *Hub) Joined(id string) bool {
	h.mu.RLock()
	_, ok := h.players[id]
	h.mu.RUnlock()
	return ok
}

func (h *Hub) Player(id string) (Player, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	p, ok := h.players[id]
	if !ok {
		return Player{}, false
	}
	return *p, true
}

// Players returns a snapshot of every joined player ordered by id.
func (h *Hub) Players() []PlayerSnapshot {
	h.mu.RLock()
	out := make([]PlayerSnapshot, 0, len(h.players))
	for id, p := range h.players {
		out = append(out, PlayerSnapshot{ID: id, Player: *p})
	}
	h.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (h *Hub) ConnectionCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.peers)
}

// Broadcast sends frame to every connection except from. Delivery is best
// effort; it returns how many sends succeeded.
func (h *Hub) Broadcast(from string, frame Frame) int {
	h.mu.RLock()
	recipients := make([]sender, 0, len(h.peers))
	for id, p := range h.peers {
		if id != from {
			recipients = append(recipients, p)
		}
	}
	h.mu.RUnlock()

	delivered := 0
	for _, p := range recipients {
		if err := p.send(frame); err == nil {
			delivered++
		}
	}
	return delivered
}
