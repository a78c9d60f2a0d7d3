package app

import (
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/Maxim-5GHZ/WebRTCPhoneP2Pv2.0/internal/core"
	"github.com/Maxim-5GHZ/WebRTCPhoneP2Pv2.0/internal/domain"
)

// Registry maps a user id to the single live connection for that user.
// A second connection for the same id replaces the first
// (last-writer-wins); lookups never block on sends.
type Registry struct {
	mu    sync.RWMutex
	conns map[domain.UserID]core.SignalConnection
}

func NewRegistry() *Registry {
	return &Registry{conns: make(map[domain.UserID]core.SignalConnection)}
}

func (r *Registry) Register(id domain.UserID, conn core.SignalConnection) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.conns[id] = conn
	log.Info().Str("module", "app.registry").Int64("user_id", int64(id)).Msg("registered connection")
}

// Unregister removes the entry for id; no-op if absent.
func (r *Registry) Unregister(id domain.UserID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.conns, id)
	log.Info().Str("module", "app.registry").Int64("user_id", int64(id)).Msg("unregistered connection")
}

func (r *Registry) Get(id domain.UserID) (core.SignalConnection, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	conn, ok := r.conns[id]
	return conn, ok
}

// IDs returns a snapshot of every connected user id.
func (r *Registry) IDs() []domain.UserID {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]domain.UserID, 0, len(r.conns))
	for id := range r.conns {
		out = append(out, id)
	}
	return out
}

type connSnap struct {
	ID   domain.UserID
	Conn core.SignalConnection
}

// Snapshot returns every live (id, connection) pair for fan-out.
func (r *Registry) Snapshot() []connSnap {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]connSnap, 0, len(r.conns))
	for id, conn := range r.conns {
		out = append(out, connSnap{ID: id, Conn: conn})
	}
	return out
}
