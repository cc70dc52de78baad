// Package presence tracks which users currently hold live connections.
// State is process-local and rebuilt from scratch on every start; it is
// never a source of truth for conversation or message data.
package presence

import (
	"sync"

	"yalla-chat/contract"
)

// Registry maps a user to the set of sinks for their live connections.
// A user may hold several entries at once (multiple devices or tabs).
// Registry is safe for concurrent use and never blocks on store I/O.
type Registry struct {
	mu          sync.RWMutex
	Connections map[string]map[string]contract.EventSink // userID -> connID -> sink
}

func NewRegistry() *Registry {
	return &Registry{
		Connections: make(map[string]map[string]contract.EventSink),
	}
}

// Register adds a live connection for a user. The connID must be unique
// per connection; registering the same id twice replaces the sink.
func (r *Registry) Register(userID, connID string, sink contract.EventSink) {
	r.mu.Lock()
	defer r.mu.Unlock()

	conns, ok := r.Connections[userID]
	if !ok {
		conns = make(map[string]contract.EventSink)
		r.Connections[userID] = conns
	}
	conns[connID] = sink
}

// Unregister removes one connection. When the last one goes, the user
// entry is dropped entirely so the map never leaks offline users.
func (r *Registry) Unregister(userID, connID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	conns, ok := r.Connections[userID]
	if !ok {
		return
	}
	delete(conns, connID)
	if len(conns) == 0 {
		delete(r.Connections, userID)
	}
}

// SinksFor returns the live sinks for push delivery; nil if offline.
func (r *Registry) SinksFor(userID string) []contract.EventSink {
	r.mu.RLock()
	defer r.mu.RUnlock()

	conns, ok := r.Connections[userID]
	if !ok {
		return nil
	}
	sinks := make([]contract.EventSink, 0, len(conns))
	for _, sink := range conns {
		sinks = append(sinks, sink)
	}
	return sinks
}

func (r *Registry) Online(userID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.Connections[userID]) > 0
}
