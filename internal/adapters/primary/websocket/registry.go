package websocket

import (
	"sync"

	"github.com/fidelitytrust/notification-service/internal/core/domain"
)

// Registry tracks which recipient scope each live connection is bound to.
// A scope may have any number of simultaneous connections (multiple tabs or
// devices); a connection binds to at most one scope at a time.
//
// The registry is purely in-memory: a process restart drops all presence and
// every client must rejoin. Mutations are fast and synchronous; no I/O ever
// happens inside the critical section.
type Registry struct {
	mu sync.RWMutex

	// scopes maps a recipient scope to its bound connections.
	scopes map[domain.RecipientScope]map[*Client]struct{}

	// handles is the reverse index, keyed by connection. Disconnects only
	// carry the handle, so unbinding scans here rather than by scope.
	handles map[*Client]domain.RecipientScope
}

// NewRegistry creates an empty presence registry.
func NewRegistry() *Registry {
	return &Registry{
		scopes:  make(map[domain.RecipientScope]map[*Client]struct{}),
		handles: make(map[*Client]domain.RecipientScope),
	}
}

// Bind attaches a connection to a scope. If the connection is already bound
// to a different scope, the old binding is removed first.
func (r *Registry) Bind(scope domain.RecipientScope, c *Client) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if old, ok := r.handles[c]; ok {
		if old == scope {
			return
		}
		r.removeLocked(old, c)
	}

	if r.scopes[scope] == nil {
		r.scopes[scope] = make(map[*Client]struct{})
	}
	r.scopes[scope][c] = struct{}{}
	r.handles[c] = scope
}

// Unbind removes every binding for the connection. It is a no-op for
// connections that never joined.
func (r *Registry) Unbind(c *Client) {
	r.mu.Lock()
	defer r.mu.Unlock()

	scope, ok := r.handles[c]
	if !ok {
		return
	}
	r.removeLocked(scope, c)
}

// removeLocked drops c from a scope's set. Caller must hold mu.
func (r *Registry) removeLocked(scope domain.RecipientScope, c *Client) {
	if set, ok := r.scopes[scope]; ok {
		delete(set, c)
		if len(set) == 0 {
			delete(r.scopes, scope)
		}
	}
	delete(r.handles, c)
}

// Lookup returns a snapshot of the connections bound to the scope. The copy
// lets callers deliver outside the lock.
func (r *Registry) Lookup(scope domain.RecipientScope) []*Client {
	r.mu.RLock()
	defer r.mu.RUnlock()

	set, ok := r.scopes[scope]
	if !ok {
		return nil
	}

	clients := make([]*Client, 0, len(set))
	for c := range set {
		clients = append(clients, c)
	}
	return clients
}

// ScopeOf returns the scope a connection is currently bound to.
func (r *Registry) ScopeOf(c *Client) (domain.RecipientScope, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	scope, ok := r.handles[c]
	return scope, ok
}

// ConnectionCount returns the total number of bound connections.
func (r *Registry) ConnectionCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.handles)
}
