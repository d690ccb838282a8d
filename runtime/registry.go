package runtime

import (
	"chat-relay/domain"
	"net/netip"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"
)

// SessionInfo describes one connected participant.
type SessionInfo struct {
	ID    uuid.UUID
	Addr  netip.Addr
	Token string
	Since time.Time
}

// Registry tracks the sessions currently attached to the relay.
// It only serves introspection: routing goes through the EventBus.
// A nil *Registry is valid and records nothing.
type Registry struct {
	mu       sync.RWMutex
	sessions map[uuid.UUID]SessionInfo
}

func NewRegistry() *Registry {
	return &Registry{sessions: make(map[uuid.UUID]SessionInfo)}
}

func (r *Registry) Register(id uuid.UUID, addr netip.Addr) {
	if r == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions[id] = SessionInfo{
		ID:    id,
		Addr:  addr,
		Token: domain.DisplayToken(addr),
		Since: time.Now(),
	}
}

func (r *Registry) Unregister(id uuid.UUID) {
	if r == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sessions, id)
}

// Sessions returns the connected participants, oldest first.
func (r *Registry) Sessions() []SessionInfo {
	if r == nil {
		return nil
	}
	r.mu.RLock()
	sessions := lo.Values(r.sessions)
	r.mu.RUnlock()

	sort.Slice(sessions, func(i, j int) bool {
		if sessions[i].Since.Equal(sessions[j].Since) {
			return sessions[i].ID.String() < sessions[j].ID.String()
		}
		return sessions[i].Since.Before(sessions[j].Since)
	})
	return sessions
}

func (r *Registry) Len() int {
	if r == nil {
		return 0
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}
