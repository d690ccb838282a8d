package runtime

import (
	"chat-relay/domain"
	"net/netip"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func TestRegistry_Register_Unregister(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry()
	addr := netip.MustParseAddr("10.0.0.1")
	id1, id2 := uuid.New(), uuid.New()

	// Given no session is connected
	req.Zero(registry.Len())
	req.Empty(registry.Sessions())

	// When two sessions register
	registry.Register(id1, addr)
	registry.Register(id2, addr)

	// Then both are listed, oldest first
	sessions := registry.Sessions()
	req.Len(sessions, 2)
	req.ElementsMatch([]uuid.UUID{id1, id2}, []uuid.UUID{sessions[0].ID, sessions[1].ID})
	req.Equal(domain.DisplayToken(addr), sessions[0].Token)
	req.False(sessions[1].Since.Before(sessions[0].Since))

	// When one leaves, twice
	registry.Unregister(id1)
	registry.Unregister(id1)

	// Then only the other remains
	req.Equal(1, registry.Len())
	req.Equal(id2, registry.Sessions()[0].ID)
}

func TestRegistry_Concurrent(t *testing.T) {
	registry := NewRegistry()
	addr := netip.MustParseAddr("10.0.0.2")

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			id := uuid.New()
			registry.Register(id, addr)
			_ = registry.Sessions()
			registry.Unregister(id)
		}()
	}
	wg.Wait()
	require.Zero(t, registry.Len())
}

func TestRegistry_Nil_Is_Noop(t *testing.T) {
	var registry *Registry
	require.NotPanics(t, func() {
		registry.Register(uuid.New(), netip.MustParseAddr("10.0.0.3"))
		registry.Unregister(uuid.New())
	})
	require.Nil(t, registry.Sessions())
	require.Zero(t, registry.Len())
}
