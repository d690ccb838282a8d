package abuse

import (
	"net/netip"
	"sort"
	"sync"
	"time"

	"github.com/samber/lo"
)

// Ban is a snapshot of one active ban.
type Ban struct {
	Addr    netip.Addr
	Expires time.Time
}

// BanRegistry is the temporary denylist of addresses kicked for flooding.
// Expired entries are removed lazily by the first lookup that sees them.
type BanRegistry struct {
	mu   sync.Mutex
	bans map[netip.Addr]time.Time
	now  func() time.Time
}

func NewBanRegistry() *BanRegistry {
	return &BanRegistry{bans: make(map[netip.Addr]time.Time), now: time.Now}
}

// Ban inserts or overwrites the expiry of addr with now+duration.
func (r *BanRegistry) Ban(addr netip.Addr, duration time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.bans[addr] = r.now().Add(duration)
}

// IsBanned reports whether addr is still banned, and forgets it once the ban is over.
func (r *BanRegistry) IsBanned(addr netip.Addr) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	expires, ok := r.bans[addr]
	if !ok {
		return false
	}
	if r.now().Before(expires) {
		return true
	}
	delete(r.bans, addr)
	return false
}

// Active lists the bans that have not expired yet, soonest expiry first.
// Expired entries are left for IsBanned to collect.
func (r *BanRegistry) Active() []Ban {
	r.mu.Lock()
	now := r.now()
	active := lo.FilterMapToSlice(r.bans, func(addr netip.Addr, expires time.Time) (Ban, bool) {
		return Ban{Addr: addr, Expires: expires}, now.Before(expires)
	})
	r.mu.Unlock()

	sort.Slice(active, func(i, j int) bool {
		if active[i].Expires.Equal(active[j].Expires) {
			return active[i].Addr.Less(active[j].Addr)
		}
		return active[i].Expires.Before(active[j].Expires)
	})
	return active
}

// Len counts stored entries, expired ones not yet collected included.
func (r *BanRegistry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.bans)
}
