package auction

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"BidVault/internal/auctionerrors"
)

// Registry holds all live auctions and serializes mutation per auction.
// Bid placement and settlement for one auction run under the same exclusive
// section; different auctions proceed concurrently.
type Registry struct {
	mu       sync.RWMutex
	auctions map[uuid.UUID]*Auction
	locks    map[uuid.UUID]*sync.Mutex
}

func NewRegistry() *Registry {
	return &Registry{
		auctions: make(map[uuid.UUID]*Auction),
		locks:    make(map[uuid.UUID]*sync.Mutex),
	}
}

// Add registers an auction.
func (r *Registry) Add(a *Auction) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.auctions[a.ID] = a
	r.locks[a.ID] = &sync.Mutex{}
}

// Get returns a point-in-time copy of an auction, taken under the same
// per-auction lock that bid and settlement sections hold. Callers that
// mutate must use WithLock instead.
func (r *Registry) Get(id uuid.UUID) (Auction, error) {
	r.mu.RLock()
	a, ok := r.auctions[id]
	lock := r.locks[id]
	r.mu.RUnlock()

	if !ok {
		return Auction{}, auctionerrors.ErrAuctionNotFound
	}

	lock.Lock()
	defer lock.Unlock()
	return *a, nil
}

// WithLock runs fn while holding the per-auction exclusive lock. All reads
// and writes of price, deadline and top bidder inside a bid or settlement
// happen within one such section.
func (r *Registry) WithLock(id uuid.UUID, fn func(a *Auction) error) error {
	r.mu.RLock()
	a, ok := r.auctions[id]
	lock := r.locks[id]
	r.mu.RUnlock()

	if !ok {
		return auctionerrors.ErrAuctionNotFound
	}

	lock.Lock()
	defer lock.Unlock()
	return fn(a)
}

// List returns point-in-time copies of all registered auctions. Each copy is
// taken under its auction's lock, so individual entries are consistent even
// while bids land concurrently.
func (r *Registry) List() []Auction {
	r.mu.RLock()
	refs := make([]*Auction, 0, len(r.auctions))
	lks := make([]*sync.Mutex, 0, len(r.auctions))
	for id, a := range r.auctions {
		refs = append(refs, a)
		lks = append(lks, r.locks[id])
	}
	r.mu.RUnlock()

	out := make([]Auction, 0, len(refs))
	for i, a := range refs {
		lks[i].Lock()
		out = append(out, *a)
		lks[i].Unlock()
	}
	return out
}

// Expired returns the IDs of Active auctions whose deadline has passed.
// Used by the expiry sweeper to trigger settlement. Deadline and status are
// read under the per-auction lock so an anti-sniping extension landing
// concurrently is never half-observed.
func (r *Registry) Expired(now time.Time) []uuid.UUID {
	r.mu.RLock()
	refs := make(map[uuid.UUID]*Auction, len(r.auctions))
	lks := make(map[uuid.UUID]*sync.Mutex, len(r.auctions))
	for id, a := range r.auctions {
		refs[id] = a
		lks[id] = r.locks[id]
	}
	r.mu.RUnlock()

	var ids []uuid.UUID
	for id, a := range refs {
		lks[id].Lock()
		expired := a.Status == StatusActive && !now.Before(a.EndDate)
		lks[id].Unlock()
		if expired {
			ids = append(ids, id)
		}
	}
	return ids
}
