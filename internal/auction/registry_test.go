package auction_test

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"BidVault/internal/auction"
	"BidVault/internal/auctionerrors"
)

// ============================================================================
// Lookup
// ============================================================================

func TestRegistryGetUnknown(t *testing.T) {
	r := auction.NewRegistry()
	_, err := r.Get(uuid.New())
	if !errors.Is(err, auctionerrors.ErrAuctionNotFound) {
		t.Fatalf("err = %v, want ErrAuctionNotFound", err)
	}
}

func TestRegistryGetReturnsSnapshot(t *testing.T) {
	r := auction.NewRegistry()
	a := newAuction(t)
	r.Add(a)

	before, err := r.Get(a.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}

	bidder := uuid.New()
	if err := r.WithLock(a.ID, func(a *auction.Auction) error {
		a.ApplyBid(bidder, 1000)
		return nil
	}); err != nil {
		t.Fatalf("WithLock: %v", err)
	}

	// The copy taken earlier must not observe the later mutation.
	if before.CurrentPrice != 500 {
		t.Fatalf("stale snapshot price = %d, want 500", before.CurrentPrice)
	}
	after, err := r.Get(a.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if after.CurrentPrice != 1000 || after.BidCount != 1 {
		t.Fatalf("price = %d, count = %d, want 1000, 1", after.CurrentPrice, after.BidCount)
	}
}

func TestRegistryExpired(t *testing.T) {
	r := auction.NewRegistry()
	past := newAuction(t)
	future, err := auction.New("Road bike", uuid.New(), 500, 5, t0, t0.Add(48*time.Hour))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	done := newAuction(t)
	if err := done.Finalize(); err != nil {
		t.Fatalf("Finalize: %v", err)
	}
	r.Add(past)
	r.Add(future)
	r.Add(done)

	ids := r.Expired(t0.Add(2 * time.Hour))
	if len(ids) != 1 || ids[0] != past.ID {
		t.Fatalf("Expired = %v, want [%s]", ids, past.ID)
	}
}

// ============================================================================
// Read paths vs concurrent mutation
// ============================================================================

// Readers (Get, List, Expired) and WithLock writers must synchronize on the
// per-auction lock: the sweeper polls Expired while bids move EndDate through
// anti-sniping extensions. Run with -race.
func TestRegistryReadsDuringConcurrentBidding(t *testing.T) {
	r := auction.NewRegistry()
	a, err := auction.New("Road bike", uuid.New(), 500, 5, t0, t0.Add(5*time.Minute))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	r.Add(a)
	id := a.ID

	const rounds = 200
	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		bidder := uuid.New()
		for i := 0; i < rounds; i++ {
			now := t0.Add(time.Duration(i) * time.Second)
			if err := r.WithLock(id, func(a *auction.Auction) error {
				a.ExtendIfSniped(now)
				a.ApplyBid(bidder, a.CurrentPrice+1)
				return nil
			}); err != nil {
				t.Errorf("WithLock: %v", err)
				return
			}
		}
	}()

	for g := 0; g < 3; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			var last int64
			for i := 0; i < rounds; i++ {
				snap, err := r.Get(id)
				if err != nil {
					t.Errorf("Get: %v", err)
					return
				}
				if snap.CurrentPrice < last {
					t.Errorf("price went backwards: %d after %d", snap.CurrentPrice, last)
					return
				}
				last = snap.CurrentPrice
				r.List()
				r.Expired(t0.Add(time.Duration(i) * time.Second))
			}
		}()
	}
	wg.Wait()

	got, err := r.Get(id)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.CurrentPrice != 500+rounds {
		t.Fatalf("final price = %d, want %d", got.CurrentPrice, 500+rounds)
	}
	if got.BidCount != rounds {
		t.Fatalf("bid count = %d, want %d", got.BidCount, rounds)
	}
}
