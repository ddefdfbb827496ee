// Package bid holds the append-only bid records for all auctions. Bids are
// never deleted; settlement flips their status and deposit-refunded flag.
// The store is indexed per auction and per (auction, bidder) so deposit
// history replay does not scan unrelated bids.
package bid

import (
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Status is the lifecycle of a single bid.
type Status uint8

const (
	StatusActive Status = iota
	StatusOutbid
	StatusWon
	StatusLost
	StatusRefunded
)

func (s Status) String() string {
	switch s {
	case StatusActive:
		return "active"
	case StatusOutbid:
		return "outbid"
	case StatusWon:
		return "won"
	case StatusLost:
		return "lost"
	case StatusRefunded:
		return "refunded"
	}
	return "unknown"
}

// Bid is one accepted bid. LockedDeposit is the incremental amount this
// specific bid caused to be locked, not the bidder's cumulative total.
type Bid struct {
	ID              uuid.UUID
	AuctionID       uuid.UUID
	BidderID        uuid.UUID
	Amount          int64
	IsTopBid        bool
	LockedDeposit   int64
	DepositRefunded bool
	Status          Status
	CreatedAt       time.Time
}

type bidderKey struct {
	auctionID uuid.UUID
	bidderID  uuid.UUID
}

// Store is the concurrency-safe bid registry.
type Store struct {
	mu       sync.RWMutex
	byAuction map[uuid.UUID][]*Bid
	byBidder  map[bidderKey][]*Bid
	byUser    map[uuid.UUID][]*Bid
	auditCh   chan<- Bid
}

// NewStore creates a bid store. auditCh, if non-nil, receives a snapshot of
// every bid on append and on status change for durable audit.
func NewStore(auditCh chan<- Bid) *Store {
	return &Store{
		byAuction: make(map[uuid.UUID][]*Bid),
		byBidder:  make(map[bidderKey][]*Bid),
		byUser:    make(map[uuid.UUID][]*Bid),
		auditCh:   auditCh,
	}
}

func (s *Store) emit(b *Bid) {
	if s.auditCh != nil {
		s.auditCh <- *b
	}
}

// Append records a new accepted bid.
func (s *Store) Append(b *Bid) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := bidderKey{auctionID: b.AuctionID, bidderID: b.BidderID}
	s.byAuction[b.AuctionID] = append(s.byAuction[b.AuctionID], b)
	s.byBidder[key] = append(s.byBidder[key], b)
	s.byUser[b.BidderID] = append(s.byUser[b.BidderID], b)
	s.emit(b)
}

// SupersedeTop flips the current top bid (if any) to outbid and returns it.
func (s *Store) SupersedeTop(auctionID uuid.UUID) *Bid {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, b := range s.byAuction[auctionID] {
		if b.IsTopBid {
			b.IsTopBid = false
			b.Status = StatusOutbid
			s.emit(b)
			return b
		}
	}
	return nil
}

// UnreleasedByBidder returns the bidder's bids on one auction whose deposits
// have not been released, in chronological order. This is the history the
// deposit calculator replays.
func (s *Store) UnreleasedByBidder(auctionID, bidderID uuid.UUID) []Bid {
	s.mu.RLock()
	defer s.mu.RUnlock()

	key := bidderKey{auctionID: auctionID, bidderID: bidderID}
	out := make([]Bid, 0, len(s.byBidder[key]))
	for _, b := range s.byBidder[key] {
		if !b.DepositRefunded {
			out = append(out, *b)
		}
	}
	return out
}

// UnreleasedByAuction returns all bids on an auction whose deposits have not
// been released, in chronological order. Settlement groups these by bidder.
func (s *Store) UnreleasedByAuction(auctionID uuid.UUID) []Bid {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Bid, 0, len(s.byAuction[auctionID]))
	for _, b := range s.byAuction[auctionID] {
		if !b.DepositRefunded {
			out = append(out, *b)
		}
	}
	return out
}

// TopBids returns up to limit bids on an auction, highest amount first.
func (s *Store) TopBids(auctionID uuid.UUID, limit int) []Bid {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Bid, 0, len(s.byAuction[auctionID]))
	for _, b := range s.byAuction[auctionID] {
		out = append(out, *b)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Amount != out[j].Amount {
			return out[i].Amount > out[j].Amount
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

// Rank returns the 1-based position an amount holds among an auction's bids:
// one plus the number of bids with a strictly higher amount.
func (s *Store) Rank(auctionID uuid.UUID, amount int64) int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var higher int64
	for _, b := range s.byAuction[auctionID] {
		if b.Amount > amount {
			higher++
		}
	}
	return higher + 1
}

// UserBids returns all of a user's bids across auctions, newest first.
func (s *Store) UserBids(bidderID uuid.UUID) []Bid {
	s.mu.RLock()
	defer s.mu.RUnlock()

	bids := s.byUser[bidderID]
	out := make([]Bid, 0, len(bids))
	for i := len(bids) - 1; i >= 0; i-- {
		out = append(out, *bids[i])
	}
	return out
}

// MarkSettled transitions all of one bidder's bids on an auction to the given
// terminal status. refunded marks the deposits as released (losers); the
// winner's deposits are consumed, not refunded, so the flag stays false.
func (s *Store) MarkSettled(auctionID, bidderID uuid.UUID, status Status, refunded bool) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := bidderKey{auctionID: auctionID, bidderID: bidderID}
	n := 0
	for _, b := range s.byBidder[key] {
		b.IsTopBid = false
		b.Status = status
		b.DepositRefunded = refunded
		s.emit(b)
		n++
	}
	return n
}
