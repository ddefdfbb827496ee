package bid_test

import (
	"testing"
	"time"

	"github.com/google/uuid"

	"BidVault/internal/bid"
)

func newBid(auctionID, bidderID uuid.UUID, amount, deposit int64, at time.Time) *bid.Bid {
	return &bid.Bid{
		ID:            uuid.New(),
		AuctionID:     auctionID,
		BidderID:      bidderID,
		Amount:        amount,
		IsTopBid:      true,
		LockedDeposit: deposit,
		Status:        bid.StatusActive,
		CreatedAt:     at,
	}
}

func TestStore_SupersedeTop(t *testing.T) {
	s := bid.NewStore(nil)
	auctionID := uuid.New()
	now := time.Now().UTC()

	first := newBid(auctionID, uuid.New(), 100, 5, now)
	s.Append(first)

	prev := s.SupersedeTop(auctionID)
	if prev == nil || prev.ID != first.ID {
		t.Fatal("expected first bid to be superseded")
	}
	if prev.IsTopBid || prev.Status != bid.StatusOutbid {
		t.Errorf("superseded bid: isTop=%v status=%s", prev.IsTopBid, prev.Status)
	}
}

func TestStore_SupersedeTopEmptyAuction(t *testing.T) {
	s := bid.NewStore(nil)
	if prev := s.SupersedeTop(uuid.New()); prev != nil {
		t.Errorf("expected nil, got %+v", prev)
	}
}

func TestStore_TopBidsDescending(t *testing.T) {
	s := bid.NewStore(nil)
	auctionID := uuid.New()
	now := time.Now().UTC()

	s.Append(newBid(auctionID, uuid.New(), 100, 5, now))
	s.Append(newBid(auctionID, uuid.New(), 300, 10, now.Add(time.Second)))
	s.Append(newBid(auctionID, uuid.New(), 200, 5, now.Add(2*time.Second)))

	top := s.TopBids(auctionID, 2)
	if len(top) != 2 {
		t.Fatalf("got %d bids, want 2", len(top))
	}
	if top[0].Amount != 300 || top[1].Amount != 200 {
		t.Errorf("order: got %d, %d", top[0].Amount, top[1].Amount)
	}
}

func TestStore_Rank(t *testing.T) {
	s := bid.NewStore(nil)
	auctionID := uuid.New()
	now := time.Now().UTC()

	s.Append(newBid(auctionID, uuid.New(), 100, 5, now))
	s.Append(newBid(auctionID, uuid.New(), 300, 10, now.Add(time.Second)))
	s.Append(newBid(auctionID, uuid.New(), 200, 5, now.Add(2*time.Second)))

	cases := []struct {
		amount int64
		want   int64
	}{
		{300, 1},
		{200, 2},
		{100, 3},
	}
	for _, tc := range cases {
		if got := s.Rank(auctionID, tc.amount); got != tc.want {
			t.Errorf("Rank(%d) = %d, want %d", tc.amount, got, tc.want)
		}
	}

	if got := s.Rank(uuid.New(), 100); got != 1 {
		t.Errorf("Rank on empty auction = %d, want 1", got)
	}
}

func TestStore_UnreleasedByBidderChronological(t *testing.T) {
	s := bid.NewStore(nil)
	auctionID := uuid.New()
	bidderID := uuid.New()
	now := time.Now().UTC()

	s.Append(newBid(auctionID, bidderID, 100, 5, now))
	s.Append(newBid(auctionID, bidderID, 200, 5, now.Add(time.Second)))
	s.Append(newBid(auctionID, uuid.New(), 300, 15, now.Add(2*time.Second)))

	history := s.UnreleasedByBidder(auctionID, bidderID)
	if len(history) != 2 {
		t.Fatalf("got %d bids, want 2", len(history))
	}
	if history[0].Amount != 100 || history[1].Amount != 200 {
		t.Errorf("chronological order violated: %d, %d", history[0].Amount, history[1].Amount)
	}
}

func TestStore_MarkSettledRefundedExcludedFromHistory(t *testing.T) {
	s := bid.NewStore(nil)
	auctionID := uuid.New()
	bidderID := uuid.New()
	now := time.Now().UTC()

	s.Append(newBid(auctionID, bidderID, 100, 5, now))
	s.Append(newBid(auctionID, bidderID, 200, 5, now.Add(time.Second)))

	n := s.MarkSettled(auctionID, bidderID, bid.StatusRefunded, true)
	if n != 2 {
		t.Errorf("marked %d bids, want 2", n)
	}
	if got := s.UnreleasedByBidder(auctionID, bidderID); len(got) != 0 {
		t.Errorf("refunded bids still in unreleased history: %d", len(got))
	}
}

func TestStore_MarkSettledWonKeepsDepositUnrefunded(t *testing.T) {
	s := bid.NewStore(nil)
	auctionID := uuid.New()
	bidderID := uuid.New()

	s.Append(newBid(auctionID, bidderID, 100, 5, time.Now().UTC()))
	s.MarkSettled(auctionID, bidderID, bid.StatusWon, false)

	bids := s.UnreleasedByBidder(auctionID, bidderID)
	if len(bids) != 1 {
		t.Fatalf("got %d bids, want 1", len(bids))
	}
	if bids[0].Status != bid.StatusWon || bids[0].DepositRefunded {
		t.Errorf("winner bid: status=%s refunded=%v", bids[0].Status, bids[0].DepositRefunded)
	}
}

func TestStore_UserBidsNewestFirst(t *testing.T) {
	s := bid.NewStore(nil)
	bidderID := uuid.New()
	now := time.Now().UTC()

	s.Append(newBid(uuid.New(), bidderID, 100, 5, now))
	s.Append(newBid(uuid.New(), bidderID, 200, 10, now.Add(time.Second)))

	bids := s.UserBids(bidderID)
	if len(bids) != 2 {
		t.Fatalf("got %d bids, want 2", len(bids))
	}
	if bids[0].Amount != 200 {
		t.Errorf("newest first violated: got %d", bids[0].Amount)
	}
}
