package persistence_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"BidVault/internal/auction"
	"BidVault/internal/bid"
	"BidVault/internal/persistence"
	"BidVault/internal/query"
	"BidVault/internal/testutil"
	"BidVault/internal/wallet"
)

// ============================================================================
// Audit worker round-trip (requires Postgres, INTEGRATION_TEST=1)
// ============================================================================

func TestAuditWorkerWritesThroughToQueries(t *testing.T) {
	testutil.RequireIntegration(t)
	db, cleanup := testutil.SetupTestDB(t)
	defer cleanup()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	migrator := persistence.NewMigrator(db, "../../migrations", zerolog.Nop())
	if err := migrator.Up(ctx); err != nil {
		t.Fatalf("migrate up: %v", err)
	}

	walletCh := make(chan wallet.Transaction, 16)
	bidCh := make(chan bid.Bid, 16)
	auctionCh := make(chan auction.Auction, 16)

	worker := persistence.NewAuditWorker(db, walletCh, bidCh, auctionCh, 50, 5*time.Millisecond, nil, zerolog.Nop())
	done := make(chan struct{})
	go func() {
		worker.Run(ctx)
		close(done)
	}()

	userID := uuid.New()
	auctionID := uuid.New()
	bidID := uuid.New()
	now := time.Now().UTC().Truncate(time.Microsecond)

	walletCh <- wallet.Transaction{
		ID:           uuid.New(),
		UserID:       userID,
		Type:         wallet.TxCredit,
		Amount:       10000,
		Description:  "Wallet deposit",
		BalanceAfter: 10000,
		LockedAfter:  0,
		Status:       wallet.TxStatusCompleted,
		CreatedAt:    now,
	}
	walletCh <- wallet.Transaction{
		ID:           uuid.New(),
		UserID:       userID,
		Type:         wallet.TxLock,
		Amount:       100,
		AuctionID:    &auctionID,
		Description:  "Security deposit",
		BalanceAfter: 10000,
		LockedAfter:  100,
		Status:       wallet.TxStatusCompleted,
		CreatedAt:    now.Add(time.Second),
	}
	bidCh <- bid.Bid{
		ID:            bidID,
		AuctionID:     auctionID,
		BidderID:      userID,
		Amount:        2000,
		IsTopBid:      true,
		LockedDeposit: 100,
		Status:        bid.StatusActive,
		CreatedAt:     now.Add(time.Second),
	}
	earlierAuctionID := uuid.New()
	earlierBidID := uuid.New()
	bidCh <- bid.Bid{
		ID:            earlierBidID,
		AuctionID:     earlierAuctionID,
		BidderID:      userID,
		Amount:        750,
		LockedDeposit: 38,
		Status:        bid.StatusLost,
		CreatedAt:     now.Add(-time.Minute),
	}
	auctionCh <- auction.Auction{
		ID:                 auctionID,
		Title:              "Vintage synthesizer",
		SellerID:           uuid.New(),
		StartingPrice:      500,
		CurrentPrice:       2000,
		SecurityPercentage: 5,
		HighestBidder:      &userID,
		StartDate:          now.Add(-time.Hour),
		EndDate:            now.Add(time.Hour),
		BidCount:           1,
		Status:             auction.StatusActive,
		Version:            2,
	}

	// Give the flush timer a few cycles.
	deadline := time.Now().Add(5 * time.Second)
	svc := query.NewService(db)
	var summary *query.AuctionSummaryResponse
	for time.Now().Before(deadline) {
		var err error
		summary, err = svc.AuctionSummary(ctx, auctionID)
		if err == nil {
			break
		}
		time.Sleep(50 * time.Millisecond)
	}
	if summary == nil {
		t.Fatal("auction projection never arrived")
	}
	if summary.CurrentPrice != 2000 {
		t.Errorf("current_price = %d, want 2000", summary.CurrentPrice)
	}
	if summary.HighestBidder == nil || *summary.HighestBidder != userID {
		t.Errorf("highest_bidder = %v, want %s", summary.HighestBidder, userID)
	}

	bids, err := svc.AuctionBids(ctx, auctionID, 10)
	if err != nil {
		t.Fatalf("auction bids: %v", err)
	}
	if len(bids) != 1 {
		t.Fatalf("got %d bids, want 1", len(bids))
	}
	if bids[0].BidID != bidID {
		t.Errorf("bid_id = %s, want %s", bids[0].BidID, bidID)
	}

	userBids, err := svc.UserBids(ctx, userID, 10, nil)
	if err != nil {
		t.Fatalf("user bids: %v", err)
	}
	if len(userBids) != 2 {
		t.Fatalf("got %d user bids, want 2", len(userBids))
	}
	if userBids[0].BidID != bidID || userBids[1].BidID != earlierBidID {
		t.Errorf("user bids out of order: %s, %s", userBids[0].BidID, userBids[1].BidID)
	}

	// Cursor pagination: everything strictly before the newest bid.
	cursor := now.Add(time.Second)
	page, err := svc.UserBids(ctx, userID, 10, &cursor)
	if err != nil {
		t.Fatalf("user bids with cursor: %v", err)
	}
	if len(page) != 1 || page[0].BidID != earlierBidID {
		t.Fatalf("cursor page = %v, want only the earlier bid", page)
	}

	txns, err := svc.TransactionHistory(ctx, userID, nil, 10)
	if err != nil {
		t.Fatalf("transaction history: %v", err)
	}
	if len(txns) != 2 {
		t.Fatalf("got %d transactions, want 2", len(txns))
	}

	balance, locked, err := svc.LastRecordedBalance(ctx, userID)
	if err != nil {
		t.Fatalf("last recorded balance: %v", err)
	}
	if balance != 10000 || locked != 100 {
		t.Errorf("balance/locked = %d/%d, want 10000/100", balance, locked)
	}

	cancel()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("worker did not stop")
	}
}

// ============================================================================
// Upsert semantics
// ============================================================================

func TestAuctionProjectionIgnoresStaleVersions(t *testing.T) {
	testutil.RequireIntegration(t)
	db, cleanup := testutil.SetupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	migrator := persistence.NewMigrator(db, "../../migrations", zerolog.Nop())
	if err := migrator.Up(ctx); err != nil {
		t.Fatalf("migrate up: %v", err)
	}

	auctionID := uuid.New()
	now := time.Now().UTC()
	base := auction.Auction{
		ID:                 auctionID,
		Title:              "Road bike",
		SellerID:           uuid.New(),
		StartingPrice:      500,
		SecurityPercentage: 5,
		StartDate:          now,
		EndDate:            now.Add(time.Hour),
		Status:             auction.StatusActive,
	}

	write := func(a auction.Auction) {
		t.Helper()
		walletCh := make(chan wallet.Transaction)
		bidCh := make(chan bid.Bid)
		auctionCh := make(chan auction.Auction, 1)
		auctionCh <- a
		close(auctionCh)
		close(walletCh)
		close(bidCh)

		runCtx, runCancel := context.WithTimeout(ctx, 2*time.Second)
		defer runCancel()
		worker := persistence.NewAuditWorker(db, walletCh, bidCh, auctionCh, 1, time.Millisecond, nil, zerolog.Nop())
		worker.Run(runCtx)
	}

	newer := base
	newer.CurrentPrice = 2000
	newer.Version = 5
	write(newer)

	stale := base
	stale.CurrentPrice = 1000
	stale.Version = 3
	write(stale)

	svc := query.NewService(db)
	summary, err := svc.AuctionSummary(ctx, auctionID)
	if err != nil {
		t.Fatalf("auction summary: %v", err)
	}
	if summary.CurrentPrice != 2000 {
		t.Errorf("current_price = %d after stale write, want 2000", summary.CurrentPrice)
	}

	var version int64
	if err := db.QueryRow(`SELECT version FROM audit.auctions WHERE auction_id = $1`, auctionID).Scan(&version); err != nil {
		t.Fatalf("read version: %v", err)
	}
	if version != 5 {
		t.Errorf("version = %d, want 5", version)
	}
}
