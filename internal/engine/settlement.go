package engine

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"BidVault/internal/auction"
	"BidVault/internal/bid"
	"BidVault/internal/broadcast"
	"BidVault/internal/event"
	"BidVault/internal/wallet"
)

// SettlementEngine closes auctions: the winner's deposit converts into
// payment, every losing bidder's deposit is released, and the auction
// transitions to Completed. The whole settlement runs under the auction lock,
// so it cannot interleave with a late bid.
type SettlementEngine struct {
	auctions     *auction.Registry
	wallets      *wallet.Ledger
	bids         *bid.Store
	sink         broadcast.Sink
	auctionAudit chan<- auction.Auction
	log          zerolog.Logger
	now          func() time.Time
}

func NewSettlementEngine(
	auctions *auction.Registry,
	wallets *wallet.Ledger,
	bids *bid.Store,
	sink broadcast.Sink,
	auctionAudit chan<- auction.Auction,
	log zerolog.Logger,
) *SettlementEngine {
	return &SettlementEngine{
		auctions:     auctions,
		wallets:      wallets,
		bids:         bids,
		sink:         sink,
		auctionAudit: auctionAudit,
		log:          log,
		now:          time.Now,
	}
}

// SetClock overrides the engine clock. Test hook.
func (e *SettlementEngine) SetClock(now func() time.Time) {
	e.now = now
}

// Refund is one losing bidder's released deposit.
type Refund struct {
	BidderID uuid.UUID
	Amount   int64
}

// SettlementResult reports the full ledger effect of closing one auction.
type SettlementResult struct {
	AuctionID       uuid.UUID
	WinnerID        *uuid.UUID
	FinalPrice      int64
	DepositConsumed int64
	PaymentCovered  int64
	PaymentPending  int64 // receivable the winner's wallet could not cover
	Refunds         []Refund
}

// Settle closes an auction. The seller or an admin may close early; anyone
// may close once the deadline has passed. A second settlement of the same
// auction is rejected, never repeated.
func (e *SettlementEngine) Settle(callerID uuid.UUID, role auction.Role, auctionID uuid.UUID) (*SettlementResult, error) {
	var (
		result       SettlementResult
		completedEvt event.AuctionCompleted
	)

	err := e.auctions.WithLock(auctionID, func(a *auction.Auction) error {
		if err := a.AuthorizeClose(callerID, role, e.now()); err != nil {
			return err
		}

		result.AuctionID = auctionID

		if a.HighestBidder == nil {
			// Zero-bid close: nothing to settle.
			if err := a.Finalize(); err != nil {
				return err
			}
			e.emitAuction(a)
			result.FinalPrice = a.CurrentPrice
			completedEvt = event.AuctionCompleted{AuctionID: a.ID, FinalPrice: a.CurrentPrice}
			return nil
		}

		winnerID := *a.HighestBidder
		bidders, totals := e.depositsByBidder(auctionID)

		settlement, err := e.wallets.SettleWinner(winnerID, a.CurrentPrice, totals[winnerID], auctionID, a.Title)
		if err != nil {
			return fmt.Errorf("settle winner %s: %w", winnerID, err)
		}
		e.bids.MarkSettled(auctionID, winnerID, bid.StatusWon, false)

		for _, bidderID := range bidders {
			if bidderID == winnerID {
				continue
			}
			held := totals[bidderID]
			if held > 0 {
				if _, err := e.wallets.Refund(bidderID, held, auctionID,
					fmt.Sprintf("Deposit released: auction %q ended", a.Title)); err != nil {
					return fmt.Errorf("refund bidder %s: %w", bidderID, err)
				}
				e.bids.MarkSettled(auctionID, bidderID, bid.StatusRefunded, true)
				result.Refunds = append(result.Refunds, Refund{BidderID: bidderID, Amount: held})
			} else {
				e.bids.MarkSettled(auctionID, bidderID, bid.StatusLost, true)
			}
		}

		if err := a.Finalize(); err != nil {
			return err
		}
		e.emitAuction(a)

		result.WinnerID = &winnerID
		result.FinalPrice = a.CurrentPrice
		result.DepositConsumed = settlement.DepositConsumed
		result.PaymentCovered = settlement.PaymentCovered
		result.PaymentPending = settlement.PaymentPending

		completedEvt = event.AuctionCompleted{
			AuctionID:  a.ID,
			WinnerID:   &winnerID,
			FinalPrice: a.CurrentPrice,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	e.sink.AuctionCompleted(completedEvt)

	logEvt := e.log.Info().
		Str("auction_id", auctionID.String()).
		Int64("final_price", result.FinalPrice).
		Int("refunds", len(result.Refunds))
	if result.WinnerID != nil {
		logEvt = logEvt.Str("winner_id", result.WinnerID.String())
	}
	logEvt.Msg("auction settled")
	return &result, nil
}

// SettleExpired settles every Active auction whose deadline has passed.
// Called by the expiry sweeper; individual failures do not stop the sweep.
func (e *SettlementEngine) SettleExpired() int {
	now := e.now()
	settled := 0
	for _, id := range e.auctions.Expired(now) {
		// System close: authorized by expiry, not by role.
		if _, err := e.Settle(uuid.Nil, auction.RoleAdmin, id); err != nil {
			e.log.Error().Err(err).Str("auction_id", id.String()).Msg("expiry settlement failed")
			continue
		}
		settled++
	}
	return settled
}

// depositsByBidder groups unreleased deposits by bidder, preserving first-bid
// order for deterministic refund sequencing.
func (e *SettlementEngine) depositsByBidder(auctionID uuid.UUID) ([]uuid.UUID, map[uuid.UUID]int64) {
	var order []uuid.UUID
	totals := make(map[uuid.UUID]int64)
	for _, b := range e.bids.UnreleasedByAuction(auctionID) {
		if _, seen := totals[b.BidderID]; !seen {
			order = append(order, b.BidderID)
		}
		totals[b.BidderID] += b.LockedDeposit
	}
	return order, totals
}

func (e *SettlementEngine) emitAuction(a *auction.Auction) {
	if e.auctionAudit != nil {
		e.auctionAudit <- *a
	}
}
