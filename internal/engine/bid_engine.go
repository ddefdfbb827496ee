// Package engine coordinates the auction core: bid acceptance and settlement
// across the auction registry, the wallet ledger and the bid store. All
// mutation for one auction runs inside that auction's exclusive section.
package engine

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"BidVault/internal/auction"
	"BidVault/internal/auctionerrors"
	"BidVault/internal/bid"
	"BidVault/internal/broadcast"
	"BidVault/internal/deposit"
	"BidVault/internal/event"
	"BidVault/internal/notify"
	"BidVault/internal/wallet"
)

// BidEngine accepts bids. It validates against auction state, computes and
// locks the incremental security deposit, applies sniper protection and
// commits the bid, all under the per-auction lock.
type BidEngine struct {
	auctions     *auction.Registry
	wallets      *wallet.Ledger
	bids         *bid.Store
	sink         broadcast.Sink
	notifier     notify.Notifier
	auctionAudit chan<- auction.Auction
	log          zerolog.Logger
	now          func() time.Time
}

func NewBidEngine(
	auctions *auction.Registry,
	wallets *wallet.Ledger,
	bids *bid.Store,
	sink broadcast.Sink,
	notifier notify.Notifier,
	auctionAudit chan<- auction.Auction,
	log zerolog.Logger,
) *BidEngine {
	return &BidEngine{
		auctions:     auctions,
		wallets:      wallets,
		bids:         bids,
		sink:         sink,
		notifier:     notifier,
		auctionAudit: auctionAudit,
		log:          log,
		now:          time.Now,
	}
}

// SetClock overrides the engine clock. Test hook.
func (e *BidEngine) SetClock(now func() time.Time) {
	e.now = now
}

func (e *BidEngine) emitAuction(a *auction.Auction) {
	if e.auctionAudit != nil {
		e.auctionAudit <- *a
	}
}

// CreateAuctionParams are the seller-supplied auction parameters.
type CreateAuctionParams struct {
	Title              string
	StartingPrice      int64
	SecurityPercentage int64
	StartDate          time.Time
	EndDate            time.Time
}

// CreateAuction registers a new auction. Sellers and admins only.
func (e *BidEngine) CreateAuction(sellerID uuid.UUID, role auction.Role, p CreateAuctionParams) (*auction.Auction, error) {
	if role != auction.RoleSeller && role != auction.RoleAdmin {
		return nil, fmt.Errorf("%w: only sellers can create auctions", auctionerrors.ErrUnauthorized)
	}

	a, err := auction.New(p.Title, sellerID, p.StartingPrice, p.SecurityPercentage, p.StartDate, p.EndDate)
	if err != nil {
		return nil, err
	}
	e.auctions.Add(a)
	e.emitAuction(a)

	e.log.Info().
		Str("auction_id", a.ID.String()).
		Str("seller_id", sellerID.String()).
		Int64("starting_price", a.StartingPrice).
		Int64("security_pct", a.SecurityPercentage).
		Time("end_date", a.EndDate).
		Msg("auction created")
	return a, nil
}

// PlaceBidResult reports the committed bid and its wallet effect.
type PlaceBidResult struct {
	Bid             bid.Bid
	Wallet          wallet.Snapshot
	RequiredDeposit int64 // cumulative deposit required after this bid
	LockedThisBid   int64 // incremental amount locked by this bid
	Extended        bool  // sniper protection pushed the deadline
	NewDeadline     time.Time
}

// PlaceBid validates and commits one bid. Preconditions are checked in a fixed
// order so concurrent callers racing on the same auction fail deterministically:
// identity, lifecycle, deadline, amount, then funds. The deposit lock happens
// inside the auction section, so a bid is never visible without its deposit.
func (e *BidEngine) PlaceBid(bidderID uuid.UUID, role auction.Role, auctionID uuid.UUID, amount int64) (*PlaceBidResult, error) {
	if role != auction.RoleBuyer {
		return nil, auctionerrors.ErrNotBuyer
	}
	if amount <= 0 {
		return nil, fmt.Errorf("%w: bid must be positive, got %d", auctionerrors.ErrInvalidAmount, amount)
	}

	var (
		result      PlaceBidResult
		extendedEvt event.AuctionExtended
		updatedEvt  event.BidUpdated
	)

	err := e.auctions.WithLock(auctionID, func(a *auction.Auction) error {
		now := e.now()
		if err := a.ValidateBid(bidderID, amount, now); err != nil {
			return err
		}

		history := e.bids.UnreleasedByBidder(auctionID, bidderID)
		priorAmounts := make([]int64, 0, len(history))
		var alreadyLocked int64
		for _, h := range history {
			priorAmounts = append(priorAmounts, h.Amount)
			alreadyLocked += h.LockedDeposit
		}

		required := deposit.RequiredTotal(a.SecurityPercentage, priorAmounts, amount)
		incremental := deposit.IncrementalLock(required, alreadyLocked)

		var snap wallet.Snapshot
		if incremental > 0 {
			var err error
			snap, err = e.wallets.Lock(bidderID, incremental, auctionID,
				fmt.Sprintf("Security deposit for bid on %q", a.Title))
			if err != nil {
				if errors.Is(err, auctionerrors.ErrInsufficientFunds) {
					return &auctionerrors.InsufficientFundsError{
						Required:      required,
						AlreadyLocked: alreadyLocked,
						Shortfall:     incremental - snap.Available,
					}
				}
				return err
			}
		} else {
			snap = e.wallets.GetSnapshot(bidderID)
		}

		// Point of no return: the deposit is held, commit the bid.
		result.Extended = a.ExtendIfSniped(now)
		e.bids.SupersedeTop(auctionID)

		b := &bid.Bid{
			ID:            uuid.New(),
			AuctionID:     auctionID,
			BidderID:      bidderID,
			Amount:        amount,
			IsTopBid:      true,
			LockedDeposit: incremental,
			Status:        bid.StatusActive,
			CreatedAt:     now,
		}
		e.bids.Append(b)
		a.ApplyBid(bidderID, amount)
		e.emitAuction(a)

		result.Bid = *b
		result.Wallet = snap
		result.RequiredDeposit = required
		result.LockedThisBid = incremental
		result.NewDeadline = a.EndDate

		updatedEvt = event.BidUpdated{
			AuctionID:       a.ID,
			NewPrice:        a.CurrentPrice,
			NewDeadline:     a.EndDate,
			HighestBidderID: bidderID,
			BidCount:        a.BidCount,
		}
		if result.Extended {
			extendedEvt = event.AuctionExtended{
				AuctionID:   a.ID,
				Title:       a.Title,
				NewDeadline: a.EndDate,
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	// Outside the auction lock: broadcast and notify are best effort.
	e.sink.BidUpdated(updatedEvt)
	if result.Extended {
		e.notifier.AuctionExtended(extendedEvt)
	}

	e.log.Info().
		Str("auction_id", auctionID.String()).
		Str("bidder_id", bidderID.String()).
		Int64("amount", amount).
		Int64("deposit_locked", result.LockedThisBid).
		Bool("extended", result.Extended).
		Msg("bid accepted")
	return &result, nil
}
