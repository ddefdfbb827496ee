package auction

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"BidVault/internal/auctionerrors"
)

// Role is the closed set of principal roles. Checked by exhaustive matching,
// never by string comparison against session data.
type Role uint8

const (
	RoleBuyer Role = iota
	RoleSeller
	RoleAdmin
)

func (r Role) String() string {
	switch r {
	case RoleBuyer:
		return "Buyer"
	case RoleSeller:
		return "Seller"
	case RoleAdmin:
		return "Admin"
	}
	return "unknown"
}

// ParseRole converts the wire representation into a Role.
func ParseRole(s string) (Role, bool) {
	switch s {
	case "Buyer":
		return RoleBuyer, true
	case "Seller":
		return RoleSeller, true
	case "Admin":
		return RoleAdmin, true
	}
	return 0, false
}

// Status is the auction lifecycle state.
type Status uint8

const (
	StatusActive Status = iota
	StatusCompleted
	StatusCancelled
)

func (s Status) String() string {
	switch s {
	case StatusActive:
		return "Active"
	case StatusCompleted:
		return "Completed"
	case StatusCancelled:
		return "Cancelled"
	}
	return "unknown"
}

// CanTransitionTo reports whether s -> next is a legal lifecycle transition.
// Completed and Cancelled are terminal.
func (s Status) CanTransitionTo(next Status) bool {
	switch s {
	case StatusActive:
		return next == StatusCompleted || next == StatusCancelled
	default:
		return false
	}
}

// Anti-sniping parameters: a bid arriving with SnipeWindow or less remaining
// pushes the deadline forward by SnipeExtension.
const (
	SnipeWindow    = 10 * time.Minute
	SnipeExtension = 60 * time.Minute
)

// Auction holds the mutable shared state of one timed ascending-price auction.
// Price, deadline, top bidder and bid count are mutated only while the owning
// Registry's per-auction lock is held.
type Auction struct {
	ID                 uuid.UUID
	Title              string
	SellerID           uuid.UUID
	StartingPrice      int64
	CurrentPrice       int64 // non-decreasing, equals the latest accepted bid
	SecurityPercentage int64 // 1-50, fixed once any bid exists
	HighestBidder      *uuid.UUID
	Winner             *uuid.UUID
	FinalAmount        *int64
	StartDate          time.Time
	EndDate            time.Time
	BidCount           int64
	Status             Status
	Version            int64
}

// New validates parameters and creates an Active auction at its starting price.
func New(title string, sellerID uuid.UUID, startingPrice, securityPct int64, startDate, endDate time.Time) (*Auction, error) {
	if title == "" {
		return nil, fmt.Errorf("%w: empty title", auctionerrors.ErrInvalidAmount)
	}
	if startingPrice <= 0 {
		return nil, fmt.Errorf("%w: starting price must be positive", auctionerrors.ErrInvalidAmount)
	}
	if securityPct < 1 || securityPct > 50 {
		return nil, fmt.Errorf("%w: security percentage must be between 1 and 50", auctionerrors.ErrInvalidAmount)
	}
	if !endDate.After(startDate) {
		return nil, fmt.Errorf("%w: end date must be after start date", auctionerrors.ErrInvalidAmount)
	}

	return &Auction{
		ID:                 uuid.New(),
		Title:              title,
		SellerID:           sellerID,
		StartingPrice:      startingPrice,
		CurrentPrice:       startingPrice,
		SecurityPercentage: securityPct,
		StartDate:          startDate,
		EndDate:            endDate,
		Status:             StatusActive,
	}, nil
}

// ValidateBid checks a proposed bid against auction state in precondition
// order: bidder/seller identity, lifecycle, deadline, then amount.
func (a *Auction) ValidateBid(bidderID uuid.UUID, amount int64, now time.Time) error {
	if bidderID == a.SellerID {
		return auctionerrors.ErrSellerOwnBid
	}
	if a.Status != StatusActive {
		return auctionerrors.ErrAuctionNotActive
	}
	if !now.Before(a.EndDate) {
		return auctionerrors.ErrAuctionEnded
	}
	if amount <= a.CurrentPrice {
		return fmt.Errorf("%w: current price is %d", auctionerrors.ErrBidTooLow, a.CurrentPrice)
	}
	if amount < a.StartingPrice {
		return fmt.Errorf("%w: starting price is %d", auctionerrors.ErrBelowStarting, a.StartingPrice)
	}
	return nil
}

// ExtendIfSniped applies sniper protection: if the deadline is within
// SnipeWindow of now (and not yet passed), push it forward by SnipeExtension.
// The extension is unconditional on every qualifying bid.
func (a *Auction) ExtendIfSniped(now time.Time) bool {
	remaining := a.EndDate.Sub(now)
	if remaining > 0 && remaining <= SnipeWindow {
		a.EndDate = a.EndDate.Add(SnipeExtension)
		a.Version++
		return true
	}
	return false
}

// ApplyBid commits an accepted bid: advances the price, records the top
// bidder and increments the bid count. Caller has already validated.
func (a *Auction) ApplyBid(bidderID uuid.UUID, amount int64) {
	b := bidderID
	a.CurrentPrice = amount
	a.HighestBidder = &b
	a.BidCount++
	a.Version++
}

// AuthorizeClose checks whether the caller may transition this auction to
// Completed: the seller or an admin may force an early close, anyone may
// trigger the natural-expiry close once now >= EndDate.
func (a *Auction) AuthorizeClose(callerID uuid.UUID, role Role, now time.Time) error {
	if a.Status == StatusCompleted {
		return auctionerrors.ErrAlreadyCompleted
	}
	isOwnerOrAdmin := role == RoleAdmin || callerID == a.SellerID
	hasExpired := !now.Before(a.EndDate)
	if !isOwnerOrAdmin && !hasExpired {
		return auctionerrors.ErrStillActive
	}
	return nil
}

// Finalize transitions the auction to Completed, recording the winner and
// final amount (both absent for a zero-bid close).
func (a *Auction) Finalize() error {
	if !a.Status.CanTransitionTo(StatusCompleted) {
		return fmt.Errorf("illegal transition %s -> Completed: %w", a.Status, auctionerrors.ErrAlreadyCompleted)
	}
	a.Status = StatusCompleted
	if a.HighestBidder != nil {
		w := *a.HighestBidder
		a.Winner = &w
		price := a.CurrentPrice
		a.FinalAmount = &price
	}
	a.Version++
	return nil
}

// Cancel transitions an Active auction to Cancelled.
func (a *Auction) Cancel() error {
	if !a.Status.CanTransitionTo(StatusCancelled) {
		return fmt.Errorf("illegal transition %s -> Cancelled: %w", a.Status, auctionerrors.ErrAlreadyCompleted)
	}
	a.Status = StatusCancelled
	a.Version++
	return nil
}
