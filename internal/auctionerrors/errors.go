package auctionerrors

import (
	"errors"
	"fmt"
)

// Not-found errors
var (
	ErrAuctionNotFound = errors.New("auction not found")
	ErrUserNotFound    = errors.New("user not found")
)

// Authorization errors
var (
	ErrUnauthorized = errors.New("unauthorized")
	ErrNotBuyer     = errors.New("only buyers can place bids")
	ErrSellerOwnBid = errors.New("sellers cannot bid on their own items")
	ErrStillActive  = errors.New("auction is still active, only the seller or admin can close it early")
)

// State-conflict errors (stale client view or lost race)
var (
	ErrAuctionNotActive = errors.New("auction is not active")
	ErrAuctionEnded     = errors.New("auction has ended")
	ErrBidTooLow        = errors.New("bid must be higher than current price")
	ErrBelowStarting    = errors.New("bid must be at least the starting price")
	ErrAlreadyCompleted = errors.New("auction is already completed")
)

// Validation errors
var (
	ErrInvalidAmount = errors.New("invalid amount")
)

// InsufficientFunds is the match target for InsufficientFundsError.
var ErrInsufficientFunds = errors.New("insufficient available balance")

// InsufficientFundsError is returned when a bid's incremental deposit lock
// exceeds the bidder's available balance. Shortfall is the exact top-up the
// bidder needs, so the caller can drive a retry UI.
type InsufficientFundsError struct {
	Required      int64 // total deposit required for the proposed bid
	AlreadyLocked int64 // deposit already held on this auction
	Shortfall     int64 // additional funds needed in the wallet
}

func (e *InsufficientFundsError) Error() string {
	return fmt.Sprintf("insufficient balance: required lock %d, already locked %d, please add %d to your wallet",
		e.Required, e.AlreadyLocked, e.Shortfall)
}

func (e *InsufficientFundsError) Is(target error) bool {
	return target == ErrInsufficientFunds
}

// IntegrityError signals an internal consistency violation (negative balance,
// ledger reconstruction mismatch). The offending operation is halted with no
// partial state applied; this is not recoverable by the caller.
type IntegrityError struct {
	Op     string
	Detail string
}

func (e *IntegrityError) Error() string {
	return fmt.Sprintf("ledger integrity violation in %s: %s", e.Op, e.Detail)
}
