package query

import (
	"time"

	"github.com/google/uuid"
)

// AuctionSummaryResponse is the read-model view of one auction.
type AuctionSummaryResponse struct {
	AuctionID          uuid.UUID  `json:"auction_id"`
	Title              string     `json:"title"`
	SellerID           uuid.UUID  `json:"seller_id"`
	StartingPrice      int64      `json:"starting_price"`
	CurrentPrice       int64      `json:"current_price"`
	SecurityPercentage int64      `json:"security_percentage"`
	HighestBidder      *uuid.UUID `json:"highest_bidder,omitempty"`
	WinnerID           *uuid.UUID `json:"winner_id,omitempty"`
	FinalAmount        *int64     `json:"final_amount,omitempty"`
	StartDate          time.Time  `json:"start_date"`
	EndDate            time.Time  `json:"end_date"`
	BidCount           int64      `json:"bid_count"`
	Status             string     `json:"status"`
}

// CompletionSummaryResponse is the post-settlement report for one auction.
type CompletionSummaryResponse struct {
	Auction         AuctionSummaryResponse `json:"auction"`
	TotalBids       int64                  `json:"total_bids"`
	UniqueBidders   int64                  `json:"unique_bidders"`
	DepositRefunded int64                  `json:"deposit_refunded"`
}

// BidResponse is one bid row for API queries.
type BidResponse struct {
	BidID           uuid.UUID `json:"bid_id"`
	AuctionID       uuid.UUID `json:"auction_id"`
	BidderID        uuid.UUID `json:"bidder_id"`
	Amount          int64     `json:"amount"`
	IsTopBid        bool      `json:"is_top_bid"`
	LockedDeposit   int64     `json:"locked_deposit"`
	DepositRefunded bool      `json:"deposit_refunded"`
	Status          string    `json:"status"`
	CreatedAt       time.Time `json:"created_at"`
}

// TransactionResponse is one wallet ledger entry for API queries.
type TransactionResponse struct {
	TxnID        uuid.UUID  `json:"txn_id"`
	UserID       uuid.UUID  `json:"user_id"`
	TxnType      string     `json:"txn_type"`
	Amount       int64      `json:"amount"`
	Description  string     `json:"description"`
	AuctionID    *uuid.UUID `json:"auction_id,omitempty"`
	BalanceAfter int64      `json:"balance_after"`
	LockedAfter  int64      `json:"locked_after"`
	Status       string     `json:"status"`
	CreatedAt    time.Time  `json:"created_at"`
}
