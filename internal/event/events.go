// Package event defines the outbound events the auction core emits to live
// viewers and notification channels.
package event

import (
	"time"

	"github.com/google/uuid"
)

// BidUpdated is broadcast after every accepted bid.
type BidUpdated struct {
	AuctionID       uuid.UUID  `json:"auction_id"`
	NewPrice        int64      `json:"new_price"`
	NewDeadline     time.Time  `json:"new_deadline"`
	HighestBidderID uuid.UUID  `json:"highest_bidder_id"`
	BidCount        int64      `json:"bid_count"`
}

// AuctionCompleted is broadcast when settlement finalizes an auction.
// WinnerID is nil for a zero-bid close.
type AuctionCompleted struct {
	AuctionID  uuid.UUID  `json:"auction_id"`
	WinnerID   *uuid.UUID `json:"winner_id"`
	FinalPrice int64      `json:"final_price"`
}

// AuctionExtended describes a sniper-protection deadline extension, handed to
// the notification sink so watchers can be told the auction is running longer.
type AuctionExtended struct {
	AuctionID   uuid.UUID `json:"auction_id"`
	Title       string    `json:"title"`
	NewDeadline time.Time `json:"new_deadline"`
}
