// Package broadcast delivers auction events to live viewers. Delivery is best
// effort: a slow or absent transport never blocks bid acceptance.
package broadcast

import (
	"BidVault/internal/event"
)

// Sink receives events after the auction state change has been committed.
type Sink interface {
	BidUpdated(evt event.BidUpdated)
	AuctionCompleted(evt event.AuctionCompleted)
}

// NopSink discards every event. Used in tests and when NATS is disabled.
type NopSink struct{}

func (NopSink) BidUpdated(event.BidUpdated)             {}
func (NopSink) AuctionCompleted(event.AuctionCompleted) {}
