// Package notify is the out-of-band channel for watcher-facing messages,
// currently only the sniper-protection extension notice.
package notify

import (
	"github.com/rs/zerolog"

	"BidVault/internal/event"
)

// Notifier is invoked outside the auction lock; implementations must not
// call back into the bid engine.
type Notifier interface {
	AuctionExtended(evt event.AuctionExtended)
}

// NopNotifier discards notifications.
type NopNotifier struct{}

func (NopNotifier) AuctionExtended(event.AuctionExtended) {}

// LogNotifier records notifications in the structured log. Stands in until a
// real push channel (email, webhook) is wired up.
type LogNotifier struct {
	logger zerolog.Logger
}

func NewLogNotifier(logger zerolog.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

func (n *LogNotifier) AuctionExtended(evt event.AuctionExtended) {
	n.logger.Info().
		Str("auction_id", evt.AuctionID.String()).
		Str("title", evt.Title).
		Time("new_deadline", evt.NewDeadline).
		Msg("auction deadline extended")
}
