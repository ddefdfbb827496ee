package broadcast

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go/jetstream"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"BidVault/internal/event"
)

const (
	TypeBidUpdated       = "bid_updated"
	TypeAuctionCompleted = "auction_completed"
)

// Envelope is the wire form of a broadcast event.
// Subjects follow the pattern: auction.events.{event_type}.{auction_id}
type Envelope struct {
	EventType string      `json:"event_type"`
	AuctionID string      `json:"auction_id"`
	Payload   interface{} `json:"payload"`
	Timestamp time.Time   `json:"timestamp"`
}

// Publisher pushes events onto a buffered channel and publishes them to
// JetStream from a separate loop. A full buffer drops the event rather than
// stalling the bid path.
type Publisher struct {
	js     jetstream.JetStream
	events chan Envelope
	logger zerolog.Logger
	drops  prometheus.Counter
}

func NewPublisher(js jetstream.JetStream, bufferSize int, logger zerolog.Logger) *Publisher {
	return &Publisher{
		js:     js,
		events: make(chan Envelope, bufferSize),
		logger: logger,
	}
}

// SetDropCounter wires the dropped-event counter.
func (p *Publisher) SetDropCounter(c prometheus.Counter) {
	p.drops = c
}

func (p *Publisher) BidUpdated(evt event.BidUpdated) {
	p.enqueue(Envelope{
		EventType: TypeBidUpdated,
		AuctionID: evt.AuctionID.String(),
		Payload:   evt,
		Timestamp: time.Now().UTC(),
	})
}

func (p *Publisher) AuctionCompleted(evt event.AuctionCompleted) {
	p.enqueue(Envelope{
		EventType: TypeAuctionCompleted,
		AuctionID: evt.AuctionID.String(),
		Payload:   evt,
		Timestamp: time.Now().UTC(),
	})
}

func (p *Publisher) enqueue(env Envelope) {
	select {
	case p.events <- env:
	default:
		if p.drops != nil {
			p.drops.Inc()
		}
		p.logger.Warn().
			Str("event_type", env.EventType).
			Str("auction_id", env.AuctionID).
			Msg("broadcast buffer full, event dropped")
	}
}

// Run drains the event channel until ctx is cancelled.
func (p *Publisher) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case env, ok := <-p.events:
			if !ok {
				return nil
			}

			if err := p.publish(ctx, env); err != nil {
				// Non-fatal: viewers resync from the read model on reconnect
				p.logger.Warn().
					Err(err).
					Str("event_type", env.EventType).
					Str("auction_id", env.AuctionID).
					Msg("broadcast publish failed")
			}
		}
	}
}

func (p *Publisher) publish(ctx context.Context, env Envelope) error {
	data, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	subject := fmt.Sprintf("auction.events.%s.%s", env.EventType, env.AuctionID)
	_, err = p.js.Publish(ctx, subject, data)
	return err
}

// EnsureStream creates the broadcast stream if it does not exist.
func EnsureStream(ctx context.Context, js jetstream.JetStream) error {
	_, err := js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
		Name:      "AUCTION_EVENTS",
		Subjects:  []string{"auction.events.>"},
		Storage:   jetstream.FileStorage,
		Retention: jetstream.LimitsPolicy,
		MaxAge:    72 * time.Hour,
		Replicas:  1,
	})
	if err != nil {
		return fmt.Errorf("create broadcast stream: %w", err)
	}
	return nil
}
