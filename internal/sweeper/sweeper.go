// Package sweeper closes auctions whose deadline has passed. It runs
// settlement on a cron schedule so expired auctions settle without an
// operator calling the complete endpoint.
package sweeper

import (
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"BidVault/internal/engine"
)

type Sweeper struct {
	cron       *cron.Cron
	settlement *engine.SettlementEngine
	log        zerolog.Logger
}

// New builds a sweeper on the given cron schedule. The schedule accepts
// the standard five-field spec or descriptors like "@every 30s".
func New(settlement *engine.SettlementEngine, schedule string, log zerolog.Logger) (*Sweeper, error) {
	s := &Sweeper{
		cron:       cron.New(),
		settlement: settlement,
		log:        log,
	}
	if _, err := s.cron.AddFunc(schedule, s.sweep); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Sweeper) sweep() {
	if n := s.settlement.SettleExpired(); n > 0 {
		s.log.Info().Int("settled", n).Msg("swept expired auctions")
	}
}

// Start launches the schedule in the cron runner's own goroutine.
func (s *Sweeper) Start() {
	s.cron.Start()
	s.log.Info().Msg("expiry sweeper started")
}

// Stop halts the schedule and waits for an in-flight sweep to finish.
func (s *Sweeper) Stop() {
	<-s.cron.Stop().Done()
	s.log.Info().Msg("expiry sweeper stopped")
}
