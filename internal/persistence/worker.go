package persistence

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"BidVault/internal/auction"
	"BidVault/internal/bid"
	"BidVault/internal/observability"
	"BidVault/internal/wallet"
)

// AuditWorker drains the audit channels and batch-writes to Postgres. It runs
// independently from the auction core. Wallet transaction sends are BLOCKING,
// so if this worker falls behind, bid acceptance stalls rather than losing a
// ledger entry. Auction projections ride the same flush.
type AuditWorker struct {
	writer       *AuditWriter
	db           *sql.DB
	walletCh     <-chan wallet.Transaction
	bidCh        <-chan bid.Bid
	auctionCh    <-chan auction.Auction
	batchSize    int
	flushTimeout time.Duration
	metrics      *observability.Metrics
	log          zerolog.Logger
}

func NewAuditWorker(
	db *sql.DB,
	walletCh <-chan wallet.Transaction,
	bidCh <-chan bid.Bid,
	auctionCh <-chan auction.Auction,
	batchSize int,
	flushTimeout time.Duration,
	metrics *observability.Metrics,
	log zerolog.Logger,
) *AuditWorker {
	return &AuditWorker{
		writer:       NewAuditWriter(db),
		db:           db,
		walletCh:     walletCh,
		bidCh:        bidCh,
		auctionCh:    auctionCh,
		batchSize:    batchSize,
		flushTimeout: flushTimeout,
		metrics:      metrics,
		log:          log,
	}
}

type auditBatch struct {
	txns     []WalletTxnRow
	bids     []BidRow
	auctions []AuctionRow
}

func (b *auditBatch) size() int {
	return len(b.txns) + len(b.bids) + len(b.auctions)
}

func (b *auditBatch) reset() {
	b.txns = b.txns[:0]
	b.bids = b.bids[:0]
	b.auctions = b.auctions[:0]
}

// Run accumulates rows and flushes either when the batch is full or the flush
// timeout expires. Blocks until ctx is cancelled.
func (w *AuditWorker) Run(ctx context.Context) error {
	batch := &auditBatch{
		txns:     make([]WalletTxnRow, 0, w.batchSize),
		bids:     make([]BidRow, 0, w.batchSize),
		auctions: make([]AuctionRow, 0, w.batchSize),
	}

	timer := time.NewTimer(w.flushTimeout)
	defer timer.Stop()

	flushFull := func() {
		if batch.size() >= w.batchSize {
			if err := w.flushWithRetry(ctx, batch); err != nil {
				w.log.Error().Err(err).Msg("audit flush failed after retries")
			}
			batch.reset()
			timer.Reset(w.flushTimeout)
		}
	}

	for {
		select {
		case <-ctx.Done():
			// Graceful shutdown: flush remaining with a background context.
			if batch.size() > 0 {
				if err := w.flush(context.Background(), batch); err != nil {
					w.log.Error().Err(err).Msg("final audit flush failed")
				}
			}
			return ctx.Err()

		case txn, ok := <-w.walletCh:
			if !ok {
				w.walletCh = nil
				continue
			}
			batch.txns = append(batch.txns, walletTxnRow(txn))
			flushFull()

		case b, ok := <-w.bidCh:
			if !ok {
				w.bidCh = nil
				continue
			}
			batch.bids = append(batch.bids, bidRow(b))
			flushFull()

		case a, ok := <-w.auctionCh:
			if !ok {
				w.auctionCh = nil
				continue
			}
			batch.auctions = append(batch.auctions, auctionRow(a))
			flushFull()

		case <-timer.C:
			if batch.size() > 0 {
				if err := w.flushWithRetry(ctx, batch); err != nil {
					w.log.Error().Err(err).Msg("timeout audit flush failed")
				}
				batch.reset()
			}
			timer.Reset(w.flushTimeout)
		}
	}
}

// flushWithRetry retries with exponential backoff. The worker never drops
// audit rows; it retries until the write succeeds or ctx is cancelled, and on
// cancellation makes one final attempt with a background context.
func (w *AuditWorker) flushWithRetry(ctx context.Context, batch *auditBatch) error {
	backoff := 100 * time.Millisecond
	const maxBackoff = 30 * time.Second

	for attempt := 0; ; attempt++ {
		if attempt > 0 {
			w.log.Warn().
				Int("attempt", attempt).
				Dur("backoff", backoff).
				Int("rows", batch.size()).
				Msg("audit flush retry")
			select {
			case <-ctx.Done():
				if err := w.flush(context.Background(), batch); err != nil {
					return fmt.Errorf("final flush on shutdown failed: %w", err)
				}
				return nil
			case <-time.After(backoff):
			}
			backoff *= 2
			if backoff > maxBackoff {
				backoff = maxBackoff
			}
		}

		err := w.flush(ctx, batch)
		if err == nil {
			if attempt > 0 {
				w.log.Info().Int("attempts", attempt).Msg("audit flush succeeded after retries")
			}
			return nil
		}

		if w.metrics != nil {
			w.metrics.AuditRetry.Inc()
		}
	}
}

func (w *AuditWorker) flush(ctx context.Context, batch *auditBatch) error {
	start := time.Now()

	tx, err := w.db.BeginTx(ctx, nil)
	if err != nil {
		w.countError("tx_begin")
		return err
	}
	defer tx.Rollback()

	if err := w.writer.WriteWalletTxnBatch(ctx, tx, batch.txns); err != nil {
		w.countError("write_wallet_txns")
		return err
	}
	if err := w.writer.WriteBidBatch(ctx, tx, dedupeBids(batch.bids)); err != nil {
		w.countError("write_bids")
		return err
	}
	if err := w.writer.WriteAuctionBatch(ctx, tx, dedupeAuctions(batch.auctions)); err != nil {
		w.countError("write_auctions")
		return err
	}

	if err := tx.Commit(); err != nil {
		w.countError("tx_commit")
		return err
	}

	if w.metrics != nil {
		w.metrics.AuditBatchDur.Observe(time.Since(start).Seconds())
		w.metrics.AuditBatchSize.Observe(float64(batch.size()))
		w.metrics.AuditRowsWritten.Add(float64(batch.size()))
	}
	return nil
}

func (w *AuditWorker) countError(kind string) {
	if w.metrics != nil {
		w.metrics.AuditErrors.WithLabelValues(kind).Inc()
	}
}

// dedupeBids keeps the last occurrence of each bid so a single multi-row
// upsert never touches the same bid twice.
func dedupeBids(rows []BidRow) []BidRow {
	if len(rows) < 2 {
		return rows
	}
	last := make(map[string]int, len(rows))
	for i, r := range rows {
		last[r.BidID] = i
	}
	out := make([]BidRow, 0, len(last))
	for i, r := range rows {
		if last[r.BidID] == i {
			out = append(out, r)
		}
	}
	return out
}

// dedupeAuctions keeps the highest-version snapshot of each auction.
func dedupeAuctions(rows []AuctionRow) []AuctionRow {
	if len(rows) < 2 {
		return rows
	}
	best := make(map[string]AuctionRow, len(rows))
	var order []string
	for _, r := range rows {
		prev, seen := best[r.AuctionID]
		if !seen {
			order = append(order, r.AuctionID)
		}
		if !seen || r.Version >= prev.Version {
			best[r.AuctionID] = r
		}
	}
	out := make([]AuctionRow, 0, len(order))
	for _, id := range order {
		out = append(out, best[id])
	}
	return out
}

func walletTxnRow(t wallet.Transaction) WalletTxnRow {
	r := WalletTxnRow{
		TxnID:        t.ID.String(),
		UserID:       t.UserID.String(),
		TxnType:      t.Type.String(),
		Amount:       t.Amount,
		Description:  t.Description,
		BalanceAfter: t.BalanceAfter,
		LockedAfter:  t.LockedAfter,
		Status:       t.Status.String(),
		CreatedAt:    t.CreatedAt,
	}
	if t.AuctionID != nil {
		s := t.AuctionID.String()
		r.AuctionID = &s
	}
	return r
}

func bidRow(b bid.Bid) BidRow {
	return BidRow{
		BidID:           b.ID.String(),
		AuctionID:       b.AuctionID.String(),
		BidderID:        b.BidderID.String(),
		Amount:          b.Amount,
		IsTopBid:        b.IsTopBid,
		LockedDeposit:   b.LockedDeposit,
		DepositRefunded: b.DepositRefunded,
		Status:          b.Status.String(),
		CreatedAt:       b.CreatedAt,
	}
}

func auctionRow(a auction.Auction) AuctionRow {
	r := AuctionRow{
		AuctionID:          a.ID.String(),
		Title:              a.Title,
		SellerID:           a.SellerID.String(),
		StartingPrice:      a.StartingPrice,
		CurrentPrice:       a.CurrentPrice,
		SecurityPercentage: a.SecurityPercentage,
		StartDate:          a.StartDate,
		EndDate:            a.EndDate,
		BidCount:           a.BidCount,
		Status:             a.Status.String(),
		Version:            a.Version,
	}
	if a.HighestBidder != nil {
		s := a.HighestBidder.String()
		r.HighestBidder = &s
	}
	if a.Winner != nil {
		s := a.Winner.String()
		r.WinnerID = &s
	}
	if a.FinalAmount != nil {
		v := *a.FinalAmount
		r.FinalAmount = &v
	}
	return r
}
