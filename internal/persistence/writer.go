package persistence

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"
)

// AuditWriter writes audit rows to Postgres using multi-row INSERT. The
// in-memory core is authoritative; these tables are the append-only audit
// trail and the read model for history queries.
type AuditWriter struct {
	db *sql.DB
}

// WalletTxnRow is a row in audit.wallet_transactions. Rows are immutable.
type WalletTxnRow struct {
	TxnID        string
	UserID       string
	TxnType      string
	Amount       int64
	Description  string
	AuctionID    *string
	BalanceAfter int64
	LockedAfter  int64
	Status       string
	CreatedAt    time.Time
}

// BidRow is a row in audit.bids. Settlement flips status and the refund flag,
// so conflicts update in place.
type BidRow struct {
	BidID           string
	AuctionID       string
	BidderID        string
	Amount          int64
	IsTopBid        bool
	LockedDeposit   int64
	DepositRefunded bool
	Status          string
	CreatedAt       time.Time
}

// AuctionRow is a row in audit.auctions, the read-model projection of one
// auction. Version guards against out-of-order upserts.
type AuctionRow struct {
	AuctionID          string
	Title              string
	SellerID           string
	StartingPrice      int64
	CurrentPrice       int64
	SecurityPercentage int64
	HighestBidder      *string
	WinnerID           *string
	FinalAmount        *int64
	StartDate          time.Time
	EndDate            time.Time
	BidCount           int64
	Status             string
	Version            int64
}

func NewAuditWriter(db *sql.DB) *AuditWriter {
	return &AuditWriter{db: db}
}

// WriteWalletTxnBatch inserts wallet ledger entries. Re-delivery after a
// retried flush is absorbed by the primary-key conflict.
func (w *AuditWriter) WriteWalletTxnBatch(ctx context.Context, tx *sql.Tx, rows []WalletTxnRow) error {
	if len(rows) == 0 {
		return nil
	}

	query := `INSERT INTO audit.wallet_transactions
		(txn_id, user_id, txn_type, amount, description, auction_id, balance_after, locked_after, status, created_at)
		VALUES `

	values := make([]string, 0, len(rows))
	args := make([]interface{}, 0, len(rows)*10)

	for i, r := range rows {
		base := i * 10
		values = append(values, fmt.Sprintf(
			"($%d, $%d, $%d, $%d, $%d, $%d, $%d, $%d, $%d, $%d)",
			base+1, base+2, base+3, base+4, base+5, base+6, base+7, base+8, base+9, base+10,
		))
		args = append(args,
			r.TxnID, r.UserID, r.TxnType, r.Amount, r.Description,
			r.AuctionID, r.BalanceAfter, r.LockedAfter, r.Status, r.CreatedAt,
		)
	}

	query += strings.Join(values, ", ")
	query += " ON CONFLICT (txn_id) DO NOTHING"

	_, err := tx.ExecContext(ctx, query, args...)
	return err
}

// WriteBidBatch upserts bid rows. A bid appears once on acceptance and again
// when settlement changes its status; the later write wins.
func (w *AuditWriter) WriteBidBatch(ctx context.Context, tx *sql.Tx, rows []BidRow) error {
	if len(rows) == 0 {
		return nil
	}

	query := `INSERT INTO audit.bids
		(bid_id, auction_id, bidder_id, amount, is_top_bid, locked_deposit, deposit_refunded, status, created_at)
		VALUES `

	values := make([]string, 0, len(rows))
	args := make([]interface{}, 0, len(rows)*9)

	for i, r := range rows {
		base := i * 9
		values = append(values, fmt.Sprintf(
			"($%d, $%d, $%d, $%d, $%d, $%d, $%d, $%d, $%d)",
			base+1, base+2, base+3, base+4, base+5, base+6, base+7, base+8, base+9,
		))
		args = append(args,
			r.BidID, r.AuctionID, r.BidderID, r.Amount, r.IsTopBid,
			r.LockedDeposit, r.DepositRefunded, r.Status, r.CreatedAt,
		)
	}

	query += strings.Join(values, ", ")
	query += ` ON CONFLICT (bid_id) DO UPDATE SET
		is_top_bid = EXCLUDED.is_top_bid,
		deposit_refunded = EXCLUDED.deposit_refunded,
		status = EXCLUDED.status`

	_, err := tx.ExecContext(ctx, query, args...)
	return err
}

// WriteAuctionBatch upserts auction projections. The version guard keeps a
// stale snapshot from overwriting a newer one inside the same batch window.
func (w *AuditWriter) WriteAuctionBatch(ctx context.Context, tx *sql.Tx, rows []AuctionRow) error {
	if len(rows) == 0 {
		return nil
	}

	query := `INSERT INTO audit.auctions
		(auction_id, title, seller_id, starting_price, current_price, security_percentage,
		 highest_bidder, winner_id, final_amount, start_date, end_date, bid_count, status, version)
		VALUES `

	values := make([]string, 0, len(rows))
	args := make([]interface{}, 0, len(rows)*14)

	for i, r := range rows {
		base := i * 14
		ph := make([]string, 14)
		for j := range ph {
			ph[j] = fmt.Sprintf("$%d", base+j+1)
		}
		values = append(values, "("+strings.Join(ph, ", ")+")")
		args = append(args,
			r.AuctionID, r.Title, r.SellerID, r.StartingPrice, r.CurrentPrice,
			r.SecurityPercentage, r.HighestBidder, r.WinnerID, r.FinalAmount,
			r.StartDate, r.EndDate, r.BidCount, r.Status, r.Version,
		)
	}

	query += strings.Join(values, ", ")
	query += ` ON CONFLICT (auction_id) DO UPDATE SET
		current_price = EXCLUDED.current_price,
		highest_bidder = EXCLUDED.highest_bidder,
		winner_id = EXCLUDED.winner_id,
		final_amount = EXCLUDED.final_amount,
		end_date = EXCLUDED.end_date,
		bid_count = EXCLUDED.bid_count,
		status = EXCLUDED.status,
		version = EXCLUDED.version
		WHERE audit.auctions.version <= EXCLUDED.version`

	_, err := tx.ExecContext(ctx, query, args...)
	return err
}
