// Package query serves read-only history from the Postgres audit tables.
// Live auction state comes from the in-memory registry; these queries back
// the history endpoints and survive restarts.
package query

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"BidVault/internal/auctionerrors"
)

type Service struct {
	db *sql.DB
}

func NewService(db *sql.DB) *Service {
	return &Service{db: db}
}

// AuctionSummary returns the read-model row for one auction.
func (s *Service) AuctionSummary(ctx context.Context, auctionID uuid.UUID) (*AuctionSummaryResponse, error) {
	var (
		r             AuctionSummaryResponse
		highestBidder uuid.NullUUID
		winnerID      uuid.NullUUID
		finalAmount   sql.NullInt64
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT auction_id, title, seller_id, starting_price, current_price,
		       security_percentage, highest_bidder, winner_id, final_amount,
		       start_date, end_date, bid_count, status
		FROM audit.auctions
		WHERE auction_id = $1
	`, auctionID).Scan(
		&r.AuctionID, &r.Title, &r.SellerID, &r.StartingPrice, &r.CurrentPrice,
		&r.SecurityPercentage, &highestBidder, &winnerID, &finalAmount,
		&r.StartDate, &r.EndDate, &r.BidCount, &r.Status,
	)
	if err == sql.ErrNoRows {
		return nil, auctionerrors.ErrAuctionNotFound
	}
	if err != nil {
		return nil, err
	}
	if highestBidder.Valid {
		r.HighestBidder = &highestBidder.UUID
	}
	if winnerID.Valid {
		r.WinnerID = &winnerID.UUID
	}
	if finalAmount.Valid {
		r.FinalAmount = &finalAmount.Int64
	}
	return &r, nil
}

// AuctionBids returns an auction's bids, highest amount first.
func (s *Service) AuctionBids(ctx context.Context, auctionID uuid.UUID, limit int) ([]BidResponse, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT bid_id, auction_id, bidder_id, amount, is_top_bid,
		       locked_deposit, deposit_refunded, status, created_at
		FROM audit.bids
		WHERE auction_id = $1
		ORDER BY amount DESC, created_at ASC
		LIMIT $2
	`, auctionID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanBids(rows)
}

// UserBids returns a bidder's bids across all auctions, newest first.
// Supports cursor pagination on created_at.
func (s *Service) UserBids(ctx context.Context, bidderID uuid.UUID, limit int, before *time.Time) ([]BidResponse, error) {
	query := `
		SELECT bid_id, auction_id, bidder_id, amount, is_top_bid,
		       locked_deposit, deposit_refunded, status, created_at
		FROM audit.bids
		WHERE bidder_id = $1
	`
	args := []interface{}{bidderID}
	argIdx := 2

	if before != nil {
		query += fmt.Sprintf(" AND created_at < $%d", argIdx)
		args = append(args, *before)
		argIdx++
	}

	query += " ORDER BY created_at DESC"
	query += fmt.Sprintf(" LIMIT $%d", argIdx)
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanBids(rows)
}

// CompletionSummary returns the auction row joined with bid aggregates, the
// view backing the post-settlement report.
func (s *Service) CompletionSummary(ctx context.Context, auctionID uuid.UUID) (*CompletionSummaryResponse, error) {
	summary, err := s.AuctionSummary(ctx, auctionID)
	if err != nil {
		return nil, err
	}

	out := &CompletionSummaryResponse{Auction: *summary}
	err = s.db.QueryRowContext(ctx, `
		SELECT COUNT(*), COUNT(DISTINCT bidder_id),
		       COALESCE(SUM(locked_deposit) FILTER (WHERE deposit_refunded), 0)
		FROM audit.bids
		WHERE auction_id = $1
	`, auctionID).Scan(&out.TotalBids, &out.UniqueBidders, &out.DepositRefunded)
	if err != nil {
		return nil, err
	}
	return out, nil
}

func scanBids(rows *sql.Rows) ([]BidResponse, error) {
	var bids []BidResponse
	for rows.Next() {
		var b BidResponse
		if err := rows.Scan(
			&b.BidID, &b.AuctionID, &b.BidderID, &b.Amount, &b.IsTopBid,
			&b.LockedDeposit, &b.DepositRefunded, &b.Status, &b.CreatedAt,
		); err != nil {
			return nil, err
		}
		bids = append(bids, b)
	}
	return bids, rows.Err()
}
