package query

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
)

// TransactionHistory returns a user's wallet ledger entries, newest first,
// optionally filtered by transaction type.
func (s *Service) TransactionHistory(
	ctx context.Context,
	userID uuid.UUID,
	txnType *string,
	limit int,
) ([]TransactionResponse, error) {
	query := `
		SELECT txn_id, user_id, txn_type, amount, description, auction_id,
		       balance_after, locked_after, status, created_at
		FROM audit.wallet_transactions
		WHERE user_id = $1
	`
	args := []interface{}{userID}
	argIdx := 2

	if txnType != nil {
		query += fmt.Sprintf(" AND txn_type = $%d", argIdx)
		args = append(args, *txnType)
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

	return scanTransactions(rows)
}

// LastRecordedBalance returns the balance and locked amount after the user's
// most recent persisted transaction. Used by the reconciliation check
// comparing the durable trail against the in-memory ledger.
func (s *Service) LastRecordedBalance(ctx context.Context, userID uuid.UUID) (balance, locked int64, err error) {
	err = s.db.QueryRowContext(ctx, `
		SELECT balance_after, locked_after
		FROM audit.wallet_transactions
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT 1
	`, userID).Scan(&balance, &locked)
	if err == sql.ErrNoRows {
		return 0, 0, nil
	}
	return balance, locked, err
}

// PendingReceivables returns unpaid winner payment shortfalls, oldest first.
func (s *Service) PendingReceivables(ctx context.Context, limit int) ([]TransactionResponse, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT txn_id, user_id, txn_type, amount, description, auction_id,
		       balance_after, locked_after, status, created_at
		FROM audit.wallet_transactions
		WHERE txn_type = 'payment' AND status = 'pending'
		ORDER BY created_at ASC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanTransactions(rows)
}

func scanTransactions(rows *sql.Rows) ([]TransactionResponse, error) {
	var txns []TransactionResponse
	for rows.Next() {
		var t TransactionResponse
		var auctionID uuid.NullUUID
		if err := rows.Scan(
			&t.TxnID, &t.UserID, &t.TxnType, &t.Amount, &t.Description,
			&auctionID, &t.BalanceAfter, &t.LockedAfter, &t.Status, &t.CreatedAt,
		); err != nil {
			return nil, err
		}
		if auctionID.Valid {
			t.AuctionID = &auctionID.UUID
		}
		txns = append(txns, t)
	}
	return txns, rows.Err()
}
