package wallet

import (
	"time"

	"github.com/google/uuid"
)

// TxType classifies a wallet ledger entry.
//
// Balance effects:
//
//	credit   balance += amount
//	debit    balance -= amount, locked -= amount (deposit consumed into payment)
//	lock     locked += amount
//	unlock   locked -= amount
//	refund   locked -= amount (deposit returned at settlement)
//	payment  balance -= amount (remaining payment beyond the consumed deposit)
type TxType uint8

const (
	TxCredit TxType = iota
	TxDebit
	TxLock
	TxUnlock
	TxRefund
	TxPayment
)

func (t TxType) String() string {
	switch t {
	case TxCredit:
		return "credit"
	case TxDebit:
		return "debit"
	case TxLock:
		return "lock"
	case TxUnlock:
		return "unlock"
	case TxRefund:
		return "refund"
	case TxPayment:
		return "payment"
	}
	return "unknown"
}

// ParseTxType converts the wire representation into a TxType.
func ParseTxType(s string) (TxType, bool) {
	switch s {
	case "credit":
		return TxCredit, true
	case "debit":
		return TxDebit, true
	case "lock":
		return TxLock, true
	case "unlock":
		return TxUnlock, true
	case "refund":
		return TxRefund, true
	case "payment":
		return TxPayment, true
	}
	return 0, false
}

// TxStatus marks settlement state of a ledger entry. Pending is used for the
// receivable recorded when a winner cannot cover the full remaining payment.
type TxStatus uint8

const (
	TxStatusCompleted TxStatus = iota
	TxStatusPending
	TxStatusFailed
)

func (s TxStatus) String() string {
	switch s {
	case TxStatusCompleted:
		return "completed"
	case TxStatusPending:
		return "pending"
	case TxStatusFailed:
		return "failed"
	}
	return "unknown"
}

// Transaction is one append-only wallet ledger entry. Entries are created,
// never mutated or deleted; the sequence of entries is the sole source of
// truth for reconstructing a wallet's history.
type Transaction struct {
	ID           uuid.UUID
	UserID       uuid.UUID
	Type         TxType
	Amount       int64
	Description  string
	AuctionID    *uuid.UUID
	BalanceAfter int64
	LockedAfter  int64
	Status       TxStatus
	CreatedAt    time.Time
}
