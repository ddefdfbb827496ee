// Package wallet owns every user's available and locked balance. All
// balance-affecting operations append an immutable Transaction, and each
// user's wallet is mutated under that user's own lock, so concurrent bids
// across auctions contend correctly for the same available balance.
package wallet

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"BidVault/internal/auctionerrors"
)

// Snapshot is a point-in-time view of one wallet.
type Snapshot struct {
	UserID    uuid.UUID
	Balance   int64
	Locked    int64
	Available int64
	Tier      string
}

// WinnerSettlement reports the ledger effect of converting a winner's deposit
// into the final payment.
type WinnerSettlement struct {
	DepositConsumed int64
	PaymentCovered  int64
	PaymentPending  int64 // receivable: remaining payment the wallet could not cover
	Snapshot        Snapshot
}

type account struct {
	mu      sync.Mutex
	balance int64
	locked  int64
	tier    string
	txns    []Transaction // append-only
}

func (a *account) available() int64 {
	return a.balance - a.locked
}

// Ledger is the wallet ledger for all users. Accounts are created on first
// touch and live for the account's lifetime.
type Ledger struct {
	mu       sync.RWMutex
	accounts map[uuid.UUID]*account
	tiers    TierSchedule
	auditCh  chan<- Transaction
	log      zerolog.Logger
}

// NewLedger creates a wallet ledger. auditCh, if non-nil, receives every
// appended transaction for durable audit; sends block so no entry is lost.
func NewLedger(tiers TierSchedule, auditCh chan<- Transaction, log zerolog.Logger) *Ledger {
	return &Ledger{
		accounts: make(map[uuid.UUID]*account),
		tiers:    tiers,
		auditCh:  auditCh,
		log:      log,
	}
}

func (l *Ledger) account(userID uuid.UUID) *account {
	l.mu.RLock()
	a, ok := l.accounts[userID]
	l.mu.RUnlock()
	if ok {
		return a
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if a, ok = l.accounts[userID]; ok {
		return a
	}
	a = &account{tier: l.tiers.Compute(0)}
	l.accounts[userID] = a
	return a
}

func (l *Ledger) snapshotLocked(userID uuid.UUID, a *account) Snapshot {
	return Snapshot{
		UserID:    userID,
		Balance:   a.balance,
		Locked:    a.locked,
		Available: a.available(),
		Tier:      a.tier,
	}
}

// GetSnapshot returns the current wallet view for a user.
func (l *Ledger) GetSnapshot(userID uuid.UUID) Snapshot {
	a := l.account(userID)
	a.mu.Lock()
	defer a.mu.Unlock()
	return l.snapshotLocked(userID, a)
}

// appendTxn records a ledger entry and forwards it to the audit channel.
// Caller holds the account lock.
func (l *Ledger) appendTxn(userID uuid.UUID, a *account, txn Transaction) {
	txn.ID = uuid.New()
	txn.UserID = userID
	txn.BalanceAfter = a.balance
	txn.LockedAfter = a.locked
	txn.CreatedAt = time.Now().UTC()
	a.txns = append(a.txns, txn)

	if l.auditCh != nil {
		l.auditCh <- txn
	}
}

// Credit adds funds to a wallet (top-up) and recomputes the tier.
func (l *Ledger) Credit(userID uuid.UUID, amount int64, description string) (Snapshot, error) {
	if amount <= 0 {
		return Snapshot{}, fmt.Errorf("%w: top-up must be positive, got %d", auctionerrors.ErrInvalidAmount, amount)
	}

	a := l.account(userID)
	a.mu.Lock()
	defer a.mu.Unlock()

	a.balance += amount
	a.tier = l.tiers.Compute(a.balance)
	l.appendTxn(userID, a, Transaction{
		Type:        TxCredit,
		Amount:      amount,
		Description: description,
	})

	return l.snapshotLocked(userID, a), nil
}

// Lock reserves amount out of the user's available balance as a security
// deposit. Check and mutation are one atomic step; on insufficient funds the
// wallet is untouched and the returned snapshot carries the pre-state so the
// caller can compute the exact shortfall.
func (l *Ledger) Lock(userID uuid.UUID, amount int64, auctionID uuid.UUID, description string) (Snapshot, error) {
	if amount <= 0 {
		return Snapshot{}, fmt.Errorf("%w: lock must be positive, got %d", auctionerrors.ErrInvalidAmount, amount)
	}

	a := l.account(userID)
	a.mu.Lock()
	defer a.mu.Unlock()

	if amount > a.available() {
		return l.snapshotLocked(userID, a),
			fmt.Errorf("%w: have %d, need %d", auctionerrors.ErrInsufficientFunds, a.available(), amount)
	}

	auction := auctionID
	a.locked += amount
	l.appendTxn(userID, a, Transaction{
		Type:        TxLock,
		Amount:      amount,
		Description: description,
		AuctionID:   &auction,
	})

	return l.snapshotLocked(userID, a), nil
}

// Refund releases a losing bidder's deposit back to available balance.
// The release is clamped at the zero floor; a clamp indicates drifted
// accounting and is logged for operator attention.
func (l *Ledger) Refund(userID uuid.UUID, amount int64, auctionID uuid.UUID, description string) (Snapshot, error) {
	if amount <= 0 {
		return Snapshot{}, fmt.Errorf("%w: refund must be positive, got %d", auctionerrors.ErrInvalidAmount, amount)
	}

	a := l.account(userID)
	a.mu.Lock()
	defer a.mu.Unlock()

	released := amount
	if released > a.locked {
		l.log.Warn().
			Str("user_id", userID.String()).
			Int64("locked", a.locked).
			Int64("refund", amount).
			Msg("refund clamped at zero locked balance")
		released = a.locked
	}

	auction := auctionID
	a.locked -= released
	l.appendTxn(userID, a, Transaction{
		Type:        TxRefund,
		Amount:      released,
		Description: description,
		AuctionID:   &auction,
	})

	return l.snapshotLocked(userID, a), nil
}

// SettleWinner converts the winner's held deposit into the final payment in
// one atomic wallet operation: the deposit is released and consumed (debit),
// and the remaining payment beyond the deposit is taken from available funds.
// If available funds cannot cover the full remainder, the covered part is
// debited and the rest is recorded as a pending payment receivable rather
// than silently clamping the balance.
func (l *Ledger) SettleWinner(userID uuid.UUID, finalPrice, deposit int64, auctionID uuid.UUID, title string) (WinnerSettlement, error) {
	if finalPrice <= 0 {
		return WinnerSettlement{}, fmt.Errorf("%w: final price must be positive, got %d", auctionerrors.ErrInvalidAmount, finalPrice)
	}
	if deposit < 0 {
		return WinnerSettlement{}, fmt.Errorf("%w: negative deposit %d", auctionerrors.ErrInvalidAmount, deposit)
	}

	a := l.account(userID)
	a.mu.Lock()
	defer a.mu.Unlock()

	consumed := deposit
	if consumed > a.locked {
		l.log.Warn().
			Str("user_id", userID.String()).
			Int64("locked", a.locked).
			Int64("deposit", deposit).
			Msg("winner deposit exceeds locked balance, clamping")
		consumed = a.locked
	}

	auction := auctionID
	remaining := finalPrice - consumed

	// Remaining payment first, against funds not locked for other auctions.
	var covered, pending int64
	if remaining > 0 {
		covered = remaining
		available := a.balance - a.locked
		if covered > available {
			covered = available
			if covered < 0 {
				covered = 0
			}
			pending = remaining - covered
		}

		if covered > 0 {
			a.balance -= covered
			l.appendTxn(userID, a, Transaction{
				Type:        TxPayment,
				Amount:      covered,
				Description: fmt.Sprintf("Final payment for winning %q (%d - %d deposit)", title, finalPrice, consumed),
				AuctionID:   &auction,
			})
		}

		if pending > 0 {
			l.log.Warn().
				Str("user_id", userID.String()).
				Int64("pending", pending).
				Msg("winner could not cover full remaining payment, recording receivable")
			l.appendTxn(userID, a, Transaction{
				Type:        TxPayment,
				Amount:      pending,
				Description: fmt.Sprintf("Outstanding payment for winning %q", title),
				AuctionID:   &auction,
				Status:      TxStatusPending,
			})
		}
	}

	// Deposit-to-payment conversion: released from locked and debited.
	if consumed > 0 {
		a.locked -= consumed
		a.balance -= consumed
		l.appendTxn(userID, a, Transaction{
			Type:        TxDebit,
			Amount:      consumed,
			Description: fmt.Sprintf("Security deposit adjusted into payment for %q", title),
			AuctionID:   &auction,
		})
	}

	if a.balance < 0 || a.locked < 0 || a.locked > a.balance {
		return WinnerSettlement{}, &auctionerrors.IntegrityError{
			Op:     "wallet.SettleWinner",
			Detail: fmt.Sprintf("user %s balance=%d locked=%d after settlement", userID, a.balance, a.locked),
		}
	}

	return WinnerSettlement{
		DepositConsumed: consumed,
		PaymentCovered:  covered,
		PaymentPending:  pending,
		Snapshot:        l.snapshotLocked(userID, a),
	}, nil
}

// Transactions returns the user's ledger entries, newest first, optionally
// filtered by type and truncated to limit (0 means no limit).
func (l *Ledger) Transactions(userID uuid.UUID, filter *TxType, limit int) []Transaction {
	a := l.account(userID)
	a.mu.Lock()
	defer a.mu.Unlock()

	out := make([]Transaction, 0, len(a.txns))
	for i := len(a.txns) - 1; i >= 0; i-- {
		txn := a.txns[i]
		if filter != nil && txn.Type != *filter {
			continue
		}
		out = append(out, txn)
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out
}

// VerifyIntegrity replays the user's transaction log and checks that the
// reconstructed balances match current state and that the balance invariants
// hold. A mismatch is an unrecoverable integrity error.
func (l *Ledger) VerifyIntegrity(userID uuid.UUID) error {
	a := l.account(userID)
	a.mu.Lock()
	defer a.mu.Unlock()

	var balance, locked int64
	for _, txn := range a.txns {
		if txn.Status == TxStatusPending {
			continue
		}
		switch txn.Type {
		case TxCredit:
			balance += txn.Amount
		case TxPayment:
			balance -= txn.Amount
		case TxDebit:
			balance -= txn.Amount
			locked -= txn.Amount
		case TxLock:
			locked += txn.Amount
		case TxUnlock, TxRefund:
			locked -= txn.Amount
		}
	}

	if balance != a.balance || locked != a.locked {
		return &auctionerrors.IntegrityError{
			Op: "wallet.VerifyIntegrity",
			Detail: fmt.Sprintf("user %s ledger replay balance=%d locked=%d, state balance=%d locked=%d",
				userID, balance, locked, a.balance, a.locked),
		}
	}
	if a.balance < 0 || a.locked < 0 || a.locked > a.balance {
		return &auctionerrors.IntegrityError{
			Op:     "wallet.VerifyIntegrity",
			Detail: fmt.Sprintf("user %s balance=%d locked=%d violates balance invariants", userID, a.balance, a.locked),
		}
	}
	return nil
}
