// Package deposit implements the security-deposit formula: the portion of a
// bid amount a bidder must have locked for the bid to be valid. The formula is
// path-dependent — it keys off the bidder's own first bid on the auction — and
// pure: callers supply the prior bid history, nothing is read or mutated here.
package deposit

// Deposit thresholds. Below Limit the deposit is a straight percentage (with
// doubling against the bidder's own first bid); above it, each full Step of
// bid amount adds one stepped increment.
const (
	Limit int64 = 80000
	Step  int64 = 10000
)

// ceilPct returns ceil(amount * pct / 100) in integer arithmetic.
func ceilPct(amount, pct int64) int64 {
	return (amount*pct + 99) / 100
}

// RequiredTotal computes the total deposit a bidder must have locked on one
// auction to place a bid of proposedAmount, given the bidder's own prior bid
// amounts on that auction in chronological order (empty for a first bid).
func RequiredTotal(securityPct int64, priorAmounts []int64, proposedAmount int64) int64 {
	if len(priorAmounts) == 0 {
		if proposedAmount <= Limit {
			return ceilPct(proposedAmount, securityPct)
		}
		return ceilPct(Limit, securityPct) + extraAboveLimit(securityPct, proposedAmount)
	}

	firstAmount := priorAmounts[0]
	initial := ceilPct(firstAmount, securityPct)

	var base int64
	if firstAmount <= Limit {
		// The deposit doubles each time the bid doubles relative to the
		// bidder's own first bid; the ratio is capped at Limit.
		capped := proposedAmount
		if capped > Limit {
			capped = Limit
		}
		base = initial
		for doubled := firstAmount * 2; doubled <= capped; doubled *= 2 {
			base *= 2
		}
	} else {
		base = ceilPct(Limit, securityPct)
	}

	return base + extraAboveLimit(securityPct, proposedAmount)
}

// extraAboveLimit is the stepped surcharge for the portion of the bid above
// Limit: one increment of ceil(Step * pct / 100) per full Step exceeded.
func extraAboveLimit(securityPct, proposedAmount int64) int64 {
	if proposedAmount <= Limit {
		return 0
	}
	extraSteps := (proposedAmount - Limit) / Step
	return ceilPct(extraSteps*Step, securityPct)
}

// IncrementalLock returns the amount of new funds to lock given the required
// total and what the bidder already has locked on the auction. The deposit is
// a monotonic ratchet: it never decreases mid-auction, so the increment is
// floored at zero.
func IncrementalLock(requiredTotal, alreadyLocked int64) int64 {
	if requiredTotal <= alreadyLocked {
		return 0
	}
	return requiredTotal - alreadyLocked
}
