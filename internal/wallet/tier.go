package wallet

// TierThreshold maps a minimum wallet balance to a tier name.
type TierThreshold struct {
	Name       string
	MinBalance int64
}

// TierSchedule is an ordered set of thresholds, highest minimum first.
type TierSchedule []TierThreshold

// DefaultTiers mirrors the production tier settings.
func DefaultTiers() TierSchedule {
	return TierSchedule{
		{Name: "Platinum", MinBalance: 500000},
		{Name: "Gold", MinBalance: 200000},
		{Name: "Silver", MinBalance: 50000},
		{Name: "Bronze", MinBalance: 10000},
	}
}

// Compute returns the tier name for a balance, or "None" below every threshold.
func (ts TierSchedule) Compute(balance int64) string {
	for _, t := range ts {
		if balance >= t.MinBalance {
			return t.Name
		}
	}
	return "None"
}
