package transferpricing

import (
	"errors"

	"github.com/shopspring/decimal"
)

// ConvergencePolicy bounds the fixed-point iteration over all pairings.
type ConvergencePolicy struct {
	// SumThreshold stops iterating once a pass moves less than this in total.
	SumThreshold decimal.Decimal
	// PercentDecreaseThreshold is the share of pairings, in percent, giving
	// the number of improving passes after which a stall forces termination.
	PercentDecreaseThreshold int
	// PercentNumberOfIterations is the share of pairings, in percent, giving
	// the pass budget left once termination is forced.
	PercentNumberOfIterations int
	// MaxIterationsMultiplier times the pairing count is the initial budget.
	MaxIterationsMultiplier int
}

// DefaultConvergencePolicy returns the stock tuning.
func DefaultConvergencePolicy() ConvergencePolicy {
	return ConvergencePolicy{
		SumThreshold:              decimal.RequireFromString("0.01"),
		PercentDecreaseThreshold:  5,
		PercentNumberOfIterations: 5,
		MaxIterationsMultiplier:   20,
	}
}

// Validate checks that the policy can bound an iteration
func (p ConvergencePolicy) Validate() error {
	if p.SumThreshold.IsNegative() {
		return errors.New("convergence sum threshold cannot be negative")
	}
	if p.PercentDecreaseThreshold < 1 || p.PercentDecreaseThreshold > 100 {
		return errors.New("convergence percent decrease threshold must be between 1 and 100")
	}
	if p.PercentNumberOfIterations < 1 || p.PercentNumberOfIterations > 100 {
		return errors.New("convergence percent number of iterations must be between 1 and 100")
	}
	if p.MaxIterationsMultiplier < 1 {
		return errors.New("convergence max iterations multiplier must be positive")
	}
	return nil
}

// MaxIterations is the initial pass budget for n pairings
func (p ConvergencePolicy) MaxIterations(n int) int {
	return n * p.MaxIterationsMultiplier
}

// DecreaseThreshold is ceil(PercentDecreaseThreshold * n / 100)
func (p ConvergencePolicy) DecreaseThreshold(n int) int {
	return ceilPercent(p.PercentDecreaseThreshold, n)
}

// ForcedIterations is ceil(PercentNumberOfIterations * n / 100)
func (p ConvergencePolicy) ForcedIterations(n int) int {
	return ceilPercent(p.PercentNumberOfIterations, n)
}

func ceilPercent(percent, n int) int {
	return (percent*n + 99) / 100
}

// Budget tracks the remaining passes of one run.
type Budget struct {
	policy            ConvergencePolicy
	n                 int
	remaining         int
	decreaseThreshold int
	decreaseRemaining int
	previous          decimal.NullDecimal
	forced            bool
}

// NewBudget starts a budget for n pairings.
func (p ConvergencePolicy) NewBudget(n int) *Budget {
	threshold := p.DecreaseThreshold(n)
	return &Budget{
		policy:            p,
		n:                 n,
		remaining:         p.MaxIterations(n),
		decreaseThreshold: threshold,
		decreaseRemaining: threshold,
	}
}

// Continue reports whether another pass should run after a pass that moved
// sum in total, and consumes one pass of the budget when it does. Once a
// stall forces termination the budget never grows back.
func (b *Budget) Continue(sum decimal.Decimal) bool {
	if b.remaining <= 0 || !sum.GreaterThan(b.policy.SumThreshold) {
		return false
	}
	switch {
	case !b.previous.Valid || sum.LessThan(b.previous.Decimal):
		b.decreaseRemaining--
	case b.decreaseRemaining < 1:
		if forced := b.policy.ForcedIterations(b.n); forced < b.remaining {
			b.remaining = forced
			b.forced = true
		}
	default:
		b.decreaseRemaining = b.decreaseThreshold
	}
	b.previous = decimal.NewNullDecimal(sum)
	b.remaining--
	return true
}

// Remaining returns the passes left
func (b *Budget) Remaining() int { return b.remaining }

// Forced reports whether a stall shrank the budget
func (b *Budget) Forced() bool { return b.forced }
