package strategy

import (
	"github.com/tpa/backend/internal/domain/shared/strategy"
	"github.com/tpa/backend/internal/infrastructure/strategy/method"
)

// NewRegistryWithDefaults creates a new registry with a strategy registered
// for every transfer-pricing method. It fails if any method is left without
// a strategy.
func NewRegistryWithDefaults() (*StrategyRegistry, error) {
	r := NewStrategyRegistry()

	defaults := []strategy.MethodStrategy{
		method.NewROAStrategy(),
		method.NewROCEStrategy(),
		method.NewROSStrategy(),
		method.NewROOGSStrategy(),
		method.NewROCOGSStrategy(),
		method.NewROOEStrategy(),
		method.NewROCStrategy(),
		method.NewRoyaltyStrategy(),
	}
	for _, s := range defaults {
		if err := r.RegisterMethodStrategy(s); err != nil {
			return nil, err
		}
	}

	if err := r.Verify(); err != nil {
		return nil, err
	}
	return r, nil
}
