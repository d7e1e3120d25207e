package strategy

import (
	"fmt"
	"sync"

	"github.com/tpa/backend/internal/domain/shared"
	"github.com/tpa/backend/internal/domain/shared/strategy"
	"github.com/tpa/backend/internal/domain/transferpricing"
)

// StrategyRegistry manages method strategy registrations
type StrategyRegistry struct {
	mu      sync.RWMutex
	methods map[transferpricing.Method]strategy.MethodStrategy
}

// NewStrategyRegistry creates a new strategy registry
func NewStrategyRegistry() *StrategyRegistry {
	return &StrategyRegistry{
		methods: make(map[transferpricing.Method]strategy.MethodStrategy),
	}
}

// RegisterMethodStrategy registers the strategy for its method
func (r *StrategyRegistry) RegisterMethodStrategy(s strategy.MethodStrategy) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	m := s.Method()
	if !m.IsValid() {
		return fmt.Errorf("%w: strategy '%s' handles unknown method '%s'", shared.ErrInvalidInput, s.Name(), m)
	}
	if _, exists := r.methods[m]; exists {
		return fmt.Errorf("%w: strategy for method '%s' already registered", shared.ErrAlreadyExists, m)
	}
	r.methods[m] = s
	return nil
}

// GetMethodStrategy returns the strategy handling m
func (r *StrategyRegistry) GetMethodStrategy(m transferpricing.Method) (strategy.MethodStrategy, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s, exists := r.methods[m]
	if !exists {
		return nil, fmt.Errorf("%w: no strategy for method '%s'", shared.ErrNotFound, m)
	}
	return s, nil
}

// ListMethodStrategies returns the registered strategies in method declaration order
func (r *StrategyRegistry) ListMethodStrategies() []strategy.MethodStrategy {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]strategy.MethodStrategy, 0, len(r.methods))
	for _, m := range transferpricing.AllMethods() {
		if s, ok := r.methods[m]; ok {
			out = append(out, s)
		}
	}
	return out
}

// UnregisterMethodStrategy removes the strategy for m
func (r *StrategyRegistry) UnregisterMethodStrategy(m transferpricing.Method) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.methods[m]; !exists {
		return fmt.Errorf("%w: no strategy for method '%s'", shared.ErrNotFound, m)
	}
	delete(r.methods, m)
	return nil
}

// Verify returns an error naming the first method without a strategy
func (r *StrategyRegistry) Verify() error {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, m := range transferpricing.AllMethods() {
		if _, ok := r.methods[m]; !ok {
			return fmt.Errorf("%w: no strategy for method '%s'", shared.ErrInvalidState, m)
		}
	}
	return nil
}

// Len returns the number of registered strategies
func (r *StrategyRegistry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.methods)
}
