// Package strategy declares the pluggable calculations of the engine. The
// implementations live in infrastructure/strategy.
package strategy

// Strategy names a calculation so that it can be listed and logged
type Strategy interface {
	// Name returns a stable slug such as "tnmm-ros"
	Name() string
	Description() string
}

// BaseStrategy carries the naming half of a Strategy for embedding
type BaseStrategy struct {
	name        string
	description string
}

func NewBaseStrategy(name, description string) BaseStrategy {
	return BaseStrategy{name: name, description: description}
}

func (s BaseStrategy) Name() string { return s.name }

func (s BaseStrategy) Description() string { return s.description }
