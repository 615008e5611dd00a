// Package query answers structural and mathematical questions against
// projections without mutating them. Everything here is pure and safe to run
// on any goroutine; expensive operations are guarded by a cost budget and
// return ErrComplexityBudgetExceeded instead of blocking indefinitely.
package query

import "github.com/plaenen/graphstore/pkg/graph"

// Budget bounds the work a single query may perform. What counts as "too
// large" is operator policy; these are the knobs.
type Budget struct {
	// MaxNodes refuses operations on views larger than this. 0 = default.
	MaxNodes int

	// MaxCost refuses operations whose primitive-step estimate exceeds
	// this. 0 = default.
	MaxCost int64
}

const (
	defaultMaxNodes = 10_000
	defaultMaxCost  = 5_000_000
)

// DefaultBudget returns the default cost ceiling.
func DefaultBudget() Budget {
	return Budget{MaxNodes: defaultMaxNodes, MaxCost: defaultMaxCost}
}

func (b Budget) maxNodes() int {
	if b.MaxNodes <= 0 {
		return defaultMaxNodes
	}
	return b.MaxNodes
}

func (b Budget) maxCost() int64 {
	if b.MaxCost <= 0 {
		return defaultMaxCost
	}
	return b.MaxCost
}

// checkNodes rejects a view with more than the allowed node count.
func (b Budget) checkNodes(op string, n int) error {
	if n > b.maxNodes() {
		return &graph.BudgetError{Operation: op, Cost: int64(n), Ceiling: int64(b.maxNodes())}
	}
	return nil
}

// checkCost rejects an operation whose estimated cost exceeds the ceiling.
func (b Budget) checkCost(op string, cost int64) error {
	if cost > b.maxCost() {
		return &graph.BudgetError{Operation: op, Cost: cost, Ceiling: b.maxCost()}
	}
	return nil
}
