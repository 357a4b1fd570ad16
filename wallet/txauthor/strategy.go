// Copyright (c) 2025 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package txauthor

import (
	"errors"
	"fmt"
	"strings"

	"github.com/btcsuite/bchwallet/wtxmgr"
	"github.com/btcsuite/btcd/btcutil"
)

const (
	// MaxBranchAndBoundCandidates is the default number of candidates
	// above which branch-and-bound gives way to the greedy strategy.
	MaxBranchAndBoundCandidates = 24

	// MaxBranchAndBoundIterations is the default number of search nodes
	// branch-and-bound visits before it settles for the best selection
	// found so far.
	MaxBranchAndBoundIterations = 100_000

	// maxSearchDepth is the hard limit on the number of candidates
	// branch-and-bound can track in its inclusion mask.
	maxSearchDepth = 64
)

// ErrNoStrategy is returned when a strategy name is not known.
var ErrNoStrategy = errors.New("unknown coin selection strategy")

// SelectionStrategy chooses inputs among candidate utxos.
type SelectionStrategy interface {
	// Name returns the name the strategy is known by.
	Name() string

	// Select returns the inputs that fund the payment described by
	// params. When no subset is feasible the returned error is an
	// *InsufficientFundsError.
	Select(candidates []wtxmgr.Utxo, params *SelectionParams) (*Selection,
		error)
}

// GreedyLargestFirst adds candidates in descending amount order until the
// selection becomes feasible.
type GreedyLargestFirst struct{}

// A compile-time assertion to ensure GreedyLargestFirst implements the
// SelectionStrategy interface.
var _ SelectionStrategy = (*GreedyLargestFirst)(nil)

// Name implements SelectionStrategy.
func (GreedyLargestFirst) Name() string {
	return "largest"
}

// Select implements SelectionStrategy.
func (GreedyLargestFirst) Select(candidates []wtxmgr.Utxo,
	params *SelectionParams) (*Selection, error) {

	if err := params.validate(); err != nil {
		return nil, err
	}

	return selectGreedy(sortByAmount(candidates), params)
}

// selectGreedy runs the greedy strategy over candidates that are already
// sorted.
func selectGreedy(sorted []wtxmgr.Utxo,
	params *SelectionParams) (*Selection, error) {

	// Preselected inputs may already be enough on their own.
	if params.PreselectedInputs > 0 {
		if sel, ok := Evaluate(params, 0, 0); ok {
			return &sel, nil
		}
	}

	var total btcutil.Amount
	for i := range sorted {
		total += sorted[i].Amount

		sel, ok := Evaluate(params, i+1, total)
		if !ok {
			continue
		}

		sel.Inputs = sorted[:i+1:i+1]
		log.Debugf("Greedy selected %d of %d inputs, total=%v, fee=%v, "+
			"change=%v", i+1, len(sorted), sel.Total, sel.Fee,
			sel.Change)

		return &sel, nil
	}

	return nil, insufficientFunds(params, sorted)
}

// BranchAndBound searches the subsets of the candidates depth first and
// returns the feasible one with the smallest excess. Ties go to the subset
// with fewer inputs.
type BranchAndBound struct {
	// MaxCandidates bounds the number of candidates searched. Larger
	// candidate sets are handed to the greedy strategy. Zero means
	// MaxBranchAndBoundCandidates.
	MaxCandidates int

	// MaxIterations bounds the number of search nodes visited. Zero
	// means MaxBranchAndBoundIterations.
	MaxIterations int
}

// A compile-time assertion to ensure BranchAndBound implements the
// SelectionStrategy interface.
var _ SelectionStrategy = (*BranchAndBound)(nil)

// Name implements SelectionStrategy.
func (*BranchAndBound) Name() string {
	return "bnb"
}

// maxCandidates returns the effective candidate cap.
func (b *BranchAndBound) maxCandidates() int {
	n := b.MaxCandidates
	if n <= 0 {
		n = MaxBranchAndBoundCandidates
	}

	return min(n, maxSearchDepth)
}

// maxIterations returns the effective node visit cap.
func (b *BranchAndBound) maxIterations() int {
	if b.MaxIterations <= 0 {
		return MaxBranchAndBoundIterations
	}

	return b.MaxIterations
}

// searchNode is one entry of the branch-and-bound work stack. The first
// depth candidates have been decided, mask holds the included ones.
type searchNode struct {
	depth    int
	count    int
	total    btcutil.Amount
	mask     uint64
	included bool
}

// Select implements SelectionStrategy.
func (b *BranchAndBound) Select(candidates []wtxmgr.Utxo,
	params *SelectionParams) (*Selection, error) {

	if err := params.validate(); err != nil {
		return nil, err
	}

	sorted := sortByAmount(candidates)
	if len(sorted) > b.maxCandidates() {
		log.Debugf("Branch-and-bound falling back to greedy for %d "+
			"candidates (max %d)", len(sorted), b.maxCandidates())

		return selectGreedy(sorted, params)
	}

	// remaining[i] is the value of every candidate from i onwards, the
	// most a subtree rooted at depth i can still add.
	remaining := make([]btcutil.Amount, len(sorted)+1)
	for i := len(sorted) - 1; i >= 0; i-- {
		remaining[i] = remaining[i+1] + sorted[i].Amount
	}

	var (
		best       *Selection
		bestExcess btcutil.Amount
		bestMask   uint64
		iterations int
		exhausted  = true
	)

	consider := func(node searchNode) {
		sel, ok := Evaluate(params, node.count, node.total)
		if !ok {
			return
		}

		sel.Inputs = make([]wtxmgr.Utxo, node.count)
		excess := sel.Excess()
		if best != nil && (excess > bestExcess ||
			(excess == bestExcess && node.count >= len(best.Inputs))) {

			return
		}

		best, bestExcess, bestMask = &sel, excess, node.mask
	}

	stack := []searchNode{{included: params.PreselectedInputs > 0}}
	for len(stack) > 0 {
		if iterations >= b.maxIterations() {
			exhausted = false
			break
		}
		iterations++

		node := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		if node.included {
			consider(node)
		}

		if node.depth == len(sorted) {
			continue
		}

		// Even with every remaining candidate the subtree cannot cover
		// the target and the fee of the inputs chosen so far.
		reach := params.PreselectedValue + node.total +
			remaining[node.depth]
		if reach < params.Target+params.feeWithoutChange(node.count) {
			continue
		}

		// Push the exclusion branch first so inclusion is explored
		// first, matching the greedy order on the leftmost path.
		stack = append(stack, searchNode{
			depth: node.depth + 1,
			count: node.count,
			total: node.total,
			mask:  node.mask,
		}, searchNode{
			depth:    node.depth + 1,
			count:    node.count + 1,
			total:    node.total + sorted[node.depth].Amount,
			mask:     node.mask | 1<<node.depth,
			included: true,
		})
	}

	if best == nil {
		if !exhausted {
			log.Debugf("Branch-and-bound hit %d iterations without a "+
				"result, falling back to greedy", iterations)

			return selectGreedy(sorted, params)
		}

		return nil, insufficientFunds(params, sorted)
	}

	best.Inputs = best.Inputs[:0]
	for i := range sorted {
		if bestMask&(1<<i) != 0 {
			best.Inputs = append(best.Inputs, sorted[i])
		}
	}

	log.Debugf("Branch-and-bound selected %d of %d inputs after %d "+
		"iterations, excess=%v", len(best.Inputs), len(sorted),
		iterations, bestExcess)

	return best, nil
}

// SweepAll selects every candidate. The selection is not evaluated against
// the target, the fee is the estimate for spending everything into the
// recipient outputs.
type SweepAll struct{}

// A compile-time assertion to ensure SweepAll implements the
// SelectionStrategy interface.
var _ SelectionStrategy = (*SweepAll)(nil)

// Name implements SelectionStrategy.
func (SweepAll) Name() string {
	return "sweep"
}

// Select implements SelectionStrategy.
func (SweepAll) Select(candidates []wtxmgr.Utxo,
	params *SelectionParams) (*Selection, error) {

	inputs := make([]wtxmgr.Utxo, len(candidates))
	copy(inputs, candidates)

	sel := &Selection{
		Inputs: inputs,
		Total:  params.PreselectedValue + sumAmounts(inputs),
		Fee:    params.feeWithoutChange(len(inputs)),
	}
	sel.excess = sel.Total - params.Target - sel.Fee

	return sel, nil
}

// StrategyByName returns the strategy with the given name. The names are
// "largest", "bnb" and "sweep".
func StrategyByName(name string) (SelectionStrategy, error) {
	switch strings.ToLower(name) {
	case GreedyLargestFirst{}.Name():
		return GreedyLargestFirst{}, nil

	case (&BranchAndBound{}).Name():
		return &BranchAndBound{}, nil

	case SweepAll{}.Name():
		return SweepAll{}, nil

	default:
		return nil, fmt.Errorf("%w: %q", ErrNoStrategy, name)
	}
}
