// Package blockplan decides the next parser action — idle, enqueue, or
// parse — given the current parser state, per spec.md §4.7.
package blockplan

import "time"

// Kind distinguishes an Enqueue plan from a Parse plan.
type Kind int

const (
	Enqueue Kind = iota
	Parse
)

// Range is the contiguous, strictly ascending block range a Plan covers.
type Range struct {
	Blocks    []uint64
	EndBlock  int64
	Remaining int64
}

// Plan is the BlockPlan of spec.md §3.
type Plan struct {
	Kind  Kind
	Range Range
}

// State is the subset of ParserStateRow that PlanNextBlock needs.
type State struct {
	AwaitBlocks       int64
	QueueBehindBlocks int64
	ParallelBlocks    int64
}

// PlanNextBlock implements spec.md §4.7. It returns nil when the parser
// should idle (currentBlock is at or beyond the await horizon).
func PlanNextBlock(state State, currentBlock, latestBlock int64) *Plan {
	if currentBlock >= latestBlock-state.AwaitBlocks {
		return nil
	}

	if state.QueueBehindBlocks > 0 && latestBlock-currentBlock > state.QueueBehindBlocks {
		count := minInt64(state.ParallelBlocks, latestBlock-currentBlock-state.QueueBehindBlocks)
		return buildPlan(Enqueue, currentBlock, count, latestBlock)
	}

	count := minInt64(state.ParallelBlocks, latestBlock-state.AwaitBlocks-currentBlock)
	return buildPlan(Parse, currentBlock, count, latestBlock)
}

func buildPlan(kind Kind, currentBlock, count, latestBlock int64) *Plan {
	if count < 1 {
		count = 1
	}
	blocks := make([]uint64, count)
	for i := int64(0); i < count; i++ {
		blocks[i] = uint64(currentBlock + 1 + i)
	}
	endBlock := currentBlock + count
	return &Plan{
		Kind: kind,
		Range: Range{
			Blocks:    blocks,
			EndBlock:  endBlock,
			Remaining: latestBlock - endBlock,
		},
	}
}

func minInt64(a, b int64) int64 {
	if a < b {
		return a
	}
	return b
}

// TimeoutForState returns the chain's configured timeout when parallel
// blocks parsing is disabled (parallel_blocks == 0), else the default,
// per spec.md §4.7.
func TimeoutForState(parallelBlocks int64, chainTimeout, def time.Duration) time.Duration {
	if parallelBlocks == 0 {
		return chainTimeout
	}
	return def
}

// ShouldReloadCatchup reports whether the tip should be force-refreshed
// mid-loop to avoid stale drift during large backlogs, per spec.md §4.7.
func ShouldReloadCatchup(remaining, endBlock, reloadInterval int64) bool {
	if reloadInterval <= 0 {
		return false
	}
	return remaining > 0 && endBlock%reloadInterval == 0
}
