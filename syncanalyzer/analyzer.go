// Package syncanalyzer picks the best upstream node given observations of
// each candidate's height, latency, and health, per spec.md §4.4.
package syncanalyzer

import (
	"sync"
	"time"

	"github.com/dynode-wallet/dynode/config"
)

// NodeSyncStatus mirrors spec.md §3.
type NodeSyncStatus struct {
	InSync             bool
	LatestBlockNumber  *uint64
	CurrentBlockNumber *uint64
}

// Height returns current_block_number, or latest_block_number, or 0, per
// spec.md §4.4 step 3.
func (s NodeSyncStatus) Height() uint64 {
	if s.CurrentBlockNumber != nil {
		return *s.CurrentBlockNumber
	}
	if s.LatestBlockNumber != nil {
		return *s.LatestBlockNumber
	}
	return 0
}

// NodeStatusState is Healthy(status) or Error{message}.
type NodeStatusState struct {
	Healthy *NodeSyncStatus
	Error   *string
}

// Observation is one upstream's reported state at a point in time.
type Observation struct {
	URL     string
	State   NodeStatusState
	Latency time.Duration
}

// SwitchReason mirrors spec.md §3's NodeSwitchReason.
type SwitchReason struct {
	CurrentNodeError *string
	BlockHeight      *BlockHeightReason
	Latency          *LatencyReason
}

type BlockHeightReason struct{ Old, New uint64 }
type LatencyReason struct{ OldMS, NewMS int64 }

// SwitchResult is returned when the analyzer recommends switching away
// from the current URL.
type SwitchResult struct {
	NewURL string
	Reason SwitchReason
}

// SelectBestNode implements spec.md §4.4's algorithm.
func SelectBestNode(currentURL string, observations []Observation, nodeCfg config.NodeMonitoringConfig, chain string) *SwitchResult {
	current, ok := findObservation(observations, currentURL)
	if !ok {
		return nil
	}

	var currentErrorReason *string
	if current.State.Error != nil {
		currentErrorReason = current.State.Error
	}

	candidate, ok := bestCandidate(observations, currentURL)
	if !ok {
		return nil
	}

	if currentErrorReason != nil {
		return &SwitchResult{NewURL: candidate.URL, Reason: SwitchReason{CurrentNodeError: currentErrorReason}}
	}

	currentHeight := current.State.Healthy.Height()
	candidateHeight := candidate.State.Healthy.Height()

	delta := int64(candidateHeight) - int64(currentHeight)
	threshold := int64(nodeCfg.BlockDelayThresholdFor(chain))
	if delta > threshold {
		return &SwitchResult{
			NewURL: candidate.URL,
			Reason: SwitchReason{BlockHeight: &BlockHeightReason{Old: currentHeight, New: candidateHeight}},
		}
	}

	if current.State.Healthy.InSync && !isLatencyImprovementSignificant(current.Latency, candidate.Latency, nodeCfg) {
		return nil
	}

	return &SwitchResult{
		NewURL: candidate.URL,
		Reason: SwitchReason{Latency: &LatencyReason{OldMS: current.Latency.Milliseconds(), NewMS: candidate.Latency.Milliseconds()}},
	}
}

func findObservation(observations []Observation, url string) (Observation, bool) {
	for _, o := range observations {
		if o.URL == url {
			return o, true
		}
	}
	return Observation{}, false
}

// bestCandidate finds the best candidate excluding currentURL: only
// Healthy && in_sync, ordered by higher height then lower latency, per
// spec.md §4.4 step 3.
func bestCandidate(observations []Observation, currentURL string) (Observation, bool) {
	var best Observation
	found := false
	for _, o := range observations {
		if o.URL == currentURL {
			continue
		}
		if o.State.Healthy == nil || !o.State.Healthy.InSync {
			continue
		}
		if !found {
			best = o
			found = true
			continue
		}
		if better(o, best) {
			best = o
		}
	}
	return best, found
}

func better(a, b Observation) bool {
	ah, bh := a.State.Healthy.Height(), b.State.Healthy.Height()
	if ah != bh {
		return ah > bh
	}
	return a.Latency < b.Latency
}

// isLatencyImprovementSignificant requires both an absolute delta exceeding
// latency_threshold and a relative delta exceeding latency_threshold_percent,
// per spec.md §4.4.
func isLatencyImprovementSignificant(current, candidate time.Duration, cfg config.NodeMonitoringConfig) bool {
	if cfg.LatencyThreshold == nil || cfg.LatencyThresholdPercent == nil {
		return false
	}
	if current <= candidate {
		return false
	}
	absoluteDelta := current - candidate
	if absoluteDelta <= *cfg.LatencyThreshold {
		return false
	}
	relativeDelta := float64(absoluteDelta) / float64(current) * 100
	return relativeDelta > *cfg.LatencyThresholdPercent
}

// CurrentURLStore tracks the sticky "current" upstream URL per chain, a
// supplemented feature grounded on original_source's
// RwLock<HashMap<Chain,String>> (see SPEC_FULL.md §5).
type CurrentURLStore struct {
	mu      sync.RWMutex
	current map[string]string
}

// NewCurrentURLStore builds an empty store.
func NewCurrentURLStore() *CurrentURLStore {
	return &CurrentURLStore{current: map[string]string{}}
}

// Get returns the current URL for chain, or ok=false if unset.
func (s *CurrentURLStore) Get(chain string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	url, ok := s.current[chain]
	return url, ok
}

// Set records the current URL for chain.
func (s *CurrentURLStore) Set(chain, url string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.current[chain] = url
}
