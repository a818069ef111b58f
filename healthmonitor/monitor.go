// Package healthmonitor is the adaptive, sliding-window error-rate tracker
// per (chain, host) described in spec.md §4.5. It demotes hosts whose
// observed error rate exceeds a threshold within a rolling window and
// recovers them once their error rate drops back down.
package healthmonitor

import (
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru"

	"github.com/dynode-wallet/dynode/config"
	"github.com/dynode-wallet/dynode/internal/logger"
)

var log = logger.NewModuleLogger(logger.ModuleHealth)

// maxTrackedHostsPerChain bounds the number of (chain,host) windows kept
// alive at once; least-recently-used hosts are evicted first. Grounded on
// common/cache.go's LRUConfig wrapper around hashicorp/golang-lru.
const maxTrackedHostsPerChain = 256

// HostHealthSnapshot is returned by RecordAttempt and AllowSwitchAfterSuccess.
type HostHealthSnapshot struct {
	Total      int
	Errors     int
	Ratio      float64
	BlockedNow bool
}

type bucket struct {
	second int64
	total  int
	errors int
}

type hostWindow struct {
	mu           sync.Mutex
	buckets      []bucket
	blockedUntil time.Time
	wasBlocked   bool
}

type chainState struct {
	hosts        *lru.Cache // host string -> *hostWindow
	mu           sync.RWMutex
	lastSwitchAt time.Time
}

// Monitor tracks health windows keyed by (chain, host), with per-chain
// locking so one hot chain never stalls another (spec.md §5).
type Monitor struct {
	cfg config.AdaptiveMonitoringConfig

	mu     sync.RWMutex
	chains map[string]*chainState
}

// New builds a Monitor from the adaptive monitoring config in spec.md §6.
func New(cfg config.AdaptiveMonitoringConfig) *Monitor {
	return &Monitor{cfg: cfg, chains: map[string]*chainState{}}
}

func (m *Monitor) chainFor(chain string) *chainState {
	m.mu.RLock()
	cs, ok := m.chains[chain]
	m.mu.RUnlock()
	if ok {
		return cs
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if cs, ok := m.chains[chain]; ok {
		return cs
	}
	hosts, err := lru.New(maxTrackedHostsPerChain)
	if err != nil {
		// lru.New only errors on non-positive size, which never happens here.
		panic(err)
	}
	cs = &chainState{hosts: hosts}
	m.chains[chain] = cs
	return cs
}

func (cs *chainState) windowFor(host string) *hostWindow {
	if v, ok := cs.hosts.Get(host); ok {
		return v.(*hostWindow)
	}
	w := &hostWindow{}
	cs.hosts.Add(host, w)
	return w
}

// RecordAttempt advances the window, prunes buckets older than the
// configured window, records the attempt, evaluates block-state
// transitions, and returns a snapshot, per spec.md §4.5.
func (m *Monitor) RecordAttempt(chain, host string, hasError bool) HostHealthSnapshot {
	cs := m.chainFor(chain)
	w := cs.windowFor(host)

	w.mu.Lock()
	defer w.mu.Unlock()

	now := time.Now()
	nowSecond := now.Unix()
	w.pruneLocked(nowSecond, int64(m.cfg.Window/time.Second))
	w.pushLocked(nowSecond, hasError)

	total, errors := w.totalsLocked()
	ratio := 0.0
	if total > 0 {
		ratio = float64(errors) / float64(total)
	}

	w.evaluateBlockStateLocked(now, total, ratio, m.cfg)

	return HostHealthSnapshot{
		Total:      total,
		Errors:     errors,
		Ratio:      ratio,
		BlockedNow: now.Before(w.blockedUntil),
	}
}

func (w *hostWindow) pruneLocked(nowSecond, windowSeconds int64) {
	if windowSeconds <= 0 {
		windowSeconds = 60
	}
	cutoff := nowSecond - windowSeconds
	i := 0
	for ; i < len(w.buckets); i++ {
		if w.buckets[i].second >= cutoff {
			break
		}
	}
	w.buckets = w.buckets[i:]
}

func (w *hostWindow) pushLocked(nowSecond int64, hasError bool) {
	if n := len(w.buckets); n > 0 && w.buckets[n-1].second == nowSecond {
		w.buckets[n-1].total++
		if hasError {
			w.buckets[n-1].errors++
		}
		return
	}
	b := bucket{second: nowSecond, total: 1}
	if hasError {
		b.errors = 1
	}
	w.buckets = append(w.buckets, b)
}

func (w *hostWindow) totalsLocked() (total, errors int) {
	for _, b := range w.buckets {
		total += b.total
		errors += b.errors
	}
	return
}

// evaluateBlockStateLocked implements the block-state transitions of
// spec.md §4.5.
func (w *hostWindow) evaluateBlockStateLocked(now time.Time, total int, ratio float64, cfg config.AdaptiveMonitoringConfig) {
	switch {
	case total >= cfg.MinSamples && ratio >= cfg.ErrorThreshold:
		w.blockedUntil = now.Add(cfg.Cooldown)
		w.wasBlocked = true
	case now.Before(w.blockedUntil):
		// remain blocked
	case w.wasBlocked && ratio > cfg.RecoveryThreshold:
		// flappy host: re-block
		w.blockedUntil = now.Add(cfg.Cooldown)
	case w.wasBlocked:
		// recovered
		w.wasBlocked = false
		w.blockedUntil = time.Time{}
	default:
		// unchanged
	}
}

// ReorderURLs stable-partitions urls into (not-blocked-now, blocked-now),
// per spec.md §4.5. Throttled upstreams go last but remain reachable.
func (m *Monitor) ReorderURLs(chain string, urls []string) []string {
	cs := m.chainFor(chain)
	now := time.Now()

	notBlocked := make([]string, 0, len(urls))
	blocked := make([]string, 0)
	for _, url := range urls {
		if v, ok := cs.hosts.Peek(url); ok {
			w := v.(*hostWindow)
			w.mu.Lock()
			isBlocked := now.Before(w.blockedUntil)
			w.mu.Unlock()
			if isBlocked {
				blocked = append(blocked, url)
				continue
			}
		}
		notBlocked = append(notBlocked, url)
	}
	return append(notBlocked, blocked...)
}

// AllowSwitchAfterSuccess returns a snapshot only when currentHost is
// currently blocked and the chain's min_switch_interval has elapsed since
// the last switch (or no switch has occurred yet), per spec.md §4.5.
func (m *Monitor) AllowSwitchAfterSuccess(chain, currentHost, newHost string) (HostHealthSnapshot, bool) {
	cs := m.chainFor(chain)
	w := cs.windowFor(currentHost)

	w.mu.Lock()
	now := time.Now()
	blockedNow := now.Before(w.blockedUntil)
	total, errors := w.totalsLocked()
	w.mu.Unlock()

	if !blockedNow {
		return HostHealthSnapshot{}, false
	}

	cs.mu.RLock()
	lastSwitch := cs.lastSwitchAt
	cs.mu.RUnlock()

	if !lastSwitch.IsZero() && now.Sub(lastSwitch) < m.cfg.MinSwitchInterval {
		return HostHealthSnapshot{}, false
	}

	ratio := 0.0
	if total > 0 {
		ratio = float64(errors) / float64(total)
	}
	return HostHealthSnapshot{Total: total, Errors: errors, Ratio: ratio, BlockedNow: true}, true
}

// MarkSwitch records that a switch away from chain's current host just
// happened, throttling the next one via min_switch_interval.
func (m *Monitor) MarkSwitch(chain string) {
	cs := m.chainFor(chain)
	cs.mu.Lock()
	cs.lastSwitchAt = time.Now()
	cs.mu.Unlock()
}
