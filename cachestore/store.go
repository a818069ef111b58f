// Package cachestore is the bounded, per-chain in-memory response cache
// described in spec.md §4.3.
package cachestore

import (
	"encoding/json"
	"sort"
	"sync"
	"time"

	"github.com/VictoriaMetrics/fastcache"
	"github.com/dynode-wallet/dynode/cacherules"
	"github.com/dynode-wallet/dynode/internal/logger"
	"github.com/dynode-wallet/dynode/jsonrpc"
)

var log = logger.NewModuleLogger(logger.ModuleCache)

// CachedResponse mirrors spec.md §3.
type CachedResponse struct {
	Body        []byte
	Status      uint16
	ContentType string
	TTLSeconds  uint64
}

// entry is the age/TTL bookkeeping record fastcache itself can't answer
// (it has no created_at or per-key TTL introspection): one per cached
// response, guarded by that chain's lock. The response body itself lives
// only in chainCache.bytes — entry never holds a second copy.
type entry struct {
	createdAt  time.Time
	size       int
	ttlSeconds uint64
}

func entrySize(body []byte) int {
	const overhead = 64 // O(1) bookkeeping overhead per spec.md §3
	return len(body) + overhead
}

func isExpired(e *entry) bool {
	return time.Since(e.createdAt) > time.Duration(e.ttlSeconds)*time.Second
}

type chainCache struct {
	mu      sync.RWMutex
	bytes   *fastcache.Cache
	entries map[string]*entry
}

// Store is the bounded per-chain cache described in spec.md §4.3. Each
// chain's lock is independent so a hot chain never stalls another
// (spec.md §5).
type Store struct {
	rules         *cacherules.Engine
	maxMemoryBytes int
	mu            sync.RWMutex
	chains        map[string]*chainCache
}

// New builds a Store with the given total memory budget (shared evenly
// across however many chains are actually used) and rule engine.
func New(maxMemoryBytes int, rules *cacherules.Engine) *Store {
	return &Store{maxMemoryBytes: maxMemoryBytes, rules: rules, chains: map[string]*chainCache{}}
}

func (s *Store) chainFor(chain string) *chainCache {
	s.mu.RLock()
	c, ok := s.chains[chain]
	s.mu.RUnlock()
	if ok {
		return c
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if c, ok := s.chains[chain]; ok {
		return c
	}
	budget := s.maxMemoryBytes / maxInt(len(s.chains)+1, 1)
	c = &chainCache{
		bytes:   fastcache.New(maxInt(budget, 32*1024)),
		entries: map[string]*entry{},
	}
	s.chains[chain] = c
	return c
}

// budgetPerChain is the per-chain memory budget: max_memory_bytes divided by
// the number of chains currently in use, per spec.md §4.3.
func (s *Store) budgetPerChain() int {
	s.mu.RLock()
	n := len(s.chains)
	s.mu.RUnlock()
	return s.maxMemoryBytes / maxInt(n, 1)
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

// Get returns the cached response for key, or ok=false if missing or
// expired. fastcache is the single source of truth for the body: even if
// our own bookkeeping still lists key as live, fastcache's internal
// eviction (it is a fixed-size byte arena and can drop entries on its own
// to stay within budget) can have already dropped it, and that miss must
// win. An expired entry is purged lazily on the next Set, not here — a
// reader must never block writers (spec.md §4.3).
func (s *Store) Get(chain, key string) (CachedResponse, bool) {
	c := s.chainFor(chain)
	c.mu.RLock()
	e, ok := c.entries[key]
	c.mu.RUnlock()
	if !ok {
		return CachedResponse{}, false
	}
	if isExpired(e) {
		return CachedResponse{}, false
	}

	raw, ok := c.bytes.HasGet(nil, []byte(key))
	if !ok {
		return CachedResponse{}, false
	}
	var response CachedResponse
	if err := json.Unmarshal(raw, &response); err != nil {
		log.Errorw("failed to unmarshal cached response", "chain", chain, "err", err)
		return CachedResponse{}, false
	}
	return response, true
}

// Set inserts or replaces a cache entry and then runs eviction, per
// spec.md §4.3.
func (s *Store) Set(chain, key string, response CachedResponse) {
	c := s.chainFor(chain)
	body, err := json.Marshal(response)
	if err != nil {
		log.Errorw("failed to marshal cached response", "chain", chain, "err", err)
		return
	}

	c.mu.Lock()
	c.bytes.Set([]byte(key), body)
	c.entries[key] = &entry{createdAt: time.Now(), size: entrySize(body), ttlSeconds: response.TTLSeconds}
	c.mu.Unlock()

	s.evict(chain, c)
}

// ShouldCache forwards to the rule engine, per spec.md §4.3.
func (s *Store) ShouldCache(chain string, t jsonrpc.RequestType) (uint64, bool) {
	return s.rules.ShouldCache(chain, t)
}

// evict sweeps expired entries, accumulates live size, and if still over
// budget evicts oldest-first by created_at until under budget, per the
// eviction policy in spec.md §4.3.
func (s *Store) evict(chain string, c *chainCache) {
	budget := s.budgetPerChain()

	c.mu.Lock()
	defer c.mu.Unlock()

	liveSize := 0
	for key, e := range c.entries {
		if isExpired(e) {
			delete(c.entries, key)
			c.bytes.Del([]byte(key))
			continue
		}
		liveSize += e.size
	}

	if liveSize <= budget {
		return
	}

	type agedKey struct {
		key       string
		createdAt time.Time
	}
	aged := make([]agedKey, 0, len(c.entries))
	for key, e := range c.entries {
		aged = append(aged, agedKey{key, e.createdAt})
	}
	sort.SliceStable(aged, func(i, j int) bool {
		return aged[i].createdAt.Before(aged[j].createdAt)
	})

	for _, ak := range aged {
		if liveSize <= budget {
			break
		}
		e := c.entries[ak.key]
		liveSize -= e.size
		delete(c.entries, ak.key)
		c.bytes.Del([]byte(ak.key))
	}
}
