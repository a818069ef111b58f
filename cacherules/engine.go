// Package cacherules matches an incoming request against per-chain cache
// rules, per spec.md §4.2.
package cacherules

import (
	"encoding/json"
	"reflect"

	"github.com/dynode-wallet/dynode/config"
	"github.com/dynode-wallet/dynode/internal/logger"
	"github.com/dynode-wallet/dynode/jsonrpc"
)

var log = logger.NewModuleLogger(logger.ModuleCache)

// Engine evaluates config.CacheRule sets against inbound requests.
type Engine struct {
	rulesByChain map[string][]config.CacheRule
}

// New builds an Engine from the chain -> rule-list mapping in cache config.
func New(rulesByChain map[string][]config.CacheRule) *Engine {
	return &Engine{rulesByChain: rulesByChain}
}

// ShouldCache returns the TTL for a cacheable request, or ok=false when no
// rule matches (also the case for unknown chains and malformed bodies,
// which are not errors per spec.md §4.2).
func (e *Engine) ShouldCache(chain string, t jsonrpc.RequestType) (ttlSeconds uint64, ok bool) {
	rules, exists := e.rulesByChain[chain]
	if !exists {
		return 0, false
	}

	if t.RPC != nil && t.RPC.IsBatch() {
		// A batch cannot be cached as a whole, per spec.md §3 invariant.
		return 0, false
	}

	for _, rule := range rules {
		if ruleMatches(rule, t) {
			return rule.TTLSeconds, true
		}
	}
	return 0, false
}

func ruleMatches(rule config.CacheRule, t jsonrpc.RequestType) bool {
	switch {
	case t.Regular != nil:
		return regularRuleMatches(rule, t.Regular)
	case t.RPC != nil && t.RPC.Single != nil:
		return rule.RPCMethod != "" && rule.RPCMethod == t.RPC.Single.Method
	default:
		return false
	}
}

func regularRuleMatches(rule config.CacheRule, r *jsonrpc.RegularRequest) bool {
	if rule.Path == "" || rule.Method == "" {
		return false
	}
	if rule.Path != r.Path || rule.Method != r.Method {
		return false
	}
	if len(rule.Params) == 0 {
		return true
	}
	if len(r.Body) == 0 {
		// A rule with non-empty params does not match a missing body.
		return false
	}

	var body map[string]interface{}
	if err := json.Unmarshal(r.Body, &body); err != nil {
		log.Debugw("malformed body while matching cache rule", "path", r.Path, "err", err)
		return false
	}
	for key, want := range rule.Params {
		got, present := lookupDotted(body, key)
		if !present || !reflect.DeepEqual(normalize(got), normalize(want)) {
			return false
		}
	}
	return true
}

// lookupDotted supports "params.function"-style dotted keys against nested
// JSON objects, matching scenario 2 in spec.md §8.
func lookupDotted(body map[string]interface{}, dotted string) (interface{}, bool) {
	cur := interface{}(body)
	for _, part := range splitDot(dotted) {
		m, ok := cur.(map[string]interface{})
		if !ok {
			return nil, false
		}
		v, ok := m[part]
		if !ok {
			return nil, false
		}
		cur = v
	}
	return cur, true
}

func splitDot(s string) []string {
	var parts []string
	start := 0
	for i := 0; i < len(s); i++ {
		if s[i] == '.' {
			parts = append(parts, s[start:i])
			start = i + 1
		}
	}
	parts = append(parts, s[start:])
	return parts
}

// normalize re-marshals through JSON so differing numeric representations
// (e.g. json.Number vs float64) compare equal.
func normalize(v interface{}) interface{} {
	b, err := json.Marshal(v)
	if err != nil {
		return v
	}
	var out interface{}
	if err := json.Unmarshal(b, &out); err != nil {
		return v
	}
	return out
}
