package proxy

import "github.com/dynode-wallet/dynode/config"

// ConfigRouter resolves a Host header to a chain using the static chain
// config loaded at startup, per spec.md §4.6 step 1 and §6's "Host header
// selects the upstream chain" contract.
type ConfigRouter struct {
	byHost map[string]ChainRoute
}

// NewConfigRouter indexes cfg.Chains by their configured host.
func NewConfigRouter(cfg *config.Config) *ConfigRouter {
	byHost := make(map[string]ChainRoute, len(cfg.Chains))
	for chain, cc := range cfg.Chains {
		if !cc.IsEnabled || cc.Host == "" {
			continue
		}
		byHost[cc.Host] = ChainRoute{Chain: chain, Upstreams: cc.Upstreams}
	}
	return &ConfigRouter{byHost: byHost}
}

// RouteForHost implements Router.
func (r *ConfigRouter) RouteForHost(host string) (ChainRoute, bool) {
	route, ok := r.byHost[host]
	return route, ok
}
