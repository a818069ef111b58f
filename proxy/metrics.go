package proxy

import "github.com/prometheus/client_golang/prometheus"

// Metrics are the cross-cutting counters named in spec.md §4.6 steps
// 2, 4, 8, 10, registered with prometheus/client_golang the way the
// teacher's go.mod carries that dependency for node-level metrics.
type Metrics struct {
	InboundRequests  *prometheus.CounterVec
	MethodRequests   *prometheus.CounterVec
	MethodResponses  *prometheus.CounterVec
	CacheHits        *prometheus.CounterVec
	CacheMisses      *prometheus.CounterVec
	UpstreamErrors   *prometheus.CounterVec
}

// NewMetrics registers the proxy's counters against reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		InboundRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "dynode_inbound_requests_total",
			Help: "Inbound proxy requests by host and user agent.",
		}, []string{"host", "user_agent"}),
		MethodRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "dynode_method_requests_total",
			Help: "Inbound requests by chain and RPC/HTTP method.",
		}, []string{"chain", "method"}),
		MethodResponses: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "dynode_method_responses_total",
			Help: "Upstream responses by chain, method, and status class.",
		}, []string{"chain", "method", "status"}),
		CacheHits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "dynode_cache_hits_total",
			Help: "Cache hits by chain.",
		}, []string{"chain"}),
		CacheMisses: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "dynode_cache_misses_total",
			Help: "Cache misses by chain.",
		}, []string{"chain"}),
		UpstreamErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "dynode_upstream_errors_total",
			Help: "Upstream request errors by chain and host.",
		}, []string{"chain", "host"}),
	}
	reg.MustRegister(m.InboundRequests, m.MethodRequests, m.MethodResponses, m.CacheHits, m.CacheMisses, m.UpstreamErrors)
	return m
}
