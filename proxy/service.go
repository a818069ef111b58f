package proxy

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	"github.com/valyala/fasthttp"

	"github.com/dynode-wallet/dynode/cachestore"
	"github.com/dynode-wallet/dynode/config"
	"github.com/dynode-wallet/dynode/healthmonitor"
	"github.com/dynode-wallet/dynode/internal/logger"
	"github.com/dynode-wallet/dynode/jsonrpc"
	"github.com/dynode-wallet/dynode/syncanalyzer"
)

var log = logger.NewModuleLogger(logger.ModuleProxy)

// ProxyResponse is what HandleRequest returns to the HTTP entrypoint.
type ProxyResponse struct {
	Status  int
	Headers map[string][]string
	Body    []byte
}

// ChainRoute is the resolved (chain, upstream base URL set) for a host,
// per spec.md §4.6 step 1.
type ChainRoute struct {
	Chain     string
	Upstreams []config.Upstream
}

// Router resolves an inbound Host header to a configured chain.
type Router interface {
	RouteForHost(host string) (ChainRoute, bool)
}

// Service orchestrates one inbound proxy request end to end, per
// spec.md §4.6. It is the gateway-side counterpart of client/bridge_client.go's
// blocking RPC caller, generalized to many chains and many upstreams.
type Service struct {
	router    Router
	cache     *cachestore.Store
	health    *healthmonitor.Monitor
	current   *syncanalyzer.CurrentURLStore
	client    *fasthttp.Client
	metrics   *Metrics
	rpcSplit  bool
}

// NewService wires the pieces already built by C2-C5 into the request path.
func NewService(router Router, cache *cachestore.Store, health *healthmonitor.Monitor, current *syncanalyzer.CurrentURLStore, metrics *Metrics, splitBatches bool) *Service {
	return &Service{
		router:   router,
		cache:    cache,
		health:   health,
		current:  current,
		client:   &fasthttp.Client{Name: "dynode-proxy"},
		metrics:  metrics,
		rpcSplit: splitBatches,
	}
}

// InboundRequest is the host-agnostic request shape the HTTP entrypoint
// decodes before calling HandleRequest, per spec.md §4.6's public contract.
type InboundRequest struct {
	Method        string
	Headers       map[string][]string
	Body          []byte
	Path          string
	PathWithQuery string
	Host          string
	UserAgent     string
}

// HandleRequest implements the ten numbered steps of spec.md §4.6.
func (s *Service) HandleRequest(ctx context.Context, req InboundRequest) ProxyResponse {
	route, ok := s.router.RouteForHost(req.Host)
	if !ok {
		return ProxyResponse{Status: 404, Body: []byte(`domain not found`)}
	}
	chain := route.Chain

	s.metrics.InboundRequests.WithLabelValues(req.Host, req.UserAgent).Inc()

	reqType := jsonrpc.FromRequest(req.Method, req.PathWithQuery, req.Body)
	cacheTTL, hasTTL := s.cache.ShouldCache(chain, reqType)
	var cacheKey string
	if hasTTL {
		if k, ok := jsonrpc.CacheKey(req.Host, req.PathWithQuery, reqType); ok {
			cacheKey = k
		} else {
			hasTTL = false
		}
	}

	for _, method := range jsonrpc.MethodsForMetrics(reqType) {
		s.metrics.MethodRequests.WithLabelValues(chain, method).Inc()
	}

	if hasTTL {
		if cached, hit := s.cache.Get(chain, cacheKey); hit {
			s.metrics.CacheHits.WithLabelValues(chain).Inc()
			return s.respondFromCache(reqType, cached)
		}
		s.metrics.CacheMisses.WithLabelValues(chain).Inc()
	}

	if s.rpcSplit && reqType.RPC != nil && reqType.RPC.Single != nil {
		if resp, handled := s.handleSingleRPC(ctx, chain, route, req, reqType, cacheKey, cacheTTL, hasTTL); handled {
			return resp
		}
	}

	return s.forward(ctx, chain, route, req, reqType, cacheKey, cacheTTL, hasTTL)
}

func (s *Service) respondFromCache(reqType jsonrpc.RequestType, cached cachestore.CachedResponse) ProxyResponse {
	headers := map[string][]string{}
	if cached.ContentType != "" {
		headers["Content-Type"] = []string{cached.ContentType}
	}

	if reqType.RPC != nil && reqType.RPC.Single != nil {
		body, err := jsonrpc.StampResponse(reqType.RPC.Single.ID, cached.Body)
		if err != nil {
			log.Errorw("failed to re-stamp cached rpc response", "err", err)
			return ProxyResponse{Status: int(cached.Status), Headers: headers, Body: cached.Body}
		}
		return ProxyResponse{Status: int(cached.Status), Headers: headers, Body: body}
	}
	return ProxyResponse{Status: int(cached.Status), Headers: headers, Body: cached.Body}
}

// chosenUpstream picks the best candidate URL for chain, preferring the
// sticky current URL and falling back to the first configured upstream,
// then reordering by health per spec.md §4.5.
func (s *Service) chosenUpstream(chain string, route ChainRoute) config.Upstream {
	ordered := make([]string, 0, len(route.Upstreams))
	byURL := map[string]config.Upstream{}
	for _, u := range route.Upstreams {
		ordered = append(ordered, u.URL)
		byURL[u.URL] = u
	}
	ordered = s.health.ReorderURLs(chain, ordered)

	if cur, ok := s.current.Get(chain); ok {
		for _, u := range ordered {
			if u == cur {
				return byURL[u]
			}
		}
	}
	if len(ordered) == 0 {
		return config.Upstream{}
	}
	s.current.Set(chain, ordered[0])
	return byURL[ordered[0]]
}

// forward implements spec.md §4.6 steps 7-10 for the whole-request path
// (Regular, JsonRpc batch, or a single call when the split feature is off).
func (s *Service) forward(ctx context.Context, chain string, route ChainRoute, req InboundRequest, reqType jsonrpc.RequestType, cacheKey string, cacheTTL uint64, hasTTL bool) ProxyResponse {
	upstream := s.chosenUpstream(chain, route)
	if upstream.URL == "" {
		return ProxyResponse{Status: 502, Body: []byte(`no upstream available`)}
	}

	httpReq := fasthttp.AcquireRequest()
	httpResp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(httpReq)
	defer fasthttp.ReleaseResponse(httpResp)

	httpReq.Header.SetMethod(req.Method)
	httpReq.SetRequestURI(upstream.URL + req.PathWithQuery)
	httpReq.SetBody(req.Body)
	for k, vs := range filterHeaders(req.Headers, requestHeaderAllowlist) {
		for _, v := range vs {
			httpReq.Header.Add(k, v)
		}
	}

	start := time.Now()
	err := s.doWithTimeout(ctx, httpReq, httpResp)
	latency := time.Since(start)

	hasError := err != nil || httpResp.StatusCode() >= 500
	// Keyed by URL, the same key chosenUpstream passes to ReorderURLs.
	snapshot := s.health.RecordAttempt(chain, upstream.URL, hasError)
	if snapshot.BlockedNow {
		// Next request's chosenUpstream call will see this host reordered
		// to the back by ReorderURLs and pick a fresh sticky URL.
		s.current.Set(chain, "")
	}

	if err != nil {
		s.metrics.UpstreamErrors.WithLabelValues(chain, upstream.Host).Inc()
		for _, method := range jsonrpc.MethodsForMetrics(reqType) {
			s.metrics.MethodResponses.WithLabelValues(chain, method, "error").Inc()
		}
		log.Errorw("upstream request failed", "chain", chain, "host", upstream.Host, "err", err)
		return ProxyResponse{Status: 502, Body: []byte(`upstream error`)}
	}

	status := httpResp.StatusCode()
	body := append([]byte(nil), httpResp.Body()...)

	statusClass := "error"
	if status == 200 {
		statusClass = "ok"
	}
	for _, method := range jsonrpc.MethodsForMetrics(reqType) {
		s.metrics.MethodResponses.WithLabelValues(chain, method, statusClass).Inc()
	}

	headers := filterHeaders(fasthttpResponseHeaders(httpResp), responseHeaderAllowlist)
	headers["X-Upstream-Host"] = []string{upstream.Host}
	headers["X-Upstream-Latency-Ms"] = []string{strconv.FormatInt(latency.Milliseconds(), 10)}

	if status == 200 && hasTTL {
		go s.cacheAsync(chain, cacheKey, cacheTTL, reqType, status, body, string(httpResp.Header.ContentType()))
	}

	return ProxyResponse{Status: status, Headers: headers, Body: body}
}

func (s *Service) doWithTimeout(ctx context.Context, req *fasthttp.Request, resp *fasthttp.Response) error {
	if deadline, ok := ctx.Deadline(); ok {
		return s.client.DoDeadline(req, resp, deadline)
	}
	return s.client.DoTimeout(req, resp, 10*time.Second)
}

func fasthttpResponseHeaders(resp *fasthttp.Response) map[string][]string {
	out := map[string][]string{}
	resp.Header.VisitAll(func(k, v []byte) {
		key := string(k)
		out[key] = append(out[key], string(v))
	})
	return out
}

// cacheAsync implements spec.md §4.6 step 9: extract the cacheable form of
// the body and persist it, off the request's critical path.
func (s *Service) cacheAsync(chain, cacheKey string, ttl uint64, reqType jsonrpc.RequestType, status int, body []byte, contentType string) {
	cacheable := body
	if reqType.RPC != nil && reqType.RPC.Single != nil {
		result, err := jsonrpc.ExtractResult(body)
		if err != nil {
			log.Debugw("failed to extract rpc result for caching", "chain", chain, "err", err)
			return
		}
		cacheable = result
	}
	s.cache.Set(chain, cacheKey, cachestore.CachedResponse{
		Body:        cacheable,
		Status:      uint16(status),
		ContentType: contentType,
		TTLSeconds:  ttl,
	})
}

// handleSingleRPC is spec.md §4.6 step 6's per-call split point, consulted
// only when proxy_split_batches is set. It delegates to
// JsonRpcHandler.HandleSingle (proxy/rpc_handler.go), which always returns
// handled=false, so the request then goes through forward() whole; no
// per-call upstream requests are made (see SPEC_FULL.md §5).
func (s *Service) handleSingleRPC(ctx context.Context, chain string, route ChainRoute, req InboundRequest, reqType jsonrpc.RequestType, cacheKey string, cacheTTL uint64, hasTTL bool) (ProxyResponse, bool) {
	handler := &JsonRpcHandler{service: s}
	return handler.HandleSingle(ctx, chain, route, req, reqType, cacheKey, cacheTTL, hasTTL)
}

// jsonMethodNotAllowed builds a JSON "method not allowed" error body. No
// code in this package calls it; the HTTP entrypoint does not use it.
func jsonMethodNotAllowed() []byte {
	b, _ := json.Marshal(map[string]string{"error": "method not allowed"})
	return b
}
