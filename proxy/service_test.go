package proxy

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dynode-wallet/dynode/cacherules"
	"github.com/dynode-wallet/dynode/cachestore"
	"github.com/dynode-wallet/dynode/config"
	"github.com/dynode-wallet/dynode/healthmonitor"
	"github.com/dynode-wallet/dynode/jsonrpc"
	"github.com/dynode-wallet/dynode/syncanalyzer"
)

type fakeRouter struct {
	routes map[string]ChainRoute
}

func (r *fakeRouter) RouteForHost(host string) (ChainRoute, bool) {
	route, ok := r.routes[host]
	return route, ok
}

func newTestService(t *testing.T, upstreamURL string) *Service {
	t.Helper()
	rules := cacherules.New(map[string][]config.CacheRule{
		"ethereum": {{RPCMethod: "eth_blockNumber", TTLSeconds: 60}},
	})
	cache := cachestore.New(1<<20, rules)
	health := healthmonitor.New(config.DefaultConfig.AdaptiveMonitoring)
	current := syncanalyzer.NewCurrentURLStore()
	router := &fakeRouter{routes: map[string]ChainRoute{
		"eth.example.com": {Chain: "ethereum", Upstreams: []config.Upstream{{URL: upstreamURL, Host: "upstream-1"}}},
	}}
	metrics := NewMetrics(prometheus.NewRegistry())
	return NewService(router, cache, health, current, metrics, false)
}

func TestHandleRequestUnknownHost(t *testing.T) {
	svc := newTestService(t, "http://unused")
	resp := svc.HandleRequest(context.Background(), InboundRequest{Host: "nope.example.com", Method: http.MethodGet})
	assert.Equal(t, 404, resp.Status)
}

func TestHandleRequestForwardsAndCaches(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"jsonrpc":"2.0","id":1,"result":"0x10"}`))
	}))
	defer upstream.Close()

	svc := newTestService(t, upstream.URL)
	body := []byte(`{"jsonrpc":"2.0","id":1,"method":"eth_blockNumber","params":[]}`)

	resp := svc.HandleRequest(context.Background(), InboundRequest{
		Host: "eth.example.com", Method: http.MethodPost, PathWithQuery: "/", Body: body,
	})
	require.Equal(t, 200, resp.Status)
	assert.Contains(t, string(resp.Body), `"result":"0x10"`)
	assert.Equal(t, []string{"upstream-1"}, resp.Headers["X-Upstream-Host"])

	key, ok := jsonrpc.CacheKey("eth.example.com", "/", jsonrpc.FromRequest(http.MethodPost, "/", body))
	require.True(t, ok)
	assert.Eventually(t, func() bool {
		_, hit := svc.cache.Get("ethereum", key)
		return hit
	}, time.Second, 10*time.Millisecond, "a 200 response to a cacheable call should be written to the cache")
}

func TestHandleRequestUpstreamError(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer upstream.Close()

	svc := newTestService(t, upstream.URL)
	body := []byte(`{"jsonrpc":"2.0","id":1,"method":"eth_getBalance","params":[]}`)

	resp := svc.HandleRequest(context.Background(), InboundRequest{
		Host: "eth.example.com", Method: http.MethodPost, PathWithQuery: "/", Body: body,
	})
	assert.Equal(t, 500, resp.Status)
}
