package proxy

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"

	"github.com/dynode-wallet/dynode/cacherules"
	"github.com/dynode-wallet/dynode/cachestore"
	"github.com/dynode-wallet/dynode/config"
	"github.com/dynode-wallet/dynode/healthmonitor"
	"github.com/dynode-wallet/dynode/syncanalyzer"
)

func TestNewHTTPHandlerUnknownHost(t *testing.T) {
	rules := cacherules.New(nil)
	cache := cachestore.New(1<<20, rules)
	health := healthmonitor.New(config.DefaultConfig.AdaptiveMonitoring)
	current := syncanalyzer.NewCurrentURLStore()
	router := &fakeRouter{routes: map[string]ChainRoute{}}
	metrics := NewMetrics(prometheus.NewRegistry())
	svc := NewService(router, cache, health, current, metrics, false)

	handler := NewHTTPHandler(svc)
	req := httptest.NewRequest(http.MethodGet, "http://unknown.example.com/", nil)
	req.Host = "unknown.example.com"
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	assert.Equal(t, 404, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), "domain not found"))
	assert.NotEmpty(t, rec.Header().Get("X-Request-Id"))
}
