package proxy

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dynode-wallet/dynode/config"
)

func TestConfigRouterResolvesByHost(t *testing.T) {
	cfg := &config.Config{Chains: map[string]config.ChainConfig{
		"ethereum": {Host: "eth.example.com", IsEnabled: true, Upstreams: []config.Upstream{{URL: "http://node1", Host: "node1"}}},
		"polygon":  {Host: "polygon.example.com", IsEnabled: false},
	}}
	router := NewConfigRouter(cfg)

	route, ok := router.RouteForHost("eth.example.com")
	require.True(t, ok)
	assert.Equal(t, "ethereum", route.Chain)

	_, ok = router.RouteForHost("polygon.example.com")
	assert.False(t, ok, "disabled chains should not route")

	_, ok = router.RouteForHost("unknown.example.com")
	assert.False(t, ok)
}
