package cacherules

import (
	"net/http"
	"testing"

	"github.com/dynode-wallet/dynode/config"
	"github.com/dynode-wallet/dynode/jsonrpc"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestShouldCacheRPCSingle(t *testing.T) {
	e := New(map[string][]config.CacheRule{
		"ethereum": {{RPCMethod: "eth_blockNumber", TTLSeconds: 60}},
	})
	req := jsonrpc.FromRequest(http.MethodPost, "/", []byte(`{"jsonrpc":"2.0","method":"eth_blockNumber","params":[],"id":1}`))
	ttl, ok := e.ShouldCache("ethereum", req)
	require.True(t, ok)
	assert.Equal(t, uint64(60), ttl)
}

func TestShouldCacheBatchNeverMatches(t *testing.T) {
	e := New(map[string][]config.CacheRule{
		"ethereum": {{RPCMethod: "eth_blockNumber", TTLSeconds: 60}},
	})
	req := jsonrpc.FromRequest(http.MethodPost, "/", []byte(`[{"jsonrpc":"2.0","method":"eth_blockNumber","id":1}]`))
	_, ok := e.ShouldCache("ethereum", req)
	assert.False(t, ok)
}

func TestShouldCacheUnknownChain(t *testing.T) {
	e := New(map[string][]config.CacheRule{})
	req := jsonrpc.FromRequest(http.MethodGet, "/x", nil)
	_, ok := e.ShouldCache("doesnotexist", req)
	assert.False(t, ok)
}

func TestBodyParamDiscrimination(t *testing.T) {
	e := New(map[string][]config.CacheRule{
		"aptos": {{
			Path:       "/v1/view",
			Method:     http.MethodPost,
			Params:     map[string]interface{}{"function": "0x1::delegation_pool::operator_commission_percentage"},
			TTLSeconds: 30,
		}},
	})

	matching := jsonrpc.FromRequest(http.MethodPost, "/v1/view", []byte(`{"function":"0x1::delegation_pool::operator_commission_percentage","type_arguments":[]}`))
	ttl, ok := e.ShouldCache("aptos", matching)
	require.True(t, ok)
	assert.Equal(t, uint64(30), ttl)

	nonMatching := jsonrpc.FromRequest(http.MethodPost, "/v1/view", []byte(`{"function":"0x1::other::fn"}`))
	_, ok = e.ShouldCache("aptos", nonMatching)
	assert.False(t, ok)
}

func TestRuleWithParamsDoesNotMatchMissingBody(t *testing.T) {
	e := New(map[string][]config.CacheRule{
		"aptos": {{Path: "/v1/view", Method: http.MethodPost, Params: map[string]interface{}{"function": "x"}, TTLSeconds: 30}},
	})
	req := jsonrpc.FromRequest(http.MethodPost, "/v1/view", nil)
	_, ok := e.ShouldCache("aptos", req)
	assert.False(t, ok)
}

func TestMalformedBodyYieldsNoMatchNotError(t *testing.T) {
	e := New(map[string][]config.CacheRule{
		"aptos": {{Path: "/v1/view", Method: http.MethodPost, Params: map[string]interface{}{"function": "x"}, TTLSeconds: 30}},
	})
	req := jsonrpc.RequestType{Regular: &jsonrpc.RegularRequest{Path: "/v1/view", Method: http.MethodPost, Body: []byte(`not json`)}}
	_, ok := e.ShouldCache("aptos", req)
	assert.False(t, ok)
}

func TestFirstMatchWins(t *testing.T) {
	e := New(map[string][]config.CacheRule{
		"ethereum": {
			{RPCMethod: "eth_blockNumber", TTLSeconds: 10},
			{RPCMethod: "eth_blockNumber", TTLSeconds: 99},
		},
	})
	req := jsonrpc.FromRequest(http.MethodPost, "/", []byte(`{"jsonrpc":"2.0","method":"eth_blockNumber","id":1}`))
	ttl, ok := e.ShouldCache("ethereum", req)
	require.True(t, ok)
	assert.Equal(t, uint64(10), ttl)
}
