package jsonrpc

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromRequestSingle(t *testing.T) {
	body := []byte(`{"jsonrpc":"2.0","method":"eth_blockNumber","params":[],"id":1}`)
	req := FromRequest(http.MethodPost, "/", body)
	require.True(t, req.IsJSONRPC())
	require.NotNil(t, req.RPC.Single)
	assert.Equal(t, "eth_blockNumber", req.RPC.Single.Method)
	assert.False(t, req.RPC.IsBatch())
}

func TestFromRequestBatch(t *testing.T) {
	body := []byte(`[{"jsonrpc":"2.0","method":"eth_blockNumber","params":[],"id":1},{"jsonrpc":"2.0","method":"eth_chainId","params":[],"id":2}]`)
	req := FromRequest(http.MethodPost, "/", body)
	require.True(t, req.IsJSONRPC())
	require.True(t, req.RPC.IsBatch())
	assert.Len(t, req.RPC.Batch, 2)
}

func TestFromRequestRegularGET(t *testing.T) {
	req := FromRequest(http.MethodGet, "/v1/status", nil)
	require.False(t, req.IsJSONRPC())
	assert.Equal(t, "/v1/status", req.Regular.Path)
}

func TestFromRequestMalformedJSONRPCDowngrades(t *testing.T) {
	body := []byte(`{"jsonrpc":"2.0","method":`)
	req := FromRequest(http.MethodPost, "/", body)
	require.False(t, req.IsJSONRPC())
	assert.Equal(t, body, req.Regular.Body)
}

func TestFromRequestNonRPCPostBody(t *testing.T) {
	body := []byte(`{"function":"0x1::foo"}`)
	req := FromRequest(http.MethodPost, "/v1/view", body)
	require.False(t, req.IsJSONRPC())
}

func TestCacheKeyRegular(t *testing.T) {
	req := FromRequest(http.MethodPost, "/v1/view", []byte(`{"a":1}`))
	key, ok := CacheKey("api.example.com", "/v1/view", req)
	require.True(t, ok)
	assert.Contains(t, key, "api.example.com|POST|/v1/view|")
}

func TestCacheKeyRPCSingleStableAcrossKeyOrder(t *testing.T) {
	reqA := FromRequest(http.MethodPost, "/", []byte(`{"jsonrpc":"2.0","method":"m","params":{"a":1,"b":2},"id":1}`))
	reqB := FromRequest(http.MethodPost, "/", []byte(`{"jsonrpc":"2.0","method":"m","params":{"b":2,"a":1},"id":2}`))

	keyA, okA := CacheKey("h", "/", reqA)
	keyB, okB := CacheKey("h", "/", reqB)
	require.True(t, okA)
	require.True(t, okB)
	assert.Equal(t, keyA, keyB)
}

func TestCacheKeyBatchUndefined(t *testing.T) {
	req := FromRequest(http.MethodPost, "/", []byte(`[{"jsonrpc":"2.0","method":"a","id":1}]`))
	_, ok := CacheKey("h", "/", req)
	assert.False(t, ok)
}

func TestMethodsForMetrics(t *testing.T) {
	single := FromRequest(http.MethodPost, "/", []byte(`{"jsonrpc":"2.0","method":"eth_call","id":1}`))
	assert.Equal(t, []string{"eth_call"}, MethodsForMetrics(single))

	batch := FromRequest(http.MethodPost, "/", []byte(`[{"jsonrpc":"2.0","method":"a","id":1},{"jsonrpc":"2.0","method":"b","id":2}]`))
	assert.Equal(t, []string{"a", "b"}, MethodsForMetrics(batch))

	regular := FromRequest(http.MethodGet, "/x", nil)
	assert.Equal(t, []string{http.MethodGet}, MethodsForMetrics(regular))
}

func TestStampResponseUsesRequestID(t *testing.T) {
	out, err := StampResponse(float64(2), []byte(`"0x10"`))
	require.NoError(t, err)
	assert.JSONEq(t, `{"jsonrpc":"2.0","id":2,"result":"0x10"}`, string(out))
}

func TestExtractResult(t *testing.T) {
	result, err := ExtractResult([]byte(`{"jsonrpc":"2.0","id":1,"result":"0x10"}`))
	require.NoError(t, err)
	assert.JSONEq(t, `"0x10"`, string(result))
}
