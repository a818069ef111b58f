package proxy

import (
	"context"

	"github.com/dynode-wallet/dynode/jsonrpc"
)

// JsonRpcHandler is the dedicated per-call split point named in spec.md
// §4.6 step 6. The protocol only exercises it for a JSON-RPC single call —
// batches are always forwarded whole — so there is exactly one call to
// split here. The extension point exists so that a future multi-call
// batch-splitting path (documented, not yet required) can reuse the same
// per-call cache-then-forward shape without touching Service.HandleRequest.
type JsonRpcHandler struct {
	service *Service
}

// HandleSingle is gated by proxy_split_batches. It does no cache lookup and
// no upstream call of its own: it always returns handled=false, which tells
// the caller to run the ordinary whole-request forward(). The cache has
// already been consulted once in Service.HandleRequest before it is called.
func (h *JsonRpcHandler) HandleSingle(ctx context.Context, chain string, route ChainRoute, req InboundRequest, reqType jsonrpc.RequestType, cacheKey string, cacheTTL uint64, hasTTL bool) (ProxyResponse, bool) {
	return ProxyResponse{}, false
}
