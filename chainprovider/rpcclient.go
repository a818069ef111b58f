package chainprovider

import (
	"context"
	"encoding/json"

	"github.com/pkg/errors"
	"github.com/valyala/fasthttp"
)

// HTTPRPCClient is an RPCCaller over a single upstream URL, used by the
// parser daemon. It sends its calls with fasthttp, the same client library
// proxy/service.go forwards gateway requests with.
type HTTPRPCClient struct {
	url    string
	client *fasthttp.Client
}

// NewHTTPRPCClient builds an RPCCaller against a single upstream endpoint.
// The parser only ever reads chain tip and block data, so unlike the
// gateway's Service it needs no upstream list or health tracking.
func NewHTTPRPCClient(url string) *HTTPRPCClient {
	return &HTTPRPCClient{url: url, client: &fasthttp.Client{}}
}

type rpcCall struct {
	JSONRPC string        `json:"jsonrpc"`
	Method  string        `json:"method"`
	Params  []interface{} `json:"params"`
	ID      int           `json:"id"`
}

type rpcResponse struct {
	Result json.RawMessage `json:"result"`
	Error  *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// CallContext implements RPCCaller by issuing a single JSON-RPC 2.0 call
// and decoding its result into result.
func (c *HTTPRPCClient) CallContext(ctx context.Context, result interface{}, method string, args ...interface{}) error {
	if args == nil {
		args = []interface{}{}
	}
	body, err := json.Marshal(rpcCall{JSONRPC: "2.0", Method: method, Params: args, ID: 1})
	if err != nil {
		return errors.Wrap(err, "marshal rpc call")
	}

	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	req.SetRequestURI(c.url)
	req.Header.SetMethod(fasthttp.MethodPost)
	req.Header.SetContentType("application/json")
	req.SetBody(body)

	if err := c.client.Do(req, resp); err != nil {
		return errors.Wrapf(err, "call %s", method)
	}
	if resp.StatusCode() != fasthttp.StatusOK {
		return errors.Errorf("call %s: upstream status %d", method, resp.StatusCode())
	}

	var decoded rpcResponse
	if err := json.Unmarshal(resp.Body(), &decoded); err != nil {
		return errors.Wrapf(err, "decode response for %s", method)
	}
	if decoded.Error != nil {
		return errors.Errorf("call %s: rpc error %d: %s", method, decoded.Error.Code, decoded.Error.Message)
	}
	if result == nil {
		return nil
	}
	return errors.Wrapf(json.Unmarshal(decoded.Result, result), "unmarshal result for %s", method)
}

var _ RPCCaller = (*HTTPRPCClient)(nil)
