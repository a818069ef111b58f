package jsonrpc

import "encoding/json"

// Response is the wire-level JSON-RPC 2.0 response envelope.
type Response struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      interface{}     `json:"id"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   json.RawMessage `json:"error,omitempty"`
}

// ExtractResult pulls the "result" field out of a raw JSON-RPC response
// body, the cacheable form for a single RPC call per spec.md §4.6 step 9.
func ExtractResult(body []byte) (json.RawMessage, error) {
	var resp Response
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, err
	}
	return resp.Result, nil
}

// StampResponse reconstructs {jsonrpc, id, result} using the request's id,
// per spec.md §6 ("the gateway reconstructs ... using the request's id").
func StampResponse(id interface{}, result json.RawMessage) ([]byte, error) {
	resp := Response{JSONRPC: "2.0", ID: id, Result: result}
	return json.Marshal(resp)
}
