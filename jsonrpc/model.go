// Package jsonrpc parses and serializes JSON-RPC 2.0 single and batch calls
// and derives cache keys and metric tags from them, per spec.md §4.1.
package jsonrpc

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"sort"
)

// Call is a single JSON-RPC 2.0 call.
type Call struct {
	JSONRPC string      `json:"jsonrpc"`
	Method  string      `json:"method"`
	Params  interface{} `json:"params,omitempty"`
	ID      interface{} `json:"id"`
}

// Request is either a Single call or a Batch of calls. Exactly one of the
// two fields is set.
type Request struct {
	Single *Call
	Batch  []Call
}

// IsBatch reports whether the request is a JSON-RPC batch.
func (r Request) IsBatch() bool { return r.Batch != nil }

// RequestType is the discriminated union from spec.md §3: Regular or JsonRpc.
type RequestType struct {
	Regular *RegularRequest
	RPC     *Request
}

// RegularRequest is a plain REST call, not JSON-RPC.
type RegularRequest struct {
	Path   string
	Method string
	Body   []byte
}

// IsJSONRPC reports whether the request type is JsonRpc rather than Regular.
func (t RequestType) IsJSONRPC() bool { return t.RPC != nil }

// looksLikeCall reports whether a decoded JSON object plausibly is a
// JSON-RPC call: it must carry a "jsonrpc" field.
func looksLikeCall(raw map[string]interface{}) bool {
	_, ok := raw["jsonrpc"]
	return ok
}

// FromRequest classifies an inbound HTTP request as Regular or JsonRpc.
// A POST body that looks like JSON-RPC but fails to parse downgrades to
// Regular — parse failure is fatal to caching, not to forwarding, per
// spec.md §4.1 and the ParseError entry in spec.md §7.
func FromRequest(httpMethod, pathWithQuery string, body []byte) RequestType {
	if httpMethod != http.MethodPost || len(body) == 0 {
		return RequestType{Regular: &RegularRequest{Path: pathWithQuery, Method: httpMethod, Body: body}}
	}

	trimmed := skipWhitespace(body)
	if len(trimmed) == 0 {
		return RequestType{Regular: &RegularRequest{Path: pathWithQuery, Method: httpMethod, Body: body}}
	}

	switch trimmed[0] {
	case '{':
		var raw map[string]interface{}
		if err := json.Unmarshal(body, &raw); err != nil || !looksLikeCall(raw) {
			return RequestType{Regular: &RegularRequest{Path: pathWithQuery, Method: httpMethod, Body: body}}
		}
		var call Call
		if err := json.Unmarshal(body, &call); err != nil {
			return RequestType{Regular: &RegularRequest{Path: pathWithQuery, Method: httpMethod, Body: body}}
		}
		return RequestType{RPC: &Request{Single: &call}}
	case '[':
		var rawArr []map[string]interface{}
		if err := json.Unmarshal(body, &rawArr); err != nil || len(rawArr) == 0 {
			return RequestType{Regular: &RegularRequest{Path: pathWithQuery, Method: httpMethod, Body: body}}
		}
		for _, raw := range rawArr {
			if !looksLikeCall(raw) {
				return RequestType{Regular: &RegularRequest{Path: pathWithQuery, Method: httpMethod, Body: body}}
			}
		}
		var calls []Call
		if err := json.Unmarshal(body, &calls); err != nil {
			return RequestType{Regular: &RegularRequest{Path: pathWithQuery, Method: httpMethod, Body: body}}
		}
		return RequestType{RPC: &Request{Batch: calls}}
	default:
		return RequestType{Regular: &RegularRequest{Path: pathWithQuery, Method: httpMethod, Body: body}}
	}
}

func skipWhitespace(b []byte) []byte {
	i := 0
	for i < len(b) {
		switch b[i] {
		case ' ', '\t', '\n', '\r':
			i++
			continue
		}
		break
	}
	return b[i:]
}

// CacheKey derives the cache key described in spec.md §4.1. Callers must not
// request a cache key for a Batch request.
func CacheKey(host, pathWithQuery string, t RequestType) (string, bool) {
	if t.Regular != nil {
		sum := sha256.Sum256(t.Regular.Body)
		return host + "|" + t.Regular.Method + "|" + t.Regular.Path + "|" + hex.EncodeToString(sum[:]), true
	}
	if t.RPC != nil && t.RPC.Single != nil {
		sum, err := canonicalParamsHash(t.RPC.Single.Params)
		if err != nil {
			return "", false
		}
		return host + "|rpc|" + t.RPC.Single.Method + "|" + sum, true
	}
	// Batch: undefined, per spec.md §4.1.
	return "", false
}

// canonicalParamsHash serializes params with lexicographically sorted keys
// before hashing, so cache keys are stable across client serializers.
func canonicalParamsHash(params interface{}) (string, error) {
	canon, err := canonicalize(params)
	if err != nil {
		return "", err
	}
	b, err := json.Marshal(canon)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:]), nil
}

// canonicalize recursively sorts map keys so that json.Marshal (which
// already sorts map[string]interface{} keys) produces a stable byte stream
// regardless of input map type or ordering.
func canonicalize(v interface{}) (interface{}, error) {
	switch val := v.(type) {
	case map[string]interface{}:
		out := make(map[string]interface{}, len(val))
		keys := make([]string, 0, len(val))
		for k := range val {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			c, err := canonicalize(val[k])
			if err != nil {
				return nil, err
			}
			out[k] = c
		}
		return out, nil
	case []interface{}:
		out := make([]interface{}, len(val))
		for i, e := range val {
			c, err := canonicalize(e)
			if err != nil {
				return nil, err
			}
			out[i] = c
		}
		return out, nil
	default:
		return val, nil
	}
}

// MethodsForMetrics returns the RPC method names of each inner call, or the
// HTTP method for a Regular request, per spec.md §4.1.
func MethodsForMetrics(t RequestType) []string {
	if t.Regular != nil {
		return []string{t.Regular.Method}
	}
	if t.RPC.Single != nil {
		return []string{t.RPC.Single.Method}
	}
	methods := make([]string, 0, len(t.RPC.Batch))
	for _, c := range t.RPC.Batch {
		methods = append(methods, c.Method)
	}
	return methods
}
