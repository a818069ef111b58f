package proxy

import "strings"

// requestHeaderAllowlist is the explicit allow-list that keeps hop-by-hop
// and auth headers from leaking upstream, per spec.md §4.6's header policy.
var requestHeaderAllowlist = map[string]bool{
	"content-type":     true,
	"content-encoding": true,
	"accept":           true,
	"accept-encoding":  true,
	"user-agent":       true,
}

// responseHeaderAllowlist is the subset of upstream response headers the
// gateway persists to the client, per spec.md §4.6 step 8.
var responseHeaderAllowlist = map[string]bool{
	"content-type":     true,
	"content-encoding": true,
	"cache-control":    true,
}

func filterHeaders(in map[string][]string, allowlist map[string]bool) map[string][]string {
	out := make(map[string][]string, len(in))
	for k, v := range in {
		if allowlist[strings.ToLower(k)] {
			out[k] = v
		}
	}
	return out
}
