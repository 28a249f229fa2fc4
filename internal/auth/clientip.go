package auth

import (
	"net"
	"net/http"
	"strings"
)

// ClientIP resolves the caller's address for rate limiting. Proxy headers
// (X-Forwarded-For first hop, then X-Real-IP) are honored only when
// trustProxy is set and the direct peer is in the trusted set; an empty set
// trusts any direct peer.
func ClientIP(r *http.Request, trustProxy bool, trustedProxies []string) string {
	peer := r.RemoteAddr
	if host, _, err := net.SplitHostPort(peer); err == nil {
		peer = host
	}

	if !trustProxy {
		return peer
	}
	if len(trustedProxies) > 0 && !containsIP(trustedProxies, peer) {
		return peer
	}

	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		if first := strings.TrimSpace(strings.Split(xff, ",")[0]); first != "" {
			return first
		}
	}
	if real := strings.TrimSpace(r.Header.Get("X-Real-IP")); real != "" {
		return real
	}
	return peer
}

func containsIP(set []string, ip string) bool {
	for _, s := range set {
		if s == ip {
			return true
		}
	}
	return false
}
