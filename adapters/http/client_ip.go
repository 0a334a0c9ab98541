package authhttp

import (
	"net"
	"net/http"
	"net/netip"
	"strings"
)

// ClientIPFunc determines the client IP used for rate limiting.
//
// Returning an empty string means "unknown" and causes rate limiting to fail open.
type ClientIPFunc func(r *http.Request) string

// DefaultClientIP uses RemoteAddr when it is a public address and returns ""
// otherwise, so a reverse proxy is never limited as if it were one client.
func DefaultClientIP() ClientIPFunc {
	return func(r *http.Request) string {
		a, ok := peerAddr(r)
		if !ok || !isPublicAddr(a) {
			return ""
		}
		return a.String()
	}
}

// ClientIPFromForwardedHeaders trusts CF-Connecting-IP, X-Real-IP and the
// left-most X-Forwarded-For entry, in that order, only when the immediate
// peer is inside trustedProxies.
func ClientIPFromForwardedHeaders(trustedProxies []netip.Prefix) ClientIPFunc {
	return func(r *http.Request) string {
		peer, ok := peerAddr(r)
		if !ok {
			return ""
		}
		if containsAddr(trustedProxies, peer) {
			for _, v := range forwardedCandidates(r) {
				if a, err := netip.ParseAddr(v); err == nil && isPublicAddr(a) {
					return a.String()
				}
			}
		}
		if isPublicAddr(peer) {
			return peer.String()
		}
		return ""
	}
}

func forwardedCandidates(r *http.Request) []string {
	var out []string
	if v := strings.TrimSpace(r.Header.Get("CF-Connecting-IP")); v != "" {
		out = append(out, v)
	}
	if v := strings.TrimSpace(r.Header.Get("X-Real-IP")); v != "" {
		out = append(out, v)
	}
	if v := r.Header.Get("X-Forwarded-For"); v != "" {
		first, _, _ := strings.Cut(v, ",")
		out = append(out, strings.TrimSpace(first))
	}
	return out
}

func containsAddr(prefixes []netip.Prefix, a netip.Addr) bool {
	for _, p := range prefixes {
		if p.Contains(a) {
			return true
		}
	}
	return false
}

func peerAddr(r *http.Request) (netip.Addr, bool) {
	if r == nil || r.RemoteAddr == "" {
		return netip.Addr{}, false
	}
	host := r.RemoteAddr
	if h, _, err := net.SplitHostPort(host); err == nil && h != "" {
		host = h
	}
	a, err := netip.ParseAddr(host)
	if err != nil {
		return netip.Addr{}, false
	}
	return a.Unmap(), true
}

func isPublicAddr(a netip.Addr) bool {
	if !a.IsValid() {
		return false
	}
	if a.IsLoopback() || a.IsPrivate() || a.IsLinkLocalMulticast() || a.IsLinkLocalUnicast() {
		return false
	}
	return !a.IsMulticast() && !a.IsUnspecified()
}
