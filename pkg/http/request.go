package http

import (
	"net/http"
	"net/netip"
	"strings"
)

// maxUserAgentLength bounds the user agent stored with audit records
const maxUserAgentLength = 256

// IPConfig lists the reverse proxies, as CIDR ranges, whose forwarding
// headers are believed. Entries that do not parse are ignored.
type IPConfig struct {
	TrustedProxies []string
}

// ClientInfo identifies the caller of a request for audit records
type ClientInfo struct {
	IP        string
	UserAgent string
}

// ExtractClientInfo returns the caller's address and user agent
func ExtractClientInfo(r *http.Request, config *IPConfig) ClientInfo {
	ua := r.Header.Get("User-Agent")
	if len(ua) > maxUserAgentLength {
		ua = strings.ToValidUTF8(ua[:maxUserAgentLength], "")
	}
	return ClientInfo{
		IP:        ExtractClientIP(r, config),
		UserAgent: ua,
	}
}

// ExtractClientIP returns the address of the caller. X-Forwarded-For and
// X-Real-IP are only consulted when the peer is a trusted proxy; any other
// peer is reported as itself.
func ExtractClientIP(r *http.Request, config *IPConfig) string {
	peer, ok := peerAddr(r.RemoteAddr)
	if !ok {
		if r.RemoteAddr == "" {
			return "unknown"
		}
		return r.RemoteAddr
	}

	if config.trusts(peer) {
		if client, ok := forwardedClient(r.Header); ok {
			return client.String()
		}
	}
	return peer.String()
}

// trusts reports whether addr falls inside one of the trusted proxy ranges
func (c *IPConfig) trusts(addr netip.Addr) bool {
	if c == nil {
		return false
	}
	for _, cidr := range c.TrustedProxies {
		prefix, err := netip.ParsePrefix(strings.TrimSpace(cidr))
		if err == nil && prefix.Contains(addr) {
			return true
		}
	}
	return false
}

// forwardedClient picks the originating client from the forwarding headers:
// the leftmost valid X-Forwarded-For entry, then X-Real-IP
func forwardedClient(h http.Header) (netip.Addr, bool) {
	for _, entry := range strings.Split(h.Get("X-Forwarded-For"), ",") {
		if addr, err := netip.ParseAddr(strings.TrimSpace(entry)); err == nil {
			return addr.Unmap(), true
		}
	}
	if addr, err := netip.ParseAddr(strings.TrimSpace(h.Get("X-Real-IP"))); err == nil {
		return addr.Unmap(), true
	}
	return netip.Addr{}, false
}

// peerAddr parses RemoteAddr with or without a port
func peerAddr(remote string) (netip.Addr, bool) {
	if ap, err := netip.ParseAddrPort(remote); err == nil {
		return ap.Addr().Unmap(), true
	}
	if addr, err := netip.ParseAddr(remote); err == nil {
		return addr.Unmap(), true
	}
	return netip.Addr{}, false
}
