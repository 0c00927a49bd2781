package middleware

import (
	"net"
	"net/http"
	"net/netip"
	"strings"
	"unicode/utf8"

	"repairchat/internal/config"
)

// ProxyPolicy decides when forwarding headers name the client.
type ProxyPolicy struct {
	// Enabled honours X-Forwarded-For and X-Real-IP at all.
	Enabled bool
	// Trusted lists the proxies in front of the server. Empty means a
	// single hop: the immediate peer is the proxy and the rightmost
	// forwarded entry is the client.
	Trusted []netip.Prefix
}

// NewProxyPolicy builds the policy from configuration.
func NewProxyPolicy(cfg *config.Config) (ProxyPolicy, error) {
	trusted, err := cfg.TrustedProxyPrefixes()
	if err != nil {
		return ProxyPolicy{}, err
	}
	return ProxyPolicy{Enabled: cfg.TrustProxyHeaders, Trusted: trusted}, nil
}

func (p ProxyPolicy) trusts(addr netip.Addr) bool {
	for _, prefix := range p.Trusted {
		if prefix.Contains(addr) {
			return true
		}
	}
	return false
}

// ClientIdentity returns the caller's network origin. Forwarding headers
// are read only when the immediate peer is a trusted proxy. X-Forwarded-For
// is walked from the right since proxies append to it and anything to the
// left of the first untrusted hop was written by the client.
func ClientIdentity(r *http.Request, policy ProxyPolicy) string {
	peer, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		peer = r.RemoteAddr
	}

	if policy.Enabled {
		peerAddr, perr := parseAddr(peer)
		if len(policy.Trusted) == 0 || (perr == nil && policy.trusts(peerAddr)) {
			if addr, ok := forwardedClient(r.Header.Values("X-Forwarded-For"), policy); ok {
				return addr.String()
			}
			if addr, err := parseAddr(r.Header.Get("X-Real-IP")); err == nil {
				return addr.String()
			}
		}
	}

	return truncateIdentity(peer)
}

// forwardedClient picks the client out of the X-Forwarded-For chain. A
// malformed entry discards the whole chain.
func forwardedClient(values []string, policy ProxyPolicy) (netip.Addr, bool) {
	var hops []string
	for _, v := range values {
		hops = append(hops, strings.Split(v, ",")...)
	}

	var client netip.Addr
	for i := len(hops) - 1; i >= 0; i-- {
		addr, err := parseAddr(hops[i])
		if err != nil {
			return netip.Addr{}, false
		}
		client = addr
		if len(policy.Trusted) == 0 || !policy.trusts(addr) {
			return client, true
		}
	}
	// Every hop is a trusted proxy: the leftmost one originated the request.
	return client, client.IsValid()
}

// parseAddr accepts a bare address or an address with a port, dropping any
// IPv6 zone so identities stay plain ASCII.
func parseAddr(s string) (netip.Addr, error) {
	s = strings.TrimSpace(s)
	addr, err := netip.ParseAddr(s)
	if err != nil {
		ap, perr := netip.ParseAddrPort(s)
		if perr != nil {
			return netip.Addr{}, err
		}
		addr = ap.Addr()
	}
	return addr.Unmap().WithZone(""), nil
}

// truncateIdentity makes the identity valid UTF-8 and cuts it to the
// stored length without splitting a rune.
func truncateIdentity(identity string) string {
	identity = strings.ToValidUTF8(identity, "")
	if len(identity) <= config.MaxClientIdentityLength {
		return identity
	}
	cut := config.MaxClientIdentityLength
	for cut > 0 && !utf8.RuneStart(identity[cut]) {
		cut--
	}
	return identity[:cut]
}
