// Package clientip resolves the visitor IP behind common reverse-proxy headers.
package clientip

import (
	"net"
	"net/netip"
	"strings"

	"github.com/gofiber/fiber/v2"
)

// headerOrder is the precedence of proxy headers checked for the client IP.
// CDN-injected headers win over generic forwarding headers.
var headerOrder = []string{
	"CF-Connecting-IP",
	"Client-IP",
	"X-Forwarded-For",
	"X-Forwarded",
	"X-Cluster-Client-IP",
	"Forwarded-For",
}

// FromRequest returns the best candidate for the visitor's IP address.
// Comma-separated header values yield the first hop. Falls back to the
// socket remote address, and to loopback when nothing parses.
func FromRequest(c *fiber.Ctx) string {
	for _, header := range headerOrder {
		value := c.Get(header)
		if value == "" {
			continue
		}
		for _, part := range strings.Split(value, ",") {
			if clean, parsed := Normalize(part); parsed != nil && !IsPrivate(parsed) {
				return clean
			}
		}
	}

	if forwarded := c.Get("Forwarded"); forwarded != "" {
		for _, candidate := range parseForwardedHeader(forwarded) {
			if clean, parsed := Normalize(candidate); parsed != nil && !IsPrivate(parsed) {
				return clean
			}
		}
	}

	// Remote address from the request socket
	remoteAddr := c.Context().RemoteAddr().String()
	if remoteAddr != "" {
		if clean, parsed := Normalize(remoteAddr); parsed != nil {
			return clean
		}
	}

	if ip := c.IP(); ip != "" && ip != "0.0.0.0" && ip != "::" {
		if clean, parsed := Normalize(ip); parsed != nil {
			return clean
		}
	}

	return "127.0.0.1"
}

// IsPrivate reports whether ip falls in a private, link-local, or loopback range.
func IsPrivate(ip net.IP) bool {
	if ip == nil {
		return false
	}

	// RFC 1918, RFC 4193, RFC 4291 ranges plus loopback
	privateIPBlocks := []*net.IPNet{
		parseCIDR("10.0.0.0/8"),
		parseCIDR("172.16.0.0/12"),
		parseCIDR("192.168.0.0/16"),
		parseCIDR("fc00::/7"),
		parseCIDR("fe80::/10"),
		parseCIDR("::1/128"),
		parseCIDR("127.0.0.0/8"),
	}

	for _, block := range privateIPBlocks {
		candidate := ip

		switch len(block.IP) {
		case net.IPv4len:
			if ip4 := ip.To4(); ip4 != nil {
				candidate = ip4
			} else {
				continue
			}
		case net.IPv6len:
			candidate = ip.To16()
			if candidate == nil {
				continue
			}
		}

		if block.Contains(candidate) {
			return true
		}
	}
	return false
}

// IsPrivateAddr is IsPrivate for a string address.
func IsPrivateAddr(ip string) bool {
	return IsPrivate(net.ParseIP(ip))
}

func parseCIDR(s string) *net.IPNet {
	_, block, _ := net.ParseCIDR(s)
	return block
}

// Normalize cleans a raw header value into a canonical IP string and its
// parsed form. Handles quoting, zone identifiers, ports, brackets, and
// 4-in-6 mapped addresses.
func Normalize(raw string) (string, net.IP) {
	clean := strings.TrimSpace(raw)
	clean = strings.Trim(clean, "\"")
	if clean == "" {
		return "", nil
	}

	// Remove zone identifier if present (e.g. fe80::1%eth0)
	if percent := strings.Index(clean, "%"); percent != -1 {
		clean = clean[:percent]
	}

	// Try parsing addr:port (handles both IPv4:port and [IPv6]:port)
	if addrPort, err := netip.ParseAddrPort(clean); err == nil {
		addr := addrPort.Addr()
		if addr.Is4In6() {
			addr = addr.Unmap()
		}
		ipStr := addr.String()
		return ipStr, net.ParseIP(ipStr)
	}

	trimmed := clean
	if strings.HasPrefix(trimmed, "[") && strings.HasSuffix(trimmed, "]") {
		trimmed = strings.TrimPrefix(trimmed, "[")
		trimmed = strings.TrimSuffix(trimmed, "]")
	}

	if addr, err := netip.ParseAddr(trimmed); err == nil {
		if addr.Is4In6() {
			addr = addr.Unmap()
		}
		ipStr := addr.String()
		return ipStr, net.ParseIP(ipStr)
	}

	if host, _, err := net.SplitHostPort(clean); err == nil {
		return Normalize(host)
	}

	return "", nil
}

func parseForwardedHeader(header string) []string {
	var candidates []string

	entries := strings.Split(header, ",")
	for _, entry := range entries {
		parts := strings.Split(entry, ";")
		for _, part := range parts {
			part = strings.TrimSpace(part)
			if strings.HasPrefix(strings.ToLower(part), "for=") {
				ip := strings.TrimPrefix(part, "for=")
				candidates = append(candidates, ip)
			}
		}
	}

	return candidates
}
