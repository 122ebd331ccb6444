package proxytrust

import (
	"net"
	"net/netip"
	"strconv"
	"strings"
)

// parseIP extracts an IP address from the loose formats found in peer
// addresses and plain proxy-chain headers. It handles:
//   - Leading/trailing whitespace: "  192.168.1.1  "
//   - Port suffixes: "192.168.1.1:8080" or "[::1]:8080"
//   - Quoted values: "\"192.168.1.1\"" or "'192.168.1.1'"
//   - IPv6 brackets: "[::1]"
//
// These variations are normalized before netip.ParseAddr does the actual
// parsing. Returns an invalid netip.Addr (IsValid() == false) if parsing
// fails.
func parseIP(s string) netip.Addr {
	s = strings.TrimSpace(s)
	if s == "" {
		return netip.Addr{}
	}

	s = trimMatchedChar(s, '"')
	s = trimMatchedChar(s, '\'')
	if s == "" {
		return netip.Addr{}
	}

	if host, _, err := net.SplitHostPort(s); err == nil {
		s = host
	}

	s = trimMatchedPair(s, '[', ']')

	ip, _ := netip.ParseAddr(s)
	return ip
}

func normalizeIP(ip netip.Addr) netip.Addr {
	if ip.Is4In6() {
		return ip.Unmap()
	}
	return ip
}

// trimMatchedPair removes one leading and trailing delimiter when both match.
func trimMatchedPair(s string, start, end byte) string {
	if len(s) < 2 {
		return s
	}

	if s[0] != start || s[len(s)-1] != end {
		return s
	}

	return s[1 : len(s)-1]
}

// trimMatchedChar removes one matching leading and trailing character.
func trimMatchedChar(s string, ch byte) string {
	return trimMatchedPair(s, ch, ch)
}

// parsePort parses a decimal port in the valid TCP range.
func parsePort(s string) (int, bool) {
	if s == "" {
		return 0, false
	}

	port, err := strconv.Atoi(s)
	if err != nil || port < 1 || port > 65535 {
		return 0, false
	}

	return port, true
}

// isNumeric reports whether s consists only of ASCII digits.
func isNumeric(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

// validHTTPHost reports whether s is usable as an HTTP authority: a domain
// name or IP literal with an optional valid port suffix.
func validHTTPHost(s string) bool {
	if s == "" {
		return false
	}

	host := s
	if h, port, err := net.SplitHostPort(s); err == nil {
		if _, ok := parsePort(port); !ok {
			return false
		}
		host = h
	}

	if ip, err := netip.ParseAddr(host); err == nil {
		return ip.IsValid()
	}

	return validDomainName(host)
}

// validDomainName applies a basic domain-name syntax check: dot-separated
// labels of letters, digits and hyphens, no label starting or ending with a
// hyphen, at most 253 characters overall and 63 per label.
func validDomainName(s string) bool {
	s = strings.TrimSuffix(s, ".")
	if s == "" || len(s) > 253 {
		return false
	}

	for _, label := range strings.Split(s, ".") {
		if !validDomainLabel(label) {
			return false
		}
	}

	return true
}

func validDomainLabel(label string) bool {
	if label == "" || len(label) > 63 {
		return false
	}

	if label[0] == '-' || label[len(label)-1] == '-' {
		return false
	}

	for i := 0; i < len(label); i++ {
		ch := label[i]
		switch {
		case ch >= 'a' && ch <= 'z':
		case ch >= 'A' && ch <= 'Z':
		case ch >= '0' && ch <= '9':
		case ch == '-':
		default:
			return false
		}
	}

	return true
}

// validDomainPattern accepts a domain name with an optional leading "*."
// wildcard label. Used to validate host patterns in trust entries.
func validDomainPattern(s string) bool {
	s = strings.TrimPrefix(s, "*.")
	return validDomainName(s)
}
