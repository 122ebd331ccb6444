package proxytrust

import (
	"fmt"
	"net/netip"
	"strings"
)

// typicalChainCapacity is the initial capacity used when parsing proxy chains.
//
// Most deployments have short chains (around 1-5 hops). Preallocating 8 avoids
// reallocations in common cases without meaningful memory overhead.
const typicalChainCapacity = 8

// splitForwardedValue splits one Forwarded header value into raw
// comma-separated elements in wire order, respecting quoted strings.
//
// Broken quoting anywhere in the value makes the whole value unsplittable:
// the server-adjacent end of the value may sit inside the unparseable region,
// so no element from it can be trusted.
func splitForwardedValue(value string) ([]string, error) {
	elements := make([]string, 0, typicalChainCapacity)

	err := scanForwardedSegments(value, ',', func(element string) error {
		elements = append(elements, element)
		return nil
	})
	if err != nil {
		return nil, err
	}

	return elements, nil
}

// parseForwardedElement parses a single RFC 7239 Forwarded element.
//
// The for parameter is mandatory. Parameter names are matched
// case-insensitively and duplicate for parameters are rejected. Unknown
// parameters are ignored. A host= value that fails basic domain-name syntax
// is dropped without invalidating the element.
func parseForwardedElement(element string) (Hop, error) {
	var hop Hop
	hasFor := false

	err := scanForwardedSegments(element, ';', func(param string) error {
		eq := strings.IndexByte(param, '=')
		if eq <= 0 {
			return fmt.Errorf("invalid forwarded parameter %q", param)
		}

		key := strings.TrimSpace(param[:eq])
		value := strings.TrimSpace(param[eq+1:])
		if key == "" {
			return fmt.Errorf("empty parameter key in %q", param)
		}
		if value == "" {
			return fmt.Errorf("empty parameter value for %q", key)
		}

		if value[0] == '"' {
			unquoted, err := unquoteForwardedValue(value)
			if err != nil {
				return err
			}
			value = strings.TrimSpace(unquoted)
			if value == "" {
				return fmt.Errorf("empty quoted value for %q", key)
			}
		}

		switch {
		case strings.EqualFold(key, "for"):
			if hasFor {
				return fmt.Errorf("duplicate for parameter in element %q", element)
			}
			hasFor = true

			ip, node, port, err := parseForwardedNode(value)
			if err != nil {
				return err
			}
			hop.IP = ip
			hop.Node = node
			hop.Port = port
		case strings.EqualFold(key, "proto"):
			hop.Proto = value
		case strings.EqualFold(key, "host"):
			if validHTTPHost(value) {
				hop.Host = value
			}
		case strings.EqualFold(key, "by"):
			hop.By = value
		}

		return nil
	})
	if err != nil {
		return Hop{}, err
	}

	if !hasFor {
		return Hop{}, fmt.Errorf("element %q has no for parameter", element)
	}

	return hop, nil
}

// parseForwardedNode parses an RFC 7239 node: an IPv4 literal, a bracketed
// IPv6 literal, the token "unknown", or an underscore-prefixed obfuscated
// token, each with an optional port.
//
// A non-numeric port on a literal host invalidates the node. A numeric port
// outside 1-65535 is dropped while the node itself stays valid. Obfuscated
// nodes keep their port as an opaque string without numeric validation.
func parseForwardedNode(value string) (ip netip.Addr, node, port string, err error) {
	if value == "unknown" || strings.HasPrefix(value, "unknown:") {
		node, port, _ = strings.Cut(value, ":")
		return netip.Addr{}, node, port, nil
	}

	if strings.HasPrefix(value, "_") {
		node = value
		if idx := strings.LastIndexByte(value, ':'); idx > 0 {
			node = value[:idx]
			port = value[idx+1:]
		}
		return netip.Addr{}, node, port, nil
	}

	if strings.HasPrefix(value, "[") {
		end := strings.IndexByte(value, ']')
		if end < 0 {
			return netip.Addr{}, "", "", fmt.Errorf("unterminated bracket in node %q", value)
		}

		node = value[1:end]
		rest := value[end+1:]
		if rest != "" {
			if rest[0] != ':' {
				return netip.Addr{}, "", "", fmt.Errorf("invalid characters after bracket in node %q", value)
			}
			port = rest[1:]
		}

		ip, parseErr := netip.ParseAddr(node)
		if parseErr != nil || !ip.Is6() {
			return netip.Addr{}, "", "", fmt.Errorf("invalid bracketed address in node %q", value)
		}

		port, err = validateNodePort(port)
		if err != nil {
			return netip.Addr{}, "", "", err
		}

		return ip, node, port, nil
	}

	// Unbracketed IPv6 is rejected per RFC 7239: more than one colon can only
	// come from a bare IPv6 literal.
	node = value
	if idx := strings.IndexByte(value, ':'); idx >= 0 {
		if strings.IndexByte(value[idx+1:], ':') >= 0 {
			return netip.Addr{}, "", "", fmt.Errorf("unbracketed IPv6 in node %q", value)
		}
		node = value[:idx]
		port = value[idx+1:]
	}

	ip, parseErr := netip.ParseAddr(node)
	if parseErr != nil || !ip.Is4() {
		return netip.Addr{}, "", "", fmt.Errorf("invalid node host %q", node)
	}

	port, err = validateNodePort(port)
	if err != nil {
		return netip.Addr{}, "", "", err
	}

	return ip, node, port, nil
}

// validateNodePort keeps only syntactically numeric in-range ports.
//
// The error case is separated so literal-host nodes can reject garbage ports
// while out-of-range numeric ports merely lose the port.
func validateNodePort(port string) (string, error) {
	if port == "" {
		return "", nil
	}

	if !isNumeric(port) {
		return "", fmt.Errorf("invalid node port %q", port)
	}

	if _, ok := parsePort(port); !ok {
		// Numeric but out of range: the node stays usable without a port.
		return "", nil
	}

	return port, nil
}

// scanForwardedSegments splits value by delimiter while respecting quoted
// segments and escape sequences inside quoted strings.
func scanForwardedSegments(value string, delimiter byte, onSegment func(string) error) error {
	start := 0
	inQuotes := false
	escaped := false

	for i := 0; i <= len(value); i++ {
		if i == len(value) {
			if inQuotes {
				return fmt.Errorf("unterminated quoted string in %q", value)
			}
			if escaped {
				return fmt.Errorf("unterminated escape in %q", value)
			}
		} else {
			ch := value[i]

			if escaped {
				escaped = false
				continue
			}

			if ch == '\\' && inQuotes {
				escaped = true
				continue
			}

			if ch == '"' {
				inQuotes = !inQuotes
				continue
			}

			if ch != delimiter || inQuotes {
				continue
			}
		}

		segment := strings.TrimSpace(value[start:i])
		if segment != "" {
			if err := onSegment(segment); err != nil {
				return err
			}
		}

		start = i + 1
	}

	return nil
}

// unquoteForwardedValue removes surrounding quotes from a Forwarded quoted
// string and resolves backslash escapes.
func unquoteForwardedValue(value string) (string, error) {
	if len(value) < 2 || value[0] != '"' || value[len(value)-1] != '"' {
		return "", fmt.Errorf("invalid quoted string %q", value)
	}

	inner := value[1 : len(value)-1]
	if strings.IndexByte(inner, '\\') == -1 {
		if strings.IndexByte(inner, '"') != -1 {
			return "", fmt.Errorf("unexpected quote in %q", value)
		}

		return inner, nil
	}

	var b strings.Builder
	b.Grow(len(inner))
	escaped := false

	for i := 1; i < len(value)-1; i++ {
		ch := value[i]

		if escaped {
			b.WriteByte(ch)
			escaped = false
			continue
		}

		if ch == '\\' {
			escaped = true
			continue
		}

		if ch == '"' {
			return "", fmt.Errorf("unexpected quote in %q", value)
		}

		b.WriteByte(ch)
	}

	if escaped {
		return "", fmt.Errorf("unterminated escape in %q", value)
	}

	return b.String(), nil
}
