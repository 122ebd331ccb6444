package proxytrust

import (
	"fmt"
	"net/netip"
	"strings"
)

// HostMatcher decides whether an address belongs to a set of host patterns.
//
// The core never implements address-to-name resolution itself; installing a
// HostMatcher replaces the built-in prefix matching wholesale, which allows
// reverse-DNS based trust (see the rdns subpackage) or other custom schemes.
//
// Implementations must be safe for concurrent use.
type HostMatcher interface {
	Match(addr netip.Addr, patterns []string) bool
}

// HostMatcherFunc adapts a function to the HostMatcher interface.
type HostMatcherFunc func(addr netip.Addr, patterns []string) bool

// Match implements HostMatcher.
func (f HostMatcherFunc) Match(addr netip.Addr, patterns []string) bool {
	return f(addr, patterns)
}

// hostSet is the compiled form of a trust entry's host patterns: positive and
// negated prefix tries plus any domain patterns, which only a custom
// HostMatcher can act on.
type hostSet struct {
	include prefixTrie
	exclude prefixTrie
	domains []string
}

// compileHostSet validates and compiles host patterns. Each pattern is an IP
// literal, a CIDR prefix, or a domain name (optionally "*."-wildcarded), with
// an optional leading "!" for negation.
func compileHostSet(patterns []string) (*hostSet, error) {
	set := &hostSet{}

	for _, pattern := range patterns {
		raw := strings.TrimSpace(pattern)
		negated := strings.HasPrefix(raw, "!")
		if negated {
			raw = strings.TrimSpace(raw[1:])
		}

		if raw == "" {
			return nil, fmt.Errorf("%w: %q", ErrInvalidHostPattern, pattern)
		}

		if prefix, err := netip.ParsePrefix(raw); err == nil {
			set.insert(prefix, negated)
			continue
		}

		if addr, err := netip.ParseAddr(raw); err == nil {
			addr = normalizeIP(addr)
			set.insert(netip.PrefixFrom(addr, addr.BitLen()), negated)
			continue
		}

		if validDomainPattern(raw) {
			if negated {
				raw = "!" + raw
			}
			set.domains = append(set.domains, raw)
			continue
		}

		return nil, fmt.Errorf("%w: %q", ErrInvalidHostPattern, pattern)
	}

	return set, nil
}

func (s *hostSet) insert(prefix netip.Prefix, negated bool) {
	if negated {
		s.exclude.insert(prefix)
		return
	}
	s.include.insert(prefix)
}

// contains reports whether the address matches the positive patterns without
// matching any negated one. Domain patterns never match here; they require a
// custom HostMatcher.
func (s *hostSet) contains(addr netip.Addr) bool {
	if !addr.IsValid() {
		return false
	}

	addr = normalizeIP(addr)

	if s.exclude.contains(addr) {
		return false
	}

	return s.include.contains(addr)
}

// prefixTrie indexes network prefixes as binary tries, one per address
// family, for O(bits) containment checks.
type prefixTrie struct {
	ipv4Root *prefixTrieNode
	ipv6Root *prefixTrieNode
}

type prefixTrieNode struct {
	children [2]*prefixTrieNode
	terminal bool
}

func (t *prefixTrie) insert(prefix netip.Prefix) {
	addr := prefix.Addr()
	if !addr.IsValid() {
		return
	}

	bits := prefix.Bits()
	if bits < 0 {
		return
	}
	if bits > addr.BitLen() {
		bits = addr.BitLen()
	}

	if addr.Is4() {
		if t.ipv4Root == nil {
			t.ipv4Root = &prefixTrieNode{}
		}

		bytes := addr.As4()
		insertPrefixBits(t.ipv4Root, bytes[:], bits)
		return
	}

	if t.ipv6Root == nil {
		t.ipv6Root = &prefixTrieNode{}
	}

	bytes := addr.As16()
	insertPrefixBits(t.ipv6Root, bytes[:], bits)
}

func insertPrefixBits(root *prefixTrieNode, addr []byte, bits int) {
	node := root
	if bits == 0 {
		node.terminal = true
		return
	}

	for bitIndex := 0; bitIndex < bits; bitIndex++ {
		bit := addrBit(addr, bitIndex)
		child := node.children[bit]
		if child == nil {
			child = &prefixTrieNode{}
			node.children[bit] = child
		}
		node = child
	}

	node.terminal = true
}

func (t *prefixTrie) contains(ip netip.Addr) bool {
	if !ip.IsValid() {
		return false
	}

	if ip.Is4() {
		if t.ipv4Root == nil {
			return false
		}

		bytes := ip.As4()
		return trieContains(t.ipv4Root, bytes[:])
	}

	if t.ipv6Root == nil {
		return false
	}

	bytes := ip.As16()
	return trieContains(t.ipv6Root, bytes[:])
}

func trieContains(root *prefixTrieNode, addr []byte) bool {
	node := root
	if node == nil {
		return false
	}

	if node.terminal {
		return true
	}

	for bitIndex := 0; bitIndex < len(addr)*8; bitIndex++ {
		node = node.children[addrBit(addr, bitIndex)]
		if node == nil {
			return false
		}
		if node.terminal {
			return true
		}
	}

	return false
}

func addrBit(addr []byte, bitIndex int) int {
	byteIndex := bitIndex / 8
	shift := uint(7 - (bitIndex % 8))
	if ((addr[byteIndex] >> shift) & 1) == 1 {
		return 1
	}
	return 0
}
