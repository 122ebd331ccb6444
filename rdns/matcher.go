// Package rdns provides a reverse-DNS host matcher for
// github.com/avdwerf/proxytrust.
//
// The matcher resolves PTR records for candidate addresses and matches the
// returned names against the domain patterns of a trust entry, so proxies can
// be trusted by name (for example "*.edge.example.com") instead of by address
// range. IP and CIDR patterns keep their usual meaning.
package rdns

import (
	"net/netip"
	"strings"
	"sync"
	"time"

	"github.com/miekg/dns"
)

// DefaultTimeout bounds one PTR lookup. Resolution runs on the request path,
// so lookups must stay short; a slow resolver degrades to "not matched"
// rather than stalling requests.
const DefaultTimeout = 500 * time.Millisecond

// Matcher is a proxytrust.HostMatcher that augments prefix matching with
// PTR-based domain matching.
//
// Matcher instances are safe for concurrent use.
type Matcher struct {
	server string
	client *dns.Client

	mu    sync.Mutex
	cache map[netip.Addr]cachedNames
	ttl   time.Duration
}

type cachedNames struct {
	names   []string
	expires time.Time
}

// Option configures a Matcher.
type Option func(*Matcher)

// WithTimeout sets the per-lookup timeout.
func WithTimeout(timeout time.Duration) Option {
	return func(m *Matcher) {
		m.client.Timeout = timeout
	}
}

// WithCacheTTL sets how long PTR answers are reused per address. Zero
// disables caching.
func WithCacheTTL(ttl time.Duration) Option {
	return func(m *Matcher) {
		m.ttl = ttl
	}
}

// New creates a Matcher querying the given DNS server ("host:port").
func New(server string, opts ...Option) *Matcher {
	m := &Matcher{
		server: server,
		client: &dns.Client{Timeout: DefaultTimeout},
		cache:  make(map[netip.Addr]cachedNames),
		ttl:    time.Minute,
	}

	for _, opt := range opts {
		opt(m)
	}

	return m
}

// Match implements proxytrust.HostMatcher.
//
// Negated patterns (leading "!") are checked first; any negated match wins
// and excludes the address. Then IP and CIDR patterns are checked directly,
// and domain patterns against the address's PTR names. Lookup failures count
// as "not matched" for the domain patterns only.
func (m *Matcher) Match(addr netip.Addr, patterns []string) bool {
	if !addr.IsValid() {
		return false
	}
	if addr.Is4In6() {
		addr = addr.Unmap()
	}

	var names []string
	namesLooked := false
	lookupNames := func() []string {
		if !namesLooked {
			names = m.ptrNames(addr)
			namesLooked = true
		}
		return names
	}

	matched := false

	for _, pattern := range patterns {
		raw := strings.TrimSpace(pattern)
		negated := strings.HasPrefix(raw, "!")
		if negated {
			raw = strings.TrimSpace(raw[1:])
		}
		if raw == "" {
			continue
		}

		hit := false
		if prefix, err := netip.ParsePrefix(raw); err == nil {
			hit = prefix.Contains(addr)
		} else if ip, err := netip.ParseAddr(raw); err == nil {
			if ip.Is4In6() {
				ip = ip.Unmap()
			}
			hit = ip == addr
		} else {
			for _, name := range lookupNames() {
				if domainPatternMatches(raw, name) {
					hit = true
					break
				}
			}
		}

		if !hit {
			continue
		}
		if negated {
			return false
		}
		matched = true
	}

	return matched
}

// ptrNames resolves the PTR names of addr, consulting the cache first.
func (m *Matcher) ptrNames(addr netip.Addr) []string {
	if m.ttl > 0 {
		m.mu.Lock()
		if entry, ok := m.cache[addr]; ok && time.Now().Before(entry.expires) {
			names := entry.names
			m.mu.Unlock()
			return names
		}
		m.mu.Unlock()
	}

	names := m.lookup(addr)

	if m.ttl > 0 {
		m.mu.Lock()
		m.cache[addr] = cachedNames{names: names, expires: time.Now().Add(m.ttl)}
		m.mu.Unlock()
	}

	return names
}

func (m *Matcher) lookup(addr netip.Addr) []string {
	reverse, err := dns.ReverseAddr(addr.String())
	if err != nil {
		return nil
	}

	msg := new(dns.Msg)
	msg.SetQuestion(reverse, dns.TypePTR)

	resp, _, err := m.client.Exchange(msg, m.server)
	if err != nil || resp == nil || resp.Rcode != dns.RcodeSuccess {
		return nil
	}

	names := make([]string, 0, len(resp.Answer))
	for _, rr := range resp.Answer {
		if ptr, ok := rr.(*dns.PTR); ok {
			names = append(names, strings.ToLower(strings.TrimSuffix(ptr.Ptr, ".")))
		}
	}

	return names
}

// domainPatternMatches matches one PTR name against a domain pattern, with a
// single leading "*." label allowed as a wildcard for any subdomain depth.
func domainPatternMatches(pattern, name string) bool {
	pattern = strings.ToLower(strings.TrimSuffix(pattern, "."))
	name = strings.TrimSuffix(name, ".")

	if suffix, ok := strings.CutPrefix(pattern, "*."); ok {
		return name == suffix || strings.HasSuffix(name, "."+suffix)
	}

	return name == pattern
}
