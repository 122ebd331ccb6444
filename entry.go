package proxytrust

import (
	"net/http"
	"net/netip"
	"net/textproto"
	"strings"
)

// ChainHeader names a header consulted for the proxy chain. Forwarded marks
// the header as carrying RFC 7239 element syntax instead of a plain IP list.
type ChainHeader struct {
	Name      string
	Forwarded bool
}

// IPHeader returns a ChainHeader for a plain IP-list header such as
// X-Forwarded-For.
func IPHeader(name string) ChainHeader {
	return ChainHeader{Name: name}
}

// ForwardedHeader returns a ChainHeader for a header carrying RFC 7239
// Forwarded element syntax.
func ForwardedHeader(name string) ChainHeader {
	return ChainHeader{Name: name, Forwarded: true}
}

// SchemeValues maps one URI scheme to the raw header values accepted for it.
// Values are matched case-insensitively.
type SchemeValues struct {
	Scheme string
	Values []string
}

// SchemeResolver decides a URI scheme from raw header values.
//
// Returning ok=false passes evaluation to the next configured protocol
// header. Returning ok=true with an empty scheme is a contract violation and
// surfaces as a SchemeResolverError.
type SchemeResolver interface {
	Resolve(values []string, header string, r *http.Request) (scheme string, ok bool)
}

// SchemeResolverFunc adapts a function to the SchemeResolver interface.
type SchemeResolverFunc func(values []string, header string, r *http.Request) (string, bool)

// Resolve implements SchemeResolver.
func (f SchemeResolverFunc) Resolve(values []string, header string, r *http.Request) (string, bool) {
	return f(values, header, r)
}

// ProtocolHeader configures scheme resolution for one header. Exactly one of
// Schemes or Resolver may be set; with neither, the built-in table
// (http -> {http}, https -> {https, on}) applies.
type ProtocolHeader struct {
	Name     string
	Schemes  []SchemeValues
	Resolver SchemeResolver
}

// TrustEntry is one configured trust boundary: a set of host patterns
// considered trusted sources together with the headers honored when the
// immediate peer matches.
//
// Hosts is mandatory. Patterns are IP literals, CIDR prefixes, or domain
// names (optionally wildcarded with a leading "*."), each negatable with a
// leading "!". Domain patterns only take effect with a HostMatcher that can
// resolve addresses to names.
//
// For the header lists, nil selects the package defaults while an explicit
// empty slice disables that resolution step.
type TrustEntry struct {
	Hosts []string

	// IPHeaders lists the headers consulted for the proxy chain, in order.
	// The first header present on the request wins.
	IPHeaders []ChainHeader

	// ProtocolHeaders, HostHeaders, URLHeaders and PortHeaders are consulted
	// in order for the URI scheme, HTTP host, rewritten path/query and port.
	ProtocolHeaders []ProtocolHeader
	HostHeaders     []string
	URLHeaders      []string
	PortHeaders     []string

	// TrustedHeaders names the headers that stay on the request when this
	// entry matches. Headers vouched for by other entries but not listed
	// here are stripped.
	TrustedHeaders []string
}

const (
	headerForwarded       = "Forwarded"
	headerXForwardedFor   = "X-Forwarded-For"
	headerXForwardedHost  = "X-Forwarded-Host"
	headerXForwardedProto = "X-Forwarded-Proto"
	headerXForwardedPort  = "X-Forwarded-Port"
	headerFrontEndHTTPS   = "Front-End-Https"
	headerXRewriteURL     = "X-Rewrite-Url"
)

// DefaultTrustedHeaders returns the header names honored by a trust entry
// that does not configure its own set.
func DefaultTrustedHeaders() []string {
	return []string{
		headerForwarded,
		headerXForwardedFor,
		headerXForwardedHost,
		headerXForwardedProto,
		headerXForwardedPort,
		headerFrontEndHTTPS,
		headerXRewriteURL,
	}
}

func defaultIPHeaders() []ChainHeader {
	return []ChainHeader{
		ForwardedHeader(headerForwarded),
		IPHeader(headerXForwardedFor),
	}
}

func defaultProtocolHeaders() []ProtocolHeader {
	return []ProtocolHeader{
		{Name: headerXForwardedProto},
		{Name: headerFrontEndHTTPS, Schemes: []SchemeValues{{Scheme: "https", Values: []string{"on"}}}},
	}
}

func defaultSchemeValues() []SchemeValues {
	return []SchemeValues{
		{Scheme: "http", Values: []string{"http"}},
		{Scheme: "https", Values: []string{"https", "on"}},
	}
}

// compiledEntry is a TrustEntry normalized for per-request use: canonical
// header names, defaults applied, scheme tables lowercased and the host
// patterns compiled into a hostSet.
type compiledEntry struct {
	hosts       []string
	hostSet     *hostSet
	ipHeaders   []ChainHeader
	protocol    []protocolRule
	hostHeaders []string
	urlHeaders  []string
	portHeaders []string
	trusted     map[string]struct{}
}

func compileEntry(index int, entry TrustEntry) (compiledEntry, error) {
	if len(entry.Hosts) == 0 {
		return compiledEntry{}, &EntryError{Err: ErrNoHosts, Index: index, Field: "Hosts"}
	}

	set, err := compileHostSet(entry.Hosts)
	if err != nil {
		return compiledEntry{}, &EntryError{Err: err, Index: index, Field: "Hosts"}
	}

	ipHeaders := entry.IPHeaders
	if ipHeaders == nil {
		ipHeaders = defaultIPHeaders()
	}
	compiledIP := make([]ChainHeader, len(ipHeaders))
	for i, h := range ipHeaders {
		if strings.TrimSpace(h.Name) == "" {
			return compiledEntry{}, &EntryError{Err: ErrEmptyHeaderName, Index: index, Field: "IPHeaders"}
		}
		compiledIP[i] = ChainHeader{Name: canonicalHeaderName(h.Name), Forwarded: h.Forwarded}
	}

	protoHeaders := entry.ProtocolHeaders
	if protoHeaders == nil {
		protoHeaders = defaultProtocolHeaders()
	}
	rules, err := compileProtocolRules(protoHeaders)
	if err != nil {
		return compiledEntry{}, &EntryError{Err: err, Index: index, Field: "ProtocolHeaders"}
	}

	hostHeaders, err := compileHeaderNames(entry.HostHeaders, []string{headerXForwardedHost})
	if err != nil {
		return compiledEntry{}, &EntryError{Err: err, Index: index, Field: "HostHeaders"}
	}

	urlHeaders, err := compileHeaderNames(entry.URLHeaders, []string{headerXRewriteURL})
	if err != nil {
		return compiledEntry{}, &EntryError{Err: err, Index: index, Field: "URLHeaders"}
	}

	portHeaders, err := compileHeaderNames(entry.PortHeaders, []string{headerXForwardedPort})
	if err != nil {
		return compiledEntry{}, &EntryError{Err: err, Index: index, Field: "PortHeaders"}
	}

	trustedHeaders, err := compileHeaderNames(entry.TrustedHeaders, DefaultTrustedHeaders())
	if err != nil {
		return compiledEntry{}, &EntryError{Err: err, Index: index, Field: "TrustedHeaders"}
	}

	trusted := make(map[string]struct{}, len(trustedHeaders))
	for _, name := range trustedHeaders {
		trusted[name] = struct{}{}
	}

	return compiledEntry{
		hosts:       cloneStrings(entry.Hosts),
		hostSet:     set,
		ipHeaders:   compiledIP,
		protocol:    rules,
		hostHeaders: hostHeaders,
		urlHeaders:  urlHeaders,
		portHeaders: portHeaders,
		trusted:     trusted,
	}, nil
}

// compileHeaderNames canonicalizes a header-name list, substituting defaults
// for a nil list and rejecting empty names.
func compileHeaderNames(names, defaults []string) ([]string, error) {
	if names == nil {
		names = defaults
	}

	compiled := make([]string, len(names))
	for i, name := range names {
		if strings.TrimSpace(name) == "" {
			return nil, ErrEmptyHeaderName
		}
		compiled[i] = canonicalHeaderName(name)
	}

	return compiled, nil
}

// canonicalHeaderName normalizes configured and incoming header names once at
// the boundary so the rest of the logic can compare them directly.
func canonicalHeaderName(name string) string {
	return textproto.CanonicalMIMEHeaderKey(strings.TrimSpace(name))
}

// matches reports whether the address falls inside this entry's host
// patterns, using the custom matcher when one is installed.
func (e *compiledEntry) matches(addr netip.Addr, matcher HostMatcher) bool {
	if !addr.IsValid() {
		return false
	}

	if matcher != nil {
		return matcher.Match(addr, e.hosts)
	}

	return e.hostSet.contains(addr)
}

func cloneStrings(values []string) []string {
	if values == nil {
		return nil
	}
	cloned := make([]string, len(values))
	copy(cloned, values)
	return cloned
}
