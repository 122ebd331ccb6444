package proxytrust

import (
	"errors"
	"fmt"
	"net/netip"
	"strings"
)

var (
	ErrNoHosts = errors.New("trust entry requires at least one host pattern")

	ErrInvalidHostPattern = errors.New("invalid host pattern")

	ErrEmptyHeaderName = errors.New("header name cannot be empty")

	ErrEmptySchemeKey = errors.New("protocol mapping scheme cannot be empty")

	ErrNoSchemeValues = errors.New("protocol mapping requires at least one accepted value")

	ErrEmptySchemeValue = errors.New("protocol mapping accepted value cannot be empty")

	ErrConflictingProtocolRule = errors.New("protocol header cannot carry both a scheme table and a resolver")

	ErrInvalidScheme = errors.New("scheme resolver returned an empty scheme")
)

// EntryError reports an invalid field inside one configured trust entry.
type EntryError struct {
	Err   error
	Index int
	Field string
}

func (e *EntryError) Error() string {
	return fmt.Sprintf("trust entry %d: %s: %v", e.Index, e.Field, e.Err)
}

func (e *EntryError) Unwrap() error {
	return e.Err
}

// ProtocolRuleError reports an invalid protocol header rule, either inside a
// trust entry or on a standalone ProtocolResolver.
type ProtocolRuleError struct {
	Err    error
	Header string
	Scheme string
}

func (e *ProtocolRuleError) Error() string {
	if e.Scheme != "" {
		return fmt.Sprintf("protocol header %q, scheme %q: %v", e.Header, e.Scheme, e.Err)
	}
	return fmt.Sprintf("protocol header %q: %v", e.Header, e.Err)
}

func (e *ProtocolRuleError) Unwrap() error {
	return e.Err
}

// SchemeResolverError reports a contract violation by a caller-supplied
// SchemeResolver. Attacker-controlled input never produces this error; only a
// resolver returning ok together with an empty scheme does.
type SchemeResolverError struct {
	Err    error
	Header string
}

func (e *SchemeResolverError) Error() string {
	return fmt.Sprintf("scheme resolver for header %q: %v", e.Header, e.Err)
}

func (e *SchemeResolverError) Unwrap() error {
	return e.Err
}

// Hop is one link in the reconstructed proxy chain between the end client and
// the server.
//
// For RFC 7239 Forwarded elements, Node holds the raw for= node token and IP
// is set only when that token is a literal address. For plain IP-list headers
// (X-Forwarded-For style) Node holds the raw list item and IP is resolved
// during the chain walk.
type Hop struct {
	// IP is the hop address. Invalid when the node is obfuscated, unknown,
	// or not yet parsed.
	IP netip.Addr

	// Node is the raw node token, always present.
	Node string

	// Port is the raw node port. Numeric for literal hosts; preserved as an
	// opaque string for obfuscated nodes.
	Port string

	// By, Proto and Host carry the by=, proto= and host= parameters of a
	// Forwarded element when present.
	By    string
	Proto string
	Host  string
}

// Obfuscated reports whether the hop hides its identity behind the unknown
// token or an underscore-prefixed obfuscated token.
func (h Hop) Obfuscated() bool {
	return h.Node == "unknown" || strings.HasPrefix(h.Node, "_")
}

// Resolution is the outcome of resolving one request against the configured
// trust entries.
//
// Zero-valued fields mean "no override": an invalid ClientIP means no trust
// entry vouched for the request, empty Scheme/Host/Path and zero Port mean
// the corresponding URI part is unchanged.
type Resolution struct {
	// ClientIP is the resolved client address, or invalid when unresolved.
	ClientIP netip.Addr

	// Matched reports whether a trust entry matched the immediate peer.
	Matched bool

	// Scheme, Host, Port, Path and Query are URI overrides resolved from the
	// matched entry's headers. Query is meaningful only when Path is set.
	Scheme string
	Host   string
	Port   int
	Path   string
	Query  string

	// Chain lists the hops actually walked and validated, closest to the
	// server first. Populated only when chain retention is enabled.
	Chain []Hop

	// StrippedHeaders names the request headers that were present but not
	// vouched for by the matched entry.
	StrippedHeaders []string
}

// Resolved reports whether a client address was established.
func (r Resolution) Resolved() bool {
	return r.ClientIP.IsValid()
}
