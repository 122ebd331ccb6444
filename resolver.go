package proxytrust

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"net/netip"
	"sort"
	"strconv"
	"strings"
)

// Resolver interprets trust-scoped proxy headers on inbound requests and
// reconstructs the real client address, scheme, host, port and URL.
//
// Given the request's immediate peer address and the configured trust
// entries, it determines how far into the declared proxy chain trust extends
// and resolves the request accordingly. Attacker-controlled header content
// never produces an error: malformed chains and untrusted peers degrade to
// "trust stops here".
//
// Resolver instances are safe for concurrent reuse.
type Resolver struct {
	config *Config
}

// New creates a Resolver from one or more Option builders. All configuration
// errors (empty host lists, malformed patterns, invalid protocol mappings)
// surface here, never at request time.
func New(opts ...Option) (*Resolver, error) {
	cfg, err := configFromOptions(opts...)
	if err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &Resolver{config: cfg}, nil
}

// Resolve evaluates the request against the configured trust entries.
//
// The returned Resolution reports an invalid ClientIP when the request has no
// discoverable peer address or the peer matches no entry; both are routine
// outcomes, not faults. The only possible error is a SchemeResolverError from
// a caller-supplied SchemeResolver.
func (r *Resolver) Resolve(req *http.Request) (Resolution, error) {
	ctx := requestContext(req)

	peer := parseIP(req.RemoteAddr)
	if !peer.IsValid() {
		r.config.metrics.RecordSecurityEvent(securityEventNoPeerAddress)
		r.config.metrics.RecordResolutionFailure(sourceRemoteAddr)
		return Resolution{}, nil
	}
	peer = normalizeIP(peer)

	matched, trustedUnion := r.matchEntry(peer)
	if matched == nil {
		r.config.metrics.RecordSecurityEvent(securityEventUntrustedPeer)
		r.config.metrics.RecordResolutionFailure(sourceRemoteAddr)
		r.logSecurityWarning(ctx, req, sourceRemoteAddr, securityEventUntrustedPeer,
			"immediate peer matches no trust entry")
		return Resolution{}, nil
	}

	res := Resolution{Matched: true}

	// Proxies may inject headers that other trust entries would have
	// honored; strip everything the matched entry does not vouch for.
	stripped := r.strippedHeaders(matched, trustedUnion, req)
	if len(stripped) > 0 {
		res.StrippedHeaders = stripped
		r.config.metrics.RecordSecurityEvent(securityEventHeadersStripped)
		r.logSecurityWarning(ctx, req, sourceRemoteAddr, securityEventHeadersStripped,
			"request carries headers the matched trust entry does not vouch for",
			"headers", strings.Join(stripped, ","))
	}

	strippedSet := make(map[string]struct{}, len(stripped))
	for _, name := range stripped {
		strippedSet[name] = struct{}{}
	}
	headerValues := func(name string) []string {
		if _, gone := strippedSet[name]; gone {
			return nil
		}
		return req.Header.Values(name)
	}

	chainHdr, chainValues := locateChainHeader(matched, headerValues)

	source := sourceRemoteAddr
	var scan chainScan
	if len(chainValues) > 0 {
		source = NormalizeSourceLabel(chainHdr.Name)
		if chainHdr.Forwarded {
			scan = r.config.forwardedChain(chainValues)
		} else {
			scan = r.config.plainChain(chainValues)
		}

		if scan.malformed {
			r.config.metrics.RecordSecurityEvent(securityEventMalformedForwarded)
			r.logSecurityWarning(ctx, req, source, securityEventMalformedForwarded,
				"malformed chain element received, trust truncated")
		}
		if scan.capped {
			r.config.metrics.RecordSecurityEvent(securityEventChainTooLong)
			r.logSecurityWarning(ctx, req, source, securityEventChainTooLong,
				"proxy chain exceeds configured maximum length",
				"max_length", r.config.maxChainLength)
		}
	}

	client, validated := r.walkChain(matched, peer, scan)

	res.ClientIP = client.IP
	if r.config.keepChain {
		res.Chain = validated
	}

	res.Host = resolveHost(matched, chainHdr, client, headerValues)

	scheme, err := r.resolveScheme(matched, chainHdr, client, headerValues, req)
	if err != nil {
		return res, err
	}
	res.Scheme = scheme

	res.Path, res.Query = resolveURL(matched, headerValues)
	res.Port = resolvePort(matched, chainHdr, client, headerValues)

	r.config.metrics.RecordResolutionSuccess(source)

	return res, nil
}

// matchEntry finds the first entry matching the peer while accumulating the
// union of every entry's trusted headers, which is needed for stripping
// regardless of which entry matches.
func (r *Resolver) matchEntry(peer netip.Addr) (*compiledEntry, map[string]struct{}) {
	var matched *compiledEntry
	union := make(map[string]struct{})

	for i := range r.config.entries {
		entry := &r.config.entries[i]
		for name := range entry.trusted {
			union[name] = struct{}{}
		}

		if matched == nil && entry.matches(peer, r.config.matcher) {
			matched = entry
		}
	}

	return matched, union
}

func (r *Resolver) strippedHeaders(matched *compiledEntry, union map[string]struct{}, req *http.Request) []string {
	var stripped []string

	for name := range union {
		if _, vouched := matched.trusted[name]; vouched {
			continue
		}
		if len(req.Header.Values(name)) == 0 {
			continue
		}
		stripped = append(stripped, name)
	}

	sort.Strings(stripped)
	return stripped
}

func locateChainHeader(entry *compiledEntry, headerValues func(string) []string) (ChainHeader, []string) {
	for _, h := range entry.ipHeaders {
		if values := headerValues(h.Name); len(values) > 0 {
			return h, values
		}
	}

	return ChainHeader{}, nil
}

// resolveHost scans the entry's host headers in order. For the header that is
// also the active RFC 7239 chain header, the host= value carried on the
// client hop is preferred; otherwise the literal header value is used. The
// first candidate passing basic domain-name syntax wins.
func resolveHost(entry *compiledEntry, chainHdr ChainHeader, client Hop, headerValues func(string) []string) string {
	for _, name := range entry.hostHeaders {
		candidate := ""

		if chainHdr.Forwarded && name == chainHdr.Name {
			if client.Host == "" {
				continue
			}
			candidate = client.Host
		} else {
			values := headerValues(name)
			if len(values) == 0 {
				continue
			}
			candidate = strings.TrimSpace(values[0])
		}

		if validHTTPHost(candidate) {
			return candidate
		}
	}

	return ""
}

// resolveScheme applies the entry's protocol rules in order with the same
// prefer-the-client-hop pattern as resolveHost, matching accepted values
// case-insensitively.
func (r *Resolver) resolveScheme(entry *compiledEntry, chainHdr ChainHeader, client Hop, headerValues func(string) []string, req *http.Request) (string, error) {
	for _, rule := range entry.protocol {
		values := headerValues(rule.header)

		if chainHdr.Forwarded && rule.header == chainHdr.Name {
			if client.Proto == "" {
				continue
			}
			values = []string{client.Proto}
		}

		scheme, err := rule.resolve(values, req)
		if err != nil {
			return "", err
		}
		if scheme != "" {
			return scheme, nil
		}
	}

	return "", nil
}

// resolveURL scans the entry's URL headers for the first value that starts
// with a slash and splits it once into path and query. The query is taken
// verbatim, even if it contains further literal '?' characters.
func resolveURL(entry *compiledEntry, headerValues func(string) []string) (path, query string) {
	for _, name := range entry.urlHeaders {
		values := headerValues(name)
		if len(values) == 0 {
			continue
		}

		value := strings.TrimSpace(values[0])
		if !strings.HasPrefix(value, "/") {
			continue
		}

		path, query, _ = strings.Cut(value, "?")
		return path, query
	}

	return "", ""
}

// resolvePort prefers the port carried on the client hop when the active
// chain header doubles as a port header; otherwise it scans the entry's port
// headers for the first syntactically valid port.
func resolvePort(entry *compiledEntry, chainHdr ChainHeader, client Hop, headerValues func(string) []string) int {
	for _, name := range entry.portHeaders {
		if chainHdr.Forwarded && name == chainHdr.Name {
			if client.Port == "" {
				continue
			}
			if port, ok := parsePort(client.Port); ok {
				return port
			}
			continue
		}

		values := headerValues(name)
		if len(values) == 0 {
			continue
		}
		if port, ok := parsePort(strings.TrimSpace(values[0])); ok {
			return port
		}
	}

	return 0
}

// Middleware resolves each request, rewrites its URI from the resolution,
// strips headers the matched trust entry does not vouch for, and stores the
// Resolution in the request context for ClientIPFromContext and friends.
//
// Requests with no matching trust entry pass through unchanged, with an
// unresolved Resolution stored so a previously-set value never leaks across
// resolver layers.
func (r *Resolver) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		res, err := r.Resolve(req)
		if err != nil {
			http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
			return
		}

		next.ServeHTTP(w, r.apply(req, res))
	})
}

// apply returns a shallow clone of req rewritten from the resolution.
func (r *Resolver) apply(req *http.Request, res Resolution) *http.Request {
	ctx := context.WithValue(requestContext(req), resolutionKey, res)
	out := req.Clone(ctx)

	for _, name := range res.StrippedHeaders {
		out.Header.Del(name)
	}

	if out.URL == nil {
		return out
	}

	if res.Scheme != "" {
		out.URL.Scheme = res.Scheme
	}
	if res.Host != "" {
		out.URL.Host = res.Host
		out.Host = res.Host
	}
	if res.Port != 0 {
		host := out.URL.Host
		if host == "" {
			host = out.Host
		}
		if host != "" {
			host = setHostPort(host, res.Port)
			out.URL.Host = host
			out.Host = host
		}
	}
	if res.Path != "" {
		out.URL.Path = res.Path
		out.URL.RawQuery = res.Query
	}

	return out
}

// setHostPort replaces any port already present on host with port.
func setHostPort(host string, port int) string {
	if h, _, err := net.SplitHostPort(host); err == nil {
		host = h
	}

	return net.JoinHostPort(host, strconv.Itoa(port))
}

func (r *Resolver) logSecurityWarning(ctx context.Context, req *http.Request, source, event, msg string, attrs ...any) {
	baseAttrs := []any{
		"event", event,
		"source", source,
		"path", requestPath(req),
		"remote_addr", req.RemoteAddr,
	}

	baseAttrs = append(baseAttrs, attrs...)
	r.config.logger.WarnContext(ctx, msg, baseAttrs...)
}

func requestPath(req *http.Request) string {
	if req.URL == nil {
		return ""
	}
	return req.URL.Path
}

func requestContext(req *http.Request) context.Context {
	if req == nil {
		return context.Background()
	}

	return req.Context()
}
