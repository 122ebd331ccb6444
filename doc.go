// Package proxytrust resolves the real client IP, scheme, host, port and URL
// of HTTP requests arriving through chains of reverse proxies, while
// defending against header spoofing.
//
// # Features
//
//   - Trust entries scoping proxy headers to configured IP/CIDR/domain ranges,
//     first-match-wins in registration order
//   - Full RFC 7239 Forwarded element parsing (quoted values, bracketed IPv6,
//     obfuscated tokens) alongside plain X-Forwarded-For style lists
//   - Chain walk that extends trust outwards from the server and stops at the
//     first untrusted, malformed or obfuscated hop
//   - Header stripping: headers other trust entries would honor are removed
//     when the matched entry does not vouch for them
//   - Standalone ProtocolResolver for scheme-only deployments
//   - Injected strategies for host matching (see rdns) and reverse
//     obfuscation, no subclassing
//   - Optional observability with context-aware logging and pluggable metrics
//     (see zlog and prometheus)
//
// # Basic Usage
//
// Trust a loopback reverse proxy and resolve requests in a middleware chain:
//
//	resolver, err := proxytrust.New(proxytrust.PresetLoopbackProxy())
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	handler := resolver.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
//	    if ip, ok := proxytrust.ClientIPFromContext(r.Context()); ok {
//	        fmt.Fprintf(w, "client: %s", ip)
//	    }
//	}))
//
// # Trust Entries
//
// Each entry is one trust boundary: the hosts considered authoritative and
// the headers honored when the immediate peer falls inside them:
//
//	resolver, err := proxytrust.New(proxytrust.Trust(proxytrust.TrustEntry{
//	    Hosts:     []string{"10.0.0.0/8", "!10.0.0.13"},
//	    IPHeaders: []proxytrust.ChainHeader{proxytrust.ForwardedHeader("Forwarded")},
//	}))
//
// Nil header lists select the package defaults (Forwarded, X-Forwarded-For,
// X-Forwarded-Host, X-Forwarded-Proto, X-Forwarded-Port, Front-End-Https,
// X-Rewrite-Url); explicit empty lists disable the corresponding step.
//
// # Security Model
//
// Configuration mistakes fail fast at construction. Attacker-controlled
// header content never raises: a corrupt chain element, an implausible port
// or an untrusted peer all degrade to "trust stops here", so spoofing
// attempts can neither crash the server nor push trust further back than the
// first corrupt entry.
//
// # Thread Safety
//
// Resolver and ProtocolResolver instances are safe for concurrent use. They
// are typically created once at application startup and reused across all
// requests; configuration is immutable after construction.
package proxytrust
