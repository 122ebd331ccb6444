package proxytrust

import "net/netip"

// ObfuscationResolver recovers the real address behind an obfuscated or
// unknown chain hop.
//
// The resolver receives the hop in question, the hops already validated
// (closest to the server first) and the hops still awaiting validation
// (closest first). Returning ok=false leaves the hop unresolved and ends the
// chain walk at the previous hop.
//
// Implementations must be safe for concurrent use.
type ObfuscationResolver interface {
	Resolve(hop Hop, validated, remaining []Hop) (netip.Addr, bool)
}

// ObfuscationResolverFunc adapts a function to the ObfuscationResolver
// interface.
type ObfuscationResolverFunc func(hop Hop, validated, remaining []Hop) (netip.Addr, bool)

// Resolve implements ObfuscationResolver.
func (f ObfuscationResolverFunc) Resolve(hop Hop, validated, remaining []Hop) (netip.Addr, bool) {
	return f(hop, validated, remaining)
}
