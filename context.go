package proxytrust

import (
	"context"
	"net/netip"
)

type contextKey struct {
	name string
}

// resolutionKey carries the Resolution stored by Resolver.Middleware.
var resolutionKey = &contextKey{"proxytrust.resolution"}

// ResolutionFromContext returns the Resolution stored by Resolver.Middleware
// for the current request.
func ResolutionFromContext(ctx context.Context) (Resolution, bool) {
	res, ok := ctx.Value(resolutionKey).(Resolution)
	return res, ok
}

// ClientIPFromContext returns the resolved client address for the current
// request. ok is false when the middleware did not run or no trust entry
// vouched for the request.
func ClientIPFromContext(ctx context.Context) (netip.Addr, bool) {
	res, ok := ResolutionFromContext(ctx)
	if !ok || !res.ClientIP.IsValid() {
		return netip.Addr{}, false
	}

	return res.ClientIP, true
}

// ChainFromContext returns the validated hop chain for the current request,
// closest to the server first. Populated only when the resolver was built
// with KeepChain(true).
func ChainFromContext(ctx context.Context) ([]Hop, bool) {
	res, ok := ResolutionFromContext(ctx)
	if !ok || res.Chain == nil {
		return nil, false
	}

	return res.Chain, true
}
