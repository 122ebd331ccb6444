package proxytrust

import "strings"

// Metrics records resolution outcomes and security events emitted by
// Resolver.
//
// Implementations should be safe for concurrent use, as a single Resolver
// instance is typically shared across many goroutines.
type Metrics interface {
	// RecordResolutionSuccess is called when a request resolves to a client
	// address, labeled by the chain source that supplied it.
	RecordResolutionSuccess(source string)
	// RecordResolutionFailure is called when no client address could be
	// established for a request.
	RecordResolutionFailure(source string)
	// RecordSecurityEvent is called when the resolver observes a
	// security-relevant condition.
	RecordSecurityEvent(event string)
}

// noopMetrics is the default Metrics implementation when metrics are not
// explicitly configured.
type noopMetrics struct{}

func (noopMetrics) RecordResolutionSuccess(string) {}

func (noopMetrics) RecordResolutionFailure(string) {}

func (noopMetrics) RecordSecurityEvent(string) {}

// NormalizeSourceLabel converts a header name to the label form used for
// metrics and logs (lowercase, hyphens replaced by underscores).
func NormalizeSourceLabel(headerName string) string {
	return strings.ToLower(strings.ReplaceAll(headerName, "-", "_"))
}
