package proxytrust

import (
	"fmt"
)

// Trust appends trust entries, evaluated in registration order. The first
// entry whose host patterns match the immediate peer wins.
func Trust(entries ...TrustEntry) Option {
	cloned := make([]TrustEntry, len(entries))
	copy(cloned, entries)

	return func(c *Config) error {
		c.rawEntries = append(c.rawEntries, cloned...)
		return nil
	}
}

// WithHostMatcher replaces the built-in prefix matching with a custom
// strategy for all trust entries.
func WithHostMatcher(matcher HostMatcher) Option {
	return func(c *Config) error {
		if matcher == nil {
			return fmt.Errorf("host matcher cannot be nil")
		}

		c.matcher = matcher
		return nil
	}
}

// WithObfuscationResolver installs a strategy for recovering addresses from
// obfuscated or unknown chain hops. Without one, the chain walk stops at the
// first obfuscated hop.
func WithObfuscationResolver(resolver ObfuscationResolver) Option {
	return func(c *Config) error {
		if resolver == nil {
			return fmt.Errorf("obfuscation resolver cannot be nil")
		}

		c.obfuscation = resolver
		return nil
	}
}

// MaxChainLength sets the maximum number of hops accepted in proxy chains.
// Hops beyond the limit, counted from the server-adjacent end, are dropped.
func MaxChainLength(max int) Option {
	return func(c *Config) error {
		c.maxChainLength = max
		return nil
	}
}

// KeepChain controls whether the validated hop list is retained on the
// Resolution and exposed through the request context for downstream
// inspection.
func KeepChain(keep bool) Option {
	return func(c *Config) error {
		c.keepChain = keep
		return nil
	}
}

// WithLogger sets the logger implementation used for warning events.
func WithLogger(logger Logger) Option {
	return func(c *Config) error {
		if logger == nil {
			return fmt.Errorf("logger cannot be nil")
		}

		c.logger = logger
		return nil
	}
}

// WithMetrics sets a concrete metrics implementation.
//
// If previously configured, a metrics factory is disabled.
func WithMetrics(metrics Metrics) Option {
	return func(c *Config) error {
		if metrics == nil {
			return fmt.Errorf("metrics cannot be nil")
		}

		c.metrics = metrics
		c.metricsFactory = nil
		c.useMetricsFactory = false
		return nil
	}
}

// WithMetricsFactory configures a lazy metrics constructor.
//
// The factory is invoked once, after option validation succeeds.
func WithMetricsFactory(factory func() (Metrics, error)) Option {
	return func(c *Config) error {
		if factory == nil {
			return fmt.Errorf("metrics factory cannot be nil")
		}

		c.metricsFactory = factory
		c.useMetricsFactory = true
		return nil
	}
}
