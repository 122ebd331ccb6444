package proxytrust

import (
	"fmt"
)

const (
	// DefaultMaxChainLength is the maximum number of hops accepted in a proxy
	// chain. This prevents DoS attacks using extremely long header values
	// that could cause excessive memory allocation or CPU usage during
	// parsing. Typical proxy chains rarely exceed 5-10 entries.
	DefaultMaxChainLength = 100
)

// Option configures a Resolver.
//
// Construct options using package-provided option builder functions.
type Option func(*Config) error

// Config holds resolver configuration state.
//
// It is mutated by Option functions during construction and treated as
// read-only afterwards, so concurrent requests can share it without locking.
type Config struct {
	rawEntries []TrustEntry
	entries    []compiledEntry

	matcher     HostMatcher
	obfuscation ObfuscationResolver

	maxChainLength int
	keepChain      bool

	logger  Logger
	metrics Metrics

	metricsFactory    func() (Metrics, error)
	useMetricsFactory bool
}

func defaultConfig() *Config {
	return &Config{
		maxChainLength: DefaultMaxChainLength,
		logger:         noopLogger{},
		metrics:        noopMetrics{},
	}
}

func applyOptions(c *Config, opts ...Option) error {
	for _, opt := range opts {
		if err := opt(c); err != nil {
			return err
		}
	}

	return nil
}

func configFromOptions(opts ...Option) (*Config, error) {
	cfg := defaultConfig()

	if err := applyOptions(cfg, opts...); err != nil {
		return nil, err
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	cfg.entries = make([]compiledEntry, 0, len(cfg.rawEntries))
	for i, entry := range cfg.rawEntries {
		compiled, err := compileEntry(i, entry)
		if err != nil {
			return nil, err
		}
		cfg.entries = append(cfg.entries, compiled)
	}

	if cfg.useMetricsFactory {
		if cfg.metricsFactory == nil {
			return nil, fmt.Errorf("metrics factory cannot be nil")
		}

		metrics, err := cfg.metricsFactory()
		if err != nil {
			return nil, err
		}
		cfg.metrics = metrics
	}

	return cfg, nil
}

func (c *Config) validate() error {
	if c.maxChainLength <= 0 {
		return fmt.Errorf("max chain length must be positive, got %d", c.maxChainLength)
	}

	if c.logger == nil {
		return fmt.Errorf("logger cannot be nil")
	}

	if c.metrics == nil {
		return fmt.Errorf("metrics cannot be nil")
	}

	return nil
}
