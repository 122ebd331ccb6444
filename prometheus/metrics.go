package prometheus

import (
	"errors"
	"fmt"

	"github.com/avdwerf/proxytrust"
	prom "github.com/prometheus/client_golang/prometheus"
)

// PrometheusMetrics is a Prometheus-backed implementation of
// proxytrust.Metrics.
type PrometheusMetrics struct {
	resolutionTotal *prom.CounterVec
	securityEvents  *prom.CounterVec
}

// WithMetrics returns a proxytrust option that installs Prometheus-backed
// metrics using prom.DefaultRegisterer.
func WithMetrics() proxytrust.Option {
	return withMetricsFactory(New)
}

// WithRegisterer returns a proxytrust option that installs Prometheus-backed
// metrics using the provided registerer.
//
// If registerer is nil, prom.DefaultRegisterer is used.
func WithRegisterer(registerer prom.Registerer) proxytrust.Option {
	return withMetricsFactory(func() (*PrometheusMetrics, error) {
		return NewWithRegisterer(registerer)
	})
}

// withMetricsFactory adapts a PrometheusMetrics constructor into a
// proxytrust.Option.
func withMetricsFactory(factory func() (*PrometheusMetrics, error)) proxytrust.Option {
	return proxytrust.WithMetricsFactory(func() (proxytrust.Metrics, error) {
		return factory()
	})
}

// New creates PrometheusMetrics and registers its collectors on
// prom.DefaultRegisterer.
func New() (*PrometheusMetrics, error) {
	return NewWithRegisterer(prom.DefaultRegisterer)
}

// NewWithRegisterer creates PrometheusMetrics and registers its collectors on
// the given registerer.
//
// If registerer is nil, prom.DefaultRegisterer is used. If the metrics are
// already registered, existing compatible collectors are reused.
func NewWithRegisterer(registerer prom.Registerer) (*PrometheusMetrics, error) {
	if registerer == nil {
		registerer = prom.DefaultRegisterer
	}

	resolutionTotalCollector := prom.NewCounterVec(
		prom.CounterOpts{
			Name: "proxy_resolution_total",
			Help: "Total number of trusted-proxy resolutions by chain source (forwarded, x_forwarded_for, remote_addr, ...) and result (success, unresolved).",
		},
		[]string{"source", "result"},
	)
	securityEventsCollector := prom.NewCounterVec(
		prom.CounterOpts{
			Name: "proxy_resolution_security_events_total",
			Help: "Security-related events during trusted-proxy resolution, labeled by event.",
		},
		[]string{"event"},
	)

	resolutionTotal, err := registerCounterVec(registerer, resolutionTotalCollector, "proxy_resolution_total")
	if err != nil {
		return nil, err
	}

	securityEvents, err := registerCounterVec(registerer, securityEventsCollector, "proxy_resolution_security_events_total")
	if err != nil {
		return nil, err
	}

	return &PrometheusMetrics{
		resolutionTotal: resolutionTotal,
		securityEvents:  securityEvents,
	}, nil
}

func registerCounterVec(registerer prom.Registerer, collector *prom.CounterVec, metricName string) (*prom.CounterVec, error) {
	if err := registerer.Register(collector); err != nil {
		var alreadyRegistered prom.AlreadyRegisteredError
		if errors.As(err, &alreadyRegistered) {
			existing, ok := alreadyRegistered.ExistingCollector.(*prom.CounterVec)
			if ok {
				return existing, nil
			}
			return nil, fmt.Errorf("metric %q already registered with incompatible collector type %T", metricName, alreadyRegistered.ExistingCollector)
		}

		return nil, fmt.Errorf("register metric %q: %w", metricName, err)
	}

	return collector, nil
}

// RecordResolutionSuccess increments proxy_resolution_total with
// result="success" for the provided source.
func (m *PrometheusMetrics) RecordResolutionSuccess(source string) {
	m.resolutionTotal.WithLabelValues(source, "success").Inc()
}

// RecordResolutionFailure increments proxy_resolution_total with
// result="unresolved" for the provided source.
func (m *PrometheusMetrics) RecordResolutionFailure(source string) {
	m.resolutionTotal.WithLabelValues(source, "unresolved").Inc()
}

// RecordSecurityEvent increments proxy_resolution_security_events_total for
// the provided event label.
func (m *PrometheusMetrics) RecordSecurityEvent(event string) {
	m.securityEvents.WithLabelValues(event).Inc()
}
