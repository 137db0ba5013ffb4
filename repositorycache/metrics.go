package repositorycache

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics counts cache outcomes per namespace and method. A nil *Metrics
// records nothing.
type Metrics struct {
	hits   *prometheus.CounterVec
	misses *prometheus.CounterVec
	errors *prometheus.CounterVec
}

// NewMetrics creates the counters and registers them with reg. Counters
// already registered by another decorator are reused. A nil reg leaves them
// unregistered.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	labels := []string{"namespace", "method"}
	m := &Metrics{
		hits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "crm",
			Subsystem: "repository_cache",
			Name:      "hits_total",
			Help:      "Reads served from the cache.",
		}, labels),
		misses: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "crm",
			Subsystem: "repository_cache",
			Name:      "misses_total",
			Help:      "Reads that called the wrapped repository.",
		}, labels),
		errors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "crm",
			Subsystem: "repository_cache",
			Name:      "errors_total",
			Help:      "Cache backend failures.",
		}, labels),
	}
	if reg == nil {
		return m, nil
	}

	var err error
	if m.hits, err = register(reg, m.hits); err != nil {
		return nil, err
	}
	if m.misses, err = register(reg, m.misses); err != nil {
		return nil, err
	}
	if m.errors, err = register(reg, m.errors); err != nil {
		return nil, err
	}
	return m, nil
}

func register(reg prometheus.Registerer, c *prometheus.CounterVec) (*prometheus.CounterVec, error) {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(*prometheus.CounterVec); ok {
				return existing, nil
			}
		}
		return nil, err
	}
	return c, nil
}

func (m *Metrics) hit(namespace string, method Method) {
	if m != nil {
		m.hits.WithLabelValues(namespace, string(method)).Inc()
	}
}

func (m *Metrics) miss(namespace string, method Method) {
	if m != nil {
		m.misses.WithLabelValues(namespace, string(method)).Inc()
	}
}

func (m *Metrics) failure(namespace string, method Method) {
	if m != nil {
		m.errors.WithLabelValues(namespace, string(method)).Inc()
	}
}

// Hits returns the hit counter, mostly for tests and dashboards.
func (m *Metrics) Hits() *prometheus.CounterVec { return m.hits }

// Misses returns the miss counter.
func (m *Metrics) Misses() *prometheus.CounterVec { return m.misses }

// Errors returns the backend error counter.
func (m *Metrics) Errors() *prometheus.CounterVec { return m.errors }
