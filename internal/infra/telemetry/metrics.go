package telemetry

import (
	"errors"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
)

// Namespace prefixes every collector exported by the service.
const Namespace = "ecotrack"

// Register registers c with reg. When an equivalent collector is already registered
// the existing one is returned so constructors can run more than once per process.
func Register[T prometheus.Collector](reg prometheus.Registerer, c T) (T, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	if err := reg.Register(c); err != nil {
		var already prometheus.AlreadyRegisteredError
		if !errors.As(err, &already) {
			return c, fmt.Errorf("register collector: %w", err)
		}
		existing, ok := already.ExistingCollector.(T)
		if !ok {
			return c, fmt.Errorf("existing collector has unexpected type %T", already.ExistingCollector)
		}
		return existing, nil
	}
	return c, nil
}

// AccountMetrics counts account lifecycle outcomes and saga compensations.
type AccountMetrics struct {
	Operations    *prometheus.CounterVec
	Compensations *prometheus.CounterVec
	Inconsistent  *prometheus.CounterVec
}

// NewAccountMetrics builds and registers the account collectors.
func NewAccountMetrics(reg prometheus.Registerer) (*AccountMetrics, error) {
	operations, err := Register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: Namespace,
		Subsystem: "accounts",
		Name:      "operations_total",
		Help:      "Account operations partitioned by operation and outcome.",
	}, []string{"operation", "outcome"}))
	if err != nil {
		return nil, fmt.Errorf("operations counter: %w", err)
	}

	compensations, err := Register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: Namespace,
		Subsystem: "accounts",
		Name:      "compensations_total",
		Help:      "Compensating actions partitioned by operation and result.",
	}, []string{"operation", "result"}))
	if err != nil {
		return nil, fmt.Errorf("compensations counter: %w", err)
	}

	inconsistent, err := Register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: Namespace,
		Subsystem: "accounts",
		Name:      "inconsistent_state_total",
		Help:      "Operations that left the identity provider and document store diverged.",
	}, []string{"operation"}))
	if err != nil {
		return nil, fmt.Errorf("inconsistent counter: %w", err)
	}

	return &AccountMetrics{
		Operations:    operations,
		Compensations: compensations,
		Inconsistent:  inconsistent,
	}, nil
}

// ObserveOperation records the outcome label for one orchestrator call.
func (m *AccountMetrics) ObserveOperation(operation, outcome string) {
	if m == nil || m.Operations == nil {
		return
	}
	m.Operations.WithLabelValues(operation, outcome).Inc()
}

// ObserveCompensation records whether a compensating action succeeded.
func (m *AccountMetrics) ObserveCompensation(operation string, ok bool) {
	if m == nil || m.Compensations == nil {
		return
	}
	result := "succeeded"
	if !ok {
		result = "failed"
	}
	m.Compensations.WithLabelValues(operation, result).Inc()
}

// ObserveInconsistent increments the diverged-state counter.
func (m *AccountMetrics) ObserveInconsistent(operation string) {
	if m == nil || m.Inconsistent == nil {
		return
	}
	m.Inconsistent.WithLabelValues(operation).Inc()
}
