package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "cue_tournaments"

// Operation labels used by the lifecycle counters.
const (
	OpStart        = "start"
	OpRecordResult = "record_result"
	OpRegister     = "register"
	OpWithdraw     = "withdraw"
)

// Lifecycle collects counters for bracket lifecycle operations. A nil
// *Lifecycle is valid and records nothing.
type Lifecycle struct {
	operations  *prometheus.CounterVec
	conflicts   *prometheus.CounterVec
	completions prometheus.Counter
	archived    *prometheus.CounterVec
}

func NewLifecycle(reg prometheus.Registerer) *Lifecycle {
	m := &Lifecycle{
		operations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "operations_total",
			Help:      "Lifecycle operations by name and result.",
		}, []string{"operation", "result"}),
		conflicts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "version_conflicts_total",
			Help:      "Optimistic version conflicts observed while committing a tournament.",
		}, []string{"operation"}),
		completions: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tournaments_completed_total",
			Help:      "Tournaments that reached a champion.",
		}),
		archived: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "bracket_archives_total",
			Help:      "Completed bracket archive uploads by result.",
		}, []string{"result"}),
	}
	if reg != nil {
		reg.MustRegister(m.operations, m.conflicts, m.completions, m.archived)
	}
	return m
}

// ObserveOperation counts one finished operation. err == nil counts as "ok".
func (m *Lifecycle) ObserveOperation(operation string, err error) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.operations.WithLabelValues(operation, result).Inc()
}

func (m *Lifecycle) ObserveConflict(operation string) {
	if m == nil {
		return
	}
	m.conflicts.WithLabelValues(operation).Inc()
}

func (m *Lifecycle) ObserveCompletion() {
	if m == nil {
		return
	}
	m.completions.Inc()
}

func (m *Lifecycle) ObserveArchive(err error) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.archived.WithLabelValues(result).Inc()
}
