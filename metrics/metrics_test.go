package metrics

import (
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestLifecycleCounters(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewLifecycle(reg)

	m.ObserveOperation(OpStart, nil)
	m.ObserveOperation(OpStart, errors.New("boom"))
	m.ObserveOperation(OpRecordResult, nil)
	m.ObserveConflict(OpRecordResult)
	m.ObserveCompletion()
	m.ObserveArchive(nil)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.operations.WithLabelValues(OpStart, "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.operations.WithLabelValues(OpStart, "error")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.conflicts.WithLabelValues(OpRecordResult)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.completions))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.archived.WithLabelValues("ok")))

	families, err := reg.Gather()
	assert.NoError(t, err)
	assert.Len(t, families, 4)
}

func TestNilLifecycleIsNoop(t *testing.T) {
	var m *Lifecycle
	assert.NotPanics(t, func() {
		m.ObserveOperation(OpWithdraw, nil)
		m.ObserveConflict(OpWithdraw)
		m.ObserveCompletion()
		m.ObserveArchive(nil)
	})
}
