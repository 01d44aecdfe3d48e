package metrics

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/kilianp07/fieldops/core/model"
)

type recSink struct {
	runs     int
	outcomes int
	closed   bool
	err      error
}

func (r *recSink) RecordRun(RunEvent) error { r.runs++; return r.err }

func (r *recSink) RecordOutcome(model.Outcome) error { r.outcomes++; return r.err }

func (r *recSink) Close() error { r.closed = true; return nil }

func TestMultiSinkForwardsAfterFailure(t *testing.T) {
	boom := errors.New("boom")
	a, b := &recSink{err: boom}, &recSink{}
	m := NewMultiSink(a, NopSink{}, b)

	err := m.RecordRun(RunEvent{RunID: "r1"})
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 1, b.runs)

	err = m.RecordOutcome(model.Outcome{})
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 1, a.outcomes)
	assert.Equal(t, 1, b.outcomes)

	assert.NoError(t, m.Close())
	assert.True(t, a.closed)
	assert.True(t, b.closed)
}
