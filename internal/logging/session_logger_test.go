package logging

import (
	"bytes"
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/apereiratl/marten/pkg/marten"
)

// recordingSessionLogger counts the events it receives.
type recordingSessionLogger struct {
	successes int
	failures  []error
	saved     []marten.ChangeSet
}

func (r *recordingSessionLogger) LogSuccess(*marten.Command) { r.successes++ }

func (r *recordingSessionLogger) LogFailure(_ *marten.Command, err error) {
	r.failures = append(r.failures, err)
}

func (r *recordingSessionLogger) RecordSavedChanges(_ marten.ManagedConnection, changes marten.ChangeSet) {
	r.saved = append(r.saved, changes)
}

type countingConnection struct {
	marten.ManagedConnection
	requests int
}

func (c countingConnection) RequestCount() int { return c.requests }

func TestCommandLogger_LogSuccessIsVerbose(t *testing.T) {
	var buf bytes.Buffer
	cmd := marten.NewCommand("select @arg0")
	cmd.AddParameter(42)

	NewCommandLogger(NewConsoleLoggerTo(&buf, false)).LogSuccess(cmd)
	assert.Empty(t, buf.String())

	NewCommandLogger(NewConsoleLoggerTo(&buf, true)).LogSuccess(cmd)
	assert.Contains(t, buf.String(), "[VERBOSE] select @arg0")
	assert.Contains(t, buf.String(), "arg0: 42")
}

func TestCommandLogger_LogFailure(t *testing.T) {
	var buf bytes.Buffer
	logger := NewCommandLogger(NewConsoleLoggerTo(&buf, false))

	logger.LogFailure(marten.NewCommand("select 1/0"), errors.New("division by zero"))

	assert.Contains(t, buf.String(), "[ERROR] command failed: division by zero")
	assert.Contains(t, buf.String(), "select 1/0")
}

func TestCommandLogger_RecordSavedChanges(t *testing.T) {
	var buf bytes.Buffer
	logger := NewCommandLogger(NewConsoleLoggerTo(&buf, false))

	logger.RecordSavedChanges(countingConnection{requests: 3}, marten.ChangeSet{
		Inserted: []any{1, 2},
		Deleted:  []any{3},
	})

	assert.Equal(t, "saved changes: 2 inserted, 0 updated, 1 deleted, 0 operations, 3 requests\n", buf.String())
}

func TestCommandLogger_NilLogger(t *testing.T) {
	logger := NewCommandLogger(nil)
	assert.NotPanics(t, func() {
		logger.LogSuccess(marten.NewCommand("select 1"))
		logger.RecordSavedChanges(nil, marten.ChangeSet{})
	})
}

func TestMulti_ForwardsToEveryLogger(t *testing.T) {
	a := &recordingSessionLogger{}
	b := &recordingSessionLogger{}
	logger := Multi(a, nil, b)

	cmd := marten.NewCommand("select 1")
	logger.LogSuccess(cmd)
	logger.LogFailure(cmd, errors.New("boom"))
	logger.RecordSavedChanges(nil, marten.ChangeSet{})

	for _, r := range []*recordingSessionLogger{a, b} {
		assert.Equal(t, 1, r.successes)
		assert.Len(t, r.failures, 1)
		assert.Len(t, r.saved, 1)
	}
}

func TestMulti_Degenerate(t *testing.T) {
	assert.Equal(t, NullSessionLogger{}, Multi())
	assert.Equal(t, NullSessionLogger{}, Multi(nil))

	only := &recordingSessionLogger{}
	assert.Same(t, only, Multi(only))
}

func TestMetricsLogger_CountsOutcomes(t *testing.T) {
	reg := prometheus.NewRegistry()
	next := &recordingSessionLogger{}
	m := NewMetricsLogger(reg, next)

	cmd := marten.NewCommand("select 1")
	m.LogSuccess(cmd)
	m.LogSuccess(cmd)
	m.LogFailure(cmd, &pgconn.PgError{Code: "40001"})
	m.LogFailure(cmd, fmt.Errorf("wrapped: %w", &pgconn.PgError{Code: "40001"}))
	m.LogFailure(cmd, errors.New("not a server error"))

	assert.Equal(t, 2.0, testutil.ToFloat64(m.commands.WithLabelValues("success")))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.commands.WithLabelValues("failure")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.failures.WithLabelValues("40001")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.failures.WithLabelValues("none")))

	assert.Equal(t, 2, next.successes)
	assert.Len(t, next.failures, 3)
}

func TestMetricsLogger_RecordSavedChanges(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetricsLogger(reg, nil)

	m.RecordSavedChanges(nil, marten.ChangeSet{
		Inserted: []any{1, 2, 3},
		Updated:  []any{4},
	})

	assert.Equal(t, 1.0, testutil.ToFloat64(m.saves))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.documents.WithLabelValues("inserted")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.documents.WithLabelValues("updated")))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.documents.WithLabelValues("deleted")))
}

func TestMetricsLogger_ObserveRetry(t *testing.T) {
	m := NewMetricsLogger(prometheus.NewRegistry(), nil)

	m.ObserveRetry(1, &pgconn.PgError{Code: "40P01"})
	m.ObserveRetry(2, &pgconn.PgError{Code: "40P01"})
	m.ObserveRetry(1, errors.New("connection reset by peer"))

	assert.Equal(t, 2.0, testutil.ToFloat64(m.retries.WithLabelValues("40P01")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.retries.WithLabelValues("none")))
}

func TestMetricsLogger_RegistersWithRegistry(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetricsLogger(reg, nil)
	m.LogSuccess(marten.NewCommand("select 1"))

	count, err := testutil.GatherAndCount(reg, "marten_commands_total")
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	assert.Panics(t, func() { NewMetricsLogger(reg, nil) })
}
