package logging

import (
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/apereiratl/marten/pkg/marten"
)

const noSQLState = "none"

// MetricsLogger counts session events in Prometheus metrics and forwards
// every event to the next logger.
//
// Metrics:
//   - marten_commands_total{outcome}: "success" or "failure"
//   - marten_command_failures_total{sqlstate}: failures by SQLSTATE, "none" for non-server errors
//   - marten_saved_changes_total: committed units of work
//   - marten_saved_documents_total{change}: "inserted", "updated" or "deleted"
//   - marten_retries_total{sqlstate}: retried attempts, fed by ObserveRetry
type MetricsLogger struct {
	next marten.SessionLogger

	commands  *prometheus.CounterVec
	failures  *prometheus.CounterVec
	saves     prometheus.Counter
	documents *prometheus.CounterVec
	retries   *prometheus.CounterVec
}

// NewMetricsLogger registers the metrics with reg. A nil reg uses the
// default registerer; registering twice with the same registerer panics.
func NewMetricsLogger(reg prometheus.Registerer, next marten.SessionLogger) *MetricsLogger {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	if next == nil {
		next = NullSessionLogger{}
	}
	factory := promauto.With(reg)

	return &MetricsLogger{
		next: next,
		commands: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "marten_commands_total",
				Help: "Commands executed by marten sessions",
			},
			[]string{"outcome"},
		),
		failures: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "marten_command_failures_total",
				Help: "Failed commands by SQLSTATE",
			},
			[]string{"sqlstate"},
		),
		saves: factory.NewCounter(prometheus.CounterOpts{
			Name: "marten_saved_changes_total",
			Help: "Units of work committed by marten sessions",
		}),
		documents: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "marten_saved_documents_total",
				Help: "Documents saved by committed units of work",
			},
			[]string{"change"},
		),
		retries: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "marten_retries_total",
				Help: "Attempts retried by marten retry policies",
			},
			[]string{"sqlstate"},
		),
	}
}

// ObserveRetry counts one retried attempt. It has the signature of a retry
// policy's OnRetry hook:
//
//	policy := retry.Twice(retry.TransientErrors).WithOnRetry(metrics.ObserveRetry)
func (m *MetricsLogger) ObserveRetry(attempt int, err error) {
	m.retries.WithLabelValues(sqlState(err)).Inc()
}

// LogSuccess counts a successful command.
func (m *MetricsLogger) LogSuccess(cmd *marten.Command) {
	m.commands.WithLabelValues("success").Inc()
	m.next.LogSuccess(cmd)
}

// LogFailure counts a failed command by its SQLSTATE.
func (m *MetricsLogger) LogFailure(cmd *marten.Command, err error) {
	m.commands.WithLabelValues("failure").Inc()
	m.failures.WithLabelValues(sqlState(err)).Inc()
	m.next.LogFailure(cmd, err)
}

// RecordSavedChanges counts the committed unit of work and its documents.
func (m *MetricsLogger) RecordSavedChanges(conn marten.ManagedConnection, changes marten.ChangeSet) {
	m.saves.Inc()
	m.documents.WithLabelValues("inserted").Add(float64(len(changes.Inserted)))
	m.documents.WithLabelValues("updated").Add(float64(len(changes.Updated)))
	m.documents.WithLabelValues("deleted").Add(float64(len(changes.Deleted)))
	m.next.RecordSavedChanges(conn, changes)
}

func sqlState(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code != "" {
		return pgErr.Code
	}
	return noSQLState
}

var _ marten.SessionLogger = (*MetricsLogger)(nil)
