package cli

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/apereiratl/marten/internal/db"
	"github.com/apereiratl/marten/internal/logging"
	"github.com/apereiratl/marten/internal/retry"
	"github.com/apereiratl/marten/internal/session"
	"github.com/apereiratl/marten/pkg/marten"
)

// sessionRun is an open session plus everything that must be released with it.
type sessionRun struct {
	session  *session.ManagedSession
	pool     *pgxpool.Pool
	logger   marten.Logger
	registry *prometheus.Registry

	metricsFile string
}

// openSession resolves configuration, connects the pool and creates the session.
func openSession(ctx context.Context, cmd *cobra.Command, f *sessionFlags) (*sessionRun, error) {
	verbose := getVerboseFlag(cmd)
	logger := logging.NewConsoleLogger(verbose)

	projectCfg, err := loadProjectConfig(f.configDir)
	if err != nil {
		return nil, err
	}

	connConfig, err := resolveConnection(f.connectionFlags, projectCfg)
	if err != nil {
		return nil, err
	}
	settings, err := resolveSessionSettings(cmd, f, projectCfg)
	if err != nil {
		return nil, err
	}

	if verbose {
		logConnectionVerbose(logger, connConfig)
		logger.Verbose("Session mode: %s, isolation: %s", settings.Mode, settings.Isolation)
	}

	registry := prometheus.NewRegistry()
	var next marten.SessionLogger = logging.NullSessionLogger{}
	if verbose {
		next = logging.NewCommandLogger(logger)
	}
	metrics := logging.NewMetricsLogger(registry, next)
	policy := withRetryHooks(settings.Retry, logger, metrics)

	connector, err := db.NewConnector(connConfig,
		db.WithConnectRetry(policy),
		db.WithConnectorLogger(logger))
	if err != nil {
		return nil, err
	}
	pool, err := connector.Connect(ctx)
	if err != nil {
		return nil, err
	}

	timeout := settings.CommandTimeout
	if timeout == 0 {
		timeout = connConfig.CommandTimeout
	}

	s, err := session.New(db.NewPoolFactory(pool),
		session.WithMode(settings.Mode),
		session.WithIsolationLevel(settings.Isolation),
		session.WithCommandTimeout(timeout),
		session.WithRetryPolicy(policy),
		session.WithLogger(metrics))
	if err != nil {
		pool.Close()
		return nil, err
	}

	return &sessionRun{
		session:     s,
		pool:        pool,
		logger:      logger,
		registry:    registry,
		metricsFile: f.metricsFile,
	}, nil
}

// withRetryHooks logs and counts every retried attempt.
func withRetryHooks(policy marten.RetryPolicy, logger marten.Logger, metrics *logging.MetricsLogger) marten.RetryPolicy {
	p, ok := policy.(*retry.Policy)
	if !ok {
		return policy
	}
	return p.WithOnRetry(func(attempt int, err error) {
		logger.Verbose("Attempt %d failed, retrying: %v", attempt, err)
		metrics.ObserveRetry(attempt, err)
	})
}

// Close releases the session and the pool, then writes the metrics file.
func (r *sessionRun) Close() error {
	_ = r.session.Close()
	r.pool.Close()

	if r.metricsFile == "" {
		return nil
	}
	if err := prometheus.WriteToTextfile(r.metricsFile, r.registry); err != nil {
		return fmt.Errorf("failed to write metrics file '%s': %w", r.metricsFile, err)
	}
	r.logger.Verbose("Metrics written to %s", r.metricsFile)
	return nil
}

// inUnitOfWork begins a transaction when the mode has one, runs fn, and
// commits. A failure rolls back before it is returned.
func inUnitOfWork(ctx context.Context, s *session.ManagedSession, fn func(ctx context.Context) error) error {
	if err := s.BeginTransaction(ctx); err != nil {
		return err
	}
	if err := fn(ctx); err != nil {
		s.Rollback(ctx)
		return err
	}
	return s.Commit(ctx)
}
