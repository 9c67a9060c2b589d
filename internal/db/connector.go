package db

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/apereiratl/marten/internal/logging"
	"github.com/apereiratl/marten/internal/retry"
	"github.com/apereiratl/marten/pkg/marten"
)

// Connection pool configuration constants
const (
	// DefaultMaxConns bounds the sessions that can hold a connection at once.
	DefaultMaxConns = 10

	// DefaultMinConns maintains at least one connection in the pool.
	DefaultMinConns = 1

	// DefaultMaxConnIdleTime closes connections no session has used for a while.
	DefaultMaxConnIdleTime = 30 * time.Minute
)

// ConnectorOption configures a pool connector.
type ConnectorOption func(*connectorSettings)

type connectorSettings struct {
	policy marten.RetryPolicy
	logger marten.Logger
}

// WithConnectRetry sets the policy used for establishing the pool.
// Default: DefaultRetryCount retries of transient failures.
func WithConnectRetry(policy marten.RetryPolicy) ConnectorOption {
	return func(s *connectorSettings) {
		if policy != nil {
			s.policy = policy
		}
	}
}

// WithConnectorLogger receives server notices and connection warnings.
func WithConnectorLogger(logger marten.Logger) ConnectorOption {
	return func(s *connectorSettings) {
		if logger != nil {
			s.logger = logger
		}
	}
}

func newConnectorSettings(opts []ConnectorOption) connectorSettings {
	s := connectorSettings{
		policy: retry.NTimes(marten.DefaultRetryCount, retry.TransientErrors),
		logger: logging.NewNullLogger(),
	}
	for _, opt := range opts {
		opt(&s)
	}
	return s
}

func configurePool(poolConfig *pgxpool.Config, config *marten.ConnectionConfig, logger marten.Logger) {
	poolConfig.MaxConns = DefaultMaxConns
	poolConfig.MinConns = DefaultMinConns
	poolConfig.MaxConnIdleTime = DefaultMaxConnIdleTime

	if config.ConnectTimeout > 0 {
		poolConfig.ConnConfig.ConnectTimeout = config.ConnectTimeout
	}
	if config.SearchPath != "" {
		poolConfig.ConnConfig.RuntimeParams["search_path"] = config.SearchPath
	}
	poolConfig.ConnConfig.OnNotice = func(_ *pgconn.PgConn, notice *pgconn.Notice) {
		logger.Verbose("%s: %s", notice.Severity, notice.Message)
	}
}

// StandardConnector implements marten.PoolConnector for username/password
// authentication, retrying transient failures.
type StandardConnector struct {
	config   *marten.ConnectionConfig
	settings connectorSettings
}

// NewStandardConnector creates a new StandardConnector with the given configuration.
func NewStandardConnector(config *marten.ConnectionConfig, opts ...ConnectorOption) *StandardConnector {
	return &StandardConnector{
		config:   config,
		settings: newConnectorSettings(opts),
	}
}

// Connect establishes a connection pool and pings it.
func (c *StandardConnector) Connect(ctx context.Context) (*pgxpool.Pool, error) {
	connStr := BuildConnectionString(c.config)
	return openPool(ctx, c.config, c.settings, func(context.Context) (string, error) {
		return connStr, nil
	}, nil)
}

// openPool runs one pool creation per attempt of the settings' retry policy.
// customize, when set, adjusts the parsed pool config before the pool opens.
func openPool(
	ctx context.Context,
	config *marten.ConnectionConfig,
	settings connectorSettings,
	dsn func(context.Context) (string, error),
	customize func(*pgxpool.Config),
) (*pgxpool.Pool, error) {
	var pool *pgxpool.Pool

	err := settings.policy.Execute(ctx, func(ctx context.Context) error {
		connStr, err := dsn(ctx)
		if err != nil {
			return err
		}

		poolConfig, err := pgxpool.ParseConfig(connStr)
		if err != nil {
			return fmt.Errorf("failed to parse connection config: %w", marten.ErrInvalidConfig)
		}
		configurePool(poolConfig, config, settings.logger)
		if customize != nil {
			customize(poolConfig)
		}

		p, err := pgxpool.NewWithConfig(ctx, poolConfig)
		if err != nil {
			return wrapConnectionError(err, config.Host, config.Port, config.Database)
		}

		if err := p.Ping(ctx); err != nil {
			p.Close()
			return wrapConnectionError(err, config.Host, config.Port, config.Database)
		}

		pool = p
		return nil
	})
	if err != nil {
		return nil, err
	}
	return pool, nil
}

// NewConnector creates the marten.PoolConnector matching config.AuthMethod.
func NewConnector(config *marten.ConnectionConfig, opts ...ConnectorOption) (marten.PoolConnector, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	switch config.AuthMethod {
	case marten.AuthMethodStandard:
		return NewStandardConnector(config, opts...), nil
	case marten.AuthMethodAWSIAM:
		return newAWSConnector(config, opts)
	case marten.AuthMethodGoogleIAM:
		return newGoogleConnector(config, opts)
	case marten.AuthMethodAzureEntraID:
		return newAzureConnector(config, opts)
	default:
		return nil, fmt.Errorf("unsupported auth method %v: %w", config.AuthMethod, marten.ErrUnsupportedAuthMethod)
	}
}

// wrapConnectionError marks err as a connection failure and adds actionable guidance.
func wrapConnectionError(err error, host string, port int, database string) error {
	errStr := strings.ToLower(err.Error())
	addr := fmt.Sprintf("%s:%d", host, port)

	switch {
	case strings.Contains(errStr, "connection refused") || strings.Contains(errStr, "actively refused"):
		return fmt.Errorf(`%w: connection refused to %s

Possible causes:
  - PostgreSQL is not running (check: pg_isready -h %s -p %d)
  - Wrong host or port
  - Firewall blocking the connection

Original error: %w`, marten.ErrConnectionFailed, addr, host, port, err)

	case strings.Contains(errStr, "no such host") || strings.Contains(errStr, "no host"):
		return fmt.Errorf(`%w: cannot resolve host "%s"

Possible causes:
  - Hostname is misspelled
  - DNS is not configured or reachable

Original error: %w`, marten.ErrConnectionFailed, host, err)

	case strings.Contains(errStr, "password authentication failed"):
		return fmt.Errorf(`%w: password authentication failed for database "%s"

Possible causes:
  - Wrong password (check $PGPASSWORD or the connection string)
  - Wrong username
  - User does not have access to the database

Original error: %w`, marten.ErrConnectionFailed, database, err)

	case strings.Contains(errStr, "does not exist"):
		return fmt.Errorf(`%w: database "%s" does not exist

To create it:
  createdb %s

Original error: %w`, marten.ErrConnectionFailed, database, database, err)

	case strings.Contains(errStr, "timeout") || strings.Contains(errStr, "timed out"):
		return fmt.Errorf(`%w: connection timed out to %s

Possible causes:
  - Server is overloaded or unresponsive
  - Firewall silently dropping packets
  - Wrong host/port (server not listening)

Original error: %w`, marten.ErrConnectionFailed, addr, err)

	case strings.Contains(errStr, "too many connections"):
		return fmt.Errorf(`%w: too many connections to database "%s"

Possible causes:
  - max_connections limit reached in postgresql.conf
  - Sessions that were never closed

Original error: %w`, marten.ErrConnectionFailed, database, err)

	default:
		return fmt.Errorf("%w: %w", marten.ErrConnectionFailed, err)
	}
}

// newAWSConnector creates a token-based connector with the AWS IAM token provider.
func newAWSConnector(config *marten.ConnectionConfig, opts []ConnectorOption) (marten.PoolConnector, error) {
	endpoint := fmt.Sprintf("%s:%d", config.Host, config.Port)

	tokenProvider, err := NewAWSIAMTokenProvider(endpoint, config.AWSRegion, config.Username)
	if err != nil {
		return nil, err
	}

	return NewTokenBasedConnector(config, tokenProvider, "AWS IAM", opts...), nil
}

// newGoogleConnector creates a GoogleCloudSQLConnector for Google Cloud SQL IAM authentication.
func newGoogleConnector(config *marten.ConnectionConfig, opts []ConnectorOption) (marten.PoolConnector, error) {
	if config.GoogleInstance == "" {
		return nil, fmt.Errorf("Google Cloud SQL IAM auth requires --google-instance (project:region:instance): %w", marten.ErrInvalidConfig)
	}
	if config.Username == "" {
		return nil, fmt.Errorf("Google Cloud SQL IAM auth requires a username: %w", marten.ErrInvalidConfig)
	}

	return NewGoogleCloudSQLConnector(config, config.GoogleInstance, opts...), nil
}

// newAzureConnector creates a token-based connector with an Azure Entra ID token provider.
// Explicit tenant, client and secret select Service Principal auth; otherwise
// the DefaultAzureCredential chain is used.
func newAzureConnector(config *marten.ConnectionConfig, opts []ConnectorOption) (marten.PoolConnector, error) {
	var (
		tokenProvider TokenProvider
		err           error
	)

	if config.AzureTenantID != "" && config.AzureClientID != "" && config.AzureClientSecret != "" {
		tokenProvider, err = NewAzureServicePrincipalProvider(
			config.AzureTenantID,
			config.AzureClientID,
			config.AzureClientSecret,
		)
	} else {
		tokenProvider, err = NewAzureDefaultCredentialProvider()
	}
	if err != nil {
		return nil, err
	}

	return NewTokenBasedConnector(config, tokenProvider, "Azure", opts...), nil
}
