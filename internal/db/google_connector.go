package db

import (
	"context"
	"fmt"
	"net"
	"sync"

	"cloud.google.com/go/cloudsqlconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/apereiratl/marten/pkg/marten"
)

// GoogleCloudSQLConnector implements marten.PoolConnector for Google Cloud SQL
// using IAM database authentication via the Cloud SQL Go Connector.
//
// The caller must call Close after the pool is closed to release the dialer.
type GoogleCloudSQLConnector struct {
	config   *marten.ConnectionConfig
	instance string
	settings connectorSettings

	mu     sync.Mutex
	dialer *cloudsqlconn.Dialer
}

// NewGoogleCloudSQLConnector creates a connector for Google Cloud SQL IAM authentication.
// instance is the instance connection name in format: project:region:instance
func NewGoogleCloudSQLConnector(config *marten.ConnectionConfig, instance string, opts ...ConnectorOption) *GoogleCloudSQLConnector {
	return &GoogleCloudSQLConnector{
		config:   config,
		instance: instance,
		settings: newConnectorSettings(opts),
	}
}

// Connect establishes a connection pool. The dialer handles authentication and TLS.
func (c *GoogleCloudSQLConnector) Connect(ctx context.Context) (*pgxpool.Pool, error) {
	dialer, err := c.ensureDialer(ctx)
	if err != nil {
		return nil, err
	}

	dsn := fmt.Sprintf(
		"host=%s user=%s dbname=%s sslmode=disable",
		c.instance,
		c.config.Username,
		c.config.Database,
	)

	pool, err := openPool(ctx, c.config, c.settings, func(context.Context) (string, error) {
		return dsn, nil
	}, func(poolConfig *pgxpool.Config) {
		poolConfig.ConnConfig.DialFunc = func(ctx context.Context, _, _ string) (net.Conn, error) {
			return dialer.Dial(ctx, c.instance)
		}
	})
	if err != nil {
		c.Close()
		return nil, err
	}
	return pool, nil
}

func (c *GoogleCloudSQLConnector) ensureDialer(ctx context.Context) (*cloudsqlconn.Dialer, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.dialer != nil {
		return c.dialer, nil
	}
	dialer, err := cloudsqlconn.NewDialer(ctx, cloudsqlconn.WithIAMAuthN())
	if err != nil {
		return nil, fmt.Errorf("failed to create Cloud SQL dialer: %w: %w", marten.ErrConnectionFailed, err)
	}
	c.dialer = dialer
	return dialer, nil
}

// Close releases the Cloud SQL dialer resources.
func (c *GoogleCloudSQLConnector) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.dialer != nil {
		c.dialer.Close()
		c.dialer = nil
	}
	return nil
}
