package db

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/apereiratl/marten/pkg/marten"
)

// TokenExpiryWarning is the remaining token lifetime below which a warning is logged.
const TokenExpiryWarning = 5 * time.Minute

// TokenBasedConnector implements marten.PoolConnector for cloud providers
// that authenticate via short-lived tokens (AWS IAM, Azure Entra ID).
// The token is used as the PostgreSQL password. Every new physical
// connection in the pool asks the provider again, so sessions opened after
// the first token expired still authenticate.
type TokenBasedConnector struct {
	config       *marten.ConnectionConfig
	tokens       *CachedTokenProvider
	providerName string
	settings     connectorSettings
}

// NewTokenBasedConnector creates a connector that uses a TokenProvider for authentication.
// providerName is used in error/warning messages (e.g., "AWS IAM", "Azure").
func NewTokenBasedConnector(config *marten.ConnectionConfig, tokenProvider TokenProvider, providerName string, opts ...ConnectorOption) *TokenBasedConnector {
	return &TokenBasedConnector{
		config:       config,
		tokens:       NewCachedTokenProvider(tokenProvider, TokenExpiryWarning),
		providerName: providerName,
		settings:     newConnectorSettings(opts),
	}
}

// Connect establishes a connection pool and pings it.
func (c *TokenBasedConnector) Connect(ctx context.Context) (*pgxpool.Pool, error) {
	return openPool(ctx, c.config, c.settings, c.connectionString, c.configure)
}

// configure installs a hook that sets the current token on each new connection.
func (c *TokenBasedConnector) configure(poolConfig *pgxpool.Config) {
	poolConfig.BeforeConnect = func(ctx context.Context, connConfig *pgx.ConnConfig) error {
		token, err := c.token(ctx)
		if err != nil {
			return err
		}
		connConfig.Password = token
		return nil
	}
}

func (c *TokenBasedConnector) connectionString(ctx context.Context) (string, error) {
	token, err := c.token(ctx)
	if err != nil {
		return "", err
	}

	configWithToken := *c.config
	configWithToken.Password = token
	return BuildConnectionString(&configWithToken), nil
}

func (c *TokenBasedConnector) token(ctx context.Context) (string, error) {
	token, expiresOn, err := c.tokens.GetToken(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to acquire %s token: %w", c.providerName, err)
	}

	if remaining := time.Until(expiresOn); remaining < TokenExpiryWarning {
		c.settings.logger.Info("Warning: %s token expires in %v", c.providerName, remaining.Round(time.Second))
	}
	return token, nil
}
