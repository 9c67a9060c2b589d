package testinfra

import (
	"context"
	"fmt"
	"time"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

const (
	PostgresImage    = "postgres:17-alpine"
	PostgresUser     = "postgres"
	PostgresPassword = "postgres"
	PostgresDB       = "postgres"
)

type PostgresContainer struct {
	*postgres.PostgresContainer
	ConnString string
}

type options struct {
	image       string
	initScripts []string
	settings    []string
}

type Option func(*options)

// WithImage overrides PostgresImage, e.g. to test against an older server.
func WithImage(image string) Option {
	return func(o *options) { o.image = image }
}

// WithInitScripts runs SQL or shell scripts once the server has started.
func WithInitScripts(paths ...string) Option {
	return func(o *options) { o.initScripts = append(o.initScripts, paths...) }
}

// WithSetting passes a server setting on the command line, e.g.
// "default_transaction_isolation=serializable".
func WithSetting(setting string) Option {
	return func(o *options) { o.settings = append(o.settings, setting) }
}

func StartPostgres(ctx context.Context, opts ...Option) (*PostgresContainer, error) {
	o := options{image: PostgresImage}
	for _, opt := range opts {
		opt(&o)
	}

	customizers := []testcontainers.ContainerCustomizer{
		postgres.WithUsername(PostgresUser),
		postgres.WithPassword(PostgresPassword),
		postgres.WithDatabase(PostgresDB),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60 * time.Second),
		),
	}
	if len(o.initScripts) > 0 {
		customizers = append(customizers, postgres.WithInitScripts(o.initScripts...))
	}
	if len(o.settings) > 0 {
		cmd := []string{"postgres"}
		for _, s := range o.settings {
			cmd = append(cmd, "-c", s)
		}
		customizers = append(customizers, testcontainers.WithCmd(cmd...))
	}

	ctr, err := postgres.Run(ctx, o.image, customizers...)
	if err != nil {
		return nil, fmt.Errorf("start postgres: %w", err)
	}

	connStr, err := ctr.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		ctr.Terminate(ctx) //nolint:errcheck
		return nil, fmt.Errorf("get connection string: %w", err)
	}

	return &PostgresContainer{PostgresContainer: ctr, ConnString: connStr}, nil
}

// StartSimplePostgres starts the default image with no extra configuration.
func StartSimplePostgres(ctx context.Context) (*PostgresContainer, error) {
	return StartPostgres(ctx)
}
