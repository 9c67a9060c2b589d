package db

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/apereiratl/marten/internal/retry"
	"github.com/apereiratl/marten/pkg/marten"
)

func TestWrapConnectionError(t *testing.T) {
	tests := []struct {
		name         string
		errMsg       string
		wantContains string
	}{
		{"connection refused", "dial tcp 127.0.0.1:5432: connection refused", "connection refused to db:5432"},
		{"actively refused (Windows)", "No connection could be made because the target machine actively refused it", "connection refused to db:5432"},
		{"no such host", "dial tcp: lookup db: no such host", `cannot resolve host "db"`},
		{"password auth failed", `password authentication failed for user "postgres"`, `password authentication failed for database "orders"`},
		{"database missing", `database "orders" does not exist`, "createdb orders"},
		{"timeout", "dial tcp: i/o timeout", "connection timed out to db:5432"},
		{"too many connections", "sorry, too many connections for role", `too many connections to database "orders"`},
		{"unknown", "something else", "something else"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			original := errors.New(tt.errMsg)
			err := wrapConnectionError(original, "db", 5432, "orders")

			assert.Contains(t, err.Error(), tt.wantContains)
			assert.ErrorIs(t, err, marten.ErrConnectionFailed)
			assert.ErrorIs(t, err, original)
		})
	}
}

func TestWrapConnectionError_StaysTransient(t *testing.T) {
	err := wrapConnectionError(errors.New("dial tcp: connection refused"), "db", 5432, "orders")
	assert.True(t, retry.TransientErrors(err))
}

func TestNewConnector_SelectsImplementation(t *testing.T) {
	base := func(method marten.AuthMethod) *marten.ConnectionConfig {
		return &marten.ConnectionConfig{
			Host:           "db.example.com",
			Port:           5432,
			Database:       "orders",
			Username:       "app",
			AuthMethod:     method,
			AWSRegion:      "eu-west-1",
			GoogleInstance: "project:region:instance",
		}
	}

	standard, err := NewConnector(base(marten.AuthMethodStandard))
	require.NoError(t, err)
	assert.IsType(t, &StandardConnector{}, standard)

	aws, err := NewConnector(base(marten.AuthMethodAWSIAM))
	require.NoError(t, err)
	require.IsType(t, &TokenBasedConnector{}, aws)
	assert.Equal(t, "AWS IAM", aws.(*TokenBasedConnector).providerName)

	google, err := NewConnector(base(marten.AuthMethodGoogleIAM))
	require.NoError(t, err)
	assert.IsType(t, &GoogleCloudSQLConnector{}, google)
}

func TestNewConnector_InvalidConfig(t *testing.T) {
	tests := []struct {
		name   string
		config *marten.ConnectionConfig
		want   error
	}{
		{"unknown auth method", &marten.ConnectionConfig{Port: 5432, AuthMethod: marten.AuthMethod(99)}, marten.ErrUnsupportedAuthMethod},
		{"negative command timeout", &marten.ConnectionConfig{Port: 5432, CommandTimeout: -time.Second}, marten.ErrInvalidConfig},
		{"aws without region", &marten.ConnectionConfig{Host: "h", Port: 5432, Username: "u", AuthMethod: marten.AuthMethodAWSIAM}, marten.ErrInvalidConfig},
		{"google without instance", &marten.ConnectionConfig{Port: 5432, Username: "u", AuthMethod: marten.AuthMethodGoogleIAM}, marten.ErrInvalidConfig},
		{"google without user", &marten.ConnectionConfig{Port: 5432, GoogleInstance: "p:r:i", AuthMethod: marten.AuthMethodGoogleIAM}, marten.ErrInvalidConfig},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			connector, err := NewConnector(tt.config)
			assert.ErrorIs(t, err, tt.want)
			assert.Nil(t, connector)
		})
	}
}

func TestStandardConnector_RetriesTransientFailures(t *testing.T) {
	config := &marten.ConnectionConfig{
		Host:           "127.0.0.1",
		Port:           1,
		Database:       "orders",
		Username:       "app",
		SSLMode:        "disable",
		ConnectTimeout: time.Second,
	}

	var attempts []int
	policy := retry.Twice(retry.TransientErrors).WithOnRetry(func(attempt int, err error) {
		attempts = append(attempts, attempt)
	})

	connector := NewStandardConnector(config, WithConnectRetry(policy))
	pool, err := connector.Connect(context.Background())

	require.Error(t, err)
	assert.Nil(t, pool)
	assert.ErrorIs(t, err, marten.ErrConnectionFailed)
	assert.Equal(t, []int{1, 2}, attempts)
}

func TestStandardConnector_RespectsContextTimeout(t *testing.T) {
	config := &marten.ConnectionConfig{
		Host:     "10.255.255.1",
		Port:     5432,
		Database: "orders",
		Username: "app",
		SSLMode:  "disable",
	}

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err := NewStandardConnector(config).Connect(ctx)

	require.Error(t, err)
	assert.Less(t, time.Since(start), 2*time.Second)
}

func TestConnectorSettings_Defaults(t *testing.T) {
	s := newConnectorSettings(nil)
	require.IsType(t, &retry.Policy{}, s.policy)
	assert.Equal(t, marten.DefaultRetryCount+1, s.policy.(*retry.Policy).MaxAttempts())
	assert.NotNil(t, s.logger)

	s = newConnectorSettings([]ConnectorOption{WithConnectRetry(nil), WithConnectorLogger(nil)})
	assert.NotNil(t, s.policy)
	assert.NotNil(t, s.logger)
}
