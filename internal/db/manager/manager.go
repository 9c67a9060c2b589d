package manager

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/apereiratl/marten/pkg/marten"
)

const (
	queryDatabaseExists       = "SELECT EXISTS(SELECT 1 FROM pg_database WHERE datname = $1)"
	queryTerminateConnections = `
		SELECT pg_terminate_backend(pid)
		FROM pg_stat_activity
		WHERE datname = $1 AND pid <> pg_backend_pid()
	`
)

// Manager runs database and schema lifecycle statements. It is stateless.
type Manager struct{}

func New() *Manager {
	return &Manager{}
}

// Exists reports whether the database exists.
func (m *Manager) Exists(ctx context.Context, conn marten.Querier, dbName string) (bool, error) {
	var exists bool
	err := conn.QueryRow(ctx, queryDatabaseExists, dbName).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check database existence: %w", err)
	}
	return exists, nil
}

func (m *Manager) Create(ctx context.Context, conn marten.Querier, dbName string) error {
	query := fmt.Sprintf("CREATE DATABASE %s", pgx.Identifier{dbName}.Sanitize())
	if _, err := conn.Exec(ctx, query); err != nil {
		return fmt.Errorf("failed to create database %q: %w", dbName, err)
	}
	return nil
}

// Drop terminates other connections to the database and drops it if it exists.
func (m *Manager) Drop(ctx context.Context, conn marten.Querier, dbName string) error {
	if err := m.TerminateConnections(ctx, conn, dbName); err != nil {
		return err
	}

	query := fmt.Sprintf("DROP DATABASE IF EXISTS %s", pgx.Identifier{dbName}.Sanitize())
	if _, err := conn.Exec(ctx, query); err != nil {
		return fmt.Errorf("failed to drop database %q: %w", dbName, err)
	}
	return nil
}

func (m *Manager) TerminateConnections(ctx context.Context, conn marten.Querier, dbName string) error {
	if _, err := conn.Exec(ctx, queryTerminateConnections, dbName); err != nil {
		return fmt.Errorf("failed to terminate connections to database %q: %w", dbName, err)
	}
	return nil
}

// CreateSchema creates the schema unless it already exists.
func (m *Manager) CreateSchema(ctx context.Context, conn marten.Querier, schema string) error {
	query := fmt.Sprintf("CREATE SCHEMA IF NOT EXISTS %s", pgx.Identifier{schema}.Sanitize())
	if _, err := conn.Exec(ctx, query); err != nil {
		return fmt.Errorf("failed to create schema %q: %w", schema, err)
	}
	return nil
}

// DropSchema drops the schema and everything in it.
func (m *Manager) DropSchema(ctx context.Context, conn marten.Querier, schema string) error {
	query := fmt.Sprintf("DROP SCHEMA IF EXISTS %s CASCADE", pgx.Identifier{schema}.Sanitize())
	if _, err := conn.Exec(ctx, query); err != nil {
		return fmt.Errorf("failed to drop schema %q: %w", schema, err)
	}
	return nil
}
