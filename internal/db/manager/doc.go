// Package manager creates and drops the databases and schemas that sessions
// run against.
//
// Every operation takes a marten.Querier, so a *pgxpool.Pool, a *pgx.Conn
// or a session's raw connection can be used. Identifiers are quoted with
// pgx.Identifier.Sanitize.
//
//	mgr := manager.New()
//	if exists, _ := mgr.Exists(ctx, pool, "orders"); !exists {
//	    err = mgr.Create(ctx, pool, "orders")
//	}
//	err = mgr.CreateSchema(ctx, pool, "app")
//
// CREATE DATABASE and DROP DATABASE cannot run inside a transaction, so
// do not pass a marten.Tx to Create or Drop.
package manager
