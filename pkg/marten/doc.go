// Package marten defines the public contracts of the session core: commands
// and their parameters, the connection and transaction abstractions, retry
// policies, session loggers, storage operations, and the error taxonomy.
//
// Implementations live under internal/: sessions in internal/session, retry
// policies in internal/retry, batching in internal/batch, error
// classification in internal/classify, and connection factories in internal/db.
//
// # Example Usage
//
//	factory := db.NewPoolFactory(pool)
//	s, err := session.New(factory,
//	    session.WithMode(marten.ModeTransactional),
//	    session.WithRetryPolicy(retry.Twice(retry.TransientErrors)),
//	)
//	if err != nil {
//	    return err
//	}
//	defer s.Close()
//
//	cmd := marten.NewCommand("update accounts set balance = balance - @arg0 where id = @arg1")
//	cmd.AddParameter(amount)
//	cmd.AddParameter(id)
//	if err := s.BeginTransaction(ctx); err != nil {
//	    return err
//	}
//	if err := s.Execute(ctx, cmd, nil); err != nil {
//	    s.Rollback(ctx)
//	    return err
//	}
//	return s.Commit(ctx)
package marten
