// Package session implements marten's managed database session.
//
// A ManagedSession owns at most one physical connection at a time, held by a
// TransactionState that it builds lazily on first use and releases after a
// commit, a rollback or a failed command. Every command runs through the
// session's retry policy; failures the driver raised come back as
// *marten.CommandError, or *marten.NotSupportedError when the server lacks a
// feature the command needs.
//
// Modes (marten.Mode) decide who owns the transaction:
//
//   - ModeAutoCommit: commands run without an explicit transaction
//   - ModeTransactional: the session begins and commits its transaction
//   - ModeReadOnly: like ModeTransactional, with the transaction marked read only
//   - ModeExternal: the caller's transaction is used and never committed here
//
// Example:
//
//	s, err := session.New(factory,
//	    session.WithMode(marten.ModeTransactional),
//	    session.WithRetryPolicy(retry.Twice(retry.TransientErrors)),
//	)
//	if err != nil {
//	    return err
//	}
//	defer s.Close()
//
//	if err := s.BeginTransaction(ctx); err != nil {
//	    return err
//	}
//	if err := s.Execute(ctx, marten.NewCommand("delete from mt_doc_user"), nil); err != nil {
//	    return err
//	}
//	return s.Commit(ctx)
package session
