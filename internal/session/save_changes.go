package session

import (
	"context"

	"github.com/apereiratl/marten/internal/batch"
	"github.com/apereiratl/marten/pkg/marten"
)

// SaveChanges runs a unit of work: begin, execute the batch, commit.
// A batch failure rolls back and is returned. The logger records the saved
// changes exactly once, after the commit succeeded.
func (s *ManagedSession) SaveChanges(ctx context.Context, b *batch.Command, changes marten.ChangeSet) error {
	if err := s.BeginTransaction(ctx); err != nil {
		return err
	}

	if b != nil {
		if changes.Operations == nil {
			changes.Operations = b.Operations()
		}
		if err := b.Execute(ctx, s); err != nil {
			s.Rollback(ctx)
			return err
		}
	}

	if err := s.Commit(ctx); err != nil {
		return err
	}

	s.logger.RecordSavedChanges(s, changes)
	return nil
}
