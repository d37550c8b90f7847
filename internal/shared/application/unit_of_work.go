package application

import (
	"context"
	"fmt"
)

// UnitOfWork groups repository calls into one transaction carried on the context.
type UnitOfWork interface {
	Begin(ctx context.Context) (context.Context, error)
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

// UnitOfWorkFunc runs inside a unit of work.
type UnitOfWorkFunc func(ctx context.Context) error

// WithUnitOfWork runs fn in a transaction, committing on success and rolling
// back when fn or the commit fails. A nil uow runs fn directly.
func WithUnitOfWork(ctx context.Context, uow UnitOfWork, fn UnitOfWorkFunc) error {
	if uow == nil {
		return fn(ctx)
	}

	txCtx, err := uow.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin unit of work: %w", err)
	}

	if err := fn(txCtx); err != nil {
		_ = uow.Rollback(txCtx)
		return err
	}

	if err := uow.Commit(txCtx); err != nil {
		_ = uow.Rollback(txCtx)
		return fmt.Errorf("commit unit of work: %w", err)
	}
	return nil
}
