package database

import (
	"context"
	"errors"
)

type txKey struct{}

type txInfo struct {
	tx    Transaction
	owned bool
}

// WithTx stores a transaction in the context. owned marks the unit of work
// that started it and is therefore responsible for committing it.
func WithTx(ctx context.Context, tx Transaction, owned bool) context.Context {
	return context.WithValue(ctx, txKey{}, txInfo{tx: tx, owned: owned})
}

// TxFromContext returns the transaction carried by ctx, or nil.
func TxFromContext(ctx context.Context) Transaction {
	info, ok := ctx.Value(txKey{}).(txInfo)
	if !ok {
		return nil
	}
	return info.tx
}

// ExecutorFromContext returns the transaction in ctx if there is one,
// otherwise the connection itself.
func ExecutorFromContext(ctx context.Context, conn Connection) Executor {
	if tx := TxFromContext(ctx); tx != nil {
		return tx
	}
	return conn
}

// UnitOfWork implements application.UnitOfWork on top of a Connection.
// Nested Begin calls join the outer transaction.
type UnitOfWork struct {
	conn Connection
}

// NewUnitOfWork creates a unit of work bound to conn.
func NewUnitOfWork(conn Connection) *UnitOfWork {
	return &UnitOfWork{conn: conn}
}

// Begin starts a transaction, or joins the one already in ctx.
func (u *UnitOfWork) Begin(ctx context.Context) (context.Context, error) {
	if info, ok := ctx.Value(txKey{}).(txInfo); ok && info.tx != nil {
		return WithTx(ctx, info.tx, false), nil
	}
	tx, err := u.conn.BeginTx(ctx)
	if err != nil {
		return nil, err
	}
	return WithTx(ctx, tx, true), nil
}

// Commit commits the transaction when this unit started it.
func (u *UnitOfWork) Commit(ctx context.Context) error {
	info, ok := ctx.Value(txKey{}).(txInfo)
	if !ok || info.tx == nil {
		return errors.New("no transaction in context")
	}
	if !info.owned {
		return nil
	}
	return info.tx.Commit(ctx)
}

// Rollback rolls back the transaction when this unit started it.
func (u *UnitOfWork) Rollback(ctx context.Context) error {
	info, ok := ctx.Value(txKey{}).(txInfo)
	if !ok || info.tx == nil {
		return errors.New("no transaction in context")
	}
	if !info.owned {
		return nil
	}
	return info.tx.Rollback(ctx)
}
