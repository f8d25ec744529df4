package uow

import (
	"context"
	"errors"

	domaincalendar "staysync/internal/domain/calendar"
	domainchannels "staysync/internal/domain/channels"
	domainrates "staysync/internal/domain/rates"
	domainsync "staysync/internal/domain/sync"
)

// UnitOfWork coordinates repositories inside a transaction boundary.
type UnitOfWork interface {
	Calendar() domaincalendar.Repository
	Rates() domainrates.Repository
	Mappings() domainchannels.MappingRepository
	Runs() domainsync.RunRepository
	Conflicts() domainsync.ConflictRepository

	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

// UoWFactory starts unit of work instances.
type UoWFactory interface {
	Begin(ctx context.Context, opts TxOptions) (UnitOfWork, error)
}

// TxOptions configure transaction boundaries.
type TxOptions struct {
	ReadOnly bool
}

var ErrUnitOfWorkMissing = errors.New("uow: unit of work missing from context")

type ctxKey struct{}

// ContextWithUnitOfWork stores the provided unit of work in context.
func ContextWithUnitOfWork(ctx context.Context, unit UnitOfWork) context.Context {
	return context.WithValue(ctx, ctxKey{}, unit)
}

// FromContext retrieves a unit of work from context if present.
func FromContext(ctx context.Context) (UnitOfWork, bool) {
	val := ctx.Value(ctxKey{})
	if val == nil {
		return nil, false
	}
	unit, ok := val.(UnitOfWork)
	return unit, ok
}

// Acquire returns the ambient unit of work or begins a handler-managed one.
// The returned cleanup rolls back unless Commit was called; it is nil when the
// unit came from context and its lifecycle belongs to the middleware.
func Acquire(ctx context.Context, factory UoWFactory, opts TxOptions) (UnitOfWork, context.Context, func(), error) {
	if unit, ok := FromContext(ctx); ok {
		return unit, ctx, nil, nil
	}
	if factory == nil {
		return nil, ctx, nil, ErrUnitOfWorkMissing
	}
	unit, err := factory.Begin(ctx, opts)
	if err != nil {
		return nil, ctx, nil, err
	}
	execCtx := ContextWithUnitOfWork(ctx, unit)
	cleanup := func() { _ = unit.Rollback(execCtx) }
	return unit, execCtx, cleanup, nil
}
