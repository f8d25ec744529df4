package memory

import (
	"context"
	"errors"

	"staysync/internal/app/uow"
	domaincalendar "staysync/internal/domain/calendar"
	domainchannels "staysync/internal/domain/channels"
	domainrates "staysync/internal/domain/rates"
	domainsync "staysync/internal/domain/sync"
)

// Factory wires in-memory repositories into a unit-of-work boundary.
type Factory struct {
	CalendarRepo  domaincalendar.Repository
	RatesRepo     domainrates.Repository
	MappingsRepo  domainchannels.MappingRepository
	RunsRepo      domainsync.RunRepository
	ConflictsRepo domainsync.ConflictRepository
}

var ErrFactoryMisconfigured = errors.New("memory: unit of work factory misconfigured")

// NewFactory builds a factory over fresh in-memory stores.
func NewFactory() Factory {
	return Factory{
		CalendarRepo:  NewCalendarRepository(),
		RatesRepo:     NewRateSetRepository(),
		MappingsRepo:  NewMappingRepository(),
		RunsRepo:      NewRunRepository(),
		ConflictsRepo: NewConflictRepository(),
	}
}

// Begin starts a lightweight transaction boundary. No isolation is provided
// but the abstraction matches the application ports; the calendar repository
// still enforces optimistic versions on save.
func (f Factory) Begin(ctx context.Context, opts uow.TxOptions) (uow.UnitOfWork, error) {
	if f.CalendarRepo == nil || f.RatesRepo == nil || f.MappingsRepo == nil || f.RunsRepo == nil || f.ConflictsRepo == nil {
		return nil, ErrFactoryMisconfigured
	}
	return &Unit{
		calendar:  f.CalendarRepo,
		rates:     f.RatesRepo,
		mappings:  f.MappingsRepo,
		runs:      f.RunsRepo,
		conflicts: f.ConflictsRepo,
	}, nil
}

// Unit is a lightweight uow.UnitOfWork backed by in-memory stores.
type Unit struct {
	calendar  domaincalendar.Repository
	rates     domainrates.Repository
	mappings  domainchannels.MappingRepository
	runs      domainsync.RunRepository
	conflicts domainsync.ConflictRepository
}

func (u *Unit) Calendar() domaincalendar.Repository { return u.calendar }

func (u *Unit) Rates() domainrates.Repository { return u.rates }

func (u *Unit) Mappings() domainchannels.MappingRepository { return u.mappings }

func (u *Unit) Runs() domainsync.RunRepository { return u.runs }

func (u *Unit) Conflicts() domainsync.ConflictRepository { return u.conflicts }

func (u *Unit) Commit(ctx context.Context) error { return nil }

func (u *Unit) Rollback(ctx context.Context) error { return nil }

var _ uow.UoWFactory = Factory{}
