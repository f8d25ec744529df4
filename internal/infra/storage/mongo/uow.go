package mongo

import (
	"context"
	"errors"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"staysync/internal/app/uow"
	domaincalendar "staysync/internal/domain/calendar"
	domainchannels "staysync/internal/domain/channels"
	domainrates "staysync/internal/domain/rates"
	domainsync "staysync/internal/domain/sync"
)

// Factory wires Mongo transactions into the generic UnitOfWork interface.
type Factory struct {
	DB *mongo.Database

	CalendarRepo  domaincalendar.Repository
	RatesRepo     domainrates.Repository
	MappingsRepo  domainchannels.MappingRepository
	RunsRepo      domainsync.RunRepository
	ConflictsRepo domainsync.ConflictRepository
}

var ErrUnitOfWorkNotConfigured = errors.New("mongo: unit of work factory missing database")

// Begin starts a MongoDB session/transaction.
func (f Factory) Begin(ctx context.Context, opts uow.TxOptions) (uow.UnitOfWork, error) {
	if f.DB == nil {
		return nil, ErrUnitOfWorkNotConfigured
	}
	session, err := f.DB.Client().StartSession()
	if err != nil {
		return nil, err
	}
	txnOpts := options.Transaction().SetReadConcern(f.DB.ReadConcern()).SetWriteConcern(f.DB.WriteConcern())
	if err := session.StartTransaction(txnOpts); err != nil {
		session.EndSession(ctx)
		return nil, err
	}
	return &Unit{
		db:        f.DB,
		session:   session,
		calendar:  f.CalendarRepo,
		rates:     f.RatesRepo,
		mappings:  f.MappingsRepo,
		runs:      f.RunsRepo,
		conflicts: f.ConflictsRepo,
	}, nil
}

type Unit struct {
	db      *mongo.Database
	session mongo.Session

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

func (u *Unit) Commit(ctx context.Context) error {
	defer u.session.EndSession(ctx)
	return u.session.CommitTransaction(ctx)
}

func (u *Unit) Rollback(ctx context.Context) error {
	defer u.session.EndSession(ctx)
	return u.session.AbortTransaction(ctx)
}

// InjectContext ensures the Mongo session is available in context for
// downstream repositories.
func (u *Unit) InjectContext(ctx context.Context) context.Context {
	return mongo.NewSessionContext(ctx, u.session)
}

var _ uow.UoWFactory = Factory{}
