package calendarops

import (
	"context"
	"errors"
	"time"

	"staysync/internal/app/commands"
	"staysync/internal/app/dto"
	"staysync/internal/app/middleware"
	"staysync/internal/app/outbox"
	"staysync/internal/app/uow"
	domaincalendar "staysync/internal/domain/calendar"
	"staysync/internal/domain/shared/daterange"
)

const blockDatesKey = "calendar.block"

var ErrUnitOfWorkRequired = errors.New("calendarops: unit of work required")

type BlockDatesCommand struct {
	OrganizationID  string
	PropertyID      string
	From            time.Time
	To              time.Time
	Source          string
	Notes           string
	ActorID         string
	IdempotencyKeyV string
}

func (c BlockDatesCommand) Key() string            { return blockDatesKey }
func (c BlockDatesCommand) IdempotencyKey() string { return c.IdempotencyKeyV }
func (c BlockDatesCommand) ResultPrototype() any   { return &dto.MutationResult{} }

type BlockDatesHandler struct {
	UoWFactory uow.UoWFactory
	Outbox     outbox.Outbox
	Encoder    outbox.EventEncoder
}

func (h *BlockDatesHandler) Handle(ctx context.Context, cmd BlockDatesCommand) (*dto.MutationResult, error) {
	unit, ctx, managed, err := beginManaged(ctx, h.UoWFactory)
	if err != nil {
		return nil, err
	}
	committed := false
	if managed {
		defer func() {
			if !committed {
				_ = unit.Rollback(ctx)
			}
		}()
	}

	r, err := daterange.New(cmd.From, cmd.To)
	if err != nil {
		return nil, domaincalendar.ErrInvalidRange
	}

	cal, err := unit.Calendar().Calendar(ctx, cmd.OrganizationID, cmd.PropertyID)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	blocked, err := cal.Block(r, domaincalendar.Source(cmd.Source), cmd.Notes, cmd.ActorID, now)
	if err != nil {
		return nil, err
	}

	if err := saveWithEvents(ctx, unit, cal, h.Outbox, h.Encoder); err != nil {
		return nil, err
	}

	if managed {
		if err := unit.Commit(ctx); err != nil {
			return nil, err
		}
		committed = true
	}
	return &dto.MutationResult{PropertyID: cmd.PropertyID, DaysAffected: blocked}, nil
}

// saveWithEvents persists the aggregate and appends its pending events to the
// outbox inside the same transaction; exactly one record per mutation.
func saveWithEvents(ctx context.Context, unit uow.UnitOfWork, cal *domaincalendar.Calendar, box outbox.Outbox, encoder outbox.EventEncoder) error {
	if err := unit.Calendar().Save(ctx, cal); err != nil {
		return err
	}
	pending := cal.PendingEvents()
	cal.ClearEvents()
	return outbox.RecordDomainEvents(ctx, box, encoder, pending)
}

func beginManaged(ctx context.Context, factory uow.UoWFactory) (uow.UnitOfWork, context.Context, bool, error) {
	if unit, ok := uow.FromContext(ctx); ok {
		return unit, ctx, false, nil
	}
	if factory == nil {
		return nil, ctx, false, ErrUnitOfWorkRequired
	}
	unit, err := factory.Begin(ctx, uow.TxOptions{})
	if err != nil {
		return nil, ctx, false, err
	}
	if injector, ok := unit.(interface {
		InjectContext(context.Context) context.Context
	}); ok {
		ctx = injector.InjectContext(ctx)
	}
	return unit, uow.ContextWithUnitOfWork(ctx, unit), true, nil
}

var _ commands.Handler[BlockDatesCommand, *dto.MutationResult] = (*BlockDatesHandler)(nil)
var _ middleware.IdempotentCommand = BlockDatesCommand{}
