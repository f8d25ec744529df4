package calendarops

import (
	"context"
	"time"

	"staysync/internal/app/commands"
	"staysync/internal/app/dto"
	"staysync/internal/app/middleware"
	"staysync/internal/app/outbox"
	"staysync/internal/app/uow"
	domaincalendar "staysync/internal/domain/calendar"
	"staysync/internal/domain/shared/daterange"
)

const unblockDatesKey = "calendar.unblock"

type UnblockDatesCommand struct {
	OrganizationID  string
	PropertyID      string
	From            time.Time
	To              time.Time
	Source          string
	ActorID         string
	IdempotencyKeyV string
}

func (c UnblockDatesCommand) Key() string            { return unblockDatesKey }
func (c UnblockDatesCommand) IdempotencyKey() string { return c.IdempotencyKeyV }
func (c UnblockDatesCommand) ResultPrototype() any   { return &dto.MutationResult{} }

type UnblockDatesHandler struct {
	UoWFactory uow.UoWFactory
	Outbox     outbox.Outbox
	Encoder    outbox.EventEncoder
}

func (h *UnblockDatesHandler) Handle(ctx context.Context, cmd UnblockDatesCommand) (*dto.MutationResult, error) {
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

	released, err := cal.Unblock(r, domaincalendar.Source(cmd.Source), cmd.ActorID, time.Now().UTC())
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
	return &dto.MutationResult{PropertyID: cmd.PropertyID, DaysAffected: released}, nil
}

var _ commands.Handler[UnblockDatesCommand, *dto.MutationResult] = (*UnblockDatesHandler)(nil)
var _ middleware.IdempotentCommand = UnblockDatesCommand{}
