package channelops

import (
	"context"
	"time"

	"staysync/internal/app/commands"
	"staysync/internal/app/dto"
	"staysync/internal/app/middleware"
	"staysync/internal/app/outbox"
	"staysync/internal/app/uow"
	domaincalendar "staysync/internal/domain/calendar"
	domainchannels "staysync/internal/domain/channels"
	"staysync/internal/domain/shared/daterange"
)

const applyCalendarEventKey = "channel.apply_calendar_event"

// ApplyCalendarEventCommand applies a normalized inbound channel calendar
// event to the local calendar. The channel is the actor; local state still
// goes through the same aggregate as every other mutation.
type ApplyCalendarEventCommand struct {
	Channel         string
	Event           domainchannels.CalendarEvent
	IdempotencyKeyV string
}

func (c ApplyCalendarEventCommand) Key() string            { return applyCalendarEventKey }
func (c ApplyCalendarEventCommand) IdempotencyKey() string { return c.IdempotencyKeyV }
func (c ApplyCalendarEventCommand) ResultPrototype() any   { return &dto.MutationResult{} }

type ApplyCalendarEventHandler struct {
	UoWFactory uow.UoWFactory
	Outbox     outbox.Outbox
	Encoder    outbox.EventEncoder
}

func (h *ApplyCalendarEventHandler) Handle(ctx context.Context, cmd ApplyCalendarEventCommand) (*dto.MutationResult, error) {
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

	mapping, err := unit.Mappings().ByExternal(ctx, cmd.Channel, cmd.Event.RoomID)
	if err != nil {
		return nil, err
	}

	day := daterange.Day(cmd.Event.Date)
	r := daterange.DateRange{From: day, To: day.AddDate(0, 0, 1)}

	cal, err := unit.Calendar().Calendar(ctx, mapping.OrganizationID, mapping.PropertyID)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	affected := 0
	if cmd.Event.Available {
		affected, err = cal.Unblock(r, domaincalendar.SourceChannel, cmd.Channel, now)
	} else {
		affected, err = cal.Block(r, domaincalendar.SourceChannel, "channel close-out", cmd.Channel, now)
	}
	if err != nil {
		return nil, err
	}

	if err := unit.Calendar().Save(ctx, cal); err != nil {
		return nil, err
	}
	pending := cal.PendingEvents()
	cal.ClearEvents()
	if err := outbox.RecordDomainEvents(ctx, h.Outbox, h.Encoder, pending); err != nil {
		return nil, err
	}

	if managed {
		if err := unit.Commit(ctx); err != nil {
			return nil, err
		}
		committed = true
	}
	return &dto.MutationResult{PropertyID: mapping.PropertyID, DaysAffected: affected}, nil
}

func beginManaged(ctx context.Context, factory uow.UoWFactory) (uow.UnitOfWork, context.Context, bool, error) {
	if unit, ok := uow.FromContext(ctx); ok {
		return unit, ctx, false, nil
	}
	if factory == nil {
		return nil, ctx, false, uow.ErrUnitOfWorkMissing
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

var _ commands.Handler[ApplyCalendarEventCommand, *dto.MutationResult] = (*ApplyCalendarEventHandler)(nil)
var _ middleware.IdempotentCommand = ApplyCalendarEventCommand{}
