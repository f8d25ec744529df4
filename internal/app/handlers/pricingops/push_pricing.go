package pricingops

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
	"staysync/internal/domain/shared/events"
)

const pushPricingKey = "pricing.push"

var ErrNoSyncedChannels = errors.New("pricingops: no sync-enabled channel mappings")

// PushPricingCommand queues a rate refresh toward every sync-enabled channel
// of the property. Delivery itself is the dispatcher's job.
type PushPricingCommand struct {
	OrganizationID  string
	PropertyID      string
	From            time.Time
	To              time.Time
	Channel         string // empty = all mapped channels
	IdempotencyKeyV string
}

func (c PushPricingCommand) Key() string            { return pushPricingKey }
func (c PushPricingCommand) IdempotencyKey() string { return c.IdempotencyKeyV }
func (c PushPricingCommand) ResultPrototype() any   { return &dto.PushResult{} }

type PushPricingHandler struct {
	UoWFactory uow.UoWFactory
	Outbox     outbox.Outbox
	Encoder    outbox.EventEncoder
}

func (h *PushPricingHandler) Handle(ctx context.Context, cmd PushPricingCommand) (*dto.PushResult, error) {
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

	mappings, err := unit.Mappings().ByProperty(ctx, cmd.OrganizationID, cmd.PropertyID)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	var evs []events.DomainEvent
	var channelNames []string
	for _, m := range mappings {
		if !m.SyncEnabled {
			continue
		}
		if cmd.Channel != "" && m.Channel != cmd.Channel {
			continue
		}
		evs = append(evs, domaincalendar.PricingPushRequested{
			OrganizationID: cmd.OrganizationID,
			PropertyID:     cmd.PropertyID,
			Range:          r,
			Channel:        m.Channel,
			Reason:         "operator_push",
			At:             now,
		})
		channelNames = append(channelNames, m.Channel)
	}
	if len(evs) == 0 {
		return nil, ErrNoSyncedChannels
	}

	if err := outbox.RecordDomainEvents(ctx, h.Outbox, h.Encoder, evs); err != nil {
		return nil, err
	}

	if managed {
		if err := unit.Commit(ctx); err != nil {
			return nil, err
		}
		committed = true
	}
	return &dto.PushResult{PropertyID: cmd.PropertyID, Channels: channelNames}, nil
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

var _ commands.Handler[PushPricingCommand, *dto.PushResult] = (*PushPricingHandler)(nil)
var _ middleware.IdempotentCommand = PushPricingCommand{}
