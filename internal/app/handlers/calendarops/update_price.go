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
	"staysync/internal/domain/pricing"
	"staysync/internal/domain/shared/daterange"
	"staysync/internal/domain/shared/money"
)

const updatePriceKey = "calendar.update_price"

type UpdatePriceCommand struct {
	OrganizationID  string
	PropertyID      string
	From            time.Time
	To              time.Time
	PriceMinor      int64
	Currency        string
	ActorID         string
	IdempotencyKeyV string
}

func (c UpdatePriceCommand) Key() string            { return updatePriceKey }
func (c UpdatePriceCommand) IdempotencyKey() string { return c.IdempotencyKeyV }
func (c UpdatePriceCommand) ResultPrototype() any   { return &dto.MutationResult{} }

type UpdatePriceHandler struct {
	UoWFactory uow.UoWFactory
	Outbox     outbox.Outbox
	Encoder    outbox.EventEncoder
}

func (h *UpdatePriceHandler) Handle(ctx context.Context, cmd UpdatePriceCommand) (*dto.MutationResult, error) {
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

	price, err := money.New(cmd.PriceMinor, cmd.Currency)
	if err != nil {
		return nil, err
	}

	// a manual price update runs through the yield clamp before persisting,
	// so an operator can never push a price outside the configured bounds
	set, err := unit.Rates().RateSet(ctx, cmd.OrganizationID, cmd.PropertyID)
	if err != nil {
		return nil, err
	}
	price = pricing.ClampToYield(set, price)

	cal, err := unit.Calendar().Calendar(ctx, cmd.OrganizationID, cmd.PropertyID)
	if err != nil {
		return nil, err
	}
	if err := cal.UpdatePrice(r, price, cmd.ActorID, time.Now().UTC()); err != nil {
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
	return &dto.MutationResult{PropertyID: cmd.PropertyID, DaysAffected: r.Nights()}, nil
}

var _ commands.Handler[UpdatePriceCommand, *dto.MutationResult] = (*UpdatePriceHandler)(nil)
var _ middleware.IdempotentCommand = UpdatePriceCommand{}
