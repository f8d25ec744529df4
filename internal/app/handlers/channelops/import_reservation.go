package channelops

import (
	"context"
	"strings"
	"time"

	"staysync/internal/app/commands"
	"staysync/internal/app/dto"
	"staysync/internal/app/middleware"
	"staysync/internal/app/outbox"
	"staysync/internal/app/uow"
	domainchannels "staysync/internal/domain/channels"
	"staysync/internal/domain/shared/daterange"
)

const importReservationKey = "channel.import_reservation"

// ImportReservationCommand books or releases calendar days for a reservation
// made directly on an external channel. A blocked date rejects the booking;
// that surfaces to the channel as a sync conflict instead of silently
// double-committing the date.
type ImportReservationCommand struct {
	Channel         string
	Reservation     domainchannels.Reservation
	IdempotencyKeyV string
}

func (c ImportReservationCommand) Key() string            { return importReservationKey }
func (c ImportReservationCommand) IdempotencyKey() string { return c.IdempotencyKeyV }
func (c ImportReservationCommand) ResultPrototype() any   { return &dto.MutationResult{} }

type ImportReservationHandler struct {
	UoWFactory uow.UoWFactory
	Outbox     outbox.Outbox
	Encoder    outbox.EventEncoder
}

func (h *ImportReservationHandler) Handle(ctx context.Context, cmd ImportReservationCommand) (*dto.MutationResult, error) {
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

	mapping, err := unit.Mappings().ByExternal(ctx, cmd.Channel, cmd.Reservation.RoomID)
	if err != nil {
		return nil, err
	}

	r, err := daterange.New(cmd.Reservation.CheckIn, cmd.Reservation.CheckOut)
	if err != nil {
		return nil, err
	}

	cal, err := unit.Calendar().Calendar(ctx, mapping.OrganizationID, mapping.PropertyID)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	switch strings.ToUpper(cmd.Reservation.Status) {
	case "CANCELLED", "CANCELED":
		err = cal.ReleaseReservation(r, cmd.Reservation.ReservationID, now)
	default:
		err = cal.ApplyReservation(r, cmd.Reservation.ReservationID, cmd.Channel, now)
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
	return &dto.MutationResult{PropertyID: mapping.PropertyID, DaysAffected: r.Nights()}, nil
}

var _ commands.Handler[ImportReservationCommand, *dto.MutationResult] = (*ImportReservationHandler)(nil)
var _ middleware.IdempotentCommand = ImportReservationCommand{}
