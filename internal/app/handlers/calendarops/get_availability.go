package calendarops

import (
	"context"
	"time"

	"staysync/internal/app/dto"
	"staysync/internal/app/queries"
	"staysync/internal/app/uow"
	domaincalendar "staysync/internal/domain/calendar"
	"staysync/internal/domain/shared/daterange"
)

const getAvailabilityKey = "calendar.availability"

type GetAvailabilityQuery struct {
	OrganizationID string
	PropertyID     string
	From           time.Time
	To             time.Time
}

func (q GetAvailabilityQuery) Key() string { return getAvailabilityKey }

type GetAvailabilityHandler struct {
	UoWFactory uow.UoWFactory
}

func (h *GetAvailabilityHandler) Handle(ctx context.Context, q GetAvailabilityQuery) (dto.Availability, error) {
	r, err := daterange.New(q.From, q.To)
	if err != nil {
		return dto.Availability{}, domaincalendar.ErrInvalidRange
	}

	unit, ctx, cleanup, err := uow.Acquire(ctx, h.UoWFactory, uow.TxOptions{ReadOnly: true})
	if err != nil {
		return dto.Availability{}, err
	}
	if cleanup != nil {
		defer cleanup()
	}

	cal, err := unit.Calendar().Calendar(ctx, q.OrganizationID, q.PropertyID)
	if err != nil {
		return dto.Availability{}, err
	}
	return dto.MapAvailability(cal, r), nil
}

var _ queries.Handler[GetAvailabilityQuery, dto.Availability] = (*GetAvailabilityHandler)(nil)
