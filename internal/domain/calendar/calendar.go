package calendar

import (
	"context"
	"errors"
	"time"

	"staysync/internal/domain/shared/daterange"
	"staysync/internal/domain/shared/events"
	"staysync/internal/domain/shared/money"
)

var (
	ErrInvalidRange        = errors.New("calendar: invalid date range")
	ErrForbiddenTransition = errors.New("calendar: forbidden status transition")
	// ErrConcurrentMutation is returned by repositories when two overlapping
	// range mutations race; the loser must be retried by the caller.
	ErrConcurrentMutation = errors.New("calendar: concurrent mutation detected")
)

// Calendar is the per-property aggregate and the only writer of day state.
// Every successful mutation records exactly one domain event.
type Calendar struct {
	OrganizationID string
	PropertyID     string
	Days           map[string]*Day
	Version        int64
	events.EventRecorder
}

type Repository interface {
	Calendar(ctx context.Context, organizationID, propertyID string) (*Calendar, error)
	Save(ctx context.Context, cal *Calendar) error
}

func NewCalendar(organizationID, propertyID string) *Calendar {
	return &Calendar{
		OrganizationID: organizationID,
		PropertyID:     propertyID,
		Days:           make(map[string]*Day),
	}
}

// DaysIn returns the known days inside the range, ascending. Days never
// written yet are reported as AVAILABLE with no price.
func (c *Calendar) DaysIn(r daterange.DateRange) []Day {
	out := make([]Day, 0, r.Nights())
	for _, date := range r.Days() {
		if d, ok := c.Days[daterange.DayKey(date)]; ok {
			out = append(out, *d)
			continue
		}
		out = append(out, Day{Date: date, Status: StatusAvailable})
	}
	return out
}

// Block marks every day in the range BLOCKED. The whole range is validated
// before any day changes, so a booked day inside the range rejects the call
// without partial effect.
func (c *Calendar) Block(r daterange.DateRange, source Source, notes, actorID string, now time.Time) (int, error) {
	if err := r.Validate(); err != nil {
		return 0, ErrInvalidRange
	}
	for _, date := range r.Days() {
		if d, ok := c.Days[daterange.DayKey(date)]; ok && !canTransition(d.Status, StatusBlocked) {
			return 0, ErrForbiddenTransition
		}
	}
	blocked := 0
	for _, date := range r.Days() {
		d := c.ensureDay(date)
		if d.Status != StatusBlocked {
			blocked++
		}
		d.Status = StatusBlocked
		d.UpdatedAt = now.UTC()
	}
	c.Record(DatesBlocked{
		OrganizationID: c.OrganizationID,
		PropertyID:     c.PropertyID,
		Range:          r,
		Source:         source,
		Notes:          notes,
		ActorID:        actorID,
		At:             now.UTC(),
	})
	return blocked, nil
}

// Unblock returns BLOCKED days in the range to AVAILABLE, leaving prices and
// restrictions untouched. Booked days reject the whole range.
func (c *Calendar) Unblock(r daterange.DateRange, source Source, actorID string, now time.Time) (int, error) {
	if err := r.Validate(); err != nil {
		return 0, ErrInvalidRange
	}
	for _, date := range r.Days() {
		if d, ok := c.Days[daterange.DayKey(date)]; ok && d.Status == StatusBooked {
			return 0, ErrForbiddenTransition
		}
	}
	released := 0
	for _, date := range r.Days() {
		d := c.ensureDay(date)
		if d.Status == StatusBlocked {
			released++
		}
		d.Status = StatusAvailable
		d.UpdatedAt = now.UTC()
	}
	c.Record(DatesUnblocked{
		OrganizationID: c.OrganizationID,
		PropertyID:     c.PropertyID,
		Range:          r,
		Source:         source,
		ActorID:        actorID,
		At:             now.UTC(),
	})
	return released, nil
}

// UpdatePrice writes a new nightly price on every day in the range. The price
// must already have passed the yield clamp; the aggregate only floors at zero.
func (c *Calendar) UpdatePrice(r daterange.DateRange, price money.Money, actorID string, now time.Time) error {
	if err := r.Validate(); err != nil {
		return ErrInvalidRange
	}
	price = price.FloorZero()
	for _, date := range r.Days() {
		d := c.ensureDay(date)
		d.NightlyPrice = price
		d.UpdatedAt = now.UTC()
	}
	c.Record(PriceUpdated{
		OrganizationID: c.OrganizationID,
		PropertyID:     c.PropertyID,
		Range:          r,
		Price:          price,
		ActorID:        actorID,
		At:             now.UTC(),
	})
	return nil
}

// ApplyReservation books every day in the range. Any BLOCKED day rejects the
// reservation: a blocked date cannot receive a booking without an explicit
// unblock first.
func (c *Calendar) ApplyReservation(r daterange.DateRange, reservationID, channel string, now time.Time) error {
	if err := r.Validate(); err != nil {
		return ErrInvalidRange
	}
	for _, date := range r.Days() {
		if d, ok := c.Days[daterange.DayKey(date)]; ok && !canTransition(d.Status, StatusBooked) {
			return ErrForbiddenTransition
		}
	}
	for _, date := range r.Days() {
		d := c.ensureDay(date)
		d.Status = StatusBooked
		d.UpdatedAt = now.UTC()
	}
	c.Record(ReservationApplied{
		OrganizationID: c.OrganizationID,
		PropertyID:     c.PropertyID,
		Range:          r,
		ReservationID:  reservationID,
		Channel:        channel,
		At:             now.UTC(),
	})
	return nil
}

// ReleaseReservation frees previously booked days after a cancellation.
func (c *Calendar) ReleaseReservation(r daterange.DateRange, reservationID string, now time.Time) error {
	if err := r.Validate(); err != nil {
		return ErrInvalidRange
	}
	for _, date := range r.Days() {
		d := c.ensureDay(date)
		if d.Status == StatusBooked {
			d.Status = StatusAvailable
			d.UpdatedAt = now.UTC()
		}
	}
	c.Record(ReservationReleased{
		OrganizationID: c.OrganizationID,
		PropertyID:     c.PropertyID,
		Range:          r,
		ReservationID:  reservationID,
		At:             now.UTC(),
	})
	return nil
}

func (c *Calendar) ensureDay(date time.Time) *Day {
	key := daterange.DayKey(date)
	if d, ok := c.Days[key]; ok {
		return d
	}
	d := &Day{Date: daterange.Day(date), Status: StatusAvailable}
	if c.Days == nil {
		c.Days = make(map[string]*Day)
	}
	c.Days[key] = d
	return d
}
