package dto

import (
	"time"

	"staysync/internal/domain/calendar"
	"staysync/internal/domain/shared/daterange"
)

type CalendarDay struct {
	Date              time.Time `json:"date"`
	Status            string    `json:"status"`
	PriceMinor        int64     `json:"price_minor"`
	Currency          string    `json:"currency,omitempty"`
	MinStay           int       `json:"min_stay,omitempty"`
	MaxStay           int       `json:"max_stay,omitempty"`
	ClosedToArrival   bool      `json:"closed_to_arrival,omitempty"`
	ClosedToDeparture bool      `json:"closed_to_departure,omitempty"`
}

type Availability struct {
	OrganizationID string        `json:"organization_id"`
	PropertyID     string        `json:"property_id"`
	From           time.Time     `json:"from"`
	To             time.Time     `json:"to"`
	Days           []CalendarDay `json:"days"`
}

func MapAvailability(cal *calendar.Calendar, r daterange.DateRange) Availability {
	if cal == nil {
		return Availability{}
	}
	days := make([]CalendarDay, 0, r.Nights())
	for _, d := range cal.DaysIn(r) {
		days = append(days, CalendarDay{
			Date:              d.Date,
			Status:            string(d.Status),
			PriceMinor:        d.NightlyPrice.Amount,
			Currency:          d.NightlyPrice.Currency,
			MinStay:           d.MinStay,
			MaxStay:           d.MaxStay,
			ClosedToArrival:   d.ClosedToArrival,
			ClosedToDeparture: d.ClosedToDeparture,
		})
	}
	return Availability{
		OrganizationID: cal.OrganizationID,
		PropertyID:     cal.PropertyID,
		From:           r.From,
		To:             r.To,
		Days:           days,
	}
}

// MutationResult reports the outcome of a calendar range mutation.
type MutationResult struct {
	PropertyID   string `json:"property_id"`
	DaysAffected int    `json:"days_affected"`
}
