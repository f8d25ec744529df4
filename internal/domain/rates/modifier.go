package rates

import (
	"context"
	"time"

	"staysync/internal/domain/shared/money"
)

// AdjustmentType distinguishes percentage and fixed-amount price adjustments.
type AdjustmentType string

const (
	AdjustmentPercentage AdjustmentType = "PERCENTAGE"
	AdjustmentFixed      AdjustmentType = "FIXED_AMOUNT"
)

// Context carries the optional resolution inputs a modifier may consult.
// A zero StayNights means calendar-display resolution without stay context;
// a zero Adults means no occupancy context.
type Context struct {
	Channel    string
	StayNights int
	Adults     int
	Children   int
	PromoCode  string
}

// Modifier is the shared contract of every rate-model variant: a predicate on
// the date plus a price transformation. The price engine walks an ordered list
// of these instead of branching per concrete type.
type Modifier interface {
	AppliesTo(date time.Time, ctx Context) bool
	Apply(price money.Money, ctx Context) money.Money
}

// RateSet is the complete rate-model state for one property, loaded in one
// read so a resolution call is a pure function of it.
type RateSet struct {
	Plans            []RatePlan
	Overrides        []RateOverride
	StayDiscounts    []LengthOfStayDiscount
	Occupancy        *OccupancyPricing
	Yield            *YieldRule
	Promos           []PromoCode
	ChannelModifiers []ChannelRateModifier
}

type Repository interface {
	RateSet(ctx context.Context, organizationID, propertyID string) (RateSet, error)
}

// withinWindow reports whether date falls inside an optional validity window;
// nil bounds are open-ended.
func withinWindow(date time.Time, from, to *time.Time) bool {
	if from != nil && date.Before(*from) {
		return false
	}
	if to != nil && date.After(*to) {
		return false
	}
	return true
}
