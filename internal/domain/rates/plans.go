package rates

import (
	"time"

	"staysync/internal/domain/shared/daterange"
	"staysync/internal/domain/shared/money"
)

type PlanType string

const (
	PlanBase     PlanType = "BASE"
	PlanSeasonal PlanType = "SEASONAL"
)

// RatePlan supplies the base nightly price for a date range. Nil bounds mean
// open-ended. Seasonal plans beat base plans on overlapping dates.
type RatePlan struct {
	ID              string
	Type            PlanType
	From            *time.Time
	To              *time.Time
	NightlyPrice    money.Money
	MinStayOverride int
	CreatedAt       time.Time
}

func (p RatePlan) Covers(date time.Time) bool {
	return withinWindow(daterange.Day(date), p.From, p.To)
}

// spanDays measures plan specificity; open-ended plans are least specific.
func (p RatePlan) spanDays() int64 {
	if p.From == nil || p.To == nil {
		return int64(1<<62 - 1)
	}
	return int64(p.To.Sub(*p.From).Hours() / 24)
}

// SelectPlan picks the plan governing a date: seasonal over base, then
// narrowest date range, ties broken by most recent creation.
func SelectPlan(plans []RatePlan, date time.Time) (RatePlan, bool) {
	var best RatePlan
	found := false
	for _, p := range plans {
		if !p.Covers(date) {
			continue
		}
		if !found || planWins(p, best) {
			best = p
			found = true
		}
	}
	return best, found
}

func planWins(a, b RatePlan) bool {
	if a.Type != b.Type {
		return a.Type == PlanSeasonal
	}
	if a.spanDays() != b.spanDays() {
		return a.spanDays() < b.spanDays()
	}
	return a.CreatedAt.After(b.CreatedAt)
}

// RateOverride pins an exact price on a single date; it replaces whatever a
// rate plan would yield and never composes with one.
type RateOverride struct {
	ID           string
	Date         time.Time
	NightlyPrice money.Money
	ActorID      string
	CreatedAt    time.Time
}

// SelectOverride returns the newest override for the date, if any.
func SelectOverride(overrides []RateOverride, date time.Time) (RateOverride, bool) {
	key := daterange.DayKey(date)
	var best RateOverride
	found := false
	for _, o := range overrides {
		if daterange.DayKey(o.Date) != key {
			continue
		}
		if !found || o.CreatedAt.After(best.CreatedAt) {
			best = o
			found = true
		}
	}
	return best, found
}
