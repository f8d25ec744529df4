package pricing

import (
	"context"
	"errors"
	"time"

	"staysync/internal/domain/rates"
	"staysync/internal/domain/shared/daterange"
	"staysync/internal/domain/shared/money"
)

// ErrNoRateConfigured means no rate plan governs a requested date. Fatal to
// the resolution call, never retried.
var ErrNoRateConfigured = errors.New("pricing: no rate configured for date")

// Query describes one resolution request. StayNights zero means
// calendar-display resolution and skips the length-of-stay layer; Adults zero
// skips the occupancy layer. Callers that price a full stay must pass the
// stay length explicitly.
type Query struct {
	OrganizationID string
	PropertyID     string
	Range          daterange.DateRange
	Channel        string
	StayNights     int
	Adults         int
	Children       int
	PromoCode      string
}

type ResolvedDay struct {
	Date  time.Time
	Price money.Money
}

// Resolver composes the rate model into one resolved price per date. It only
// reads; resolution is a pure function of the query and the rate set, safe
// under arbitrary concurrent load.
type Resolver struct {
	Rates rates.Repository
}

func NewResolver(repo rates.Repository) *Resolver {
	return &Resolver{Rates: repo}
}

func (r *Resolver) ResolvePriceRange(ctx context.Context, q Query) ([]ResolvedDay, error) {
	if err := q.Range.Validate(); err != nil {
		return nil, err
	}
	set, err := r.Rates.RateSet(ctx, q.OrganizationID, q.PropertyID)
	if err != nil {
		return nil, err
	}
	mctx := rates.Context{
		Channel:    q.Channel,
		StayNights: q.StayNights,
		Adults:     q.Adults,
		Children:   q.Children,
		PromoCode:  q.PromoCode,
	}
	out := make([]ResolvedDay, 0, q.Range.Nights())
	for _, date := range q.Range.Days() {
		price, err := ResolveDay(set, date, mctx)
		if err != nil {
			return nil, err
		}
		out = append(out, ResolvedDay{Date: date, Price: price})
	}
	return out, nil
}

// ResolveDay runs the strictly ordered layering for a single date. Each layer
// starts from the previous layer's output; intermediate negatives floor to
// zero before the next layer runs.
func ResolveDay(set rates.RateSet, date time.Time, mctx rates.Context) (money.Money, error) {
	// 1. base price from the governing rate plan
	plan, ok := rates.SelectPlan(set.Plans, date)
	if !ok {
		return money.Money{}, ErrNoRateConfigured
	}
	price := plan.NightlyPrice

	// 2. a manual override replaces the plan price outright
	if ov, ok := rates.SelectOverride(set.Overrides, date); ok {
		price = ov.NightlyPrice
	}
	price = price.FloorZero()

	// 3. single best-matching length-of-stay discount, stay context only
	if d, ok := rates.SelectStayDiscount(set.StayDiscounts, date, mctx); ok {
		price = d.Apply(price, mctx).FloorZero()
	}

	// 4. occupancy surcharge
	if set.Occupancy != nil && set.Occupancy.AppliesTo(date, mctx) {
		price = set.Occupancy.Apply(price, mctx).FloorZero()
	}

	// 5. promo code on the running total
	for _, promo := range set.Promos {
		if promo.AppliesTo(date, mctx) {
			price = promo.Apply(price, mctx).FloorZero()
			break
		}
	}

	// 6. channel markup/markdown
	for _, mod := range set.ChannelModifiers {
		if mod.AppliesTo(date, mctx) {
			price = mod.Apply(price, mctx).FloorZero()
			break
		}
	}

	// 7. yield clamp, 8. zero floor
	if set.Yield != nil {
		price = set.Yield.Apply(price, mctx)
	}
	return price.FloorZero(), nil
}

// ClampToYield applies only the yield layer; the calendar engine runs manual
// price updates through this before persisting so an operator price can never
// escape the configured bounds.
func ClampToYield(set rates.RateSet, price money.Money) money.Money {
	if set.Yield != nil {
		price = set.Yield.Apply(price, rates.Context{})
	}
	return price.FloorZero()
}
