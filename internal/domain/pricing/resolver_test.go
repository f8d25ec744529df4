package pricing_test

import (
	"context"
	"testing"
	"time"

	"staysync/internal/domain/pricing"
	"staysync/internal/domain/rates"
	"staysync/internal/domain/shared/daterange"
	"staysync/internal/domain/shared/money"
)

type fakeRates struct {
	set rates.RateSet
	err error
}

func (f *fakeRates) RateSet(ctx context.Context, organizationID, propertyID string) (rates.RateSet, error) {
	return f.set, f.err
}

func day(s string) time.Time {
	t, _ := time.Parse("2006-01-02", s)
	return t.UTC()
}

func tp(s string) *time.Time {
	t := day(s)
	return &t
}

func mustRange(from, to string) daterange.DateRange {
	r, err := daterange.New(day(from), day(to))
	if err != nil {
		panic(err)
	}
	return r
}

func TestResolve_OverrideThenChannelThenYieldClamp(t *testing.T) {
	// base 100, override 150 on 2026-03-05, +10% channel markup, yield max 140:
	// clamp(150 * 1.10) = clamp(165) = 140
	max := int64(14000)
	set := rates.RateSet{
		Plans: []rates.RatePlan{{Type: rates.PlanBase, NightlyPrice: money.Must(10000, "EUR")}},
		Overrides: []rates.RateOverride{
			{Date: day("2026-03-05"), NightlyPrice: money.Must(15000, "EUR")},
		},
		ChannelModifiers: []rates.ChannelRateModifier{
			{Channel: "airbnb", ModifierType: rates.AdjustmentPercentage, Value: 10, Active: true},
		},
		Yield: &rates.YieldRule{MaxPrice: &max},
	}
	got, err := pricing.ResolveDay(set, day("2026-03-05"), rates.Context{Channel: "airbnb"})
	if err != nil {
		t.Fatalf("err: %v", err)
	}
	if got.Amount != 14000 {
		t.Fatalf("resolved = %d, want 14000", got.Amount)
	}
}

func TestResolve_OverrideWinsOverAnyPlan(t *testing.T) {
	set := rates.RateSet{
		Plans: []rates.RatePlan{
			{Type: rates.PlanBase, NightlyPrice: money.Must(10000, "EUR")},
			{Type: rates.PlanSeasonal, From: tp("2026-03-01"), To: tp("2026-03-10"), NightlyPrice: money.Must(20000, "EUR")},
		},
		Overrides: []rates.RateOverride{{Date: day("2026-03-05"), NightlyPrice: money.Must(7500, "EUR")}},
	}
	got, err := pricing.ResolveDay(set, day("2026-03-05"), rates.Context{})
	if err != nil {
		t.Fatalf("err: %v", err)
	}
	if got.Amount != 7500 {
		t.Fatalf("override must replace plan price, got %d", got.Amount)
	}
}

func TestResolve_NoRateConfigured(t *testing.T) {
	set := rates.RateSet{
		Plans: []rates.RatePlan{{Type: rates.PlanSeasonal, From: tp("2026-06-01"), To: tp("2026-07-01"), NightlyPrice: money.Must(10000, "EUR")}},
	}
	if _, err := pricing.ResolveDay(set, day("2026-03-05"), rates.Context{}); err != pricing.ErrNoRateConfigured {
		t.Fatalf("expected ErrNoRateConfigured, got %v", err)
	}
}

func TestResolvePriceRange_PureAndRepeatable(t *testing.T) {
	repo := &fakeRates{set: rates.RateSet{
		Plans: []rates.RatePlan{{Type: rates.PlanBase, NightlyPrice: money.Must(10000, "EUR")}},
	}}
	resolver := pricing.NewResolver(repo)
	q := pricing.Query{OrganizationID: "org-1", PropertyID: "prop-1", Range: mustRange("2026-03-01", "2026-03-05")}

	first, err := resolver.ResolvePriceRange(context.Background(), q)
	if err != nil {
		t.Fatalf("err: %v", err)
	}
	second, err := resolver.ResolvePriceRange(context.Background(), q)
	if err != nil {
		t.Fatalf("err: %v", err)
	}
	if len(first) != 4 || len(second) != 4 {
		t.Fatalf("expected 4 resolved days, got %d/%d", len(first), len(second))
	}
	for i := range first {
		if first[i].Price != second[i].Price || !first[i].Date.Equal(second[i].Date) {
			t.Fatalf("resolution not repeatable at %d: %+v vs %+v", i, first[i], second[i])
		}
	}
}

func TestResolve_StayDiscountOnlyWithStayContext(t *testing.T) {
	set := rates.RateSet{
		Plans: []rates.RatePlan{{Type: rates.PlanBase, NightlyPrice: money.Must(10000, "EUR")}},
		StayDiscounts: []rates.LengthOfStayDiscount{
			{MinNights: 7, DiscountType: rates.AdjustmentPercentage, Value: 10, Active: true},
		},
	}
	withStay, err := pricing.ResolveDay(set, day("2026-03-05"), rates.Context{StayNights: 8})
	if err != nil {
		t.Fatalf("err: %v", err)
	}
	if withStay.Amount != 9000 {
		t.Fatalf("stay price = %d, want 9000", withStay.Amount)
	}
	display, err := pricing.ResolveDay(set, day("2026-03-05"), rates.Context{})
	if err != nil {
		t.Fatalf("err: %v", err)
	}
	if display.Amount != 10000 {
		t.Fatalf("display price must skip LOS layer, got %d", display.Amount)
	}
}

func TestResolve_PromoPercentageRoundsHalfUp(t *testing.T) {
	set := rates.RateSet{
		Plans:  []rates.RatePlan{{Type: rates.PlanBase, NightlyPrice: money.Must(9999, "EUR")}},
		Promos: []rates.PromoCode{{Code: "P15", DiscountType: rates.AdjustmentPercentage, Value: 15}},
	}
	got, err := pricing.ResolveDay(set, day("2026-03-05"), rates.Context{PromoCode: "P15"})
	if err != nil {
		t.Fatalf("err: %v", err)
	}
	// 15% of 99.99 = 15.00 (1499.85 rounds half-up to 1500)
	if got.Amount != 8499 {
		t.Fatalf("promo price = %d, want 8499", got.Amount)
	}
}

func TestResolve_NeverNegative(t *testing.T) {
	set := rates.RateSet{
		Plans:  []rates.RatePlan{{Type: rates.PlanBase, NightlyPrice: money.Must(5000, "EUR")}},
		Promos: []rates.PromoCode{{Code: "HUGE", DiscountType: rates.AdjustmentFixed, Value: 400}},
		ChannelModifiers: []rates.ChannelRateModifier{
			{Channel: "booking", ModifierType: rates.AdjustmentFixed, Value: -100, Active: true},
		},
	}
	got, err := pricing.ResolveDay(set, day("2026-03-05"), rates.Context{Channel: "booking", PromoCode: "HUGE"})
	if err != nil {
		t.Fatalf("err: %v", err)
	}
	if got.Amount != 0 {
		t.Fatalf("price floored at zero, got %d", got.Amount)
	}
}
