package rates_test

import (
	"testing"
	"time"

	"staysync/internal/domain/rates"
	"staysync/internal/domain/shared/money"
)

func day(s string) time.Time {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(err)
	}
	return t.UTC()
}

func tp(s string) *time.Time {
	t := day(s)
	return &t
}

func TestSelectPlan_SeasonalBeatsBase(t *testing.T) {
	plans := []rates.RatePlan{
		{ID: "base", Type: rates.PlanBase, NightlyPrice: money.Must(10000, "EUR")},
		{ID: "summer", Type: rates.PlanSeasonal, From: tp("2026-06-01"), To: tp("2026-09-01"), NightlyPrice: money.Must(18000, "EUR")},
	}
	got, ok := rates.SelectPlan(plans, day("2026-07-15"))
	if !ok || got.ID != "summer" {
		t.Fatalf("expected summer plan, got %+v ok=%v", got, ok)
	}
	got, ok = rates.SelectPlan(plans, day("2026-03-15"))
	if !ok || got.ID != "base" {
		t.Fatalf("expected base plan, got %+v ok=%v", got, ok)
	}
}

func TestSelectPlan_MostSpecificWinsThenNewest(t *testing.T) {
	created := day("2026-01-01")
	plans := []rates.RatePlan{
		{ID: "wide", Type: rates.PlanSeasonal, From: tp("2026-06-01"), To: tp("2026-09-01"), CreatedAt: created},
		{ID: "narrow", Type: rates.PlanSeasonal, From: tp("2026-07-01"), To: tp("2026-07-15"), CreatedAt: created},
		{ID: "narrow-newer", Type: rates.PlanSeasonal, From: tp("2026-07-01"), To: tp("2026-07-15"), CreatedAt: created.Add(time.Hour)},
	}
	got, ok := rates.SelectPlan(plans, day("2026-07-10"))
	if !ok || got.ID != "narrow-newer" {
		t.Fatalf("expected narrow-newer, got %+v ok=%v", got, ok)
	}
}

func TestSelectOverride_NewestForDateWins(t *testing.T) {
	overrides := []rates.RateOverride{
		{ID: "old", Date: day("2026-03-05"), NightlyPrice: money.Must(12000, "EUR"), CreatedAt: day("2026-01-01")},
		{ID: "new", Date: day("2026-03-05"), NightlyPrice: money.Must(15000, "EUR"), CreatedAt: day("2026-02-01")},
		{ID: "other", Date: day("2026-03-06"), NightlyPrice: money.Must(9000, "EUR"), CreatedAt: day("2026-02-15")},
	}
	got, ok := rates.SelectOverride(overrides, day("2026-03-05"))
	if !ok || got.ID != "new" {
		t.Fatalf("expected newest override, got %+v ok=%v", got, ok)
	}
	if _, ok := rates.SelectOverride(overrides, day("2026-03-07")); ok {
		t.Fatalf("expected no override for uncovered date")
	}
}

func TestSelectStayDiscount_HighestQualifyingTier(t *testing.T) {
	discounts := []rates.LengthOfStayDiscount{
		{ID: "weekly", MinNights: 7, DiscountType: rates.AdjustmentPercentage, Value: 10, Active: true},
		{ID: "monthly", MinNights: 28, DiscountType: rates.AdjustmentPercentage, Value: 25, Active: true},
		{ID: "inactive", MinNights: 30, DiscountType: rates.AdjustmentPercentage, Value: 50},
	}
	ctx := rates.Context{StayNights: 30}
	got, ok := rates.SelectStayDiscount(discounts, day("2026-03-01"), ctx)
	if !ok || got.ID != "monthly" {
		t.Fatalf("expected monthly tier, got %+v ok=%v", got, ok)
	}
	if _, ok := rates.SelectStayDiscount(discounts, day("2026-03-01"), rates.Context{}); ok {
		t.Fatalf("no stay context must select no discount")
	}
}

func TestOccupancyPricing_CalculateAdjustment(t *testing.T) {
	occ := rates.OccupancyPricing{
		BaseOccupancy:    2,
		MaxOccupancy:     4,
		ExtraGuestFee:    money.Must(2000, "EUR"),
		ChildDiscountPct: 50,
	}
	cases := []struct {
		name             string
		adults, children int
		want             int64
	}{
		{"at base", 2, 0, 0},
		{"below base", 1, 0, 0},
		{"one extra adult", 3, 0, 2000},
		{"extra child half fee", 2, 1, 1000},
		{"beyond max capped", 6, 2, 4000}, // as if guests = 4
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := occ.CalculateAdjustment(tc.adults, tc.children)
			if got.Amount != tc.want {
				t.Fatalf("adjustment = %d, want %d", got.Amount, tc.want)
			}
		})
	}
}

func TestPromoCode_FixedNeverExceedsTotal(t *testing.T) {
	promo := rates.PromoCode{Code: "BIG", DiscountType: rates.AdjustmentFixed, Value: 250}
	ctx := rates.Context{PromoCode: "BIG"}
	got := promo.Apply(money.Must(20000, "EUR"), ctx)
	if got.Amount != 0 {
		t.Fatalf("250 off a 200 total must net zero, got %d", got.Amount)
	}
}

func TestPromoCode_UsageCapAndWindow(t *testing.T) {
	promo := rates.PromoCode{Code: "TEN", DiscountType: rates.AdjustmentPercentage, Value: 10, MaxUses: 5, CurrentUses: 5}
	if promo.AppliesTo(day("2026-03-01"), rates.Context{PromoCode: "TEN"}) {
		t.Fatalf("exhausted promo must not apply")
	}
	windowed := rates.PromoCode{Code: "TEN", DiscountType: rates.AdjustmentPercentage, Value: 10, ValidFrom: tp("2026-04-01")}
	if windowed.AppliesTo(day("2026-03-01"), rates.Context{PromoCode: "TEN"}) {
		t.Fatalf("promo outside validity window must not apply")
	}
}

func TestYieldRule_ClampIdempotent(t *testing.T) {
	min, max := int64(5000), int64(14000)
	rule := rates.YieldRule{MinPrice: &min, MaxPrice: &max}
	once := rule.Apply(money.Must(16500, "EUR"), rates.Context{})
	twice := rule.Apply(once, rates.Context{})
	if once.Amount != 14000 || twice.Amount != once.Amount {
		t.Fatalf("clamp not idempotent: once=%d twice=%d", once.Amount, twice.Amount)
	}
	lifted := rule.Apply(money.Must(1000, "EUR"), rates.Context{})
	if lifted.Amount != 5000 {
		t.Fatalf("min clamp failed: %d", lifted.Amount)
	}
}

func TestChannelRateModifier_Markup(t *testing.T) {
	mod := rates.ChannelRateModifier{Channel: "airbnb", ModifierType: rates.AdjustmentPercentage, Value: 10, Active: true}
	if mod.AppliesTo(day("2026-03-05"), rates.Context{Channel: "booking"}) {
		t.Fatalf("modifier must not apply to a different channel")
	}
	got := mod.Apply(money.Must(15000, "EUR"), rates.Context{Channel: "airbnb"})
	if got.Amount != 16500 {
		t.Fatalf("10%% markup on 150.00 = %d, want 16500", got.Amount)
	}
}

func TestFixedAdjustments_RoundHalfUp(t *testing.T) {
	// 19.99 * 100 is 1998.999... in float64; the conversion must round, not
	// truncate, so fixed and percentage adjustments agree on minor units.
	mod := rates.ChannelRateModifier{Channel: "airbnb", ModifierType: rates.AdjustmentFixed, Value: 19.99, Active: true}
	up := mod.Apply(money.Must(10000, "EUR"), rates.Context{Channel: "airbnb"})
	if up.Amount != 11999 {
		t.Fatalf("fixed 19.99 surcharge on 100.00 = %d, want 11999", up.Amount)
	}

	promo := rates.PromoCode{Code: "OFF", DiscountType: rates.AdjustmentFixed, Value: 19.99}
	down := promo.Apply(money.Must(10000, "EUR"), rates.Context{PromoCode: "OFF"})
	if down.Amount != 8001 {
		t.Fatalf("fixed 19.99 discount on 100.00 = %d, want 8001", down.Amount)
	}
}
