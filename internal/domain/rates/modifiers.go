package rates

import (
	"math"
	"time"

	"staysync/internal/domain/shared/money"
)

// LengthOfStayDiscount applies once per stay when the stay length falls in
// [MinNights, MaxNights]; MaxNights 0 means unbounded.
type LengthOfStayDiscount struct {
	ID           string
	MinNights    int
	MaxNights    int
	DiscountType AdjustmentType
	Value        float64
	Active       bool
	ValidFrom    *time.Time
	ValidTo      *time.Time
}

func (d LengthOfStayDiscount) AppliesTo(date time.Time, ctx Context) bool {
	if !d.Active || ctx.StayNights <= 0 {
		return false
	}
	if ctx.StayNights < d.MinNights {
		return false
	}
	if d.MaxNights > 0 && ctx.StayNights > d.MaxNights {
		return false
	}
	return withinWindow(date, d.ValidFrom, d.ValidTo)
}

func (d LengthOfStayDiscount) Apply(price money.Money, ctx Context) money.Money {
	return applyDiscount(price, d.DiscountType, d.Value)
}

// SelectStayDiscount picks the single best-matching discount: the highest
// qualifying MinNights tier, so longer-stay tiers shadow broader ones.
func SelectStayDiscount(discounts []LengthOfStayDiscount, date time.Time, ctx Context) (LengthOfStayDiscount, bool) {
	var best LengthOfStayDiscount
	found := false
	for _, d := range discounts {
		if !d.AppliesTo(date, ctx) {
			continue
		}
		if !found || d.MinNights > best.MinNights {
			best = d
			found = true
		}
	}
	return best, found
}

// OccupancyPricing adds a surcharge for guests above the base occupancy,
// counting at most MaxOccupancy guests. Children count with a discount.
type OccupancyPricing struct {
	BaseOccupancy    int
	MaxOccupancy     int
	ExtraGuestFee    money.Money
	ChildDiscountPct float64
}

func (o OccupancyPricing) AppliesTo(date time.Time, ctx Context) bool {
	return ctx.Adults+ctx.Children > 0
}

// CalculateAdjustment returns the additive surcharge for the given guest mix.
func (o OccupancyPricing) CalculateAdjustment(adults, children int) money.Money {
	fee := o.ExtraGuestFee
	if fee.Currency == "" || o.BaseOccupancy <= 0 {
		return money.Money{Currency: fee.Currency}
	}
	childWeight := 1 - o.ChildDiscountPct/100
	if childWeight < 0 {
		childWeight = 0
	}
	weighted := float64(adults) + float64(children)*childWeight
	if o.MaxOccupancy > 0 && weighted > float64(o.MaxOccupancy) {
		weighted = float64(o.MaxOccupancy)
	}
	extra := weighted - float64(o.BaseOccupancy)
	if extra <= 0 {
		return money.Money{Currency: fee.Currency}
	}
	// fee x extra, half-up rounded on minor units
	return fee.Percent(extra * 100)
}

func (o OccupancyPricing) Apply(price money.Money, ctx Context) money.Money {
	adj := o.CalculateAdjustment(ctx.Adults, ctx.Children)
	if adj.Currency == "" {
		return price
	}
	out, err := price.Add(adj)
	if err != nil {
		return price
	}
	return out
}

// YieldRule is the hard min/max price clamp applied last in resolution.
// Clamping is idempotent.
type YieldRule struct {
	MinPrice *int64
	MaxPrice *int64
}

func (y YieldRule) AppliesTo(date time.Time, ctx Context) bool {
	return y.MinPrice != nil || y.MaxPrice != nil
}

func (y YieldRule) Apply(price money.Money, ctx Context) money.Money {
	return price.Clamp(y.MinPrice, y.MaxPrice)
}

// PromoCode is an optionally property-scoped discount with a validity window
// and a usage cap; MaxUses 0 means unlimited.
type PromoCode struct {
	ID           string
	Code         string
	DiscountType AdjustmentType
	Value        float64
	PropertyID   string
	ValidFrom    *time.Time
	ValidTo      *time.Time
	MaxUses      int
	CurrentUses  int
}

func (p PromoCode) AppliesTo(date time.Time, ctx Context) bool {
	if ctx.PromoCode == "" || ctx.PromoCode != p.Code {
		return false
	}
	if p.MaxUses > 0 && p.CurrentUses >= p.MaxUses {
		return false
	}
	return withinWindow(date, p.ValidFrom, p.ValidTo)
}

func (p PromoCode) Apply(price money.Money, ctx Context) money.Money {
	return applyDiscount(price, p.DiscountType, p.Value)
}

// ChannelRateModifier is a channel-specific markup or markdown, e.g. a
// commission pass-through. Negative values mark down.
type ChannelRateModifier struct {
	ID           string
	Channel      string
	ModifierType AdjustmentType
	Value        float64
	From         *time.Time
	To           *time.Time
	Active       bool
}

func (m ChannelRateModifier) AppliesTo(date time.Time, ctx Context) bool {
	if !m.Active || ctx.Channel == "" || ctx.Channel != m.Channel {
		return false
	}
	return withinWindow(date, m.From, m.To)
}

func (m ChannelRateModifier) Apply(price money.Money, ctx Context) money.Money {
	switch m.ModifierType {
	case AdjustmentPercentage:
		delta := price.Percent(m.Value)
		out, err := price.Add(delta)
		if err != nil {
			return price
		}
		return out.FloorZero()
	case AdjustmentFixed:
		out := money.Money{Currency: price.Currency, Amount: price.Amount + fixedMinor(m.Value)}
		return out.FloorZero()
	}
	return price
}

// applyDiscount subtracts either a percentage of the running total (half-up
// rounded) or a fixed amount capped at the running total, so a discount never
// exceeds the price it discounts.
func applyDiscount(price money.Money, kind AdjustmentType, value float64) money.Money {
	switch kind {
	case AdjustmentPercentage:
		cut := price.Percent(value)
		out, err := price.Sub(cut)
		if err != nil {
			return price
		}
		return out.FloorZero()
	case AdjustmentFixed:
		cut := fixedMinor(value)
		if cut > price.Amount {
			cut = price.Amount
		}
		return money.Money{Currency: price.Currency, Amount: price.Amount - cut}.FloorZero()
	}
	return price
}

// fixedMinor converts a major-unit amount to minor units, rounded half-up
// like money.Percent, so fixed and percentage adjustments share one rounding
// rule.
func fixedMinor(value float64) int64 {
	return int64(math.Floor(value*100 + 0.5))
}
