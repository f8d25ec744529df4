package mongo

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	domainrates "staysync/internal/domain/rates"
	"staysync/internal/domain/shared/money"
)

// RateSetRepository stores the whole rate model of a property as a single
// document; resolution always loads it in one read.
type RateSetRepository struct {
	col *mongo.Collection
}

func NewRateSetRepository(db *mongo.Database) *RateSetRepository {
	return &RateSetRepository{col: db.Collection("rate_sets")}
}

func (r *RateSetRepository) RateSet(ctx context.Context, organizationID, propertyID string) (domainrates.RateSet, error) {
	var doc rateSetDocument
	err := r.col.FindOne(ctx, bson.M{"_id": headKey(organizationID, propertyID)}).Decode(&doc)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return domainrates.RateSet{}, nil
		}
		return domainrates.RateSet{}, err
	}
	return doc.toDomain(), nil
}

// Put replaces the rate model of a property outright.
func (r *RateSetRepository) Put(ctx context.Context, organizationID, propertyID string, set domainrates.RateSet) error {
	doc := newRateSetDocument(organizationID, propertyID, set)
	_, err := r.col.ReplaceOne(ctx, bson.M{"_id": doc.ID}, doc, options.Replace().SetUpsert(true))
	return err
}

type rateSetDocument struct {
	ID             string             `bson:"_id"`
	OrganizationID string             `bson:"organization_id"`
	PropertyID     string             `bson:"property_id"`
	Plans          []planDocument     `bson:"plans,omitempty"`
	Overrides      []overrideDocument `bson:"overrides,omitempty"`
	StayDiscounts  []stayDocument     `bson:"stay_discounts,omitempty"`
	Occupancy      *occupancyDocument `bson:"occupancy,omitempty"`
	Yield          *yieldDocument     `bson:"yield,omitempty"`
	Promos         []promoDocument    `bson:"promos,omitempty"`
	Channels       []chanModDocument  `bson:"channel_modifiers,omitempty"`
	UpdatedAt      time.Time          `bson:"updated_at"`
}

type planDocument struct {
	ID              string     `bson:"id"`
	Type            string     `bson:"type"`
	From            *time.Time `bson:"from,omitempty"`
	To              *time.Time `bson:"to,omitempty"`
	PriceAmount     int64      `bson:"price_amount"`
	PriceCurrency   string     `bson:"price_currency"`
	MinStayOverride int        `bson:"min_stay_override"`
	CreatedAt       time.Time  `bson:"created_at"`
}

type overrideDocument struct {
	ID            string    `bson:"id"`
	Date          time.Time `bson:"date"`
	PriceAmount   int64     `bson:"price_amount"`
	PriceCurrency string    `bson:"price_currency"`
	ActorID       string    `bson:"actor_id"`
	CreatedAt     time.Time `bson:"created_at"`
}

type stayDocument struct {
	ID           string     `bson:"id"`
	MinNights    int        `bson:"min_nights"`
	MaxNights    int        `bson:"max_nights"`
	DiscountType string     `bson:"discount_type"`
	Value        float64    `bson:"value"`
	Active       bool       `bson:"active"`
	ValidFrom    *time.Time `bson:"valid_from,omitempty"`
	ValidTo      *time.Time `bson:"valid_to,omitempty"`
}

type occupancyDocument struct {
	BaseOccupancy    int     `bson:"base_occupancy"`
	MaxOccupancy     int     `bson:"max_occupancy"`
	FeeAmount        int64   `bson:"fee_amount"`
	FeeCurrency      string  `bson:"fee_currency"`
	ChildDiscountPct float64 `bson:"child_discount_pct"`
}

type yieldDocument struct {
	MinPrice *int64 `bson:"min_price,omitempty"`
	MaxPrice *int64 `bson:"max_price,omitempty"`
}

type promoDocument struct {
	ID           string     `bson:"id"`
	Code         string     `bson:"code"`
	DiscountType string     `bson:"discount_type"`
	Value        float64    `bson:"value"`
	PropertyID   string     `bson:"property_id"`
	ValidFrom    *time.Time `bson:"valid_from,omitempty"`
	ValidTo      *time.Time `bson:"valid_to,omitempty"`
	MaxUses      int        `bson:"max_uses"`
	CurrentUses  int        `bson:"current_uses"`
}

type chanModDocument struct {
	ID           string     `bson:"id"`
	Channel      string     `bson:"channel"`
	ModifierType string     `bson:"modifier_type"`
	Value        float64    `bson:"value"`
	From         *time.Time `bson:"from,omitempty"`
	To           *time.Time `bson:"to,omitempty"`
	Active       bool       `bson:"active"`
}

func newRateSetDocument(organizationID, propertyID string, set domainrates.RateSet) rateSetDocument {
	doc := rateSetDocument{
		ID:             headKey(organizationID, propertyID),
		OrganizationID: organizationID,
		PropertyID:     propertyID,
		UpdatedAt:      time.Now().UTC(),
	}
	for _, p := range set.Plans {
		doc.Plans = append(doc.Plans, planDocument{
			ID: p.ID, Type: string(p.Type), From: p.From, To: p.To,
			PriceAmount: p.NightlyPrice.Amount, PriceCurrency: p.NightlyPrice.Currency,
			MinStayOverride: p.MinStayOverride, CreatedAt: p.CreatedAt,
		})
	}
	for _, o := range set.Overrides {
		doc.Overrides = append(doc.Overrides, overrideDocument{
			ID: o.ID, Date: o.Date,
			PriceAmount: o.NightlyPrice.Amount, PriceCurrency: o.NightlyPrice.Currency,
			ActorID: o.ActorID, CreatedAt: o.CreatedAt,
		})
	}
	for _, d := range set.StayDiscounts {
		doc.StayDiscounts = append(doc.StayDiscounts, stayDocument{
			ID: d.ID, MinNights: d.MinNights, MaxNights: d.MaxNights,
			DiscountType: string(d.DiscountType), Value: d.Value, Active: d.Active,
			ValidFrom: d.ValidFrom, ValidTo: d.ValidTo,
		})
	}
	if set.Occupancy != nil {
		doc.Occupancy = &occupancyDocument{
			BaseOccupancy: set.Occupancy.BaseOccupancy, MaxOccupancy: set.Occupancy.MaxOccupancy,
			FeeAmount: set.Occupancy.ExtraGuestFee.Amount, FeeCurrency: set.Occupancy.ExtraGuestFee.Currency,
			ChildDiscountPct: set.Occupancy.ChildDiscountPct,
		}
	}
	if set.Yield != nil {
		doc.Yield = &yieldDocument{MinPrice: set.Yield.MinPrice, MaxPrice: set.Yield.MaxPrice}
	}
	for _, p := range set.Promos {
		doc.Promos = append(doc.Promos, promoDocument{
			ID: p.ID, Code: p.Code, DiscountType: string(p.DiscountType), Value: p.Value,
			PropertyID: p.PropertyID, ValidFrom: p.ValidFrom, ValidTo: p.ValidTo,
			MaxUses: p.MaxUses, CurrentUses: p.CurrentUses,
		})
	}
	for _, m := range set.ChannelModifiers {
		doc.Channels = append(doc.Channels, chanModDocument{
			ID: m.ID, Channel: m.Channel, ModifierType: string(m.ModifierType), Value: m.Value,
			From: m.From, To: m.To, Active: m.Active,
		})
	}
	return doc
}

func (d rateSetDocument) toDomain() domainrates.RateSet {
	var set domainrates.RateSet
	for _, p := range d.Plans {
		set.Plans = append(set.Plans, domainrates.RatePlan{
			ID: p.ID, Type: domainrates.PlanType(p.Type), From: p.From, To: p.To,
			NightlyPrice:    money.Money{Amount: p.PriceAmount, Currency: p.PriceCurrency},
			MinStayOverride: p.MinStayOverride, CreatedAt: p.CreatedAt,
		})
	}
	for _, o := range d.Overrides {
		set.Overrides = append(set.Overrides, domainrates.RateOverride{
			ID: o.ID, Date: o.Date,
			NightlyPrice: money.Money{Amount: o.PriceAmount, Currency: o.PriceCurrency},
			ActorID:      o.ActorID, CreatedAt: o.CreatedAt,
		})
	}
	for _, s := range d.StayDiscounts {
		set.StayDiscounts = append(set.StayDiscounts, domainrates.LengthOfStayDiscount{
			ID: s.ID, MinNights: s.MinNights, MaxNights: s.MaxNights,
			DiscountType: domainrates.AdjustmentType(s.DiscountType), Value: s.Value,
			Active: s.Active, ValidFrom: s.ValidFrom, ValidTo: s.ValidTo,
		})
	}
	if d.Occupancy != nil {
		set.Occupancy = &domainrates.OccupancyPricing{
			BaseOccupancy: d.Occupancy.BaseOccupancy, MaxOccupancy: d.Occupancy.MaxOccupancy,
			ExtraGuestFee:    money.Money{Amount: d.Occupancy.FeeAmount, Currency: d.Occupancy.FeeCurrency},
			ChildDiscountPct: d.Occupancy.ChildDiscountPct,
		}
	}
	if d.Yield != nil {
		set.Yield = &domainrates.YieldRule{MinPrice: d.Yield.MinPrice, MaxPrice: d.Yield.MaxPrice}
	}
	for _, p := range d.Promos {
		set.Promos = append(set.Promos, domainrates.PromoCode{
			ID: p.ID, Code: p.Code, DiscountType: domainrates.AdjustmentType(p.DiscountType),
			Value: p.Value, PropertyID: p.PropertyID, ValidFrom: p.ValidFrom, ValidTo: p.ValidTo,
			MaxUses: p.MaxUses, CurrentUses: p.CurrentUses,
		})
	}
	for _, m := range d.Channels {
		set.ChannelModifiers = append(set.ChannelModifiers, domainrates.ChannelRateModifier{
			ID: m.ID, Channel: m.Channel, ModifierType: domainrates.AdjustmentType(m.ModifierType),
			Value: m.Value, From: m.From, To: m.To, Active: m.Active,
		})
	}
	return set
}

var _ domainrates.Repository = (*RateSetRepository)(nil)
