package pricingops

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"staysync/internal/app/dto"
	"staysync/internal/app/queries"
	"staysync/internal/app/uow"
	"staysync/internal/domain/pricing"
	"staysync/internal/domain/shared/daterange"
)

const getPricingKey = "pricing.resolve"

// Cache is a read-through cache for resolved pricing. Resolution is pure, so
// a cached result is valid until the rate model changes; a short TTL bounds
// staleness after rate edits.
type Cache interface {
	Get(ctx context.Context, key string, dst any) (bool, error)
	Set(ctx context.Context, key string, v any, ttl time.Duration) error
}

type GetPricingQuery struct {
	OrganizationID string
	PropertyID     string
	From           time.Time
	To             time.Time
	Channel        string
	StayNights     int
	Adults         int
	Children       int
	PromoCode      string
}

func (q GetPricingQuery) Key() string { return getPricingKey }

func (q GetPricingQuery) cacheKey() string {
	return fmt.Sprintf("pricing:%s:%s:%s:%s:%s:%d:%d:%d:%s",
		q.OrganizationID, q.PropertyID, q.Channel,
		daterange.DayKey(q.From), daterange.DayKey(q.To),
		q.StayNights, q.Adults, q.Children, q.PromoCode)
}

type GetPricingHandler struct {
	UoWFactory uow.UoWFactory
	Cache      Cache
	CacheTTL   time.Duration
	Logger     *slog.Logger
}

func (h *GetPricingHandler) Handle(ctx context.Context, q GetPricingQuery) (dto.Pricing, error) {
	r, err := daterange.New(q.From, q.To)
	if err != nil {
		return dto.Pricing{}, err
	}

	if h.Cache != nil {
		var cached dto.Pricing
		if hit, err := h.Cache.Get(ctx, q.cacheKey(), &cached); err == nil && hit {
			return cached, nil
		}
	}

	unit, ctx, cleanup, err := uow.Acquire(ctx, h.UoWFactory, uow.TxOptions{ReadOnly: true})
	if err != nil {
		return dto.Pricing{}, err
	}
	if cleanup != nil {
		defer cleanup()
	}

	resolver := pricing.NewResolver(unit.Rates())
	resolved, err := resolver.ResolvePriceRange(ctx, pricing.Query{
		OrganizationID: q.OrganizationID,
		PropertyID:     q.PropertyID,
		Range:          r,
		Channel:        q.Channel,
		StayNights:     q.StayNights,
		Adults:         q.Adults,
		Children:       q.Children,
		PromoCode:      q.PromoCode,
	})
	if err != nil {
		return dto.Pricing{}, err
	}

	result := dto.MapPricing(q.OrganizationID, q.PropertyID, q.Channel, resolved)
	if h.Cache != nil {
		if err := h.Cache.Set(ctx, q.cacheKey(), result, h.ttl()); err != nil && h.Logger != nil {
			h.Logger.Warn("pricing cache set failed", "error", err)
		}
	}
	return result, nil
}

func (h *GetPricingHandler) ttl() time.Duration {
	if h.CacheTTL > 0 {
		return h.CacheTTL
	}
	return 5 * time.Minute
}

var _ queries.Handler[GetPricingQuery, dto.Pricing] = (*GetPricingHandler)(nil)
