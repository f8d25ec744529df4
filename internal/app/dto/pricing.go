package dto

import (
	"time"

	"staysync/internal/domain/pricing"
)

type PricingDay struct {
	Date       time.Time `json:"date"`
	PriceMinor int64     `json:"price_minor"`
	Currency   string    `json:"currency"`
}

type Pricing struct {
	OrganizationID string       `json:"organization_id"`
	PropertyID     string       `json:"property_id"`
	Channel        string       `json:"channel,omitempty"`
	Days           []PricingDay `json:"days"`
}

func MapPricing(organizationID, propertyID, channel string, resolved []pricing.ResolvedDay) Pricing {
	days := make([]PricingDay, 0, len(resolved))
	for _, d := range resolved {
		days = append(days, PricingDay{Date: d.Date, PriceMinor: d.Price.Amount, Currency: d.Price.Currency})
	}
	return Pricing{OrganizationID: organizationID, PropertyID: propertyID, Channel: channel, Days: days}
}

// PushResult reports how many channel pushes the pushPricing operation queued.
type PushResult struct {
	PropertyID string   `json:"property_id"`
	Channels   []string `json:"channels"`
}
