package calendar

import (
	"time"

	"staysync/internal/domain/shared/daterange"
	"staysync/internal/domain/shared/money"
)

const AggregateType = "calendar"

type DatesBlocked struct {
	OrganizationID string              `json:"organization_id"`
	PropertyID     string              `json:"property_id"`
	Range          daterange.DateRange `json:"range"`
	Source         Source              `json:"source"`
	Notes          string              `json:"notes,omitempty"`
	ActorID        string              `json:"actor_id"`
	At             time.Time           `json:"at"`
}

func (e DatesBlocked) EventName() string     { return "calendar.dates_blocked" }
func (e DatesBlocked) AggregateType() string { return AggregateType }
func (e DatesBlocked) AggregateID() string   { return e.PropertyID }
func (e DatesBlocked) OccurredAt() time.Time { return e.At }

type DatesUnblocked struct {
	OrganizationID string              `json:"organization_id"`
	PropertyID     string              `json:"property_id"`
	Range          daterange.DateRange `json:"range"`
	Source         Source              `json:"source"`
	ActorID        string              `json:"actor_id"`
	At             time.Time           `json:"at"`
}

func (e DatesUnblocked) EventName() string     { return "calendar.dates_unblocked" }
func (e DatesUnblocked) AggregateType() string { return AggregateType }
func (e DatesUnblocked) AggregateID() string   { return e.PropertyID }
func (e DatesUnblocked) OccurredAt() time.Time { return e.At }

type PriceUpdated struct {
	OrganizationID string              `json:"organization_id"`
	PropertyID     string              `json:"property_id"`
	Range          daterange.DateRange `json:"range"`
	Price          money.Money         `json:"price"`
	ActorID        string              `json:"actor_id"`
	At             time.Time           `json:"at"`
}

func (e PriceUpdated) EventName() string     { return "calendar.price_updated" }
func (e PriceUpdated) AggregateType() string { return AggregateType }
func (e PriceUpdated) AggregateID() string   { return e.PropertyID }
func (e PriceUpdated) OccurredAt() time.Time { return e.At }

type ReservationApplied struct {
	OrganizationID string              `json:"organization_id"`
	PropertyID     string              `json:"property_id"`
	Range          daterange.DateRange `json:"range"`
	ReservationID  string              `json:"reservation_id"`
	Channel        string              `json:"channel"`
	At             time.Time           `json:"at"`
}

func (e ReservationApplied) EventName() string     { return "calendar.reservation_applied" }
func (e ReservationApplied) AggregateType() string { return AggregateType }
func (e ReservationApplied) AggregateID() string   { return e.PropertyID }
func (e ReservationApplied) OccurredAt() time.Time { return e.At }

type ReservationReleased struct {
	OrganizationID string              `json:"organization_id"`
	PropertyID     string              `json:"property_id"`
	Range          daterange.DateRange `json:"range"`
	ReservationID  string              `json:"reservation_id"`
	At             time.Time           `json:"at"`
}

func (e ReservationReleased) EventName() string     { return "calendar.reservation_released" }
func (e ReservationReleased) AggregateType() string { return AggregateType }
func (e ReservationReleased) AggregateID() string   { return e.PropertyID }
func (e ReservationReleased) OccurredAt() time.Time { return e.At }

// PricingPushRequested asks channel adapters to refresh remote rates for the
// range; produced by the pushPricing operation and by reconciliation repairs.
type PricingPushRequested struct {
	OrganizationID string              `json:"organization_id"`
	PropertyID     string              `json:"property_id"`
	Range          daterange.DateRange `json:"range"`
	Channel        string              `json:"channel,omitempty"`
	Reason         string              `json:"reason,omitempty"`
	At             time.Time           `json:"at"`
}

func (e PricingPushRequested) EventName() string     { return "calendar.pricing_push_requested" }
func (e PricingPushRequested) AggregateType() string { return AggregateType }
func (e PricingPushRequested) AggregateID() string   { return e.PropertyID }
func (e PricingPushRequested) OccurredAt() time.Time { return e.At }

// SyncRepairRequested asks one channel to re-apply the authoritative local
// state of a single date; produced by reconciliation when the remote side is
// missing or stale.
type SyncRepairRequested struct {
	OrganizationID string    `json:"organization_id"`
	PropertyID     string    `json:"property_id"`
	Channel        string    `json:"channel"`
	MappingID      string    `json:"mapping_id"`
	Date           time.Time `json:"date"`
	Reason         string    `json:"reason"`
	At             time.Time `json:"at"`
}

func (e SyncRepairRequested) EventName() string     { return "calendar.sync_repair_requested" }
func (e SyncRepairRequested) AggregateType() string { return AggregateType }
func (e SyncRepairRequested) AggregateID() string   { return e.PropertyID }
func (e SyncRepairRequested) OccurredAt() time.Time { return e.At }
