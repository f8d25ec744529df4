package channels

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"staysync/internal/domain/shared/daterange"
)

// ErrDeliveryFailure marks a transient channel delivery problem; the
// dispatcher retries it with backoff, it never crosses the dispatcher
// boundary.
var ErrDeliveryFailure = errors.New("channels: delivery failure")

// ChannelMapping links an internal property to its external-channel listing.
// Mappings are disabled on unlink, never deleted, to preserve audit history.
type ChannelMapping struct {
	ID                string
	OrganizationID    string
	PropertyID        string
	Channel           string
	ExternalListingID string
	SyncEnabled       bool
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

var ErrMappingNotFound = errors.New("channels: mapping not found")

type MappingRepository interface {
	ByID(ctx context.Context, id string) (ChannelMapping, error)
	ByExternal(ctx context.Context, channel, externalListingID string) (ChannelMapping, error)
	ByProperty(ctx context.Context, organizationID, propertyID string) ([]ChannelMapping, error)
	List(ctx context.Context, organizationID string) ([]ChannelMapping, error)
	Save(ctx context.Context, m ChannelMapping) error
}

// RemoteDay is the channel's last-known view of one date, already parsed out
// of the wire format by an external adapter.
type RemoteDay struct {
	Date        time.Time
	Available   bool
	PriceMinor  int64
	Currency    string
	MinStay     int
	MaxStay     int
	ClosedArr   bool
	ClosedDep   bool
	Reservation string
}

// StateProvider fetches last-known remote calendar state for reconciliation.
// Implementations must honor the context deadline; a timeout is a retryable
// failure, not a fatal one.
type StateProvider interface {
	FetchCalendar(ctx context.Context, mapping ChannelMapping, r daterange.DateRange) ([]RemoteDay, error)
}

// CalendarEvent is the normalized inbound calendar payload from a channel.
type CalendarEvent struct {
	HotelID           string    `json:"hotel_id"`
	RoomID            string    `json:"room_id"`
	Date              time.Time `json:"date"`
	Available         bool      `json:"available"`
	Price             float64   `json:"price"`
	Currency          string    `json:"currency"`
	MinStay           int       `json:"min_stay"`
	MaxStay           int       `json:"max_stay"`
	ClosedOnArrival   bool      `json:"closed_on_arrival"`
	ClosedOnDeparture bool      `json:"closed_on_departure"`
}

// RatePayload is the normalized inbound rate update.
type RatePayload struct {
	RoomID       string    `json:"room_id"`
	Date         time.Time `json:"date"`
	Price        float64   `json:"price"`
	Currency     string    `json:"currency"`
	RateID       string    `json:"rate_id"`
	RatePlanCode string    `json:"rate_plan_code"`
	Availability int       `json:"availability"`
	Restrictions []string  `json:"restrictions"`
}

// Reservation is the normalized inbound reservation payload.
type Reservation struct {
	ReservationID      string    `json:"reservation_id"`
	HotelID            string    `json:"hotel_id"`
	RoomID             string    `json:"room_id"`
	GuestName          string    `json:"guest_name"`
	GuestEmail         string    `json:"guest_email"`
	CheckIn            time.Time `json:"check_in"`
	CheckOut           time.Time `json:"check_out"`
	Status             string    `json:"status"`
	TotalPrice         float64   `json:"total_price"`
	Currency           string    `json:"currency"`
	NumberOfGuests     int       `json:"number_of_guests"`
	ChannelReferenceID string    `json:"channel_reference_id"`
}

// WebhookEnvelope wraps any inbound channel event.
type WebhookEnvelope struct {
	EventType     string          `json:"event_type"`
	HotelID       string          `json:"hotel_id"`
	ReservationID string          `json:"reservation_id,omitempty"`
	Data          json.RawMessage `json:"data"`
	Timestamp     time.Time       `json:"timestamp"`
}
