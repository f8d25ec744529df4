package channel

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	domainchannels "staysync/internal/domain/channels"
	"staysync/internal/domain/shared/daterange"
)

// StateRecorder persists channel state observations as they arrive. The
// recorded view is what reconciliation later diffs local truth against.
type StateRecorder interface {
	Record(ctx context.Context, channelName, externalListingID string, day domainchannels.RemoteDay) error
}

type stateDocument struct {
	ID                string    `bson:"_id"`
	Channel           string    `bson:"channel"`
	ExternalListingID string    `bson:"external_listing_id"`
	Date              string    `bson:"date"`
	DateMs            int64     `bson:"date_ms"`
	Available         bool      `bson:"available"`
	PriceMinor        int64     `bson:"price_minor"`
	Currency          string    `bson:"currency,omitempty"`
	MinStay           int       `bson:"min_stay,omitempty"`
	MaxStay           int       `bson:"max_stay,omitempty"`
	ClosedArrival     bool      `bson:"closed_arrival,omitempty"`
	ClosedDeparture   bool      `bson:"closed_departure,omitempty"`
	Reservation       string    `bson:"reservation,omitempty"`
	ObservedAt        time.Time `bson:"observed_at"`
}

// MongoStateStore keeps the last-known remote calendar per channel listing,
// one document per (channel, listing, date). Later observations overwrite
// earlier ones.
type MongoStateStore struct {
	col *mongo.Collection
}

func NewMongoStateStore(db *mongo.Database) *MongoStateStore {
	col := db.Collection("channel_state")
	idx := mongo.IndexModel{Keys: bson.D{
		{Key: "channel", Value: 1},
		{Key: "external_listing_id", Value: 1},
		{Key: "date_ms", Value: 1},
	}}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_, _ = col.Indexes().CreateOne(ctx, idx)
	return &MongoStateStore{col: col}
}

func (s *MongoStateStore) Record(ctx context.Context, channelName, externalListingID string, day domainchannels.RemoteDay) error {
	date := daterange.Day(day.Date)
	doc := stateDocument{
		ID:                channelName + "|" + externalListingID + "|" + daterange.DayKey(date),
		Channel:           channelName,
		ExternalListingID: externalListingID,
		Date:              daterange.DayKey(date),
		DateMs:            date.UnixMilli(),
		Available:         day.Available,
		PriceMinor:        day.PriceMinor,
		Currency:          day.Currency,
		MinStay:           day.MinStay,
		MaxStay:           day.MaxStay,
		ClosedArrival:     day.ClosedArr,
		ClosedDeparture:   day.ClosedDep,
		Reservation:       day.Reservation,
		ObservedAt:        time.Now().UTC(),
	}
	_, err := s.col.ReplaceOne(ctx, bson.M{"_id": doc.ID}, doc, options.Replace().SetUpsert(true))
	return err
}

func (s *MongoStateStore) FetchCalendar(ctx context.Context, mapping domainchannels.ChannelMapping, r daterange.DateRange) ([]domainchannels.RemoteDay, error) {
	filter := bson.M{
		"channel":             mapping.Channel,
		"external_listing_id": mapping.ExternalListingID,
		"date_ms": bson.M{
			"$gte": r.From.UnixMilli(),
			"$lt":  r.To.UnixMilli(),
		},
	}
	cursor, err := s.col.Find(ctx, filter, options.Find().SetSort(bson.D{{Key: "date_ms", Value: 1}}))
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var out []domainchannels.RemoteDay
	for cursor.Next(ctx) {
		var doc stateDocument
		if err := cursor.Decode(&doc); err != nil {
			return nil, err
		}
		out = append(out, domainchannels.RemoteDay{
			Date:        time.UnixMilli(doc.DateMs).UTC(),
			Available:   doc.Available,
			PriceMinor:  doc.PriceMinor,
			Currency:    doc.Currency,
			MinStay:     doc.MinStay,
			MaxStay:     doc.MaxStay,
			ClosedArr:   doc.ClosedArrival,
			ClosedDep:   doc.ClosedDeparture,
			Reservation: doc.Reservation,
		})
	}
	return out, cursor.Err()
}

var (
	_ domainchannels.StateProvider = (*MongoStateStore)(nil)
	_ StateRecorder                = (*MongoStateStore)(nil)
)
