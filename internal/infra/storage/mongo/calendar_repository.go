package mongo

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	domaincalendar "staysync/internal/domain/calendar"
	"staysync/internal/domain/shared/daterange"
	"staysync/internal/domain/shared/money"
)

// CalendarRepository stores one head document per property carrying the
// optimistic version, plus one document per written day. Both collections are
// written inside the ambient session, so a range mutation is atomic.
type CalendarRepository struct {
	heads *mongo.Collection
	days  *mongo.Collection
}

func NewCalendarRepository(db *mongo.Database) *CalendarRepository {
	days := db.Collection("calendar_days")
	idx := mongo.IndexModel{
		Keys:    bson.D{{Key: "property", Value: 1}, {Key: "date", Value: 1}},
		Options: options.Index().SetUnique(true),
	}
	_, _ = days.Indexes().CreateOne(context.Background(), idx)
	return &CalendarRepository{
		heads: db.Collection("calendar_heads"),
		days:  days,
	}
}

func (r *CalendarRepository) Calendar(ctx context.Context, organizationID, propertyID string) (*domaincalendar.Calendar, error) {
	cal := domaincalendar.NewCalendar(organizationID, propertyID)
	key := headKey(organizationID, propertyID)

	var head headDocument
	err := r.heads.FindOne(ctx, bson.M{"_id": key}).Decode(&head)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return cal, nil
		}
		return nil, err
	}
	cal.Version = head.Version

	cursor, err := r.days.Find(ctx, bson.M{"property": key})
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)
	for cursor.Next(ctx) {
		var doc dayDocument
		if err := cursor.Decode(&doc); err != nil {
			return nil, err
		}
		day := doc.toDomain()
		cal.Days[daterange.DayKey(day.Date)] = &day
	}
	return cal, cursor.Err()
}

func (r *CalendarRepository) Save(ctx context.Context, cal *domaincalendar.Calendar) error {
	key := headKey(cal.OrganizationID, cal.PropertyID)
	filter := bson.M{"_id": key, "version": cal.Version}
	if cal.Version == 0 {
		filter = bson.M{"_id": key, "version": bson.M{"$in": bson.A{0, nil}}}
	}
	update := bson.M{"$set": bson.M{
		"organization_id": cal.OrganizationID,
		"property_id":     cal.PropertyID,
		"version":         cal.Version + 1,
		"updated_at":      time.Now().UTC(),
	}}
	res, err := r.heads.UpdateOne(ctx, filter, update, options.Update().SetUpsert(true))
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return domaincalendar.ErrConcurrentMutation
		}
		return err
	}
	if res.MatchedCount == 0 && res.UpsertedCount == 0 {
		return domaincalendar.ErrConcurrentMutation
	}

	if len(cal.Days) > 0 {
		models := make([]mongo.WriteModel, 0, len(cal.Days))
		for dayKey, day := range cal.Days {
			doc := newDayDocument(key, dayKey, *day)
			models = append(models, mongo.NewUpdateOneModel().
				SetFilter(bson.M{"property": key, "date": dayKey}).
				SetUpdate(bson.M{"$set": doc}).
				SetUpsert(true))
		}
		if _, err := r.days.BulkWrite(ctx, models); err != nil {
			return err
		}
	}
	cal.Version++
	return nil
}

func headKey(organizationID, propertyID string) string {
	return organizationID + "|" + propertyID
}

type headDocument struct {
	ID             string    `bson:"_id"`
	OrganizationID string    `bson:"organization_id"`
	PropertyID     string    `bson:"property_id"`
	Version        int64     `bson:"version"`
	UpdatedAt      time.Time `bson:"updated_at"`
}

type dayDocument struct {
	Property          string `bson:"property"`
	Date              string `bson:"date"`
	DateValue         int64  `bson:"date_ms"`
	Status            string `bson:"status"`
	PriceAmount       int64  `bson:"price_amount"`
	PriceCurrency     string `bson:"price_currency"`
	MinStay           int    `bson:"min_stay"`
	MaxStay           int    `bson:"max_stay"`
	ClosedToArrival   bool   `bson:"closed_to_arrival"`
	ClosedToDeparture bool   `bson:"closed_to_departure"`
	UpdatedAt         int64  `bson:"updated_at"`
}

func newDayDocument(property, dateKey string, day domaincalendar.Day) dayDocument {
	return dayDocument{
		Property:          property,
		Date:              dateKey,
		DateValue:         day.Date.UnixMilli(),
		Status:            string(day.Status),
		PriceAmount:       day.NightlyPrice.Amount,
		PriceCurrency:     day.NightlyPrice.Currency,
		MinStay:           day.MinStay,
		MaxStay:           day.MaxStay,
		ClosedToArrival:   day.ClosedToArrival,
		ClosedToDeparture: day.ClosedToDeparture,
		UpdatedAt:         day.UpdatedAt.UnixMilli(),
	}
}

func (d dayDocument) toDomain() domaincalendar.Day {
	return domaincalendar.Day{
		Date:              time.UnixMilli(d.DateValue).UTC(),
		Status:            domaincalendar.DayStatus(d.Status),
		NightlyPrice:      money.Money{Amount: d.PriceAmount, Currency: d.PriceCurrency},
		MinStay:           d.MinStay,
		MaxStay:           d.MaxStay,
		ClosedToArrival:   d.ClosedToArrival,
		ClosedToDeparture: d.ClosedToDeparture,
		UpdatedAt:         time.UnixMilli(d.UpdatedAt).UTC(),
	}
}

var _ domaincalendar.Repository = (*CalendarRepository)(nil)
