package mongo

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	domainchannels "staysync/internal/domain/channels"
)

type MappingRepository struct {
	col *mongo.Collection
}

func NewMappingRepository(db *mongo.Database) *MappingRepository {
	col := db.Collection("channel_mappings")
	idx := mongo.IndexModel{
		Keys:    bson.D{{Key: "channel", Value: 1}, {Key: "external_listing_id", Value: 1}},
		Options: options.Index().SetUnique(true),
	}
	_, _ = col.Indexes().CreateOne(context.Background(), idx)
	return &MappingRepository{col: col}
}

func (r *MappingRepository) ByID(ctx context.Context, id string) (domainchannels.ChannelMapping, error) {
	var doc mappingDocument
	if err := r.col.FindOne(ctx, bson.M{"_id": id}).Decode(&doc); err != nil {
		if err == mongo.ErrNoDocuments {
			return domainchannels.ChannelMapping{}, domainchannels.ErrMappingNotFound
		}
		return domainchannels.ChannelMapping{}, err
	}
	return doc.toDomain(), nil
}

func (r *MappingRepository) ByExternal(ctx context.Context, channel, externalListingID string) (domainchannels.ChannelMapping, error) {
	var doc mappingDocument
	filter := bson.M{"channel": channel, "external_listing_id": externalListingID}
	if err := r.col.FindOne(ctx, filter).Decode(&doc); err != nil {
		if err == mongo.ErrNoDocuments {
			return domainchannels.ChannelMapping{}, domainchannels.ErrMappingNotFound
		}
		return domainchannels.ChannelMapping{}, err
	}
	return doc.toDomain(), nil
}

func (r *MappingRepository) ByProperty(ctx context.Context, organizationID, propertyID string) ([]domainchannels.ChannelMapping, error) {
	return r.find(ctx, bson.M{"organization_id": organizationID, "property_id": propertyID})
}

func (r *MappingRepository) List(ctx context.Context, organizationID string) ([]domainchannels.ChannelMapping, error) {
	return r.find(ctx, bson.M{"organization_id": organizationID})
}

func (r *MappingRepository) find(ctx context.Context, filter bson.M) ([]domainchannels.ChannelMapping, error) {
	opts := options.Find().SetSort(bson.D{{Key: "channel", Value: 1}, {Key: "_id", Value: 1}})
	cursor, err := r.col.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)
	var out []domainchannels.ChannelMapping
	for cursor.Next(ctx) {
		var doc mappingDocument
		if err := cursor.Decode(&doc); err != nil {
			return nil, err
		}
		out = append(out, doc.toDomain())
	}
	return out, cursor.Err()
}

func (r *MappingRepository) Save(ctx context.Context, m domainchannels.ChannelMapping) error {
	doc := newMappingDocument(m)
	_, err := r.col.ReplaceOne(ctx, bson.M{"_id": doc.ID}, doc, options.Replace().SetUpsert(true))
	return err
}

type mappingDocument struct {
	ID                string    `bson:"_id"`
	OrganizationID    string    `bson:"organization_id"`
	PropertyID        string    `bson:"property_id"`
	Channel           string    `bson:"channel"`
	ExternalListingID string    `bson:"external_listing_id"`
	SyncEnabled       bool      `bson:"sync_enabled"`
	CreatedAt         time.Time `bson:"created_at"`
	UpdatedAt         time.Time `bson:"updated_at"`
}

func newMappingDocument(m domainchannels.ChannelMapping) mappingDocument {
	return mappingDocument{
		ID:                m.ID,
		OrganizationID:    m.OrganizationID,
		PropertyID:        m.PropertyID,
		Channel:           m.Channel,
		ExternalListingID: m.ExternalListingID,
		SyncEnabled:       m.SyncEnabled,
		CreatedAt:         m.CreatedAt,
		UpdatedAt:         m.UpdatedAt,
	}
}

func (d mappingDocument) toDomain() domainchannels.ChannelMapping {
	return domainchannels.ChannelMapping{
		ID:                d.ID,
		OrganizationID:    d.OrganizationID,
		PropertyID:        d.PropertyID,
		Channel:           d.Channel,
		ExternalListingID: d.ExternalListingID,
		SyncEnabled:       d.SyncEnabled,
		CreatedAt:         d.CreatedAt,
		UpdatedAt:         d.UpdatedAt,
	}
}

var _ domainchannels.MappingRepository = (*MappingRepository)(nil)
