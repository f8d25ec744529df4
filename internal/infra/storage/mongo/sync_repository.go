package mongo

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	domainsync "staysync/internal/domain/sync"
)

// RunRepository is the append-only reconciliation run log.
type RunRepository struct {
	col *mongo.Collection
}

func NewRunRepository(db *mongo.Database) *RunRepository {
	col := db.Collection("reconciliation_runs")
	idx := mongo.IndexModel{Keys: bson.D{{Key: "organization_id", Value: 1}, {Key: "started_at", Value: -1}}}
	_, _ = col.Indexes().CreateOne(context.Background(), idx)
	return &RunRepository{col: col}
}

func (r *RunRepository) Append(ctx context.Context, run domainsync.ReconciliationRun) error {
	_, err := r.col.InsertOne(ctx, newRunDocument(run))
	return err
}

func (r *RunRepository) List(ctx context.Context, organizationID string, limit int) ([]domainsync.ReconciliationRun, error) {
	opts := options.Find().SetSort(bson.D{{Key: "started_at", Value: -1}})
	if limit > 0 {
		opts = opts.SetLimit(int64(limit))
	}
	cursor, err := r.col.Find(ctx, bson.M{"organization_id": organizationID}, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)
	var out []domainsync.ReconciliationRun
	for cursor.Next(ctx) {
		var doc runDocument
		if err := cursor.Decode(&doc); err != nil {
			return nil, err
		}
		out = append(out, doc.toDomain())
	}
	return out, cursor.Err()
}

func (r *RunRepository) Stats(ctx context.Context, organizationID string) (domainsync.RunStats, error) {
	var stats domainsync.RunStats
	filter := bson.M{"organization_id": organizationID}
	total, err := r.col.CountDocuments(ctx, filter)
	if err != nil {
		return stats, err
	}
	stats.Total = total
	completed, err := r.col.CountDocuments(ctx, bson.M{"organization_id": organizationID, "status": string(domainsync.RunCompleted)})
	if err != nil {
		return stats, err
	}
	stats.Completed = completed
	failed, err := r.col.CountDocuments(ctx, bson.M{"organization_id": organizationID, "status": string(domainsync.RunFailed)})
	if err != nil {
		return stats, err
	}
	stats.Failed = failed

	opts := options.FindOne().SetSort(bson.D{{Key: "started_at", Value: -1}})
	var last runDocument
	if err := r.col.FindOne(ctx, filter, opts).Decode(&last); err != nil {
		if err == mongo.ErrNoDocuments {
			return stats, nil
		}
		return stats, err
	}
	stats.LastRunAt = last.StartedAt
	return stats, nil
}

type runDocument struct {
	ID                string    `bson:"_id"`
	OrganizationID    string    `bson:"organization_id"`
	PropertyID        string    `bson:"property_id,omitempty"`
	Trigger           string    `bson:"trigger"`
	Status            string    `bson:"status"`
	StartedAt         time.Time `bson:"started_at"`
	FinishedAt        time.Time `bson:"finished_at"`
	PropertiesChecked int       `bson:"properties_checked"`
	ConflictsFound    int       `bson:"conflicts_found"`
	RepairsQueued     int       `bson:"repairs_queued"`
	Error             string    `bson:"error,omitempty"`
}

func newRunDocument(run domainsync.ReconciliationRun) runDocument {
	return runDocument{
		ID:                run.ID,
		OrganizationID:    run.OrganizationID,
		PropertyID:        run.PropertyID,
		Trigger:           string(run.Trigger),
		Status:            string(run.Status),
		StartedAt:         run.StartedAt,
		FinishedAt:        run.FinishedAt,
		PropertiesChecked: run.PropertiesChecked,
		ConflictsFound:    run.ConflictsFound,
		RepairsQueued:     run.RepairsQueued,
		Error:             run.Error,
	}
}

func (d runDocument) toDomain() domainsync.ReconciliationRun {
	return domainsync.ReconciliationRun{
		ID:                d.ID,
		OrganizationID:    d.OrganizationID,
		PropertyID:        d.PropertyID,
		Trigger:           domainsync.RunTrigger(d.Trigger),
		Status:            domainsync.RunStatus(d.Status),
		StartedAt:         d.StartedAt,
		FinishedAt:        d.FinishedAt,
		PropertiesChecked: d.PropertiesChecked,
		ConflictsFound:    d.ConflictsFound,
		RepairsQueued:     d.RepairsQueued,
		Error:             d.Error,
	}
}

// ConflictRepository stores classified reconciliation conflicts.
type ConflictRepository struct {
	col *mongo.Collection
}

func NewConflictRepository(db *mongo.Database) *ConflictRepository {
	col := db.Collection("sync_conflicts")
	idx := mongo.IndexModel{Keys: bson.D{{Key: "organization_id", Value: 1}, {Key: "resolved", Value: 1}, {Key: "detected_at", Value: -1}}}
	_, _ = col.Indexes().CreateOne(context.Background(), idx)
	return &ConflictRepository{col: col}
}

func (r *ConflictRepository) Add(ctx context.Context, c domainsync.Conflict) error {
	_, err := r.col.InsertOne(ctx, newConflictDocument(c))
	return err
}

func (r *ConflictRepository) List(ctx context.Context, organizationID string, onlyOpen bool, limit int) ([]domainsync.Conflict, error) {
	filter := bson.M{"organization_id": organizationID}
	if onlyOpen {
		filter["resolved"] = false
	}
	opts := options.Find().SetSort(bson.D{{Key: "detected_at", Value: -1}})
	if limit > 0 {
		opts = opts.SetLimit(int64(limit))
	}
	cursor, err := r.col.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)
	var out []domainsync.Conflict
	for cursor.Next(ctx) {
		var doc conflictDocument
		if err := cursor.Decode(&doc); err != nil {
			return nil, err
		}
		out = append(out, doc.toDomain())
	}
	return out, cursor.Err()
}

func (r *ConflictRepository) CountByKind(ctx context.Context, organizationID string) (map[domainsync.ConflictKind]int64, error) {
	out := make(map[domainsync.ConflictKind]int64)
	for _, kind := range []domainsync.ConflictKind{
		domainsync.ConflictMissingRemote,
		domainsync.ConflictStaleRemote,
		domainsync.ConflictUnknownRemote,
	} {
		n, err := r.col.CountDocuments(ctx, bson.M{"organization_id": organizationID, "kind": string(kind), "resolved": false})
		if err != nil {
			return nil, err
		}
		if n > 0 {
			out[kind] = n
		}
	}
	return out, nil
}

type conflictDocument struct {
	ID             string    `bson:"_id"`
	OrganizationID string    `bson:"organization_id"`
	PropertyID     string    `bson:"property_id"`
	Channel        string    `bson:"channel"`
	Date           time.Time `bson:"date"`
	Kind           string    `bson:"kind"`
	LocalStatus    string    `bson:"local_status,omitempty"`
	RemoteStatus   string    `bson:"remote_status,omitempty"`
	LocalPrice     int64     `bson:"local_price,omitempty"`
	RemotePrice    int64     `bson:"remote_price,omitempty"`
	RunID          string    `bson:"run_id"`
	DetectedAt     time.Time `bson:"detected_at"`
	Resolved       bool      `bson:"resolved"`
}

func newConflictDocument(c domainsync.Conflict) conflictDocument {
	return conflictDocument{
		ID:             c.ID,
		OrganizationID: c.OrganizationID,
		PropertyID:     c.PropertyID,
		Channel:        c.Channel,
		Date:           c.Date,
		Kind:           string(c.Kind),
		LocalStatus:    c.LocalStatus,
		RemoteStatus:   c.RemoteStatus,
		LocalPrice:     c.LocalPrice,
		RemotePrice:    c.RemotePrice,
		RunID:          c.RunID,
		DetectedAt:     c.DetectedAt,
		Resolved:       c.Resolved,
	}
}

func (d conflictDocument) toDomain() domainsync.Conflict {
	return domainsync.Conflict{
		ID:             d.ID,
		OrganizationID: d.OrganizationID,
		PropertyID:     d.PropertyID,
		Channel:        d.Channel,
		Date:           d.Date,
		Kind:           domainsync.ConflictKind(d.Kind),
		LocalStatus:    d.LocalStatus,
		RemoteStatus:   d.RemoteStatus,
		LocalPrice:     d.LocalPrice,
		RemotePrice:    d.RemotePrice,
		RunID:          d.RunID,
		DetectedAt:     d.DetectedAt,
		Resolved:       d.Resolved,
	}
}

var (
	_ domainsync.RunRepository      = (*RunRepository)(nil)
	_ domainsync.ConflictRepository = (*ConflictRepository)(nil)
)
