package dto

import (
	"time"

	domainchannels "staysync/internal/domain/channels"
	domainsync "staysync/internal/domain/sync"
)

type OutboxEntry struct {
	ID            string    `json:"id"`
	EventType     string    `json:"event_type"`
	AggregateType string    `json:"aggregate_type"`
	AggregateID   string    `json:"aggregate_id"`
	Status        string    `json:"status"`
	Attempts      int       `json:"attempts"`
	LastError     string    `json:"last_error,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
	NextAttemptAt time.Time `json:"next_attempt_at,omitempty"`
}

type OutboxStats struct {
	Pending  int64 `json:"pending"`
	InFlight int64 `json:"in_flight"`
	Sent     int64 `json:"sent"`
	Failed   int64 `json:"failed"`
}

type BulkRetryResult struct {
	Requeued int64 `json:"requeued"`
}

type ConflictView struct {
	ID           string    `json:"id"`
	PropertyID   string    `json:"property_id"`
	Channel      string    `json:"channel"`
	Date         time.Time `json:"date"`
	Kind         string    `json:"kind"`
	LocalStatus  string    `json:"local_status,omitempty"`
	RemoteStatus string    `json:"remote_status,omitempty"`
	LocalPrice   int64     `json:"local_price,omitempty"`
	RemotePrice  int64     `json:"remote_price,omitempty"`
	DetectedAt   time.Time `json:"detected_at"`
	Resolved     bool      `json:"resolved"`
}

func MapConflict(c domainsync.Conflict) ConflictView {
	return ConflictView{
		ID:           c.ID,
		PropertyID:   c.PropertyID,
		Channel:      c.Channel,
		Date:         c.Date,
		Kind:         string(c.Kind),
		LocalStatus:  c.LocalStatus,
		RemoteStatus: c.RemoteStatus,
		LocalPrice:   c.LocalPrice,
		RemotePrice:  c.RemotePrice,
		DetectedAt:   c.DetectedAt,
		Resolved:     c.Resolved,
	}
}

type MappingView struct {
	ID                string    `json:"id"`
	PropertyID        string    `json:"property_id"`
	Channel           string    `json:"channel"`
	ExternalListingID string    `json:"external_listing_id"`
	SyncEnabled       bool      `json:"sync_enabled"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`
}

func MapMapping(m domainchannels.ChannelMapping) MappingView {
	return MappingView{
		ID:                m.ID,
		PropertyID:        m.PropertyID,
		Channel:           m.Channel,
		ExternalListingID: m.ExternalListingID,
		SyncEnabled:       m.SyncEnabled,
		CreatedAt:         m.CreatedAt,
		UpdatedAt:         m.UpdatedAt,
	}
}

type RunView struct {
	ID                string    `json:"id"`
	PropertyID        string    `json:"property_id,omitempty"`
	Trigger           string    `json:"trigger"`
	Status            string    `json:"status"`
	StartedAt         time.Time `json:"started_at"`
	FinishedAt        time.Time `json:"finished_at"`
	PropertiesChecked int       `json:"properties_checked"`
	ConflictsFound    int       `json:"conflicts_found"`
	RepairsQueued     int       `json:"repairs_queued"`
	Error             string    `json:"error,omitempty"`
}

func MapRun(r domainsync.ReconciliationRun) RunView {
	return RunView{
		ID:                r.ID,
		PropertyID:        r.PropertyID,
		Trigger:           string(r.Trigger),
		Status:            string(r.Status),
		StartedAt:         r.StartedAt,
		FinishedAt:        r.FinishedAt,
		PropertiesChecked: r.PropertiesChecked,
		ConflictsFound:    r.ConflictsFound,
		RepairsQueued:     r.RepairsQueued,
		Error:             r.Error,
	}
}

type RunStatsView struct {
	Total     int64     `json:"total"`
	Completed int64     `json:"completed"`
	Failed    int64     `json:"failed"`
	LastRunAt time.Time `json:"last_run_at"`
}

type ConnectionHealth struct {
	Channel       string    `json:"channel"`
	Mappings      int       `json:"mappings"`
	SyncEnabled   int       `json:"sync_enabled"`
	OpenConflicts int64     `json:"open_conflicts"`
	LastRunAt     time.Time `json:"last_run_at"`
	LastRunStatus string    `json:"last_run_status,omitempty"`
}

// Diagnostics is the sync-admin metrics snapshot.
type Diagnostics struct {
	Outbox        OutboxStats        `json:"outbox"`
	Runs          RunStatsView       `json:"runs"`
	ConflictTotal map[string]int64   `json:"conflicts_by_kind"`
	Connections   []ConnectionHealth `json:"connections"`
	GeneratedAt   time.Time          `json:"generated_at"`
}
