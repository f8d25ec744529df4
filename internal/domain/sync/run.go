package sync

import (
	"context"
	"time"
)

type RunStatus string

const (
	RunCompleted RunStatus = "COMPLETED"
	RunFailed    RunStatus = "FAILED"
	RunAborted   RunStatus = "ABORTED"
)

type RunTrigger string

const (
	TriggerScheduled RunTrigger = "SCHEDULED"
	TriggerManual    RunTrigger = "MANUAL"
)

// ReconciliationRun is the append-only audit record of one reconciliation
// pass. Reconciliation never touches calendar state without appending one.
type ReconciliationRun struct {
	ID                string
	OrganizationID    string
	PropertyID        string // empty = global scope
	Trigger           RunTrigger
	Status            RunStatus
	StartedAt         time.Time
	FinishedAt        time.Time
	PropertiesChecked int
	ConflictsFound    int
	RepairsQueued     int
	Error             string
}

type RunStats struct {
	Total     int64
	Completed int64
	Failed    int64
	LastRunAt time.Time
}

type RunRepository interface {
	Append(ctx context.Context, run ReconciliationRun) error
	List(ctx context.Context, organizationID string, limit int) ([]ReconciliationRun, error)
	Stats(ctx context.Context, organizationID string) (RunStats, error)
}

type ConflictKind string

const (
	// ConflictMissingRemote: local day exists, channel has no state for it.
	ConflictMissingRemote ConflictKind = "MISSING_REMOTE"
	// ConflictStaleRemote: channel price or availability differs from local.
	ConflictStaleRemote ConflictKind = "STALE_REMOTE"
	// ConflictUnknownRemote: channel holds a date or booking with no local
	// record; surfaced for operator disposition, never auto-resolved by
	// overwriting local state.
	ConflictUnknownRemote ConflictKind = "UNKNOWN_REMOTE"
)

// Conflict is a first-class classified reconciliation result, not an error.
type Conflict struct {
	ID             string
	OrganizationID string
	PropertyID     string
	Channel        string
	Date           time.Time
	Kind           ConflictKind
	LocalStatus    string
	RemoteStatus   string
	LocalPrice     int64
	RemotePrice    int64
	RunID          string
	DetectedAt     time.Time
	Resolved       bool
}

type ConflictRepository interface {
	Add(ctx context.Context, c Conflict) error
	List(ctx context.Context, organizationID string, onlyOpen bool, limit int) ([]Conflict, error)
	CountByKind(ctx context.Context, organizationID string) (map[ConflictKind]int64, error)
}
