package memory

import (
	"context"
	"sort"
	"sync"

	domaincalendar "staysync/internal/domain/calendar"
	domainchannels "staysync/internal/domain/channels"
	domainrates "staysync/internal/domain/rates"
	domainsync "staysync/internal/domain/sync"
)

func propertyKey(organizationID, propertyID string) string {
	return organizationID + "|" + propertyID
}

// CalendarRepository keeps per-property calendars in memory with an optimistic
// version per aggregate. Unknown properties materialize as empty calendars;
// property existence is enforced at the organization boundary, not here.
type CalendarRepository struct {
	mu    sync.RWMutex
	items map[string]*storedCalendar
}

type storedCalendar struct {
	days    map[string]domaincalendar.Day
	version int64
}

func NewCalendarRepository() *CalendarRepository {
	return &CalendarRepository{items: make(map[string]*storedCalendar)}
}

func (r *CalendarRepository) Calendar(ctx context.Context, organizationID, propertyID string) (*domaincalendar.Calendar, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	cal := domaincalendar.NewCalendar(organizationID, propertyID)
	stored, ok := r.items[propertyKey(organizationID, propertyID)]
	if !ok {
		return cal, nil
	}
	cal.Version = stored.version
	for key, day := range stored.days {
		copied := day
		cal.Days[key] = &copied
	}
	return cal, nil
}

func (r *CalendarRepository) Save(ctx context.Context, cal *domaincalendar.Calendar) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := propertyKey(cal.OrganizationID, cal.PropertyID)
	stored, ok := r.items[key]
	if ok && stored.version != cal.Version {
		return domaincalendar.ErrConcurrentMutation
	}
	if !ok && cal.Version != 0 {
		return domaincalendar.ErrConcurrentMutation
	}
	next := &storedCalendar{days: make(map[string]domaincalendar.Day, len(cal.Days)), version: cal.Version + 1}
	for k, d := range cal.Days {
		next.days[k] = *d
	}
	r.items[key] = next
	cal.Version = next.version
	return nil
}

// RateSetRepository serves immutable rate-model snapshots seeded via Put.
type RateSetRepository struct {
	mu    sync.RWMutex
	items map[string]domainrates.RateSet
}

func NewRateSetRepository() *RateSetRepository {
	return &RateSetRepository{items: make(map[string]domainrates.RateSet)}
}

func (r *RateSetRepository) Put(organizationID, propertyID string, set domainrates.RateSet) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.items[propertyKey(organizationID, propertyID)] = set
}

func (r *RateSetRepository) RateSet(ctx context.Context, organizationID, propertyID string) (domainrates.RateSet, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.items[propertyKey(organizationID, propertyID)], nil
}

// MappingRepository is the in-memory channel mapping store.
type MappingRepository struct {
	mu    sync.RWMutex
	items map[string]domainchannels.ChannelMapping
}

func NewMappingRepository() *MappingRepository {
	return &MappingRepository{items: make(map[string]domainchannels.ChannelMapping)}
}

func (r *MappingRepository) ByID(ctx context.Context, id string) (domainchannels.ChannelMapping, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	m, ok := r.items[id]
	if !ok {
		return domainchannels.ChannelMapping{}, domainchannels.ErrMappingNotFound
	}
	return m, nil
}

func (r *MappingRepository) ByExternal(ctx context.Context, channel, externalListingID string) (domainchannels.ChannelMapping, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, m := range r.items {
		if m.Channel == channel && m.ExternalListingID == externalListingID {
			return m, nil
		}
	}
	return domainchannels.ChannelMapping{}, domainchannels.ErrMappingNotFound
}

func (r *MappingRepository) ByProperty(ctx context.Context, organizationID, propertyID string) ([]domainchannels.ChannelMapping, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []domainchannels.ChannelMapping
	for _, m := range r.items {
		if m.OrganizationID == organizationID && m.PropertyID == propertyID {
			out = append(out, m)
		}
	}
	sortMappings(out)
	return out, nil
}

func (r *MappingRepository) List(ctx context.Context, organizationID string) ([]domainchannels.ChannelMapping, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []domainchannels.ChannelMapping
	for _, m := range r.items {
		if m.OrganizationID == organizationID {
			out = append(out, m)
		}
	}
	sortMappings(out)
	return out, nil
}

func (r *MappingRepository) Save(ctx context.Context, m domainchannels.ChannelMapping) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.items[m.ID] = m
	return nil
}

func sortMappings(ms []domainchannels.ChannelMapping) {
	sort.Slice(ms, func(i, j int) bool {
		if ms[i].Channel != ms[j].Channel {
			return ms[i].Channel < ms[j].Channel
		}
		return ms[i].ID < ms[j].ID
	})
}

// RunRepository is the append-only in-memory reconciliation run log.
type RunRepository struct {
	mu   sync.RWMutex
	runs []domainsync.ReconciliationRun
}

func NewRunRepository() *RunRepository {
	return &RunRepository{}
}

func (r *RunRepository) Append(ctx context.Context, run domainsync.ReconciliationRun) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.runs = append(r.runs, run)
	return nil
}

func (r *RunRepository) List(ctx context.Context, organizationID string, limit int) ([]domainsync.ReconciliationRun, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []domainsync.ReconciliationRun
	for _, run := range r.runs {
		if run.OrganizationID == organizationID {
			out = append(out, run)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartedAt.After(out[j].StartedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *RunRepository) Stats(ctx context.Context, organizationID string) (domainsync.RunStats, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var stats domainsync.RunStats
	for _, run := range r.runs {
		if run.OrganizationID != organizationID {
			continue
		}
		stats.Total++
		switch run.Status {
		case domainsync.RunCompleted:
			stats.Completed++
		case domainsync.RunFailed:
			stats.Failed++
		}
		if run.StartedAt.After(stats.LastRunAt) {
			stats.LastRunAt = run.StartedAt
		}
	}
	return stats, nil
}

// ConflictRepository is the in-memory conflict store.
type ConflictRepository struct {
	mu        sync.RWMutex
	conflicts []domainsync.Conflict
}

func NewConflictRepository() *ConflictRepository {
	return &ConflictRepository{}
}

func (r *ConflictRepository) Add(ctx context.Context, c domainsync.Conflict) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.conflicts = append(r.conflicts, c)
	return nil
}

func (r *ConflictRepository) List(ctx context.Context, organizationID string, onlyOpen bool, limit int) ([]domainsync.Conflict, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []domainsync.Conflict
	for _, c := range r.conflicts {
		if c.OrganizationID != organizationID {
			continue
		}
		if onlyOpen && c.Resolved {
			continue
		}
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].DetectedAt.After(out[j].DetectedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *ConflictRepository) CountByKind(ctx context.Context, organizationID string) (map[domainsync.ConflictKind]int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[domainsync.ConflictKind]int64)
	for _, c := range r.conflicts {
		if c.OrganizationID == organizationID && !c.Resolved {
			out[c.Kind]++
		}
	}
	return out, nil
}

var (
	_ domaincalendar.Repository        = (*CalendarRepository)(nil)
	_ domainrates.Repository           = (*RateSetRepository)(nil)
	_ domainchannels.MappingRepository = (*MappingRepository)(nil)
	_ domainsync.RunRepository         = (*RunRepository)(nil)
	_ domainsync.ConflictRepository    = (*ConflictRepository)(nil)
)
