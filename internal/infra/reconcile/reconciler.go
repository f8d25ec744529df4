package reconcile

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"

	"staysync/internal/app/handlers/syncadmin"
	appoutbox "staysync/internal/app/outbox"
	"staysync/internal/app/uow"
	domaincalendar "staysync/internal/domain/calendar"
	domainchannels "staysync/internal/domain/channels"
	"staysync/internal/domain/shared/daterange"
	"staysync/internal/domain/shared/events"
	domainsync "staysync/internal/domain/sync"
	"staysync/internal/infra/obs"
)

var _ syncadmin.ReconcileTrigger = (*Reconciler)(nil)

// Reconciler diffs local calendar truth against the channels' last-known
// state. Local is authoritative: missing or stale remote days queue repair
// pushes through the outbox; unknown remote state is recorded as a conflict
// and never written back into the local store.
type Reconciler struct {
	Factory      uow.UoWFactory
	Provider     domainchannels.StateProvider
	Outbox       appoutbox.Outbox
	Encoder      appoutbox.EventEncoder
	Logger       *slog.Logger
	Metrics      *obs.Metrics
	HorizonDays  int
	Concurrency  int64
	FetchTimeout time.Duration

	locks sync.Map // property key -> *sync.Mutex
}

func (r *Reconciler) RunAll(ctx context.Context, organizationID string) (domainsync.ReconciliationRun, error) {
	return r.run(ctx, organizationID, "", domainsync.TriggerManual)
}

func (r *Reconciler) RunProperty(ctx context.Context, organizationID, propertyID string) (domainsync.ReconciliationRun, error) {
	return r.run(ctx, organizationID, propertyID, domainsync.TriggerManual)
}

func (r *Reconciler) RunScheduled(ctx context.Context, organizationID string) (domainsync.ReconciliationRun, error) {
	return r.run(ctx, organizationID, "", domainsync.TriggerScheduled)
}

type propertyResult struct {
	conflicts []domainsync.Conflict
	repairs   []events.DomainEvent
	err       error
}

func (r *Reconciler) run(ctx context.Context, organizationID, propertyID string, trigger domainsync.RunTrigger) (domainsync.ReconciliationRun, error) {
	run := domainsync.ReconciliationRun{
		ID:             uuid.NewString(),
		OrganizationID: organizationID,
		PropertyID:     propertyID,
		Trigger:        trigger,
		Status:         domainsync.RunCompleted,
		StartedAt:      time.Now().UTC(),
	}

	byProperty, err := r.loadMappings(ctx, organizationID, propertyID)
	if err != nil {
		return run, err
	}
	horizon := r.horizon(run.StartedAt)

	sem := semaphore.NewWeighted(r.concurrency())
	var wg sync.WaitGroup
	var mu sync.Mutex
	var conflicts []domainsync.Conflict
	var repairs []events.DomainEvent
	var firstErr error
	aborted := false

	for prop, mappings := range byProperty {
		// abortable between properties, never mid-diff
		if ctx.Err() != nil {
			aborted = true
			break
		}
		mu.Lock()
		failed := firstErr != nil
		mu.Unlock()
		if failed {
			break
		}
		if err := sem.Acquire(ctx, 1); err != nil {
			aborted = true
			break
		}
		wg.Add(1)
		go func(prop string, mappings []domainchannels.ChannelMapping) {
			defer sem.Release(1)
			defer wg.Done()
			res := r.diffProperty(ctx, run.ID, organizationID, prop, mappings, horizon)
			mu.Lock()
			defer mu.Unlock()
			if res.err != nil && firstErr == nil {
				firstErr = res.err
				return
			}
			conflicts = append(conflicts, res.conflicts...)
			repairs = append(repairs, res.repairs...)
		}(prop, mappings)
		run.PropertiesChecked++
	}
	wg.Wait()

	run.FinishedAt = time.Now().UTC()
	switch {
	case firstErr != nil:
		// provider unreachable: record the failure, touch nothing else
		run.Status = domainsync.RunFailed
		run.Error = firstErr.Error()
		conflicts = nil
		repairs = nil
	case aborted:
		run.Status = domainsync.RunAborted
	}
	run.ConflictsFound = len(conflicts)
	run.RepairsQueued = len(repairs)

	if err := r.persist(ctx, run, conflicts, repairs); err != nil {
		return run, err
	}
	r.Metrics.ObserveRun(string(run.Status))
	for _, c := range conflicts {
		r.Metrics.ObserveConflict(string(c.Kind))
	}
	if r.Logger != nil {
		r.Logger.Info("reconciliation run finished",
			"run_id", run.ID, "organization_id", organizationID, "property_id", propertyID,
			"status", run.Status, "properties", run.PropertiesChecked,
			"conflicts", run.ConflictsFound, "repairs", run.RepairsQueued, "error", run.Error)
	}
	return run, nil
}

func (r *Reconciler) loadMappings(ctx context.Context, organizationID, propertyID string) (map[string][]domainchannels.ChannelMapping, error) {
	unit, ctx, cleanup, err := uow.Acquire(ctx, r.Factory, uow.TxOptions{ReadOnly: true})
	if err != nil {
		return nil, err
	}
	if cleanup != nil {
		defer cleanup()
	}

	var mappings []domainchannels.ChannelMapping
	if propertyID != "" {
		mappings, err = unit.Mappings().ByProperty(ctx, organizationID, propertyID)
	} else {
		mappings, err = unit.Mappings().List(ctx, organizationID)
	}
	if err != nil {
		return nil, err
	}
	byProperty := make(map[string][]domainchannels.ChannelMapping)
	for _, m := range mappings {
		if !m.SyncEnabled {
			continue
		}
		byProperty[m.PropertyID] = append(byProperty[m.PropertyID], m)
	}
	return byProperty, nil
}

// diffProperty serializes on a per-property lock so two overlapping runs never
// interleave their view of one property.
func (r *Reconciler) diffProperty(ctx context.Context, runID, organizationID, propertyID string, mappings []domainchannels.ChannelMapping, horizon daterange.DateRange) propertyResult {
	lock := r.propertyLock(organizationID, propertyID)
	lock.Lock()
	defer lock.Unlock()

	localDays, err := r.loadLocalDays(ctx, organizationID, propertyID, horizon)
	if err != nil {
		return propertyResult{err: err}
	}

	now := time.Now().UTC()
	var out propertyResult
	for _, mapping := range mappings {
		remote, err := r.fetchRemote(ctx, mapping, horizon)
		if err != nil {
			return propertyResult{err: err}
		}
		remoteByKey := make(map[string]domainchannels.RemoteDay, len(remote))
		for _, rd := range remote {
			remoteByKey[daterange.DayKey(rd.Date)] = rd
		}

		for key, day := range localDays {
			rd, ok := remoteByKey[key]
			if !ok {
				if day.Status == domaincalendar.StatusAvailable && day.NightlyPrice.Amount == 0 {
					continue
				}
				out.add(newConflict(runID, mapping, day, nil, domainsync.ConflictMissingRemote, now),
					newRepair(mapping, day.Date, string(domainsync.ConflictMissingRemote), now))
				continue
			}
			if staleRemote(day, rd) {
				out.add(newConflict(runID, mapping, day, &rd, domainsync.ConflictStaleRemote, now),
					newRepair(mapping, day.Date, string(domainsync.ConflictStaleRemote), now))
			}
		}
		for key, rd := range remoteByKey {
			if _, ok := localDays[key]; ok {
				continue
			}
			if rd.Available && rd.Reservation == "" {
				continue
			}
			c := domainsync.Conflict{
				ID:             uuid.NewString(),
				OrganizationID: mapping.OrganizationID,
				PropertyID:     mapping.PropertyID,
				Channel:        mapping.Channel,
				Date:           daterange.Day(rd.Date),
				Kind:           domainsync.ConflictUnknownRemote,
				LocalStatus:    string(domaincalendar.StatusAvailable),
				RemoteStatus:   remoteStatus(rd),
				RemotePrice:    rd.PriceMinor,
				RunID:          runID,
				DetectedAt:     now,
			}
			out.conflicts = append(out.conflicts, c)
		}
	}
	return out
}

func (p *propertyResult) add(c domainsync.Conflict, repair events.DomainEvent) {
	p.conflicts = append(p.conflicts, c)
	p.repairs = append(p.repairs, repair)
}

func (r *Reconciler) loadLocalDays(ctx context.Context, organizationID, propertyID string, horizon daterange.DateRange) (map[string]domaincalendar.Day, error) {
	unit, ctx, cleanup, err := uow.Acquire(ctx, r.Factory, uow.TxOptions{ReadOnly: true})
	if err != nil {
		return nil, err
	}
	if cleanup != nil {
		defer cleanup()
	}
	cal, err := unit.Calendar().Calendar(ctx, organizationID, propertyID)
	if err != nil {
		return nil, err
	}
	out := make(map[string]domaincalendar.Day)
	for key, day := range cal.Days {
		if horizon.ContainsDay(day.Date) {
			out[key] = *day
		}
	}
	return out, nil
}

func (r *Reconciler) fetchRemote(ctx context.Context, mapping domainchannels.ChannelMapping, horizon daterange.DateRange) ([]domainchannels.RemoteDay, error) {
	if r.FetchTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.FetchTimeout)
		defer cancel()
	}
	return r.Provider.FetchCalendar(ctx, mapping, horizon)
}

// persist writes the run record, its conflicts and the repair events in one
// transaction; the run log never disagrees with the conflicts it produced.
func (r *Reconciler) persist(ctx context.Context, run domainsync.ReconciliationRun, conflicts []domainsync.Conflict, repairs []events.DomainEvent) error {
	unit, err := r.Factory.Begin(context.WithoutCancel(ctx), uow.TxOptions{})
	if err != nil {
		return err
	}
	execCtx := context.WithoutCancel(ctx)
	if injector, ok := unit.(interface {
		InjectContext(context.Context) context.Context
	}); ok {
		execCtx = injector.InjectContext(execCtx)
	}
	committed := false
	defer func() {
		if !committed {
			_ = unit.Rollback(execCtx)
		}
	}()

	if err := unit.Runs().Append(execCtx, run); err != nil {
		return err
	}
	for _, c := range conflicts {
		if err := unit.Conflicts().Add(execCtx, c); err != nil {
			return err
		}
	}
	if err := appoutbox.RecordDomainEvents(execCtx, r.Outbox, r.Encoder, repairs); err != nil {
		return err
	}
	if err := unit.Commit(execCtx); err != nil {
		return err
	}
	committed = true
	return nil
}

func newConflict(runID string, mapping domainchannels.ChannelMapping, day domaincalendar.Day, rd *domainchannels.RemoteDay, kind domainsync.ConflictKind, now time.Time) domainsync.Conflict {
	c := domainsync.Conflict{
		ID:             uuid.NewString(),
		OrganizationID: mapping.OrganizationID,
		PropertyID:     mapping.PropertyID,
		Channel:        mapping.Channel,
		Date:           day.Date,
		Kind:           kind,
		LocalStatus:    string(day.Status),
		LocalPrice:     day.NightlyPrice.Amount,
		RunID:          runID,
		DetectedAt:     now,
	}
	if rd != nil {
		c.RemoteStatus = remoteStatus(*rd)
		c.RemotePrice = rd.PriceMinor
	}
	return c
}

func newRepair(mapping domainchannels.ChannelMapping, date time.Time, reason string, now time.Time) domaincalendar.SyncRepairRequested {
	return domaincalendar.SyncRepairRequested{
		OrganizationID: mapping.OrganizationID,
		PropertyID:     mapping.PropertyID,
		Channel:        mapping.Channel,
		MappingID:      mapping.ID,
		Date:           date,
		Reason:         reason,
		At:             now,
	}
}

// staleRemote reports whether the channel's view disagrees with local truth.
func staleRemote(day domaincalendar.Day, rd domainchannels.RemoteDay) bool {
	localAvailable := day.Status == domaincalendar.StatusAvailable
	if rd.Available != localAvailable {
		return true
	}
	if day.NightlyPrice.Amount > 0 && rd.PriceMinor > 0 && day.NightlyPrice.Amount != rd.PriceMinor {
		return true
	}
	return false
}

func remoteStatus(rd domainchannels.RemoteDay) string {
	if rd.Reservation != "" {
		return string(domaincalendar.StatusBooked)
	}
	if rd.Available {
		return string(domaincalendar.StatusAvailable)
	}
	return string(domaincalendar.StatusBlocked)
}

func (r *Reconciler) propertyLock(organizationID, propertyID string) *sync.Mutex {
	key := organizationID + "|" + propertyID
	actual, _ := r.locks.LoadOrStore(key, &sync.Mutex{})
	return actual.(*sync.Mutex)
}

func (r *Reconciler) horizon(start time.Time) daterange.DateRange {
	days := r.HorizonDays
	if days <= 0 {
		days = 365
	}
	from := daterange.Day(start)
	return daterange.DateRange{From: from, To: from.AddDate(0, 0, days)}
}

func (r *Reconciler) concurrency() int64 {
	if r.Concurrency <= 0 {
		return 4
	}
	return r.Concurrency
}
