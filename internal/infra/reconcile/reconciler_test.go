package reconcile_test

import (
	"context"
	"errors"
	"testing"
	"time"

	appoutbox "staysync/internal/app/outbox"
	"staysync/internal/app/uow"
	domaincalendar "staysync/internal/domain/calendar"
	domainchannels "staysync/internal/domain/channels"
	"staysync/internal/domain/shared/daterange"
	domainsync "staysync/internal/domain/sync"
	"staysync/internal/infra/channel"
	"staysync/internal/infra/reconcile"
	"staysync/internal/infra/storage/memory"
)

type fixture struct {
	factory    memory.Factory
	outbox     *memory.OutboxStore
	provider   *channel.StaticStateProvider
	reconciler *reconcile.Reconciler
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	factory := memory.NewFactory()
	box := memory.NewOutboxStore()
	provider := channel.NewStaticStateProvider()
	return fixture{
		factory:  factory,
		outbox:   box,
		provider: provider,
		reconciler: &reconcile.Reconciler{
			Factory:     factory,
			Provider:    provider,
			Outbox:      box,
			Encoder:     appoutbox.JSONEventEncoder{},
			HorizonDays: 30,
		},
	}
}

func (f fixture) seedMapping(t *testing.T) domainchannels.ChannelMapping {
	t.Helper()
	mapping := domainchannels.ChannelMapping{
		ID:                "map-1",
		OrganizationID:    "org-1",
		PropertyID:        "prop-1",
		Channel:           "airbnb",
		ExternalListingID: "L1",
		SyncEnabled:       true,
		CreatedAt:         time.Now().UTC(),
	}
	unit, err := f.factory.Begin(context.Background(), uow.TxOptions{})
	if err != nil {
		t.Fatalf("Begin: %v", err)
	}
	if err := unit.Mappings().Save(context.Background(), mapping); err != nil {
		t.Fatalf("Save mapping: %v", err)
	}
	return mapping
}

func (f fixture) blockDay(t *testing.T, day time.Time) {
	t.Helper()
	ctx := context.Background()
	unit, err := f.factory.Begin(ctx, uow.TxOptions{})
	if err != nil {
		t.Fatalf("Begin: %v", err)
	}
	cal, err := unit.Calendar().Calendar(ctx, "org-1", "prop-1")
	if err != nil {
		t.Fatalf("Calendar: %v", err)
	}
	r := daterange.DateRange{From: day, To: day.AddDate(0, 0, 1)}
	if _, err := cal.Block(r, domaincalendar.SourceManual, "", "tester", time.Now().UTC()); err != nil {
		t.Fatalf("Block: %v", err)
	}
	if err := unit.Calendar().Save(ctx, cal); err != nil {
		t.Fatalf("Save calendar: %v", err)
	}
}

func (f fixture) openConflicts(t *testing.T) []domainsync.Conflict {
	t.Helper()
	unit, err := f.factory.Begin(context.Background(), uow.TxOptions{})
	if err != nil {
		t.Fatalf("Begin: %v", err)
	}
	conflicts, err := unit.Conflicts().List(context.Background(), "org-1", true, 0)
	if err != nil {
		t.Fatalf("List conflicts: %v", err)
	}
	return conflicts
}

func tomorrow() time.Time {
	return daterange.Day(time.Now().UTC().AddDate(0, 0, 1))
}

func TestMissingRemoteQueuesRepair(t *testing.T) {
	f := newFixture(t)
	f.seedMapping(t)
	day := tomorrow()
	f.blockDay(t, day)
	// remote has no state at all for the listing

	run, err := f.reconciler.RunProperty(context.Background(), "org-1", "prop-1")
	if err != nil {
		t.Fatalf("RunProperty: %v", err)
	}
	if run.Status != domainsync.RunCompleted {
		t.Fatalf("status = %s, want COMPLETED", run.Status)
	}
	if run.ConflictsFound != 1 || run.RepairsQueued != 1 {
		t.Fatalf("run counts = %d conflicts / %d repairs, want 1/1", run.ConflictsFound, run.RepairsQueued)
	}

	conflicts := f.openConflicts(t)
	if len(conflicts) != 1 || conflicts[0].Kind != domainsync.ConflictMissingRemote {
		t.Fatalf("conflicts = %v, want one MISSING_REMOTE", conflicts)
	}
	entries, _ := f.outbox.List(context.Background(), "PENDING", 10)
	if len(entries) != 1 {
		t.Fatalf("outbox entries = %d, want 1 repair event", len(entries))
	}
	if entries[0].EventType != "calendar.sync_repair_requested" {
		t.Fatalf("event type = %s", entries[0].EventType)
	}
}

func TestStaleRemoteQueuesRepair(t *testing.T) {
	f := newFixture(t)
	mapping := f.seedMapping(t)
	day := tomorrow()
	f.blockDay(t, day)
	// channel still believes the blocked day is open for sale
	f.provider.SetRemote(mapping.ID, []domainchannels.RemoteDay{
		{Date: day, Available: true},
	})

	run, err := f.reconciler.RunProperty(context.Background(), "org-1", "prop-1")
	if err != nil {
		t.Fatalf("RunProperty: %v", err)
	}
	if run.Status != domainsync.RunCompleted {
		t.Fatalf("status = %s", run.Status)
	}
	conflicts := f.openConflicts(t)
	if len(conflicts) != 1 || conflicts[0].Kind != domainsync.ConflictStaleRemote {
		t.Fatalf("conflicts = %v, want one STALE_REMOTE", conflicts)
	}
	if run.RepairsQueued != 1 {
		t.Fatalf("repairs = %d, want 1", run.RepairsQueued)
	}
}

func TestUnknownRemoteNeverTouchesLocalState(t *testing.T) {
	f := newFixture(t)
	mapping := f.seedMapping(t)
	day := tomorrow()
	// the channel holds a booking we have no record of
	f.provider.SetRemote(mapping.ID, []domainchannels.RemoteDay{
		{Date: day, Available: false, Reservation: "res-77"},
	})

	run, err := f.reconciler.RunProperty(context.Background(), "org-1", "prop-1")
	if err != nil {
		t.Fatalf("RunProperty: %v", err)
	}
	if run.Status != domainsync.RunCompleted {
		t.Fatalf("status = %s", run.Status)
	}
	conflicts := f.openConflicts(t)
	if len(conflicts) != 1 || conflicts[0].Kind != domainsync.ConflictUnknownRemote {
		t.Fatalf("conflicts = %v, want one UNKNOWN_REMOTE", conflicts)
	}
	if run.RepairsQueued != 0 {
		t.Fatalf("repairs = %d, unknown remote state must not auto-repair", run.RepairsQueued)
	}

	ctx := context.Background()
	unit, _ := f.factory.Begin(ctx, uow.TxOptions{})
	cal, err := unit.Calendar().Calendar(ctx, "org-1", "prop-1")
	if err != nil {
		t.Fatalf("Calendar: %v", err)
	}
	if len(cal.Days) != 0 || cal.Version != 0 {
		t.Fatalf("local calendar mutated: %d days, version %d", len(cal.Days), cal.Version)
	}
}

func TestProviderFailureRecordsFailedRun(t *testing.T) {
	f := newFixture(t)
	f.seedMapping(t)
	f.blockDay(t, tomorrow())
	f.provider.Fail(errors.New("channel API unreachable"))

	run, err := f.reconciler.RunProperty(context.Background(), "org-1", "prop-1")
	if err != nil {
		t.Fatalf("RunProperty: %v", err)
	}
	if run.Status != domainsync.RunFailed {
		t.Fatalf("status = %s, want FAILED", run.Status)
	}
	if run.Error == "" {
		t.Fatal("failed run must carry the provider error")
	}
	if run.ConflictsFound != 0 || run.RepairsQueued != 0 {
		t.Fatalf("failed run recorded %d conflicts / %d repairs, want none", run.ConflictsFound, run.RepairsQueued)
	}
	if conflicts := f.openConflicts(t); len(conflicts) != 0 {
		t.Fatalf("conflicts persisted on failure: %v", conflicts)
	}
	if entries, _ := f.outbox.List(context.Background(), "", 10); len(entries) != 0 {
		t.Fatalf("outbox written on failure: %v", entries)
	}

	unit, _ := f.factory.Begin(context.Background(), uow.TxOptions{})
	runs, err := unit.Runs().List(context.Background(), "org-1", 10)
	if err != nil {
		t.Fatalf("List runs: %v", err)
	}
	if len(runs) != 1 || runs[0].Status != domainsync.RunFailed {
		t.Fatalf("runs = %v, want one FAILED record", runs)
	}
}

func TestRunAllSkipsDisabledMappings(t *testing.T) {
	f := newFixture(t)
	f.seedMapping(t)
	unit, _ := f.factory.Begin(context.Background(), uow.TxOptions{})
	if err := unit.Mappings().Save(context.Background(), domainchannels.ChannelMapping{
		ID:                "map-2",
		OrganizationID:    "org-1",
		PropertyID:        "prop-2",
		Channel:           "booking",
		ExternalListingID: "L2",
		SyncEnabled:       false,
	}); err != nil {
		t.Fatalf("Save mapping: %v", err)
	}

	run, err := f.reconciler.RunAll(context.Background(), "org-1")
	if err != nil {
		t.Fatalf("RunAll: %v", err)
	}
	if run.PropertiesChecked != 1 {
		t.Fatalf("properties checked = %d, want 1 (disabled mapping skipped)", run.PropertiesChecked)
	}
	if run.Trigger != domainsync.TriggerManual {
		t.Fatalf("trigger = %s, want MANUAL", run.Trigger)
	}
}
