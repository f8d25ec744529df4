package calendarops_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"staysync/internal/app/handlers/calendarops"
	"staysync/internal/app/outbox"
	"staysync/internal/app/uow"
	domaincalendar "staysync/internal/domain/calendar"
	domainrates "staysync/internal/domain/rates"
	"staysync/internal/domain/shared/daterange"
	"staysync/internal/infra/storage/memory"
)

func day(offset int) time.Time {
	return daterange.Day(time.Now().UTC()).AddDate(0, 0, offset)
}

func TestBlockDatesAppendsExactlyOneOutboxRecord(t *testing.T) {
	factory := memory.NewFactory()
	box := memory.NewOutboxStore()
	handler := &calendarops.BlockDatesHandler{
		UoWFactory: factory,
		Outbox:     box,
		Encoder:    outbox.JSONEventEncoder{},
	}

	res, err := handler.Handle(context.Background(), calendarops.BlockDatesCommand{
		OrganizationID: "org-1",
		PropertyID:     "prop-1",
		From:           day(1),
		To:             day(4),
		Source:         "manual",
		ActorID:        "actor-1",
	})
	if err != nil {
		t.Fatalf("Handle: %v", err)
	}
	if res.DaysAffected != 3 {
		t.Fatalf("DaysAffected = %d, want 3", res.DaysAffected)
	}

	entries, err := box.List(context.Background(), "", 10)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("outbox records = %d, want 1", len(entries))
	}
	if entries[0].EventType != "calendar.dates_blocked" {
		t.Fatalf("EventType = %q", entries[0].EventType)
	}
	if entries[0].AggregateID != "prop-1" {
		t.Fatalf("AggregateID = %q", entries[0].AggregateID)
	}

	cal, err := factory.CalendarRepo.Calendar(context.Background(), "org-1", "prop-1")
	if err != nil {
		t.Fatalf("Calendar: %v", err)
	}
	for offset := 1; offset < 4; offset++ {
		d, ok := cal.Days[daterange.DayKey(day(offset))]
		if !ok || d.Status != domaincalendar.StatusBlocked {
			t.Fatalf("day %d not blocked", offset)
		}
	}
}

func TestBlockThenUnblockEmitsOneRecordEach(t *testing.T) {
	factory := memory.NewFactory()
	box := memory.NewOutboxStore()
	encoder := outbox.JSONEventEncoder{}

	block := &calendarops.BlockDatesHandler{UoWFactory: factory, Outbox: box, Encoder: encoder}
	unblock := &calendarops.UnblockDatesHandler{UoWFactory: factory, Outbox: box, Encoder: encoder}

	ctx := context.Background()
	if _, err := block.Handle(ctx, calendarops.BlockDatesCommand{
		OrganizationID: "org-1", PropertyID: "prop-1", From: day(1), To: day(3),
	}); err != nil {
		t.Fatalf("block: %v", err)
	}
	if _, err := unblock.Handle(ctx, calendarops.UnblockDatesCommand{
		OrganizationID: "org-1", PropertyID: "prop-1", From: day(1), To: day(3),
	}); err != nil {
		t.Fatalf("unblock: %v", err)
	}

	entries, err := box.List(ctx, "", 10)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("outbox records = %d, want 2", len(entries))
	}
	types := map[string]bool{}
	for _, e := range entries {
		types[e.EventType] = true
	}
	if !types["calendar.dates_blocked"] || !types["calendar.dates_unblocked"] {
		t.Fatalf("unexpected event types %v", types)
	}
}

func TestBlockInvalidRangeWritesNothing(t *testing.T) {
	factory := memory.NewFactory()
	box := memory.NewOutboxStore()
	handler := &calendarops.BlockDatesHandler{
		UoWFactory: factory,
		Outbox:     box,
		Encoder:    outbox.JSONEventEncoder{},
	}

	_, err := handler.Handle(context.Background(), calendarops.BlockDatesCommand{
		OrganizationID: "org-1",
		PropertyID:     "prop-1",
		From:           day(5),
		To:             day(2),
	})
	if !errors.Is(err, domaincalendar.ErrInvalidRange) {
		t.Fatalf("err = %v, want ErrInvalidRange", err)
	}

	entries, listErr := box.List(context.Background(), "", 10)
	if listErr != nil {
		t.Fatalf("List: %v", listErr)
	}
	if len(entries) != 0 {
		t.Fatalf("outbox records = %d, want 0", len(entries))
	}
	cal, calErr := factory.CalendarRepo.Calendar(context.Background(), "org-1", "prop-1")
	if calErr != nil {
		t.Fatalf("Calendar: %v", calErr)
	}
	if len(cal.Days) != 0 || cal.Version != 0 {
		t.Fatalf("calendar mutated on rejected command")
	}
}

func TestUpdatePriceClampsToYieldCeiling(t *testing.T) {
	factory := memory.NewFactory()
	box := memory.NewOutboxStore()
	maxPrice := int64(14000)
	ratesRepo := memory.NewRateSetRepository()
	ratesRepo.Put("org-1", "prop-1", domainrates.RateSet{
		Yield: &domainrates.YieldRule{MaxPrice: &maxPrice},
	})
	factory.RatesRepo = ratesRepo

	handler := &calendarops.UpdatePriceHandler{
		UoWFactory: factory,
		Outbox:     box,
		Encoder:    outbox.JSONEventEncoder{},
	}
	res, err := handler.Handle(context.Background(), calendarops.UpdatePriceCommand{
		OrganizationID: "org-1",
		PropertyID:     "prop-1",
		From:           day(1),
		To:             day(3),
		PriceMinor:     15000,
		Currency:       "EUR",
	})
	if err != nil {
		t.Fatalf("Handle: %v", err)
	}
	if res.DaysAffected != 2 {
		t.Fatalf("DaysAffected = %d, want 2", res.DaysAffected)
	}

	cal, err := factory.CalendarRepo.Calendar(context.Background(), "org-1", "prop-1")
	if err != nil {
		t.Fatalf("Calendar: %v", err)
	}
	for offset := 1; offset < 3; offset++ {
		d, ok := cal.Days[daterange.DayKey(day(offset))]
		if !ok {
			t.Fatalf("day %d missing", offset)
		}
		if d.NightlyPrice.Amount != maxPrice {
			t.Fatalf("day %d price = %d, want %d", offset, d.NightlyPrice.Amount, maxPrice)
		}
		if d.NightlyPrice.Currency != "EUR" {
			t.Fatalf("day %d currency = %q", offset, d.NightlyPrice.Currency)
		}
	}

	entries, err := box.List(context.Background(), "", 10)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("outbox records = %d, want 1", len(entries))
	}
	if entries[0].EventType != "calendar.price_updated" {
		t.Fatalf("EventType = %q", entries[0].EventType)
	}
}

type sessionMarker struct{}

type sessionUnit struct {
	uow.UnitOfWork
	saw *bool
}

func (u sessionUnit) InjectContext(ctx context.Context) context.Context {
	return context.WithValue(ctx, sessionMarker{}, true)
}

func (u sessionUnit) Calendar() domaincalendar.Repository {
	return sessionCalendarRepo{Repository: u.UnitOfWork.Calendar(), saw: u.saw}
}

type sessionCalendarRepo struct {
	domaincalendar.Repository
	saw *bool
}

func (r sessionCalendarRepo) Save(ctx context.Context, cal *domaincalendar.Calendar) error {
	if ctx.Value(sessionMarker{}) != nil {
		*r.saw = true
	}
	return r.Repository.Save(ctx, cal)
}

type sessionFactory struct {
	inner uow.UoWFactory
	saw   *bool
}

func (f sessionFactory) Begin(ctx context.Context, opts uow.TxOptions) (uow.UnitOfWork, error) {
	unit, err := f.inner.Begin(ctx, opts)
	if err != nil {
		return nil, err
	}
	return sessionUnit{UnitOfWork: unit, saw: f.saw}, nil
}

func TestDirectHandlerCallRunsReposInSessionContext(t *testing.T) {
	saw := false
	factory := sessionFactory{inner: memory.NewFactory(), saw: &saw}
	handler := &calendarops.BlockDatesHandler{
		UoWFactory: factory,
		Outbox:     memory.NewOutboxStore(),
		Encoder:    outbox.JSONEventEncoder{},
	}

	if _, err := handler.Handle(context.Background(), calendarops.BlockDatesCommand{
		OrganizationID: "org-1",
		PropertyID:     "prop-1",
		From:           day(1),
		To:             day(2),
	}); err != nil {
		t.Fatalf("Handle: %v", err)
	}
	if !saw {
		t.Fatalf("repository write ran outside the injected session context")
	}
}
