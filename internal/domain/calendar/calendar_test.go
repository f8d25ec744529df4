package calendar_test

import (
	"testing"
	"time"

	"staysync/internal/domain/calendar"
	"staysync/internal/domain/shared/daterange"
	"staysync/internal/domain/shared/money"
)

func day(s string) time.Time {
	t, _ := time.Parse("2006-01-02", s)
	return t.UTC()
}

func mustRange(t *testing.T, from, to string) daterange.DateRange {
	t.Helper()
	r, err := daterange.New(day(from), day(to))
	if err != nil {
		t.Fatalf("range %s..%s: %v", from, to, err)
	}
	return r
}

func TestBlock_CountsDaysAndRecordsOneEvent(t *testing.T) {
	cal := calendar.NewCalendar("org-1", "prop-1")
	r := mustRange(t, "2026-03-01", "2026-03-05")
	now := time.Now().UTC()

	blocked, err := cal.Block(r, calendar.SourceManual, "maintenance", "op-1", now)
	if err != nil {
		t.Fatalf("block: %v", err)
	}
	if blocked != 4 {
		t.Fatalf("daysBlocked = %d, want 4", blocked)
	}
	for _, d := range cal.DaysIn(r) {
		if d.Status != calendar.StatusBlocked {
			t.Fatalf("day %s not blocked", d.Date)
		}
	}
	if n := len(cal.PendingEvents()); n != 1 {
		t.Fatalf("pending events = %d, want exactly 1", n)
	}
}

func TestBlockThenUnblock_RestoresAvailabilityAndPrice(t *testing.T) {
	cal := calendar.NewCalendar("org-1", "prop-1")
	r := mustRange(t, "2026-03-01", "2026-03-05")
	now := time.Now().UTC()

	if err := cal.UpdatePrice(r, money.Must(12000, "EUR"), "op-1", now); err != nil {
		t.Fatalf("update price: %v", err)
	}
	if _, err := cal.Block(r, calendar.SourceManual, "", "op-1", now); err != nil {
		t.Fatalf("block: %v", err)
	}
	if _, err := cal.Unblock(r, calendar.SourceManual, "op-1", now); err != nil {
		t.Fatalf("unblock: %v", err)
	}
	for _, d := range cal.DaysIn(r) {
		if d.Status != calendar.StatusAvailable {
			t.Fatalf("day %s status = %s, want AVAILABLE", d.Date, d.Status)
		}
		if d.NightlyPrice.Amount != 12000 {
			t.Fatalf("price disturbed by block/unblock: %d", d.NightlyPrice.Amount)
		}
	}
	if n := len(cal.PendingEvents()); n != 3 {
		t.Fatalf("pending events = %d, want 3 (price, block, unblock)", n)
	}
}

func TestBlock_RejectsBookedDayWithoutPartialEffect(t *testing.T) {
	cal := calendar.NewCalendar("org-1", "prop-1")
	now := time.Now().UTC()
	if err := cal.ApplyReservation(mustRange(t, "2026-03-03", "2026-03-04"), "res-1", "booking", now); err != nil {
		t.Fatalf("reserve: %v", err)
	}
	cal.ClearEvents()

	_, err := cal.Block(mustRange(t, "2026-03-01", "2026-03-05"), calendar.SourceManual, "", "op-1", now)
	if err != calendar.ErrForbiddenTransition {
		t.Fatalf("expected ErrForbiddenTransition, got %v", err)
	}
	// nothing outside the booked day may have changed
	for _, d := range cal.DaysIn(mustRange(t, "2026-03-01", "2026-03-03")) {
		if d.Status != calendar.StatusAvailable {
			t.Fatalf("partial mutation leaked: %s is %s", d.Date, d.Status)
		}
	}
	if len(cal.PendingEvents()) != 0 {
		t.Fatalf("failed mutation must record no event")
	}
}

func TestApplyReservation_BlockedDateCannotBeBooked(t *testing.T) {
	cal := calendar.NewCalendar("org-1", "prop-1")
	now := time.Now().UTC()
	if _, err := cal.Block(mustRange(t, "2026-03-01", "2026-03-05"), calendar.SourceICal, "", "", now); err != nil {
		t.Fatalf("block: %v", err)
	}
	err := cal.ApplyReservation(mustRange(t, "2026-03-02", "2026-03-04"), "res-9", "airbnb", now)
	if err != calendar.ErrForbiddenTransition {
		t.Fatalf("expected ErrForbiddenTransition, got %v", err)
	}
}

func TestReservationLifecycle(t *testing.T) {
	cal := calendar.NewCalendar("org-1", "prop-1")
	r := mustRange(t, "2026-03-10", "2026-03-14")
	now := time.Now().UTC()

	if err := cal.ApplyReservation(r, "res-2", "booking", now); err != nil {
		t.Fatalf("reserve: %v", err)
	}
	for _, d := range cal.DaysIn(r) {
		if d.Status != calendar.StatusBooked {
			t.Fatalf("day %s not booked", d.Date)
		}
	}
	if err := cal.ReleaseReservation(r, "res-2", now); err != nil {
		t.Fatalf("release: %v", err)
	}
	for _, d := range cal.DaysIn(r) {
		if d.Status != calendar.StatusAvailable {
			t.Fatalf("day %s not released", d.Date)
		}
	}
}

func TestInvalidRangeRejectedBeforeMutation(t *testing.T) {
	cal := calendar.NewCalendar("org-1", "prop-1")
	bad := daterange.DateRange{From: day("2026-03-05"), To: day("2026-03-01")}

	if _, err := cal.Block(bad, calendar.SourceManual, "", "op-1", time.Now()); err != calendar.ErrInvalidRange {
		t.Fatalf("block: expected ErrInvalidRange, got %v", err)
	}
	if err := cal.UpdatePrice(bad, money.Must(100, "EUR"), "op-1", time.Now()); err != calendar.ErrInvalidRange {
		t.Fatalf("update price: expected ErrInvalidRange, got %v", err)
	}
	if len(cal.Days) != 0 || len(cal.PendingEvents()) != 0 {
		t.Fatalf("invalid range must leave no trace")
	}
}

func TestUpdatePrice_FloorsNegativeToZero(t *testing.T) {
	cal := calendar.NewCalendar("org-1", "prop-1")
	r := mustRange(t, "2026-03-01", "2026-03-02")
	if err := cal.UpdatePrice(r, money.Money{Amount: -500, Currency: "EUR"}, "op-1", time.Now()); err != nil {
		t.Fatalf("update price: %v", err)
	}
	if got := cal.DaysIn(r)[0].NightlyPrice.Amount; got != 0 {
		t.Fatalf("negative price must floor to zero, got %d", got)
	}
}
