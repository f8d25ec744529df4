package daterange

import (
	"errors"
	"time"
)

var (
	ErrInvalidRange = errors.New("daterange: end must be after start")
)

// Day truncates t to midnight UTC. All calendar state is keyed by days, not
// instants, so every range endpoint passes through here.
func Day(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// DayKey renders a day as its ISO date, the canonical map/storage key.
func DayKey(t time.Time) string {
	return Day(t).Format("2006-01-02")
}

// DateRange represents a half-open interval of days [From, To).
type DateRange struct {
	From time.Time
	To   time.Time
}

func New(from, to time.Time) (DateRange, error) {
	dr := DateRange{From: Day(from), To: Day(to)}
	if err := dr.Validate(); err != nil {
		return DateRange{}, err
	}
	return dr, nil
}

func (dr DateRange) Validate() error {
	if dr.From.IsZero() || dr.To.IsZero() {
		return ErrInvalidRange
	}
	if !dr.To.After(dr.From) {
		return ErrInvalidRange
	}
	return nil
}

// Nights counts the days covered by the range; for a stay this equals the
// number of nights.
func (dr DateRange) Nights() int {
	return int(dr.To.Sub(dr.From).Hours() / 24)
}

func (dr DateRange) Overlaps(other DateRange) bool {
	return dr.From.Before(other.To) && other.From.Before(dr.To)
}

func (dr DateRange) ContainsDay(t time.Time) bool {
	t = Day(t)
	return !t.Before(dr.From) && t.Before(dr.To)
}

// Days enumerates every day in the range in ascending order.
func (dr DateRange) Days() []time.Time {
	if dr.Validate() != nil {
		return nil
	}
	out := make([]time.Time, 0, dr.Nights())
	for d := dr.From; d.Before(dr.To); d = d.AddDate(0, 0, 1) {
		out = append(out, d)
	}
	return out
}
