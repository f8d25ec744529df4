package calendar

import (
	"time"

	"staysync/internal/domain/shared/money"
)

type DayStatus string

const (
	StatusAvailable DayStatus = "AVAILABLE"
	StatusBlocked   DayStatus = "BLOCKED"
	StatusBooked    DayStatus = "BOOKED"
)

// Source identifies who drove a calendar mutation.
type Source string

const (
	SourceManual  Source = "MANUAL"
	SourceICal    Source = "ICAL"
	SourceChannel Source = "CHANNEL"
)

// Day is the per-property, per-date unit of calendar state. Days are never
// deleted, only overwritten.
type Day struct {
	Date              time.Time
	Status            DayStatus
	NightlyPrice      money.Money
	MinStay           int
	MaxStay           int
	ClosedToArrival   bool
	ClosedToDeparture bool
	UpdatedAt         time.Time
}

// canTransition enforces the day status machine. AVAILABLE and BLOCKED toggle
// freely; bookings only land on AVAILABLE days and only release back to
// AVAILABLE. BLOCKED -> BOOKED is forbidden.
func canTransition(from, to DayStatus) bool {
	if from == to {
		return true
	}
	switch from {
	case StatusAvailable:
		return to == StatusBlocked || to == StatusBooked
	case StatusBlocked:
		return to == StatusAvailable
	case StatusBooked:
		return to == StatusAvailable
	}
	return false
}
