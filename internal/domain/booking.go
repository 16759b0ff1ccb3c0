package domain

import (
	"time"

	"github.com/google/uuid"
)

type BookingStatus string

const (
	BookingStatusPending         BookingStatus = "pending"
	BookingStatusAwaitingPayment BookingStatus = "awaiting_payment"
	BookingStatusConfirmed       BookingStatus = "confirmed"
	BookingStatusCheckedIn       BookingStatus = "checked_in"
	BookingStatusCheckedOut      BookingStatus = "checked_out"
	BookingStatusCompleted       BookingStatus = "completed"
	BookingStatusCancelled       BookingStatus = "cancelled"
	BookingStatusNoShow          BookingStatus = "no_show"
)

type PaymentState string

const (
	PaymentStateUnpaid        PaymentState = "unpaid"
	PaymentStatePartiallyPaid PaymentState = "partially_paid"
	PaymentStatePaid          PaymentState = "paid"
	PaymentStateRefunded      PaymentState = "refunded"
)

type CancellationPolicy string

const (
	PolicyFlexible CancellationPolicy = "flexible"
	PolicyModerate CancellationPolicy = "moderate"
	PolicyStrict   CancellationPolicy = "strict"
)

// Booking is one reservation of one property by one guest over a contiguous
// date range. The price breakdown is frozen at creation and never
// recomputed. All monetary values are whole Tanzanian shillings.
type Booking struct {
	ID                  uuid.UUID
	PropertyID          uuid.UUID
	GuestID             uuid.UUID
	HostID              uuid.UUID
	CheckInDate         time.Time
	CheckOutDate        time.Time
	NumNights           int
	NumGuests           int
	BasePricePerNight   int64
	TotalNightsCost     int64
	CleaningFee         int64
	PlatformFee         int64
	TotalPrice          int64
	DepositAmount       int64
	Currency            string
	Status              BookingStatus
	PaymentStatus       PaymentState
	CancellationPolicy  CancellationPolicy
	CancelledAt         *time.Time
	CancelledBy         *uuid.UUID
	CancellationReason  string
	RefundAmount        int64
	SpecialRequests     string
	CheckInConfirmedAt  *time.Time
	CheckOutConfirmedAt *time.Time
	ExpiresAt           *time.Time
	CreatedAt           time.Time
	UpdatedAt           time.Time
}

// Terminal reports whether no further transitions are possible.
func (s BookingStatus) Terminal() bool {
	switch s {
	case BookingStatusCompleted, BookingStatusCancelled, BookingStatusNoShow:
		return true
	}
	return false
}

// BlocksDates reports whether a booking in this status occupies its date
// range for availability purposes.
func (s BookingStatus) BlocksDates() bool {
	switch s {
	case BookingStatusPending, BookingStatusAwaitingPayment, BookingStatusConfirmed, BookingStatusCheckedIn:
		return true
	}
	return false
}

// BlockingStatuses is the set of statuses that occupy a date range.
func BlockingStatuses() []BookingStatus {
	return []BookingStatus{
		BookingStatusPending,
		BookingStatusAwaitingPayment,
		BookingStatusConfirmed,
		BookingStatusCheckedIn,
	}
}

var bookingTransitions = map[BookingStatus][]BookingStatus{
	BookingStatusPending:         {BookingStatusAwaitingPayment, BookingStatusConfirmed, BookingStatusCancelled, BookingStatusNoShow},
	BookingStatusAwaitingPayment: {BookingStatusConfirmed, BookingStatusCancelled, BookingStatusNoShow},
	BookingStatusConfirmed:       {BookingStatusCheckedIn, BookingStatusCancelled, BookingStatusNoShow},
	BookingStatusCheckedIn:       {BookingStatusCheckedOut, BookingStatusCompleted, BookingStatusCancelled, BookingStatusNoShow},
	BookingStatusCheckedOut:      {BookingStatusCompleted},
}

// CanTransition reports whether the state machine permits from -> to.
func CanTransition(from, to BookingStatus) bool {
	for _, next := range bookingTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// AcceptsPayment reports whether payment initiation is allowed for a
// booking in this status.
func (s BookingStatus) AcceptsPayment() bool {
	return s == BookingStatusAwaitingPayment || s == BookingStatusPending
}

// Cancellable reports whether an explicit cancel is allowed from this status.
func (s BookingStatus) Cancellable() bool {
	switch s {
	case BookingStatusPending, BookingStatusAwaitingPayment, BookingStatusConfirmed:
		return true
	}
	return false
}

// Overlaps applies the half-open interval test: [aStart, aEnd) and
// [bStart, bEnd) overlap iff aStart < bEnd && bStart < aEnd. The check-out
// day itself is not occupied, so back-to-back stays may share a boundary
// date.
func Overlaps(aStart, aEnd, bStart, bEnd time.Time) bool {
	return aStart.Before(bEnd) && bStart.Before(aEnd)
}

// Nights returns the number of nights between two calendar dates.
func Nights(checkIn, checkOut time.Time) int {
	return int(checkOut.Sub(checkIn).Hours() / 24)
}

// RefundAmount computes the refund owed when cancelling a paid booking of
// the given total under this policy. Flexible refunds the full total,
// moderate refunds half (floor division), and strict refunds nothing.
func (p CancellationPolicy) RefundAmount(total int64) int64 {
	switch p {
	case PolicyFlexible:
		return total
	case PolicyModerate:
		return total / 2
	default:
		return 0
	}
}
