package domain

import "github.com/google/uuid"

type PropertyStatus string

const (
	PropertyStatusDraft     PropertyStatus = "draft"
	PropertyStatusVerified  PropertyStatus = "verified"
	PropertyStatusSuspended PropertyStatus = "suspended"
	PropertyStatusDelisted  PropertyStatus = "delisted"
)

// Property is the read-only pricing snapshot the booking core needs from
// the listings side. Relations are queried, not traversed.
type Property struct {
	ID                 uuid.UUID
	HostID             uuid.UUID
	Title              string
	BasePricePerNight  int64
	CleaningFee        int64
	MinimumNights      int
	MaximumNights      int
	MaxGuests          int
	Currency           string
	CancellationPolicy CancellationPolicy
	Status             PropertyStatus
}

// Bookable reports whether the listing may accept new bookings.
func (p *Property) Bookable() bool {
	return p.Status == PropertyStatusVerified
}
