package pricing

import (
	"time"

	"github.com/wibonela/boma/internal/domain"
)

// Quote is a frozen price breakdown. All amounts are whole shillings;
// integer arithmetic throughout so ledger groups balance exactly.
type Quote struct {
	Nights      int
	BaseAmount  int64
	CleaningFee int64
	PlatformFee int64
	Total       int64
	Currency    string
}

// Engine computes deterministic quotes. PlatformFeePercent is the single
// source of truth for the fee rate; DefaultCleaningFee applies when a
// property defines none.
type Engine struct {
	PlatformFeePercent int64
	DefaultCleaningFee int64
	DefaultCurrency    string
}

func NewEngine(feePercent, defaultCleaningFee int64, currency string) *Engine {
	return &Engine{
		PlatformFeePercent: feePercent,
		DefaultCleaningFee: defaultCleaningFee,
		DefaultCurrency:    currency,
	}
}

// Validate rejects a stay request before any state mutation: date order,
// minimum nights, maximum nights and guest capacity are hard domain errors,
// never silently clamped.
func (e *Engine) Validate(p *domain.Property, checkIn, checkOut time.Time, guests int) error {
	if !checkOut.After(checkIn) {
		return domain.Validationf("check-out date must be after check-in date")
	}
	nights := domain.Nights(checkIn, checkOut)
	minNights := p.MinimumNights
	if minNights < 1 {
		minNights = 1
	}
	if nights < minNights {
		return domain.Validationf("minimum stay is %d night(s)", minNights)
	}
	if p.MaximumNights > 0 && nights > p.MaximumNights {
		return domain.Validationf("maximum stay is %d night(s)", p.MaximumNights)
	}
	if guests < 1 {
		return domain.Validationf("at least one guest is required")
	}
	if p.MaxGuests > 0 && guests > p.MaxGuests {
		return domain.Validationf("property can accommodate maximum %d guests", p.MaxGuests)
	}
	return nil
}

// Price computes the breakdown for a property and date range. The platform
// fee is a percentage of the subtotal (nightly cost plus cleaning fee),
// rounded half-up in integer math.
func (e *Engine) Price(p *domain.Property, checkIn, checkOut time.Time) Quote {
	nights := domain.Nights(checkIn, checkOut)
	baseAmount := p.BasePricePerNight * int64(nights)

	cleaningFee := p.CleaningFee
	if cleaningFee == 0 {
		cleaningFee = e.DefaultCleaningFee
	}

	subtotal := baseAmount + cleaningFee
	platformFee := (subtotal*e.PlatformFeePercent + 50) / 100

	currency := p.Currency
	if currency == "" {
		currency = e.DefaultCurrency
	}

	return Quote{
		Nights:      nights,
		BaseAmount:  baseAmount,
		CleaningFee: cleaningFee,
		PlatformFee: platformFee,
		Total:       subtotal + platformFee,
		Currency:    currency,
	}
}
