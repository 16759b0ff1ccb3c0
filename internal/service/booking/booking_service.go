package booking

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/wibonela/boma/internal/domain"
	"github.com/wibonela/boma/internal/kafka"
	"github.com/wibonela/boma/internal/metrics"
	"github.com/wibonela/boma/internal/repository"
	"github.com/wibonela/boma/internal/service/pricing"
)

type UseCase interface {
	Create(ctx context.Context, input CreateInput) (*domain.Booking, error)
	Get(ctx context.Context, id, requesterID uuid.UUID) (*domain.Booking, error)
	ListMine(ctx context.Context, guestID uuid.UUID, filter string) ([]domain.Booking, error)
	Cancel(ctx context.Context, id, requesterID uuid.UUID, reason string) (*domain.Booking, error)
	CheckIn(ctx context.Context, id, requesterID uuid.UUID) (*domain.Booking, error)
	CheckOut(ctx context.Context, id, requesterID uuid.UUID) (*domain.Booking, error)
	MarkNoShow(ctx context.Context, id, requesterID uuid.UUID) (*domain.Booking, error)
	ExpireOverdueBookings(ctx context.Context) ([]domain.Booking, error)
}

// HoldCache keeps concurrent guests from stampeding the availability
// transaction for one property. Availability truth stays in the database.
type HoldCache interface {
	AcquireBookingHold(ctx context.Context, propertyID uuid.UUID, ttl time.Duration) (bool, error)
	ReleaseBookingHold(ctx context.Context, propertyID uuid.UUID) error
}

type Producer interface {
	Publish(ctx context.Context, topic, key string, value interface{}) error
}

type CreateInput struct {
	PropertyID      uuid.UUID
	GuestID         uuid.UUID
	CheckInDate     time.Time
	CheckOutDate    time.Time
	Adults          int
	Children        int
	Infants         int
	SpecialRequests string
}

type Service struct {
	bookings     repository.BookingRepository
	properties   repository.PropertyRepository
	holds        HoldCache
	producer     Producer
	pricing      *pricing.Engine
	bookingTopic string
	expiryWindow time.Duration
	holdTTL      time.Duration
	log          zerolog.Logger
	now          func() time.Time
}

func NewService(
	bookings repository.BookingRepository,
	properties repository.PropertyRepository,
	holds HoldCache,
	producer Producer,
	engine *pricing.Engine,
	bookingTopic string,
	expiryWindow, holdTTL time.Duration,
	log zerolog.Logger,
) *Service {
	return &Service{
		bookings:     bookings,
		properties:   properties,
		holds:        holds,
		producer:     producer,
		pricing:      engine,
		bookingTopic: bookingTopic,
		expiryWindow: expiryWindow,
		holdTTL:      holdTTL,
		log:          log.With().Str("component", "booking_service").Logger(),
		now:          time.Now,
	}
}

// Create validates the stay, freezes a price quote, and inserts the booking
// in awaiting_payment behind the property's availability transaction. The
// breakdown into adults/children/infants is collaborator-supplied; only the
// total guest count is authoritative and persisted.
func (s *Service) Create(ctx context.Context, input CreateInput) (*domain.Booking, error) {
	property, err := s.properties.GetByID(ctx, input.PropertyID)
	if err != nil {
		return nil, err
	}
	if !property.Bookable() {
		return nil, domain.Validationf("property is not available for booking")
	}

	today := s.now().UTC().Truncate(24 * time.Hour)
	if input.CheckInDate.Before(today) {
		return nil, domain.Validationf("check-in date cannot be in the past")
	}

	guests := input.Adults + input.Children
	if err := s.pricing.Validate(property, input.CheckInDate, input.CheckOutDate, guests); err != nil {
		return nil, err
	}
	quote := s.pricing.Price(property, input.CheckInDate, input.CheckOutDate)

	if s.holds != nil {
		held, err := s.holds.AcquireBookingHold(ctx, property.ID, s.holdTTL)
		if err != nil {
			return nil, err
		}
		if !held {
			return nil, domain.Conflictf("another booking for this property is being processed, try again")
		}
		defer func() {
			_ = s.holds.ReleaseBookingHold(ctx, property.ID)
		}()
	}

	expiresAt := s.now().Add(s.expiryWindow)
	booking := &domain.Booking{
		ID:                 uuid.New(),
		PropertyID:         property.ID,
		GuestID:            input.GuestID,
		HostID:             property.HostID,
		CheckInDate:        input.CheckInDate,
		CheckOutDate:       input.CheckOutDate,
		NumNights:          quote.Nights,
		NumGuests:          guests,
		BasePricePerNight:  property.BasePricePerNight,
		TotalNightsCost:    quote.BaseAmount,
		CleaningFee:        quote.CleaningFee,
		PlatformFee:        quote.PlatformFee,
		TotalPrice:         quote.Total,
		Currency:           quote.Currency,
		Status:             domain.BookingStatusAwaitingPayment,
		PaymentStatus:      domain.PaymentStateUnpaid,
		CancellationPolicy: property.CancellationPolicy,
		SpecialRequests:    input.SpecialRequests,
		ExpiresAt:          &expiresAt,
	}

	if err := s.bookings.CreateIfAvailable(ctx, booking); err != nil {
		if domain.KindOf(err) == domain.KindConflict {
			metrics.IncBookingConflict()
		}
		return nil, err
	}

	metrics.IncBookingCreated()
	s.log.Info().Str("booking_id", booking.ID.String()).
		Str("property_id", booking.PropertyID.String()).
		Int64("total_price", booking.TotalPrice).
		Msg("booking created")
	s.publish(ctx, "booking_created", booking)
	return booking, nil
}

func (s *Service) Get(ctx context.Context, id, requesterID uuid.UUID) (*domain.Booking, error) {
	booking, err := s.bookings.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if booking.GuestID != requesterID && booking.HostID != requesterID {
		return nil, domain.Forbiddenf("not authorized to view this booking")
	}
	return booking, nil
}

func (s *Service) ListMine(ctx context.Context, guestID uuid.UUID, filter string) ([]domain.Booking, error) {
	switch filter {
	case "", "upcoming", "past", "cancelled":
	default:
		return nil, domain.Validationf("unknown filter %q", filter)
	}
	return s.bookings.ListForGuest(ctx, guestID, filter)
}

// Cancel moves the booking to cancelled; for paid bookings the repository
// writes the policy-computed refund and its reversing ledger group in the
// same transaction as the status flip.
func (s *Service) Cancel(ctx context.Context, id, requesterID uuid.UUID, reason string) (*domain.Booking, error) {
	current, err := s.bookings.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if current.GuestID != requesterID && current.HostID != requesterID {
		return nil, domain.Forbiddenf("not authorized to cancel this booking")
	}

	booking, refund, err := s.bookings.Cancel(ctx, id, requesterID, reason)
	if err != nil {
		return nil, err
	}

	evt := s.log.Info().Str("booking_id", booking.ID.String()).Str("cancelled_by", requesterID.String())
	if refund != nil {
		evt = evt.Str("refund_id", refund.ID.String()).Int64("refund_amount", refund.Amount)
	}
	evt.Msg("booking cancelled")
	s.publish(ctx, "booking_cancelled", booking)
	return booking, nil
}

func (s *Service) CheckIn(ctx context.Context, id, requesterID uuid.UUID) (*domain.Booking, error) {
	if err := s.requireHost(ctx, id, requesterID); err != nil {
		return nil, err
	}
	booking, err := s.bookings.CheckIn(ctx, id)
	if err != nil {
		return nil, err
	}
	s.publish(ctx, "booking_checked_in", booking)
	return booking, nil
}

func (s *Service) CheckOut(ctx context.Context, id, requesterID uuid.UUID) (*domain.Booking, error) {
	if err := s.requireHost(ctx, id, requesterID); err != nil {
		return nil, err
	}
	booking, err := s.bookings.CheckOut(ctx, id)
	if err != nil {
		return nil, err
	}
	s.publish(ctx, "booking_completed", booking)
	return booking, nil
}

func (s *Service) MarkNoShow(ctx context.Context, id, requesterID uuid.UUID) (*domain.Booking, error) {
	if err := s.requireHost(ctx, id, requesterID); err != nil {
		return nil, err
	}
	booking, err := s.bookings.MarkNoShow(ctx, id)
	if err != nil {
		return nil, err
	}
	s.publish(ctx, "booking_no_show", booking)
	return booking, nil
}

// ExpireOverdueBookings sweeps awaiting-payment bookings whose window has
// closed. Called from the worker on a ticker.
func (s *Service) ExpireOverdueBookings(ctx context.Context) ([]domain.Booking, error) {
	expired, err := s.bookings.ExpireOverdue(ctx, s.now())
	if err != nil {
		return nil, err
	}
	for i := range expired {
		s.publish(ctx, "booking_expired", &expired[i])
	}
	if len(expired) > 0 {
		s.log.Info().Int("count", len(expired)).Msg("expired overdue bookings")
	}
	return expired, nil
}

func (s *Service) requireHost(ctx context.Context, id, requesterID uuid.UUID) error {
	booking, err := s.bookings.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if booking.HostID != requesterID {
		return domain.Forbiddenf("only the host can confirm this transition")
	}
	return nil
}

func (s *Service) publish(ctx context.Context, eventType string, booking *domain.Booking) {
	if s.producer == nil || s.bookingTopic == "" {
		return
	}
	event := kafka.BookingEvent{
		Type:       eventType,
		BookingID:  booking.ID.String(),
		PropertyID: booking.PropertyID.String(),
		GuestID:    booking.GuestID.String(),
		Status:     string(booking.Status),
		TotalPrice: booking.TotalPrice,
		Currency:   booking.Currency,
		OccurredAt: s.now(),
	}
	if err := s.producer.Publish(ctx, s.bookingTopic, event.BookingID, event); err != nil {
		s.log.Warn().Err(err).Str("booking_id", event.BookingID).Str("event", eventType).
			Msg("failed to publish booking event")
	}
}

var _ UseCase = (*Service)(nil)
