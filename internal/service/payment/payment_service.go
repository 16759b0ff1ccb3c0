package payment

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/wibonela/boma/internal/domain"
	"github.com/wibonela/boma/internal/gateway/azampay"
	"github.com/wibonela/boma/internal/kafka"
	"github.com/wibonela/boma/internal/metrics"
	"github.com/wibonela/boma/internal/repository"
)

type UseCase interface {
	InitiateMobileMoney(ctx context.Context, input MobileMoneyInput) (*domain.Payment, error)
	InitiateCard(ctx context.Context, input CardInput) (*domain.Payment, string, error)
	HandleWebhook(ctx context.Context, gateway string, payload []byte) (*repository.WebhookApplication, error)
	ListForBooking(ctx context.Context, bookingID, requesterID uuid.UUID) ([]domain.Payment, error)
}

// Gateway is the slice of the AzamPay client the service depends on.
type Gateway interface {
	StartMobileMoneyCheckout(ctx context.Context, account string, amount int64, externalID, provider, currency string) (*azampay.CheckoutResult, error)
	StartCardCheckout(ctx context.Context, amount int64, externalID, currency, email, phone string) (*azampay.CheckoutResult, error)
	ParseWebhook(raw []byte) (*azampay.WebhookEvent, error)
}

type Producer interface {
	Publish(ctx context.Context, topic, key string, value interface{}) error
}

type MobileMoneyInput struct {
	BookingID   uuid.UUID
	GuestID     uuid.UUID
	PhoneNumber string
	Provider    string
}

type CardInput struct {
	BookingID uuid.UUID
	GuestID   uuid.UUID
	Email     string
	Phone     string
}

type Service struct {
	payments     repository.PaymentRepository
	bookings     repository.BookingRepository
	gateway      Gateway
	producer     Producer
	paymentTopic string
	log          zerolog.Logger
	now          func() time.Time
}

func NewService(
	payments repository.PaymentRepository,
	bookings repository.BookingRepository,
	gateway Gateway,
	producer Producer,
	paymentTopic string,
	log zerolog.Logger,
) *Service {
	return &Service{
		payments:     payments,
		bookings:     bookings,
		gateway:      gateway,
		producer:     producer,
		paymentTopic: paymentTopic,
		log:          log.With().Str("component", "payment_service").Logger(),
		now:          time.Now,
	}
}

// InitiateMobileMoney triggers an STK push for the booking's frozen total.
// Retries while a pending attempt exists return that attempt unchanged, so
// repeated taps do not double-charge the guest.
func (s *Service) InitiateMobileMoney(ctx context.Context, input MobileMoneyInput) (*domain.Payment, error) {
	if !azampay.IsSupportedProvider(input.Provider) {
		return nil, domain.Validationf("unsupported mobile money provider %q", input.Provider)
	}
	phone := azampay.FormatPhone(input.PhoneNumber)
	if phone == "" {
		return nil, domain.Validationf("phone number is required for mobile money")
	}

	booking, err := s.authorizedBooking(ctx, input.BookingID, input.GuestID)
	if err != nil {
		return nil, err
	}

	payment, created, err := s.payments.ClaimPending(ctx, &domain.Payment{
		ID:               uuid.New(),
		BookingID:        booking.ID,
		GuestID:          input.GuestID,
		Amount:           booking.TotalPrice,
		Currency:         booking.Currency,
		Gateway:          domain.GatewayAzamPay,
		GatewayReference: uuid.NewString(),
		PaymentMethod:    domain.MethodMobileMoney,
		PhoneNumber:      phone,
		Status:           domain.TxInitiated,
		IdempotencyKey:   uuid.NewString(),
	})
	if err != nil {
		return nil, err
	}
	if !created {
		s.log.Info().Str("payment_id", payment.ID.String()).
			Str("booking_id", booking.ID.String()).
			Msg("returning in-flight payment attempt")
		return payment, nil
	}

	result, err := s.gateway.StartMobileMoneyCheckout(ctx, phone, payment.Amount, booking.ID.String(), input.Provider, payment.Currency)
	if err != nil {
		s.failAttempt(ctx, payment, err.Error())
		return nil, domain.GatewayErr("mobile money checkout failed", err)
	}
	if !result.Success {
		s.failAttempt(ctx, payment, result.Message)
		return nil, domain.GatewayErr("gateway rejected checkout: "+result.Message, nil)
	}

	reference := result.TransactionID
	if reference == "" {
		reference = payment.GatewayReference
	}
	if err := s.payments.SetGatewayReference(ctx, payment.ID, reference, nil); err != nil {
		return nil, err
	}
	payment.GatewayReference = reference
	payment.Status = domain.TxPending

	metrics.IncPaymentInitiated(string(domain.MethodMobileMoney))
	s.log.Info().Str("payment_id", payment.ID.String()).
		Str("booking_id", booking.ID.String()).
		Str("gateway_reference", payment.GatewayReference).
		Str("provider", input.Provider).
		Msg("mobile money checkout started")
	s.publish(ctx, "payment_initiated", payment)
	return payment, nil
}

// InitiateCard creates the attempt and returns the hosted checkout URL the
// guest completes the card flow on. Retries while an attempt is in flight
// return that attempt and its stored checkout URL instead of opening a
// second gateway session.
func (s *Service) InitiateCard(ctx context.Context, input CardInput) (*domain.Payment, string, error) {
	booking, err := s.authorizedBooking(ctx, input.BookingID, input.GuestID)
	if err != nil {
		return nil, "", err
	}

	payment, created, err := s.payments.ClaimPending(ctx, &domain.Payment{
		ID:               uuid.New(),
		BookingID:        booking.ID,
		GuestID:          input.GuestID,
		Amount:           booking.TotalPrice,
		Currency:         booking.Currency,
		Gateway:          domain.GatewayAzamPay,
		GatewayReference: uuid.NewString(),
		PaymentMethod:    domain.MethodCard,
		Status:           domain.TxInitiated,
		IdempotencyKey:   uuid.NewString(),
	})
	if err != nil {
		return nil, "", err
	}
	if !created {
		s.log.Info().Str("payment_id", payment.ID.String()).
			Str("booking_id", booking.ID.String()).
			Msg("returning in-flight payment attempt")
		return payment, checkoutURLFrom(payment.ExtraData), nil
	}

	result, err := s.gateway.StartCardCheckout(ctx, payment.Amount, booking.ID.String(), payment.Currency, input.Email, input.Phone)
	if err != nil {
		s.failAttempt(ctx, payment, err.Error())
		return nil, "", domain.GatewayErr("card checkout failed", err)
	}
	if !result.Success || result.CheckoutURL == "" {
		s.failAttempt(ctx, payment, result.Message)
		return nil, "", domain.GatewayErr("gateway rejected checkout: "+result.Message, nil)
	}

	reference := result.TransactionID
	if reference == "" {
		reference = payment.GatewayReference
	}
	// The checkout URL rides along in extra_data so a retry can hand the
	// guest back to the same hosted session.
	extra, err := json.Marshal(paymentExtra{CheckoutURL: result.CheckoutURL})
	if err != nil {
		return nil, "", err
	}
	if err := s.payments.SetGatewayReference(ctx, payment.ID, reference, extra); err != nil {
		return nil, "", err
	}
	payment.GatewayReference = reference
	payment.Status = domain.TxPending
	payment.ExtraData = extra

	metrics.IncPaymentInitiated(string(domain.MethodCard))
	s.log.Info().Str("payment_id", payment.ID.String()).
		Str("booking_id", booking.ID.String()).
		Msg("card checkout started")
	s.publish(ctx, "payment_initiated", payment)
	return payment, result.CheckoutURL, nil
}

// paymentExtra is the slice of a payment's extra_data this service writes
// and reads back.
type paymentExtra struct {
	CheckoutURL string `json:"checkout_url"`
}

func checkoutURLFrom(extra []byte) string {
	if len(extra) == 0 {
		return ""
	}
	var e paymentExtra
	if err := json.Unmarshal(extra, &e); err != nil {
		return ""
	}
	return e.CheckoutURL
}

// HandleWebhook reconciles one gateway callback. Every delivery resolves to
// a structured outcome rather than an error, so the HTTP boundary can
// acknowledge with 200 unconditionally. Storage failures are logged with
// enough context for manual reconciliation.
func (s *Service) HandleWebhook(ctx context.Context, gateway string, payload []byte) (*repository.WebhookApplication, error) {
	if gateway != string(domain.GatewayAzamPay) {
		s.log.Warn().Str("gateway", gateway).Msg("webhook for unsupported gateway")
		return &repository.WebhookApplication{Outcome: repository.OutcomeUnknownReference}, nil
	}

	event, err := s.gateway.ParseWebhook(payload)
	if err != nil {
		s.log.Warn().Err(err).Msg("undecodable webhook payload")
		metrics.IncWebhook("undecodable")
		return &repository.WebhookApplication{Outcome: repository.OutcomeUnknownReference}, nil
	}

	success := event.Status == azampay.WebhookStatusSuccess
	application, err := s.payments.ApplyGatewayResult(ctx, event.TransactionID, success, event.Message, payload)
	if err != nil {
		s.log.Error().Err(err).
			Str("gateway", gateway).
			Str("gateway_reference", event.TransactionID).
			Str("gateway_status", event.Status).
			Str("gateway_message", event.Message).
			Msg("webhook could not be applied, flagging for manual reconciliation")
		metrics.IncWebhook(string(repository.OutcomeError))
		return &repository.WebhookApplication{Outcome: repository.OutcomeError}, nil
	}
	metrics.IncWebhook(string(application.Outcome))

	log := s.log.With().
		Str("gateway_reference", event.TransactionID).
		Str("outcome", string(application.Outcome)).Logger()

	switch application.Outcome {
	case repository.OutcomeAppliedSuccess:
		log.Info().Str("booking_id", application.Booking.ID.String()).Msg("payment reconciled")
		s.publish(ctx, "payment_succeeded", application.Payment)
	case repository.OutcomeAppliedFailure:
		log.Info().Str("booking_id", application.Booking.ID.String()).Msg("payment failure recorded")
		s.publish(ctx, "payment_failed", application.Payment)
	case repository.OutcomeDuplicate:
		log.Info().Msg("duplicate webhook ignored")
	case repository.OutcomeUnknownReference:
		log.Warn().Msg("webhook references no known payment")
	}
	return application, nil
}

func (s *Service) ListForBooking(ctx context.Context, bookingID, requesterID uuid.UUID) ([]domain.Payment, error) {
	booking, err := s.bookings.GetByID(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if booking.GuestID != requesterID && booking.HostID != requesterID {
		return nil, domain.Forbiddenf("not authorized to view payments for this booking")
	}
	return s.payments.GetByBookingID(ctx, bookingID)
}

func (s *Service) authorizedBooking(ctx context.Context, bookingID, guestID uuid.UUID) (*domain.Booking, error) {
	booking, err := s.bookings.GetByID(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if booking.GuestID != guestID {
		return nil, domain.Forbiddenf("only the booking guest can pay for it")
	}
	if !booking.Status.AcceptsPayment() {
		return nil, domain.Conflictf("booking is %s and cannot accept payment", booking.Status)
	}
	if booking.ExpiresAt != nil && s.now().After(*booking.ExpiresAt) {
		return nil, domain.Conflictf("payment window for this booking has expired")
	}
	return booking, nil
}

func (s *Service) failAttempt(ctx context.Context, payment *domain.Payment, reason string) {
	if err := s.payments.MarkFailed(ctx, payment.ID, reason); err != nil {
		s.log.Error().Err(err).Str("payment_id", payment.ID.String()).
			Msg("failed to record gateway failure")
	}
}

func (s *Service) publish(ctx context.Context, eventType string, payment *domain.Payment) {
	if s.producer == nil || s.paymentTopic == "" {
		return
	}
	event := kafka.PaymentEvent{
		Type:             eventType,
		PaymentID:        payment.ID.String(),
		BookingID:        payment.BookingID.String(),
		GatewayReference: payment.GatewayReference,
		Status:           string(payment.Status),
		Amount:           payment.Amount,
		Currency:         payment.Currency,
		OccurredAt:       s.now(),
	}
	if err := s.producer.Publish(ctx, s.paymentTopic, event.BookingID, event); err != nil {
		s.log.Warn().Err(err).Str("payment_id", event.PaymentID).Str("event", eventType).
			Msg("failed to publish payment event")
	}
}

var _ UseCase = (*Service)(nil)
