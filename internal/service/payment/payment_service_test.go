package payment

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/wibonela/boma/internal/domain"
	"github.com/wibonela/boma/internal/gateway/azampay"
	"github.com/wibonela/boma/internal/repository"
)

type MockPaymentRepository struct {
	mock.Mock
}

func (m *MockPaymentRepository) ClaimPending(ctx context.Context, payment *domain.Payment) (*domain.Payment, bool, error) {
	args := m.Called(ctx, payment)
	if args.Get(0) == nil {
		return nil, args.Bool(1), args.Error(2)
	}
	return args.Get(0).(*domain.Payment), args.Bool(1), args.Error(2)
}

func (m *MockPaymentRepository) SetGatewayReference(ctx context.Context, id uuid.UUID, reference string, extra []byte) error {
	args := m.Called(ctx, id, reference, extra)
	return args.Error(0)
}

func (m *MockPaymentRepository) MarkFailed(ctx context.Context, id uuid.UUID, reason string) error {
	args := m.Called(ctx, id, reason)
	return args.Error(0)
}

func (m *MockPaymentRepository) ApplyGatewayResult(ctx context.Context, gatewayReference string, success bool, message string, raw []byte) (*repository.WebhookApplication, error) {
	args := m.Called(ctx, gatewayReference, success, message, raw)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*repository.WebhookApplication), args.Error(1)
}

func (m *MockPaymentRepository) GetByBookingID(ctx context.Context, bookingID uuid.UUID) ([]domain.Payment, error) {
	args := m.Called(ctx, bookingID)
	return args.Get(0).([]domain.Payment), args.Error(1)
}

type MockBookingRepository struct {
	mock.Mock
}

func (m *MockBookingRepository) CreateIfAvailable(ctx context.Context, booking *domain.Booking) error {
	args := m.Called(ctx, booking)
	return args.Error(0)
}

func (m *MockBookingRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Booking, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Booking), args.Error(1)
}

func (m *MockBookingRepository) ListForGuest(ctx context.Context, guestID uuid.UUID, filter string) ([]domain.Booking, error) {
	args := m.Called(ctx, guestID, filter)
	return args.Get(0).([]domain.Booking), args.Error(1)
}

func (m *MockBookingRepository) Cancel(ctx context.Context, id, cancelledBy uuid.UUID, reason string) (*domain.Booking, *domain.Refund, error) {
	args := m.Called(ctx, id, cancelledBy, reason)
	if args.Get(0) == nil {
		return nil, nil, args.Error(2)
	}
	return args.Get(0).(*domain.Booking), nil, args.Error(2)
}

func (m *MockBookingRepository) CheckIn(ctx context.Context, id uuid.UUID) (*domain.Booking, error) {
	args := m.Called(ctx, id)
	return args.Get(0).(*domain.Booking), args.Error(1)
}

func (m *MockBookingRepository) CheckOut(ctx context.Context, id uuid.UUID) (*domain.Booking, error) {
	args := m.Called(ctx, id)
	return args.Get(0).(*domain.Booking), args.Error(1)
}

func (m *MockBookingRepository) MarkNoShow(ctx context.Context, id uuid.UUID) (*domain.Booking, error) {
	args := m.Called(ctx, id)
	return args.Get(0).(*domain.Booking), args.Error(1)
}

func (m *MockBookingRepository) ExpireOverdue(ctx context.Context, deadline time.Time) ([]domain.Booking, error) {
	args := m.Called(ctx, deadline)
	return args.Get(0).([]domain.Booking), args.Error(1)
}

type MockGateway struct {
	mock.Mock
}

func (m *MockGateway) StartMobileMoneyCheckout(ctx context.Context, account string, amount int64, externalID, provider, currency string) (*azampay.CheckoutResult, error) {
	args := m.Called(ctx, account, amount, externalID, provider, currency)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*azampay.CheckoutResult), args.Error(1)
}

func (m *MockGateway) StartCardCheckout(ctx context.Context, amount int64, externalID, currency, email, phone string) (*azampay.CheckoutResult, error) {
	args := m.Called(ctx, amount, externalID, currency, email, phone)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*azampay.CheckoutResult), args.Error(1)
}

func (m *MockGateway) ParseWebhook(raw []byte) (*azampay.WebhookEvent, error) {
	args := m.Called(raw)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*azampay.WebhookEvent), args.Error(1)
}

type MockProducer struct {
	mock.Mock
}

func (m *MockProducer) Publish(ctx context.Context, topic, key string, value interface{}) error {
	args := m.Called(ctx, topic, key, value)
	return args.Error(0)
}

var fixedNow = time.Date(2025, time.November, 20, 12, 0, 0, 0, time.UTC)

func newTestService(payments *MockPaymentRepository, bookings *MockBookingRepository, gateway *MockGateway, producer *MockProducer) *Service {
	return &Service{
		payments:     payments,
		bookings:     bookings,
		gateway:      gateway,
		producer:     producer,
		paymentTopic: "payment-events",
		log:          zerolog.Nop(),
		now:          func() time.Time { return fixedNow },
	}
}

func payableBooking(guestID uuid.UUID) *domain.Booking {
	expires := fixedNow.Add(20 * time.Minute)
	return &domain.Booking{
		ID:         uuid.New(),
		GuestID:    guestID,
		HostID:     uuid.New(),
		TotalPrice: 176000,
		Currency:   "TZS",
		Status:     domain.BookingStatusAwaitingPayment,
		ExpiresAt:  &expires,
	}
}

func TestService_InitiateMobileMoney_Success(t *testing.T) {
	payments := &MockPaymentRepository{}
	bookings := &MockBookingRepository{}
	gateway := &MockGateway{}
	producer := &MockProducer{}
	service := newTestService(payments, bookings, gateway, producer)

	ctx := context.Background()
	guestID := uuid.New()
	booking := payableBooking(guestID)

	bookings.On("GetByID", ctx, booking.ID).Return(booking, nil).Once()
	payments.On("ClaimPending", ctx, mock.AnythingOfType("*domain.Payment")).
		Return(&domain.Payment{ID: uuid.New(), BookingID: booking.ID, Amount: 176000, Currency: "TZS", Status: domain.TxInitiated}, true, nil).Once()
	gateway.On("StartMobileMoneyCheckout", ctx, "255712345678", int64(176000), booking.ID.String(), "Mpesa", "TZS").
		Return(&azampay.CheckoutResult{Success: true, TransactionID: "azam-tx-1"}, nil).Once()
	payments.On("SetGatewayReference", ctx, mock.AnythingOfType("uuid.UUID"), "azam-tx-1", []byte(nil)).Return(nil).Once()
	producer.On("Publish", ctx, "payment-events", booking.ID.String(), mock.Anything).Return(nil).Once()

	payment, err := service.InitiateMobileMoney(ctx, MobileMoneyInput{
		BookingID:   booking.ID,
		GuestID:     guestID,
		PhoneNumber: "0712345678",
		Provider:    "Mpesa",
	})

	assert.NoError(t, err)
	assert.Equal(t, "azam-tx-1", payment.GatewayReference)
	assert.Equal(t, domain.TxPending, payment.Status)
	payments.AssertExpectations(t)
	gateway.AssertExpectations(t)
}

func TestService_InitiateMobileMoney_UnsupportedProvider(t *testing.T) {
	service := newTestService(&MockPaymentRepository{}, &MockBookingRepository{}, &MockGateway{}, &MockProducer{})

	_, err := service.InitiateMobileMoney(context.Background(), MobileMoneyInput{
		BookingID:   uuid.New(),
		GuestID:     uuid.New(),
		PhoneNumber: "0712345678",
		Provider:    "WesternUnion",
	})

	assert.Equal(t, domain.KindValidation, domain.KindOf(err))
}

func TestService_InitiateMobileMoney_ReturnsInFlightAttempt(t *testing.T) {
	payments := &MockPaymentRepository{}
	bookings := &MockBookingRepository{}
	gateway := &MockGateway{}
	service := newTestService(payments, bookings, gateway, &MockProducer{})

	ctx := context.Background()
	guestID := uuid.New()
	booking := payableBooking(guestID)
	existing := &domain.Payment{ID: uuid.New(), BookingID: booking.ID, Status: domain.TxPending, GatewayReference: "azam-tx-7"}

	bookings.On("GetByID", ctx, booking.ID).Return(booking, nil).Once()
	payments.On("ClaimPending", ctx, mock.Anything).Return(existing, false, nil).Once()

	payment, err := service.InitiateMobileMoney(ctx, MobileMoneyInput{
		BookingID:   booking.ID,
		GuestID:     guestID,
		PhoneNumber: "0712345678",
		Provider:    "Mpesa",
	})

	assert.NoError(t, err)
	assert.Equal(t, existing, payment)
	gateway.AssertNotCalled(t, "StartMobileMoneyCheckout", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestService_InitiateMobileMoney_GatewayFailureMarksAttemptFailed(t *testing.T) {
	payments := &MockPaymentRepository{}
	bookings := &MockBookingRepository{}
	gateway := &MockGateway{}
	service := newTestService(payments, bookings, gateway, &MockProducer{})

	ctx := context.Background()
	guestID := uuid.New()
	booking := payableBooking(guestID)
	attempt := &domain.Payment{ID: uuid.New(), BookingID: booking.ID, Amount: 176000, Currency: "TZS", Status: domain.TxInitiated}

	bookings.On("GetByID", ctx, booking.ID).Return(booking, nil).Once()
	payments.On("ClaimPending", ctx, mock.Anything).Return(attempt, true, nil).Once()
	gateway.On("StartMobileMoneyCheckout", ctx, mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(nil, errors.New("connection refused")).Once()
	payments.On("MarkFailed", ctx, attempt.ID, "connection refused").Return(nil).Once()

	_, err := service.InitiateMobileMoney(ctx, MobileMoneyInput{
		BookingID:   booking.ID,
		GuestID:     guestID,
		PhoneNumber: "0712345678",
		Provider:    "Airtel",
	})

	assert.Equal(t, domain.KindGateway, domain.KindOf(err))
	payments.AssertExpectations(t)
}

func TestService_InitiateMobileMoney_ExpiredWindow(t *testing.T) {
	payments := &MockPaymentRepository{}
	bookings := &MockBookingRepository{}
	service := newTestService(payments, bookings, &MockGateway{}, &MockProducer{})

	ctx := context.Background()
	guestID := uuid.New()
	booking := payableBooking(guestID)
	expired := fixedNow.Add(-time.Minute)
	booking.ExpiresAt = &expired

	bookings.On("GetByID", ctx, booking.ID).Return(booking, nil).Once()

	_, err := service.InitiateMobileMoney(ctx, MobileMoneyInput{
		BookingID:   booking.ID,
		GuestID:     guestID,
		PhoneNumber: "0712345678",
		Provider:    "Mpesa",
	})

	assert.Equal(t, domain.KindConflict, domain.KindOf(err))
	payments.AssertNotCalled(t, "ClaimPending", mock.Anything, mock.Anything)
}

func TestService_InitiateMobileMoney_WrongGuest(t *testing.T) {
	bookings := &MockBookingRepository{}
	service := newTestService(&MockPaymentRepository{}, bookings, &MockGateway{}, &MockProducer{})

	ctx := context.Background()
	booking := payableBooking(uuid.New())
	bookings.On("GetByID", ctx, booking.ID).Return(booking, nil).Once()

	_, err := service.InitiateMobileMoney(ctx, MobileMoneyInput{
		BookingID:   booking.ID,
		GuestID:     uuid.New(),
		PhoneNumber: "0712345678",
		Provider:    "Mpesa",
	})

	assert.Equal(t, domain.KindForbidden, domain.KindOf(err))
}

func TestService_InitiateCard_ReturnsCheckoutURL(t *testing.T) {
	payments := &MockPaymentRepository{}
	bookings := &MockBookingRepository{}
	gateway := &MockGateway{}
	producer := &MockProducer{}
	service := newTestService(payments, bookings, gateway, producer)

	ctx := context.Background()
	guestID := uuid.New()
	booking := payableBooking(guestID)
	attempt := &domain.Payment{ID: uuid.New(), BookingID: booking.ID, Amount: 176000, Currency: "TZS", Status: domain.TxInitiated}

	bookings.On("GetByID", ctx, booking.ID).Return(booking, nil).Once()
	payments.On("ClaimPending", ctx, mock.Anything).Return(attempt, true, nil).Once()
	gateway.On("StartCardCheckout", ctx, int64(176000), booking.ID.String(), "TZS", "guest@example.com", "").
		Return(&azampay.CheckoutResult{Success: true, TransactionID: "azam-tx-9", CheckoutURL: "https://checkout.azampay.co.tz/pay/9"}, nil).Once()
	payments.On("SetGatewayReference", ctx, attempt.ID, "azam-tx-9",
		[]byte(`{"checkout_url":"https://checkout.azampay.co.tz/pay/9"}`)).Return(nil).Once()
	producer.On("Publish", ctx, "payment-events", booking.ID.String(), mock.Anything).Return(nil).Once()

	_, checkoutURL, err := service.InitiateCard(ctx, CardInput{
		BookingID: booking.ID,
		GuestID:   guestID,
		Email:     "guest@example.com",
	})

	assert.NoError(t, err)
	assert.Equal(t, "https://checkout.azampay.co.tz/pay/9", checkoutURL)
	payments.AssertExpectations(t)
}

func TestService_InitiateCard_ReturnsInFlightAttemptAndStoredURL(t *testing.T) {
	payments := &MockPaymentRepository{}
	bookings := &MockBookingRepository{}
	gateway := &MockGateway{}
	service := newTestService(payments, bookings, gateway, &MockProducer{})

	ctx := context.Background()
	guestID := uuid.New()
	booking := payableBooking(guestID)
	existing := &domain.Payment{
		ID:               uuid.New(),
		BookingID:        booking.ID,
		Status:           domain.TxPending,
		GatewayReference: "azam-tx-9",
		ExtraData:        []byte(`{"checkout_url":"https://checkout.azampay.co.tz/pay/9"}`),
	}

	bookings.On("GetByID", ctx, booking.ID).Return(booking, nil).Once()
	payments.On("ClaimPending", ctx, mock.Anything).Return(existing, false, nil).Once()

	payment, checkoutURL, err := service.InitiateCard(ctx, CardInput{
		BookingID: booking.ID,
		GuestID:   guestID,
		Email:     "guest@example.com",
	})

	assert.NoError(t, err)
	assert.Equal(t, existing, payment)
	assert.Equal(t, "https://checkout.azampay.co.tz/pay/9", checkoutURL)
	gateway.AssertNotCalled(t, "StartCardCheckout",
		mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestService_HandleWebhook_AppliedSuccess(t *testing.T) {
	payments := &MockPaymentRepository{}
	gateway := &MockGateway{}
	producer := &MockProducer{}
	service := newTestService(payments, &MockBookingRepository{}, gateway, producer)

	ctx := context.Background()
	raw := []byte(`{"transactionId":"azam-tx-1","status":"success"}`)
	booking := &domain.Booking{ID: uuid.New(), Status: domain.BookingStatusConfirmed}
	payment := &domain.Payment{ID: uuid.New(), BookingID: booking.ID, GatewayReference: "azam-tx-1", Status: domain.TxSuccess}

	gateway.On("ParseWebhook", raw).Return(&azampay.WebhookEvent{TransactionID: "azam-tx-1", Status: azampay.WebhookStatusSuccess}, nil).Once()
	payments.On("ApplyGatewayResult", ctx, "azam-tx-1", true, "", raw).
		Return(&repository.WebhookApplication{Outcome: repository.OutcomeAppliedSuccess, Payment: payment, Booking: booking}, nil).Once()
	producer.On("Publish", ctx, "payment-events", booking.ID.String(), mock.Anything).Return(nil).Once()

	application, err := service.HandleWebhook(ctx, "azampay", raw)

	assert.NoError(t, err)
	assert.Equal(t, repository.OutcomeAppliedSuccess, application.Outcome)
	producer.AssertExpectations(t)
}

func TestService_HandleWebhook_DuplicateDoesNotPublish(t *testing.T) {
	payments := &MockPaymentRepository{}
	gateway := &MockGateway{}
	producer := &MockProducer{}
	service := newTestService(payments, &MockBookingRepository{}, gateway, producer)

	ctx := context.Background()
	raw := []byte(`{"transactionId":"azam-tx-1","status":"success"}`)
	payment := &domain.Payment{ID: uuid.New(), GatewayReference: "azam-tx-1", Status: domain.TxSuccess}

	gateway.On("ParseWebhook", raw).Return(&azampay.WebhookEvent{TransactionID: "azam-tx-1", Status: azampay.WebhookStatusSuccess}, nil).Once()
	payments.On("ApplyGatewayResult", ctx, "azam-tx-1", true, "", raw).
		Return(&repository.WebhookApplication{Outcome: repository.OutcomeDuplicate, Payment: payment}, nil).Once()

	application, err := service.HandleWebhook(ctx, "azampay", raw)

	assert.NoError(t, err)
	assert.Equal(t, repository.OutcomeDuplicate, application.Outcome)
	producer.AssertNotCalled(t, "Publish", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestService_HandleWebhook_UndecodablePayloadIsAcknowledged(t *testing.T) {
	payments := &MockPaymentRepository{}
	gateway := &MockGateway{}
	service := newTestService(payments, &MockBookingRepository{}, gateway, &MockProducer{})

	raw := []byte(`not json`)
	gateway.On("ParseWebhook", raw).Return(nil, errors.New("failed to decode webhook payload")).Once()

	application, err := service.HandleWebhook(context.Background(), "azampay", raw)

	assert.NoError(t, err)
	assert.Equal(t, repository.OutcomeUnknownReference, application.Outcome)
	payments.AssertNotCalled(t, "ApplyGatewayResult", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestService_HandleWebhook_UnknownGateway(t *testing.T) {
	service := newTestService(&MockPaymentRepository{}, &MockBookingRepository{}, &MockGateway{}, &MockProducer{})

	application, err := service.HandleWebhook(context.Background(), "selcom", []byte(`{}`))

	assert.NoError(t, err)
	assert.Equal(t, repository.OutcomeUnknownReference, application.Outcome)
}

func TestService_HandleWebhook_StorageFailureIsAcknowledged(t *testing.T) {
	payments := &MockPaymentRepository{}
	gateway := &MockGateway{}
	producer := &MockProducer{}
	service := newTestService(payments, &MockBookingRepository{}, gateway, producer)

	ctx := context.Background()
	raw := []byte(`{"transactionId":"azam-tx-1","status":"failed"}`)
	gateway.On("ParseWebhook", raw).Return(&azampay.WebhookEvent{TransactionID: "azam-tx-1", Status: azampay.WebhookStatusFailed}, nil).Once()
	payments.On("ApplyGatewayResult", ctx, "azam-tx-1", false, "", raw).
		Return(nil, errors.New("connection reset")).Once()

	application, err := service.HandleWebhook(ctx, "azampay", raw)

	assert.NoError(t, err)
	assert.Equal(t, repository.OutcomeError, application.Outcome)
	producer.AssertNotCalled(t, "Publish", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}
