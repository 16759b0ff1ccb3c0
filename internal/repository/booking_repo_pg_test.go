package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wibonela/boma/internal/domain"
)

func newBookingFixture() *domain.Booking {
	return &domain.Booking{
		ID:                 uuid.New(),
		PropertyID:         uuid.New(),
		GuestID:            uuid.New(),
		HostID:             uuid.New(),
		CheckInDate:        time.Date(2025, time.December, 1, 0, 0, 0, 0, time.UTC),
		CheckOutDate:       time.Date(2025, time.December, 5, 0, 0, 0, 0, time.UTC),
		NumNights:          4,
		NumGuests:          2,
		BasePricePerNight:  40000,
		TotalNightsCost:    160000,
		CleaningFee:        10000,
		PlatformFee:        6000,
		TotalPrice:         176000,
		Currency:           "TZS",
		Status:             domain.BookingStatusAwaitingPayment,
		PaymentStatus:      domain.PaymentStateUnpaid,
		CancellationPolicy: domain.PolicyModerate,
	}
}

func TestCreateIfAvailable_RejectsOverlappingDates(t *testing.T) {
	pool, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer pool.Close()

	repo := NewBookingRepository(pool, NewLedgerRepository(pool))
	booking := newBookingFixture()

	pool.ExpectBegin()
	pool.ExpectQuery(regexp.QuoteMeta(`SELECT id FROM properties WHERE id = $1 FOR UPDATE`)).
		WithArgs(booking.PropertyID).
		WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow(booking.PropertyID))
	pool.ExpectQuery(regexp.QuoteMeta(`SELECT COUNT(*) FROM bookings`)).
		WithArgs(booking.PropertyID, blockingStatusStrings(), booking.CheckInDate, booking.CheckOutDate).
		WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(1))
	pool.ExpectRollback()

	err = repo.CreateIfAvailable(context.Background(), booking)

	assert.ErrorIs(t, err, domain.ErrDatesUnavailable)
	assert.NoError(t, pool.ExpectationsWereMet())
}

func TestCreateIfAvailable_InsertsWhenDatesFree(t *testing.T) {
	pool, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer pool.Close()

	repo := NewBookingRepository(pool, NewLedgerRepository(pool))
	booking := newBookingFixture()
	now := time.Now()

	pool.ExpectBegin()
	pool.ExpectQuery(regexp.QuoteMeta(`SELECT id FROM properties WHERE id = $1 FOR UPDATE`)).
		WithArgs(booking.PropertyID).
		WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow(booking.PropertyID))
	pool.ExpectQuery(regexp.QuoteMeta(`SELECT COUNT(*) FROM bookings`)).
		WithArgs(booking.PropertyID, blockingStatusStrings(), booking.CheckInDate, booking.CheckOutDate).
		WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(0))
	insertArgs := make([]any, 20)
	for i := range insertArgs {
		insertArgs[i] = pgxmock.AnyArg()
	}
	pool.ExpectQuery(regexp.QuoteMeta(`INSERT INTO bookings`)).
		WithArgs(insertArgs...).
		WillReturnRows(pgxmock.NewRows([]string{"created_at", "updated_at"}).AddRow(now, now))
	pool.ExpectCommit()

	err = repo.CreateIfAvailable(context.Background(), booking)

	assert.NoError(t, err)
	assert.Equal(t, now, booking.CreatedAt)
	assert.NoError(t, pool.ExpectationsWereMet())
}

func TestCreateIfAvailable_MissingProperty(t *testing.T) {
	pool, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer pool.Close()

	repo := NewBookingRepository(pool, NewLedgerRepository(pool))
	booking := newBookingFixture()

	pool.ExpectBegin()
	pool.ExpectQuery(regexp.QuoteMeta(`SELECT id FROM properties WHERE id = $1 FOR UPDATE`)).
		WithArgs(booking.PropertyID).
		WillReturnRows(pgxmock.NewRows([]string{"id"}))
	pool.ExpectRollback()

	err = repo.CreateIfAvailable(context.Background(), booking)

	assert.Equal(t, domain.KindNotFound, domain.KindOf(err))
	assert.NoError(t, pool.ExpectationsWereMet())
}
