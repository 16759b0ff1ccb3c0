package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/wibonela/boma/internal/domain"
)

type BookingRepository interface {
	CreateIfAvailable(ctx context.Context, booking *domain.Booking) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Booking, error)
	ListForGuest(ctx context.Context, guestID uuid.UUID, filter string) ([]domain.Booking, error)
	Cancel(ctx context.Context, id, cancelledBy uuid.UUID, reason string) (*domain.Booking, *domain.Refund, error)
	CheckIn(ctx context.Context, id uuid.UUID) (*domain.Booking, error)
	CheckOut(ctx context.Context, id uuid.UUID) (*domain.Booking, error)
	MarkNoShow(ctx context.Context, id uuid.UUID) (*domain.Booking, error)
	ExpireOverdue(ctx context.Context, deadline time.Time) ([]domain.Booking, error)
}

type PGBookingRepository struct {
	db     DB
	ledger LedgerRepository
}

func NewBookingRepository(db DB, ledger LedgerRepository) *PGBookingRepository {
	return &PGBookingRepository{db: db, ledger: ledger}
}

const bookingColumns = `
	id, property_id, guest_id, host_id, check_in_date, check_out_date,
	num_nights, num_guests, base_price_per_night, total_nights_cost,
	cleaning_fee, platform_fee, total_price, deposit_amount, currency,
	status, payment_status, cancellation_policy, cancelled_at, cancelled_by,
	cancellation_reason, refund_amount, special_requests,
	check_in_confirmed_at, check_out_confirmed_at, expires_at,
	created_at, updated_at`

func scanBooking(row pgx.Row) (*domain.Booking, error) {
	var b domain.Booking
	err := row.Scan(
		&b.ID, &b.PropertyID, &b.GuestID, &b.HostID, &b.CheckInDate, &b.CheckOutDate,
		&b.NumNights, &b.NumGuests, &b.BasePricePerNight, &b.TotalNightsCost,
		&b.CleaningFee, &b.PlatformFee, &b.TotalPrice, &b.DepositAmount, &b.Currency,
		&b.Status, &b.PaymentStatus, &b.CancellationPolicy, &b.CancelledAt, &b.CancelledBy,
		&b.CancellationReason, &b.RefundAmount, &b.SpecialRequests,
		&b.CheckInConfirmedAt, &b.CheckOutConfirmedAt, &b.ExpiresAt,
		&b.CreatedAt, &b.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &b, nil
}

func blockingStatusStrings() []string {
	blocking := domain.BlockingStatuses()
	out := make([]string, len(blocking))
	for i, s := range blocking {
		out[i] = string(s)
	}
	return out
}

// CreateIfAvailable runs the availability check and the booking insert in
// one transaction serialized per property. The property row lock orders
// concurrent create calls for the same property, so the loser re-runs the
// overlap count against the winner's committed row and fails with a
// conflict instead of double-booking.
func (r *PGBookingRepository) CreateIfAvailable(ctx context.Context, booking *domain.Booking) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	var propertyID uuid.UUID
	err = tx.QueryRow(ctx, `SELECT id FROM properties WHERE id = $1 FOR UPDATE`, booking.PropertyID).Scan(&propertyID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.NotFoundf("property %s not found", booking.PropertyID)
		}
		return fmt.Errorf("failed to lock property: %w", err)
	}

	// Half-open overlap: existing [in, out) collides with requested
	// [checkIn, checkOut) iff in < checkOut AND checkIn < out.
	var overlapping int
	err = tx.QueryRow(ctx, `
		SELECT COUNT(*) FROM bookings
		WHERE property_id = $1
		  AND status = ANY($2)
		  AND check_in_date < $4
		  AND $3 < check_out_date`,
		booking.PropertyID, blockingStatusStrings(), booking.CheckInDate, booking.CheckOutDate).
		Scan(&overlapping)
	if err != nil {
		return fmt.Errorf("failed to check availability: %w", err)
	}
	if overlapping > 0 {
		return domain.ErrDatesUnavailable
	}

	if booking.ID == uuid.Nil {
		booking.ID = uuid.New()
	}
	err = tx.QueryRow(ctx, `
		INSERT INTO bookings (
			id, property_id, guest_id, host_id, check_in_date, check_out_date,
			num_nights, num_guests, base_price_per_night, total_nights_cost,
			cleaning_fee, platform_fee, total_price, deposit_amount, currency,
			status, payment_status, cancellation_policy, special_requests, expires_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20)
		RETURNING created_at, updated_at`,
		booking.ID, booking.PropertyID, booking.GuestID, booking.HostID,
		booking.CheckInDate, booking.CheckOutDate,
		booking.NumNights, booking.NumGuests, booking.BasePricePerNight, booking.TotalNightsCost,
		booking.CleaningFee, booking.PlatformFee, booking.TotalPrice, booking.DepositAmount, booking.Currency,
		booking.Status, booking.PaymentStatus, booking.CancellationPolicy,
		booking.SpecialRequests, booking.ExpiresAt).
		Scan(&booking.CreatedAt, &booking.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert booking: %w", err)
	}

	return tx.Commit(ctx)
}

func (r *PGBookingRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Booking, error) {
	b, err := scanBooking(r.db.QueryRow(ctx, `SELECT`+bookingColumns+` FROM bookings WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.NotFoundf("booking %s not found", id)
		}
		return nil, fmt.Errorf("failed to get booking: %w", err)
	}
	return b, nil
}

func (r *PGBookingRepository) ListForGuest(ctx context.Context, guestID uuid.UUID, filter string) ([]domain.Booking, error) {
	query := `SELECT` + bookingColumns + ` FROM bookings WHERE guest_id = $1`
	args := []any{guestID}

	switch filter {
	case "upcoming":
		query += ` AND check_in_date >= now() AND status = ANY($2)`
		args = append(args, []string{string(domain.BookingStatusConfirmed), string(domain.BookingStatusAwaitingPayment)})
	case "past":
		query += ` AND (status = $2 OR (check_out_date < now() AND status = $3))`
		args = append(args, string(domain.BookingStatusCompleted), string(domain.BookingStatusConfirmed))
	case "cancelled":
		query += ` AND status = $2`
		args = append(args, string(domain.BookingStatusCancelled))
	}
	query += ` ORDER BY created_at DESC`

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list bookings: %w", err)
	}
	defer rows.Close()

	var bookings []domain.Booking
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan booking: %w", err)
		}
		bookings = append(bookings, *b)
	}
	return bookings, rows.Err()
}

// Cancel flips a booking to cancelled and, when the booking was paid,
// writes the refund row and its reversing ledger group in the same
// transaction. The refund amount follows the booking's cancellation policy.
func (r *PGBookingRepository) Cancel(ctx context.Context, id, cancelledBy uuid.UUID, reason string) (*domain.Booking, *domain.Refund, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	b, err := scanBooking(tx.QueryRow(ctx, `SELECT`+bookingColumns+` FROM bookings WHERE id = $1 FOR UPDATE`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil, domain.NotFoundf("booking %s not found", id)
		}
		return nil, nil, fmt.Errorf("failed to lock booking: %w", err)
	}
	if !b.Status.Cancellable() {
		return nil, nil, domain.Conflictf("cannot cancel booking with status %s", b.Status)
	}

	var refund *domain.Refund
	var refundAmount int64
	paymentState := b.PaymentStatus

	if b.PaymentStatus == domain.PaymentStatePaid {
		refundAmount = b.CancellationPolicy.RefundAmount(b.TotalPrice)

		var p domain.Payment
		err = tx.QueryRow(ctx, `
			SELECT id, amount, currency, gateway, gateway_reference
			FROM payments WHERE booking_id = $1 AND status = $2`, b.ID, domain.TxSuccess).
			Scan(&p.ID, &p.Amount, &p.Currency, &p.Gateway, &p.GatewayReference)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to load successful payment for booking %s: %w", b.ID, err)
		}

		if refundAmount > 0 {
			now := time.Now()
			refund = &domain.Refund{
				ID:          uuid.New(),
				PaymentID:   p.ID,
				BookingID:   b.ID,
				GuestID:     b.GuestID,
				Amount:      refundAmount,
				Currency:    p.Currency,
				Reason:      domain.RefundReasonCancellation,
				Gateway:     p.Gateway,
				Status:      domain.TxSuccess,
				ProcessedBy: &cancelledBy,
				ProcessedAt: &now,
			}
			_, err = tx.Exec(ctx, `
				INSERT INTO refunds (
					id, payment_id, booking_id, guest_id, amount, currency,
					reason, reason_detail, gateway, status, processed_by, processed_at
				) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
				refund.ID, refund.PaymentID, refund.BookingID, refund.GuestID,
				refund.Amount, refund.Currency, refund.Reason, reason,
				refund.Gateway, refund.Status, refund.ProcessedBy, refund.ProcessedAt)
			if err != nil {
				return nil, nil, fmt.Errorf("failed to insert refund: %w", err)
			}

			entries := domain.RefundReversalEntries(uuid.New(), b, &p, refund)
			if err := r.ledger.AppendGroup(ctx, tx, entries); err != nil {
				return nil, nil, err
			}
			paymentState = domain.PaymentStateRefunded
		}
	}

	updated, err := scanBooking(tx.QueryRow(ctx, `
		UPDATE bookings
		SET status = $2, payment_status = $3, cancelled_at = now(), cancelled_by = $4,
		    cancellation_reason = $5, refund_amount = $6, updated_at = now()
		WHERE id = $1
		RETURNING`+bookingColumns,
		b.ID, domain.BookingStatusCancelled, paymentState, cancelledBy, reason, refundAmount))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to cancel booking: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, nil, fmt.Errorf("failed to commit cancellation: %w", err)
	}
	return updated, refund, nil
}

func (r *PGBookingRepository) CheckIn(ctx context.Context, id uuid.UUID) (*domain.Booking, error) {
	return r.conditionalTransition(ctx, id, domain.BookingStatusConfirmed, `
		UPDATE bookings
		SET status = $2, check_in_confirmed_at = now(), updated_at = now()
		WHERE id = $1 AND status = $3
		RETURNING`+bookingColumns, domain.BookingStatusCheckedIn)
}

// CheckOut collapses checked_out into completed: both confirmation
// timestamps end up on the row, the booking lands in its final state.
func (r *PGBookingRepository) CheckOut(ctx context.Context, id uuid.UUID) (*domain.Booking, error) {
	return r.conditionalTransition(ctx, id, domain.BookingStatusCheckedIn, `
		UPDATE bookings
		SET status = $2, check_out_confirmed_at = now(), updated_at = now()
		WHERE id = $1 AND status = $3
		RETURNING`+bookingColumns, domain.BookingStatusCompleted)
}

func (r *PGBookingRepository) MarkNoShow(ctx context.Context, id uuid.UUID) (*domain.Booking, error) {
	return r.conditionalTransition(ctx, id, domain.BookingStatusConfirmed, `
		UPDATE bookings
		SET status = $2, updated_at = now()
		WHERE id = $1 AND status = $3
		RETURNING`+bookingColumns, domain.BookingStatusNoShow)
}

// conditionalTransition applies a guarded UPDATE and distinguishes a missing
// booking from a wrong-status conflict when no row matched.
func (r *PGBookingRepository) conditionalTransition(ctx context.Context, id uuid.UUID, from domain.BookingStatus, query string, to domain.BookingStatus) (*domain.Booking, error) {
	b, err := scanBooking(r.db.QueryRow(ctx, query, id, to, from))
	if err == nil {
		return b, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("failed to transition booking: %w", err)
	}

	current, getErr := r.GetByID(ctx, id)
	if getErr != nil {
		return nil, getErr
	}
	return nil, domain.Conflictf("cannot move booking from %s to %s", current.Status, to)
}

// ExpireOverdue cancels awaiting-payment bookings whose payment window has
// closed, skipping any booking that already collected a successful payment
// (its confirmation webhook may still be in flight).
func (r *PGBookingRepository) ExpireOverdue(ctx context.Context, deadline time.Time) ([]domain.Booking, error) {
	rows, err := r.db.Query(ctx, `
		UPDATE bookings
		SET status = $1, cancelled_at = now(), cancellation_reason = 'payment window expired', updated_at = now()
		WHERE status = $2
		  AND expires_at IS NOT NULL AND expires_at <= $3
		  AND NOT EXISTS (
			SELECT 1 FROM payments p WHERE p.booking_id = bookings.id AND p.status = $4
		  )
		RETURNING`+bookingColumns,
		domain.BookingStatusCancelled, domain.BookingStatusAwaitingPayment, deadline, domain.TxSuccess)
	if err != nil {
		return nil, fmt.Errorf("failed to expire bookings: %w", err)
	}
	defer rows.Close()

	var expired []domain.Booking
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan expired booking: %w", err)
		}
		expired = append(expired, *b)
	}
	return expired, rows.Err()
}

var _ BookingRepository = (*PGBookingRepository)(nil)
