package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/wibonela/boma/internal/domain"
)

// Outcome of reconciling one gateway callback against local state.
type ReconcileOutcome string

const (
	OutcomeAppliedSuccess   ReconcileOutcome = "applied_success"
	OutcomeAppliedFailure   ReconcileOutcome = "applied_failure"
	OutcomeDuplicate        ReconcileOutcome = "duplicate"
	OutcomeUnknownReference ReconcileOutcome = "unknown_reference"
	// OutcomeError marks a callback that could not be applied to storage.
	// It is logged for manual reconciliation and still acknowledged.
	OutcomeError ReconcileOutcome = "error"
)

type WebhookApplication struct {
	Outcome ReconcileOutcome
	Payment *domain.Payment
	Booking *domain.Booking
}

type PaymentRepository interface {
	// ClaimPending returns the booking's existing pending payment, or
	// inserts the given one when none exists. The returned bool is true
	// when a new row was created.
	ClaimPending(ctx context.Context, payment *domain.Payment) (*domain.Payment, bool, error)
	SetGatewayReference(ctx context.Context, id uuid.UUID, reference string, extra []byte) error
	MarkFailed(ctx context.Context, id uuid.UUID, reason string) error
	ApplyGatewayResult(ctx context.Context, gatewayReference string, success bool, message string, raw []byte) (*WebhookApplication, error)
	GetByBookingID(ctx context.Context, bookingID uuid.UUID) ([]domain.Payment, error)
}

type PGPaymentRepository struct {
	db     DB
	ledger LedgerRepository
}

func NewPaymentRepository(db DB, ledger LedgerRepository) *PGPaymentRepository {
	return &PGPaymentRepository{db: db, ledger: ledger}
}

const paymentColumns = `
	id, booking_id, guest_id, amount, currency, gateway, gateway_reference,
	payment_method, phone_number, status, failure_reason, gateway_fee,
	net_amount, extra_data, idempotency_key, paid_at, created_at, updated_at`

func scanPayment(row pgx.Row) (*domain.Payment, error) {
	var p domain.Payment
	err := row.Scan(
		&p.ID, &p.BookingID, &p.GuestID, &p.Amount, &p.Currency, &p.Gateway, &p.GatewayReference,
		&p.PaymentMethod, &p.PhoneNumber, &p.Status, &p.FailureReason, &p.GatewayFee,
		&p.NetAmount, &p.ExtraData, &p.IdempotencyKey, &p.PaidAt, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// ClaimPending serializes payment initiation per booking: the booking row
// lock orders concurrent initiate calls, the existing-payment check makes
// the operation idempotent regardless of client-supplied keys, and the
// insert only happens when no non-terminal or successful payment exists.
// The filter includes initiated rows because a second initiate call can
// land while the first attempt's gateway call is still in flight.
func (r *PGPaymentRepository) ClaimPending(ctx context.Context, payment *domain.Payment) (*domain.Payment, bool, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, false, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	var status domain.BookingStatus
	var paymentStatus domain.PaymentState
	err = tx.QueryRow(ctx, `SELECT status, payment_status FROM bookings WHERE id = $1 FOR UPDATE`, payment.BookingID).
		Scan(&status, &paymentStatus)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, false, domain.NotFoundf("booking %s not found", payment.BookingID)
		}
		return nil, false, fmt.Errorf("failed to lock booking: %w", err)
	}
	if paymentStatus == domain.PaymentStatePaid {
		return nil, false, domain.Conflictf("booking already paid")
	}
	if !status.AcceptsPayment() {
		return nil, false, domain.Conflictf("cannot initiate payment for booking with status %s", status)
	}

	existing, err := scanPayment(tx.QueryRow(ctx, `
		SELECT`+paymentColumns+`
		FROM payments
		WHERE booking_id = $1 AND status = ANY($2)
		ORDER BY created_at DESC
		LIMIT 1`,
		payment.BookingID, []string{string(domain.TxInitiated), string(domain.TxPending), string(domain.TxSuccess)}))
	if err == nil {
		if existing.Status == domain.TxSuccess {
			return nil, false, domain.Conflictf("booking already paid")
		}
		return existing, false, tx.Commit(ctx)
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, false, fmt.Errorf("failed to query existing payment: %w", err)
	}

	if payment.ID == uuid.Nil {
		payment.ID = uuid.New()
	}
	err = tx.QueryRow(ctx, `
		INSERT INTO payments (
			id, booking_id, guest_id, amount, currency, gateway, gateway_reference,
			payment_method, phone_number, status, gateway_fee, net_amount, idempotency_key
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		RETURNING created_at, updated_at`,
		payment.ID, payment.BookingID, payment.GuestID, payment.Amount, payment.Currency,
		payment.Gateway, payment.GatewayReference, payment.PaymentMethod, payment.PhoneNumber,
		payment.Status, payment.GatewayFee, payment.NetAmount, payment.IdempotencyKey).
		Scan(&payment.CreatedAt, &payment.UpdatedAt)
	if err != nil {
		return nil, false, fmt.Errorf("failed to insert payment: %w", err)
	}

	return payment, true, tx.Commit(ctx)
}

// SetGatewayReference records the gateway's transaction id and promotes the
// attempt to pending, so later initiate calls find and return it instead of
// pushing a second charge.
func (r *PGPaymentRepository) SetGatewayReference(ctx context.Context, id uuid.UUID, reference string, extra []byte) error {
	_, err := r.db.Exec(ctx, `
		UPDATE payments SET gateway_reference = $2, status = $3, extra_data = $4, updated_at = now()
		WHERE id = $1`, id, reference, domain.TxPending, extra)
	if err != nil {
		return fmt.Errorf("failed to set gateway reference: %w", err)
	}
	return nil
}

func (r *PGPaymentRepository) MarkFailed(ctx context.Context, id uuid.UUID, reason string) error {
	_, err := r.db.Exec(ctx, `
		UPDATE payments SET status = $2, failure_reason = $3, updated_at = now()
		WHERE id = $1 AND status = ANY($4)`,
		id, domain.TxFailed, reason, []string{string(domain.TxInitiated), string(domain.TxPending)})
	if err != nil {
		return fmt.Errorf("failed to mark payment failed: %w", err)
	}
	return nil
}

// ApplyGatewayResult is the idempotent core of webhook reconciliation. The
// payment lookup, the booking transition and the ledger append run in one
// transaction; the row lock plus the terminal-state check make replayed or
// concurrently delivered webhooks collapse into a single application.
func (r *PGPaymentRepository) ApplyGatewayResult(ctx context.Context, gatewayReference string, success bool, message string, raw []byte) (*WebhookApplication, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	payment, err := scanPayment(tx.QueryRow(ctx,
		`SELECT`+paymentColumns+` FROM payments WHERE gateway_reference = $1 FOR UPDATE`, gatewayReference))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return &WebhookApplication{Outcome: OutcomeUnknownReference}, nil
		}
		return nil, fmt.Errorf("failed to lock payment: %w", err)
	}
	if payment.Status.Terminal() {
		return &WebhookApplication{Outcome: OutcomeDuplicate, Payment: payment}, nil
	}

	booking, err := scanBooking(tx.QueryRow(ctx,
		`SELECT`+bookingColumns+` FROM bookings WHERE id = $1 FOR UPDATE`, payment.BookingID))
	if err != nil {
		return nil, fmt.Errorf("failed to lock booking %s: %w", payment.BookingID, err)
	}

	if !success {
		updated, err := scanPayment(tx.QueryRow(ctx, `
			UPDATE payments SET status = $2, failure_reason = $3, extra_data = $4, updated_at = now()
			WHERE id = $1
			RETURNING`+paymentColumns, payment.ID, domain.TxFailed, message, raw))
		if err != nil {
			return nil, fmt.Errorf("failed to mark payment failed: %w", err)
		}
		if err := tx.Commit(ctx); err != nil {
			return nil, fmt.Errorf("failed to commit failure: %w", err)
		}
		// Booking stays awaiting payment so the guest can retry.
		return &WebhookApplication{Outcome: OutcomeAppliedFailure, Payment: updated, Booking: booking}, nil
	}

	if booking.Status == domain.BookingStatusConfirmed || booking.PaymentStatus == domain.PaymentStatePaid {
		return &WebhookApplication{Outcome: OutcomeDuplicate, Payment: payment, Booking: booking}, nil
	}

	payment, err = scanPayment(tx.QueryRow(ctx, `
		UPDATE payments SET status = $2, paid_at = now(), extra_data = $3, updated_at = now()
		WHERE id = $1
		RETURNING`+paymentColumns, payment.ID, domain.TxSuccess, raw))
	if err != nil {
		return nil, fmt.Errorf("failed to mark payment successful: %w", err)
	}

	// A success webhook can arrive after the expiry sweep cancelled the
	// booking. The payment and ledger still record the collected money;
	// the booking only transitions when the state machine allows it.
	if domain.CanTransition(booking.Status, domain.BookingStatusConfirmed) {
		booking, err = scanBooking(tx.QueryRow(ctx, `
			UPDATE bookings SET status = $2, payment_status = $3, updated_at = now()
			WHERE id = $1
			RETURNING`+bookingColumns, booking.ID, domain.BookingStatusConfirmed, domain.PaymentStatePaid))
		if err != nil {
			return nil, fmt.Errorf("failed to confirm booking: %w", err)
		}
	}

	entries := domain.PaymentSplitEntries(uuid.New(), booking, payment)
	if err := r.ledger.AppendGroup(ctx, tx, entries); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit reconciliation: %w", err)
	}
	return &WebhookApplication{Outcome: OutcomeAppliedSuccess, Payment: payment, Booking: booking}, nil
}

func (r *PGPaymentRepository) GetByBookingID(ctx context.Context, bookingID uuid.UUID) ([]domain.Payment, error) {
	rows, err := r.db.Query(ctx,
		`SELECT`+paymentColumns+` FROM payments WHERE booking_id = $1 ORDER BY created_at DESC`, bookingID)
	if err != nil {
		return nil, fmt.Errorf("failed to list payments: %w", err)
	}
	defer rows.Close()

	var payments []domain.Payment
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan payment: %w", err)
		}
		payments = append(payments, *p)
	}
	return payments, rows.Err()
}

var _ PaymentRepository = (*PGPaymentRepository)(nil)
