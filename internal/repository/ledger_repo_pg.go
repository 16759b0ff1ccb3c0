package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/wibonela/boma/internal/domain"
	"github.com/wibonela/boma/internal/metrics"
)

type LedgerRepository interface {
	AppendGroup(ctx context.Context, q Querier, entries []domain.LedgerEntry) error
	SumByGroup(ctx context.Context, groupID uuid.UUID) (debit, credit int64, err error)
	GroupsByReference(ctx context.Context, refType domain.ReferenceType, refID uuid.UUID) ([]domain.LedgerEntry, error)
}

type PGLedgerRepository struct {
	db DB
}

func NewLedgerRepository(db DB) *PGLedgerRepository {
	return &PGLedgerRepository{db: db}
}

// AppendGroup writes one balanced group of ledger entries through q, which
// is normally the transaction of the state change being recorded. The
// balance check happens before any row is written; an unbalanced group is a
// programming defect in a fee-calculation path and aborts the whole
// operation.
func (r *PGLedgerRepository) AppendGroup(ctx context.Context, q Querier, entries []domain.LedgerEntry) error {
	if len(entries) == 0 {
		return fmt.Errorf("ledger group must contain entries")
	}
	if !domain.GroupBalanced(entries) {
		return fmt.Errorf("%w: group %s", domain.ErrUnbalancedGroup, entries[0].TransactionGroupID)
	}

	for _, e := range entries {
		id := e.ID
		if id == uuid.Nil {
			id = uuid.New()
		}
		_, err := q.Exec(ctx, `
			INSERT INTO transactions (
				id, transaction_group_id, account_type, entity_id,
				debit, credit, currency, reference_type, reference_id,
				description, created_at
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, now())`,
			id, e.TransactionGroupID, e.AccountType, e.EntityID,
			e.Debit, e.Credit, e.Currency, e.ReferenceType, e.ReferenceID,
			e.Description,
		)
		if err != nil {
			return fmt.Errorf("failed to append ledger entry: %w", err)
		}
	}
	metrics.IncLedgerGroup(string(entries[0].ReferenceType))
	return nil
}

func (r *PGLedgerRepository) SumByGroup(ctx context.Context, groupID uuid.UUID) (int64, int64, error) {
	var debit, credit int64
	err := r.db.QueryRow(ctx, `
		SELECT COALESCE(SUM(debit), 0), COALESCE(SUM(credit), 0)
		FROM transactions WHERE transaction_group_id = $1`, groupID).
		Scan(&debit, &credit)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to sum ledger group: %w", err)
	}
	return debit, credit, nil
}

func (r *PGLedgerRepository) GroupsByReference(ctx context.Context, refType domain.ReferenceType, refID uuid.UUID) ([]domain.LedgerEntry, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id, transaction_group_id, account_type, entity_id,
		       debit, credit, currency, reference_type, reference_id,
		       description, created_at
		FROM transactions
		WHERE reference_type = $1 AND reference_id = $2
		ORDER BY created_at`, refType, refID)
	if err != nil {
		return nil, fmt.Errorf("failed to query ledger entries: %w", err)
	}
	defer rows.Close()

	var entries []domain.LedgerEntry
	for rows.Next() {
		var e domain.LedgerEntry
		if err := rows.Scan(&e.ID, &e.TransactionGroupID, &e.AccountType, &e.EntityID,
			&e.Debit, &e.Credit, &e.Currency, &e.ReferenceType, &e.ReferenceID,
			&e.Description, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan ledger entry: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

var _ LedgerRepository = (*PGLedgerRepository)(nil)
