package repository

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"

	"github.com/wibonela/boma/internal/domain"
)

// recordingQuerier counts writes so balance-gate tests can assert nothing
// reached the database.
type recordingQuerier struct {
	execs int
}

func (q *recordingQuerier) Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	q.execs++
	return pgconn.CommandTag{}, nil
}

func (q *recordingQuerier) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	return nil, nil
}

func (q *recordingQuerier) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	return nil
}

func TestNewLedgerRepository(t *testing.T) {
	repo := NewLedgerRepository(&pgxpool.Pool{})
	assert.NotNil(t, repo)
}

func TestAppendGroup_RejectsUnbalancedGroupBeforeWriting(t *testing.T) {
	repo := NewLedgerRepository(nil)
	q := &recordingQuerier{}

	groupID := uuid.New()
	err := repo.AppendGroup(context.Background(), q, []domain.LedgerEntry{
		{TransactionGroupID: groupID, AccountType: domain.AccountGatewayReceivable, Debit: 176000},
		{TransactionGroupID: groupID, AccountType: domain.AccountHostWallet, Credit: 160000},
	})

	assert.ErrorIs(t, err, domain.ErrUnbalancedGroup)
	assert.Zero(t, q.execs)
}

func TestAppendGroup_RejectsEmptyGroup(t *testing.T) {
	repo := NewLedgerRepository(nil)
	q := &recordingQuerier{}

	err := repo.AppendGroup(context.Background(), q, nil)

	assert.Error(t, err)
	assert.Zero(t, q.execs)
}

func TestAppendGroup_WritesEveryEntryOfBalancedGroup(t *testing.T) {
	repo := NewLedgerRepository(nil)
	q := &recordingQuerier{}

	booking := &domain.Booking{ID: uuid.New(), HostID: uuid.New(), PlatformFee: 16000}
	payment := &domain.Payment{ID: uuid.New(), Amount: 176000, Currency: "TZS"}
	entries := domain.PaymentSplitEntries(uuid.New(), booking, payment)

	err := repo.AppendGroup(context.Background(), q, entries)

	assert.NoError(t, err)
	assert.Equal(t, 3, q.execs)
}
