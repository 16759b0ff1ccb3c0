package domain

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestGroupBalanced(t *testing.T) {
	balanced := []LedgerEntry{
		{Debit: 176000},
		{Credit: 160000},
		{Credit: 16000},
	}
	assert.True(t, GroupBalanced(balanced))

	unbalanced := []LedgerEntry{
		{Debit: 176000},
		{Credit: 160000},
	}
	assert.False(t, GroupBalanced(unbalanced))
}

func TestPaymentSplitEntries(t *testing.T) {
	booking := &Booking{
		ID:          uuid.New(),
		HostID:      uuid.New(),
		PlatformFee: 16000,
		TotalPrice:  176000,
	}
	payment := &Payment{
		ID:       uuid.New(),
		Amount:   176000,
		Currency: "TZS",
	}

	entries := PaymentSplitEntries(uuid.New(), booking, payment)

	assert.Len(t, entries, 3)
	assert.True(t, GroupBalanced(entries))

	assert.Equal(t, AccountGatewayReceivable, entries[0].AccountType)
	assert.Equal(t, int64(176000), entries[0].Debit)

	assert.Equal(t, AccountHostWallet, entries[1].AccountType)
	assert.Equal(t, int64(160000), entries[1].Credit)
	assert.Equal(t, booking.HostID, *entries[1].EntityID)

	assert.Equal(t, AccountPlatformRevenue, entries[2].AccountType)
	assert.Equal(t, int64(16000), entries[2].Credit)
}

func TestRefundReversalEntries_FullRefund(t *testing.T) {
	booking := &Booking{ID: uuid.New(), HostID: uuid.New(), GuestID: uuid.New(), PlatformFee: 16000}
	payment := &Payment{ID: uuid.New(), Amount: 176000, Currency: "TZS"}
	refund := &Refund{ID: uuid.New(), Amount: 176000, Currency: "TZS"}

	entries := RefundReversalEntries(uuid.New(), booking, payment, refund)

	assert.True(t, GroupBalanced(entries))
	assert.Equal(t, int64(160000), entries[0].Debit) // host reversal
	assert.Equal(t, int64(16000), entries[1].Debit)  // platform reversal
	assert.Equal(t, int64(176000), entries[2].Credit)
	assert.Equal(t, booking.GuestID, *entries[2].EntityID)
}

func TestRefundReversalEntries_PartialRefundBalancesExactly(t *testing.T) {
	booking := &Booking{ID: uuid.New(), HostID: uuid.New(), GuestID: uuid.New(), PlatformFee: 16000}
	payment := &Payment{ID: uuid.New(), Amount: 176000, Currency: "TZS"}
	// Half refund under the moderate policy. 88000 * 160000 / 176000 = 80000.
	refund := &Refund{ID: uuid.New(), Amount: 88000, Currency: "TZS"}

	entries := RefundReversalEntries(uuid.New(), booking, payment, refund)

	assert.True(t, GroupBalanced(entries))
	assert.Equal(t, int64(80000), entries[0].Debit)
	assert.Equal(t, int64(8000), entries[1].Debit)
	assert.Equal(t, int64(88000), entries[2].Credit)
}

func TestRefundReversalEntries_RemainderGoesToPlatform(t *testing.T) {
	booking := &Booking{ID: uuid.New(), HostID: uuid.New(), GuestID: uuid.New(), PlatformFee: 1}
	payment := &Payment{ID: uuid.New(), Amount: 101, Currency: "TZS"}
	refund := &Refund{ID: uuid.New(), Amount: 50, Currency: "TZS"}

	entries := RefundReversalEntries(uuid.New(), booking, payment, refund)

	// 50 * 100 / 101 truncates to 49; the odd shilling lands on platform
	// revenue, never minted or destroyed.
	assert.True(t, GroupBalanced(entries))
	assert.Equal(t, int64(49), entries[0].Debit)
	assert.Equal(t, int64(1), entries[1].Debit)
	assert.Equal(t, int64(50), entries[2].Credit)
}
