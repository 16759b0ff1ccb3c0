package domain

import (
	"time"

	"github.com/google/uuid"
)

type AccountType string

const (
	AccountGuestWallet       AccountType = "guest_wallet"
	AccountHostWallet        AccountType = "host_wallet"
	AccountPlatformWallet    AccountType = "platform_wallet"
	AccountGatewayReceivable AccountType = "gateway_receivable"
	AccountPlatformRevenue   AccountType = "platform_revenue"
	AccountGatewayFees       AccountType = "gateway_fees"
)

type ReferenceType string

const (
	RefPayment ReferenceType = "payment"
	RefPayout  ReferenceType = "payout"
	RefRefund  ReferenceType = "refund"
	RefBooking ReferenceType = "booking"
	RefFee     ReferenceType = "fee"
)

// LedgerEntry is one debit or credit against one logical account. Entries
// sharing a TransactionGroupID form a balanced group: within a group
// sum(debit) must equal sum(credit). Entries are append-only; corrections
// are new balancing groups referencing the original.
type LedgerEntry struct {
	ID                 uuid.UUID
	TransactionGroupID uuid.UUID
	AccountType        AccountType
	EntityID           *uuid.UUID
	Debit              int64
	Credit             int64
	Currency           string
	ReferenceType      ReferenceType
	ReferenceID        uuid.UUID
	Description        string
	CreatedAt          time.Time
}

// GroupBalanced reports whether sum(debit) == sum(credit) over the entries.
func GroupBalanced(entries []LedgerEntry) bool {
	var debit, credit int64
	for _, e := range entries {
		debit += e.Debit
		credit += e.Credit
	}
	return debit == credit
}

// PaymentSplitEntries builds the balanced group recorded when a payment
// succeeds: the full amount lands on the gateway receivable, split into the
// host's share and the platform fee.
func PaymentSplitEntries(groupID uuid.UUID, b *Booking, p *Payment) []LedgerEntry {
	hostShare := p.Amount - b.PlatformFee
	return []LedgerEntry{
		{
			TransactionGroupID: groupID,
			AccountType:        AccountGatewayReceivable,
			Debit:              p.Amount,
			Currency:           p.Currency,
			ReferenceType:      RefPayment,
			ReferenceID:        p.ID,
			Description:        "guest payment received for booking " + b.ID.String(),
		},
		{
			TransactionGroupID: groupID,
			AccountType:        AccountHostWallet,
			EntityID:           ptr(b.HostID),
			Credit:             hostShare,
			Currency:           p.Currency,
			ReferenceType:      RefPayment,
			ReferenceID:        p.ID,
			Description:        "host share for booking " + b.ID.String(),
		},
		{
			TransactionGroupID: groupID,
			AccountType:        AccountPlatformRevenue,
			Credit:             b.PlatformFee,
			Currency:           p.Currency,
			ReferenceType:      RefFee,
			ReferenceID:        b.ID,
			Description:        "platform fee for booking " + b.ID.String(),
		},
	}
}

// RefundReversalEntries builds the balanced group that reverses the original
// payment split for a (possibly partial) refund. Debits are taken from the
// host wallet and platform revenue in proportion to the original split, with
// the integer remainder charged to platform revenue so the group always
// balances exactly.
func RefundReversalEntries(groupID uuid.UUID, b *Booking, p *Payment, r *Refund) []LedgerEntry {
	hostCredit := p.Amount - b.PlatformFee
	var hostDebit int64
	if p.Amount > 0 {
		hostDebit = r.Amount * hostCredit / p.Amount
	}
	platformDebit := r.Amount - hostDebit
	return []LedgerEntry{
		{
			TransactionGroupID: groupID,
			AccountType:        AccountHostWallet,
			EntityID:           ptr(b.HostID),
			Debit:              hostDebit,
			Currency:           r.Currency,
			ReferenceType:      RefRefund,
			ReferenceID:        r.ID,
			Description:        "host share reversal for booking " + b.ID.String(),
		},
		{
			TransactionGroupID: groupID,
			AccountType:        AccountPlatformRevenue,
			Debit:              platformDebit,
			Currency:           r.Currency,
			ReferenceType:      RefRefund,
			ReferenceID:        r.ID,
			Description:        "platform fee reversal for booking " + b.ID.String(),
		},
		{
			TransactionGroupID: groupID,
			AccountType:        AccountGuestWallet,
			EntityID:           ptr(b.GuestID),
			Credit:             r.Amount,
			Currency:           r.Currency,
			ReferenceType:      RefRefund,
			ReferenceID:        r.ID,
			Description:        "refund to guest for booking " + b.ID.String(),
		},
	}
}

func ptr(id uuid.UUID) *uuid.UUID { return &id }
