package domain

import (
	"time"

	"github.com/google/uuid"
)

type PaymentGateway string

const (
	GatewayAzamPay PaymentGateway = "azampay"
	GatewaySelcom  PaymentGateway = "selcom"
	GatewayStripe  PaymentGateway = "stripe"
)

type PaymentMethod string

const (
	MethodMobileMoney  PaymentMethod = "mobile_money"
	MethodCard         PaymentMethod = "card"
	MethodBankTransfer PaymentMethod = "bank_transfer"
)

type TransactionStatus string

const (
	TxInitiated TransactionStatus = "initiated"
	TxPending   TransactionStatus = "pending"
	TxSuccess   TransactionStatus = "success"
	TxFailed    TransactionStatus = "failed"
	TxCancelled TransactionStatus = "cancelled"
)

// Terminal reports whether a payment may no longer change status.
func (s TransactionStatus) Terminal() bool {
	switch s {
	case TxSuccess, TxFailed, TxCancelled:
		return true
	}
	return false
}

// Payment is one attempt to collect money for one booking via one gateway.
// A booking may accumulate failed attempts, but at most one payment ever
// reaches success.
type Payment struct {
	ID               uuid.UUID
	BookingID        uuid.UUID
	GuestID          uuid.UUID
	Amount           int64
	Currency         string
	Gateway          PaymentGateway
	GatewayReference string
	PaymentMethod    PaymentMethod
	PhoneNumber      string
	Status           TransactionStatus
	FailureReason    string
	GatewayFee       int64
	NetAmount        int64
	ExtraData        []byte
	IdempotencyKey   string
	PaidAt           *time.Time
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

type RefundReason string

const (
	RefundReasonCancellation RefundReason = "cancellation"
	RefundReasonDispute      RefundReason = "dispute"
	RefundReasonSystemError  RefundReason = "system_error"
)

// Refund reverses part or all of a prior successful payment.
type Refund struct {
	ID               uuid.UUID
	PaymentID        uuid.UUID
	BookingID        uuid.UUID
	GuestID          uuid.UUID
	Amount           int64
	Currency         string
	Reason           RefundReason
	ReasonDetail     string
	Gateway          PaymentGateway
	GatewayReference string
	Status           TransactionStatus
	ProcessedBy      *uuid.UUID
	ProcessedAt      *time.Time
	CreatedAt        time.Time
}
