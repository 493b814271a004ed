package payments

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/angelmondragon/storefront-backend/pkg/enums"
)

const (
	chargePrefix  = "pay_"
	refundPrefix  = "ref_"
	failurePrefix = "fail_"

	// transaction ids carry 8 random bytes rendered as 16 hex chars
	transactionIDBytes = 8
)

const (
	MessageSuspiciousAmount     = "Payment declined: suspicious amount"
	MessageAmountOverLimit      = "Payment failed: amount exceeds permitted limit"
	MessageInvalidCard          = "Payment failed: invalid card number"
	MessageProcessed            = "Payment processed successfully"
	MessageRefunded             = "Refund processed successfully"
	MessageInvalidTxn           = "Invalid transaction ID"
	MessageRefundAmountRequired = "Refund amount is required"
)

// PaymentDetails is the instrument and amount submitted for a charge.
type PaymentDetails struct {
	Amount         decimal.Decimal     `json:"amount"`
	Method         enums.PaymentMethod `json:"paymentMethod"`
	CardNumber     string              `json:"cardNumber,omitempty"`
	CardExpiry     string              `json:"cardExpiry,omitempty"`
	CardCVC        string              `json:"cardCVC,omitempty"`
	CardholderName string              `json:"cardholderName,omitempty"`
	PaymentToken   string              `json:"paymentToken,omitempty"`
}

// PaymentResult is the processor outcome of a single charge or refund.
type PaymentResult struct {
	TransactionID string              `json:"transactionId"`
	Status        enums.PaymentStatus `json:"status"`
	Amount        decimal.Decimal     `json:"amount"`
	Timestamp     time.Time           `json:"timestamp"`
	Message       string              `json:"message"`
}

// Succeeded reports whether the charge was accepted.
func (r PaymentResult) Succeeded() bool {
	return r.Status == enums.PaymentStatusCompleted
}

// VerifyResult answers whether a transaction id refers to an issued charge.
type VerifyResult struct {
	Verified bool `json:"verified"`
}

// IsChargeID reports whether id has the shape of an issued charge id.
func IsChargeID(id string) bool {
	return strings.HasPrefix(id, chargePrefix) && len(id) > len(chargePrefix)
}
