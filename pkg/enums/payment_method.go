package enums

import "slices"

// PaymentMethod enumerates the instruments the processor accepts.
type PaymentMethod string

const (
	PaymentMethodCreditCard PaymentMethod = "credit_card"
	PaymentMethodPayPal     PaymentMethod = "paypal"
	PaymentMethodApplePay   PaymentMethod = "apple_pay"
	PaymentMethodGooglePay  PaymentMethod = "google_pay"
)

var validPaymentMethods = []PaymentMethod{
	PaymentMethodCreditCard,
	PaymentMethodPayPal,
	PaymentMethodApplePay,
	PaymentMethodGooglePay,
}

func (m PaymentMethod) String() string {
	return string(m)
}

func (m PaymentMethod) IsValid() bool {
	return slices.Contains(validPaymentMethods, m)
}

// RequiresToken reports whether the method is a wallet authorised by a payment token.
func (m PaymentMethod) RequiresToken() bool {
	return m == PaymentMethodPayPal || m == PaymentMethodApplePay || m == PaymentMethodGooglePay
}

func ParsePaymentMethod(value string) (PaymentMethod, error) {
	return parse(value, validPaymentMethods, "payment method")
}

// PaymentTransactionKind separates charges from refunds in the ledger.
type PaymentTransactionKind string

const (
	PaymentTransactionCharge PaymentTransactionKind = "charge"
	PaymentTransactionRefund PaymentTransactionKind = "refund"
)
