package payments

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/angelmondragon/storefront-backend/pkg/config"
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
	"github.com/angelmondragon/storefront-backend/pkg/metrics"
	"github.com/angelmondragon/storefront-backend/pkg/security"
)

// Processor simulates a payment gateway backed by a local ledger.
type Processor interface {
	ProcessPayment(ctx context.Context, details PaymentDetails) (*PaymentResult, error)
	RefundPayment(ctx context.Context, transactionID string, amount *decimal.Decimal) (*PaymentResult, error)
	Refundable(ctx context.Context, transactionID string) (decimal.Decimal, error)
	VerifyPayment(ctx context.Context, transactionID string) (*VerifyResult, error)
}

type policy struct {
	suspicious   decimal.Decimal
	max          decimal.Decimal
	declinedCard string
}

type processor struct {
	repo    Repository
	policy  policy
	metrics *metrics.PaymentMetrics
	logg    *logger.Logger
	now     func() time.Time
	newID   func(prefix string) (string, error)
}

// NewProcessor wires the processor with its ledger and decision policy.
func NewProcessor(repo Repository, cfg config.PaymentsConfig, m *metrics.PaymentMetrics, logg *logger.Logger) (Processor, error) {
	if repo == nil {
		return nil, fmt.Errorf("payment repository required")
	}
	suspicious, max, err := cfg.Limits()
	if err != nil {
		return nil, err
	}
	return &processor{
		repo: repo,
		policy: policy{
			suspicious:   suspicious,
			max:          max,
			declinedCard: strings.TrimSpace(cfg.DeclinedCard),
		},
		metrics: m,
		logg:    logg,
		now:     time.Now,
		newID:   newTransactionID,
	}, nil
}

func newTransactionID(prefix string) (string, error) {
	suffix, err := security.RandomHex(transactionIDBytes)
	if err != nil {
		return "", err
	}
	return prefix + suffix, nil
}

func (p *processor) ProcessPayment(ctx context.Context, details PaymentDetails) (*PaymentResult, error) {
	if err := validateDetails(details); err != nil {
		return nil, err
	}

	accepted, message := p.decide(details)
	status := enums.PaymentStatusCompleted
	prefix := chargePrefix
	if !accepted {
		status = enums.PaymentStatusFailed
		prefix = failurePrefix
	}

	ledgerID, err := p.newID(prefix)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "generate transaction id")
	}

	method := details.Method
	if err := p.repo.Create(ctx, &models.PaymentTransaction{
		TransactionID: ledgerID,
		Kind:          enums.PaymentTransactionCharge,
		Method:        &method,
		Status:        status,
		Amount:        details.Amount,
		Message:       message,
	}); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "record payment transaction")
	}
	p.metrics.Inc(string(enums.PaymentTransactionCharge), string(status))

	result := &PaymentResult{
		Status:    status,
		Amount:    details.Amount,
		Timestamp: p.now().UTC(),
		Message:   message,
	}
	if accepted {
		result.TransactionID = ledgerID
	} else if p.logg != nil {
		logCtx := p.logg.WithFields(ctx, map[string]any{
			"ledger_id": ledgerID,
			"method":    string(details.Method),
			"amount":    details.Amount.String(),
		})
		p.logg.Warn(logCtx, "payment declined: "+message)
	}
	return result, nil
}

// decide applies the decision policy in order: suspicious amount, amount
// limit, declined card.
func (p *processor) decide(details PaymentDetails) (bool, string) {
	switch {
	case details.Amount.Equal(p.policy.suspicious):
		return false, MessageSuspiciousAmount
	case details.Amount.GreaterThan(p.policy.max):
		return false, MessageAmountOverLimit
	case p.policy.declinedCard != "" && details.CardNumber == p.policy.declinedCard:
		return false, MessageInvalidCard
	default:
		return true, MessageProcessed
	}
}

func validateDetails(details PaymentDetails) error {
	if !details.Method.IsValid() {
		return pkgerrors.Newf(pkgerrors.CodeValidation, "unsupported payment method %q", details.Method)
	}
	if !details.Amount.IsPositive() {
		return pkgerrors.New(pkgerrors.CodeValidation, "amount must be greater than zero")
	}
	if details.Method == enums.PaymentMethodCreditCard {
		missing := missingCardFields(details)
		if len(missing) > 0 {
			return pkgerrors.New(pkgerrors.CodeValidation, "credit card payments require card number, expiry, CVC and cardholder name").
				WithDetails(map[string]any{"missing": missing})
		}
		return nil
	}
	if details.Method.RequiresToken() && strings.TrimSpace(details.PaymentToken) == "" {
		return pkgerrors.Newf(pkgerrors.CodeValidation, "%s payments require a payment token", details.Method)
	}
	return nil
}

func missingCardFields(details PaymentDetails) []string {
	var missing []string
	if strings.TrimSpace(details.CardNumber) == "" {
		missing = append(missing, "cardNumber")
	}
	if strings.TrimSpace(details.CardExpiry) == "" {
		missing = append(missing, "cardExpiry")
	}
	if strings.TrimSpace(details.CardCVC) == "" {
		missing = append(missing, "cardCVC")
	}
	if strings.TrimSpace(details.CardholderName) == "" {
		missing = append(missing, "cardholderName")
	}
	return missing
}

// RefundPayment refunds part or all of a charge. The amount is required and
// may not exceed what remains of a charge known to the ledger.
func (p *processor) RefundPayment(ctx context.Context, transactionID string, amount *decimal.Decimal) (*PaymentResult, error) {
	if !IsChargeID(transactionID) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, MessageInvalidTxn)
	}
	if amount == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, MessageRefundAmountRequired)
	}
	if !amount.IsPositive() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "refund amount must be greater than zero")
	}

	charge, err := p.repo.FindByTransactionID(ctx, transactionID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load charge")
	}

	refundAmount := *amount
	if charge != nil {
		if charge.Kind != enums.PaymentTransactionCharge || charge.Status != enums.PaymentStatusCompleted {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, MessageInvalidTxn)
		}
		remaining, err := p.remaining(ctx, charge)
		if err != nil {
			return nil, err
		}
		if refundAmount.GreaterThan(remaining) {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "refund exceeds the refundable amount").
				WithDetails(map[string]any{"refundable": remaining})
		}
	}

	refundID, err := p.newID(refundPrefix)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "generate refund id")
	}
	parent := transactionID
	if err := p.repo.Create(ctx, &models.PaymentTransaction{
		TransactionID:       refundID,
		Kind:                enums.PaymentTransactionRefund,
		Status:              enums.PaymentStatusRefunded,
		Amount:              refundAmount,
		Message:             MessageRefunded,
		ParentTransactionID: &parent,
	}); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "record refund transaction")
	}
	p.metrics.Inc(string(enums.PaymentTransactionRefund), string(enums.PaymentStatusRefunded))

	return &PaymentResult{
		TransactionID: refundID,
		Status:        enums.PaymentStatusRefunded,
		Amount:        refundAmount,
		Timestamp:     p.now().UTC(),
		Message:       MessageRefunded,
	}, nil
}

// Refundable reports how much of a charge can still be refunded. Charges the
// ledger never recorded are not refundable here.
func (p *processor) Refundable(ctx context.Context, transactionID string) (decimal.Decimal, error) {
	if !IsChargeID(transactionID) {
		return decimal.Zero, pkgerrors.New(pkgerrors.CodeValidation, MessageInvalidTxn)
	}
	charge, err := p.repo.FindByTransactionID(ctx, transactionID)
	if err != nil {
		return decimal.Zero, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load charge")
	}
	if charge == nil || charge.Kind != enums.PaymentTransactionCharge || charge.Status != enums.PaymentStatusCompleted {
		return decimal.Zero, nil
	}
	return p.remaining(ctx, charge)
}

func (p *processor) remaining(ctx context.Context, charge *models.PaymentTransaction) (decimal.Decimal, error) {
	refunds, err := p.repo.ListRefunds(ctx, charge.TransactionID)
	if err != nil {
		return decimal.Zero, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load refunds")
	}
	remaining := charge.Amount
	for _, refund := range refunds {
		remaining = remaining.Sub(refund.Amount)
	}
	return remaining, nil
}

func (p *processor) VerifyPayment(ctx context.Context, transactionID string) (*VerifyResult, error) {
	if !IsChargeID(transactionID) {
		return &VerifyResult{Verified: false}, nil
	}
	charge, err := p.repo.FindByTransactionID(ctx, transactionID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load charge")
	}
	verified := charge != nil &&
		charge.Kind == enums.PaymentTransactionCharge &&
		charge.Status == enums.PaymentStatusCompleted
	return &VerifyResult{Verified: verified}, nil
}
