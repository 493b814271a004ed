package payments

import (
	"context"
	"regexp"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/storefront-backend/pkg/config"
	"github.com/angelmondragon/storefront-backend/pkg/db/dbtest"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/metrics"
)

var chargeIDPattern = regexp.MustCompile(`^pay_[0-9a-f]{16}$`)

func defaultPaymentsConfig() config.PaymentsConfig {
	return config.PaymentsConfig{
		SuspiciousAmount: "666",
		MaxAmount:        "10000",
		DeclinedCard:     "4242424242424241",
	}
}

func newTestProcessor(t *testing.T) (Processor, Repository) {
	t.Helper()
	repo := NewRepository(dbtest.Open(t))
	proc, err := NewProcessor(repo, defaultPaymentsConfig(), nil, nil)
	require.NoError(t, err)
	return proc, repo
}

func card(amount string) PaymentDetails {
	return PaymentDetails{
		Amount:         decimal.RequireFromString(amount),
		Method:         enums.PaymentMethodCreditCard,
		CardNumber:     "4111111111111111",
		CardExpiry:     "12/29",
		CardCVC:        "123",
		CardholderName: "Jane Doe",
	}
}

func TestProcessPaymentDecisionPolicy(t *testing.T) {
	ctx := context.Background()
	proc, _ := newTestProcessor(t)

	declinedCard := card("50")
	declinedCard.CardNumber = "4242424242424241"

	cases := []struct {
		name    string
		details PaymentDetails
		status  enums.PaymentStatus
		message string
	}{
		{"suspicious", card("666"), enums.PaymentStatusFailed, MessageSuspiciousAmount},
		{"over limit", card("10000.01"), enums.PaymentStatusFailed, MessageAmountOverLimit},
		{"at limit", card("10000"), enums.PaymentStatusCompleted, MessageProcessed},
		{"declined card", declinedCard, enums.PaymentStatusFailed, MessageInvalidCard},
		{"accepted", card("99.90"), enums.PaymentStatusCompleted, MessageProcessed},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			result, err := proc.ProcessPayment(ctx, tc.details)
			require.NoError(t, err)
			assert.Equal(t, tc.status, result.Status)
			assert.Equal(t, tc.message, result.Message)
			assert.True(t, result.Amount.Equal(tc.details.Amount))
			if tc.status == enums.PaymentStatusCompleted {
				assert.Regexp(t, chargeIDPattern, result.TransactionID)
			} else {
				assert.Empty(t, result.TransactionID)
			}
		})
	}
}

func TestProcessPaymentSuspiciousWinsOverCard(t *testing.T) {
	proc, _ := newTestProcessor(t)
	details := card("666")
	details.CardNumber = "4242424242424241"

	result, err := proc.ProcessPayment(context.Background(), details)
	require.NoError(t, err)
	assert.Equal(t, MessageSuspiciousAmount, result.Message)
}

func TestProcessPaymentValidation(t *testing.T) {
	proc, _ := newTestProcessor(t)

	missingCVC := card("10")
	missingCVC.CardCVC = ""
	wallet := PaymentDetails{Amount: decimal.NewFromInt(10), Method: enums.PaymentMethodApplePay}
	zero := card("0")
	unknown := card("10")
	unknown.Method = "bitcoin"

	for name, details := range map[string]PaymentDetails{
		"missing cvc":    missingCVC,
		"wallet token":   wallet,
		"zero amount":    zero,
		"unknown method": unknown,
	} {
		_, err := proc.ProcessPayment(context.Background(), details)
		assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation), name)
	}

	wallet.PaymentToken = "tok_abc"
	result, err := proc.ProcessPayment(context.Background(), wallet)
	require.NoError(t, err)
	assert.Equal(t, enums.PaymentStatusCompleted, result.Status)
}

func TestFailedChargeIsLedgeredButNotVerifiable(t *testing.T) {
	ctx := context.Background()
	proc, repo := newTestProcessor(t)

	result, err := proc.ProcessPayment(ctx, card("666"))
	require.NoError(t, err)
	require.Empty(t, result.TransactionID)

	var count int64
	require.NoError(t, repo.(*repository).db.Table("payment_transactions").Where("transaction_id LIKE ?", "fail_%").Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

func TestVerifyPaymentRequiresLedgerMatch(t *testing.T) {
	ctx := context.Background()
	proc, _ := newTestProcessor(t)

	charged, err := proc.ProcessPayment(ctx, card("25"))
	require.NoError(t, err)

	verified, err := proc.VerifyPayment(ctx, charged.TransactionID)
	require.NoError(t, err)
	assert.True(t, verified.Verified)

	for _, id := range []string{"pay_0000000000000000", "ref_0123456789abcdef", "", "pay_"} {
		got, err := proc.VerifyPayment(ctx, id)
		require.NoError(t, err)
		assert.False(t, got.Verified, id)
	}
}

func TestRefundPayment(t *testing.T) {
	ctx := context.Background()
	proc, _ := newTestProcessor(t)

	charged, err := proc.ProcessPayment(ctx, card("100"))
	require.NoError(t, err)

	partial := decimal.NewFromInt(40)
	refund, err := proc.RefundPayment(ctx, charged.TransactionID, &partial)
	require.NoError(t, err)
	assert.Regexp(t, `^ref_[0-9a-f]{16}$`, refund.TransactionID)
	assert.Equal(t, enums.PaymentStatusRefunded, refund.Status)
	assert.Equal(t, MessageRefunded, refund.Message)
	assert.True(t, refund.Amount.Equal(partial))

	tooMuch := decimal.NewFromInt(61)
	_, err = proc.RefundPayment(ctx, charged.TransactionID, &tooMuch)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))

	refundable, err := proc.Refundable(ctx, charged.TransactionID)
	require.NoError(t, err)
	assert.True(t, refundable.Equal(decimal.NewFromInt(60)))

	rest := decimal.NewFromInt(60)
	_, err = proc.RefundPayment(ctx, charged.TransactionID, &rest)
	require.NoError(t, err)

	refundable, err = proc.Refundable(ctx, charged.TransactionID)
	require.NoError(t, err)
	assert.True(t, refundable.IsZero())

	one := decimal.NewFromInt(1)
	_, err = proc.RefundPayment(ctx, charged.TransactionID, &one)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
}

func TestRefundPaymentRequiresAmount(t *testing.T) {
	ctx := context.Background()
	proc, repo := newTestProcessor(t)

	charged, err := proc.ProcessPayment(ctx, card("100"))
	require.NoError(t, err)

	for _, id := range []string{charged.TransactionID, "pay_fedcba9876543210"} {
		_, err := proc.RefundPayment(ctx, id, nil)
		require.Error(t, err)
		assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation), id)
		assert.Equal(t, MessageRefundAmountRequired, pkgerrors.As(err).Message(), id)
	}

	zero := decimal.Zero
	_, err = proc.RefundPayment(ctx, charged.TransactionID, &zero)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))

	refunds, err := repo.ListRefunds(ctx, charged.TransactionID)
	require.NoError(t, err)
	assert.Empty(t, refunds)
}

func TestRefundPaymentRejectsInvalidIDs(t *testing.T) {
	proc, _ := newTestProcessor(t)
	amount := decimal.NewFromInt(5)

	for _, id := range []string{"", "ref_0123456789abcdef", "txn_1"} {
		_, err := proc.RefundPayment(context.Background(), id, &amount)
		require.Error(t, err)
		assert.Equal(t, MessageInvalidTxn, pkgerrors.As(err).Message(), id)
	}

	// unknown but well-formed charge ids refund the requested amount
	refund, err := proc.RefundPayment(context.Background(), "pay_0123456789abcdef", &amount)
	require.NoError(t, err)
	assert.True(t, refund.Amount.Equal(amount))

	refundable, err := proc.Refundable(context.Background(), "pay_fedcba9876543210")
	require.NoError(t, err)
	assert.True(t, refundable.IsZero())
}

func TestProcessorRecordsMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.NewPaymentMetrics(reg)
	proc, err := NewProcessor(NewRepository(dbtest.Open(t)), defaultPaymentsConfig(), m, nil)
	require.NoError(t, err)

	_, err = proc.ProcessPayment(context.Background(), card("10"))
	require.NoError(t, err)
	_, err = proc.ProcessPayment(context.Background(), card("666"))
	require.NoError(t, err)

	families, err := reg.Gather()
	require.NoError(t, err)
	var series int
	for _, mf := range families {
		if mf.GetName() == "storefront_payments_decisions_total" {
			series = len(mf.GetMetric())
		}
	}
	assert.Equal(t, 2, series)
}

func TestNewProcessorRejectsBadLimits(t *testing.T) {
	cfg := defaultPaymentsConfig()
	cfg.MaxAmount = "lots"
	_, err := NewProcessor(NewRepository(dbtest.Open(t)), cfg, nil, nil)
	assert.Error(t, err)

	_, err = NewProcessor(nil, defaultPaymentsConfig(), nil, nil)
	assert.Error(t, err)
}
