package controllers

import (
	"context"
	"net/http"

	"github.com/shopspring/decimal"

	"github.com/angelmondragon/storefront-backend/api/responses"
	"github.com/angelmondragon/storefront-backend/api/validators"
	"github.com/angelmondragon/storefront-backend/internal/payments"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
)

type refundRequest struct {
	TransactionID string           `json:"transactionId" validate:"required"`
	Amount        *decimal.Decimal `json:"amount"`
}

const MessageChargeBelongsToOrder = "Charge belongs to an order; cancel the order to refund it"

// chargeReferences tells whether a charge backs an order or a checkout.
type chargeReferences interface {
	ChargeReferenced(ctx context.Context, transactionID string) (bool, error)
}

type verifyRequest struct {
	TransactionID string `json:"transactionId" validate:"required"`
}

// PaymentProcess charges an instrument directly. A declined charge is still a
// 200 whose result carries status FAILED and the decline message.
func PaymentProcess(svc payments.Processor, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, unavailable("payments"))
			return
		}

		var body payments.PaymentDetails
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.ProcessPayment(r.Context(), body)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}

// PaymentRefund refunds an explicit amount of a standalone charge. Charges
// behind an order or a checkout are refunded by cancelling the order.
func PaymentRefund(svc payments.Processor, refs chargeReferences, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil || refs == nil {
			responses.WriteError(r.Context(), logg, w, unavailable("payments"))
			return
		}

		var body refundRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if body.Amount == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, payments.MessageRefundAmountRequired))
			return
		}

		referenced, err := refs.ChargeReferenced(r.Context(), body.TransactionID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if referenced {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeConflict, MessageChargeBelongsToOrder))
			return
		}

		result, err := svc.RefundPayment(r.Context(), body.TransactionID, body.Amount)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}

func PaymentVerify(svc payments.Processor, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, unavailable("payments"))
			return
		}

		var body verifyRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.VerifyPayment(r.Context(), body.TransactionID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}
