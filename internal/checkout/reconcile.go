package checkout

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/multierr"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-backend/internal/cart"
	"github.com/angelmondragon/storefront-backend/internal/orders"
	"github.com/angelmondragon/storefront-backend/pkg/config"
	"github.com/angelmondragon/storefront-backend/pkg/db"
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
	"github.com/angelmondragon/storefront-backend/pkg/outbox"
	"github.com/angelmondragon/storefront-backend/pkg/outbox/payloads"
)

var errChargeNotRecorded = errors.New("charge outcome was never recorded on the saga")

// ReconcileReport summarises one reconciler pass.
type ReconcileReport struct {
	Scanned        int
	Completed      int
	Failed         int
	NeedsAttention int
	Retrying       int
}

// Reconciler resumes checkouts that stopped between charge and cart clear.
type Reconciler struct {
	tx       txRunner
	sagas    Repository
	orders   orders.Repository
	cart     cart.Repository
	refunder orders.Refunder
	outbox   outboxPublisher
	cfg      config.CheckoutConfig
	logg     *logger.Logger
	now      func() time.Time
}

// ReconcilerDeps groups the collaborators of the reconciler.
type ReconcilerDeps struct {
	Tx       txRunner
	Sagas    Repository
	Orders   orders.Repository
	Cart     cart.Repository
	Refunder orders.Refunder
	Outbox   outboxPublisher
	Config   config.CheckoutConfig
	Logger   *logger.Logger
}

func NewReconciler(deps ReconcilerDeps) (*Reconciler, error) {
	switch {
	case deps.Tx == nil:
		return nil, fmt.Errorf("tx runner required")
	case deps.Sagas == nil:
		return nil, fmt.Errorf("saga repository required")
	case deps.Orders == nil:
		return nil, fmt.Errorf("orders repository required")
	case deps.Cart == nil:
		return nil, fmt.Errorf("cart repository required")
	case deps.Refunder == nil:
		return nil, fmt.Errorf("refunder required")
	case deps.Outbox == nil:
		return nil, fmt.Errorf("outbox publisher required")
	}
	cfg := deps.Config
	if cfg.ReconcileMaxAttempts <= 0 {
		cfg.ReconcileMaxAttempts = 5
	}
	if cfg.ReconcileBatchSize <= 0 {
		cfg.ReconcileBatchSize = 100
	}
	return &Reconciler{
		tx:       deps.Tx,
		sagas:    deps.Sagas,
		orders:   deps.Orders,
		cart:     deps.Cart,
		refunder: deps.Refunder,
		outbox:   deps.Outbox,
		cfg:      cfg,
		logg:     deps.Logger,
		now:      time.Now,
	}, nil
}

// Run processes one batch of stale sagas. Per-saga failures are counted and
// retried on the next pass; only listing errors abort the run.
func (r *Reconciler) Run(ctx context.Context) (ReconcileReport, error) {
	var report ReconcileReport
	cutoff := r.now().UTC().Add(-r.cfg.SagaStaleAfter)
	sagas, err := r.sagas.ListStale(ctx, cutoff, enums.ResumableCheckoutStates(), r.cfg.ReconcileBatchSize)
	if err != nil {
		return report, fmt.Errorf("list stale sagas: %w", err)
	}
	report.Scanned = len(sagas)

	var errs error
	for i := range sagas {
		saga := &sagas[i]
		sagaCtx := ctx
		if r.logg != nil {
			sagaCtx = r.logg.WithFields(ctx, map[string]any{
				"saga_id": saga.ID.String(),
				"state":   string(saga.State),
			})
		}
		final, stepErr := r.resume(sagaCtx, saga)
		if stepErr == nil {
			switch final {
			case enums.CheckoutStateDone:
				report.Completed++
			case enums.CheckoutStateFailed:
				report.Failed++
			}
			continue
		}

		attempts := saga.Attempts + 1
		if attempts >= r.cfg.ReconcileMaxAttempts {
			if err := r.flag(sagaCtx, saga, final, attempts, stepErr); err != nil {
				errs = multierr.Append(errs, err)
				continue
			}
			report.NeedsAttention++
			continue
		}
		if err := r.sagas.Update(sagaCtx, saga.ID, map[string]any{
			"attempts":   attempts,
			"last_error": stepErr.Error(),
		}); err != nil {
			errs = multierr.Append(errs, err)
		}
		report.Retrying++
		if r.logg != nil {
			r.logg.Warn(r.logg.WithField(sagaCtx, "error", stepErr.Error()), "checkout.reconcile.retry")
		}
	}
	return report, errs
}

// resume drives a saga forward and returns the last state it reached.
func (r *Reconciler) resume(ctx context.Context, saga *models.CheckoutSaga) (enums.CheckoutState, error) {
	state := saga.State
	for !state.Terminal() {
		next, err := r.step(ctx, saga, state)
		if err != nil {
			return state, err
		}
		if err := r.sagas.Update(ctx, saga.ID, map[string]any{"state": next}); err != nil {
			return state, err
		}
		state = next
	}
	return state, nil
}

func (r *Reconciler) step(ctx context.Context, saga *models.CheckoutSaga, state enums.CheckoutState) (enums.CheckoutState, error) {
	switch state {
	case enums.CheckoutStateCreated:
		if saga.TransactionID == nil || *saga.TransactionID == "" {
			// nothing was charged, or the charge was never recorded here
			if r.logg != nil {
				r.logg.Warn(ctx, "checkout.reconcile.abandoned")
			}
			if err := r.sagas.Update(ctx, saga.ID, map[string]any{"last_error": errChargeNotRecorded.Error()}); err != nil {
				return state, err
			}
			return enums.CheckoutStateFailed, nil
		}
		refundable, err := r.refunder.Refundable(ctx, *saga.TransactionID)
		if err != nil {
			return state, fmt.Errorf("load refundable amount: %w", err)
		}
		if amount := decimal.Min(saga.Amount, refundable); amount.IsPositive() {
			if _, err := r.refunder.RefundPayment(ctx, *saga.TransactionID, &amount); err != nil {
				return state, fmt.Errorf("refund orphan charge: %w", err)
			}
		}
		if r.logg != nil {
			r.logg.Info(r.logg.WithField(ctx, "transaction_id", *saga.TransactionID), "checkout.reconcile.refunded")
		}
		return enums.CheckoutStateFailed, nil
	case enums.CheckoutStatePaid:
		if saga.OrderID == nil {
			return state, fmt.Errorf("paid saga has no order")
		}
		exists, err := r.orders.LinkExistsForOrder(ctx, *saga.OrderID)
		if err != nil {
			return state, err
		}
		if !exists {
			err := r.orders.CreateLink(ctx, &models.UserOrder{UserID: saga.UserID, OrderID: *saga.OrderID})
			if err != nil && !db.IsUniqueViolation(err, "") {
				return state, fmt.Errorf("link order: %w", err)
			}
		}
		return enums.CheckoutStateLinked, nil
	case enums.CheckoutStateLinked:
		if err := consumeCart(ctx, r.tx, r.sagas, r.cart, saga.ID, saga.UserID, saga.Items); err != nil {
			return state, fmt.Errorf("clear cart: %w", err)
		}
		return enums.CheckoutStateCartCleared, nil
	case enums.CheckoutStateCartCleared:
		return enums.CheckoutStateDone, nil
	}
	return state, fmt.Errorf("unexpected saga state %q", state)
}

// flag parks the saga for an operator and emits checkout_needs_attention.
func (r *Reconciler) flag(ctx context.Context, saga *models.CheckoutSaga, reached enums.CheckoutState, attempts int, cause error) error {
	txID := ""
	if saga.TransactionID != nil {
		txID = *saga.TransactionID
	}
	err := r.tx.WithTx(ctx, func(tx *gorm.DB) error {
		if err := r.sagas.WithTx(tx).Update(ctx, saga.ID, map[string]any{
			"state":      enums.CheckoutStateNeedsAttention,
			"attempts":   attempts,
			"last_error": cause.Error(),
		}); err != nil {
			return err
		}
		return r.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventCheckoutNeedsAttention,
			AggregateType: enums.AggregateCheckout,
			AggregateID:   saga.ID,
			Actor:         outbox.SystemActor(),
			Data: payloads.CheckoutNeedsAttentionEvent{
				SagaID:        saga.ID,
				UserID:        saga.UserID,
				State:         reached,
				OrderID:       saga.OrderID,
				TransactionID: txID,
				Attempts:      attempts,
				LastError:     cause.Error(),
			},
		})
	})
	if err != nil {
		return fmt.Errorf("flag saga %s: %w", saga.ID, err)
	}
	if r.logg != nil {
		r.logg.Error(ctx, "checkout.reconcile.needs_attention", cause)
	}
	return nil
}
