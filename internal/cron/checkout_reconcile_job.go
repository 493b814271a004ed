package cron

import (
	"context"
	"fmt"

	"github.com/angelmondragon/storefront-backend/internal/checkout"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
)

type sagaReconciler interface {
	Run(ctx context.Context) (checkout.ReconcileReport, error)
}

type CheckoutReconcileJobParams struct {
	Logger     *logger.Logger
	Reconciler sagaReconciler
}

// NewCheckoutReconcileJob wraps the saga reconciler as a cron job.
func NewCheckoutReconcileJob(params CheckoutReconcileJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Reconciler == nil {
		return nil, fmt.Errorf("reconciler required")
	}
	return &checkoutReconcileJob{logg: params.Logger, reconciler: params.Reconciler}, nil
}

type checkoutReconcileJob struct {
	logg       *logger.Logger
	reconciler sagaReconciler
}

func (j *checkoutReconcileJob) Name() string { return "checkout-reconcile" }

func (j *checkoutReconcileJob) Run(ctx context.Context) error {
	report, err := j.reconciler.Run(ctx)
	logCtx := j.logg.WithFields(ctx, map[string]any{
		"scanned":         report.Scanned,
		"completed":       report.Completed,
		"failed":          report.Failed,
		"needs_attention": report.NeedsAttention,
		"retrying":        report.Retrying,
	})
	if err != nil {
		return fmt.Errorf("checkout reconcile: %w", err)
	}
	j.logg.Info(logCtx, "checkout reconcile pass complete")
	return nil
}
