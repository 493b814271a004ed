package cron

import (
	"context"
	"errors"
	"testing"

	"github.com/angelmondragon/storefront-backend/internal/checkout"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
)

type fakeReconciler struct {
	report checkout.ReconcileReport
	err    error
	runs   int
}

func (f *fakeReconciler) Run(context.Context) (checkout.ReconcileReport, error) {
	f.runs++
	return f.report, f.err
}

func TestCheckoutReconcileJobRunsReconciler(t *testing.T) {
	rec := &fakeReconciler{report: checkout.ReconcileReport{Scanned: 3, Completed: 2, Retrying: 1}}
	job, err := NewCheckoutReconcileJob(CheckoutReconcileJobParams{
		Logger:     logger.New(logger.Options{ServiceName: "test"}),
		Reconciler: rec,
	})
	if err != nil {
		t.Fatalf("NewCheckoutReconcileJob: %v", err)
	}
	if job.Name() != "checkout-reconcile" {
		t.Fatalf("unexpected name %q", job.Name())
	}
	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if rec.runs != 1 {
		t.Fatalf("expected one pass, got %d", rec.runs)
	}
}

func TestCheckoutReconcileJobSurfacesErrors(t *testing.T) {
	rec := &fakeReconciler{err: errors.New("list stale sagas: db down")}
	job, err := NewCheckoutReconcileJob(CheckoutReconcileJobParams{
		Logger:     logger.New(logger.Options{ServiceName: "test"}),
		Reconciler: rec,
	})
	if err != nil {
		t.Fatalf("NewCheckoutReconcileJob: %v", err)
	}
	if err := job.Run(context.Background()); err == nil {
		t.Fatal("expected error")
	}
}

func TestCheckoutReconcileJobRequiresReconciler(t *testing.T) {
	if _, err := NewCheckoutReconcileJob(CheckoutReconcileJobParams{
		Logger: logger.New(logger.Options{ServiceName: "test"}),
	}); err == nil {
		t.Fatal("expected error")
	}
}
