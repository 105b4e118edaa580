package reconciler

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"

	"github.com/n2nstreams/saasfactory-cloud/internal/domain/tenant"
)

var stuckPromotions = promauto.NewGauge(prometheus.GaugeOpts{
	Name: "factory_promotions_stuck",
	Help: "Tenants holding the promoting state past the deadline.",
})

// StuckPromotionReconciler surfaces tenants stuck in promoting, which
// happens when the process dies mid-run. It only alerts: moving a tenant
// out of promoting requires an operator reset because partially created
// infrastructure may exist.
type StuckPromotionReconciler struct {
	repo      tenant.Repository
	logger    *zap.Logger
	deadline  time.Duration
	interval  time.Duration
	batchSize int
}

func NewStuckPromotionReconciler(repo tenant.Repository, deadline time.Duration, logger *zap.Logger) *StuckPromotionReconciler {
	return &StuckPromotionReconciler{
		repo:      repo,
		logger:    logger.Named("promotion.watchdog"),
		deadline:  deadline,
		interval:  time.Minute,
		batchSize: 50,
	}
}

func (r *StuckPromotionReconciler) Run(ctx context.Context) {
	if err := r.reconcile(ctx); err != nil {
		r.logger.Error("reconcile_initial_failed", zap.Error(err))
	}

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := r.reconcile(ctx); err != nil {
				r.logger.Error("reconcile_failed", zap.Error(err))
			}
		}
	}
}

func (r *StuckPromotionReconciler) reconcile(ctx context.Context) error {
	items, err := r.repo.ListByState(ctx, []tenant.IsolationState{tenant.StatePromoting}, r.batchSize)
	if err != nil {
		return err
	}

	cutoff := time.Now().UTC().Add(-r.deadline)
	stuck := 0
	for _, t := range items {
		if t.UpdatedAt.After(cutoff) {
			continue
		}
		stuck++
		r.logger.Warn("promotion_stuck",
			zap.String("tenant", t.Slug),
			zap.Time("promoting_since", t.UpdatedAt),
			zap.Duration("deadline", r.deadline),
		)
	}

	stuckPromotions.Set(float64(stuck))
	return nil
}
