package reconciler

import (
	"context"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"

	"github.com/n2nstreams/saasfactory-cloud/internal/domain/provisioning"
	"github.com/n2nstreams/saasfactory-cloud/internal/domain/tenant"
)

var unhealthyIsolated = promauto.NewGauge(prometheus.GaugeOpts{
	Name: "factory_isolated_tenants_unhealthy",
	Help: "Isolated tenants whose dedicated deployment is not running.",
})

// IsolationReconciler watches the dedicated deployments of isolated tenants
// and reports when one drifts out of a running state. It never changes
// tenant state; a tenant stays isolated until an operator intervenes.
type IsolationReconciler struct {
	repo        tenant.Repository
	provisioner provisioning.Provisioner
	logger      *zap.Logger
	interval    time.Duration
	batchSize   int
}

func NewIsolationReconciler(repo tenant.Repository, provisioner provisioning.Provisioner, logger *zap.Logger) *IsolationReconciler {
	return &IsolationReconciler{
		repo:        repo,
		provisioner: provisioner,
		logger:      logger.Named("isolation.reconciler"),
		interval:    30 * time.Second,
		batchSize:   50,
	}
}

func (r *IsolationReconciler) Run(ctx context.Context) {
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

func (r *IsolationReconciler) reconcile(ctx context.Context) error {
	if r.provisioner == nil {
		return nil
	}
	items, err := r.repo.ListByState(ctx, []tenant.IsolationState{tenant.StateIsolated}, r.batchSize)
	if err != nil {
		return err
	}

	unhealthy := 0
	for _, t := range items {
		if !r.deploymentRunning(ctx, t) {
			unhealthy++
		}
	}

	unhealthyIsolated.Set(float64(unhealthy))
	return nil
}

func (r *IsolationReconciler) deploymentRunning(ctx context.Context, t *tenant.Tenant) bool {
	raw, err := r.provisioner.GetStatus(ctx, t.Slug)
	if err != nil {
		r.logger.Warn("deployment_status_failed",
			zap.Error(err),
			zap.String("tenant", t.Slug),
		)
		return false
	}

	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "running":
		return true
	default:
		r.logger.Warn("isolated_deployment_not_running",
			zap.String("tenant", t.Slug),
			zap.String("deployment_status", raw),
			zap.String("deployment_ref", t.DeploymentRef),
		)
		return false
	}
}
