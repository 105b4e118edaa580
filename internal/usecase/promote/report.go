package promote

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/n2nstreams/saasfactory-cloud/internal/domain/promotion"
	"github.com/n2nstreams/saasfactory-cloud/internal/domain/tenant"
)

// Reporter persists the immutable audit record of a run and owns the
// terminal isolation-state write: promoting -> isolated on success,
// promoting -> promotion_failed otherwise. No other component writes a
// terminal state.
type Reporter struct {
	tenants  tenant.Repository
	outcomes promotion.OutcomeRepository
	notifier promotion.Notifier
	logger   *zap.Logger
}

func NewReporter(
	tenants tenant.Repository,
	outcomes promotion.OutcomeRepository,
	notifier promotion.Notifier,
	logger *zap.Logger,
) *Reporter {
	return &Reporter{
		tenants:  tenants,
		outcomes: outcomes,
		notifier: notifier,
		logger:   logger.Named("promotion.reporter"),
	}
}

// Report finalizes a run. t is nil when the run was rejected before the
// promoting lock was taken; in that case no tenant state is written and
// only the audit record and notification are produced.
func (r *Reporter) Report(ctx context.Context, t *tenant.Tenant, out *promotion.Outcome) error {
	if out.CompletedAt.IsZero() {
		out.CompletedAt = time.Now().UTC()
	}

	var firstErr error
	if err := r.outcomes.Append(ctx, out); err != nil {
		firstErr = fmt.Errorf("persist outcome: %w", err)
		r.logger.Error("outcome_persist_failed",
			zap.Int64("run_id", out.RunID),
			zap.String("tenant", out.Request.TenantSlug),
			zap.Error(err),
		)
	}

	if t != nil {
		if err := r.finalizeTenant(ctx, t, out); err != nil && firstErr == nil {
			firstErr = err
		}
	}

	if err := r.notifier.ReportOutcome(ctx, out); err != nil {
		// The audit record is already durable; a lost notification is loud
		// but not fatal to the run.
		r.logger.Error("outcome_notification_failed",
			zap.Int64("run_id", out.RunID),
			zap.String("tenant", out.Request.TenantSlug),
			zap.Error(err),
		)
	}

	r.logger.Info("promotion_run_finished",
		zap.Int64("run_id", out.RunID),
		zap.String("tenant", out.Request.TenantSlug),
		zap.String("final_state", string(out.FinalState)),
		zap.String("reason", string(out.Reason)),
	)

	return firstErr
}

func (r *Reporter) finalizeTenant(ctx context.Context, t *tenant.Tenant, out *promotion.Outcome) error {
	next := tenant.StatePromotionFailed
	if out.FinalState == promotion.FinalSuccess {
		next = tenant.StateIsolated
	}

	swapped, err := r.tenants.CompareAndSwapState(ctx, t.Slug, tenant.StatePromoting, next)
	if err != nil {
		return fmt.Errorf("terminal state transition: %w", err)
	}
	if !swapped {
		// Someone moved the tenant out from under the run; surface it
		// rather than overwrite.
		return fmt.Errorf("tenant %s no longer in promoting state at run end", t.Slug)
	}

	if next == tenant.StateIsolated {
		t.MarkIsolated()
	} else {
		t.MarkPromotionFailed(out.Summary())
	}

	// Persist the resource references gathered during provisioning so a
	// failed run leaves operators a full picture of what was created.
	if err := r.tenants.Save(ctx, t); err != nil {
		return fmt.Errorf("persist tenant: %w", err)
	}
	return nil
}
