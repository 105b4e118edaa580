package promote

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/n2nstreams/saasfactory-cloud/internal/domain/promotion"
	"github.com/n2nstreams/saasfactory-cloud/internal/domain/tenant"
)

// Validator checks promotion preconditions and takes the promoting lock.
type Validator struct {
	repo   tenant.Repository
	logger *zap.Logger
}

func NewValidator(repo tenant.Repository, logger *zap.Logger) *Validator {
	return &Validator{
		repo:   repo,
		logger: logger.Named("promotion.validator"),
	}
}

// Validate runs the precondition checks in order, short-circuiting on the
// first failure, then atomically transitions the tenant from shared to
// promoting. On success the returned tenant holds the promoting lock.
//
// Errors carrying a promotion.Reason are terminal rejections; a plain error
// means the tenant store was unreachable before any state changed and the
// caller may retry.
func (v *Validator) Validate(ctx context.Context, req promotion.Request) (*tenant.Tenant, error) {
	if !tenant.ValidSlug(req.TenantSlug) {
		return nil, promotion.Errorf(promotion.ReasonInvalidFormat,
			"identifier %q does not match the tenant slug grammar", req.TenantSlug)
	}

	// A fallback identifier must never silently promote an unintended tenant.
	if req.Source == promotion.SourceFallback {
		return nil, promotion.Errorf(promotion.ReasonAmbiguousTenant,
			"no tenant identifier found in trigger inputs")
	}

	t, err := v.repo.FindBySlug(ctx, req.TenantSlug)
	if err != nil {
		return nil, fmt.Errorf("tenant lookup: %w", err)
	}
	if t == nil {
		return nil, promotion.Errorf(promotion.ReasonUnknownTenant,
			"tenant %q does not exist", req.TenantSlug)
	}

	switch t.IsolationState {
	case tenant.StateIsolated:
		return nil, promotion.Errorf(promotion.ReasonAlreadyIsolated,
			"tenant %q is already on dedicated infrastructure", req.TenantSlug)
	case tenant.StatePromoting:
		return nil, promotion.Errorf(promotion.ReasonPromotionInProgress,
			"a promotion for tenant %q is already in flight", req.TenantSlug)
	case tenant.StatePromotionFailed:
		return nil, promotion.Errorf(promotion.ReasonPromotionInProgress,
			"tenant %q has a failed promotion; administrative reset required", req.TenantSlug)
	}

	// The read above is advisory only. The lock is this conditional update.
	locked, err := v.repo.CompareAndSwapState(ctx, req.TenantSlug, tenant.StateShared, tenant.StatePromoting)
	if err != nil {
		return nil, fmt.Errorf("acquire promoting lock: %w", err)
	}
	if !locked {
		return nil, promotion.Errorf(promotion.ReasonPromotionInProgress,
			"concurrent trigger won the promoting lock for tenant %q", req.TenantSlug)
	}

	v.logger.Info("promoting_lock_acquired",
		zap.String("tenant", req.TenantSlug),
		zap.Int64("run_id", req.RunID),
	)

	t.IsolationState = tenant.StatePromoting
	return t, nil
}
