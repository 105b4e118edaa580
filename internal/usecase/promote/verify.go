package promote

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/n2nstreams/saasfactory-cloud/internal/config"
	"github.com/n2nstreams/saasfactory-cloud/internal/domain/promotion"
	"github.com/n2nstreams/saasfactory-cloud/internal/domain/provisioning"
)

// Verifier runs the fixed post-promotion smoke suite against the dedicated
// deployment. All checks must pass before the run may be declared a success;
// a failure here leaves real infrastructure in place but untrusted.
type Verifier struct {
	probe        provisioning.VerificationProbe
	canarySlug   string
	checkTimeout time.Duration
	logger       *zap.Logger
}

func NewVerifier(probe provisioning.VerificationProbe, cfg *config.Config, logger *zap.Logger) *Verifier {
	return &Verifier{
		probe:        probe,
		canarySlug:   cfg.VerifyCanarySlug,
		checkTimeout: cfg.StepTimeout,
		logger:       logger.Named("promotion.verifier"),
	}
}

// Verify executes the tenant-scoped read, write-then-read, and cross-tenant
// isolation checks in order. Any failure is returned as a
// PostPromotionVerificationFailed error.
func (v *Verifier) Verify(ctx context.Context, tenantSlug string) error {
	checks := []struct {
		name string
		run  func(ctx context.Context) error
	}{
		{"tenant_read", func(ctx context.Context) error {
			return v.probe.CheckRead(ctx, tenantSlug)
		}},
		{"tenant_write_read", func(ctx context.Context) error {
			return v.probe.CheckWriteRead(ctx, tenantSlug)
		}},
		{"cross_tenant_isolation", func(ctx context.Context) error {
			return v.probe.CheckIsolation(ctx, tenantSlug, v.canarySlug)
		}},
	}

	for _, check := range checks {
		if err := v.runCheck(ctx, check.run); err != nil {
			v.logger.Error("verification_check_failed",
				zap.String("tenant", tenantSlug),
				zap.String("check", check.name),
				zap.Error(err),
			)
			return promotion.Errorf(promotion.ReasonVerificationFailed,
				"%s: %w", check.name, err)
		}
		v.logger.Info("verification_check_passed",
			zap.String("tenant", tenantSlug),
			zap.String("check", check.name),
		)
	}

	return nil
}

func (v *Verifier) runCheck(ctx context.Context, fn func(ctx context.Context) error) error {
	checkCtx := ctx
	if v.checkTimeout > 0 {
		var cancel context.CancelFunc
		checkCtx, cancel = context.WithTimeout(ctx, v.checkTimeout)
		defer cancel()
	}
	return fn(checkCtx)
}
