package promote

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/n2nstreams/saasfactory-cloud/internal/domain/promotion"
	"github.com/n2nstreams/saasfactory-cloud/internal/resolver"
	"github.com/n2nstreams/saasfactory-cloud/pkg/snowflake"
	"github.com/n2nstreams/saasfactory-cloud/pkg/telemetry/correlation"
)

// Orchestrator sequences one promotion run: resolve, validate, provision,
// verify, report. Runs for different tenants are fully independent; the
// per-tenant promoting lock is the only exclusion mechanism.
type Orchestrator struct {
	ids         *snowflake.Node
	validator   *Validator
	provisioner *Provisioner
	verifier    *Verifier
	reporter    *Reporter
	logger      *zap.Logger
}

func NewOrchestrator(
	ids *snowflake.Node,
	validator *Validator,
	provisioner *Provisioner,
	verifier *Verifier,
	reporter *Reporter,
	logger *zap.Logger,
) *Orchestrator {
	return &Orchestrator{
		ids:         ids,
		validator:   validator,
		provisioner: provisioner,
		verifier:    verifier,
		reporter:    reporter,
		logger:      logger.Named("promotion.orchestrator"),
	}
}

// Run executes a single promotion run to a terminal outcome. A non-nil
// error with a nil outcome means the run could not start (tenant store
// unreachable before any state mutation) and is safe to retry; every other
// result is terminal and carries a durable audit record.
func (o *Orchestrator) Run(ctx context.Context, raw promotion.RawTrigger) (*promotion.Outcome, error) {
	ctx, cid := correlation.EnsureCorrelationID(ctx)

	req := resolver.Resolve(raw, o.ids.GenerateID())
	o.logger.Info("promotion_run_started",
		zap.Int64("run_id", req.RunID),
		zap.String("tenant", req.TenantSlug),
		zap.String("trigger_source", string(req.Source)),
		zap.String("requested_by", req.RequestedBy),
		zap.String("correlation_id", cid),
	)

	t, err := o.validator.Validate(ctx, req)
	if err != nil {
		reason := promotion.ReasonOf(err)
		if reason == "" {
			return nil, err
		}
		out := rejectedOutcome(req, reason, err)
		rerr := o.reporter.Report(ctx, nil, out)
		observeRun(out)
		return out, rerr
	}

	steps, provErr := o.provisioner.Execute(ctx, t, req)
	if provErr != nil {
		out := failedOutcome(req, steps, promotion.ReasonOf(provErr), provErr)
		rerr := o.reporter.Report(ctx, t, out)
		observeRun(out)
		return out, rerr
	}

	if verr := o.verifier.Verify(ctx, t.Slug); verr != nil {
		out := failedOutcome(req, steps, promotion.ReasonVerificationFailed, verr)
		rerr := o.reporter.Report(ctx, t, out)
		observeRun(out)
		return out, rerr
	}

	out := &promotion.Outcome{
		RunID:      req.RunID,
		Request:    req,
		Steps:      steps,
		FinalState: promotion.FinalSuccess,
		RoutingRef: t.RoutingRef,
	}
	rerr := o.reporter.Report(ctx, t, out)
	observeRun(out)
	return out, rerr
}

func rejectedOutcome(req promotion.Request, reason promotion.Reason, err error) *promotion.Outcome {
	return &promotion.Outcome{
		RunID:       req.RunID,
		Request:     req,
		FinalState:  promotion.FinalFailed,
		Reason:      reason,
		Detail:      err.Error(),
		CompletedAt: time.Now().UTC(),
	}
}

func failedOutcome(req promotion.Request, steps []promotion.Step, reason promotion.Reason, err error) *promotion.Outcome {
	return &promotion.Outcome{
		RunID:       req.RunID,
		Request:     req,
		Steps:       steps,
		FinalState:  promotion.FinalFailed,
		Reason:      reason,
		Detail:      err.Error(),
		CompletedAt: time.Now().UTC(),
	}
}
