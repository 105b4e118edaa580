package promote

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/n2nstreams/saasfactory-cloud/internal/config"
	"github.com/n2nstreams/saasfactory-cloud/internal/domain/promotion"
	"github.com/n2nstreams/saasfactory-cloud/internal/domain/provisioning"
	"github.com/n2nstreams/saasfactory-cloud/internal/domain/tenant"
	"github.com/n2nstreams/saasfactory-cloud/pkg/tenantauth"
)

// Provisioner executes the ordered, irreversible-once-committed sequence of
// infrastructure actions for a tenant holding the promoting lock. Any step
// failure halts the sequence; remaining steps are marked skipped and no
// completed step is rolled back.
type Provisioner struct {
	issuer  provisioning.CredentialIssuer
	stores  provisioning.StoreProvisioner
	mover   provisioning.DataMover
	routes  provisioning.RouteStore
	compute provisioning.Provisioner

	sharedDB     provisioning.DatabaseRef
	version      string
	rootDomain   string
	rootScheme   string
	jwtMasterKey string
	stepTimeout  time.Duration

	logger *zap.Logger
}

func NewProvisioner(
	issuer provisioning.CredentialIssuer,
	stores provisioning.StoreProvisioner,
	mover provisioning.DataMover,
	routes provisioning.RouteStore,
	compute provisioning.Provisioner,
	cfg *config.Config,
	logger *zap.Logger,
) *Provisioner {
	return &Provisioner{
		issuer:  issuer,
		stores:  stores,
		mover:   mover,
		routes:  routes,
		compute: compute,
		sharedDB: provisioning.DatabaseRef{
			Host: cfg.SharedDBHost,
			Port: cfg.SharedDBPort,
			Name: cfg.SharedDBName,
		},
		version:      cfg.DefaultFactoryVersion,
		rootDomain:   cfg.AppRootDomain,
		rootScheme:   cfg.AppRootScheme,
		jwtMasterKey: cfg.TenantAuthJWTSecretKey,
		stepTimeout:  cfg.StepTimeout,
		logger:       logger.Named("promotion.provisioner"),
	}
}

// Execute runs the five provisioning steps in strict order, mutating t with
// the created resource references as it goes. The returned slice always
// covers the full sequence. A non-nil error is always a *promotion.Error
// whose reason names the failed step.
func (p *Provisioner) Execute(ctx context.Context, t *tenant.Tenant, req promotion.Request) ([]promotion.Step, error) {
	var creds provisioning.Credentials
	var dest provisioning.DatabaseRef

	actions := []struct {
		name promotion.StepName
		run  func(ctx context.Context) (string, error)
	}{
		{promotion.StepCredentialIssuance, func(ctx context.Context) (string, error) {
			var err error
			creds, err = p.issuer.CreateUser(ctx, t.Slug)
			if err != nil {
				return "", err
			}
			t.DBUser = creds.Username
			t.DBPassword = creds.Secret
			return "issued principal " + creds.Username, nil
		}},
		{promotion.StepStoreCreation, func(ctx context.Context) (string, error) {
			var err error
			dest, err = p.stores.CreateDatabase(ctx, t.Slug, creds.Username)
			if err != nil {
				return "", err
			}
			t.DBHost = dest.Host
			t.DBPort = dest.Port
			t.DBName = dest.Name
			return "created database " + dest.Name, nil
		}},
		{promotion.StepDataMigration, func(ctx context.Context) (string, error) {
			return p.migrate(ctx, dest, t.Slug)
		}},
		{promotion.StepRoutingConfig, func(ctx context.Context) (string, error) {
			endpoint := p.endpoint(t.Slug)
			ref, err := p.routes.WriteRoute(ctx, t.Slug, endpoint)
			if err != nil {
				return "", err
			}
			t.RoutingRef = ref
			return "route " + t.Slug + " -> " + endpoint, nil
		}},
		{promotion.StepDeployment, func(ctx context.Context) (string, error) {
			ref, err := p.compute.Deploy(ctx, &provisioning.DeploymentConfig{
				TenantID:      t.ID,
				TenantSlug:    t.Slug,
				Version:       p.version,
				Database:      dest,
				Credentials:   creds,
				Endpoint:      p.endpoint(t.Slug),
				AuthJWTSecret: tenantauth.DeriveSecret(p.jwtMasterKey, t.Slug),
			})
			if err != nil {
				return "", err
			}
			t.DeploymentRef = ref
			return "deployment " + ref, nil
		}},
	}

	steps := make([]promotion.Step, 0, len(actions))
	var failure *promotion.Error

	for _, action := range actions {
		if failure != nil {
			steps = append(steps, promotion.Step{Name: action.name, Outcome: promotion.StepSkipped})
			continue
		}

		step := promotion.Step{Name: action.name, Outcome: promotion.StepPending, StartedAt: time.Now().UTC()}
		detail, err := p.runStep(ctx, action.run)
		done := time.Now().UTC()
		step.CompletedAt = &done

		if err != nil {
			step.Outcome = promotion.StepFailed
			step.Detail = err.Error()
			failure = promotion.NewError(promotion.StepFailureReason(action.name), err)
			p.logger.Error("provisioning_step_failed",
				zap.String("tenant", t.Slug),
				zap.Int64("run_id", req.RunID),
				zap.String("step", string(action.name)),
				zap.Error(err),
			)
		} else {
			step.Outcome = promotion.StepSuccess
			step.Detail = detail
			p.logger.Info("provisioning_step_completed",
				zap.String("tenant", t.Slug),
				zap.Int64("run_id", req.RunID),
				zap.String("step", string(action.name)),
			)
		}
		steps = append(steps, step)
	}

	if failure != nil {
		return steps, failure
	}
	return steps, nil
}

// runStep applies the per-step timeout. A timeout is a step failure, never a
// success and never silently retried.
func (p *Provisioner) runStep(ctx context.Context, fn func(ctx context.Context) (string, error)) (string, error) {
	stepCtx := ctx
	if p.stepTimeout > 0 {
		var cancel context.CancelFunc
		stepCtx, cancel = context.WithTimeout(ctx, p.stepTimeout)
		defer cancel()
	}
	return fn(stepCtx)
}

// migrate copies the tenant's rows into the dedicated store and verifies
// row counts before the step is allowed to succeed. Source rows are never
// touched; deletion from the shared store is a later manual action.
func (p *Provisioner) migrate(ctx context.Context, dest provisioning.DatabaseRef, slug string) (string, error) {
	srcCount, err := p.mover.CountTenantRows(ctx, p.sharedDB, slug)
	if err != nil {
		return "", fmt.Errorf("count source rows: %w", err)
	}

	copied, err := p.mover.CopyTenantRows(ctx, p.sharedDB, dest, slug)
	if err != nil {
		return "", fmt.Errorf("copy rows: %w", err)
	}

	dstCount, err := p.mover.CountTenantRows(ctx, dest, slug)
	if err != nil {
		return "", fmt.Errorf("count destination rows: %w", err)
	}
	if dstCount != srcCount {
		return "", fmt.Errorf("row count mismatch: source=%d destination=%d", srcCount, dstCount)
	}

	return fmt.Sprintf("migrated %d rows (%d copied)", dstCount, copied), nil
}

func (p *Provisioner) endpoint(slug string) string {
	scheme := strings.TrimSpace(p.rootScheme)
	if scheme == "" {
		scheme = "https"
	}
	return fmt.Sprintf("%s://%s.%s", scheme, slug, p.rootDomain)
}
