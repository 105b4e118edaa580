package outbox

import (
	"context"
	"errors"
	"testing"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	gormpostgres "gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/n2nstreams/saasfactory-cloud/internal/config"
	"github.com/n2nstreams/saasfactory-cloud/internal/domain/promotion"
	"github.com/n2nstreams/saasfactory-cloud/internal/domain/tenant"
	"github.com/n2nstreams/saasfactory-cloud/internal/usecase/promote"
	"github.com/n2nstreams/saasfactory-cloud/pkg/snowflake"
	"github.com/n2nstreams/saasfactory-cloud/pkg/testhelper"
	"github.com/n2nstreams/saasfactory-cloud/sql/migrations"
)

type stubTenantRepository struct {
	tenants map[string]*tenant.Tenant
	findErr error
}

func newStubTenantRepository(items ...*tenant.Tenant) *stubTenantRepository {
	repo := &stubTenantRepository{tenants: map[string]*tenant.Tenant{}}
	for _, item := range items {
		repo.tenants[item.Slug] = item
	}
	return repo
}

func (r *stubTenantRepository) FindBySlug(ctx context.Context, slug string) (*tenant.Tenant, error) {
	if r.findErr != nil {
		return nil, r.findErr
	}
	item, ok := r.tenants[slug]
	if !ok {
		return nil, nil
	}
	copied := *item
	return &copied, nil
}

func (r *stubTenantRepository) Save(ctx context.Context, entity *tenant.Tenant) error {
	r.tenants[entity.Slug] = entity
	return nil
}

func (r *stubTenantRepository) CompareAndSwapState(ctx context.Context, slug string, expected, next tenant.IsolationState) (bool, error) {
	item, ok := r.tenants[slug]
	if !ok || item.IsolationState != expected {
		return false, nil
	}
	item.IsolationState = next
	return true, nil
}

func (r *stubTenantRepository) ListByState(ctx context.Context, states []tenant.IsolationState, limit int) ([]*tenant.Tenant, error) {
	return nil, nil
}

func (r *stubTenantRepository) ResetToShared(ctx context.Context, slug string) (bool, error) {
	return false, nil
}

// failingOutcomeRepository refuses every append so the reporter surfaces a
// persistence error after the run already wrote terminal tenant state.
type failingOutcomeRepository struct{}

func (failingOutcomeRepository) Append(ctx context.Context, out *promotion.Outcome) error {
	return errors.New("audit store unavailable")
}

func (failingOutcomeRepository) FindByRunID(ctx context.Context, runID int64) (*promotion.Outcome, error) {
	return nil, nil
}

func (failingOutcomeRepository) ListBySlug(ctx context.Context, slug string, limit int) ([]*promotion.Outcome, error) {
	return nil, nil
}

func setupOutboxDB(t *testing.T) *gorm.DB {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping container-backed outbox tests in short mode")
	}

	ctx := context.Background()
	pg, err := testhelper.SetupPostgres(ctx)
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = pg.Teardown(context.Background())
	})

	src, err := iofs.New(migrations.FS, ".")
	require.NoError(t, err)
	m, err := migrate.NewWithSourceInstance("iofs", src, pg.DSN)
	require.NoError(t, err)
	require.NoError(t, m.Up())
	srcErr, dbErr := m.Close()
	require.NoError(t, srcErr)
	require.NoError(t, dbErr)

	db, err := gorm.Open(gormpostgres.Open(pg.DSN), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)
	return db
}

func processorConfig() *config.Config {
	return &config.Config{
		SharedDBHost:           "shared.db.local",
		SharedDBPort:           5432,
		SharedDBName:           "factory_shared",
		DefaultFactoryVersion:  "v1.4.0",
		AppRootDomain:          "factory.example.com",
		AppRootScheme:          "https",
		TenantAuthJWTSecretKey: "test-master-key",
		VerifyCanarySlug:       "isolation-canary",
	}
}

func newTestProcessor(t *testing.T, db *gorm.DB, repo tenant.Repository, outcomes promotion.OutcomeRepository) *Processor {
	t.Helper()
	logger := zap.NewNop()
	cfg := processorConfig()

	node, err := snowflake.NewNode()
	require.NoError(t, err)

	orch := promote.NewOrchestrator(
		node,
		promote.NewValidator(repo, logger),
		promote.NewProvisioner(
			&testhelper.MockCredentialIssuer{},
			&testhelper.MockStoreProvisioner{},
			&testhelper.MockDataMover{Rows: 42},
			&testhelper.MockRouteStore{},
			&testhelper.MockProvisioner{},
			cfg,
			logger,
		),
		promote.NewVerifier(&testhelper.MockProbe{}, cfg, logger),
		promote.NewReporter(repo, outcomes, &testhelper.MockNotifier{}, logger),
		logger,
	)

	return NewProcessor(db, orch, logger)
}

func fetchEvent(t *testing.T, db *gorm.DB, id int64) Event {
	t.Helper()
	var event Event
	require.NoError(t, db.Where("id = ?", id).First(&event).Error)
	return event
}

// A run that reached a terminal outcome completes its event even when the
// audit record could not be persisted: the tenant state is already written
// and re-running would start a second promotion on top of it.
func TestProcessBatch_TerminalRunWithReportErrorCompletesEvent(t *testing.T) {
	db := setupOutboxDB(t)
	repo := newStubTenantRepository(tenant.NewTenant("acme-corp", "Acme Corp"))
	processor := newTestProcessor(t, db, repo, failingOutcomeRepository{})
	ctx := context.Background()

	eventID, err := Enqueue(ctx, db, promotion.RawTrigger{Label: "promote-tenant:acme-corp"})
	require.NoError(t, err)

	require.NoError(t, processor.processBatch(ctx))

	event := fetchEvent(t, db, eventID)
	assert.Equal(t, StatusCompleted, event.Status)
	assert.NotNil(t, event.ProcessedAt)

	stored, err := repo.FindBySlug(ctx, "acme-corp")
	require.NoError(t, err)
	assert.Equal(t, tenant.StateIsolated, stored.IsolationState)
}

// A failure before the promoting lock leaves no tenant state behind, so the
// event backs off and retries.
func TestProcessBatch_PreLockFailureRetriesEvent(t *testing.T) {
	db := setupOutboxDB(t)
	repo := newStubTenantRepository()
	repo.findErr = errors.New("tenant store unreachable")
	processor := newTestProcessor(t, db, repo, failingOutcomeRepository{})
	ctx := context.Background()

	eventID, err := Enqueue(ctx, db, promotion.RawTrigger{Label: "promote-tenant:acme-corp"})
	require.NoError(t, err)

	require.NoError(t, processor.processBatch(ctx))

	event := fetchEvent(t, db, eventID)
	assert.Equal(t, StatusFailed, event.Status)
	assert.Equal(t, 1, event.Attempts)
	assert.NotNil(t, event.NextAttemptAt)
	assert.Nil(t, event.ProcessedAt)
}
