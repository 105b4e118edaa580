package postgres

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"testing"
	"time"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	gormpostgres "gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/n2nstreams/saasfactory-cloud/internal/config"
	"github.com/n2nstreams/saasfactory-cloud/internal/domain/promotion"
	"github.com/n2nstreams/saasfactory-cloud/internal/domain/tenant"
	"github.com/n2nstreams/saasfactory-cloud/pkg/testhelper"
	"github.com/n2nstreams/saasfactory-cloud/sql/migrations"
)

func setupRepositoryDB(t *testing.T) *gorm.DB {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping container-backed repository tests in short mode")
	}

	ctx := context.Background()
	pg, err := testhelper.SetupPostgres(ctx)
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = pg.Teardown(context.Background())
	})

	// Apply the shipped migrations rather than AutoMigrate so any drift
	// between the models and the SQL surfaces here.
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

func testEncryptionKey(t *testing.T) string {
	t.Helper()
	key := make([]byte, 32)
	_, err := rand.Read(key)
	require.NoError(t, err)
	return base64.StdEncoding.EncodeToString(key)
}

func TestTenantRepository_SaveAndFindRoundTrip(t *testing.T) {
	db := setupRepositoryDB(t)
	repo := NewTenantRepository(db, &config.Config{CredentialEncryptionKey: testEncryptionKey(t)})
	ctx := context.Background()

	entity := tenant.NewTenant("acme-corp", "Acme Corp")
	entity.DBPassword = "super-secret"
	require.NoError(t, repo.Save(ctx, entity))
	require.NotZero(t, entity.ID)

	found, err := repo.FindBySlug(ctx, "acme-corp")
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, tenant.StateShared, found.IsolationState)
	assert.Equal(t, "super-secret", found.DBPassword)

	// The stored column must not contain the plaintext.
	var model TenantModel
	require.NoError(t, db.Where("slug = ?", "acme-corp").First(&model).Error)
	assert.NotEqual(t, "super-secret", model.DBPassword)

	missing, err := repo.FindBySlug(ctx, "nobody")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestTenantRepository_CompareAndSwapState(t *testing.T) {
	db := setupRepositoryDB(t)
	repo := NewTenantRepository(db, &config.Config{})
	ctx := context.Background()

	require.NoError(t, repo.Save(ctx, tenant.NewTenant("acme-corp", "Acme Corp")))

	won, err := repo.CompareAndSwapState(ctx, "acme-corp", tenant.StateShared, tenant.StatePromoting)
	require.NoError(t, err)
	assert.True(t, won)

	// The lock is already held; a second swap from shared must lose.
	won, err = repo.CompareAndSwapState(ctx, "acme-corp", tenant.StateShared, tenant.StatePromoting)
	require.NoError(t, err)
	assert.False(t, won)

	won, err = repo.CompareAndSwapState(ctx, "acme-corp", tenant.StatePromoting, tenant.StateIsolated)
	require.NoError(t, err)
	assert.True(t, won)

	found, err := repo.FindBySlug(ctx, "acme-corp")
	require.NoError(t, err)
	assert.Equal(t, tenant.StateIsolated, found.IsolationState)
}

func TestTenantRepository_ResetToShared(t *testing.T) {
	db := setupRepositoryDB(t)
	repo := NewTenantRepository(db, &config.Config{})
	ctx := context.Background()

	failed := tenant.NewTenant("acme-corp", "Acme Corp")
	failed.MarkPromotionFailed("deployment failed")
	require.NoError(t, repo.Save(ctx, failed))

	isolated := tenant.NewTenant("globex", "Globex")
	isolated.MarkIsolated()
	require.NoError(t, repo.Save(ctx, isolated))

	reset, err := repo.ResetToShared(ctx, "acme-corp")
	require.NoError(t, err)
	assert.True(t, reset)

	found, err := repo.FindBySlug(ctx, "acme-corp")
	require.NoError(t, err)
	assert.Equal(t, tenant.StateShared, found.IsolationState)
	assert.Empty(t, found.LastError)

	// Isolated tenants are not resettable.
	reset, err = repo.ResetToShared(ctx, "globex")
	require.NoError(t, err)
	assert.False(t, reset)

	reset, err = repo.ResetToShared(ctx, "nobody")
	require.NoError(t, err)
	assert.False(t, reset)
}

func TestTenantRepository_ListByState(t *testing.T) {
	db := setupRepositoryDB(t)
	repo := NewTenantRepository(db, &config.Config{})
	ctx := context.Background()

	for _, seed := range []struct {
		slug  string
		state tenant.IsolationState
	}{
		{"one", tenant.StateShared},
		{"two", tenant.StatePromoting},
		{"three", tenant.StateIsolated},
	} {
		entity := tenant.NewTenant(seed.slug, seed.slug)
		entity.IsolationState = seed.state
		require.NoError(t, repo.Save(ctx, entity))
	}

	promoting, err := repo.ListByState(ctx, []tenant.IsolationState{tenant.StatePromoting}, 10)
	require.NoError(t, err)
	require.Len(t, promoting, 1)
	assert.Equal(t, "two", promoting[0].Slug)

	none, err := repo.ListByState(ctx, nil, 10)
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestOutcomeRepository_AppendAndList(t *testing.T) {
	db := setupRepositoryDB(t)
	repo := NewOutcomeRepository(db)
	ctx := context.Background()

	base := time.Now().UTC().Truncate(time.Second)
	for i, runID := range []int64{101, 102} {
		out := &promotion.Outcome{
			RunID: runID,
			Request: promotion.Request{
				RunID:      runID,
				TenantSlug: "acme-corp",
				Source:     promotion.SourceLabel,
				Raw:        promotion.RawTrigger{Label: "promote-tenant:acme-corp"},
				CreatedAt:  base,
			},
			Steps: []promotion.Step{
				{Name: promotion.StepCredentialIssuance, Outcome: promotion.StepSuccess},
			},
			FinalState:  promotion.FinalSuccess,
			RoutingRef:  "s3://routes/acme-corp.json",
			CompletedAt: base.Add(time.Duration(i) * time.Minute),
		}
		require.NoError(t, repo.Append(ctx, out))
	}

	found, err := repo.FindByRunID(ctx, 101)
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, "acme-corp", found.Request.TenantSlug)
	require.Len(t, found.Steps, 1)
	assert.Equal(t, promotion.StepSuccess, found.Steps[0].Outcome)

	missing, err := repo.FindByRunID(ctx, 999)
	require.NoError(t, err)
	assert.Nil(t, missing)

	// Newest completion first.
	list, err := repo.ListBySlug(ctx, "acme-corp", 10)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, int64(102), list[0].RunID)
}
