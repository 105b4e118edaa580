package promote

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"

	"github.com/n2nstreams/saasfactory-cloud/internal/domain/promotion"
	"github.com/n2nstreams/saasfactory-cloud/internal/domain/tenant"
)

// mockTenantRepository is a simple in-memory repository for testing
type mockTenantRepository struct {
	tenants map[string]*tenant.Tenant

	findErr error
	casErr  error
	// casDenied forces CompareAndSwapState to report a lost race even when
	// the stored state matches.
	casDenied bool
}

func newMockTenantRepository() *mockTenantRepository {
	return &mockTenantRepository{
		tenants: make(map[string]*tenant.Tenant),
	}
}

func (m *mockTenantRepository) FindBySlug(ctx context.Context, slug string) (*tenant.Tenant, error) {
	if m.findErr != nil {
		return nil, m.findErr
	}
	t, ok := m.tenants[slug]
	if !ok {
		return nil, nil
	}
	copied := *t
	return &copied, nil
}

func (m *mockTenantRepository) Save(ctx context.Context, t *tenant.Tenant) error {
	copied := *t
	m.tenants[t.Slug] = &copied
	return nil
}

func (m *mockTenantRepository) CompareAndSwapState(ctx context.Context, slug string, expected, next tenant.IsolationState) (bool, error) {
	if m.casErr != nil {
		return false, m.casErr
	}
	if m.casDenied {
		return false, nil
	}
	t, ok := m.tenants[slug]
	if !ok || t.IsolationState != expected {
		return false, nil
	}
	t.IsolationState = next
	return true, nil
}

func (m *mockTenantRepository) ListByState(ctx context.Context, states []tenant.IsolationState, limit int) ([]*tenant.Tenant, error) {
	var result []*tenant.Tenant
	for _, t := range m.tenants {
		for _, state := range states {
			if t.IsolationState == state {
				copied := *t
				result = append(result, &copied)
				break
			}
		}
		if len(result) >= limit {
			break
		}
	}
	return result, nil
}

func (m *mockTenantRepository) ResetToShared(ctx context.Context, slug string) (bool, error) {
	t, ok := m.tenants[slug]
	if !ok {
		return false, nil
	}
	if t.IsolationState != tenant.StatePromoting && t.IsolationState != tenant.StatePromotionFailed {
		return false, nil
	}
	t.IsolationState = tenant.StateShared
	return true, nil
}

func requestFor(slug string, source promotion.TriggerSource) promotion.Request {
	return promotion.Request{
		RunID:      42,
		TenantSlug: slug,
		Source:     source,
	}
}

func TestValidate_AcquiresLock(t *testing.T) {
	repo := newMockTenantRepository()
	repo.tenants["acme-corp"] = tenant.NewTenant("acme-corp", "Acme Corp")

	v := NewValidator(repo, zap.NewNop())

	locked, err := v.Validate(context.Background(), requestFor("acme-corp", promotion.SourceLabel))

	assert.NoError(t, err)
	assert.NotNil(t, locked)
	assert.Equal(t, tenant.StatePromoting, locked.IsolationState)
	assert.Equal(t, tenant.StatePromoting, repo.tenants["acme-corp"].IsolationState)
}

func TestValidate_Rejections(t *testing.T) {
	tests := []struct {
		name       string
		setup      func(repo *mockTenantRepository)
		req        promotion.Request
		wantReason promotion.Reason
	}{
		{
			name:       "malformed slug",
			setup:      func(repo *mockTenantRepository) {},
			req:        requestFor("Bad_Slug!", promotion.SourceLabel),
			wantReason: promotion.ReasonInvalidFormat,
		},
		{
			name:       "fallback identifier never promotes",
			setup:      func(repo *mockTenantRepository) {},
			req:        requestFor(promotion.FallbackSlug, promotion.SourceFallback),
			wantReason: promotion.ReasonAmbiguousTenant,
		},
		{
			name:       "unknown tenant",
			setup:      func(repo *mockTenantRepository) {},
			req:        requestFor("ghost", promotion.SourceLabel),
			wantReason: promotion.ReasonUnknownTenant,
		},
		{
			name: "already isolated",
			setup: func(repo *mockTenantRepository) {
				tn := tenant.NewTenant("acme-corp", "Acme Corp")
				tn.IsolationState = tenant.StateIsolated
				repo.tenants["acme-corp"] = tn
			},
			req:        requestFor("acme-corp", promotion.SourceLabel),
			wantReason: promotion.ReasonAlreadyIsolated,
		},
		{
			name: "promotion in flight",
			setup: func(repo *mockTenantRepository) {
				tn := tenant.NewTenant("acme-corp", "Acme Corp")
				tn.IsolationState = tenant.StatePromoting
				repo.tenants["acme-corp"] = tn
			},
			req:        requestFor("acme-corp", promotion.SourceLabel),
			wantReason: promotion.ReasonPromotionInProgress,
		},
		{
			name: "failed promotion requires reset",
			setup: func(repo *mockTenantRepository) {
				tn := tenant.NewTenant("acme-corp", "Acme Corp")
				tn.IsolationState = tenant.StatePromotionFailed
				repo.tenants["acme-corp"] = tn
			},
			req:        requestFor("acme-corp", promotion.SourceLabel),
			wantReason: promotion.ReasonPromotionInProgress,
		},
		{
			name: "concurrent trigger wins the lock",
			setup: func(repo *mockTenantRepository) {
				repo.tenants["acme-corp"] = tenant.NewTenant("acme-corp", "Acme Corp")
				repo.casDenied = true
			},
			req:        requestFor("acme-corp", promotion.SourceLabel),
			wantReason: promotion.ReasonPromotionInProgress,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := newMockTenantRepository()
			tt.setup(repo)

			v := NewValidator(repo, zap.NewNop())
			locked, err := v.Validate(context.Background(), tt.req)

			assert.Nil(t, locked)
			assert.Error(t, err)
			assert.Equal(t, tt.wantReason, promotion.ReasonOf(err))
		})
	}
}

func TestValidate_StoreUnreachableIsRetryable(t *testing.T) {
	repo := newMockTenantRepository()
	repo.findErr = fmt.Errorf("connection refused")

	v := NewValidator(repo, zap.NewNop())
	locked, err := v.Validate(context.Background(), requestFor("acme-corp", promotion.SourceLabel))

	assert.Nil(t, locked)
	assert.Error(t, err)
	// A plain error carries no reason code: nothing was rejected, nothing
	// was locked, the trigger may be retried.
	assert.Empty(t, promotion.ReasonOf(err))
}
