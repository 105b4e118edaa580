package testhelper

import (
	"context"
	"fmt"

	"github.com/n2nstreams/saasfactory-cloud/internal/domain/promotion"
	"github.com/n2nstreams/saasfactory-cloud/internal/domain/provisioning"
)

// MockCredentialIssuer is a mock implementation of provisioning.CredentialIssuer.
type MockCredentialIssuer struct {
	Calls      []string
	ShouldFail bool
}

func (m *MockCredentialIssuer) CreateUser(ctx context.Context, tenantSlug string) (provisioning.Credentials, error) {
	if m.ShouldFail {
		return provisioning.Credentials{}, fmt.Errorf("mock issuer: create user failed")
	}
	m.Calls = append(m.Calls, tenantSlug)
	return provisioning.Credentials{
		Username: "factory_tenant_" + tenantSlug,
		Secret:   "mock-secret",
	}, nil
}

// MockStoreProvisioner is a mock implementation of provisioning.StoreProvisioner.
type MockStoreProvisioner struct {
	Calls      []string
	ShouldFail bool
}

func (m *MockStoreProvisioner) CreateDatabase(ctx context.Context, tenantSlug, owner string) (provisioning.DatabaseRef, error) {
	if m.ShouldFail {
		return provisioning.DatabaseRef{}, fmt.Errorf("mock stores: create database failed")
	}
	m.Calls = append(m.Calls, tenantSlug)
	return provisioning.DatabaseRef{
		Host: "dedicated.db.local",
		Port: 5432,
		Name: "factory_tenant_" + tenantSlug,
	}, nil
}

// MockDataMover is a mock implementation of provisioning.DataMover.
type MockDataMover struct {
	Rows       int64
	CopyCalls  int
	ShouldFail bool

	// DestCountOverride, when set, makes the destination count differ
	// from the source count.
	DestCountOverride *int64
}

func (m *MockDataMover) CopyTenantRows(ctx context.Context, source, dest provisioning.DatabaseRef, tenantSlug string) (int64, error) {
	if m.ShouldFail {
		return 0, fmt.Errorf("mock mover: copy failed")
	}
	m.CopyCalls++
	return m.Rows, nil
}

func (m *MockDataMover) CountTenantRows(ctx context.Context, ref provisioning.DatabaseRef, tenantSlug string) (int64, error) {
	if m.ShouldFail {
		return 0, fmt.Errorf("mock mover: count failed")
	}
	if m.DestCountOverride != nil && ref.Host == "dedicated.db.local" {
		return *m.DestCountOverride, nil
	}
	return m.Rows, nil
}

// MockRouteStore is a mock implementation of provisioning.RouteStore.
type MockRouteStore struct {
	Routes     map[string]string
	ShouldFail bool
}

func (m *MockRouteStore) WriteRoute(ctx context.Context, tenantSlug, endpoint string) (string, error) {
	if m.ShouldFail {
		return "", fmt.Errorf("mock routes: write failed")
	}
	if m.Routes == nil {
		m.Routes = make(map[string]string)
	}
	m.Routes[tenantSlug] = endpoint
	return "s3://test-bucket/routes/" + tenantSlug + ".json", nil
}

// MockProvisioner is a mock implementation of provisioning.Provisioner.
type MockProvisioner struct {
	DeployCalls []provisioning.DeploymentConfig
	Status      string
	ShouldFail  bool
}

func (m *MockProvisioner) Deploy(ctx context.Context, cfg *provisioning.DeploymentConfig) (string, error) {
	if m.ShouldFail {
		return "", fmt.Errorf("mock provisioner: deployment failed")
	}
	m.DeployCalls = append(m.DeployCalls, *cfg)
	return "factory-tenant-" + cfg.TenantSlug, nil
}

func (m *MockProvisioner) Stop(ctx context.Context, tenantSlug string) error {
	if m.ShouldFail {
		return fmt.Errorf("mock provisioner: stop failed")
	}
	return nil
}

func (m *MockProvisioner) GetStatus(ctx context.Context, tenantSlug string) (string, error) {
	if m.ShouldFail {
		return "", fmt.Errorf("mock provisioner: status failed")
	}
	if m.Status == "" {
		return "running", nil
	}
	return m.Status, nil
}

// MockProbe is a mock implementation of provisioning.VerificationProbe.
type MockProbe struct {
	FailRead      bool
	FailWriteRead bool
	FailIsolation bool
}

func (m *MockProbe) CheckRead(ctx context.Context, tenantSlug string) error {
	if m.FailRead {
		return fmt.Errorf("mock probe: read failed")
	}
	return nil
}

func (m *MockProbe) CheckWriteRead(ctx context.Context, tenantSlug string) error {
	if m.FailWriteRead {
		return fmt.Errorf("mock probe: write-read failed")
	}
	return nil
}

func (m *MockProbe) CheckIsolation(ctx context.Context, tenantSlug, otherSlug string) error {
	if m.FailIsolation {
		return fmt.Errorf("mock probe: isolation failed")
	}
	return nil
}

// MockNotifier records reported outcomes.
type MockNotifier struct {
	Reported   []*promotion.Outcome
	ShouldFail bool
}

func (m *MockNotifier) ReportOutcome(ctx context.Context, out *promotion.Outcome) error {
	if m.ShouldFail {
		return fmt.Errorf("mock notifier: report failed")
	}
	m.Reported = append(m.Reported, out)
	return nil
}
