package provisioning

import "context"

// Credentials is a dedicated database principal issued for one tenant.
type Credentials struct {
	Username string
	Secret   string
}

// DatabaseRef identifies a logical database reachable by the data plane.
type DatabaseRef struct {
	Host string
	Port int
	Name string
}

// CredentialIssuer creates dedicated database principals. Implementations
// must be idempotent per tenant slug: re-issuing rotates the secret rather
// than failing.
type CredentialIssuer interface {
	CreateUser(ctx context.Context, tenantSlug string) (Credentials, error)
}

// StoreProvisioner creates the isolated logical database for a tenant.
type StoreProvisioner interface {
	CreateDatabase(ctx context.Context, tenantSlug, owner string) (DatabaseRef, error)
}

// DataMover copies a tenant's rows between stores.
//
// CopyTenantRows must run as a transactional batch on the destination and
// must never modify source rows. CountTenantRows is the verification
// primitive used to confirm the copy.
type DataMover interface {
	CopyTenantRows(ctx context.Context, source, dest DatabaseRef, tenantSlug string) (int64, error)
	CountTenantRows(ctx context.Context, ref DatabaseRef, tenantSlug string) (int64, error)
}

// RouteStore persists the routing artifact mapping a tenant slug to its
// dedicated endpoint, consumable by the edge layer.
type RouteStore interface {
	WriteRoute(ctx context.Context, tenantSlug, endpoint string) (artifactRef string, err error)
}

// DeploymentConfig defines the parameters for a dedicated compute deployment.
type DeploymentConfig struct {
	TenantID      int64
	TenantSlug    string
	Version       string
	Database      DatabaseRef
	Credentials   Credentials
	Endpoint      string
	AuthJWTSecret string
}

// Provisioner is the underlying compute orchestrator (e.g. Nomad).
type Provisioner interface {
	// Deploy creates or updates the dedicated workload and returns an
	// opaque deployment reference.
	Deploy(ctx context.Context, cfg *DeploymentConfig) (string, error)

	// Stop stops the workload.
	Stop(ctx context.Context, tenantSlug string) error

	// GetStatus retrieves the current status of the workload.
	GetStatus(ctx context.Context, tenantSlug string) (string, error)
}

// VerificationProbe runs functional checks against a freshly promoted
// deployment before it is trusted for traffic.
type VerificationProbe interface {
	// CheckRead performs a tenant-scoped read against the deployment.
	CheckRead(ctx context.Context, tenantSlug string) error

	// CheckWriteRead writes a probe record and reads it back.
	CheckWriteRead(ctx context.Context, tenantSlug string) error

	// CheckIsolation confirms the deployment cannot see otherSlug's data
	// and vice versa.
	CheckIsolation(ctx context.Context, tenantSlug, otherSlug string) error
}
