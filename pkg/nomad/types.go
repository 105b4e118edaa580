package nomad

import "errors"

// JobConfig holds the configuration required to generate the dedicated
// workload for a promoted tenant.
type JobConfig struct {
	TenantID   int64
	TenantSlug string
	Version    string

	DB DBConfig

	// Endpoint the edge layer routes to this deployment.
	Endpoint string

	// AuthJWTSecret is the per-tenant secret the deployed instance uses to
	// sign its own sessions.
	AuthJWTSecret string
}

// DBConfig holds the dedicated database connection details for the tenant.
type DBConfig struct {
	Host     string
	Port     int
	Name     string
	User     string
	Password string
}

// Validate checks if the JobConfig is complete enough to generate a job.
func (c JobConfig) Validate() error {
	if c.TenantSlug == "" {
		return errors.New("tenant slug is required")
	}
	if c.Version == "" {
		return errors.New("version is required")
	}
	if c.DB.Host == "" || c.DB.Name == "" || c.DB.User == "" {
		return errors.New("dedicated database config is incomplete")
	}
	return nil
}
