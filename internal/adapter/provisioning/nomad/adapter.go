package nomad

import (
	"context"

	"github.com/n2nstreams/saasfactory-cloud/internal/domain/provisioning"
	"github.com/n2nstreams/saasfactory-cloud/pkg/nomad"
)

// Adapter binds the Nomad client to the provisioning.Provisioner port.
type Adapter struct {
	client *nomad.Client
}

func NewAdapter(client *nomad.Client) *Adapter {
	return &Adapter{client: client}
}

func (a *Adapter) Deploy(ctx context.Context, cfg *provisioning.DeploymentConfig) (string, error) {
	jobCfg := nomad.JobConfig{
		TenantID:   cfg.TenantID,
		TenantSlug: cfg.TenantSlug,
		Version:    cfg.Version,
		DB: nomad.DBConfig{
			Host:     cfg.Database.Host,
			Port:     cfg.Database.Port,
			Name:     cfg.Database.Name,
			User:     cfg.Credentials.Username,
			Password: cfg.Credentials.Secret,
		},
		Endpoint:      cfg.Endpoint,
		AuthJWTSecret: cfg.AuthJWTSecret,
	}
	return a.client.DeployTenant(jobCfg)
}

func (a *Adapter) Stop(ctx context.Context, tenantSlug string) error {
	return a.client.StopTenant(tenantSlug)
}

func (a *Adapter) GetStatus(ctx context.Context, tenantSlug string) (string, error) {
	return a.client.GetTenantStatus(tenantSlug)
}
