package nomad

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() JobConfig {
	return JobConfig{
		TenantID:   42,
		TenantSlug: "acme-corp",
		Version:    "v1.4.0",
		DB: DBConfig{
			Host:     "db.internal",
			Port:     5432,
			Name:     "factory_tenant_acme_corp",
			User:     "factory_tenant_acme_corp",
			Password: "secret",
		},
		Endpoint:      "https://acme-corp.factory.example",
		AuthJWTSecret: "deadbeef",
	}
}

func TestGenerateJob(t *testing.T) {
	job, err := GenerateJob(validConfig())
	require.NoError(t, err)

	assert.Equal(t, "factory-tenant-acme-corp", *job.ID)
	assert.Equal(t, "service", *job.Type)
	require.Len(t, job.TaskGroups, 1)
	require.Len(t, job.TaskGroups[0].Tasks, 1)

	task := job.TaskGroups[0].Tasks[0]
	assert.Equal(t, "docker", task.Driver)
	assert.Equal(t, "ghcr.io/n2nstreams/factory:v1.4.0", task.Config["image"])
	assert.Equal(t, "acme-corp", task.Env["TENANT_SLUG"])
	assert.Equal(t, "factory_tenant_acme_corp", task.Env["DB_NAME"])
	assert.Equal(t, "5432", task.Env["DB_PORT"])
	assert.Equal(t, "acme-corp", job.Meta["tenant_slug"])
}

func TestGenerateJob_InvalidConfig(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*JobConfig)
	}{
		{"missing slug", func(c *JobConfig) { c.TenantSlug = "" }},
		{"missing version", func(c *JobConfig) { c.Version = "" }},
		{"missing db host", func(c *JobConfig) { c.DB.Host = "" }},
		{"missing db user", func(c *JobConfig) { c.DB.User = "" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(&cfg)
			_, err := GenerateJob(cfg)
			assert.Error(t, err)
		})
	}
}

func TestJobName(t *testing.T) {
	assert.Equal(t, "factory-tenant-big-co", JobName("big-co"))
}
