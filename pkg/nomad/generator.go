package nomad

import (
	"fmt"
	"strconv"
	"time"

	"github.com/hashicorp/nomad/api"
)

// JobName returns the Nomad job name for a tenant's dedicated deployment.
func JobName(tenantSlug string) string {
	return "factory-tenant-" + tenantSlug
}

// GenerateJob creates the Nomad job specification for a tenant's dedicated
// instance: one docker task pointed at the tenant's isolated database.
func GenerateJob(cfg JobConfig) (*api.Job, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid job config: %w", err)
	}

	jobName := JobName(cfg.TenantSlug)
	jobType := "service"
	region := "global"
	priority := 50

	taskGroup := &api.TaskGroup{
		Name:  &jobName,
		Count: intToPtr(1),
		RestartPolicy: &api.RestartPolicy{
			Attempts: intToPtr(3),
			Interval: timeToPtr(5 * time.Minute),
			Delay:    timeToPtr(15 * time.Second),
			Mode:     stringToPtr("fail"),
		},
		Networks: []*api.NetworkResource{
			{
				DynamicPorts: []api.Port{
					{Label: "http", To: 8080},
				},
			},
		},
	}

	task := &api.Task{
		Name:   "factory",
		Driver: "docker",
		Config: map[string]interface{}{
			"image": fmt.Sprintf("ghcr.io/n2nstreams/factory:%s", cfg.Version),
			"ports": []string{"http"},
		},
		Env: buildEnvVars(cfg),
		Resources: &api.Resources{
			CPU:      intToPtr(1000),
			MemoryMB: intToPtr(1024),
		},
		Services: []*api.Service{
			{
				Name:      jobName,
				PortLabel: "http",
				Checks: []api.ServiceCheck{
					{
						Type:     "http",
						Path:     "/health",
						Interval: 10 * time.Second,
						Timeout:  2 * time.Second,
					},
				},
			},
		},
	}

	taskGroup.Tasks = []*api.Task{task}

	job := &api.Job{
		ID:          &jobName,
		Name:        &jobName,
		Type:        &jobType,
		Region:      &region,
		Priority:    &priority,
		Datacenters: []string{"dc1"},
		TaskGroups:  []*api.TaskGroup{taskGroup},
		Meta: map[string]string{
			"tenant_slug": cfg.TenantSlug,
			"tenant_id":   strconv.FormatInt(cfg.TenantID, 10),
		},
	}

	return job, nil
}

func buildEnvVars(cfg JobConfig) map[string]string {
	return map[string]string{
		"TENANT_SLUG":     cfg.TenantSlug,
		"TENANT_ENDPOINT": cfg.Endpoint,
		"DB_HOST":         cfg.DB.Host,
		"DB_PORT":         strconv.Itoa(cfg.DB.Port),
		"DB_NAME":         cfg.DB.Name,
		"DB_USER":         cfg.DB.User,
		"DB_PASSWORD":     cfg.DB.Password,
		"AUTH_JWT_SECRET": cfg.AuthJWTSecret,
	}
}

func intToPtr(i int) *int                        { return &i }
func stringToPtr(s string) *string               { return &s }
func timeToPtr(d time.Duration) *time.Duration   { return &d }
