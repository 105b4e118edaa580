package nomad

import (
	"strings"

	"github.com/hashicorp/nomad/api"
)

// Client wraps the Nomad API for tenant deployments.
type Client struct {
	client *api.Client
}

// NewClient builds a client from the environment (NOMAD_ADDR, NOMAD_TOKEN),
// defaulting to the local agent.
func NewClient() (*Client, error) {
	cfg := api.DefaultConfig()
	c, err := api.NewClient(cfg)
	if err != nil {
		return nil, err
	}
	return &Client{client: c}, nil
}

// DeployTenant registers the dedicated job for a tenant and returns the job
// name as the deployment reference.
func (c *Client) DeployTenant(cfg JobConfig) (string, error) {
	job, err := GenerateJob(cfg)
	if err != nil {
		return "", err
	}

	if _, _, err := c.client.Jobs().Register(job, nil); err != nil {
		return "", err
	}
	return JobName(cfg.TenantSlug), nil
}

// StopTenant deregisters the tenant's dedicated job.
func (c *Client) StopTenant(tenantSlug string) error {
	_, _, err := c.client.Jobs().Deregister(JobName(tenantSlug), true, nil)
	return err
}

// GetTenantStatus reports the coarse status of a tenant's dedicated job
// based on its latest allocation.
func (c *Client) GetTenantStatus(tenantSlug string) (string, error) {
	allocs, _, err := c.client.Jobs().Allocations(JobName(tenantSlug), false, nil)
	if err != nil {
		if strings.Contains(err.Error(), "not found") {
			return "not_found", nil
		}
		return "", err
	}

	if len(allocs) == 0 {
		return "pending", nil
	}

	alloc := latestAllocation(allocs)
	if alloc == nil {
		return "pending", nil
	}

	status := strings.ToLower(strings.TrimSpace(alloc.ClientStatus))
	if status != "running" {
		return status, nil
	}

	if allocationReady(alloc) {
		return "running", nil
	}
	return "pending", nil
}

func latestAllocation(allocs []*api.AllocationListStub) *api.AllocationListStub {
	var latest *api.AllocationListStub
	for _, alloc := range allocs {
		if alloc == nil {
			continue
		}
		if latest == nil {
			latest = alloc
			continue
		}
		if alloc.ModifyIndex > latest.ModifyIndex {
			latest = alloc
			continue
		}
		if alloc.ModifyIndex == latest.ModifyIndex && alloc.CreateIndex > latest.CreateIndex {
			latest = alloc
		}
	}
	return latest
}

func allocationReady(alloc *api.AllocationListStub) bool {
	if alloc == nil {
		return false
	}
	if alloc.DesiredStatus != "" && strings.ToLower(alloc.DesiredStatus) != api.AllocDesiredStatusRun {
		return false
	}
	if len(alloc.TaskStates) == 0 {
		return false
	}
	for _, state := range alloc.TaskStates {
		if state == nil || state.Failed {
			return false
		}
		if strings.ToLower(strings.TrimSpace(state.State)) != "running" {
			return false
		}
	}
	return true
}
