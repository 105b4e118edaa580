package promotion

import (
	"context"
	"time"
)

// StepName identifies one provisioning action within a run.
type StepName string

const (
	StepCredentialIssuance StepName = "credential_issuance"
	StepStoreCreation      StepName = "store_creation"
	StepDataMigration      StepName = "data_migration"
	StepRoutingConfig      StepName = "routing_config"
	StepDeployment         StepName = "deployment"
)

// StepOrder is the fixed execution order of provisioning steps.
var StepOrder = []StepName{
	StepCredentialIssuance,
	StepStoreCreation,
	StepDataMigration,
	StepRoutingConfig,
	StepDeployment,
}

// StepOutcome is the result of a single provisioning step.
type StepOutcome string

const (
	StepPending StepOutcome = "pending"
	StepSuccess StepOutcome = "success"
	StepFailed  StepOutcome = "failed"
	StepSkipped StepOutcome = "skipped"
)

// Step records one attempted provisioning action. Immutable once completed.
type Step struct {
	Name        StepName    `json:"name"`
	StartedAt   time.Time   `json:"started_at,omitempty"`
	CompletedAt *time.Time  `json:"completed_at,omitempty"`
	Outcome     StepOutcome `json:"outcome"`
	Detail      string      `json:"detail,omitempty"`
}

// FinalState is the terminal result of a promotion run.
type FinalState string

const (
	FinalSuccess FinalState = "success"
	FinalFailed  FinalState = "failed"
)

// Outcome is the immutable audit record of one promotion run.
type Outcome struct {
	RunID       int64      `json:"run_id,string"`
	Request     Request    `json:"request"`
	Steps       []Step     `json:"steps"`
	FinalState  FinalState `json:"final_state"`
	Reason      Reason     `json:"reason,omitempty"`
	Detail      string     `json:"detail,omitempty"`
	RoutingRef  string     `json:"routing_config_ref,omitempty"`
	CompletedAt time.Time  `json:"completed_at"`
}

// Summary renders the human-readable status line surfaced to the trigger
// mechanism alongside the terminal status.
func (o *Outcome) Summary() string {
	if o.FinalState == FinalSuccess {
		return "tenant " + o.Request.TenantSlug + " promoted to dedicated infrastructure"
	}
	msg := "promotion of tenant " + o.Request.TenantSlug + " failed: " + string(o.Reason)
	if o.Detail != "" {
		msg += " (" + o.Detail + ")"
	}
	return msg
}

// OutcomeRepository persists audit records. Append-only: outcomes are never
// updated or deleted.
type OutcomeRepository interface {
	Append(ctx context.Context, out *Outcome) error
	FindByRunID(ctx context.Context, runID int64) (*Outcome, error)
	ListBySlug(ctx context.Context, slug string, limit int) ([]*Outcome, error)
}

// Notifier is the notification/labeling sink consumed by the reporter.
type Notifier interface {
	ReportOutcome(ctx context.Context, out *Outcome) error
}
