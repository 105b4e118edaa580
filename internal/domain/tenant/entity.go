package tenant

import (
	"errors"
	"regexp"
	"time"
)

// IsolationState represents where a tenant's data and compute live.
type IsolationState string

const (
	StateShared          IsolationState = "shared"
	StatePromoting       IsolationState = "promoting"
	StateIsolated        IsolationState = "isolated"
	StatePromotionFailed IsolationState = "promotion_failed"
)

// AllStates lists every isolation state.
func AllStates() []IsolationState {
	return []IsolationState{StateShared, StatePromoting, StateIsolated, StatePromotionFailed}
}

var transitions = map[IsolationState][]IsolationState{
	StateShared:    {StatePromoting},
	StatePromoting: {StateIsolated, StatePromotionFailed},
	// promotion_failed and promoting recover to shared only through the
	// administrative reset, which goes through Repository.ResetToShared.
}

// CanTransition reports whether the automated pipeline may move a tenant
// from one isolation state to another.
func CanTransition(from, to IsolationState) bool {
	if from == to {
		return true
	}
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

var slugPattern = regexp.MustCompile(`^[a-z0-9][a-z0-9-]{0,61}[a-z0-9]$`)

// ValidSlug reports whether s is a well-formed tenant slug: lowercase
// letters, digits and hyphens, 1-63 characters, no leading or trailing
// hyphen. Single-character slugs are allowed.
func ValidSlug(s string) bool {
	if len(s) == 1 {
		c := s[0]
		return (c >= 'a' && c <= 'z') || (c >= '0' && c <= '9')
	}
	return slugPattern.MatchString(s)
}

// ErrNotFound is returned when a tenant slug resolves to no row.
var ErrNotFound = errors.New("tenant not found")

// Tenant is the core domain entity. The orchestrator is the only writer of
// IsolationState transitions; the dedicated-infrastructure fields are filled
// in as provisioning steps complete.
type Tenant struct {
	ID             int64          `json:"id,string"`
	Slug           string         `json:"slug"`
	Name           string         `json:"name"`
	IsolationState IsolationState `json:"isolation_state"`

	// Dedicated database details, populated during promotion.
	DBHost     string `json:"db_host,omitempty"`
	DBPort     int    `json:"db_port,omitempty"`
	DBName     string `json:"db_name,omitempty"`
	DBUser     string `json:"db_user,omitempty"`
	DBPassword string `json:"-"` // encrypted at rest, never exposed

	DeploymentRef string `json:"deployment_ref,omitempty"`
	RoutingRef    string `json:"routing_ref,omitempty"`
	LastError     string `json:"last_error,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NewTenant creates a tenant on the shared pool.
func NewTenant(slug, name string) *Tenant {
	now := time.Now().UTC()
	return &Tenant{
		Slug:           slug,
		Name:           name,
		IsolationState: StateShared,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}

// MarkIsolated records the terminal successful state.
func (t *Tenant) MarkIsolated() {
	t.IsolationState = StateIsolated
	t.LastError = ""
	t.UpdatedAt = time.Now().UTC()
}

// MarkPromotionFailed records the terminal failed state. The tenant stays
// out of the shared pool so a retry cannot silently re-provision on top of
// partially created resources.
func (t *Tenant) MarkPromotionFailed(errMsg string) {
	t.IsolationState = StatePromotionFailed
	t.LastError = errMsg
	t.UpdatedAt = time.Now().UTC()
}
