package promotion

import "time"

// TriggerSource identifies which trigger field supplied the tenant slug.
type TriggerSource string

const (
	SourceLabel    TriggerSource = "label"
	SourceTitle    TriggerSource = "title"
	SourceBody     TriggerSource = "body"
	SourceFallback TriggerSource = "fallback"
)

// FallbackSlug is the sentinel identifier produced when no extraction
// pattern matches. It is always rejected by the validator.
const FallbackSlug = "unknown-tenant"

// RawTrigger carries the three candidate strings handed over by the
// external trigger mechanism, plus the operator identity.
type RawTrigger struct {
	Label       string `json:"label"`
	Title       string `json:"title"`
	Body        string `json:"body"`
	RequestedBy string `json:"requested_by"`
}

// Request is the normalized promotion request produced by the resolver.
// It is created once per trigger event and never mutated.
type Request struct {
	RunID       int64         `json:"run_id,string"`
	TenantSlug  string        `json:"tenant_slug"`
	RequestedBy string        `json:"requested_by"`
	Source      TriggerSource `json:"trigger_source"`
	Raw         RawTrigger    `json:"raw_inputs"`
	CreatedAt   time.Time     `json:"created_at"`
}
