// Package resolver extracts a normalized tenant identifier from the
// heterogeneous trigger payload: a structured label, a bracketed title
// marker, or a free-text body line, in that precedence order.
package resolver

import (
	"regexp"
	"strings"
	"time"

	"github.com/n2nstreams/saasfactory-cloud/internal/domain/promotion"
)

const labelPrefix = "promote-tenant:"

var (
	titlePattern = regexp.MustCompile(`\[TENANT:([^\]]+)\]`)
	bodyPattern  = regexp.MustCompile(`Tenant:\s*([A-Za-z0-9-]+)`)
)

// Resolve produces a promotion request from the raw trigger. Resolution
// always succeeds structurally: when no pattern matches it falls back to the
// sentinel identifier with SourceFallback, which the validator rejects.
// First match wins; sources are never mixed.
func Resolve(raw promotion.RawTrigger, runID int64) promotion.Request {
	slug, source := extract(raw)
	return promotion.Request{
		RunID:       runID,
		TenantSlug:  slug,
		RequestedBy: raw.RequestedBy,
		Source:      source,
		Raw:         raw,
		CreatedAt:   time.Now().UTC(),
	}
}

func extract(raw promotion.RawTrigger) (string, promotion.TriggerSource) {
	if label := strings.TrimSpace(raw.Label); strings.HasPrefix(label, labelPrefix) {
		return label[len(labelPrefix):], promotion.SourceLabel
	}

	if m := titlePattern.FindStringSubmatch(raw.Title); m != nil {
		return strings.TrimSpace(m[1]), promotion.SourceTitle
	}

	if m := bodyPattern.FindStringSubmatch(raw.Body); m != nil {
		return m[1], promotion.SourceBody
	}

	return promotion.FallbackSlug, promotion.SourceFallback
}
