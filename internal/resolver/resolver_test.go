package resolver

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/n2nstreams/saasfactory-cloud/internal/domain/promotion"
)

func TestResolve_LabelExtraction(t *testing.T) {
	req := Resolve(promotion.RawTrigger{
		Label:       "promote-tenant:acme-corp",
		RequestedBy: "ops@factory",
	}, 1)

	assert.Equal(t, "acme-corp", req.TenantSlug)
	assert.Equal(t, promotion.SourceLabel, req.Source)
	assert.Equal(t, "ops@factory", req.RequestedBy)
	assert.Equal(t, int64(1), req.RunID)
	assert.NotZero(t, req.CreatedAt)
}

func TestResolve_LabelWinsOverTitleAndBody(t *testing.T) {
	req := Resolve(promotion.RawTrigger{
		Label: "promote-tenant:from-label",
		Title: "[TENANT: from-title] promote please",
		Body:  "Tenant: from-body",
	}, 2)

	assert.Equal(t, "from-label", req.TenantSlug)
	assert.Equal(t, promotion.SourceLabel, req.Source)
}

func TestResolve_TitleMarker(t *testing.T) {
	tests := []struct {
		name  string
		title string
		want  string
	}{
		{"plain", "[TENANT:acme-corp]", "acme-corp"},
		{"trimmed", "promote [TENANT:  acme-corp ] now", "acme-corp"},
		{"embedded", "ops: [TENANT: big-co] escalation", "big-co"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := Resolve(promotion.RawTrigger{Title: tt.title}, 3)
			assert.Equal(t, tt.want, req.TenantSlug)
			assert.Equal(t, promotion.SourceTitle, req.Source)
		})
	}
}

func TestResolve_TitleWinsOverBody(t *testing.T) {
	req := Resolve(promotion.RawTrigger{
		Title: "[TENANT: from-title]",
		Body:  "Tenant: from-body",
	}, 4)

	assert.Equal(t, "from-title", req.TenantSlug)
	assert.Equal(t, promotion.SourceTitle, req.Source)
}

func TestResolve_BodyLine(t *testing.T) {
	req := Resolve(promotion.RawTrigger{
		Body: "Please promote.\nTenant: acme-corp\nThanks",
	}, 5)

	assert.Equal(t, "acme-corp", req.TenantSlug)
	assert.Equal(t, promotion.SourceBody, req.Source)
}

func TestResolve_BodyTokenStopsAtDisallowedChars(t *testing.T) {
	req := Resolve(promotion.RawTrigger{
		Body: "Tenant: acme-corp! urgent",
	}, 6)

	assert.Equal(t, "acme-corp", req.TenantSlug)
	assert.Equal(t, promotion.SourceBody, req.Source)
}

func TestResolve_Fallback(t *testing.T) {
	tests := []struct {
		name string
		raw  promotion.RawTrigger
	}{
		{"empty", promotion.RawTrigger{}},
		{"unrelated label", promotion.RawTrigger{Label: "bug"}},
		{"title without marker", promotion.RawTrigger{Title: "promote acme-corp"}},
		{"body without prefix", promotion.RawTrigger{Body: "the tenant is acme-corp"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := Resolve(tt.raw, 7)
			assert.Equal(t, promotion.FallbackSlug, req.TenantSlug)
			assert.Equal(t, promotion.SourceFallback, req.Source)
		})
	}
}
