package tenant

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewTenant(t *testing.T) {
	tn := NewTenant("acme-corp", "Acme Corp")

	assert.Equal(t, "acme-corp", tn.Slug)
	assert.Equal(t, "Acme Corp", tn.Name)
	assert.Equal(t, StateShared, tn.IsolationState)
	assert.NotZero(t, tn.CreatedAt)
	assert.NotZero(t, tn.UpdatedAt)
}

func TestCanTransition(t *testing.T) {
	tests := []struct {
		name    string
		current IsolationState
		target  IsolationState
		want    bool
	}{
		// Same state
		{"same state", StateShared, StateShared, true},

		// Shared transitions
		{"shared to promoting", StateShared, StatePromoting, true},
		{"shared to isolated", StateShared, StateIsolated, false},
		{"shared to promotion_failed", StateShared, StatePromotionFailed, false},

		// Promoting transitions
		{"promoting to isolated", StatePromoting, StateIsolated, true},
		{"promoting to promotion_failed", StatePromoting, StatePromotionFailed, true},
		{"promoting to shared", StatePromoting, StateShared, false},

		// Terminal states: only the administrative reset leaves them
		{"isolated to promoting", StateIsolated, StatePromoting, false},
		{"isolated to shared", StateIsolated, StateShared, false},
		{"promotion_failed to shared", StatePromotionFailed, StateShared, false},
		{"promotion_failed to promoting", StatePromotionFailed, StatePromoting, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := CanTransition(tt.current, tt.target)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestValidSlug(t *testing.T) {
	tests := []struct {
		slug string
		want bool
	}{
		{"acme-corp", true},
		{"a", true},
		{"7", true},
		{"tenant-42", true},
		{"a1-b2-c3", true},

		{"", false},
		{"-acme", false},
		{"acme-", false},
		{"Acme", false},
		{"acme_corp", false},
		{"acme corp", false},
		{"acme.corp", false},
		{"-", false},
	}

	for _, tt := range tests {
		t.Run("slug "+tt.slug, func(t *testing.T) {
			assert.Equal(t, tt.want, ValidSlug(tt.slug), "slug %q", tt.slug)
		})
	}
}

func TestValidSlug_Length(t *testing.T) {
	long := make([]byte, 63)
	for i := range long {
		long[i] = 'a'
	}
	assert.True(t, ValidSlug(string(long)))
	assert.False(t, ValidSlug(string(long)+"a"))
}

func TestMarkIsolated(t *testing.T) {
	tn := NewTenant("acme-corp", "Acme Corp")
	tn.IsolationState = StatePromoting
	tn.LastError = "previous failure"

	tn.MarkIsolated()

	assert.Equal(t, StateIsolated, tn.IsolationState)
	assert.Empty(t, tn.LastError)
}

func TestMarkPromotionFailed(t *testing.T) {
	tn := NewTenant("acme-corp", "Acme Corp")
	tn.IsolationState = StatePromoting

	tn.MarkPromotionFailed("deployment failed: no allocation")

	assert.Equal(t, StatePromotionFailed, tn.IsolationState)
	assert.Equal(t, "deployment failed: no allocation", tn.LastError)
}

func TestAllStates(t *testing.T) {
	states := AllStates()
	assert.Len(t, states, 4)
	for _, s := range states {
		assert.NotEmpty(t, s)
	}
}
