package ratelimit

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"gatekeeper/internal/models"
)

func TestRuleSet_Exempt(t *testing.T) {
	rs := NewRuleSet([]models.ExemptionRule{
		{Method: "POST", PathPrefix: "/webhooks/"},
		{Method: "", PathPrefix: "/health"},
	})

	tests := []struct {
		name   string
		method string
		path   string
		want   bool
	}{
		{"webhook callback", "POST", "/webhooks/stripe", true},
		{"webhook root", "POST", "/webhooks/", true},
		{"path match is case-insensitive", "POST", "/Webhooks/Stripe", true},
		{"method must match", "GET", "/webhooks/stripe", false},
		{"lowercase method still matches", "post", "/webhooks/stripe", true},
		// Prefix, not substring: the rule must not fire mid-path.
		{"prefix not substring", "POST", "/shop/webhooks/stripe", false},
		{"shorter path than prefix", "POST", "/webhook", false},
		{"method-agnostic rule", "GET", "/health", true},
		{"method-agnostic rule other verb", "DELETE", "/health", true},
		{"unrelated path", "GET", "/products", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, rs.Exempt(tt.method, tt.path))
		})
	}
}

func TestRuleSet_Empty(t *testing.T) {
	rs := NewRuleSet(nil)
	assert.False(t, rs.Exempt("POST", "/webhooks/stripe"))
}

func TestRuleSet_AnyRuleMatches(t *testing.T) {
	rs := NewRuleSet([]models.ExemptionRule{
		{Method: "POST", PathPrefix: "/webhooks/paypal"},
		{Method: "POST", PathPrefix: "/webhooks/stripe"},
	})

	assert.True(t, rs.Exempt("POST", "/webhooks/stripe/events"))
	assert.True(t, rs.Exempt("POST", "/webhooks/paypal"))
	assert.False(t, rs.Exempt("POST", "/webhooks/adyen"))
}
