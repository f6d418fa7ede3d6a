package ratelimit

import (
	"strings"

	"gatekeeper/internal/models"
)

// rule is a precompiled exemption pattern. Prefixes are lowered once at
// construction so matching is a single case-insensitive prefix check per
// decision.
type rule struct {
	method     string
	pathPrefix string
}

// RuleSet is an ordered list of exemption rules; a request is exempt if any
// rule matches. Rules with an empty method match every method.
type RuleSet struct {
	rules []rule
}

// NewRuleSet compiles configuration rules into a matcher.
func NewRuleSet(cfg []models.ExemptionRule) *RuleSet {
	rs := &RuleSet{rules: make([]rule, 0, len(cfg))}
	for _, r := range cfg {
		rs.rules = append(rs.rules, rule{
			method:     strings.ToUpper(strings.TrimSpace(r.Method)),
			pathPrefix: strings.ToLower(strings.TrimSpace(r.PathPrefix)),
		})
	}
	return rs
}

// Exempt reports whether the request must bypass admission control.
// Path matching is a case-insensitive prefix match: rule "/webhooks/"
// matches "/webhooks/stripe" but not "/shop/webhooks/stripe".
func (rs *RuleSet) Exempt(method, path string) bool {
	method = strings.ToUpper(method)
	path = strings.ToLower(path)

	for _, r := range rs.rules {
		if r.method != "" && r.method != method {
			continue
		}
		if strings.HasPrefix(path, r.pathPrefix) {
			return true
		}
	}
	return false
}
