package ratelimit

import "strings"

// matchEndpoint resolves a request path and method to an endpoint rule.
// Exact path matches win over prefix rules (those ending in "/"); the health
// check is always unlimited. Returns nil when no rule applies.
func matchEndpoint(path, method string, rules []EndpointConfig) *EndpointConfig {
	if path == "/health" && method == "GET" {
		return &EndpointConfig{}
	}

	var prefix *EndpointConfig
	for i := range rules {
		rule := &rules[i]
		if rule.Method != method {
			continue
		}
		if rule.Path == path {
			return rule
		}
		if prefix == nil && strings.HasSuffix(rule.Path, "/") && strings.HasPrefix(path, rule.Path) {
			prefix = rule
		}
	}
	return prefix
}
