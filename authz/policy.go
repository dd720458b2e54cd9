package authz

import "net/http"

// Rule pairs a Matcher with the Access decision for the requests it selects.
type Rule struct {
	Matcher Matcher
	Access  Access
}

// When builds a Rule.
func When(m Matcher, a Access) Rule { return Rule{Matcher: m, Access: a} }

// Policy is an ordered rule list. The zero value denies everything.
type Policy struct {
	rules []Rule
}

// NewPolicy returns a policy evaluating rules in order.
func NewPolicy(rules ...Rule) *Policy {
	return &Policy{rules: append([]Rule(nil), rules...)}
}

// DefaultPolicy requires ROLE_ADMIN under /admin and authentication
// everywhere else.
func DefaultPolicy() *Policy {
	return NewPolicy(
		When(PathPattern("/admin/**"), HasRole("ADMIN")),
		When(AnyRequest(), Authenticated()),
	)
}

// Decide evaluates r for p. The first matching rule wins; when none matches
// the request is denied.
func (pol *Policy) Decide(r *http.Request, p Principal) Decision {
	if pol != nil {
		for _, rule := range pol.rules {
			if rule.Matcher.Matches(r) {
				return rule.Access.Decide(p)
			}
		}
	}
	return DenyAll().Decide(p)
}

// RequiresAuthentication reports whether the rule matching r would reject an
// anonymous caller.
func (pol *Policy) RequiresAuthentication(r *http.Request) bool {
	return pol.Decide(r, nil) != Granted
}
