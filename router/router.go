// Package router implements the Event Router: a static, ordered list of
// {queue, pattern} rules consulted in order, the first matching rule
// winning. Grounded on the teacher's module.CrossWorkflowRouter.RouteEvent
// (module/cross_workflow_router.go), which walks an ordered rule list under
// an RWMutex and short-circuits on the first pattern match; generalized
// here from a workflow-link lookup to the spec's Event Router, and from its
// glob-style matchPattern to the structural match package.
package router

import (
	"errors"
	"sync"

	"github.com/bluzky/pocsync/match"
)

// ErrNoMatch is returned when no rule's pattern matches the event.
var ErrNoMatch = errors.New("router: no matching rule found")

// Rule binds a target queue name to a pattern tested against an event via
// match.Match. A nil or empty-map Pattern matches any event, making a
// trailing Rule with an empty pattern act as a default route.
type Rule struct {
	Queue   string
	Pattern map[string]any
}

// Router holds a static, ordered rule list. The zero value is usable but
// ErrNoMatch will be returned until rules are set via SetRules.
type Router struct {
	mu    sync.RWMutex
	rules []Rule
}

// New constructs a Router with the given ordered rules.
func New(rules []Rule) *Router {
	return &Router{rules: rules}
}

// SetRules atomically replaces the router's rule list, letting callers
// reload routing configuration without constructing a new Router.
func (r *Router) SetRules(rules []Rule) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rules = rules
}

// Route returns the queue name of the first rule whose pattern matches
// event, per spec.md testable property 9 (router first-match). It returns
// ErrNoMatch if no rule matches.
func (r *Router) Route(event map[string]any) (string, error) {
	r.mu.RLock()
	rules := r.rules
	r.mu.RUnlock()

	for _, rule := range rules {
		if match.Match(event, rule.Pattern) {
			return rule.Queue, nil
		}
	}
	return "", ErrNoMatch
}
