// Package store owns the canonical routing document and the in-memory
// route table derived from it. The document is the single source of truth
// shared with the external sync subsystem; the in-memory form is an
// immutable snapshot swapped atomically on every accepted write.
package store

import "strings"

// Action determines what the gateway does with a matched request.
type Action string

const (
	// ActionProxy forwards the request to the backend and streams the
	// response back.
	ActionProxy Action = "proxy"
	// ActionRedirect answers with a redirect to the backend instead of
	// forwarding.
	ActionRedirect Action = "redirect"
)

// Matcher is a request path predicate.
type Matcher interface {
	Matches(path string) bool
}

// Match is the serialized predicate of a rule. Exactly one field must be
// set; Validate rejects rules with zero or multiple predicates.
type Match struct {
	PathEqual  *string `json:"path_equal,omitempty"`
	PathPrefix *string `json:"path_prefix,omitempty"`
}

// Matches reports whether the predicate accepts the given request path.
// An empty (invalid) predicate matches nothing.
func (m Match) Matches(path string) bool {
	switch {
	case m.PathEqual != nil:
		return path == *m.PathEqual
	case m.PathPrefix != nil:
		return strings.HasPrefix(path, *m.PathPrefix)
	default:
		return false
	}
}

// Equal allocates a path-equality predicate.
func Equal(path string) Match {
	return Match{PathEqual: &path}
}

// Prefix allocates a path-prefix predicate.
func Prefix(prefix string) Match {
	return Match{PathPrefix: &prefix}
}

// Rule maps a path predicate to a backend. Rules are evaluated in priority
// order, highest first; among equal priorities the rule that appears first
// in the document wins.
type Rule struct {
	ID       string `json:"id"`
	Match    Match  `json:"match"`
	Backend  string `json:"backend"`
	Action   Action `json:"action,omitempty"`
	Priority int    `json:"priority"`
}

// EffectiveAction returns the rule action with the proxy default applied.
func (r Rule) EffectiveAction() Action {
	if r.Action == "" {
		return ActionProxy
	}
	return r.Action
}

// Document is the canonical persisted form of the route table plus the
// admin credential. It is what the sync subsystem commits and restores.
type Document struct {
	DefaultBackend string `json:"default_backend"`
	Rules          []Rule `json:"rules"`
	AdminPassword  string `json:"admin_password"`
}

// DefaultDocument returns the built-in fallback used when the canonical
// file is absent or unparsable at startup: no rules, no default backend,
// and the configured bootstrap credential.
func DefaultDocument(bootstrapPassword string) *Document {
	return &Document{
		Rules:         []Rule{},
		AdminPassword: bootstrapPassword,
	}
}

// Clone returns a deep copy. Snapshots hand out clones so callers can
// never reach the table a concurrent reader is using.
func (d *Document) Clone() *Document {
	out := &Document{
		DefaultBackend: d.DefaultBackend,
		Rules:          make([]Rule, len(d.Rules)),
		AdminPassword:  d.AdminPassword,
	}
	for i, r := range d.Rules {
		cp := r
		if r.Match.PathEqual != nil {
			v := *r.Match.PathEqual
			cp.Match.PathEqual = &v
		}
		if r.Match.PathPrefix != nil {
			v := *r.Match.PathPrefix
			cp.Match.PathPrefix = &v
		}
		out.Rules[i] = cp
	}
	return out
}
