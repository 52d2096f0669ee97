package store

import (
	"cmp"
	"crypto/sha256"
	"fmt"
	"net/url"
	"slices"
)

// compiledRule pairs a rule with its parsed backend so routing never
// re-parses URLs on the hot path.
type compiledRule struct {
	rule    Rule
	backend *url.URL
}

// Snapshot is an immutable, pre-compiled view of one document version.
// Routing reads exactly one snapshot per request; a swap mid-request is
// invisible to in-flight requests.
type Snapshot struct {
	doc        *Document
	rules      []compiledRule // priority descending, insertion order on ties
	defaultURL *url.URL       // nil when no default backend is configured
	secretHash [32]byte
}

// Decision is the routing outcome for one request path.
type Decision struct {
	Backend *url.URL
	Action  Action
	RuleID  string // empty when the default backend was used
}

// compile validates nothing: callers must have run Document.Validate first.
func compile(doc *Document) (*Snapshot, error) {
	snap := &Snapshot{
		doc:        doc,
		rules:      make([]compiledRule, 0, len(doc.Rules)),
		secretHash: sha256.Sum256([]byte(doc.AdminPassword)),
	}

	if doc.DefaultBackend != "" {
		u, err := url.Parse(doc.DefaultBackend)
		if err != nil {
			return nil, fmt.Errorf("compile default_backend: %w", err)
		}
		snap.defaultURL = u
	}

	for _, r := range doc.Rules {
		u, err := url.Parse(r.Backend)
		if err != nil {
			return nil, fmt.Errorf("compile rule %s backend: %w", r.ID, err)
		}
		snap.rules = append(snap.rules, compiledRule{rule: r, backend: u})
	}

	// Stable sort keeps document order within equal priorities, which is
	// what makes the tie-break deterministic across reloads. cmp.Compare
	// rather than subtraction: the difference of extreme priorities
	// overflows and mis-sorts.
	slices.SortStableFunc(snap.rules, func(a, b compiledRule) int {
		return cmp.Compare(b.rule.Priority, a.rule.Priority)
	})

	return snap, nil
}

// Route selects the backend for a request path: the first matching rule in
// the pre-sorted order, else the default backend, else ErrNoRoute.
func (s *Snapshot) Route(path string) (Decision, error) {
	for i := range s.rules {
		cr := &s.rules[i]
		if cr.rule.Match.Matches(path) {
			return Decision{
				Backend: cr.backend,
				Action:  cr.rule.EffectiveAction(),
				RuleID:  cr.rule.ID,
			}, nil
		}
	}
	if s.defaultURL != nil {
		return Decision{Backend: s.defaultURL, Action: ActionProxy}, nil
	}
	return Decision{}, ErrNoRoute
}

// Document returns a deep copy of the snapshot's document. The snapshot
// itself is never handed out mutable.
func (s *Snapshot) Document() *Document {
	return s.doc.Clone()
}

// SecretHash returns the pre-computed SHA-256 of the admin credential.
// Pre-hashing at swap time keeps the per-request auth cost to one hash
// plus a constant-time compare.
func (s *Snapshot) SecretHash() [32]byte {
	return s.secretHash
}

// RuleCount reports how many rules the snapshot carries, for logging.
func (s *Snapshot) RuleCount() int {
	return len(s.rules)
}
