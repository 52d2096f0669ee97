package store

import (
	"fmt"
	"net/url"

	"github.com/samber/lo"
)

// Validate checks the whole document and returns a *ValidationError listing
// every violation, or nil. Validation is all-or-nothing: callers must not
// persist or swap a document that fails it.
func (d *Document) Validate() error {
	verr := &ValidationError{}

	if d.DefaultBackend != "" {
		if err := checkBackendURL(d.DefaultBackend); err != nil {
			verr.Addf("default_backend: %v", err)
		}
	}

	seen := make(map[string]int, len(d.Rules))
	for i, r := range d.Rules {
		label := fmt.Sprintf("rules[%d]", i)
		if r.ID != "" {
			label = fmt.Sprintf("rules[%d] (%s)", i, r.ID)
		}

		if r.ID == "" {
			verr.Addf("%s: id is required", label)
		} else if prev, dup := seen[r.ID]; dup {
			verr.Addf("%s: duplicate id (first used by rules[%d])", label, prev)
		} else {
			seen[r.ID] = i
		}

		checkRule(verr, label, r)
	}

	return verr.ToError()
}

// Check validates a single rule in isolation, for callers that assemble a
// rule outside a document. Uniqueness of the id can only be judged against
// a document and is not covered here.
func (r Rule) Check() error {
	verr := &ValidationError{}

	label := "rule"
	if r.ID == "" {
		verr.Addf("%s: id is required", label)
	} else {
		label = fmt.Sprintf("rule %s", r.ID)
	}
	checkRule(verr, label, r)

	return verr.ToError()
}

func checkRule(verr *ValidationError, label string, r Rule) {
	if n := predicateCount(r.Match); n != 1 {
		verr.Addf("%s: match must set exactly one of path_equal or path_prefix, got %d", label, n)
	}

	if r.Backend == "" {
		verr.Addf("%s: backend is required", label)
	} else if err := checkBackendURL(r.Backend); err != nil {
		verr.Addf("%s: backend: %v", label, err)
	}

	switch r.Action {
	case "", ActionProxy, ActionRedirect:
	default:
		verr.Addf("%s: unknown action %q", label, r.Action)
	}
}

func predicateCount(m Match) int {
	return lo.CountBy([]bool{m.PathEqual != nil, m.PathPrefix != nil}, func(set bool) bool {
		return set
	})
}

// checkBackendURL accepts absolute http(s) URLs with a host, the only
// backend form the proxied local services expose.
func checkBackendURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("parse %q: %v", raw, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("%q: scheme must be http or https", raw)
	}
	if u.Host == "" {
		return fmt.Errorf("%q: host is required", raw)
	}
	return nil
}
