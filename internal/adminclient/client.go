// Package adminclient is the HTTP client used by autonomous processes that
// own exactly one rule: register it on start, remove it on stop. The
// transient tunnel helper is the canonical user, with ids like
// "sin-proxy-<uuid>".
//
// The pattern is an optimistic, id-scoped read-modify-write against the
// admin API: fetch the document, recompute the rule list for our own id
// only, POST the whole document back. Concurrent owners of DIFFERENT ids
// are safe; racing on the SAME id can lose one update, which EnsureRule
// absorbs by re-fetching and retrying. The pattern is NOT safe for general
// concurrent whole-document editing and is not meant to be.
package adminclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"

	"github.com/avelinc/edgegate/internal/gateway"
	"github.com/avelinc/edgegate/internal/store"
)

// Client errors.
var (
	// ErrUnauthorized means the admin password was rejected. Callers must
	// re-fetch the secret, not retry: the credential may have rotated.
	ErrUnauthorized = errors.New("adminclient: admin password rejected")
	// ErrConflict means the scoped update kept losing races and gave up.
	ErrConflict = errors.New("adminclient: concurrent document updates, retries exhausted")
)

const (
	routesPath     = "/admin/routes.json"
	maxAttempts    = 5
	retryBaseDelay = 50 * time.Millisecond
)

// Client talks to one gateway's admin API. The password is taken at
// construction; helpers construct a fresh client per operation so a
// credential rotation is picked up on their next call.
type Client struct {
	baseURL  string
	password string
	httpc    *http.Client
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient substitutes the HTTP client (tests, custom timeouts).
func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) { cl.httpc = c }
}

// New creates a client for the gateway at baseURL (scheme://host:port).
func New(baseURL, password string, opts ...Option) *Client {
	c := &Client{
		baseURL:  baseURL,
		password: password,
		httpc:    &http.Client{Timeout: 10 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// FetchDocument returns the persisted routing document verbatim.
func (c *Client) FetchDocument(ctx context.Context) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+routesPath, http.NoBody)
	if err != nil {
		return nil, err
	}
	req.Header.Set(gateway.AdminPasswordHeader, c.password)

	resp, err := c.httpc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch document: %w", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		return io.ReadAll(resp.Body)
	case http.StatusUnauthorized:
		return nil, ErrUnauthorized
	default:
		return nil, fmt.Errorf("fetch document: %s", errorMessage(resp))
	}
}

// EnsureRule adds the caller's rule unless a rule with the same id already
// exists (idempotent add, checked by id before append). A 400 from the
// gateway means an interleaving write landed first; the update is
// recomputed from a fresh fetch, bounded by maxAttempts. The rule is
// validated locally first so a malformed one fails immediately with the
// real message instead of being mistaken for a lost race.
func (c *Client) EnsureRule(ctx context.Context, rule store.Rule) error {
	if err := rule.Check(); err != nil {
		return err
	}

	for attempt := 0; attempt < maxAttempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(retryBackoff(attempt)):
			}
		}

		raw, err := c.FetchDocument(ctx)
		if err != nil {
			return err
		}
		if hasRule(raw, rule.ID) {
			return nil
		}

		encoded, err := json.Marshal(rule)
		if err != nil {
			return fmt.Errorf("encode rule: %w", err)
		}
		// Surgical append: everything else in the document, the credential
		// included, passes through byte-for-byte.
		updated, err := sjson.SetRawBytes(raw, "rules.-1", encoded)
		if err != nil {
			return fmt.Errorf("append rule: %w", err)
		}

		retry, err := c.postDocument(ctx, updated)
		if err != nil {
			return err
		}
		if retry {
			continue
		}

		// A concurrent whole-document write can land between our fetch and
		// our POST and clobber the append. Verify before declaring success.
		raw, err = c.FetchDocument(ctx)
		if err != nil {
			return err
		}
		if hasRule(raw, rule.ID) {
			return nil
		}
	}
	return ErrConflict
}

// RemoveRule removes the caller's rule by id. Absence is success: the goal
// state is "no such rule".
func (c *Client) RemoveRule(ctx context.Context, id string) error {
	if id == "" {
		return errors.New("adminclient: rule id is required")
	}

	for attempt := 0; attempt < maxAttempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(retryBackoff(attempt)):
			}
		}

		raw, err := c.FetchDocument(ctx)
		if err != nil {
			return err
		}
		idx := ruleIndex(raw, id)
		if idx < 0 {
			return nil
		}

		updated, err := sjson.DeleteBytes(raw, fmt.Sprintf("rules.%d", idx))
		if err != nil {
			return fmt.Errorf("delete rule: %w", err)
		}

		retry, err := c.postDocument(ctx, updated)
		if err != nil {
			return err
		}
		if retry {
			continue
		}

		raw, err = c.FetchDocument(ctx)
		if err != nil {
			return err
		}
		if !hasRule(raw, id) {
			return nil
		}
	}
	return ErrConflict
}

// postDocument POSTs the full document. Returns retry=true on a 400, which
// in the scoped pattern means our base document went stale underneath us.
func (c *Client) postDocument(ctx context.Context, doc []byte) (retry bool, err error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+routesPath, bytes.NewReader(doc))
	if err != nil {
		return false, err
	}
	req.Header.Set(gateway.AdminPasswordHeader, c.password)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpc.Do(req)
	if err != nil {
		return false, fmt.Errorf("post document: %w", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		return false, nil
	case http.StatusBadRequest:
		return true, nil
	case http.StatusUnauthorized:
		return false, ErrUnauthorized
	default:
		return false, fmt.Errorf("post document: %s", errorMessage(resp))
	}
}

func hasRule(raw []byte, id string) bool {
	return ruleIndex(raw, id) >= 0
}

func ruleIndex(raw []byte, id string) int {
	for i, r := range gjson.GetBytes(raw, "rules").Array() {
		if r.Get("id").String() == id {
			return i
		}
	}
	return -1
}

func retryBackoff(attempt int) time.Duration {
	return retryBaseDelay * time.Duration(attempt)
}

func errorMessage(resp *http.Response) string {
	body, err := io.ReadAll(io.LimitReader(resp.Body, 4096))
	if err != nil || len(body) == 0 {
		return resp.Status
	}
	if msg := gjson.GetBytes(body, "error.message"); msg.Exists() {
		return fmt.Sprintf("%s: %s", resp.Status, msg.String())
	}
	return resp.Status
}
