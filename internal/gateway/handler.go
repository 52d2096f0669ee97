// Package gateway implements the single-port HTTP surface of edgegate:
// the request router that forwards to backends, and the authenticated
// admin API that edits the route table at runtime.
package gateway

import (
	"net/http"
	"net/http/httputil"
	"net/url"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"github.com/avelinc/edgegate/internal/store"
)

// Gateway is the catch-all handler for the public surface. Every request
// reads exactly one snapshot from the store; a table swap mid-request is
// invisible to in-flight requests.
type Gateway struct {
	st *store.Store
	// proxies caches one ReverseProxy per distinct backend URL. Entries
	// are stateless and shared across snapshots, so the cache survives
	// table swaps and only ever grows with the set of distinct backends.
	proxies sync.Map // string -> *httputil.ReverseProxy
}

// NewGateway creates the public request router over the given store.
func NewGateway(st *store.Store) *Gateway {
	return &Gateway{st: st}
}

var _ http.Handler = (*Gateway)(nil)

func (g *Gateway) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	snap := g.st.Current()

	decision, err := snap.Route(r.URL.Path)
	if err != nil {
		// No matching rule and no default backend: the gateway is
		// misconfigured and the client gets told so.
		zerolog.Ctx(r.Context()).Warn().Str("path", r.URL.Path).
			Msg("no route for request and no default backend")
		WriteError(w, http.StatusBadGateway, errTypeRouting,
			"no rule matches this path and no default backend is configured")
		return
	}

	zerolog.Ctx(r.Context()).Debug().
		Str("path", r.URL.Path).
		Str("backend", decision.Backend.String()).
		Str("rule_id", decision.RuleID).
		Str("action", string(decision.Action)).
		Msg("route selected")

	switch decision.Action {
	case store.ActionRedirect:
		g.redirect(w, r, decision.Backend)
	default:
		g.proxyFor(decision.Backend).ServeHTTP(w, r)
	}
}

// proxyFor returns the shared reverse proxy for a backend, creating it on
// first use. Method, headers, and body pass through unchanged and the
// response streams back without whole-body buffering.
func (g *Gateway) proxyFor(target *url.URL) *httputil.ReverseProxy {
	key := target.String()
	if cached, ok := g.proxies.Load(key); ok {
		return cached.(*httputil.ReverseProxy)
	}

	proxy := &httputil.ReverseProxy{
		Rewrite: func(pr *httputil.ProxyRequest) {
			pr.SetURL(target)
			pr.SetXForwarded()
		},
		// Flush as bytes arrive: the terminal service and chat bridge
		// stream long-lived responses.
		FlushInterval: -1,
		ErrorHandler: func(w http.ResponseWriter, r *http.Request, err error) {
			zerolog.Ctx(r.Context()).Error().Err(err).
				Str("backend", key).Msg("upstream connection failed")
			WriteError(w, http.StatusBadGateway, errTypeUpstream, "upstream connection failed")
		},
	}

	actual, _ := g.proxies.LoadOrStore(key, proxy)
	return actual.(*httputil.ReverseProxy)
}

// redirect answers 307 so the client re-issues the same method against the
// backend directly.
func (g *Gateway) redirect(w http.ResponseWriter, r *http.Request, backend *url.URL) {
	target := *backend
	target.Path = singleJoiningSlash(backend.Path, r.URL.Path)
	target.RawQuery = r.URL.RawQuery
	http.Redirect(w, r, target.String(), http.StatusTemporaryRedirect)
}

func singleJoiningSlash(a, b string) string {
	aslash := strings.HasSuffix(a, "/")
	bslash := strings.HasPrefix(b, "/")
	switch {
	case aslash && bslash:
		return a + b[1:]
	case !aslash && !bslash:
		return a + "/" + b
	}
	return a + b
}
