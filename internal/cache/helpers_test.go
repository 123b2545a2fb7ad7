package cache

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"path"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/virtual-shiksha/shiksha/internal/db"
	"github.com/virtual-shiksha/shiksha/internal/models"
	"github.com/virtual-shiksha/shiksha/internal/testutil"
)

// fakeOrigin serves every path with 200 unless told otherwise and counts hits.
type fakeOrigin struct {
	*httptest.Server

	mu     sync.Mutex
	hits   map[string]int
	status map[string]int
	bodies map[string]string
}

func newFakeOrigin(t *testing.T) *fakeOrigin {
	t.Helper()
	o := &fakeOrigin{
		hits:   make(map[string]int),
		status: make(map[string]int),
		bodies: make(map[string]string),
	}
	o.Server = httptest.NewServer(http.HandlerFunc(o.serve))
	t.Cleanup(o.Close)
	return o
}

func (o *fakeOrigin) serve(w http.ResponseWriter, r *http.Request) {
	o.mu.Lock()
	o.hits[r.URL.Path]++
	status, ok := o.status[r.URL.Path]
	body, hasBody := o.bodies[r.URL.Path]
	o.mu.Unlock()

	if !ok {
		status = http.StatusOK
	}
	if !hasBody {
		body = "content of " + r.URL.Path
	}
	switch path.Ext(r.URL.Path) {
	case ".html":
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
	case ".css":
		w.Header().Set("Content-Type", "text/css")
	default:
		w.Header().Set("Content-Type", "application/octet-stream")
	}
	w.WriteHeader(status)
	_, _ = io.WriteString(w, body)
}

func (o *fakeOrigin) setStatus(p string, status int) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.status[p] = status
}

func (o *fakeOrigin) setBody(p, body string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.bodies[p] = body
}

func (o *fakeOrigin) hitCount(p string) int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.hits[p]
}

// switchTransport fails every request while down is set.
type switchTransport struct {
	base http.RoundTripper
	down atomic.Bool
}

func (s *switchTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if s.down.Load() {
		return nil, errors.New("dial tcp: connect: connection refused")
	}
	return s.base.RoundTrip(req)
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type testEnv struct {
	router *Router
	origin *fakeOrigin
	net    *switchTransport
	clock  *fakeClock
	store  *db.DB
}

// newTestEnv wires a router to a fake origin over a temporary database.
func newTestEnv(t *testing.T, configure func(*Options)) *testEnv {
	t.Helper()

	store := testutil.OpenDB(t)

	origin := newFakeOrigin(t)
	net := &switchTransport{base: origin.Client().Transport}
	clock := &fakeClock{now: time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)}

	opts := Options{
		Origin:    origin.URL,
		Transport: net,
		Now:       clock.Now,
	}
	if configure != nil {
		configure(&opts)
	}
	router, err := NewRouter(store, opts)
	require.NoError(t, err)

	return &testEnv{router: router, origin: origin, net: net, clock: clock, store: store}
}

// get performs a GET through the router and returns the response with its
// body read.
func (e *testEnv) get(t *testing.T, rawURL, accept string) (*http.Response, string, error) {
	t.Helper()
	req, err := http.NewRequestWithContext(context.Background(), http.MethodGet, rawURL, nil)
	require.NoError(t, err)
	if accept != "" {
		req.Header.Set("Accept", accept)
	}
	resp, err := e.router.RoundTrip(req)
	if err != nil {
		return nil, "", err
	}
	defer func() { _ = resp.Body.Close() }()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, string(body), nil
}

func (e *testEnv) install(t *testing.T) {
	t.Helper()
	_, err := e.router.Install(context.Background())
	require.NoError(t, err)
}

func (e *testEnv) stats(t *testing.T) map[string]models.CacheStats {
	t.Helper()
	stats, err := e.router.Stats(context.Background())
	require.NoError(t, err)
	out := make(map[string]models.CacheStats, len(stats))
	for _, s := range stats {
		out[s.CacheName] = s
	}
	return out
}

const (
	acceptHTML = "text/html,application/xhtml+xml"
	acceptJSON = "application/json"
)
