// Package cache implements the cache strategy router: a transparent
// http.RoundTripper that picks a caching discipline per request, bounds the
// dynamic cache, expires stale API responses and supplies offline fallbacks.
package cache

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/virtual-shiksha/shiksha/internal/db"
	"github.com/virtual-shiksha/shiksha/internal/log"
	"github.com/virtual-shiksha/shiksha/internal/models"
	"github.com/virtual-shiksha/shiksha/internal/otel"
	"github.com/virtual-shiksha/shiksha/internal/telemetry"
)

var (
	// ErrNetworkFailure wraps transport failures that no fallback covered.
	ErrNetworkFailure = errors.New("network unavailable")
	// ErrNotCached is returned when an asset required from the cache is missing.
	ErrNotCached = errors.New("not in cache")
)

// Response headers describing how the router answered.
const (
	HeaderCache    = "X-Shiksha-Cache"
	HeaderFallback = "X-Shiksha-Fallback"
)

// Options configures a Router. Zero values fall back to defaults.
type Options struct {
	// Origin is the portal's base URL. Only requests to it are intercepted.
	Origin    string
	APIPrefix string
	Version   string

	MaxBytes         int64
	TrimMinEntries   int
	APIMaxAge        time.Duration
	FetchTimeout     time.Duration
	CountHeaderBytes bool

	Manifest []string

	// Transport performs the real network fetch.
	Transport http.RoundTripper
	Telemetry telemetry.Client
	Now       func() time.Time
}

// Defaults.
const (
	DefaultVersion        = "v1.0.0"
	DefaultAPIPrefix      = "/api/"
	DefaultMaxBytes       = 100 * 1024 * 1024
	DefaultTrimMinEntries = 20
	DefaultAPIMaxAge      = 24 * time.Hour
	DefaultFetchTimeout   = 30 * time.Second
)

// Router is the cache strategy router.
type Router struct {
	store      *db.DB
	opts       Options
	origin     *url.URL
	names      Names
	classifier Classifier
	transport  http.RoundTripper
	tracer     trace.Tracer
}

// NewRouter creates a router over store.
func NewRouter(store *db.DB, opts Options) (*Router, error) {
	origin, err := url.Parse(strings.TrimRight(opts.Origin, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse origin %q: %w", opts.Origin, err)
	}
	if origin.Scheme == "" || origin.Host == "" {
		return nil, fmt.Errorf("origin %q must be an absolute URL", opts.Origin)
	}

	if opts.APIPrefix == "" {
		opts.APIPrefix = DefaultAPIPrefix
	}
	if opts.Version == "" {
		opts.Version = DefaultVersion
	}
	if opts.MaxBytes <= 0 {
		opts.MaxBytes = DefaultMaxBytes
	}
	if opts.TrimMinEntries <= 0 {
		opts.TrimMinEntries = DefaultTrimMinEntries
	}
	if opts.APIMaxAge <= 0 {
		opts.APIMaxAge = DefaultAPIMaxAge
	}
	if opts.FetchTimeout <= 0 {
		opts.FetchTimeout = DefaultFetchTimeout
	}
	if opts.Manifest == nil {
		opts.Manifest = DefaultManifest
	}
	if opts.Transport == nil {
		opts.Transport = http.DefaultTransport
	}
	if opts.Telemetry == nil {
		opts.Telemetry = telemetry.Noop()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	return &Router{
		store:      store,
		opts:       opts,
		origin:     origin,
		names:      NamesFor(opts.Version),
		classifier: Classifier{Origin: origin, APIPrefix: opts.APIPrefix},
		transport:  opts.Transport,
		tracer:     otel.Tracer("internal/cache"),
	}, nil
}

// Names returns the current cache partition names.
func (r *Router) Names() Names {
	return r.names
}

// Origin returns the intercepted origin.
func (r *Router) Origin() *url.URL {
	u := *r.origin
	return &u
}

// Client returns an HTTP client whose fetches go through the router.
func (r *Router) Client() *http.Client {
	return &http.Client{Transport: r}
}

// RoundTrip implements http.RoundTripper.
func (r *Router) RoundTrip(req *http.Request) (*http.Response, error) {
	strategy, ok := r.classifier.Classify(req)
	if !ok {
		return r.transport.RoundTrip(req)
	}

	ctx, span := r.tracer.Start(req.Context(), "cache."+strategy.Name(), trace.WithAttributes(
		attribute.String("http.url", req.URL.String()),
		attribute.String("cache.strategy", strategy.Name()),
	))
	defer span.End()
	req = req.WithContext(ctx)

	var (
		resp *http.Response
		err  error
	)
	switch s := strategy.(type) {
	case CacheFirst:
		resp, err = r.cacheFirst(ctx, req)
	case NetworkFirst:
		resp, err = r.networkFirst(ctx, req)
	case CacheOnDemand:
		resp, err = r.cacheOnDemand(ctx, req, s.Kind)
	default:
		err = fmt.Errorf("unhandled strategy %T", strategy)
	}

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "no response")
		return nil, err
	}
	span.SetAttributes(
		attribute.Int("http.status_code", resp.StatusCode),
		attribute.String("cache.result", resp.Header.Get(HeaderCache)),
	)
	return resp, nil
}

// cacheFirst: cache, then network with a dynamic-cache write, then the
// offline page for HTML requests.
func (r *Router) cacheFirst(ctx context.Context, req *http.Request) (*http.Response, error) {
	if hit := r.match(ctx, req.Method, cacheKey(req.URL)); hit != nil {
		return fromEntry(hit, req, "hit")
	}

	resp, err := r.fetch(ctx, req)
	if err != nil {
		return r.offlineFallback(ctx, req, CacheFirst{}, err)
	}
	if resp.StatusCode != http.StatusOK {
		return detach(resp), nil
	}

	body, err := readBody(resp)
	if err != nil {
		return r.offlineFallback(ctx, req, CacheFirst{}, err)
	}
	r.put(ctx, r.names.Dynamic, req, resp, body)
	if err := r.Trim(ctx); err != nil {
		log.Warnf("trim %s: %v", r.names.Dynamic, err)
	}
	return rebuild(resp, body, "miss"), nil
}

// networkFirst: network with a timestamped dynamic-cache write, then a
// fresh cached copy, then the offline page for HTML requests.
func (r *Router) networkFirst(ctx context.Context, req *http.Request) (*http.Response, error) {
	key := cacheKey(req.URL)

	resp, err := r.fetch(ctx, req)
	if err == nil && resp.StatusCode == http.StatusOK {
		body, rerr := readBody(resp)
		if rerr == nil {
			r.put(ctx, r.names.Dynamic, req, resp, body)
			if merr := r.store.PutCacheMeta(ctx, models.CacheMeta{URL: key, CachedAt: r.opts.Now().UTC()}); merr != nil {
				log.Warnf("record cache time for %s: %v", key, merr)
			}
			if terr := r.Trim(ctx); terr != nil {
				log.Warnf("trim %s: %v", r.names.Dynamic, terr)
			}
			return rebuild(resp, body, "miss"), nil
		}
		err = rerr
		resp = nil
	}

	// A live non-200 response is a failure for caching purposes but is
	// still better than an error when nothing else is available.
	var live *http.Response
	if err == nil {
		live = resp
		err = fmt.Errorf("%w: origin returned %s", ErrNetworkFailure, resp.Status)
	}
	log.Debugf("network request for %s failed, trying cache: %v", key, err)

	if hit := r.match(ctx, req.Method, key); hit != nil {
		if r.stale(ctx, key) {
			log.Infof("cached response for %s expired", key)
		} else {
			discard(live)
			r.opts.Telemetry.TrackOfflineFallbackServed(NetworkFirst{}.Name(), "cached")
			return fromEntry(hit, req, "fallback")
		}
	}

	if acceptsHTML(req) {
		if page := r.lookupAsset(ctx, OfflinePage); page != nil {
			discard(live)
			r.opts.Telemetry.TrackOfflineFallbackServed(NetworkFirst{}.Name(), "offline_page")
			return fromFallback(page, req, "offline-page")
		}
	}
	if live != nil {
		return detach(live), nil
	}
	return nil, err
}

// cacheOnDemand: cache, then network without a cache write, then a
// placeholder for images and video.
func (r *Router) cacheOnDemand(ctx context.Context, req *http.Request, kind MediaKind) (*http.Response, error) {
	if hit := r.match(ctx, req.Method, cacheKey(req.URL)); hit != nil {
		return fromEntry(hit, req, "hit")
	}

	resp, err := r.fetch(ctx, req)
	if err == nil {
		return detach(resp), nil
	}
	log.Warnf("media fetch failed for %s: %v", req.URL, err)

	var placeholder string
	switch kind {
	case MediaImage:
		placeholder = ImagePlaceholder
	case MediaVideo:
		placeholder = VideoPlaceholder
	}
	if placeholder != "" {
		if asset := r.lookupAsset(ctx, placeholder); asset != nil {
			r.opts.Telemetry.TrackOfflineFallbackServed(CacheOnDemand{}.Name(), kind.String()+"_placeholder")
			return fromFallback(asset, req, "placeholder")
		}
	}
	return nil, err
}

// offlineFallback answers a failed cache-first request.
func (r *Router) offlineFallback(ctx context.Context, req *http.Request, s Strategy, cause error) (*http.Response, error) {
	if acceptsHTML(req) {
		if page := r.lookupAsset(ctx, OfflinePage); page != nil {
			r.opts.Telemetry.TrackOfflineFallbackServed(s.Name(), "offline_page")
			return fromFallback(page, req, "offline-page")
		}
	}
	log.Errorf("fetch failed for %s: %v", req.URL, cause)
	return nil, cause
}

// stale reports whether the metadata recorded for key is older than the
// API freshness window. Entries without metadata are never stale.
func (r *Router) stale(ctx context.Context, key string) bool {
	meta, err := r.store.GetCacheMeta(ctx, key)
	if err != nil {
		log.Warnf("read cache time for %s: %v", key, err)
		return true
	}
	if meta == nil {
		return false
	}
	return r.opts.Now().Sub(meta.CachedAt) > r.opts.APIMaxAge
}

// match looks a key up across the current partitions. Storage errors are
// logged and treated as a miss.
func (r *Router) match(ctx context.Context, method, key string) *models.CacheEntry {
	if method == "" {
		method = http.MethodGet
	}
	entry, err := r.store.MatchCache(ctx, r.names.All(), method, key)
	if err != nil {
		log.Warnf("cache lookup %s: %v", key, err)
		return nil
	}
	return entry
}

// lookupAsset finds an origin-relative asset such as the offline page.
func (r *Router) lookupAsset(ctx context.Context, p string) *models.CacheEntry {
	return r.match(ctx, http.MethodGet, r.resolve(p))
}

func (r *Router) resolve(p string) string {
	ref, err := url.Parse(p)
	if err != nil {
		return r.origin.String() + p
	}
	return cacheKey(r.origin.ResolveReference(ref))
}

// put stores a response body. Failures are logged; the live response is
// still returned to the caller.
func (r *Router) put(ctx context.Context, cacheName string, req *http.Request, resp *http.Response, body []byte) {
	entry, err := r.newEntry(cacheName, req.Method, cacheKey(req.URL), resp, body)
	if err == nil {
		err = r.store.PutCacheEntry(ctx, entry)
	}
	if err != nil {
		log.Warnf("cache %s in %s: %v", req.URL, cacheName, err)
	}
}

// fetch performs one network attempt bounded by FetchTimeout. The timer
// keeps running while the body is read unless the response is detached.
func (r *Router) fetch(ctx context.Context, req *http.Request) (*http.Response, error) {
	ctx, cancel := context.WithCancel(ctx)
	timer := time.AfterFunc(r.opts.FetchTimeout, cancel)

	resp, err := r.transport.RoundTrip(req.Clone(ctx))
	if err != nil {
		timer.Stop()
		cancel()
		return nil, fmt.Errorf("%w: %w", ErrNetworkFailure, err)
	}
	resp.Body = &timedBody{ReadCloser: resp.Body, timer: timer, cancel: cancel}
	return resp, nil
}

func cacheKey(u *url.URL) string {
	k := *u
	k.Fragment = ""
	k.RawFragment = ""
	return k.String()
}
