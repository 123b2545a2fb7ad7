package cache

import (
	"net/http"
	"net/url"
	"path"
	"strings"
)

// Strategy is the caching discipline chosen for one request. The set of
// variants is closed: CacheFirst, NetworkFirst and CacheOnDemand.
type Strategy interface {
	Name() string
	strategy()
}

// CacheFirst serves static assets from cache and populates the dynamic
// cache on a miss.
type CacheFirst struct{}

// NetworkFirst serves API calls live and falls back to a fresh cached copy.
type NetworkFirst struct{}

// CacheOnDemand serves media from cache when present but never populates
// it; media is only cached by an explicit download.
type CacheOnDemand struct {
	Kind MediaKind
}

func (CacheFirst) Name() string    { return "cache_first" }
func (NetworkFirst) Name() string  { return "network_first" }
func (CacheOnDemand) Name() string { return "cache_on_demand" }

func (CacheFirst) strategy()    {}
func (NetworkFirst) strategy()  {}
func (CacheOnDemand) strategy() {}

// MediaKind selects the placeholder served when a media fetch fails.
type MediaKind int

const (
	MediaImage MediaKind = iota + 1
	MediaVideo
	MediaAudio
)

func (k MediaKind) String() string {
	switch k {
	case MediaImage:
		return "image"
	case MediaVideo:
		return "video"
	case MediaAudio:
		return "audio"
	default:
		return "unknown"
	}
}

var mediaExtensions = map[string]MediaKind{
	".jpg":  MediaImage,
	".jpeg": MediaImage,
	".png":  MediaImage,
	".gif":  MediaImage,
	".webp": MediaImage,
	".mp4":  MediaVideo,
	".webm": MediaVideo,
	".mp3":  MediaAudio,
	".wav":  MediaAudio,
}

// MediaKindOf returns the media kind for a URL path, matching the extension
// case-insensitively. ok is false for non-media paths.
func MediaKindOf(p string) (MediaKind, bool) {
	kind, ok := mediaExtensions[strings.ToLower(path.Ext(p))]
	return kind, ok
}

// Classifier maps requests to strategies for one origin.
type Classifier struct {
	Origin    *url.URL
	APIPrefix string
}

// Classify returns the strategy for req. intercept is false for requests
// the router must pass through untouched: other origins and methods other
// than GET.
func (c Classifier) Classify(req *http.Request) (s Strategy, intercept bool) {
	if req.Method != http.MethodGet && req.Method != "" {
		return nil, false
	}
	if !SameOrigin(c.Origin, req.URL) {
		return nil, false
	}

	p := req.URL.Path
	if p == "" {
		p = "/"
	}
	if c.APIPrefix != "" && strings.HasPrefix(p, c.APIPrefix) {
		return NetworkFirst{}, true
	}
	if kind, ok := MediaKindOf(p); ok {
		return CacheOnDemand{Kind: kind}, true
	}
	return CacheFirst{}, true
}

// SameOrigin compares scheme, host and effective port.
func SameOrigin(a, b *url.URL) bool {
	if a == nil || b == nil {
		return false
	}
	if !strings.EqualFold(a.Scheme, b.Scheme) {
		return false
	}
	return strings.EqualFold(a.Hostname(), b.Hostname()) && effectivePort(a) == effectivePort(b)
}

func effectivePort(u *url.URL) string {
	if p := u.Port(); p != "" {
		return p
	}
	switch strings.ToLower(u.Scheme) {
	case "https":
		return "443"
	case "http":
		return "80"
	}
	return ""
}

// acceptsHTML reports whether the request asked for an HTML document.
func acceptsHTML(req *http.Request) bool {
	return strings.Contains(req.Header.Get("Accept"), "text/html")
}
