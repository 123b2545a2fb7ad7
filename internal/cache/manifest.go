package cache

import "fmt"

// Fallback assets. All of them are part of DefaultManifest.
const (
	OfflinePage      = "/pages/offline.html"
	ImagePlaceholder = "/assets/images/placeholder-image.png"
	VideoPlaceholder = "/assets/images/video-placeholder.png"
)

// DefaultManifest is the application shell cached at install time. Changing
// it requires a cache version bump so the install step runs again.
var DefaultManifest = []string{
	"/",
	"/index.html",
	"/manifest.json",
	"/css/main.css",
	"/css/responsive.css",
	"/css/themes.css",
	"/js/app.js",
	"/js/utils.js",
	"/js/offline.js",
	"/assets/images/rajasthan-logo.png",
	"/assets/images/india-emblem.png",
	"/assets/images/icons/icon-72x72.png",
	"/assets/images/icons/icon-96x96.png",
	"/assets/images/icons/icon-128x128.png",
	"/assets/images/icons/icon-144x144.png",
	"/assets/images/icons/icon-152x152.png",
	"/assets/images/icons/icon-192x192.png",
	"/assets/images/icons/icon-384x384.png",
	"/assets/images/icons/icon-512x512.png",
	OfflinePage,
	ImagePlaceholder,
	VideoPlaceholder,
}

// Names are the three cache partitions of one cache version.
type Names struct {
	Static  string
	Dynamic string
	Media   string
}

// NamesFor returns the partition names for a cache version.
func NamesFor(version string) Names {
	return Names{
		Static:  fmt.Sprintf("rvs-static-%s", version),
		Dynamic: fmt.Sprintf("rvs-dynamic-%s", version),
		Media:   fmt.Sprintf("rvs-media-%s", version),
	}
}

// All returns the names in lookup order.
func (n Names) All() []string {
	return []string{n.Static, n.Dynamic, n.Media}
}

// Contains reports whether name is one of the current partitions.
func (n Names) Contains(name string) bool {
	return name == n.Static || name == n.Dynamic || name == n.Media
}
