package cache

import (
	"errors"
	"net/http"
	"net/http/httputil"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/virtual-shiksha/shiksha/internal/log"
)

// NewProxy serves the origin through the router, so browsers pointed at
// the proxy get the same caching and offline behaviour as in-process
// clients.
func NewProxy(r *Router) *httputil.ReverseProxy {
	target := r.Origin()
	return &httputil.ReverseProxy{
		Rewrite: func(pr *httputil.ProxyRequest) {
			pr.SetURL(target)
			pr.SetXForwarded()
			// The transport then negotiates compression itself and hands
			// the router decoded bodies, so cached entries are plain.
			pr.Out.Header.Del("Accept-Encoding")
		},
		Transport: r,
		ErrorHandler: func(w http.ResponseWriter, req *http.Request, err error) {
			log.Warnf("proxy %s %s: %v", req.Method, req.URL.Path, err)
			if errors.Is(err, ErrNetworkFailure) {
				http.Error(w, "The portal is offline and this page has not been saved for offline use.", http.StatusServiceUnavailable)
				return
			}
			http.Error(w, "The portal could not be reached.", http.StatusBadGateway)
		},
	}
}

// Handler wraps the proxy with tracing.
func Handler(r *Router) http.Handler {
	return otelhttp.NewHandler(NewProxy(r), "shiksha.proxy")
}
