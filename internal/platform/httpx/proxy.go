package httpx

import (
	"log/slog"
	"net/http"
	"net/http/httputil"
	"net/url"
)

// NewReverseProxy forwards requests to upstream. A failed upstream renders a
// 502 problem instead of the default empty body.
func NewReverseProxy(upstream string, logger *slog.Logger) (http.Handler, error) {
	target, err := url.Parse(upstream)
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}
	proxy := &httputil.ReverseProxy{
		Rewrite: func(pr *httputil.ProxyRequest) {
			pr.SetURL(target)
			pr.SetXForwarded()
			pr.Out.Host = pr.In.Host
		},
		ErrorHandler: func(w http.ResponseWriter, r *http.Request, err error) {
			logger.Warn("upstream request failed",
				slog.String("upstream", target.Host),
				slog.String("path", r.URL.Path),
				slog.Any("error", err),
			)
			Problem(w, http.StatusBadGateway, "Bad Gateway", "upstream unavailable")
		},
	}
	return proxy, nil
}

// NotFound renders a problem 404.
func NotFound(w http.ResponseWriter, _ *http.Request) {
	Problem(w, http.StatusNotFound, "Not Found", "")
}
