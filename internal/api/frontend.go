package api

import (
	"log/slog"
	"net/http"
	"net/http/httputil"
	"net/url"
)

// newFrontendProxy encaminha as páginas para o servidor do front.
func newFrontendProxy(target *url.URL, logger *slog.Logger) *httputil.ReverseProxy {
	proxy := httputil.NewSingleHostReverseProxy(target)
	proxy.ErrorHandler = func(w http.ResponseWriter, r *http.Request, err error) {
		logger.ErrorContext(r.Context(), "frontend proxy error", "target", target.String(), "error", err)
		http.Error(w, "bad gateway", http.StatusBadGateway)
	}
	return proxy
}
