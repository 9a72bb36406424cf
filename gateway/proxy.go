package gateway

import (
	"net/http"
	"net/http/httputil"
	"net/url"
	"strings"
)

// newProxy builds the reverse proxy that carries all dashboard API traffic
// to the upstream backend. The transport handles token attachment and 401
// session teardown; the proxy's only extra job is turning an expired
// session into a hard navigation for page-level requests.
func newProxy(upstream *url.URL, transport http.RoundTripper) *httputil.ReverseProxy {
	proxy := &httputil.ReverseProxy{
		Rewrite: func(pr *httputil.ProxyRequest) {
			pr.SetURL(upstream)
			pr.SetXForwarded()
		},
		Transport: transport,
	}
	proxy.ModifyResponse = func(resp *http.Response) error {
		if resp.StatusCode == http.StatusUnauthorized && wantsHTML(resp.Request) {
			resp.Header.Set("Location", "/login")
			resp.StatusCode = http.StatusSeeOther
			resp.Status = http.StatusText(http.StatusSeeOther)
		}
		return nil
	}
	return proxy
}

// wantsHTML reports whether the request came from browser navigation rather
// than a fetch/XHR caller. Fetch callers get the raw 401 to surface
// themselves.
func wantsHTML(r *http.Request) bool {
	if r == nil {
		return false
	}
	return strings.Contains(r.Header.Get("Accept"), "text/html")
}
