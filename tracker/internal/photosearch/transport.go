package photosearch

import (
	"net/http"

	"github.com/hiketracker/hiketracker/tracker/internal/config"
)

// authRoundTripper injects authentication headers into every outgoing request.
type authRoundTripper struct {
	base http.RoundTripper
	auth config.AuthConfig
}

func (t *authRoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	switch t.auth.Mode {
	case "apikey":
		req = req.Clone(req.Context())
		req.Header.Set(t.auth.Header, t.auth.Key())
	case "bearer":
		req = req.Clone(req.Context())
		req.Header.Set("Authorization", "Bearer "+t.auth.Token())
	}
	base := t.base
	if base == nil {
		base = http.DefaultTransport
	}
	return base.RoundTrip(req)
}

// buildHTTPClient constructs an http.Client carrying the configured auth.
// Per-attempt deadlines come from the request context, so the client itself
// has no timeout.
func buildHTTPClient(auth config.AuthConfig) *http.Client {
	return &http.Client{Transport: &authRoundTripper{auth: auth}}
}
