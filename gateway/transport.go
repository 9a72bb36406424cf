package gateway

import (
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"github.com/ogabek/istudy-gate/credstore"
)

// TokenSource supplies the current bearer token. *authstate.Machine
// satisfies it.
type TokenSource interface {
	Token() string
}

// Transport attaches the session's bearer token to every outgoing API
// request and watches responses for session expiry.
//
// It deliberately acts on the credential store directly rather than going
// through the controller: a 401 can arrive on any proxied request at any
// time, and the expiry must stick even if nothing is listening to the state
// machine at that moment. OnSessionExpired then brings the in-memory state
// in line.
//
// 403 responses pass through untouched: an authorization failure on one
// request is that request's problem, not the session's.
type Transport struct {
	Base             http.RoundTripper
	Tokens           TokenSource
	Store            credstore.Store
	OnSessionExpired func()
	Logger           *slog.Logger
}

func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	base := t.Base
	if base == nil {
		base = http.DefaultTransport
	}

	out := req.Clone(req.Context())
	out.Header.Set("X-Request-Id", uuid.NewString())
	if token := t.Tokens.Token(); token != "" && token != "undefined" && token != "null" {
		out.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := base.RoundTrip(out)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode == http.StatusUnauthorized {
		t.logger().Warn("upstream returned 401, ending session",
			slog.String("url", req.URL.Path))
		if err := t.Store.Clear(); err != nil {
			t.logger().Error("clearing credential store", slog.Any("error", err))
		}
		if t.OnSessionExpired != nil {
			t.OnSessionExpired()
		}
	}
	return resp, nil
}

func (t *Transport) logger() *slog.Logger {
	if t.Logger != nil {
		return t.Logger
	}
	return slog.Default()
}
