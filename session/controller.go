package session

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/ogabek/istudy-gate/authstate"
	"github.com/ogabek/istudy-gate/credstore"
)

// DefaultTTL is the absolute session lifetime, measured from login time
// regardless of activity.
const DefaultTTL = 24 * time.Hour

// Controller orchestrates login, logout, and startup recovery. It is the
// only component that calls the auth API and the only writer of the
// credential store.
//
// All three operations are serialized through one mutex, so a login can
// never interleave with a watchdog-triggered logout; whichever acquires the
// lock first wins outright.
type Controller struct {
	mu      sync.Mutex
	client  *Client
	store   credstore.Store
	machine *authstate.Machine
	logger  *slog.Logger

	ttl time.Duration
	now func() time.Time
}

// ControllerOption configures a Controller.
type ControllerOption func(*Controller)

// WithTTL overrides the absolute session lifetime. Tests use short values.
func WithTTL(ttl time.Duration) ControllerOption {
	return func(c *Controller) { c.ttl = ttl }
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) ControllerOption {
	return func(c *Controller) { c.now = now }
}

// NewController wires the controller's collaborators together.
func NewController(client *Client, store credstore.Store, machine *authstate.Machine, logger *slog.Logger, opts ...ControllerOption) *Controller {
	if logger == nil {
		logger = slog.Default()
	}
	c := &Controller{
		client:  client,
		store:   store,
		machine: machine,
		logger:  logger,
		ttl:     DefaultTTL,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Initialize recovers a persisted session at startup. It always ends by
// dispatching InitComplete; a session that is missing, expired, or corrupt
// recovers as "never logged in" with the store wiped.
func (c *Controller) Initialize(ctx context.Context) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.machine.Dispatch(authstate.InitStart{})

	stored, ok, err := c.store.Read()
	if err != nil {
		c.logger.Error("reading stored session", slog.Any("error", err))
		c.finishInit(nil)
		return
	}
	if !ok || !validToken(stored.Token) || len(stored.UserJSON) == 0 {
		c.finishInit(nil)
		return
	}

	now := c.now()
	if stored.LoginTimestamp > 0 {
		age := now.Sub(time.UnixMilli(stored.LoginTimestamp))
		if age > c.ttl {
			c.logger.Info("stored session past absolute lifetime, discarding",
				slog.Duration("age", age))
			c.clearStore()
			c.finishInit(nil)
			return
		}
	}
	if jwtExpired(stored.Token, now) {
		c.logger.Info("stored token expired, discarding")
		c.clearStore()
		c.finishInit(nil)
		return
	}

	var user authstate.User
	if err := json.Unmarshal(stored.UserJSON, &user); err != nil {
		// Corrupt stored user. Indistinguishable from "never logged in"
		// as far as the operator is concerned.
		c.logger.Warn("stored user is not valid JSON, discarding session",
			slog.Any("error", err))
		c.clearStore()
		c.finishInit(nil)
		return
	}

	c.finishInit(&authstate.InitPayload{User: &user, Token: stored.Token})
}

func (c *Controller) finishInit(payload *authstate.InitPayload) {
	c.machine.Dispatch(authstate.InitComplete{Payload: payload})
}

// Login authenticates against the remote API and establishes the session.
// Callers are responsible for trimming whitespace from both credential
// fields before calling.
//
// On failure the returned error is a *LoginFailedError whose message is
// ready for inline rendering; the credential store is left untouched.
func (c *Controller) Login(ctx context.Context, creds Credentials) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.machine.Dispatch(authstate.LoginStart{})

	payload, err := c.client.Login(ctx, creds)
	if err != nil {
		return c.failLogin(loginMessage(err), err)
	}

	token, container, ok := extractToken(payload)
	if !ok {
		return c.failLogin(msgNoToken, nil)
	}

	user := userFromPayload(container)
	userJSON, err := json.Marshal(user)
	if err != nil {
		return c.failLogin(msgLoginError, err)
	}

	stored := credstore.StoredSession{
		Token:          token,
		UserJSON:       userJSON,
		RefreshToken:   container.RefreshToken,
		LoginTimestamp: c.now().UnixMilli(),
	}
	if err := c.persistVerified(stored); err != nil {
		c.logger.Error("persisting session", slog.Any("error", err))
		return c.failLogin(msgStorageFailed, err)
	}

	c.machine.Dispatch(authstate.LoginSuccess{User: user, Token: token})
	c.logger.Info("login succeeded",
		slog.String("username", user.Username),
		slog.String("role", user.Role))
	return nil
}

// persistVerified writes the session and reads it straight back, byte
// comparing what came out against what went in. A store that silently
// drops writes must not leave the operator believing they are logged in.
func (c *Controller) persistVerified(stored credstore.StoredSession) error {
	if err := c.store.Write(stored); err != nil {
		return err
	}
	got, ok, err := c.store.Read()
	if err != nil {
		return err
	}
	if !ok || got.Token != stored.Token || !bytes.Equal(got.UserJSON, stored.UserJSON) {
		return fmt.Errorf("%w: read-back verification mismatch", credstore.ErrStorage)
	}
	return nil
}

func (c *Controller) failLogin(message string, cause error) error {
	c.machine.Dispatch(authstate.LoginFailure{Message: message})
	c.logger.Warn("login failed", slog.String("message", message), slog.Any("error", cause))
	return &LoginFailedError{Message: message, cause: cause}
}

// Logout ends the session. The server-side call is best effort: the local
// session is always torn down, reachable backend or not. Safe to call when
// already logged out, so the two watchdog timers may both fire.
func (c *Controller) Logout(ctx context.Context) {
	c.mu.Lock()
	defer c.mu.Unlock()

	snap := c.machine.Snapshot()
	if snap.User != nil {
		if err := c.client.Logout(ctx, snap.User.ID); err != nil {
			c.logger.Warn("logout call failed, proceeding locally",
				slog.Any("error", err))
		}
	}
	c.clearStore()
	c.machine.Dispatch(authstate.Logout{})
}

func (c *Controller) clearStore() {
	if err := c.store.Clear(); err != nil {
		c.logger.Error("clearing credential store", slog.Any("error", err))
	}
}

// loginMessage maps a login failure to its user-facing message.
func loginMessage(err error) string {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		switch {
		case apiErr.Status == 401:
			return msgBadCredential
		case apiErr.Status == 400 && apiErr.Message != "":
			return apiErr.Message
		case apiErr.Status == 400:
			return msgInvalidData
		case apiErr.Message != "":
			return apiErr.Message
		default:
			return msgLoginError
		}
	}
	if isConnectionError(err) {
		return msgNoConnection
	}
	return msgLoginError
}

// validToken rejects the empty token and the literal placeholder strings a
// past serialization bug could leave behind.
func validToken(token string) bool {
	return token != "" && token != "undefined" && token != "null"
}

// jwtExpired reports whether token is a JWT whose exp claim has passed.
// Opaque (non-JWT) tokens report false; the absolute age check governs them.
// The signature is not verified; this is a local freshness probe, not an
// authenticity check.
func jwtExpired(token string, now time.Time) bool {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return false
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return false
	}
	return exp.Before(now)
}
