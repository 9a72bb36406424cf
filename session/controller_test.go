package session

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ogabek/istudy-gate/authstate"
	"github.com/ogabek/istudy-gate/credstore"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type rig struct {
	controller *Controller
	store      credstore.Store
	machine    *authstate.Machine
	server     *httptest.Server
}

func newRig(t *testing.T, handler http.Handler, opts ...ControllerOption) *rig {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	store := credstore.NewMemory()
	machine := authstate.NewMachine(testLogger())
	client := NewClient(server.URL, server.Client(), server.Client())
	controller := NewController(client, store, machine, testLogger(), opts...)
	return &rig{controller: controller, store: store, machine: machine, server: server}
}

// loginOK answers /auth/login with the given body and records logout calls.
func loginOK(body any) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/auth/login", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(body)
	})
	mux.HandleFunc("/auth/logout", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	return mux
}

func loginStatus(status int, body string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		io.WriteString(w, body)
	})
}

func TestLoginSuccess(t *testing.T) {
	r := newRig(t, loginOK(map[string]any{
		"token": "tok123", "userId": 7, "username": "admin", "role": "ADMIN",
	}))

	err := r.controller.Login(context.Background(), Credentials{Username: "admin", Password: "secret"})
	require.NoError(t, err)

	snap := r.machine.Snapshot()
	assert.True(t, snap.IsAuthenticated)
	assert.Equal(t, "tok123", snap.Token)
	require.NotNil(t, snap.User)
	assert.EqualValues(t, 7, snap.User.ID)
	assert.Equal(t, "admin", snap.User.Username)
	assert.Equal(t, "ADMIN", snap.User.Role)
	assert.Nil(t, snap.User.BranchID)
	assert.Nil(t, snap.User.BranchName)

	stored, ok, err := r.store.Read()
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "tok123", stored.Token)
	assert.NotZero(t, stored.LoginTimestamp)
	var user authstate.User
	require.NoError(t, json.Unmarshal(stored.UserJSON, &user))
	assert.Equal(t, "admin", user.Username)
}

func TestLoginNestedTokenShapes(t *testing.T) {
	r := newRig(t, loginOK(map[string]any{
		"data": map[string]any{
			"accessToken": "nested-tok", "id": 3, "username": "fil", "role": "SUPER_ADMIN",
			"refreshToken": "ref-9",
		},
	}))

	require.NoError(t, r.controller.Login(context.Background(), Credentials{Username: "fil", Password: "pw"}))

	snap := r.machine.Snapshot()
	assert.Equal(t, "nested-tok", snap.Token)
	assert.EqualValues(t, 3, snap.User.ID)

	stored, _, _ := r.store.Read()
	assert.Equal(t, "ref-9", stored.RefreshToken)
}

func TestLoginWrongPassword(t *testing.T) {
	r := newRig(t, loginStatus(http.StatusUnauthorized, `{"message":"bad"}`))

	err := r.controller.Login(context.Background(), Credentials{Username: "admin", Password: "nope"})
	var lfe *LoginFailedError
	require.ErrorAs(t, err, &lfe)
	assert.Equal(t, msgBadCredential, lfe.Message)

	snap := r.machine.Snapshot()
	assert.False(t, snap.IsAuthenticated)
	assert.Equal(t, msgBadCredential, snap.Error)

	_, ok, _ := r.store.Read()
	assert.False(t, ok, "store must stay untouched on failure")
}

func TestLoginFailureMessages(t *testing.T) {
	tests := []struct {
		name    string
		handler http.Handler
		want    string
	}{
		{"BadRequestWithMessage", loginStatus(400, `{"message":"username talab qilinadi"}`), "username talab qilinadi"},
		{"BadRequestNoMessage", loginStatus(400, `{}`), msgInvalidData},
		{"ServerMessageVerbatim", loginStatus(500, `{"message":"ichki xatolik"}`), "ichki xatolik"},
		{"OtherStatusNoMessage", loginStatus(502, ``), msgLoginError},
		{"TokenMissing", loginOK(map[string]any{"username": "admin", "role": "ADMIN"}), msgNoToken},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := newRig(t, tt.handler)
			err := r.controller.Login(context.Background(), Credentials{Username: "a", Password: "b"})
			var lfe *LoginFailedError
			require.ErrorAs(t, err, &lfe)
			assert.Equal(t, tt.want, lfe.Message)
			_, ok, _ := r.store.Read()
			assert.False(t, ok)
		})
	}
}

func TestLoginConnectionRefused(t *testing.T) {
	r := newRig(t, loginStatus(200, `{}`))
	r.server.Close() // connection refused from here on

	err := r.controller.Login(context.Background(), Credentials{Username: "a", Password: "b"})
	var lfe *LoginFailedError
	require.ErrorAs(t, err, &lfe)
	assert.Equal(t, msgNoConnection, lfe.Message)
}

// failingStore rejects writes; everything else delegates to Memory.
type failingStore struct {
	*credstore.Memory
	writeErr error
}

func (f *failingStore) Write(s credstore.StoredSession) error {
	if f.writeErr != nil {
		return f.writeErr
	}
	return f.Memory.Write(s)
}

// droppingStore accepts writes but never retains them, like a full or
// read-only device.
type droppingStore struct {
	*credstore.Memory
}

func (d *droppingStore) Write(credstore.StoredSession) error { return nil }

func TestLoginStorageFailure(t *testing.T) {
	handler := loginOK(map[string]any{"token": "tok", "userId": 1, "username": "a", "role": "ADMIN"})

	t.Run("WriteRejected", func(t *testing.T) {
		server := httptest.NewServer(handler)
		t.Cleanup(server.Close)
		machine := authstate.NewMachine(testLogger())
		store := &failingStore{Memory: credstore.NewMemory(), writeErr: errors.New("disk full")}
		c := NewController(NewClient(server.URL, server.Client(), nil), store, machine, testLogger())

		err := c.Login(context.Background(), Credentials{Username: "a", Password: "b"})
		var lfe *LoginFailedError
		require.ErrorAs(t, err, &lfe)
		assert.Equal(t, msgStorageFailed, lfe.Message)
		assert.False(t, machine.Snapshot().IsAuthenticated)
	})

	t.Run("ReadBackMismatch", func(t *testing.T) {
		server := httptest.NewServer(handler)
		t.Cleanup(server.Close)
		machine := authstate.NewMachine(testLogger())
		store := &droppingStore{Memory: credstore.NewMemory()}
		c := NewController(NewClient(server.URL, server.Client(), nil), store, machine, testLogger())

		err := c.Login(context.Background(), Credentials{Username: "a", Password: "b"})
		var lfe *LoginFailedError
		require.ErrorAs(t, err, &lfe)
		assert.Equal(t, msgStorageFailed, lfe.Message)
	})
}

func seedStore(t *testing.T, store credstore.Store, token string, loginAt time.Time) {
	t.Helper()
	userJSON, err := json.Marshal(&authstate.User{ID: 7, Username: "admin", Role: "ADMIN"})
	require.NoError(t, err)
	require.NoError(t, store.Write(credstore.StoredSession{
		Token:          token,
		UserJSON:       userJSON,
		LoginTimestamp: loginAt.UnixMilli(),
	}))
}

func TestInitializeRecoversFreshSession(t *testing.T) {
	now := time.Now()
	r := newRig(t, loginStatus(200, `{}`), WithClock(func() time.Time { return now }))
	seedStore(t, r.store, "tok", now.Add(-(23*time.Hour + 59*time.Minute)))

	r.controller.Initialize(context.Background())

	snap := r.machine.Snapshot()
	assert.True(t, snap.Initialized)
	assert.True(t, snap.IsAuthenticated)
	assert.Equal(t, "tok", snap.Token)
	assert.Equal(t, "admin", snap.User.Username)

	_, ok, _ := r.store.Read()
	assert.True(t, ok, "store must remain intact")
}

func TestInitializeExpiryBoundary(t *testing.T) {
	now := time.Now()
	r := newRig(t, loginStatus(200, `{}`), WithClock(func() time.Time { return now }))
	seedStore(t, r.store, "tok", now.Add(-(24*time.Hour + time.Millisecond)))

	r.controller.Initialize(context.Background())

	snap := r.machine.Snapshot()
	assert.True(t, snap.Initialized)
	assert.False(t, snap.IsAuthenticated)

	_, ok, _ := r.store.Read()
	assert.False(t, ok, "expired session must be cleared from the store")
}

func TestInitializeEmptyStore(t *testing.T) {
	r := newRig(t, loginStatus(200, `{}`))
	r.controller.Initialize(context.Background())

	snap := r.machine.Snapshot()
	assert.True(t, snap.Initialized)
	assert.False(t, snap.Loading)
	assert.False(t, snap.IsAuthenticated)
}

func TestInitializePlaceholderToken(t *testing.T) {
	for _, placeholder := range []string{"undefined", "null", ""} {
		r := newRig(t, loginStatus(200, `{}`))
		seedStore(t, r.store, placeholder, time.Now())

		r.controller.Initialize(context.Background())

		snap := r.machine.Snapshot()
		assert.True(t, snap.Initialized)
		assert.False(t, snap.IsAuthenticated, "placeholder %q must not authenticate", placeholder)
	}
}

func TestInitializeMalformedStoredUser(t *testing.T) {
	r := newRig(t, loginStatus(200, `{}`))
	require.NoError(t, r.store.Write(credstore.StoredSession{
		Token:          "tok",
		UserJSON:       []byte("not-json{"),
		RefreshToken:   "ref",
		LoginTimestamp: time.Now().UnixMilli(),
	}))

	r.controller.Initialize(context.Background())

	snap := r.machine.Snapshot()
	assert.True(t, snap.Initialized)
	assert.False(t, snap.IsAuthenticated)
	assert.Empty(t, snap.Error, "corrupt storage is not a user-visible error")

	// All four keys gone, not just the user.
	_, ok, _ := r.store.Read()
	assert.False(t, ok)
}

func TestInitializeExpiredJWT(t *testing.T) {
	expired, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": "7",
		"exp": time.Now().Add(-time.Hour).Unix(),
	}).SignedString([]byte("test-key"))
	require.NoError(t, err)

	r := newRig(t, loginStatus(200, `{}`))
	seedStore(t, r.store, expired, time.Now().Add(-time.Hour))

	r.controller.Initialize(context.Background())

	assert.False(t, r.machine.Snapshot().IsAuthenticated)
	_, ok, _ := r.store.Read()
	assert.False(t, ok)
}

func TestLogout(t *testing.T) {
	var logoutCalls []string
	mux := http.NewServeMux()
	mux.HandleFunc("/auth/login", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"token": "tok", "userId": 7, "username": "admin", "role": "ADMIN",
		})
	})
	mux.HandleFunc("/auth/logout", func(w http.ResponseWriter, r *http.Request) {
		logoutCalls = append(logoutCalls, r.URL.Query().Get("userId"))
	})

	r := newRig(t, mux)
	require.NoError(t, r.controller.Login(context.Background(), Credentials{Username: "admin", Password: "pw"}))

	r.controller.Logout(context.Background())

	assert.Equal(t, []string{"7"}, logoutCalls)
	snap := r.machine.Snapshot()
	assert.False(t, snap.IsAuthenticated)
	assert.Nil(t, snap.User)
	_, ok, _ := r.store.Read()
	assert.False(t, ok)

	// Idempotent: a second logout changes nothing and calls nothing.
	r.controller.Logout(context.Background())
	assert.Equal(t, []string{"7"}, logoutCalls)
	assert.False(t, r.machine.Snapshot().IsAuthenticated)
}

func TestLogoutSucceedsWhenServerUnreachable(t *testing.T) {
	r := newRig(t, loginOK(map[string]any{
		"token": "tok", "userId": 7, "username": "admin", "role": "ADMIN",
	}))
	require.NoError(t, r.controller.Login(context.Background(), Credentials{Username: "admin", Password: "pw"}))

	r.server.Close()
	r.controller.Logout(context.Background())

	assert.False(t, r.machine.Snapshot().IsAuthenticated)
	_, ok, _ := r.store.Read()
	assert.False(t, ok)
}
