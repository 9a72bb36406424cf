package session

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
)

const maxResponseBody = 1 << 20

// Credentials is the login request body for POST /auth/login.
type Credentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// APIError is a non-2xx response from the auth API, carrying the server's
// message when one was provided.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("auth api: %d: %s", e.Status, e.Message)
	}
	return fmt.Sprintf("auth api: %d", e.Status)
}

// Client calls the remote auth endpoints.
//
// Login deliberately uses a plain HTTP client without the token-attaching
// transport: a 401 on a login attempt means wrong credentials and must not
// trip the interceptor's forced-logout handling. Logout and Refresh go
// through the authenticated client.
type Client struct {
	baseURL string
	plain   *http.Client
	authed  *http.Client
}

// NewClient creates a client for the auth API rooted at baseURL (including
// any path prefix, e.g. "https://host/api").
func NewClient(baseURL string, plain, authed *http.Client) *Client {
	if plain == nil {
		plain = http.DefaultClient
	}
	if authed == nil {
		authed = plain
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		plain:   plain,
		authed:  authed,
	}
}

// Login posts credentials and returns the decoded response body.
// Connection failures come back as *url.Error; HTTP failures as *APIError.
func (c *Client) Login(ctx context.Context, creds Credentials) (*loginPayload, error) {
	body, err := json.Marshal(creds)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/auth/login", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.plain.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &APIError{Status: resp.StatusCode, Message: serverMessage(raw)}
	}

	var payload loginPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, fmt.Errorf("decoding login response: %w", err)
	}
	return &payload, nil
}

// Logout notifies the server that userID's session is over. Best-effort:
// callers ignore the error beyond logging it.
func (c *Client) Logout(ctx context.Context, userID int64) error {
	u := c.baseURL + "/auth/logout?userId=" + strconv.FormatInt(userID, 10)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, nil)
	if err != nil {
		return err
	}
	resp, err := c.authed.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, io.LimitReader(resp.Body, maxResponseBody))
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &APIError{Status: resp.StatusCode}
	}
	return nil
}

// Refresh exchanges a refresh token for a new session. The endpoint is part
// of the backend's surface; no gateway flow calls it yet.
func (c *Client) Refresh(ctx context.Context, refreshToken string) (*loginPayload, error) {
	body, err := json.Marshal(map[string]string{"refreshToken": refreshToken})
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/auth/refresh", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.authed.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &APIError{Status: resp.StatusCode, Message: serverMessage(raw)}
	}
	var payload loginPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, fmt.Errorf("decoding refresh response: %w", err)
	}
	return &payload, nil
}

// serverMessage pulls the "message" field out of an error body, if any.
func serverMessage(raw []byte) string {
	var body struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(raw, &body); err != nil {
		return ""
	}
	return body.Message
}

// isConnectionError reports whether err is a transport-level failure rather
// than an HTTP response.
func isConnectionError(err error) bool {
	var urlErr *url.Error
	return errors.As(err, &urlErr)
}
