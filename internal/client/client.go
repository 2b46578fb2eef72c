// Package client talks to a running voicelog server. It implements
// session.Provider so a session.Facade can sit on top of it.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"voicelog/internal/models"
	"voicelog/internal/session"
)

// ErrNotSignedIn is returned by calls that need an access token when none is held.
var ErrNotSignedIn = errors.New("not signed in")

const maxErrorBodyBytes = 1 << 16

// APIError is a non-2xx answer from the server.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("request failed: %d", e.StatusCode)
	}
	return e.Message
}

// IsNotFound reports whether err is a 404 from the server.
func IsNotFound(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound
}

// Client holds at most one auth session in memory. Nothing is written to disk.
type Client struct {
	baseURL    string
	httpClient *http.Client

	mu        sync.Mutex
	session   *models.AuthSession
	nextID    int
	listeners map[int]func(models.AuthEvent, *models.AuthSession)
}

// NewClient creates a client for the server at baseURL.
func NewClient(baseURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
		listeners:  make(map[int]func(models.AuthEvent, *models.AuthSession)),
	}
}

// SetAccessToken adopts a token obtained elsewhere. The user is resolved by GetSession.
func (c *Client) SetAccessToken(token string) {
	token = strings.TrimSpace(token)
	c.mu.Lock()
	defer c.mu.Unlock()
	if token == "" {
		c.session = nil
		return
	}
	c.session = &models.AuthSession{AccessToken: token, TokenType: "bearer"}
}

// Session returns the held session or nil.
func (c *Client) Session() *models.AuthSession {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.session
}

func (c *Client) accessToken() string {
	if sess := c.Session(); sess != nil {
		return sess.AccessToken
	}
	return ""
}

// GetSession resolves the held token against the server. A rejected token is
// dropped and reported as no session.
func (c *Client) GetSession(ctx context.Context) (*models.AuthSession, error) {
	token := c.accessToken()
	if token == "" {
		return nil, nil
	}
	var body struct {
		User      *models.User `json:"user"`
		ExpiresAt time.Time    `json:"expires_at"`
	}
	err := c.do(ctx, http.MethodGet, "/api/auth/session", nil, &body, true)
	if err != nil {
		var apiErr *APIError
		if errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusUnauthorized {
			c.SetAccessToken("")
			return nil, nil
		}
		return nil, err
	}
	sess := &models.AuthSession{
		AccessToken: token,
		TokenType:   "bearer",
		ExpiresAt:   body.ExpiresAt,
		User:        body.User,
	}
	c.mu.Lock()
	c.session = sess
	c.mu.Unlock()
	return sess, nil
}

// SignUp registers an account; redirectTo is the confirmation callback URL.
func (c *Client) SignUp(ctx context.Context, email, password, redirectTo string) (*models.User, error) {
	req := map[string]string{"email": email, "password": password, "redirect_to": redirectTo}
	var body struct {
		User *models.User `json:"user"`
	}
	if err := c.do(ctx, http.MethodPost, "/api/auth/signup", req, &body, false); err != nil {
		return nil, err
	}
	return body.User, nil
}

// SignInWithPassword exchanges credentials for a session and announces SIGNED_IN.
func (c *Client) SignInWithPassword(ctx context.Context, email, password string) (*models.AuthSession, error) {
	req := map[string]string{"email": email, "password": password}
	var sess models.AuthSession
	if err := c.do(ctx, http.MethodPost, "/api/auth/signin", req, &sess, false); err != nil {
		return nil, err
	}
	c.mu.Lock()
	c.session = &sess
	c.mu.Unlock()
	c.emit(models.AuthEventSignedIn, &sess)
	return &sess, nil
}

// SignOut revokes the held token and announces SIGNED_OUT. A token the server
// no longer accepts counts as signed out.
func (c *Client) SignOut(ctx context.Context) error {
	if c.accessToken() != "" {
		err := c.do(ctx, http.MethodPost, "/api/auth/signout", nil, nil, true)
		var apiErr *APIError
		if err != nil && !(errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusUnauthorized) {
			return err
		}
	}
	c.SetAccessToken("")
	c.emit(models.AuthEventSignedOut, nil)
	return nil
}

// OnAuthStateChange registers fn and immediately replays the current session
// as INITIAL_SESSION.
func (c *Client) OnAuthStateChange(fn func(models.AuthEvent, *models.AuthSession)) session.Subscription {
	c.mu.Lock()
	id := c.nextID
	c.nextID++
	c.listeners[id] = fn
	current := c.session
	c.mu.Unlock()

	fn(models.AuthEventInitialSession, current)
	return &subscription{client: c, id: id}
}

type subscription struct {
	client *Client
	id     int
}

func (s *subscription) Unsubscribe() {
	s.client.mu.Lock()
	defer s.client.mu.Unlock()
	delete(s.client.listeners, s.id)
}

func (c *Client) emit(event models.AuthEvent, sess *models.AuthSession) {
	c.mu.Lock()
	fns := make([]func(models.AuthEvent, *models.AuthSession), 0, len(c.listeners))
	for _, fn := range c.listeners {
		fns = append(fns, fn)
	}
	c.mu.Unlock()
	for _, fn := range fns {
		fn(event, sess)
	}
}

func (c *Client) do(ctx context.Context, method, path string, in, out any, authorized bool) error {
	var payload io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		payload = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, payload)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if authorized {
		token := c.accessToken()
		if token == "" {
			return ErrNotSignedIn
		}
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodyBytes))
		var errBody struct {
			Error string `json:"error"`
		}
		_ = json.Unmarshal(data, &errBody)
		return &APIError{StatusCode: resp.StatusCode, Message: errBody.Error}
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
