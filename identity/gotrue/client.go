// Package gotrue implements the identity.Service contract against a
// GoTrue-compatible REST API (the auth component behind Supabase-style
// hosted backends).
package gotrue

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"sync"
	"time"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/vidsum/backend/domain"
	"github.com/vidsum/backend/identity"
)

const defaultTimeout = 10 * time.Second

// Config carries the endpoint and credentials of the hosted service.
type Config struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration
}

// Client talks to the remote identity service and fans out auth state
// changes to subscribers. It keeps the most recently issued session so
// GetSession can answer without a network round-trip.
type Client struct {
	cfg    Config
	http   *fasthttp.Client
	logger *zap.Logger

	mu          sync.Mutex
	session     *domain.Session
	subscribers map[uint64]func(domain.AuthEvent)
	nextSubID   uint64
}

var _ identity.Service = (*Client)(nil)

// New creates a Client. The base URL should point at the service root, e.g.
// "https://xyz.supabase.co".
func New(cfg Config, logger *zap.Logger) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		cfg:         cfg,
		http:        &fasthttp.Client{Name: "vidsum-auth"},
		logger:      logger,
		subscribers: make(map[uint64]func(domain.AuthEvent)),
	}
}

func (c *Client) SignUp(ctx context.Context, email, password string, params identity.SignUpParams) (*identity.SignUpResult, error) {
	body := map[string]any{
		"email":    email,
		"password": password,
	}
	if len(params.Metadata) > 0 {
		body["data"] = params.Metadata
	}
	query := url.Values{}
	if params.RedirectURL != "" {
		query.Set("redirect_to", params.RedirectURL)
	}

	payload, err := c.do(ctx, fasthttp.MethodPost, "/auth/v1/signup", query, body, "")
	if err != nil {
		return nil, err
	}

	// Auto-confirm backends answer with a full session, others with a bare
	// user record.
	var sess sessionPayload
	if err := json.Unmarshal(payload, &sess); err != nil {
		return nil, fmt.Errorf("decode signup response: %w", err)
	}
	if sess.AccessToken != "" {
		session := sess.toDomain()
		c.storeSession(session)
		return &identity.SignUpResult{User: session.User, Session: session}, nil
	}

	var user userPayload
	if err := json.Unmarshal(payload, &user); err != nil {
		return nil, fmt.Errorf("decode signup response: %w", err)
	}
	return &identity.SignUpResult{User: user.toDomain()}, nil
}

func (c *Client) SignInWithPassword(ctx context.Context, email, password string) (*domain.Session, error) {
	body := map[string]any{"email": email, "password": password}
	query := url.Values{"grant_type": {"password"}}

	payload, err := c.do(ctx, fasthttp.MethodPost, "/auth/v1/token", query, body, "")
	if err != nil {
		return nil, err
	}
	session, err := decodeSession(payload)
	if err != nil {
		return nil, err
	}
	c.storeSession(session)
	c.emit(domain.AuthEvent{Type: domain.EventSignedIn, Session: session})
	return session, nil
}

func (c *Client) SignInWithOAuth(ctx context.Context, provider, redirectURL string) (string, error) {
	if provider == "" {
		return "", &identity.Error{Status: http.StatusBadRequest, Message: "missing oauth provider"}
	}
	query := url.Values{"provider": {provider}}
	if redirectURL != "" {
		query.Set("redirect_to", redirectURL)
	}
	// The authorize endpoint is consumed by the browser; the session comes
	// back through the event stream once the redirect round-trip completes.
	return fmt.Sprintf("%s/auth/v1/authorize?%s", c.cfg.BaseURL, query.Encode()), nil
}

func (c *Client) ResetPasswordForEmail(ctx context.Context, email, redirectURL string) error {
	body := map[string]any{"email": email}
	query := url.Values{}
	if redirectURL != "" {
		query.Set("redirect_to", redirectURL)
	}
	_, err := c.do(ctx, fasthttp.MethodPost, "/auth/v1/recover", query, body, "")
	return err
}

func (c *Client) Resend(ctx context.Context, email, redirectURL string) error {
	body := map[string]any{"type": "signup", "email": email}
	query := url.Values{}
	if redirectURL != "" {
		query.Set("redirect_to", redirectURL)
	}
	_, err := c.do(ctx, fasthttp.MethodPost, "/auth/v1/resend", query, body, "")
	return err
}

func (c *Client) SetSession(ctx context.Context, accessToken, refreshToken string) (*domain.Session, error) {
	if accessToken == "" || refreshToken == "" {
		return nil, &identity.Error{Status: http.StatusBadRequest, Message: "missing token pair"}
	}
	// Redeem the refresh token; the access token from the link is only a
	// hint and may already be close to expiry.
	body := map[string]any{"refresh_token": refreshToken}
	query := url.Values{"grant_type": {"refresh_token"}}

	payload, err := c.do(ctx, fasthttp.MethodPost, "/auth/v1/token", query, body, "")
	if err != nil {
		return nil, err
	}
	session, err := decodeSession(payload)
	if err != nil {
		return nil, err
	}
	c.storeSession(session)
	c.emit(domain.AuthEvent{Type: domain.EventSignedIn, Session: session})
	return session, nil
}

func (c *Client) GetSession(ctx context.Context) (*domain.Session, error) {
	c.mu.Lock()
	session := c.session
	c.mu.Unlock()
	if session == nil || session.IsExpired(time.Now()) {
		return nil, nil
	}
	return session, nil
}

func (c *Client) SignOut(ctx context.Context) error {
	c.mu.Lock()
	session := c.session
	c.mu.Unlock()

	if session != nil {
		if _, err := c.do(ctx, fasthttp.MethodPost, "/auth/v1/logout", nil, nil, session.AccessToken); err != nil {
			return err
		}
	}
	c.storeSession(nil)
	c.emit(domain.AuthEvent{Type: domain.EventSignedOut})
	return nil
}

// Refresh redeems the current refresh token for a new session and announces
// it as TOKEN_REFRESHED.
func (c *Client) Refresh(ctx context.Context) (*domain.Session, error) {
	c.mu.Lock()
	session := c.session
	c.mu.Unlock()
	if session == nil {
		return nil, domain.ErrSessionNotFound
	}

	body := map[string]any{"refresh_token": session.RefreshToken}
	query := url.Values{"grant_type": {"refresh_token"}}

	payload, err := c.do(ctx, fasthttp.MethodPost, "/auth/v1/token", query, body, "")
	if err != nil {
		return nil, err
	}
	refreshed, err := decodeSession(payload)
	if err != nil {
		return nil, err
	}
	c.storeSession(refreshed)
	c.emit(domain.AuthEvent{Type: domain.EventTokenRefreshed, Session: refreshed})
	return refreshed, nil
}

// AutoRefresh keeps the current session alive, redeeming the refresh token
// shortly before expiry and announcing each renewal as TOKEN_REFRESHED.
// Blocks until ctx is cancelled.
func (c *Client) AutoRefresh(ctx context.Context) {
	const margin = time.Minute
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.mu.Lock()
			session := c.session
			c.mu.Unlock()
			if session == nil || time.Until(session.ExpiresAt) > margin {
				continue
			}
			if _, err := c.Refresh(ctx); err != nil {
				c.logger.Warn("session auto-refresh failed", zap.Error(err))
			}
		}
	}
}

func (c *Client) Subscribe(fn func(domain.AuthEvent)) identity.Unsubscribe {
	c.mu.Lock()
	id := c.nextSubID
	c.nextSubID++
	c.subscribers[id] = fn
	c.mu.Unlock()

	return func() {
		c.mu.Lock()
		delete(c.subscribers, id)
		c.mu.Unlock()
	}
}

// Health probes the service's health endpoint.
func (c *Client) Health(ctx context.Context) error {
	_, err := c.do(ctx, fasthttp.MethodGet, "/auth/v1/health", nil, nil, "")
	return err
}

func (c *Client) storeSession(session *domain.Session) {
	c.mu.Lock()
	c.session = session
	c.mu.Unlock()
}

// emit delivers the event to every subscriber in registration order. Delivery
// happens on the caller's goroutine so a SIGNED_IN followed by a
// TOKEN_REFRESHED is observed in exactly that order.
func (c *Client) emit(event domain.AuthEvent) {
	c.mu.Lock()
	ids := make([]uint64, 0, len(c.subscribers))
	for id := range c.subscribers {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	fns := make([]func(domain.AuthEvent), 0, len(ids))
	for _, id := range ids {
		fns = append(fns, c.subscribers[id])
	}
	c.mu.Unlock()

	for _, fn := range fns {
		fn(event)
	}
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, body any, bearer string) ([]byte, error) {
	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	uri := c.cfg.BaseURL + path
	if len(query) > 0 {
		uri += "?" + query.Encode()
	}
	req.SetRequestURI(uri)
	req.Header.SetMethod(method)
	req.Header.Set("apikey", c.cfg.APIKey)
	if bearer == "" {
		bearer = c.cfg.APIKey
	}
	req.Header.Set("Authorization", "Bearer "+bearer)

	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		req.Header.SetContentType("application/json")
		req.SetBody(payload)
	}

	deadline := time.Now().Add(c.cfg.Timeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	if err := c.http.DoDeadline(req, resp, deadline); err != nil {
		c.logger.Warn("identity request failed",
			zap.String("method", method),
			zap.String("path", path),
			zap.Error(err))
		return nil, err
	}

	status := resp.StatusCode()
	out := append([]byte(nil), resp.Body()...)
	if status >= fasthttp.StatusBadRequest {
		return nil, decodeError(status, out)
	}
	return out, nil
}

func decodeError(status int, body []byte) *identity.Error {
	var parsed struct {
		Msg              string `json:"msg"`
		Message          string `json:"message"`
		ErrorCode        string `json:"error_code"`
		ErrorField       string `json:"error"`
		ErrorDescription string `json:"error_description"`
	}
	_ = json.Unmarshal(body, &parsed)

	msg := parsed.Msg
	if msg == "" {
		msg = parsed.Message
	}
	if msg == "" {
		msg = parsed.ErrorDescription
	}
	if msg == "" {
		msg = parsed.ErrorField
	}
	if msg == "" {
		msg = http.StatusText(status)
	}
	return &identity.Error{Status: status, Code: parsed.ErrorCode, Message: msg}
}
