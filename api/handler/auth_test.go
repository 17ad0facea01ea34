package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/valyala/fasthttp"

	"github.com/vidsum/backend/domain"
	"github.com/vidsum/backend/identity"
	authUC "github.com/vidsum/backend/usecase/auth"
	"github.com/vidsum/backend/usecase/ratelimit"
)

type mockIdentity struct {
	mock.Mock
}

func (m *mockIdentity) SignUp(ctx context.Context, email, password string, params identity.SignUpParams) (*identity.SignUpResult, error) {
	args := m.Called(ctx, email, password, params)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*identity.SignUpResult), args.Error(1)
}

func (m *mockIdentity) SignInWithPassword(ctx context.Context, email, password string) (*domain.Session, error) {
	args := m.Called(ctx, email, password)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Session), args.Error(1)
}

func (m *mockIdentity) SignInWithOAuth(ctx context.Context, provider, redirectURL string) (string, error) {
	args := m.Called(ctx, provider, redirectURL)
	return args.String(0), args.Error(1)
}

func (m *mockIdentity) ResetPasswordForEmail(ctx context.Context, email, redirectURL string) error {
	return m.Called(ctx, email, redirectURL).Error(0)
}

func (m *mockIdentity) Resend(ctx context.Context, email, redirectURL string) error {
	return m.Called(ctx, email, redirectURL).Error(0)
}

func (m *mockIdentity) SetSession(ctx context.Context, accessToken, refreshToken string) (*domain.Session, error) {
	args := m.Called(ctx, accessToken, refreshToken)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Session), args.Error(1)
}

func (m *mockIdentity) GetSession(ctx context.Context) (*domain.Session, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Session), args.Error(1)
}

func (m *mockIdentity) SignOut(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

func (m *mockIdentity) Subscribe(fn func(domain.AuthEvent)) identity.Unsubscribe {
	return func() {}
}

type memStore struct {
	mu   sync.Mutex
	data map[string]string
}

func newMemStore() *memStore {
	return &memStore{data: make(map[string]string)}
}

func (s *memStore) Get(ctx context.Context, key string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.data[key]
	return v, ok, nil
}

func (s *memStore) Set(ctx context.Context, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[key] = value
	return nil
}

func (s *memStore) Delete(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data, key)
	return nil
}

func newAuthHandler(svc identity.Service) *AuthHandler {
	store := newMemStore()
	controller := authUC.New(svc, store, authUC.RedirectURLs{
		Verification:  "https://app.test/email-verification",
		PasswordReset: "https://app.test/reset-password",
	}, nil)
	limiter := ratelimit.New(store, 60*time.Second, nil)
	return NewAuthHandler(controller, limiter, nil, nil)
}

func postJSON(h fasthttp.RequestHandler, body string) *fasthttp.RequestCtx {
	ctx := &fasthttp.RequestCtx{}
	ctx.Request.Header.SetMethod(fasthttp.MethodPost)
	ctx.Request.SetBodyString(body)
	h(ctx)
	return ctx
}

func TestResetPasswordCooldownGate(t *testing.T) {
	svc := new(mockIdentity)
	h := newAuthHandler(svc)

	svc.On("ResetPasswordForEmail", mock.Anything, "real@x.com", mock.Anything).Return(nil)

	// First request dispatches and starts the cooldown.
	first := postJSON(h.ResetPassword, `{"email":"real@x.com"}`)
	require.Equal(t, http.StatusOK, first.Response.StatusCode())
	svc.AssertNumberOfCalls(t, "ResetPasswordForEmail", 1)

	// Requests inside the window are rejected before reaching the service.
	for i := 0; i < 2; i++ {
		again := postJSON(h.ResetPassword, `{"email":"real@x.com"}`)
		require.Equal(t, http.StatusTooManyRequests, again.Response.StatusCode())

		var envelope struct {
			Code  string `json:"code"`
			Error string `json:"error"`
			Meta  struct {
				RetryAfterSeconds int `json:"retry_after_seconds"`
			} `json:"meta"`
		}
		require.NoError(t, json.Unmarshal(again.Response.Body(), &envelope))
		require.Equal(t, string(domain.ErrCodeRateLimited), envelope.Code)
		require.Equal(t, authUC.ResetRateLimitMessage, envelope.Error)
		require.Greater(t, envelope.Meta.RetryAfterSeconds, 0)
	}
	svc.AssertNumberOfCalls(t, "ResetPasswordForEmail", 1)
}

func TestResetPasswordNoCooldownAfterInvalidEmail(t *testing.T) {
	svc := new(mockIdentity)
	h := newAuthHandler(svc)

	bad := postJSON(h.ResetPassword, `{"email":"not-an-email"}`)
	require.Equal(t, http.StatusBadRequest, bad.Response.StatusCode())

	// A rejected address must not burn the window for a valid one.
	svc.On("ResetPasswordForEmail", mock.Anything, "real@x.com", mock.Anything).Return(nil)
	good := postJSON(h.ResetPassword, `{"email":"real@x.com"}`)
	require.Equal(t, http.StatusOK, good.Response.StatusCode())
}
