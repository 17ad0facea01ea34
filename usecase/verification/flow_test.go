package verification

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

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

func newTestFlow(svc identity.Service) (*Flow, *memStore) {
	store := newMemStore()
	controller := authUC.New(svc, store, authUC.RedirectURLs{
		Verification: "https://app.test/email-verification",
	}, nil)
	limiter := ratelimit.New(store, 60*time.Second, nil)
	return NewFlow(controller, limiter, nil), store
}

func confirmedSession(email string) *domain.Session {
	now := time.Now()
	return &domain.Session{
		AccessToken:  "at",
		RefreshToken: "rt",
		ExpiresAt:    now.Add(time.Hour),
		User:         &domain.User{ID: "u1", Email: email, EmailConfirmedAt: &now},
	}
}

func TestFlowVerifiedRoundTrip(t *testing.T) {
	ctx := context.Background()
	svc := new(mockIdentity)
	flow, store := newTestFlow(svc)

	require.NoError(t, store.Set(ctx, authUC.PendingEmailKey, "a@b.com"))
	svc.On("SetSession", mock.Anything, "at", "rt").Return(confirmedSession("a@b.com"), nil)

	state := flow.HandleCallback(ctx, CallbackParams{
		AccessToken:  "at",
		RefreshToken: "rt",
		Type:         CallbackTypeSignUp,
		Email:        "a@b.com",
	})
	require.Equal(t, StateVerified, state)
	require.NoError(t, flow.Err())

	// Pending-email bookkeeping is purged on success.
	_, ok, _ := store.Get(ctx, authUC.PendingEmailKey)
	require.False(t, ok)

	// A repeat visit observes the settled outcome, never awaiting-link again.
	state = flow.HandleCallback(ctx, CallbackParams{})
	require.Equal(t, StateVerified, state)
}

func TestFlowStaysAwaitingWithoutTokens(t *testing.T) {
	ctx := context.Background()
	svc := new(mockIdentity)
	flow, store := newTestFlow(svc)

	require.NoError(t, store.Set(ctx, authUC.PendingEmailKey, "pending@x.com"))

	cases := []CallbackParams{
		{},
		{AccessToken: "at", Type: CallbackTypeSignUp},
		{RefreshToken: "rt", Type: CallbackTypeSignUp},
		{AccessToken: "at", RefreshToken: "rt", Type: "recovery"},
	}
	for _, params := range cases {
		require.Equal(t, StateAwaitingLink, flow.HandleCallback(ctx, params))
	}

	// Email pre-fills from the pending marker when the link carried none.
	require.Equal(t, "pending@x.com", flow.Email())
	svc.AssertNotCalled(t, "SetSession", mock.Anything, mock.Anything, mock.Anything)
}

func TestFlowFailureAndResend(t *testing.T) {
	ctx := context.Background()
	svc := new(mockIdentity)
	flow, _ := newTestFlow(svc)

	svc.On("SetSession", mock.Anything, "bad", "bad").
		Return(nil, &identity.Error{Status: 401, Message: "token is expired"})

	state := flow.HandleCallback(ctx, CallbackParams{
		AccessToken:  "bad",
		RefreshToken: "bad",
		Type:         CallbackTypeSignUp,
		Email:        "a@b.com",
	})
	require.Equal(t, StateFailed, state)
	require.Error(t, flow.Err())

	// First resend goes through and starts the cooldown.
	svc.On("Resend", mock.Anything, "a@b.com", mock.Anything).Return(nil).Once()
	require.NoError(t, flow.Resend(ctx))

	// Second resend is rejected while the cooldown runs.
	err := flow.Resend(ctx)
	require.Error(t, err)
	require.True(t, domain.IsDomainError(err, domain.ErrCodeRateLimited))
}

func TestFlowFailedDoesNotReopenAwaiting(t *testing.T) {
	ctx := context.Background()
	svc := new(mockIdentity)
	flow, _ := newTestFlow(svc)

	svc.On("SetSession", mock.Anything, "bad", "bad").
		Return(nil, &identity.Error{Status: 401, Message: "token is expired"})

	require.Equal(t, StateFailed, flow.HandleCallback(ctx, CallbackParams{
		AccessToken:  "bad",
		RefreshToken: "bad",
		Type:         CallbackTypeSignUp,
		Email:        "a@b.com",
	}))

	// Token-less revisits stay failed; resend and sign-in are the only ways
	// out of the failure screen.
	require.Equal(t, StateFailed, flow.HandleCallback(ctx, CallbackParams{}))
	require.Equal(t, StateFailed, flow.HandleCallback(ctx, CallbackParams{Type: CallbackTypeSignUp}))
	require.Error(t, flow.Err())

	// A fresh, complete token pair still gets a retry.
	svc.On("SetSession", mock.Anything, "good", "good").
		Return(confirmedSession("a@b.com"), nil)
	require.Equal(t, StateVerified, flow.HandleCallback(ctx, CallbackParams{
		AccessToken:  "good",
		RefreshToken: "good",
		Type:         CallbackTypeSignUp,
	}))
}

func TestFlowResendWithoutEmail(t *testing.T) {
	svc := new(mockIdentity)
	flow, _ := newTestFlow(svc)

	err := flow.Resend(context.Background())
	require.Error(t, err)
	require.True(t, domain.IsDomainError(err, domain.ErrCodeInvalid))
}

func TestScrubURL(t *testing.T) {
	raw := "https://app.test/email-verification?access_token=secret&refresh_token=also-secret&type=signup&email=a%40b.com&theme=dark"
	scrubbed := ScrubURL(raw)

	require.NotContains(t, scrubbed, "secret")
	require.NotContains(t, scrubbed, "access_token")
	require.NotContains(t, scrubbed, "refresh_token")
	require.Contains(t, scrubbed, "theme=dark")
}

func TestAfterVerifiedHonorsCancellation(t *testing.T) {
	svc := new(mockIdentity)
	flow, _ := newTestFlow(svc)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	called := false
	flow.AfterVerified(ctx, func() { called = true })
	require.False(t, called)
}
