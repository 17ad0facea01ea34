package auth

import (
	"context"
	"sync"

	"github.com/stretchr/testify/mock"

	"github.com/vidsum/backend/domain"
	"github.com/vidsum/backend/identity"
)

// MockIdentityService implements identity.Service for controller tests.
// Subscribe is implemented for real so tests can push events through Emit.
type MockIdentityService struct {
	mock.Mock

	mu sync.Mutex
	fn func(domain.AuthEvent)
}

func (m *MockIdentityService) SignUp(ctx context.Context, email, password string, params identity.SignUpParams) (*identity.SignUpResult, error) {
	args := m.Called(ctx, email, password, params)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*identity.SignUpResult), args.Error(1)
}

func (m *MockIdentityService) SignInWithPassword(ctx context.Context, email, password string) (*domain.Session, error) {
	args := m.Called(ctx, email, password)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Session), args.Error(1)
}

func (m *MockIdentityService) SignInWithOAuth(ctx context.Context, provider, redirectURL string) (string, error) {
	args := m.Called(ctx, provider, redirectURL)
	return args.String(0), args.Error(1)
}

func (m *MockIdentityService) ResetPasswordForEmail(ctx context.Context, email, redirectURL string) error {
	args := m.Called(ctx, email, redirectURL)
	return args.Error(0)
}

func (m *MockIdentityService) Resend(ctx context.Context, email, redirectURL string) error {
	args := m.Called(ctx, email, redirectURL)
	return args.Error(0)
}

func (m *MockIdentityService) SetSession(ctx context.Context, accessToken, refreshToken string) (*domain.Session, error) {
	args := m.Called(ctx, accessToken, refreshToken)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Session), args.Error(1)
}

func (m *MockIdentityService) GetSession(ctx context.Context) (*domain.Session, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Session), args.Error(1)
}

func (m *MockIdentityService) SignOut(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func (m *MockIdentityService) Subscribe(fn func(domain.AuthEvent)) identity.Unsubscribe {
	m.mu.Lock()
	m.fn = fn
	m.mu.Unlock()
	return func() {
		m.mu.Lock()
		m.fn = nil
		m.mu.Unlock()
	}
}

// Emit delivers an event to the subscribed controller, if any.
func (m *MockIdentityService) Emit(event domain.AuthEvent) {
	m.mu.Lock()
	fn := m.fn
	m.mu.Unlock()
	if fn != nil {
		fn(event)
	}
}

// memStore is an in-memory KVStore for tests.
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
