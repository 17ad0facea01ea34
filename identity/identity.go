// Package identity defines the call contract with the remote identity
// service. The service owns all user and session records; this package only
// describes the boundary.
package identity

import (
	"context"

	"github.com/vidsum/backend/domain"
)

// SignUpParams carries the optional extras accepted by SignUp.
type SignUpParams struct {
	RedirectURL string
	Metadata    map[string]string
}

// SignUpResult is what the service hands back after a sign-up. Session is
// non-nil only when the backend is configured to auto-confirm addresses.
type SignUpResult struct {
	User    *domain.User
	Session *domain.Session
}

// Unsubscribe detaches a previously registered event listener.
type Unsubscribe func()

// Service is the remote identity backend. All calls are blocking; the
// context bounds them. Implementations must deliver events to subscribers in
// the order the state changes occur.
type Service interface {
	SignUp(ctx context.Context, email, password string, params SignUpParams) (*SignUpResult, error)
	SignInWithPassword(ctx context.Context, email, password string) (*domain.Session, error)
	// SignInWithOAuth returns the provider URL the browser must be redirected
	// to; the session arrives later through the event stream.
	SignInWithOAuth(ctx context.Context, provider, redirectURL string) (string, error)
	ResetPasswordForEmail(ctx context.Context, email, redirectURL string) error
	// Resend re-dispatches a signup confirmation email.
	Resend(ctx context.Context, email, redirectURL string) error
	// SetSession exchanges a verification link's token pair for an active
	// session.
	SetSession(ctx context.Context, accessToken, refreshToken string) (*domain.Session, error)
	// GetSession returns the currently persisted session, or nil when none.
	GetSession(ctx context.Context) (*domain.Session, error)
	SignOut(ctx context.Context) error
	Subscribe(fn func(domain.AuthEvent)) Unsubscribe
}
