// Package auth owns the cached user/session state and the security-hardened
// semantics of every operation against the identity service: forced
// sign-out after sign-up, anti-enumeration password reset, and idempotent
// local sign-out.
package auth

import (
	"context"
	"errors"
	"sync"

	"go.uber.org/zap"

	"github.com/vidsum/backend/domain"
	"github.com/vidsum/backend/identity"
	"github.com/vidsum/backend/pkg/validate"
	"github.com/vidsum/backend/repository"
)

// State of the controller's session cache.
type State string

const (
	StateUninitialized State = "uninitialized"
	StateLoading       State = "loading"
	StateAuthenticated State = "authenticated"
	StateAnonymous     State = "anonymous"
)

// PendingEmailKey marks the address awaiting verification so the
// verification screen can pre-fill when the link is opened without
// parameters.
const PendingEmailKey = "pending-email"

// User-facing messages for the password-reset path. The generic message is
// returned for registered and unknown addresses alike; anything else would
// let a caller probe which emails exist.
const (
	ResetGenericMessage    = "If that email address is registered with us, we've sent you a reset link. Please check your email (including spam folder)."
	ResetRateLimitMessage  = "Too many reset attempts. Please wait before trying again."
	ResetUnavailableNotice = "Unable to send reset email. Please try again later."
)

// RedirectURLs are the browser destinations embedded in outbound emails and
// OAuth round-trips.
type RedirectURLs struct {
	Verification  string
	PasswordReset string
	OAuth         string
}

// SignUpResult reports the outcome of a sign-up. Verification is always
// required; the flag exists so callers can route to the check-your-email
// screen.
type SignUpResult struct {
	RequiresVerification bool
}

// ResetPasswordResult carries the anti-enumeration message. RateLimited is
// the one condition surfaced distinctly, because admitting to throttling
// does not reveal whether the address exists.
type ResetPasswordResult struct {
	Message     string
	RateLimited bool
}

// Controller caches the current user/session pair and applies identity
// service events in arrival order. Construct it explicitly and wire it
// through Init/Close; there is no package-level instance.
type Controller struct {
	svc       identity.Service
	store     repository.KVStore
	redirects RedirectURLs
	logger    *zap.Logger

	mu           sync.Mutex
	user         *domain.User
	session      *domain.Session
	state        State
	eventApplied bool
	unsubscribe  identity.Unsubscribe
}

// New builds a Controller. The KV store holds the pending-email marker.
func New(svc identity.Service, store repository.KVStore, redirects RedirectURLs, logger *zap.Logger) *Controller {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Controller{
		svc:       svc,
		store:     store,
		redirects: redirects,
		logger:    logger,
		state:     StateUninitialized,
	}
}

// Init subscribes to the identity event stream and probes for an initial
// session. The probe runs concurrently; whichever of probe and first event
// settles later must win, so a late probe never clobbers event state.
func (c *Controller) Init(ctx context.Context) {
	c.mu.Lock()
	if c.state != StateUninitialized {
		c.mu.Unlock()
		return
	}
	c.state = StateLoading
	c.unsubscribe = c.svc.Subscribe(c.handleEvent)
	c.mu.Unlock()

	go c.probeInitialSession(ctx)
}

func (c *Controller) probeInitialSession(ctx context.Context) {
	session, err := c.svc.GetSession(ctx)

	c.mu.Lock()
	defer c.mu.Unlock()
	if err != nil {
		c.logger.Error("initial session probe failed", zap.Error(err))
		if !c.eventApplied {
			c.settleLocked(nil)
		}
		return
	}
	if c.eventApplied {
		// An event already delivered fresher state.
		return
	}
	c.settleLocked(session)
}

// Close detaches from the event stream.
func (c *Controller) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.unsubscribe != nil {
		c.unsubscribe()
		c.unsubscribe = nil
	}
	return nil
}

func (c *Controller) handleEvent(event domain.AuthEvent) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.eventApplied = true

	switch event.Type {
	case domain.EventSignedIn, domain.EventTokenRefreshed, domain.EventUserUpdated:
		if event.Session != nil {
			c.settleLocked(event.Session)
		}
	case domain.EventSignedOut:
		c.settleLocked(nil)
	}
}

// settleLocked installs the given session (or clears state for nil) and
// leaves loading. A session is only installed together with its user.
func (c *Controller) settleLocked(session *domain.Session) {
	if session == nil {
		c.user = nil
		c.session = nil
		c.state = StateAnonymous
		return
	}
	user := session.User
	if user == nil {
		user = c.user
	}
	if user == nil {
		c.logger.Warn("discarding session without user")
		c.state = StateAnonymous
		return
	}
	c.user = user
	c.session = session
	c.state = StateAuthenticated
}

// SignUp registers a new account. Verification is always required: if the
// backend auto-confirms and hands back a live session, that session is
// terminated before returning, so a sign-up can never leave the caller
// implicitly signed in. Credential shape is the remote service's call;
// failures surface verbatim.
func (c *Controller) SignUp(ctx context.Context, email, password, displayName string) (*SignUpResult, error) {
	email = validate.NormalizeEmail(email)

	params := identity.SignUpParams{RedirectURL: c.redirects.Verification}
	if name := validate.SanitizeString(displayName); name != "" {
		params.Metadata = map[string]string{"full_name": name}
	}

	result, err := c.svc.SignUp(ctx, email, password, params)
	if err != nil {
		return nil, err
	}
	if result == nil || result.User == nil {
		return &SignUpResult{}, nil
	}

	if result.Session != nil {
		c.logger.Info("terminating auto-confirmed session to force verification",
			zap.String("email", email))
		if err := c.svc.SignOut(ctx); err != nil {
			c.logger.Error("forced sign-out after sign-up failed", zap.Error(err))
		}
		c.mu.Lock()
		c.settleLocked(nil)
		c.mu.Unlock()
	}

	if err := c.store.Set(ctx, PendingEmailKey, email); err != nil {
		c.logger.Warn("storing pending email failed", zap.Error(err))
	}
	return &SignUpResult{RequiresVerification: true}, nil
}

// SignIn authenticates with email and password. On success the cached state
// is updated synchronously so callers observe it without waiting for the
// event stream; the next SIGNED_IN event for the same transition simply
// confirms it.
func (c *Controller) SignIn(ctx context.Context, email, password string) error {
	session, err := c.svc.SignInWithPassword(ctx, validate.NormalizeEmail(email), password)
	if err != nil {
		return err
	}
	c.mu.Lock()
	c.settleLocked(session)
	c.mu.Unlock()
	return nil
}

// SignInWithOAuth starts a redirect-based flow and returns the provider URL.
// The session arrives out-of-band through the event stream once the browser
// round-trip completes.
func (c *Controller) SignInWithOAuth(ctx context.Context, provider string) (string, error) {
	return c.svc.SignInWithOAuth(ctx, provider, c.redirects.OAuth)
}

// ResetPassword dispatches a password-reset email. The response never
// reveals whether the address is registered: success, unknown-address and
// generic remote failures all collapse to the same message. Only a
// rate-limit condition is surfaced distinctly, and transport-level failures
// become a generic try-again error.
func (c *Controller) ResetPassword(ctx context.Context, email string) (*ResetPasswordResult, error) {
	email = validate.NormalizeEmail(email)
	if !validate.ValidEmail(email) {
		return nil, domain.ErrInvalidEmail
	}

	err := c.svc.ResetPasswordForEmail(ctx, email, c.redirects.PasswordReset)
	if err != nil {
		if identity.IsRateLimited(err) {
			return &ResetPasswordResult{RateLimited: true},
				domain.WrapError(domain.ErrCodeRateLimited, ResetRateLimitMessage, err)
		}
		var remoteErr *identity.Error
		if errors.As(err, &remoteErr) {
			// The service answered; suppress the detail so the response is
			// indistinguishable from the happy path.
			c.logger.Warn("password reset rejected by identity service",
				zap.Int("status", remoteErr.Status))
			return &ResetPasswordResult{Message: ResetGenericMessage}, nil
		}
		c.logger.Error("password reset dispatch failed", zap.Error(err))
		return nil, domain.WrapError(domain.ErrCodeInternal, ResetUnavailableNotice, err)
	}
	return &ResetPasswordResult{Message: ResetGenericMessage}, nil
}

// ResendVerification re-dispatches the sign-up confirmation email. Cooldown
// gating belongs to the caller; this only performs the send and refreshes
// the pending-email marker.
func (c *Controller) ResendVerification(ctx context.Context, email string) error {
	email = validate.NormalizeEmail(email)
	if !validate.ValidEmail(email) {
		return domain.ErrInvalidEmail
	}
	if err := c.svc.Resend(ctx, email, c.redirects.Verification); err != nil {
		return err
	}
	if err := c.store.Set(ctx, PendingEmailKey, email); err != nil {
		c.logger.Warn("storing pending email failed", zap.Error(err))
	}
	return nil
}

// VerifyEmail exchanges a verification link's token pair for an active
// session. Token shape is not inspected locally; the remote call is the
// judge.
func (c *Controller) VerifyEmail(ctx context.Context, accessToken, refreshToken string) error {
	session, err := c.svc.SetSession(ctx, accessToken, refreshToken)
	if err != nil {
		return err
	}
	c.mu.Lock()
	c.settleLocked(session)
	c.mu.Unlock()
	return nil
}

// SignOut terminates the remote session and clears the cache immediately,
// without waiting for the SIGNED_OUT event. Clearing twice is harmless.
func (c *Controller) SignOut(ctx context.Context) error {
	if err := c.svc.SignOut(ctx); err != nil {
		c.logger.Error("sign out failed", zap.Error(err))
		return err
	}
	c.mu.Lock()
	c.settleLocked(nil)
	c.mu.Unlock()
	return nil
}

// PendingEmail returns the address recorded at sign-up, if any.
func (c *Controller) PendingEmail(ctx context.Context) string {
	email, _, err := c.store.Get(ctx, PendingEmailKey)
	if err != nil {
		c.logger.Warn("reading pending email failed", zap.Error(err))
		return ""
	}
	return email
}

// ClearPendingEmail removes the marker once verification completes.
func (c *Controller) ClearPendingEmail(ctx context.Context) {
	if err := c.store.Delete(ctx, PendingEmailKey); err != nil {
		c.logger.Warn("clearing pending email failed", zap.Error(err))
	}
}

// CurrentUser returns the cached user, nil when anonymous.
func (c *Controller) CurrentUser() *domain.User {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.user
}

// CurrentSession returns the cached session, nil when anonymous.
func (c *Controller) CurrentSession() *domain.Session {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.session
}

// Loading reports whether neither the initial probe nor a first event has
// settled yet.
func (c *Controller) Loading() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state == StateLoading
}

// State returns the controller's lifecycle state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// VerificationStatus derives the status of the cached user.
func (c *Controller) VerificationStatus() domain.VerificationStatus {
	c.mu.Lock()
	defer c.mu.Unlock()
	return domain.VerificationStatusOf(c.user)
}
