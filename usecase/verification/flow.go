package verification

import (
	"context"
	"net/url"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/vidsum/backend/domain"
	"github.com/vidsum/backend/usecase/auth"
	"github.com/vidsum/backend/usecase/ratelimit"
)

// FlowState tracks a verification-link visit.
type FlowState string

const (
	// StateAwaitingLink: no usable token pair yet; show check-your-email
	// with a cooldown-gated resend.
	StateAwaitingLink FlowState = "awaiting-link"
	StateVerifying    FlowState = "verifying"
	StateVerified     FlowState = "verified"
	StateFailed       FlowState = "failed"
)

// CallbackTypeSignUp is the type marker a sign-up confirmation link carries.
const CallbackTypeSignUp = "signup"

// RedirectDelay is how long the verified screen lingers before moving to the
// authenticated landing area.
const RedirectDelay = 2 * time.Second

// CallbackParams are the query parameters embedded in a verification link.
type CallbackParams struct {
	AccessToken  string
	RefreshToken string
	Type         string
	Email        string
}

// ParamsFromQuery extracts callback parameters from a raw query string.
func ParamsFromQuery(rawQuery string) CallbackParams {
	values, err := url.ParseQuery(rawQuery)
	if err != nil {
		return CallbackParams{}
	}
	return CallbackParams{
		AccessToken:  values.Get("access_token"),
		RefreshToken: values.Get("refresh_token"),
		Type:         values.Get("type"),
		Email:        values.Get("email"),
	}
}

// Flow walks a verification-link visit through
// awaiting-link → verifying → verified|failed. Once past awaiting-link it
// never returns there; a repeat visit observes the settled outcome.
type Flow struct {
	controller *auth.Controller
	limiter    *ratelimit.Limiter
	logger     *zap.Logger

	mu    sync.Mutex
	state FlowState
	email string
	err   error
}

// NewFlow starts a flow in the awaiting-link state.
func NewFlow(controller *auth.Controller, limiter *ratelimit.Limiter, logger *zap.Logger) *Flow {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Flow{
		controller: controller,
		limiter:    limiter,
		logger:     logger,
		state:      StateAwaitingLink,
	}
}

// HandleCallback consumes a verification-link visit. Entering verifying
// requires both tokens and the sign-up type marker; anything less keeps the
// flow awaiting the link. The caller must scrub consumed tokens from the
// visible URL whatever the outcome (see ScrubURL).
func (f *Flow) HandleCallback(ctx context.Context, params CallbackParams) FlowState {
	f.mu.Lock()
	if f.state == StateVerified || f.state == StateVerifying {
		state := f.state
		f.mu.Unlock()
		return state
	}

	if params.Email != "" {
		f.email = params.Email
	} else if f.email == "" {
		f.email = f.controller.PendingEmail(ctx)
	}

	if params.AccessToken == "" || params.RefreshToken == "" || params.Type != CallbackTypeSignUp {
		// A failed flow offers only resend or return-to-sign-in; a token-less
		// revisit must not reopen the awaiting-link screen. A fresh, complete
		// token pair still gets a retry below.
		if f.state != StateFailed {
			f.state = StateAwaitingLink
		}
		state := f.state
		f.mu.Unlock()
		return state
	}

	f.state = StateVerifying
	f.mu.Unlock()

	err := f.controller.VerifyEmail(ctx, params.AccessToken, params.RefreshToken)

	f.mu.Lock()
	defer f.mu.Unlock()
	if err != nil {
		f.logger.Warn("email verification failed", zap.Error(err))
		f.state = StateFailed
		f.err = err
		return StateFailed
	}
	f.state = StateVerified
	f.err = nil
	f.controller.ClearPendingEmail(ctx)
	return StateVerified
}

// Resend re-dispatches the verification email, gated by the resend cooldown.
// It is the only recovery besides returning to sign-in once the flow has
// failed.
func (f *Flow) Resend(ctx context.Context) error {
	f.mu.Lock()
	email := f.email
	f.mu.Unlock()
	if email == "" {
		return domain.NewError(domain.ErrCodeInvalid, "no email address found, sign up again")
	}

	ok, err := f.limiter.CanSend(ctx, ratelimit.KeyVerificationResend)
	if err != nil {
		return err
	}
	if !ok {
		remaining, _ := f.limiter.Remaining(ctx, ratelimit.KeyVerificationResend)
		return domain.NewError(domain.ErrCodeRateLimited,
			"resend available in "+ratelimit.FormatTime(remaining))
	}

	if err := f.controller.ResendVerification(ctx, email); err != nil {
		return err
	}
	return f.limiter.Start(ctx, ratelimit.KeyVerificationResend)
}

// AfterVerified waits the redirect delay and then invokes fn, unless ctx is
// cancelled first. It models the short "you're verified" pause before moving
// to the landing area.
func (f *Flow) AfterVerified(ctx context.Context, fn func()) {
	timer := time.NewTimer(RedirectDelay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
		fn()
	}
}

// State returns the current flow state.
func (f *Flow) State() FlowState {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state
}

// Email returns the address the flow is verifying, if known.
func (f *Flow) Email() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.email
}

// Err returns the failure recorded by a failed verification attempt.
func (f *Flow) Err() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.err
}

// ScrubURL strips consumed verification parameters from rawURL so the token
// pair cannot be replayed from browser history or bookmarks.
func ScrubURL(rawURL string) string {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return rawURL
	}
	query := parsed.Query()
	for _, param := range []string{"access_token", "refresh_token", "type", "email"} {
		query.Del(param)
	}
	parsed.RawQuery = query.Encode()
	parsed.Fragment = ""
	return parsed.String()
}
