// Package verification decides whether protected functionality may render
// and drives the email-verification completion flow.
package verification

import "github.com/vidsum/backend/domain"

// Decision is the gate's verdict for the current auth state.
type Decision string

const (
	// ShowLoading: the session cache has not settled yet.
	ShowLoading Decision = "loading"
	// RedirectSignIn: no user is signed in.
	RedirectSignIn Decision = "redirect-sign-in"
	// RedirectVerify: a user is signed in but has not confirmed their email.
	RedirectVerify Decision = "redirect-verify"
	// Allow: protected content may render.
	Allow Decision = "allow"
)

// Decide inspects the {user, session, loading} triad and the
// requireVerification flag. It is a pure function: re-evaluate it on every
// state change, it never mutates controller state.
func Decide(user *domain.User, session *domain.Session, loading bool, requireVerification bool) Decision {
	if loading {
		return ShowLoading
	}
	if user == nil {
		return RedirectSignIn
	}
	if requireVerification && !user.EmailConfirmed() {
		return RedirectVerify
	}
	return Allow
}
