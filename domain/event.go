package domain

// AuthEventType identifies an asynchronous state change emitted by the
// identity service.
type AuthEventType string

const (
	EventSignedIn       AuthEventType = "SIGNED_IN"
	EventSignedOut      AuthEventType = "SIGNED_OUT"
	EventTokenRefreshed AuthEventType = "TOKEN_REFRESHED"
	EventUserUpdated    AuthEventType = "USER_UPDATED"
)

// AuthEvent carries a state change and the session it applies to. Session is
// nil for SIGNED_OUT.
type AuthEvent struct {
	Type    AuthEventType
	Session *Session
}
