package domain

// VerificationStatus is derived from the cached user, never stored.
type VerificationStatus string

const (
	VerificationNone      VerificationStatus = "none"
	VerificationPending   VerificationStatus = "pending"
	VerificationConfirmed VerificationStatus = "confirmed"
)

// VerificationStatusOf computes the status for the given user.
func VerificationStatusOf(user *User) VerificationStatus {
	switch {
	case user == nil:
		return VerificationNone
	case user.EmailConfirmed():
		return VerificationConfirmed
	default:
		return VerificationPending
	}
}
