package identity

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// Error is a failure reported by the identity service. Code is the service's
// machine-readable error code when the response body carried one.
type Error struct {
	Status  int
	Code    string
	Message string
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Code != "" {
		return fmt.Sprintf("%s (%s)", e.Message, e.Code)
	}
	return e.Message
}

// Rate-limit codes emitted by GoTrue-compatible backends.
const (
	codeEmailRateLimit = "over_email_send_rate_limit"
	codeRateLimit      = "over_request_rate_limit"
)

// IsRateLimited classifies err as a rate-limit condition. It prefers the
// structured status/code channel; the message substring match is a fallback
// for backends that return untyped error bodies and is fragile by nature.
func IsRateLimited(err error) bool {
	if err == nil {
		return false
	}
	var idErr *Error
	if errors.As(err, &idErr) {
		if idErr.Status == http.StatusTooManyRequests {
			return true
		}
		if idErr.Code == codeEmailRateLimit || idErr.Code == codeRateLimit {
			return true
		}
	}
	return strings.Contains(strings.ToLower(err.Error()), "rate limit")
}
