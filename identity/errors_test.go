package identity

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestIsRateLimited(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"429 status", &Error{Status: 429, Message: "slow down"}, true},
		{"email send code", &Error{Status: 400, Code: "over_email_send_rate_limit", Message: "too many"}, true},
		{"request code", &Error{Status: 400, Code: "over_request_rate_limit", Message: "too many"}, true},
		{"message fallback", errors.New("email rate limit exceeded"), true},
		{"wrapped identity error", fmt.Errorf("request failed: %w", &Error{Status: 429}), true},
		{"plain 400", &Error{Status: 400, Code: "validation_failed", Message: "bad email"}, false},
		{"unrelated error", errors.New("connection refused"), false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.want, IsRateLimited(tc.err))
		})
	}
}

func TestErrorString(t *testing.T) {
	require.Equal(t, "too many (over_email_send_rate_limit)",
		(&Error{Status: 429, Code: "over_email_send_rate_limit", Message: "too many"}).Error())
	require.Equal(t, "bad email", (&Error{Status: 400, Message: "bad email"}).Error())
}
