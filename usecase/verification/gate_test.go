package verification

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/vidsum/backend/domain"
)

func TestDecide(t *testing.T) {
	now := time.Now()
	confirmed := &domain.User{ID: "u1", Email: "a@b.com", EmailConfirmedAt: &now}
	unconfirmed := &domain.User{ID: "u2", Email: "b@b.com"}
	session := &domain.Session{AccessToken: "at", ExpiresAt: now.Add(time.Hour)}

	cases := []struct {
		name                string
		user                *domain.User
		session             *domain.Session
		loading             bool
		requireVerification bool
		want                Decision
	}{
		{"loading wins over everything", confirmed, session, true, true, ShowLoading},
		{"no user redirects to sign-in", nil, nil, false, false, RedirectSignIn},
		{"no user redirects even when verification not required", nil, nil, false, true, RedirectSignIn},
		{"unconfirmed user redirects to verification", unconfirmed, session, false, true, RedirectVerify},
		{"unconfirmed user allowed when verification not required", unconfirmed, session, false, false, Allow},
		{"confirmed user allowed", confirmed, session, false, true, Allow},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := Decide(tc.user, tc.session, tc.loading, tc.requireVerification)
			require.Equal(t, tc.want, got)
		})
	}
}
