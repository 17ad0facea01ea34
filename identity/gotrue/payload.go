package gotrue

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v4"

	"github.com/vidsum/backend/domain"
)

type sessionPayload struct {
	AccessToken  string       `json:"access_token"`
	RefreshToken string       `json:"refresh_token"`
	ExpiresIn    int64        `json:"expires_in"`
	ExpiresAt    int64        `json:"expires_at"`
	User         *userPayload `json:"user"`
}

type userPayload struct {
	ID               string         `json:"id"`
	Email            string         `json:"email"`
	EmailConfirmedAt *time.Time     `json:"email_confirmed_at"`
	UserMetadata     map[string]any `json:"user_metadata"`
	CreatedAt        time.Time      `json:"created_at"`
	UpdatedAt        time.Time      `json:"updated_at"`
}

func decodeSession(payload []byte) (*domain.Session, error) {
	var sess sessionPayload
	if err := json.Unmarshal(payload, &sess); err != nil {
		return nil, fmt.Errorf("decode session response: %w", err)
	}
	if sess.AccessToken == "" {
		return nil, fmt.Errorf("session response missing access token")
	}
	return sess.toDomain(), nil
}

func (p *sessionPayload) toDomain() *domain.Session {
	session := &domain.Session{
		AccessToken:  p.AccessToken,
		RefreshToken: p.RefreshToken,
	}
	switch {
	case p.ExpiresAt > 0:
		session.ExpiresAt = time.Unix(p.ExpiresAt, 0)
	case p.ExpiresIn > 0:
		session.ExpiresAt = time.Now().Add(time.Duration(p.ExpiresIn) * time.Second)
	default:
		session.ExpiresAt = expiryFromToken(p.AccessToken)
	}
	if p.User != nil {
		session.User = p.User.toDomain()
	}
	return session
}

func (p *userPayload) toDomain() *domain.User {
	user := &domain.User{
		ID:               p.ID,
		Email:            p.Email,
		EmailConfirmedAt: p.EmailConfirmedAt,
		CreatedAt:        p.CreatedAt,
		UpdatedAt:        p.UpdatedAt,
	}
	if len(p.UserMetadata) > 0 {
		user.Metadata = make(map[string]string, len(p.UserMetadata))
		for k, v := range p.UserMetadata {
			if s, ok := v.(string); ok {
				user.Metadata[k] = s
			}
		}
		user.DisplayName = user.Metadata["full_name"]
	}
	return user
}

// expiryFromToken peeks at the access token's exp claim when the response
// carried no explicit expiry. The claim is read unverified; token validation
// belongs to the remote service, not this client.
func expiryFromToken(accessToken string) time.Time {
	claims := jwt.MapClaims{}
	parser := jwt.NewParser()
	if _, _, err := parser.ParseUnverified(accessToken, claims); err != nil {
		return time.Now().Add(time.Hour)
	}
	switch exp := claims["exp"].(type) {
	case float64:
		return time.Unix(int64(exp), 0)
	case json.Number:
		if v, err := exp.Int64(); err == nil {
			return time.Unix(v, 0)
		}
	}
	return time.Now().Add(time.Hour)
}
