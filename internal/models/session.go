package models

import "time"

type User struct {
	ID          string `json:"id"`
	Email       string `json:"email"`
	DisplayName string `json:"displayName"`
	Provider    string `json:"provider,omitempty"`
	PhotoURL    string `json:"photoURL,omitempty"`
}

// Session is the mock signed-in identity. Tokens are opaque strings that no
// server ever validates.
type Session struct {
	User         User      `json:"user"`
	AccessToken  string    `json:"accessToken,omitempty"`
	RefreshToken string    `json:"refreshToken,omitempty"`
	ExpiresAt    time.Time `json:"expiresAt"`
}

func (s *Session) Expired(now time.Time) bool {
	return s.ExpiresAt.IsZero() || !now.Before(s.ExpiresAt)
}
