package session

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kjannette/cryptodash/internal/models"
)

// IdentityProvider stands in for an external OAuth flow. hint is whatever
// the user typed into the provider's consent screen.
type IdentityProvider interface {
	Name() string
	SignIn(ctx context.Context, hint string) (*models.User, error)
}

const avatarURL = "https://ui-avatars.com/api/?name=%s&background=random&color=fff"

// MockGoogle accepts any email address.
type MockGoogle struct {
	Now func() time.Time
}

func (MockGoogle) Name() string { return "google" }

func (g MockGoogle) SignIn(ctx context.Context, email string) (*models.User, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	email = strings.TrimSpace(email)
	if !strings.Contains(email, "@") {
		return nil, fmt.Errorf("google: %w", ErrSignInCancelled)
	}
	name, _, _ := strings.Cut(email, "@")
	return &models.User{
		ID:          fmt.Sprintf("google-%d", clock(g.Now).UnixMilli()),
		Email:       email,
		DisplayName: name,
		Provider:    "google",
		PhotoURL:    fmt.Sprintf(avatarURL, url.QueryEscape(name)),
	}, nil
}

// MockGitHub accepts any username longer than two characters.
type MockGitHub struct {
	Now func() time.Time
}

func (MockGitHub) Name() string { return "github" }

func (g MockGitHub) SignIn(ctx context.Context, username string) (*models.User, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	username = strings.TrimSpace(username)
	if len(username) <= 2 {
		return nil, fmt.Errorf("github: %w", ErrSignInCancelled)
	}
	return &models.User{
		ID:          fmt.Sprintf("github-%d", clock(g.Now).UnixMilli()),
		Email:       username + "@github.com",
		DisplayName: username,
		Provider:    "github",
		PhotoURL:    fmt.Sprintf(avatarURL, url.QueryEscape(username)),
	}, nil
}

func clock(now func() time.Time) time.Time {
	if now == nil {
		return time.Now()
	}
	return now()
}
