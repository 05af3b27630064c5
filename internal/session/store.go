package session

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/kjannette/cryptodash/internal/logging"
	"github.com/kjannette/cryptodash/internal/models"
	"github.com/kjannette/cryptodash/internal/storage"
)

// Persisted keys.
const (
	KeyUser   = "user"
	KeyExpiry = "tokenExpiryTime"
)

const TokenLifetime = 3600 * time.Second

// Store is a mock authentication session. It keeps at most one session and
// mirrors it into a KV so it survives restarts. It is not a security
// boundary: credentials are checked for shape only and tokens are opaque.
type Store struct {
	kv        storage.KV
	providers map[string]IdentityProvider
	logger    *slog.Logger
	now       func() time.Time

	mu      sync.Mutex
	current *models.Session
}

type Option func(*Store)

func WithProvider(p IdentityProvider) Option { return func(s *Store) { s.providers[p.Name()] = p } }
func WithLogger(l *slog.Logger) Option       { return func(s *Store) { s.logger = l } }
func WithClock(now func() time.Time) Option  { return func(s *Store) { s.now = now } }

func NewStore(kv storage.KV, opts ...Option) *Store {
	s := &Store{
		kv:        kv,
		providers: make(map[string]IdentityProvider),
		logger:    logging.Discard(),
		now:       time.Now,
	}
	for _, o := range opts {
		o(s)
	}
	s.logger = s.logger.With("component", "session")
	return s
}

func (s *Store) Login(ctx context.Context, email, password string) (*models.Session, error) {
	email = strings.TrimSpace(email)
	if !strings.Contains(email, "@") {
		return nil, &ValidationError{Field: "email", Reason: "must contain @"}
	}
	if len(password) < 6 {
		return nil, &ValidationError{Field: "password", Reason: "must be at least 6 characters"}
	}
	name, _, _ := strings.Cut(email, "@")
	return s.start(ctx, models.User{
		ID:          fmt.Sprintf("user-%d", s.now().UnixMilli()),
		Email:       email,
		DisplayName: name,
		Provider:    "email",
	})
}

func (s *Store) Signup(ctx context.Context, username, email, password string) (*models.Session, error) {
	username = strings.TrimSpace(username)
	email = strings.TrimSpace(email)
	if !strings.Contains(email, "@") {
		return nil, &ValidationError{Field: "email", Reason: "must contain @"}
	}
	if len(username) < 3 {
		return nil, &ValidationError{Field: "username", Reason: "must be at least 3 characters"}
	}
	if len(password) < 6 {
		return nil, &ValidationError{Field: "password", Reason: "must be at least 6 characters"}
	}
	return s.start(ctx, models.User{
		ID:          fmt.Sprintf("user-%d", s.now().UnixMilli()),
		Email:       email,
		DisplayName: username,
		Provider:    "email",
	})
}

// SignInWith delegates identity to a registered provider.
func (s *Store) SignInWith(ctx context.Context, provider, hint string) (*models.Session, error) {
	p, ok := s.providers[provider]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownProvider, provider)
	}
	user, err := p.SignIn(ctx, hint)
	if err != nil {
		return nil, err
	}
	return s.start(ctx, *user)
}

// Refresh issues new tokens for the current session.
func (s *Store) Refresh(ctx context.Context) (*models.Session, error) {
	s.mu.Lock()
	cur := s.current
	s.mu.Unlock()

	if cur == nil {
		loaded, err := s.load(ctx)
		if err != nil {
			return nil, err
		}
		cur = loaded
	}
	if cur == nil {
		return nil, ErrNoSession
	}
	if cur.RefreshToken == "" {
		return nil, ErrNoRefreshToken
	}

	s.logger.Info("refreshing session", "user", cur.User.ID)
	return s.start(ctx, cur.User)
}

// Logout clears the session and its persisted keys.
func (s *Store) Logout(ctx context.Context) error {
	s.mu.Lock()
	s.current = nil
	s.mu.Unlock()

	if err := s.kv.Delete(ctx, KeyUser, KeyExpiry); err != nil {
		return fmt.Errorf("clear session: %w", err)
	}
	s.logger.Info("logged out")
	return nil
}

// Current returns the live session or ErrNoSession when signed out or
// expired.
func (s *Store) Current() (*models.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current == nil || s.current.Expired(s.now()) {
		return nil, ErrNoSession
	}
	cp := *s.current
	return &cp, nil
}

// Restore reloads the persisted session at startup. An expired session is
// refreshed; if that fails the store is logged out. A nil session with a nil
// error means nobody is signed in.
func (s *Store) Restore(ctx context.Context) (*models.Session, error) {
	sess, err := s.load(ctx)
	if err != nil {
		return nil, err
	}
	if sess == nil {
		return nil, nil
	}

	if sess.Expired(s.now()) {
		s.logger.Info("session expired, attempting refresh", "user", sess.User.ID)
		s.mu.Lock()
		s.current = sess
		s.mu.Unlock()

		refreshed, err := s.Refresh(ctx)
		if err != nil {
			s.logger.Warn("refresh failed, clearing session", "err", err)
			if lerr := s.Logout(ctx); lerr != nil {
				return nil, lerr
			}
			return nil, nil
		}
		return refreshed, nil
	}

	s.mu.Lock()
	s.current = sess
	s.mu.Unlock()
	return sess, nil
}

func (s *Store) start(ctx context.Context, user models.User) (*models.Session, error) {
	now := s.now()
	sess := &models.Session{
		User:         user,
		AccessToken:  token("access", now),
		RefreshToken: token("refresh", now),
		ExpiresAt:    now.Add(TokenLifetime),
	}

	if err := s.save(ctx, sess); err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.current = sess
	s.mu.Unlock()

	s.logger.Info("session started", "user", user.ID, "provider", user.Provider)
	cp := *sess
	return &cp, nil
}

func (s *Store) save(ctx context.Context, sess *models.Session) error {
	b, err := json.Marshal(sess)
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}
	if err := s.kv.Set(ctx, KeyUser, string(b)); err != nil {
		return fmt.Errorf("persist session: %w", err)
	}
	if err := s.kv.Set(ctx, KeyExpiry, strconv.FormatInt(sess.ExpiresAt.UnixMilli(), 10)); err != nil {
		return fmt.Errorf("persist expiry: %w", err)
	}
	return nil
}

// load reads the persisted session. The expiry key is authoritative; a
// missing or unreadable expiry counts as expired.
func (s *Store) load(ctx context.Context) (*models.Session, error) {
	raw, ok, err := s.kv.Get(ctx, KeyUser)
	if err != nil {
		return nil, fmt.Errorf("load session: %w", err)
	}
	if !ok {
		return nil, nil
	}

	var sess models.Session
	if err := json.Unmarshal([]byte(raw), &sess); err != nil {
		s.logger.Warn("discarding unreadable session", "err", err)
		return nil, s.Logout(ctx)
	}

	sess.ExpiresAt = time.Time{}
	if v, ok, err := s.kv.Get(ctx, KeyExpiry); err == nil && ok {
		if ms, err := strconv.ParseInt(v, 10, 64); err == nil {
			sess.ExpiresAt = time.UnixMilli(ms)
		}
	}
	return &sess, nil
}

func token(kind string, now time.Time) string {
	entropy := strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
	return fmt.Sprintf("%s_%d_%s", kind, now.UnixMilli(), entropy)
}
