package service

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"UserService/internal/auth"
	dom "UserService/internal/domain"
	"UserService/internal/events"
	"UserService/internal/metrics"
	"UserService/internal/repo"
	"UserService/internal/session"
)

// LoginResult is what a successful login hands back to the transport layer.
type LoginResult struct {
	// Cookie is the value to place in the session cookie.
	Cookie string
	User   dom.PublicUser
}

// AuthService handles registration, login, logout and session checks.
type AuthService struct {
	users    repo.UserRepo
	hasher   auth.PasswordHasher
	sessions session.Store
	tokens   auth.TokenCodec

	events  events.Publisher
	metrics *metrics.Metrics
	log     *slog.Logger
	opts    Options

	// dummyDigest is verified against when the username is unknown so both
	// credential failures cost one hash comparison.
	dummyDigest string
}

// NewAuthService returns a new AuthService. A nil tokens codec means the raw
// session token is used as the cookie value.
func NewAuthService(users repo.UserRepo, hasher auth.PasswordHasher, sessions session.Store, tokens auth.TokenCodec, opts Options) (*AuthService, error) {
	opts = opts.withDefaults()
	if tokens == nil {
		tokens = auth.NewTokenCodec(nil)
	}
	buf := make([]byte, 24)
	if _, err := rand.Read(buf); err != nil {
		return nil, fmt.Errorf("dummy password: %w", err)
	}
	dummy, err := hasher.Hash(base64.RawURLEncoding.EncodeToString(buf))
	if err != nil {
		return nil, fmt.Errorf("dummy digest: %w", err)
	}
	return &AuthService{
		users:       users,
		hasher:      hasher,
		sessions:    sessions,
		tokens:      tokens,
		events:      opts.Events,
		metrics:     opts.Metrics,
		log:         opts.Logger.With("module", "auth"),
		opts:        opts,
		dummyDigest: dummy,
	}, nil
}

func (s *AuthService) storageCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, s.opts.StorageTimeout)
}

// Register creates a new account. It does not log the user in.
func (s *AuthService) Register(ctx context.Context, username, password string) (dom.PublicUser, error) {
	u, err := s.register(ctx, username, password)
	switch {
	case err == nil:
		s.metrics.Registration(metrics.OutcomeSuccess)
	case errors.Is(err, dom.ErrStorage):
		s.metrics.Registration(metrics.OutcomeError)
	default:
		s.metrics.Registration(metrics.OutcomeRejected)
	}
	return u, err
}

func (s *AuthService) register(ctx context.Context, username, password string) (dom.PublicUser, error) {
	username, err := normalizeUsername(username)
	if err != nil {
		return dom.PublicUser{}, err
	}
	if password == "" {
		return dom.PublicUser{}, fmt.Errorf("%w: password is required", dom.ErrValidation)
	}

	// Fast path: skip the hash for names that are obviously taken. The insert
	// below remains the authority when two registrations race.
	lookupCtx, cancel := s.storageCtx(ctx)
	_, err = s.users.GetByUsername(lookupCtx, username)
	cancel()
	switch {
	case err == nil:
		return dom.PublicUser{}, dom.ErrDuplicateUsername
	case !errors.Is(err, dom.ErrNotFound):
		return dom.PublicUser{}, internalError(ctx, s.log, "register.lookup", err)
	}

	digest, err := s.hasher.Hash(password)
	if err != nil {
		if errors.Is(err, dom.ErrValidation) {
			return dom.PublicUser{}, err
		}
		return dom.PublicUser{}, internalError(ctx, s.log, "register.hash", err)
	}

	createCtx, cancel := s.storageCtx(ctx)
	defer cancel()
	u, err := s.users.Create(createCtx, username, digest)
	if err != nil {
		if errors.Is(err, dom.ErrDuplicateUsername) {
			return dom.PublicUser{}, dom.ErrDuplicateUsername
		}
		return dom.PublicUser{}, internalError(ctx, s.log, "register.create", err)
	}

	s.log.InfoContext(ctx, "user registered", "user_id", u.ID, "outcome", "success")
	publish(ctx, s.log, s.events, events.New(events.TypeUserRegistered, u.ID, u.Username))
	return u.Public(), nil
}

// Login checks the credentials and opens a new session. Unknown usernames and
// wrong passwords both return dom.ErrInvalidCredentials.
func (s *AuthService) Login(ctx context.Context, username, password string) (LoginResult, error) {
	res, err := s.login(ctx, username, password)
	switch {
	case err == nil:
		s.metrics.Login(metrics.OutcomeSuccess)
	case errors.Is(err, dom.ErrStorage):
		s.metrics.Login(metrics.OutcomeError)
	default:
		s.metrics.Login(metrics.OutcomeRejected)
	}
	return res, err
}

func (s *AuthService) login(ctx context.Context, username, password string) (LoginResult, error) {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return LoginResult{}, fmt.Errorf("%w: username and password are required", dom.ErrValidation)
	}

	lookupCtx, cancel := s.storageCtx(ctx)
	u, err := s.users.GetByUsername(lookupCtx, username)
	cancel()
	if err != nil {
		if errors.Is(err, dom.ErrNotFound) {
			s.hasher.Verify(password, s.dummyDigest)
			s.log.InfoContext(ctx, "login rejected", "outcome", "invalid_credentials")
			return LoginResult{}, dom.ErrInvalidCredentials
		}
		return LoginResult{}, internalError(ctx, s.log, "login.lookup", err)
	}
	if !s.hasher.Verify(password, u.PasswordHash) {
		s.log.InfoContext(ctx, "login rejected", "outcome", "invalid_credentials")
		return LoginResult{}, dom.ErrInvalidCredentials
	}
	if s.hasher.NeedsRehash(u.PasswordHash) {
		s.upgradeDigest(ctx, u, password)
	}

	createCtx, cancel := s.storageCtx(ctx)
	defer cancel()
	token, err := s.sessions.Create(createCtx, u.ID, u.Username)
	if err != nil {
		return LoginResult{}, internalError(ctx, s.log, "login.session", err)
	}
	cookie, err := s.tokens.Encode(token)
	if err != nil {
		_ = s.sessions.Destroy(createCtx, token)
		return LoginResult{}, internalError(ctx, s.log, "login.encode", err)
	}

	s.log.InfoContext(ctx, "user logged in", "user_id", u.ID, "outcome", "success")
	publish(ctx, s.log, s.events, events.New(events.TypeUserLoggedIn, u.ID, u.Username))
	return LoginResult{Cookie: cookie, User: u.Public()}, nil
}

// upgradeDigest re-hashes password with the current parameters. Failure is
// logged and otherwise ignored: the old digest still verifies.
func (s *AuthService) upgradeDigest(ctx context.Context, u dom.User, password string) {
	digest, err := s.hasher.Hash(password)
	if err != nil {
		s.log.WarnContext(ctx, "rehash failed", "user_id", u.ID, "error", err)
		return
	}
	ctx, cancel := s.storageCtx(ctx)
	defer cancel()
	if _, err := s.users.Update(ctx, u.ID, dom.UserPatch{PasswordHash: &digest}); err != nil {
		s.log.WarnContext(ctx, "rehash not stored", "user_id", u.ID, "error", err)
	}
}

// Authenticate resolves a cookie value to its session. Every unusable cookie
// yields dom.ErrInvalidSession.
func (s *AuthService) Authenticate(ctx context.Context, cookie string) (dom.Session, error) {
	token, err := s.tokens.Decode(cookie)
	if err != nil {
		s.metrics.SessionCheck(metrics.OutcomeRejected)
		return dom.Session{}, dom.ErrInvalidSession
	}

	ctx2, cancel := s.storageCtx(ctx)
	defer cancel()
	sess, err := s.sessions.Validate(ctx2, token)
	switch {
	case err == nil:
		s.metrics.SessionCheck(metrics.OutcomeSuccess)
		return sess, nil
	case errors.Is(err, dom.ErrInvalidSession):
		s.metrics.SessionCheck(metrics.OutcomeRejected)
		return dom.Session{}, dom.ErrInvalidSession
	default:
		s.metrics.SessionCheck(metrics.OutcomeError)
		return dom.Session{}, internalError(ctx, s.log, "session.validate", err)
	}
}

// Logout destroys the session behind cookie. Destroying a session that is
// already gone is not an error.
func (s *AuthService) Logout(ctx context.Context, cookie string, who dom.PublicUser) error {
	token, err := s.tokens.Decode(cookie)
	if err != nil {
		return nil
	}
	ctx2, cancel := s.storageCtx(ctx)
	defer cancel()
	if err := s.sessions.Destroy(ctx2, token); err != nil {
		return internalError(ctx, s.log, "logout", err)
	}
	s.log.InfoContext(ctx, "user logged out", "user_id", who.ID, "outcome", "success")
	publish(ctx, s.log, s.events, events.New(events.TypeUserLoggedOut, who.ID, who.Username))
	return nil
}
