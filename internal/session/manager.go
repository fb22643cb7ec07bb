// Package session owns the access/refresh token pair and the identity
// derived from it.
package session

import (
	"context"
	"errors"
	"net/http"
	"regexp"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/charmbracelet/log"
	"golang.org/x/oauth2"

	"github.com/Makepad-fr/tada-client/internal/api"
	"github.com/Makepad-fr/tada-client/internal/apperr"
	"github.com/Makepad-fr/tada-client/internal/logging"
	"github.com/Makepad-fr/tada-client/internal/model"
	"github.com/Makepad-fr/tada-client/internal/store/tokenstore"
)

// MinPasswordLen is the shortest password register accepts.
const MinPasswordLen = 8

var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// Causes carried by Auth errors from this package.
var (
	ErrNotSignedIn    = errors.New("not signed in")
	ErrSessionExpired = errors.New("session expired, sign in again")
)

// AuthAPI is the subset of the API client the manager needs.
type AuthAPI interface {
	Login(ctx context.Context, email, password string) (api.AuthResponse, error)
	Register(ctx context.Context, name, email, password string) (api.AuthResponse, error)
	Logout(ctx context.Context) error
	Refresh(ctx context.Context, refreshToken string) (api.RefreshResponse, error)
}

// Session is a snapshot of an authenticated session.
type Session struct {
	User         model.User
	AccessToken  string
	RefreshToken string
	ExpiresAt    time.Time
}

// Status describes the session for display.
type Status struct {
	Authenticated bool
	User          model.User
	ExpiresAt     time.Time
	HasRefresh    bool
	Source        string // tokenstore source of the restored token, "" after login
}

// Manager is the single owner of session state. Safe for concurrent use.
type Manager struct {
	api   AuthAPI
	store tokenstore.Store
	now   func() time.Time
	log   *log.Logger

	mu     sync.Mutex
	tok    *oauth2.Token // Expiry is the effective expiry
	user   *model.User
	source string
	gen    uint64 // bumped on every transition

	refreshMu sync.Mutex
}

// Option configures a Manager.
type Option func(*Manager)

// WithClock sets the clock used for expiry checks.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

// WithLogger sets the logger.
func WithLogger(l *log.Logger) Option {
	return func(m *Manager) { m.log = l }
}

// NewManager builds a manager and restores any stored session. Nothing is
// sent over the network.
func NewManager(auth AuthAPI, store tokenstore.Store, opts ...Option) *Manager {
	m := &Manager{
		api:   auth,
		store: store,
		now:   time.Now,
		log:   logging.Discard(),
	}
	for _, opt := range opts {
		opt(m)
	}
	m.restore()
	return m
}

func (m *Manager) restore() {
	t, err := m.store.Load()
	if err != nil {
		m.log.Warn("cannot read stored session", "err", err)
		return
	}
	if t.Empty() {
		return
	}

	tok, user, err := m.build("session.restore", t.Access, t.Refresh, t.ExpiresAt, t.User, nil)
	if err != nil && !(errors.Is(err, errTokenExpired) && t.Refresh != "") {
		m.log.Info("dropping stored session", "source", t.Source, "reason", apperr.Message(err))
		if t.Source != tokenstore.SourceEnv {
			m.clearStore()
		}
		return
	}
	if tok == nil {
		// Expired but refreshable: keep it so Resume can spend the refresh.
		// Its expiry is capped at now.
		claims, _ := DecodeClaims(t.Access)
		exp := m.now()
		if e := effectiveExpiry(claims, t.ExpiresAt); !e.IsZero() && e.Before(exp) {
			exp = e
		}
		tok = &oauth2.Token{AccessToken: t.Access, TokenType: "Bearer", RefreshToken: t.Refresh, Expiry: exp}
		user = t.User
		if user == nil {
			if u, ok := claims.User(); ok {
				user = &u
			}
		}
		if user == nil {
			m.log.Info("dropping stored session", "source", t.Source, "reason", "no identity in token")
			if t.Source != tokenstore.SourceEnv {
				m.clearStore()
			}
			return
		}
	}

	m.mu.Lock()
	m.tok, m.user, m.source = tok, user, t.Source
	m.gen++
	m.mu.Unlock()
	m.log.Debug("session restored", "source", t.Source, "expires", tok.Expiry)
}

// Login signs in with email and password.
func (m *Manager) Login(ctx context.Context, email, password string) (Session, error) {
	const op = "auth.login"
	email = strings.TrimSpace(email)
	if email == "" || password == "" {
		return Session{}, apperr.New(apperr.Validation, op, "email and password are required")
	}
	resp, err := m.api.Login(ctx, email, password)
	if err != nil {
		return Session{}, classify(op, err)
	}
	return m.establish(op, resp)
}

// Register creates an account and signs in. Fields are checked before any
// request is made.
func (m *Manager) Register(ctx context.Context, name, email, password string) (Session, error) {
	const op = "auth.register"
	name = strings.TrimSpace(name)
	email = strings.TrimSpace(email)
	switch {
	case name == "":
		return Session{}, apperr.New(apperr.Validation, op, "name is required")
	case !emailPattern.MatchString(email):
		return Session{}, apperr.New(apperr.Validation, op, "enter a valid email address")
	case utf8.RuneCountInString(password) < MinPasswordLen:
		return Session{}, apperr.New(apperr.Validation, op, "password must be at least 8 characters")
	}
	resp, err := m.api.Register(ctx, name, email, password)
	if err != nil {
		return Session{}, classify(op, err)
	}
	return m.establish(op, resp)
}

// classify keeps transport and auth failures as they are; anything else the
// server said about credentials is an Auth error with the server's message.
func classify(op string, err error) error {
	switch apperr.KindOf(err) {
	case apperr.Network, apperr.Auth:
		return err
	}
	return apperr.Wrap(apperr.Auth, op, err)
}

func (m *Manager) establish(op string, resp api.AuthResponse) (Session, error) {
	var fallback *time.Time
	if resp.ExpiresIn > 0 {
		t := m.now().Add(time.Duration(resp.ExpiresIn) * time.Second)
		fallback = &t
	}
	tok, user, err := m.build(op, resp.Token, resp.RefreshToken, fallback, resp.User, nil)
	if err != nil {
		return Session{}, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.installLocked(tok, user, "")
	m.log.Info("signed in", "email", user.Email)
	return m.sessionLocked(), nil
}

var errTokenExpired = errors.New("token already expired")

// build derives the token and identity for a new Authenticated state.
func (m *Manager) build(op, access, refresh string, fallback *time.Time, user, prev *model.User) (*oauth2.Token, *model.User, error) {
	claims, err := DecodeClaims(access)
	if err != nil {
		// Opaque tokens are fine when the server told us who and how long.
		if user == nil || fallback == nil {
			return nil, nil, &apperr.Error{Kind: apperr.Auth, Op: op, Message: apperr.Message(err), Err: err}
		}
		claims = Claims{}
	}
	if claims.Type == "refresh" {
		return nil, nil, apperr.New(apperr.Auth, op, "server returned a refresh token as access token")
	}

	exp := effectiveExpiry(claims, fallback)
	if exp.IsZero() {
		return nil, nil, apperr.New(apperr.Auth, op, "access token has no expiry")
	}
	if !m.now().Before(exp) {
		return nil, nil, &apperr.Error{Kind: apperr.Auth, Op: op, Message: errTokenExpired.Error(), Err: errTokenExpired}
	}

	if user == nil {
		if u, ok := claims.User(); ok {
			user = &u
		} else if prev != nil {
			u := *prev
			user = &u
		} else {
			return nil, nil, apperr.New(apperr.Auth, op, "access token carries no identity")
		}
	}
	tok := &oauth2.Token{AccessToken: access, TokenType: "Bearer", RefreshToken: refresh, Expiry: exp}
	return tok, user, nil
}

func (m *Manager) installLocked(tok *oauth2.Token, user *model.User, source string) {
	m.tok, m.user, m.source = tok, user, source
	m.gen++
	exp := tok.Expiry
	u := *user
	err := m.store.Save(tokenstore.Tokens{
		Access:    tok.AccessToken,
		Refresh:   tok.RefreshToken,
		ExpiresAt: &exp,
		User:      &u,
	})
	if err != nil {
		m.log.Warn("cannot persist session", "err", err)
	}
}

func (m *Manager) clearLocked(reason string) {
	had := m.tok != nil
	m.tok, m.user, m.source = nil, nil, ""
	m.gen++
	m.clearStore()
	if had {
		m.log.Info("signed out", "reason", reason)
	}
}

func (m *Manager) clear(reason string) {
	m.mu.Lock()
	m.clearLocked(reason)
	m.mu.Unlock()
}

func (m *Manager) clearStore() {
	if err := m.store.Clear(); err != nil {
		m.log.Warn("cannot clear stored session", "err", err)
	}
}

// Logout tells the server (best effort) and always clears local state.
func (m *Manager) Logout(ctx context.Context) {
	m.mu.Lock()
	has := m.tok != nil
	m.mu.Unlock()
	if has {
		if err := m.api.Logout(ctx); err != nil {
			m.log.Warn("logout request failed", "err", err)
		}
	}
	m.clear("logout")
}

// validLocked reports whether the access token is usable, clearing the
// session when it has expired.
func (m *Manager) validLocked() bool {
	if m.tok == nil {
		return false
	}
	if !m.now().Before(m.tok.Expiry) {
		m.clearLocked("token expired")
		return false
	}
	return true
}

// IsAuthenticated reports whether a non-expired access token is held.
func (m *Manager) IsAuthenticated() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.validLocked()
}

// CurrentUser returns the cached identity. No network call.
func (m *Manager) CurrentUser() (model.User, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.validLocked() {
		return model.User{}, false
	}
	return *m.user, true
}

// Current returns the whole session when authenticated.
func (m *Manager) Current() (Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.validLocked() {
		return Session{}, false
	}
	return m.sessionLocked(), true
}

// Status reports the session for display.
func (m *Manager) Status() Status {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.validLocked() {
		return Status{}
	}
	return Status{
		Authenticated: true,
		User:          *m.user,
		ExpiresAt:     m.tok.Expiry,
		HasRefresh:    m.tok.RefreshToken != "",
		Source:        m.source,
	}
}

func (m *Manager) sessionLocked() Session {
	return Session{
		User:         *m.user,
		AccessToken:  m.tok.AccessToken,
		RefreshToken: m.tok.RefreshToken,
		ExpiresAt:    m.tok.Expiry,
	}
}

// AttachCredential sets the bearer header when a token is held.
func (m *Manager) AttachCredential(req *http.Request) {
	m.mu.Lock()
	tok := m.tok
	m.mu.Unlock()
	if tok != nil {
		tok.SetAuthHeader(req)
	}
}

// Resume refreshes a locally expired access token when a refresh token is
// held. It is a no-op when signed out or when the token is still valid.
func (m *Manager) Resume(ctx context.Context) error {
	_, err := m.resume(ctx)
	return err
}

func (m *Manager) resume(ctx context.Context) (refreshed bool, err error) {
	m.mu.Lock()
	if m.tok == nil {
		m.mu.Unlock()
		return false, nil
	}
	expired := !m.now().Before(m.tok.Expiry)
	gen := m.gen
	m.mu.Unlock()
	if !expired {
		return false, nil
	}
	if err := m.refresh(ctx, gen); err != nil {
		return false, err
	}
	return true, nil
}

// Authorized runs call with the current credential. A 401 triggers at most
// one refresh followed by one retry; if the refresh fails, or the retry is
// rejected again, the session is cleared and an Auth error returned.
func (m *Manager) Authorized(ctx context.Context, call func(context.Context) error) error {
	refreshed, err := m.resume(ctx)
	if err != nil {
		return err
	}

	m.mu.Lock()
	if m.tok == nil {
		m.mu.Unlock()
		return authErr("session", ErrNotSignedIn)
	}
	gen := m.gen
	m.mu.Unlock()

	err = call(ctx)
	if !apperr.IsUnauthorized(err) {
		return err
	}
	if refreshed {
		m.log.Warn("request rejected after refresh", "err", err)
		m.clearIf(gen, "rejected after refresh")
		return authErr("session", ErrSessionExpired)
	}

	if err := m.refresh(ctx, gen); err != nil {
		return err
	}
	m.mu.Lock()
	gen = m.gen
	m.mu.Unlock()
	err = call(ctx)
	if apperr.IsUnauthorized(err) {
		m.log.Warn("request rejected after refresh", "err", err)
		m.clearIf(gen, "rejected after refresh")
		return authErr("session", ErrSessionExpired)
	}
	return err
}

// refresh swaps the access token for a new one. gen is the session
// generation the caller saw; if it moved on, another caller already
// refreshed (or signed out) and no request is made.
func (m *Manager) refresh(ctx context.Context, gen uint64) error {
	const op = "session.refresh"
	m.refreshMu.Lock()
	defer m.refreshMu.Unlock()

	m.mu.Lock()
	if m.gen != gen {
		ok := m.validLocked()
		m.mu.Unlock()
		if ok {
			return nil
		}
		return authErr(op, ErrSessionExpired)
	}
	if m.tok == nil || m.tok.RefreshToken == "" {
		m.clearLocked("no refresh token")
		m.mu.Unlock()
		return authErr(op, ErrSessionExpired)
	}
	refreshToken := m.tok.RefreshToken
	var prev *model.User
	if m.user != nil {
		u := *m.user
		prev = &u
	}
	m.mu.Unlock()

	resp, err := m.api.Refresh(ctx, refreshToken)
	if err != nil {
		m.log.Warn("token refresh failed", "err", err)
		m.clearIf(gen, "refresh failed")
		return authErr(op, ErrSessionExpired)
	}

	if resp.RefreshToken == "" {
		resp.RefreshToken = refreshToken
	}
	var fallback *time.Time
	if resp.ExpiresIn > 0 {
		t := m.now().Add(time.Duration(resp.ExpiresIn) * time.Second)
		fallback = &t
	}
	tok, user, err := m.build(op, resp.Token, resp.RefreshToken, fallback, nil, prev)
	if err != nil {
		m.log.Warn("refreshed token unusable", "err", err)
		m.clearIf(gen, "refresh returned unusable token")
		return authErr(op, ErrSessionExpired)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.gen != gen {
		// Signed out while the refresh was in flight.
		return authErr(op, ErrNotSignedIn)
	}
	m.installLocked(tok, user, m.source)
	m.log.Debug("token refreshed", "expires", tok.Expiry)
	return nil
}

func (m *Manager) clearIf(gen uint64, reason string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.gen == gen {
		m.clearLocked(reason)
	}
}

func authErr(op string, cause error) error {
	return &apperr.Error{Kind: apperr.Auth, Op: op, Message: cause.Error(), Err: cause}
}
