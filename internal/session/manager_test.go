package session

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/Makepad-fr/tada-client/internal/api"
	"github.com/Makepad-fr/tada-client/internal/apperr"
	"github.com/Makepad-fr/tada-client/internal/model"
	"github.com/Makepad-fr/tada-client/internal/store/tokenstore"
)

var base = time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)

type clock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

func mint(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()
	s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("test-secret"))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	return s
}

func accessToken(t *testing.T, now time.Time, ttl time.Duration) string {
	return mint(t, jwt.MapClaims{
		"sub":   "user_1",
		"email": "a@x.com",
		"name":  "Ada",
		"exp":   now.Add(ttl).Unix(),
	})
}

type fakeAuth struct {
	mu sync.Mutex

	login    func(email, password string) (api.AuthResponse, error)
	register func(name, email, password string) (api.AuthResponse, error)
	refresh  func(token string) (api.RefreshResponse, error)
	logout   error

	loginCalls, registerCalls, refreshCalls, logoutCalls int
}

func (f *fakeAuth) Login(_ context.Context, email, password string) (api.AuthResponse, error) {
	f.mu.Lock()
	f.loginCalls++
	f.mu.Unlock()
	return f.login(email, password)
}

func (f *fakeAuth) Register(_ context.Context, name, email, password string) (api.AuthResponse, error) {
	f.mu.Lock()
	f.registerCalls++
	f.mu.Unlock()
	return f.register(name, email, password)
}

func (f *fakeAuth) Logout(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.logoutCalls++
	return f.logout
}

func (f *fakeAuth) Refresh(_ context.Context, token string) (api.RefreshResponse, error) {
	f.mu.Lock()
	f.refreshCalls++
	f.mu.Unlock()
	if f.refresh == nil {
		return api.RefreshResponse{}, &apperr.Error{Kind: apperr.Auth, Status: 401, Message: "Invalid refresh token"}
	}
	return f.refresh(token)
}

func unauthorized() error {
	return &apperr.Error{Kind: apperr.Auth, Op: "todos.list", Status: http.StatusUnauthorized, Message: "Could not validate credentials"}
}

// signedIn returns a manager logged in with a 15 minute token and a refresh
// token.
func signedIn(t *testing.T, clk *clock, fake *fakeAuth) (*Manager, *tokenstore.MemoryStore) {
	t.Helper()
	if fake.login == nil {
		fake.login = func(email, _ string) (api.AuthResponse, error) {
			return api.AuthResponse{Token: accessToken(t, clk.Now(), 15*time.Minute), RefreshToken: "refresh-1"}, nil
		}
	}
	store := tokenstore.NewMemoryStore()
	m := NewManager(fake, store, WithClock(clk.Now))
	if _, err := m.Login(context.Background(), "a@x.com", "secret12"); err != nil {
		t.Fatalf("login: %v", err)
	}
	return m, store
}

func TestLogin(t *testing.T) {
	clk := &clock{t: base}
	fake := &fakeAuth{}
	m, store := signedIn(t, clk, fake)

	user, ok := m.CurrentUser()
	if !ok || user.Email != "a@x.com" || user.ID != "user_1" {
		t.Fatalf("expected user from claims, got %+v ok=%v", user, ok)
	}
	s, _ := m.Current()
	if !s.ExpiresAt.Equal(base.Add(15 * time.Minute)) {
		t.Errorf("unexpected expiry %v", s.ExpiresAt)
	}

	saved, _ := store.Load()
	if saved.Access == "" || saved.Refresh != "refresh-1" || saved.User == nil || saved.ExpiresAt == nil {
		t.Errorf("session not persisted: %+v", saved)
	}
}

func TestLoginPrefersServerUser(t *testing.T) {
	clk := &clock{t: base}
	fake := &fakeAuth{login: func(string, string) (api.AuthResponse, error) {
		return api.AuthResponse{
			User:  &model.User{ID: "42", Email: "server@x.com", Name: "Server"},
			Token: accessToken(t, clk.Now(), time.Hour),
		}, nil
	}}
	m := NewManager(fake, tokenstore.NewMemoryStore(), WithClock(clk.Now))
	s, err := m.Login(context.Background(), "server@x.com", "pw")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if s.User.ID != "42" {
		t.Errorf("expected server user, got %+v", s.User)
	}
}

func TestLoginErrors(t *testing.T) {
	clk := &clock{t: base}
	tests := []struct {
		name  string
		email string
		err   error
		kind  apperr.Kind
		calls int
	}{
		{"missing fields", "", nil, apperr.Validation, 0},
		{"rejected", "a@x.com", &apperr.Error{Kind: apperr.Auth, Status: 401, Message: "Invalid email or password"}, apperr.Auth, 1},
		{"network", "a@x.com", &apperr.Error{Kind: apperr.Network, Message: "cannot reach server"}, apperr.Network, 1},
		{"server error", "a@x.com", &apperr.Error{Kind: apperr.Fetch, Status: 500, Message: "Login failed"}, apperr.Auth, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fake := &fakeAuth{login: func(string, string) (api.AuthResponse, error) {
				return api.AuthResponse{}, tt.err
			}}
			m := NewManager(fake, tokenstore.NewMemoryStore(), WithClock(clk.Now))
			_, err := m.Login(context.Background(), tt.email, "pw")
			if apperr.KindOf(err) != tt.kind {
				t.Fatalf("expected %v, got %v (%v)", tt.kind, apperr.KindOf(err), err)
			}
			if tt.err != nil && apperr.Message(err) != apperr.Message(tt.err) {
				t.Errorf("expected server message preserved, got %q", apperr.Message(err))
			}
			if fake.loginCalls != tt.calls {
				t.Errorf("expected %d login calls, got %d", tt.calls, fake.loginCalls)
			}
			if m.IsAuthenticated() {
				t.Error("should not be authenticated")
			}
		})
	}
}

func TestRegisterValidation(t *testing.T) {
	clk := &clock{t: base}
	tests := []struct {
		name, user, email, password string
	}{
		{"empty name", " ", "a@x.com", "secret12"},
		{"bad email", "Ada", "a@x", "secret12"},
		{"email with space", "Ada", "a b@x.com", "secret12"},
		{"short password", "Ada", "a@x.com", "seven77"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fake := &fakeAuth{}
			m := NewManager(fake, tokenstore.NewMemoryStore(), WithClock(clk.Now))
			_, err := m.Register(context.Background(), tt.user, tt.email, tt.password)
			if !errors.Is(err, apperr.ErrValidation) {
				t.Fatalf("expected validation error, got %v", err)
			}
			if fake.registerCalls != 0 {
				t.Error("no request should be made on validation failure")
			}
		})
	}

	t.Run("duplicate email", func(t *testing.T) {
		fake := &fakeAuth{register: func(string, string, string) (api.AuthResponse, error) {
			return api.AuthResponse{}, &apperr.Error{Kind: apperr.Fetch, Status: 409, Message: "User with this email already exists"}
		}}
		m := NewManager(fake, tokenstore.NewMemoryStore(), WithClock(clk.Now))
		_, err := m.Register(context.Background(), "Ada", "a@x.com", "secret12")
		if !errors.Is(err, apperr.ErrAuth) || apperr.Message(err) != "User with this email already exists" {
			t.Fatalf("expected auth error with server message, got %v", err)
		}
	})

	t.Run("success", func(t *testing.T) {
		fake := &fakeAuth{register: func(name, email, _ string) (api.AuthResponse, error) {
			return api.AuthResponse{
				User:         &model.User{ID: "user_9", Email: email, Name: name},
				Token:        accessToken(t, clk.Now(), 15*time.Minute),
				RefreshToken: "r",
			}, nil
		}}
		m := NewManager(fake, tokenstore.NewMemoryStore(), WithClock(clk.Now))
		s, err := m.Register(context.Background(), "Ada", "ada@x.com", "secret12")
		if err != nil {
			t.Fatalf("register: %v", err)
		}
		if s.User.Name != "Ada" || !m.IsAuthenticated() {
			t.Errorf("unexpected session %+v", s)
		}
	})
}

func TestExpiryClearsSession(t *testing.T) {
	clk := &clock{t: base}
	m, store := signedIn(t, clk, &fakeAuth{})

	clk.Advance(16 * time.Minute)
	if m.IsAuthenticated() {
		t.Fatal("expected expired session to be unauthenticated")
	}
	if _, ok := m.CurrentUser(); ok {
		t.Error("expected no current user after expiry")
	}
	saved, _ := store.Load()
	if !saved.Empty() {
		t.Errorf("expected storage cleared, got %+v", saved)
	}
}

func TestExpiryFallback(t *testing.T) {
	clk := &clock{t: base}
	fake := &fakeAuth{login: func(string, string) (api.AuthResponse, error) {
		return api.AuthResponse{Token: accessToken(t, clk.Now(), time.Hour), ExpiresIn: 60}, nil
	}}
	m := NewManager(fake, tokenstore.NewMemoryStore(), WithClock(clk.Now))
	s, err := m.Login(context.Background(), "a@x.com", "pw")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if !s.ExpiresAt.Equal(base.Add(time.Minute)) {
		t.Errorf("expected the earlier fallback expiry, got %v", s.ExpiresAt)
	}
}

func TestTokenShapes(t *testing.T) {
	clk := &clock{t: base}
	tests := []struct {
		name string
		resp api.AuthResponse
		ok   bool
	}{
		{"malformed without user", api.AuthResponse{Token: "not-a-jwt"}, false},
		{"opaque with user and expiry", api.AuthResponse{Token: "opaque", ExpiresIn: 900, User: &model.User{ID: "1", Email: "a@x.com"}}, true},
		{"opaque without expiry", api.AuthResponse{Token: "opaque", User: &model.User{ID: "1"}}, false},
		{"no exp claim", api.AuthResponse{Token: mint(t, jwt.MapClaims{"sub": "1"})}, false},
		{"already expired", api.AuthResponse{Token: accessToken(t, base, -time.Minute)}, false},
		{"refresh token as access", api.AuthResponse{Token: mint(t, jwt.MapClaims{"sub": "1", "type": "refresh", "exp": base.Add(time.Hour).Unix()})}, false},
		{"no identity", api.AuthResponse{Token: mint(t, jwt.MapClaims{"exp": base.Add(time.Hour).Unix()})}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fake := &fakeAuth{login: func(string, string) (api.AuthResponse, error) { return tt.resp, nil }}
			m := NewManager(fake, tokenstore.NewMemoryStore(), WithClock(clk.Now))
			_, err := m.Login(context.Background(), "a@x.com", "pw")
			if tt.ok {
				if err != nil || !m.IsAuthenticated() {
					t.Fatalf("expected success, got %v", err)
				}
				return
			}
			if !errors.Is(err, apperr.ErrAuth) {
				t.Fatalf("expected auth error, got %v", err)
			}
			if m.IsAuthenticated() {
				t.Error("should not be authenticated")
			}
		})
	}
}

func TestAuthorized(t *testing.T) {
	ctx := context.Background()

	t.Run("refresh once then retry", func(t *testing.T) {
		clk := &clock{t: base}
		fake := &fakeAuth{}
		fake.refresh = func(token string) (api.RefreshResponse, error) {
			if token != "refresh-1" {
				t.Errorf("unexpected refresh token %q", token)
			}
			return api.RefreshResponse{Token: mint(t, jwt.MapClaims{
				"sub":   "user_1",
				"email": "a@x.com",
				"exp":   clk.Now().Add(15 * time.Minute).Unix(),
				"iat":   clk.Now().Unix(),
			})}, nil
		}
		m, store := signedIn(t, clk, fake)
		before, _ := m.Current()

		calls := 0
		var seen []string
		err := m.Authorized(ctx, func(context.Context) error {
			calls++
			req := httptest.NewRequest(http.MethodGet, "/todos", nil)
			m.AttachCredential(req)
			seen = append(seen, req.Header.Get("Authorization"))
			if calls == 1 {
				return unauthorized()
			}
			return nil
		})
		if err != nil {
			t.Fatalf("expected retry to succeed, got %v", err)
		}
		if calls != 2 || fake.refreshCalls != 1 {
			t.Errorf("expected 2 calls and 1 refresh, got %d and %d", calls, fake.refreshCalls)
		}
		if seen[0] == seen[1] {
			t.Error("retry should carry the new token")
		}
		after, ok := m.Current()
		if !ok || after.User.Email != before.User.Email {
			t.Errorf("identity should survive refresh, got %+v", after.User)
		}
		if after.RefreshToken != "refresh-1" {
			t.Errorf("old refresh token should be kept, got %q", after.RefreshToken)
		}
		saved, _ := store.Load()
		if saved.Access != after.AccessToken {
			t.Error("refreshed token not persisted")
		}
	})

	t.Run("refresh failure clears session", func(t *testing.T) {
		clk := &clock{t: base}
		fake := &fakeAuth{}
		m, store := signedIn(t, clk, fake)

		calls := 0
		err := m.Authorized(ctx, func(context.Context) error {
			calls++
			return unauthorized()
		})
		if !errors.Is(err, apperr.ErrAuth) || !errors.Is(err, ErrSessionExpired) {
			t.Fatalf("expected session expired, got %v", err)
		}
		if calls != 1 || fake.refreshCalls != 1 {
			t.Errorf("expected 1 call and 1 refresh, got %d and %d", calls, fake.refreshCalls)
		}
		if m.IsAuthenticated() {
			t.Error("expected unauthenticated")
		}
		saved, _ := store.Load()
		if !saved.Empty() {
			t.Error("expected storage cleared")
		}
	})

	t.Run("retry rejected again", func(t *testing.T) {
		clk := &clock{t: base}
		fake := &fakeAuth{refresh: func(string) (api.RefreshResponse, error) {
			return api.RefreshResponse{Token: accessToken(t, clk.Now(), 10*time.Minute)}, nil
		}}
		m, _ := signedIn(t, clk, fake)

		calls := 0
		err := m.Authorized(ctx, func(context.Context) error {
			calls++
			return unauthorized()
		})
		if !errors.Is(err, ErrSessionExpired) {
			t.Fatalf("expected session expired, got %v", err)
		}
		if calls != 2 || fake.refreshCalls != 1 {
			t.Errorf("expected 2 calls and 1 refresh, got %d and %d", calls, fake.refreshCalls)
		}
		if m.IsAuthenticated() {
			t.Error("expected unauthenticated")
		}
	})

	t.Run("late rejection keeps a newer sign in", func(t *testing.T) {
		clk := &clock{t: base}
		fake := &fakeAuth{refresh: func(string) (api.RefreshResponse, error) {
			return api.RefreshResponse{Token: accessToken(t, clk.Now(), 10*time.Minute)}, nil
		}}
		m, store := signedIn(t, clk, fake)

		calls := 0
		err := m.Authorized(ctx, func(ctx context.Context) error {
			calls++
			if calls == 2 {
				// The user signs in again while the retry is in flight.
				if _, err := m.Login(ctx, "a@x.com", "secret12"); err != nil {
					t.Errorf("login: %v", err)
				}
			}
			return unauthorized()
		})
		if !errors.Is(err, ErrSessionExpired) {
			t.Fatalf("expected session expired, got %v", err)
		}
		if !m.IsAuthenticated() {
			t.Error("newer session must survive the stale rejection")
		}
		saved, _ := store.Load()
		if saved.Empty() {
			t.Error("newer session must stay persisted")
		}
	})

	t.Run("no refresh token", func(t *testing.T) {
		clk := &clock{t: base}
		fake := &fakeAuth{login: func(string, string) (api.AuthResponse, error) {
			return api.AuthResponse{Token: accessToken(t, clk.Now(), 15*time.Minute)}, nil
		}}
		m, _ := signedIn(t, clk, fake)
		err := m.Authorized(ctx, func(context.Context) error { return unauthorized() })
		if !errors.Is(err, ErrSessionExpired) {
			t.Fatalf("expected session expired, got %v", err)
		}
		if fake.refreshCalls != 0 {
			t.Errorf("expected no refresh, got %d", fake.refreshCalls)
		}
		if m.IsAuthenticated() {
			t.Error("expected unauthenticated")
		}
	})

	t.Run("other errors pass through", func(t *testing.T) {
		clk := &clock{t: base}
		fake := &fakeAuth{}
		m, _ := signedIn(t, clk, fake)
		boom := &apperr.Error{Kind: apperr.Fetch, Status: 500, Message: "boom"}
		err := m.Authorized(ctx, func(context.Context) error { return boom })
		if !errors.Is(err, apperr.ErrFetch) {
			t.Fatalf("expected fetch error, got %v", err)
		}
		if fake.refreshCalls != 0 || !m.IsAuthenticated() {
			t.Error("a non-401 failure must not touch the session")
		}
	})

	t.Run("expired token refreshes up front", func(t *testing.T) {
		clk := &clock{t: base}
		fake := &fakeAuth{refresh: func(string) (api.RefreshResponse, error) {
			return api.RefreshResponse{Token: accessToken(t, clk.Now(), 15*time.Minute)}, nil
		}}
		m, _ := signedIn(t, clk, fake)
		clk.Advance(20 * time.Minute)

		calls := 0
		err := m.Authorized(ctx, func(context.Context) error {
			calls++
			return unauthorized()
		})
		if !errors.Is(err, ErrSessionExpired) {
			t.Fatalf("expected session expired, got %v", err)
		}
		if calls != 1 || fake.refreshCalls != 1 {
			t.Errorf("expected 1 call and 1 refresh, got %d and %d", calls, fake.refreshCalls)
		}
	})

	t.Run("not signed in", func(t *testing.T) {
		m := NewManager(&fakeAuth{}, tokenstore.NewMemoryStore())
		called := false
		err := m.Authorized(ctx, func(context.Context) error {
			called = true
			return nil
		})
		if !errors.Is(err, ErrNotSignedIn) || called {
			t.Fatalf("expected not signed in without calling, got %v called=%v", err, called)
		}
	})
}

func TestRefreshSkippedWhenGenerationMoved(t *testing.T) {
	clk := &clock{t: base}
	fake := &fakeAuth{refresh: func(string) (api.RefreshResponse, error) {
		return api.RefreshResponse{Token: accessToken(t, clk.Now(), 15*time.Minute)}, nil
	}}
	m, _ := signedIn(t, clk, fake)

	m.mu.Lock()
	stale := m.gen
	m.mu.Unlock()
	if err := m.refresh(context.Background(), stale); err != nil {
		t.Fatalf("first refresh: %v", err)
	}
	// A second caller that saw the same generation reuses the new token.
	if err := m.refresh(context.Background(), stale); err != nil {
		t.Fatalf("second refresh: %v", err)
	}
	if fake.refreshCalls != 1 {
		t.Errorf("expected a single refresh request, got %d", fake.refreshCalls)
	}
}

func TestLogout(t *testing.T) {
	clk := &clock{t: base}
	fake := &fakeAuth{logout: &apperr.Error{Kind: apperr.Network, Message: "cannot reach server"}}
	m, store := signedIn(t, clk, fake)

	m.Logout(context.Background())
	if fake.logoutCalls != 1 {
		t.Errorf("expected one logout request, got %d", fake.logoutCalls)
	}
	if m.IsAuthenticated() {
		t.Error("expected unauthenticated after logout")
	}
	saved, _ := store.Load()
	if !saved.Empty() {
		t.Error("expected storage cleared")
	}

	m.Logout(context.Background())
	if fake.logoutCalls != 1 {
		t.Error("signed-out logout should not call the server")
	}
}

func TestRestore(t *testing.T) {
	t.Run("valid token", func(t *testing.T) {
		clk := &clock{t: base}
		store := tokenstore.NewMemoryStore()
		_ = store.Save(tokenstore.Tokens{Access: accessToken(t, base, time.Hour), Refresh: "r"})
		fake := &fakeAuth{}
		m := NewManager(fake, store, WithClock(clk.Now))
		if !m.IsAuthenticated() {
			t.Fatal("expected restored session")
		}
		if u, _ := m.CurrentUser(); u.Email != "a@x.com" {
			t.Errorf("unexpected user %+v", u)
		}
		if fake.loginCalls+fake.refreshCalls != 0 {
			t.Error("restore must not hit the network")
		}
	})

	t.Run("expired without refresh", func(t *testing.T) {
		clk := &clock{t: base}
		store := tokenstore.NewMemoryStore()
		_ = store.Save(tokenstore.Tokens{Access: accessToken(t, base, -time.Minute)})
		m := NewManager(&fakeAuth{}, store, WithClock(clk.Now))
		if m.IsAuthenticated() {
			t.Fatal("expected unauthenticated")
		}
		saved, _ := store.Load()
		if !saved.Empty() {
			t.Error("expected storage cleared")
		}
	})

	t.Run("expired with refresh resumes", func(t *testing.T) {
		clk := &clock{t: base}
		store := tokenstore.NewMemoryStore()
		_ = store.Save(tokenstore.Tokens{Access: accessToken(t, base, -time.Minute), Refresh: "r"})
		fake := &fakeAuth{refresh: func(string) (api.RefreshResponse, error) {
			return api.RefreshResponse{Token: accessToken(t, clk.Now(), 15*time.Minute)}, nil
		}}
		m := NewManager(fake, store, WithClock(clk.Now))
		if err := m.Resume(context.Background()); err != nil {
			t.Fatalf("resume: %v", err)
		}
		if !m.IsAuthenticated() || fake.refreshCalls != 1 {
			t.Errorf("expected refreshed session, refreshes=%d", fake.refreshCalls)
		}
		st := m.Status()
		if !st.HasRefresh || st.User.Email != "a@x.com" {
			t.Errorf("unexpected status %+v", st)
		}
	})

	t.Run("stale stored expiry does not outlive the token", func(t *testing.T) {
		clk := &clock{t: base}
		later := base.Add(time.Hour)
		saved := tokenstore.Tokens{Access: accessToken(t, base, -time.Minute), Refresh: "r", ExpiresAt: &later}

		store := tokenstore.NewMemoryStore()
		_ = store.Save(saved)
		m := NewManager(&fakeAuth{}, store, WithClock(clk.Now))
		if m.IsAuthenticated() {
			t.Fatal("expired token must not count as signed in")
		}

		store = tokenstore.NewMemoryStore()
		_ = store.Save(saved)
		fake := &fakeAuth{refresh: func(string) (api.RefreshResponse, error) {
			return api.RefreshResponse{Token: accessToken(t, clk.Now(), 15*time.Minute)}, nil
		}}
		m = NewManager(fake, store, WithClock(clk.Now))
		if err := m.Resume(context.Background()); err != nil {
			t.Fatalf("resume: %v", err)
		}
		if fake.refreshCalls != 1 || !m.IsAuthenticated() {
			t.Errorf("expected resume to refresh, refreshes=%d", fake.refreshCalls)
		}
	})

	t.Run("expired without identity is dropped", func(t *testing.T) {
		clk := &clock{t: base}
		later := base.Add(time.Hour)
		store := tokenstore.NewMemoryStore()
		_ = store.Save(tokenstore.Tokens{
			Access:    mint(t, jwt.MapClaims{"exp": base.Add(-time.Minute).Unix()}),
			Refresh:   "r",
			ExpiresAt: &later,
		})
		m := NewManager(&fakeAuth{}, store, WithClock(clk.Now))
		if m.IsAuthenticated() {
			t.Fatal("expected unauthenticated")
		}
		if _, ok := m.CurrentUser(); ok {
			t.Error("expected no user")
		}
		if st := m.Status(); st.Authenticated {
			t.Errorf("unexpected status %+v", st)
		}
		saved, _ := store.Load()
		if !saved.Empty() {
			t.Error("expected storage cleared")
		}
	})
}

func TestAttachCredential(t *testing.T) {
	clk := &clock{t: base}
	m, _ := signedIn(t, clk, &fakeAuth{})
	s, _ := m.Current()

	req := httptest.NewRequest(http.MethodGet, "/todos", nil)
	m.AttachCredential(req)
	if got := req.Header.Get("Authorization"); got != "Bearer "+s.AccessToken {
		t.Errorf("unexpected header %q", got)
	}

	m.Logout(context.Background())
	req = httptest.NewRequest(http.MethodGet, "/todos", nil)
	m.AttachCredential(req)
	if got := req.Header.Get("Authorization"); got != "" {
		t.Errorf("expected no header when signed out, got %q", got)
	}
}

func TestDecodeClaims(t *testing.T) {
	tok := mint(t, jwt.MapClaims{"sub": 12, "email": "a@x.com", "name": "Ada", "exp": base.Unix()})
	c, err := DecodeClaims(tok)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if c.Subject != "12" || c.Email != "a@x.com" || !c.ExpiresAt.Equal(base) {
		t.Errorf("unexpected claims %+v", c)
	}

	for _, bad := range []string{"", "abc", "a.b.c"} {
		if _, err := DecodeClaims(bad); !errors.Is(err, apperr.ErrAuth) {
			t.Errorf("expected auth error for %q, got %v", bad, err)
		}
	}
}
