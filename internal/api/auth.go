package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/Makepad-fr/tada-client/internal/apperr"
	"github.com/Makepad-fr/tada-client/internal/model"
)

// AuthResponse is returned by login and register.
type AuthResponse struct {
	User         *model.User
	Token        string
	RefreshToken string
	ExpiresIn    int64 // seconds, 0 when the server does not say
}

// RefreshResponse is returned by the refresh endpoint. RefreshToken is empty
// when the server keeps the old one.
type RefreshResponse struct {
	Token        string
	RefreshToken string
	ExpiresIn    int64
}

// tokenBody accepts both the backend's {token, refreshToken} and the
// OAuth-style {access_token, refresh_token, expires_in}.
type tokenBody struct {
	User              *userBody `json:"user"`
	Token             string    `json:"token"`
	AccessToken       string    `json:"access_token"`
	RefreshToken      string    `json:"refreshToken"`
	RefreshTokenSnake string    `json:"refresh_token"`
	ExpiresIn         int64     `json:"expires_in"`
	ExpiresInCamel    int64     `json:"expiresIn"`
}

type userBody struct {
	ID    flexString `json:"id"`
	Email string     `json:"email"`
	Name  string     `json:"name"`
}

func (b tokenBody) access() string {
	return strings.TrimSpace(firstNonEmpty(b.Token, b.AccessToken))
}

func (b tokenBody) refresh() string {
	return strings.TrimSpace(firstNonEmpty(b.RefreshToken, b.RefreshTokenSnake))
}

func (b tokenBody) expiresIn() int64 {
	if b.ExpiresIn > 0 {
		return b.ExpiresIn
	}
	return b.ExpiresInCamel
}

func (b tokenBody) user() *model.User {
	if b.User == nil {
		return nil
	}
	u := &model.User{ID: string(b.User.ID), Email: b.User.Email, Name: b.User.Name}
	if u.ID == "" && u.Email == "" {
		return nil
	}
	return u
}

// Login exchanges credentials for a token pair.
func (c *Client) Login(ctx context.Context, email, password string) (AuthResponse, error) {
	var body tokenBody
	err := c.do(ctx, request{
		op:     "auth.login",
		method: http.MethodPost,
		path:   []string{"auth", "login"},
		body:   map[string]string{"email": email, "password": password},
	}, &body)
	if err != nil {
		return AuthResponse{}, err
	}
	return authResponse("auth.login", body)
}

// Register creates an account and signs it in.
func (c *Client) Register(ctx context.Context, name, email, password string) (AuthResponse, error) {
	var body tokenBody
	err := c.do(ctx, request{
		op:     "auth.register",
		method: http.MethodPost,
		path:   []string{"auth", "register"},
		body:   map[string]string{"name": name, "email": email, "password": password},
	}, &body)
	if err != nil {
		return AuthResponse{}, err
	}
	return authResponse("auth.register", body)
}

// Logout invalidates the session server-side.
func (c *Client) Logout(ctx context.Context) error {
	return c.do(ctx, request{
		op:     "auth.logout",
		method: http.MethodPost,
		path:   []string{"auth", "logout"},
		authed: true,
	}, nil)
}

// Refresh mints a new access token.
func (c *Client) Refresh(ctx context.Context, refreshToken string) (RefreshResponse, error) {
	var body tokenBody
	err := c.do(ctx, request{
		op:     "auth.refresh",
		method: http.MethodPost,
		path:   []string{"auth", "refresh"},
		body:   map[string]string{"refreshToken": refreshToken},
	}, &body)
	if err != nil {
		return RefreshResponse{}, err
	}
	if body.access() == "" {
		return RefreshResponse{}, apperr.New(apperr.Fetch, "auth.refresh", "response has no token")
	}
	return RefreshResponse{Token: body.access(), RefreshToken: body.refresh(), ExpiresIn: body.expiresIn()}, nil
}

func authResponse(op string, body tokenBody) (AuthResponse, error) {
	if body.access() == "" {
		return AuthResponse{}, apperr.New(apperr.Fetch, op, "response has no token")
	}
	return AuthResponse{
		User:         body.user(),
		Token:        body.access(),
		RefreshToken: body.refresh(),
		ExpiresIn:    body.expiresIn(),
	}, nil
}

// flexString decodes a JSON string or number into its string form.
type flexString string

func (f *flexString) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		*f = ""
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		*f = flexString(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return err
	}
	*f = flexString(n.String())
	return nil
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
