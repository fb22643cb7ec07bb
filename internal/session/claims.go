package session

import (
	"encoding/json"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/Makepad-fr/tada-client/internal/apperr"
	"github.com/Makepad-fr/tada-client/internal/model"
)

// Claims are the fields read out of an access token. The signature is not
// checked; the server does that on every call.
type Claims struct {
	Subject   string
	Email     string
	Name      string
	Type      string    // "refresh" on refresh tokens
	ExpiresAt time.Time // zero when the token has no exp
	IssuedAt  time.Time
}

// User returns the identity carried by the token, if any.
func (c Claims) User() (model.User, bool) {
	if c.Subject == "" && c.Email == "" {
		return model.User{}, false
	}
	return model.User{ID: c.Subject, Email: c.Email, Name: c.Name}, true
}

// DecodeClaims reads the payload of a JWT without verifying it. A token that
// is not a well-formed JWT is an Auth error.
func DecodeClaims(token string) (Claims, error) {
	mc := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, mc); err != nil {
		return Claims{}, &apperr.Error{Kind: apperr.Auth, Op: "session.decode", Message: "malformed access token", Err: err}
	}

	var c Claims
	c.Subject = stringClaim(mc["sub"])
	c.Email = stringClaim(mc["email"])
	c.Name = stringClaim(mc["name"])
	c.Type = stringClaim(mc["type"])

	exp, err := mc.GetExpirationTime()
	if err != nil {
		return Claims{}, &apperr.Error{Kind: apperr.Auth, Op: "session.decode", Message: "malformed token expiry", Err: err}
	}
	if exp != nil {
		c.ExpiresAt = exp.Time
	}
	if iat, err := mc.GetIssuedAt(); err == nil && iat != nil {
		c.IssuedAt = iat.Time
	}
	return c, nil
}

func stringClaim(v any) string {
	switch v := v.(type) {
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case json.Number:
		return v.String()
	}
	return ""
}

// effectiveExpiry is the earlier of the decoded exp and the fallback tracked
// from the server's expires_in. Zero when neither is known.
func effectiveExpiry(c Claims, fallback *time.Time) time.Time {
	exp := c.ExpiresAt
	if fallback != nil && !fallback.IsZero() && (exp.IsZero() || fallback.Before(exp)) {
		exp = *fallback
	}
	return exp
}
