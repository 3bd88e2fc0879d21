package jwtx

import (
	"crypto/rand"
	"encoding/base64"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Default token TTL constants. These provide sensible security defaults but
// are normally overridden from configuration.
const (
	// DefaultAccessTokenTTL is the default lifetime for access tokens.
	// Short-lived for security - typical range is 15m to 1h.
	DefaultAccessTokenTTL = 15 * time.Minute

	// DefaultRefreshTokenTTL is the default lifetime for refresh tokens.
	// Longer-lived for user convenience - typical range is 7d to 30d.
	DefaultRefreshTokenTTL = 7 * 24 * time.Hour
)

// Values of the "use" claim. A token is only ever accepted for the purpose
// it was minted for.
const (
	UseAccess  = "access"
	UseRefresh = "refresh"
)

// Claims are shared by access and refresh tokens; the operation specific
// fields are left empty on the other kind.
type Claims struct {
	jwt.RegisteredClaims

	// Use is either UseAccess or UseRefresh.
	Use string `json:"use"`

	// Email of the subject, access tokens only.
	Email string `json:"email,omitempty"`

	// RefreshTokenID is the rotation handle mirrored in the revocation
	// store, refresh tokens only.
	RefreshTokenID string `json:"refresh_token_id,omitempty"`
}

// NewAccessClaims builds the claims of a short-lived access token.
func NewAccessClaims(subject, email string, ttl time.Duration, issuer, audience string, now time.Time) Claims {
	return Claims{
		RegisteredClaims: registered(subject, ttl, issuer, audience, now),
		Use:              UseAccess,
		Email:            email,
	}
}

// NewRefreshClaims builds the claims of a refresh token carrying refreshTokenID.
func NewRefreshClaims(subject, refreshTokenID string, ttl time.Duration, issuer, audience string, now time.Time) Claims {
	return Claims{
		RegisteredClaims: registered(subject, ttl, issuer, audience, now),
		Use:              UseRefresh,
		RefreshTokenID:   refreshTokenID,
	}
}

func registered(subject string, ttl time.Duration, issuer, audience string, now time.Time) jwt.RegisteredClaims {
	rc := jwt.RegisteredClaims{
		Issuer:    issuer,
		Subject:   subject,
		IssuedAt:  jwt.NewNumericDate(now),
		NotBefore: jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		ID:        NewJTI(),
	}
	if audience != "" {
		rc.Audience = jwt.ClaimStrings{audience}
	}
	return rc
}

// NewJTI returns a URL-safe random identifier for the "jti" claim. Two tokens
// minted for the same subject within the same second still differ.
func NewJTI() string {
	var b [20]byte
	_, _ = rand.Read(b[:])
	return base64.RawURLEncoding.EncodeToString(b[:])
}

// ExpiresIn is the remaining lifetime of the token relative to now.
func (c *Claims) ExpiresIn(now time.Time) time.Duration {
	if c.ExpiresAt == nil {
		return 0
	}
	return max(c.ExpiresAt.Sub(now), 0)
}
