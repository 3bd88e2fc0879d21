package jwtx

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// MinSecretLength is the smallest HMAC secret accepted, matching the HS256
// output size.
const MinSecretLength = 32

// HS256Options configures an HS256Codec.
type HS256Options struct {
	// Secret is the shared HMAC key. Required, at least MinSecretLength bytes.
	Secret []byte

	// Issuer the token must have (claims.iss). Empty means "don't care".
	Issuer string

	// Audience the token must contain (claims.aud). Empty means "don't care".
	Audience string

	// Leeway allows small clock skew when validating exp/nbf/iat.
	Leeway time.Duration

	// Now overrides the clock used for validation. Defaults to time.Now.
	Now func() time.Time
}

// HS256Codec signs and verifies tokens with a single shared secret. It is
// safe for concurrent use.
type HS256Codec struct {
	secret   []byte
	issuer   string
	audience string
	parser   *jwt.Parser
	now      func() time.Time
}

var _ interface {
	Signer
	Verifier
} = (*HS256Codec)(nil)

// NewHS256Codec validates the options and builds the codec.
func NewHS256Codec(opts HS256Options) (*HS256Codec, error) {
	if len(opts.Secret) < MinSecretLength {
		return nil, fmt.Errorf("jwtx: HS256 secret must be at least %d bytes", MinSecretLength)
	}
	if opts.Leeway < 0 {
		return nil, errors.New("jwtx: negative leeway")
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}

	parserOpts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
		jwt.WithLeeway(opts.Leeway),
		jwt.WithTimeFunc(now),
	}
	if opts.Issuer != "" {
		parserOpts = append(parserOpts, jwt.WithIssuer(opts.Issuer))
	}
	if opts.Audience != "" {
		parserOpts = append(parserOpts, jwt.WithAudience(opts.Audience))
	}

	return &HS256Codec{
		secret:   append([]byte(nil), opts.Secret...),
		issuer:   opts.Issuer,
		audience: opts.Audience,
		parser:   jwt.NewParser(parserOpts...),
		now:      now,
	}, nil
}

func (c *HS256Codec) Alg() string { return jwt.SigningMethodHS256.Alg() }

// Issuer is the iss claim stamped on and required of every token.
func (c *HS256Codec) Issuer() string { return c.issuer }

// Audience is the aud claim stamped on and required of every token.
func (c *HS256Codec) Audience() string { return c.audience }

// Now is the codec clock, shared with whoever builds claims for it.
func (c *HS256Codec) Now() time.Time { return c.now() }

// Sign takes your claims and turns them into a signed JWT string.
func (c *HS256Codec) Sign(claims Claims) (string, error) {
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(c.secret)
}

// Verify checks signature, issuer, audience and expiry in one pass. On
// failure no claims are returned and the error wraps exactly one of
// ErrMalformed, ErrInvalidSig, ErrExpired or ErrAudience.
func (c *HS256Codec) Verify(tokenStr string) (Claims, error) {
	var claims Claims
	token, err := c.parser.ParseWithClaims(tokenStr, &claims, func(*jwt.Token) (any, error) {
		return c.secret, nil
	})
	if err != nil {
		return Claims{}, classify(err)
	}
	if !token.Valid || claims.Subject == "" {
		return Claims{}, ErrMalformed
	}
	return claims, nil
}

// VerifyAccess is Verify restricted to access tokens.
func (c *HS256Codec) VerifyAccess(tokenStr string) (Claims, error) {
	return c.verifyUse(tokenStr, UseAccess)
}

// VerifyRefresh is Verify restricted to refresh tokens carrying a rotation id.
func (c *HS256Codec) VerifyRefresh(tokenStr string) (Claims, error) {
	claims, err := c.verifyUse(tokenStr, UseRefresh)
	if err != nil {
		return Claims{}, err
	}
	if claims.RefreshTokenID == "" {
		return Claims{}, fmt.Errorf("%w: missing refresh_token_id", ErrMalformed)
	}
	return claims, nil
}

func (c *HS256Codec) verifyUse(tokenStr, use string) (Claims, error) {
	claims, err := c.Verify(tokenStr)
	if err != nil {
		return Claims{}, err
	}
	if claims.Use != use {
		return Claims{}, fmt.Errorf("%w: expected %s token, got %q", ErrMalformed, use, claims.Use)
	}
	return claims, nil
}

// AccessVerifier adapts the codec to the Verifier interface for bearer
// authentication, where only access tokens are acceptable.
type AccessVerifier struct{ *HS256Codec }

func (a AccessVerifier) Verify(token string) (Claims, error) {
	return a.HS256Codec.VerifyAccess(token)
}
