package domain

import "time"

// TokenPair is the freshly minted access and refresh token.
type TokenPair struct {
	AccessToken  string
	RefreshToken string
	ExpiresIn    time.Duration // access token lifetime
}

// Session is what every successful sign-up, sign-in and refresh returns.
type Session struct {
	TokenPair
	User User
}
