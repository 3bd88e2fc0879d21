package authsdk

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// SDKClient is a client for the taskdeck authentication service.
// It covers the unauthenticated endpoints and creates authenticated Sessions.
type SDKClient struct {
	BaseURL    string
	HTTPClient *http.Client
}

// NewSDKClient creates a new auth service client.
func NewSDKClient(baseURL string) *SDKClient {
	return &SDKClient{
		BaseURL: strings.TrimSuffix(baseURL, "/"),
		HTTPClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// SignUp registers a new account and returns its first token pair.
func (c *SDKClient) SignUp(ctx context.Context, req SignUpRequest) (*TokenResponse, error) {
	return c.postTokens(ctx, "/v1/auth/sign-up", req, http.StatusCreated)
}

// SignIn exchanges credentials for a token pair. Any previous session of the
// same user stops being refreshable.
func (c *SDKClient) SignIn(ctx context.Context, email, password string) (*TokenResponse, error) {
	return c.postTokens(ctx, "/v1/auth/sign-in", SignInRequest{Email: email, Password: password}, http.StatusOK)
}

// RefreshTokens rotates a refresh token. The token passed in is spent
// whether or not the caller receives the response.
func (c *SDKClient) RefreshTokens(ctx context.Context, refreshToken string) (*TokenResponse, error) {
	return c.postTokens(ctx, "/v1/auth/refresh-tokens", RefreshRequest{RefreshToken: refreshToken}, http.StatusOK)
}

// Register signs up and wraps the result in a Session.
func (c *SDKClient) Register(ctx context.Context, req SignUpRequest) (*Session, error) {
	tokenResp, err := c.SignUp(ctx, req)
	if err != nil {
		return nil, err
	}
	return newSession(c, tokenResp), nil
}

// AuthenticateWithPassword signs in and wraps the result in a Session.
func (c *SDKClient) AuthenticateWithPassword(ctx context.Context, email, password string) (*Session, error) {
	tokenResp, err := c.SignIn(ctx, email, password)
	if err != nil {
		return nil, err
	}
	return newSession(c, tokenResp), nil
}

// AuthenticateWithRefreshToken creates a session from a stored refresh token.
func (c *SDKClient) AuthenticateWithRefreshToken(ctx context.Context, refreshToken string) (*Session, error) {
	tokenResp, err := c.RefreshTokens(ctx, refreshToken)
	if err != nil {
		return nil, err
	}
	return newSession(c, tokenResp), nil
}

// NewSessionFromTokens creates a session from tokens obtained elsewhere.
// The session still refreshes when the access token expires.
func (c *SDKClient) NewSessionFromTokens(accessToken, refreshToken string, expiresIn int) *Session {
	return &Session{
		client:       c,
		accessToken:  accessToken,
		refreshToken: refreshToken,
		expiresAt:    expiryFrom(expiresIn),
	}
}

func (c *SDKClient) postTokens(ctx context.Context, path string, body any, expectedStatus int) (*TokenResponse, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to encode request: %w", err)
	}

	resp, err := c.doRequest(ctx, http.MethodPost, path, bytes.NewReader(payload), map[string]string{
		"Content-Type": "application/json",
	})
	if err != nil {
		return nil, err
	}

	var tokenResp TokenResponse
	if err := decodeJSON(resp, &tokenResp, expectedStatus); err != nil {
		return nil, err
	}
	return &tokenResp, nil
}
