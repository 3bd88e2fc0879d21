package authsdk

import "time"

// ============================================================================
// Request Types
// ============================================================================

// SignUpRequest is the body of POST /v1/auth/sign-up.
type SignUpRequest struct {
	Email    string `json:"email" example:"ada@example.com"`
	Password string `json:"password" example:"correct horse battery staple"`

	// Username is an optional display name
	Username string `json:"username,omitempty" example:"ada"`
}

// SignInRequest is the body of POST /v1/auth/sign-in.
type SignInRequest struct {
	Email    string `json:"email" example:"ada@example.com"`
	Password string `json:"password" example:"correct horse battery staple"`
}

// RefreshRequest is the body of POST /v1/auth/refresh-tokens.
type RefreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

// ============================================================================
// Response Types
// ============================================================================

// TokenResponse is returned by sign-up, sign-in and refresh-tokens.
type TokenResponse struct {
	// AccessToken is the short lived JWT sent as a Bearer credential
	AccessToken string `json:"access_token"`

	// RefreshToken is single use; every refresh returns a new one
	RefreshToken string `json:"refresh_token"`

	// TokenType is always "Bearer"
	TokenType string `json:"token_type" example:"Bearer"`

	// ExpiresIn is the lifetime in seconds of the access token
	ExpiresIn int `json:"expires_in" example:"900"`

	User UserResponse `json:"user"`
}

// UserResponse is the public view of an account. The password hash never
// leaves the service.
type UserResponse struct {
	ID        string    `json:"id" example:"01JA2Y7M4Q8XW3F6N0B5C9D1EZ"`
	Email     string    `json:"email" example:"ada@example.com"`
	Username  string    `json:"username,omitempty" example:"ada"`
	TaskView  string    `json:"task_view" example:"minimalist"`
	CreatedAt time.Time `json:"created_at"`
}

// ============================================================================
// Health Types
// ============================================================================

// HealthResponse is returned by /livez and /readyz (readyz adds Checks).
type HealthResponse struct {
	// Status is "ok" or "degraded"
	Status string `json:"status"`

	// Uptime is the service uptime duration as a string (e.g., "1h23m45s")
	Uptime string `json:"uptime,omitempty"`

	Version string `json:"version,omitempty"`

	Checks *HealthChecks `json:"checks,omitempty"`
}

// HealthChecks reports each backing store as "ok" or "error: <reason>".
type HealthChecks struct {
	Database string `json:"database"`
	Cache    string `json:"cache"`
}
