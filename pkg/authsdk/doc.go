/*
Package authsdk provides a client SDK for the taskdeck authentication service,
together with the request, response and error types the service itself writes.

# SDKClient vs Session

  - SDKClient: unauthenticated endpoints (sign-up, sign-in, refresh, health)
  - Session: authenticated endpoints with automatic token refresh

	client := authsdk.NewSDKClient("https://auth.example.com")

	session, err := client.AuthenticateWithPassword(ctx, "ada@example.com", password)
	if errors.Is(err, authsdk.ErrInvalidCredentials) {
		// wrong email or password; the service does not say which
	}

	me, err := session.Me(ctx)

	err = session.Logout(ctx)

# Refresh Token Rotation

Every refresh returns a new refresh token and spends the old one. Presenting a
spent refresh token is treated as theft: the service rejects it with
ErrUnauthorized and the session cannot be refreshed again. A Session rotates
under its own lock, so one Session may be shared by many goroutines, but the
same refresh token must never be used from two Sessions.

Signing in again supersedes the previous session of the same user.

# Error Handling

Failures are returned as *APIError and compare equal with errors.Is to the
predefined values (ErrInvalidRequest, ErrInvalidCredentials,
ErrCredentialConflict, ErrUnauthorized, ErrRateLimited, ErrServerError).
*/
package authsdk
