package service

import "errors"

var (
	ErrInvalidRequest     = errors.New("invalid_request")
	ErrInvalidCredentials = errors.New("invalid_credentials")
	ErrCredentialConflict = errors.New("credential_conflict")

	// ErrUnauthorized is the only error a client sees for a bad token.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrInvalidatedRefreshToken is wrapped inside ErrUnauthorized when a
	// refresh token's id is no longer the user's current one. It signals
	// replay or theft and is only ever logged.
	ErrInvalidatedRefreshToken = errors.New("invalidated_refresh_token")

	// ErrStoreUnavailable means a backing store could not be reached. No
	// session operation proceeds without it.
	ErrStoreUnavailable = errors.New("store_unavailable")
)
