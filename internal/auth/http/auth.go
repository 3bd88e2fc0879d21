package http

import (
	"errors"
	"net/http"

	"github.com/aussiebroadwan/taskdeck/internal/auth/domain"
	"github.com/aussiebroadwan/taskdeck/internal/auth/service"
	"github.com/aussiebroadwan/taskdeck/pkg/authsdk"
	"github.com/aussiebroadwan/taskdeck/pkg/httpx"
	"github.com/aussiebroadwan/taskdeck/pkg/slogx"
)

// maxBodyBytes caps every JSON request body.
const maxBodyBytes = 1 << 16

// AuthHandler serves the /v1/auth endpoints.
type AuthHandler struct {
	SessionService *service.SessionService
}

// HandleSignUp godoc
//
//	@Summary		Sign up
//	@Description	Creates an account and opens its first session.
//	@Tags			Auth
//	@Accept			json
//	@Produce		json
//	@Param			body	body		authsdk.SignUpRequest	true	"email, password, optional username"
//	@Success		201		{object}	authsdk.TokenResponse	"access_token, refresh_token, token_type, expires_in, user"
//	@Failure		400		{object}	authsdk.APIError		"malformed body or invalid field"
//	@Failure		409		{object}	authsdk.APIError		"email already registered"
//	@Failure		503		{object}	authsdk.APIError		"store unavailable"
//	@Header			201		{string}	Cache-Control			"no-store"
//	@Router			/v1/auth/sign-up [post].
func (h *AuthHandler) HandleSignUp(w http.ResponseWriter, r *http.Request) {
	var req authsdk.SignUpRequest
	if err := httpx.DecodeJSON(w, r, &req, maxBodyBytes); err != nil {
		authsdk.ErrInvalidRequest.WriteError(w)
		return
	}

	sess, err := h.SessionService.SignUp(r.Context(), req.Email, req.Password, req.Username)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusCreated, tokenResponse(sess))
}

// HandleSignIn godoc
//
//	@Summary		Sign in
//	@Description	Exchanges email and password for a token pair. Any earlier session of the user stops being refreshable.
//	@Description	Unknown email and wrong password produce the same response.
//	@Tags			Auth
//	@Accept			json
//	@Produce		json
//	@Param			body	body		authsdk.SignInRequest	true	"email, password"
//	@Success		200		{object}	authsdk.TokenResponse	"access_token, refresh_token, token_type, expires_in, user"
//	@Failure		400		{object}	authsdk.APIError		"malformed body"
//	@Failure		401		{object}	authsdk.APIError		"invalid_credentials"
//	@Failure		503		{object}	authsdk.APIError		"store unavailable"
//	@Router			/v1/auth/sign-in [post].
func (h *AuthHandler) HandleSignIn(w http.ResponseWriter, r *http.Request) {
	var req authsdk.SignInRequest
	if err := httpx.DecodeJSON(w, r, &req, maxBodyBytes); err != nil {
		authsdk.ErrInvalidRequest.WriteError(w)
		return
	}

	sess, err := h.SessionService.SignIn(r.Context(), req.Email, req.Password)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, tokenResponse(sess))
}

// HandleRefresh godoc
//
//	@Summary		Rotate tokens
//	@Description	Spends a refresh token and returns a new pair. A refresh token can be spent once; presenting it again is rejected.
//	@Tags			Auth
//	@Accept			json
//	@Produce		json
//	@Param			body	body		authsdk.RefreshRequest	true	"refresh_token"
//	@Success		200		{object}	authsdk.TokenResponse	"access_token, refresh_token, token_type, expires_in, user"
//	@Failure		400		{object}	authsdk.APIError		"malformed body"
//	@Failure		401		{object}	authsdk.APIError		"unauthorized"
//	@Failure		503		{object}	authsdk.APIError		"store unavailable"
//	@Router			/v1/auth/refresh-tokens [post].
func (h *AuthHandler) HandleRefresh(w http.ResponseWriter, r *http.Request) {
	var req authsdk.RefreshRequest
	if err := httpx.DecodeJSON(w, r, &req, maxBodyBytes); err != nil {
		authsdk.ErrInvalidRequest.WriteError(w)
		return
	}

	sess, err := h.SessionService.RefreshTokens(r.Context(), req.RefreshToken)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, tokenResponse(sess))
}

// HandleLogout godoc
//
//	@Summary		Log out
//	@Description	Invalidates the caller's refresh token. The access token stays valid until it expires.
//	@Tags			Auth
//	@Security		BearerAuth
//	@Success		204
//	@Failure		401	{object}	authsdk.APIError	"missing or invalid access token"
//	@Failure		503	{object}	authsdk.APIError	"store unavailable"
//	@Router			/v1/auth/logout [post].
func (h *AuthHandler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	userID, ok := httpx.UserIDFromContext(r.Context())
	if !ok {
		authsdk.ErrUnauthorized.WriteError(w)
		return
	}

	if err := h.SessionService.Logout(r.Context(), userID); err != nil {
		writeServiceError(w, r, err)
		return
	}
	httpx.NoCache(w)
	w.WriteHeader(http.StatusNoContent)
}

// writeServiceError maps service sentinels onto the fixed API errors. The
// cause only reaches the log.
func writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	log := slogx.FromContext(r.Context())

	switch {
	case errors.Is(err, service.ErrInvalidRequest):
		authsdk.ErrInvalidRequest.WriteError(w)
	case errors.Is(err, service.ErrInvalidCredentials):
		authsdk.ErrInvalidCredentials.WriteError(w)
	case errors.Is(err, service.ErrCredentialConflict):
		authsdk.ErrCredentialConflict.WriteError(w)
	case errors.Is(err, service.ErrUnauthorized):
		authsdk.ErrUnauthorized.WriteError(w)
	case errors.Is(err, service.ErrUserNotFound):
		authsdk.ErrNotFound.WriteError(w)
	case errors.Is(err, service.ErrStoreUnavailable):
		log.Error("store unavailable", "err", err)
		authsdk.ErrServerError.WriteError(w)
	default:
		log.Error("request failed", "err", err)
		authsdk.ErrInternal.WriteError(w)
	}
}

func tokenResponse(sess domain.Session) authsdk.TokenResponse {
	return authsdk.TokenResponse{
		AccessToken:  sess.AccessToken,
		RefreshToken: sess.RefreshToken,
		TokenType:    "Bearer",
		ExpiresIn:    int(sess.ExpiresIn.Seconds()),
		User:         userResponse(sess.User),
	}
}

func userResponse(u domain.User) authsdk.UserResponse {
	return authsdk.UserResponse{
		ID:        u.ID,
		Email:     u.Email,
		Username:  u.Username,
		TaskView:  u.TaskView,
		CreatedAt: u.CreatedAt,
	}
}
