package http

import (
	"net/http"

	"github.com/aussiebroadwan/taskdeck/internal/auth/service"
	"github.com/aussiebroadwan/taskdeck/pkg/authsdk"
	"github.com/aussiebroadwan/taskdeck/pkg/httpx"
)

type UserHandler struct {
	UserService *service.UserService
}

// ServeHTTP returns the profile of the authenticated user.
//
//	@Summary		Current user
//	@Description	Returns the profile of the user the access token was issued to.
//	@Tags			Users
//	@Security		BearerAuth
//	@Produce		json
//	@Success		200	{object}	authsdk.UserResponse	"id, email, username, task_view, created_at"
//	@Failure		401	{object}	authsdk.APIError		"missing or invalid access token"
//	@Failure		404	{object}	authsdk.APIError		"account no longer exists"
//	@Failure		503	{object}	authsdk.APIError		"store unavailable"
//	@Router			/v1/users/me [get].
func (h *UserHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	userID, ok := httpx.UserIDFromContext(ctx)
	if !ok {
		authsdk.ErrUnauthorized.WriteError(w)
		return
	}

	user, err := h.UserService.GetUserByID(ctx, userID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	httpx.WriteJSON(w, http.StatusOK, userResponse(user))
}
