package server

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/siteguard/siteguard/common/gerror"
	"github.com/siteguard/siteguard/common/logger"
	"github.com/siteguard/siteguard/common/models"
	"github.com/siteguard/siteguard/server/dto"
	"github.com/siteguard/siteguard/server/services"
)

type UserAPI struct {
	*APIBase
	userService services.UserService
}

func NewUserAPI(
	userService services.UserService,
	authorizationService services.AuthorizationService,
	logFactory logger.LogFactory,
) *UserAPI {
	return &UserAPI{
		APIBase:     NewAPIBase(authorizationService, logFactory("UserAPI")),
		userService: userService,
	}
}

// Create registers a user account. Restricted to superusers.
func (a *UserAPI) Create(w http.ResponseWriter, r *http.Request) {
	callerID, ok := a.MustAuthenticate(w, r)
	if !ok {
		return
	}
	caller, err := a.userService.Read(r.Context(), nil, callerID)
	if err != nil {
		a.Error(w, r, err)
		return
	}
	if !caller.IsAdmin {
		a.Error(w, r, gerror.NewErrForbidden("creating users is restricted to superusers"))
		return
	}
	create := &dto.CreateUser{}
	err = json.NewDecoder(r.Body).Decode(create)
	if err != nil {
		a.Error(w, r, gerror.NewErrValidationFailed("invalid request body").Wrap(err))
		return
	}
	user, err := a.userService.Create(r.Context(), nil, callerID, create)
	if err != nil {
		a.Error(w, r, err)
		return
	}
	a.Created(w, r, user)
}

// Get reads a user account. Requires read on the account, or self.
func (a *UserAPI) Get(w http.ResponseWriter, r *http.Request) {
	callerID, ok := a.MustAuthenticate(w, r)
	if !ok {
		return
	}
	targetID, ok := a.parseUserID(w, r)
	if !ok {
		return
	}
	if targetID != callerID {
		if !a.MustBeAuthorized(w, r, callerID, targetID.ResourceID, models.PermissionRead) {
			return
		}
	}
	user, err := a.userService.Read(r.Context(), nil, targetID)
	if err != nil {
		a.Error(w, r, err)
		return
	}
	a.JSON(w, r, user)
}

// GetMe reads the caller's own account.
func (a *UserAPI) GetMe(w http.ResponseWriter, r *http.Request) {
	callerID, ok := a.MustAuthenticate(w, r)
	if !ok {
		return
	}
	user, err := a.userService.Read(r.Context(), nil, callerID)
	if err != nil {
		a.Error(w, r, err)
		return
	}
	a.JSON(w, r, user)
}

// Update applies a partial update to a user account. The user service
// enforces who may change which fields.
func (a *UserAPI) Update(w http.ResponseWriter, r *http.Request) {
	callerID, ok := a.MustAuthenticate(w, r)
	if !ok {
		return
	}
	targetID, ok := a.parseUserID(w, r)
	if !ok {
		return
	}
	update := &dto.UpdateUser{}
	err := json.NewDecoder(r.Body).Decode(update)
	if err != nil {
		a.Error(w, r, gerror.NewErrValidationFailed("invalid request body").Wrap(err))
		return
	}
	user, err := a.userService.Update(r.Context(), callerID, targetID, update)
	if err != nil {
		a.Error(w, r, err)
		return
	}
	a.JSON(w, r, user)
}

// List pages through user accounts. Restricted to superusers.
func (a *UserAPI) List(w http.ResponseWriter, r *http.Request) {
	callerID, ok := a.MustAuthenticate(w, r)
	if !ok {
		return
	}
	caller, err := a.userService.Read(r.Context(), nil, callerID)
	if err != nil {
		a.Error(w, r, err)
		return
	}
	if !caller.IsAdmin {
		a.Error(w, r, gerror.NewErrForbidden("listing users is restricted to superusers"))
		return
	}
	users, err := a.userService.List(r.Context(), ParseListOptions(r))
	if err != nil {
		a.Error(w, r, err)
		return
	}
	a.JSON(w, r, users)
}

func (a *UserAPI) parseUserID(w http.ResponseWriter, r *http.Request) (models.UserID, bool) {
	id, err := models.ParseResourceID(chi.URLParam(r, "user_id"))
	if err != nil || id.Kind() != models.UserResourceKind {
		a.Error(w, r, gerror.NewErrValidationFailed("user_id must identify a user"))
		return models.UserID{}, false
	}
	return models.UserIDFromResourceID(id), true
}
