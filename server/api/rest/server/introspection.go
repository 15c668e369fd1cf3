package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/siteguard/siteguard/common/gerror"
	"github.com/siteguard/siteguard/common/logger"
	"github.com/siteguard/siteguard/common/models"
	"github.com/siteguard/siteguard/server/services"
)

type IntrospectionAPI struct {
	*APIBase
	hierarchyService services.HierarchyService
}

func NewIntrospectionAPI(
	authorizationService services.AuthorizationService,
	hierarchyService services.HierarchyService,
	logFactory logger.LogFactory,
) *IntrospectionAPI {
	return &IntrospectionAPI{
		APIBase:          NewAPIBase(authorizationService, logFactory("IntrospectionAPI")),
		hierarchyService: hierarchyService,
	}
}

// Effective explains a decision: every grant gathered for the user over the
// resource's inheritance chain, annotated with origin, depth and
// applicability. Callers may inspect themselves; inspecting another user
// requires manage on the resource.
func (a *IntrospectionAPI) Effective(w http.ResponseWriter, r *http.Request) {
	callerID, ok := a.MustAuthenticate(w, r)
	if !ok {
		return
	}
	targetID, ok := a.parseUserID(w, r)
	if !ok {
		return
	}
	resourceID, err := models.ParseResourceID(r.URL.Query().Get("resource_id"))
	if err != nil {
		a.Error(w, r, gerror.NewErrInvalidQueryParameter("resource_id must be a kind:id pair").Wrap(err))
		return
	}
	if targetID != callerID {
		if !a.MustBeAuthorized(w, r, callerID, resourceID, models.PermissionManage) {
			return
		}
	}
	grants, err := a.authorizationService.Effective(r.Context(), targetID, resourceID)
	if err != nil {
		a.Error(w, r, err)
		return
	}
	a.JSON(w, r, grants)
}

// Matrix builds the who-can-do-what table for a resource. Requires manage.
func (a *IntrospectionAPI) Matrix(w http.ResponseWriter, r *http.Request) {
	callerID, ok := a.MustAuthenticate(w, r)
	if !ok {
		return
	}
	resourceID, ok := a.parseResourceID(w, r)
	if !ok {
		return
	}
	if !a.MustBeAuthorized(w, r, callerID, resourceID, models.PermissionManage) {
		return
	}
	rows, err := a.authorizationService.Matrix(r.Context(), resourceID)
	if err != nil {
		a.Error(w, r, err)
		return
	}
	a.JSON(w, r, rows)
}

// InheritanceChain returns the resource's ancestor chain with display names,
// the resource itself first. Requires read.
func (a *IntrospectionAPI) InheritanceChain(w http.ResponseWriter, r *http.Request) {
	callerID, ok := a.MustAuthenticate(w, r)
	if !ok {
		return
	}
	resourceID, ok := a.parseResourceID(w, r)
	if !ok {
		return
	}
	if !a.MustBeAuthorized(w, r, callerID, resourceID, models.PermissionRead) {
		return
	}
	chain, err := a.hierarchyService.InheritanceChain(r.Context(), resourceID)
	if err != nil {
		a.Error(w, r, err)
		return
	}
	a.JSON(w, r, chain)
}

// InheritanceTree returns the forest of hierarchical resources the caller
// can touch, annotated per node with allowed and denied permissions.
func (a *IntrospectionAPI) InheritanceTree(w http.ResponseWriter, r *http.Request) {
	callerID, ok := a.MustAuthenticate(w, r)
	if !ok {
		return
	}
	forest, err := a.authorizationService.InheritanceTree(r.Context(), callerID)
	if err != nil {
		a.Error(w, r, err)
		return
	}
	a.JSON(w, r, forest)
}

func (a *IntrospectionAPI) parseResourceID(w http.ResponseWriter, r *http.Request) (models.ResourceID, bool) {
	resourceID, err := models.ParseResourceID(chi.URLParam(r, "resource_id"))
	if err != nil {
		a.Error(w, r, gerror.NewErrValidationFailed("resource_id must be a kind:id pair").Wrap(err))
		return models.ResourceID{}, false
	}
	return resourceID, true
}

func (a *IntrospectionAPI) parseUserID(w http.ResponseWriter, r *http.Request) (models.UserID, bool) {
	id, err := models.ParseResourceID(chi.URLParam(r, "user_id"))
	if err != nil || id.Kind() != models.UserResourceKind {
		a.Error(w, r, gerror.NewErrValidationFailed("user_id must identify a user"))
		return models.UserID{}, false
	}
	return models.UserIDFromResourceID(id), true
}
