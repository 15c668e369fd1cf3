package server

import (
	"encoding/json"
	"net/http"

	"github.com/benbjohnson/clock"
	"github.com/go-chi/chi/v5"

	"github.com/siteguard/siteguard/common/gerror"
	"github.com/siteguard/siteguard/common/logger"
	"github.com/siteguard/siteguard/common/models"
	"github.com/siteguard/siteguard/server/api/rest/documents"
	"github.com/siteguard/siteguard/server/services"
)

type ResourceAPI struct {
	*APIBase
	resourceService services.ResourceService
	clock           clock.Clock
}

func NewResourceAPI(
	resourceService services.ResourceService,
	authorizationService services.AuthorizationService,
	clk clock.Clock,
	logFactory logger.LogFactory,
) *ResourceAPI {
	return &ResourceAPI{
		APIBase:         NewAPIBase(authorizationService, logFactory("ResourceAPI")),
		resourceService: resourceService,
		clock:           clk,
	}
}

// Create registers a resource with the hierarchy. A root resource (no
// parent) may be registered by any authenticated caller, who becomes its
// manager; registering under a parent requires manage on that parent.
func (a *ResourceAPI) Create(w http.ResponseWriter, r *http.Request) {
	callerID, ok := a.MustAuthenticate(w, r)
	if !ok {
		return
	}
	req := &documents.CreateResourceRequest{}
	err := json.NewDecoder(r.Body).Decode(req)
	if err != nil {
		a.Error(w, r, gerror.NewErrValidationFailed("invalid request body").Wrap(err))
		return
	}
	if !models.IsValidResourceKind(req.Kind) {
		a.Error(w, r, gerror.NewErrValidationFailed("unknown resource kind"))
		return
	}
	if req.ParentID.Valid() {
		if !a.MustBeAuthorized(w, r, callerID, req.ParentID, models.PermissionManage) {
			return
		}
	}
	record := models.NewResourceRecord(models.NewTime(a.clock.Now()), models.NewResourceID(req.Kind), req.Name, req.ParentID)
	record, err = a.resourceService.Create(r.Context(), nil, callerID, record)
	if err != nil {
		a.Error(w, r, err)
		return
	}
	a.Created(w, r, record)
}

// Get reads a resource record. Requires read on it.
func (a *ResourceAPI) Get(w http.ResponseWriter, r *http.Request) {
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
	record, err := a.resourceService.Read(r.Context(), nil, resourceID)
	if err != nil {
		a.Error(w, r, err)
		return
	}
	a.JSON(w, r, record)
}

// Reparent moves a resource under a new parent. Requires manage on the
// resource and on the new parent.
func (a *ResourceAPI) Reparent(w http.ResponseWriter, r *http.Request) {
	callerID, ok := a.MustAuthenticate(w, r)
	if !ok {
		return
	}
	resourceID, ok := a.parseResourceID(w, r)
	if !ok {
		return
	}
	req := &documents.ReparentResourceRequest{}
	err := json.NewDecoder(r.Body).Decode(req)
	if err != nil {
		a.Error(w, r, gerror.NewErrValidationFailed("invalid request body").Wrap(err))
		return
	}
	if !a.MustBeAuthorized(w, r, callerID, resourceID, models.PermissionManage) {
		return
	}
	if !a.MustBeAuthorized(w, r, callerID, req.NewParentID, models.PermissionManage) {
		return
	}
	record, err := a.resourceService.Reparent(r.Context(), nil, resourceID, req.NewParentID)
	if err != nil {
		a.Error(w, r, err)
		return
	}
	a.JSON(w, r, record)
}

// Delete removes a resource record and the grants attached to it. Requires
// manage on it.
func (a *ResourceAPI) Delete(w http.ResponseWriter, r *http.Request) {
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
	err := a.resourceService.Delete(r.Context(), nil, resourceID)
	if err != nil {
		a.Error(w, r, err)
		return
	}
	a.NoContent(w, r)
}

func (a *ResourceAPI) parseResourceID(w http.ResponseWriter, r *http.Request) (models.ResourceID, bool) {
	resourceID, err := models.ParseResourceID(chi.URLParam(r, "resource_id"))
	if err != nil {
		a.Error(w, r, gerror.NewErrValidationFailed("resource_id must be a kind:id pair").Wrap(err))
		return models.ResourceID{}, false
	}
	return resourceID, true
}
