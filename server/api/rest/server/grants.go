package server

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/go-chi/chi/v5"

	"github.com/siteguard/siteguard/common/gerror"
	"github.com/siteguard/siteguard/common/logger"
	"github.com/siteguard/siteguard/common/models"
	"github.com/siteguard/siteguard/server/api/rest/documents"
	"github.com/siteguard/siteguard/server/services"
)

// DefaultExpiringWithinDays is the look-ahead for the expiring-grants
// listing when the query does not supply one.
const DefaultExpiringWithinDays = 7

type GrantAPI struct {
	*APIBase
	grantService services.GrantService
	userService  services.UserService
	clock        clock.Clock
}

func NewGrantAPI(
	grantService services.GrantService,
	userService services.UserService,
	authorizationService services.AuthorizationService,
	clk clock.Clock,
	logFactory logger.LogFactory,
) *GrantAPI {
	return &GrantAPI{
		APIBase:      NewAPIBase(authorizationService, logFactory("GrantAPI")),
		grantService: grantService,
		userService:  userService,
		clock:        clk,
	}
}

// Create issues a grant. The caller must hold manage on the target resource.
func (a *GrantAPI) Create(w http.ResponseWriter, r *http.Request) {
	userID, ok := a.MustAuthenticate(w, r)
	if !ok {
		return
	}
	req := &documents.CreateGrantRequest{}
	err := json.NewDecoder(r.Body).Decode(req)
	if err != nil {
		a.Error(w, r, gerror.NewErrValidationFailed("invalid request body").Wrap(err))
		return
	}
	if !a.MustBeAuthorized(w, r, userID, req.ResourceID, models.PermissionManage) {
		return
	}

	now := models.NewTime(a.clock.Now())
	var grant *models.Grant
	switch req.GranteeType {
	case models.UserGranteeType:
		grant = models.NewUserGrant(now, models.UserIDFromResourceID(req.GranteeID), req.ResourceID,
			req.Permission, req.Effect, req.Inherit, req.Fields, req.ExpiresAt, userID)
	case models.GroupGranteeType:
		grant = models.NewGroupGrant(now, models.GroupIDFromResourceID(req.GranteeID), req.ResourceID,
			req.Permission, req.Effect, req.Inherit, req.Fields, req.ExpiresAt, userID)
	default:
		a.Error(w, r, gerror.NewErrValidationFailed("grantee_type must be user or group"))
		return
	}
	grant, err = a.grantService.Issue(r.Context(), nil, grant)
	if err != nil {
		a.Error(w, r, err)
		return
	}
	a.Created(w, r, grant)
}

// Get reads a grant. Allowed for the grant's own grantee and for callers
// holding manage on the target resource.
func (a *GrantAPI) Get(w http.ResponseWriter, r *http.Request) {
	userID, ok := a.MustAuthenticate(w, r)
	if !ok {
		return
	}
	grantID, ok := a.parseGrantID(w, r)
	if !ok {
		return
	}
	grant, err := a.grantService.Read(r.Context(), nil, grantID)
	if err != nil {
		a.Error(w, r, err)
		return
	}
	if grant.GranteeID != userID.ResourceID {
		if !a.MustBeAuthorized(w, r, userID, grant.ResourceID, models.PermissionManage) {
			return
		}
	}
	a.JSON(w, r, grant)
}

// Delete revokes a grant. The caller must hold manage on the target resource.
func (a *GrantAPI) Delete(w http.ResponseWriter, r *http.Request) {
	userID, ok := a.MustAuthenticate(w, r)
	if !ok {
		return
	}
	grantID, ok := a.parseGrantID(w, r)
	if !ok {
		return
	}
	grant, err := a.grantService.Read(r.Context(), nil, grantID)
	if err != nil {
		a.Error(w, r, err)
		return
	}
	if !a.MustBeAuthorized(w, r, userID, grant.ResourceID, models.PermissionManage) {
		return
	}
	err = a.grantService.Revoke(r.Context(), nil, userID, grantID)
	if err != nil {
		a.Error(w, r, err)
		return
	}
	a.NoContent(w, r)
}

// ListForResource lists the grants attached directly to a resource. The
// caller must hold manage on it.
func (a *GrantAPI) ListForResource(w http.ResponseWriter, r *http.Request) {
	userID, ok := a.MustAuthenticate(w, r)
	if !ok {
		return
	}
	resourceID, err := models.ParseResourceID(chi.URLParam(r, "resource_id"))
	if err != nil {
		a.Error(w, r, gerror.NewErrValidationFailed("resource_id must be a kind:id pair").Wrap(err))
		return
	}
	if !a.MustBeAuthorized(w, r, userID, resourceID, models.PermissionManage) {
		return
	}
	grants, err := a.grantService.ListForResource(r.Context(), resourceID, ParseListOptions(r))
	if err != nil {
		a.Error(w, r, err)
		return
	}
	a.JSON(w, r, grants)
}

// ListMine lists the caller's grants, direct and via groups.
func (a *GrantAPI) ListMine(w http.ResponseWriter, r *http.Request) {
	userID, ok := a.MustAuthenticate(w, r)
	if !ok {
		return
	}
	grants, err := a.grantService.ListForUser(r.Context(), userID)
	if err != nil {
		a.Error(w, r, err)
		return
	}
	a.JSON(w, r, grants)
}

// ListExpiring lists grants expiring within the requested window. Restricted
// to superusers.
func (a *GrantAPI) ListExpiring(w http.ResponseWriter, r *http.Request) {
	userID, ok := a.MustAuthenticate(w, r)
	if !ok {
		return
	}
	caller, err := a.userService.Read(r.Context(), nil, userID)
	if err != nil {
		a.Error(w, r, err)
		return
	}
	if !caller.IsAdmin {
		a.Error(w, r, gerror.NewErrForbidden("the expiring grants listing is restricted to superusers"))
		return
	}
	withinDays := DefaultExpiringWithinDays
	if days, err := strconv.Atoi(r.URL.Query().Get("within_days")); err == nil && days > 0 {
		withinDays = days
	}
	grants, err := a.grantService.ListExpiring(r.Context(), time.Duration(withinDays)*24*time.Hour)
	if err != nil {
		a.Error(w, r, err)
		return
	}
	a.JSON(w, r, grants)
}

func (a *GrantAPI) parseGrantID(w http.ResponseWriter, r *http.Request) (models.GrantID, bool) {
	id, err := models.ParseResourceID(chi.URLParam(r, "grant_id"))
	if err != nil || id.Kind() != models.GrantResourceKind {
		a.Error(w, r, gerror.NewErrValidationFailed("grant_id must identify a grant"))
		return models.GrantID{}, false
	}
	return models.GrantIDFromResourceID(id), true
}
