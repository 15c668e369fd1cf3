package server

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/siteguard/siteguard/common/gerror"
	"github.com/siteguard/siteguard/common/logger"
	"github.com/siteguard/siteguard/common/models"
	"github.com/siteguard/siteguard/server/api/rest/documents"
	"github.com/siteguard/siteguard/server/services"
)

type GroupAPI struct {
	*APIBase
	groupService      services.GroupService
	grantService      services.GrantService
	membershipService services.MembershipService
}

func NewGroupAPI(
	groupService services.GroupService,
	grantService services.GrantService,
	membershipService services.MembershipService,
	authorizationService services.AuthorizationService,
	logFactory logger.LogFactory,
) *GroupAPI {
	return &GroupAPI{
		APIBase:           NewAPIBase(authorizationService, logFactory("GroupAPI")),
		groupService:      groupService,
		grantService:      grantService,
		membershipService: membershipService,
	}
}

// Create registers a group. Any authenticated user may create one; the
// creator receives a manage grant on it.
func (a *GroupAPI) Create(w http.ResponseWriter, r *http.Request) {
	callerID, ok := a.MustAuthenticate(w, r)
	if !ok {
		return
	}
	req := &documents.CreateGroupRequest{}
	err := json.NewDecoder(r.Body).Decode(req)
	if err != nil {
		a.Error(w, r, gerror.NewErrValidationFailed("invalid request body").Wrap(err))
		return
	}
	group, err := a.groupService.Create(r.Context(), nil, callerID, req.Name, req.Description)
	if err != nil {
		a.Error(w, r, err)
		return
	}
	a.Created(w, r, group)
}

// Get reads a group. Requires read on it.
func (a *GroupAPI) Get(w http.ResponseWriter, r *http.Request) {
	callerID, ok := a.MustAuthenticate(w, r)
	if !ok {
		return
	}
	groupID, ok := a.parseGroupID(w, r)
	if !ok {
		return
	}
	if !a.MustBeAuthorized(w, r, callerID, groupID.ResourceID, models.PermissionRead) {
		return
	}
	group, err := a.groupService.Read(r.Context(), nil, groupID)
	if err != nil {
		a.Error(w, r, err)
		return
	}
	a.JSON(w, r, group)
}

// Delete removes a group and its memberships. Requires manage on it.
func (a *GroupAPI) Delete(w http.ResponseWriter, r *http.Request) {
	callerID, ok := a.MustAuthenticate(w, r)
	if !ok {
		return
	}
	groupID, ok := a.parseGroupID(w, r)
	if !ok {
		return
	}
	if !a.MustBeAuthorized(w, r, callerID, groupID.ResourceID, models.PermissionManage) {
		return
	}
	err := a.groupService.Delete(r.Context(), nil, callerID, groupID)
	if err != nil {
		a.Error(w, r, err)
		return
	}
	a.NoContent(w, r)
}

// List pages through all groups. Requires an authenticated caller only; the
// group catalog is readable by default.
func (a *GroupAPI) List(w http.ResponseWriter, r *http.Request) {
	_, ok := a.MustAuthenticate(w, r)
	if !ok {
		return
	}
	groups, err := a.groupService.List(r.Context(), ParseListOptions(r))
	if err != nil {
		a.Error(w, r, err)
		return
	}
	a.JSON(w, r, groups)
}

// AddMember adds a user to a group by issuing a membership grant, optionally
// expiring. Requires manage on the group.
func (a *GroupAPI) AddMember(w http.ResponseWriter, r *http.Request) {
	callerID, ok := a.MustAuthenticate(w, r)
	if !ok {
		return
	}
	groupID, ok := a.parseGroupID(w, r)
	if !ok {
		return
	}
	if !a.MustBeAuthorized(w, r, callerID, groupID.ResourceID, models.PermissionManage) {
		return
	}
	req := &documents.AddMemberRequest{}
	err := json.NewDecoder(r.Body).Decode(req)
	if err != nil {
		a.Error(w, r, gerror.NewErrValidationFailed("invalid request body").Wrap(err))
		return
	}
	grant, err := a.grantService.AutoGrantMember(r.Context(), nil, callerID, req.UserID, groupID, req.ExpiresAt)
	if err != nil {
		a.Error(w, r, err)
		return
	}
	a.Created(w, r, grant)
}

// RemoveMember revokes a user's membership grant. Requires manage on the
// group.
func (a *GroupAPI) RemoveMember(w http.ResponseWriter, r *http.Request) {
	callerID, ok := a.MustAuthenticate(w, r)
	if !ok {
		return
	}
	groupID, ok := a.parseGroupID(w, r)
	if !ok {
		return
	}
	if !a.MustBeAuthorized(w, r, callerID, groupID.ResourceID, models.PermissionManage) {
		return
	}
	userID, err := models.ParseResourceID(chi.URLParam(r, "user_id"))
	if err != nil || userID.Kind() != models.UserResourceKind {
		a.Error(w, r, gerror.NewErrValidationFailed("user_id must identify a user"))
		return
	}
	memberships, err := a.membershipService.MembersOf(r.Context(), groupID)
	if err != nil {
		a.Error(w, r, err)
		return
	}
	for _, membership := range memberships {
		if membership.GranteeID == userID {
			err = a.grantService.Revoke(r.Context(), nil, callerID, membership.ID)
			if err != nil {
				a.Error(w, r, err)
				return
			}
			a.NoContent(w, r)
			return
		}
	}
	a.Error(w, r, gerror.NewErrNotFound("membership not found"))
}

// ListMembers lists the membership grants held against a group. Requires
// read on the group.
func (a *GroupAPI) ListMembers(w http.ResponseWriter, r *http.Request) {
	callerID, ok := a.MustAuthenticate(w, r)
	if !ok {
		return
	}
	groupID, ok := a.parseGroupID(w, r)
	if !ok {
		return
	}
	if !a.MustBeAuthorized(w, r, callerID, groupID.ResourceID, models.PermissionRead) {
		return
	}
	memberships, err := a.membershipService.MembersOf(r.Context(), groupID)
	if err != nil {
		a.Error(w, r, err)
		return
	}
	a.JSON(w, r, memberships)
}

func (a *GroupAPI) parseGroupID(w http.ResponseWriter, r *http.Request) (models.GroupID, bool) {
	id, err := models.ParseResourceID(chi.URLParam(r, "group_id"))
	if err != nil || id.Kind() != models.GroupResourceKind {
		a.Error(w, r, gerror.NewErrValidationFailed("group_id must identify a group"))
		return models.GroupID{}, false
	}
	return models.GroupIDFromResourceID(id), true
}
