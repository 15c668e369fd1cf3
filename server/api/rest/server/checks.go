package server

import (
	"encoding/json"
	"net/http"

	"github.com/siteguard/siteguard/common/gerror"
	"github.com/siteguard/siteguard/common/logger"
	"github.com/siteguard/siteguard/common/models"
	"github.com/siteguard/siteguard/server/api/rest/documents"
	"github.com/siteguard/siteguard/server/services"
)

type CheckAPI struct {
	*APIBase
}

func NewCheckAPI(authorizationService services.AuthorizationService, logFactory logger.LogFactory) *CheckAPI {
	return &CheckAPI{
		APIBase: NewAPIBase(authorizationService, logFactory("CheckAPI")),
	}
}

// Check decides a single (resource, permission) pair for the caller. The
// denied outcome is a 200 with allowed=false, not an error.
func (a *CheckAPI) Check(w http.ResponseWriter, r *http.Request) {
	userID, ok := a.MustAuthenticate(w, r)
	if !ok {
		return
	}
	resourceID, err := models.ParseResourceID(r.URL.Query().Get("resource_id"))
	if err != nil {
		a.Error(w, r, gerror.NewErrInvalidQueryParameter("resource_id must be a kind:id pair").Wrap(err))
		return
	}
	permission := models.Permission(r.URL.Query().Get("permission"))

	decision, err := a.authorizationService.Check(r.Context(), userID, resourceID, permission)
	if err != nil {
		a.Error(w, r, err)
		return
	}
	a.JSON(w, r, decision)
}

// BulkCheck decides an ordered list of (resource, permission) pairs for the
// caller, returning one decision per pair in request order.
func (a *CheckAPI) BulkCheck(w http.ResponseWriter, r *http.Request) {
	userID, ok := a.MustAuthenticate(w, r)
	if !ok {
		return
	}
	req := &documents.BulkCheckRequest{}
	err := json.NewDecoder(r.Body).Decode(req)
	if err != nil {
		a.Error(w, r, gerror.NewErrValidationFailed("invalid request body").Wrap(err))
		return
	}
	decisions, err := a.authorizationService.BulkCheck(r.Context(), userID, req.Checks)
	if err != nil {
		a.Error(w, r, err)
		return
	}
	a.JSON(w, r, &documents.BulkCheckResponse{Decisions: decisions})
}
