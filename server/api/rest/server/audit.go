package server

import (
	"net/http"
	"time"

	"github.com/siteguard/siteguard/common/gerror"
	"github.com/siteguard/siteguard/common/logger"
	"github.com/siteguard/siteguard/common/models"
	"github.com/siteguard/siteguard/server/services"
)

type AuditAPI struct {
	*APIBase
	auditService services.AuditService
}

func NewAuditAPI(
	auditService services.AuditService,
	authorizationService services.AuthorizationService,
	logFactory logger.LogFactory,
) *AuditAPI {
	return &AuditAPI{
		APIBase:      NewAPIBase(authorizationService, logFactory("AuditAPI")),
		auditService: auditService,
	}
}

// List pages through the audit log, newest first. The audit service enforces
// the superuser restriction.
func (a *AuditAPI) List(w http.ResponseWriter, r *http.Request) {
	callerID, ok := a.MustAuthenticate(w, r)
	if !ok {
		return
	}
	filter, ok := a.parseFilter(w, r)
	if !ok {
		return
	}
	events, err := a.auditService.List(r.Context(), callerID, filter, ParseListOptions(r))
	if err != nil {
		a.Error(w, r, err)
		return
	}
	a.JSON(w, r, events)
}

func (a *AuditAPI) parseFilter(w http.ResponseWriter, r *http.Request) (models.AuditEventFilter, bool) {
	filter := models.AuditEventFilter{}
	query := r.URL.Query()
	filter.Kind = models.AuditEventKind(query.Get("kind"))
	if raw := query.Get("actor_id"); raw != "" {
		id, err := models.ParseResourceID(raw)
		if err != nil {
			a.Error(w, r, gerror.NewErrInvalidQueryParameter("actor_id must be a kind:id pair").Wrap(err))
			return filter, false
		}
		filter.ActorID = id
	}
	if raw := query.Get("target_id"); raw != "" {
		id, err := models.ParseResourceID(raw)
		if err != nil {
			a.Error(w, r, gerror.NewErrInvalidQueryParameter("target_id must be a kind:id pair").Wrap(err))
			return filter, false
		}
		filter.TargetID = id
	}
	if raw := query.Get("since"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			a.Error(w, r, gerror.NewErrInvalidQueryParameter("since must be an RFC 3339 timestamp").Wrap(err))
			return filter, false
		}
		filter.Since = models.NewTimePtr(t)
	}
	if raw := query.Get("until"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			a.Error(w, r, gerror.NewErrInvalidQueryParameter("until must be an RFC 3339 timestamp").Wrap(err))
			return filter, false
		}
		filter.Until = models.NewTimePtr(t)
	}
	return filter, true
}
