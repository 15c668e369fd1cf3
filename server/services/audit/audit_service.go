package audit

import (
	"context"

	"github.com/pkg/errors"

	"github.com/siteguard/siteguard/common/gerror"
	"github.com/siteguard/siteguard/common/logger"
	"github.com/siteguard/siteguard/common/models"
	"github.com/siteguard/siteguard/server/store"
)

// AuditService fronts the append-only audit log. Writers append through
// their own transactions; this service only guards read access.
type AuditService struct {
	userStore       store.UserStore
	auditEventStore store.AuditEventStore
	logger.Log
}

func NewAuditService(
	userStore store.UserStore,
	auditEventStore store.AuditEventStore,
	logFactory logger.LogFactory,
) *AuditService {
	return &AuditService{
		userStore:       userStore,
		auditEventStore: auditEventStore,
		Log:             logFactory("AuditService"),
	}
}

// List pages through audit events matching the filter, newest first. Only
// superusers may read the audit log.
func (s *AuditService) List(
	ctx context.Context,
	callerID models.UserID,
	filter models.AuditEventFilter,
	opts models.ListOptions,
) ([]*models.AuditEvent, error) {
	caller, err := s.userStore.Read(ctx, nil, callerID)
	if err != nil {
		return nil, errors.Wrap(err, "error reading caller")
	}
	if !caller.IsAdmin {
		return nil, gerror.NewErrForbidden("the audit log is restricted to superusers")
	}
	if filter.Kind != "" && !filter.Kind.Valid() {
		return nil, gerror.NewErrInvalidQueryParameter("unknown audit event kind")
	}
	return s.auditEventStore.List(ctx, nil, filter, opts)
}
