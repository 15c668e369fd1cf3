package authorization

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/pkg/errors"

	"github.com/siteguard/siteguard/common/gerror"
	"github.com/siteguard/siteguard/common/logger"
	"github.com/siteguard/siteguard/common/models"
	"github.com/siteguard/siteguard/server/services"
	"github.com/siteguard/siteguard/server/store"
)

// DefaultDecisionTTL applies when no TTL is configured. Decisions go stale
// the moment a grant changes, so the TTL only bounds staleness when an
// invalidation was missed.
const DefaultDecisionTTL = DecisionTTL(5 * time.Minute)

// DecisionTTL is how long cached decisions live.
type DecisionTTL time.Duration

// AuthorizationService is the decision engine. It is pure with respect to
// the store snapshot: no state is held between checks beyond the best-effort
// decision cache.
type AuthorizationService struct {
	userStore       store.UserStore
	groupStore      store.GroupStore
	resourceStore   store.ResourceStore
	grantStore      store.GrantStore
	auditEventStore store.AuditEventStore
	membership      services.MembershipService
	hierarchy       services.HierarchyService
	cache           services.CacheService
	decisionTTL     time.Duration
	clock           clock.Clock
	logger.Log
}

func NewAuthorizationService(
	userStore store.UserStore,
	groupStore store.GroupStore,
	resourceStore store.ResourceStore,
	grantStore store.GrantStore,
	auditEventStore store.AuditEventStore,
	membership services.MembershipService,
	hierarchy services.HierarchyService,
	cache services.CacheService,
	decisionTTL DecisionTTL,
	clk clock.Clock,
	logFactory logger.LogFactory,
) *AuthorizationService {
	if decisionTTL <= 0 {
		decisionTTL = DefaultDecisionTTL
	}
	return &AuthorizationService{
		userStore:       userStore,
		groupStore:      groupStore,
		resourceStore:   resourceStore,
		grantStore:      grantStore,
		auditEventStore: auditEventStore,
		membership:      membership,
		hierarchy:       hierarchy,
		cache:           cache,
		decisionTTL:     time.Duration(decisionTTL),
		clock:           clk,
		Log:             logFactory("AuthorizationService"),
	}
}

// Check decides whether the user may exercise the permission on the resource.
func (s *AuthorizationService) Check(
	ctx context.Context,
	userID models.UserID,
	resourceID models.ResourceID,
	permission models.Permission,
) (models.Decision, error) {
	if !models.IsValidResourceKind(resourceID.Kind()) {
		return models.DecisionDenied, gerror.NewErrValidationFailed(fmt.Sprintf("unknown resource kind %q", resourceID.Kind()))
	}
	if !models.IsValidPermission(permission) {
		return models.DecisionDenied, gerror.NewErrValidationFailed(fmt.Sprintf("unknown permission %q", permission))
	}

	user, err := s.userStore.Read(ctx, nil, userID)
	if err != nil {
		return models.DecisionDenied, errors.Wrap(err, "error reading user")
	}
	if user.Disabled {
		s.Warnf("DENIED %s (account disabled) %s on %s", userID, permission, resourceID)
		return models.DecisionDenied, nil
	}
	// Superuser bypass consults no other state and is never cached.
	if user.IsAdmin {
		return models.DecisionAllowedAll, nil
	}

	key := services.DecisionCacheKey(userID, resourceID, permission)
	if cached, ok := s.cache.Get(ctx, key); ok {
		if decision, ok := cached.(models.Decision); ok {
			return decision, nil
		}
	}

	result, err := s.evaluate(ctx, user, resourceID, permission)
	if err != nil {
		return models.DecisionDenied, err
	}
	s.cache.Set(ctx, key, result.decision, s.decisionTTL)

	if result.decision.Allowed {
		s.Infof("ALLOWED %s to %s on %s (fields: %v)", userID, permission, resourceID, result.decision.Fields)
	} else {
		s.Infof("DENIED %s to %s on %s", userID, permission, resourceID)
	}
	return result.decision, nil
}

// BulkCheck returns one decision per request, in request order.
func (s *AuthorizationService) BulkCheck(
	ctx context.Context,
	userID models.UserID,
	requests []models.CheckRequest,
) ([]models.Decision, error) {
	decisions := make([]models.Decision, len(requests))
	for i, request := range requests {
		decision, err := s.Check(ctx, userID, request.ResourceID, request.Permission)
		if err != nil {
			return nil, err
		}
		decisions[i] = decision
	}
	return decisions, nil
}

// CheckOrError raises a denied decision as gerror.ErrForbidden, records a
// denied audit event, and describes the permissions the user does hold on
// the resource. Routine Check denials are not audited; only this path is.
func (s *AuthorizationService) CheckOrError(
	ctx context.Context,
	userID models.UserID,
	resourceID models.ResourceID,
	permission models.Permission,
) (models.Decision, error) {
	decision, err := s.Check(ctx, userID, resourceID, permission)
	if err != nil {
		return models.DecisionDenied, err
	}
	if decision.Allowed {
		return decision, nil
	}

	held := s.describeHeldPermissions(ctx, userID, resourceID)
	detail := fmt.Sprintf("requires %s; holds [%s]", permission, strings.Join(held, ", "))
	event := models.NewDeniedAuditEvent(models.NewTime(s.clock.Now()), userID, resourceID, permission, detail)
	auditErr := s.auditEventStore.Create(ctx, nil, event)
	if auditErr != nil {
		s.Errorf("Error appending denied audit event: %v", auditErr)
	}

	return models.DecisionDenied, gerror.NewErrForbidden("permission denied").
		EDetail("required_permission", permission).
		EDetail("resource_id", resourceID).
		EDetail("held_permissions", held)
}

// describeHeldPermissions summarizes the applicable allow grants on a
// resource as "permission via source" strings. Best effort: a failure here
// only degrades the denial message.
func (s *AuthorizationService) describeHeldPermissions(ctx context.Context, userID models.UserID, resourceID models.ResourceID) []string {
	effective, err := s.Effective(ctx, userID, resourceID)
	if err != nil {
		s.Errorf("Error describing held permissions for %s on %s: %v", userID, resourceID, err)
		return nil
	}
	var held []string
	for _, entry := range effective {
		if !entry.Applicable || entry.Grant.Effect != models.EffectAllow || entry.Grant.Permission == models.PermissionMember {
			continue
		}
		source := "direct"
		if entry.Origin == models.GrantOriginViaGroup {
			source = fmt.Sprintf("group %s", entry.GroupName)
		}
		held = append(held, fmt.Sprintf("%s via %s", entry.Grant.Permission, source))
	}
	return held
}

// outcome separates an explicit deny from the default deny, which the
// inheritance tree's annotations need to distinguish.
type outcome struct {
	decision     models.Decision
	explicitDeny bool
}

// evaluate runs the gathering and conflict-resolution algorithm for a
// non-superuser, non-disabled user. Deny is considered before allow; a
// non-inherited grant on an ancestor is skipped; allow field lists union,
// collapsing to unrestricted if any applicable allow carries no field list.
func (s *AuthorizationService) evaluate(
	ctx context.Context,
	user *models.User,
	resourceID models.ResourceID,
	permission models.Permission,
) (outcome, error) {
	groups, err := s.membership.GroupsOf(ctx, user.ID)
	if err != nil {
		return outcome{decision: models.DecisionDenied}, err
	}
	ancestors, err := s.hierarchy.Ancestors(ctx, resourceID)
	if err != nil {
		return outcome{decision: models.DecisionDenied}, err
	}
	satisfying := models.SatisfyingPermissions(permission)

	grantees := make([]models.ResourceID, 0, len(groups)+1)
	grantees = append(grantees, user.ID.ResourceID)
	for _, groupID := range groups {
		grantees = append(grantees, groupID.ResourceID)
	}
	resources := make([]models.ResourceID, 0, len(ancestors))
	depths := make(map[models.ResourceID]int, len(ancestors))
	for _, ancestor := range ancestors {
		resources = append(resources, ancestor.ID)
		depths[ancestor.ID] = ancestor.Depth
	}

	grants, err := s.grantStore.ListForDecision(ctx, nil, grantees, resources, satisfying)
	if err != nil {
		return outcome{decision: models.DecisionDenied}, errors.Wrap(err, "error listing grants for decision")
	}

	applicable := grants[:0:0]
	for _, grant := range grants {
		if depths[grant.ResourceID] > 0 && !grant.Inherit {
			continue
		}
		applicable = append(applicable, grant)
	}

	// Deny pass.
	for _, grant := range applicable {
		if grant.Effect == models.EffectDeny {
			return outcome{decision: models.DecisionDenied, explicitDeny: true}, nil
		}
	}

	// Allow pass.
	var (
		allowed bool
		fields  FieldUnion
	)
	for _, grant := range applicable {
		allowed = true
		if grant.Fields == nil {
			return outcome{decision: models.DecisionAllowedAll}, nil
		}
		fields.Add(grant.Fields)
	}
	if allowed {
		return outcome{decision: models.Decision{Allowed: true, Fields: fields.List()}}, nil
	}

	// Resource defaults: catalog kinds are readable by every authenticated
	// user; their mutating permissions stay superuser-only.
	if models.IsCatalogKind(resourceID.Kind()) && permission == models.PermissionRead {
		return outcome{decision: models.DecisionAllowedAll}, nil
	}

	return outcome{decision: models.DecisionDenied}, nil
}

// FieldUnion accumulates field lists from allow grants.
type FieldUnion struct {
	fields map[string]bool
}

func (u *FieldUnion) Add(fields models.FieldList) {
	if u.fields == nil {
		u.fields = make(map[string]bool)
	}
	for _, field := range fields {
		u.fields[field] = true
	}
}

// List returns the union as a sorted field list, or nil if nothing was added.
func (u *FieldUnion) List() models.FieldList {
	if len(u.fields) == 0 {
		return nil
	}
	fields := make([]string, 0, len(u.fields))
	for field := range u.fields {
		fields = append(fields, field)
	}
	return models.NewFieldList(fields)
}
