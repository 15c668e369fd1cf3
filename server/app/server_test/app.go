package server_test

import (
	"github.com/benbjohnson/clock"

	"github.com/siteguard/siteguard/common/logger"
	"github.com/siteguard/siteguard/server/api/rest/server"
	"github.com/siteguard/siteguard/server/services"
	"github.com/siteguard/siteguard/server/services/expiry"
	"github.com/siteguard/siteguard/server/store"
)

// TestServer exposes the full wired service graph for tests, backed by an
// in-memory database. The HTTP layer is represented by the router; tests
// that need a live server wrap it in an httptest.Server.
type TestServer struct {
	DB              *store.DB
	UserStore       store.UserStore
	GroupStore      store.GroupStore
	ResourceStore   store.ResourceStore
	GrantStore      store.GrantStore
	AuditEventStore store.AuditEventStore

	CacheService         services.CacheService
	MembershipService    services.MembershipService
	HierarchyService     services.HierarchyService
	AuthorizationService services.AuthorizationService
	GrantService         services.GrantService
	AuditService         services.AuditService
	UserService          services.UserService
	GroupService         services.GroupService
	ResourceService      services.ResourceService
	ExpiryService        *expiry.ExpiryService

	CoreAPIRouter *server.CoreAPIRouter
	Clock         clock.Clock
	LogFactory    logger.LogFactory
}

func NewTestServer(
	db *store.DB,
	userStore store.UserStore,
	groupStore store.GroupStore,
	resourceStore store.ResourceStore,
	grantStore store.GrantStore,
	auditEventStore store.AuditEventStore,
	cacheService services.CacheService,
	membershipService services.MembershipService,
	hierarchyService services.HierarchyService,
	authorizationService services.AuthorizationService,
	grantService services.GrantService,
	auditService services.AuditService,
	userService services.UserService,
	groupService services.GroupService,
	resourceService services.ResourceService,
	expiryService *expiry.ExpiryService,
	coreAPIRouter *server.CoreAPIRouter,
	clk clock.Clock,
	logFactory logger.LogFactory,
) *TestServer {
	return &TestServer{
		DB:                   db,
		UserStore:            userStore,
		GroupStore:           groupStore,
		ResourceStore:        resourceStore,
		GrantStore:           grantStore,
		AuditEventStore:      auditEventStore,
		CacheService:         cacheService,
		MembershipService:    membershipService,
		HierarchyService:     hierarchyService,
		AuthorizationService: authorizationService,
		GrantService:         grantService,
		AuditService:         auditService,
		UserService:          userService,
		GroupService:         groupService,
		ResourceService:      resourceService,
		ExpiryService:        expiryService,
		CoreAPIRouter:        coreAPIRouter,
		Clock:                clk,
		LogFactory:           logFactory,
	}
}
