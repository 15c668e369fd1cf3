//go:build wireinject
// +build wireinject

package server_test

import (
	"github.com/benbjohnson/clock"
	"github.com/google/wire"

	"github.com/siteguard/siteguard/common/logger"
	rest_server "github.com/siteguard/siteguard/server/api/rest/server"
	"github.com/siteguard/siteguard/server/app"
	"github.com/siteguard/siteguard/server/services"
	"github.com/siteguard/siteguard/server/services/audit"
	"github.com/siteguard/siteguard/server/services/authorization"
	"github.com/siteguard/siteguard/server/services/expiry"
	"github.com/siteguard/siteguard/server/services/grant"
	"github.com/siteguard/siteguard/server/services/group"
	"github.com/siteguard/siteguard/server/services/hierarchy"
	"github.com/siteguard/siteguard/server/services/membership"
	"github.com/siteguard/siteguard/server/services/notification"
	"github.com/siteguard/siteguard/server/services/resource"
	"github.com/siteguard/siteguard/server/services/user"
	"github.com/siteguard/siteguard/server/store"
	"github.com/siteguard/siteguard/server/store/audit_events"
	"github.com/siteguard/siteguard/server/store/grants"
	"github.com/siteguard/siteguard/server/store/groups"
	"github.com/siteguard/siteguard/server/store/resources"
	"github.com/siteguard/siteguard/server/store/store_test"
	"github.com/siteguard/siteguard/server/store/users"
)

func New(config *app.ServerConfig) (*TestServer, func(), error) {
	panic(wire.Build(
		NewTestServer,
		wire.FieldsOf(new(*app.ServerConfig),
			"JWTSecret", "TokenTTL", "CacheConfig", "DecisionTTL", "MembershipTTL", "AncestorsTTL", "ExpiryConfig", "LogLevels"),
		store_test.Connect,

		users.NewStore,
		wire.Bind(new(store.UserStore), new(*users.UserStore)),
		groups.NewStore,
		wire.Bind(new(store.GroupStore), new(*groups.GroupStore)),
		resources.NewStore,
		wire.Bind(new(store.ResourceStore), new(*resources.ResourceStore)),
		grants.NewStore,
		wire.Bind(new(store.GrantStore), new(*grants.GrantStore)),
		audit_events.NewStore,
		wire.Bind(new(store.AuditEventStore), new(*audit_events.AuditEventStore)),

		app.CacheServiceFactory,
		membership.NewMembershipService,
		wire.Bind(new(services.MembershipService), new(*membership.MembershipService)),
		hierarchy.NewHierarchyService,
		wire.Bind(new(services.HierarchyService), new(*hierarchy.HierarchyService)),
		authorization.NewAuthorizationService,
		wire.Bind(new(services.AuthorizationService), new(*authorization.AuthorizationService)),
		grant.NewGrantService,
		wire.Bind(new(services.GrantService), new(*grant.GrantService)),
		audit.NewAuditService,
		wire.Bind(new(services.AuditService), new(*audit.AuditService)),
		user.NewUserService,
		wire.Bind(new(services.UserService), new(*user.UserService)),
		group.NewGroupService,
		wire.Bind(new(services.GroupService), new(*group.GroupService)),
		resource.NewResourceService,
		wire.Bind(new(services.ResourceService), new(*resource.ResourceService)),
		notification.NewLogNotifier,
		wire.Bind(new(services.Notifier), new(*notification.LogNotifier)),
		expiry.NewExpiryService,

		rest_server.NewAuthenticationAPI,
		rest_server.NewCheckAPI,
		rest_server.NewGrantAPI,
		rest_server.NewIntrospectionAPI,
		rest_server.NewAuditAPI,
		rest_server.NewUserAPI,
		rest_server.NewGroupAPI,
		rest_server.NewResourceAPI,
		rest_server.NewCoreAPIRouter,

		logger.NewLogRegistry,
		logger.MakeLogrusLogFactoryStdOut,
		clock.New,
	))
}
