package server

import (
	"fmt"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/siteguard/siteguard/common/logger"
	sgmiddleware "github.com/siteguard/siteguard/server/api/rest/middleware"
)

// JWTSecret is the HMAC key bearer tokens are signed with.
type JWTSecret []byte

type CoreAPIServerConfig struct {
	HTTPServerConfig
}

type CoreAPIServer struct {
	APIServer
}

func NewCoreAPIServer(router *CoreAPIRouter, config CoreAPIServerConfig, httpServerFactory HTTPServerFactory, logFactory logger.LogFactory) (*CoreAPIServer, error) {
	httpServer, err := httpServerFactory(router, config.HTTPServerConfig, logFactory("CoreAPIServer"))
	if err != nil {
		return nil, fmt.Errorf("error creating HTTP server: %w", err)
	}
	return &CoreAPIServer{
		APIServer: httpServer,
	}, nil
}

type CoreAPIRouter struct {
	chi.Router
}

func NewCoreAPIRouter(
	authentication *AuthenticationAPI,
	check *CheckAPI,
	grant *GrantAPI,
	introspection *IntrospectionAPI,
	audit *AuditAPI,
	user *UserAPI,
	group *GroupAPI,
	resource *ResourceAPI,
	secret JWTSecret,
	logFactory logger.LogFactory) *CoreAPIRouter {

	logger := logFactory("CoreAPIRouter").
		WithField("version", "v1")

	middleware.DefaultLogger = middleware.RequestLogger(&middleware.DefaultLogFormatter{Logger: logger, NoColor: true})
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Compress(6))
	r.Use(middleware.Timeout(60 * time.Second))

	r.Route("/api", func(r chi.Router) {

		r.Use(cors.Handler(cors.Options{
			AllowedOrigins:   []string{"http://localhost:3000", "http://127.0.0.1:3000"},
			AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
			AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-CSRF-Token"},
			ExposedHeaders:   []string{"Link", "Id", "Location"},
			AllowCredentials: true,
			MaxAge:           300, // Maximum value not ignored by any of major browsers
		}))

		r.Route("/v1", func(r chi.Router) {
			// Public routes that can be accessed without auth
			r.Group(func(r chi.Router) {
				r.Post("/auth/token", authentication.CreateToken)
			})

			// Routes for API clients are authenticated using bearer tokens
			r.Group(func(r chi.Router) {
				r.Use(sgmiddleware.MakeJWTAuthenticator(secret, logger))
				r.Use(sgmiddleware.MakeMustAuthenticate(logger))

				r.Route("/check", func(r chi.Router) {
					r.Get("/", check.Check)
					r.Post("/bulk", check.BulkCheck)
				})
				r.Route("/grants", func(r chi.Router) {
					r.Post("/", grant.Create)
					r.Get("/expiring", grant.ListExpiring)
					r.Route("/{grant_id}", func(r chi.Router) {
						r.Get("/", grant.Get)
						r.Delete("/", grant.Delete)
					})
				})
				r.Route("/resources", func(r chi.Router) {
					r.Post("/", resource.Create)
					r.Route("/{resource_id}", func(r chi.Router) {
						r.Get("/", resource.Get)
						r.Patch("/parent", resource.Reparent)
						r.Delete("/", resource.Delete)
						r.Get("/grants", grant.ListForResource)
						r.Get("/matrix", introspection.Matrix)
						r.Get("/chain", introspection.InheritanceChain)
					})
				})
				r.Route("/users", func(r chi.Router) {
					r.Post("/", user.Create)
					r.Get("/", user.List)
					r.Route("/{user_id}", func(r chi.Router) {
						r.Get("/", user.Get)
						r.Patch("/", user.Update)
						r.Get("/effective", introspection.Effective)
					})
				})
				r.Route("/groups", func(r chi.Router) {
					r.Post("/", group.Create)
					r.Get("/", group.List)
					r.Route("/{group_id}", func(r chi.Router) {
						r.Get("/", group.Get)
						r.Delete("/", group.Delete)
						r.Route("/members", func(r chi.Router) {
							r.Get("/", group.ListMembers)
							r.Post("/", group.AddMember)
							r.Delete("/{user_id}", group.RemoveMember)
						})
					})
				})
				r.Route("/my", func(r chi.Router) {
					r.Get("/user", user.GetMe)
					r.Get("/grants", grant.ListMine)
					r.Get("/tree", introspection.InheritanceTree)
				})
				r.Route("/audit-events", func(r chi.Router) {
					r.Get("/", audit.List)
				})
			})
		})
	})
	return &CoreAPIRouter{Router: r}
}
