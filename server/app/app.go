package app

import (
	"context"

	"github.com/pkg/errors"

	"github.com/siteguard/siteguard/common/logger"
	"github.com/siteguard/siteguard/server/api/rest/server"
	"github.com/siteguard/siteguard/server/services"
	"github.com/siteguard/siteguard/server/services/expiry"
)

type Server struct {
	UserService   services.UserService
	ExpiryService *expiry.ExpiryService
	CoreAPIServer *server.CoreAPIServer
	config        *ServerConfig
	log           logger.Log
}

func NewServer(
	userService services.UserService,
	expiryService *expiry.ExpiryService,
	coreAPIServer *server.CoreAPIServer,
	config *ServerConfig,
	logFactory logger.LogFactory,
) *Server {
	return &Server{
		UserService:   userService,
		ExpiryService: expiryService,
		CoreAPIServer: coreAPIServer,
		config:        config,
		log:           logFactory("Server"),
	}
}

// Start ensures the bootstrap superuser exists, starts the expiry scheduler
// if enabled, and begins serving API requests.
func (s *Server) Start(ctx context.Context) error {
	superuser, err := s.UserService.BootstrapSuperuser(ctx,
		s.config.BootstrapConfig.SuperuserUsername,
		s.config.BootstrapConfig.SuperuserPassword)
	if err != nil {
		return errors.Wrap(err, "error bootstrapping superuser")
	}
	s.log.Infof("Superuser account %q ready (id %s)", superuser.Username, superuser.ID)

	if s.config.SchedulerConfig.Enabled {
		s.ExpiryService.Start()
	}
	s.CoreAPIServer.Start()
	return nil
}

// Stop gracefully shuts down the API server and the expiry scheduler.
func (s *Server) Stop(ctx context.Context) error {
	err := s.CoreAPIServer.Stop(ctx)
	if s.config.SchedulerConfig.Enabled {
		s.ExpiryService.Shutdown()
	}
	return err
}
