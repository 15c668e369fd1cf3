package server

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/pkg/errors"

	"github.com/siteguard/siteguard/common/gerror"
	"github.com/siteguard/siteguard/common/logger"
	"github.com/siteguard/siteguard/common/models"
	"github.com/siteguard/siteguard/server/api/rest/documents"
	"github.com/siteguard/siteguard/server/api/rest/middleware"
	"github.com/siteguard/siteguard/server/services"
)

// DefaultTokenTTL applies when no token TTL is configured.
const DefaultTokenTTL = TokenTTL(24 * time.Hour)

// TokenTTL is how long issued bearer tokens remain valid.
type TokenTTL time.Duration

type AuthenticationAPI struct {
	*APIBase
	userService services.UserService
	secret      JWTSecret
	tokenTTL    time.Duration
	clock       clock.Clock
}

func NewAuthenticationAPI(
	userService services.UserService,
	authorizationService services.AuthorizationService,
	secret JWTSecret,
	tokenTTL TokenTTL,
	clk clock.Clock,
	logFactory logger.LogFactory,
) *AuthenticationAPI {
	if tokenTTL <= 0 {
		tokenTTL = DefaultTokenTTL
	}
	return &AuthenticationAPI{
		APIBase:     NewAPIBase(authorizationService, logFactory("AuthenticationAPI")),
		userService: userService,
		secret:      secret,
		tokenTTL:    time.Duration(tokenTTL),
		clock:       clk,
	}
}

// CreateToken is a password login: it verifies the credentials and mints a
// bearer token for subsequent requests.
func (a *AuthenticationAPI) CreateToken(w http.ResponseWriter, r *http.Request) {
	req := &documents.TokenRequest{}
	err := json.NewDecoder(r.Body).Decode(req)
	if err != nil {
		a.Error(w, r, gerror.NewErrValidationFailed("invalid request body").Wrap(err))
		return
	}
	user, err := a.userService.Authenticate(r.Context(), req.Username, req.Password)
	if err != nil {
		a.Error(w, r, err)
		return
	}
	token, expiresAt, err := middleware.IssueToken(a.secret, user.ID, a.clock.Now(), a.tokenTTL)
	if err != nil {
		a.Error(w, r, errors.Wrap(err, "error signing token"))
		return
	}
	a.JSON(w, r, &documents.TokenResponse{
		Token:     token,
		ExpiresAt: models.NewTime(expiresAt),
		User:      user,
	})
}
