package user

import (
	"context"
	"fmt"

	"github.com/benbjohnson/clock"
	"github.com/pkg/errors"
	"golang.org/x/crypto/bcrypt"

	"github.com/siteguard/siteguard/common/gerror"
	"github.com/siteguard/siteguard/common/logger"
	"github.com/siteguard/siteguard/common/models"
	"github.com/siteguard/siteguard/server/dto"
	"github.com/siteguard/siteguard/server/services"
	"github.com/siteguard/siteguard/server/store"
)

// UserService manages user accounts: creation with the creator's auto-grant,
// rule-checked partial updates, and password authentication.
type UserService struct {
	db            *store.DB
	userStore     store.UserStore
	grantService  services.GrantService
	authorization services.AuthorizationService
	clock         clock.Clock
	logger.Log
}

func NewUserService(
	db *store.DB,
	userStore store.UserStore,
	grantService services.GrantService,
	authorization services.AuthorizationService,
	clk clock.Clock,
	logFactory logger.LogFactory,
) *UserService {
	return &UserService{
		db:            db,
		userStore:     userStore,
		grantService:  grantService,
		authorization: authorization,
		clock:         clk,
		Log:           logFactory("UserService"),
	}
}

// Create a new user. The creator receives a manage grant on the account; a
// zero creatorID (bootstrap) grants manage to the account itself.
func (s *UserService) Create(ctx context.Context, txOrNil *store.Tx, creatorID models.UserID, create *dto.CreateUser) (*models.User, error) {
	if create.Username == "" {
		return nil, gerror.NewErrValidationFailed("username must be set")
	}
	if create.Password == "" {
		return nil, gerror.NewErrValidationFailed("password must be set")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(create.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, errors.Wrap(err, "error hashing password")
	}

	now := models.NewTime(s.clock.Now())
	user := models.NewUser(now, create.Username, create.Email, create.GivenName, create.FamilyName, string(hash), create.IsAdmin)
	err = s.db.WithTx(ctx, txOrNil, func(tx *store.Tx) error {
		err := s.userStore.Create(ctx, tx, user)
		if err != nil {
			return errors.Wrap(err, "error creating user")
		}
		manager := creatorID
		if manager.IsZero() {
			manager = user.ID
		}
		_, err = s.grantService.AutoGrantManageOnCreate(ctx, tx, manager, user.ID.ResourceID)
		return err
	})
	if err != nil {
		return nil, err
	}
	s.Infof("Created user %q (%s)", user.Username, user.ID)
	return user, nil
}

// Read an existing user, looking it up by ID.
func (s *UserService) Read(ctx context.Context, txOrNil *store.Tx, id models.UserID) (*models.User, error) {
	return s.userStore.Read(ctx, txOrNil, id)
}

// ReadByUsername reads an existing user, looking it up by username.
func (s *UserService) ReadByUsername(ctx context.Context, txOrNil *store.Tx, username string) (*models.User, error) {
	return s.userStore.ReadByUsername(ctx, txOrNil, username)
}

// Update applies a partial update to a user. On their own account a
// non-superuser may only touch the self-editable fields; username, is_admin
// and disabled changes there require a superuser. Updates to other users are
// governed by the actor's write grants and any field restrictions on them.
func (s *UserService) Update(ctx context.Context, actorID models.UserID, targetID models.UserID, update *dto.UpdateUser) (*models.User, error) {
	actor, err := s.userStore.Read(ctx, nil, actorID)
	if err != nil {
		return nil, errors.Wrap(err, "error reading actor")
	}
	target, err := s.userStore.Read(ctx, nil, targetID)
	if err != nil {
		return nil, errors.Wrap(err, "error reading user")
	}

	requested := requestedFields(update)
	if len(requested) == 0 {
		return target, nil
	}

	if !actor.IsAdmin {
		if actor.ID == target.ID {
			for _, field := range requested {
				if !models.IsSelfEditableUserField(field) {
					return nil, gerror.NewErrForbidden(fmt.Sprintf("changing %s on your own account requires a superuser", field))
				}
			}
		} else {
			decision, err := s.authorization.Check(ctx, actorID, targetID.ResourceID, models.PermissionWrite)
			if err != nil {
				return nil, err
			}
			if !decision.Allowed {
				return nil, gerror.NewErrForbidden("not permitted to update this user")
			}
			if decision.Fields != nil {
				for _, field := range requested {
					if !decision.Fields.Contains(string(field)) {
						return nil, gerror.NewErrForbidden(fmt.Sprintf("not permitted to change %s on this user", field))
					}
				}
			}
		}
	}

	err = s.apply(target, update)
	if err != nil {
		return nil, err
	}
	target.UpdatedAt = models.NewTime(s.clock.Now())
	err = s.userStore.Update(ctx, nil, target)
	if err != nil {
		return nil, errors.Wrap(err, "error updating user")
	}
	s.Infof("Updated user %s (fields: %v)", target.ID, requested)
	return target, nil
}

// Authenticate verifies a username/password pair.
func (s *UserService) Authenticate(ctx context.Context, username, password string) (*models.User, error) {
	user, err := s.userStore.ReadByUsername(ctx, nil, username)
	if err != nil {
		if gerror.IsNotFound(err) {
			return nil, gerror.NewErrUnauthorized("invalid username or password")
		}
		return nil, errors.Wrap(err, "error reading user")
	}
	err = bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password))
	if err != nil {
		return nil, gerror.NewErrUnauthorized("invalid username or password")
	}
	if user.Disabled {
		return nil, gerror.NewErrAccountDisabled()
	}
	return user, nil
}

// BootstrapSuperuser ensures the configured superuser account exists,
// creating it on first startup. Concurrent bootstraps race to create the
// account; the loser reads the winner's row, so an existing account is never
// recreated and its password is never overwritten.
func (s *UserService) BootstrapSuperuser(ctx context.Context, username, password string) (*models.User, error) {
	if username == "" {
		return nil, gerror.NewErrValidationFailed("username must be set")
	}
	if password == "" {
		return nil, gerror.NewErrValidationFailed("password must be set")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, errors.Wrap(err, "error hashing password")
	}

	now := models.NewTime(s.clock.Now())
	candidate := models.NewUser(now, username, "", "", "", string(hash), true)
	var (
		user    *models.User
		created bool
	)
	err = s.db.WithTx(ctx, nil, func(tx *store.Tx) error {
		var err error
		user, created, err = s.userStore.FindOrCreate(ctx, tx, candidate)
		if err != nil {
			return errors.Wrap(err, "error finding or creating superuser")
		}
		if !created {
			return nil
		}
		_, err = s.grantService.AutoGrantManageOnCreate(ctx, tx, user.ID, user.ID.ResourceID)
		return err
	})
	if err != nil {
		return nil, err
	}
	if created {
		s.Infof("Bootstrapped superuser %q (%s)", username, user.ID)
	}
	return user, nil
}

// List pages through all users, newest first.
func (s *UserService) List(ctx context.Context, opts models.ListOptions) ([]*models.User, error) {
	return s.userStore.List(ctx, nil, opts)
}

func (s *UserService) apply(user *models.User, update *dto.UpdateUser) error {
	if update.Email != nil {
		user.Email = *update.Email
	}
	if update.Password != nil {
		hash, err := bcrypt.GenerateFromPassword([]byte(*update.Password), bcrypt.DefaultCost)
		if err != nil {
			return errors.Wrap(err, "error hashing password")
		}
		user.PasswordHash = string(hash)
	}
	if update.GivenName != nil {
		user.GivenName = *update.GivenName
	}
	if update.FamilyName != nil {
		user.FamilyName = *update.FamilyName
	}
	if update.Username != nil {
		user.Username = *update.Username
	}
	if update.IsAdmin != nil {
		user.IsAdmin = *update.IsAdmin
	}
	if update.Disabled != nil {
		user.Disabled = *update.Disabled
	}
	return nil
}

func requestedFields(update *dto.UpdateUser) []models.UserField {
	var fields []models.UserField
	if update.Email != nil {
		fields = append(fields, models.UserFieldEmail)
	}
	if update.Password != nil {
		fields = append(fields, models.UserFieldPassword)
	}
	if update.GivenName != nil {
		fields = append(fields, models.UserFieldGivenName)
	}
	if update.FamilyName != nil {
		fields = append(fields, models.UserFieldFamilyName)
	}
	if update.Username != nil {
		fields = append(fields, models.UserFieldUsername)
	}
	if update.IsAdmin != nil {
		fields = append(fields, models.UserFieldIsAdmin)
	}
	if update.Disabled != nil {
		fields = append(fields, models.UserFieldDisabled)
	}
	return fields
}
