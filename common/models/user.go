package models

import (
	"github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"
)

type UserID struct {
	ResourceID
}

func NewUserID() UserID {
	return UserID{ResourceID: NewResourceID(UserResourceKind)}
}

func UserIDFromResourceID(id ResourceID) UserID {
	return UserID{ResourceID: id}
}

// UserField names an editable field of a user, as accepted by update
// operations.
type UserField string

const (
	UserFieldEmail      UserField = "email"
	UserFieldPassword   UserField = "password"
	UserFieldGivenName  UserField = "given_name"
	UserFieldFamilyName UserField = "family_name"
	UserFieldUsername   UserField = "username"
	UserFieldIsAdmin    UserField = "is_admin"
	UserFieldDisabled   UserField = "disabled"
)

// selfEditableUserFields are the fields a user may change on their own
// account. Everything else requires a superuser, even when the target is
// oneself.
var selfEditableUserFields = map[UserField]bool{
	UserFieldEmail:      true,
	UserFieldPassword:   true,
	UserFieldGivenName:  true,
	UserFieldFamilyName: true,
}

// IsSelfEditableUserField returns true if a non-admin user may change the
// field on their own account.
func IsSelfEditableUserField(field UserField) bool {
	return selfEditableUserFields[field]
}

type User struct {
	ID        UserID `json:"id" goqu:"skipupdate" db:"user_id"`
	CreatedAt Time   `json:"created_at" goqu:"skipupdate" db:"user_created_at"`
	UpdatedAt Time   `json:"updated_at" db:"user_updated_at"`
	// Username uniquely identifies the user for login.
	Username   string `json:"username" db:"user_username"`
	Email      string `json:"email" db:"user_email"`
	GivenName  string `json:"given_name" db:"user_given_name"`
	FamilyName string `json:"family_name" db:"user_family_name"`
	// PasswordHash is the bcrypt hash of the user's password. Never serialized.
	PasswordHash string `json:"-" db:"user_password_hash"`
	// IsAdmin marks a platform superuser. Superusers bypass all permission
	// evaluation.
	IsAdmin bool `json:"is_admin" db:"user_is_admin"`
	// Disabled users cannot authenticate. Their grants remain in place.
	Disabled bool `json:"disabled" db:"user_disabled"`
}

func NewUser(now Time, username string, email string, givenName string, familyName string, passwordHash string, isAdmin bool) *User {
	return &User{
		ID:           NewUserID(),
		CreatedAt:    now,
		UpdatedAt:    now,
		Username:     username,
		Email:        email,
		GivenName:    givenName,
		FamilyName:   familyName,
		PasswordHash: passwordHash,
		IsAdmin:      isAdmin,
	}
}

func (m *User) GetKind() ResourceKind {
	return UserResourceKind
}

func (m *User) GetCreatedAt() Time {
	return m.CreatedAt
}

func (m *User) GetID() ResourceID {
	return m.ID.ResourceID
}

// DisplayName returns the user's full name, falling back to the username.
func (m *User) DisplayName() string {
	if m.GivenName == "" && m.FamilyName == "" {
		return m.Username
	}
	if m.GivenName == "" {
		return m.FamilyName
	}
	if m.FamilyName == "" {
		return m.GivenName
	}
	return m.GivenName + " " + m.FamilyName
}

func (m *User) Validate() error {
	var result *multierror.Error
	if !m.ID.Valid() {
		result = multierror.Append(result, errors.New("error id must be set"))
	}
	if m.CreatedAt.IsZero() {
		result = multierror.Append(result, errors.New("error created at must be set"))
	}
	if m.Username == "" {
		result = multierror.Append(result, errors.New("error username must be set"))
	}
	if m.PasswordHash == "" {
		result = multierror.Append(result, errors.New("error password hash must be set"))
	}
	return result.ErrorOrNil()
}
