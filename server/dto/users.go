package dto

// CreateUser carries the details for a new user account.
type CreateUser struct {
	Username   string `json:"username"`
	Email      string `json:"email"`
	GivenName  string `json:"given_name"`
	FamilyName string `json:"family_name"`
	Password   string `json:"password"`
	IsAdmin    bool   `json:"is_admin"`
}

// UpdateUser is a partial update of a user account. Nil members are left
// unchanged.
type UpdateUser struct {
	Email      *string `json:"email,omitempty"`
	Password   *string `json:"password,omitempty"`
	GivenName  *string `json:"given_name,omitempty"`
	FamilyName *string `json:"family_name,omitempty"`
	Username   *string `json:"username,omitempty"`
	IsAdmin    *bool   `json:"is_admin,omitempty"`
	Disabled   *bool   `json:"disabled,omitempty"`
}
