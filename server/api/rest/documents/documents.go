package documents

import (
	"github.com/siteguard/siteguard/common/gerror"
	"github.com/siteguard/siteguard/common/models"
)

// ErrorDocument is the standard API error body.
type ErrorDocument struct {
	Code           gerror.Code                      `json:"code"`
	HTTPStatusCode int                              `json:"http_status_code"`
	Message        string                           `json:"message"`
	Details        map[gerror.DetailKey]interface{} `json:"details,omitempty"`
}

// TokenRequest is a password login.
type TokenRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type TokenResponse struct {
	Token     string       `json:"token"`
	ExpiresAt models.Time  `json:"expires_at"`
	User      *models.User `json:"user"`
}

// BulkCheckRequest carries an ordered list of checks; the response carries
// one decision per check, in the same order.
type BulkCheckRequest struct {
	Checks []models.CheckRequest `json:"checks"`
}

type BulkCheckResponse struct {
	Decisions []models.Decision `json:"decisions"`
}

// CreateGrantRequest is the issue-a-grant body. Fields and ExpiresAt are
// optional.
type CreateGrantRequest struct {
	GranteeType models.GranteeType `json:"grantee_type"`
	GranteeID   models.ResourceID  `json:"grantee_id"`
	ResourceID  models.ResourceID  `json:"resource_id"`
	Permission  models.Permission  `json:"permission"`
	Effect      models.Effect      `json:"effect"`
	Inherit     bool               `json:"inherit"`
	Fields      models.FieldList   `json:"fields,omitempty"`
	ExpiresAt   *models.Time       `json:"expires_at,omitempty"`
}

type CreateGroupRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

// AddMemberRequest adds a user to a group, optionally until an expiry.
type AddMemberRequest struct {
	UserID    models.UserID `json:"user_id"`
	ExpiresAt *models.Time  `json:"expires_at,omitempty"`
}

// CreateResourceRequest registers a resource with the hierarchy.
type CreateResourceRequest struct {
	Kind     models.ResourceKind `json:"kind"`
	Name     string              `json:"name"`
	ParentID models.ResourceID   `json:"parent_id,omitempty"`
}

// ReparentResourceRequest moves a resource under a new parent.
type ReparentResourceRequest struct {
	NewParentID models.ResourceID `json:"new_parent_id"`
}
