package dto

import (
	"github.com/siteguard/siteguard/common/models"
)

// ExpiryNotification warns one grantee about their grants expiring within
// the look-ahead window.
type ExpiryNotification struct {
	GranteeType models.GranteeType `json:"grantee_type"`
	GranteeID   models.ResourceID  `json:"grantee_id"`
	GranteeName string             `json:"grantee_name,omitempty"`
	Grants      []*models.Grant    `json:"grants"`
}
