package services

import (
	"fmt"

	"github.com/siteguard/siteguard/common/models"
)

// Cache key construction. Decision keys share a per-user prefix so that all
// of a user's decisions can be invalidated in one call.

func DecisionCacheKey(userID models.UserID, resourceID models.ResourceID, permission models.Permission) string {
	return fmt.Sprintf("%s%s:%s", DecisionCacheKeyPrefixForUser(userID), resourceID, permission)
}

func DecisionCacheKeyPrefixForUser(userID models.UserID) string {
	return fmt.Sprintf("perm:%s:", userID)
}

// DecisionCacheKeyPrefix covers every user's decision entries.
const DecisionCacheKeyPrefix = "perm:"

func UserGroupsCacheKey(userID models.UserID) string {
	return fmt.Sprintf("user_groups:%s", userID)
}

func AncestorsCacheKey(resourceID models.ResourceID) string {
	return fmt.Sprintf("ancestors:%s", resourceID)
}
