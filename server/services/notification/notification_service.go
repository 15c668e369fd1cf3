package notification

import (
	"context"

	"github.com/siteguard/siteguard/common/logger"
	"github.com/siteguard/siteguard/server/dto"
)

// LogNotifier is the default services.Notifier: it writes each expiry
// warning as a structured log record. Real transports (email, webhooks)
// replace it behind the same interface.
type LogNotifier struct {
	logger.Log
}

func NewLogNotifier(logFactory logger.LogFactory) *LogNotifier {
	return &LogNotifier{Log: logFactory("Notifier")}
}

func (s *LogNotifier) Notify(ctx context.Context, notification *dto.ExpiryNotification) error {
	for _, grant := range notification.Grants {
		s.WithFields(logger.Fields{
			"grantee_type": notification.GranteeType,
			"grantee_id":   notification.GranteeID,
			"grantee_name": notification.GranteeName,
			"grant_id":     grant.ID,
			"resource_id":  grant.ResourceID,
			"permission":   grant.Permission,
			"expires_at":   grant.ExpiresAt,
		}).Infof("Grant expiring soon")
	}
	return nil
}
