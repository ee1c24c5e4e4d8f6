package worker

import (
	"github.com/spec-kit/guild-desk/internal/service"
)

// StartNotificationWorker wires the notification service into the event
// dispatcher. Nil-safe so the API can run without notifications.
func StartNotificationWorker(notifications *service.NotificationService) {
	if notifications == nil {
		return
	}
	notifications.RegisterHandlers()
}
