package worker

import (
	"github.com/spec-kit/helpdesk-service/internal/service"
)

// StartEventWorkers registers the notification and audit subscribers on
// the event dispatcher.
func StartEventWorkers(notificationService *service.NotificationService, auditService *service.AuditService) {
	if notificationService != nil {
		notificationService.RegisterHandlers()
	}
	if auditService != nil {
		auditService.RegisterHandlers()
	}
}
