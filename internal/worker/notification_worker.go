package worker

import (
	"github.com/spec-kit/lead-distribution/internal/events"
	"github.com/spec-kit/lead-distribution/internal/service"
)

// StartNotificationWorker registers the in-process event consumers: staff
// notifications and, when a bus connection exists, the NATS forwarder.
func StartNotificationWorker(notificationService *service.NotificationService, publisher *events.NATSPublisher, dispatcher events.Dispatcher) {
	if notificationService != nil {
		notificationService.RegisterHandlers()
	}
	if publisher != nil {
		publisher.Attach(dispatcher)
	}
}
