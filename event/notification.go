package event

import (
	"fmt"

	"github.com/sirupsen/logrus"
)

var (
	NotificationHandlerName = "notifier"

	// SendNotificationFunc delivers a staff notification, delivery channels live outside this service.
	SendNotificationFunc = logNotification
)

const actionEscalationRequested = "escalation_requested"

func NotificationEventHandle(e *EventRecord) *EventHandleResult {
	if e.SourceType != SourceTypeProtocol || e.Action != actionEscalationRequested {
		return nil
	}
	if err := SendNotificationFunc(e); err != nil {
		return &EventHandleResult{
			Message:           fmt.Sprintf("notify update request of protocol %s, %v", e.SourceDesc, err),
			HandlerIdentifier: NotificationHandlerName,
		}
	}
	return &EventHandleResult{Success: true, HandlerIdentifier: NotificationHandlerName}
}

func logNotification(e *EventRecord) error {
	logrus.WithFields(logrus.Fields{
		"tenant":   e.TenantID,
		"protocol": e.SourceDesc,
		"actor":    e.CreatorName,
	}).Infof("update requested: %s", e.Message)
	return nil
}
