package event

import (
	"github.com/sirupsen/logrus"
)

// EventHandler returns nil for events it does not handle.
type EventHandler func(e *EventRecord) *EventHandleResult

type EventHandleResult struct {
	Success           bool
	Message           string
	HandlerIdentifier string
}

var EventHandlers []EventHandler

var InvokeHandlersFunc = invokeHandlers

func invokeHandlers(record *EventRecord) []EventHandleResult {
	results := []EventHandleResult{}
	log := logrus.WithFields(logrus.Fields{"tenant": record.TenantID, "source": record.SourceDesc, "action": record.Action})
	for _, handler := range EventHandlers {
		log.Debug("pre handle event")
		r := handler(record)
		if r == nil {
			continue
		}
		results = append(results, *r)

		if r.Success {
			log.Infof("post handle event by %s", r.HandlerIdentifier)
		} else {
			log.Errorf("post handle event by %s failed: %s", r.HandlerIdentifier, r.Message)
		}
	}
	return results
}
