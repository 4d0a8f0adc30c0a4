package event

import (
	"protocolo/session"
	"time"

	"github.com/fundwit/go-commons/types"
)

var (
	PublishFunc = Publish
)

func CreateEvent(sourceType string, sourceId types.ID, sourceDesc string, ev Event,
	identity *session.Identity, timestamp time.Time) *EventRecord {

	ev.SourceType = sourceType
	ev.SourceId = sourceId
	ev.SourceDesc = sourceDesc
	ev.CreatorId = identity.ID
	ev.CreatorName = identity.Name
	return &EventRecord{Event: ev, Timestamp: timestamp}
}

// Publish runs the registered handlers, the state change is already committed when it is called.
func Publish(record *EventRecord) []EventHandleResult {
	return InvokeHandlersFunc(record)
}
