package event

import (
	"time"

	"github.com/fundwit/go-commons/types"
)

const (
	SourceTypeProtocol = "PROTOCOL"
)

type Event struct {
	SourceId   types.ID `json:"sourceId"`
	SourceType string   `json:"sourceType"`
	SourceDesc string   `json:"sourceDesc"`
	TenantID   string   `json:"tenantId"`

	CreatorId   types.ID `json:"creatorId"`
	CreatorName string   `json:"creatorName"`

	Action            string            `json:"action"` // protocol history action
	FromStage         string            `json:"fromStage,omitempty"`
	ToStage           string            `json:"toStage,omitempty"`
	Message           string            `json:"message,omitempty"`
	UpdatedProperties UpdatedProperties `json:"updatedProperties,omitempty"`
}

type EventRecord struct {
	Event

	Timestamp time.Time `json:"timestamp"`
}

type UpdatedProperty struct {
	PropertyName string `json:"propertyName"`
	OldValue     string `json:"oldValue"`
	NewValue     string `json:"newValue"`
}

type UpdatedProperties []UpdatedProperty
