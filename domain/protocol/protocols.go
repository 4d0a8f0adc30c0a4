package protocol

import (
	"protocolo/bizerror"
	"protocolo/domain/sla"
	"protocolo/domain/state"
	"time"

	"github.com/fundwit/go-commons/types"
)

type Action string

const (
	ActionCreated             Action = "protocol_created"
	ActionStageChanged        Action = "stage_changed"
	ActionEscalationRequested Action = "escalation_requested"
	ActionCommentAdded        Action = "comment_added"
	ActionPriorityChanged     Action = "priority_changed"
	ActionAssignmentChanged   Action = "assignment_changed"
	ActionReopened            Action = "protocol_reopened"
)

const (
	PriorityLowest  = 1
	PriorityDefault = 3
	PriorityHighest = 5
)

// Protocol is a citizen request tracked along the stage graph of its module.
type Protocol struct {
	ID              types.ID   `json:"id"`
	Number          string     `json:"number"          gorm:"type:varchar(32);unique_index:uix_protocols_tenant_number"`
	TenantID        string     `json:"tenantId"        gorm:"type:varchar(64);unique_index:uix_protocols_tenant_number"`
	ModuleType      string     `json:"moduleType"      gorm:"type:varchar(128);index"`
	CurrentStage    string     `json:"currentStage"    gorm:"type:varchar(128)"`
	Priority        int        `json:"priority"`
	Summary         string     `json:"summary"         sql:"type:TEXT"`
	CreatedAt       time.Time  `json:"createdAt"       gorm:"precision:3"`
	DueDate         time.Time  `json:"dueDate"         gorm:"precision:3"`
	ConcludedAt     *time.Time `json:"concludedAt"     gorm:"precision:3"`
	CitizenRef      string     `json:"citizenRef"      gorm:"type:varchar(128)"`
	DepartmentRef   string     `json:"departmentRef"   gorm:"type:varchar(128)"`
	AssignedUserRef string     `json:"assignedUserRef" gorm:"type:varchar(128)"`
	Version         int64      `json:"version"`
}

func (p *Protocol) TableName() string {
	return "protocols"
}

func (p *Protocol) IsConcluded() bool {
	return p.ConcludedAt != nil
}

// HistoryEntry is one append-only audit record of a protocol.
type HistoryEntry struct {
	ID         types.ID  `json:"id"`
	ProtocolID types.ID  `json:"protocolId" gorm:"index"`
	Action     Action    `json:"action"     gorm:"type:varchar(32)"`
	FromStage  string    `json:"fromStage,omitempty"`
	ToStage    string    `json:"toStage,omitempty"`
	OldValue   string    `json:"oldValue,omitempty"`
	NewValue   string    `json:"newValue,omitempty"`
	Comment    string    `json:"comment,omitempty" sql:"type:TEXT"`
	Timestamp  time.Time `json:"timestamp"  gorm:"precision:3"`
	ActorRef   string    `json:"actorRef"   gorm:"type:varchar(128)"`
}

func (h *HistoryEntry) TableName() string {
	return "protocol_history"
}

type ProtocolCreation struct {
	ModuleType    string `json:"moduleType"    validate:"required"`
	Summary       string `json:"summary"`
	CitizenRef    string `json:"citizenRef"    validate:"required"`
	DepartmentRef string `json:"departmentRef" validate:"required"`
	Priority      int    `json:"priority"`
	AssignedUser  string `json:"assignedUserRef"`
}

type TransitionRequest struct {
	TargetStage string `json:"targetStage"`
	Comment     string `json:"comment"`
}

type EscalationRequest struct {
	Message string `json:"message"`
}

type CommentRequest struct {
	Comment string `json:"comment" validate:"required"`
}

type PriorityRequest struct {
	Priority int `json:"priority"`
}

type AssignRequest struct {
	AssignedUserRef string `json:"assignedUserRef"`
}

type ReopenRequest struct {
	Comment string `json:"comment"`
}

// ProtocolDetail is a protocol with the state derived at read time.
type ProtocolDetail struct {
	Protocol

	SLA                  sla.Report    `json:"sla"`
	AvailableTransitions []state.Stage `json:"availableTransitions"`
	Staleness            Staleness     `json:"staleness"`
}

func CheckPriority(priority int) error {
	if priority < PriorityLowest || priority > PriorityHighest {
		return &bizerror.ErrPriorityOutOfRange{Priority: priority}
	}
	return nil
}
