package protocol

import (
	"protocolo/bizerror"
	"protocolo/domain/flow"
	"time"
)

// EscalationPolicy a zero Cooldown accepts every update request.
type EscalationPolicy struct {
	Cooldown time.Duration
}

func DefaultEscalationPolicy() EscalationPolicy {
	return EscalationPolicy{Cooldown: 24 * time.Hour}
}

// Staleness is derived from history at read time.
type Staleness struct {
	LastEscalatedAt     *time.Time `json:"lastEscalatedAt"`
	DaysSinceEscalation *int       `json:"daysSinceEscalation"`
	Count               int        `json:"count"`
	Stalled             bool       `json:"stalled"`
}

// RequestUpdate builds the escalation_requested entry of p, history is the audit trail of p.
func (policy EscalationPolicy) RequestUpdate(p Protocol, wf *flow.Workflow, history []HistoryEntry,
	actor, message string, now time.Time) (HistoryEntry, error) {

	if p.IsConcluded() || wf.StateMachine().IsTerminal(p.CurrentStage) {
		return HistoryEntry{}, &bizerror.ErrTerminalProtocol{Stage: p.CurrentStage}
	}
	if policy.Cooldown > 0 {
		if last := lastOf(history, ActionEscalationRequested); last != nil {
			elapsed := now.Sub(last.Timestamp)
			if elapsed < policy.Cooldown {
				return HistoryEntry{}, &bizerror.ErrTooSoon{LastRequestedAt: last.Timestamp, RetryAfter: policy.Cooldown - elapsed}
			}
		}
	}
	return HistoryEntry{
		ProtocolID: p.ID,
		Action:     ActionEscalationRequested,
		Comment:    message,
		Timestamp:  now,
		ActorRef:   actor,
	}, nil
}

// ComputeStaleness a protocol is stalled when it was escalated after its last stage change.
func ComputeStaleness(history []HistoryEntry, now time.Time) Staleness {
	s := Staleness{}
	var lastEscalation, lastMove *HistoryEntry
	for i := range history {
		switch history[i].Action {
		case ActionEscalationRequested:
			s.Count++
			if lastEscalation == nil || !history[i].Timestamp.Before(lastEscalation.Timestamp) {
				lastEscalation = &history[i]
			}
		case ActionStageChanged, ActionReopened, ActionCreated:
			if lastMove == nil || !history[i].Timestamp.Before(lastMove.Timestamp) {
				lastMove = &history[i]
			}
		}
	}
	if lastEscalation == nil {
		return s
	}
	at := lastEscalation.Timestamp
	days := int(now.Sub(at) / (24 * time.Hour))
	if days < 0 {
		days = 0
	}
	s.LastEscalatedAt = &at
	s.DaysSinceEscalation = &days
	s.Stalled = lastMove == nil || lastEscalation.Timestamp.After(lastMove.Timestamp)
	return s
}

func lastOf(history []HistoryEntry, action Action) *HistoryEntry {
	var last *HistoryEntry
	for i := range history {
		if history[i].Action == action && (last == nil || !history[i].Timestamp.Before(last.Timestamp)) {
			last = &history[i]
		}
	}
	return last
}
