package protocol

import (
	"protocolo/bizerror"
	"protocolo/domain/flow"
	"time"
)

// Transit moves p to target along wf. p is not modified, the moved copy and its audit entry are returned.
// A concluded or terminal protocol always fails with ErrTerminalState, whatever the target.
func Transit(p Protocol, wf *flow.Workflow, target, actor, comment string, now time.Time) (Protocol, HistoryEntry, error) {
	sm := wf.StateMachine()
	if p.IsConcluded() {
		return p, HistoryEntry{}, &bizerror.ErrTerminalState{Stage: p.CurrentStage}
	}
	if err := sm.CheckTransition(p.CurrentStage, target); err != nil {
		return p, HistoryEntry{}, err
	}

	moved := p
	moved.CurrentStage = target
	if sm.IsTerminal(target) {
		concludedAt := now
		moved.ConcludedAt = &concludedAt
	}
	entry := HistoryEntry{
		ProtocolID: p.ID,
		Action:     ActionStageChanged,
		FromStage:  p.CurrentStage,
		ToStage:    target,
		Comment:    comment,
		Timestamp:  now,
		ActorRef:   actor,
	}
	return moved, entry, nil
}

// Reopen moves a concluded protocol back to the initial stage, the due date is kept.
// A workflow whose initial stage is terminal has nothing to reopen to.
func Reopen(p Protocol, wf *flow.Workflow, actor, comment string, now time.Time) (Protocol, HistoryEntry, error) {
	sm := wf.StateMachine()
	if !p.IsConcluded() && !sm.IsTerminal(p.CurrentStage) {
		return p, HistoryEntry{}, bizerror.ErrNotConcluded
	}
	initial := wf.InitialStage()
	if sm.IsTerminal(initial.ID) {
		return p, HistoryEntry{}, &bizerror.ErrTerminalState{Stage: initial.ID}
	}
	reopened := p
	reopened.CurrentStage = initial.ID
	reopened.ConcludedAt = nil
	entry := HistoryEntry{
		ProtocolID: p.ID,
		Action:     ActionReopened,
		FromStage:  p.CurrentStage,
		ToStage:    initial.ID,
		Comment:    comment,
		Timestamp:  now,
		ActorRef:   actor,
	}
	return reopened, entry, nil
}
