package state

import (
	"fmt"
	"protocolo/bizerror"
	"sort"
)

// Stage is one node of a module workflow. The graph is data: AllowedNextStages is the adjacency list.
type Stage struct {
	ID                string   `json:"id"                validate:"required"`
	Name              string   `json:"name"              validate:"required"`
	Description       string   `json:"description"`
	Order             int      `json:"order"`
	Color             string   `json:"color"`
	AllowedNextStages []string `json:"allowedNextStages"`
}

func (s Stage) IsTerminal() bool {
	return len(s.AllowedNextStages) == 0
}

func (s Stage) Allows(stageID string) bool {
	for _, next := range s.AllowedNextStages {
		if next == stageID {
			return true
		}
	}
	return false
}

// stateless object, just used for state computing
type StateMachine struct {
	Name   string
	Stages []Stage

	index map[string]int
}

// NewStateMachine keeps a copy of stages sorted by order.
func NewStateMachine(name string, stages []Stage) *StateMachine {
	sorted := make([]Stage, len(stages))
	copy(sorted, stages)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Order < sorted[j].Order })

	index := make(map[string]int, len(sorted))
	for i, s := range sorted {
		if _, dup := index[s.ID]; !dup {
			index[s.ID] = i
		}
	}
	return &StateMachine{Name: name, Stages: sorted, index: index}
}

func (sm *StateMachine) FindStage(stageID string) (Stage, bool) {
	i, found := sm.index[stageID]
	if !found {
		return Stage{}, false
	}
	return sm.Stages[i], true
}

// InitialStage is the stage with the lowest order.
func (sm *StateMachine) InitialStage() (Stage, bool) {
	if len(sm.Stages) == 0 {
		return Stage{}, false
	}
	return sm.Stages[0], true
}

func (sm *StateMachine) TerminalStages() []Stage {
	r := []Stage{}
	for _, s := range sm.Stages {
		if s.IsTerminal() {
			r = append(r, s)
		}
	}
	return r
}

func (sm *StateMachine) IsTerminal(stageID string) bool {
	s, found := sm.FindStage(stageID)
	return found && s.IsTerminal()
}

// AvailableTransitions lists the stages reachable in one move, nil for unknown stages.
func (sm *StateMachine) AvailableTransitions(fromStage string) []Stage {
	from, found := sm.FindStage(fromStage)
	if !found {
		return nil
	}
	r := []Stage{}
	for _, id := range from.AllowedNextStages {
		if next, ok := sm.FindStage(id); ok {
			r = append(r, next)
		}
	}
	return r
}

// CheckTransition reports whether fromStage -> toStage is a legal move. A terminal origin always
// fails with ErrTerminalState, whatever the target.
func (sm *StateMachine) CheckTransition(fromStage, toStage string) error {
	from, found := sm.FindStage(fromStage)
	if !found {
		return bizerror.NotFound("stage", fromStage)
	}
	if from.IsTerminal() {
		return &bizerror.ErrTerminalState{Stage: from.ID}
	}
	if _, found := sm.FindStage(toStage); !found {
		return &bizerror.ErrInvalidTarget{ModuleType: sm.Name, TargetStage: toStage}
	}
	if !from.Allows(toStage) {
		allowed := make([]string, len(from.AllowedNextStages))
		copy(allowed, from.AllowedNextStages)
		return &bizerror.ErrIllegalTransition{FromStage: from.ID, ToStage: toStage, Allowed: allowed}
	}
	return nil
}

// Reachable returns every stage id reachable from fromStage, fromStage included.
func (sm *StateMachine) Reachable(fromStage string) map[string]bool {
	visited := map[string]bool{}
	if _, found := sm.FindStage(fromStage); !found {
		return visited
	}
	queue := []string{fromStage}
	visited[fromStage] = true
	for len(queue) > 0 {
		current, _ := sm.FindStage(queue[0])
		queue = queue[1:]
		for _, next := range current.AllowedNextStages {
			if _, ok := sm.FindStage(next); ok && !visited[next] {
				visited[next] = true
				queue = append(queue, next)
			}
		}
	}
	return visited
}

// Problems lists every structural defect of the graph, empty when it is usable.
func (sm *StateMachine) Problems() []string {
	problems := []string{}
	if len(sm.Stages) == 0 {
		return append(problems, "workflow has no stage")
	}

	ids := map[string]bool{}
	orders := map[int]string{}
	for _, s := range sm.Stages {
		if ids[s.ID] {
			problems = append(problems, fmt.Sprintf("stage id %s is duplicated", s.ID))
		}
		ids[s.ID] = true
		if other, dup := orders[s.Order]; dup {
			problems = append(problems, fmt.Sprintf("stages %s and %s share order %d", other, s.ID, s.Order))
		} else {
			orders[s.Order] = s.ID
		}
	}

	for _, s := range sm.Stages {
		for _, next := range s.AllowedNextStages {
			if !ids[next] {
				problems = append(problems, fmt.Sprintf("stage %s allows unknown stage %s", s.ID, next))
			}
		}
	}

	terminals := sm.TerminalStages()
	if len(terminals) == 0 {
		problems = append(problems, "workflow has no terminal stage")
	}

	initial, _ := sm.InitialStage()
	if initial.IsTerminal() && len(sm.Stages) > 1 {
		problems = append(problems, fmt.Sprintf("initial stage %s is terminal", initial.ID))
	} else if len(terminals) > 0 {
		reachable := sm.Reachable(initial.ID)
		terminalReachable := false
		for _, t := range terminals {
			if reachable[t.ID] {
				terminalReachable = true
				break
			}
		}
		if !terminalReachable {
			problems = append(problems, fmt.Sprintf("no terminal stage is reachable from initial stage %s", initial.ID))
		}
	}
	return problems
}
