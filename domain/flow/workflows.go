package flow

import (
	"encoding/json"
	"errors"
	"protocolo/bizerror"
	"protocolo/domain/state"
	"strings"

	"github.com/go-playground/validator/v10"
)

var workflowValidator = validator.New()

// ModuleWorkflow is the seeded definition of a module type, the persisted shape is kept as is.
type ModuleWorkflow struct {
	ModuleType  string        `json:"moduleType"  validate:"required"`
	Name        string        `json:"name"        validate:"required"`
	Description string        `json:"description"`
	Stages      []state.Stage `json:"stages"      validate:"required,min=1,dive"`
	DefaultSLA  int           `json:"defaultSLA"  validate:"gte=0"`
}

// Workflow is a validated, read-only module workflow.
type Workflow struct {
	ModuleWorkflow

	machine *state.StateMachine
}

func (w *Workflow) StateMachine() *state.StateMachine {
	return w.machine
}

func (w *Workflow) InitialStage() state.Stage {
	s, _ := w.machine.InitialStage()
	return s
}

func (w *Workflow) FindStage(stageID string) (state.Stage, bool) {
	return w.machine.FindStage(stageID)
}

// Validate checks field constraints and the stage graph, failing with *bizerror.ErrWorkflowInvalid.
func Validate(wf ModuleWorkflow) error {
	problems := []string{}
	if err := workflowValidator.Struct(wf); err != nil {
		var fieldErrors validator.ValidationErrors
		if !errors.As(err, &fieldErrors) {
			return err
		}
		for _, fieldErr := range fieldErrors {
			problems = append(problems, strings.TrimPrefix(fieldErr.Namespace(), "ModuleWorkflow.")+" failed on "+fieldErr.Tag())
		}
	}
	problems = append(problems, state.NewStateMachine(wf.ModuleType, wf.Stages).Problems()...)
	if len(problems) > 0 {
		return &bizerror.ErrWorkflowInvalid{ModuleType: wf.ModuleType, Problems: problems}
	}
	return nil
}

// Compile validates wf and freezes it.
func Compile(wf ModuleWorkflow) (*Workflow, error) {
	if err := Validate(wf); err != nil {
		return nil, err
	}
	frozen := wf
	frozen.Stages = make([]state.Stage, len(wf.Stages))
	for i, s := range wf.Stages {
		s.AllowedNextStages = append([]string{}, s.AllowedNextStages...)
		frozen.Stages[i] = s
	}
	machine := state.NewStateMachine(wf.ModuleType, frozen.Stages)
	frozen.Stages = machine.Stages
	return &Workflow{ModuleWorkflow: frozen, machine: machine}, nil
}

// ParseWorkflows accepts either a single definition object or an array of them.
func ParseWorkflows(data []byte) ([]ModuleWorkflow, error) {
	trimmed := strings.TrimSpace(string(data))
	if strings.HasPrefix(trimmed, "[") {
		var list []ModuleWorkflow
		if err := json.Unmarshal(data, &list); err != nil {
			return nil, err
		}
		return list, nil
	}
	var single ModuleWorkflow
	if err := json.Unmarshal(data, &single); err != nil {
		return nil, err
	}
	return []ModuleWorkflow{single}, nil
}
