package flow

import (
	"fmt"
	"protocolo/bizerror"
	"sort"
)

// Registry is the immutable module type -> workflow table of one tenant. Safe for concurrent reads.
type Registry struct {
	workflows map[string]*Workflow
	order     []string
}

// NewRegistry compiles every definition, any invalid one aborts the whole load.
func NewRegistry(definitions []ModuleWorkflow) (*Registry, error) {
	r := &Registry{workflows: make(map[string]*Workflow, len(definitions))}
	for _, def := range definitions {
		if _, dup := r.workflows[def.ModuleType]; dup {
			return nil, &bizerror.ErrWorkflowInvalid{ModuleType: def.ModuleType,
				Problems: []string{fmt.Sprintf("module type %s is defined more than once", def.ModuleType)}}
		}
		wf, err := Compile(def)
		if err != nil {
			return nil, err
		}
		r.workflows[def.ModuleType] = wf
		r.order = append(r.order, def.ModuleType)
	}
	sort.Strings(r.order)
	return r, nil
}

func (r *Registry) GetWorkflow(moduleType string) (*Workflow, error) {
	wf, found := r.workflows[moduleType]
	if !found {
		return nil, bizerror.NotFound("workflow", moduleType)
	}
	return wf, nil
}

// List returns the workflows sorted by module type.
func (r *Registry) List() []*Workflow {
	list := make([]*Workflow, 0, len(r.order))
	for _, moduleType := range r.order {
		list = append(list, r.workflows[moduleType])
	}
	return list
}

func (r *Registry) Len() int {
	return len(r.workflows)
}
