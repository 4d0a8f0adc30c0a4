package protocol

import (
	"fmt"
	"protocolo/bizerror"
	"protocolo/domain/sla"
	"time"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
	"github.com/patrickmn/go-cache"
)

// FilterEvaluator runs boolean saved-filter expressions such as
// `status == "BREACHED" && priority >= 4` against protocols. Compiled programs are cached.
type FilterEvaluator struct {
	programs *cache.Cache
}

func NewFilterEvaluator() *FilterEvaluator {
	return &FilterEvaluator{programs: cache.New(30*time.Minute, time.Hour)}
}

func filterEnv(p *Protocol, report sla.Report, now time.Time) map[string]interface{} {
	return map[string]interface{}{
		"moduleType":    p.ModuleType,
		"stage":         p.CurrentStage,
		"priority":      p.Priority,
		"status":        string(report.Status),
		"daysRemaining": report.DaysRemainingOrOverdue,
		"department":    p.DepartmentRef,
		"citizen":       p.CitizenRef,
		"assignee":      p.AssignedUserRef,
		"assigned":      p.AssignedUserRef != "",
		"concluded":     p.IsConcluded(),
		"ageDays":       int(now.Sub(p.CreatedAt) / (24 * time.Hour)),
	}
}

// Compile checks expression, a malformed filter is a bad parameter.
func (e *FilterEvaluator) Compile(expression string) (*vm.Program, error) {
	if cached, found := e.programs.Get(expression); found {
		return cached.(*vm.Program), nil
	}
	program, err := expr.Compile(expression, expr.Env(filterEnv(&Protocol{}, sla.Report{}, time.Time{})), expr.AsBool())
	if err != nil {
		return nil, &bizerror.ErrBadParam{Cause: fmt.Errorf("invalid filter expression: %w", err)}
	}
	e.programs.SetDefault(expression, program)
	return program, nil
}

func (e *FilterEvaluator) Match(program *vm.Program, p *Protocol, report sla.Report, now time.Time) (bool, error) {
	result, err := expr.Run(program, filterEnv(p, report, now))
	if err != nil {
		return false, err
	}
	matched, ok := result.(bool)
	if !ok {
		return false, fmt.Errorf("filter did not evaluate to a boolean, got %T", result)
	}
	return matched, nil
}
