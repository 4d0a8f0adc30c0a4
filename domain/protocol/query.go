package protocol

import (
	"protocolo/bizerror"
	"protocolo/common"
	"protocolo/domain/sla"
	"protocolo/session"

	"github.com/expr-lang/expr/vm"
)

// ProtocolQuery adds the read-time criteria to the stored ones: SLA status and a filter expression.
type ProtocolQuery struct {
	Query

	Statuses []sla.Status `json:"statuses" form:"status"`
	Filter   string       `json:"filter"   form:"filter"`
	Limit    int          `json:"limit"    form:"limit"`
}

type ProtocolListItem struct {
	Protocol

	SLA sla.Report `json:"sla"`
}

// Dashboard counts the protocols of a tenant, optionally of one module type.
type Dashboard struct {
	ModuleType string             `json:"moduleType,omitempty"`
	Total      int                `json:"total"`
	Open       int                `json:"open"`
	ByStatus   map[sla.Status]int `json:"byStatus"`
	ByStage    map[string]int     `json:"byStage"`
}

// Query lists matching protocols, most urgent first: priority, then the nearest due date.
func (m *ProtocolManager) Query(q *ProtocolQuery, s *session.Session) ([]ProtocolListItem, error) {
	for _, status := range q.Statuses {
		if !validStatus(status) {
			return nil, &bizerror.ErrBadParam{Cause: errInvalidStatus(status)}
		}
	}
	var program *vm.Program
	if q.Filter != "" {
		var err error
		if program, err = m.filters.Compile(q.Filter); err != nil {
			return nil, err
		}
	}

	stored := q.Query
	stored.TenantID = s.TenantID
	protocols, err := m.repo.List(s.Ctx(), stored)
	if err != nil {
		return nil, bizerror.Internal(err)
	}

	now := common.NowFunc()
	items := []ProtocolListItem{}
	for i := range protocols {
		p := &protocols[i]
		report := m.calculator.Report(now, p.DueDate, p.ConcludedAt)
		if len(q.Statuses) > 0 && !containsStatus(q.Statuses, report.Status) {
			continue
		}
		if program != nil {
			matched, err := m.filters.Match(program, p, report, now)
			if err != nil {
				return nil, &bizerror.ErrBadParam{Cause: err}
			}
			if !matched {
				continue
			}
		}
		items = append(items, ProtocolListItem{Protocol: *p, SLA: report})
	}
	sortPending(items)
	if q.Limit > 0 && len(items) > q.Limit {
		items = items[:q.Limit]
	}
	return items, nil
}

func (m *ProtocolManager) Dashboard(moduleType string, s *session.Session) (*Dashboard, error) {
	protocols, err := m.repo.List(s.Ctx(), Query{TenantID: s.TenantID, ModuleType: moduleType})
	if err != nil {
		return nil, bizerror.Internal(err)
	}
	d := &Dashboard{ModuleType: moduleType, ByStatus: map[sla.Status]int{}, ByStage: map[string]int{}}
	for _, status := range sla.Statuses {
		d.ByStatus[status] = 0
	}
	now := common.NowFunc()
	for i := range protocols {
		p := &protocols[i]
		d.Total++
		if !p.IsConcluded() {
			d.Open++
		}
		d.ByStatus[m.calculator.Status(now, p.DueDate, p.ConcludedAt)]++
		d.ByStage[p.CurrentStage]++
	}
	return d, nil
}

type errInvalidStatus sla.Status

func (e errInvalidStatus) Error() string {
	return "unknown sla status " + string(e)
}

func validStatus(status sla.Status) bool {
	return containsStatus(sla.Statuses, status)
}

func containsStatus(statuses []sla.Status, status sla.Status) bool {
	for _, s := range statuses {
		if s == status {
			return true
		}
	}
	return false
}
