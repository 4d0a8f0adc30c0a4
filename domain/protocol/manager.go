package protocol

import (
	"errors"
	"protocolo/bizerror"
	"protocolo/common"
	"protocolo/domain/flow"
	"protocolo/domain/sla"
	"protocolo/domain/state"
	"protocolo/event"
	"protocolo/idgen"
	"protocolo/session"
	"sort"
	"strconv"
	"time"

	"github.com/fundwit/go-commons/types"
	"github.com/go-playground/validator/v10"
	"github.com/sirupsen/logrus"
	"github.com/sony/sonyflake"
)

var validate = validator.New()

type ProtocolManagerTraits interface {
	Create(c *ProtocolCreation, s *session.Session) (*ProtocolDetail, error)
	Detail(id types.ID, s *session.Session) (*ProtocolDetail, error)
	History(id types.ID, s *session.Session) ([]HistoryEntry, error)
	Transition(id types.ID, req *TransitionRequest, s *session.Session) (*ProtocolDetail, error)
	RequestUpdate(id types.ID, req *EscalationRequest, s *session.Session) (*HistoryEntry, error)
	Comment(id types.ID, req *CommentRequest, s *session.Session) (*HistoryEntry, error)
	ChangePriority(id types.ID, priority int, s *session.Session) (*Protocol, error)
	Assign(id types.ID, assignee string, s *session.Session) (*Protocol, error)
	Reopen(id types.ID, req *ReopenRequest, s *session.Session) (*ProtocolDetail, error)
	SLAStatus(id types.ID, now *time.Time, s *session.Session) (*sla.Report, error)
	Staleness(id types.ID, s *session.Session) (*Staleness, error)
	Query(q *ProtocolQuery, s *session.Session) ([]ProtocolListItem, error)
	Dashboard(moduleType string, s *session.Session) (*Dashboard, error)
}

type Options struct {
	ReopenEnabled   bool
	ConflictRetries int
	Escalation      EscalationPolicy
}

func DefaultOptions() Options {
	return Options{Escalation: DefaultEscalationPolicy()}
}

type ProtocolManager struct {
	repo       Repository
	workflows  flow.WorkflowProvider
	calculator *sla.Calculator
	filters    *FilterEvaluator
	idWorker   *sonyflake.Sonyflake
	options    Options
}

func NewProtocolManager(repo Repository, workflows flow.WorkflowProvider, calculator *sla.Calculator, options Options) *ProtocolManager {
	return &ProtocolManager{
		repo:       repo,
		workflows:  workflows,
		calculator: calculator,
		filters:    NewFilterEvaluator(),
		idWorker:   idgen.NewWorker(),
		options:    options,
	}
}

func (m *ProtocolManager) Create(c *ProtocolCreation, s *session.Session) (*ProtocolDetail, error) {
	if err := validate.Struct(c); err != nil {
		return nil, &bizerror.ErrBadParam{Cause: err}
	}
	priority := c.Priority
	if priority == 0 {
		priority = PriorityDefault
	}
	if err := CheckPriority(priority); err != nil {
		return nil, err
	}
	ctx := s.Ctx()
	wf, err := m.workflows.GetWorkflow(ctx, s.TenantID, c.ModuleType)
	if err != nil {
		return nil, err
	}

	now := common.NowFunc()
	year := now.In(m.calculator.Location).Year()
	sequence, err := m.repo.NextSequence(ctx, s.TenantID, year)
	if err != nil {
		return nil, bizerror.Internal(err)
	}
	initial := wf.InitialStage()
	p := Protocol{
		ID:              idgen.NextID(m.idWorker),
		Number:          FormatNumber(year, sequence),
		TenantID:        s.TenantID,
		ModuleType:      wf.ModuleType,
		CurrentStage:    initial.ID,
		Priority:        priority,
		Summary:         c.Summary,
		CreatedAt:       now,
		DueDate:         m.calculator.ComputeDueDate(now, wf.DefaultSLA),
		CitizenRef:      c.CitizenRef,
		DepartmentRef:   c.DepartmentRef,
		AssignedUserRef: c.AssignedUser,
		Version:         1,
	}
	if wf.StateMachine().IsTerminal(initial.ID) {
		concludedAt := now
		p.ConcludedAt = &concludedAt
	}
	entry := HistoryEntry{
		ID:         idgen.NextID(m.idWorker),
		ProtocolID: p.ID,
		Action:     ActionCreated,
		ToStage:    initial.ID,
		Timestamp:  now,
		ActorRef:   s.ActorRef(),
	}
	if err := m.repo.Create(ctx, &p, &entry); err != nil {
		return nil, bizerror.Internal(err)
	}
	m.publish(&p, &entry, s)
	return m.detail(&p, wf, []HistoryEntry{entry}, now), nil
}

func (m *ProtocolManager) Detail(id types.ID, s *session.Session) (*ProtocolDetail, error) {
	p, wf, err := m.load(id, s)
	if err != nil {
		return nil, err
	}
	history, err := m.repo.History(s.Ctx(), s.TenantID, id)
	if err != nil {
		return nil, bizerror.Internal(err)
	}
	return m.detail(p, wf, history, common.NowFunc()), nil
}

func (m *ProtocolManager) History(id types.ID, s *session.Session) ([]HistoryEntry, error) {
	history, err := m.repo.History(s.Ctx(), s.TenantID, id)
	if err != nil {
		return nil, bizerror.Internal(err)
	}
	return history, nil
}

func (m *ProtocolManager) Transition(id types.ID, req *TransitionRequest, s *session.Session) (*ProtocolDetail, error) {
	if err := validate.Struct(req); err != nil {
		return nil, &bizerror.ErrBadParam{Cause: err}
	}
	p, _, err := m.mutate(id, s, false, func(p Protocol, wf *flow.Workflow, _ []HistoryEntry, now time.Time) (Protocol, *HistoryEntry, error) {
		moved, entry, err := Transit(p, wf, req.TargetStage, s.ActorRef(), req.Comment, now)
		return moved, &entry, err
	})
	if err != nil {
		return nil, err
	}
	return m.Detail(p.ID, s)
}

func (m *ProtocolManager) RequestUpdate(id types.ID, req *EscalationRequest, s *session.Session) (*HistoryEntry, error) {
	_, entry, err := m.mutate(id, s, true, func(p Protocol, wf *flow.Workflow, history []HistoryEntry, now time.Time) (Protocol, *HistoryEntry, error) {
		entry, err := m.options.Escalation.RequestUpdate(p, wf, history, s.ActorRef(), req.Message, now)
		return p, &entry, err
	})
	return entry, err
}

// Comment is accepted on concluded protocols too, it is an audit annotation.
func (m *ProtocolManager) Comment(id types.ID, req *CommentRequest, s *session.Session) (*HistoryEntry, error) {
	if err := validate.Struct(req); err != nil {
		return nil, &bizerror.ErrBadParam{Cause: err}
	}
	_, entry, err := m.mutate(id, s, false, func(p Protocol, _ *flow.Workflow, _ []HistoryEntry, now time.Time) (Protocol, *HistoryEntry, error) {
		return p, &HistoryEntry{Action: ActionCommentAdded, Comment: req.Comment, Timestamp: now, ActorRef: s.ActorRef()}, nil
	})
	return entry, err
}

func (m *ProtocolManager) ChangePriority(id types.ID, priority int, s *session.Session) (*Protocol, error) {
	if err := CheckPriority(priority); err != nil {
		return nil, err
	}
	p, _, err := m.mutate(id, s, false, func(p Protocol, _ *flow.Workflow, _ []HistoryEntry, now time.Time) (Protocol, *HistoryEntry, error) {
		if p.IsConcluded() {
			return p, nil, &bizerror.ErrTerminalState{Stage: p.CurrentStage}
		}
		if p.Priority == priority {
			return p, nil, nil
		}
		entry := &HistoryEntry{Action: ActionPriorityChanged, OldValue: strconv.Itoa(p.Priority), NewValue: strconv.Itoa(priority),
			Timestamp: now, ActorRef: s.ActorRef()}
		p.Priority = priority
		return p, entry, nil
	})
	return p, err
}

func (m *ProtocolManager) Assign(id types.ID, assignee string, s *session.Session) (*Protocol, error) {
	p, _, err := m.mutate(id, s, false, func(p Protocol, _ *flow.Workflow, _ []HistoryEntry, now time.Time) (Protocol, *HistoryEntry, error) {
		if p.IsConcluded() {
			return p, nil, &bizerror.ErrTerminalState{Stage: p.CurrentStage}
		}
		if p.AssignedUserRef == assignee {
			return p, nil, nil
		}
		entry := &HistoryEntry{Action: ActionAssignmentChanged, OldValue: p.AssignedUserRef, NewValue: assignee,
			Timestamp: now, ActorRef: s.ActorRef()}
		p.AssignedUserRef = assignee
		return p, entry, nil
	})
	return p, err
}

func (m *ProtocolManager) Reopen(id types.ID, req *ReopenRequest, s *session.Session) (*ProtocolDetail, error) {
	if !m.options.ReopenEnabled {
		return nil, bizerror.ErrReopenDisabled
	}
	p, _, err := m.mutate(id, s, false, func(p Protocol, wf *flow.Workflow, _ []HistoryEntry, now time.Time) (Protocol, *HistoryEntry, error) {
		reopened, entry, err := Reopen(p, wf, s.ActorRef(), req.Comment, now)
		return reopened, &entry, err
	})
	if err != nil {
		return nil, err
	}
	return m.Detail(p.ID, s)
}

// SLAStatus is computed at now, the current time when now is nil.
func (m *ProtocolManager) SLAStatus(id types.ID, now *time.Time, s *session.Session) (*sla.Report, error) {
	p, err := m.repo.Find(s.Ctx(), s.TenantID, id)
	if err != nil {
		return nil, bizerror.Internal(err)
	}
	at := common.NowFunc()
	if now != nil {
		at = *now
	}
	report := m.calculator.Report(at, p.DueDate, p.ConcludedAt)
	return &report, nil
}

func (m *ProtocolManager) Staleness(id types.ID, s *session.Session) (*Staleness, error) {
	history, err := m.repo.History(s.Ctx(), s.TenantID, id)
	if err != nil {
		return nil, bizerror.Internal(err)
	}
	staleness := ComputeStaleness(history, common.NowFunc())
	return &staleness, nil
}

type changeFunc func(p Protocol, wf *flow.Workflow, history []HistoryEntry, now time.Time) (Protocol, *HistoryEntry, error)

// mutate reads, applies change and commits with compare-and-swap on the read version. A nil entry is a no-op.
func (m *ProtocolManager) mutate(id types.ID, s *session.Session, withHistory bool, change changeFunc) (*Protocol, *HistoryEntry, error) {
	ctx := s.Ctx()
	for attempt := 0; ; attempt++ {
		p, wf, err := m.load(id, s)
		if err != nil {
			return nil, nil, err
		}
		var history []HistoryEntry
		if withHistory {
			if history, err = m.repo.History(ctx, s.TenantID, id); err != nil {
				return nil, nil, bizerror.Internal(err)
			}
		}

		next, entry, err := change(*p, wf, history, common.NowFunc())
		if err != nil {
			return nil, nil, err
		}
		if entry == nil {
			return p, nil, nil
		}
		entry.ID = idgen.NextID(m.idWorker)
		entry.ProtocolID = p.ID

		err = m.repo.Commit(ctx, &next, p.Version, entry)
		if errors.Is(err, bizerror.ErrConflict) && attempt < m.options.ConflictRetries {
			logrus.WithField("protocol", p.Number).Debugf("conflict on attempt %d, retry with fresh state", attempt+1)
			continue
		}
		if err != nil {
			return nil, nil, bizerror.Internal(err)
		}
		m.publish(&next, entry, s)
		return &next, entry, nil
	}
}

func (m *ProtocolManager) load(id types.ID, s *session.Session) (*Protocol, *flow.Workflow, error) {
	p, err := m.repo.Find(s.Ctx(), s.TenantID, id)
	if err != nil {
		return nil, nil, bizerror.Internal(err)
	}
	wf, err := m.workflows.GetWorkflow(s.Ctx(), p.TenantID, p.ModuleType)
	if err != nil {
		return nil, nil, err
	}
	return p, wf, nil
}

func (m *ProtocolManager) detail(p *Protocol, wf *flow.Workflow, history []HistoryEntry, now time.Time) *ProtocolDetail {
	d := &ProtocolDetail{
		Protocol:             *p,
		SLA:                  m.calculator.Report(now, p.DueDate, p.ConcludedAt),
		AvailableTransitions: []state.Stage{},
		Staleness:            ComputeStaleness(history, now),
	}
	if !p.IsConcluded() {
		if next := wf.StateMachine().AvailableTransitions(p.CurrentStage); next != nil {
			d.AvailableTransitions = next
		}
	}
	return d
}

func (m *ProtocolManager) publish(p *Protocol, entry *HistoryEntry, s *session.Session) {
	ev := event.Event{
		TenantID:  p.TenantID,
		Action:    string(entry.Action),
		FromStage: entry.FromStage,
		ToStage:   entry.ToStage,
		Message:   entry.Comment,
	}
	switch entry.Action {
	case ActionPriorityChanged:
		ev.UpdatedProperties = event.UpdatedProperties{{PropertyName: "priority", OldValue: entry.OldValue, NewValue: entry.NewValue}}
	case ActionAssignmentChanged:
		ev.UpdatedProperties = event.UpdatedProperties{{PropertyName: "assignedUserRef", OldValue: entry.OldValue, NewValue: entry.NewValue}}
	}
	event.PublishFunc(event.CreateEvent(event.SourceTypeProtocol, p.ID, p.Number, ev, &s.Identity, entry.Timestamp))
}

func sortPending(items []ProtocolListItem) {
	sort.SliceStable(items, func(i, j int) bool {
		a, b := items[i], items[j]
		if a.Priority != b.Priority {
			return a.Priority > b.Priority
		}
		if !a.DueDate.Equal(b.DueDate) {
			return a.DueDate.Before(b.DueDate)
		}
		return a.ID < b.ID
	})
}
