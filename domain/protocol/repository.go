package protocol

import (
	"context"
	"fmt"

	"github.com/fundwit/go-commons/types"
)

// Repository persists protocols and their history. Commit is a compare-and-swap on (id, version):
// it fails with bizerror.ErrConflict when the stored version is no longer expectedVersion.
type Repository interface {
	Create(ctx context.Context, p *Protocol, entry *HistoryEntry) error
	Find(ctx context.Context, tenantID string, id types.ID) (*Protocol, error)
	History(ctx context.Context, tenantID string, id types.ID) ([]HistoryEntry, error)
	Commit(ctx context.Context, p *Protocol, expectedVersion int64, entry *HistoryEntry) error
	List(ctx context.Context, q Query) ([]Protocol, error)
	NextSequence(ctx context.Context, tenantID string, year int) (int64, error)
	// Scan visits every protocol of every tenant in batches, ids ascend within a batch.
	Scan(ctx context.Context, batchSize int, visit func([]Protocol) error) error
}

// Query narrows the protocols of one tenant, empty fields match everything.
type Query struct {
	TenantID        string   `json:"-"               form:"-"`
	ModuleType      string   `json:"moduleType"      form:"moduleType"`
	Stages          []string `json:"stages"          form:"stage"`
	DepartmentRef   string   `json:"departmentRef"   form:"departmentRef"`
	AssignedUserRef string   `json:"assignedUserRef" form:"assignedUserRef"`
	CitizenRef      string   `json:"citizenRef"      form:"citizenRef"`
	OpenOnly        bool     `json:"openOnly"        form:"openOnly"`
}

func (q Query) Match(p *Protocol) bool {
	if p.TenantID != q.TenantID {
		return false
	}
	if q.ModuleType != "" && p.ModuleType != q.ModuleType {
		return false
	}
	if len(q.Stages) > 0 && !contains(q.Stages, p.CurrentStage) {
		return false
	}
	if q.DepartmentRef != "" && p.DepartmentRef != q.DepartmentRef {
		return false
	}
	if q.AssignedUserRef != "" && p.AssignedUserRef != q.AssignedUserRef {
		return false
	}
	if q.CitizenRef != "" && p.CitizenRef != q.CitizenRef {
		return false
	}
	if q.OpenOnly && p.IsConcluded() {
		return false
	}
	return true
}

func FormatNumber(year int, sequence int64) string {
	return fmt.Sprintf("%d-%06d", year, sequence)
}

func contains(values []string, v string) bool {
	for _, value := range values {
		if value == v {
			return true
		}
	}
	return false
}
