package protocol

import (
	"context"
	"fmt"
	"protocolo/bizerror"
	"sort"
	"sync"

	"github.com/fundwit/go-commons/types"
)

// MemoryRepository keeps everything in process, for tests and single node demos.
type MemoryRepository struct {
	protocols map[types.ID]Protocol
	history   map[types.ID][]HistoryEntry
	sequences map[string]int64
	mu        sync.RWMutex
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		protocols: make(map[types.ID]Protocol),
		history:   make(map[types.ID][]HistoryEntry),
		sequences: make(map[string]int64),
	}
}

func (r *MemoryRepository) Create(ctx context.Context, p *Protocol, entry *HistoryEntry) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, dup := r.protocols[p.ID]; dup {
		return fmt.Errorf("protocol %s already exists", p.ID)
	}
	r.protocols[p.ID] = clone(*p)
	r.history[p.ID] = []HistoryEntry{*entry}
	return nil
}

func (r *MemoryRepository) Find(ctx context.Context, tenantID string, id types.ID) (*Protocol, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, found := r.protocols[id]
	if !found || p.TenantID != tenantID {
		return nil, bizerror.NotFound("protocol", id.String())
	}
	p = clone(p)
	return &p, nil
}

func (r *MemoryRepository) History(ctx context.Context, tenantID string, id types.ID) ([]HistoryEntry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, found := r.protocols[id]
	if !found || p.TenantID != tenantID {
		return nil, bizerror.NotFound("protocol", id.String())
	}
	return append([]HistoryEntry{}, r.history[id]...), nil
}

func (r *MemoryRepository) Commit(ctx context.Context, p *Protocol, expectedVersion int64, entry *HistoryEntry) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	current, found := r.protocols[p.ID]
	if !found || current.TenantID != p.TenantID {
		return bizerror.NotFound("protocol", p.ID.String())
	}
	if current.Version != expectedVersion {
		return bizerror.ErrConflict
	}
	p.Version = expectedVersion + 1
	r.protocols[p.ID] = clone(*p)
	r.history[p.ID] = append(r.history[p.ID], *entry)
	return nil
}

func (r *MemoryRepository) List(ctx context.Context, q Query) ([]Protocol, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	result := []Protocol{}
	for _, p := range r.protocols {
		if q.Match(&p) {
			result = append(result, clone(p))
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, nil
}

func (r *MemoryRepository) NextSequence(ctx context.Context, tenantID string, year int) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	key := fmt.Sprintf("%s/%d", tenantID, year)
	r.sequences[key]++
	return r.sequences[key], nil
}

func (r *MemoryRepository) Scan(ctx context.Context, batchSize int, visit func([]Protocol) error) error {
	batchSize = normalizeBatchSize(batchSize)
	r.mu.RLock()
	all := make([]Protocol, 0, len(r.protocols))
	for _, p := range r.protocols {
		all = append(all, clone(p))
	}
	r.mu.RUnlock()
	sort.Slice(all, func(i, j int) bool { return all[i].ID < all[j].ID })

	for start := 0; start < len(all); start += batchSize {
		if err := ctx.Err(); err != nil {
			return err
		}
		end := start + batchSize
		if end > len(all) {
			end = len(all)
		}
		if err := visit(all[start:end]); err != nil {
			return err
		}
	}
	return nil
}

func clone(p Protocol) Protocol {
	if p.ConcludedAt != nil {
		t := *p.ConcludedAt
		p.ConcludedAt = &t
	}
	return p
}
