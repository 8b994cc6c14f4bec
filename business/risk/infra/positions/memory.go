package positions

import (
	"context"
	"slices"
	"strings"
	"sync"

	"github.com/fd1az/synth-indexer/business/risk/app"
	"github.com/fd1az/synth-indexer/business/risk/domain"
	"github.com/fd1az/synth-indexer/internal/apperror"
)

var _ app.PositionRepository = (*MemoryRepository)(nil)

// MemoryRepository keeps positions in a map.
type MemoryRepository struct {
	mu        sync.RWMutex
	positions map[string]domain.Position
}

// NewMemoryRepository creates a repository holding positions.
func NewMemoryRepository(positions ...domain.Position) *MemoryRepository {
	r := &MemoryRepository{positions: make(map[string]domain.Position, len(positions))}
	_ = r.Upsert(context.Background(), positions...)
	return r
}

// Upsert adds or replaces positions.
func (r *MemoryRepository) Upsert(_ context.Context, positions ...domain.Position) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, p := range positions {
		r.positions[p.ID] = p
	}
	return nil
}

// GetPosition returns the position with id.
func (r *MemoryRepository) GetPosition(_ context.Context, id string) (domain.Position, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.positions[id]
	if !ok {
		return domain.Position{}, apperror.NotFound(apperror.CodePositionNotFound, id)
	}
	return p, nil
}

// ListPositions returns positions matching filter ordered by id.
func (r *MemoryRepository) ListPositions(_ context.Context, filter domain.PositionFilter) ([]domain.Position, error) {
	r.mu.RLock()
	out := make([]domain.Position, 0, len(r.positions))
	for _, p := range r.positions {
		if filter.Matches(p) {
			out = append(out, p)
		}
	}
	r.mu.RUnlock()

	slices.SortFunc(out, func(a, b domain.Position) int { return strings.Compare(a.ID, b.ID) })
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}
