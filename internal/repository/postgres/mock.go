package postgres

import (
	"context"
	"sync"

	"github.com/locationprivacy/backend/internal/domain"
)

const mockCapacity = 200

// MockRepository implements domain.DataRepository in memory for demo mode.
// It keeps the newest runs only.
type MockRepository struct {
	mu   sync.RWMutex
	runs []domain.AnalysisRun
}

// NewMockRepository creates a new mock repository
func NewMockRepository() *MockRepository {
	return &MockRepository{}
}

// SaveAnalysisRun keeps the run in memory
func (r *MockRepository) SaveAnalysisRun(ctx context.Context, run domain.AnalysisRun) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.runs = append(r.runs, run)
	if len(r.runs) > mockCapacity {
		r.runs = r.runs[len(r.runs)-mockCapacity:]
	}
	return nil
}

// GetRecentRuns returns the newest runs first
func (r *MockRepository) GetRecentRuns(ctx context.Context, limit int) ([]domain.AnalysisRun, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if limit <= 0 || limit > len(r.runs) {
		limit = len(r.runs)
	}
	out := make([]domain.AnalysisRun, 0, limit)
	for i := len(r.runs) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, r.runs[i])
	}
	return out, nil
}

// Health always returns nil in mock mode
func (r *MockRepository) Health(ctx context.Context) error {
	return nil
}
