package postgres

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/locationprivacy/backend/internal/domain"
)

func TestMockRepositoryNewestFirst(t *testing.T) {
	repo := NewMockRepository()
	ctx := context.Background()
	base := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)

	for i := 0; i < 3; i++ {
		require.NoError(t, repo.SaveAnalysisRun(ctx, domain.AnalysisRun{
			ID:        fmt.Sprintf("run-%d", i),
			Kind:      domain.RunAnonymize,
			Technique: domain.TechniqueKAnonymity,
			CreatedAt: base.Add(time.Duration(i) * time.Minute),
		}))
	}

	runs, err := repo.GetRecentRuns(ctx, 2)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, "run-2", runs[0].ID)
	assert.Equal(t, "run-1", runs[1].ID)

	all, err := repo.GetRecentRuns(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, all, 3)
	assert.NoError(t, repo.Health(ctx))
}

func TestMockRepositoryCapacity(t *testing.T) {
	repo := NewMockRepository()
	ctx := context.Background()
	for i := 0; i < mockCapacity+10; i++ {
		require.NoError(t, repo.SaveAnalysisRun(ctx, domain.AnalysisRun{ID: fmt.Sprintf("run-%d", i)}))
	}
	runs, err := repo.GetRecentRuns(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, runs, mockCapacity)
	assert.Equal(t, fmt.Sprintf("run-%d", mockCapacity+9), runs[0].ID)
}
