//go:build integration

package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/locationprivacy/backend/internal/domain"
)

// setupTestContainer creates a PostgreSQL test container for integration tests
func setupTestContainer(t *testing.T, ctx context.Context) *pgxpool.Pool {
	t.Helper()

	container, err := postgres.Run(ctx, "postgres:15-alpine",
		postgres.WithDatabase("privacy_test"),
		postgres.WithUsername("test_user"),
		postgres.WithPassword("test_password"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second)),
	)
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = container.Terminate(context.Background())
	})

	connStr, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	pool, err := pgxpool.New(ctx, connStr)
	require.NoError(t, err)
	t.Cleanup(pool.Close)
	return pool
}

func TestPostgresRepositoryRoundTrip(t *testing.T) {
	ctx := context.Background()
	repo := NewPostgresRepository(setupTestContainer(t, ctx))
	require.NoError(t, repo.EnsureSchema(ctx))
	require.NoError(t, repo.Health(ctx))

	base := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)
	older := domain.AnalysisRun{
		ID:          uuid.New().String(),
		DatasetID:   "ds-1",
		Kind:        domain.RunAnonymize,
		Technique:   domain.TechniqueKAnonymity,
		Parameters:  map[string]float64{"k": 5},
		UserCount:   40,
		UtilityLoss: 21.5,
		NewRisk:     48.2,
		CreatedAt:   base,
	}
	newer := domain.AnalysisRun{
		ID:            uuid.New().String(),
		DatasetID:     "ds-1",
		Kind:          domain.RunCompare,
		Technique:     domain.TechniqueDifferentialPrivacy,
		Parameters:    map[string]float64{"epsilon": 0.5},
		UserCount:     40,
		UtilityLoss:   33.1,
		OriginalRisk:  91.4,
		NewRisk:       52.0,
		RiskReduction: 43.11,
		CreatedAt:     base.Add(time.Minute),
	}
	require.NoError(t, repo.SaveAnalysisRun(ctx, older))
	require.NoError(t, repo.SaveAnalysisRun(ctx, newer))

	runs, err := repo.GetRecentRuns(ctx, 10)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, newer.ID, runs[0].ID)
	assert.Equal(t, domain.RunCompare, runs[0].Kind)
	assert.Equal(t, 0.5, runs[0].Parameters["epsilon"])
	assert.Equal(t, older.ID, runs[1].ID)
	assert.True(t, older.CreatedAt.Equal(runs[1].CreatedAt))
}
