package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/locationprivacy/backend/internal/domain"
)

var schema = []string{
	`CREATE TABLE IF NOT EXISTS analysis_runs (
		id             TEXT PRIMARY KEY,
		dataset_id     TEXT NOT NULL,
		kind           TEXT NOT NULL CHECK (kind IN ('anonymize', 'compare')),
		technique      TEXT NOT NULL,
		parameters     JSONB NOT NULL,
		user_count     INTEGER NOT NULL,
		utility_loss   DOUBLE PRECISION NOT NULL,
		original_risk  DOUBLE PRECISION NOT NULL,
		new_risk       DOUBLE PRECISION NOT NULL,
		risk_reduction DOUBLE PRECISION NOT NULL,
		created_at     TIMESTAMPTZ NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_analysis_runs_created ON analysis_runs(created_at DESC)`,
}

// PostgresRepository implements domain.DataRepository
type PostgresRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresRepository creates a new PostgreSQL repository
func NewPostgresRepository(pool *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{pool: pool}
}

// EnsureSchema creates the run log table when missing
func (r *PostgresRepository) EnsureSchema(ctx context.Context) error {
	for _, stmt := range schema {
		if _, err := r.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("postgres: failed to create schema: %w", err)
		}
	}
	return nil
}

// SaveAnalysisRun persists one run to PostgreSQL
func (r *PostgresRepository) SaveAnalysisRun(ctx context.Context, run domain.AnalysisRun) error {
	query := `
		INSERT INTO analysis_runs (
			id, dataset_id, kind, technique, parameters, user_count,
			utility_loss, original_risk, new_risk, risk_reduction, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`

	params, err := json.Marshal(run.Parameters)
	if err != nil {
		return fmt.Errorf("postgres: failed to encode parameters: %w", err)
	}

	_, err = r.pool.Exec(ctx, query,
		run.ID, run.DatasetID, string(run.Kind), string(run.Technique), params, run.UserCount,
		run.UtilityLoss, run.OriginalRisk, run.NewRisk, run.RiskReduction, run.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("postgres: failed to save analysis run: %w", err)
	}

	return nil
}

// GetRecentRuns retrieves the newest runs from PostgreSQL
func (r *PostgresRepository) GetRecentRuns(ctx context.Context, limit int) ([]domain.AnalysisRun, error) {
	query := `
		SELECT id, dataset_id, kind, technique, parameters, user_count,
			   utility_loss, original_risk, new_risk, risk_reduction, created_at
		FROM analysis_runs
		ORDER BY created_at DESC
		LIMIT $1
	`

	rows, err := r.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("postgres: failed to query analysis runs: %w", err)
	}
	defer rows.Close()

	results := []domain.AnalysisRun{}
	for rows.Next() {
		var (
			run    domain.AnalysisRun
			kind   string
			tech   string
			params []byte
		)
		err := rows.Scan(
			&run.ID, &run.DatasetID, &kind, &tech, &params, &run.UserCount,
			&run.UtilityLoss, &run.OriginalRisk, &run.NewRisk, &run.RiskReduction, &run.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("postgres: failed to scan analysis run: %w", err)
		}
		if err := json.Unmarshal(params, &run.Parameters); err != nil {
			return nil, fmt.Errorf("postgres: failed to decode parameters: %w", err)
		}
		run.Kind = domain.RunKind(kind)
		run.Technique = domain.Technique(tech)
		results = append(results, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: failed to read analysis runs: %w", err)
	}

	return results, nil
}

// Health checks database connectivity
func (r *PostgresRepository) Health(ctx context.Context) error {
	if err := r.pool.Ping(ctx); err != nil {
		return fmt.Errorf("postgres: health check failed: %w", err)
	}
	return nil
}
