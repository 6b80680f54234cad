package domain

import (
	"context"
)

// DataRepository defines the interface for the analysis run log.
// This follows the Dependency Inversion Principle - domain defines the interface
type DataRepository interface {
	// SaveAnalysisRun persists one anonymization or comparison result
	SaveAnalysisRun(ctx context.Context, run AnalysisRun) error

	// GetRecentRuns retrieves the newest runs first
	GetRecentRuns(ctx context.Context, limit int) ([]AnalysisRun, error)

	// Health checks storage connectivity
	Health(ctx context.Context) error
}
