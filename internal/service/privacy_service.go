package service

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/locationprivacy/backend/internal/domain"
	"github.com/locationprivacy/backend/internal/observability"
)

// PrivacyService is the entry point for every engine operation
type PrivacyService struct {
	synth     *TrajectorySynthesizer
	scorer    *RiskScorer
	engine    *AnonymizationEngine
	evaluator *UtilityEvaluator
	repo      DataRepository
	logger    *logrus.Logger
	metrics   *observability.EngineMetrics

	wgBg sync.WaitGroup // tracks background goroutines for graceful shutdown
}

// NewPrivacyService creates a new privacy service
func NewPrivacyService(
	synth *TrajectorySynthesizer,
	scorer *RiskScorer,
	engine *AnonymizationEngine,
	evaluator *UtilityEvaluator,
	repo DataRepository,
	logger *logrus.Logger,
	metrics *observability.EngineMetrics,
) *PrivacyService {
	if logger == nil {
		logger = logrus.New()
	}
	return &PrivacyService{
		synth:     synth,
		scorer:    scorer,
		engine:    engine,
		evaluator: evaluator,
		repo:      repo,
		logger:    logger,
		metrics:   metrics,
	}
}

// WaitBackground blocks until all background save goroutines complete.
// Call during graceful shutdown to avoid dropped writes.
func (s *PrivacyService) WaitBackground() {
	s.wgBg.Wait()
}

// Generate returns a synthetic dataset, cached unless refresh is set
func (s *PrivacyService) Generate(ctx context.Context, numUsers int, refresh bool) (*domain.Dataset, error) {
	ds, err := s.synth.Generate(ctx, GenerateOptions{NumUsers: numUsers, Refresh: refresh})
	if err != nil {
		s.recordFailure(err)
		return nil, err
	}
	return ds, nil
}

// CalculateRisk scores every user of the dataset
func (s *PrivacyService) CalculateRisk(ctx context.Context, ds *domain.Dataset) (map[string]domain.RiskScore, error) {
	if err := ds.Validate(); err != nil {
		s.recordFailure(err)
		return nil, err
	}
	start := time.Now()
	scores, err := s.scorer.ScoreDataset(ctx, ds)
	if err != nil {
		return nil, err
	}
	s.metrics.AddUsersScored(len(scores))
	s.metrics.ObserveOperation("calculate_risk", time.Since(start))
	s.logger.WithFields(logrus.Fields{
		"dataset_id": ds.ID,
		"users":      len(scores),
		"duration":   time.Since(start).String(),
	}).Debug("Scored dataset")
	return scores, nil
}

// CalculateUserRisk scores one user against the rest of the dataset
func (s *PrivacyService) CalculateUserRisk(ctx context.Context, ds *domain.Dataset, userID string) (domain.RiskScore, error) {
	if err := ds.Validate(); err != nil {
		s.recordFailure(err)
		return domain.RiskScore{}, err
	}
	score, err := s.scorer.ScoreUser(ctx, ds, userID)
	if err != nil {
		return domain.RiskScore{}, err
	}
	s.metrics.AddUsersScored(1)
	return score, nil
}

// Anonymize applies one technique and evaluates the result
func (s *PrivacyService) Anonymize(ctx context.Context, ds *domain.Dataset, technique string, params map[string]float64) (*domain.AnonymizedDataset, error) {
	start := time.Now()
	out, t, err := s.engine.Apply(ctx, ds, technique, params)
	if err != nil {
		s.recordFailure(err)
		return nil, err
	}

	result, err := s.evaluator.Evaluate(ctx, ds, out, t, params)
	if err != nil {
		return nil, err
	}

	s.metrics.ObserveAnonymization(string(t), result.UtilityLoss)
	s.metrics.AddUsersScored(len(out.Users))
	s.metrics.ObserveOperation("anonymize", time.Since(start))
	s.logger.WithFields(logrus.Fields{
		"dataset_id":   ds.ID,
		"technique":    t,
		"parameters":   params,
		"utility_loss": result.UtilityLoss,
		"new_risk":     result.NewRiskScore.OverallRisk,
		"duration":     time.Since(start).String(),
	}).Info("Anonymized dataset")

	s.saveRunAsync(domain.AnalysisRun{
		DatasetID:   ds.ID,
		Kind:        domain.RunAnonymize,
		Technique:   t,
		Parameters:  result.Parameters,
		UserCount:   len(ds.Users),
		UtilityLoss: result.UtilityLoss,
		NewRisk:     result.NewRiskScore.OverallRisk,
	})
	return result, nil
}

// IdentifyPatterns returns the inferred places and unique place-hours of one user
func (s *PrivacyService) IdentifyPatterns(ctx context.Context, ds *domain.Dataset, userID string) (domain.PatternResult, error) {
	if err := ds.Validate(); err != nil {
		s.recordFailure(err)
		return domain.PatternResult{}, err
	}
	user, err := ds.User(userID)
	if err != nil {
		return domain.PatternResult{}, err
	}

	inferencer := s.scorer.Inferencer()
	idx := inferencer.BuildIndex(ds)
	analysis := s.scorer.Analyze(user, idx)
	score := s.scorer.scoreAnalysis(analysis)

	result := domain.PatternResult{
		UserID:             user.UserID,
		FrequentLocations:  inferencer.FrequentLocations(user),
		UniqueTrajectories: score.UniquePatterns,
		RiskFactors:        riskFactors(analysis),
	}
	var stamp time.Time
	if len(user.Locations) > 0 {
		stamp = user.Locations[0].Timestamp
	}
	if analysis.HasHome {
		result.HomeLocation = &domain.LocationPoint{
			Lat: analysis.Home.Center.Lat, Lon: analysis.Home.Center.Lon,
			Timestamp: stamp, LocationType: domain.LocationHome,
		}
	}
	if analysis.HasWork {
		result.WorkLocation = &domain.LocationPoint{
			Lat: analysis.Work.Center.Lat, Lon: analysis.Work.Center.Lon,
			Timestamp: stamp, LocationType: domain.LocationWork,
		}
	}
	return result, nil
}

func riskFactors(a UserAnalysis) []string {
	factors := []string{}
	if a.HasHome {
		factors = append(factors, "Home location can be inferred from night patterns")
	}
	if a.HasWork {
		factors = append(factors, "Work location can be inferred from weekday patterns")
	}
	if a.PointCount > 100 {
		factors = append(factors, "Large location history increases identification risk")
	}
	if a.MinPoints == 1 {
		factors = append(factors, "A single location point is enough to single out this user")
	}
	if a.Signature.Unique > 0 {
		factors = append(factors, "Visits places at hours no other user does")
	}
	return factors
}

// ComparePrivacy scores both datasets and reports reduction and distortion
func (s *PrivacyService) ComparePrivacy(
	ctx context.Context,
	original, anonymized *domain.Dataset,
	technique string,
	params map[string]float64,
) (*domain.ComparisonResult, error) {
	t, _, err := ValidateParameters(technique, params)
	if err != nil {
		s.recordFailure(err)
		return nil, err
	}
	if err := original.Validate(); err != nil {
		s.recordFailure(err)
		return nil, err
	}
	if err := anonymized.Validate(); err != nil {
		s.recordFailure(err)
		return nil, err
	}

	start := time.Now()
	result, err := s.evaluator.Compare(ctx, original, anonymized, t, params)
	if err != nil {
		return nil, err
	}
	s.metrics.AddUsersScored(len(original.Users) + len(anonymized.Users))
	s.metrics.ObserveOperation("compare", time.Since(start))

	s.saveRunAsync(domain.AnalysisRun{
		DatasetID:     original.ID,
		Kind:          domain.RunCompare,
		Technique:     t,
		Parameters:    result.Parameters,
		UserCount:     len(original.Users),
		UtilityLoss:   result.UtilityLoss,
		OriginalRisk:  result.OriginalRisk.OverallRisk,
		NewRisk:       result.AnonymizedRisk.OverallRisk,
		RiskReduction: result.RiskReduction,
	})
	return result, nil
}

// RecentRuns lists the newest logged runs
func (s *PrivacyService) RecentRuns(ctx context.Context, limit int) ([]domain.AnalysisRun, error) {
	if s.repo == nil {
		return []domain.AnalysisRun{}, nil
	}
	runs, err := s.repo.GetRecentRuns(ctx, limit)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(runs, func(i, j int) bool { return runs[i].CreatedAt.After(runs[j].CreatedAt) })
	return runs, nil
}

// Health checks the run log storage
func (s *PrivacyService) Health(ctx context.Context) error {
	if s.repo == nil {
		return nil
	}
	return s.repo.Health(ctx)
}

// saveRunAsync persists a run without delaying the response
func (s *PrivacyService) saveRunAsync(run domain.AnalysisRun) {
	if s.repo == nil {
		return
	}
	run.ID = uuid.New().String()
	run.CreatedAt = time.Now().UTC()

	s.wgBg.Add(1)
	go func() {
		defer s.wgBg.Done()
		bgCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.repo.SaveAnalysisRun(bgCtx, run); err != nil {
			s.logger.WithError(err).WithField("run_id", run.ID).Warn("Failed to save analysis run")
		}
	}()
}

func (s *PrivacyService) recordFailure(err error) {
	if errors.Is(err, domain.ErrInvalidParameter) {
		s.metrics.IncValidationFailure(domain.FieldOf(err))
	}
}
