package service

import (
	"context"
	"fmt"
	"runtime"
	"sync"

	"github.com/locationprivacy/backend/internal/domain"
	"github.com/locationprivacy/backend/pkg/utils"
)

// Risk weights. Uniqueness dominates; each inferred semantic place adds a
// fixed bonus. The weights sum to 100 at maximum exposure.
const (
	WeightUniqueness       = 0.45
	WeightReidentification = 0.25
	BonusHomeInferred      = 15.0
	BonusWorkInferred      = 15.0
)

// UserAnalysis is everything the scorer derives for one user
type UserAnalysis struct {
	Home       PlaceEstimate
	HasHome    bool
	Work       PlaceEstimate
	HasWork    bool
	Signature  Signature
	MinPoints  int
	PointCount int
}

// RiskScorer turns place inference into RiskScores
type RiskScorer struct {
	inferencer *PlaceInferencer
	workers    int
}

// NewRiskScorer creates a scorer. workers <= 0 uses the CPU count.
func NewRiskScorer(inferencer *PlaceInferencer, workers int) *RiskScorer {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	return &RiskScorer{inferencer: inferencer, workers: workers}
}

// Inferencer returns the underlying place inferencer
func (r *RiskScorer) Inferencer() *PlaceInferencer {
	return r.inferencer
}

// Analyze runs place inference and uniqueness analysis for one user
func (r *RiskScorer) Analyze(user *domain.UserProfile, idx *PopulationIndex) UserAnalysis {
	a := UserAnalysis{PointCount: len(user.Locations)}
	if len(user.Locations) == 0 {
		return a
	}
	a.Home, a.HasHome = r.inferencer.InferHome(user)
	a.Work, a.HasWork = r.inferencer.InferWork(user)
	a.Signature = r.inferencer.Signature(user, idx)
	a.MinPoints = r.inferencer.MinPointsToIdentify(user, idx)
	return a
}

// Score computes the RiskScore for one user of an indexed dataset
func (r *RiskScorer) Score(user *domain.UserProfile, idx *PopulationIndex) domain.RiskScore {
	return r.scoreAnalysis(r.Analyze(user, idx))
}

func (r *RiskScorer) scoreAnalysis(a UserAnalysis) domain.RiskScore {
	if a.PointCount == 0 {
		return domain.MinimumRisk()
	}

	uniqueness := a.Signature.Uniqueness()
	reid := ReidentificationProbability(a.MinPoints, a.PointCount)

	overall := WeightUniqueness*uniqueness + WeightReidentification*reid
	if a.HasHome {
		overall += BonusHomeInferred
	}
	if a.HasWork {
		overall += BonusWorkInferred
	}

	return domain.RiskScore{
		OverallRisk:                 utils.RoundTo(utils.Clamp(overall, 0, 100), 1),
		UniquenessScore:             utils.RoundTo(uniqueness, 1),
		ReidentificationProbability: utils.RoundTo(reid, 1),
		HomeInferred:                a.HasHome,
		WorkInferred:                a.HasWork,
		UniquePatterns:              r.uniquePatterns(a.Signature),
		MinPointsToIdentify:         a.MinPoints,
	}
}

// ReidentificationProbability maps the points needed for identification
// onto [0,100]: one point gives 100, needing the whole trajectory gives 100/n.
func ReidentificationProbability(minPoints, length int) float64 {
	if length <= 0 || minPoints <= 0 {
		return 0
	}
	if minPoints > length {
		minPoints = length
	}
	return 100 * float64(length-minPoints+1) / float64(length)
}

// uniquePatterns describes the unshared place-hours behind the uniqueness score
func (r *RiskScorer) uniquePatterns(sig Signature) []string {
	patterns := []string{}
	if sig.Unique == 0 {
		return patterns
	}
	cfg := r.inferencer.Config()
	for _, s := range sig.Distinct {
		if s.Others > 0 {
			continue
		}
		if len(patterns) >= cfg.MaxPatternPlaces {
			break
		}
		lat, lon := s.Key.Cell.Center(cfg.CellDegrees)
		patterns = append(patterns, fmt.Sprintf(
			"Only user seen near (%.4f, %.4f) between %02d:00-%02d:00 (%d visits)",
			lat, lon, s.Key.Hour, (s.Key.Hour+1)%24, s.Visits,
		))
	}
	patterns = append(patterns, fmt.Sprintf("%d of %d place-hours are unique to this user", sig.Unique, len(sig.Distinct)))
	return patterns
}

// ScoreUser scores one user against the rest of the dataset
func (r *RiskScorer) ScoreUser(ctx context.Context, ds *domain.Dataset, userID string) (domain.RiskScore, error) {
	if err := ctx.Err(); err != nil {
		return domain.RiskScore{}, fmt.Errorf("risk: scoring cancelled: %w", err)
	}
	user, err := ds.User(userID)
	if err != nil {
		return domain.RiskScore{}, err
	}
	return r.Score(user, r.inferencer.BuildIndex(ds)), nil
}

// ScoreDataset scores every user. Users are scored in parallel; the result
// does not depend on scheduling.
func (r *RiskScorer) ScoreDataset(ctx context.Context, ds *domain.Dataset) (map[string]domain.RiskScore, error) {
	idx := r.inferencer.BuildIndex(ds)
	scores := make(map[string]domain.RiskScore, len(ds.Users))

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		jobs = make(chan int)
	)
	for w := 0; w < r.workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				u := &ds.Users[i]
				score := r.Score(u, idx)
				mu.Lock()
				scores[u.UserID] = score
				mu.Unlock()
			}
		}()
	}

	var err error
feed:
	for i := range ds.Users {
		select {
		case <-ctx.Done():
			err = fmt.Errorf("risk: scoring cancelled: %w", ctx.Err())
			break feed
		case jobs <- i:
		}
	}
	close(jobs)
	wg.Wait()

	if err != nil {
		return nil, err
	}
	return scores, nil
}

// Aggregate summarizes per-user scores into one dataset-level score: mean
// scores, any-user inference flags and the smallest positive
// min_points_to_identify. An empty map yields the minimum-risk sentinel.
func Aggregate(scores map[string]domain.RiskScore) domain.RiskScore {
	if len(scores) == 0 {
		return domain.MinimumRisk()
	}

	var overall, uniqueness, reid float64
	agg := domain.MinimumRisk()
	identifiable := 0
	for _, s := range scores {
		overall += s.OverallRisk
		uniqueness += s.UniquenessScore
		reid += s.ReidentificationProbability
		agg.HomeInferred = agg.HomeInferred || s.HomeInferred
		agg.WorkInferred = agg.WorkInferred || s.WorkInferred
		if s.MinPointsToIdentify > 0 && (agg.MinPointsToIdentify == 0 || s.MinPointsToIdentify < agg.MinPointsToIdentify) {
			agg.MinPointsToIdentify = s.MinPointsToIdentify
		}
		if s.MinPointsToIdentify == 1 {
			identifiable++
		}
	}

	n := float64(len(scores))
	agg.OverallRisk = utils.RoundTo(overall/n, 1)
	agg.UniquenessScore = utils.RoundTo(uniqueness/n, 1)
	agg.ReidentificationProbability = utils.RoundTo(reid/n, 1)
	if identifiable > 0 {
		agg.UniquePatterns = append(agg.UniquePatterns, fmt.Sprintf("%d of %d users identifiable from a single point", identifiable, len(scores)))
	}
	return agg
}
