package service

import (
	"context"
	"math"

	"github.com/locationprivacy/backend/internal/domain"
	"github.com/locationprivacy/backend/pkg/utils"
)

// DefaultUtilityReferenceMeters is the mean displacement that counts as
// total utility loss, shared by all techniques
const DefaultUtilityReferenceMeters = 1000.0

// UtilityEvaluator measures distortion and re-scores protected data with the
// same RiskScorer used for the original
type UtilityEvaluator struct {
	scorer          *RiskScorer
	referenceMeters float64
}

// NewUtilityEvaluator creates an evaluator
func NewUtilityEvaluator(scorer *RiskScorer, referenceMeters float64) *UtilityEvaluator {
	if referenceMeters <= 0 {
		referenceMeters = DefaultUtilityReferenceMeters
	}
	return &UtilityEvaluator{scorer: scorer, referenceMeters: referenceMeters}
}

// Distortion compares coordinates pairwise. Users are matched by id and
// points by position.
func (u *UtilityEvaluator) Distortion(original, anonymized *domain.Dataset) domain.DistortionStats {
	byID := make(map[string]*domain.UserProfile, len(anonymized.Users))
	for i := range anonymized.Users {
		byID[anonymized.Users[i].UserID] = &anonymized.Users[i]
	}

	var distances []float64
	for _, orig := range original.Users {
		anon, ok := byID[orig.UserID]
		if !ok {
			continue
		}
		n := len(orig.Locations)
		if len(anon.Locations) < n {
			n = len(anon.Locations)
		}
		for i := 0; i < n; i++ {
			a, b := orig.Locations[i], anon.Locations[i]
			distances = append(distances, utils.HaversineMeters(a.Lat, a.Lon, b.Lat, b.Lon))
		}
	}

	if len(distances) == 0 {
		return domain.DistortionStats{}
	}

	stats := domain.DistortionStats{MinMeters: math.Inf(1), Points: len(distances)}
	var sum float64
	for _, d := range distances {
		sum += d
		stats.MaxMeters = math.Max(stats.MaxMeters, d)
		stats.MinMeters = math.Min(stats.MinMeters, d)
	}
	mean := sum / float64(len(distances))
	var variance float64
	for _, d := range distances {
		variance += (d - mean) * (d - mean)
	}
	stats.AvgMeters = utils.RoundTo(mean, 2)
	stats.MaxMeters = utils.RoundTo(stats.MaxMeters, 2)
	stats.MinMeters = utils.RoundTo(stats.MinMeters, 2)
	stats.StdMeters = utils.RoundTo(math.Sqrt(variance/float64(len(distances))), 2)
	return stats
}

// UtilityLoss maps mean displacement onto [0,100] against the reference distance
func (u *UtilityEvaluator) UtilityLoss(original, anonymized *domain.Dataset) float64 {
	return u.lossFromMean(u.Distortion(original, anonymized).AvgMeters)
}

func (u *UtilityEvaluator) lossFromMean(meanMeters float64) float64 {
	return utils.RoundTo(utils.Clamp(meanMeters/u.referenceMeters*100, 0, 100), 2)
}

// Evaluate fills utility loss and the re-computed risk for an anonymized dataset
func (u *UtilityEvaluator) Evaluate(
	ctx context.Context,
	original, anonymized *domain.Dataset,
	technique domain.Technique,
	params map[string]float64,
) (*domain.AnonymizedDataset, error) {
	scores, err := u.scorer.ScoreDataset(ctx, anonymized)
	if err != nil {
		return nil, err
	}
	return &domain.AnonymizedDataset{
		Dataset:      anonymized,
		Technique:    technique,
		Parameters:   copyParams(params),
		UtilityLoss:  u.UtilityLoss(original, anonymized),
		NewRiskScore: Aggregate(scores),
	}, nil
}

// Compare scores both datasets the same way and reports the reduction
func (u *UtilityEvaluator) Compare(
	ctx context.Context,
	original, anonymized *domain.Dataset,
	technique domain.Technique,
	params map[string]float64,
) (*domain.ComparisonResult, error) {
	origScores, err := u.scorer.ScoreDataset(ctx, original)
	if err != nil {
		return nil, err
	}
	anonScores, err := u.scorer.ScoreDataset(ctx, anonymized)
	if err != nil {
		return nil, err
	}

	origRisk := Aggregate(origScores)
	anonRisk := Aggregate(anonScores)
	distortion := u.Distortion(original, anonymized)

	return &domain.ComparisonResult{
		OriginalRisk:   origRisk,
		AnonymizedRisk: anonRisk,
		RiskReduction:  RiskReduction(origRisk.OverallRisk, anonRisk.OverallRisk),
		UtilityLoss:    u.lossFromMean(distortion.AvgMeters),
		TechniqueUsed:  technique,
		Parameters:     copyParams(params),
		Distortion:     distortion,
	}, nil
}

// RiskReduction is the relative drop in overall risk, in percent. It is
// 0 when the original risk is 0 and negative when risk went up.
func RiskReduction(original, anonymized float64) float64 {
	if original == 0 {
		return 0
	}
	return utils.RoundTo((original-anonymized)/original*100, 2)
}

func copyParams(params map[string]float64) map[string]float64 {
	out := make(map[string]float64, len(params))
	for k, v := range params {
		out[k] = v
	}
	return out
}
