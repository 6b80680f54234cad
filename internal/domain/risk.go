package domain

import (
	"fmt"
	"math"
	"time"
)

// Technique names one of the anonymization mechanisms
type Technique string

const (
	TechniqueKAnonymity          Technique = "k-anonymity"
	TechniqueSpatialCloaking     Technique = "spatial-cloaking"
	TechniqueDifferentialPrivacy Technique = "differential-privacy"
)

// ParseTechnique validates a technique name
func ParseTechnique(s string) (Technique, error) {
	switch t := Technique(s); t {
	case TechniqueKAnonymity, TechniqueSpatialCloaking, TechniqueDifferentialPrivacy:
		return t, nil
	}
	return "", &InvalidParameterError{
		Field:  "technique",
		Reason: fmt.Sprintf("unknown technique %q (valid: %s, %s, %s)", s, TechniqueKAnonymity, TechniqueSpatialCloaking, TechniqueDifferentialPrivacy),
	}
}

// ParamRange is the accepted interval for a technique parameter
type ParamRange struct {
	Name    string  `json:"name"`
	Min     float64 `json:"min"`
	Max     float64 `json:"max"`
	Default float64 `json:"default"`
	Integer bool    `json:"integer"`
}

// Check validates v against the range without clamping
func (r ParamRange) Check(v float64) error {
	if math.IsNaN(v) || math.IsInf(v, 0) || v < r.Min || v > r.Max {
		return &ValidationError{Field: r.Name, Value: v, Min: r.Min, Max: r.Max}
	}
	if r.Integer && v != math.Trunc(v) {
		return &ValidationError{Field: r.Name, Value: v, Min: r.Min, Max: r.Max, Message: fmt.Sprintf("must be an integer (got %g)", v)}
	}
	return nil
}

// Parameter ranges accepted by the anonymization engine
var (
	KRange       = ParamRange{Name: "k", Min: 2, Max: 20, Default: 5, Integer: true}
	RadiusRange  = ParamRange{Name: "radius_meters", Min: 50, Max: 5000, Default: 500}
	EpsilonRange = ParamRange{Name: "epsilon", Min: 0.01, Max: 10.0, Default: 1.0}
)

// Range returns the parameter range for a technique
func (t Technique) Range() ParamRange {
	switch t {
	case TechniqueKAnonymity:
		return KRange
	case TechniqueSpatialCloaking:
		return RadiusRange
	default:
		return EpsilonRange
	}
}

// RiskScore is a re-identification risk assessment
type RiskScore struct {
	OverallRisk                 float64  `json:"overall_risk"`
	UniquenessScore             float64  `json:"uniqueness_score"`
	ReidentificationProbability float64  `json:"reidentification_probability"`
	HomeInferred                bool     `json:"home_inferred"`
	WorkInferred                bool     `json:"work_inferred"`
	UniquePatterns              []string `json:"unique_patterns"`
	MinPointsToIdentify         int      `json:"min_points_to_identify"`
}

// MinimumRisk is the score reported for users without any location data
func MinimumRisk() RiskScore {
	return RiskScore{UniquePatterns: []string{}}
}

// AnonymizedDataset is the output of one anonymization run
type AnonymizedDataset struct {
	Dataset      *Dataset           `json:"dataset"`
	Technique    Technique          `json:"technique"`
	Parameters   map[string]float64 `json:"parameters"`
	UtilityLoss  float64            `json:"utility_loss"`
	NewRiskScore RiskScore          `json:"new_risk_score"`
}

// PatternResult summarizes one user's inferred places
type PatternResult struct {
	UserID             string          `json:"user_id"`
	HomeLocation       *LocationPoint  `json:"home_location"`
	WorkLocation       *LocationPoint  `json:"work_location"`
	FrequentLocations  []LocationPoint `json:"frequent_locations"`
	UniqueTrajectories []string        `json:"unique_trajectories"`
	RiskFactors        []string        `json:"risk_factors"`
}

// DistortionStats describes point displacement between two datasets
type DistortionStats struct {
	AvgMeters float64 `json:"avg_distortion_meters"`
	MaxMeters float64 `json:"max_distortion_meters"`
	MinMeters float64 `json:"min_distortion_meters"`
	StdMeters float64 `json:"std_distortion_meters"`
	Points    int     `json:"points_compared"`
}

// ComparisonResult is a before/after privacy comparison
type ComparisonResult struct {
	OriginalRisk   RiskScore          `json:"original_risk"`
	AnonymizedRisk RiskScore          `json:"anonymized_risk"`
	RiskReduction  float64            `json:"risk_reduction"`
	UtilityLoss    float64            `json:"utility_loss"`
	TechniqueUsed  Technique          `json:"technique_used"`
	Parameters     map[string]float64 `json:"parameters"`
	Distortion     DistortionStats    `json:"distortion"`
}

// RunKind distinguishes entries of the analysis run log
type RunKind string

const (
	RunAnonymize RunKind = "anonymize"
	RunCompare   RunKind = "compare"
)

// AnalysisRun is one logged anonymization or comparison
type AnalysisRun struct {
	ID            string             `json:"id"`
	DatasetID     string             `json:"dataset_id"`
	Kind          RunKind            `json:"kind"`
	Technique     Technique          `json:"technique"`
	Parameters    map[string]float64 `json:"parameters"`
	UserCount     int                `json:"user_count"`
	UtilityLoss   float64            `json:"utility_loss"`
	OriginalRisk  float64            `json:"original_risk"`
	NewRisk       float64            `json:"new_risk"`
	RiskReduction float64            `json:"risk_reduction"`
	CreatedAt     time.Time          `json:"created_at"`
}
