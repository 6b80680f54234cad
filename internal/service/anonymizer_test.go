package service

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/locationprivacy/backend/internal/domain"
	"github.com/locationprivacy/backend/pkg/utils"
)

func TestValidateParameters(t *testing.T) {
	tests := []struct {
		name      string
		technique string
		params    map[string]float64
		field     string
	}{
		{"k lower bound", "k-anonymity", map[string]float64{"k": 2}, ""},
		{"k upper bound", "k-anonymity", map[string]float64{"k": 20}, ""},
		{"k too small", "k-anonymity", map[string]float64{"k": 1}, "k"},
		{"k too large", "k-anonymity", map[string]float64{"k": 21}, "k"},
		{"k fractional", "k-anonymity", map[string]float64{"k": 5.5}, "k"},
		{"k missing", "k-anonymity", map[string]float64{"radius_meters": 100}, "k"},
		{"radius bounds", "spatial-cloaking", map[string]float64{"radius_meters": 5000}, ""},
		{"radius too small", "spatial-cloaking", map[string]float64{"radius_meters": 49}, "radius_meters"},
		{"epsilon lower bound", "differential-privacy", map[string]float64{"epsilon": 0.01}, ""},
		{"epsilon zero", "differential-privacy", map[string]float64{"epsilon": 0}, "epsilon"},
		{"epsilon nan", "differential-privacy", map[string]float64{"epsilon": math.NaN()}, "epsilon"},
		{"unknown technique", "blur", map[string]float64{"k": 5}, "technique"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := ValidateParameters(tt.technique, tt.params)
			if tt.field == "" {
				assert.NoError(t, err)
				return
			}
			require.ErrorIs(t, err, domain.ErrInvalidParameter)
			assert.Equal(t, tt.field, domain.FieldOf(err))
		})
	}
}

func TestApplyValidatesBeforeTouchingDataset(t *testing.T) {
	engine := NewAnonymizationEngine(NewLockedSource(1))

	_, _, err := engine.Apply(context.Background(), nil, "k-anonymity", map[string]float64{"k": 99})
	assert.Equal(t, "k", domain.FieldOf(err))

	_, _, err = engine.Apply(context.Background(), nil, "k-anonymity", map[string]float64{"k": 5})
	assert.Equal(t, "dataset", domain.FieldOf(err))
}

func TestKAnonymityCellSize(t *testing.T) {
	assert.InDelta(t, 0.002, KAnonymityCellSize(2), 1e-12)
	assert.InDelta(t, 0.005, KAnonymityCellSize(5), 1e-12)
	assert.InDelta(t, 0.020, KAnonymityCellSize(20), 1e-12)
}

func TestKAnonymitySnapsDeterministically(t *testing.T) {
	engine := NewAnonymizationEngine(NewLockedSource(1))
	ds := &domain.Dataset{ID: "orig", City: "Calgary", Users: []domain.UserProfile{
		{UserID: "u1", Locations: []domain.LocationPoint{
			{Lat: 51.0447, Lon: -114.0719, Timestamp: at(0, 8, 0), LocationType: domain.LocationWork},
		}},
	}}

	first, technique, err := engine.Apply(context.Background(), ds, "k-anonymity", map[string]float64{"k": 5})
	require.NoError(t, err)
	second, _, err := engine.Apply(context.Background(), ds, "k-anonymity", map[string]float64{"k": 5})
	require.NoError(t, err)

	assert.Equal(t, domain.TechniqueKAnonymity, technique)
	got := first.Users[0].Locations[0]
	assert.InDelta(t, 51.045, got.Lat, 1e-9)
	assert.InDelta(t, -114.070, got.Lon, 1e-9)
	assert.Equal(t, got, second.Users[0].Locations[0])
	assert.Equal(t, at(0, 8, 0), got.Timestamp)
	assert.Equal(t, domain.LocationWork, got.LocationType)

	assert.NotEqual(t, ds.ID, first.ID)
	assert.NotEqual(t, first.ID, second.ID)
	assert.Equal(t, 51.0447, ds.Users[0].Locations[0].Lat, "input must not be modified")
}

func TestAnonymizationPreservesShape(t *testing.T) {
	ds, err := newTestSynthesizer(9).Generate(context.Background(), GenerateOptions{NumUsers: 3})
	require.NoError(t, err)
	engine := NewAnonymizationEngine(NewLockedSource(9))

	for _, tc := range []struct {
		technique string
		params    map[string]float64
	}{
		{"k-anonymity", map[string]float64{"k": 10}},
		{"spatial-cloaking", map[string]float64{"radius_meters": 800}},
		{"differential-privacy", map[string]float64{"epsilon": 0.5}},
	} {
		out, _, err := engine.Apply(context.Background(), ds, tc.technique, tc.params)
		require.NoError(t, err, tc.technique)
		require.Len(t, out.Users, len(ds.Users))
		for i, u := range out.Users {
			orig := ds.Users[i]
			assert.Equal(t, orig.UserID, u.UserID)
			require.Len(t, u.Locations, len(orig.Locations))
			for j := range u.Locations {
				assert.Equal(t, orig.Locations[j].Timestamp, u.Locations[j].Timestamp)
				assert.Equal(t, orig.Locations[j].LocationType, u.Locations[j].LocationType)
			}
			require.NotNil(t, u.HomeLocation)
		}
	}
}

func TestSpatialCloakingStaysWithinRadius(t *testing.T) {
	ds, err := newTestSynthesizer(4).Generate(context.Background(), GenerateOptions{NumUsers: 3})
	require.NoError(t, err)
	engine := NewAnonymizationEngine(NewLockedSource(4))

	const radius = 300.0
	out, _, err := engine.Apply(context.Background(), ds, "spatial-cloaking", map[string]float64{"radius_meters": radius})
	require.NoError(t, err)

	moved := 0
	for i, u := range out.Users {
		for j, p := range u.Locations {
			o := ds.Users[i].Locations[j]
			d := utils.HaversineMeters(o.Lat, o.Lon, p.Lat, p.Lon)
			// radius/111000 degrees is slightly more than radius on the sphere
			assert.LessOrEqual(t, d, radius*1.005)
			if d > 1 {
				moved++
			}
		}
	}
	assert.Positive(t, moved)
}

func TestLaplaceDistribution(t *testing.T) {
	rng := NewLockedSource(42)
	const n = 20000
	var sum, sumSq float64
	for i := 0; i < n; i++ {
		x := laplace(rng, 1)
		sum += x
		sumSq += x * x
	}
	mean := sum / n
	std := math.Sqrt(sumSq/n - mean*mean)

	assert.InDelta(t, 0, mean, 0.05)
	assert.InDelta(t, math.Sqrt2, std, 0.05)
}

func TestDifferentialPrivacyNoiseShrinksWithEpsilon(t *testing.T) {
	ds, err := newTestSynthesizer(5).Generate(context.Background(), GenerateOptions{NumUsers: 3})
	require.NoError(t, err)
	engine := NewAnonymizationEngine(NewLockedSource(5))
	eval := NewUtilityEvaluator(newTestScorer(), 0)

	prev := math.Inf(1)
	for _, eps := range []float64{0.1, 1, 10} {
		out, _, err := engine.Apply(context.Background(), ds, "differential-privacy", map[string]float64{"epsilon": eps})
		require.NoError(t, err)
		avg := eval.Distortion(ds, out).AvgMeters
		assert.Less(t, avg, prev, "epsilon %g", eps)
		prev = avg
	}
}

func TestApplyHonoursCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	engine := NewAnonymizationEngine(NewLockedSource(1))
	_, _, err := engine.Apply(ctx, uniquenessFixture(), "spatial-cloaking", map[string]float64{"radius_meters": 100})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestAnonymizedCoordinatesStayValidNearPoleAndAntimeridian(t *testing.T) {
	edge := domain.UserProfile{UserID: "edge"}
	for i := 0; i < 50; i++ {
		edge.Locations = append(edge.Locations, point(89.999, 179.999, at(0, 12, i)))
	}
	ds := &domain.Dataset{Users: []domain.UserProfile{edge}}
	engine := NewAnonymizationEngine(NewLockedSource(8))

	for _, tc := range []struct {
		technique string
		params    map[string]float64
	}{
		{"differential-privacy", map[string]float64{"epsilon": 0.01}},
		{"spatial-cloaking", map[string]float64{"radius_meters": 5000}},
		{"k-anonymity", map[string]float64{"k": 20}},
	} {
		out, _, err := engine.Apply(context.Background(), ds, tc.technique, tc.params)
		require.NoError(t, err, tc.technique)
		assert.NoError(t, out.Validate(), tc.technique)
	}
}
