package service

import (
	"context"
	"math"

	"github.com/google/uuid"

	"github.com/locationprivacy/backend/internal/domain"
	"github.com/locationprivacy/backend/pkg/utils"
)

// DPSensitivity is the fixed coordinate sensitivity, in degrees, of the
// Laplace mechanism
const DPSensitivity = 0.001

// KAnonymityCellSize returns the generalization grid size for k:
// ~200m at k=2 growing ~100m per step
func KAnonymityCellSize(k int) float64 {
	return 0.002 + float64(k-2)*0.001
}

// LaplaceScale returns the noise scale for a privacy budget
func LaplaceScale(epsilon float64) float64 {
	return DPSensitivity / epsilon
}

// pointTransform rewrites one coordinate
type pointTransform func(lat, lon float64) (float64, float64)

// AnonymizationEngine applies privacy transforms to datasets. It holds no
// per-call state; randomness comes from the injected source.
type AnonymizationEngine struct {
	rng RandomSource
}

// NewAnonymizationEngine creates an engine drawing from rng
func NewAnonymizationEngine(rng RandomSource) *AnonymizationEngine {
	return &AnonymizationEngine{rng: rng}
}

// ValidateParameters checks the technique name and its parameter before any
// computation. params must carry the technique's parameter by name.
func ValidateParameters(technique string, params map[string]float64) (domain.Technique, float64, error) {
	t, err := domain.ParseTechnique(technique)
	if err != nil {
		return "", 0, err
	}
	r := t.Range()
	v, ok := params[r.Name]
	if !ok {
		return "", 0, &domain.ValidationError{Field: r.Name, Min: r.Min, Max: r.Max, Message: "parameter is required"}
	}
	if err := r.Check(v); err != nil {
		return "", 0, err
	}
	return t, v, nil
}

// Apply transforms every coordinate of the dataset and returns a new
// dataset. User ids, timestamps and location types are preserved.
// Transformed coordinates are clamped at the poles and wrapped at the
// antimeridian so the output always validates.
func (e *AnonymizationEngine) Apply(ctx context.Context, ds *domain.Dataset, technique string, params map[string]float64) (*domain.Dataset, domain.Technique, error) {
	t, value, err := ValidateParameters(technique, params)
	if err != nil {
		return nil, "", err
	}
	if err := ds.Validate(); err != nil {
		return nil, "", err
	}

	var transform pointTransform
	switch t {
	case domain.TechniqueKAnonymity:
		transform = e.kAnonymity(int(value))
	case domain.TechniqueSpatialCloaking:
		transform = e.spatialCloaking(value)
	case domain.TechniqueDifferentialPrivacy:
		transform = e.laplaceNoise(value)
	}

	out, err := rebuild(ctx, ds, transform)
	if err != nil {
		return nil, "", err
	}
	return out, t, nil
}

// kAnonymity snaps to a grid whose cell grows with k. Deterministic.
// Group sizes per cell are not verified afterwards.
func (e *AnonymizationEngine) kAnonymity(k int) pointTransform {
	cell := KAnonymityCellSize(k)
	return func(lat, lon float64) (float64, float64) {
		return utils.SnapToGrid(lat, lon, cell)
	}
}

// spatialCloaking moves each point to a uniform angle and uniform distance
// within the radius. Draws are independent per point.
func (e *AnonymizationEngine) spatialCloaking(radiusMeters float64) pointTransform {
	radiusDegrees := utils.MetersToDegrees(radiusMeters)
	return func(lat, lon float64) (float64, float64) {
		angle := uniform(e.rng, 0, 2*math.Pi)
		distance := uniform(e.rng, 0, radiusDegrees)
		return lat + distance*math.Cos(angle), lon + distance*math.Sin(angle)
	}
}

// laplaceNoise adds independent Laplace(0, sensitivity/epsilon) noise to
// latitude and longitude. Each call is a single release.
func (e *AnonymizationEngine) laplaceNoise(epsilon float64) pointTransform {
	scale := LaplaceScale(epsilon)
	return func(lat, lon float64) (float64, float64) {
		return lat + laplace(e.rng, scale), lon + laplace(e.rng, scale)
	}
}

func rebuild(ctx context.Context, ds *domain.Dataset, transform pointTransform) (*domain.Dataset, error) {
	out := &domain.Dataset{
		ID:          uuid.New().String(),
		GeneratedAt: ds.GeneratedAt,
		City:        ds.City,
		Users:       make([]domain.UserProfile, len(ds.Users)),
	}
	apply := func(p domain.LocationPoint) domain.LocationPoint {
		p.Lat, p.Lon = utils.NormalizeCoordinate(transform(p.Lat, p.Lon))
		return p
	}

	for i, u := range ds.Users {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		nu := domain.UserProfile{
			UserID:    u.UserID,
			Locations: make([]domain.LocationPoint, len(u.Locations)),
		}
		for j, p := range u.Locations {
			nu.Locations[j] = apply(p)
		}
		if u.HomeLocation != nil {
			home := apply(*u.HomeLocation)
			nu.HomeLocation = &home
		}
		if u.WorkLocation != nil {
			work := apply(*u.WorkLocation)
			nu.WorkLocation = &work
		}
		out.Users[i] = nu
	}
	return out, nil
}
