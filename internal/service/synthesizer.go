package service

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/locationprivacy/backend/internal/domain"
	"github.com/locationprivacy/backend/internal/observability"
	"github.com/locationprivacy/backend/pkg/utils"
)

// SynthesizerConfig bounds dataset generation
type SynthesizerConfig struct {
	City            domain.CityProfile
	DefaultMinUsers int
	DefaultMaxUsers int
	UserLimit       int
	MinDays         int
	MaxDays         int
	WorkProbability float64
}

// DefaultSynthesizerConfig returns the Calgary defaults
func DefaultSynthesizerConfig() SynthesizerConfig {
	return SynthesizerConfig{
		City:            domain.Calgary(),
		DefaultMinUsers: 30,
		DefaultMaxUsers: 50,
		UserLimit:       500,
		MinDays:         7,
		MaxDays:         21,
		WorkProbability: 0.85,
	}
}

// GenerateOptions selects the dataset to produce
type GenerateOptions struct {
	NumUsers int // 0 picks a random size in the default range
	Refresh  bool
}

// TrajectorySynthesizer generates synthetic city datasets.
// It owns the only mutable shared state of the engine: the dataset cache.
type TrajectorySynthesizer struct {
	cfg     SynthesizerConfig
	rng     RandomSource
	cache   DatasetCache
	logger  *logrus.Logger
	metrics *observability.EngineMetrics

	// Clock returns the generation reference time
	Clock func() time.Time

	mu        sync.Mutex // serializes generate-and-store
	landmarks []domain.Coordinate
}

// NewTrajectorySynthesizer creates a new synthesizer
func NewTrajectorySynthesizer(
	cfg SynthesizerConfig,
	rng RandomSource,
	cache DatasetCache,
	logger *logrus.Logger,
	metrics *observability.EngineMetrics,
) *TrajectorySynthesizer {
	if logger == nil {
		logger = logrus.New()
	}
	if cache == nil {
		cache = NewMemoryDatasetCache()
	}
	if cfg.City.Location == nil {
		cfg.City.Location = time.UTC
	}

	// map order is random; sort so seeded runs are reproducible
	names := make([]string, 0, len(cfg.City.Landmarks))
	for name := range cfg.City.Landmarks {
		names = append(names, name)
	}
	sort.Strings(names)
	landmarks := make([]domain.Coordinate, len(names))
	for i, name := range names {
		landmarks[i] = cfg.City.Landmarks[name]
	}

	return &TrajectorySynthesizer{
		cfg:       cfg,
		rng:       rng,
		cache:     cache,
		logger:    logger,
		metrics:   metrics,
		Clock:     time.Now,
		landmarks: landmarks,
	}
}

// CacheKey identifies the cache slot for a generation request
func (s *TrajectorySynthesizer) CacheKey(numUsers int) string {
	size := "auto"
	if numUsers > 0 {
		size = strconv.Itoa(numUsers)
	}
	return fmt.Sprintf("%s|users=%s", s.cfg.City.Name, size)
}

// Generate returns the cached dataset for the requested configuration, or
// draws a new one when none is cached or Refresh is set
func (s *TrajectorySynthesizer) Generate(ctx context.Context, opts GenerateOptions) (*domain.Dataset, error) {
	if opts.NumUsers < 0 || opts.NumUsers > s.cfg.UserLimit {
		return nil, &domain.ValidationError{Field: "num_users", Value: float64(opts.NumUsers), Min: 1, Max: float64(s.cfg.UserLimit)}
	}

	key := s.CacheKey(opts.NumUsers)

	s.mu.Lock()
	defer s.mu.Unlock()

	if !opts.Refresh {
		if ds, ok := s.cache.Get(key); ok {
			s.metrics.IncCacheHit()
			s.logger.WithFields(logrus.Fields{"dataset_id": ds.ID, "cache_key": key}).Debug("Serving cached dataset")
			return ds, nil
		}
	}

	start := time.Now()
	ds, err := s.generate(ctx, opts.NumUsers)
	if err != nil {
		return nil, err
	}
	s.cache.Set(key, ds)
	s.metrics.IncDatasetsGenerated()
	s.metrics.ObserveOperation("generate", time.Since(start))

	s.logger.WithFields(logrus.Fields{
		"dataset_id": ds.ID,
		"users":      len(ds.Users),
		"points":     ds.PointCount(),
		"refresh":    opts.Refresh,
		"duration":   time.Since(start).String(),
	}).Info("Generated synthetic dataset")

	return ds, nil
}

func (s *TrajectorySynthesizer) generate(ctx context.Context, numUsers int) (*domain.Dataset, error) {
	if numUsers == 0 {
		numUsers = intBetween(s.rng, s.cfg.DefaultMinUsers, s.cfg.DefaultMaxUsers)
	}

	now := s.Clock().In(s.cfg.City.Location)
	users := make([]domain.UserProfile, 0, numUsers)
	for i := 0; i < numUsers; i++ {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("synthesizer: generation cancelled: %w", err)
		}
		userID := fmt.Sprintf("user_%03d", i+1)
		numDays := intBetween(s.rng, s.cfg.MinDays, s.cfg.MaxDays)
		users = append(users, s.generateUserProfile(userID, numDays, now))
	}

	return &domain.Dataset{
		ID:          uuid.New().String(),
		Users:       users,
		GeneratedAt: now,
		City:        s.cfg.City.Name,
	}, nil
}

// generateUserProfile builds one user's routine and replays it for numDays
func (s *TrajectorySynthesizer) generateUserProfile(userID string, numDays int, now time.Time) domain.UserProfile {
	home := s.homeLocation()
	var work *domain.Coordinate
	if s.rng.Float64() < s.cfg.WorkProbability {
		w := s.workLocation(home)
		work = &w
	}
	leisure := s.leisureLocations(intBetween(s.rng, 2, 5))

	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	startDate := today.AddDate(0, 0, -numDays)

	var locations []domain.LocationPoint
	for day := 0; day < numDays; day++ {
		date := startDate.AddDate(0, 0, day)
		locations = append(locations, s.dayTrajectory(date, home, work, leisure)...)
	}

	profile := domain.UserProfile{
		UserID:    userID,
		Locations: locations,
		HomeLocation: &domain.LocationPoint{
			Lat: home.Lat, Lon: home.Lon, Timestamp: now, LocationType: domain.LocationHome,
		},
	}
	if work != nil {
		profile.WorkLocation = &domain.LocationPoint{
			Lat: work.Lat, Lon: work.Lon, Timestamp: now, LocationType: domain.LocationWork,
		}
	}
	return profile
}

func (s *TrajectorySynthesizer) homeLocation() domain.Coordinate {
	areas := s.cfg.City.ResidentialAreas
	base := areas[s.rng.Intn(len(areas))]
	return s.jitter(base, 0.01)
}

// workLocation picks a work area at least 500m from home when possible
func (s *TrajectorySynthesizer) workLocation(home domain.Coordinate) domain.Coordinate {
	areas := s.cfg.City.WorkAreas
	var w domain.Coordinate
	for attempt := 0; attempt < 10; attempt++ {
		w = s.jitter(areas[s.rng.Intn(len(areas))], 0.005)
		if utils.HaversineMeters(home.Lat, home.Lon, w.Lat, w.Lon) > minHomeWorkSeparation {
			break
		}
	}
	return w
}

// leisureLocations samples n landmarks without replacement
func (s *TrajectorySynthesizer) leisureLocations(n int) []domain.Coordinate {
	pool := make([]domain.Coordinate, len(s.landmarks))
	copy(pool, s.landmarks)
	if n > len(pool) {
		n = len(pool)
	}
	out := make([]domain.Coordinate, 0, n)
	for i := 0; i < n; i++ {
		j := i + s.rng.Intn(len(pool)-i)
		pool[i], pool[j] = pool[j], pool[i]
		out = append(out, s.jitter(pool[i], 0.003))
	}
	return out
}

func (s *TrajectorySynthesizer) jitter(c domain.Coordinate, sigma float64) domain.Coordinate {
	return s.cfg.City.Bounds.Clamp(domain.Coordinate{
		Lat: c.Lat + gauss(s.rng, sigma),
		Lon: c.Lon + gauss(s.rng, sigma),
	})
}

// dayTrajectory replays the routine for one calendar day
func (s *TrajectorySynthesizer) dayTrajectory(
	date time.Time,
	home domain.Coordinate,
	work *domain.Coordinate,
	leisure []domain.Coordinate,
) []domain.LocationPoint {
	var points []domain.LocationPoint
	at := func(hour, minute int) time.Time {
		return date.Add(time.Duration(hour)*time.Hour + time.Duration(minute)*time.Minute)
	}
	add := func(c domain.Coordinate, ts time.Time, sigma float64, kind domain.LocationType) {
		points = append(points, domain.LocationPoint{
			Lat:          c.Lat + gauss(s.rng, sigma),
			Lon:          c.Lon + gauss(s.rng, sigma),
			Timestamp:    ts,
			LocationType: kind,
		})
	}
	addTransit := func(from, to domain.Coordinate, n int, start time.Time, step time.Duration) {
		for i, tp := range s.interpolateTransit(from, to, n) {
			points = append(points, domain.LocationPoint{
				Lat:          tp.Lat,
				Lon:          tp.Lon,
				Timestamp:    start.Add(step * time.Duration(i+1)),
				LocationType: domain.LocationTransit,
			})
		}
	}

	// Early morning at home
	add(home, at(6, s.rng.Intn(60)), 0.0005, domain.LocationHome)

	weekday := date.Weekday() != time.Saturday && date.Weekday() != time.Sunday

	switch {
	case weekday && work != nil:
		commute := at(7, 30+s.rng.Intn(30))
		addTransit(home, *work, intBetween(s.rng, 2, 4), commute, 10*time.Minute)

		workStart := at(9, s.rng.Intn(31))
		for _, offset := range []int{0, 2, 4, 6, 8} {
			add(*work, workStart.Add(time.Duration(offset)*time.Hour), 0.0003, domain.LocationWork)
		}

		commuteHome := at(17, 20+s.rng.Intn(11))
		addTransit(*work, home, intBetween(s.rng, 2, 4), commuteHome, 10*time.Minute)

		// Occasional after-work stop
		if len(leisure) > 0 && s.rng.Float64() < 0.25 {
			spot := leisure[s.rng.Intn(len(leisure))]
			add(spot, at(18, 10+s.rng.Intn(40)), 0.0005, domain.LocationLeisure)
		}
	default:
		if work != nil && s.rng.Float64() < 0.1 {
			// Rare weekend shift
			add(*work, at(11, s.rng.Intn(60)), 0.0003, domain.LocationWork)
		}
		if len(leisure) > 0 && s.rng.Float64() > 0.3 {
			spot := leisure[s.rng.Intn(len(leisure))]
			visit := at(intBetween(s.rng, 10, 15), s.rng.Intn(60))
			addTransit(home, spot, 2, visit, 5*time.Minute)
			add(spot, visit.Add(30*time.Minute), 0.0005, domain.LocationLeisure)
			add(spot, visit.Add(2*time.Hour), 0.0005, domain.LocationLeisure)
		}
	}

	// Evening and night at home
	for _, hour := range []int{19, 21, 23} {
		add(home, at(hour, s.rng.Intn(60)), 0.0005, domain.LocationHome)
	}

	sort.SliceStable(points, func(i, j int) bool {
		return points[i].Timestamp.Before(points[j].Timestamp)
	})
	return points
}

// interpolateTransit places n noisy points along the straight path
func (s *TrajectorySynthesizer) interpolateTransit(from, to domain.Coordinate, n int) []domain.Coordinate {
	out := make([]domain.Coordinate, 0, n)
	for i := 1; i <= n; i++ {
		t := float64(i) / float64(n+1)
		out = append(out, domain.Coordinate{
			Lat: utils.Lerp(from.Lat, to.Lat, t) + gauss(s.rng, 0.002),
			Lon: utils.Lerp(from.Lon, to.Lon, t) + gauss(s.rng, 0.002),
		})
	}
	return out
}
