package service

import (
	"fmt"
	"sort"
	"time"

	"github.com/locationprivacy/backend/internal/domain"
	"github.com/locationprivacy/backend/pkg/utils"
)

// minHomeWorkSeparation is the distance below which a daytime cluster is
// treated as the home itself rather than a workplace
const minHomeWorkSeparation = 500.0

// TimeWindow selects points by local hour. The window is half-open
// [StartHour, EndHour) and wraps past midnight when StartHour > EndHour.
type TimeWindow struct {
	StartHour    int
	EndHour      int
	WeekdaysOnly bool
}

// Contains reports whether ts falls inside the window
func (w TimeWindow) Contains(ts time.Time) bool {
	if w.WeekdaysOnly {
		if wd := ts.Weekday(); wd == time.Saturday || wd == time.Sunday {
			return false
		}
	}
	h := ts.Hour()
	if w.StartHour <= w.EndHour {
		return h >= w.StartHour && h < w.EndHour
	}
	return h >= w.StartHour || h < w.EndHour
}

// InferenceConfig tunes place inference and uniqueness analysis
type InferenceConfig struct {
	NightWindow      TimeWindow
	WorkWindow       TimeWindow
	HomeEpsMeters    float64
	WorkEpsMeters    float64
	FrequentEps      float64
	MinPoints        int
	CellDegrees      float64
	MaxFrequent      int
	MaxPatternPlaces int
}

// DefaultInferenceConfig returns the documented defaults
func DefaultInferenceConfig() InferenceConfig {
	return InferenceConfig{
		NightWindow:      TimeWindow{StartHour: 22, EndHour: 7},
		WorkWindow:       TimeWindow{StartHour: 9, EndHour: 17, WeekdaysOnly: true},
		HomeEpsMeters:    150,
		WorkEpsMeters:    200,
		FrequentEps:      200,
		MinPoints:        3,
		CellDegrees:      0.002,
		MaxFrequent:      5,
		MaxPatternPlaces: 5,
	}
}

// PlaceEstimate is an inferred semantic location
type PlaceEstimate struct {
	Center  domain.Coordinate
	Support int // points in the winning cluster
}

// PlaceInferencer infers home, work and trajectory uniqueness from raw
// points only. Ground-truth fields on UserProfile are never read.
type PlaceInferencer struct {
	cfg       InferenceConfig
	clusterer Clusterer
}

// NewPlaceInferencer creates an inferencer. A nil clusterer uses DBSCAN.
func NewPlaceInferencer(cfg InferenceConfig, clusterer Clusterer) *PlaceInferencer {
	if clusterer == nil {
		clusterer = NewDBSCAN()
	}
	return &PlaceInferencer{cfg: cfg, clusterer: clusterer}
}

// Config returns the inference settings
func (p *PlaceInferencer) Config() InferenceConfig {
	return p.cfg
}

// RequirePoints fails when a user cannot support any cluster at all
func (p *PlaceInferencer) RequirePoints(user *domain.UserProfile) error {
	if len(user.Locations) < p.cfg.MinPoints {
		return &domain.InsufficientDataError{UserID: user.UserID, Have: len(user.Locations), Need: p.cfg.MinPoints}
	}
	return nil
}

func filterWindow(points []domain.LocationPoint, w TimeWindow) []domain.LocationPoint {
	out := make([]domain.LocationPoint, 0, len(points))
	for _, pt := range points {
		if w.Contains(pt.Timestamp) {
			out = append(out, pt)
		}
	}
	return out
}

// InferHome clusters night-time points and returns the largest cluster's centroid
func (p *PlaceInferencer) InferHome(user *domain.UserProfile) (PlaceEstimate, bool) {
	night := filterWindow(user.Locations, p.cfg.NightWindow)
	if len(night) < p.cfg.MinPoints {
		return PlaceEstimate{}, false
	}
	best := largestCluster(p.clusterer.Cluster(night, p.cfg.HomeEpsMeters, p.cfg.MinPoints))
	if len(best) < p.cfg.MinPoints {
		return PlaceEstimate{}, false
	}
	return PlaceEstimate{Center: Centroid(best), Support: len(best)}, true
}

// InferWork clusters weekday working-hours points. Clusters within
// minHomeWorkSeparation of the inferred home are skipped.
func (p *PlaceInferencer) InferWork(user *domain.UserProfile) (PlaceEstimate, bool) {
	day := filterWindow(user.Locations, p.cfg.WorkWindow)
	if len(day) < p.cfg.MinPoints {
		return PlaceEstimate{}, false
	}
	clusters := p.clusterer.Cluster(day, p.cfg.WorkEpsMeters, p.cfg.MinPoints)
	if len(clusters) == 0 {
		return PlaceEstimate{}, false
	}

	home, hasHome := p.InferHome(user)
	var best []domain.LocationPoint
	var bestCenter domain.Coordinate
	for _, c := range clusters {
		center := Centroid(c)
		if hasHome && utils.HaversineMeters(center.Lat, center.Lon, home.Center.Lat, home.Center.Lon) <= minHomeWorkSeparation {
			continue
		}
		if len(c) > len(best) {
			best, bestCenter = c, center
		}
	}
	if len(best) < p.cfg.MinPoints {
		return PlaceEstimate{}, false
	}
	return PlaceEstimate{Center: bestCenter, Support: len(best)}, true
}

// FrequentLocations returns centroids of the densest clusters over all points
func (p *PlaceInferencer) FrequentLocations(user *domain.UserProfile) []domain.LocationPoint {
	clusters := p.clusterer.Cluster(user.Locations, p.cfg.FrequentEps, p.cfg.MinPoints)
	sort.SliceStable(clusters, func(i, j int) bool { return len(clusters[i]) > len(clusters[j]) })
	if len(clusters) > p.cfg.MaxFrequent {
		clusters = clusters[:p.cfg.MaxFrequent]
	}

	out := make([]domain.LocationPoint, 0, len(clusters))
	for _, c := range clusters {
		center := Centroid(c)
		out = append(out, domain.LocationPoint{
			Lat:          center.Lat,
			Lon:          center.Lon,
			Timestamp:    c[0].Timestamp,
			LocationType: domain.LocationFrequent,
		})
	}
	return out
}

// PlaceHour is a (grid cell, hour of day) pair, the unit of uniqueness analysis
type PlaceHour struct {
	Cell utils.Cell
	Hour int
}

func (k PlaceHour) String() string {
	return fmt.Sprintf("%d:%d@%02d", k.Cell.Row, k.Cell.Col, k.Hour)
}

// KeyOf maps a point to its place-hour
func (p *PlaceInferencer) KeyOf(pt domain.LocationPoint) PlaceHour {
	return PlaceHour{
		Cell: utils.CellOf(pt.Lat, pt.Lon, p.cfg.CellDegrees),
		Hour: pt.Timestamp.Hour(),
	}
}

// PopulationIndex records which users visited each place-hour of a dataset.
// It is built once per dataset and is read-only afterwards.
type PopulationIndex struct {
	holders map[PlaceHour]map[string]struct{}
	users   map[string]*domain.UserProfile
	order   []string
}

// BuildIndex indexes every user of the dataset
func (p *PlaceInferencer) BuildIndex(ds *domain.Dataset) *PopulationIndex {
	idx := &PopulationIndex{
		holders: make(map[PlaceHour]map[string]struct{}),
		users:   make(map[string]*domain.UserProfile, len(ds.Users)),
		order:   make([]string, 0, len(ds.Users)),
	}
	for i := range ds.Users {
		u := &ds.Users[i]
		idx.users[u.UserID] = u
		idx.order = append(idx.order, u.UserID)
		for _, pt := range u.Locations {
			key := p.KeyOf(pt)
			set, ok := idx.holders[key]
			if !ok {
				set = make(map[string]struct{})
				idx.holders[key] = set
			}
			set[u.UserID] = struct{}{}
		}
	}
	return idx
}

// Users returns user ids in dataset order
func (idx *PopulationIndex) Users() []string {
	return idx.order
}

// User returns the indexed profile
func (idx *PopulationIndex) User(userID string) (*domain.UserProfile, bool) {
	u, ok := idx.users[userID]
	return u, ok
}

// sharedWith reports how many other users visited key
func (idx *PopulationIndex) sharedWith(key PlaceHour, userID string) int {
	set := idx.holders[key]
	n := len(set)
	if _, self := set[userID]; self {
		n--
	}
	return n
}

// PlaceHourStat is one place-hour of a user's trajectory
type PlaceHourStat struct {
	Key     PlaceHour
	Visits  int
	Others  int
	Example domain.LocationPoint
}

// Signature summarizes a user's place-hours against the population
type Signature struct {
	Distinct []PlaceHourStat // ordered by visits desc, then first appearance
	Unique   int             // place-hours no other user visited
}

// Signature computes the user's place-hour frequency table
func (p *PlaceInferencer) Signature(user *domain.UserProfile, idx *PopulationIndex) Signature {
	pos := make(map[PlaceHour]int)
	var stats []PlaceHourStat
	for _, pt := range user.Locations {
		key := p.KeyOf(pt)
		if i, ok := pos[key]; ok {
			stats[i].Visits++
			continue
		}
		pos[key] = len(stats)
		stats = append(stats, PlaceHourStat{Key: key, Visits: 1, Others: idx.sharedWith(key, user.UserID), Example: pt})
	}
	sort.SliceStable(stats, func(i, j int) bool { return stats[i].Visits > stats[j].Visits })

	sig := Signature{Distinct: stats}
	for _, s := range stats {
		if s.Others == 0 {
			sig.Unique++
		}
	}
	return sig
}

// Uniqueness is the share of the user's distinct place-hours that no other
// user visited, scaled to [0,100]. Adding an unshared place-hour never
// lowers it.
func (s Signature) Uniqueness() float64 {
	if len(s.Distinct) == 0 {
		return 0
	}
	return 100 * float64(s.Unique) / float64(len(s.Distinct))
}

// MinPointsToIdentify returns the length of the shortest chronological
// prefix of the user's points whose place-hours no other user shares in
// full. It returns the trajectory length when the whole trajectory stays
// ambiguous and 0 for an empty trajectory.
func (p *PlaceInferencer) MinPointsToIdentify(user *domain.UserProfile, idx *PopulationIndex) int {
	points := chronological(user.Locations)
	if len(points) == 0 {
		return 0
	}

	candidates := make(map[string]struct{}, len(idx.order))
	for _, id := range idx.order {
		if id != user.UserID {
			candidates[id] = struct{}{}
		}
	}
	if len(candidates) == 0 {
		return 1
	}

	for n, pt := range points {
		holders := idx.holders[p.KeyOf(pt)]
		for id := range candidates {
			if _, ok := holders[id]; !ok {
				delete(candidates, id)
			}
		}
		if len(candidates) == 0 {
			return n + 1
		}
	}
	return len(points)
}

// chronological returns the points in timestamp order without touching the input
func chronological(points []domain.LocationPoint) []domain.LocationPoint {
	if sort.SliceIsSorted(points, func(i, j int) bool { return points[i].Timestamp.Before(points[j].Timestamp) }) {
		return points
	}
	out := make([]domain.LocationPoint, len(points))
	copy(out, points)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Timestamp.Before(out[j].Timestamp) })
	return out
}
