package service

import (
	"math"

	"github.com/dhconnelly/rtreego"

	"github.com/locationprivacy/backend/internal/domain"
	"github.com/locationprivacy/backend/pkg/utils"
)

const (
	rtreeDimensions  = 2
	rtreeMinChildren = 4
	rtreeMaxChildren = 16
	pointTolerance   = 1e-9
)

// Clusterer groups points into dense clusters. Implementations must not
// filter by time; callers select the points to cluster.
type Clusterer interface {
	Cluster(points []domain.LocationPoint, epsMeters float64, minPts int) [][]domain.LocationPoint
}

// DBSCAN is a density-based Clusterer using haversine distance.
// Neighbourhood queries go through an R-tree.
type DBSCAN struct{}

// NewDBSCAN creates a DBSCAN clusterer
func NewDBSCAN() *DBSCAN {
	return &DBSCAN{}
}

// indexedPoint wraps a point position to implement rtreego.Spatial
type indexedPoint struct {
	idx  int
	rect *rtreego.Rect
}

func (p *indexedPoint) Bounds() *rtreego.Rect {
	return p.rect
}

// Cluster returns clusters of at least minPts points. A point is a core
// point when at least minPts points (itself included) lie within epsMeters.
// Clusters are returned in discovery order.
func (d *DBSCAN) Cluster(points []domain.LocationPoint, epsMeters float64, minPts int) [][]domain.LocationPoint {
	if len(points) == 0 || minPts < 1 || epsMeters <= 0 {
		return nil
	}

	tree := rtreego.NewTree(rtreeDimensions, rtreeMinChildren, rtreeMaxChildren)
	for i, p := range points {
		tree.Insert(&indexedPoint{
			idx:  i,
			rect: rtreego.Point{p.Lat, p.Lon}.ToRect(pointTolerance),
		})
	}

	const (
		unvisited = 0
		noise     = -1
	)
	labels := make([]int, len(points))
	cluster := 0

	for i := range points {
		if labels[i] != unvisited {
			continue
		}
		neighbours := d.regionQuery(tree, points, i, epsMeters)
		if len(neighbours) < minPts {
			labels[i] = noise
			continue
		}

		cluster++
		labels[i] = cluster
		queue := neighbours
		for len(queue) > 0 {
			j := queue[0]
			queue = queue[1:]
			if labels[j] == noise {
				// border point
				labels[j] = cluster
			}
			if labels[j] != unvisited {
				continue
			}
			labels[j] = cluster
			expansion := d.regionQuery(tree, points, j, epsMeters)
			if len(expansion) >= minPts {
				queue = append(queue, expansion...)
			}
		}
	}

	groups := make([][]domain.LocationPoint, cluster)
	for i, label := range labels {
		if label > 0 {
			groups[label-1] = append(groups[label-1], points[i])
		}
	}

	out := groups[:0]
	for _, g := range groups {
		if len(g) >= minPts {
			out = append(out, g)
		}
	}
	return out
}

// regionQuery returns indices within epsMeters of points[i], itself included
func (d *DBSCAN) regionQuery(tree *rtreego.Rtree, points []domain.LocationPoint, i int, epsMeters float64) []int {
	center := points[i]
	var out []int
	seen := make(map[int]struct{})
	for _, bounds := range searchBoxes(center, utils.MetersToDegrees(epsMeters)*1.01) {
		for _, r := range tree.SearchIntersect(bounds) {
			item, ok := r.(*indexedPoint)
			if !ok {
				continue
			}
			if _, dup := seen[item.idx]; dup {
				continue
			}
			seen[item.idx] = struct{}{}
			p := points[item.idx]
			if utils.HaversineMeters(center.Lat, center.Lon, p.Lat, p.Lon) <= epsMeters {
				out = append(out, item.idx)
			}
		}
	}
	if len(out) == 0 {
		return []int{i}
	}
	return out
}

// searchBoxes returns the degree boxes covering a radius around center.
// The box is split at the antimeridian and spans every longitude when the
// radius reaches a pole.
func searchBoxes(center domain.LocationPoint, latDeg float64) []*rtreego.Rect {
	box := func(minLat, minLon, maxLat, maxLon float64) *rtreego.Rect {
		r, err := rtreego.NewRect(rtreego.Point{minLat, minLon}, []float64{maxLat - minLat, maxLon - minLon})
		if err != nil {
			return nil
		}
		return r
	}

	minLat, maxLat := center.Lat-latDeg, center.Lat+latDeg
	c := math.Cos(center.Lat * math.Pi / 180)
	if maxLat >= 90 || minLat <= -90 || c <= 0 || latDeg/c >= 180 {
		return compactRects(box(minLat, -180, maxLat, 180))
	}

	lonDeg := latDeg / c
	minLon, maxLon := center.Lon-lonDeg, center.Lon+lonDeg
	rects := []*rtreego.Rect{box(minLat, math.Max(minLon, -180), maxLat, math.Min(maxLon, 180))}
	if minLon < -180 {
		rects = append(rects, box(minLat, minLon+360, maxLat, 180))
	}
	if maxLon > 180 {
		rects = append(rects, box(minLat, -180, maxLat, maxLon-360))
	}
	return compactRects(rects...)
}

func compactRects(rects ...*rtreego.Rect) []*rtreego.Rect {
	out := rects[:0]
	for _, r := range rects {
		if r != nil {
			out = append(out, r)
		}
	}
	return out
}

// Centroid returns the mean coordinate of a cluster
func Centroid(cluster []domain.LocationPoint) domain.Coordinate {
	if len(cluster) == 0 {
		return domain.Coordinate{}
	}
	var lat, lon float64
	for _, p := range cluster {
		lat += p.Lat
		lon += p.Lon
	}
	n := float64(len(cluster))
	return domain.Coordinate{Lat: lat / n, Lon: lon / n}
}

// largestCluster picks the biggest cluster, the earliest one on ties
func largestCluster(clusters [][]domain.LocationPoint) []domain.LocationPoint {
	var best []domain.LocationPoint
	for _, c := range clusters {
		if len(c) > len(best) {
			best = c
		}
	}
	return best
}
