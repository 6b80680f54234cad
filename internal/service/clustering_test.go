package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/locationprivacy/backend/internal/domain"
)

func TestDBSCANSeparatesDenseGroups(t *testing.T) {
	var points []domain.LocationPoint
	for i := 0; i < 5; i++ {
		points = append(points, point(51.0447+float64(i)*0.0001, -114.0719, at(0, 23, 0)))
	}
	for i := 0; i < 5; i++ {
		points = append(points, point(51.0650+float64(i)*0.0001, -114.0719, at(0, 23, 0)))
	}
	points = append(points, point(51.1500, -114.2000, at(0, 23, 0)))

	clusters := NewDBSCAN().Cluster(points, 150, 3)
	require.Len(t, clusters, 2)
	assert.Len(t, clusters[0], 5)
	assert.Len(t, clusters[1], 5)
	assert.InDelta(t, 51.0449, Centroid(clusters[0]).Lat, 1e-9)
	assert.InDelta(t, 51.0652, Centroid(clusters[1]).Lat, 1e-9)
}

func TestDBSCANChainsThroughCorePoints(t *testing.T) {
	// ~100 m apart: each point reaches only its direct neighbours
	var points []domain.LocationPoint
	for i := 0; i < 6; i++ {
		points = append(points, point(51.0+float64(i)*0.0009, -114.0, at(0, 12, 0)))
	}

	clusters := NewDBSCAN().Cluster(points, 150, 3)
	require.Len(t, clusters, 1)
	assert.Len(t, clusters[0], 6)
}

func TestDBSCANRejectsSparsePoints(t *testing.T) {
	points := []domain.LocationPoint{
		point(51.00, -114.00, at(0, 1, 0)),
		point(51.01, -114.00, at(0, 2, 0)),
		point(51.02, -114.00, at(0, 3, 0)),
	}
	assert.Empty(t, NewDBSCAN().Cluster(points, 150, 3))
	assert.Empty(t, NewDBSCAN().Cluster(nil, 150, 3))
}

func TestCentroidOfEmptyCluster(t *testing.T) {
	assert.Equal(t, domain.Coordinate{}, Centroid(nil))
}

func TestDBSCANClustersAcrossAntimeridian(t *testing.T) {
	// ~55 m either side of the 180th meridian
	points := []domain.LocationPoint{
		point(0, 179.9995, at(0, 1, 0)),
		point(0, -179.9995, at(0, 2, 0)),
		point(0, 179.9998, at(0, 3, 0)),
	}

	clusters := NewDBSCAN().Cluster(points, 150, 3)
	require.Len(t, clusters, 1)
	assert.Len(t, clusters[0], 3)
}

func TestDBSCANClustersAroundPole(t *testing.T) {
	// each point is ~56 m from the north pole on a different meridian
	points := []domain.LocationPoint{
		point(89.9995, 0, at(0, 1, 0)),
		point(89.9995, 90, at(0, 2, 0)),
		point(89.9995, 180, at(0, 3, 0)),
	}

	clusters := NewDBSCAN().Cluster(points, 150, 3)
	require.Len(t, clusters, 1)
	assert.Len(t, clusters[0], 3)
}
