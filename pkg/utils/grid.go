package utils

import "math"

// Cell identifies one square of a lat/lon grid
type Cell struct {
	Row int64
	Col int64
}

// SnapToGrid moves a coordinate to the nearest grid center. Centers sit on
// integer multiples of cellDegrees.
func SnapToGrid(lat, lon, cellDegrees float64) (float64, float64) {
	return snap(lat, cellDegrees), snap(lon, cellDegrees)
}

func snap(v, cell float64) float64 {
	return math.Round(v/cell) * cell
}

// CellOf returns the grid cell whose center is nearest to the coordinate
func CellOf(lat, lon, cellDegrees float64) Cell {
	return Cell{
		Row: int64(math.Round(lat / cellDegrees)),
		Col: int64(math.Round(lon / cellDegrees)),
	}
}

// Center returns the coordinate of the cell center
func (c Cell) Center(cellDegrees float64) (float64, float64) {
	return float64(c.Row) * cellDegrees, float64(c.Col) * cellDegrees
}
