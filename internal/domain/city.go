package domain

import "time"

// Coordinate is a bare lat/lon pair
type Coordinate struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// Bounds is a lat/lon bounding box
type Bounds struct {
	MinLat float64 `json:"min_lat"`
	MaxLat float64 `json:"max_lat"`
	MinLon float64 `json:"min_lon"`
	MaxLon float64 `json:"max_lon"`
}

// Clamp pulls a coordinate inside the box
func (b Bounds) Clamp(c Coordinate) Coordinate {
	return Coordinate{
		Lat: clamp(c.Lat, b.MinLat, b.MaxLat),
		Lon: clamp(c.Lon, b.MinLon, b.MaxLon),
	}
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// CityProfile seeds trajectory synthesis for one city
type CityProfile struct {
	Name             string
	Center           Coordinate
	Bounds           Bounds
	Landmarks        map[string]Coordinate
	ResidentialAreas []Coordinate
	WorkAreas        []Coordinate
	Location         *time.Location
}

// Calgary coordinates
const (
	CalgaryCenterLat = 51.0447
	CalgaryCenterLon = -114.0719
)

// Calgary returns the default city profile
func Calgary() CityProfile {
	landmarks := map[string]Coordinate{
		"downtown":            {51.0447, -114.0719},
		"university":          {51.0777, -114.1300},
		"airport":             {51.1215, -114.0076},
		"south_health_campus": {50.8820, -113.9566},
		"chinook_centre":      {50.9983, -114.0738},
		"market_mall":         {51.0890, -114.1560},
		"stephen_ave":         {51.0461, -114.0625},
		"saddledome":          {51.0374, -114.0519},
		"calgary_tower":       {51.0448, -114.0630},
		"kensington":          {51.0533, -114.0900},
		"inglewood":           {51.0347, -114.0254},
		"bridgeland":          {51.0560, -114.0457},
		"beltline":            {51.0380, -114.0700},
		"mission":             {51.0300, -114.0600},
		"bowness":             {51.0880, -114.1890},
		"crowfoot":            {51.1234, -114.2008},
	}

	return CityProfile{
		Name:      "Calgary",
		Center:    Coordinate{CalgaryCenterLat, CalgaryCenterLon},
		Bounds:    Bounds{MinLat: 50.85, MaxLat: 51.20, MinLon: -114.35, MaxLon: -113.85},
		Landmarks: landmarks,
		ResidentialAreas: []Coordinate{
			{51.05, -114.11}, // Kensington
			{51.08, -114.08}, // North Hill
			{51.02, -114.08}, // Beltline
			{50.95, -114.07}, // South Calgary
			{51.10, -114.15}, // Varsity
			{51.03, -114.03}, // Inglewood
			{51.06, -114.05}, // Bridgeland
			{51.00, -114.05}, // Mission
			{51.12, -114.20}, // Bowness
		},
		WorkAreas: []Coordinate{
			landmarks["downtown"],
			landmarks["university"],
			landmarks["south_health_campus"],
			{51.05, -114.07}, // Downtown core
			{51.04, -114.06}, // Stephen Ave area
			{51.08, -114.13}, // University area
		},
		// Mountain Standard Time; fixed so synthesized hours stay stable across hosts
		Location: time.FixedZone("MST", -7*60*60),
	}
}
