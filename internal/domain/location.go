package domain

import (
	"fmt"
	"time"
)

// LocationType labels what a point represents in a trajectory
type LocationType string

const (
	LocationHome     LocationType = "home"
	LocationWork     LocationType = "work"
	LocationLeisure  LocationType = "leisure"
	LocationTransit  LocationType = "transit"
	LocationFrequent LocationType = "frequent"
	LocationOther    LocationType = "other"
)

// Valid reports whether t is one of the known location types.
// An empty type is accepted and treated as "other".
func (t LocationType) Valid() bool {
	switch t {
	case "", LocationHome, LocationWork, LocationLeisure, LocationTransit, LocationFrequent, LocationOther:
		return true
	}
	return false
}

// LocationPoint is a single timestamped GPS fix
type LocationPoint struct {
	Lat          float64      `json:"lat"`
	Lon          float64      `json:"lon"`
	Timestamp    time.Time    `json:"timestamp"`
	LocationType LocationType `json:"location_type,omitempty"`
}

// Validate checks coordinate ranges
func (p LocationPoint) Validate() error {
	if p.Lat < -90 || p.Lat > 90 || p.Lat != p.Lat {
		return &ValidationError{Field: "lat", Value: p.Lat, Min: -90, Max: 90}
	}
	if p.Lon < -180 || p.Lon > 180 || p.Lon != p.Lon {
		return &ValidationError{Field: "lon", Value: p.Lon, Min: -180, Max: 180}
	}
	if !p.LocationType.Valid() {
		return &InvalidParameterError{Field: "location_type", Reason: fmt.Sprintf("unknown location type %q", p.LocationType)}
	}
	return nil
}

// UserProfile is one user's movement history.
// HomeLocation and WorkLocation hold synthesized ground truth on generated
// datasets; inference never reads them.
type UserProfile struct {
	UserID       string          `json:"user_id"`
	Locations    []LocationPoint `json:"locations"`
	HomeLocation *LocationPoint  `json:"home_location,omitempty"`
	WorkLocation *LocationPoint  `json:"work_location,omitempty"`
}

// Clone returns a deep copy of the profile
func (u UserProfile) Clone() UserProfile {
	out := UserProfile{
		UserID:    u.UserID,
		Locations: make([]LocationPoint, len(u.Locations)),
	}
	copy(out.Locations, u.Locations)
	if u.HomeLocation != nil {
		home := *u.HomeLocation
		out.HomeLocation = &home
	}
	if u.WorkLocation != nil {
		work := *u.WorkLocation
		out.WorkLocation = &work
	}
	return out
}

// Dataset is an immutable collection of user profiles for one city
type Dataset struct {
	ID          string        `json:"id,omitempty"`
	Users       []UserProfile `json:"users"`
	GeneratedAt time.Time     `json:"generated_at"`
	City        string        `json:"city"`
}

// Validate checks user id uniqueness and point ranges
func (d *Dataset) Validate() error {
	if d == nil {
		return &ValidationError{Field: "dataset", Message: "dataset is required"}
	}
	seen := make(map[string]struct{}, len(d.Users))
	for i, u := range d.Users {
		if u.UserID == "" {
			return &ValidationError{Field: fmt.Sprintf("users[%d].user_id", i), Message: "user_id is required"}
		}
		if _, dup := seen[u.UserID]; dup {
			return &ValidationError{Field: fmt.Sprintf("users[%d].user_id", i), Message: fmt.Sprintf("duplicate user_id %q", u.UserID)}
		}
		seen[u.UserID] = struct{}{}
		for j, p := range u.Locations {
			if err := p.Validate(); err != nil {
				return fmt.Errorf("users[%d].locations[%d]: %w", i, j, err)
			}
		}
	}
	return nil
}

// User looks up a profile by id
func (d *Dataset) User(userID string) (*UserProfile, error) {
	for i := range d.Users {
		if d.Users[i].UserID == userID {
			return &d.Users[i], nil
		}
	}
	return nil, &UnknownUserError{UserID: userID}
}

// PointCount returns the number of points across all users
func (d *Dataset) PointCount() int {
	n := 0
	for _, u := range d.Users {
		n += len(u.Locations)
	}
	return n
}

// Clone returns a deep copy of the dataset
func (d *Dataset) Clone() *Dataset {
	out := &Dataset{
		ID:          d.ID,
		GeneratedAt: d.GeneratedAt,
		City:        d.City,
		Users:       make([]UserProfile, len(d.Users)),
	}
	for i, u := range d.Users {
		out.Users[i] = u.Clone()
	}
	return out
}
