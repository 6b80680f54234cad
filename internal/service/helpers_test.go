package service

import (
	"io"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/locationprivacy/backend/internal/domain"
)

// monday is 2024-03-04, a Monday
var monday = time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC)

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func at(day, hour, minute int) time.Time {
	return monday.AddDate(0, 0, day).Add(time.Duration(hour)*time.Hour + time.Duration(minute)*time.Minute)
}

func point(lat, lon float64, ts time.Time) domain.LocationPoint {
	return domain.LocationPoint{Lat: lat, Lon: lon, Timestamp: ts}
}

func newTestScorer() *RiskScorer {
	return NewRiskScorer(NewPlaceInferencer(DefaultInferenceConfig(), NewDBSCAN()), 4)
}

func newTestSynthesizer(seed int64) *TrajectorySynthesizer {
	synth := NewTrajectorySynthesizer(DefaultSynthesizerConfig(), NewLockedSource(seed), nil, quietLogger(), nil)
	synth.Clock = func() time.Time { return time.Date(2024, 6, 15, 18, 0, 0, 0, time.UTC) }
	return synth
}

// commuter sleeps at home on weeknights and works at work on weekdays
func commuter(id string, home, work domain.Coordinate, days int) domain.UserProfile {
	u := domain.UserProfile{UserID: id}
	for d := 0; d < days; d++ {
		jitter := float64(d) * 0.00005
		u.Locations = append(u.Locations,
			point(home.Lat+jitter, home.Lon, at(d, 6, 10)),
			point(work.Lat, work.Lon+jitter, at(d, 10, 0)),
			point(work.Lat, work.Lon-jitter, at(d, 14, 0)),
			point(home.Lat-jitter, home.Lon, at(d, 23, 0)),
		)
	}
	return u
}
