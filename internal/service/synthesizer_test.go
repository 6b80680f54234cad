package service

import (
	"context"
	"fmt"
	"sort"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/locationprivacy/backend/internal/domain"
	"github.com/locationprivacy/backend/internal/observability"
)

func TestGenerateShape(t *testing.T) {
	synth := newTestSynthesizer(1)
	ds, err := synth.Generate(context.Background(), GenerateOptions{NumUsers: 8})
	require.NoError(t, err)
	require.NoError(t, ds.Validate())

	assert.Equal(t, "Calgary", ds.City)
	assert.NotEmpty(t, ds.ID)
	require.Len(t, ds.Users, 8)

	bounds := domain.Calgary().Bounds
	for i, u := range ds.Users {
		assert.Equal(t, fmt.Sprintf("user_%03d", i+1), u.UserID)
		require.NotNil(t, u.HomeLocation)
		assert.True(t, sort.SliceIsSorted(u.Locations, func(a, b int) bool {
			return u.Locations[a].Timestamp.Before(u.Locations[b].Timestamp)
		}), u.UserID)

		for _, p := range u.Locations {
			assert.InDelta(t, (bounds.MinLat+bounds.MaxLat)/2, p.Lat, (bounds.MaxLat-bounds.MinLat)/2+0.05)
			assert.InDelta(t, (bounds.MinLon+bounds.MaxLon)/2, p.Lon, (bounds.MaxLon-bounds.MinLon)/2+0.05)
		}
	}
}

func TestGenerateDailyRoutine(t *testing.T) {
	ds, err := newTestSynthesizer(2).Generate(context.Background(), GenerateOptions{NumUsers: 10})
	require.NoError(t, err)

	workers := 0
	for _, u := range ds.Users {
		days := make(map[string]struct{})
		lateHome := 0
		for _, p := range u.Locations {
			days[p.Timestamp.Format("2006-01-02")] = struct{}{}
			if p.LocationType == domain.LocationHome && p.Timestamp.Hour() == 23 {
				lateHome++
			}
			if p.LocationType == domain.LocationWork {
				h := p.Timestamp.Hour()
				assert.True(t, h >= 9 && h <= 17, "work visit at %s", p.Timestamp)
			}
		}
		assert.Equal(t, len(days), lateHome, u.UserID)
		assert.GreaterOrEqual(t, len(days), 7)
		assert.LessOrEqual(t, len(days), 21)
		if u.WorkLocation != nil {
			workers++
		}
	}
	assert.Positive(t, workers)
}

func TestGenerateDefaultSize(t *testing.T) {
	ds, err := newTestSynthesizer(3).Generate(context.Background(), GenerateOptions{})
	require.NoError(t, err)
	assert.GreaterOrEqual(t, len(ds.Users), 30)
	assert.LessOrEqual(t, len(ds.Users), 50)
}

func TestGenerateIsReproducibleForSeed(t *testing.T) {
	a, err := newTestSynthesizer(77).Generate(context.Background(), GenerateOptions{NumUsers: 4})
	require.NoError(t, err)
	b, err := newTestSynthesizer(77).Generate(context.Background(), GenerateOptions{NumUsers: 4})
	require.NoError(t, err)

	require.Len(t, b.Users, len(a.Users))
	for i := range a.Users {
		require.Len(t, b.Users[i].Locations, len(a.Users[i].Locations))
		for j := range a.Users[i].Locations {
			pa, pb := a.Users[i].Locations[j], b.Users[i].Locations[j]
			assert.Equal(t, pa.Lat, pb.Lat)
			assert.Equal(t, pa.Lon, pb.Lon)
			assert.True(t, pa.Timestamp.Equal(pb.Timestamp))
		}
	}
}

func TestGenerateCachesUntilRefresh(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics, err := observability.NewEngineMetrics(reg)
	require.NoError(t, err)
	cache := NewMemoryDatasetCache()
	synth := NewTrajectorySynthesizer(DefaultSynthesizerConfig(), NewLockedSource(5), cache, quietLogger(), metrics)
	ctx := context.Background()

	first, err := synth.Generate(ctx, GenerateOptions{NumUsers: 3})
	require.NoError(t, err)
	again, err := synth.Generate(ctx, GenerateOptions{NumUsers: 3})
	require.NoError(t, err)
	assert.Same(t, first, again)

	other, err := synth.Generate(ctx, GenerateOptions{NumUsers: 4})
	require.NoError(t, err)
	assert.NotEqual(t, first.ID, other.ID)
	assert.Equal(t, 2, cache.Len())

	fresh, err := synth.Generate(ctx, GenerateOptions{NumUsers: 3, Refresh: true})
	require.NoError(t, err)
	assert.NotEqual(t, first.ID, fresh.ID)

	cached, err := synth.Generate(ctx, GenerateOptions{NumUsers: 3})
	require.NoError(t, err)
	assert.Same(t, fresh, cached)

	assert.Equal(t, 3.0, testutil.ToFloat64(metrics.DatasetsGenerated))
	assert.Equal(t, 2.0, testutil.ToFloat64(metrics.DatasetCacheHits))
}

func TestGenerateRejectsBadSize(t *testing.T) {
	synth := newTestSynthesizer(1)
	for _, n := range []int{-1, 501} {
		_, err := synth.Generate(context.Background(), GenerateOptions{NumUsers: n})
		require.ErrorIs(t, err, domain.ErrInvalidParameter)
		assert.Equal(t, "num_users", domain.FieldOf(err))
	}
}

func TestGenerateHonoursCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := newTestSynthesizer(1).Generate(ctx, GenerateOptions{NumUsers: 2})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestCacheKey(t *testing.T) {
	synth := newTestSynthesizer(1)
	assert.Equal(t, "Calgary|users=auto", synth.CacheKey(0))
	assert.Equal(t, "Calgary|users=25", synth.CacheKey(25))
}

func TestMemoryDatasetCache(t *testing.T) {
	cache := NewMemoryDatasetCache()
	ds := &domain.Dataset{ID: "a", GeneratedAt: time.Now()}

	_, ok := cache.Get("k")
	assert.False(t, ok)

	cache.Set("k", ds)
	got, ok := cache.Get("k")
	require.True(t, ok)
	assert.Same(t, ds, got)

	cache.Invalidate("k")
	_, ok = cache.Get("k")
	assert.False(t, ok)
	assert.Zero(t, cache.Len())
}
