package config

import (
	"io"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
)

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func TestLoadDefaults(t *testing.T) {
	for _, key := range []string{"PORT", "DATABASE_URL", "RANDOM_SEED", "NIGHT_START_HOUR", "HOME_EPS_METERS", "MAX_USERS"} {
		t.Setenv(key, "")
	}
	cfg := Load(quietLogger())

	assert.Equal(t, "8080", cfg.Port)
	assert.Empty(t, cfg.DatabaseURL)
	assert.Equal(t, int64(0), cfg.RandomSeed)
	assert.Equal(t, 500, cfg.MaxUsers)

	inf := cfg.InferenceConfig()
	assert.Equal(t, 22, inf.NightWindow.StartHour)
	assert.Equal(t, 7, inf.NightWindow.EndHour)
	assert.True(t, inf.WorkWindow.WeekdaysOnly)
	assert.Equal(t, 150.0, inf.HomeEpsMeters)
	assert.Equal(t, 3, inf.MinPoints)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("RANDOM_SEED", "42")
	t.Setenv("NIGHT_START_HOUR", "21")
	t.Setenv("HOME_EPS_METERS", "120.5")
	t.Setenv("MAX_USERS", "80")
	cfg := Load(quietLogger())

	assert.Equal(t, "9090", cfg.Port)
	assert.Equal(t, int64(42), cfg.RandomSeed)
	assert.Equal(t, 21, cfg.InferenceConfig().NightWindow.StartHour)
	assert.Equal(t, 120.5, cfg.InferenceConfig().HomeEpsMeters)
	assert.Equal(t, 80, cfg.SynthesizerConfig().UserLimit)
}

func TestLoadIgnoresInvalidValues(t *testing.T) {
	t.Setenv("RANDOM_SEED", "not-a-number")
	t.Setenv("NIGHT_START_HOUR", "31")
	t.Setenv("WORK_EPS_METERS", "wide")
	cfg := Load(quietLogger())

	assert.Equal(t, int64(0), cfg.RandomSeed)
	assert.Equal(t, 22, cfg.NightStartHour)
	assert.Equal(t, 200.0, cfg.WorkEpsMeters)
}

func TestNewLoggerLevel(t *testing.T) {
	cfg := &Config{LogLevel: "debug", LogFormat: "json"}
	logger := cfg.NewLogger()
	assert.Equal(t, logrus.DebugLevel, logger.GetLevel())
	assert.IsType(t, &logrus.JSONFormatter{}, logger.Formatter)
}
